package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "royaltyhub:login:"

// Redis shares attempt counters between API instances.
type Redis struct {
	client *redis.Client
	max    int
	window time.Duration
}

var _ Limiter = (*Redis)(nil)

func NewRedis(client *redis.Client, max int, win time.Duration) *Redis {
	return &Redis{client: client, max: max, window: win}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	if r.max <= 0 {
		return true, nil
	}
	k := keyPrefix + key
	// EXPIRE NX on every attempt keeps a TTL on the counter.
	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.ExpireNX(ctx, k, r.window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("count attempt: %w", err)
	}
	return incr.Val() <= int64(r.max), nil
}

func (r *Redis) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}
