package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "ROYALTYHUB_"

// Config is built once at process start and passed to constructors explicitly.
type Config struct {
	Environment string

	HTTPAddr string
	GRPCAddr string

	ApplicationToken string
	TokenSecret      string
	TokenTTL         time.Duration
	TokenIssuer      string

	PostgresDSN string
	RedisAddr   string

	LogLevel  string
	LogFormat string

	CORSOrigins  []string
	RateBurst    int
	RatePerSec   int
	MaxBodyBytes int64

	// TrustProxy honours X-Forwarded-For and X-Real-IP for client addresses.
	TrustProxy bool

	LoginMaxAttempts int
	LoginWindow      time.Duration
}

// Defaults returns the configuration used when no variable overrides a key.
func Defaults() Config {
	return Config{
		Environment:      "production",
		HTTPAddr:         ":8080",
		GRPCAddr:         ":9090",
		TokenTTL:         24 * time.Hour,
		TokenIssuer:      "royaltyhub",
		LogLevel:         "info",
		LogFormat:        "json",
		CORSOrigins:      []string{"*"},
		RateBurst:        50,
		RatePerSec:       20,
		MaxBodyBytes:     1 << 20,
		LoginMaxAttempts: 10,
		LoginWindow:      15 * time.Minute,
	}
}

// Load reads an optional .env file (real environment wins) and then the
// process environment.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an environment lookup function.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	get := func(key string) (string, bool) {
		v, ok := lookup(envPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("ENV"); ok {
		cfg.Environment = strings.ToLower(v)
	}
	if v, ok := get("HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	if v, ok := lookup(envPrefix + "GRPC_ADDR"); ok {
		cfg.GRPCAddr = strings.TrimSpace(v)
	}
	cfg.ApplicationToken, _ = get("APPLICATION_TOKEN")
	cfg.TokenSecret, _ = get("TOKEN_SECRET")
	if v, ok := get("TOKEN_ISSUER"); ok {
		cfg.TokenIssuer = v
	}
	cfg.PostgresDSN, _ = get("PG_DSN")
	cfg.RedisAddr, _ = get("REDIS_ADDR")
	if v, ok := get("TRUST_PROXY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%sTRUST_PROXY: %w", envPrefix, err)
		}
		cfg.TrustProxy = b
	}
	if v, ok := get("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := get("LOG_FORMAT"); ok {
		cfg.LogFormat = v
	}
	if v, ok := get("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}

	var err error
	if cfg.TokenTTL, err = durationVar(get, "TOKEN_TTL", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.LoginWindow, err = durationVar(get, "LOGIN_WINDOW", cfg.LoginWindow); err != nil {
		return Config{}, err
	}
	if cfg.RateBurst, err = intVar(get, "RATE_BURST", cfg.RateBurst); err != nil {
		return Config{}, err
	}
	if cfg.RatePerSec, err = intVar(get, "RATE_PER_SEC", cfg.RatePerSec); err != nil {
		return Config{}, err
	}
	if cfg.LoginMaxAttempts, err = intVar(get, "LOGIN_MAX_ATTEMPTS", cfg.LoginMaxAttempts); err != nil {
		return Config{}, err
	}
	maxBody, err := intVar(get, "MAX_BODY_BYTES", int(cfg.MaxBodyBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxBodyBytes = int64(maxBody)
	return cfg, nil
}

// IsDevelopment reports whether the service runs in a development environment.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Validate checks required keys and secret strength.
func (c Config) Validate() error {
	if c.ApplicationToken == "" {
		return errors.New(envPrefix + "APPLICATION_TOKEN is required")
	}
	if err := ValidateSecret(c.TokenSecret, c.IsDevelopment()); err != nil {
		return err
	}
	if c.TokenTTL <= 0 {
		return errors.New("token ttl must be greater than zero")
	}
	if c.LoginMaxAttempts <= 0 || c.LoginWindow <= 0 {
		return errors.New("login throttling requires positive attempts and window")
	}
	return nil
}

func durationVar(get func(string) (string, bool), key string, def time.Duration) (time.Duration, error) {
	v, ok := get(key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return d, nil
}

func intVar(get func(string) (string, bool), key string, def int) (int, error) {
	v, ok := get(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
