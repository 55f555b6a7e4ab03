package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL is the lifetime of a session token when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// Identity is the decoded content of a session token. It is the only thing
// downstream code trusts about the caller.
type Identity struct {
	UserID      string   `json:"id"`
	Role        Role     `json:"type"`
	Internal    bool     `json:"internal"`
	ParentID    string   `json:"parentId,omitempty"`
	ClientID    string   `json:"clientId,omitempty"`
	PayeeID     string   `json:"payeeId,omitempty"`
	ContractIDs []string `json:"contractIds,omitempty"`
}

// NewIdentity builds the token payload for u. contractIDs are kept only when
// u classifies as a payee.
func NewIdentity(u User, contractIDs []string) Identity {
	id := Identity{
		UserID:   u.ID,
		Role:     Classify(u),
		Internal: u.Internal,
		ParentID: u.ParentID,
		ClientID: u.ClientID,
		PayeeID:  u.PayeeID,
	}
	if id.Role == RolePayee && len(contractIDs) > 0 {
		id.ContractIDs = append([]string(nil), contractIDs...)
	}
	return id
}

// Claims is the JWT body: the identity fields at top level next to the
// registered claims.
type Claims struct {
	Identity
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 session tokens with a single shared secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithTTL overrides DefaultTokenTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) CodecOption {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithIssuer sets the iss claim and makes Verify require it.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = strings.TrimSpace(issuer)
	}
}

// WithTokenClock overrides the time source used for iat, exp and validation.
func WithTokenClock(fn func() time.Time) CodecOption {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec returns a Codec for secret.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret is required")
	}
	c := &Codec{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL reports the configured token lifetime.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs id and returns the token with its expiry.
func (c *Codec) Issue(id Identity) (string, time.Time, error) {
	if strings.TrimSpace(id.UserID) == "" {
		return "", time.Time{}, fmt.Errorf("%w: identity has no user id", ErrInvalidInput)
	}
	now := c.now().UTC()
	expiresAt := now.Add(c.ttl)
	claims := Claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, algorithm, issuer and expiry and returns the
// embedded identity. Any failure is reported as ErrInvalidToken.
func (c *Codec) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return Identity{}, ErrInvalidToken
	}
	return claims.Identity, nil
}

// Issue signs id with secret using a throwaway Codec.
func Issue(id Identity, secret string, ttl time.Duration) (string, error) {
	c, err := NewCodec(secret, WithTTL(ttl))
	if err != nil {
		return "", err
	}
	token, _, err := c.Issue(id)
	return token, err
}

// Verify checks token against secret using a throwaway Codec.
func Verify(token, secret string) (Identity, error) {
	c, err := NewCodec(secret)
	if err != nil {
		return Identity{}, err
	}
	return c.Verify(token)
}
