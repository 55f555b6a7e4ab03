package auth

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCodecRoundTrip(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	codec, err := NewCodec(testSecret, WithIssuer("royaltyhub"), WithTokenClock(fixedClock(issued)))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	cases := []Identity{
		{UserID: "u1", Role: RoleClient, ClientID: "C"},
		{UserID: "u2", Role: RoleInternal, Internal: true},
		{UserID: "u3", Role: RoleParent, ParentID: "P"},
		{UserID: "u4", Role: RolePayee, ClientID: "C", PayeeID: "x", ContractIDs: []string{"345", "678"}},
		{UserID: "u5", Role: RoleUnresolved},
	}
	for _, want := range cases {
		token, exp, err := codec.Issue(want)
		if err != nil {
			t.Fatalf("Issue(%s): %v", want.UserID, err)
		}
		if !exp.Equal(issued.Add(DefaultTokenTTL)) {
			t.Fatalf("expiry = %v, want %v", exp, issued.Add(DefaultTokenTTL))
		}
		got, err := codec.Verify(token)
		if err != nil {
			t.Fatalf("Verify(%s): %v", want.UserID, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, want)
		}
	}
}

func TestCodecRejectsOtherSecret(t *testing.T) {
	token, err := Issue(Identity{UserID: "u1", Role: RoleClient, ClientID: "C"}, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Verify(token, testSecret+"-other"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if _, err := Verify(token, testSecret); err != nil {
		t.Fatalf("Verify with issuing secret: %v", err)
	}
}

func TestCodecExpiry(t *testing.T) {
	issued := time.Unix(1_700_000_000, 0)
	now := issued
	clock := func() time.Time { return now }
	codec, err := NewCodec(testSecret, WithTTL(time.Minute), WithTokenClock(clock))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	token, _, err := codec.Issue(Identity{UserID: "u1", Role: RoleClient, ClientID: "C"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	now = issued.Add(time.Minute - time.Second)
	if _, err := codec.Verify(token); err != nil {
		t.Fatalf("token should be valid just before expiry: %v", err)
	}
	for _, after := range []time.Duration{time.Minute, time.Minute + time.Second, 48 * time.Hour} {
		now = issued.Add(after)
		if _, err := codec.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("at +%v expected ErrInvalidToken, got %v", after, err)
		}
	}
}

func TestCodecMissingAndMalformed(t *testing.T) {
	codec, err := NewCodec(testSecret)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if _, err := codec.Verify(""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("empty token: expected ErrMissingToken, got %v", err)
	}
	if _, err := codec.Verify("   "); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("blank token: expected ErrMissingToken, got %v", err)
	}
	for _, raw := range []string{"abc", "a.b.c", strings.Repeat("x", 64)} {
		if _, err := codec.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("Verify(%q): expected ErrInvalidToken, got %v", raw, err)
		}
	}
}

func TestCodecRejectsForeignAlgorithmAndIssuer(t *testing.T) {
	codec, err := NewCodec(testSecret, WithIssuer("royaltyhub"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	claims := Claims{
		Identity: Identity{UserID: "u1", Role: RoleInternal, Internal: true},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "royaltyhub",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign HS384: %v", err)
	}
	if _, err := codec.Verify(hs384); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("HS384 token accepted: %v", err)
	}

	claims.Issuer = "someone-else"
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Verify(foreign); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign issuer accepted: %v", err)
	}

	claims.Issuer = "royaltyhub"
	claims.ExpiresAt = nil
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := codec.Verify(noExp); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token without exp accepted: %v", err)
	}
}

func TestNewCodecRequiresSecret(t *testing.T) {
	if _, err := NewCodec(""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestNewIdentityKeepsContractsForPayeesOnly(t *testing.T) {
	payee := NewIdentity(User{ID: "p", ClientID: "C", PayeeID: "x"}, []string{"345"})
	if payee.Role != RolePayee || len(payee.ContractIDs) != 1 {
		t.Fatalf("unexpected payee identity: %+v", payee)
	}
	client := NewIdentity(User{ID: "c", ClientID: "C"}, []string{"345"})
	if client.Role != RoleClient || client.ContractIDs != nil {
		t.Fatalf("unexpected client identity: %+v", client)
	}
}
