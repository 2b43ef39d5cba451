package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestJWTVerifierRoundTrip(t *testing.T) {
	v, err := NewJWTVerifier("test-secret", "authenticated")
	if err != nil {
		t.Fatalf("NewJWTVerifier: %v", err)
	}
	token, err := GenerateToken("test-secret", Identity{ID: "u-1", Email: "a@example.com"}, "authenticated", time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	id, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.ID != "u-1" || id.Email != "a@example.com" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestJWTVerifierRejects(t *testing.T) {
	v, _ := NewJWTVerifier("test-secret", "authenticated")

	wrongSecret, _ := GenerateToken("other-secret", Identity{ID: "u-1"}, "authenticated", time.Minute)
	wrongAudience, _ := GenerateToken("test-secret", Identity{ID: "u-1"}, "anon", time.Minute)

	expiredClaims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "u-1",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}}
	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte("test-secret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:  "u-1",
		Audience: jwt.ClaimStrings{"authenticated"},
	}}).SignedString([]byte("test-secret"))

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not.a.jwt",
		"wrong secret":   wrongSecret,
		"wrong audience": wrongAudience,
		"expired":        expired,
		"no expiry":      noExpiry,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), token); !errors.Is(err, ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	if _, err := NewJWTVerifier("  ", ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), Identity{ID: "u-7", Email: "x@example.com"})
	ctx = ContextWithToken(ctx, "tok")

	id, ok := IdentityFromContext(ctx)
	if !ok || id.ID != "u-7" {
		t.Fatalf("identity not found: %+v", id)
	}
	if uid, ok := UserIDFromContext(ctx); !ok || uid != "u-7" {
		t.Fatalf("user id not found")
	}
	if tok, ok := TokenFromContext(ctx); !ok || tok != "tok" {
		t.Fatalf("token not found")
	}
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatal("unexpected identity on empty context")
	}
}
