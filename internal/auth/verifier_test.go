package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"kagra-platform/internal/identity"

	"github.com/golang-jwt/jwt/v5"
)

type fakeProvider struct {
	identity.Provider

	verify func(ctx context.Context, token string) (identity.Identity, error)
}

func (f *fakeProvider) VerifyToken(ctx context.Context, token string) (identity.Identity, error) {
	return f.verify(ctx, token)
}

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerify_ProviderAccepts(t *testing.T) {
	p := &fakeProvider{verify: func(ctx context.Context, token string) (identity.Identity, error) {
		return identity.Identity{UserID: "u1", Email: "a@b.c"}, nil
	}}
	v, err := NewVerifier(p, "secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	id, err := v.Verify(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != "u1" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerify_ProviderRejectionIsFinal(t *testing.T) {
	// A token the provider explicitly rejects must not be rescued by the
	// local fallback, even if it is locally valid.
	now := time.Now()
	good := signToken(t, "secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{AudienceAuthenticated},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	})

	p := &fakeProvider{verify: func(ctx context.Context, token string) (identity.Identity, error) {
		return identity.Identity{}, identity.ErrInvalidToken
	}}
	v, _ := NewVerifier(p, "secret")

	if _, err := v.Verify(context.Background(), good); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerify_FallsBackWhenProviderUnreachable(t *testing.T) {
	now := time.Now()
	good := signToken(t, "secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{AudienceAuthenticated},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email: "a@b.c",
	})

	p := &fakeProvider{verify: func(ctx context.Context, token string) (identity.Identity, error) {
		return identity.Identity{}, errors.New("connection refused")
	}}
	v, _ := NewVerifier(p, "secret")

	id, err := v.Verify(context.Background(), good)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != "u1" || id.Email != "a@b.c" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerify_FallbackRejectsExpired(t *testing.T) {
	expired := signToken(t, "secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{AudienceAuthenticated},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	p := &fakeProvider{verify: func(ctx context.Context, token string) (identity.Identity, error) {
		return identity.Identity{}, errors.New("connection refused")
	}}
	v, _ := NewVerifier(p, "secret")

	if _, err := v.Verify(context.Background(), expired); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired token, got %v", err)
	}
}

func TestVerify_FallbackRejectsWrongSecret(t *testing.T) {
	forged := signToken(t, "other-secret", Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{AudienceAuthenticated},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	p := &fakeProvider{verify: func(ctx context.Context, token string) (identity.Identity, error) {
		return identity.Identity{}, errors.New("connection refused")
	}}
	v, _ := NewVerifier(p, "secret")

	if _, err := v.Verify(context.Background(), forged); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for forged token, got %v", err)
	}
}

func TestVerify_EmptyToken(t *testing.T) {
	p := &fakeProvider{verify: func(ctx context.Context, token string) (identity.Identity, error) {
		t.Fatalf("provider should not be called for empty token")
		return identity.Identity{}, nil
	}}
	v, _ := NewVerifier(p, "secret")
	if _, err := v.Verify(context.Background(), ""); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
