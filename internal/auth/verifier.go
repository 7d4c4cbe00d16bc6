package auth

import (
	"context"
	"errors"
	"time"

	"kagra-platform/internal/identity"
	"kagra-platform/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when no verification path accepts the token.
var ErrUnauthenticated = errors.New("auth: unauthenticated")

// Verifier validates bearer tokens.
//
// Verification order (matches the platform's trust model):
//  1. Ask the identity provider — it knows about revocation and sign-out.
//  2. If the provider is unreachable (not a clean rejection), fall back to
//     local HS256 verification with the provider's JWT secret.
//
// A token the provider explicitly rejects is never rescued by the fallback.
type Verifier struct {
	provider identity.Provider
	secret   []byte
	clock    func() time.Time
}

func NewVerifier(provider identity.Provider, jwtSecret string) (*Verifier, error) {
	if provider == nil {
		return nil, errors.New("auth: identity provider is required")
	}
	if jwtSecret == "" {
		return nil, errors.New("auth: SUPABASE_JWT_SECRET is required")
	}
	return &Verifier{
		provider: provider,
		secret:   []byte(jwtSecret),
		clock:    time.Now,
	}, nil
}

// Verify resolves a bearer token to an identity, or ErrUnauthenticated.
func (v *Verifier) Verify(ctx context.Context, token string) (identity.Identity, error) {
	if token == "" {
		return identity.Identity{}, ErrUnauthenticated
	}

	id, err := v.provider.VerifyToken(ctx, token)
	if err == nil {
		return id, nil
	}
	if errors.Is(err, identity.ErrInvalidToken) {
		return identity.Identity{}, ErrUnauthenticated
	}

	// Provider unreachable; try the local secret so a provider outage does not
	// take the whole API down with it.
	logger.From(ctx).Warn("identity provider verification failed, trying local claims", "err", err)
	id, lerr := v.verifyLocal(token)
	if lerr != nil {
		return identity.Identity{}, ErrUnauthenticated
	}
	return id, nil
}

func (v *Verifier) verifyLocal(token string) (identity.Identity, error) {
	var claims Claims

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return v.clock() }),
		jwt.WithLeeway(30*time.Second), // clock skew tolerance
		jwt.WithAudience(AudienceAuthenticated),
	)

	_, err := parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return identity.Identity{}, err
	}

	userID := claims.Subject
	if userID == "" {
		return identity.Identity{}, errors.New("auth: token missing sub")
	}

	return identity.Identity{
		UserID:   userID,
		Email:    claims.Email,
		Audience: AudienceAuthenticated,
	}, nil
}
