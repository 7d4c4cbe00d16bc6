package identity

import (
	"context"
	"errors"
	"time"
)

// Provider defines the provider-agnostic identity interface used by business logic.
//
// Rules:
// - No identity-provider HTTP calls outside identity adapters.
// - Tokens are opaque to callers; only this package understands provider payloads.
// - Never log raw tokens or keys.
type Provider interface {
	Name() string
	HealthCheck(ctx context.Context) error

	// VerifyToken resolves an access token to the identity it represents.
	// Invalid, expired, or revoked tokens return ErrInvalidToken.
	VerifyToken(ctx context.Context, accessToken string) (Identity, error)

	SignUp(ctx context.Context, email, password string) (Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// ErrInvalidToken is returned when the provider rejects a token.
var ErrInvalidToken = errors.New("identity: invalid token")

// ErrInvalidCredentials is returned for failed password sign-in.
var ErrInvalidCredentials = errors.New("identity: invalid credentials")

// ErrEmailTaken is returned when sign-up hits an already-registered email.
var ErrEmailTaken = errors.New("identity: email already registered")

// Identity is the provider's view of an authenticated user.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`

	// Audience is the provider token audience; "authenticated" for end users.
	Audience string `json:"audience,omitempty"`
}

// Session is a bearer credential plus expiry for an authenticated identity.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`

	User Identity `json:"user"`
}

// Expired reports whether the session's access token is past its expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
