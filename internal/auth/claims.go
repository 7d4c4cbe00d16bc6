package auth

import "github.com/golang-jwt/jwt/v5"

// AudienceAuthenticated is the audience GoTrue stamps on end-user tokens.
const AudienceAuthenticated = "authenticated"

// Claims are the Supabase-signed JWT claims this service understands.
// The provider is the source of truth; local claims verification is a
// fallback used when the provider is unreachable.
type Claims struct {
	jwt.RegisteredClaims

	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}
