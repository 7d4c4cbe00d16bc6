package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// RoleLookup resolves the platform role for a user id.
// Implementations must fail closed: on error, callers assume "viewer".
type RoleLookup interface {
	RoleOf(ctx context.Context, userID string) (string, error)
}

// DefaultRole is assumed when no profile role can be resolved.
const DefaultRole = "viewer"

// RequireUser verifies a bearer token and injects identity into request context.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireUser(v *Verifier, roles RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		role := DefaultRole
		if roles != nil {
			if r, err := roles.RoleOf(c.Request.Context(), id.UserID); err == nil && r != "" {
				role = r
			}
		}

		ctx := WithIdentity(c.Request.Context(), id.UserID, id.Email, role)
		c.Request = c.Request.WithContext(ctx)

		// Also store on gin context for handler convenience.
		c.Set("user_id", id.UserID)
		c.Set("email", id.Email)
		c.Set("role", role)
		c.Set("access_token", token)

		c.Next()
	}
}

// OptionalUser injects identity when a valid bearer token is present and
// continues anonymously otherwise. It never aborts.
func OptionalUser(v *Verifier, roles RoleLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}
		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}

		role := DefaultRole
		if roles != nil {
			if r, err := roles.RoleOf(c.Request.Context(), id.UserID); err == nil && r != "" {
				role = r
			}
		}

		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id.UserID, id.Email, role))
		c.Set("user_id", id.UserID)
		c.Set("access_token", token)
		c.Next()
	}
}

// AccessToken returns the raw bearer token stored by RequireUser.
func AccessToken(c *gin.Context) string {
	if v, ok := c.Get("access_token"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func bearerToken(c *gin.Context) string {
	raw := strings.TrimSpace(c.GetHeader(authorizationHeader))
	if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
		return ""
	}
	return strings.TrimPrefix(raw, bearerPrefix)
}
