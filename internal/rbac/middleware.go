package rbac

import (
	"net/http"

	"kagra-platform/internal/auth"
	"kagra-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RequirePermission allows access when the caller's role carries the
// permission. super_admin roles always pass.
func RequirePermission(p Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := auth.Role(c.Request.Context())
		if err != nil || role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if !HasPermission(role, p) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission " + string(p) + " required"})
			return
		}
		c.Next()
	}
}

// RequireSystemAdmin allows access only to users with a system admin grant.
// Store errors deny access; a lookup failure must never widen privileges.
func RequireSystemAdmin(store *SystemPermissionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := auth.UserID(c.Request.Context())
		if err != nil || uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		admin, err := store.IsSystemAdmin(c.Request.Context(), uid)
		if err != nil {
			logger.FromGin(c).Error("system admin lookup failed", "user_id", uid, "err", err)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		if !admin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			return
		}
		c.Next()
	}
}
