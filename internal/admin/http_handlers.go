package admin

import (
	"context"
	"errors"
	"net/http"

	"kagra-platform/internal/audit"
	"kagra-platform/internal/auth"
	"kagra-platform/internal/rbac"
	"kagra-platform/internal/users"
	"kagra-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// PermissionStore is the slice of the system permission store the admin
// surface needs.
type PermissionStore interface {
	IsSystemAdmin(ctx context.Context, userID string) (bool, error)
	Grant(ctx context.Context, userID, grantedBy string) error
	Revoke(ctx context.Context, userID string) error
	AdminUserIDs(ctx context.Context) ([]string, error)
}

// ProfileLister lists user profiles for the admin user table.
type ProfileLister interface {
	List(ctx context.Context) ([]users.Profile, error)
	Get(ctx context.Context, userID string) (users.Profile, error)
}

// Handlers implements the system administration endpoints. The router
// guards every route with the system admin check; handlers here only
// shape responses and record audit events.
type Handlers struct {
	Permissions PermissionStore
	Profiles    ProfileLister
	Audit       *audit.Service
}

func (h Handlers) meta(c *gin.Context) audit.RequestMeta {
	return audit.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

type adminUser struct {
	users.Profile
	IsSystemAdmin bool `json:"is_system_admin"`
}

// ListUsers handles GET /admin/system/users: every profile, flagged
// with whether it holds the system admin grant.
func (h Handlers) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()

	profiles, err := h.Profiles.List(ctx)
	if err != nil {
		logger.FromGin(c).Error("listing profiles failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	adminIDs, err := h.Permissions.AdminUserIDs(ctx)
	if err != nil {
		logger.FromGin(c).Error("listing admin grants failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	admins := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}

	out := make([]adminUser, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, adminUser{Profile: p, IsSystemAdmin: admins[p.UserID]})
	}
	c.JSON(http.StatusOK, gin.H{"users": out, "total": len(out)})
}

// UserPermissions handles GET /admin/system/users/:user_id/permissions.
func (h Handlers) UserPermissions(c *gin.Context) {
	ctx := c.Request.Context()
	targetID := c.Param("user_id")

	isAdmin, err := h.Permissions.IsSystemAdmin(ctx, targetID)
	if err != nil {
		logger.FromGin(c).Error("permission lookup failed", "user_id", targetID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":         targetID,
		"is_system_admin": isAdmin,
		"permissions":     gin.H{"system_admin": isAdmin},
	})
}

// GrantAdmin handles POST /admin/system/users/:user_id/permissions/admin.
// Granting to an existing admin is a no-op success.
func (h Handlers) GrantAdmin(c *gin.Context) {
	ctx := c.Request.Context()
	targetID := c.Param("user_id")

	actorID, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	// the target must exist as a profile before it can hold a grant
	if _, err := h.Profiles.Get(ctx, targetID); err != nil {
		if errors.Is(err, users.ErrProfileNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		logger.FromGin(c).Error("profile lookup failed", "user_id", targetID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if err := h.Permissions.Grant(ctx, targetID, actorID); err != nil {
		logger.FromGin(c).Error("granting system admin failed", "user_id", targetID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.Audit.LogResourceAction(ctx, audit.ActionUserRoleChange, actorID, "user", targetID, h.meta(c),
		nil, map[string]any{"system_admin": true})
	c.JSON(http.StatusOK, gin.H{"user_id": targetID, "is_system_admin": true})
}

// RevokeAdmin handles DELETE /admin/system/users/:user_id/permissions/admin.
// Admins cannot revoke their own grant; that path to zero admins stays
// closed.
func (h Handlers) RevokeAdmin(c *gin.Context) {
	ctx := c.Request.Context()
	targetID := c.Param("user_id")

	actorID, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	if targetID == actorID {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "cannot revoke your own admin access"})
		return
	}

	if err := h.Permissions.Revoke(ctx, targetID); err != nil {
		if errors.Is(err, rbac.ErrGrantNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user is not a system admin"})
			return
		}
		logger.FromGin(c).Error("revoking system admin failed", "user_id", targetID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	h.Audit.LogResourceAction(ctx, audit.ActionUserRoleChange, actorID, "user", targetID, h.meta(c),
		map[string]any{"system_admin": true}, map[string]any{"system_admin": false})
	c.JSON(http.StatusOK, gin.H{"user_id": targetID, "is_system_admin": false})
}
