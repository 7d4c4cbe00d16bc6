package users

import (
	"errors"
	"net/http"

	"kagra-platform/internal/audit"
	"kagra-platform/internal/auth"
	"kagra-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers wires the profile service to the HTTP surface.
type Handlers struct {
	Users *Service
	Audit *audit.Service
}

type profileResponse struct {
	Profile
	Affiliations []Affiliation `json:"affiliations"`
}

// Me handles GET /users/me.
func (h Handlers) Me(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	p, affs, err := h.Users.Me(c.Request.Context(), uid)
	if errors.Is(err, ErrProfileNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("profile lookup failed", "user_id", uid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "profile lookup failed"})
		return
	}
	if affs == nil {
		affs = []Affiliation{}
	}
	c.JSON(http.StatusOK, profileResponse{Profile: p, Affiliations: affs})
}

// UpdateMe handles PUT /users/me.
func (h Handlers) UpdateMe(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var upd ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	old, _ := h.Users.Get(c.Request.Context(), uid)

	p, err := h.Users.UpdateMe(c.Request.Context(), uid, upd)
	if errors.Is(err, ErrNoChanges) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	if errors.Is(err, ErrProfileNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("profile update failed", "user_id", uid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "profile update failed"})
		return
	}

	h.Audit.LogResourceAction(c.Request.Context(), audit.ActionUserUpdate, uid, "user", uid,
		audit.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()},
		map[string]any{"display_name": old.DisplayName, "name": old.Name},
		map[string]any{"display_name": p.DisplayName, "name": p.Name},
	)

	c.JSON(http.StatusOK, p)
}

// MyPermissions handles GET /users/me/permissions.
func (h Handlers) MyPermissions(c *gin.Context) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	perms, err := h.Users.PermissionsOf(c.Request.Context(), uid)
	if err != nil {
		logger.FromGin(c).Error("permission listing failed", "user_id", uid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "permission listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": uid, "permissions": perms})
}

// Get handles GET /users/:user_id. Route-guarded by user:read.
func (h Handlers) Get(c *gin.Context) {
	target := c.Param("user_id")
	p, err := h.Users.Get(c.Request.Context(), target)
	if errors.Is(err, ErrProfileNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("user lookup failed", "target_user_id", target, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
		return
	}

	if uid, err := auth.UserID(c.Request.Context()); err == nil {
		h.Audit.LogResourceAction(c.Request.Context(), audit.ActionRead, uid, "user", target,
			audit.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}, nil, nil)
	}
	c.JSON(http.StatusOK, p)
}

// List handles GET /users. Route-guarded by user:read.
func (h Handlers) List(c *gin.Context) {
	profiles, err := h.Users.List(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("user listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user listing failed"})
		return
	}
	if profiles == nil {
		profiles = []Profile{}
	}
	c.JSON(http.StatusOK, gin.H{"users": profiles, "total": len(profiles)})
}
