package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"kagra-platform/internal/audit"
	"kagra-platform/internal/identity"
	"kagra-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ProfileStore is the slice of the users service the auth handlers need.
// Kept as a local interface to avoid coupling auth to the users package.
type ProfileStore interface {
	EnsureProfile(ctx context.Context, userID, email, displayName string) error
	RoleOf(ctx context.Context, userID string) (string, error)
}

// Handlers groups the authentication HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call the identity provider, return JSON.
type Handlers struct {
	Provider identity.Provider
	Verifier *Verifier
	Profiles ProfileStore
	Sessions *SessionCache
	Audit    *audit.Service
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token,omitempty"`
	TokenType    string       `json:"token_type"`
	ExpiresAt    time.Time    `json:"expires_at"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password (min 8 chars) required"})
		return
	}

	sess, err := h.Provider.SignUp(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.auditAuth(c, audit.ActionLoginFailed, "", req.Email, false, "sign-up rejected")
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		case errors.Is(err, identity.ErrInvalidCredentials):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid email or password"})
		default:
			logger.FromGin(c).Error("sign-up failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		}
		return
	}

	if h.Profiles != nil {
		if err := h.Profiles.EnsureProfile(c.Request.Context(), sess.User.UserID, sess.User.Email, req.DisplayName); err != nil {
			// Profile creation is recoverable; the user exists at the provider.
			logger.FromGin(c).Error("profile creation failed", "user_id", sess.User.UserID, "err", err)
		}
	}

	h.auditAuth(c, audit.ActionUserCreate, sess.User.UserID, sess.User.Email, true, "")
	c.JSON(http.StatusOK, h.tokenResponse(c.Request.Context(), sess))
}

func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	sess, err := h.Provider.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.auditAuth(c, audit.ActionLoginFailed, "", req.Email, false, "invalid credentials")
		if errors.Is(err, identity.ErrInvalidCredentials) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		logger.FromGin(c).Error("sign-in failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	resp := h.tokenResponse(c.Request.Context(), sess)

	if err := h.Sessions.Put(c.Request.Context(), SessionSnapshot{
		UserID: resp.User.ID,
		Email:  resp.User.Email,
		Role:   resp.User.Role,
	}); err != nil {
		logger.FromGin(c).Warn("session cache write failed", "user_id", resp.User.ID, "err", err)
	}

	h.auditAuth(c, audit.ActionLogin, sess.User.UserID, sess.User.Email, true, "")
	c.JSON(http.StatusOK, resp)
}

func (h Handlers) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}

	// Resolve the caller first so we can clear their cached session.
	if id, err := h.Verifier.Verify(c.Request.Context(), token); err == nil {
		if err := h.Sessions.Delete(c.Request.Context(), id.UserID); err != nil {
			logger.FromGin(c).Warn("session cache delete failed", "user_id", id.UserID, "err", err)
		}
		h.auditAuth(c, audit.ActionLogout, id.UserID, id.Email, true, "")
	}

	if err := h.Provider.SignOut(c.Request.Context(), token); err != nil {
		logger.FromGin(c).Error("sign-out failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}

	sess, err := h.Provider.RefreshSession(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidToken) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
			return
		}
		logger.FromGin(c).Error("token refresh failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token refresh failed"})
		return
	}

	h.auditAuth(c, audit.ActionTokenRefreshed, sess.User.UserID, sess.User.Email, true, "")
	c.JSON(http.StatusOK, h.tokenResponse(c.Request.Context(), sess))
}

// Me returns the identity behind the bearer token.
// Richer profile data lives under /users/me.
func (h Handlers) Me(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
		return
	}
	id, err := h.Verifier.Verify(c.Request.Context(), token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, userResponse{
		ID:    id.UserID,
		Email: id.Email,
		Role:  h.roleOf(c.Request.Context(), id.UserID),
	})
}

func (h Handlers) tokenResponse(ctx context.Context, sess identity.Session) tokenResponse {
	return tokenResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		TokenType:    "bearer",
		ExpiresAt:    sess.ExpiresAt,
		User: userResponse{
			ID:    sess.User.UserID,
			Email: sess.User.Email,
			Role:  h.roleOf(ctx, sess.User.UserID),
		},
	}
}

func (h Handlers) roleOf(ctx context.Context, userID string) string {
	if h.Profiles == nil {
		return DefaultRole
	}
	role, err := h.Profiles.RoleOf(ctx, userID)
	if err != nil || role == "" {
		return DefaultRole
	}
	return role
}

func (h Handlers) auditAuth(c *gin.Context, action audit.Action, userID, email string, success bool, reason string) {
	meta := audit.RequestMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	if err := h.Audit.LogAuthAttempt(c.Request.Context(), action, userID, email, meta, success, reason); err != nil {
		logger.FromGin(c).Warn("audit write failed", "action", string(action), "err", err)
	}
}
