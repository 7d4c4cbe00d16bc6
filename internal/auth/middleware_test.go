package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kagra-platform/internal/identity"

	"github.com/gin-gonic/gin"
)

type staticRoles struct {
	role string
	err  error
}

func (s staticRoles) RoleOf(ctx context.Context, userID string) (string, error) {
	return s.role, s.err
}

func newAuthedVerifier(t *testing.T) *Verifier {
	t.Helper()
	p := &fakeProvider{verify: func(ctx context.Context, token string) (identity.Identity, error) {
		if token != "good" {
			return identity.Identity{}, identity.ErrInvalidToken
		}
		return identity.Identity{UserID: "u1", Email: "a@b.c"}, nil
	}}
	v, err := NewVerifier(p, "secret")
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func TestRequireUser_MissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireUser(newAuthedVerifier(t), nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireUser_InvalidToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireUser(newAuthedVerifier(t), nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer bad")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequireUser_InjectsIdentityAndRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireUser(newAuthedVerifier(t), staticRoles{role: "editor"}), func(c *gin.Context) {
		uid, err := UserID(c.Request.Context())
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		role, _ := Role(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role, "token": AccessToken(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	for _, want := range []string{`"user_id":"u1"`, `"role":"editor"`, `"token":"good"`} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %s: %s", want, body)
		}
	}
}

func TestRequireUser_RoleLookupFailureFallsBackToViewer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireUser(newAuthedVerifier(t), staticRoles{err: context.DeadlineExceeded}), func(c *gin.Context) {
		role, _ := Role(c.Request.Context())
		c.String(http.StatusOK, role)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)

	if w.Body.String() != DefaultRole {
		t.Fatalf("expected role %q, got %q", DefaultRole, w.Body.String())
	}
}

func TestOptionalUser_ContinuesAnonymously(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", OptionalUser(newAuthedVerifier(t), nil), func(c *gin.Context) {
		if _, err := UserID(c.Request.Context()); err == nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer bad")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
