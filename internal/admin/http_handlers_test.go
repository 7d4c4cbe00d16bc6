package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kagra-platform/internal/audit"
	"kagra-platform/internal/auth"
	"kagra-platform/internal/rbac"
	"kagra-platform/internal/users"

	"github.com/gin-gonic/gin"
)

func asIdentity(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, userID+"@example.com", rbac.RoleViewer)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newTestRouter(t *testing.T, actorID string) (*gin.Engine, *rbac.SystemPermissionStore, *users.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := rbac.NewSystemPermissionStore(rbac.NewMemoryRepo(), nil, time.Minute)
	userSvc := users.NewService(users.NewMemoryRepo())
	h := Handlers{
		Permissions: store,
		Profiles:    userSvc,
		Audit:       audit.NewService(audit.NewMemoryRepo()),
	}

	r := gin.New()
	g := r.Group("/admin/system", asIdentity(actorID))
	g.GET("/users", h.ListUsers)
	g.GET("/users/:user_id/permissions", h.UserPermissions)
	g.POST("/users/:user_id/permissions/admin", h.GrantAdmin)
	g.DELETE("/users/:user_id/permissions/admin", h.RevokeAdmin)
	return r, store, userSvc
}

func TestListUsers_FlagsAdmins(t *testing.T) {
	ctx := context.Background()
	r, store, userSvc := newTestRouter(t, "root")

	for _, uid := range []string{"root", "u1"} {
		if err := userSvc.EnsureProfile(ctx, uid, uid+"@example.com", ""); err != nil {
			t.Fatalf("profile: %v", err)
		}
	}
	if err := store.Grant(ctx, "root", "root"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/system/users", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"total":2`) {
		t.Fatalf("expected two users, got %s", body)
	}
	if !strings.Contains(body, `"is_system_admin":true`) || !strings.Contains(body, `"is_system_admin":false`) {
		t.Fatalf("admin flags not mixed as expected: %s", body)
	}
}

func TestUserPermissions(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRouter(t, "root")
	if err := store.Grant(ctx, "u1", "root"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/system/users/u1/permissions", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"is_system_admin":true`) {
		t.Fatalf("expected admin flag set: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/system/users/u2/permissions", nil))
	if !strings.Contains(w.Body.String(), `"is_system_admin":false`) {
		t.Fatalf("ungranted user must read false: %s", w.Body.String())
	}
}

func TestGrantAdmin(t *testing.T) {
	ctx := context.Background()
	r, store, userSvc := newTestRouter(t, "root")
	if err := userSvc.EnsureProfile(ctx, "u1", "u1@example.com", ""); err != nil {
		t.Fatalf("profile: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/system/users/u1/permissions/admin", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	admin, err := store.IsSystemAdmin(ctx, "u1")
	if err != nil || !admin {
		t.Fatalf("grant did not stick: admin=%v err=%v", admin, err)
	}

	// granting twice is a no-op success
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/system/users/u1/permissions/admin", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("repeat grant: expected 200, got %d", w.Code)
	}
}

func TestGrantAdmin_UnknownUser(t *testing.T) {
	r, _, _ := newTestRouter(t, "root")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/system/users/ghost/permissions/admin", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown user, got %d", w.Code)
	}
}

func TestRevokeAdmin(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRouter(t, "root")
	if err := store.Grant(ctx, "u1", "root"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/system/users/u1/permissions/admin", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	admin, _ := store.IsSystemAdmin(ctx, "u1")
	if admin {
		t.Fatal("revoke did not stick")
	}

	// revoking a non-admin is a 404
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/system/users/u1/permissions/admin", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRevokeAdmin_SelfRejected(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRouter(t, "root")
	if err := store.Grant(ctx, "root", "root"); err != nil {
		t.Fatalf("grant: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/system/users/root/permissions/admin", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("self revoke must be rejected, got %d", w.Code)
	}
	admin, _ := store.IsSystemAdmin(ctx, "root")
	if !admin {
		t.Fatal("self revoke must not remove the grant")
	}
}
