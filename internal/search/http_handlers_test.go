package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"kagra-platform/internal/audit"
	"kagra-platform/internal/auth"
	"kagra-platform/internal/charaxy"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T, userID string) (*gin.Engine, *charaxy.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := charaxy.NewService(charaxy.NewMemoryRepo(), nil, nil)
	h := Handlers{Charaxy: svc, Audit: audit.NewService(audit.NewMemoryRepo())}

	r := gin.New()
	r.GET("/search", func(c *gin.Context) {
		if userID != "" {
			ctx := auth.WithIdentity(c.Request.Context(), userID, userID+"@example.com", "viewer")
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}, h.Search)
	return r, svc
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	r, svc := newTestRouter(t, "u1")

	if _, err := svc.CreateNode(ctx, "u2", charaxy.NodeCreate{Title: "weather station", IsPublic: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateNode(ctx, "u2", charaxy.NodeCreate{Title: "weather diary"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=weather", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, "weather station") {
		t.Fatalf("public node missing from results: %s", body)
	}
	if strings.Contains(body, "weather diary") {
		t.Fatalf("private node leaked into results: %s", body)
	}
	if !strings.Contains(body, `"total":1`) {
		t.Fatalf("unexpected total: %s", body)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	r, _ := newTestRouter(t, "u1")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=%20%20", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSearch_Unauthenticated(t *testing.T) {
	r, _ := newTestRouter(t, "")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search?q=x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
