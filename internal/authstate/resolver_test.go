package authstate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testSession(userID string) *Session {
	return &Session{
		AccessToken: "tok-" + userID,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        User{ID: userID, Email: userID + "@example.com"},
	}
}

func TestCheckIsAdmin_True(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/admin/system/users/u1/permissions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-u1" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id":"u1","is_system_admin":true,"permissions":{"system_admin":true}}`))
	}))
	defer srv.Close()

	c := NewAdminPermissionClient(srv.URL, time.Second)
	admin, err := c.CheckIsAdmin(context.Background(), "u1", testSession("u1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !admin {
		t.Fatal("expected admin=true")
	}
}

func TestCheckIsAdmin_ServerErrorIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewAdminPermissionClient(srv.URL, time.Second)
	admin, err := c.CheckIsAdmin(context.Background(), "u1", testSession("u1"))
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	if admin {
		t.Fatal("error responses must read as not admin")
	}
}

func TestCheckIsAdmin_TimeoutBoundsTheCall(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewAdminPermissionClient(srv.URL, 50*time.Millisecond)

	start := time.Now()
	admin, err := c.CheckIsAdmin(context.Background(), "u1", testSession("u1"))
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected timeout error")
	}
	if admin {
		t.Fatal("a timed-out check must not read as admin")
	}
	if elapsed > 2*time.Second {
		t.Fatalf("call was not bounded by the timeout, took %s", elapsed)
	}
}

func TestCheckIsAdmin_NoSessionIsCleanFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint must not be called without a token")
	}))
	defer srv.Close()

	c := NewAdminPermissionClient(srv.URL, time.Second)

	admin, err := c.CheckIsAdmin(context.Background(), "u1", nil)
	if err != nil || admin {
		t.Fatalf("nil session: want clean false, got admin=%v err=%v", admin, err)
	}

	admin, err = c.CheckIsAdmin(context.Background(), "u1", &Session{User: User{ID: "u1"}})
	if err != nil || admin {
		t.Fatalf("token-less session: want clean false, got admin=%v err=%v", admin, err)
	}
}

func TestCheckIsAdmin_FetchesSessionFromStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-u1" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Write([]byte(`{"user_id":"u1","is_system_admin":false}`))
	}))
	defer srv.Close()

	store := NewMemorySessionStore()
	store.SignIn(testSession("u1"))

	c := NewAdminPermissionClient(srv.URL, time.Second)
	c.Sessions = store

	admin, err := c.CheckIsAdmin(context.Background(), "u1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if admin {
		t.Fatal("expected admin=false")
	}
}

func TestCheckIsAdmin_MalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"is_system_admin": "yes"`))
	}))
	defer srv.Close()

	c := NewAdminPermissionClient(srv.URL, time.Second)
	admin, err := c.CheckIsAdmin(context.Background(), "u1", testSession("u1"))
	if err == nil || admin {
		t.Fatalf("malformed body: want error and admin=false, got admin=%v err=%v", admin, err)
	}
}
