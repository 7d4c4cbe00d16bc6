package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *GoTrueProvider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := NewGoTrueProvider(GoTrueConfig{ProjectURL: srv.URL, AnonKey: "anon"})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestVerifyToken_OK(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/user" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("apikey") != "anon" {
			t.Errorf("missing apikey header")
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"u1","email":"a@b.c","aud":"authenticated"}`))
	})

	id, err := p.VerifyToken(context.Background(), "tok")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != "u1" || id.Email != "a@b.c" || id.Audience != "authenticated" {
		t.Fatalf("unexpected identity: %+v", id)
	}
}

func TestVerifyToken_Unauthorized(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.VerifyToken(context.Background(), "bad")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyToken_EmptyToken(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for empty token")
	})
	if _, err := p.VerifyToken(context.Background(), ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSignInWithPassword_OK(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at","refresh_token":"rt","expires_in":3600,"user":{"id":"u1","email":"a@b.c"}}`))
	})
	p.clock = func() time.Time { return time.Unix(1000, 0) }

	sess, err := p.SignInWithPassword(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sess.AccessToken != "at" || sess.RefreshToken != "rt" || sess.User.UserID != "u1" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if want := time.Unix(4600, 0); !sess.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, sess.ExpiresAt)
	}
}

func TestSignInWithPassword_BadCredentials(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	if _, err := p.SignInWithPassword(context.Background(), "a@b.c", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestRefreshSession_InvalidToken(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	if _, err := p.RefreshSession(context.Background(), "stale"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Unix(1000, 0)
	s := Session{ExpiresAt: time.Unix(999, 0)}
	if !s.Expired(now) {
		t.Fatalf("expected expired")
	}
	s.ExpiresAt = time.Unix(1001, 0)
	if s.Expired(now) {
		t.Fatalf("expected not expired")
	}
	if (Session{}).Expired(now) {
		t.Fatalf("zero expiry should never report expired")
	}
}
