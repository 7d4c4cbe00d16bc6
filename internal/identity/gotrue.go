package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// GoTrueProvider talks to a Supabase GoTrue auth server over HTTP.
//
// Endpoints used:
// - GET  /auth/v1/user                  (token verification)
// - POST /auth/v1/token?grant_type=...  (password sign-in, refresh)
// - POST /auth/v1/logout                (sign-out / token revocation)
type GoTrueProvider struct {
	baseURL string
	anonKey string
	http    *http.Client
	clock   func() time.Time
}

type GoTrueConfig struct {
	// ProjectURL is the Supabase project URL without a trailing slash.
	ProjectURL string
	// AnonKey is sent as the apikey header on every request.
	AnonKey string
	// RequestTimeout bounds each provider call; defaults to 10s.
	RequestTimeout time.Duration
}

func NewGoTrueProvider(cfg GoTrueConfig) (*GoTrueProvider, error) {
	if cfg.ProjectURL == "" {
		return nil, fmt.Errorf("identity: project URL is required")
	}
	if cfg.AnonKey == "" {
		return nil, fmt.Errorf("identity: anon key is required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoTrueProvider{
		baseURL: strings.TrimRight(cfg.ProjectURL, "/") + "/auth/v1",
		anonKey: cfg.AnonKey,
		http:    &http.Client{Timeout: timeout},
		clock:   time.Now,
	}, nil
}

func (p *GoTrueProvider) Name() string { return "gotrue" }

func (p *GoTrueProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", p.anonKey)
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	defer drainAndClose(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity: health check status %d", resp.StatusCode)
	}
	return nil
}

// gotrueUser is the subset of the GoTrue user payload we consume.
type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Aud   string `json:"aud"`
}

// gotrueSession is the token-grant response shape.
type gotrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int64      `json:"expires_in"`
	User         gotrueUser `json:"user"`
}

func (p *GoTrueProvider) VerifyToken(ctx context.Context, accessToken string) (Identity, error) {
	if accessToken == "" {
		return Identity{}, ErrInvalidToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/user", nil)
	if err != nil {
		return Identity{}, err
	}
	p.setHeaders(req, accessToken)

	resp, err := p.http.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: verify request failed: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Identity{}, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("identity: verify status %d", resp.StatusCode)
	}

	var u gotrueUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return Identity{}, fmt.Errorf("identity: verify decode failed: %w", err)
	}
	if u.ID == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: u.ID, Email: u.Email, Audience: u.Aud}, nil
}

func (p *GoTrueProvider) SignUp(ctx context.Context, email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	b, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/signup", bytes.NewReader(b))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return Session{}, fmt.Errorf("identity: sign-up request failed: %w", err)
	}
	defer drainAndClose(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity, http.StatusConflict:
		return Session{}, ErrEmailTaken
	case http.StatusBadRequest:
		return Session{}, ErrInvalidCredentials
	default:
		return Session{}, fmt.Errorf("identity: sign-up status %d", resp.StatusCode)
	}

	var gs gotrueSession
	if err := json.NewDecoder(resp.Body).Decode(&gs); err != nil {
		return Session{}, fmt.Errorf("identity: sign-up decode failed: %w", err)
	}
	if gs.AccessToken == "" || gs.User.ID == "" {
		return Session{}, fmt.Errorf("identity: sign-up response missing fields")
	}
	return Session{
		AccessToken:  gs.AccessToken,
		RefreshToken: gs.RefreshToken,
		ExpiresAt:    p.clock().Add(time.Duration(gs.ExpiresIn) * time.Second),
		User:         Identity{UserID: gs.User.ID, Email: gs.User.Email, Audience: gs.User.Aud},
	}, nil
}

func (p *GoTrueProvider) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}
	body := map[string]string{"email": email, "password": password}
	sess, status, err := p.tokenGrant(ctx, "password", body)
	if err != nil {
		return Session{}, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return Session{}, ErrInvalidCredentials
	}
	if status != http.StatusOK {
		return Session{}, fmt.Errorf("identity: sign-in status %d", status)
	}
	return sess, nil
}

func (p *GoTrueProvider) RefreshSession(ctx context.Context, refreshToken string) (Session, error) {
	if refreshToken == "" {
		return Session{}, ErrInvalidToken
	}
	body := map[string]string{"refresh_token": refreshToken}
	sess, status, err := p.tokenGrant(ctx, "refresh_token", body)
	if err != nil {
		return Session{}, err
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized {
		return Session{}, ErrInvalidToken
	}
	if status != http.StatusOK {
		return Session{}, fmt.Errorf("identity: refresh status %d", status)
	}
	return sess, nil
}

func (p *GoTrueProvider) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/logout", nil)
	if err != nil {
		return err
	}
	p.setHeaders(req, accessToken)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity: sign-out request failed: %w", err)
	}
	defer drainAndClose(resp.Body)

	// GoTrue answers 204; an already-dead token is not an error for sign-out.
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("identity: sign-out status %d", resp.StatusCode)
	}
	return nil
}

func (p *GoTrueProvider) tokenGrant(ctx context.Context, grantType string, body map[string]string) (Session, int, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return Session{}, 0, err
	}

	u := p.baseURL + "/token?grant_type=" + url.QueryEscape(grantType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return Session{}, 0, err
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return Session{}, 0, fmt.Errorf("identity: token request failed: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return Session{}, resp.StatusCode, nil
	}

	var gs gotrueSession
	if err := json.NewDecoder(resp.Body).Decode(&gs); err != nil {
		return Session{}, resp.StatusCode, fmt.Errorf("identity: token decode failed: %w", err)
	}
	if gs.AccessToken == "" || gs.User.ID == "" {
		return Session{}, resp.StatusCode, fmt.Errorf("identity: token response missing fields")
	}

	return Session{
		AccessToken:  gs.AccessToken,
		RefreshToken: gs.RefreshToken,
		ExpiresAt:    p.clock().Add(time.Duration(gs.ExpiresIn) * time.Second),
		User:         Identity{UserID: gs.User.ID, Email: gs.User.Email, Audience: gs.User.Aud},
	}, resp.StatusCode, nil
}

func (p *GoTrueProvider) setHeaders(req *http.Request, accessToken string) {
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
}

func drainAndClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<16))
	_ = rc.Close()
}
