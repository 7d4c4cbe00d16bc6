package authstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"kagra-platform/pkg/logger"
)

// DefaultCheckTimeout bounds a single permission lookup. A check that has
// not answered by then reads as "not admin".
const DefaultCheckTimeout = 15 * time.Second

// PermissionResolver answers whether a user holds the system admin grant.
//
// Implementations return an error for anything short of a definitive
// answer; callers must map errors to false (fail-closed), never to a hang.
type PermissionResolver interface {
	CheckIsAdmin(ctx context.Context, userID string, session *Session) (bool, error)
}

// AdminPermissionClient resolves admin status against the backend's
// GET /api/v1/admin/system/users/{id}/permissions endpoint.
type AdminPermissionClient struct {
	baseURL string
	httpc   *http.Client
	timeout time.Duration

	// Sessions supplies a token when the caller did not pass a session.
	// Optional; without it a missing session resolves to false.
	Sessions SessionStore
}

func NewAdminPermissionClient(baseURL string, timeout time.Duration) *AdminPermissionClient {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &AdminPermissionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{},
		timeout: timeout,
	}
}

type permissionsResponse struct {
	UserID        string `json:"user_id"`
	IsSystemAdmin bool   `json:"is_system_admin"`
}

// CheckIsAdmin resolves userID's admin flag. A missing or token-less
// session is a clean false, not an error: signed-out users are simply not
// admins. The whole call, redirects and body included, is bounded by the
// configured timeout and by ctx.
func (c *AdminPermissionClient) CheckIsAdmin(ctx context.Context, userID string, session *Session) (bool, error) {
	if userID == "" {
		return false, nil
	}

	if session == nil && c.Sessions != nil {
		cur, err := c.Sessions.CurrentSession(ctx)
		if err != nil {
			logger.From(ctx).Warn("session fetch for permission check failed", "err", err)
			return false, nil
		}
		session = cur
	}
	if session == nil || session.AccessToken == "" {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/api/v1/admin/system/users/%s/permissions", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("permission lookup: unexpected status %d", resp.StatusCode)
	}

	var body permissionsResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return false, fmt.Errorf("permission lookup: decode response: %w", err)
	}
	return body.IsSystemAdmin, nil
}

// StoreResolver adapts a server-side permission store to the resolver
// contract, for processes that talk to the database directly.
type StoreResolver struct {
	Store interface {
		IsSystemAdmin(ctx context.Context, userID string) (bool, error)
	}
}

func (r StoreResolver) CheckIsAdmin(ctx context.Context, userID string, _ *Session) (bool, error) {
	if userID == "" {
		return false, nil
	}
	if r.Store == nil {
		return false, errors.New("authstate: no permission store configured")
	}
	return r.Store.IsSystemAdmin(ctx, userID)
}
