package auth

import (
	"context"
	"errors"
	"time"

	"kagra-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// SessionSnapshot is the small login-state record cached per user.
// It is a convenience cache only; the identity provider owns the session.
type SessionSnapshot struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// SessionCache keeps session snapshots in Redis under session:{user_id}.
// All operations are best-effort; a nil cache is a no-op.
type SessionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSessionCache(rdb *redis.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionCache{rdb: rdb, ttl: ttl}
}

func sessionKey(userID string) string { return "session:" + userID }

func (c *SessionCache) Put(ctx context.Context, snap SessionSnapshot) error {
	if c == nil || c.rdb == nil || snap.UserID == "" {
		return nil
	}
	return utils.CacheSetJSON(ctx, c.rdb, sessionKey(snap.UserID), snap, c.ttl)
}

func (c *SessionCache) Get(ctx context.Context, userID string) (SessionSnapshot, bool, error) {
	if c == nil || c.rdb == nil || userID == "" {
		return SessionSnapshot{}, false, nil
	}
	var snap SessionSnapshot
	err := utils.CacheGetJSON(ctx, c.rdb, sessionKey(userID), &snap)
	if err != nil {
		if errors.Is(err, utils.ErrCacheMiss) {
			return SessionSnapshot{}, false, nil
		}
		return SessionSnapshot{}, false, err
	}
	return snap, true, nil
}

func (c *SessionCache) Delete(ctx context.Context, userID string) error {
	if c == nil || c.rdb == nil || userID == "" {
		return nil
	}
	return utils.CacheDelete(ctx, c.rdb, sessionKey(userID))
}
