package rbac

import (
	"context"
	"errors"
	"time"

	"kagra-platform/pkg/logger"
	"kagra-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// SystemAdminLevel is the permission_level value that marks a user as a
// system administrator. Other levels are reserved.
const SystemAdminLevel = 1

var ErrGrantNotFound = errors.New("rbac: grant not found")

// Grant is a row in user_system_permissions.
type Grant struct {
	UserID          string    `json:"user_id"`
	PermissionLevel int       `json:"permission_level"`
	GrantedBy       string    `json:"granted_by"`
	GrantedAt       time.Time `json:"granted_at"`
}

// Repository persists system permission grants.
type Repository interface {
	// Get returns the grant for userID, or ErrGrantNotFound.
	Get(ctx context.Context, userID string) (Grant, error)
	// Upsert inserts or refreshes a grant.
	Upsert(ctx context.Context, g Grant) error
	// Delete removes a grant; ErrGrantNotFound when none existed.
	Delete(ctx context.Context, userID string) error
	// AdminUserIDs lists users holding SystemAdminLevel.
	AdminUserIDs(ctx context.Context) ([]string, error)
}

// SystemPermissionStore answers "is this user a system admin?" with a Redis
// read-through cache in front of the repository. All lookups fail closed:
// any storage error reads as "not an admin".
type SystemPermissionStore struct {
	repo  Repository
	rdb   *redis.Client // nil disables caching
	ttl   time.Duration
	clock func() time.Time
}

func NewSystemPermissionStore(repo Repository, rdb *redis.Client, cacheTTL time.Duration) *SystemPermissionStore {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &SystemPermissionStore{
		repo:  repo,
		rdb:   rdb,
		ttl:   cacheTTL,
		clock: time.Now,
	}
}

func cacheKey(userID string) string { return "sysadmin:" + userID }

// IsSystemAdmin reports whether userID holds SystemAdminLevel.
func (s *SystemPermissionStore) IsSystemAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}

	if s.rdb != nil {
		var cached bool
		err := utils.CacheGetJSON(ctx, s.rdb, cacheKey(userID), &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, utils.ErrCacheMiss) {
			logger.From(ctx).Warn("system permission cache read failed", "err", err)
		}
	}

	admin := false
	g, err := s.repo.Get(ctx, userID)
	switch {
	case err == nil:
		admin = g.PermissionLevel == SystemAdminLevel
	case errors.Is(err, ErrGrantNotFound):
		// no grant, not an admin
	default:
		return false, err
	}

	if s.rdb != nil {
		if err := utils.CacheSetJSON(ctx, s.rdb, cacheKey(userID), admin, s.ttl); err != nil {
			logger.From(ctx).Warn("system permission cache write failed", "err", err)
		}
	}
	return admin, nil
}

// Grant marks userID as a system admin. Granting an existing admin again is
// a no-op refresh, not an error.
func (s *SystemPermissionStore) Grant(ctx context.Context, userID, grantedBy string) error {
	if userID == "" {
		return errors.New("rbac: user id is required")
	}
	err := s.repo.Upsert(ctx, Grant{
		UserID:          userID,
		PermissionLevel: SystemAdminLevel,
		GrantedBy:       grantedBy,
		GrantedAt:       s.clock().UTC(),
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// Revoke removes userID's system admin grant.
func (s *SystemPermissionStore) Revoke(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("rbac: user id is required")
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

// AdminUserIDs lists all current system admins, bypassing the cache.
func (s *SystemPermissionStore) AdminUserIDs(ctx context.Context) ([]string, error) {
	return s.repo.AdminUserIDs(ctx)
}

func (s *SystemPermissionStore) invalidate(ctx context.Context, userID string) {
	if s.rdb == nil {
		return
	}
	if err := utils.CacheDelete(ctx, s.rdb, cacheKey(userID)); err != nil {
		// Stale cache self-heals at TTL; log and move on.
		logger.From(ctx).Warn("system permission cache invalidation failed", "user_id", userID, "err", err)
	}
}
