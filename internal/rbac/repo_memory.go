package rbac

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu     sync.RWMutex
	grants map[string]Grant
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{grants: make(map[string]Grant)}
}

func (r *MemoryRepo) Get(ctx context.Context, userID string) (Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grants[userID]
	if !ok {
		return Grant{}, ErrGrantNotFound
	}
	return g, nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, g Grant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[g.UserID] = g
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.grants[userID]; !ok {
		return ErrGrantNotFound
	}
	delete(r.grants, userID)
	return nil
}

func (r *MemoryRepo) AdminUserIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for id, g := range r.grants {
		if g.PermissionLevel == SystemAdminLevel {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
