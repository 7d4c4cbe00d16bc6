package users

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and local development.
type MemoryRepo struct {
	mu           sync.RWMutex
	profiles     map[string]Profile
	affiliations map[string][]AffiliationRow
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		profiles:     make(map[string]Profile),
		affiliations: make(map[string][]AffiliationRow),
	}
}

func (r *MemoryRepo) Get(ctx context.Context, userID string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[userID]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (r *MemoryRepo) Insert(ctx context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.UserID]; ok {
		return errors.New("users: profile already exists")
	}
	r.profiles[p.UserID] = p
	return nil
}

func (r *MemoryRepo) Save(ctx context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.UserID]; !ok {
		return ErrProfileNotFound
	}
	r.profiles[p.UserID] = p
	return nil
}

func (r *MemoryRepo) List(ctx context.Context) ([]Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepo) Affiliations(ctx context.Context, userID string) ([]AffiliationRow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]AffiliationRow(nil), r.affiliations[userID]...), nil
}

// AddAffiliation seeds an affiliation row. Test helper.
func (r *MemoryRepo) AddAffiliation(row AffiliationRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.affiliations[row.UserID] = append(r.affiliations[row.UserID], row)
}
