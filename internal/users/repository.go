package users

import (
	"context"
	"errors"
)

var ErrProfileNotFound = errors.New("users: profile not found")

// Repository persists user profiles and affiliations.
type Repository interface {
	// Get returns the profile for userID, or ErrProfileNotFound.
	Get(ctx context.Context, userID string) (Profile, error)
	// Insert creates a profile; fails on duplicate user id.
	Insert(ctx context.Context, p Profile) error
	// Save overwrites the mutable fields of an existing profile.
	Save(ctx context.Context, p Profile) error
	// List returns all profiles ordered by creation time.
	List(ctx context.Context) ([]Profile, error)
	// Affiliations returns the raw affiliation rows for userID.
	Affiliations(ctx context.Context, userID string) ([]AffiliationRow, error)
}
