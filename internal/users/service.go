package users

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"kagra-platform/internal/rbac"
	"kagra-platform/pkg/logger"
)

var ErrNoChanges = errors.New("users: no fields to update")

// Service owns profile lifecycle and the role lookups the auth layer
// depends on.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// WithClock overrides time for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// EnsureProfile creates the profile row for a newly registered user.
// Called on every successful sign-up; an existing profile is left alone so
// repeated registrations (provider retries) stay idempotent.
func (s *Service) EnsureProfile(ctx context.Context, userID, email, displayName string) error {
	if userID == "" || email == "" {
		return errors.New("users: user id and email are required")
	}
	if _, err := s.repo.Get(ctx, userID); err == nil {
		return nil
	} else if !errors.Is(err, ErrProfileNotFound) {
		return err
	}

	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	now := s.clock().UTC()
	return s.repo.Insert(ctx, Profile{
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		Role:        rbac.RoleViewer,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// RoleOf resolves the platform role for a user. Missing profiles read as
// the default role rather than an error; callers treat failure as viewer
// anyway.
func (s *Service) RoleOf(ctx context.Context, userID string) (string, error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return rbac.RoleViewer, nil
	}
	if err != nil {
		return "", err
	}
	if p.Role == "" {
		return rbac.RoleViewer, nil
	}
	return p.Role, nil
}

// Get returns a single profile.
func (s *Service) Get(ctx context.Context, userID string) (Profile, error) {
	return s.repo.Get(ctx, userID)
}

// AuthorInfo returns the public display bits for a user. Missing profiles
// read as empty, not as an error.
func (s *Service) AuthorInfo(ctx context.Context, userID string) (name, avatarURL string, err error) {
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return p.DisplayName, p.AvatarURL, nil
}

// List returns every profile. Admin surface only.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	return s.repo.List(ctx)
}

// Me returns the caller's profile together with tenant-grouped
// affiliations. Affiliation lookups degrade to an empty list on error;
// they decorate the profile, they do not gate it.
func (s *Service) Me(ctx context.Context, userID string) (Profile, []Affiliation, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Profile{}, nil, err
	}

	rows, err := s.repo.Affiliations(ctx, userID)
	if err != nil {
		logger.From(ctx).Warn("affiliation lookup failed", "user_id", userID, "err", err)
		rows = nil
	}
	return p, groupAffiliations(rows), nil
}

// UpdateMe applies a partial profile update and returns the new profile.
func (s *Service) UpdateMe(ctx context.Context, userID string, upd ProfileUpdate) (Profile, error) {
	if upd.empty() {
		return Profile{}, ErrNoChanges
	}
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	if upd.DisplayName != nil {
		p.DisplayName = *upd.DisplayName
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.SlackMemberID != nil {
		p.SlackMemberID = *upd.SlackMemberID
	}
	if upd.ExtensionNumber != nil {
		p.ExtensionNumber = *upd.ExtensionNumber
	}
	if upd.AvatarURL != nil {
		p.AvatarURL = *upd.AvatarURL
	}
	p.UpdatedAt = s.clock().UTC()

	if err := s.repo.Save(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// SetRole changes a user's platform role. Admin surface only.
func (s *Service) SetRole(ctx context.Context, userID, role string) (Profile, error) {
	p, err := s.repo.Get(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	p.Role = role
	p.UpdatedAt = s.clock().UTC()
	if err := s.repo.Save(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// PermissionsOf maps a user's role to its capability strings, grouped by
// resource ("node" -> [create update ...]).
func (s *Service) PermissionsOf(ctx context.Context, userID string) (map[string][]string, error) {
	role, err := s.RoleOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	grouped := make(map[string][]string)
	for _, p := range rbac.PermissionsFor(role) {
		parts := strings.SplitN(string(p), ":", 2)
		if len(parts) != 2 {
			continue
		}
		grouped[parts[0]] = append(grouped[parts[0]], parts[1])
	}
	for _, actions := range grouped {
		sort.Strings(actions)
	}
	return grouped, nil
}

func groupAffiliations(rows []AffiliationRow) []Affiliation {
	byTenant := make(map[string]*Affiliation)
	var order []string
	for _, r := range rows {
		a, ok := byTenant[r.TenantID]
		if !ok {
			a = &Affiliation{TenantID: r.TenantID, TenantName: r.TenantName}
			byTenant[r.TenantID] = a
			order = append(order, r.TenantID)
		}
		if r.DepartmentName != "" {
			a.Departments = append(a.Departments, r.DepartmentName)
		}
	}
	out := make([]Affiliation, 0, len(order))
	for _, id := range order {
		out = append(out, *byTenant[id])
	}
	return out
}
