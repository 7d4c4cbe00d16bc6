package users

import "time"

// Profile is a row in user_profiles. The identity provider owns the
// credential; this is everything the application layers on top of it.
type Profile struct {
	UserID          string    `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
	Name            string    `json:"name,omitempty"`
	Role            string    `json:"role"`
	AvatarURL       string    `json:"avatar_url,omitempty"`
	SlackMemberID   string    `json:"slack_member_id,omitempty"`
	ExtensionNumber string    `json:"extension_number,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AffiliationRow is one user_affiliations row: a user belongs to a tenant,
// optionally inside a department.
type AffiliationRow struct {
	UserID         string
	TenantID       string
	TenantName     string
	DepartmentName string
}

// Affiliation is the tenant-grouped view returned to clients.
type Affiliation struct {
	TenantID    string   `json:"tenant_id"`
	TenantName  string   `json:"tenant_name"`
	Departments []string `json:"departments"`
}

// ProfileUpdate carries the mutable profile fields. Nil means "leave as is".
type ProfileUpdate struct {
	DisplayName     *string `json:"display_name"`
	Name            *string `json:"name"`
	SlackMemberID   *string `json:"slack_member_id"`
	ExtensionNumber *string `json:"extension_number"`
	AvatarURL       *string `json:"avatar_url"`
}

func (u ProfileUpdate) empty() bool {
	return u.DisplayName == nil && u.Name == nil && u.SlackMemberID == nil &&
		u.ExtensionNumber == nil && u.AvatarURL == nil
}
