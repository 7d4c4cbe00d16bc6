package users

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists profiles in user_profiles and reads the
// user_affiliations view.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const profileColumns = `
user_id, email, COALESCE(display_name, ''), COALESCE(name, ''), COALESCE(role, ''),
COALESCE(avatar_url, ''), COALESCE(slack_member_id, ''), COALESCE(extension_number, ''),
created_at, updated_at
`

func scanProfile(row interface{ Scan(...any) error }) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.UserID, &p.Email, &p.DisplayName, &p.Name, &p.Role,
		&p.AvatarURL, &p.SlackMemberID, &p.ExtensionNumber,
		&p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (r *PostgresRepo) Get(ctx context.Context, userID string) (Profile, error) {
	p, err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles WHERE user_id = $1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (r *PostgresRepo) Insert(ctx context.Context, p Profile) error {
	const q = `
INSERT INTO user_profiles (
  user_id, email, display_name, name, role,
  avatar_url, slack_member_id, extension_number, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`
	_, err := r.db.ExecContext(ctx, q,
		p.UserID, p.Email, p.DisplayName, nullIfBlank(p.Name), p.Role,
		nullIfBlank(p.AvatarURL), nullIfBlank(p.SlackMemberID), nullIfBlank(p.ExtensionNumber),
		p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Save(ctx context.Context, p Profile) error {
	const q = `
UPDATE user_profiles SET
  email = $2, display_name = $3, name = $4, role = $5,
  avatar_url = $6, slack_member_id = $7, extension_number = $8, updated_at = $9
WHERE user_id = $1
`
	res, err := r.db.ExecContext(ctx, q,
		p.UserID, p.Email, p.DisplayName, nullIfBlank(p.Name), p.Role,
		nullIfBlank(p.AvatarURL), nullIfBlank(p.SlackMemberID), nullIfBlank(p.ExtensionNumber),
		p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM user_profiles ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Affiliations(ctx context.Context, userID string) ([]AffiliationRow, error) {
	const q = `
SELECT user_id, tenant_id, tenant_name, COALESCE(department_name, '')
FROM user_affiliations
WHERE user_id = $1
ORDER BY tenant_name, department_name
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AffiliationRow
	for rows.Next() {
		var a AffiliationRow
		if err := rows.Scan(&a.UserID, &a.TenantID, &a.TenantName, &a.DepartmentName); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullIfBlank(s string) any {
	if s == "" {
		return nil
	}
	return s
}
