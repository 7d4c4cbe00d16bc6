package rbac

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepo persists grants in the user_system_permissions table.
//
// NOTE: This repository assumes the following table exists:
// - user_system_permissions (user_id PK, permission_level, granted_by, granted_at)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Get(ctx context.Context, userID string) (Grant, error) {
	const q = `
SELECT user_id, permission_level, COALESCE(granted_by, ''), granted_at
FROM user_system_permissions
WHERE user_id = $1
`
	var g Grant
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&g.UserID, &g.PermissionLevel, &g.GrantedBy, &g.GrantedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Grant{}, ErrGrantNotFound
	}
	if err != nil {
		return Grant{}, err
	}
	return g, nil
}

func (r *PostgresRepo) Upsert(ctx context.Context, g Grant) error {
	const q = `
INSERT INTO user_system_permissions (user_id, permission_level, granted_by, granted_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE SET
  permission_level = EXCLUDED.permission_level,
  granted_by       = EXCLUDED.granted_by,
  granted_at       = EXCLUDED.granted_at
`
	_, err := r.db.ExecContext(ctx, q, g.UserID, g.PermissionLevel, nullIfBlank(g.GrantedBy), g.GrantedAt)
	return err
}

func (r *PostgresRepo) Delete(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_system_permissions WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrGrantNotFound
	}
	return nil
}

func (r *PostgresRepo) AdminUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id FROM user_system_permissions WHERE permission_level = $1 ORDER BY granted_at`,
		SystemAdminLevel,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullIfBlank(s string) any {
	if s == "" {
		return nil
	}
	return s
}
