package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends audit events to the audit_logs table.
//
// NOTE: This repository assumes the following table exists:
// - audit_logs (INSERT-only; see models.go storage recommendation)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_logs (
  id, action, actor_user_id, actor_email, resource_type, resource_id,
  ip_address, user_agent, level, success, details, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		string(e.Action),
		nullIfEmpty(e.ActorUserID),
		nullIfEmpty(e.ActorEmail),
		nullIfEmpty(e.ResourceType),
		nullIfEmpty(e.ResourceID),
		nullIfEmpty(e.IPAddress),
		nullIfEmpty(e.UserAgent),
		string(e.Level),
		e.Success,
		nullIfEmpty(e.Details),
		e.CreatedAt,
	)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
