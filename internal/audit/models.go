package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and ip capture are best-effort; do not block critical flows on audit failures.
//
// Storage recommendation (Postgres):
// - Table audit_logs with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.
type Event struct {
	ID string `json:"id" db:"id"`

	// Action indicates the business category of the audit record.
	Action Action `json:"action" db:"action"`

	// ActorUserID is the authenticated user causing the event (if applicable).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorEmail  string `json:"actor_email,omitempty" db:"actor_email"`

	// Target resource (optional, depending on the action).
	ResourceType string `json:"resource_type,omitempty" db:"resource_type"`
	ResourceID   string `json:"resource_id,omitempty" db:"resource_id"`

	// IPAddress should capture the original client IP when available.
	// Prefer X-Forwarded-For processing at the edge; store the resolved client IP here.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent string `json:"user_agent,omitempty" db:"user_agent"`

	Level   Level `json:"level" db:"level"`
	Success bool  `json:"success" db:"success"`

	// Details is optional JSON for full context (old/new data, failure reasons).
	Details string `json:"details,omitempty" db:"details"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Action string

const (
	// Authentication
	ActionLogin          Action = "auth.login"
	ActionLogout         Action = "auth.logout"
	ActionLoginFailed    Action = "auth.login_failed"
	ActionTokenRefreshed Action = "auth.token_refreshed"

	// Users
	ActionUserCreate     Action = "user.create"
	ActionUserUpdate     Action = "user.update"
	ActionUserRoleChange Action = "user.role_change"

	// Nodes
	ActionNodeCreate Action = "node.create"
	ActionNodeUpdate Action = "node.update"
	ActionNodeDelete Action = "node.delete"

	// Blocks
	ActionBlockCreate  Action = "block.create"
	ActionBlockUpdate  Action = "block.update"
	ActionBlockDelete  Action = "block.delete"
	ActionBlockReorder Action = "block.reorder"

	// Themes
	ActionThemeCreate Action = "theme.create"
	ActionThemeUpdate Action = "theme.update"
	ActionThemeDelete Action = "theme.delete"

	// Security
	ActionRateLimitExceeded  Action = "security.rate_limit_exceeded"
	ActionUnauthorizedAccess Action = "security.unauthorized_access"

	// Generic
	ActionRead   Action = "read"
	ActionSearch Action = "search"
)

type Level string

const (
	LevelInfo     Level = "info"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)
