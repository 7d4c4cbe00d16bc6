package audit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users by default.
// - Callers should treat audit logging as best-effort; an audit failure must
//   never fail the operation being audited.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil {
		return nil
	}
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Action == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.Level == "" {
		e.Level = LevelInfo
	}
	return s.repo.Append(ctx, e)
}

// RequestMeta carries the client-facing request context worth auditing.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// LogAuthAttempt records a sign-in/sign-out/refresh outcome.
func (s *Service) LogAuthAttempt(ctx context.Context, action Action, userID, email string, meta RequestMeta, success bool, failureReason string) error {
	level := LevelInfo
	details := ""
	if !success {
		level = LevelWarning
		details = marshalDetails(map[string]any{"failure_reason": failureReason, "attempted_email": email})
	}
	return s.Append(ctx, Event{
		Action:       action,
		ActorUserID:  userID,
		ActorEmail:   email,
		ResourceType: "authentication",
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Level:        level,
		Success:      success,
		Details:      details,
	})
}

// LogResourceAction records a mutation of a domain resource, capturing the
// before/after data when available.
func (s *Service) LogResourceAction(ctx context.Context, action Action, actorUserID, resourceType, resourceID string, meta RequestMeta, oldData, newData map[string]any) error {
	details := ""
	if oldData != nil || newData != nil {
		details = marshalDetails(map[string]any{"old_data": oldData, "new_data": newData})
	}
	return s.Append(ctx, Event{
		Action:       action,
		ActorUserID:  actorUserID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Success:      true,
		Details:      details,
	})
}

// LogSecurityEvent records a security-relevant rejection (rate limit, forbidden access).
func (s *Service) LogSecurityEvent(ctx context.Context, action Action, actorUserID string, meta RequestMeta, details map[string]any) error {
	return s.Append(ctx, Event{
		Action:      action,
		ActorUserID: actorUserID,
		IPAddress:   meta.IPAddress,
		UserAgent:   meta.UserAgent,
		Level:       LevelWarning,
		Success:     false,
		Details:     marshalDetails(details),
	})
}

func marshalDetails(v map[string]any) string {
	if len(v) == 0 {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
