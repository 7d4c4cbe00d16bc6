package audit

import (
	"context"
	"strings"
	"testing"
)

func TestService_AppendRequiresAction(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.LogResourceAction(context.Background(), ActionNodeCreate, "u1", "node", "n1",
		RequestMeta{IPAddress: "1.2.3.4", UserAgent: "test"}, nil, map[string]any{"title": "hello"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.Action != ActionNodeCreate {
		t.Fatalf("expected node.create, got %s", e.Action)
	}
	if e.IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if e.ID == "" || e.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled")
	}
	if !strings.Contains(e.Details, "hello") {
		t.Fatalf("expected new_data in details, got %q", e.Details)
	}
}

func TestService_LogAuthAttemptFailureIsWarning(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogAuthAttempt(context.Background(), ActionLoginFailed, "", "a@b.c", RequestMeta{}, false, "bad password"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	evs := repo.Events()
	if evs[0].Level != LevelWarning || evs[0].Success {
		t.Fatalf("expected warning failure event, got %+v", evs[0])
	}
	if !strings.Contains(evs[0].Details, "bad password") {
		t.Fatalf("expected failure reason recorded")
	}
}

func TestService_NilServiceIsNoop(t *testing.T) {
	var svc *Service
	if err := svc.Append(context.Background(), Event{Action: ActionRead}); err != nil {
		t.Fatalf("nil service should be a no-op, got %v", err)
	}
}
