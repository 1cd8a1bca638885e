package audit

import (
	"context"
	"errors"
	"testing"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"
)

func TestService_AppendRequiresWorkspaceAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{Type: EventTypeTicketAssigned}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{WorkspaceID: "w"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_RecordCapturesCallerAndIP(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ctx := auth.WithCaller(context.Background(), auth.Caller{UserID: "u", WorkspaceID: "w", Role: "manager"})
	ctx = httpapi.WithClientIP(ctx, "1.2.3.4")
	svc.Record(ctx, EventTypeTicketResolved, "support_ticket", "ST-20240101-0001", "resolved", map[string]string{"by": "u"})

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	e := evs[0]
	if e.WorkspaceID != "w" || e.ActorUserID != "u" || e.ActorRole != "manager" {
		t.Fatalf("unexpected actor: %+v", e)
	}
	if e.IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured, got %q", e.IPAddress)
	}
	if e.Metadata != `{"by":"u"}` {
		t.Fatalf("unexpected metadata %q", e.Metadata)
	}
}

func TestService_RecordIsBestEffort(t *testing.T) {
	repo := NewMemoryRepo()
	repo.FailWith(errors.New("db down"))
	svc := NewService(repo)

	ctx := auth.WithCaller(context.Background(), auth.Caller{UserID: "u", WorkspaceID: "w", Role: "manager"})
	svc.Record(ctx, EventTypeSettingsChanged, "settings", "w", "updated", nil)

	var nilSvc *Service
	nilSvc.Record(ctx, EventTypeSettingsChanged, "settings", "w", "updated", nil)
}
