package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/directory"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+"|"+subject)
	return nil
}

func newTestService(now time.Time) (*Service, *MemoryRepo, *fakeMailer) {
	repo := NewMemoryRepo()
	users := directory.NewMemoryRepo(
		directory.User{ID: "u1", WorkspaceID: "w1", Role: "manager", Email: "u1@example.com", IsActive: true},
		directory.User{ID: "u2", WorkspaceID: "w2", Role: "manager", IsActive: true},
	)
	mailer := &fakeMailer{}
	svc := NewService(repo, directory.NewService(users), mailer)
	svc.clock = func() time.Time { return now }
	return svc, repo, mailer
}

func TestNotify_RespectsInAppSettings(t *testing.T) {
	// 06:30 UTC is 12:00 in Asia/Kolkata, outside default quiet hours.
	svc, _, mailer := newTestService(time.Date(2024, 1, 1, 6, 30, 0, 0, time.UTC))
	ctx := context.Background()

	n, err := svc.Notify(ctx, NotifyRequest{WorkspaceID: "w1", UserID: "u1", Type: TypeDealUpdate, Title: "Deal", Message: "won"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n.ID == "" {
		t.Fatalf("deal_update is in default in-app types")
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("deal_update is in default email types, sent=%v", mailer.sent)
	}

	n, err = svc.Notify(ctx, NotifyRequest{WorkspaceID: "w1", UserID: "u1", Type: TypeOrderStatus, Title: "Order", Message: "shipped"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if n.ID != "" {
		t.Fatalf("order_status is not enabled in-app by default")
	}

	n, _ = svc.Notify(ctx, NotifyRequest{WorkspaceID: "w1", UserID: "u1", Type: TypeEscalation, Priority: PriorityUrgent, Title: "Esc", Message: "x"})
	if n.ID == "" {
		t.Fatalf("urgent notifications are always stored")
	}
	if c, _ := svc.UnreadCount(ctx, "w1", "u1"); c != 2 {
		t.Fatalf("expected 2 unread, got %d", c)
	}
}

func TestNotify_QuietHoursSuppressEmail(t *testing.T) {
	// 17:00 UTC is 22:30 in Asia/Kolkata.
	svc, _, mailer := newTestService(time.Date(2024, 1, 1, 17, 0, 0, 0, time.UTC))
	ctx := context.Background()
	on := true
	if _, err := svc.UpdateSettings(ctx, "w1", "u1", SettingsPatch{QuietHoursEnabled: &on}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if _, err := svc.Notify(ctx, NotifyRequest{WorkspaceID: "w1", UserID: "u1", Type: TypeDealUpdate, Title: "Deal", Message: "won"}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no email during quiet hours")
	}
}

func TestMarkReadAndDelete(t *testing.T) {
	svc, _, _ := newTestService(time.Unix(1700000000, 0).UTC())
	ctx := context.Background()

	a, err := svc.Create(ctx, NotifyRequest{WorkspaceID: "w1", UserID: "u1", Type: TypeTaskReminder, Title: "A", Message: "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, _ := svc.Create(ctx, NotifyRequest{WorkspaceID: "w1", UserID: "u1", Type: TypeTaskReminder, Title: "B", Message: "b", IsPersistent: true})

	got, err := svc.MarkRead(ctx, "w1", "u1", a.ID)
	if err != nil || got.Status != StatusRead || got.ReadAt == nil {
		t.Fatalf("mark read: %+v %v", got, err)
	}
	if _, err := svc.MarkRead(ctx, "w1", "other", a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
	if n, _ := svc.MarkAllRead(ctx, "w1", "u1"); n != 1 {
		t.Fatalf("expected 1 marked, got %d", n)
	}

	if err := svc.Delete(ctx, "w1", "u1", b.ID); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("persistent delete should be rejected, got %v", err)
	}
	if err := svc.Delete(ctx, "w1", "u1", a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestCreate_RejectsForeignRecipient(t *testing.T) {
	svc, _, _ := newTestService(time.Unix(1700000000, 0).UTC())
	_, err := svc.Create(context.Background(), NotifyRequest{WorkspaceID: "w1", UserID: "u2", Type: TypeTaskReminder, Title: "A", Message: "a"})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestSettings_Defaults(t *testing.T) {
	svc, _, _ := newTestService(time.Unix(1700000000, 0).UTC())
	s, err := svc.MySettings(context.Background(), "w1", "u1")
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if s.Timezone != "Asia/Kolkata" || s.QuietHoursStart != "22:00" || s.QuietHoursEnabled || s.MarketingUpdates {
		t.Fatalf("unexpected defaults: %+v", s)
	}
	if len(s.InAppTypes) != 3 {
		t.Fatalf("expected 3 in-app types, got %v", s.InAppTypes)
	}
}

func TestInQuietHours_WrapsMidnight(t *testing.T) {
	s := Settings{QuietHoursEnabled: true, QuietHoursStart: "22:00", QuietHoursEnd: "08:00", Timezone: "UTC"}
	for hour, want := range map[int]bool{23: true, 2: true, 8: false, 12: false, 21: false} {
		if got := s.InQuietHours(time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC)); got != want {
			t.Fatalf("hour %d: got %v want %v", hour, got, want)
		}
	}
}
