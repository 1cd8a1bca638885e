package support

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/audit"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/directory"
)

var (
	platformA = auth.Caller{UserID: "a1", WorkspaceID: "platform", Role: "platform_admin"}
	platformB = auth.Caller{UserID: "a2", WorkspaceID: "platform", Role: "platform_admin"}
	bizAdmin  = auth.Caller{UserID: "b1", WorkspaceID: "w1", Role: "business_admin"}
	bizAdmin2 = auth.Caller{UserID: "b2", WorkspaceID: "w1", Role: "business_admin"}
	manager   = auth.Caller{UserID: "m1", WorkspaceID: "w1", Role: "manager"}
	staff     = auth.Caller{UserID: "s1", WorkspaceID: "w1", Role: "staff"}
	otherBiz  = auth.Caller{UserID: "o1", WorkspaceID: "w2", Role: "business_admin"}
)

type recordingMailer struct {
	mu sync.Mutex
	to []string
}

func (m *recordingMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.to = append(m.to, to)
	return nil
}

type fixture struct {
	svc    *Service
	repo   *MemoryRepo
	audit  *audit.MemoryRepo
	mailer *recordingMailer
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	users := directory.NewMemoryRepo(
		directory.User{ID: "a1", WorkspaceID: "platform", Role: "platform_admin", Name: "Alice", Email: "alice@example.com", IsActive: true},
		directory.User{ID: "a2", WorkspaceID: "platform", Role: "platform_admin", Name: "Arun", IsActive: true},
		directory.User{ID: "b1", WorkspaceID: "w1", Role: "business_admin", Name: "Bina", Email: "bina@example.com", IsActive: true},
		directory.User{ID: "b2", WorkspaceID: "w1", Role: "business_admin", Name: "Bala", IsActive: true},
		directory.User{ID: "m1", WorkspaceID: "w1", Role: "manager", Name: "Mona", IsActive: true},
	)
	f := &fixture{
		repo:   NewMemoryRepo(),
		audit:  audit.NewMemoryRepo(),
		mailer: &recordingMailer{},
		now:    time.Unix(1700000000, 0).UTC(),
	}
	f.svc = NewService(f.repo, directory.NewService(users), f.mailer, audit.NewService(f.audit))
	f.svc.clock = func() time.Time { return f.now }
	return f
}

func (f *fixture) ctx(c auth.Caller) context.Context {
	return auth.WithCaller(context.Background(), c)
}

func (f *fixture) create(t *testing.T, c auth.Caller, req CreateTicketRequest) Ticket {
	t.Helper()
	tk, err := f.svc.Create(f.ctx(c), c, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return tk
}

func notificationsOf(repo *MemoryRepo, typ NotificationType) []Notification {
	var out []Notification
	for _, n := range repo.Notifications() {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

func TestCreate_GeneratesIDsNotifiesAndAutoAssigns(t *testing.T) {
	f := newFixture(t)

	first := f.create(t, bizAdmin, CreateTicketRequest{Title: "Printer", Summary: "broken", Priority: PriorityHigh})
	second := f.create(t, manager, CreateTicketRequest{Title: "Billing", Summary: "double charge", RequiresCallback: true, CallbackPhone: "9876543210"})

	if first.TicketID != "ST-20231114-0001" || second.TicketID != "ST-20231114-0002" {
		t.Fatalf("unexpected ticket ids %q %q", first.TicketID, second.TicketID)
	}
	if first.Category != CategoryGeneral || second.Priority != PriorityMedium {
		t.Fatalf("expected defaults applied")
	}
	// Fewest open tickets wins, ties broken by id.
	if first.AssignedTo != "a1" || second.AssignedTo != "a2" {
		t.Fatalf("unexpected auto-assignment %q %q", first.AssignedTo, second.AssignedTo)
	}
	if got := len(notificationsOf(f.repo, NotifyTicketCreated)); got != 4 {
		t.Fatalf("expected 4 ticket_created notifications, got %d", got)
	}
	if got := len(notificationsOf(f.repo, NotifyCallbackRequested)); got != 2 {
		t.Fatalf("expected 2 callback notifications, got %d", got)
	}
	// Only a1 has an email address among platform admins.
	if len(f.mailer.to) != 3 || f.mailer.to[0] != "alice@example.com" {
		t.Fatalf("unexpected emails %v", f.mailer.to)
	}

	msgs, _ := f.svc.Messages(f.ctx(bizAdmin), bizAdmin, first.ID)
	if len(msgs) != 2 || msgs[0].Content != "Support ticket created: Printer" || !msgs[0].IsSystemMessage {
		t.Fatalf("unexpected opening messages %+v", msgs)
	}
}

func TestCreate_RequiresCallbackPhone(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(f.ctx(bizAdmin), bizAdmin, CreateTicketRequest{Title: "x", Summary: "y", RequiresCallback: true})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestCreate_NoAutoAssignWhenDisabled(t *testing.T) {
	f := newFixture(t)
	off := false
	if _, err := f.svc.UpdateSettings(f.ctx(bizAdmin), bizAdmin, SettingsPatch{AutoAssignTickets: &off}); err != nil {
		t.Fatalf("settings: %v", err)
	}
	tk := f.create(t, bizAdmin, CreateTicketRequest{Title: "x", Summary: "y"})
	if tk.AssignedTo != "" {
		t.Fatalf("expected unassigned, got %q", tk.AssignedTo)
	}
	if len(f.audit.Events()) != 1 {
		t.Fatalf("expected settings change audited")
	}
}

func TestVisibility(t *testing.T) {
	f := newFixture(t)
	tk := f.create(t, bizAdmin, CreateTicketRequest{Title: "x", Summary: "y"})

	for _, c := range []auth.Caller{platformA, bizAdmin, manager} {
		if _, err := f.svc.Get(f.ctx(c), c, tk.ID); err != nil {
			t.Fatalf("%s should see ticket: %v", c.Role, err)
		}
	}
	for _, c := range []auth.Caller{staff, otherBiz} {
		if _, err := f.svc.Get(f.ctx(c), c, tk.ID); !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("%s/%s should not see ticket, got %v", c.Role, c.WorkspaceID, err)
		}
	}
	if list, _ := f.svc.List(f.ctx(staff), staff, TicketFilter{}); len(list) != 0 {
		t.Fatalf("staff sees no tickets")
	}
	if list, _ := f.svc.List(f.ctx(otherBiz), otherBiz, TicketFilter{}); len(list) != 0 {
		t.Fatalf("other tenant sees no tickets")
	}
	if list, _ := f.svc.List(f.ctx(platformA), platformA, TicketFilter{Search: tk.TicketID}); len(list) != 1 {
		t.Fatalf("platform admin search by ticket id")
	}
}

func TestLifecycle_ResolveCloseReopen(t *testing.T) {
	f := newFixture(t)
	tk := f.create(t, bizAdmin, CreateTicketRequest{Title: "x", Summary: "y"})

	if _, err := f.svc.Resolve(f.ctx(bizAdmin), bizAdmin, tk.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("only platform admins resolve, got %v", err)
	}
	if _, err := f.svc.Reopen(f.ctx(bizAdmin), bizAdmin, tk.ID); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("reopen of open ticket must be 400, got %v", err)
	}

	f.now = f.now.Add(time.Hour)
	v, err := f.svc.Resolve(f.ctx(platformA), platformA, tk.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if v.Status != StatusResolved || v.ResolvedAt == nil || !v.ResolvedAt.Equal(f.now) {
		t.Fatalf("unexpected resolved ticket %+v", v.Ticket)
	}
	if n := notificationsOf(f.repo, NotifyTicketResolved); len(n) != 1 || n[0].RecipientID != "b1" {
		t.Fatalf("resolved notifies the creator, got %+v", n)
	}

	if _, err := f.svc.Reopen(f.ctx(bizAdmin2), bizAdmin2, tk.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("only the creating business admin may reopen, got %v", err)
	}
	if _, err := f.svc.Reopen(f.ctx(bizAdmin), bizAdmin, tk.ID); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if n := notificationsOf(f.repo, NotifyTicketReopened); len(n) != 2 {
		t.Fatalf("reopen notifies all platform admins, got %d", len(n))
	}

	if _, err := f.svc.Close(f.ctx(bizAdmin2), bizAdmin2, tk.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("business admin cannot close others' tickets, got %v", err)
	}
	f.now = f.now.Add(time.Hour)
	v, err = f.svc.Close(f.ctx(manager), manager, tk.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if v.ClosedAt == nil || v.IsOpen {
		t.Fatalf("expected closed ticket")
	}
	closed := notificationsOf(f.repo, NotifyTicketClosed)
	if len(closed) != 2 || closed[0].RecipientID != "b1" || closed[1].RecipientID != tk.AssignedTo {
		t.Fatalf("close notifies creator and assignee, got %+v", closed)
	}
}

func TestUpdate_StatusChangeAddsSystemMessage(t *testing.T) {
	f := newFixture(t)
	tk := f.create(t, bizAdmin, CreateTicketRequest{Title: "x", Summary: "y"})

	resolved := StatusResolved
	if _, err := f.svc.Update(f.ctx(manager), manager, tk.ID, UpdateTicketRequest{Status: &resolved}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("manager cannot resolve through PATCH, got %v", err)
	}
	if _, err := f.svc.Update(f.ctx(platformA), platformA, tk.ID, UpdateTicketRequest{Status: &resolved}); err != nil {
		t.Fatalf("update: %v", err)
	}
	msgs, _ := f.svc.Messages(f.ctx(platformA), platformA, tk.ID)
	last := msgs[len(msgs)-1]
	if last.Content != "Ticket status changed from open to resolved" || last.MessageType != MessageStatusUpdate {
		t.Fatalf("unexpected status message %+v", last)
	}
}

func TestAssignToMe(t *testing.T) {
	f := newFixture(t)
	tk := f.create(t, bizAdmin, CreateTicketRequest{Title: "x", Summary: "y"})
	if _, err := f.svc.AssignToMe(f.ctx(manager), manager, tk.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	v, err := f.svc.AssignToMe(f.ctx(platformB), platformB, tk.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if v.AssignedTo != "a2" || v.Status != StatusInProgress {
		t.Fatalf("unexpected ticket %+v", v.Ticket)
	}
	evs := f.audit.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeTicketAssigned || evs[0].EntityID != tk.TicketID {
		t.Fatalf("expected assignment audit event, got %+v", evs)
	}
}

func TestMessages_InternalAndNotifications(t *testing.T) {
	f := newFixture(t)
	tk := f.create(t, bizAdmin, CreateTicketRequest{Title: "x", Summary: "y"})

	if _, err := f.svc.AddMessage(f.ctx(bizAdmin), bizAdmin, tk.ID, AddMessageRequest{Content: "note", IsInternal: true}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("tenant users cannot post internal notes, got %v", err)
	}
	if _, err := f.svc.AddMessage(f.ctx(platformA), platformA, tk.ID, AddMessageRequest{Content: "internal", IsInternal: true}); err != nil {
		t.Fatalf("internal note: %v", err)
	}

	f.now = f.now.Add(90 * time.Minute)
	long := strings.Repeat("a", 150)
	if _, err := f.svc.AddMessage(f.ctx(platformA), platformA, tk.ID, AddMessageRequest{Content: long}); err != nil {
		t.Fatalf("reply: %v", err)
	}
	got := notificationsOf(f.repo, NotifyMessageReceived)
	if len(got) != 1 || got[0].RecipientID != "b1" {
		t.Fatalf("admin reply notifies the creator, got %+v", got)
	}
	if want := "New message from Alice: " + strings.Repeat("a", 100) + "..."; got[0].Message != want {
		t.Fatalf("unexpected preview %q", got[0].Message)
	}

	if _, err := f.svc.AddMessage(f.ctx(bizAdmin), bizAdmin, tk.ID, AddMessageRequest{Content: "thanks"}); err != nil {
		t.Fatalf("tenant reply: %v", err)
	}
	if got := notificationsOf(f.repo, NotifyMessageReceived); len(got) != 3 {
		t.Fatalf("tenant reply notifies both platform admins, got %d", len(got))
	}

	tenantView, _ := f.svc.Messages(f.ctx(bizAdmin), bizAdmin, tk.ID)
	adminView, _ := f.svc.Messages(f.ctx(platformA), platformA, tk.ID)
	if len(adminView)-len(tenantView) != 1 {
		t.Fatalf("internal notes hidden from tenants: tenant=%d admin=%d", len(tenantView), len(adminView))
	}

	v, _ := f.svc.Get(f.ctx(bizAdmin), bizAdmin, tk.ID)
	if v.ResponseTimeHours == nil || *v.ResponseTimeHours != 0 {
		// The internal note was the first admin message, at creation time.
		t.Fatalf("unexpected response time %v", v.ResponseTimeHours)
	}
}

func TestDashboardStatsAndSummary(t *testing.T) {
	f := newFixture(t)
	a := f.create(t, bizAdmin, CreateTicketRequest{Title: "a", Summary: "y", Priority: PriorityCritical})
	f.create(t, bizAdmin, CreateTicketRequest{Title: "b", Summary: "y"})
	f.create(t, otherBiz, CreateTicketRequest{Title: "c", Summary: "y"})

	f.now = f.now.Add(2 * time.Hour)
	if _, err := f.svc.AddMessage(f.ctx(platformA), platformA, a.ID, AddMessageRequest{Content: "on it"}); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if _, err := f.svc.Resolve(f.ctx(platformA), platformA, a.ID); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	st, err := f.svc.DashboardStats(f.ctx(bizAdmin), bizAdmin)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalTickets != 2 || st.OpenTickets != 1 || st.ResolvedToday != 1 || st.AvgResponseHours != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if st.PriorityBreakdown["critical"] != 1 || st.PriorityBreakdown["medium"] != 1 {
		t.Fatalf("unexpected breakdown %+v", st.PriorityBreakdown)
	}
	all, _ := f.svc.DashboardStats(f.ctx(platformA), platformA)
	if all.TotalTickets != 3 {
		t.Fatalf("platform admin sees all tenants, got %d", all.TotalTickets)
	}
	if _, err := f.svc.DashboardStats(f.ctx(staff), staff); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("staff has no stats access, got %v", err)
	}

	sum, err := f.svc.Summary(f.ctx(bizAdmin), bizAdmin, a.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.CreatedBy != "Bina" || sum.AssignedTo != "Alice" || sum.ResponseTimeHours == nil || *sum.ResponseTimeHours != 2 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestSupportNotificationsReadState(t *testing.T) {
	f := newFixture(t)
	f.create(t, bizAdmin, CreateTicketRequest{Title: "x", Summary: "y"})
	f.create(t, bizAdmin, CreateTicketRequest{Title: "z", Summary: "y"})

	ns, _ := f.svc.ListNotifications(f.ctx(platformA), platformA, 50, 0)
	if len(ns) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(ns))
	}
	if err := f.svc.MarkNotificationRead(f.ctx(platformB), platformB, ns[0].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("cannot mark someone else's notification, got %v", err)
	}
	if err := f.svc.MarkNotificationRead(f.ctx(platformA), platformA, ns[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n, _ := f.svc.MarkAllNotificationsRead(f.ctx(platformA), platformA); n != 1 {
		t.Fatalf("expected 1 remaining unread, got %d", n)
	}
}
