package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/directory"
	"bizops-platform/internal/notifications"
	"bizops-platform/internal/rbac"
)

var (
	fixedNow = time.Unix(1700000000, 0).UTC()
	staff    = auth.Caller{UserID: "u1", WorkspaceID: "w1", StoreID: "s1", Role: rbac.RoleStaff}
	manager  = auth.Caller{UserID: "m1", WorkspaceID: "w1", Role: rbac.RoleManager}
	other    = auth.Caller{UserID: "x1", WorkspaceID: "w2", Role: rbac.RoleBusinessAdmin}
	platform = auth.Caller{UserID: "p1", WorkspaceID: "w0", Role: rbac.RolePlatformAdmin}
)

type recordingNotifier struct {
	reqs []notifications.NotifyRequest
}

func (n *recordingNotifier) Notify(ctx context.Context, req notifications.NotifyRequest) (notifications.Notification, error) {
	n.reqs = append(n.reqs, req)
	return notifications.Notification{ID: "n"}, nil
}

func newService(t *testing.T) (*Service, *recordingNotifier) {
	t.Helper()
	users := directory.NewService(directory.NewMemoryRepo(
		directory.User{ID: "u1", WorkspaceID: "w1", Role: rbac.RoleStaff, IsActive: true},
		directory.User{ID: "m1", WorkspaceID: "w1", Role: rbac.RoleManager, IsActive: true},
		directory.User{ID: "m2", WorkspaceID: "w1", Role: rbac.RoleManager, IsActive: true},
		directory.User{ID: "m3", WorkspaceID: "w2", Role: rbac.RoleManager, IsActive: true},
	))
	n := &recordingNotifier{}
	svc := NewService(NewMemoryRepo(), users, n)
	svc.clock = func() time.Time { return fixedNow }
	return svc, n
}

func intp(v int) *int { return &v }

func TestCreate_AutoSentimentAndAverage(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := []struct {
		rating int
		want   Sentiment
		score  float64
	}{
		{5, SentimentPositive, 0.8},
		{4, SentimentPositive, 0.8},
		{3, SentimentNeutral, 0},
		{2, SentimentNegative, -0.6},
		{1, SentimentNegative, -0.6},
	}
	for _, tc := range cases {
		v, err := svc.Create(ctx, staff, CreateRequest{Title: "t", Content: "c", OverallRating: tc.rating})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if v.Sentiment != tc.want || v.SentimentScore == nil || *v.SentimentScore != tc.score {
			t.Fatalf("rating %d: got %s %v", tc.rating, v.Sentiment, v.SentimentScore)
		}
		if v.Status != StatusPending || v.Category != CategoryGeneral || v.StoreID != "s1" {
			t.Fatalf("unexpected defaults: %+v", v.Feedback)
		}
	}

	v, err := svc.Create(ctx, staff, CreateRequest{Title: "t", Content: "c", OverallRating: 5, ProductRating: intp(4), ValueRating: intp(2), Sentiment: SentimentVeryPositive})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.Sentiment != SentimentVeryPositive || v.SentimentScore != nil {
		t.Fatalf("explicit sentiment must be kept: %+v", v.Feedback)
	}
	if v.AverageRating != 3.67 || !v.IsPositive || v.IsNegative {
		t.Fatalf("unexpected derived values: %+v", v)
	}

	if _, err := svc.Create(ctx, staff, CreateRequest{Title: "t", Content: "c", OverallRating: 6}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid rating, got %v", err)
	}
}

func TestStatusTimestamps(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	v, _ := svc.Create(ctx, staff, CreateRequest{Title: "t", Content: "c", OverallRating: 3})

	got, err := svc.MarkReviewed(ctx, manager, v.ID)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if got.Status != StatusReviewed || got.ReviewedBy != "m1" || got.ReviewedAt == nil || !got.ReviewedAt.Equal(fixedNow) {
		t.Fatalf("unexpected review: %+v", got.Feedback)
	}

	svc.clock = func() time.Time { return fixedNow.Add(time.Hour) }
	actioned := StatusActioned
	got, err = svc.Update(ctx, manager, v.ID, UpdateRequest{Status: &actioned})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.ActionedAt == nil || !got.ActionedAt.Equal(fixedNow.Add(time.Hour)) || !got.ReviewedAt.Equal(fixedNow) {
		t.Fatalf("unexpected timestamps: %+v", got.Feedback)
	}

	if _, err := svc.Get(ctx, other, v.ID); !errors.Is(err, ErrFeedbackNotFound) {
		t.Fatalf("other tenant must not see feedback, got %v", err)
	}
	if _, err := svc.Get(ctx, platform, v.ID); err != nil {
		t.Fatalf("platform admin sees all: %v", err)
	}
	if err := svc.Delete(ctx, staff, v.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("staff cannot delete, got %v", err)
	}
}

func TestEscalate(t *testing.T) {
	svc, n := newService(t)
	ctx := context.Background()

	bad, _ := svc.Create(ctx, staff, CreateRequest{Title: "Broken", Content: "c", OverallRating: 2})
	e, err := svc.Escalate(ctx, staff, bad.ID)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if e.Title != "Escalated Feedback: Broken" || e.Category != EscalationCategoryComplaint || e.Priority != "high" {
		t.Fatalf("unexpected escalation: %+v", e)
	}
	if !e.DueDate.Equal(fixedNow.Add(24 * time.Hour)) {
		t.Fatalf("unexpected due date %v", e.DueDate)
	}
	got, _ := svc.Get(ctx, staff, bad.ID)
	if got.Status != StatusEscalated || got.EscalationID != e.ID {
		t.Fatalf("feedback not linked: %+v", got.Feedback)
	}
	if len(n.reqs) != 2 {
		t.Fatalf("expected both w1 managers notified, got %d", len(n.reqs))
	}
	for _, r := range n.reqs {
		if r.Type != notifications.TypeEscalation || r.WorkspaceID != "w1" {
			t.Fatalf("unexpected notification %+v", r)
		}
	}
	if _, err := svc.Escalate(ctx, staff, bad.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("double escalation must conflict, got %v", err)
	}

	ok, _ := svc.Create(ctx, staff, CreateRequest{Title: "Meh", Content: "c", OverallRating: 3})
	e2, err := svc.Escalate(ctx, staff, ok.ID)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if e2.Category != EscalationCategoryOther || e2.Priority != "medium" {
		t.Fatalf("unexpected escalation: %+v", e2)
	}

	e, err = svc.AssignEscalationToMe(ctx, manager, e.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if e.Status != EscalationInProgress || e.AssignedTo != "m1" || e.AssignedAt == nil {
		t.Fatalf("unexpected assignment: %+v", e)
	}
	resolved := EscalationResolved
	e, err = svc.UpdateEscalation(ctx, manager, e.ID, EscalationUpdate{Status: &resolved})
	if err != nil || e.ResolvedAt == nil || e.IsOverdue(fixedNow.Add(48*time.Hour)) {
		t.Fatalf("unexpected resolve: %+v %v", e, err)
	}
	if _, err := svc.AddNote(ctx, manager, e.ID, NoteRequest{Content: "called customer"}); err != nil {
		t.Fatalf("note: %v", err)
	}
	notes, _ := svc.Notes(ctx, manager, e.ID)
	if len(notes) != 1 || notes[0].AuthorID != "m1" {
		t.Fatalf("unexpected notes %+v", notes)
	}
}

func TestStats(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for i, r := range []int{5, 4, 3, 2, 1, 1} {
		cat := CategoryDelivery
		if i == 5 {
			cat = CategoryPricing
		}
		svc.clock = func() time.Time { return fixedNow.Add(time.Duration(i) * time.Minute) }
		if _, err := svc.Create(ctx, staff, CreateRequest{Title: "t", Content: "c", OverallRating: r, Category: cat}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := svc.Create(ctx, other, CreateRequest{Title: "t", Content: "c", OverallRating: 5}); err != nil {
		t.Fatalf("create: %v", err)
	}

	st, err := svc.Stats(ctx, manager)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total != 6 || st.Positive != 2 || st.Negative != 3 || st.Neutral != 1 {
		t.Fatalf("unexpected counts %+v", st)
	}
	if st.AvgRating != 2.67 {
		t.Fatalf("unexpected average %v", st.AvgRating)
	}
	if len(st.Recent) != 5 || st.Recent[0].OverallRating != 1 {
		t.Fatalf("unexpected recent %+v", st.Recent)
	}
	if len(st.TopIssues) != 2 || st.TopIssues[0].Category != CategoryDelivery || st.TopIssues[0].Count != 2 {
		t.Fatalf("unexpected top issues %+v", st.TopIssues)
	}
	if st.BySentiment[string(SentimentNegative)] != 3 {
		t.Fatalf("unexpected sentiment breakdown %+v", st.BySentiment)
	}

	all, _ := svc.Stats(ctx, platform)
	if all.Total != 7 {
		t.Fatalf("platform admin stats span tenants, got %d", all.Total)
	}
}

func TestPublicListAndSubmit(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.SubmitPublic(ctx, CreateRequest{Title: "t", Content: "c", OverallRating: 5}); !errors.Is(err, ErrTenantRequired) {
		t.Fatalf("expected tenant required, got %v", err)
	}
	if _, err := svc.SubmitPublic(ctx, CreateRequest{TenantID: "nope", Title: "t", Content: "c", OverallRating: 5}); !errors.Is(err, ErrUnknownTenant) {
		t.Fatalf("expected unknown tenant, got %v", err)
	}
	v, err := svc.SubmitPublic(ctx, CreateRequest{TenantID: "w1", Title: "t", Content: "c", OverallRating: 5, IsPublic: true, CustomerEmail: "a@b.co"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	items, _ := svc.PublicList(ctx, "", "", "", 50, 0)
	if len(items) != 0 {
		t.Fatalf("pending feedback must not be public, got %d", len(items))
	}
	if _, err := svc.MarkReviewed(ctx, manager, v.ID); err != nil {
		t.Fatalf("review: %v", err)
	}
	items, _ = svc.PublicList(ctx, "", "", "", 50, 0)
	if len(items) != 1 || items[0].CustomerEmail != "" {
		t.Fatalf("unexpected public list %+v", items)
	}
}
