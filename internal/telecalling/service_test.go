package telecalling

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/directory"
	"bizops-platform/internal/rbac"
)

var (
	fixedNow    = time.Unix(1700000000, 0).UTC()
	sales       = auth.Caller{UserID: "s1", WorkspaceID: "w1", StoreID: "st1", Role: rbac.RoleInhouseSales}
	otherSales  = auth.Caller{UserID: "s2", WorkspaceID: "w1", Role: rbac.RoleInhouseSales}
	manager     = auth.Caller{UserID: "m1", WorkspaceID: "w1", Role: rbac.RoleManager}
	caller1     = auth.Caller{UserID: "t1", WorkspaceID: "w1", Role: rbac.RoleTeleCalling}
	caller2     = auth.Caller{UserID: "t2", WorkspaceID: "w1", Role: rbac.RoleTeleCalling}
	staffCaller = auth.Caller{UserID: "u1", WorkspaceID: "w1", Role: rbac.RoleStaff}
)

func newService(t *testing.T) *Service {
	t.Helper()
	users := directory.NewService(directory.NewMemoryRepo(
		directory.User{ID: "t1", WorkspaceID: "w1", Role: rbac.RoleTeleCalling, Name: "Tara", IsActive: true},
		directory.User{ID: "t2", WorkspaceID: "w1", Role: rbac.RoleTeleCalling, Name: "Tom", IsActive: true},
		directory.User{ID: "t9", WorkspaceID: "w2", Role: rbac.RoleTeleCalling, IsActive: true},
		directory.User{ID: "s1", WorkspaceID: "w1", Role: rbac.RoleInhouseSales, IsActive: true},
		directory.User{ID: "m1", WorkspaceID: "w1", Role: rbac.RoleManager, Name: "Maya", IsActive: true},
	))
	svc := NewService(NewMemoryRepo(), users, nil)
	svc.clock = func() time.Time { return fixedNow }
	return svc
}

func mustVisit(t *testing.T, svc *Service, c auth.Caller, name, phone string) Visit {
	t.Helper()
	v, err := svc.CreateVisit(context.Background(), c, VisitRequest{
		CustomerName:  name,
		CustomerPhone: phone,
		Notes:         "asked about " + name,
		LeadQuality:   LeadHot,
	})
	if err != nil {
		t.Fatalf("create visit: %v", err)
	}
	return v
}

func mustAssign(t *testing.T, svc *Service, v Visit, telecaller string) Assignment {
	t.Helper()
	a, err := svc.CreateAssignment(context.Background(), manager, AssignmentRequest{VisitID: v.ID, TelecallerID: telecaller})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	return a
}

func mustLog(t *testing.T, svc *Service, c auth.Caller, a Assignment, st CallStatus, sent Sentiment) CallLog {
	t.Helper()
	l, err := svc.LogCall(context.Background(), c, CallLogRequest{
		AssignmentID:    a.ID,
		CallStatus:      st,
		Sentiment:       sent,
		DurationSeconds: 120,
		Feedback:        string(st) + " call",
	})
	if err != nil {
		t.Fatalf("log call: %v", err)
	}
	return l
}

func notices(t *testing.T, svc *Service, c auth.Caller) []Notification {
	t.Helper()
	ns, err := svc.ListNotifications(context.Background(), c, false, 0, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	return ns
}

func countType(ns []Notification, typ NotificationType) int {
	n := 0
	for _, x := range ns {
		if x.Type == typ {
			n++
		}
	}
	return n
}

func TestEngagementScoreAndLikelihood(t *testing.T) {
	cases := []struct {
		status     CallStatus
		sentiment  Sentiment
		score      int
		likelihood Likelihood
	}{
		{CallConnected, SentimentPositive, 100, LikelihoodVeryHigh},
		{CallConnected, SentimentNeutral, 90, LikelihoodHigh},
		{CallConnected, SentimentNegative, 60, LikelihoodLow},
		{CallBack, SentimentNegative, 50, LikelihoodMedium},
		{CallNoAnswer, SentimentNegative, 40, LikelihoodLow},
		{CallNotInterested, SentimentNegative, 30, LikelihoodVeryLow},
		{CallBusy, SentimentPositive, 70, LikelihoodLow},
		{CallWrongNumber, SentimentNeutral, 60, LikelihoodLow},
	}
	for _, tc := range cases {
		if got := EngagementScore(tc.status, tc.sentiment); got != tc.score {
			t.Fatalf("%s/%s: score %d, want %d", tc.status, tc.sentiment, got, tc.score)
		}
		if got := ConversionLikelihood(tc.status, tc.sentiment); got != tc.likelihood {
			t.Fatalf("%s/%s: likelihood %s, want %s", tc.status, tc.sentiment, got, tc.likelihood)
		}
	}
	if got := EngagementScore("", ""); got != 50 {
		t.Fatalf("unknown outcome keeps the base score, got %d", got)
	}
}

func TestCallStatus_AssignmentTransition(t *testing.T) {
	cases := map[CallStatus]AssignmentStatus{
		CallConnected:     AssignmentCompleted,
		CallNotInterested: AssignmentCompleted,
		CallNoAnswer:      AssignmentFollowUp,
		CallBusy:          AssignmentFollowUp,
		CallBack:          AssignmentFollowUp,
	}
	for st, want := range cases {
		got, ok := st.AssignmentStatus()
		if !ok || got != want {
			t.Fatalf("%s: got %q ok=%v, want %q", st, got, ok, want)
		}
	}
	if _, ok := CallWrongNumber.AssignmentStatus(); ok {
		t.Fatalf("wrong_number must leave the assignment alone")
	}
}

func TestCreateVisit_RolesAndDefaults(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	v := mustVisit(t, svc, sales, "Asha", "+91 98765 43210")
	if v.SalesRepID != "s1" || v.StoreID != "st1" || v.AssignedToTelecaller || !v.VisitTimestamp.Equal(fixedNow) {
		t.Fatalf("unexpected visit: %+v", v)
	}
	if v.Interests == nil {
		t.Fatalf("interests should default to an empty list")
	}
	if _, err := svc.CreateVisit(ctx, caller1, VisitRequest{CustomerName: "x", CustomerPhone: "1234567"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("telecallers do not record visits, got %v", err)
	}
	if _, err := svc.CreateVisit(ctx, sales, VisitRequest{CustomerName: "x", CustomerPhone: "1234567", LeadQuality: "lukewarm"}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected invalid lead quality, got %v", err)
	}
	if _, err := svc.UpdateVisit(ctx, otherSales, v.ID, VisitRequest{CustomerName: "y", CustomerPhone: "1234567"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("another rep cannot see the visit, got %v", err)
	}
}

func TestCreateAssignment_MarksVisitAndNotifies(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	v := mustVisit(t, svc, sales, "Asha", "9876543210")

	if _, err := svc.CreateAssignment(ctx, sales, AssignmentRequest{VisitID: v.ID, TelecallerID: "t1"}); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("sales cannot assign, got %v", err)
	}
	if _, err := svc.CreateAssignment(ctx, manager, AssignmentRequest{VisitID: v.ID, TelecallerID: "t9"}); !errors.Is(err, ErrNotTelecaller) {
		t.Fatalf("cross-tenant telecaller must be rejected, got %v", err)
	}
	if _, err := svc.CreateAssignment(ctx, manager, AssignmentRequest{VisitID: v.ID, TelecallerID: "s1"}); !errors.Is(err, ErrNotTelecaller) {
		t.Fatalf("non-telecaller must be rejected, got %v", err)
	}

	a := mustAssign(t, svc, v, "t1")
	if a.Status != AssignmentAssigned || a.Priority != PriorityMedium || a.AssignedBy != "m1" {
		t.Fatalf("unexpected assignment: %+v", a)
	}
	got, err := svc.GetVisit(ctx, manager, v.ID)
	if err != nil || !got.AssignedToTelecaller {
		t.Fatalf("visit should be flagged assigned: %+v %v", got, err)
	}
	ns := notices(t, svc, caller1)
	if len(ns) != 1 || ns[0].Type != NotifyAssignment || ns[0].Message != "You have been assigned to call Asha" || ns[0].AssignmentID != a.ID {
		t.Fatalf("unexpected notifications: %+v", ns)
	}
	if _, err := svc.CreateAssignment(ctx, manager, AssignmentRequest{VisitID: v.ID, TelecallerID: "t2"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second assignment must conflict, got %v", err)
	}
	if err := svc.DeleteVisit(ctx, sales, v.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("assigned visit cannot be deleted, got %v", err)
	}

	if err := svc.DeleteAssignment(ctx, manager, a.ID); err != nil {
		t.Fatalf("delete assignment: %v", err)
	}
	if got, _ := svc.GetVisit(ctx, manager, v.ID); got.AssignedToTelecaller {
		t.Fatalf("deleting the only assignment should release the visit")
	}
}

func TestBulkAssign_RoundRobinSkipsAssigned(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	var visits []Visit
	for i, name := range []string{"A", "B", "C", "D"} {
		visits = append(visits, mustVisit(t, svc, sales, name, "900000000"+strconv.Itoa(i)))
	}
	mustAssign(t, svc, visits[1], "t2")

	req := BulkAssignRequest{
		TelecallerIDs: []string{"t1", "t2"},
		VisitIDs:      []string{visits[0].ID, visits[1].ID, visits[2].ID, visits[3].ID},
		Priority:      PriorityHigh,
	}
	if _, err := svc.BulkAssign(ctx, caller1, req); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("telecaller cannot bulk assign, got %v", err)
	}
	owner := auth.Caller{UserID: "b1", WorkspaceID: "w1", Role: rbac.RoleBusinessAdmin}
	if _, err := svc.BulkAssign(ctx, owner, req); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("bulk assign is for managers only, got %v", err)
	}

	res, err := svc.BulkAssign(ctx, manager, req)
	if err != nil {
		t.Fatalf("bulk assign: %v", err)
	}
	if res.Message != "Successfully created 3 assignments" {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != visits[1].ID {
		t.Fatalf("expected visit B skipped, got %v", res.Skipped)
	}
	want := map[string]string{visits[0].ID: "t1", visits[2].ID: "t1", visits[3].ID: "t2"}
	for _, a := range res.Assignments {
		if want[a.VisitID] != a.TelecallerID || a.Priority != PriorityHigh {
			t.Fatalf("visit %s went to %s (priority %s), want %s", a.VisitID, a.TelecallerID, a.Priority, want[a.VisitID])
		}
	}
	if n := countType(notices(t, svc, caller1), NotifyAssignment); n != 2 {
		t.Fatalf("t1 should have 2 assignment notices, got %d", n)
	}
	if n := countType(notices(t, svc, caller2), NotifyAssignment); n != 2 {
		t.Fatalf("t2 should have 2 assignment notices, got %d", n)
	}

	again, err := svc.BulkAssign(ctx, manager, req)
	if err != nil || len(again.Assignments) != 0 || len(again.Skipped) != 4 {
		t.Fatalf("re-running should skip everything: %+v %v", again, err)
	}
	if _, err := svc.BulkAssign(ctx, manager, BulkAssignRequest{TelecallerIDs: []string{"t9"}, VisitIDs: []string{mustVisit(t, svc, sales, "E", "9000000002").ID}}); !errors.Is(err, ErrNotTelecaller) {
		t.Fatalf("foreign telecaller must fail the batch, got %v", err)
	}
}

func TestLogCall_UpdatesAssignmentProfileAndNotifies(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	v := mustVisit(t, svc, sales, "Asha", "9876543210")
	a := mustAssign(t, svc, v, "t1")

	if _, err := svc.LogCall(ctx, caller2, CallLogRequest{AssignmentID: a.ID, CallStatus: CallConnected}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("another telecaller's assignment must be hidden, got %v", err)
	}
	if _, err := svc.LogCall(ctx, caller1, CallLogRequest{AssignmentID: a.ID, CallStatus: "hung_up"}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("unknown call status must be rejected, got %v", err)
	}

	mustLog(t, svc, caller1, a, CallConnected, SentimentPositive)
	got, _ := svc.GetAssignment(ctx, manager, a.ID)
	if got.Status != AssignmentCompleted {
		t.Fatalf("connected call should complete the assignment, got %s", got.Status)
	}
	ns := notices(t, svc, manager)
	if countType(ns, NotifyFeedback) != 1 || countType(ns, NotifyHighPotential) != 1 {
		t.Fatalf("manager should get feedback and high potential notices: %+v", ns)
	}

	profiles, err := svc.ListProfiles(ctx, manager, ProfileListFilter{})
	if err != nil || len(profiles) != 1 {
		t.Fatalf("expected one profile: %v %v", profiles, err)
	}
	p := profiles[0]
	if p.EngagementScore != 100 || p.ConversionLikelihood != LikelihoodVeryHigh || p.OriginalVisitID != v.ID ||
		p.OriginalNotes != "asked about Asha" || p.LastContact == nil || p.TelecallerFeedback != "connected call" {
		t.Fatalf("unexpected profile: %+v", p)
	}

	// A second visit from the same phone reuses the profile.
	v2 := mustVisit(t, svc, sales, "Asha K", "9876543210")
	a2 := mustAssign(t, svc, v2, "t2")
	mustLog(t, svc, caller2, a2, CallNoAnswer, SentimentNeutral)
	got2, _ := svc.GetAssignment(ctx, manager, a2.ID)
	if got2.Status != AssignmentFollowUp {
		t.Fatalf("no answer should move to follow_up, got %s", got2.Status)
	}
	profiles, _ = svc.ListProfiles(ctx, manager, ProfileListFilter{})
	if len(profiles) != 1 || profiles[0].ID != p.ID || profiles[0].EngagementScore != 70 ||
		profiles[0].ConversionLikelihood != LikelihoodLow || profiles[0].OriginalVisitID != v.ID {
		t.Fatalf("profile should be updated in place: %+v", profiles)
	}
	if n := countType(notices(t, svc, manager), NotifyHighPotential); n != 1 {
		t.Fatalf("unanswered call must not raise high potential, got %d", n)
	}

	v3 := mustVisit(t, svc, sales, "Ravi", "9000000003")
	a3 := mustAssign(t, svc, v3, "t1")
	mustLog(t, svc, caller1, a3, CallWrongNumber, SentimentNegative)
	if got3, _ := svc.GetAssignment(ctx, manager, a3.ID); got3.Status != AssignmentAssigned {
		t.Fatalf("wrong number leaves the status alone, got %s", got3.Status)
	}
}

func TestRoleScoping(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	mine := mustVisit(t, svc, sales, "Mine", "9000000010")
	theirs := mustVisit(t, svc, otherSales, "Theirs", "9000000011")
	old, err := svc.CreateVisit(ctx, sales, VisitRequest{
		CustomerName: "Old", CustomerPhone: "9000000012", VisitTimestamp: ptr(fixedNow.Add(-48 * time.Hour)),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a := mustAssign(t, svc, theirs, "t1")

	vs, _ := svc.ListVisits(ctx, sales, VisitListFilter{})
	if len(vs) != 2 {
		t.Fatalf("sales sees own 2 visits, got %d", len(vs))
	}
	vs, _ = svc.ListVisits(ctx, manager, VisitListFilter{})
	if len(vs) != 1 || vs[0].ID != mine.ID {
		t.Fatalf("manager sees today's unassigned only, got %+v", vs)
	}
	vs, _ = svc.ListVisits(ctx, caller1, VisitListFilter{})
	if len(vs) != 1 || vs[0].ID != theirs.ID {
		t.Fatalf("telecaller sees assigned visits, got %+v", vs)
	}
	if _, err := svc.GetVisit(ctx, caller2, theirs.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("t2 has no assignment on this visit, got %v", err)
	}
	if _, err := svc.GetVisit(ctx, manager, old.ID); err != nil {
		t.Fatalf("manager can still open older visits: %v", err)
	}
	if vs, _ := svc.ListVisits(ctx, staffCaller, VisitListFilter{}); len(vs) != 0 {
		t.Fatalf("staff has no telecalling view")
	}

	if as, _ := svc.ListAssignments(ctx, caller1, AssignmentListFilter{}); len(as) != 1 || as[0].ID != a.ID {
		t.Fatalf("telecaller sees own assignment, got %+v", as)
	}
	if as, _ := svc.ListAssignments(ctx, caller2, AssignmentListFilter{}); len(as) != 0 {
		t.Fatalf("t2 has no assignments")
	}
	if as, _ := svc.ListAssignments(ctx, sales, AssignmentListFilter{}); len(as) != 0 {
		t.Fatalf("sales does not see assignments")
	}
	if _, err := svc.ListAssignments(ctx, auth.Caller{UserID: "m9", WorkspaceID: "w2", Role: rbac.RoleManager}, AssignmentListFilter{}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if _, err := svc.GetAssignment(ctx, auth.Caller{UserID: "m9", WorkspaceID: "w2", Role: rbac.RoleManager}, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("other tenant must not see the assignment, got %v", err)
	}

	mustLog(t, svc, caller1, a, CallBack, SentimentNeutral)
	if ps, _ := svc.ListProfiles(ctx, otherSales, ProfileListFilter{}); len(ps) != 1 {
		t.Fatalf("rep who recorded the visit sees its profile, got %d", len(ps))
	}
	if ps, _ := svc.ListProfiles(ctx, sales, ProfileListFilter{}); len(ps) != 0 {
		t.Fatalf("other rep must not see the profile, got %d", len(ps))
	}
	if ps, _ := svc.ListProfiles(ctx, caller2, ProfileListFilter{}); len(ps) != 0 {
		t.Fatalf("unrelated telecaller must not see the profile")
	}
	if logs, _ := svc.ListCallLogs(ctx, caller2, CallLogListFilter{}); len(logs) != 0 {
		t.Fatalf("unrelated telecaller must not see call logs")
	}
	if logs, _ := svc.ListCallLogs(ctx, manager, CallLogListFilter{}); len(logs) != 1 {
		t.Fatalf("manager sees every call log")
	}
}

func ptr[T any](v T) *T { return &v }

func TestFollowUps(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	a := mustAssign(t, svc, mustVisit(t, svc, sales, "Asha", "9876543210"), "t1")

	if _, err := svc.CreateFollowUp(ctx, manager, FollowUpRequest{AssignmentID: a.ID}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("scheduled time is required, got %v", err)
	}
	due, err := svc.CreateFollowUp(ctx, manager, FollowUpRequest{AssignmentID: a.ID, ScheduledTime: fixedNow.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("create follow-up: %v", err)
	}
	later, err := svc.CreateFollowUp(ctx, manager, FollowUpRequest{AssignmentID: a.ID, ScheduledTime: fixedNow.Add(time.Hour), Priority: PriorityHigh})
	if err != nil {
		t.Fatalf("create follow-up: %v", err)
	}
	if due.Status != FollowUpPending || due.Priority != PriorityMedium || due.CreatedBy != "m1" {
		t.Fatalf("unexpected follow-up: %+v", due)
	}
	ns := notices(t, svc, caller1)
	if countType(ns, NotifyFollowUp) != 2 {
		t.Fatalf("telecaller should be told about follow-ups: %+v", ns)
	}
	for _, n := range ns {
		if n.Type == NotifyFollowUp && (n.Title != "Follow-up Scheduled" || n.Message != "Follow-up scheduled for Asha") {
			t.Fatalf("unexpected follow-up notice: %+v", n)
		}
	}

	n, err := svc.MarkOverdueFollowUps(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one overdue, got %d %v", n, err)
	}
	if f, _ := svc.GetFollowUp(ctx, caller1, due.ID); f.Status != FollowUpOverdue {
		t.Fatalf("expected overdue, got %s", f.Status)
	}

	done, err := svc.CompleteFollowUp(ctx, caller1, later.ID)
	if err != nil || done.Status != FollowUpCompleted || done.CompletedTime == nil || !done.CompletedTime.Equal(fixedNow) {
		t.Fatalf("complete: %+v %v", done, err)
	}
	if _, err := svc.CompleteFollowUp(ctx, caller2, later.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("other telecaller cannot touch it, got %v", err)
	}
	if err := svc.DeleteFollowUp(ctx, caller1, due.ID); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("telecaller cannot delete, got %v", err)
	}

	cancelled := FollowUpCancelled
	if _, err := svc.UpdateFollowUp(ctx, manager, due.ID, FollowUpUpdate{Status: &cancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := svc.CompleteFollowUp(ctx, manager, due.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("cancelled follow-up cannot complete, got %v", err)
	}
}

func TestStatsQueriesAndAnalytics(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	a1 := mustAssign(t, svc, mustVisit(t, svc, sales, "A", "9000000021"), "t1")
	a2 := mustAssign(t, svc, mustVisit(t, svc, sales, "B", "9000000022"), "t1")
	a3 := mustAssign(t, svc, mustVisit(t, svc, sales, "C", "9000000023"), "t2")
	mustAssign(t, svc, mustVisit(t, svc, sales, "D", "9000000024"), "t2")

	mustLog(t, svc, caller1, a1, CallConnected, SentimentPositive)
	mustLog(t, svc, caller1, a2, CallBusy, SentimentNeutral)
	mustLog(t, svc, caller2, a3, CallNotInterested, SentimentNegative)

	// A positive connected call on an assignment that was later put back
	// into follow-up makes it a high potential lead.
	fu := AssignmentFollowUp
	if _, err := svc.UpdateAssignment(ctx, manager, a1.ID, AssignmentUpdate{Status: &fu}); err != nil {
		t.Fatalf("update: %v", err)
	}

	st, err := svc.AssignmentStats(ctx, manager)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalAssignments != 4 || st.CompletedAssignments != 1 || st.FollowUpAssignments != 2 || st.PendingAssignments != 1 {
		t.Fatalf("unexpected assignment counts: %+v", st)
	}
	if st.TotalCalls != 3 || st.ConnectedCalls != 1 || st.Conversions != 1 || st.ConversionRate != 33.33 || st.AvgCallDuration != 120 {
		t.Fatalf("unexpected call counts: %+v", st)
	}
	mine, _ := svc.AssignmentStats(ctx, caller2)
	if mine.TotalAssignments != 2 || mine.TotalCalls != 1 || mine.Conversions != 0 || mine.ConversionRate != 0 {
		t.Fatalf("unexpected telecaller stats: %+v", mine)
	}

	high, err := svc.HighPotentialLeads(ctx, manager)
	if err != nil || len(high) != 1 || high[0].ID != a1.ID {
		t.Fatalf("high potential: %+v %v", high, err)
	}
	unconnected, err := svc.UnconnectedCalls(ctx, manager)
	if err != nil || len(unconnected) != 1 || unconnected[0].ID != a2.ID {
		t.Fatalf("unconnected: %+v %v", unconnected, err)
	}
	if _, err := svc.HighPotentialLeads(ctx, caller1); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("telecallers cannot triage leads, got %v", err)
	}

	pa, err := svc.ProfileAnalytics(ctx, manager)
	if err != nil {
		t.Fatalf("analytics: %v", err)
	}
	// Scores: 100 (connected/positive), 60 (busy/neutral), 30 (not interested/negative).
	if pa.TotalProfiles != 3 || pa.HighEngagement != 1 || pa.MediumEngagement != 1 || pa.LowEngagement != 1 || pa.AvgEngagementScore != 63.33 {
		t.Fatalf("unexpected analytics: %+v", pa)
	}
	if pa.Distribution[LikelihoodVeryHigh] != 1 || pa.Distribution[LikelihoodLow] != 1 || pa.Distribution[LikelihoodVeryLow] != 1 || pa.Distribution[LikelihoodHigh] != 0 {
		t.Fatalf("unexpected distribution: %+v", pa.Distribution)
	}
}

func TestDashboardByRole(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	a1 := mustAssign(t, svc, mustVisit(t, svc, sales, "A", "9000000031"), "t1")
	mustVisit(t, svc, sales, "B", "9000000032")
	mustLog(t, svc, caller1, a1, CallConnected, SentimentPositive)
	if _, err := svc.CreateFollowUp(ctx, manager, FollowUpRequest{AssignmentID: a1.ID, ScheduledTime: fixedNow.Add(time.Hour)}); err != nil {
		t.Fatalf("follow-up: %v", err)
	}

	d, err := svc.Dashboard(ctx, manager)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	md, ok := d.(ManagerDashboard)
	if !ok {
		t.Fatalf("expected manager dashboard, got %T", d)
	}
	if md.TodayLeads != 2 || md.CompletedCalls != 1 || md.PendingAssignments != 0 || md.Performance.AssignedLeadsToday != 1 ||
		md.Performance.ConversionRate != 100 || len(md.RecentActivities) != 2 {
		t.Fatalf("unexpected manager dashboard: %+v", md)
	}
	for _, act := range md.RecentActivities {
		if act.Type == "assignment" && act.Description != "Assigned A to Tara" {
			t.Fatalf("unexpected activity %q", act.Description)
		}
	}

	d, _ = svc.Dashboard(ctx, caller1)
	td, ok := d.(TelecallerDashboard)
	if !ok || td.MyAssignments != 1 || td.CompletedCalls != 1 || td.PendingFollowUps != 1 || td.ConversionRate != 100 ||
		len(td.RecentActivities) != 1 || td.RecentActivities[0].Description != "Call to A - connected" {
		t.Fatalf("unexpected telecaller dashboard: %+v", d)
	}

	d, _ = svc.Dashboard(ctx, sales)
	sd, ok := d.(SalesDashboard)
	if !ok || sd.MyVisits != 2 || sd.TodayVisits != 2 || sd.AssignedVisits != 1 || sd.HotLeads != 2 {
		t.Fatalf("unexpected sales dashboard: %+v", d)
	}
}

func TestNotificationsMarkRead(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	mustAssign(t, svc, mustVisit(t, svc, sales, "A", "9000000041"), "t1")
	mustAssign(t, svc, mustVisit(t, svc, sales, "B", "9000000042"), "t1")

	ns := notices(t, svc, caller1)
	if len(ns) != 2 {
		t.Fatalf("expected 2 notices, got %d", len(ns))
	}
	if err := svc.MarkNotificationRead(ctx, caller2, ns[0].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("only the recipient can mark it, got %v", err)
	}
	if err := svc.MarkNotificationRead(ctx, caller1, ns[0].ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	unread, _ := svc.ListNotifications(ctx, caller1, true, 0, 0)
	if len(unread) != 1 {
		t.Fatalf("expected 1 unread, got %d", len(unread))
	}
	n, err := svc.MarkAllNotificationsRead(ctx, caller1)
	if err != nil || n != 1 {
		t.Fatalf("mark all: %d %v", n, err)
	}
	if unread, _ := svc.ListNotifications(ctx, caller1, true, 0, 0); len(unread) != 0 {
		t.Fatalf("all should be read")
	}
}
