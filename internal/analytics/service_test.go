package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"

	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Unix(1700000000, 0).UTC()

	manager  = auth.Caller{UserID: "m1", WorkspaceID: "w1", Role: rbac.RoleManager}
	staff    = auth.Caller{UserID: "u1", WorkspaceID: "w1", Role: rbac.RoleStaff}
	staff2   = auth.Caller{UserID: "u2", WorkspaceID: "w1", Role: rbac.RoleStaff}
	outsider = auth.Caller{UserID: "x1", WorkspaceID: "w2", Role: rbac.RoleBusinessAdmin}
	platform = auth.Caller{UserID: "p1", WorkspaceID: "w0", Role: rbac.RolePlatformAdmin}
)

func newTestService(counters Counters) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo, counters)
	svc.clock = func() time.Time { return fixedNow }
	return svc, repo
}

func seed(t *testing.T, repo *MemoryRepo, ws, user string, typ EventType, at time.Time) {
	t.Helper()
	_, err := repo.CreateEvent(context.Background(), Event{
		ID: at.Format(time.RFC3339Nano) + user + string(typ), WorkspaceID: ws, UserID: user,
		EventType: typ, EventName: string(typ), CreatedAt: at,
	})
	require.NoError(t, err)
}

func TestCalculateChange(t *testing.T) {
	cases := []struct {
		cur, prev float64
		want      string
	}{
		{0, 0, "+0%"},
		{5, 0, "+100%"},
		{15, 10, "+50.0%"},
		{10, 10, "+0.0%"},
		{5, 10, "-50.0%"},
		{1, 3, "-66.7%"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, CalculateChange(tc.cur, tc.prev), "%v vs %v", tc.cur, tc.prev)
	}
}

func TestTrack_ValidatesAndStampsCaller(t *testing.T) {
	svc, _ := newTestService(Counters{})
	ctx := context.Background()

	_, err := svc.Track(ctx, staff, TrackRequest{EventType: "scroll", EventName: "x"})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	e, err := svc.Track(ctx, staff, TrackRequest{
		EventType: EventPurchase, EventName: " checkout ", EventData: json.RawMessage(`{"amount":120}`),
		IPAddress: "10.0.0.1", UserAgent: "test-agent",
	})
	require.NoError(t, err)
	require.Equal(t, "u1", e.UserID)
	require.Equal(t, "w1", e.WorkspaceID)
	require.Equal(t, "checkout", e.EventName)
	require.Equal(t, fixedNow, e.CreatedAt)

	_, err = svc.ListEvents(ctx, staff, EventFilter{})
	require.True(t, errors.Is(err, apperr.ErrForbidden))
	got, err := svc.ListEvents(ctx, manager, EventFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	got, err = svc.ListEvents(ctx, outsider, EventFilter{})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRecordMetric_ComparesWithPreviousPeriod(t *testing.T) {
	svc, _ := newTestService(Counters{})
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	_, err := svc.RecordMetric(ctx, staff, MetricRequest{MetricType: MetricSales, Period: PeriodDaily, PeriodStart: day, Value: 1})
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	first, err := svc.RecordMetric(ctx, manager, MetricRequest{MetricType: MetricSales, Period: PeriodDaily, PeriodStart: day, Value: 80})
	require.NoError(t, err)
	require.Nil(t, first.PreviousValue)
	require.Equal(t, day.AddDate(0, 0, 1), first.PeriodEnd)

	next, err := svc.RecordMetric(ctx, manager, MetricRequest{MetricType: MetricSales, Period: PeriodDaily, PeriodStart: day.AddDate(0, 0, 1), Value: 100})
	require.NoError(t, err)
	require.NotNil(t, next.PreviousValue)
	require.Equal(t, 80.0, *next.PreviousValue)
	require.Equal(t, 25.0, *next.ChangePercentage)

	again, err := svc.RecordMetric(ctx, manager, MetricRequest{MetricType: MetricSales, Period: PeriodDaily, PeriodStart: day.AddDate(0, 0, 1), Value: 60})
	require.NoError(t, err)
	require.Equal(t, next.ID, again.ID)
	require.Equal(t, -25.0, *again.ChangePercentage)

	items, err := svc.ListMetrics(ctx, manager, MetricFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestWidgets_ArePerUser(t *testing.T) {
	svc, _ := newTestService(Counters{})
	ctx := context.Background()

	w, err := svc.CreateWidget(ctx, staff, WidgetRequest{Name: "Sales", WidgetType: WidgetChart, ChartType: "bar"})
	require.NoError(t, err)
	require.Equal(t, defaultRefreshSeconds, w.RefreshInterval)
	require.True(t, w.IsActive)

	_, err = svc.GetWidget(ctx, staff2, w.ID)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
	require.True(t, errors.Is(svc.DeleteWidget(ctx, staff2, w.ID), apperr.ErrNotFound))

	off := false
	upd, err := svc.UpdateWidget(ctx, staff, w.ID, WidgetUpdate{IsActive: &off, Config: json.RawMessage(`{"metric":"sales"}`)})
	require.NoError(t, err)
	require.False(t, upd.IsActive)
	require.JSONEq(t, `{"metric":"sales"}`, string(upd.Config))

	mine, err := svc.ListWidgets(ctx, staff)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	theirs, err := svc.ListWidgets(ctx, staff2)
	require.NoError(t, err)
	require.Empty(t, theirs)
}

func TestDashboardStats_ComparesWindowsAndCountsModules(t *testing.T) {
	open := CounterFunc(func(ctx context.Context, c auth.Caller) (int, error) { return 4, nil })
	pending := CounterFunc(func(ctx context.Context, c auth.Caller) (int, error) { return 2, nil })
	svc, repo := newTestService(Counters{OpenTickets: open, PendingFeedback: pending})

	day := 24 * time.Hour
	seed(t, repo, "w1", "a", EventPurchase, fixedNow.Add(-1*day))
	seed(t, repo, "w1", "b", EventPurchase, fixedNow.Add(-2*day))
	seed(t, repo, "w1", "b", EventPageView, fixedNow.Add(-3*day))
	seed(t, repo, "w1", "c", EventSignup, fixedNow.Add(-40*day))
	seed(t, repo, "w1", "c", EventPurchase, fixedNow.Add(-45*day))
	seed(t, repo, "w2", "z", EventPurchase, fixedNow.Add(-1*day))

	st, err := svc.DashboardStats(context.Background(), manager)
	require.NoError(t, err)
	require.Equal(t, 30, st.PeriodDays)
	require.Equal(t, StatValue{Value: 3, Previous: 2, Change: "+50.0%"}, st.TotalEvents)
	require.Equal(t, StatValue{Value: 2, Previous: 1, Change: "+100.0%"}, st.UniqueUsers)
	require.Equal(t, StatValue{Value: 2, Previous: 1, Change: "+100.0%"}, st.Purchases)
	require.Equal(t, StatValue{Value: 0, Previous: 1, Change: "-100.0%"}, st.Signups)
	require.Equal(t, 4, st.OpenSupportTickets)
	require.Equal(t, 2, st.PendingFeedback)
	require.Zero(t, st.ActiveCampaigns)

	all, err := svc.DashboardStats(context.Background(), platform)
	require.NoError(t, err)
	require.Equal(t, 4, all.TotalEvents.Value)

	_, err = svc.DashboardStats(context.Background(), staff)
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	failing := CounterFunc(func(ctx context.Context, c auth.Caller) (int, error) { return 0, errors.New("db down") })
	svc.counters.ActiveCampaigns = failing
	_, err = svc.DashboardStats(context.Background(), manager)
	require.Error(t, err)
}

func TestGenerate_JSONAndCSV(t *testing.T) {
	svc, repo := newTestService(Counters{})
	ctx := context.Background()
	seed(t, repo, "w1", "a", EventPurchase, fixedNow.Add(-time.Hour))
	seed(t, repo, "w1", "a", EventPageView, fixedNow.Add(-2*time.Hour))
	_, err := svc.RecordMetric(ctx, manager, MetricRequest{
		MetricType: MetricSales, Period: PeriodDaily, PeriodStart: fixedNow.Add(-24 * time.Hour), Value: 12.5,
	})
	require.NoError(t, err)
	_, err = svc.RecordMetric(ctx, manager, MetricRequest{
		MetricType: MetricCustomers, Period: PeriodDaily, PeriodStart: fixedNow.Add(-24 * time.Hour), Value: 3,
	})
	require.NoError(t, err)

	r, err := svc.CreateReport(ctx, manager, ReportRequest{Name: "Weekly sales", ReportType: ReportSales})
	require.NoError(t, err)
	require.Equal(t, FormatJSON, r.Format)
	require.Equal(t, ReportPending, r.Status)

	_, err = svc.Download(ctx, manager, r.ID)
	require.True(t, errors.Is(err, apperr.ErrConflict))

	r, err = svc.Generate(ctx, manager, r.ID)
	require.NoError(t, err)
	require.Equal(t, ReportCompleted, r.Status)
	require.NotNil(t, r.GeneratedAt)
	require.Equal(t, "/v1/analytics/reports/"+r.ID+"/download", r.FileURL)

	var body struct {
		Summary Summary  `json:"summary"`
		Metrics []Metric `json:"metrics"`
	}
	require.NoError(t, json.Unmarshal(r.Content, &body))
	require.Equal(t, 2, body.Summary.Events.Total)
	require.Equal(t, 1, body.Summary.Purchases)
	require.Len(t, body.Metrics, 1)
	require.Equal(t, MetricSales, body.Metrics[0].MetricType)

	c, err := svc.CreateReport(ctx, manager, ReportRequest{Name: "csv", ReportType: ReportCustom, Format: FormatCSV})
	require.NoError(t, err)
	c, err = svc.Generate(ctx, manager, c.ID)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(c.Content)), "\n")
	require.Equal(t, "section,name,period_start,value", lines[0])
	require.Contains(t, lines, "events,total_events,,2")
	require.Contains(t, lines, "events,purchase,,1")
	require.Contains(t, lines, "metric,customers/daily,2023-11-13,3.00")

	p, err := svc.CreateReport(ctx, manager, ReportRequest{Name: "pdf", ReportType: ReportSales, Format: FormatPDF})
	require.NoError(t, err)
	p, err = svc.Generate(ctx, manager, p.ID)
	require.NoError(t, err)
	require.Equal(t, ReportFailed, p.Status)
	require.Equal(t, "format not supported", p.ErrorMessage)

	_, err = svc.GetReport(ctx, outsider, r.ID)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
	list, err := svc.ListReports(ctx, manager, ReportFilter{Status: ReportCompleted})
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Nil(t, list[0].Content)
}
