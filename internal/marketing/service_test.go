package marketing

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"

	"github.com/stretchr/testify/require"
)

var (
	fixedNow  = time.Unix(1700000000, 0).UTC()
	marketer  = auth.Caller{UserID: "mk1", WorkspaceID: "w1", StoreID: "s1", Role: rbac.RoleMarketing}
	otherShop = auth.Caller{UserID: "st2", WorkspaceID: "w1", StoreID: "s2", Role: rbac.RoleStaff}
	owner     = auth.Caller{UserID: "ba1", WorkspaceID: "w1", Role: rbac.RoleBusinessAdmin}
	outsider  = auth.Caller{UserID: "x1", WorkspaceID: "w2", Role: rbac.RoleBusinessAdmin}
	platform  = auth.Caller{UserID: "p1", WorkspaceID: "w0", Role: rbac.RolePlatformAdmin}
)

func newTestService(t *testing.T) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return fixedNow }
	return svc, repo
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func intp(v int) *int { return &v }

func TestCampaignRates(t *testing.T) {
	require.Equal(t, Rates{}, Campaign{}.Rates())

	r := Campaign{MessagesSent: 200, MessagesDelivered: 150, MessagesRead: 75, RepliesReceived: 15, Conversions: 4}.Rates()
	require.Equal(t, 75.0, r.DeliveryRate)
	require.Equal(t, 50.0, r.ReadRate)
	require.Equal(t, 20.0, r.ReplyRate)
	require.Equal(t, 2.0, r.ConversionRate)

	r = Campaign{MessagesSent: 10}.Rates()
	require.Zero(t, r.ReadRate)
	require.Zero(t, r.ReplyRate)
}

func TestCampaignEventsOnSave(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	camp, err := svc.CreateCampaign(ctx, marketer, CampaignRequest{Name: "Diwali", CampaignType: CampaignWhatsApp, EstimatedReach: 1000})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, camp.Status)
	require.Equal(t, "s1", camp.StoreID)
	require.JSONEq(t, `[]`, string(camp.View().TargetAudience))
	require.Equal(t, []EventType{EventCampaignLaunched}, eventTypes(repo.Events()))

	camp, err = svc.UpdateCampaign(ctx, marketer, camp.ID, CampaignUpdate{MessagesSent: intp(200), Conversions: intp(1)})
	require.NoError(t, err)
	require.Equal(t, 0.5, camp.ConversionRate)
	require.Equal(t, []EventType{EventCampaignLaunched, EventLowPerformance}, eventTypes(repo.Events()))

	done := StatusCompleted
	_, err = svc.UpdateCampaign(ctx, marketer, camp.ID, CampaignUpdate{Status: &done, Conversions: intp(12)})
	require.NoError(t, err)
	events := repo.Events()
	require.Equal(t, []EventType{EventCampaignLaunched, EventLowPerformance, EventCampaignCompleted, EventHighConversion}, eventTypes(events))
	require.Equal(t, 6.0, events[3].EventData["conversion_rate"])
	require.Equal(t, camp.ID, events[3].CampaignID)

	// Saving an already completed campaign does not log completion again.
	name := "Diwali 2"
	_, err = svc.UpdateCampaign(ctx, marketer, camp.ID, CampaignUpdate{Name: &name})
	require.NoError(t, err)
	require.Equal(t, EventHighConversion, repo.Events()[4].EventType)
	require.Len(t, repo.Events(), 5)
}

func TestScope(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	shop, err := svc.CreateCampaign(ctx, marketer, CampaignRequest{Name: "shop", CampaignType: CampaignSMS})
	require.NoError(t, err)
	wide, err := svc.CreateCampaign(ctx, owner, CampaignRequest{Name: "tenant", CampaignType: CampaignEmail})
	require.NoError(t, err)

	_, err = svc.GetCampaign(ctx, otherShop, shop.ID)
	require.True(t, errors.Is(err, ErrCampaignNotFound))
	_, err = svc.GetCampaign(ctx, otherShop, wide.ID)
	require.NoError(t, err)
	_, err = svc.GetCampaign(ctx, outsider, wide.ID)
	require.ErrorIs(t, err, ErrCampaignNotFound)

	items, err := svc.ListCampaigns(ctx, owner, CampaignListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	items, err = svc.ListCampaigns(ctx, otherShop, CampaignListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	items, err = svc.ListCampaigns(ctx, platform, CampaignListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.ErrorIs(t, svc.DeleteCampaign(ctx, otherShop, shop.ID), ErrCampaignNotFound)
}

func TestRecordAnalyticsAccumulates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	camp, err := svc.CreateCampaign(ctx, marketer, CampaignRequest{Name: "c", CampaignType: CampaignWhatsApp})
	require.NoError(t, err)

	_, err = svc.RecordAnalytics(ctx, marketer, camp.ID, AnalyticsRequest{Date: "2024-10-15", Hour: intp(9), Impressions: 100, Clicks: 5, Revenue: 10})
	require.NoError(t, err)
	got, err := svc.RecordAnalytics(ctx, marketer, camp.ID, AnalyticsRequest{Date: "2024-10-15", Hour: intp(9), Impressions: 50, Clicks: 1, Conversions: 1, Revenue: 2.5})
	require.NoError(t, err)
	require.Equal(t, 150, got.Impressions)
	require.Equal(t, 6, got.Clicks)
	require.Equal(t, 1, got.Conversions)
	require.Equal(t, 12.5, got.Revenue)

	_, err = svc.RecordAnalytics(ctx, marketer, camp.ID, AnalyticsRequest{Date: "2024-10-15", Hour: intp(10), Impressions: 1})
	require.NoError(t, err)
	rows, err := svc.CampaignAnalytics(ctx, marketer, camp.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 9, rows[0].Hour)

	_, err = svc.RecordAnalytics(ctx, marketer, camp.ID, AnalyticsRequest{Date: "2024-10-15", Hour: intp(24)})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTemplatesPlatformsSegments(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	tpl, err := svc.CreateTemplate(ctx, marketer, TemplateRequest{Name: "Hi", TemplateType: TemplateWhatsApp, Category: CategoryGreeting, Content: "Hello {{customer_name}}"})
	require.NoError(t, err)
	require.Equal(t, ApprovalPending, tpl.ApprovalStatus)
	require.False(t, tpl.IsApproved)

	tpl, err = svc.ApproveTemplate(ctx, marketer, tpl.ID)
	require.NoError(t, err)
	require.True(t, tpl.IsApproved)
	require.Equal(t, ApprovalApproved, tpl.ApprovalStatus)
	_, err = svc.ApproveTemplate(ctx, marketer, tpl.ID)
	require.NoError(t, err)

	_, err = svc.CreateCampaign(ctx, marketer, CampaignRequest{Name: "c", CampaignType: CampaignWhatsApp, TemplateID: tpl.ID})
	require.NoError(t, err)
	tpl, err = svc.GetTemplate(ctx, marketer, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, 1, tpl.UsageCount)

	content := "Hello again"
	tpl, err = svc.UpdateTemplate(ctx, marketer, tpl.ID, TemplateUpdate{Content: &content})
	require.NoError(t, err)
	require.False(t, tpl.IsApproved)

	p, err := svc.CreatePlatform(ctx, marketer, PlatformRequest{Name: "Dukaan", PlatformType: PlatformDukaan})
	require.NoError(t, err)
	require.Equal(t, PlatformDisconnected, p.Status)
	require.Equal(t, DefaultSyncFrequency, p.SyncFrequency)
	_, err = svc.CreatePlatform(ctx, marketer, PlatformRequest{Name: "Shop", PlatformType: PlatformShopify, Status: PlatformConnected})
	require.NoError(t, err)

	_, err = svc.CreateSegment(ctx, marketer, SegmentRequest{Name: "VIP", CustomerCount: 12})
	require.NoError(t, err)

	require.Equal(t, []EventType{
		EventTemplateCreated, EventTemplateApproved, EventCampaignLaunched,
		EventPlatformConnected, EventSegmentCreated,
	}, eventTypes(repo.Events()))
	require.Equal(t, "New customer segment with 12 customers", repo.Events()[4].Description)
}

func TestDashboardAndMetrics(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateCampaign(ctx, owner, CampaignRequest{Name: "a", CampaignType: CampaignWhatsApp, EstimatedReach: 400, Status: StatusActive})
	require.NoError(t, err)
	_, err = svc.UpdateCampaign(ctx, owner, a.ID, CampaignUpdate{MessagesSent: intp(200), MessagesDelivered: intp(180), MessagesRead: intp(90), RepliesReceived: intp(9), Conversions: intp(8)})
	require.NoError(t, err)
	b, err := svc.CreateCampaign(ctx, owner, CampaignRequest{Name: "b", CampaignType: CampaignEmail, EstimatedReach: 100})
	require.NoError(t, err)
	_, err = svc.UpdateCampaign(ctx, owner, b.ID, CampaignUpdate{MessagesSent: intp(100), Conversions: intp(2)})
	require.NoError(t, err)
	_, err = svc.CreateCampaign(ctx, outsider, CampaignRequest{Name: "x", CampaignType: CampaignWhatsApp, EstimatedReach: 999})
	require.NoError(t, err)

	d, err := svc.Dashboard(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 2, d.TotalCampaigns)
	require.Equal(t, 1, d.ActiveCampaigns)
	require.Equal(t, 500, d.TotalReach)
	require.Equal(t, 10, d.TotalConversions)
	require.Equal(t, 2.0, d.ConversionRate)
	require.NotEmpty(t, d.RecentEvents)

	top, err := svc.CampaignMetrics(ctx, owner)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, a.ID, top[0].ID)
	require.Equal(t, 4.0, top[0].ConversionRate)

	wa, err := svc.WhatsAppMetrics(ctx, owner)
	require.NoError(t, err)
	require.Equal(t, 200, wa.MessagesSent)
	require.Equal(t, 90.0, wa.DeliveryRate)
	require.Equal(t, 50.0, wa.ReadRate)
	require.Equal(t, 10.0, wa.ReplyRate)
	require.Len(t, wa.Campaigns, 1)
	require.Equal(t, 50.0, wa.Campaigns[0].Progress)

	eco, err := svc.EcommerceSummary(ctx, owner)
	require.NoError(t, err)
	require.Empty(t, eco.Platforms)
	require.Zero(t, eco.AvgOrderValue)
}
