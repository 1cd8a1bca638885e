package marketing

import (
	"context"
	"time"

	"bizops-platform/internal/auth"
)

type Dashboard struct {
	TotalCampaigns     int     `json:"total_campaigns"`
	ActiveCampaigns    int     `json:"active_campaigns"`
	TotalTemplates     int     `json:"total_templates"`
	ConnectedPlatforms int     `json:"connected_platforms"`
	TotalSegments      int     `json:"total_segments"`
	TotalReach         int     `json:"total_reach"`
	MessagesSent       int     `json:"messages_sent"`
	TotalConversions   int     `json:"total_conversions"`
	ConversionRate     float64 `json:"conversion_rate"`
	TotalRevenue       float64 `json:"total_revenue"`
	RecentEvents       []Event `json:"recent_events"`
}

const (
	recentEventLimit  = 10
	topCampaignLimit  = 10
	whatsappCampaigns = 5
)

func (s *Service) Dashboard(ctx context.Context, c auth.Caller) (Dashboard, error) {
	scope := ScopeFor(c)
	sum, err := s.repo.Summary(ctx, scope)
	if err != nil {
		return Dashboard{}, err
	}
	events, err := s.repo.ListEvents(ctx, EventFilter{Scope: scope, Limit: recentEventLimit})
	if err != nil {
		return Dashboard{}, err
	}
	if events == nil {
		events = []Event{}
	}
	return Dashboard{
		TotalCampaigns:     sum.Campaigns,
		ActiveCampaigns:    sum.ActiveCampaigns,
		TotalTemplates:     sum.Templates,
		ConnectedPlatforms: sum.ConnectedPlatforms,
		TotalSegments:      sum.Segments,
		TotalReach:         sum.TotalReach,
		MessagesSent:       sum.MessagesSent,
		TotalConversions:   sum.Conversions,
		ConversionRate:     round(percent(sum.Conversions, sum.TotalReach), 2),
		TotalRevenue:       sum.Revenue,
		RecentEvents:       events,
	}, nil
}

// CampaignMetrics returns the top campaigns by conversions with their rates.
func (s *Service) CampaignMetrics(ctx context.Context, c auth.Caller) ([]CampaignView, error) {
	items, err := s.repo.ListCampaigns(ctx, CampaignFilter{Scope: ScopeFor(c), ByConversions: true, Limit: topCampaignLimit})
	if err != nil {
		return nil, err
	}
	return campaignViews(items), nil
}

type SegmentOverview struct {
	SegmentID      string  `json:"segment_id"`
	SegmentName    string  `json:"segment_name"`
	CustomerCount  int     `json:"customer_count"`
	ConversionRate float64 `json:"conversion_rate"`
	EngagementRate float64 `json:"engagement_rate"`
	Revenue        float64 `json:"revenue"`
	AvgOrderValue  float64 `json:"average_order_value"`
}

func (s *Service) SegmentOverview(ctx context.Context, c auth.Caller) ([]SegmentOverview, error) {
	segs, err := s.repo.ListSegments(ctx, SegmentFilter{Scope: ScopeFor(c)})
	if err != nil {
		return nil, err
	}
	out := make([]SegmentOverview, 0, len(segs))
	for _, sg := range segs {
		out = append(out, SegmentOverview{
			SegmentID:      sg.ID,
			SegmentName:    sg.Name,
			CustomerCount:  sg.CustomerCount,
			ConversionRate: sg.ConversionRate,
			EngagementRate: sg.EngagementRate,
			Revenue:        sg.TotalRevenue,
			AvgOrderValue:  sg.AvgOrderValue,
		})
	}
	return out, nil
}

type PlatformSummary struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	PlatformType PlatformType   `json:"platform_type"`
	Status       PlatformStatus `json:"status"`
	Products     int            `json:"products"`
	Orders       int            `json:"orders"`
	Revenue      float64        `json:"revenue"`
	LastSync     *time.Time     `json:"last_sync,omitempty"`
}

type EcommerceSummary struct {
	TotalSales         float64           `json:"total_sales"`
	TotalOrders        int               `json:"total_orders"`
	TotalProducts      int               `json:"total_products"`
	AvgOrderValue      float64           `json:"avg_order_value"`
	ConnectedPlatforms int               `json:"connected_platforms"`
	Platforms          []PlatformSummary `json:"platforms"`
}

func (s *Service) EcommerceSummary(ctx context.Context, c auth.Caller) (EcommerceSummary, error) {
	ps, err := s.repo.ListPlatforms(ctx, PlatformFilter{Scope: ScopeFor(c)})
	if err != nil {
		return EcommerceSummary{}, err
	}
	out := EcommerceSummary{Platforms: make([]PlatformSummary, 0, len(ps))}
	for _, p := range ps {
		out.TotalSales += p.TotalRevenue
		out.TotalOrders += p.TotalOrders
		out.TotalProducts += p.TotalProducts
		if p.Status == PlatformConnected {
			out.ConnectedPlatforms++
		}
		out.Platforms = append(out.Platforms, PlatformSummary{
			ID:           p.ID,
			Name:         p.Name,
			PlatformType: p.PlatformType,
			Status:       p.Status,
			Products:     p.TotalProducts,
			Orders:       p.TotalOrders,
			Revenue:      p.TotalRevenue,
			LastSync:     p.LastSync,
		})
	}
	if out.TotalOrders > 0 {
		out.AvgOrderValue = round(out.TotalSales/float64(out.TotalOrders), 2)
	}
	return out, nil
}

type WhatsAppCampaign struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Status    CampaignStatus `json:"status"`
	Target    int            `json:"target"`
	Sent      int            `json:"sent"`
	Delivered int            `json:"delivered"`
	Read      int            `json:"read"`
	Replies   int            `json:"replies"`
	Revenue   float64        `json:"revenue"`
	Progress  float64        `json:"progress"`
	CreatedAt time.Time      `json:"created_at"`
}

type WhatsAppMetrics struct {
	MessagesSent      int                `json:"messages_sent"`
	MessagesDelivered int                `json:"messages_delivered"`
	MessagesRead      int                `json:"messages_read"`
	Replies           int                `json:"replies"`
	Conversions       int                `json:"conversions"`
	Revenue           float64            `json:"revenue"`
	DeliveryRate      float64            `json:"delivery_rate"`
	ReadRate          float64            `json:"read_rate"`
	ReplyRate         float64            `json:"reply_rate"`
	ConversionRate    float64            `json:"conversion_rate"`
	Campaigns         []WhatsAppCampaign `json:"campaigns"`
}

// WhatsAppMetrics totals every whatsapp campaign in scope. Rates use the
// same denominators as a single campaign, rounded to one decimal.
func (s *Service) WhatsAppMetrics(ctx context.Context, c auth.Caller) (WhatsAppMetrics, error) {
	items, err := s.repo.ListCampaigns(ctx, CampaignFilter{Scope: ScopeFor(c), CampaignType: CampaignWhatsApp})
	if err != nil {
		return WhatsAppMetrics{}, err
	}
	var total Campaign
	out := WhatsAppMetrics{Campaigns: []WhatsAppCampaign{}}
	for i, camp := range items {
		total.MessagesSent += camp.MessagesSent
		total.MessagesDelivered += camp.MessagesDelivered
		total.MessagesRead += camp.MessagesRead
		total.RepliesReceived += camp.RepliesReceived
		total.Conversions += camp.Conversions
		total.RevenueGenerated += camp.RevenueGenerated
		if i < whatsappCampaigns {
			out.Campaigns = append(out.Campaigns, WhatsAppCampaign{
				ID:        camp.ID,
				Name:      camp.Name,
				Status:    camp.Status,
				Target:    camp.EstimatedReach,
				Sent:      camp.MessagesSent,
				Delivered: camp.MessagesDelivered,
				Read:      camp.MessagesRead,
				Replies:   camp.RepliesReceived,
				Revenue:   camp.RevenueGenerated,
				Progress:  round(percent(camp.MessagesSent, camp.EstimatedReach), 1),
				CreatedAt: camp.CreatedAt,
			})
		}
	}
	r := total.Rates()
	out.MessagesSent = total.MessagesSent
	out.MessagesDelivered = total.MessagesDelivered
	out.MessagesRead = total.MessagesRead
	out.Replies = total.RepliesReceived
	out.Conversions = total.Conversions
	out.Revenue = total.RevenueGenerated
	out.DeliveryRate = round(r.DeliveryRate, 1)
	out.ReadRate = round(r.ReadRate, 1)
	out.ReplyRate = round(r.ReplyRate, 1)
	out.ConversionRate = round(r.ConversionRate, 1)
	return out, nil
}
