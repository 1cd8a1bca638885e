// Package marketing tracks campaigns, message templates, ecommerce storefronts
// and customer segments, and keeps an event log of notable changes.
package marketing

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"bizops-platform/internal/apperr"
)

type CampaignType string

const (
	CampaignWhatsApp    CampaignType = "whatsapp"
	CampaignEmail       CampaignType = "email"
	CampaignSMS         CampaignType = "sms"
	CampaignSocialMedia CampaignType = "social_media"
	CampaignEcommerce   CampaignType = "ecommerce"
)

func (t CampaignType) Valid() bool {
	switch t {
	case CampaignWhatsApp, CampaignEmail, CampaignSMS, CampaignSocialMedia, CampaignEcommerce:
		return true
	}
	return false
}

type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusScheduled CampaignStatus = "scheduled"
	StatusActive    CampaignStatus = "active"
	StatusPaused    CampaignStatus = "paused"
	StatusCompleted CampaignStatus = "completed"
	StatusCancelled CampaignStatus = "cancelled"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusActive, StatusPaused, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Campaign struct {
	ID             string          `json:"id"`
	WorkspaceID    string          `json:"workspace_id"`
	StoreID        string          `json:"store_id,omitempty"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	CampaignType   CampaignType    `json:"campaign_type"`
	Status         CampaignStatus  `json:"status"`
	TargetAudience json.RawMessage `json:"target_audience"`
	EstimatedReach int             `json:"estimated_reach"`
	TemplateID     string          `json:"message_template_id,omitempty"`
	CustomMessage  string          `json:"custom_message,omitempty"`
	ScheduledAt    *time.Time      `json:"scheduled_at,omitempty"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	EndDate        *time.Time      `json:"end_date,omitempty"`
	Budget         float64         `json:"budget"`

	MessagesSent      int     `json:"messages_sent"`
	MessagesDelivered int     `json:"messages_delivered"`
	MessagesRead      int     `json:"messages_read"`
	RepliesReceived   int     `json:"replies_received"`
	Conversions       int     `json:"conversions"`
	RevenueGenerated  float64 `json:"revenue_generated"`

	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rates are percentages; each is 0 when its denominator is 0.
type Rates struct {
	DeliveryRate   float64 `json:"delivery_rate"`
	ReadRate       float64 `json:"read_rate"`
	ReplyRate      float64 `json:"reply_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}

func percent(n, d int) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func (c Campaign) Rates() Rates {
	return Rates{
		DeliveryRate:   percent(c.MessagesDelivered, c.MessagesSent),
		ReadRate:       percent(c.MessagesRead, c.MessagesDelivered),
		ReplyRate:      percent(c.RepliesReceived, c.MessagesRead),
		ConversionRate: percent(c.Conversions, c.MessagesSent),
	}
}

type CampaignView struct {
	Campaign
	Rates
}

func (c Campaign) View() CampaignView {
	if len(c.TargetAudience) == 0 {
		c.TargetAudience = json.RawMessage(`[]`)
	}
	return CampaignView{Campaign: c, Rates: c.Rates()}
}

type TemplateType string

const (
	TemplateWhatsApp    TemplateType = "whatsapp"
	TemplateEmail       TemplateType = "email"
	TemplateSMS         TemplateType = "sms"
	TemplateSocialMedia TemplateType = "social_media"
)

func (t TemplateType) Valid() bool {
	switch t {
	case TemplateWhatsApp, TemplateEmail, TemplateSMS, TemplateSocialMedia:
		return true
	}
	return false
}

type TemplateCategory string

const (
	CategoryPromotional   TemplateCategory = "promotional"
	CategoryTransactional TemplateCategory = "transactional"
	CategoryInformational TemplateCategory = "informational"
	CategoryGreeting      TemplateCategory = "greeting"
	CategoryFollowUp      TemplateCategory = "follow_up"
)

func (c TemplateCategory) Valid() bool {
	switch c {
	case CategoryPromotional, CategoryTransactional, CategoryInformational, CategoryGreeting, CategoryFollowUp:
		return true
	}
	return false
}

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
)

type Template struct {
	ID             string           `json:"id"`
	WorkspaceID    string           `json:"workspace_id"`
	StoreID        string           `json:"store_id,omitempty"`
	Name           string           `json:"name"`
	TemplateType   TemplateType     `json:"template_type"`
	Category       TemplateCategory `json:"category"`
	Subject        string           `json:"subject,omitempty"`
	Content        string           `json:"message_content"`
	Variables      []string         `json:"variables"`
	IsApproved     bool             `json:"is_approved"`
	ApprovalStatus string           `json:"approval_status"`
	UsageCount     int              `json:"usage_count"`
	CreatedBy      string           `json:"created_by"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type PlatformType string

const (
	PlatformDukaan      PlatformType = "dukaan"
	PlatformQuickSell   PlatformType = "quicksell"
	PlatformShopify     PlatformType = "shopify"
	PlatformWooCommerce PlatformType = "woocommerce"
	PlatformCustom      PlatformType = "custom"
)

func (t PlatformType) Valid() bool {
	switch t {
	case PlatformDukaan, PlatformQuickSell, PlatformShopify, PlatformWooCommerce, PlatformCustom:
		return true
	}
	return false
}

type PlatformStatus string

const (
	PlatformConnected    PlatformStatus = "connected"
	PlatformDisconnected PlatformStatus = "disconnected"
	PlatformError        PlatformStatus = "error"
)

func (s PlatformStatus) Valid() bool {
	switch s {
	case PlatformConnected, PlatformDisconnected, PlatformError:
		return true
	}
	return false
}

// DefaultSyncFrequency is in seconds.
const DefaultSyncFrequency = 3600

type Platform struct {
	ID            string         `json:"id"`
	WorkspaceID   string         `json:"workspace_id"`
	StoreID       string         `json:"store_id,omitempty"`
	Name          string         `json:"name"`
	PlatformType  PlatformType   `json:"platform_type"`
	Status        PlatformStatus `json:"status"`
	APIKey        string         `json:"-"`
	APISecret     string         `json:"-"`
	WebhookURL    string         `json:"webhook_url,omitempty"`
	StoreURL      string         `json:"store_url,omitempty"`
	LastSync      *time.Time     `json:"last_sync,omitempty"`
	SyncFrequency int            `json:"sync_frequency"`
	TotalProducts int            `json:"total_products"`
	TotalOrders   int            `json:"total_orders"`
	TotalRevenue  float64        `json:"total_revenue"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type Segment struct {
	ID             string          `json:"id"`
	WorkspaceID    string          `json:"workspace_id"`
	StoreID        string          `json:"store_id,omitempty"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Criteria       json.RawMessage `json:"criteria"`
	CustomerCount  int             `json:"customer_count"`
	TotalRevenue   float64         `json:"total_revenue"`
	AvgOrderValue  float64         `json:"average_order_value"`
	ConversionRate float64         `json:"conversion_rate"`
	EngagementRate float64         `json:"engagement_rate"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Analytics are hourly campaign counters, unique per (campaign, date, hour).
type Analytics struct {
	ID          string    `json:"id"`
	CampaignID  string    `json:"campaign_id"`
	WorkspaceID string    `json:"workspace_id"`
	Date        time.Time `json:"date"`
	Hour        int       `json:"hour"`
	Impressions int       `json:"impressions"`
	Clicks      int       `json:"clicks"`
	Conversions int       `json:"conversions"`
	Revenue     float64   `json:"revenue"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type EventType string

const (
	EventCampaignLaunched  EventType = "campaign_launched"
	EventCampaignCompleted EventType = "campaign_completed"
	EventTemplateCreated   EventType = "template_created"
	EventTemplateApproved  EventType = "template_approved"
	EventPlatformConnected EventType = "platform_connected"
	EventSegmentCreated    EventType = "segment_created"
	EventHighConversion    EventType = "high_conversion"
	EventLowPerformance    EventType = "low_performance"
)

// Event is an append-only marketing log entry. At most one of the subject
// IDs is set.
type Event struct {
	ID          string         `json:"id"`
	WorkspaceID string         `json:"workspace_id"`
	StoreID     string         `json:"store_id,omitempty"`
	EventType   EventType      `json:"event_type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	CampaignID  string         `json:"campaign_id,omitempty"`
	TemplateID  string         `json:"template_id,omitempty"`
	PlatformID  string         `json:"platform_id,omitempty"`
	SegmentID   string         `json:"segment_id,omitempty"`
	EventData   map[string]any `json:"event_data"`
	CreatedAt   time.Time      `json:"created_at"`
}

const (
	highConversionRate = 5.0
	lowConversionRate  = 1.0
	lowPerformanceSent = 100
)

var (
	ErrCampaignNotFound = fmt.Errorf("marketing: campaign %w", apperr.ErrNotFound)
	ErrTemplateNotFound = fmt.Errorf("marketing: template %w", apperr.ErrNotFound)
	ErrPlatformNotFound = fmt.Errorf("marketing: platform %w", apperr.ErrNotFound)
	ErrSegmentNotFound  = fmt.Errorf("marketing: segment %w", apperr.ErrNotFound)
	ErrInvalidArgument  = fmt.Errorf("marketing: %w", apperr.ErrInvalidArgument)
)
