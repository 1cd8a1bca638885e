package integrations

import (
	"fmt"
	"time"

	"bizops-platform/internal/apperr"

	"gorm.io/datatypes"
)

type Platform string

const (
	PlatformWhatsApp       Platform = "whatsapp"
	PlatformDukaan         Platform = "dukaan"
	PlatformQuickSell      Platform = "quicksell"
	PlatformShopify        Platform = "shopify"
	PlatformWooCommerce    Platform = "woocommerce"
	PlatformPaymentGateway Platform = "payment_gateway"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformWhatsApp, PlatformPaymentGateway:
		return true
	}
	return p.IsEcommerce()
}

func (p Platform) IsEcommerce() bool {
	switch p {
	case PlatformDukaan, PlatformQuickSell, PlatformShopify, PlatformWooCommerce:
		return true
	}
	return false
}

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusError    Status = "error"
	StatusPending  Status = "pending"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusError, StatusPending:
		return true
	}
	return false
}

// Integration is one tenant's connection to a third-party platform. Each
// tenant has at most one per platform. Credentials never leave the server.
type Integration struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID string         `json:"workspace_id" gorm:"size:36;not null;uniqueIndex:idx_integrations_platform,priority:1"`
	Platform    Platform       `json:"platform" gorm:"size:20;not null;uniqueIndex:idx_integrations_platform,priority:2"`
	Name        string         `json:"name" gorm:"size:100;not null"`
	APIKey      string         `json:"-" gorm:"size:255"`
	APISecret   string         `json:"-" gorm:"size:255"`
	WebhookURL  string         `json:"webhook_url,omitempty" gorm:"size:500"`
	ConfigData  datatypes.JSON `json:"config_data,omitempty" gorm:"type:jsonb"`
	Status      Status         `json:"status" gorm:"size:20;not null;default:inactive"`
	IsEnabled   bool           `json:"is_enabled"`
	LastError   string         `json:"last_error,omitempty" gorm:"type:text"`
	LastSync    *time.Time     `json:"last_sync,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (Integration) TableName() string { return "integrations" }

type WhatsAppConfig struct {
	ID                        string     `json:"id" gorm:"primaryKey;size:36"`
	IntegrationID             string     `json:"integration_id" gorm:"size:36;not null;uniqueIndex"`
	WorkspaceID               string     `json:"workspace_id" gorm:"size:36;not null;index"`
	PhoneNumber               string     `json:"phone_number" gorm:"size:20;not null;index"`
	BusinessName              string     `json:"business_name,omitempty" gorm:"size:100"`
	BusinessDescription       string     `json:"business_description,omitempty" gorm:"type:text"`
	WelcomeMessage            string     `json:"welcome_message,omitempty" gorm:"type:text"`
	OrderConfirmationTemplate string     `json:"order_confirmation_template,omitempty" gorm:"size:100"`
	OrderStatusTemplate       string     `json:"order_status_template,omitempty" gorm:"size:100"`
	AutoReplyEnabled          bool       `json:"auto_reply_enabled"`
	OrderNotificationsEnabled bool       `json:"order_notifications_enabled"`
	MarketingMessagesEnabled  bool       `json:"marketing_messages_enabled"`
	MessagesSent              int        `json:"messages_sent"`
	MessagesReceived          int        `json:"messages_received"`
	LastMessageSent           *time.Time `json:"last_message_sent,omitempty"`
	LastMessageReceived       *time.Time `json:"last_message_received,omitempty"`
}

func (WhatsAppConfig) TableName() string { return "whatsapp_configs" }

const defaultSyncIntervalHours = 24

type EcommerceConfig struct {
	ID                string     `json:"id" gorm:"primaryKey;size:36"`
	IntegrationID     string     `json:"integration_id" gorm:"size:36;not null;uniqueIndex"`
	WorkspaceID       string     `json:"workspace_id" gorm:"size:36;not null;index"`
	StoreURL          string     `json:"store_url,omitempty" gorm:"size:500"`
	StoreName         string     `json:"store_name,omitempty" gorm:"size:100"`
	SyncProducts      bool       `json:"sync_products"`
	SyncOrders        bool       `json:"sync_orders"`
	SyncCustomers     bool       `json:"sync_customers"`
	SyncInventory     bool       `json:"sync_inventory"`
	SyncIntervalHours int        `json:"sync_interval_hours"`
	LastProductSync   *time.Time `json:"last_product_sync,omitempty"`
	LastOrderSync     *time.Time `json:"last_order_sync,omitempty"`
	LastCustomerSync  *time.Time `json:"last_customer_sync,omitempty"`
	ProductsSynced    int        `json:"products_synced"`
	OrdersSynced      int        `json:"orders_synced"`
	CustomersSynced   int        `json:"customers_synced"`
}

func (EcommerceConfig) TableName() string { return "ecommerce_configs" }

type LogLevel string

const (
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
	LevelSuccess LogLevel = "success"
)

type IntegrationLog struct {
	ID            string         `json:"id" gorm:"primaryKey;size:36"`
	IntegrationID string         `json:"integration_id" gorm:"size:36;not null;index:idx_integration_logs_created,priority:1"`
	WorkspaceID   string         `json:"workspace_id" gorm:"size:36;not null"`
	Level         LogLevel       `json:"level" gorm:"size:10;not null"`
	Message       string         `json:"message" gorm:"type:text;not null"`
	Details       datatypes.JSON `json:"details,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time      `json:"created_at" gorm:"index:idx_integration_logs_created,priority:2"`
}

func (IntegrationLog) TableName() string { return "integration_logs" }

func Models() []any {
	return []any{&Integration{}, &WhatsAppConfig{}, &EcommerceConfig{}, &IntegrationLog{}}
}

var (
	ErrIntegrationNotFound = fmt.Errorf("integrations: integration %w", apperr.ErrNotFound)
	ErrConfigNotFound      = fmt.Errorf("integrations: config %w", apperr.ErrNotFound)
	ErrIntegrationExists   = fmt.Errorf("integrations: platform already connected %w", apperr.ErrConflict)
	ErrTemplateNotFound    = fmt.Errorf("integrations: template %w", apperr.ErrNotFound)
	ErrInvalidArgument     = fmt.Errorf("integrations: %w", apperr.ErrInvalidArgument)
	ErrForbidden           = fmt.Errorf("integrations: %w", apperr.ErrForbidden)
	ErrUnauthorized        = fmt.Errorf("integrations: bad webhook token %w", apperr.ErrForbidden)
)
