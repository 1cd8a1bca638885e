// Package settings stores per-tenant configuration: free-form business
// key/values, customer tags, outbound message templates, branding and legal
// copy. Rows are gorm models with JSON columns.
package settings

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"bizops-platform/internal/apperr"

	"gorm.io/datatypes"
)

const DefaultThemeColor = "#1e40af"

type BusinessSetting struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID string         `json:"workspace_id" gorm:"size:36;not null;uniqueIndex:idx_business_settings_key"`
	Key         string         `json:"key" gorm:"size:64;not null;uniqueIndex:idx_business_settings_key"`
	Value       datatypes.JSON `json:"value" gorm:"type:jsonb"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Tag struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID string         `json:"workspace_id" gorm:"size:36;not null;uniqueIndex:idx_tags_slug"`
	Name        string         `json:"name" gorm:"size:64;not null"`
	Slug        string         `json:"slug" gorm:"size:64;not null;uniqueIndex:idx_tags_slug"`
	Category    string         `json:"category" gorm:"size:32;index"`
	IsActive    bool           `json:"is_active" gorm:"not null;default:true"`
	AutoRule    datatypes.JSON `json:"auto_rule,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
	ChannelEmail    Channel = "email"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelWhatsApp, ChannelSMS, ChannelEmail:
		return true
	}
	return false
}

type NotificationTemplate struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID string    `json:"workspace_id" gorm:"size:36;not null;index"`
	Name        string    `json:"name" gorm:"size:64;not null"`
	Channel     Channel   `json:"channel" gorm:"size:16;not null"`
	Event       string    `json:"event" gorm:"size:64;not null;index"`
	Template    string    `json:"template" gorm:"type:text;not null"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var placeholder = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render substitutes {{name}} placeholders. Unknown names are left as written.
func (t NotificationTemplate) Render(vars map[string]string) string {
	return Interpolate(t.Template, vars)
}

// Interpolate fills {{name}} placeholders in text from vars.
func Interpolate(text string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(text, func(m string) string {
		name := placeholder.FindStringSubmatch(m)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

type Branding struct {
	WorkspaceID  string    `json:"workspace_id" gorm:"primaryKey;size:36"`
	BusinessName string    `json:"business_name" gorm:"size:128"`
	LogoURL      string    `json:"logo_url" gorm:"size:500"`
	ThemeColor   string    `json:"theme_color" gorm:"size:16;not null;default:'#1e40af'"`
	ContactEmail string    `json:"contact_email" gorm:"size:254"`
	ContactPhone string    `json:"contact_phone" gorm:"size:20"`
	Address      string    `json:"address" gorm:"type:text"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Branding) TableName() string { return "branding_settings" }

type Legal struct {
	WorkspaceID    string    `json:"workspace_id" gorm:"primaryKey;size:36"`
	PrivacyPolicy  string    `json:"privacy_policy" gorm:"type:text"`
	TermsOfService string    `json:"terms_of_service" gorm:"type:text"`
	ReturnPolicy   string    `json:"return_policy" gorm:"type:text"`
	WarrantyPolicy string    `json:"warranty_policy" gorm:"type:text"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Legal) TableName() string { return "legal_settings" }

// Models lists every table this package owns, for AutoMigrate.
func Models() []any {
	return []any{&BusinessSetting{}, &Tag{}, &NotificationTemplate{}, &Branding{}, &Legal{}}
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

var (
	ErrSettingNotFound  = fmt.Errorf("settings: setting %w", apperr.ErrNotFound)
	ErrTagNotFound      = fmt.Errorf("settings: tag %w", apperr.ErrNotFound)
	ErrTemplateNotFound = fmt.Errorf("settings: template %w", apperr.ErrNotFound)
	ErrTagExists        = fmt.Errorf("settings: tag slug already used %w", apperr.ErrConflict)
	ErrInvalidArgument  = fmt.Errorf("settings: %w", apperr.ErrInvalidArgument)
	ErrForbidden        = fmt.Errorf("settings: %w", apperr.ErrForbidden)
)
