package integrations

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LogFilter struct {
	WorkspaceID   string
	IntegrationID string
	Level         LogLevel
	Limit         int
	Offset        int
}

type Repository interface {
	CreateIntegration(ctx context.Context, in Integration) (Integration, error)
	GetIntegration(ctx context.Context, workspaceID, id string) (Integration, error)
	FindByPlatform(ctx context.Context, workspaceID string, p Platform) (Integration, error)
	ListIntegrations(ctx context.Context, workspaceID string, p Platform) ([]Integration, error)
	SaveIntegration(ctx context.Context, in Integration) (Integration, error)
	// DeleteIntegration removes the integration with its configs and logs.
	DeleteIntegration(ctx context.Context, workspaceID, id string) error

	UpsertWhatsAppConfig(ctx context.Context, cfg WhatsAppConfig) (WhatsAppConfig, error)
	GetWhatsAppConfig(ctx context.Context, integrationID string) (WhatsAppConfig, error)
	// FindWhatsAppConfigByPhone matches the digits of a business number.
	FindWhatsAppConfigByPhone(ctx context.Context, digits string) (WhatsAppConfig, error)
	RecordSent(ctx context.Context, configID string, n int, at time.Time) error
	RecordReceived(ctx context.Context, configID string, at time.Time) error

	UpsertEcommerceConfig(ctx context.Context, cfg EcommerceConfig) (EcommerceConfig, error)
	GetEcommerceConfig(ctx context.Context, integrationID string) (EcommerceConfig, error)

	AddLog(ctx context.Context, l IntegrationLog) error
	ListLogs(ctx context.Context, f LogFilter) ([]IntegrationLog, error)
}

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo { return &GormRepo{db: db} }

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func (r *GormRepo) CreateIntegration(ctx context.Context, in Integration) (Integration, error) {
	err := r.db.WithContext(ctx).Create(&in).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Integration{}, ErrIntegrationExists
	}
	return in, err
}

func (r *GormRepo) GetIntegration(ctx context.Context, workspaceID, id string) (Integration, error) {
	var out Integration
	err := r.db.WithContext(ctx).Where("id = ? AND workspace_id = ?", id, workspaceID).First(&out).Error
	return out, notFound(err, ErrIntegrationNotFound)
}

func (r *GormRepo) FindByPlatform(ctx context.Context, workspaceID string, p Platform) (Integration, error) {
	var out Integration
	err := r.db.WithContext(ctx).Where("workspace_id = ? AND platform = ?", workspaceID, p).First(&out).Error
	return out, notFound(err, ErrIntegrationNotFound)
}

func (r *GormRepo) ListIntegrations(ctx context.Context, workspaceID string, p Platform) ([]Integration, error) {
	q := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if p != "" {
		q = q.Where("platform = ?", p)
	}
	var out []Integration
	err := q.Order("platform").Find(&out).Error
	return out, err
}

func (r *GormRepo) SaveIntegration(ctx context.Context, in Integration) (Integration, error) {
	res := r.db.WithContext(ctx).Model(&Integration{}).
		Where("id = ? AND workspace_id = ?", in.ID, in.WorkspaceID).
		Select("name", "api_key", "api_secret", "webhook_url", "config_data", "status",
			"is_enabled", "last_error", "last_sync", "updated_at").
		Updates(&in)
	if res.Error != nil {
		return Integration{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Integration{}, ErrIntegrationNotFound
	}
	return r.GetIntegration(ctx, in.WorkspaceID, in.ID)
}

func (r *GormRepo) DeleteIntegration(ctx context.Context, workspaceID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND workspace_id = ?", id, workspaceID).Delete(&Integration{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrIntegrationNotFound
		}
		for _, m := range []any{&WhatsAppConfig{}, &EcommerceConfig{}, &IntegrationLog{}} {
			if err := tx.Where("integration_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormRepo) UpsertWhatsAppConfig(ctx context.Context, cfg WhatsAppConfig) (WhatsAppConfig, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "integration_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"phone_number", "business_name", "business_description", "welcome_message",
			"order_confirmation_template", "order_status_template", "auto_reply_enabled",
			"order_notifications_enabled", "marketing_messages_enabled",
		}),
	}).Create(&cfg).Error
	if err != nil {
		return WhatsAppConfig{}, err
	}
	return r.GetWhatsAppConfig(ctx, cfg.IntegrationID)
}

func (r *GormRepo) GetWhatsAppConfig(ctx context.Context, integrationID string) (WhatsAppConfig, error) {
	var out WhatsAppConfig
	err := r.db.WithContext(ctx).Where("integration_id = ?", integrationID).First(&out).Error
	return out, notFound(err, ErrConfigNotFound)
}

func (r *GormRepo) FindWhatsAppConfigByPhone(ctx context.Context, digits string) (WhatsAppConfig, error) {
	var out WhatsAppConfig
	err := r.db.WithContext(ctx).
		Where("regexp_replace(phone_number, '[^0-9]', '', 'g') = ?", digits).
		First(&out).Error
	return out, notFound(err, ErrConfigNotFound)
}

func (r *GormRepo) RecordSent(ctx context.Context, configID string, n int, at time.Time) error {
	return r.db.WithContext(ctx).Model(&WhatsAppConfig{}).Where("id = ?", configID).
		UpdateColumns(map[string]any{
			"messages_sent":     gorm.Expr("messages_sent + ?", n),
			"last_message_sent": at,
		}).Error
}

func (r *GormRepo) RecordReceived(ctx context.Context, configID string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&WhatsAppConfig{}).Where("id = ?", configID).
		UpdateColumns(map[string]any{
			"messages_received":     gorm.Expr("messages_received + 1"),
			"last_message_received": at,
		}).Error
}

func (r *GormRepo) UpsertEcommerceConfig(ctx context.Context, cfg EcommerceConfig) (EcommerceConfig, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "integration_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"store_url", "store_name", "sync_products", "sync_orders", "sync_customers",
			"sync_inventory", "sync_interval_hours",
		}),
	}).Create(&cfg).Error
	if err != nil {
		return EcommerceConfig{}, err
	}
	return r.GetEcommerceConfig(ctx, cfg.IntegrationID)
}

func (r *GormRepo) GetEcommerceConfig(ctx context.Context, integrationID string) (EcommerceConfig, error) {
	var out EcommerceConfig
	err := r.db.WithContext(ctx).Where("integration_id = ?", integrationID).First(&out).Error
	return out, notFound(err, ErrConfigNotFound)
}

func (r *GormRepo) AddLog(ctx context.Context, l IntegrationLog) error {
	return r.db.WithContext(ctx).Create(&l).Error
}

func (r *GormRepo) ListLogs(ctx context.Context, f LogFilter) ([]IntegrationLog, error) {
	q := r.db.WithContext(ctx).Where("workspace_id = ?", f.WorkspaceID)
	if f.IntegrationID != "" {
		q = q.Where("integration_id = ?", f.IntegrationID)
	}
	if f.Level != "" {
		q = q.Where("level = ?", f.Level)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []IntegrationLog
	err := q.Order("created_at DESC, id").Find(&out).Error
	return out, err
}
