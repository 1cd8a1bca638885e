package settings

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TagFilter struct {
	WorkspaceID string
	Category    string
	ActiveOnly  bool
}

type TemplateFilter struct {
	WorkspaceID string
	Channel     Channel
	Event       string
	ActiveOnly  bool
}

type Repository interface {
	UpsertSetting(ctx context.Context, s BusinessSetting) (BusinessSetting, error)
	GetSetting(ctx context.Context, workspaceID, key string) (BusinessSetting, error)
	ListSettings(ctx context.Context, workspaceID string) ([]BusinessSetting, error)
	DeleteSetting(ctx context.Context, workspaceID, key string) error

	CreateTag(ctx context.Context, t Tag) (Tag, error)
	GetTag(ctx context.Context, workspaceID, id string) (Tag, error)
	ListTags(ctx context.Context, f TagFilter) ([]Tag, error)
	UpdateTag(ctx context.Context, t Tag) (Tag, error)
	DeleteTag(ctx context.Context, workspaceID, id string) error

	CreateTemplate(ctx context.Context, t NotificationTemplate) (NotificationTemplate, error)
	GetTemplate(ctx context.Context, workspaceID, id string) (NotificationTemplate, error)
	ListTemplates(ctx context.Context, f TemplateFilter) ([]NotificationTemplate, error)
	UpdateTemplate(ctx context.Context, t NotificationTemplate) (NotificationTemplate, error)
	DeleteTemplate(ctx context.Context, workspaceID, id string) error

	// GetBranding and GetLegal report a missing row through the bool
	// instead of an error.
	GetBranding(ctx context.Context, workspaceID string) (Branding, bool, error)
	SaveBranding(ctx context.Context, b Branding) (Branding, error)
	GetLegal(ctx context.Context, workspaceID string) (Legal, bool, error)
	SaveLegal(ctx context.Context, l Legal) (Legal, error)
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

func (r *GormRepo) UpsertSetting(ctx context.Context, s BusinessSetting) (BusinessSetting, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&s).Error
	if err != nil {
		return BusinessSetting{}, err
	}
	return r.GetSetting(ctx, s.WorkspaceID, s.Key)
}

func (r *GormRepo) GetSetting(ctx context.Context, workspaceID, key string) (BusinessSetting, error) {
	var s BusinessSetting
	err := r.db.WithContext(ctx).Where("workspace_id = ? AND key = ?", workspaceID, key).First(&s).Error
	return s, notFound(err, ErrSettingNotFound)
}

func (r *GormRepo) ListSettings(ctx context.Context, workspaceID string) ([]BusinessSetting, error) {
	var out []BusinessSetting
	err := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).Order("key").Find(&out).Error
	return out, err
}

func (r *GormRepo) DeleteSetting(ctx context.Context, workspaceID, key string) error {
	res := r.db.WithContext(ctx).Where("workspace_id = ? AND key = ?", workspaceID, key).Delete(&BusinessSetting{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSettingNotFound
	}
	return nil
}

func tagConflict(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrTagExists
	}
	return err
}

func (r *GormRepo) CreateTag(ctx context.Context, t Tag) (Tag, error) {
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return Tag{}, tagConflict(err)
	}
	return t, nil
}

func (r *GormRepo) GetTag(ctx context.Context, workspaceID, id string) (Tag, error) {
	var t Tag
	err := r.db.WithContext(ctx).Where("workspace_id = ? AND id = ?", workspaceID, id).First(&t).Error
	return t, notFound(err, ErrTagNotFound)
}

func (r *GormRepo) ListTags(ctx context.Context, f TagFilter) ([]Tag, error) {
	q := r.db.WithContext(ctx).Where("workspace_id = ?", f.WorkspaceID)
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.ActiveOnly {
		q = q.Where("is_active")
	}
	var out []Tag
	err := q.Order("name").Find(&out).Error
	return out, err
}

func (r *GormRepo) UpdateTag(ctx context.Context, t Tag) (Tag, error) {
	res := r.db.WithContext(ctx).Model(&Tag{}).
		Where("workspace_id = ? AND id = ?", t.WorkspaceID, t.ID).
		Select("name", "slug", "category", "is_active", "auto_rule", "updated_at").
		Updates(&t)
	if res.Error != nil {
		return Tag{}, tagConflict(res.Error)
	}
	if res.RowsAffected == 0 {
		return Tag{}, ErrTagNotFound
	}
	return r.GetTag(ctx, t.WorkspaceID, t.ID)
}

func (r *GormRepo) DeleteTag(ctx context.Context, workspaceID, id string) error {
	res := r.db.WithContext(ctx).Where("workspace_id = ? AND id = ?", workspaceID, id).Delete(&Tag{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTagNotFound
	}
	return nil
}

func (r *GormRepo) CreateTemplate(ctx context.Context, t NotificationTemplate) (NotificationTemplate, error) {
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return NotificationTemplate{}, err
	}
	return t, nil
}

func (r *GormRepo) GetTemplate(ctx context.Context, workspaceID, id string) (NotificationTemplate, error) {
	var t NotificationTemplate
	err := r.db.WithContext(ctx).Where("workspace_id = ? AND id = ?", workspaceID, id).First(&t).Error
	return t, notFound(err, ErrTemplateNotFound)
}

func (r *GormRepo) ListTemplates(ctx context.Context, f TemplateFilter) ([]NotificationTemplate, error) {
	q := r.db.WithContext(ctx).Where("workspace_id = ?", f.WorkspaceID)
	if f.Channel != "" {
		q = q.Where("channel = ?", f.Channel)
	}
	if f.Event != "" {
		q = q.Where("event = ?", f.Event)
	}
	if f.ActiveOnly {
		q = q.Where("is_active")
	}
	var out []NotificationTemplate
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *GormRepo) UpdateTemplate(ctx context.Context, t NotificationTemplate) (NotificationTemplate, error) {
	res := r.db.WithContext(ctx).Model(&NotificationTemplate{}).
		Where("workspace_id = ? AND id = ?", t.WorkspaceID, t.ID).
		Select("name", "channel", "event", "template", "is_active", "updated_at").
		Updates(&t)
	if res.Error != nil {
		return NotificationTemplate{}, res.Error
	}
	if res.RowsAffected == 0 {
		return NotificationTemplate{}, ErrTemplateNotFound
	}
	return r.GetTemplate(ctx, t.WorkspaceID, t.ID)
}

func (r *GormRepo) DeleteTemplate(ctx context.Context, workspaceID, id string) error {
	res := r.db.WithContext(ctx).Where("workspace_id = ? AND id = ?", workspaceID, id).Delete(&NotificationTemplate{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}

func (r *GormRepo) GetBranding(ctx context.Context, workspaceID string) (Branding, bool, error) {
	var b Branding
	err := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Branding{}, false, nil
	}
	return b, err == nil, err
}

// SaveBranding writes every column, inserting the row on first use.
func (r *GormRepo) SaveBranding(ctx context.Context, b Branding) (Branding, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "workspace_id"}},
		UpdateAll: true,
	}).Create(&b).Error
	return b, err
}

func (r *GormRepo) GetLegal(ctx context.Context, workspaceID string) (Legal, bool, error) {
	var l Legal
	err := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID).First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Legal{}, false, nil
	}
	return l, err == nil, err
}

func (r *GormRepo) SaveLegal(ctx context.Context, l Legal) (Legal, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "workspace_id"}},
		UpdateAll: true,
	}).Create(&l).Error
	return l, err
}
