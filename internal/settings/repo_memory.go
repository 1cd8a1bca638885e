package settings

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-process Repository used by tests.
type MemoryRepo struct {
	mu        sync.Mutex
	settings  map[[2]string]BusinessSetting
	tags      map[string]Tag
	templates map[string]NotificationTemplate
	branding  map[string]Branding
	legal     map[string]Legal
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		settings:  map[[2]string]BusinessSetting{},
		tags:      map[string]Tag{},
		templates: map[string]NotificationTemplate{},
		branding:  map[string]Branding{},
		legal:     map[string]Legal{},
	}
}

func (r *MemoryRepo) UpsertSetting(ctx context.Context, s BusinessSetting) (BusinessSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]string{s.WorkspaceID, s.Key}
	if old, ok := r.settings[k]; ok {
		s.ID = old.ID
	}
	r.settings[k] = s
	return s, nil
}

func (r *MemoryRepo) GetSetting(ctx context.Context, workspaceID, key string) (BusinessSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[[2]string{workspaceID, key}]
	if !ok {
		return BusinessSetting{}, ErrSettingNotFound
	}
	return s, nil
}

func (r *MemoryRepo) ListSettings(ctx context.Context, workspaceID string) ([]BusinessSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []BusinessSetting
	for _, s := range r.settings {
		if s.WorkspaceID == workspaceID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (r *MemoryRepo) DeleteSetting(ctx context.Context, workspaceID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]string{workspaceID, key}
	if _, ok := r.settings[k]; !ok {
		return ErrSettingNotFound
	}
	delete(r.settings, k)
	return nil
}

func (r *MemoryRepo) slugTaken(t Tag) bool {
	for _, o := range r.tags {
		if o.ID != t.ID && o.WorkspaceID == t.WorkspaceID && o.Slug == t.Slug {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) CreateTag(ctx context.Context, t Tag) (Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slugTaken(t) {
		return Tag{}, ErrTagExists
	}
	r.tags[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) GetTag(ctx context.Context, workspaceID, id string) (Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[id]
	if !ok || t.WorkspaceID != workspaceID {
		return Tag{}, ErrTagNotFound
	}
	return t, nil
}

func (r *MemoryRepo) ListTags(ctx context.Context, f TagFilter) ([]Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Tag
	for _, t := range r.tags {
		if t.WorkspaceID != f.WorkspaceID {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.ActiveOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) UpdateTag(ctx context.Context, t Tag) (Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.tags[t.ID]
	if !ok || old.WorkspaceID != t.WorkspaceID {
		return Tag{}, ErrTagNotFound
	}
	if r.slugTaken(t) {
		return Tag{}, ErrTagExists
	}
	t.CreatedAt = old.CreatedAt
	r.tags[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) DeleteTag(ctx context.Context, workspaceID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tags[id]
	if !ok || t.WorkspaceID != workspaceID {
		return ErrTagNotFound
	}
	delete(r.tags, id)
	return nil
}

func (r *MemoryRepo) CreateTemplate(ctx context.Context, t NotificationTemplate) (NotificationTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) GetTemplate(ctx context.Context, workspaceID, id string) (NotificationTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok || t.WorkspaceID != workspaceID {
		return NotificationTemplate{}, ErrTemplateNotFound
	}
	return t, nil
}

func (r *MemoryRepo) ListTemplates(ctx context.Context, f TemplateFilter) ([]NotificationTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []NotificationTemplate
	for _, t := range r.templates {
		if t.WorkspaceID != f.WorkspaceID {
			continue
		}
		if f.Channel != "" && t.Channel != f.Channel {
			continue
		}
		if f.Event != "" && t.Event != f.Event {
			continue
		}
		if f.ActiveOnly && !t.IsActive {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *MemoryRepo) UpdateTemplate(ctx context.Context, t NotificationTemplate) (NotificationTemplate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.templates[t.ID]
	if !ok || old.WorkspaceID != t.WorkspaceID {
		return NotificationTemplate{}, ErrTemplateNotFound
	}
	t.CreatedAt = old.CreatedAt
	r.templates[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) DeleteTemplate(ctx context.Context, workspaceID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.templates[id]
	if !ok || t.WorkspaceID != workspaceID {
		return ErrTemplateNotFound
	}
	delete(r.templates, id)
	return nil
}

func (r *MemoryRepo) GetBranding(ctx context.Context, workspaceID string) (Branding, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.branding[workspaceID]
	return b, ok, nil
}

func (r *MemoryRepo) SaveBranding(ctx context.Context, b Branding) (Branding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branding[b.WorkspaceID] = b
	return b, nil
}

func (r *MemoryRepo) GetLegal(ctx context.Context, workspaceID string) (Legal, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.legal[workspaceID]
	return l, ok, nil
}

func (r *MemoryRepo) SaveLegal(ctx context.Context, l Legal) (Legal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.legal[l.WorkspaceID] = l
	return l, nil
}
