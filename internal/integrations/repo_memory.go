package integrations

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-process Repository used by tests.
type MemoryRepo struct {
	mu           sync.Mutex
	integrations map[string]Integration
	whatsapp     map[string]WhatsAppConfig
	ecommerce    map[string]EcommerceConfig
	logs         []IntegrationLog
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		integrations: map[string]Integration{},
		whatsapp:     map[string]WhatsAppConfig{},
		ecommerce:    map[string]EcommerceConfig{},
	}
}

func (r *MemoryRepo) CreateIntegration(ctx context.Context, in Integration) (Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.integrations {
		if cur.WorkspaceID == in.WorkspaceID && cur.Platform == in.Platform {
			return Integration{}, ErrIntegrationExists
		}
	}
	r.integrations[in.ID] = in
	return in, nil
}

func (r *MemoryRepo) GetIntegration(ctx context.Context, workspaceID, id string) (Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.integrations[id]
	if !ok || in.WorkspaceID != workspaceID {
		return Integration{}, ErrIntegrationNotFound
	}
	return in, nil
}

func (r *MemoryRepo) FindByPlatform(ctx context.Context, workspaceID string, p Platform) (Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, in := range r.integrations {
		if in.WorkspaceID == workspaceID && in.Platform == p {
			return in, nil
		}
	}
	return Integration{}, ErrIntegrationNotFound
}

func (r *MemoryRepo) ListIntegrations(ctx context.Context, workspaceID string, p Platform) ([]Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Integration
	for _, in := range r.integrations {
		if in.WorkspaceID == workspaceID && (p == "" || in.Platform == p) {
			out = append(out, in)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (r *MemoryRepo) SaveIntegration(ctx context.Context, in Integration) (Integration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.integrations[in.ID]
	if !ok || cur.WorkspaceID != in.WorkspaceID {
		return Integration{}, ErrIntegrationNotFound
	}
	in.Platform, in.CreatedAt = cur.Platform, cur.CreatedAt
	r.integrations[in.ID] = in
	return in, nil
}

func (r *MemoryRepo) DeleteIntegration(ctx context.Context, workspaceID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.integrations[id]
	if !ok || in.WorkspaceID != workspaceID {
		return ErrIntegrationNotFound
	}
	delete(r.integrations, id)
	for k, c := range r.whatsapp {
		if c.IntegrationID == id {
			delete(r.whatsapp, k)
		}
	}
	for k, c := range r.ecommerce {
		if c.IntegrationID == id {
			delete(r.ecommerce, k)
		}
	}
	kept := r.logs[:0]
	for _, l := range r.logs {
		if l.IntegrationID != id {
			kept = append(kept, l)
		}
	}
	r.logs = kept
	return nil
}

func (r *MemoryRepo) UpsertWhatsAppConfig(ctx context.Context, cfg WhatsAppConfig) (WhatsAppConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, cur := range r.whatsapp {
		if cur.IntegrationID == cfg.IntegrationID {
			cfg.ID = cur.ID
			cfg.MessagesSent, cfg.MessagesReceived = cur.MessagesSent, cur.MessagesReceived
			cfg.LastMessageSent, cfg.LastMessageReceived = cur.LastMessageSent, cur.LastMessageReceived
			r.whatsapp[k] = cfg
			return cfg, nil
		}
	}
	r.whatsapp[cfg.ID] = cfg
	return cfg, nil
}

func (r *MemoryRepo) GetWhatsAppConfig(ctx context.Context, integrationID string) (WhatsAppConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.whatsapp {
		if c.IntegrationID == integrationID {
			return c, nil
		}
	}
	return WhatsAppConfig{}, ErrConfigNotFound
}

func (r *MemoryRepo) FindWhatsAppConfigByPhone(ctx context.Context, digits string) (WhatsAppConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.whatsapp {
		if onlyDigits(c.PhoneNumber) == digits {
			return c, nil
		}
	}
	return WhatsAppConfig{}, ErrConfigNotFound
}

func (r *MemoryRepo) RecordSent(ctx context.Context, configID string, n int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.whatsapp[configID]
	if !ok {
		return ErrConfigNotFound
	}
	c.MessagesSent += n
	c.LastMessageSent = &at
	r.whatsapp[configID] = c
	return nil
}

func (r *MemoryRepo) RecordReceived(ctx context.Context, configID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.whatsapp[configID]
	if !ok {
		return ErrConfigNotFound
	}
	c.MessagesReceived++
	c.LastMessageReceived = &at
	r.whatsapp[configID] = c
	return nil
}

func (r *MemoryRepo) UpsertEcommerceConfig(ctx context.Context, cfg EcommerceConfig) (EcommerceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, cur := range r.ecommerce {
		if cur.IntegrationID == cfg.IntegrationID {
			cfg.ID = cur.ID
			cfg.ProductsSynced, cfg.OrdersSynced, cfg.CustomersSynced = cur.ProductsSynced, cur.OrdersSynced, cur.CustomersSynced
			cfg.LastProductSync, cfg.LastOrderSync, cfg.LastCustomerSync = cur.LastProductSync, cur.LastOrderSync, cur.LastCustomerSync
			r.ecommerce[k] = cfg
			return cfg, nil
		}
	}
	r.ecommerce[cfg.ID] = cfg
	return cfg, nil
}

func (r *MemoryRepo) GetEcommerceConfig(ctx context.Context, integrationID string) (EcommerceConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.ecommerce {
		if c.IntegrationID == integrationID {
			return c, nil
		}
	}
	return EcommerceConfig{}, ErrConfigNotFound
}

func (r *MemoryRepo) AddLog(ctx context.Context, l IntegrationLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, l)
	return nil
}

func (r *MemoryRepo) ListLogs(ctx context.Context, f LogFilter) ([]IntegrationLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []IntegrationLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		l := r.logs[i]
		switch {
		case l.WorkspaceID != f.WorkspaceID,
			f.IntegrationID != "" && l.IntegrationID != f.IntegrationID,
			f.Level != "" && l.Level != f.Level:
			continue
		}
		out = append(out, l)
	}
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}
