package notifications

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	items    map[string]Notification
	settings map[string]Settings
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: map[string]Notification{}, settings: map[string]Settings{}}
}

func (r *MemoryRepo) Create(ctx context.Context, n Notification) (Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[n.ID] = n
	return n, nil
}

func (r *MemoryRepo) Get(ctx context.Context, workspaceID, userID, id string) (Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.WorkspaceID != workspaceID || n.UserID != userID {
		return Notification{}, ErrNotFound
	}
	return n, nil
}

func (r *MemoryRepo) List(ctx context.Context, f ListFilter) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.items {
		if n.WorkspaceID != f.WorkspaceID || n.UserID != f.UserID {
			continue
		}
		if (f.Status != "" && n.Status != f.Status) || (f.Type != "" && n.Type != f.Type) {
			continue
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Offset >= len(out) {
		return nil, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) MarkRead(ctx context.Context, workspaceID, userID, id string, at time.Time) (Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.WorkspaceID != workspaceID || n.UserID != userID {
		return Notification{}, ErrNotFound
	}
	n.Status = StatusRead
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	r.items[id] = n
	return n, nil
}

func (r *MemoryRepo) MarkAllRead(ctx context.Context, workspaceID, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for id, n := range r.items {
		if n.WorkspaceID == workspaceID && n.UserID == userID && n.Status == StatusUnread {
			n.Status = StatusRead
			n.ReadAt = &at
			r.items[id] = n
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepo) UnreadCount(ctx context.Context, workspaceID, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.items {
		if n.WorkspaceID == workspaceID && n.UserID == userID && n.Status == StatusUnread {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, workspaceID, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.WorkspaceID != workspaceID || n.UserID != userID {
		return ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepo) GetSettings(ctx context.Context, workspaceID, userID string) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[workspaceID+"/"+userID]
	if !ok {
		return Settings{}, ErrSettingsNotFound
	}
	return s, nil
}

func (r *MemoryRepo) SaveSettings(ctx context.Context, s Settings) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[s.WorkspaceID+"/"+s.UserID] = s
	return s, nil
}
