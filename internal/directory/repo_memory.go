package directory

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryRepo(users ...User) *MemoryRepo {
	r := &MemoryRepo{users: map[string]User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *MemoryRepo) Get(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryRepo) ListByRole(ctx context.Context, workspaceID, role string) ([]User, error) {
	return r.filter(func(u User) bool {
		return u.IsActive && u.Role == role && (workspaceID == "" || u.WorkspaceID == workspaceID)
	}), nil
}

func (r *MemoryRepo) ListStoreUsers(ctx context.Context, workspaceID, storeID string) ([]User, error) {
	return r.filter(func(u User) bool {
		return u.IsActive && u.WorkspaceID == workspaceID && u.StoreID == storeID
	}), nil
}

func (r *MemoryRepo) ListWorkspace(ctx context.Context, workspaceID string) ([]User, error) {
	return r.filter(func(u User) bool { return u.WorkspaceID == workspaceID }), nil
}

func (r *MemoryRepo) Upsert(ctx context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.users[u.ID]; ok {
		u.CreatedAt = old.CreatedAt
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryRepo) filter(keep func(User) bool) []User {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []User
	for _, u := range r.users {
		if keep(u) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
