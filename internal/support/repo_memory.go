package support

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu            sync.Mutex
	tickets       map[string]Ticket
	messages      []Message
	notifications []Notification
	settings      map[string]Settings
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{tickets: map[string]Ticket{}, settings: map[string]Settings{}}
}

func (r *MemoryRepo) CreateTicket(ctx context.Context, t Ticket, opening Message) (Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := TicketIDPrefix(t.CreatedAt)
	last := ""
	for _, existing := range r.tickets {
		if strings.HasPrefix(existing.TicketID, prefix) && existing.TicketID > last {
			last = existing.TicketID
		}
	}
	id, err := NextTicketID(t.CreatedAt, last)
	if err != nil {
		return Ticket{}, err
	}
	t.TicketID = id
	r.tickets[t.ID] = t
	r.messages = append(r.messages, opening)
	return t, nil
}

func (r *MemoryRepo) GetTicket(ctx context.Context, id string) (Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[id]
	if !ok {
		return Ticket{}, ErrTicketNotFound
	}
	return t, nil
}

func (r *MemoryRepo) ListTickets(ctx context.Context, f TicketFilter) ([]Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	search := strings.ToLower(f.Search)
	var out []Ticket
	for _, t := range r.tickets {
		switch {
		case f.WorkspaceID != "" && t.WorkspaceID != f.WorkspaceID,
			f.Status != "" && t.Status != f.Status,
			len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status),
			f.Priority != "" && t.Priority != f.Priority,
			f.Category != "" && t.Category != f.Category,
			f.AssignedTo != "" && t.AssignedTo != f.AssignedTo,
			f.UnassignedOnly && t.AssignedTo != "",
			f.OverdueNotNotified && t.OverdueNotifiedAt != nil,
			f.ResolvedBefore != nil && (t.ResolvedAt == nil || !t.ResolvedAt.Before(*f.ResolvedBefore)):
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Title+"\x00"+t.Summary+"\x00"+t.TicketID), search) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
		if len(out) > f.Limit {
			out = out[:f.Limit]
		}
	}
	return out, nil
}

func (r *MemoryRepo) SaveTicket(ctx context.Context, t Ticket, msgs ...Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[t.ID]; !ok {
		return ErrTicketNotFound
	}
	r.tickets[t.ID] = t
	r.messages = append(r.messages, msgs...)
	return nil
}

func (r *MemoryRepo) ListMessages(ctx context.Context, ticketID string, includeInternal bool) ([]Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Message
	for _, m := range r.messages {
		if m.TicketID == ticketID && (includeInternal || !m.IsInternal) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepo) OpenCountsByAssignee(ctx context.Context, assigneeIDs []string) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, t := range r.tickets {
		if t.IsOpen() && slices.Contains(assigneeIDs, t.AssignedTo) {
			out[t.AssignedTo]++
		}
	}
	return out, nil
}

func (r *MemoryRepo) Stats(ctx context.Context, workspaceID string, dayStart time.Time) (DashboardStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := DashboardStats{PriorityBreakdown: map[string]int{}}
	var (
		total     time.Duration
		responded int
	)
	dayEnd := dayStart.Add(24 * time.Hour)
	for _, t := range r.tickets {
		if workspaceID != "" && t.WorkspaceID != workspaceID {
			continue
		}
		st.TotalTickets++
		st.PriorityBreakdown[string(t.Priority)]++
		if t.IsOpen() {
			st.OpenTickets++
		}
		if t.Status == StatusResolved && t.ResolvedAt != nil && !t.ResolvedAt.Before(dayStart) && t.ResolvedAt.Before(dayEnd) {
			st.ResolvedToday++
		}
		if d, ok := t.ResponseTime(); ok {
			total += d
			responded++
		}
	}
	if responded > 0 {
		st.AvgResponseHours = roundHours(total / time.Duration(responded))
	}
	return st, nil
}

func (r *MemoryRepo) CreateNotifications(ctx context.Context, ns ...Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, ns...)
	return nil
}

func (r *MemoryRepo) ListNotifications(ctx context.Context, recipientID string, limit, offset int) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].RecipientID == recipientID {
			out = append(out, r.notifications[i])
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) MarkNotificationRead(ctx context.Context, recipientID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, n := range r.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			r.notifications[i].IsRead = true
			return nil
		}
	}
	return ErrNotificationNotFound
}

func (r *MemoryRepo) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.notifications {
		if r.notifications[i].RecipientID == recipientID && !r.notifications[i].IsRead {
			r.notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) GetSettings(ctx context.Context, workspaceID string) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settings[workspaceID]
	if !ok {
		return Settings{}, ErrSettingsNotFound
	}
	return s, nil
}

func (r *MemoryRepo) SaveSettings(ctx context.Context, s Settings) (Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[s.WorkspaceID] = s
	return s, nil
}

// Notifications returns every stored notification in insertion order.
func (r *MemoryRepo) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.notifications)
}
