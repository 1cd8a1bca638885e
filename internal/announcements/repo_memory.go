package announcements

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
	announcements map[string]Announcement
	reads         map[[2]string]Read
	messages      map[string]TeamMessage
	messageReads  map[[2]string]MessageRead
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		announcements: map[string]Announcement{},
		reads:         map[[2]string]Read{},
		messages:      map[string]TeamMessage{},
		messageReads:  map[[2]string]MessageRead{},
	}
}

func (r *MemoryRepo) CreateAnnouncement(ctx context.Context, a Announcement) (Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.announcements[a.ID] = a
	return a, nil
}

func (r *MemoryRepo) GetAnnouncement(ctx context.Context, id string) (Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.announcements[id]
	if !ok {
		return Announcement{}, ErrAnnouncementNotFound
	}
	return a, nil
}

func (r *MemoryRepo) UpdateAnnouncement(ctx context.Context, a Announcement) (Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.announcements[a.ID]; !ok {
		return Announcement{}, ErrAnnouncementNotFound
	}
	r.announcements[a.ID] = a
	return a, nil
}

func (r *MemoryRepo) DeleteAnnouncement(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.announcements[id]; !ok {
		return ErrAnnouncementNotFound
	}
	delete(r.announcements, id)
	for k := range r.reads {
		if k[0] == id {
			delete(r.reads, k)
		}
	}
	return nil
}

func (r *MemoryRepo) ListAnnouncements(ctx context.Context, q AnnouncementQuery) ([]Announcement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	search := strings.ToLower(q.Search)
	var out []Announcement
	for _, a := range r.announcements {
		if q.Viewer != nil && !a.VisibleTo(*q.Viewer, q.Now) {
			continue
		}
		if q.PinnedOnly && !a.IsPinned {
			continue
		}
		if q.Priority != "" && a.Priority != q.Priority {
			continue
		}
		if q.Type != "" && a.Type != q.Type {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(a.Title), search) && !strings.Contains(strings.ToLower(a.Content), search) {
			continue
		}
		if q.UnreadBy != "" {
			if _, ok := r.reads[[2]string{a.ID, q.UnreadBy}]; ok {
				continue
			}
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return Less(out[i], out[j]) })
	return window(out, q.Limit, q.Offset), nil
}

func window[T any](rows []T, limit, offset int) []T {
	if limit <= 0 {
		return rows
	}
	if offset >= len(rows) {
		return nil
	}
	return rows[offset:min(offset+limit, len(rows))]
}

func (r *MemoryRepo) MarkRead(ctx context.Context, announcementID, userID string, at time.Time) (Read, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]string{announcementID, userID}
	if rd, ok := r.reads[k]; ok {
		return rd, nil
	}
	rd := Read{AnnouncementID: announcementID, UserID: userID, ReadAt: at}
	r.reads[k] = rd
	return rd, nil
}

func (r *MemoryRepo) Acknowledge(ctx context.Context, announcementID, userID string, at time.Time) (Read, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]string{announcementID, userID}
	rd, ok := r.reads[k]
	if !ok {
		rd = Read{AnnouncementID: announcementID, UserID: userID, ReadAt: at}
	}
	if !rd.Acknowledged {
		rd.Acknowledged = true
		rd.AcknowledgedAt = &at
	}
	r.reads[k] = rd
	return rd, nil
}

// ReadCount reports how many read rows exist for an announcement.
func (r *MemoryRepo) ReadCount(announcementID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.reads {
		if k[0] == announcementID {
			n++
		}
	}
	return n
}

func (r *MemoryRepo) replies(id string) int {
	n := 0
	for _, m := range r.messages {
		if m.ParentID == id {
			n++
		}
	}
	return n
}

func (r *MemoryRepo) CreateMessage(ctx context.Context, m TeamMessage) (TeamMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.Recipients = slices.Clone(m.Recipients)
	r.messages[m.ID] = m
	return m, nil
}

func (r *MemoryRepo) GetMessage(ctx context.Context, id string) (TeamMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return TeamMessage{}, ErrMessageNotFound
	}
	m.ReplyCount = r.replies(id)
	return m, nil
}

func (r *MemoryRepo) UpdateMessage(ctx context.Context, m TeamMessage) (TeamMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[m.ID]; !ok {
		return TeamMessage{}, ErrMessageNotFound
	}
	r.messages[m.ID] = m
	return m, nil
}

func (r *MemoryRepo) DeleteMessage(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return ErrMessageNotFound
	}
	delete(r.messages, id)
	return nil
}

func (r *MemoryRepo) ListMessages(ctx context.Context, q MessageQuery) ([]TeamMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TeamMessage
	for _, m := range r.messages {
		if m.WorkspaceID != q.WorkspaceID {
			continue
		}
		if q.StoreID != "" && m.StoreID != q.StoreID {
			continue
		}
		if q.Participant != "" {
			if q.RecipientOnly && !m.IsRecipient(q.Participant) {
				continue
			}
			if !q.RecipientOnly && !m.IsParticipant(q.Participant) {
				continue
			}
		}
		if q.UrgentOnly && !m.IsUrgent {
			continue
		}
		if q.RootsOnly && m.ParentID != "" {
			continue
		}
		if q.MessageType != "" && m.MessageType != q.MessageType {
			continue
		}
		if q.UnreadBy != "" {
			if _, ok := r.messageReads[[2]string{m.ID, q.UnreadBy}]; ok {
				continue
			}
		}
		m.ReplyCount = r.replies(m.ID)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if q.ByReplies && a.ReplyCount != b.ReplyCount {
			return a.ReplyCount > b.ReplyCount
		}
		if !q.ByReplies && a.IsUrgent != b.IsUrgent {
			return a.IsUrgent
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return window(out, q.Limit, q.Offset), nil
}

func (r *MemoryRepo) MarkMessageRead(ctx context.Context, messageID, userID string, at time.Time) (MessageRead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]string{messageID, userID}
	if mr, ok := r.messageReads[k]; ok {
		return mr, nil
	}
	mr := MessageRead{MessageID: messageID, UserID: userID, ReadAt: at}
	r.messageReads[k] = mr
	return mr, nil
}

func (r *MemoryRepo) MarkResponded(ctx context.Context, messageID, userID string, at time.Time) (MessageRead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := [2]string{messageID, userID}
	mr, ok := r.messageReads[k]
	if !ok {
		mr = MessageRead{MessageID: messageID, UserID: userID, ReadAt: at}
	}
	if !mr.Responded {
		mr.Responded = true
		mr.RespondedAt = &at
	}
	r.messageReads[k] = mr
	return mr, nil
}
