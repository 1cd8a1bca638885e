package telecalling

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-process Repository used by tests.
type MemoryRepo struct {
	mu            sync.Mutex
	visits        map[string]Visit
	assignments   map[string]Assignment
	calls         map[string]CallLog
	followUps     map[string]FollowUp
	profiles      map[string]Profile
	notifications []Notification
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		visits:      map[string]Visit{},
		assignments: map[string]Assignment{},
		calls:       map[string]CallLog{},
		followUps:   map[string]FollowUp{},
		profiles:    map[string]Profile{},
	}
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

func sortBy[T any](rows []T, at func(T) time.Time, id func(T) string, desc bool) {
	sort.Slice(rows, func(i, j int) bool {
		ti, tj := at(rows[i]), at(rows[j])
		if !ti.Equal(tj) {
			if desc {
				return ti.After(tj)
			}
			return ti.Before(tj)
		}
		return id(rows[i]) < id(rows[j])
	})
}

func (r *MemoryRepo) inWorkspace(s Scope, workspaceID string) bool {
	return s.WorkspaceID == "" || s.WorkspaceID == workspaceID
}

// callerAssignment reports whether assignment id belongs to s.TelecallerID.
func (r *MemoryRepo) callerAssignment(s Scope, id string) bool {
	if s.TelecallerID == "" {
		return true
	}
	a, ok := r.assignments[id]
	return ok && a.TelecallerID == s.TelecallerID
}

func (r *MemoryRepo) CreateVisit(ctx context.Context, v Visit) (Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits[v.ID] = v
	return v, nil
}

func (r *MemoryRepo) GetVisit(ctx context.Context, id string) (Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visits[id]
	if !ok {
		return Visit{}, ErrVisitNotFound
	}
	return v, nil
}

func (r *MemoryRepo) UpdateVisit(ctx context.Context, v Visit) (Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.visits[v.ID]
	if !ok {
		return Visit{}, ErrVisitNotFound
	}
	v.AssignedToTelecaller = cur.AssignedToTelecaller
	r.visits[v.ID] = v
	return v, nil
}

func (r *MemoryRepo) DeleteVisit(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.visits[id]; !ok {
		return ErrVisitNotFound
	}
	delete(r.visits, id)
	return nil
}

func (r *MemoryRepo) ListVisits(ctx context.Context, f VisitFilter) ([]Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Visit
	for _, v := range r.visits {
		if !r.inWorkspace(f.Scope, v.WorkspaceID) {
			continue
		}
		if f.Scope.SalesRepID != "" && v.SalesRepID != f.Scope.SalesRepID {
			continue
		}
		if f.Scope.TelecallerID != "" && !r.visitAssignedTo(v.ID, f.Scope.TelecallerID) {
			continue
		}
		if f.Unassigned && v.AssignedToTelecaller {
			continue
		}
		if f.LeadQuality != "" && v.LeadQuality != f.LeadQuality {
			continue
		}
		if f.From != nil && v.VisitTimestamp.Before(*f.From) {
			continue
		}
		if f.To != nil && !v.VisitTimestamp.Before(*f.To) {
			continue
		}
		if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" &&
			!strings.Contains(strings.ToLower(v.CustomerName), s) && !strings.Contains(v.CustomerPhone, s) {
			continue
		}
		out = append(out, v)
	}
	sortBy(out, func(v Visit) time.Time { return v.VisitTimestamp }, func(v Visit) string { return v.ID }, true)
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) visitAssignedTo(visitID, telecallerID string) bool {
	for _, a := range r.assignments {
		if a.VisitID == visitID && a.TelecallerID == telecallerID {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) CreateAssignments(ctx context.Context, as []Assignment, notes []Notification) ([]Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	for _, a := range as {
		v, ok := r.visits[a.VisitID]
		if !ok || v.AssignedToTelecaller || seen[a.VisitID] {
			return nil, ErrAlreadyAssigned
		}
		seen[a.VisitID] = true
	}
	for _, a := range as {
		v := r.visits[a.VisitID]
		v.AssignedToTelecaller = true
		v.UpdatedAt = a.CreatedAt
		r.visits[v.ID] = v
		r.assignments[a.ID] = a
	}
	r.notifications = append(r.notifications, notes...)
	return as, nil
}

func (r *MemoryRepo) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return Assignment{}, ErrAssignmentNotFound
	}
	return a, nil
}

func (r *MemoryRepo) UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[a.ID]; !ok {
		return Assignment{}, ErrAssignmentNotFound
	}
	r.assignments[a.ID] = a
	return a, nil
}

func (r *MemoryRepo) DeleteAssignment(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.assignments[id]
	if !ok {
		return ErrAssignmentNotFound
	}
	delete(r.assignments, id)
	for _, other := range r.assignments {
		if other.VisitID == a.VisitID {
			return nil
		}
	}
	if v, ok := r.visits[a.VisitID]; ok {
		v.AssignedToTelecaller = false
		r.visits[v.ID] = v
	}
	return nil
}

func (r *MemoryRepo) ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Assignment
	for _, a := range r.assignments {
		if !r.inWorkspace(f.Scope, a.WorkspaceID) {
			continue
		}
		if f.Scope.TelecallerID != "" && a.TelecallerID != f.Scope.TelecallerID {
			continue
		}
		if f.Scope.SalesRepID != "" && r.visits[a.VisitID].SalesRepID != f.Scope.SalesRepID {
			continue
		}
		if f.VisitID != "" && a.VisitID != f.VisitID {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if len(f.CallStatuses) > 0 && !r.hasCall(a.ID, f.CallStatuses, f.CallSentiment) {
			continue
		}
		out = append(out, a)
	}
	sortBy(out, func(a Assignment) time.Time { return a.CreatedAt }, func(a Assignment) string { return a.ID }, true)
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) hasCall(assignmentID string, statuses []CallStatus, sentiment Sentiment) bool {
	for _, l := range r.calls {
		if l.AssignmentID == assignmentID && slices.Contains(statuses, l.CallStatus) &&
			(sentiment == "" || l.Sentiment == sentiment) {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) CreateCallLog(ctx context.Context, l CallLog, a Assignment, p Profile, notes []Notification) (CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.assignments[a.ID]; !ok {
		return CallLog{}, ErrAssignmentNotFound
	}
	r.calls[l.ID] = l
	r.assignments[a.ID] = a
	if cur, ok := r.profileByPhone(p.WorkspaceID, p.Phone); ok {
		cur.TelecallerFeedback = p.TelecallerFeedback
		cur.EngagementScore = p.EngagementScore
		cur.ConversionLikelihood = p.ConversionLikelihood
		cur.LastContact = p.LastContact
		cur.UpdatedAt = p.UpdatedAt
		p = cur
	}
	r.profiles[p.ID] = p
	r.notifications = append(r.notifications, notes...)
	return l, nil
}

func (r *MemoryRepo) GetCallLog(ctx context.Context, id string) (CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.calls[id]
	if !ok {
		return CallLog{}, ErrCallLogNotFound
	}
	return l, nil
}

func (r *MemoryRepo) ListCallLogs(ctx context.Context, f CallLogFilter) ([]CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []CallLog
	for _, l := range r.calls {
		if !r.inWorkspace(f.Scope, l.WorkspaceID) || !r.callerAssignment(f.Scope, l.AssignmentID) {
			continue
		}
		if f.AssignmentID != "" && l.AssignmentID != f.AssignmentID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, l.CallStatus) {
			continue
		}
		out = append(out, l)
	}
	sortBy(out, func(l CallLog) time.Time { return l.CallTime }, func(l CallLog) string { return l.ID }, true)
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) CreateFollowUp(ctx context.Context, f FollowUp, notes []Notification) (FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.followUps[f.ID] = f
	r.notifications = append(r.notifications, notes...)
	return f, nil
}

func (r *MemoryRepo) GetFollowUp(ctx context.Context, id string) (FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.followUps[id]
	if !ok {
		return FollowUp{}, ErrFollowUpNotFound
	}
	return f, nil
}

func (r *MemoryRepo) UpdateFollowUp(ctx context.Context, f FollowUp) (FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.followUps[f.ID]; !ok {
		return FollowUp{}, ErrFollowUpNotFound
	}
	r.followUps[f.ID] = f
	return f, nil
}

func (r *MemoryRepo) DeleteFollowUp(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.followUps[id]; !ok {
		return ErrFollowUpNotFound
	}
	delete(r.followUps, id)
	return nil
}

func (r *MemoryRepo) ListFollowUps(ctx context.Context, f FollowUpFilter) ([]FollowUp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []FollowUp
	for _, fu := range r.followUps {
		if !r.inWorkspace(f.Scope, fu.WorkspaceID) || !r.callerAssignment(f.Scope, fu.AssignmentID) {
			continue
		}
		if f.AssignmentID != "" && fu.AssignmentID != f.AssignmentID {
			continue
		}
		if f.Status != "" && fu.Status != f.Status {
			continue
		}
		out = append(out, fu)
	}
	sortBy(out, func(f FollowUp) time.Time { return f.ScheduledTime }, func(f FollowUp) string { return f.ID }, false)
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) profileByPhone(workspaceID, phone string) (Profile, bool) {
	for _, p := range r.profiles {
		if p.WorkspaceID == workspaceID && p.Phone == phone {
			return p, true
		}
	}
	return Profile{}, false
}

func (r *MemoryRepo) GetProfile(ctx context.Context, id string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (r *MemoryRepo) GetProfileByPhone(ctx context.Context, workspaceID, phone string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profileByPhone(workspaceID, phone)
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (r *MemoryRepo) UpdateProfile(ctx context.Context, p Profile) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.ID]; !ok {
		return Profile{}, ErrProfileNotFound
	}
	r.profiles[p.ID] = p
	return p, nil
}

func (r *MemoryRepo) phoneVisible(s Scope, workspaceID, phone string) bool {
	if s.TelecallerID == "" && s.SalesRepID == "" {
		return true
	}
	for _, v := range r.visits {
		if v.WorkspaceID != workspaceID || v.CustomerPhone != phone {
			continue
		}
		if s.SalesRepID != "" && v.SalesRepID == s.SalesRepID {
			return true
		}
		if s.TelecallerID != "" && r.visitAssignedTo(v.ID, s.TelecallerID) {
			return true
		}
	}
	return false
}

func (r *MemoryRepo) ListProfiles(ctx context.Context, f ProfileFilter) ([]Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Profile
	for _, p := range r.profiles {
		if !r.inWorkspace(f.Scope, p.WorkspaceID) || !r.phoneVisible(f.Scope, p.WorkspaceID, p.Phone) {
			continue
		}
		if f.Likelihood != "" && p.ConversionLikelihood != f.Likelihood {
			continue
		}
		if f.Phone != "" && p.Phone != f.Phone {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EngagementScore != out[j].EngagementScore {
			return out[i].EngagementScore > out[j].EngagementScore
		}
		return out[i].ID < out[j].ID
	})
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) ListNotifications(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Notification
	for _, n := range r.notifications {
		if n.RecipientID != recipientID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	sortBy(out, func(n Notification) time.Time { return n.CreatedAt }, func(n Notification) string { return n.ID }, true)
	return window(out, limit, offset), nil
}

func (r *MemoryRepo) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
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

func (r *MemoryRepo) MarkAllNotificationsRead(ctx context.Context, recipientID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.notifications {
		if r.notifications[i].RecipientID == recipientID && !r.notifications[i].IsRead {
			r.notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}
