package telecalling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
)

type CallLogRequest struct {
	AssignmentID    string     `json:"assignment_id" binding:"required"`
	CallTime        *time.Time `json:"call_time"`
	DurationSeconds int        `json:"duration_seconds" binding:"min=0"`
	CallStatus      CallStatus `json:"call_status" binding:"required"`
	Sentiment       Sentiment  `json:"customer_sentiment"`
	Feedback        string     `json:"feedback"`
	RevisitRequired bool       `json:"revisit_required"`
	RevisitNotes    string     `json:"revisit_notes"`
	RecordingURL    string     `json:"recording_url" binding:"omitempty,url"`
	DispositionCode string     `json:"disposition_code" binding:"max=50"`
}

// LogCall records a call on an assignment. In one transaction it moves the
// assignment on according to the outcome, refreshes the customer's profile
// and alerts whoever made the assignment.
func (s *Service) LogCall(ctx context.Context, c auth.Caller, req CallLogRequest) (CallLog, error) {
	if req.Sentiment == "" {
		req.Sentiment = SentimentNeutral
	}
	if !req.CallStatus.Valid() || !req.Sentiment.Valid() || req.DurationSeconds < 0 {
		return CallLog{}, ErrInvalidArgument
	}
	a, err := s.GetAssignment(ctx, c, req.AssignmentID)
	if err != nil {
		return CallLog{}, err
	}
	v, err := s.repo.GetVisit(ctx, a.VisitID)
	if err != nil {
		return CallLog{}, err
	}

	now := s.clock().UTC()
	l := CallLog{
		ID:              uuid.NewString(),
		WorkspaceID:     a.WorkspaceID,
		AssignmentID:    a.ID,
		CallTime:        now,
		DurationSeconds: req.DurationSeconds,
		CallStatus:      req.CallStatus,
		Sentiment:       req.Sentiment,
		Feedback:        req.Feedback,
		RevisitRequired: req.RevisitRequired,
		RevisitNotes:    req.RevisitNotes,
		RecordingURL:    req.RecordingURL,
		DispositionCode: req.DispositionCode,
		CreatedAt:       now,
	}
	if req.CallTime != nil {
		l.CallTime = req.CallTime.UTC()
	}

	if st, ok := l.CallStatus.AssignmentStatus(); ok {
		a.Status = st
	}
	a.UpdatedAt = now

	p, err := s.profileFor(ctx, v, l)
	if err != nil {
		return CallLog{}, err
	}

	notes := []Notification{s.notification(a.WorkspaceID, a.AssignedBy, NotifyFeedback, a.ID,
		"Call Feedback Received", "Feedback received for "+v.CustomerName)}
	if l.Conversion() {
		notes = append(notes, s.notification(a.WorkspaceID, a.AssignedBy, NotifyHighPotential, a.ID,
			"High Potential Lead", v.CustomerName+" responded positively and is ready for follow-up"))
	}

	l, err = s.repo.CreateCallLog(ctx, l, a, p, notes)
	if err != nil {
		return CallLog{}, err
	}
	logger.From(ctx).Info("call logged", "assignment_id", a.ID, "call_status", l.CallStatus, "assignment_status", a.Status)
	return l, nil
}

// profileFor builds the profile upsert for a call on visit v. A new profile
// is seeded from the visit; an existing one keeps its identity.
func (s *Service) profileFor(ctx context.Context, v Visit, l CallLog) (Profile, error) {
	p, err := s.repo.GetProfileByPhone(ctx, v.WorkspaceID, v.CustomerPhone)
	switch {
	case errors.Is(err, ErrProfileNotFound):
		p = Profile{
			ID:              uuid.NewString(),
			WorkspaceID:     v.WorkspaceID,
			Phone:           v.CustomerPhone,
			Name:            v.CustomerName,
			Email:           v.CustomerEmail,
			OriginalVisitID: v.ID,
			OriginalNotes:   v.Notes,
			Tags:            []string{},
			CreatedAt:       l.CreatedAt,
		}
	case err != nil:
		return Profile{}, err
	}
	contact := l.CallTime
	p.TelecallerFeedback = l.Feedback
	p.LastContact = &contact
	p.EngagementScore = EngagementScore(l.CallStatus, l.Sentiment)
	p.ConversionLikelihood = ConversionLikelihood(l.CallStatus, l.Sentiment)
	p.UpdatedAt = l.CreatedAt
	return p, nil
}

func (s *Service) GetCallLog(ctx context.Context, c auth.Caller, id string) (CallLog, error) {
	l, err := s.repo.GetCallLog(ctx, id)
	if err != nil {
		return CallLog{}, err
	}
	if _, err := s.GetAssignment(ctx, c, l.AssignmentID); err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return CallLog{}, ErrCallLogNotFound
		}
		return CallLog{}, err
	}
	return l, nil
}

type CallLogListFilter struct {
	AssignmentID string
	Status       CallStatus
	Limit        int
	Offset       int
}

func (s *Service) ListCallLogs(ctx context.Context, c auth.Caller, f CallLogListFilter) ([]CallLog, error) {
	sc, ok := pipelineScope(c)
	if !ok {
		return nil, nil
	}
	lf := CallLogFilter{Scope: sc, AssignmentID: f.AssignmentID, Limit: f.Limit, Offset: f.Offset}
	if f.Status != "" {
		lf.Statuses = []CallStatus{f.Status}
	}
	return s.repo.ListCallLogs(ctx, lf)
}

type FollowUpRequest struct {
	AssignmentID  string    `json:"assignment_id" binding:"required"`
	ScheduledTime time.Time `json:"scheduled_time" binding:"required"`
	Priority      Priority  `json:"priority"`
	Notes         string    `json:"notes"`
}

// CreateFollowUp schedules another call on an assignment and alerts its
// telecaller.
func (s *Service) CreateFollowUp(ctx context.Context, c auth.Caller, req FollowUpRequest) (FollowUp, error) {
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !req.Priority.Valid() || req.ScheduledTime.IsZero() {
		return FollowUp{}, ErrInvalidArgument
	}
	a, err := s.GetAssignment(ctx, c, req.AssignmentID)
	if err != nil {
		return FollowUp{}, err
	}
	v, err := s.repo.GetVisit(ctx, a.VisitID)
	if err != nil {
		return FollowUp{}, err
	}
	now := s.clock().UTC()
	f := FollowUp{
		ID:            uuid.NewString(),
		WorkspaceID:   a.WorkspaceID,
		AssignmentID:  a.ID,
		ScheduledTime: req.ScheduledTime.UTC(),
		Priority:      req.Priority,
		Status:        FollowUpPending,
		Notes:         req.Notes,
		CreatedBy:     c.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	note := s.notification(a.WorkspaceID, a.TelecallerID, NotifyFollowUp, a.ID,
		"Follow-up Scheduled", "Follow-up scheduled for "+v.CustomerName)
	return s.repo.CreateFollowUp(ctx, f, []Notification{note})
}

func (s *Service) GetFollowUp(ctx context.Context, c auth.Caller, id string) (FollowUp, error) {
	f, err := s.repo.GetFollowUp(ctx, id)
	if err != nil {
		return FollowUp{}, err
	}
	if _, err := s.GetAssignment(ctx, c, f.AssignmentID); err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return FollowUp{}, ErrFollowUpNotFound
		}
		return FollowUp{}, err
	}
	return f, nil
}

type FollowUpListFilter struct {
	AssignmentID string
	Status       FollowUpStatus
	Limit        int
	Offset       int
}

func (s *Service) ListFollowUps(ctx context.Context, c auth.Caller, f FollowUpListFilter) ([]FollowUp, error) {
	sc, ok := pipelineScope(c)
	if !ok {
		return nil, nil
	}
	return s.repo.ListFollowUps(ctx, FollowUpFilter{Scope: sc, AssignmentID: f.AssignmentID, Status: f.Status, Limit: f.Limit, Offset: f.Offset})
}

type FollowUpUpdate struct {
	ScheduledTime *time.Time      `json:"scheduled_time"`
	Priority      *Priority       `json:"priority"`
	Status        *FollowUpStatus `json:"status"`
	Notes         *string         `json:"notes"`
}

func (s *Service) UpdateFollowUp(ctx context.Context, c auth.Caller, id string, req FollowUpUpdate) (FollowUp, error) {
	f, err := s.GetFollowUp(ctx, c, id)
	if err != nil {
		return FollowUp{}, err
	}
	now := s.clock().UTC()
	if req.ScheduledTime != nil {
		f.ScheduledTime = req.ScheduledTime.UTC()
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return FollowUp{}, ErrInvalidArgument
		}
		f.Priority = *req.Priority
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return FollowUp{}, ErrInvalidArgument
		}
		f.setStatus(*req.Status, now)
	}
	if req.Notes != nil {
		f.Notes = *req.Notes
	}
	f.UpdatedAt = now
	return s.repo.UpdateFollowUp(ctx, f)
}

func (f *FollowUp) setStatus(st FollowUpStatus, now time.Time) {
	if st == FollowUpCompleted && f.Status != FollowUpCompleted {
		f.CompletedTime = &now
	}
	if st != FollowUpCompleted {
		f.CompletedTime = nil
	}
	f.Status = st
}

// ErrFollowUpCancelled rejects completing a cancelled follow-up.
var ErrFollowUpCancelled = fmt.Errorf("telecalling: follow-up cancelled: %w", apperr.ErrConflict)

// CompleteFollowUp marks f done. Completing twice keeps the first time.
func (s *Service) CompleteFollowUp(ctx context.Context, c auth.Caller, id string) (FollowUp, error) {
	f, err := s.GetFollowUp(ctx, c, id)
	if err != nil {
		return FollowUp{}, err
	}
	switch f.Status {
	case FollowUpCompleted:
		return f, nil
	case FollowUpCancelled:
		return FollowUp{}, ErrFollowUpCancelled
	}
	now := s.clock().UTC()
	f.setStatus(FollowUpCompleted, now)
	f.UpdatedAt = now
	return s.repo.UpdateFollowUp(ctx, f)
}

func (s *Service) DeleteFollowUp(ctx context.Context, c auth.Caller, id string) error {
	if !isAdmin(c) {
		return ErrForbidden
	}
	if _, err := s.GetFollowUp(ctx, c, id); err != nil {
		return err
	}
	return s.repo.DeleteFollowUp(ctx, id)
}

// MarkOverdueFollowUps flips pending follow-ups scheduled before now to
// overdue across every tenant and returns how many changed.
func (s *Service) MarkOverdueFollowUps(ctx context.Context) (int, error) {
	pending, err := s.repo.ListFollowUps(ctx, FollowUpFilter{Status: FollowUpPending})
	if err != nil {
		return 0, err
	}
	now := s.clock().UTC()
	n := 0
	for _, f := range pending {
		if !f.ScheduledTime.Before(now) {
			continue
		}
		f.Status = FollowUpOverdue
		f.UpdatedAt = now
		if _, err := s.repo.UpdateFollowUp(ctx, f); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// profileVisible applies the role scope to a single profile.
func (s *Service) profileVisible(ctx context.Context, c auth.Caller, p Profile) (bool, error) {
	sc, ok := ScopeFor(c)
	if !ok || !sameTenant(c, p.WorkspaceID) {
		return false, nil
	}
	if sc.TelecallerID == "" && sc.SalesRepID == "" {
		return true, nil
	}
	sc.WorkspaceID = p.WorkspaceID
	rows, err := s.repo.ListProfiles(ctx, ProfileFilter{Scope: sc, Phone: p.Phone, Limit: 1})
	return len(rows) > 0, err
}

func (s *Service) GetProfile(ctx context.Context, c auth.Caller, id string) (Profile, error) {
	p, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	ok, err := s.profileVisible(ctx, c, p)
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

type ProfileListFilter struct {
	Likelihood Likelihood
	Limit      int
	Offset     int
}

func (s *Service) ListProfiles(ctx context.Context, c auth.Caller, f ProfileListFilter) ([]Profile, error) {
	sc, ok := ScopeFor(c)
	if !ok {
		return nil, nil
	}
	return s.repo.ListProfiles(ctx, ProfileFilter{Scope: sc, Likelihood: f.Likelihood, Limit: f.Limit, Offset: f.Offset})
}

type ProfileUpdate struct {
	Name               *string    `json:"name"`
	Email              *string    `json:"email" binding:"omitempty,email"`
	TelecallerFeedback *string    `json:"telecaller_feedback"`
	NextFollowUp       *time.Time `json:"next_follow_up"`
	Tags               []string   `json:"tags"`
}

// UpdateProfile edits the descriptive fields. Scores only move with calls.
func (s *Service) UpdateProfile(ctx context.Context, c auth.Caller, id string, req ProfileUpdate) (Profile, error) {
	if c.Role == rbac.RoleInhouseSales {
		return Profile{}, ErrForbidden
	}
	p, err := s.GetProfile(ctx, c, id)
	if err != nil {
		return Profile{}, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return Profile{}, ErrInvalidArgument
		}
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		p.Email = *req.Email
	}
	if req.TelecallerFeedback != nil {
		p.TelecallerFeedback = *req.TelecallerFeedback
	}
	if req.NextFollowUp != nil {
		t := req.NextFollowUp.UTC()
		p.NextFollowUp = &t
	}
	if req.Tags != nil {
		p.Tags = req.Tags
	}
	p.UpdatedAt = s.clock().UTC()
	return s.repo.UpdateProfile(ctx, p)
}

func (s *Service) ListNotifications(ctx context.Context, c auth.Caller, unreadOnly bool, limit, offset int) ([]Notification, error) {
	return s.repo.ListNotifications(ctx, c.UserID, unreadOnly, limit, offset)
}

func (s *Service) MarkNotificationRead(ctx context.Context, c auth.Caller, id string) error {
	return s.repo.MarkNotificationRead(ctx, id, c.UserID)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, c auth.Caller) (int, error) {
	return s.repo.MarkAllNotificationsRead(ctx, c.UserID)
}
