package telecalling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizops-platform/internal/audit"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/directory"
	"bizops-platform/internal/rbac"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
)

// Directory resolves telecallers for assignment checks and activity text.
type Directory interface {
	Get(ctx context.Context, id string) (directory.User, error)
}

type Service struct {
	repo  Repository
	users Directory
	audit *audit.Service
	clock func() time.Time
}

// NewService wires telecalling. users and auditor may be nil.
func NewService(repo Repository, users Directory, auditor *audit.Service) *Service {
	return &Service{repo: repo, users: users, audit: auditor, clock: time.Now}
}

func isAdmin(c auth.Caller) bool {
	return rbac.IsPlatformAdmin(c.Role) || rbac.IsTenantAdmin(c.Role)
}

// ScopeFor maps a caller onto the rows their role may read. ok is false for
// roles with no view of the pipeline.
func ScopeFor(c auth.Caller) (Scope, bool) {
	switch {
	case rbac.IsPlatformAdmin(c.Role):
		return Scope{}, true
	case rbac.IsTenantAdmin(c.Role):
		return Scope{WorkspaceID: c.WorkspaceID}, true
	case c.Role == rbac.RoleTeleCalling:
		return Scope{WorkspaceID: c.WorkspaceID, TelecallerID: c.UserID}, true
	case c.Role == rbac.RoleInhouseSales:
		return Scope{WorkspaceID: c.WorkspaceID, SalesRepID: c.UserID}, true
	}
	return Scope{}, false
}

// pipelineScope is ScopeFor for assignments, calls and follow-ups, which
// sales reps do not see.
func pipelineScope(c auth.Caller) (Scope, bool) {
	sc, ok := ScopeFor(c)
	if !ok || sc.SalesRepID != "" {
		return Scope{}, false
	}
	return sc, true
}

func sameTenant(c auth.Caller, workspaceID string) bool {
	return rbac.IsPlatformAdmin(c.Role) || c.WorkspaceID == workspaceID
}

// today returns the UTC day containing now as [start, end).
func (s *Service) today() (time.Time, time.Time) {
	now := s.clock().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func (s *Service) notification(workspaceID, recipient string, t NotificationType, assignmentID, title, message string) Notification {
	return Notification{
		ID:           uuid.NewString(),
		WorkspaceID:  workspaceID,
		RecipientID:  recipient,
		Title:        title,
		Message:      message,
		Type:         t,
		AssignmentID: assignmentID,
		CreatedAt:    s.clock().UTC(),
	}
}

func (s *Service) userName(ctx context.Context, id string) string {
	if s.users == nil || id == "" {
		return id
	}
	u, err := s.users.Get(ctx, id)
	if err != nil || u.Name == "" {
		return id
	}
	return u.Name
}

type VisitRequest struct {
	CustomerName   string      `json:"customer_name" binding:"required,max=200"`
	CustomerPhone  string      `json:"customer_phone" binding:"required,phone"`
	CustomerEmail  string      `json:"customer_email" binding:"omitempty,email"`
	Interests      []string    `json:"interests"`
	VisitTimestamp *time.Time  `json:"visit_timestamp"`
	Notes          string      `json:"notes"`
	LeadQuality    LeadQuality `json:"lead_quality"`
	StoreID        string      `json:"store_id"`
}

func (s *Service) CreateVisit(ctx context.Context, c auth.Caller, req VisitRequest) (Visit, error) {
	if c.Role != rbac.RoleInhouseSales && !rbac.IsTenantAdmin(c.Role) {
		return Visit{}, ErrForbidden
	}
	if req.LeadQuality == "" {
		req.LeadQuality = LeadWarm
	}
	if !req.LeadQuality.Valid() || strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerPhone) == "" {
		return Visit{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	v := Visit{
		ID:             uuid.NewString(),
		WorkspaceID:    c.WorkspaceID,
		StoreID:        req.StoreID,
		SalesRepID:     c.UserID,
		CustomerName:   strings.TrimSpace(req.CustomerName),
		CustomerPhone:  strings.TrimSpace(req.CustomerPhone),
		CustomerEmail:  req.CustomerEmail,
		Interests:      req.Interests,
		VisitTimestamp: now,
		Notes:          req.Notes,
		LeadQuality:    req.LeadQuality,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if v.StoreID == "" {
		v.StoreID = c.StoreID
	}
	if req.VisitTimestamp != nil {
		v.VisitTimestamp = req.VisitTimestamp.UTC()
	}
	if v.Interests == nil {
		v.Interests = []string{}
	}
	return s.repo.CreateVisit(ctx, v)
}

// GetVisit applies the same role rules as ListVisits, except that admins can
// open any visit in their tenant.
func (s *Service) GetVisit(ctx context.Context, c auth.Caller, id string) (Visit, error) {
	v, err := s.repo.GetVisit(ctx, id)
	if err != nil {
		return Visit{}, err
	}
	if !sameTenant(c, v.WorkspaceID) {
		return Visit{}, ErrVisitNotFound
	}
	switch {
	case isAdmin(c):
		return v, nil
	case c.Role == rbac.RoleInhouseSales && v.SalesRepID == c.UserID:
		return v, nil
	case c.Role == rbac.RoleTeleCalling:
		as, err := s.repo.ListAssignments(ctx, AssignmentFilter{
			Scope:   Scope{WorkspaceID: v.WorkspaceID, TelecallerID: c.UserID},
			VisitID: v.ID,
			Limit:   1,
		})
		if err != nil {
			return Visit{}, err
		}
		if len(as) > 0 {
			return v, nil
		}
	}
	return Visit{}, ErrVisitNotFound
}

type VisitListFilter struct {
	LeadQuality LeadQuality
	Search      string
	Limit       int
	Offset      int
}

// ListVisits shows sales reps their own visits, telecallers the visits they
// were assigned and admins today's unassigned leads.
func (s *Service) ListVisits(ctx context.Context, c auth.Caller, f VisitListFilter) ([]Visit, error) {
	sc, ok := ScopeFor(c)
	if !ok {
		return nil, nil
	}
	vf := VisitFilter{Scope: sc, LeadQuality: f.LeadQuality, Search: f.Search, Limit: f.Limit, Offset: f.Offset}
	if isAdmin(c) {
		from, to := s.today()
		vf.From, vf.To, vf.Unassigned = &from, &to, true
	}
	return s.repo.ListVisits(ctx, vf)
}

// TodayLeads lists today's unassigned visits for assignment.
func (s *Service) TodayLeads(ctx context.Context, c auth.Caller) ([]Visit, error) {
	if !isAdmin(c) {
		return nil, ErrForbidden
	}
	sc, _ := ScopeFor(c)
	from, to := s.today()
	return s.repo.ListVisits(ctx, VisitFilter{Scope: sc, From: &from, To: &to, Unassigned: true})
}

func (s *Service) editableVisit(ctx context.Context, c auth.Caller, id string) (Visit, error) {
	v, err := s.GetVisit(ctx, c, id)
	if err != nil {
		return Visit{}, err
	}
	if !isAdmin(c) && v.SalesRepID != c.UserID {
		return Visit{}, ErrForbidden
	}
	return v, nil
}

func (s *Service) UpdateVisit(ctx context.Context, c auth.Caller, id string, req VisitRequest) (Visit, error) {
	v, err := s.editableVisit(ctx, c, id)
	if err != nil {
		return Visit{}, err
	}
	if req.LeadQuality == "" {
		req.LeadQuality = v.LeadQuality
	}
	if !req.LeadQuality.Valid() || strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerPhone) == "" {
		return Visit{}, ErrInvalidArgument
	}
	v.CustomerName = strings.TrimSpace(req.CustomerName)
	v.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	v.CustomerEmail = req.CustomerEmail
	v.Notes = req.Notes
	v.LeadQuality = req.LeadQuality
	if req.Interests != nil {
		v.Interests = req.Interests
	}
	if req.VisitTimestamp != nil {
		v.VisitTimestamp = req.VisitTimestamp.UTC()
	}
	v.UpdatedAt = s.clock().UTC()
	return s.repo.UpdateVisit(ctx, v)
}

// ErrVisitAssigned blocks deleting a visit that already has an assignment.
var ErrVisitAssigned = fmt.Errorf("telecalling: visit has assignments: %w", ErrAlreadyAssigned)

func (s *Service) DeleteVisit(ctx context.Context, c auth.Caller, id string) error {
	v, err := s.editableVisit(ctx, c, id)
	if err != nil {
		return err
	}
	if v.AssignedToTelecaller {
		return ErrVisitAssigned
	}
	return s.repo.DeleteVisit(ctx, id)
}

type AssignmentRequest struct {
	VisitID       string     `json:"visit_id" binding:"required"`
	TelecallerID  string     `json:"telecaller_id" binding:"required"`
	Priority      Priority   `json:"priority"`
	ScheduledTime *time.Time `json:"scheduled_time"`
	Notes         string     `json:"notes"`
}

// ErrNotTelecaller rejects assigning to a user outside the telecalling role.
var ErrNotTelecaller = fmt.Errorf("telecalling: assignee is not an active telecaller: %w", ErrInvalidArgument)

func (s *Service) checkTelecaller(ctx context.Context, workspaceID, id string) error {
	if s.users == nil {
		return nil
	}
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, directory.ErrUserNotFound) {
		return ErrNotTelecaller
	}
	if err != nil {
		return err
	}
	if u.WorkspaceID != workspaceID || u.Role != rbac.RoleTeleCalling || !u.IsActive {
		return ErrNotTelecaller
	}
	return nil
}

func (s *Service) newAssignment(c auth.Caller, v Visit, telecallerID string, p Priority, scheduled *time.Time, notes string) Assignment {
	now := s.clock().UTC()
	return Assignment{
		ID:            uuid.NewString(),
		WorkspaceID:   v.WorkspaceID,
		VisitID:       v.ID,
		TelecallerID:  telecallerID,
		AssignedBy:    c.UserID,
		Status:        AssignmentAssigned,
		Priority:      p,
		ScheduledTime: scheduled,
		Notes:         notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (s *Service) assignedNotice(a Assignment, v Visit) Notification {
	return s.notification(a.WorkspaceID, a.TelecallerID, NotifyAssignment, a.ID,
		"New Assignment", "You have been assigned to call "+v.CustomerName)
}

// CreateAssignment hands one visit to a telecaller and alerts them.
func (s *Service) CreateAssignment(ctx context.Context, c auth.Caller, req AssignmentRequest) (Assignment, error) {
	if !isAdmin(c) {
		return Assignment{}, ErrForbidden
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !req.Priority.Valid() {
		return Assignment{}, ErrInvalidArgument
	}
	v, err := s.GetVisit(ctx, c, req.VisitID)
	if err != nil {
		return Assignment{}, err
	}
	if v.AssignedToTelecaller {
		return Assignment{}, ErrAlreadyAssigned
	}
	if err := s.checkTelecaller(ctx, v.WorkspaceID, req.TelecallerID); err != nil {
		return Assignment{}, err
	}
	a := s.newAssignment(c, v, req.TelecallerID, req.Priority, req.ScheduledTime, req.Notes)
	out, err := s.repo.CreateAssignments(ctx, []Assignment{a}, []Notification{s.assignedNotice(a, v)})
	if err != nil {
		return Assignment{}, err
	}
	return out[0], nil
}

type BulkAssignRequest struct {
	TelecallerIDs []string `json:"telecaller_ids" binding:"required,min=1"`
	VisitIDs      []string `json:"customer_visit_ids" binding:"required,min=1"`
	Priority      Priority `json:"priority"`
	Notes         string   `json:"notes"`
}

type BulkAssignResult struct {
	Message     string       `json:"message"`
	Assignments []Assignment `json:"assignments"`
	Skipped     []string     `json:"skipped"`
}

// BulkAssign deals visits out to telecallers round-robin by their position
// in the request. Visits that are already assigned are skipped without
// shifting the rotation. Only managers (and platform admins) may bulk assign.
func (s *Service) BulkAssign(ctx context.Context, c auth.Caller, req BulkAssignRequest) (BulkAssignResult, error) {
	if c.Role != rbac.RoleManager && !rbac.IsPlatformAdmin(c.Role) {
		return BulkAssignResult{}, ErrForbidden
	}
	if len(req.TelecallerIDs) == 0 || len(req.VisitIDs) == 0 {
		return BulkAssignResult{}, ErrInvalidArgument
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !req.Priority.Valid() {
		return BulkAssignResult{}, ErrInvalidArgument
	}

	res := BulkAssignResult{Assignments: []Assignment{}, Skipped: []string{}}
	var (
		notes   []Notification
		checked = map[string]bool{}
		seen    = map[string]bool{}
	)
	for i, visitID := range req.VisitIDs {
		telecaller := req.TelecallerIDs[i%len(req.TelecallerIDs)]
		v, err := s.GetVisit(ctx, c, visitID)
		if err != nil {
			return BulkAssignResult{}, err
		}
		if v.AssignedToTelecaller || seen[v.ID] {
			res.Skipped = append(res.Skipped, v.ID)
			continue
		}
		seen[v.ID] = true
		if !checked[telecaller] {
			if err := s.checkTelecaller(ctx, v.WorkspaceID, telecaller); err != nil {
				return BulkAssignResult{}, err
			}
			checked[telecaller] = true
		}
		a := s.newAssignment(c, v, telecaller, req.Priority, nil, req.Notes)
		res.Assignments = append(res.Assignments, a)
		notes = append(notes, s.assignedNotice(a, v))
	}
	if len(res.Assignments) > 0 {
		if _, err := s.repo.CreateAssignments(ctx, res.Assignments, notes); err != nil {
			return BulkAssignResult{}, err
		}
	}
	res.Message = fmt.Sprintf("Successfully created %d assignments", len(res.Assignments))
	s.audit.Record(ctx, audit.EventTypeBulkAssignment, "telecalling_assignment", c.WorkspaceID, res.Message,
		map[string]any{"telecaller_ids": req.TelecallerIDs, "created": len(res.Assignments), "skipped": res.Skipped})
	logger.From(ctx).Info("bulk assignment", "created", len(res.Assignments), "skipped", len(res.Skipped))
	return res, nil
}

// GetAssignment lets admins open any assignment in their tenant and
// telecallers their own.
func (s *Service) GetAssignment(ctx context.Context, c auth.Caller, id string) (Assignment, error) {
	a, err := s.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if !sameTenant(c, a.WorkspaceID) {
		return Assignment{}, ErrAssignmentNotFound
	}
	if isAdmin(c) || (c.Role == rbac.RoleTeleCalling && a.TelecallerID == c.UserID) {
		return a, nil
	}
	return Assignment{}, ErrAssignmentNotFound
}

type AssignmentListFilter struct {
	Status AssignmentStatus
	Limit  int
	Offset int
}

func (s *Service) ListAssignments(ctx context.Context, c auth.Caller, f AssignmentListFilter) ([]Assignment, error) {
	sc, ok := pipelineScope(c)
	if !ok {
		return nil, nil
	}
	return s.repo.ListAssignments(ctx, AssignmentFilter{Scope: sc, Status: f.Status, Limit: f.Limit, Offset: f.Offset})
}

type AssignmentUpdate struct {
	TelecallerID  *string           `json:"telecaller_id"`
	Status        *AssignmentStatus `json:"status"`
	Priority      *Priority         `json:"priority"`
	ScheduledTime *time.Time        `json:"scheduled_time"`
	Notes         *string           `json:"notes"`
	Outcome       *string           `json:"outcome"`
}

// UpdateAssignment applies a partial update. Only admins may reassign or
// reprioritise; the telecaller may record progress on their own work.
func (s *Service) UpdateAssignment(ctx context.Context, c auth.Caller, id string, req AssignmentUpdate) (Assignment, error) {
	a, err := s.GetAssignment(ctx, c, id)
	if err != nil {
		return Assignment{}, err
	}
	if !isAdmin(c) && (req.TelecallerID != nil || req.Priority != nil) {
		return Assignment{}, ErrForbidden
	}
	if req.TelecallerID != nil && *req.TelecallerID != a.TelecallerID {
		if err := s.checkTelecaller(ctx, a.WorkspaceID, *req.TelecallerID); err != nil {
			return Assignment{}, err
		}
		a.TelecallerID = *req.TelecallerID
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return Assignment{}, ErrInvalidArgument
		}
		a.Status = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return Assignment{}, ErrInvalidArgument
		}
		a.Priority = *req.Priority
	}
	if req.ScheduledTime != nil {
		t := req.ScheduledTime.UTC()
		a.ScheduledTime = &t
	}
	if req.Notes != nil {
		a.Notes = *req.Notes
	}
	if req.Outcome != nil {
		a.Outcome = *req.Outcome
	}
	a.UpdatedAt = s.clock().UTC()
	return s.repo.UpdateAssignment(ctx, a)
}

func (s *Service) DeleteAssignment(ctx context.Context, c auth.Caller, id string) error {
	if !isAdmin(c) {
		return ErrForbidden
	}
	if _, err := s.GetAssignment(ctx, c, id); err != nil {
		return err
	}
	return s.repo.DeleteAssignment(ctx, id)
}

type AssignmentDetail struct {
	Assignment
	Visit     Visit      `json:"customer_visit"`
	CallLogs  []CallLog  `json:"call_logs"`
	FollowUps []FollowUp `json:"follow_ups"`
}

// AssignmentDetail returns an assignment with its visit and call history.
func (s *Service) AssignmentDetail(ctx context.Context, c auth.Caller, id string) (AssignmentDetail, error) {
	a, err := s.GetAssignment(ctx, c, id)
	if err != nil {
		return AssignmentDetail{}, err
	}
	v, err := s.repo.GetVisit(ctx, a.VisitID)
	if err != nil {
		return AssignmentDetail{}, err
	}
	logs, err := s.repo.ListCallLogs(ctx, CallLogFilter{AssignmentID: a.ID})
	if err != nil {
		return AssignmentDetail{}, err
	}
	fus, err := s.repo.ListFollowUps(ctx, FollowUpFilter{AssignmentID: a.ID})
	if err != nil {
		return AssignmentDetail{}, err
	}
	if logs == nil {
		logs = []CallLog{}
	}
	if fus == nil {
		fus = []FollowUp{}
	}
	return AssignmentDetail{Assignment: a, Visit: v, CallLogs: logs, FollowUps: fus}, nil
}

// HighPotentialLeads lists follow-up assignments that already had a
// positive, connected call.
func (s *Service) HighPotentialLeads(ctx context.Context, c auth.Caller) ([]Assignment, error) {
	if !isAdmin(c) {
		return nil, ErrForbidden
	}
	sc, _ := pipelineScope(c)
	return s.repo.ListAssignments(ctx, AssignmentFilter{
		Scope:         sc,
		Status:        AssignmentFollowUp,
		CallStatuses:  []CallStatus{CallConnected},
		CallSentiment: SentimentPositive,
	})
}

// UnconnectedCalls lists assignments with a call that did not get through.
func (s *Service) UnconnectedCalls(ctx context.Context, c auth.Caller) ([]Assignment, error) {
	if !isAdmin(c) {
		return nil, ErrForbidden
	}
	sc, _ := pipelineScope(c)
	return s.repo.ListAssignments(ctx, AssignmentFilter{Scope: sc, CallStatuses: unconnectedStatuses})
}

var unconnectedStatuses = []CallStatus{CallNoAnswer, CallBusy, CallBack}
