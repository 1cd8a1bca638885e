package support

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"bizops-platform/internal/audit"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/directory"
	"bizops-platform/internal/rbac"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
)

// UserDirectory resolves ticket participants.
type UserDirectory interface {
	Get(ctx context.Context, id string) (directory.User, error)
	PlatformAdmins(ctx context.Context) ([]directory.User, error)
}

// Mailer delivers notification emails.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Service implements the ticket lifecycle.
//
// Notification and email fan-out after a committed write is best-effort: failures
// are logged and never roll back the ticket change.
type Service struct {
	repo   Repository
	users  UserDirectory
	mailer Mailer
	audit  *audit.Service
	clock  func() time.Time
}

// NewService wires the ticket store. mailer and auditor may be nil.
func NewService(repo Repository, users UserDirectory, mailer Mailer, auditor *audit.Service) *Service {
	return &Service{repo: repo, users: users, mailer: mailer, audit: auditor, clock: time.Now}
}

func (s *Service) now() time.Time { return s.clock().UTC() }

func canSeeTickets(c auth.Caller) bool {
	return rbac.IsPlatformAdmin(c.Role) || rbac.IsTenantAdmin(c.Role)
}

func canSee(c auth.Caller, t Ticket) bool {
	if rbac.IsPlatformAdmin(c.Role) {
		return true
	}
	return rbac.IsTenantAdmin(c.Role) && t.WorkspaceID == c.WorkspaceID
}

func (s *Service) visibleTicket(ctx context.Context, c auth.Caller, id string) (Ticket, error) {
	t, err := s.repo.GetTicket(ctx, id)
	if err != nil {
		return Ticket{}, err
	}
	if !canSee(c, t) {
		return Ticket{}, ErrTicketNotFound
	}
	return t, nil
}

type CreateTicketRequest struct {
	Title                 string   `json:"title" binding:"required,max=200"`
	Summary               string   `json:"summary" binding:"required"`
	Category              Category `json:"category"`
	Priority              Priority `json:"priority"`
	IsUrgent              bool     `json:"is_urgent"`
	RequiresCallback      bool     `json:"requires_callback"`
	CallbackPhone         string   `json:"callback_phone" binding:"omitempty,phone"`
	CallbackPreferredTime string   `json:"callback_preferred_time" binding:"omitempty,max=100"`
}

func (s *Service) Create(ctx context.Context, c auth.Caller, req CreateTicketRequest) (Ticket, error) {
	if c.WorkspaceID == "" || strings.TrimSpace(req.Title) == "" {
		return Ticket{}, ErrInvalidArgument
	}
	if req.Category == "" {
		req.Category = CategoryGeneral
	}
	if req.Priority == "" {
		req.Priority = PriorityMedium
	}
	if !req.Category.Valid() || !req.Priority.Valid() || (req.RequiresCallback && req.CallbackPhone == "") {
		return Ticket{}, ErrInvalidArgument
	}

	now := s.now()
	t := Ticket{
		ID:                    uuid.NewString(),
		WorkspaceID:           c.WorkspaceID,
		Title:                 strings.TrimSpace(req.Title),
		Summary:               req.Summary,
		Category:              req.Category,
		Priority:              req.Priority,
		Status:                StatusOpen,
		CreatedBy:             c.UserID,
		IsUrgent:              req.IsUrgent,
		RequiresCallback:      req.RequiresCallback,
		CallbackPhone:         req.CallbackPhone,
		CallbackPreferredTime: req.CallbackPreferredTime,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	t, err := s.repo.CreateTicket(ctx, t, s.systemMessage(t.ID, c.UserID, "Support ticket created: "+t.Title, MessageText))
	if err != nil {
		return Ticket{}, err
	}

	settings, err := s.effectiveSettings(ctx, t.WorkspaceID)
	if err != nil {
		logger.From(ctx).Warn("support settings unavailable", "workspace_id", t.WorkspaceID, "err", err)
		settings = DefaultSettings(t.WorkspaceID)
	}
	admins, err := s.platformAdminIDs(ctx)
	if err != nil {
		logger.From(ctx).Warn("platform admin lookup failed", "ticket_id", t.TicketID, "err", err)
	}
	s.notify(ctx, settings, t, admins, NotifyTicketCreated,
		"New Support Ticket: "+t.TicketID,
		fmt.Sprintf("New %s priority ticket: %s", t.Priority, t.Title))
	if t.RequiresCallback {
		s.notify(ctx, settings, t, admins, NotifyCallbackRequested,
			"Callback Requested: "+t.TicketID,
			fmt.Sprintf("%s has requested a callback for ticket #%s. Phone: %s, Preferred time: %s",
				s.displayName(ctx, t.CreatedBy), t.TicketID, t.CallbackPhone, t.CallbackPreferredTime))
	}
	if settings.AutoAssignTickets && len(admins) > 0 {
		if assigned, err := s.autoAssign(ctx, t, admins); err != nil {
			logger.From(ctx).Warn("ticket auto-assign failed", "ticket_id", t.TicketID, "err", err)
		} else {
			t = assigned
		}
	}
	return t, nil
}

// autoAssign picks the platform admin with the fewest open tickets; ties go to the lowest ID.
func (s *Service) autoAssign(ctx context.Context, t Ticket, admins []string) (Ticket, error) {
	counts, err := s.repo.OpenCountsByAssignee(ctx, admins)
	if err != nil {
		return t, err
	}
	candidates := append([]string(nil), admins...)
	sort.Slice(candidates, func(i, j int) bool {
		if counts[candidates[i]] != counts[candidates[j]] {
			return counts[candidates[i]] < counts[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})
	t.AssignedTo = candidates[0]
	t.UpdatedAt = s.now()
	msg := s.systemMessage(t.ID, "", "Ticket assigned to "+s.displayName(ctx, t.AssignedTo), MessageStatusUpdate)
	if err := s.repo.SaveTicket(ctx, t, msg); err != nil {
		return t, err
	}
	return t, nil
}

func (s *Service) Get(ctx context.Context, c auth.Caller, id string) (TicketView, error) {
	t, err := s.visibleTicket(ctx, c, id)
	if err != nil {
		return TicketView{}, err
	}
	return t.View(s.now()), nil
}

func (s *Service) List(ctx context.Context, c auth.Caller, f TicketFilter) ([]TicketView, error) {
	if !canSeeTickets(c) {
		return []TicketView{}, nil
	}
	if !rbac.IsPlatformAdmin(c.Role) {
		f.WorkspaceID = c.WorkspaceID
	}
	tickets, err := s.repo.ListTickets(ctx, f)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]TicketView, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.View(now))
	}
	return out, nil
}

type UpdateTicketRequest struct {
	Title                 *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Summary               *string   `json:"summary"`
	Category              *Category `json:"category"`
	Priority              *Priority `json:"priority"`
	Status                *Status   `json:"status"`
	IsUrgent              *bool     `json:"is_urgent"`
	RequiresCallback      *bool     `json:"requires_callback"`
	CallbackPhone         *string   `json:"callback_phone" binding:"omitempty,phone"`
	CallbackPreferredTime *string   `json:"callback_preferred_time" binding:"omitempty,max=100"`
}

// Update applies a partial edit. A status change follows the same rules as the
// dedicated actions and records "Ticket status changed from X to Y".
func (s *Service) Update(ctx context.Context, c auth.Caller, id string, req UpdateTicketRequest) (TicketView, error) {
	t, err := s.visibleTicket(ctx, c, id)
	if err != nil {
		return TicketView{}, err
	}
	if req.Title != nil {
		t.Title = strings.TrimSpace(*req.Title)
	}
	if req.Summary != nil {
		t.Summary = *req.Summary
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			return TicketView{}, ErrInvalidArgument
		}
		t.Category = *req.Category
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			return TicketView{}, ErrInvalidArgument
		}
		t.Priority = *req.Priority
	}
	if req.IsUrgent != nil {
		t.IsUrgent = *req.IsUrgent
	}
	if req.RequiresCallback != nil {
		t.RequiresCallback = *req.RequiresCallback
	}
	if req.CallbackPhone != nil {
		t.CallbackPhone = *req.CallbackPhone
	}
	if req.CallbackPreferredTime != nil {
		t.CallbackPreferredTime = *req.CallbackPreferredTime
	}
	if t.Title == "" || (t.RequiresCallback && t.CallbackPhone == "") {
		return TicketView{}, ErrInvalidArgument
	}

	if req.Status == nil || *req.Status == t.Status {
		t.UpdatedAt = s.now()
		if err := s.repo.SaveTicket(ctx, t); err != nil {
			return TicketView{}, err
		}
		return t.View(s.now()), nil
	}
	to := *req.Status
	if !to.Valid() {
		return TicketView{}, ErrInvalidArgument
	}
	if err := checkTransition(c, t, to); err != nil {
		return TicketView{}, err
	}
	content := fmt.Sprintf("Ticket status changed from %s to %s", t.Status, to)
	t, err = s.transition(ctx, c, t, to, content, MessageStatusUpdate)
	if err != nil {
		return TicketView{}, err
	}
	return t.View(s.now()), nil
}

// checkTransition enforces who may move a ticket into a status.
func checkTransition(c auth.Caller, t Ticket, to Status) error {
	switch to {
	case StatusInProgress, StatusResolved:
		if !rbac.IsPlatformAdmin(c.Role) {
			return ErrForbidden
		}
	case StatusClosed:
		if c.Role == rbac.RoleBusinessAdmin && t.CreatedBy != c.UserID {
			return ErrForbidden
		}
	case StatusReopened:
		if c.Role == rbac.RoleBusinessAdmin && t.CreatedBy != c.UserID {
			return ErrForbidden
		}
		if t.Status != StatusResolved {
			return ErrNotResolved
		}
	case StatusOpen:
		return ErrInvalidArgument
	}
	return nil
}

// transition moves t to status `to`, stamps lifecycle timestamps, appends the
// system message and fans out the status notifications.
func (s *Service) transition(ctx context.Context, c auth.Caller, t Ticket, to Status, content string, mt MessageType) (Ticket, error) {
	now := s.now()
	t.Status = to
	t.UpdatedAt = now
	switch to {
	case StatusResolved:
		if t.ResolvedAt == nil {
			t.ResolvedAt = &now
		}
	case StatusClosed:
		if t.ClosedAt == nil {
			t.ClosedAt = &now
		}
	}
	if err := s.repo.SaveTicket(ctx, t, s.systemMessage(t.ID, c.UserID, content, mt)); err != nil {
		return Ticket{}, err
	}
	s.statusNotifications(ctx, t, c.UserID)
	return t, nil
}

func (s *Service) statusNotifications(ctx context.Context, t Ticket, actorID string) {
	settings, err := s.effectiveSettings(ctx, t.WorkspaceID)
	if err != nil {
		settings = DefaultSettings(t.WorkspaceID)
	}
	switch t.Status {
	case StatusResolved:
		s.notify(ctx, settings, t, []string{t.CreatedBy}, NotifyTicketResolved,
			"Ticket Resolved: "+t.TicketID,
			fmt.Sprintf("Issue ID #%s has been marked resolved by Platform Admin. Please confirm if the problem is solved.", t.TicketID))
	case StatusClosed:
		s.notify(ctx, settings, t, []string{t.CreatedBy}, NotifyTicketClosed,
			"Ticket Closed: "+t.TicketID,
			fmt.Sprintf("Support ticket #%s has been closed.", t.TicketID))
		if t.AssignedTo != "" && t.AssignedTo != t.CreatedBy {
			by := "the system"
			if actorID != "" {
				by = s.displayName(ctx, actorID)
			}
			s.notify(ctx, settings, t, []string{t.AssignedTo}, NotifyTicketClosed,
				"Ticket Closed: "+t.TicketID,
				fmt.Sprintf("Support ticket #%s has been closed by %s.", t.TicketID, by))
		}
	case StatusReopened:
		admins, err := s.platformAdminIDs(ctx)
		if err != nil {
			logger.From(ctx).Warn("platform admin lookup failed", "ticket_id", t.TicketID, "err", err)
			return
		}
		s.notify(ctx, settings, t, admins, NotifyTicketReopened,
			"Ticket Reopened: "+t.TicketID,
			fmt.Sprintf("Support ticket #%s has been reopened by %s. Issue persists.", t.TicketID, s.displayName(ctx, actorID)))
	}
}

func (s *Service) AssignToMe(ctx context.Context, c auth.Caller, id string) (TicketView, error) {
	if !rbac.IsPlatformAdmin(c.Role) {
		return TicketView{}, ErrForbidden
	}
	t, err := s.visibleTicket(ctx, c, id)
	if err != nil {
		return TicketView{}, err
	}
	t.AssignedTo = c.UserID
	t, err = s.transition(ctx, c, t, StatusInProgress, "Ticket assigned to "+s.displayName(ctx, c.UserID), MessageStatusUpdate)
	if err != nil {
		return TicketView{}, err
	}
	s.audit.Record(ctx, audit.EventTypeTicketAssigned, "support_ticket", t.TicketID, "ticket assigned", map[string]string{"assigned_to": c.UserID})
	return t.View(s.now()), nil
}

func (s *Service) Resolve(ctx context.Context, c auth.Caller, id string) (TicketView, error) {
	if !rbac.IsPlatformAdmin(c.Role) {
		return TicketView{}, ErrForbidden
	}
	t, err := s.visibleTicket(ctx, c, id)
	if err != nil {
		return TicketView{}, err
	}
	t, err = s.transition(ctx, c, t, StatusResolved,
		"Issue has been resolved by Platform Admin. Please confirm if the problem is solved.", MessageResolution)
	if err != nil {
		return TicketView{}, err
	}
	s.audit.Record(ctx, audit.EventTypeTicketResolved, "support_ticket", t.TicketID, "ticket resolved", nil)
	return t.View(s.now()), nil
}

func (s *Service) Close(ctx context.Context, c auth.Caller, id string) (TicketView, error) {
	t, err := s.visibleTicket(ctx, c, id)
	if err != nil {
		return TicketView{}, err
	}
	if err := checkTransition(c, t, StatusClosed); err != nil {
		return TicketView{}, err
	}
	t, err = s.transition(ctx, c, t, StatusClosed, "Ticket closed", MessageStatusUpdate)
	if err != nil {
		return TicketView{}, err
	}
	return t.View(s.now()), nil
}

func (s *Service) Reopen(ctx context.Context, c auth.Caller, id string) (TicketView, error) {
	t, err := s.visibleTicket(ctx, c, id)
	if err != nil {
		return TicketView{}, err
	}
	if err := checkTransition(c, t, StatusReopened); err != nil {
		return TicketView{}, err
	}
	t, err = s.transition(ctx, c, t, StatusReopened, "Ticket reopened - issue persists", MessageReopening)
	if err != nil {
		return TicketView{}, err
	}
	return t.View(s.now()), nil
}

type AddMessageRequest struct {
	Content    string `json:"content" binding:"required,max=5000"`
	IsInternal bool   `json:"is_internal"`
}

// AddMessage appends a user message and notifies the other party. Internal
// notes are platform-admin only and notify nobody.
func (s *Service) AddMessage(ctx context.Context, c auth.Caller, id string, req AddMessageRequest) (Message, error) {
	t, err := s.visibleTicket(ctx, c, id)
	if err != nil {
		return Message{}, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return Message{}, ErrInvalidArgument
	}
	admin := rbac.IsPlatformAdmin(c.Role)
	if req.IsInternal && !admin {
		return Message{}, ErrForbidden
	}
	now := s.now()
	m := Message{
		ID:          uuid.NewString(),
		TicketID:    t.ID,
		SenderID:    c.UserID,
		SenderRole:  c.Role,
		Content:     req.Content,
		IsInternal:  req.IsInternal,
		MessageType: MessageText,
		CreatedAt:   now,
	}
	if admin && t.FirstResponseAt == nil {
		t.FirstResponseAt = &now
	}
	t.UpdatedAt = now
	if err := s.repo.SaveTicket(ctx, t, m); err != nil {
		return Message{}, err
	}
	if m.IsInternal {
		return m, nil
	}

	settings, err := s.effectiveSettings(ctx, t.WorkspaceID)
	if err != nil {
		settings = DefaultSettings(t.WorkspaceID)
	}
	recipients := []string{t.CreatedBy}
	if !admin {
		if recipients, err = s.platformAdminIDs(ctx); err != nil {
			logger.From(ctx).Warn("platform admin lookup failed", "ticket_id", t.TicketID, "err", err)
			return m, nil
		}
	}
	s.notify(ctx, settings, t, recipients, NotifyMessageReceived,
		"New Message: "+t.TicketID,
		fmt.Sprintf("New message from %s: %s", s.displayName(ctx, c.UserID), Preview(m.Content)))
	return m, nil
}

// Preview truncates content to 100 characters plus "..." for notification bodies.
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= 100 {
		return content
	}
	return string([]rune(content)[:100]) + "..."
}

func (s *Service) Messages(ctx context.Context, c auth.Caller, id string) ([]Message, error) {
	t, err := s.visibleTicket(ctx, c, id)
	if err != nil {
		return nil, err
	}
	msgs, err := s.repo.ListMessages(ctx, t.ID, rbac.IsPlatformAdmin(c.Role))
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}

func (s *Service) DashboardStats(ctx context.Context, c auth.Caller) (DashboardStats, error) {
	if !canSeeTickets(c) {
		return DashboardStats{}, ErrForbidden
	}
	ws := c.WorkspaceID
	if rbac.IsPlatformAdmin(c.Role) {
		ws = ""
	}
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.repo.Stats(ctx, ws, dayStart)
}

// Summary is the reporting digest of one ticket.
type Summary struct {
	TicketID          string     `json:"ticket_id"`
	Title             string     `json:"title"`
	Status            Status     `json:"status"`
	Priority          Priority   `json:"priority"`
	Category          Category   `json:"category"`
	CreatedBy         string     `json:"created_by"`
	AssignedTo        string     `json:"assigned_to"`
	WorkspaceID       string     `json:"workspace_id"`
	CreatedAt         time.Time  `json:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at"`
	ClosedAt          *time.Time `json:"closed_at"`
	MessageCount      int        `json:"message_count"`
	ResponseTimeHours *float64   `json:"response_time_hours"`
	IsUrgent          bool       `json:"is_urgent"`
	RequiresCallback  bool       `json:"requires_callback"`
}

func (s *Service) Summary(ctx context.Context, c auth.Caller, id string) (Summary, error) {
	t, err := s.visibleTicket(ctx, c, id)
	if err != nil {
		return Summary{}, err
	}
	msgs, err := s.repo.ListMessages(ctx, t.ID, true)
	if err != nil {
		return Summary{}, err
	}
	assigned := "Unassigned"
	if t.AssignedTo != "" {
		assigned = s.displayName(ctx, t.AssignedTo)
	}
	return Summary{
		TicketID:          t.TicketID,
		Title:             t.Title,
		Status:            t.Status,
		Priority:          t.Priority,
		Category:          t.Category,
		CreatedBy:         s.displayName(ctx, t.CreatedBy),
		AssignedTo:        assigned,
		WorkspaceID:       t.WorkspaceID,
		CreatedAt:         t.CreatedAt,
		ResolvedAt:        t.ResolvedAt,
		ClosedAt:          t.ClosedAt,
		MessageCount:      len(msgs),
		ResponseTimeHours: t.View(s.now()).ResponseTimeHours,
		IsUrgent:          t.IsUrgent,
		RequiresCallback:  t.RequiresCallback,
	}, nil
}

func (s *Service) ListNotifications(ctx context.Context, c auth.Caller, limit, offset int) ([]Notification, error) {
	ns, err := s.repo.ListNotifications(ctx, c.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	if ns == nil {
		ns = []Notification{}
	}
	return ns, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, c auth.Caller, id string) error {
	return s.repo.MarkNotificationRead(ctx, c.UserID, id)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, c auth.Caller) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, c.UserID)
}

func (s *Service) Settings(ctx context.Context, c auth.Caller) (Settings, error) {
	return s.settingsFor(ctx, c.WorkspaceID)
}

type SettingsPatch struct {
	AutoAssignTickets            *bool   `json:"auto_assign_tickets"`
	MaxResponseTimeHours         *int    `json:"max_response_time_hours" binding:"omitempty,min=1,max=720"`
	CriticalResponseTimeHours    *int    `json:"critical_response_time_hours" binding:"omitempty,min=1,max=720"`
	EmailNotifications           *bool   `json:"email_notifications"`
	SMSNotifications             *bool   `json:"sms_notifications"`
	InAppNotifications           *bool   `json:"in_app_notifications"`
	BusinessHoursStart           *string `json:"business_hours_start" binding:"omitempty,datetime=15:04"`
	BusinessHoursEnd             *string `json:"business_hours_end" binding:"omitempty,datetime=15:04"`
	Timezone                     *string `json:"timezone" binding:"omitempty,timezone"`
	AutoCloseResolvedTicketsDays *int    `json:"auto_close_resolved_tickets_days" binding:"omitempty,min=1,max=365"`
}

func (s *Service) UpdateSettings(ctx context.Context, c auth.Caller, p SettingsPatch) (Settings, error) {
	cur, err := s.settingsFor(ctx, c.WorkspaceID)
	if err != nil {
		return Settings{}, err
	}
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setStr := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setBool(&cur.AutoAssignTickets, p.AutoAssignTickets)
	setInt(&cur.MaxResponseTimeHours, p.MaxResponseTimeHours)
	setInt(&cur.CriticalResponseTimeHours, p.CriticalResponseTimeHours)
	setBool(&cur.EmailNotifications, p.EmailNotifications)
	setBool(&cur.SMSNotifications, p.SMSNotifications)
	setBool(&cur.InAppNotifications, p.InAppNotifications)
	setStr(&cur.BusinessHoursStart, p.BusinessHoursStart)
	setStr(&cur.BusinessHoursEnd, p.BusinessHoursEnd)
	setStr(&cur.Timezone, p.Timezone)
	setInt(&cur.AutoCloseResolvedTicketsDays, p.AutoCloseResolvedTicketsDays)
	cur.UpdatedAt = s.now()
	saved, err := s.repo.SaveSettings(ctx, cur)
	if err != nil {
		return Settings{}, err
	}
	s.audit.Record(ctx, audit.EventTypeSettingsChanged, "support_settings", c.WorkspaceID, "support settings updated", p)
	return saved, nil
}

// effectiveSettings returns the stored settings or the defaults without
// persisting them.
func (s *Service) effectiveSettings(ctx context.Context, workspaceID string) (Settings, error) {
	cur, err := s.repo.GetSettings(ctx, workspaceID)
	if errors.Is(err, ErrSettingsNotFound) {
		return DefaultSettings(workspaceID), nil
	}
	return cur, err
}

func (s *Service) settingsFor(ctx context.Context, workspaceID string) (Settings, error) {
	if workspaceID == "" {
		return Settings{}, ErrInvalidArgument
	}
	cur, err := s.repo.GetSettings(ctx, workspaceID)
	if err == nil {
		return cur, nil
	}
	if !errors.Is(err, ErrSettingsNotFound) {
		return Settings{}, err
	}
	def := DefaultSettings(workspaceID)
	def.UpdatedAt = s.now()
	return s.repo.SaveSettings(ctx, def)
}

func (s *Service) systemMessage(ticketID, senderID, content string, mt MessageType) Message {
	return Message{
		ID:              uuid.NewString(),
		TicketID:        ticketID,
		SenderID:        senderID,
		Content:         content,
		IsSystemMessage: true,
		MessageType:     mt,
		CreatedAt:       s.now(),
	}
}

func (s *Service) platformAdminIDs(ctx context.Context) ([]string, error) {
	if s.users == nil {
		return nil, nil
	}
	admins, err := s.users.PlatformAdmins(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(admins))
	for _, a := range admins {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (s *Service) displayName(ctx context.Context, userID string) string {
	if s.users != nil && userID != "" {
		if u, err := s.users.Get(ctx, userID); err == nil && u.Name != "" {
			return u.Name
		}
	}
	if userID == "" {
		return "the system"
	}
	return userID
}

// notify writes in-app rows and sends emails according to the tenant's settings.
func (s *Service) notify(ctx context.Context, settings Settings, t Ticket, recipients []string, typ NotificationType, title, body string) {
	if len(recipients) == 0 {
		return
	}
	if settings.InAppNotifications {
		now := s.now()
		ns := make([]Notification, 0, len(recipients))
		for _, r := range recipients {
			ns = append(ns, Notification{
				ID:          uuid.NewString(),
				TicketID:    t.ID,
				RecipientID: r,
				Type:        typ,
				Title:       title,
				Message:     body,
				CreatedAt:   now,
			})
		}
		if err := s.repo.CreateNotifications(ctx, ns...); err != nil {
			logger.From(ctx).Warn("support notification failed", "ticket_id", t.TicketID, "type", typ, "err", err)
		}
	}
	if !settings.EmailNotifications || s.mailer == nil || s.users == nil {
		return
	}
	for _, r := range recipients {
		u, err := s.users.Get(ctx, r)
		if err != nil || u.Email == "" {
			continue
		}
		if err := s.mailer.Send(ctx, u.Email, title, body); err != nil {
			logger.From(ctx).Warn("support email failed", "ticket_id", t.TicketID, "recipient", r, "err", err)
		}
	}
}
