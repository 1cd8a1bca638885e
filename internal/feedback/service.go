package feedback

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/directory"
	"bizops-platform/internal/notifications"
	"bizops-platform/internal/rbac"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
)

// Directory resolves escalation recipients and validates public tenants.
type Directory interface {
	ListByRole(ctx context.Context, workspaceID, role string) ([]directory.User, error)
	ListWorkspace(ctx context.Context, workspaceID string) ([]directory.User, error)
}

type Notifier interface {
	Notify(ctx context.Context, req notifications.NotifyRequest) (notifications.Notification, error)
}

type Service struct {
	repo     Repository
	users    Directory
	notifier Notifier
	clock    func() time.Time
}

// NewService wires feedback. users and notifier may be nil.
func NewService(repo Repository, users Directory, notifier Notifier) *Service {
	return &Service{repo: repo, users: users, notifier: notifier, clock: time.Now}
}

// scope is the workspace filter for c; platform admins see every tenant.
func scope(c auth.Caller) string {
	if rbac.IsPlatformAdmin(c.Role) {
		return ""
	}
	return c.WorkspaceID
}

func visible(c auth.Caller, workspaceID string) bool {
	return rbac.IsPlatformAdmin(c.Role) || workspaceID == c.WorkspaceID
}

type CreateRequest struct {
	TenantID      string    `json:"tenant_id"`
	StoreID       string    `json:"store_id"`
	Title         string    `json:"title" binding:"required,max=200"`
	Content       string    `json:"content" binding:"required"`
	Category      Category  `json:"category"`
	OverallRating int       `json:"overall_rating" binding:"required,min=1,max=5"`
	ProductRating *int      `json:"product_rating" binding:"omitempty,min=1,max=5"`
	ServiceRating *int      `json:"service_rating" binding:"omitempty,min=1,max=5"`
	ValueRating   *int      `json:"value_rating" binding:"omitempty,min=1,max=5"`
	Sentiment     Sentiment `json:"sentiment"`
	CustomerName  string    `json:"customer_name" binding:"max=200"`
	CustomerEmail string    `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone string    `json:"customer_phone" binding:"omitempty,phone"`
	IsAnonymous   bool      `json:"is_anonymous"`
	IsPublic      bool      `json:"is_public"`
	Tags          []string  `json:"tags"`
}

func (s *Service) build(workspaceID, submittedBy string, req CreateRequest) (Feedback, error) {
	if req.Category == "" {
		req.Category = CategoryGeneral
	}
	if !req.Category.Valid() || (req.Sentiment != "" && !req.Sentiment.Valid()) {
		return Feedback{}, ErrInvalidArgument
	}
	if req.OverallRating < 1 || req.OverallRating > 5 || !validRating(req.ProductRating) ||
		!validRating(req.ServiceRating) || !validRating(req.ValueRating) {
		return Feedback{}, ErrInvalidArgument
	}
	if strings.TrimSpace(req.Title) == "" {
		return Feedback{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	f := Feedback{
		ID:            uuid.NewString(),
		WorkspaceID:   workspaceID,
		StoreID:       req.StoreID,
		Title:         strings.TrimSpace(req.Title),
		Content:       req.Content,
		Category:      req.Category,
		Status:        StatusPending,
		OverallRating: req.OverallRating,
		ProductRating: req.ProductRating,
		ServiceRating: req.ServiceRating,
		ValueRating:   req.ValueRating,
		Sentiment:     req.Sentiment,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		IsAnonymous:   req.IsAnonymous,
		IsPublic:      req.IsPublic,
		Tags:          req.Tags,
		SubmittedBy:   submittedBy,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if f.IsAnonymous {
		f.CustomerName, f.CustomerEmail, f.CustomerPhone = "", "", ""
	}
	f.ApplySentiment()
	return f, nil
}

func (s *Service) Create(ctx context.Context, c auth.Caller, req CreateRequest) (View, error) {
	if req.StoreID == "" {
		req.StoreID = c.StoreID
	}
	f, err := s.build(c.WorkspaceID, c.UserID, req)
	if err != nil {
		return View{}, err
	}
	f, err = s.repo.CreateFeedback(ctx, f)
	if err != nil {
		return View{}, err
	}
	return f.View(), nil
}

// ErrUnknownTenant rejects public submissions for a workspace with no users.
var ErrUnknownTenant = fmt.Errorf("feedback: invalid tenant: %w", ErrInvalidArgument)

// SubmitPublic stores unauthenticated feedback for req.TenantID.
func (s *Service) SubmitPublic(ctx context.Context, req CreateRequest) (View, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return View{}, ErrTenantRequired
	}
	if s.users != nil {
		members, err := s.users.ListWorkspace(ctx, req.TenantID)
		if err != nil {
			return View{}, err
		}
		if len(members) == 0 {
			return View{}, ErrUnknownTenant
		}
	}
	f, err := s.build(req.TenantID, "", req)
	if err != nil {
		return View{}, err
	}
	f, err = s.repo.CreateFeedback(ctx, f)
	if err != nil {
		return View{}, err
	}
	return f.View(), nil
}

func views(items []Feedback) []View {
	out := make([]View, 0, len(items))
	for _, f := range items {
		out = append(out, f.View())
	}
	return out
}

func (s *Service) List(ctx context.Context, c auth.Caller, f Filter) ([]View, error) {
	f.WorkspaceID = scope(c)
	items, err := s.repo.ListFeedback(ctx, f)
	if err != nil {
		return nil, err
	}
	return views(items), nil
}

// PublicList returns public feedback that has been through review.
func (s *Service) PublicList(ctx context.Context, tenantID string, category Category, sentiment Sentiment, limit, offset int) ([]View, error) {
	public := true
	items, err := s.repo.ListFeedback(ctx, Filter{
		WorkspaceID: tenantID,
		Statuses:    PublicStatuses,
		Category:    category,
		Sentiment:   sentiment,
		IsPublic:    &public,
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return nil, err
	}
	out := views(items)
	for i := range out {
		out[i].CustomerEmail, out[i].CustomerPhone = "", ""
		if out[i].IsAnonymous {
			out[i].CustomerName = ""
		}
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, c auth.Caller, id string) (Feedback, error) {
	f, err := s.repo.GetFeedback(ctx, id)
	if err != nil {
		return Feedback{}, err
	}
	if !visible(c, f.WorkspaceID) {
		return Feedback{}, ErrFeedbackNotFound
	}
	return f, nil
}

func (s *Service) Get(ctx context.Context, c auth.Caller, id string) (View, error) {
	f, err := s.load(ctx, c, id)
	if err != nil {
		return View{}, err
	}
	return f.View(), nil
}

type UpdateRequest struct {
	Title         *string    `json:"title" binding:"omitempty,max=200"`
	Content       *string    `json:"content"`
	Category      *Category  `json:"category"`
	Status        *Status    `json:"status"`
	OverallRating *int       `json:"overall_rating" binding:"omitempty,min=1,max=5"`
	Sentiment     *Sentiment `json:"sentiment"`
	IsPublic      *bool      `json:"is_public"`
	Tags          []string   `json:"tags"`
}

func (s *Service) Update(ctx context.Context, c auth.Caller, id string, req UpdateRequest) (View, error) {
	f, err := s.load(ctx, c, id)
	if err != nil {
		return View{}, err
	}
	now := s.clock().UTC()
	if req.Title != nil {
		if strings.TrimSpace(*req.Title) == "" {
			return View{}, ErrInvalidArgument
		}
		f.Title = strings.TrimSpace(*req.Title)
	}
	if req.Content != nil {
		f.Content = *req.Content
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			return View{}, ErrInvalidArgument
		}
		f.Category = *req.Category
	}
	if req.OverallRating != nil {
		if !validRating(req.OverallRating) {
			return View{}, ErrInvalidArgument
		}
		f.OverallRating = *req.OverallRating
	}
	if req.Sentiment != nil {
		if !req.Sentiment.Valid() {
			return View{}, ErrInvalidArgument
		}
		f.Sentiment, f.SentimentScore = *req.Sentiment, nil
	}
	if req.IsPublic != nil {
		f.IsPublic = *req.IsPublic
	}
	if req.Tags != nil {
		f.Tags = req.Tags
	}
	if req.Status != nil {
		if !req.Status.Valid() || *req.Status == StatusEscalated {
			return View{}, ErrInvalidArgument
		}
		f.SetStatus(*req.Status, now)
		if *req.Status == StatusReviewed && f.ReviewedBy == "" {
			f.ReviewedBy = c.UserID
		}
	}
	f.UpdatedAt = now
	f, err = s.repo.UpdateFeedback(ctx, f)
	if err != nil {
		return View{}, err
	}
	return f.View(), nil
}

// Delete is limited to tenant admins and platform admins.
func (s *Service) Delete(ctx context.Context, c auth.Caller, id string) error {
	f, err := s.load(ctx, c, id)
	if err != nil {
		return err
	}
	if !rbac.IsPlatformAdmin(c.Role) && !rbac.IsTenantAdmin(c.Role) {
		return ErrForbidden
	}
	return s.repo.DeleteFeedback(ctx, f.ID)
}

func (s *Service) MarkReviewed(ctx context.Context, c auth.Caller, id string) (View, error) {
	f, err := s.load(ctx, c, id)
	if err != nil {
		return View{}, err
	}
	now := s.clock().UTC()
	f.SetStatus(StatusReviewed, now)
	f.ReviewedBy = c.UserID
	f.UpdatedAt = now
	f, err = s.repo.UpdateFeedback(ctx, f)
	if err != nil {
		return View{}, err
	}
	return f.View(), nil
}

// Escalate opens an escalation for the feedback and alerts the tenant's managers.
func (s *Service) Escalate(ctx context.Context, c auth.Caller, id string) (Escalation, error) {
	f, err := s.load(ctx, c, id)
	if err != nil {
		return Escalation{}, err
	}
	if f.EscalationID != "" {
		return Escalation{}, ErrAlreadyEscalated
	}
	now := s.clock().UTC()
	e := Escalation{
		ID:          uuid.NewString(),
		WorkspaceID: f.WorkspaceID,
		FeedbackID:  f.ID,
		Title:       "Escalated Feedback: " + f.Title,
		Description: f.Content,
		Category:    EscalationCategoryOther,
		Priority:    "medium",
		Status:      EscalationOpen,
		CreatedBy:   c.UserID,
		SLAHours:    DefaultSLAHours,
		DueDate:     now.Add(DefaultSLAHours * time.Hour),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if f.IsNegative() {
		e.Category, e.Priority = EscalationCategoryComplaint, "high"
	}
	f.SetStatus(StatusEscalated, now)
	f.EscalationID = e.ID
	f.UpdatedAt = now
	if err := s.repo.Escalate(ctx, f, e); err != nil {
		return Escalation{}, err
	}
	s.notifyManagers(ctx, e)
	return e, nil
}

// notifyManagers is best-effort; failures are logged.
func (s *Service) notifyManagers(ctx context.Context, e Escalation) {
	if s.users == nil || s.notifier == nil {
		return
	}
	managers, err := s.users.ListByRole(ctx, e.WorkspaceID, rbac.RoleManager)
	if err != nil {
		logger.From(ctx).Warn("escalation recipients lookup failed", "escalation_id", e.ID, "err", err)
		return
	}
	for _, m := range managers {
		_, err := s.notifier.Notify(ctx, notifications.NotifyRequest{
			WorkspaceID: e.WorkspaceID,
			UserID:      m.ID,
			Type:        notifications.TypeEscalation,
			Priority:    notifications.PriorityUrgent,
			Title:       e.Title,
			Message:     fmt.Sprintf("A %s priority escalation is due by %s.", e.Priority, e.DueDate.Format(time.RFC3339)),
			Metadata:    fmt.Sprintf(`{"escalation_id":%q}`, e.ID),
		})
		if err != nil {
			logger.From(ctx).Warn("escalation notification failed", "escalation_id", e.ID, "user_id", m.ID, "err", err)
		}
	}
}

type ResponseRequest struct {
	Content  string `json:"content" binding:"required"`
	IsPublic bool   `json:"is_public"`
}

func (s *Service) Respond(ctx context.Context, c auth.Caller, feedbackID string, req ResponseRequest) (Response, error) {
	f, err := s.load(ctx, c, feedbackID)
	if err != nil {
		return Response{}, err
	}
	if strings.TrimSpace(req.Content) == "" {
		return Response{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	return s.repo.CreateResponse(ctx, Response{
		ID:          uuid.NewString(),
		FeedbackID:  f.ID,
		ResponderID: c.UserID,
		Content:     req.Content,
		IsPublic:    req.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (s *Service) Responses(ctx context.Context, c auth.Caller, feedbackID string) ([]Response, error) {
	if _, err := s.load(ctx, c, feedbackID); err != nil {
		return nil, err
	}
	return s.repo.ListResponses(ctx, feedbackID)
}

// DeleteResponse is limited to the responder and admins.
func (s *Service) DeleteResponse(ctx context.Context, c auth.Caller, feedbackID, id string) error {
	if _, err := s.load(ctx, c, feedbackID); err != nil {
		return err
	}
	rs, err := s.repo.ListResponses(ctx, feedbackID)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(rs, func(r Response) bool { return r.ID == id })
	if i < 0 {
		return ErrResponseNotFound
	}
	if rs[i].ResponderID != c.UserID && !rbac.IsTenantAdmin(c.Role) && !rbac.IsPlatformAdmin(c.Role) {
		return ErrForbidden
	}
	return s.repo.DeleteResponse(ctx, feedbackID, id)
}

func (s *Service) Stats(ctx context.Context, c auth.Caller) (Stats, error) {
	st, err := s.repo.Stats(ctx, scope(c))
	if err != nil {
		return Stats{}, err
	}
	if st.Recent == nil {
		st.Recent = []RecentFeedback{}
	}
	if st.TopIssues == nil {
		st.TopIssues = []IssueCount{}
	}
	return st, nil
}
