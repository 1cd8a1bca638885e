// Package feedback collects customer feedback, escalates bad experiences
// and runs tenant surveys.
package feedback

import (
	"fmt"
	"math"
	"time"

	"bizops-platform/internal/apperr"
)

type Category string

const (
	CategoryProductQuality    Category = "product_quality"
	CategoryServiceExperience Category = "service_experience"
	CategoryStaffBehavior     Category = "staff_behavior"
	CategoryStoreAmbience     Category = "store_ambience"
	CategoryPricing           Category = "pricing"
	CategoryDelivery          Category = "delivery"
	CategoryWebsiteExperience Category = "website_experience"
	CategoryCustomerSupport   Category = "customer_support"
	CategoryGeneral           Category = "general"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryProductQuality, CategoryServiceExperience, CategoryStaffBehavior, CategoryStoreAmbience,
		CategoryPricing, CategoryDelivery, CategoryWebsiteExperience, CategoryCustomerSupport, CategoryGeneral:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusReviewed  Status = "reviewed"
	StatusActioned  Status = "actioned"
	StatusClosed    Status = "closed"
	StatusEscalated Status = "escalated"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusReviewed, StatusActioned, StatusClosed, StatusEscalated:
		return true
	}
	return false
}

// PublicStatuses are the statuses public feedback must be in to be listed.
var PublicStatuses = []Status{StatusReviewed, StatusActioned, StatusClosed}

type Sentiment string

const (
	SentimentVeryPositive Sentiment = "very_positive"
	SentimentPositive     Sentiment = "positive"
	SentimentNeutral      Sentiment = "neutral"
	SentimentNegative     Sentiment = "negative"
	SentimentVeryNegative Sentiment = "very_negative"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentVeryPositive, SentimentPositive, SentimentNeutral, SentimentNegative, SentimentVeryNegative:
		return true
	}
	return false
}

type Feedback struct {
	ID          string   `json:"id"`
	WorkspaceID string   `json:"workspace_id"`
	StoreID     string   `json:"store_id,omitempty"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Category    Category `json:"category"`
	Status      Status   `json:"status"`

	OverallRating int  `json:"overall_rating"`
	ProductRating *int `json:"product_rating,omitempty"`
	ServiceRating *int `json:"service_rating,omitempty"`
	ValueRating   *int `json:"value_rating,omitempty"`

	Sentiment      Sentiment `json:"sentiment,omitempty"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`

	CustomerName  string   `json:"customer_name,omitempty"`
	CustomerEmail string   `json:"customer_email,omitempty"`
	CustomerPhone string   `json:"customer_phone,omitempty"`
	IsAnonymous   bool     `json:"is_anonymous"`
	IsPublic      bool     `json:"is_public"`
	Tags          []string `json:"tags"`

	SubmittedBy  string     `json:"submitted_by,omitempty"`
	ReviewedBy   string     `json:"reviewed_by,omitempty"`
	EscalationID string     `json:"escalation_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	ActionedAt   *time.Time `json:"actioned_at,omitempty"`
}

// ApplySentiment derives sentiment from the overall rating when none was given.
func (f *Feedback) ApplySentiment() {
	if f.Sentiment != "" {
		return
	}
	var score float64
	switch {
	case f.OverallRating >= 4:
		f.Sentiment, score = SentimentPositive, 0.8
	case f.OverallRating == 3:
		f.Sentiment, score = SentimentNeutral, 0.0
	default:
		f.Sentiment, score = SentimentNegative, -0.6
	}
	f.SentimentScore = &score
}

// SetStatus stamps reviewed_at and actioned_at the first time they are reached.
func (f *Feedback) SetStatus(s Status, now time.Time) {
	if f.Status == s {
		return
	}
	f.Status = s
	switch s {
	case StatusReviewed:
		if f.ReviewedAt == nil {
			f.ReviewedAt = &now
		}
	case StatusActioned:
		if f.ActionedAt == nil {
			f.ActionedAt = &now
		}
	}
}

// AverageRating is the mean of the ratings that are set.
func (f Feedback) AverageRating() float64 {
	sum, n := f.OverallRating, 1
	for _, r := range []*int{f.ProductRating, f.ServiceRating, f.ValueRating} {
		if r != nil {
			sum += *r
			n++
		}
	}
	return float64(sum) / float64(n)
}

func (f Feedback) IsPositive() bool { return f.OverallRating >= 4 }
func (f Feedback) IsNegative() bool { return f.OverallRating <= 2 }

type View struct {
	Feedback
	AverageRating float64 `json:"average_rating"`
	IsPositive    bool    `json:"is_positive"`
	IsNegative    bool    `json:"is_negative"`
}

func (f Feedback) View() View {
	v := View{Feedback: f, AverageRating: round2(f.AverageRating()), IsPositive: f.IsPositive(), IsNegative: f.IsNegative()}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	return v
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func validRating(r *int) bool { return r == nil || (*r >= 1 && *r <= 5) }

type Response struct {
	ID          string    `json:"id"`
	FeedbackID  string    `json:"feedback_id"`
	ResponderID string    `json:"responder_id"`
	Content     string    `json:"content"`
	IsPublic    bool      `json:"is_public"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type EscalationStatus string

const (
	EscalationOpen            EscalationStatus = "open"
	EscalationInProgress      EscalationStatus = "in_progress"
	EscalationPendingCustomer EscalationStatus = "pending_customer"
	EscalationResolved        EscalationStatus = "resolved"
	EscalationClosed          EscalationStatus = "closed"
	EscalationCancelled       EscalationStatus = "cancelled"
)

func (s EscalationStatus) Valid() bool {
	switch s {
	case EscalationOpen, EscalationInProgress, EscalationPendingCustomer, EscalationResolved, EscalationClosed, EscalationCancelled:
		return true
	}
	return false
}

const (
	EscalationCategoryComplaint = "complaint"
	EscalationCategoryOther     = "other"

	DefaultSLAHours = 24
)

type Escalation struct {
	ID          string           `json:"id"`
	WorkspaceID string           `json:"workspace_id"`
	FeedbackID  string           `json:"feedback_id,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Priority    string           `json:"priority"`
	Status      EscalationStatus `json:"status"`
	CreatedBy   string           `json:"created_by"`
	AssignedTo  string           `json:"assigned_to,omitempty"`
	SLAHours    int              `json:"sla_hours"`
	DueDate     time.Time        `json:"due_date"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	AssignedAt  *time.Time       `json:"assigned_at,omitempty"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time       `json:"closed_at,omitempty"`
}

// SetStatus stamps assigned_at, resolved_at and closed_at on first entry.
func (e *Escalation) SetStatus(s EscalationStatus, now time.Time) {
	if e.Status == s {
		return
	}
	e.Status = s
	switch s {
	case EscalationInProgress:
		if e.AssignedAt == nil {
			e.AssignedAt = &now
		}
	case EscalationResolved:
		if e.ResolvedAt == nil {
			e.ResolvedAt = &now
		}
	case EscalationClosed:
		if e.ClosedAt == nil {
			e.ClosedAt = &now
		}
	}
}

func (e Escalation) IsOverdue(now time.Time) bool {
	if e.Status == EscalationResolved || e.Status == EscalationClosed {
		return false
	}
	return now.After(e.DueDate)
}

type EscalationNote struct {
	ID           string    `json:"id"`
	EscalationID string    `json:"escalation_id"`
	AuthorID     string    `json:"author_id"`
	Content      string    `json:"content"`
	IsInternal   bool      `json:"is_internal"`
	CreatedAt    time.Time `json:"created_at"`
}

type SurveyType string

const (
	SurveyPostPurchase      SurveyType = "post_purchase"
	SurveyServiceEvaluation SurveyType = "service_evaluation"
	SurveySatisfaction      SurveyType = "satisfaction"
	SurveyCustom            SurveyType = "custom"
)

func (t SurveyType) Valid() bool {
	switch t {
	case SurveyPostPurchase, SurveyServiceEvaluation, SurveySatisfaction, SurveyCustom:
		return true
	}
	return false
}

type Survey struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	SurveyType  SurveyType `json:"survey_type"`
	IsActive    bool       `json:"is_active"`
	IsAnonymous bool       `json:"is_anonymous"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Questions   []Question `json:"questions"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Open reports whether the survey accepts submissions at now.
func (s Survey) Open(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.StartDate != nil && now.Before(*s.StartDate) {
		return false
	}
	return s.EndDate == nil || !now.After(*s.EndDate)
}

type QuestionType string

const (
	QuestionRating         QuestionType = "rating"
	QuestionText           QuestionType = "text"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionYesNo          QuestionType = "yes_no"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionRating, QuestionText, QuestionMultipleChoice, QuestionYesNo:
		return true
	}
	return false
}

type Question struct {
	ID           string       `json:"id"`
	SurveyID     string       `json:"survey_id"`
	QuestionText string       `json:"question_text"`
	QuestionType QuestionType `json:"question_type"`
	IsRequired   bool         `json:"is_required"`
	Order        int          `json:"order"`
	Options      []string     `json:"options"`
	CreatedAt    time.Time    `json:"created_at"`
}

type Submission struct {
	ID          string         `json:"id"`
	SurveyID    string         `json:"survey_id"`
	WorkspaceID string         `json:"workspace_id"`
	Answers     map[string]any `json:"answers"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

type RecentFeedback struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	OverallRating int       `json:"overall_rating"`
	CustomerName  string    `json:"customer_name"`
	CreatedAt     time.Time `json:"created_at"`
}

type IssueCount struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
}

type Stats struct {
	Total       int              `json:"total_feedback"`
	Positive    int              `json:"positive_feedback"`
	Negative    int              `json:"negative_feedback"`
	Neutral     int              `json:"neutral_feedback"`
	AvgRating   float64          `json:"avg_overall_rating"`
	ByCategory  map[string]int   `json:"feedback_by_category"`
	ByStatus    map[string]int   `json:"feedback_by_status"`
	BySentiment map[string]int   `json:"feedback_by_sentiment"`
	Recent      []RecentFeedback `json:"recent_feedback"`
	TopIssues   []IssueCount     `json:"top_issues"`
}

type QuestionAverage struct {
	QuestionID   string  `json:"question_id"`
	QuestionText string  `json:"question_text"`
	Responses    int     `json:"responses"`
	Average      float64 `json:"average"`
}

type SurveyStats struct {
	SurveyID    string            `json:"survey_id"`
	Submissions int               `json:"total_submissions"`
	Ratings     []QuestionAverage `json:"rating_questions"`
}

var (
	ErrFeedbackNotFound   = fmt.Errorf("feedback: feedback %w", apperr.ErrNotFound)
	ErrResponseNotFound   = fmt.Errorf("feedback: response %w", apperr.ErrNotFound)
	ErrEscalationNotFound = fmt.Errorf("feedback: escalation %w", apperr.ErrNotFound)
	ErrSurveyNotFound     = fmt.Errorf("feedback: survey %w", apperr.ErrNotFound)
	ErrQuestionNotFound   = fmt.Errorf("feedback: question %w", apperr.ErrNotFound)
	ErrInvalidArgument    = fmt.Errorf("feedback: %w", apperr.ErrInvalidArgument)
	ErrForbidden          = fmt.Errorf("feedback: %w", apperr.ErrForbidden)
	ErrTenantRequired     = fmt.Errorf("feedback: tenant_id is required: %w", apperr.ErrInvalidArgument)
	ErrSurveyClosed       = fmt.Errorf("feedback: survey is not accepting submissions: %w", apperr.ErrInvalidArgument)
	ErrAlreadyEscalated   = fmt.Errorf("feedback: already escalated: %w", apperr.ErrConflict)
)

// MissingAnswersError lists required questions left unanswered.
type MissingAnswersError struct {
	QuestionIDs []string
}

func (e *MissingAnswersError) Error() string {
	return fmt.Sprintf("feedback: %d required question(s) unanswered", len(e.QuestionIDs))
}

func (e *MissingAnswersError) Unwrap() error { return apperr.ErrInvalidArgument }
