// Package telecalling runs the in-store lead to phone follow-up pipeline:
// sales reps record visits, managers assign them to telecallers, telecallers
// log calls, and the outcome feeds a per-phone customer profile.
package telecalling

import (
	"fmt"
	"time"

	"bizops-platform/internal/apperr"
)

type LeadQuality string

const (
	LeadHot  LeadQuality = "hot"
	LeadWarm LeadQuality = "warm"
	LeadCold LeadQuality = "cold"
)

func (q LeadQuality) Valid() bool {
	switch q {
	case LeadHot, LeadWarm, LeadCold:
		return true
	}
	return false
}

// Visit is a walk-in captured by an in-house sales rep.
type Visit struct {
	ID                   string      `json:"id" db:"id"`
	WorkspaceID          string      `json:"workspace_id" db:"workspace_id"`
	StoreID              string      `json:"store_id,omitempty" db:"store_id"`
	SalesRepID           string      `json:"sales_rep_id" db:"sales_rep_id"`
	CustomerName         string      `json:"customer_name" db:"customer_name"`
	CustomerPhone        string      `json:"customer_phone" db:"customer_phone"`
	CustomerEmail        string      `json:"customer_email,omitempty" db:"customer_email"`
	Interests            []string    `json:"interests" db:"interests"`
	VisitTimestamp       time.Time   `json:"visit_timestamp" db:"visit_timestamp"`
	Notes                string      `json:"notes" db:"notes"`
	LeadQuality          LeadQuality `json:"lead_quality" db:"lead_quality"`
	AssignedToTelecaller bool        `json:"assigned_to_telecaller" db:"assigned_to_telecaller"`
	CreatedAt            time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at" db:"updated_at"`
}

type AssignmentStatus string

const (
	AssignmentAssigned    AssignmentStatus = "assigned"
	AssignmentInProgress  AssignmentStatus = "in_progress"
	AssignmentCompleted   AssignmentStatus = "completed"
	AssignmentFollowUp    AssignmentStatus = "follow_up"
	AssignmentUnreachable AssignmentStatus = "unreachable"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentAssigned, AssignmentInProgress, AssignmentCompleted, AssignmentFollowUp, AssignmentUnreachable:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Assignment hands one visit to one telecaller.
type Assignment struct {
	ID            string           `json:"id" db:"id"`
	WorkspaceID   string           `json:"workspace_id" db:"workspace_id"`
	VisitID       string           `json:"visit_id" db:"visit_id"`
	TelecallerID  string           `json:"telecaller_id" db:"telecaller_id"`
	AssignedBy    string           `json:"assigned_by" db:"assigned_by"`
	Status        AssignmentStatus `json:"status" db:"status"`
	Priority      Priority         `json:"priority" db:"priority"`
	ScheduledTime *time.Time       `json:"scheduled_time,omitempty" db:"scheduled_time"`
	Notes         string           `json:"notes" db:"notes"`
	Outcome       string           `json:"outcome" db:"outcome"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallConnected     CallStatus = "connected"
	CallNoAnswer      CallStatus = "no_answer"
	CallBusy          CallStatus = "busy"
	CallWrongNumber   CallStatus = "wrong_number"
	CallNotInterested CallStatus = "not_interested"
	CallBack          CallStatus = "call_back"
)

func (s CallStatus) Valid() bool {
	switch s {
	case CallConnected, CallNoAnswer, CallBusy, CallWrongNumber, CallNotInterested, CallBack:
		return true
	}
	return false
}

// Unconnected reports whether the call should be retried.
func (s CallStatus) Unconnected() bool {
	return s == CallNoAnswer || s == CallBusy || s == CallBack
}

// AssignmentStatus is the status an assignment moves to after a call with
// this outcome. ok is false when the outcome leaves the assignment alone.
func (s CallStatus) AssignmentStatus() (status AssignmentStatus, ok bool) {
	switch s {
	case CallConnected, CallNotInterested:
		return AssignmentCompleted, true
	case CallNoAnswer, CallBusy, CallBack:
		return AssignmentFollowUp, true
	}
	return "", false
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return true
	}
	return false
}

type CallLog struct {
	ID              string     `json:"id" db:"id"`
	WorkspaceID     string     `json:"workspace_id" db:"workspace_id"`
	AssignmentID    string     `json:"assignment_id" db:"assignment_id"`
	CallTime        time.Time  `json:"call_time" db:"call_time"`
	DurationSeconds int        `json:"duration_seconds" db:"duration_seconds"`
	CallStatus      CallStatus `json:"call_status" db:"call_status"`
	Sentiment       Sentiment  `json:"customer_sentiment" db:"customer_sentiment"`
	Feedback        string     `json:"feedback" db:"feedback"`
	RevisitRequired bool       `json:"revisit_required" db:"revisit_required"`
	RevisitNotes    string     `json:"revisit_notes" db:"revisit_notes"`
	RecordingURL    string     `json:"recording_url,omitempty" db:"recording_url"`
	DispositionCode string     `json:"disposition_code,omitempty" db:"disposition_code"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// Conversion is a connected call with a positive customer.
func (l CallLog) Conversion() bool {
	return l.CallStatus == CallConnected && l.Sentiment == SentimentPositive
}

type FollowUpStatus string

const (
	FollowUpPending   FollowUpStatus = "pending"
	FollowUpCompleted FollowUpStatus = "completed"
	FollowUpOverdue   FollowUpStatus = "overdue"
	FollowUpCancelled FollowUpStatus = "cancelled"
)

func (s FollowUpStatus) Valid() bool {
	switch s {
	case FollowUpPending, FollowUpCompleted, FollowUpOverdue, FollowUpCancelled:
		return true
	}
	return false
}

type FollowUp struct {
	ID            string         `json:"id" db:"id"`
	WorkspaceID   string         `json:"workspace_id" db:"workspace_id"`
	AssignmentID  string         `json:"assignment_id" db:"assignment_id"`
	ScheduledTime time.Time      `json:"scheduled_time" db:"scheduled_time"`
	Priority      Priority       `json:"priority" db:"priority"`
	Status        FollowUpStatus `json:"status" db:"status"`
	Notes         string         `json:"notes" db:"notes"`
	CreatedBy     string         `json:"created_by" db:"created_by"`
	CompletedTime *time.Time     `json:"completed_time,omitempty" db:"completed_time"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

type Likelihood string

const (
	LikelihoodVeryHigh Likelihood = "very_high"
	LikelihoodHigh     Likelihood = "high"
	LikelihoodMedium   Likelihood = "medium"
	LikelihoodLow      Likelihood = "low"
	LikelihoodVeryLow  Likelihood = "very_low"
)

func (l Likelihood) Valid() bool {
	switch l {
	case LikelihoodVeryHigh, LikelihoodHigh, LikelihoodMedium, LikelihoodLow, LikelihoodVeryLow:
		return true
	}
	return false
}

// Profile accumulates what is known about one customer phone number within
// a tenant. The first visit that produced a call seeds it.
type Profile struct {
	ID                   string     `json:"id" db:"id"`
	WorkspaceID          string     `json:"workspace_id" db:"workspace_id"`
	Phone                string     `json:"phone" db:"phone"`
	Name                 string     `json:"name" db:"name"`
	Email                string     `json:"email,omitempty" db:"email"`
	OriginalVisitID      string     `json:"original_visit_id" db:"original_visit_id"`
	OriginalNotes        string     `json:"original_notes" db:"original_notes"`
	TelecallerFeedback   string     `json:"telecaller_feedback" db:"telecaller_feedback"`
	EngagementScore      int        `json:"engagement_score" db:"engagement_score"`
	ConversionLikelihood Likelihood `json:"conversion_likelihood" db:"conversion_likelihood"`
	LastContact          *time.Time `json:"last_contact,omitempty" db:"last_contact"`
	NextFollowUp         *time.Time `json:"next_follow_up,omitempty" db:"next_follow_up"`
	Tags                 []string   `json:"tags" db:"tags"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

const (
	baseEngagement = 50
	highEngagement = 80
)

// EngagementScore rates a call outcome on a 0-100 scale.
func EngagementScore(status CallStatus, sentiment Sentiment) int {
	score := baseEngagement
	switch status {
	case CallConnected:
		score += 30
	case CallBack:
		score += 20
	case CallNoAnswer:
		score += 10
	}
	switch sentiment {
	case SentimentPositive:
		score += 20
	case SentimentNeutral:
		score += 10
	case SentimentNegative:
		score -= 20
	}
	return max(0, min(100, score))
}

func ConversionLikelihood(status CallStatus, sentiment Sentiment) Likelihood {
	switch {
	case status == CallConnected && sentiment == SentimentPositive:
		return LikelihoodVeryHigh
	case status == CallConnected && sentiment == SentimentNeutral:
		return LikelihoodHigh
	case status == CallBack:
		return LikelihoodMedium
	case status == CallNotInterested:
		return LikelihoodVeryLow
	}
	return LikelihoodLow
}

type NotificationType string

const (
	NotifyAssignment    NotificationType = "assignment"
	NotifyFeedback      NotificationType = "feedback"
	NotifyFollowUp      NotificationType = "follow_up"
	NotifyHighPotential NotificationType = "high_potential"
	NotifySystem        NotificationType = "system"
)

// Notification is the telecalling team's own alert feed.
type Notification struct {
	ID           string           `json:"id" db:"id"`
	WorkspaceID  string           `json:"workspace_id" db:"workspace_id"`
	RecipientID  string           `json:"recipient_id" db:"recipient_id"`
	Title        string           `json:"title" db:"title"`
	Message      string           `json:"message" db:"message"`
	Type         NotificationType `json:"notification_type" db:"notification_type"`
	AssignmentID string           `json:"related_assignment,omitempty" db:"assignment_id"`
	IsRead       bool             `json:"is_read" db:"is_read"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
}

var (
	ErrVisitNotFound        = fmt.Errorf("telecalling: visit %w", apperr.ErrNotFound)
	ErrAssignmentNotFound   = fmt.Errorf("telecalling: assignment %w", apperr.ErrNotFound)
	ErrCallLogNotFound      = fmt.Errorf("telecalling: call log %w", apperr.ErrNotFound)
	ErrFollowUpNotFound     = fmt.Errorf("telecalling: follow-up %w", apperr.ErrNotFound)
	ErrProfileNotFound      = fmt.Errorf("telecalling: customer profile %w", apperr.ErrNotFound)
	ErrNotificationNotFound = fmt.Errorf("telecalling: notification %w", apperr.ErrNotFound)
	ErrAlreadyAssigned      = fmt.Errorf("telecalling: visit already assigned: %w", apperr.ErrConflict)
	ErrInvalidArgument      = fmt.Errorf("telecalling: %w", apperr.ErrInvalidArgument)
	ErrForbidden            = fmt.Errorf("telecalling: %w", apperr.ErrForbidden)
)
