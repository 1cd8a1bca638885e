package feedback

import (
	"context"
	"math"
	"strings"
	"time"

	"bizops-platform/internal/auth"

	"github.com/google/uuid"
)

type SurveyRequest struct {
	Name        string     `json:"name" binding:"required,max=200"`
	Description string     `json:"description"`
	SurveyType  SurveyType `json:"survey_type"`
	IsActive    *bool      `json:"is_active"`
	IsAnonymous bool       `json:"is_anonymous"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

func (s *Service) CreateSurvey(ctx context.Context, c auth.Caller, req SurveyRequest) (Survey, error) {
	if req.SurveyType == "" {
		req.SurveyType = SurveySatisfaction
	}
	if !req.SurveyType.Valid() || strings.TrimSpace(req.Name) == "" {
		return Survey{}, ErrInvalidArgument
	}
	if req.StartDate != nil && req.EndDate != nil && req.EndDate.Before(*req.StartDate) {
		return Survey{}, ErrInvalidArgument
	}
	now := s.clock().UTC()
	sv, err := s.repo.CreateSurvey(ctx, Survey{
		ID:          uuid.NewString(),
		WorkspaceID: c.WorkspaceID,
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		SurveyType:  req.SurveyType,
		IsActive:    req.IsActive == nil || *req.IsActive,
		IsAnonymous: req.IsAnonymous,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	sv.Questions = []Question{}
	return sv, err
}

func (s *Service) ListSurveys(ctx context.Context, c auth.Caller, f SurveyFilter) ([]Survey, error) {
	f.WorkspaceID = scope(c)
	return s.repo.ListSurveys(ctx, f)
}

// GetSurvey returns the survey with its questions sorted by order.
func (s *Service) GetSurvey(ctx context.Context, c auth.Caller, id string) (Survey, error) {
	sv, err := s.repo.GetSurvey(ctx, id)
	if err != nil {
		return Survey{}, err
	}
	if !visible(c, sv.WorkspaceID) {
		return Survey{}, ErrSurveyNotFound
	}
	return sv, nil
}

type SurveyUpdate struct {
	Name        *string     `json:"name" binding:"omitempty,max=200"`
	Description *string     `json:"description"`
	SurveyType  *SurveyType `json:"survey_type"`
	IsActive    *bool       `json:"is_active"`
	IsAnonymous *bool       `json:"is_anonymous"`
	StartDate   *time.Time  `json:"start_date"`
	EndDate     *time.Time  `json:"end_date"`
}

func (s *Service) UpdateSurvey(ctx context.Context, c auth.Caller, id string, req SurveyUpdate) (Survey, error) {
	sv, err := s.GetSurvey(ctx, c, id)
	if err != nil {
		return Survey{}, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return Survey{}, ErrInvalidArgument
		}
		sv.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		sv.Description = *req.Description
	}
	if req.SurveyType != nil {
		if !req.SurveyType.Valid() {
			return Survey{}, ErrInvalidArgument
		}
		sv.SurveyType = *req.SurveyType
	}
	if req.IsActive != nil {
		sv.IsActive = *req.IsActive
	}
	if req.IsAnonymous != nil {
		sv.IsAnonymous = *req.IsAnonymous
	}
	if req.StartDate != nil {
		sv.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		sv.EndDate = req.EndDate
	}
	sv.UpdatedAt = s.clock().UTC()
	questions := sv.Questions
	sv, err = s.repo.UpdateSurvey(ctx, sv)
	sv.Questions = questions
	return sv, err
}

func (s *Service) DeleteSurvey(ctx context.Context, c auth.Caller, id string) error {
	if _, err := s.GetSurvey(ctx, c, id); err != nil {
		return err
	}
	return s.repo.DeleteSurvey(ctx, id)
}

type QuestionRequest struct {
	QuestionText string       `json:"question_text" binding:"required,max=500"`
	QuestionType QuestionType `json:"question_type"`
	IsRequired   *bool        `json:"is_required"`
	Order        int          `json:"order" binding:"min=0"`
	Options      []string     `json:"options"`
}

func (req QuestionRequest) question(surveyID string, now time.Time) (Question, error) {
	if req.QuestionType == "" {
		req.QuestionType = QuestionRating
	}
	if !req.QuestionType.Valid() || strings.TrimSpace(req.QuestionText) == "" || req.Order < 0 {
		return Question{}, ErrInvalidArgument
	}
	if req.QuestionType == QuestionMultipleChoice && len(req.Options) == 0 {
		return Question{}, ErrInvalidArgument
	}
	return Question{
		SurveyID:     surveyID,
		QuestionText: strings.TrimSpace(req.QuestionText),
		QuestionType: req.QuestionType,
		IsRequired:   req.IsRequired == nil || *req.IsRequired,
		Order:        req.Order,
		Options:      req.Options,
		CreatedAt:    now,
	}, nil
}

func (s *Service) AddQuestion(ctx context.Context, c auth.Caller, surveyID string, req QuestionRequest) (Question, error) {
	if _, err := s.GetSurvey(ctx, c, surveyID); err != nil {
		return Question{}, err
	}
	q, err := req.question(surveyID, s.clock().UTC())
	if err != nil {
		return Question{}, err
	}
	q.ID = uuid.NewString()
	return s.repo.CreateQuestion(ctx, q)
}

func (s *Service) UpdateQuestion(ctx context.Context, c auth.Caller, surveyID, id string, req QuestionRequest) (Question, error) {
	sv, err := s.GetSurvey(ctx, c, surveyID)
	if err != nil {
		return Question{}, err
	}
	var existing *Question
	for i := range sv.Questions {
		if sv.Questions[i].ID == id {
			existing = &sv.Questions[i]
		}
	}
	if existing == nil {
		return Question{}, ErrQuestionNotFound
	}
	q, err := req.question(surveyID, existing.CreatedAt)
	if err != nil {
		return Question{}, err
	}
	q.ID = id
	return s.repo.UpdateQuestion(ctx, q)
}

func (s *Service) DeleteQuestion(ctx context.Context, c auth.Caller, surveyID, id string) error {
	if _, err := s.GetSurvey(ctx, c, surveyID); err != nil {
		return err
	}
	return s.repo.DeleteQuestion(ctx, surveyID, id)
}

type SubmissionRequest struct {
	Answers map[string]any `json:"answers" binding:"required"`
}

func answered(v any) bool {
	switch a := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(a) != ""
	case []any:
		return len(a) > 0
	}
	return true
}

// Submit records answers keyed by question ID. Every required question must
// be answered. ipAddress and userAgent come from the request.
func (s *Service) Submit(ctx context.Context, surveyID string, req SubmissionRequest, ipAddress, userAgent string) (Submission, error) {
	sv, err := s.repo.GetSurvey(ctx, surveyID)
	if err != nil {
		return Submission{}, err
	}
	now := s.clock().UTC()
	if !sv.Open(now) {
		return Submission{}, ErrSurveyClosed
	}
	var missing []string
	for _, q := range sv.Questions {
		if q.IsRequired && !answered(req.Answers[q.ID]) {
			missing = append(missing, q.ID)
		}
	}
	if len(missing) > 0 {
		return Submission{}, &MissingAnswersError{QuestionIDs: missing}
	}
	sub := Submission{
		ID:          uuid.NewString(),
		SurveyID:    sv.ID,
		WorkspaceID: sv.WorkspaceID,
		Answers:     req.Answers,
		UserAgent:   userAgent,
		SubmittedAt: now,
	}
	if !sv.IsAnonymous {
		sub.IPAddress = ipAddress
	}
	return s.repo.CreateSubmission(ctx, sub)
}

func (s *Service) Submissions(ctx context.Context, c auth.Caller, surveyID string, limit, offset int) ([]Submission, error) {
	if _, err := s.GetSurvey(ctx, c, surveyID); err != nil {
		return nil, err
	}
	return s.repo.ListSubmissions(ctx, surveyID, limit, offset)
}

func ratingValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, n >= 1 && n <= 5
	case int:
		return float64(n), n >= 1 && n <= 5
	}
	return 0, false
}

// SurveyStats counts submissions and averages every rating question.
func (s *Service) SurveyStats(ctx context.Context, c auth.Caller, surveyID string) (SurveyStats, error) {
	sv, err := s.GetSurvey(ctx, c, surveyID)
	if err != nil {
		return SurveyStats{}, err
	}
	subs, err := s.repo.ListSubmissions(ctx, surveyID, 0, 0)
	if err != nil {
		return SurveyStats{}, err
	}
	st := SurveyStats{SurveyID: sv.ID, Submissions: len(subs), Ratings: []QuestionAverage{}}
	for _, q := range sv.Questions {
		if q.QuestionType != QuestionRating {
			continue
		}
		qa := QuestionAverage{QuestionID: q.ID, QuestionText: q.QuestionText}
		var sum float64
		for _, sub := range subs {
			if v, ok := ratingValue(sub.Answers[q.ID]); ok {
				sum += v
				qa.Responses++
			}
		}
		if qa.Responses > 0 {
			qa.Average = math.Round(sum/float64(qa.Responses)*100) / 100
		}
		st.Ratings = append(st.Ratings, qa)
	}
	return st, nil
}
