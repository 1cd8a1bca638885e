package feedback

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu          sync.Mutex
	feedback    map[string]Feedback
	responses   map[string]Response
	escalations map[string]Escalation
	notes       []EscalationNote
	surveys     map[string]Survey
	questions   map[string]Question
	submissions []Submission
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		feedback:    map[string]Feedback{},
		responses:   map[string]Response{},
		escalations: map[string]Escalation{},
		surveys:     map[string]Survey{},
		questions:   map[string]Question{},
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

func (r *MemoryRepo) CreateFeedback(ctx context.Context, f Feedback) (Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback[f.ID] = f
	return f, nil
}

func (r *MemoryRepo) GetFeedback(ctx context.Context, id string) (Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feedback[id]
	if !ok {
		return Feedback{}, ErrFeedbackNotFound
	}
	return f, nil
}

func (r *MemoryRepo) UpdateFeedback(ctx context.Context, f Feedback) (Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.feedback[f.ID]; !ok {
		return Feedback{}, ErrFeedbackNotFound
	}
	r.feedback[f.ID] = f
	return f, nil
}

func (r *MemoryRepo) DeleteFeedback(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.feedback[id]; !ok {
		return ErrFeedbackNotFound
	}
	delete(r.feedback, id)
	return nil
}

func (r *MemoryRepo) filtered(f Filter) []Feedback {
	search := strings.ToLower(f.Search)
	var out []Feedback
	for _, fb := range r.feedback {
		if f.WorkspaceID != "" && fb.WorkspaceID != f.WorkspaceID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, fb.Status) {
			continue
		}
		if f.Category != "" && fb.Category != f.Category {
			continue
		}
		if f.Sentiment != "" && fb.Sentiment != f.Sentiment {
			continue
		}
		if f.IsPublic != nil && fb.IsPublic != *f.IsPublic {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(fb.Title+" "+fb.Content+" "+fb.CustomerName+" "+fb.CustomerEmail), search) {
			continue
		}
		out = append(out, fb)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MemoryRepo) ListFeedback(ctx context.Context, f Filter) ([]Feedback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return window(r.filtered(f), f.Limit, f.Offset), nil
}

func (r *MemoryRepo) Stats(ctx context.Context, workspaceID string) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := r.filtered(Filter{WorkspaceID: workspaceID})
	st := Stats{ByCategory: map[string]int{}, ByStatus: map[string]int{}, BySentiment: map[string]int{}}
	issues := map[Category]int{}
	sum := 0
	for _, f := range items {
		st.Total++
		sum += f.OverallRating
		switch {
		case f.OverallRating >= 4:
			st.Positive++
		case f.OverallRating <= 2:
			st.Negative++
			issues[f.Category]++
		default:
			st.Neutral++
		}
		st.ByCategory[string(f.Category)]++
		st.ByStatus[string(f.Status)]++
		st.BySentiment[string(f.Sentiment)]++
	}
	if st.Total > 0 {
		st.AvgRating = round2(float64(sum) / float64(st.Total))
	}
	for _, f := range window(items, 5, 0) {
		st.Recent = append(st.Recent, RecentFeedback{ID: f.ID, Title: f.Title, OverallRating: f.OverallRating, CustomerName: f.CustomerName, CreatedAt: f.CreatedAt})
	}
	for c, n := range issues {
		st.TopIssues = append(st.TopIssues, IssueCount{Category: c, Count: n})
	}
	sort.Slice(st.TopIssues, func(i, j int) bool {
		if st.TopIssues[i].Count != st.TopIssues[j].Count {
			return st.TopIssues[i].Count > st.TopIssues[j].Count
		}
		return st.TopIssues[i].Category < st.TopIssues[j].Category
	})
	st.TopIssues = window(st.TopIssues, 5, 0)
	return st, nil
}

func (r *MemoryRepo) CreateResponse(ctx context.Context, resp Response) (Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[resp.ID] = resp
	return resp, nil
}

func (r *MemoryRepo) ListResponses(ctx context.Context, feedbackID string) ([]Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Response
	for _, resp := range r.responses {
		if resp.FeedbackID == feedbackID {
			out = append(out, resp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepo) DeleteResponse(ctx context.Context, feedbackID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.responses[id]
	if !ok || resp.FeedbackID != feedbackID {
		return ErrResponseNotFound
	}
	delete(r.responses, id)
	return nil
}

func (r *MemoryRepo) Escalate(ctx context.Context, f Feedback, e Escalation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.feedback[f.ID]; !ok {
		return ErrFeedbackNotFound
	}
	r.escalations[e.ID] = e
	r.feedback[f.ID] = f
	return nil
}

func (r *MemoryRepo) GetEscalation(ctx context.Context, id string) (Escalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.escalations[id]
	if !ok {
		return Escalation{}, ErrEscalationNotFound
	}
	return e, nil
}

func (r *MemoryRepo) UpdateEscalation(ctx context.Context, e Escalation) (Escalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.escalations[e.ID]; !ok {
		return Escalation{}, ErrEscalationNotFound
	}
	r.escalations[e.ID] = e
	return e, nil
}

func (r *MemoryRepo) ListEscalations(ctx context.Context, f EscalationFilter) ([]Escalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Escalation
	for _, e := range r.escalations {
		if f.WorkspaceID != "" && e.WorkspaceID != f.WorkspaceID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		if f.AssignedTo != "" && e.AssignedTo != f.AssignedTo {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) AddNote(ctx context.Context, n EscalationNote) (EscalationNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	return n, nil
}

func (r *MemoryRepo) ListNotes(ctx context.Context, escalationID string) ([]EscalationNote, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EscalationNote
	for i := len(r.notes) - 1; i >= 0; i-- {
		if r.notes[i].EscalationID == escalationID {
			out = append(out, r.notes[i])
		}
	}
	return out, nil
}

func (r *MemoryRepo) CreateSurvey(ctx context.Context, s Survey) (Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.Questions = nil
	r.surveys[s.ID] = s
	return s, nil
}

func (r *MemoryRepo) GetSurvey(ctx context.Context, id string) (Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.surveys[id]
	if !ok {
		return Survey{}, ErrSurveyNotFound
	}
	s.Questions = r.questionsOf(id)
	return s, nil
}

func (r *MemoryRepo) UpdateSurvey(ctx context.Context, s Survey) (Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surveys[s.ID]; !ok {
		return Survey{}, ErrSurveyNotFound
	}
	s.Questions = nil
	r.surveys[s.ID] = s
	return s, nil
}

func (r *MemoryRepo) DeleteSurvey(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.surveys[id]; !ok {
		return ErrSurveyNotFound
	}
	delete(r.surveys, id)
	for qid, q := range r.questions {
		if q.SurveyID == id {
			delete(r.questions, qid)
		}
	}
	return nil
}

func (r *MemoryRepo) ListSurveys(ctx context.Context, f SurveyFilter) ([]Survey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Survey
	for _, s := range r.surveys {
		if f.WorkspaceID != "" && s.WorkspaceID != f.WorkspaceID {
			continue
		}
		if f.SurveyType != "" && s.SurveyType != f.SurveyType {
			continue
		}
		if f.IsActive != nil && s.IsActive != *f.IsActive {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) CreateQuestion(ctx context.Context, q Question) (Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.questions[q.ID] = q
	return q, nil
}

func (r *MemoryRepo) UpdateQuestion(ctx context.Context, q Question) (Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.questions[q.ID]
	if !ok || old.SurveyID != q.SurveyID {
		return Question{}, ErrQuestionNotFound
	}
	r.questions[q.ID] = q
	return q, nil
}

func (r *MemoryRepo) DeleteQuestion(ctx context.Context, surveyID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok || q.SurveyID != surveyID {
		return ErrQuestionNotFound
	}
	delete(r.questions, id)
	return nil
}

func (r *MemoryRepo) questionsOf(surveyID string) []Question {
	out := []Question{}
	for _, q := range r.questions {
		if q.SurveyID == surveyID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *MemoryRepo) ListQuestions(ctx context.Context, surveyID string) ([]Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.questionsOf(surveyID), nil
}

func (r *MemoryRepo) CreateSubmission(ctx context.Context, s Submission) (Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, s)
	return s, nil
}

func (r *MemoryRepo) ListSubmissions(ctx context.Context, surveyID string, limit, offset int) ([]Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Submission
	for i := len(r.submissions) - 1; i >= 0; i-- {
		if r.submissions[i].SurveyID == surveyID {
			out = append(out, r.submissions[i])
		}
	}
	return window(out, limit, offset), nil
}
