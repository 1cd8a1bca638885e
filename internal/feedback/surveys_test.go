package feedback

import (
	"context"
	"errors"
	"testing"
	"time"

	"bizops-platform/internal/apperr"
)

func TestSurvey_RequiredAnswersAndStats(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	sv, err := svc.CreateSurvey(ctx, manager, SurveyRequest{Name: "Post purchase", SurveyType: SurveyPostPurchase})
	if err != nil {
		t.Fatalf("create survey: %v", err)
	}
	optional := false
	q2, err := svc.AddQuestion(ctx, manager, sv.ID, QuestionRequest{QuestionText: "Comments?", QuestionType: QuestionText, Order: 2, IsRequired: &optional})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	q1, err := svc.AddQuestion(ctx, manager, sv.ID, QuestionRequest{QuestionText: "Rate us", Order: 1})
	if err != nil {
		t.Fatalf("add question: %v", err)
	}
	if _, err := svc.AddQuestion(ctx, manager, sv.ID, QuestionRequest{QuestionText: "Pick", QuestionType: QuestionMultipleChoice}); !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("multiple choice without options must fail, got %v", err)
	}

	got, err := svc.GetSurvey(ctx, manager, sv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Questions) != 2 || got.Questions[0].ID != q1.ID || got.Questions[1].ID != q2.ID {
		t.Fatalf("questions must be sorted by order: %+v", got.Questions)
	}

	_, err = svc.Submit(ctx, sv.ID, SubmissionRequest{Answers: map[string]any{q2.ID: "great"}}, "1.2.3.4", "ua")
	var missing *MissingAnswersError
	if !errors.As(err, &missing) || len(missing.QuestionIDs) != 1 || missing.QuestionIDs[0] != q1.ID {
		t.Fatalf("expected missing %s, got %v", q1.ID, err)
	}
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("missing answers must map to 400")
	}

	for _, r := range []float64{5, 4} {
		sub, err := svc.Submit(ctx, sv.ID, SubmissionRequest{Answers: map[string]any{q1.ID: r}}, "1.2.3.4", "ua")
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		if sub.IPAddress != "1.2.3.4" || sub.WorkspaceID != "w1" {
			t.Fatalf("unexpected submission %+v", sub)
		}
	}

	st, err := svc.SurveyStats(ctx, manager, sv.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Submissions != 2 || len(st.Ratings) != 1 || st.Ratings[0].Average != 4.5 || st.Ratings[0].Responses != 2 {
		t.Fatalf("unexpected stats %+v", st)
	}

	if _, err := svc.GetSurvey(ctx, other, sv.ID); !errors.Is(err, ErrSurveyNotFound) {
		t.Fatalf("other tenant must not see survey, got %v", err)
	}
}

func TestSurvey_ClosedRejectsSubmissions(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	end := fixedNow.Add(-time.Hour)
	sv, err := svc.CreateSurvey(ctx, manager, SurveyRequest{Name: "Old", EndDate: &end})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Submit(ctx, sv.ID, SubmissionRequest{Answers: map[string]any{}}, "", ""); !errors.Is(err, ErrSurveyClosed) {
		t.Fatalf("expected closed survey, got %v", err)
	}
}
