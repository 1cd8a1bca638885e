package automation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/notifications"
	"bizops-platform/internal/rbac"

	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Unix(1700000000, 0).UTC()

	manager  = auth.Caller{UserID: "m1", WorkspaceID: "w1", Role: rbac.RoleManager}
	staff    = auth.Caller{UserID: "u1", WorkspaceID: "w1", Role: rbac.RoleStaff}
	outsider = auth.Caller{UserID: "x1", WorkspaceID: "w2", Role: rbac.RoleBusinessAdmin}
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notifications.NotifyRequest
}

func (f *fakeNotifier) Notify(ctx context.Context, req notifications.NotifyRequest) (notifications.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, req)
	return notifications.Notification{ID: "n1"}, nil
}

type sentText struct{ workspace, phone, message string }

type fakeMessenger struct {
	mu   sync.Mutex
	sent []sentText
	err  error
}

func (f *fakeMessenger) SendText(ctx context.Context, workspaceID, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentText{workspaceID, phone, message})
	return nil
}

type fakeMailer struct{ to []string }

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	f.to = append(f.to, to)
	return nil
}

func newTestService(deps Deps) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo, deps)
	svc.clock = func() time.Time { return fixedNow }
	return svc, repo
}

func TestCondition_Match(t *testing.T) {
	input := map[string]any{
		"amount": 600.0,
		"status": "paid",
		"tags":   []any{"vip", "repeat"},
		"order":  map[string]any{"city": "Pune", "items": 3.0},
	}
	cases := []struct {
		cond Condition
		want bool
	}{
		{Condition{Field: "amount", Op: "eq", Value: "600"}, true},
		{Condition{Field: "status", Op: "eq", Value: "paid"}, true},
		{Condition{Field: "status", Op: "neq", Value: "paid"}, false},
		{Condition{Field: "missing", Op: "neq", Value: "x"}, true},
		{Condition{Field: "missing", Op: "eq", Value: "x"}, false},
		{Condition{Field: "amount", Op: "gt", Value: 500.0}, true},
		{Condition{Field: "amount", Op: "lt", Value: 500.0}, false},
		{Condition{Field: "status", Op: "gt", Value: 1.0}, false},
		{Condition{Field: "status", Op: "contains", Value: "ai"}, true},
		{Condition{Field: "tags", Op: "contains", Value: "vip"}, true},
		{Condition{Field: "tags", Op: "contains", Value: "new"}, false},
		{Condition{Field: "order.city", Op: "eq", Value: "Pune"}, true},
		{Condition{Field: "order.items", Op: "gt", Value: 2.0}, true},
		{Condition{Field: "order.city.name", Op: "eq", Value: "Pune"}, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.cond.Match(input), "%+v", tc.cond)
	}
	require.True(t, MatchAll(nil, input))
}

func TestFrequency_Next(t *testing.T) {
	base := time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)
	require.Equal(t, base.Add(time.Minute), FrequencyMinutely.Next(base, 0))
	require.Equal(t, base.Add(time.Hour), FrequencyHourly.Next(base, 0))
	require.Equal(t, base.AddDate(0, 0, 1), FrequencyDaily.Next(base, 0))
	require.Equal(t, base.AddDate(0, 0, 7), FrequencyWeekly.Next(base, 0))
	require.Equal(t, base.AddDate(1, 0, 0), FrequencyYearly.Next(base, 0))
	require.Equal(t, base.Add(90*time.Minute), FrequencyCustom.Next(base, 90))
	require.Equal(t, base.AddDate(0, 0, 1), FrequencyCustom.Next(base, 0))
}

func createWorkflow(t *testing.T, svc *Service, req WorkflowRequest) Workflow {
	t.Helper()
	w, err := svc.CreateWorkflow(context.Background(), manager, req)
	require.NoError(t, err)
	return w
}

func orderWorkflow() WorkflowRequest {
	return WorkflowRequest{
		Name:        "Big order follow-up",
		TriggerType: TriggerManual,
		Status:      WorkflowActive,
		Conditions:  []Condition{{Field: "amount", Op: "gt", Value: 500.0}},
		Actions: []Action{
			{Type: "notify", Params: map[string]string{"user_id": "m1", "title": "Big order", "message": "{{name}} spent {{amount}}"}},
			{Type: "whatsapp", Params: map[string]string{"phone": "{{phone}}", "message": "Thanks {{name}}!"}},
			{Type: "log", Params: map[string]string{"message": "followed up {{name}}"}},
		},
	}
}

func TestExecute_RunsActionsInOrder(t *testing.T) {
	notifier, messenger := &fakeNotifier{}, &fakeMessenger{}
	svc, repo := newTestService(Deps{Notifier: notifier, Messenger: messenger})
	ctx := context.Background()
	w := createWorkflow(t, svc, orderWorkflow())
	require.True(t, w.IsEnabled)

	e, err := svc.Execute(ctx, manager, w.ID, json.RawMessage(`{"name":"Asha","amount":600,"phone":"9876543210"}`))
	require.NoError(t, err)
	require.Equal(t, ExecutionCompleted, e.Status)
	require.Equal(t, 100, e.Progress)
	require.Equal(t, "m1", e.TriggeredBy)
	require.NotNil(t, e.CompletedAt)

	var out runOutput
	require.NoError(t, json.Unmarshal(e.OutputData, &out))
	require.True(t, out.ConditionsMet)
	require.Len(t, out.Actions, 3)
	require.Equal(t, "n1", out.Actions[0].Detail)

	require.Len(t, notifier.sent, 1)
	require.Equal(t, "Asha spent 600", notifier.sent[0].Message)
	require.Equal(t, notifications.TypeTaskReminder, notifier.sent[0].Type)
	require.Equal(t, "w1", notifier.sent[0].WorkspaceID)
	require.Equal(t, []sentText{{"w1", "9876543210", "Thanks Asha!"}}, messenger.sent)

	stored, err := repo.GetWorkflow(ctx, "w1", w.ID)
	require.NoError(t, err)
	require.Equal(t, 1, stored.ExecutionCount)
	require.Equal(t, fixedNow, *stored.LastExecuted)
}

func TestExecute_UnmetConditionsSkipActions(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, _ := newTestService(Deps{Notifier: notifier, Messenger: &fakeMessenger{}})
	w := createWorkflow(t, svc, orderWorkflow())

	e, err := svc.Execute(context.Background(), manager, w.ID, json.RawMessage(`{"amount":20}`))
	require.NoError(t, err)
	require.Equal(t, ExecutionCompleted, e.Status)
	require.JSONEq(t, `{"conditions_met":false,"actions":[]}`, string(e.OutputData))
	require.Empty(t, notifier.sent)

	got, err := svc.GetWorkflow(context.Background(), manager, w.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.ExecutionCount)
}

func TestExecute_FailedActionStopsRun(t *testing.T) {
	svc, _ := newTestService(Deps{
		Notifier:  &fakeNotifier{},
		Messenger: &fakeMessenger{err: errors.New("session not started")},
	})
	w := createWorkflow(t, svc, orderWorkflow())

	e, err := svc.Execute(context.Background(), manager, w.ID, json.RawMessage(`{"name":"Ravi","amount":900,"phone":"1"}`))
	require.NoError(t, err)
	require.Equal(t, ExecutionFailed, e.Status)
	require.Equal(t, 33, e.Progress)
	require.Equal(t, "action 2 (whatsapp): session not started", e.ErrorMessage)

	list, err := svc.ListExecutions(context.Background(), manager, ExecutionFilter{WorkflowID: w.ID, Status: ExecutionFailed})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestExecute_Guards(t *testing.T) {
	svc, _ := newTestService(Deps{})
	ctx := context.Background()
	req := WorkflowRequest{
		Name: "once", TriggerType: TriggerManual, MaxExecutions: 1,
		Actions: []Action{{Type: "log", Params: map[string]string{"message": "hi"}}},
	}
	w := createWorkflow(t, svc, req)
	require.Equal(t, WorkflowDraft, w.Status)

	_, err := svc.Execute(ctx, staff, w.ID, nil)
	require.True(t, errors.Is(err, apperr.ErrForbidden))
	_, err = svc.Execute(ctx, outsider, w.ID, nil)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = svc.Execute(ctx, manager, w.ID, json.RawMessage(`[1,2]`))
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	_, err = svc.Execute(ctx, manager, w.ID, nil)
	require.NoError(t, err)
	_, err = svc.Execute(ctx, manager, w.ID, nil)
	require.True(t, errors.Is(err, ErrLimitReached))
	require.True(t, errors.Is(err, apperr.ErrConflict))

	off := false
	req.MaxExecutions = 0
	w2 := createWorkflow(t, svc, req)
	_, err = svc.UpdateWorkflow(ctx, manager, w2.ID, WorkflowUpdate{IsEnabled: &off})
	require.NoError(t, err)
	_, err = svc.Execute(ctx, manager, w2.ID, nil)
	require.True(t, errors.Is(err, ErrWorkflowDisabled))
}

func TestCreateWorkflow_Validation(t *testing.T) {
	svc, _ := newTestService(Deps{})
	ctx := context.Background()
	base := WorkflowRequest{Name: "x", TriggerType: TriggerManual}

	bad := []WorkflowRequest{
		base,
		{Name: "x", TriggerType: "cron", Actions: []Action{{Type: "log", Params: map[string]string{"message": "m"}}}},
		{Name: "x", TriggerType: TriggerManual, Actions: []Action{{Type: "sms", Params: map[string]string{}}}},
		{Name: "x", TriggerType: TriggerManual, Actions: []Action{{Type: "notify", Params: map[string]string{"user_id": "u"}}}},
		{Name: "x", TriggerType: TriggerManual, Actions: []Action{{Type: "log", Params: map[string]string{"message": "m"}}},
			Conditions: []Condition{{Field: "a", Op: "between"}}},
		{Name: "x", TriggerType: TriggerManual, Actions: []Action{{Type: "notify", Params: map[string]string{
			"user_id": "u", "title": "t", "message": "m", "type": "birthday"}}}},
	}
	for i, req := range bad {
		_, err := svc.CreateWorkflow(ctx, manager, req)
		require.True(t, errors.Is(err, apperr.ErrInvalidArgument), "case %d", i)
	}

	base.Actions = []Action{{Type: "log", Params: map[string]string{"message": "m"}}}
	_, err := svc.CreateWorkflow(ctx, staff, base)
	require.True(t, errors.Is(err, apperr.ErrForbidden))
}

func taskReq(typ TaskType, cfg string, freq Frequency, next time.Time) TaskRequest {
	return TaskRequest{
		Name: string(typ) + " task", TaskType: typ, TaskConfig: json.RawMessage(cfg),
		Frequency: freq, NextExecution: &next,
	}
}

func TestRunDueTasks_SchedulesNextRun(t *testing.T) {
	notifier := &fakeNotifier{}
	svc, _ := newTestService(Deps{Notifier: notifier})
	ctx := context.Background()

	due, err := svc.CreateTask(ctx, manager, taskReq(TaskNotification,
		`{"user_id":"m1","title":"Daily digest","message":"Check the queue"}`, FrequencyHourly, fixedNow.Add(-time.Minute)))
	require.NoError(t, err)
	require.Equal(t, defaultMaxRetries, due.MaxRetries)
	require.Equal(t, defaultRetryDelayMinutes, due.RetryDelayMinutes)
	later, err := svc.CreateTask(ctx, manager, taskReq(TaskCustom, ``, FrequencyDaily, fixedNow.Add(time.Hour)))
	require.NoError(t, err)

	sum, err := svc.RunDueTasks(ctx, fixedNow)
	require.NoError(t, err)
	require.Equal(t, RunSummary{Ran: 1, Succeeded: 1}, sum)
	require.Len(t, notifier.sent, 1)
	require.Equal(t, "Daily digest", notifier.sent[0].Title)

	got, err := svc.GetTask(ctx, manager, due.ID)
	require.NoError(t, err)
	require.Equal(t, fixedNow.Add(59*time.Minute), got.NextExecution)
	require.Equal(t, 1, got.SuccessCount)
	require.Equal(t, 100.0, got.SuccessRate())
	require.False(t, got.IsOverdue(fixedNow))

	untouched, err := svc.GetTask(ctx, manager, later.ID)
	require.NoError(t, err)
	require.Zero(t, untouched.ExecutionCount)

	sum, err = svc.RunDueTasks(ctx, fixedNow)
	require.NoError(t, err)
	require.Zero(t, sum.Ran)
}

func TestRunDueTasks_RetriesThenResumesSchedule(t *testing.T) {
	svc, _ := newTestService(Deps{})
	ctx := context.Background()
	retries := 2
	req := taskReq(TaskEmail, `{"to":"ops@example.com","subject":"Weekly"}`, FrequencyDaily, fixedNow)
	req.MaxRetries = &retries
	task, err := svc.CreateTask(ctx, manager, req)
	require.NoError(t, err)

	at := fixedNow
	for i := 1; i <= 2; i++ {
		sum, err := svc.RunDueTasks(ctx, at)
		require.NoError(t, err)
		require.Equal(t, 1, sum.Failed)
		got, err := svc.GetTask(ctx, manager, task.ID)
		require.NoError(t, err)
		require.Equal(t, i, got.RetryCount)
		require.Equal(t, at.Add(5*time.Minute), got.NextExecution)
		at = got.NextExecution
	}

	_, err = svc.RunDueTasks(ctx, at)
	require.NoError(t, err)
	got, err := svc.GetTask(ctx, manager, task.ID)
	require.NoError(t, err)
	require.Zero(t, got.RetryCount)
	require.Equal(t, at.AddDate(0, 0, 1), got.NextExecution)
	require.Equal(t, 3, got.FailureCount)
	require.Equal(t, 3, got.ExecutionCount)
	require.Zero(t, got.SuccessRate())

	execs, err := svc.ListTaskExecutions(ctx, manager, TaskExecutionFilter{TaskID: task.ID})
	require.NoError(t, err)
	require.Len(t, execs, 3)
	retried := 0
	for _, e := range execs {
		require.Equal(t, ExecutionFailed, e.Status)
		require.Equal(t, "channel not configured", e.ErrorMessage)
		if e.IsRetry {
			retried++
		}
	}
	require.Equal(t, 2, retried)
}

func TestExecuteTask_ManualKeepsSchedule(t *testing.T) {
	mailer := &fakeMailer{}
	svc, _ := newTestService(Deps{Mailer: mailer})
	ctx := context.Background()
	next := fixedNow.Add(48 * time.Hour)
	task, err := svc.CreateTask(ctx, manager, taskReq(TaskEmail, `{"to":"a@b.co","subject":"hi","body":"x"}`, FrequencyWeekly, next))
	require.NoError(t, err)

	e, err := svc.ExecuteTask(ctx, manager, task.ID)
	require.NoError(t, err)
	require.Equal(t, ExecutionCompleted, e.Status)
	require.False(t, e.IsRetry)
	require.Equal(t, []string{"a@b.co"}, mailer.to)

	got, err := svc.GetTask(ctx, manager, task.ID)
	require.NoError(t, err)
	require.Equal(t, next, got.NextExecution)
	require.Equal(t, 1, got.ExecutionCount)

	_, err = svc.ExecuteTask(ctx, outsider, task.ID)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCreateTask_Validation(t *testing.T) {
	svc, _ := newTestService(Deps{})
	ctx := context.Background()

	_, err := svc.CreateTask(ctx, manager, TaskRequest{Name: "x", TaskType: TaskCustom, Frequency: FrequencyCustom})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))
	_, err = svc.CreateTask(ctx, manager, TaskRequest{Name: "x", TaskType: "backup", Frequency: FrequencyDaily})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	task, err := svc.CreateTask(ctx, manager, TaskRequest{
		Name: "x", TaskType: TaskCustom, Frequency: FrequencyCustom,
		ScheduleConfig: json.RawMessage(`{"interval_minutes":90}`),
	})
	require.NoError(t, err)
	require.Equal(t, fixedNow.Add(90*time.Minute), task.NextExecution)
	require.Equal(t, TaskActive, task.Status)
	require.True(t, task.IsEnabled)
}

func TestCleanupTask_PrunesFinishedHistory(t *testing.T) {
	svc, repo := newTestService(Deps{})
	ctx := context.Background()
	old := fixedNow.AddDate(0, 0, -40)
	for _, e := range []Execution{
		{ID: "e-old", WorkspaceID: "w1", WorkflowID: "wf", Status: ExecutionCompleted, CreatedAt: old},
		{ID: "e-running", WorkspaceID: "w1", WorkflowID: "wf", Status: ExecutionRunning, CreatedAt: old},
		{ID: "e-new", WorkspaceID: "w1", WorkflowID: "wf", Status: ExecutionFailed, CreatedAt: fixedNow},
		{ID: "e-other", WorkspaceID: "w2", WorkflowID: "wf", Status: ExecutionCompleted, CreatedAt: old},
	} {
		_, err := repo.CreateExecution(ctx, e)
		require.NoError(t, err)
	}
	task, err := svc.CreateTask(ctx, manager, taskReq(TaskCleanup, ``, FrequencyDaily, fixedNow))
	require.NoError(t, err)

	e, err := svc.ExecuteTask(ctx, manager, task.ID)
	require.NoError(t, err)
	require.Equal(t, ExecutionCompleted, e.Status)

	left, err := repo.ListExecutions(ctx, ExecutionFilter{})
	require.NoError(t, err)
	ids := make([]string, 0, len(left))
	for _, x := range left {
		ids = append(ids, x.ID)
	}
	require.ElementsMatch(t, []string{"e-running", "e-new", "e-other"}, ids)
}

func TestRegisterTaskHandler(t *testing.T) {
	svc, _ := newTestService(Deps{})
	ctx := context.Background()
	task, err := svc.CreateTask(ctx, manager, taskReq(TaskReport, `{"report_id":"r1"}`, FrequencyMonthly, fixedNow))
	require.NoError(t, err)

	e, err := svc.ExecuteTask(ctx, manager, task.ID)
	require.NoError(t, err)
	require.Equal(t, "no handler for task type report", e.ErrorMessage)

	svc.RegisterTaskHandler(TaskReport, func(ctx context.Context, t ScheduledTask) (map[string]any, error) {
		return map[string]any{"report": "r1"}, nil
	})
	e, err = svc.ExecuteTask(ctx, manager, task.ID)
	require.NoError(t, err)
	require.Equal(t, ExecutionCompleted, e.Status)
	require.JSONEq(t, `{"report":"r1"}`, string(e.OutputData))
}
