package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// TaskHandler performs one scheduled task run. The returned map is stored as
// the execution output.
type TaskHandler func(ctx context.Context, t ScheduledTask) (map[string]any, error)

// RegisterTaskHandler installs or replaces the handler for a task type. Call
// it during wiring, before the service is shared.
func (s *Service) RegisterTaskHandler(t TaskType, h TaskHandler) {
	s.handlers[t] = h
}

type TaskRequest struct {
	Name              string          `json:"name" binding:"required,max=200"`
	Description       string          `json:"description"`
	TaskType          TaskType        `json:"task_type" binding:"required"`
	TaskConfig        json.RawMessage `json:"task_config"`
	Frequency         Frequency       `json:"frequency" binding:"required"`
	ScheduleConfig    json.RawMessage `json:"schedule_config"`
	NextExecution     *time.Time      `json:"next_execution"`
	Status            TaskStatus      `json:"status"`
	IsEnabled         *bool           `json:"is_enabled"`
	MaxRetries        *int            `json:"max_retries" binding:"omitempty,min=0,max=10"`
	RetryDelayMinutes *int            `json:"retry_delay_minutes" binding:"omitempty,min=1"`
}

type TaskUpdate struct {
	Name              *string         `json:"name" binding:"omitempty,max=200"`
	Description       *string         `json:"description"`
	TaskConfig        json.RawMessage `json:"task_config"`
	Frequency         *Frequency      `json:"frequency"`
	ScheduleConfig    json.RawMessage `json:"schedule_config"`
	NextExecution     *time.Time      `json:"next_execution"`
	Status            *TaskStatus     `json:"status"`
	IsEnabled         *bool           `json:"is_enabled"`
	MaxRetries        *int            `json:"max_retries" binding:"omitempty,min=0,max=10"`
	RetryDelayMinutes *int            `json:"retry_delay_minutes" binding:"omitempty,min=1"`
}

func intervalMinutes(raw datatypes.JSON) (int, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var cfg scheduleConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return 0, err
	}
	return cfg.IntervalMinutes, nil
}

// checkSchedule rejects custom frequencies without a positive interval.
func checkSchedule(f Frequency, raw datatypes.JSON) error {
	if !f.Valid() {
		return ErrInvalidArgument
	}
	n, err := intervalMinutes(raw)
	if err != nil || (f == FrequencyCustom && n <= 0) {
		return ErrInvalidArgument
	}
	return nil
}

func (s *Service) CreateTask(ctx context.Context, c auth.Caller, req TaskRequest) (ScheduledTask, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return ScheduledTask{}, err
	}
	if req.Status == "" {
		req.Status = TaskActive
	}
	if strings.TrimSpace(req.Name) == "" || !req.TaskType.Valid() || !req.Status.Valid() || !validJSON(req.TaskConfig) {
		return ScheduledTask{}, ErrInvalidArgument
	}
	if err := checkSchedule(req.Frequency, datatypes.JSON(req.ScheduleConfig)); err != nil {
		return ScheduledTask{}, err
	}
	now := s.now()
	t := ScheduledTask{
		ID:                uuid.NewString(),
		WorkspaceID:       ws,
		Name:              strings.TrimSpace(req.Name),
		Description:       req.Description,
		TaskType:          req.TaskType,
		TaskConfig:        datatypes.JSON(req.TaskConfig),
		Frequency:         req.Frequency,
		ScheduleConfig:    datatypes.JSON(req.ScheduleConfig),
		Status:            req.Status,
		IsEnabled:         true,
		MaxRetries:        defaultMaxRetries,
		RetryDelayMinutes: defaultRetryDelayMinutes,
		CreatedBy:         c.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.IsEnabled != nil {
		t.IsEnabled = *req.IsEnabled
	}
	if req.MaxRetries != nil {
		t.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelayMinutes != nil {
		t.RetryDelayMinutes = *req.RetryDelayMinutes
	}
	if req.NextExecution != nil {
		t.NextExecution = req.NextExecution.UTC()
	} else {
		n, _ := intervalMinutes(t.ScheduleConfig)
		t.NextExecution = t.Frequency.Next(now, n)
	}
	return s.repo.CreateTask(ctx, t)
}

func (s *Service) GetTask(ctx context.Context, c auth.Caller, id string) (ScheduledTask, error) {
	ws, err := readScope(c)
	if err != nil {
		return ScheduledTask{}, err
	}
	return s.repo.GetTask(ctx, ws, id)
}

func (s *Service) ListTasks(ctx context.Context, c auth.Caller, f TaskFilter) ([]ScheduledTask, error) {
	ws, err := readScope(c)
	if err != nil {
		return nil, err
	}
	f.WorkspaceID = ws
	return s.repo.ListTasks(ctx, f)
}

func (s *Service) UpdateTask(ctx context.Context, c auth.Caller, id string, req TaskUpdate) (ScheduledTask, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return ScheduledTask{}, err
	}
	t, err := s.repo.GetTask(ctx, ws, id)
	if err != nil {
		return ScheduledTask{}, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return ScheduledTask{}, ErrInvalidArgument
		}
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.TaskConfig != nil {
		if !validJSON(req.TaskConfig) {
			return ScheduledTask{}, ErrInvalidArgument
		}
		t.TaskConfig = datatypes.JSON(req.TaskConfig)
	}
	if req.Frequency != nil {
		t.Frequency = *req.Frequency
	}
	if req.ScheduleConfig != nil {
		t.ScheduleConfig = datatypes.JSON(req.ScheduleConfig)
	}
	if err := checkSchedule(t.Frequency, t.ScheduleConfig); err != nil {
		return ScheduledTask{}, err
	}
	if req.NextExecution != nil {
		t.NextExecution = req.NextExecution.UTC()
		t.RetryCount = 0
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return ScheduledTask{}, ErrInvalidArgument
		}
		t.Status = *req.Status
	}
	if req.IsEnabled != nil {
		t.IsEnabled = *req.IsEnabled
	}
	if req.MaxRetries != nil {
		t.MaxRetries = *req.MaxRetries
	}
	if req.RetryDelayMinutes != nil {
		t.RetryDelayMinutes = *req.RetryDelayMinutes
	}
	t.UpdatedAt = s.now()
	return s.repo.SaveTask(ctx, t)
}

func (s *Service) DeleteTask(ctx context.Context, c auth.Caller, id string) error {
	ws, err := writableTenant(c)
	if err != nil {
		return err
	}
	return s.repo.DeleteTask(ctx, ws, id)
}

func (s *Service) GetTaskExecution(ctx context.Context, c auth.Caller, id string) (TaskExecution, error) {
	ws, err := readScope(c)
	if err != nil {
		return TaskExecution{}, err
	}
	return s.repo.GetTaskExecution(ctx, ws, id)
}

func (s *Service) ListTaskExecutions(ctx context.Context, c auth.Caller, f TaskExecutionFilter) ([]TaskExecution, error) {
	ws, err := readScope(c)
	if err != nil {
		return nil, err
	}
	f.WorkspaceID = ws
	return s.repo.ListTaskExecutions(ctx, f)
}

// ExecuteTask runs a task immediately. The schedule and retry state are left
// alone; only the counters move.
func (s *Service) ExecuteTask(ctx context.Context, c auth.Caller, id string) (TaskExecution, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return TaskExecution{}, err
	}
	t, err := s.repo.GetTask(ctx, ws, id)
	if err != nil {
		return TaskExecution{}, err
	}
	exec, _, err := s.runTask(ctx, t, s.now(), true)
	return exec, err
}

// RunSummary counts the outcome of one RunDueTasks pass.
type RunSummary struct {
	Ran       int `json:"ran"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

const dueBatch = 100

// RunDueTasks runs every enabled active task whose next_execution is at or
// before now. A failed run is retried after the task's retry delay until
// max_retries is spent; the task then resumes its normal schedule.
func (s *Service) RunDueTasks(ctx context.Context, now time.Time) (RunSummary, error) {
	var sum RunSummary
	tasks, err := s.repo.DueTasks(ctx, now.UTC(), dueBatch)
	if err != nil {
		return sum, err
	}
	for _, t := range tasks {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		exec, _, err := s.runTask(ctx, t, now.UTC(), false)
		if err != nil {
			return sum, err
		}
		sum.Ran++
		if exec.Status == ExecutionCompleted {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
	return sum, nil
}

func (s *Service) runTask(ctx context.Context, t ScheduledTask, now time.Time, manual bool) (TaskExecution, ScheduledTask, error) {
	started := s.now()
	exec := TaskExecution{
		ID:          uuid.NewString(),
		WorkspaceID: t.WorkspaceID,
		TaskID:      t.ID,
		StartedAt:   started,
		RetryCount:  t.RetryCount,
		IsRetry:     !manual && t.RetryCount > 0,
		CreatedAt:   started,
	}

	out, runErr := s.dispatch(ctx, t)
	finished := s.now()
	exec.CompletedAt = &finished
	exec.DurationSeconds = int(finished.Sub(started).Seconds())
	if out != nil {
		exec.OutputData = mustJSON(out)
	}

	t.ExecutionCount++
	t.LastExecuted = &now
	t.UpdatedAt = finished
	if runErr != nil {
		exec.Status = ExecutionFailed
		exec.ErrorMessage = runErr.Error()
		t.FailureCount++
		logger.From(ctx).Warn("scheduled task failed",
			"task_id", t.ID, "task_type", t.TaskType, "retry", t.RetryCount, "err", runErr)
	} else {
		exec.Status = ExecutionCompleted
		t.SuccessCount++
	}
	if !manual {
		s.reschedule(&t, now, runErr != nil)
	}

	exec, err := s.repo.CreateTaskExecution(ctx, exec)
	if err != nil {
		return TaskExecution{}, t, err
	}
	if t, err = s.repo.SaveTask(ctx, t); err != nil {
		return TaskExecution{}, t, err
	}
	return exec, t, nil
}

// reschedule sets the next run: a retry after the delay while retries remain,
// otherwise the next frequency slot after now.
func (s *Service) reschedule(t *ScheduledTask, now time.Time, failed bool) {
	if failed && t.RetryCount < t.MaxRetries {
		t.RetryCount++
		t.NextExecution = now.Add(time.Duration(t.RetryDelayMinutes) * time.Minute)
		return
	}
	t.RetryCount = 0
	n, _ := intervalMinutes(t.ScheduleConfig)
	next := t.NextExecution
	if next.IsZero() {
		next = now
	}
	for !next.After(now) {
		next = t.Frequency.Next(next, n)
	}
	t.NextExecution = next
}

func (s *Service) dispatch(ctx context.Context, t ScheduledTask) (map[string]any, error) {
	h, ok := s.handlers[t.TaskType]
	if !ok {
		return nil, fmt.Errorf("no handler for task type %s", t.TaskType)
	}
	return h(ctx, t)
}

func decodeConfig(t ScheduledTask, dst any) error {
	if len(t.TaskConfig) == 0 {
		return errors.New("task_config is empty")
	}
	if err := json.Unmarshal(t.TaskConfig, dst); err != nil {
		return fmt.Errorf("decode task_config: %w", err)
	}
	return nil
}

type notificationConfig struct {
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
}

func (s *Service) notificationTask(ctx context.Context, t ScheduledTask) (map[string]any, error) {
	var cfg notificationConfig
	if err := decodeConfig(t, &cfg); err != nil {
		return nil, err
	}
	a := Action{Type: actionNotify, Params: map[string]string{
		"user_id": cfg.UserID, "title": cfg.Title, "message": cfg.Message,
		"type": cfg.Type, "priority": cfg.Priority,
	}}
	if err := a.validate(); err != nil {
		return nil, err
	}
	detail, err := s.perform(ctx, t.WorkspaceID, a, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{"notification": detail}, nil
}

type emailConfig struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *Service) emailTask(ctx context.Context, t ScheduledTask) (map[string]any, error) {
	var cfg emailConfig
	if err := decodeConfig(t, &cfg); err != nil {
		return nil, err
	}
	if cfg.To == "" || cfg.Subject == "" {
		return nil, errors.New("email task needs to and subject")
	}
	if s.deps.Mailer == nil {
		return nil, errNotConfigured
	}
	if err := s.deps.Mailer.Send(ctx, cfg.To, cfg.Subject, cfg.Body); err != nil {
		return nil, err
	}
	return map[string]any{"sent_to": cfg.To}, nil
}

const defaultHistoryDays = 30

type cleanupConfig struct {
	RetentionDays int `json:"retention_days"`
}

// cleanupTask prunes the workspace's finished execution history.
func (s *Service) cleanupTask(ctx context.Context, t ScheduledTask) (map[string]any, error) {
	cfg := cleanupConfig{RetentionDays: defaultHistoryDays}
	if len(t.TaskConfig) > 0 {
		if err := decodeConfig(t, &cfg); err != nil {
			return nil, err
		}
	}
	if cfg.RetentionDays <= 0 {
		return nil, errors.New("retention_days must be positive")
	}
	before := s.now().AddDate(0, 0, -cfg.RetentionDays)
	n, err := s.repo.PruneHistory(ctx, t.WorkspaceID, before)
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": n, "before": before}, nil
}

func logTask(ctx context.Context, t ScheduledTask) (map[string]any, error) {
	logger.From(ctx).Info("custom task ran", "task_id", t.ID, "workspace_id", t.WorkspaceID, "name", t.Name)
	return map[string]any{"logged": true}, nil
}
