package automation

import (
	"fmt"
	"time"

	"bizops-platform/internal/apperr"

	"gorm.io/datatypes"
)

type TriggerType string

const (
	TriggerEvent     TriggerType = "event"
	TriggerSchedule  TriggerType = "schedule"
	TriggerManual    TriggerType = "manual"
	TriggerCondition TriggerType = "condition"
)

func (t TriggerType) Valid() bool {
	switch t {
	case TriggerEvent, TriggerSchedule, TriggerManual, TriggerCondition:
		return true
	}
	return false
}

type WorkflowStatus string

const (
	WorkflowActive   WorkflowStatus = "active"
	WorkflowInactive WorkflowStatus = "inactive"
	WorkflowDraft    WorkflowStatus = "draft"
)

func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowActive, WorkflowInactive, WorkflowDraft:
		return true
	}
	return false
}

type Workflow struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID    string         `json:"workspace_id" gorm:"size:36;not null;index"`
	Name           string         `json:"name" gorm:"size:200;not null"`
	Description    string         `json:"description,omitempty" gorm:"type:text"`
	TriggerType    TriggerType    `json:"trigger_type" gorm:"size:20;not null"`
	TriggerConfig  datatypes.JSON `json:"trigger_config,omitempty" gorm:"type:jsonb"`
	Conditions     datatypes.JSON `json:"conditions,omitempty" gorm:"type:jsonb"`
	Actions        datatypes.JSON `json:"actions" gorm:"type:jsonb"`
	Status         WorkflowStatus `json:"status" gorm:"size:20;not null;default:draft"`
	IsEnabled      bool           `json:"is_enabled"`
	MaxExecutions  int            `json:"max_executions"`
	ExecutionCount int            `json:"execution_count"`
	LastExecuted   *time.Time     `json:"last_executed,omitempty"`
	CreatedBy      string         `json:"created_by,omitempty" gorm:"size:36"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

func (Workflow) TableName() string { return "automation_workflows" }

// IsLimitReached reports whether a capped workflow has used every run.
func (w Workflow) IsLimitReached() bool {
	return w.MaxExecutions > 0 && w.ExecutionCount >= w.MaxExecutions
}

type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "pending"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

type Execution struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID     string          `json:"workspace_id" gorm:"size:36;not null;index"`
	WorkflowID      string          `json:"workflow_id" gorm:"size:36;not null;index"`
	Status          ExecutionStatus `json:"status" gorm:"size:20;not null"`
	Progress        int             `json:"progress"`
	InputData       datatypes.JSON  `json:"input_data,omitempty" gorm:"type:jsonb"`
	OutputData      datatypes.JSON  `json:"output_data,omitempty" gorm:"type:jsonb"`
	ErrorMessage    string          `json:"error_message,omitempty" gorm:"type:text"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	DurationSeconds int             `json:"duration_seconds"`
	TriggeredBy     string          `json:"triggered_by,omitempty" gorm:"size:36"`
	CreatedAt       time.Time       `json:"created_at" gorm:"index"`
}

func (Execution) TableName() string { return "automation_executions" }

// Condition compares one input field with a literal.
type Condition struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value any    `json:"value"`
}

// Action is one workflow step. Params depend on Type:
//
//	notify:   user_id, title, message, type, priority
//	whatsapp: phone, message
//	log:      message
type Action struct {
	Type   string            `json:"type"`
	Params map[string]string `json:"params"`
}

type TaskType string

const (
	TaskEmail        TaskType = "email"
	TaskNotification TaskType = "notification"
	TaskReport       TaskType = "report"
	TaskDataSync     TaskType = "data_sync"
	TaskCleanup      TaskType = "cleanup"
	TaskCustom       TaskType = "custom"
)

func (t TaskType) Valid() bool {
	switch t {
	case TaskEmail, TaskNotification, TaskReport, TaskDataSync, TaskCleanup, TaskCustom:
		return true
	}
	return false
}

type Frequency string

const (
	FrequencyMinutely Frequency = "minutely"
	FrequencyHourly   Frequency = "hourly"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyYearly   Frequency = "yearly"
	FrequencyCustom   Frequency = "custom"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMinutely, FrequencyHourly, FrequencyDaily, FrequencyWeekly,
		FrequencyMonthly, FrequencyYearly, FrequencyCustom:
		return true
	}
	return false
}

// Next returns the run after t. Custom frequencies step by intervalMinutes
// and fall back to daily when it is not positive.
func (f Frequency) Next(t time.Time, intervalMinutes int) time.Time {
	switch f {
	case FrequencyMinutely:
		return t.Add(time.Minute)
	case FrequencyHourly:
		return t.Add(time.Hour)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	case FrequencyYearly:
		return t.AddDate(1, 0, 0)
	case FrequencyCustom:
		if intervalMinutes > 0 {
			return t.Add(time.Duration(intervalMinutes) * time.Minute)
		}
	}
	return t.AddDate(0, 0, 1)
}

type TaskStatus string

const (
	TaskActive   TaskStatus = "active"
	TaskInactive TaskStatus = "inactive"
	TaskPaused   TaskStatus = "paused"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskActive, TaskInactive, TaskPaused:
		return true
	}
	return false
}

const (
	defaultMaxRetries        = 3
	defaultRetryDelayMinutes = 5
)

type ScheduledTask struct {
	ID                string         `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID       string         `json:"workspace_id" gorm:"size:36;not null;index"`
	Name              string         `json:"name" gorm:"size:200;not null"`
	Description       string         `json:"description,omitempty" gorm:"type:text"`
	TaskType          TaskType       `json:"task_type" gorm:"size:20;not null"`
	TaskConfig        datatypes.JSON `json:"task_config,omitempty" gorm:"type:jsonb"`
	Frequency         Frequency      `json:"frequency" gorm:"size:20;not null"`
	ScheduleConfig    datatypes.JSON `json:"schedule_config,omitempty" gorm:"type:jsonb"`
	NextExecution     time.Time      `json:"next_execution" gorm:"not null;index:idx_scheduled_tasks_due"`
	Status            TaskStatus     `json:"status" gorm:"size:20;not null;default:active"`
	IsEnabled         bool           `json:"is_enabled"`
	ExecutionCount    int            `json:"execution_count"`
	SuccessCount      int            `json:"success_count"`
	FailureCount      int            `json:"failure_count"`
	LastExecuted      *time.Time     `json:"last_executed,omitempty"`
	MaxRetries        int            `json:"max_retries"`
	RetryDelayMinutes int            `json:"retry_delay_minutes"`
	RetryCount        int            `json:"retry_count"`
	CreatedBy         string         `json:"created_by,omitempty" gorm:"size:36"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (ScheduledTask) TableName() string { return "scheduled_tasks" }

func (t ScheduledTask) SuccessRate() float64 {
	if t.ExecutionCount == 0 {
		return 0
	}
	return float64(t.SuccessCount) / float64(t.ExecutionCount) * 100
}

func (t ScheduledTask) IsOverdue(now time.Time) bool {
	return t.NextExecution.Before(now)
}

// scheduleConfig is the recognised subset of ScheduledTask.ScheduleConfig.
type scheduleConfig struct {
	IntervalMinutes int `json:"interval_minutes"`
}

type TaskExecution struct {
	ID              string          `json:"id" gorm:"primaryKey;size:36"`
	WorkspaceID     string          `json:"workspace_id" gorm:"size:36;not null;index"`
	TaskID          string          `json:"task_id" gorm:"size:36;not null;index"`
	Status          ExecutionStatus `json:"status" gorm:"size:20;not null"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	DurationSeconds int             `json:"duration_seconds"`
	OutputData      datatypes.JSON  `json:"output_data,omitempty" gorm:"type:jsonb"`
	ErrorMessage    string          `json:"error_message,omitempty" gorm:"type:text"`
	RetryCount      int             `json:"retry_count"`
	IsRetry         bool            `json:"is_retry"`
	CreatedAt       time.Time       `json:"created_at" gorm:"index"`
}

func (TaskExecution) TableName() string { return "task_executions" }

// Models lists the tables AutoMigrate creates for this package.
func Models() []any {
	return []any{&Workflow{}, &Execution{}, &ScheduledTask{}, &TaskExecution{}}
}

var (
	ErrWorkflowNotFound      = fmt.Errorf("automation: workflow %w", apperr.ErrNotFound)
	ErrExecutionNotFound     = fmt.Errorf("automation: execution %w", apperr.ErrNotFound)
	ErrTaskNotFound          = fmt.Errorf("automation: task %w", apperr.ErrNotFound)
	ErrTaskExecutionNotFound = fmt.Errorf("automation: task execution %w", apperr.ErrNotFound)
	ErrWorkflowDisabled      = fmt.Errorf("automation: workflow disabled %w", apperr.ErrConflict)
	ErrLimitReached          = fmt.Errorf("automation: execution limit reached %w", apperr.ErrConflict)
	ErrInvalidArgument       = fmt.Errorf("automation: %w", apperr.ErrInvalidArgument)
	ErrForbidden             = fmt.Errorf("automation: %w", apperr.ErrForbidden)
)
