package automation

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// An empty WorkspaceID in a filter means every tenant.

type WorkflowFilter struct {
	WorkspaceID string
	Status      WorkflowStatus
	TriggerType TriggerType
	Limit       int
	Offset      int
}

type ExecutionFilter struct {
	WorkspaceID string
	WorkflowID  string
	Status      ExecutionStatus
	Limit       int
	Offset      int
}

type TaskFilter struct {
	WorkspaceID string
	Status      TaskStatus
	TaskType    TaskType
	Limit       int
	Offset      int
}

type TaskExecutionFilter struct {
	WorkspaceID string
	TaskID      string
	Status      ExecutionStatus
	Limit       int
	Offset      int
}

type Repository interface {
	CreateWorkflow(ctx context.Context, w Workflow) (Workflow, error)
	GetWorkflow(ctx context.Context, workspaceID, id string) (Workflow, error)
	ListWorkflows(ctx context.Context, f WorkflowFilter) ([]Workflow, error)
	SaveWorkflow(ctx context.Context, w Workflow) (Workflow, error)
	DeleteWorkflow(ctx context.Context, workspaceID, id string) error
	// RecordRun bumps execution_count and stamps last_executed.
	RecordRun(ctx context.Context, workspaceID, id string, at time.Time) error

	CreateExecution(ctx context.Context, e Execution) (Execution, error)
	SaveExecution(ctx context.Context, e Execution) (Execution, error)
	GetExecution(ctx context.Context, workspaceID, id string) (Execution, error)
	ListExecutions(ctx context.Context, f ExecutionFilter) ([]Execution, error)

	CreateTask(ctx context.Context, t ScheduledTask) (ScheduledTask, error)
	GetTask(ctx context.Context, workspaceID, id string) (ScheduledTask, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]ScheduledTask, error)
	SaveTask(ctx context.Context, t ScheduledTask) (ScheduledTask, error)
	DeleteTask(ctx context.Context, workspaceID, id string) error
	// DueTasks returns enabled active tasks whose next_execution is not after now,
	// oldest first.
	DueTasks(ctx context.Context, now time.Time, limit int) ([]ScheduledTask, error)

	CreateTaskExecution(ctx context.Context, e TaskExecution) (TaskExecution, error)
	GetTaskExecution(ctx context.Context, workspaceID, id string) (TaskExecution, error)
	ListTaskExecutions(ctx context.Context, f TaskExecutionFilter) ([]TaskExecution, error)

	// PruneHistory deletes finished workflow and task executions created
	// before the cutoff and returns how many rows went.
	PruneHistory(ctx context.Context, workspaceID string, before time.Time) (int, error)
}

type GormRepo struct {
	db *gorm.DB
}

func NewGormRepo(db *gorm.DB) *GormRepo { return &GormRepo{db: db} }

func tenantScope(workspaceID string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if workspaceID == "" {
			return q
		}
		return q.Where("workspace_id = ?", workspaceID)
	}
}

func paginate(limit, offset int) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if limit > 0 {
			q = q.Limit(limit)
		}
		if offset > 0 {
			q = q.Offset(offset)
		}
		return q
	}
}

func first[T any](q *gorm.DB, notFound error) (T, error) {
	var out T
	err := q.First(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return out, notFound
	}
	return out, err
}

func (r *GormRepo) CreateWorkflow(ctx context.Context, w Workflow) (Workflow, error) {
	err := r.db.WithContext(ctx).Create(&w).Error
	return w, err
}

func (r *GormRepo) GetWorkflow(ctx context.Context, workspaceID, id string) (Workflow, error) {
	q := r.db.WithContext(ctx).Scopes(tenantScope(workspaceID)).Where("id = ?", id)
	return first[Workflow](q, ErrWorkflowNotFound)
}

func (r *GormRepo) ListWorkflows(ctx context.Context, f WorkflowFilter) ([]Workflow, error) {
	q := r.db.WithContext(ctx).Scopes(tenantScope(f.WorkspaceID))
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.TriggerType != "" {
		q = q.Where("trigger_type = ?", f.TriggerType)
	}
	var out []Workflow
	err := q.Scopes(paginate(f.Limit, f.Offset)).Order("created_at DESC, id").Find(&out).Error
	return out, err
}

func (r *GormRepo) SaveWorkflow(ctx context.Context, w Workflow) (Workflow, error) {
	res := r.db.WithContext(ctx).Model(&Workflow{}).
		Where("id = ? AND workspace_id = ?", w.ID, w.WorkspaceID).
		Select("name", "description", "trigger_type", "trigger_config", "conditions", "actions",
			"status", "is_enabled", "max_executions", "updated_at").
		Updates(&w)
	if res.Error != nil {
		return Workflow{}, res.Error
	}
	if res.RowsAffected == 0 {
		return Workflow{}, ErrWorkflowNotFound
	}
	return r.GetWorkflow(ctx, w.WorkspaceID, w.ID)
}

func (r *GormRepo) DeleteWorkflow(ctx context.Context, workspaceID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND workspace_id = ?", id, workspaceID).Delete(&Workflow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrWorkflowNotFound
		}
		return tx.Where("workflow_id = ?", id).Delete(&Execution{}).Error
	})
}

func (r *GormRepo) RecordRun(ctx context.Context, workspaceID, id string, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&Workflow{}).
		Where("id = ? AND workspace_id = ?", id, workspaceID).
		UpdateColumns(map[string]any{
			"execution_count": gorm.Expr("execution_count + 1"),
			"last_executed":   at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrWorkflowNotFound
	}
	return nil
}

func (r *GormRepo) CreateExecution(ctx context.Context, e Execution) (Execution, error) {
	err := r.db.WithContext(ctx).Create(&e).Error
	return e, err
}

func (r *GormRepo) SaveExecution(ctx context.Context, e Execution) (Execution, error) {
	err := r.db.WithContext(ctx).Save(&e).Error
	return e, err
}

func (r *GormRepo) GetExecution(ctx context.Context, workspaceID, id string) (Execution, error) {
	q := r.db.WithContext(ctx).Scopes(tenantScope(workspaceID)).Where("id = ?", id)
	return first[Execution](q, ErrExecutionNotFound)
}

func (r *GormRepo) ListExecutions(ctx context.Context, f ExecutionFilter) ([]Execution, error) {
	q := r.db.WithContext(ctx).Scopes(tenantScope(f.WorkspaceID))
	if f.WorkflowID != "" {
		q = q.Where("workflow_id = ?", f.WorkflowID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []Execution
	err := q.Scopes(paginate(f.Limit, f.Offset)).Order("created_at DESC, id").Find(&out).Error
	return out, err
}

func (r *GormRepo) CreateTask(ctx context.Context, t ScheduledTask) (ScheduledTask, error) {
	err := r.db.WithContext(ctx).Create(&t).Error
	return t, err
}

func (r *GormRepo) GetTask(ctx context.Context, workspaceID, id string) (ScheduledTask, error) {
	q := r.db.WithContext(ctx).Scopes(tenantScope(workspaceID)).Where("id = ?", id)
	return first[ScheduledTask](q, ErrTaskNotFound)
}

func (r *GormRepo) ListTasks(ctx context.Context, f TaskFilter) ([]ScheduledTask, error) {
	q := r.db.WithContext(ctx).Scopes(tenantScope(f.WorkspaceID))
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.TaskType != "" {
		q = q.Where("task_type = ?", f.TaskType)
	}
	var out []ScheduledTask
	err := q.Scopes(paginate(f.Limit, f.Offset)).Order("next_execution, id").Find(&out).Error
	return out, err
}

func (r *GormRepo) SaveTask(ctx context.Context, t ScheduledTask) (ScheduledTask, error) {
	res := r.db.WithContext(ctx).Model(&ScheduledTask{}).
		Where("id = ? AND workspace_id = ?", t.ID, t.WorkspaceID).
		Select("*").Omit("id", "workspace_id", "created_by", "created_at").
		Updates(&t)
	if res.Error != nil {
		return ScheduledTask{}, res.Error
	}
	if res.RowsAffected == 0 {
		return ScheduledTask{}, ErrTaskNotFound
	}
	return t, nil
}

func (r *GormRepo) DeleteTask(ctx context.Context, workspaceID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND workspace_id = ?", id, workspaceID).Delete(&ScheduledTask{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTaskNotFound
		}
		return tx.Where("task_id = ?", id).Delete(&TaskExecution{}).Error
	})
}

func (r *GormRepo) DueTasks(ctx context.Context, now time.Time, limit int) ([]ScheduledTask, error) {
	var out []ScheduledTask
	err := r.db.WithContext(ctx).
		Where("is_enabled AND status = ? AND next_execution <= ?", TaskActive, now).
		Scopes(paginate(limit, 0)).
		Order("next_execution, id").
		Find(&out).Error
	return out, err
}

func (r *GormRepo) CreateTaskExecution(ctx context.Context, e TaskExecution) (TaskExecution, error) {
	err := r.db.WithContext(ctx).Create(&e).Error
	return e, err
}

func (r *GormRepo) GetTaskExecution(ctx context.Context, workspaceID, id string) (TaskExecution, error) {
	q := r.db.WithContext(ctx).Scopes(tenantScope(workspaceID)).Where("id = ?", id)
	return first[TaskExecution](q, ErrTaskExecutionNotFound)
}

func (r *GormRepo) ListTaskExecutions(ctx context.Context, f TaskExecutionFilter) ([]TaskExecution, error) {
	q := r.db.WithContext(ctx).Scopes(tenantScope(f.WorkspaceID))
	if f.TaskID != "" {
		q = q.Where("task_id = ?", f.TaskID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []TaskExecution
	err := q.Scopes(paginate(f.Limit, f.Offset)).Order("created_at DESC, id").Find(&out).Error
	return out, err
}

var finishedStatuses = []ExecutionStatus{ExecutionCompleted, ExecutionFailed, ExecutionCancelled}

func (r *GormRepo) PruneHistory(ctx context.Context, workspaceID string, before time.Time) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&Execution{}, &TaskExecution{}} {
			res := tx.Where("workspace_id = ? AND created_at < ? AND status IN ?", workspaceID, before, finishedStatuses).
				Delete(model)
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		return nil
	})
	return int(total), err
}
