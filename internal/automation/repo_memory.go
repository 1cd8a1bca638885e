package automation

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-process Repository used by tests.
type MemoryRepo struct {
	mu             sync.Mutex
	workflows      map[string]Workflow
	executions     map[string]Execution
	tasks          map[string]ScheduledTask
	taskExecutions map[string]TaskExecution
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		workflows:      map[string]Workflow{},
		executions:     map[string]Execution{},
		tasks:          map[string]ScheduledTask{},
		taskExecutions: map[string]TaskExecution{},
	}
}

func window[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func inTenant(filter, ws string) bool { return filter == "" || filter == ws }

func newestFirst[T any](rows []T, created func(T) time.Time, id func(T) string) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := created(rows[i]), created(rows[j])
		if !a.Equal(b) {
			return a.After(b)
		}
		return id(rows[i]) < id(rows[j])
	})
}

func (r *MemoryRepo) CreateWorkflow(ctx context.Context, w Workflow) (Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workflows[w.ID] = w
	return w, nil
}

func (r *MemoryRepo) GetWorkflow(ctx context.Context, workspaceID, id string) (Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workflows[id]
	if !ok || !inTenant(workspaceID, w.WorkspaceID) {
		return Workflow{}, ErrWorkflowNotFound
	}
	return w, nil
}

func (r *MemoryRepo) ListWorkflows(ctx context.Context, f WorkflowFilter) ([]Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Workflow
	for _, w := range r.workflows {
		switch {
		case !inTenant(f.WorkspaceID, w.WorkspaceID),
			f.Status != "" && w.Status != f.Status,
			f.TriggerType != "" && w.TriggerType != f.TriggerType:
			continue
		}
		out = append(out, w)
	}
	newestFirst(out, func(w Workflow) time.Time { return w.CreatedAt }, func(w Workflow) string { return w.ID })
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) SaveWorkflow(ctx context.Context, w Workflow) (Workflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.workflows[w.ID]
	if !ok || cur.WorkspaceID != w.WorkspaceID {
		return Workflow{}, ErrWorkflowNotFound
	}
	w.ExecutionCount, w.LastExecuted = cur.ExecutionCount, cur.LastExecuted
	w.CreatedAt, w.CreatedBy = cur.CreatedAt, cur.CreatedBy
	r.workflows[w.ID] = w
	return w, nil
}

func (r *MemoryRepo) DeleteWorkflow(ctx context.Context, workspaceID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workflows[id]
	if !ok || w.WorkspaceID != workspaceID {
		return ErrWorkflowNotFound
	}
	delete(r.workflows, id)
	for eid, e := range r.executions {
		if e.WorkflowID == id {
			delete(r.executions, eid)
		}
	}
	return nil
}

func (r *MemoryRepo) RecordRun(ctx context.Context, workspaceID, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workflows[id]
	if !ok || w.WorkspaceID != workspaceID {
		return ErrWorkflowNotFound
	}
	w.ExecutionCount++
	w.LastExecuted = &at
	r.workflows[id] = w
	return nil
}

func (r *MemoryRepo) CreateExecution(ctx context.Context, e Execution) (Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[e.ID] = e
	return e, nil
}

func (r *MemoryRepo) SaveExecution(ctx context.Context, e Execution) (Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executions[e.ID] = e
	return e, nil
}

func (r *MemoryRepo) GetExecution(ctx context.Context, workspaceID, id string) (Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.executions[id]
	if !ok || !inTenant(workspaceID, e.WorkspaceID) {
		return Execution{}, ErrExecutionNotFound
	}
	return e, nil
}

func (r *MemoryRepo) ListExecutions(ctx context.Context, f ExecutionFilter) ([]Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Execution
	for _, e := range r.executions {
		switch {
		case !inTenant(f.WorkspaceID, e.WorkspaceID),
			f.WorkflowID != "" && e.WorkflowID != f.WorkflowID,
			f.Status != "" && e.Status != f.Status:
			continue
		}
		out = append(out, e)
	}
	newestFirst(out, func(e Execution) time.Time { return e.CreatedAt }, func(e Execution) string { return e.ID })
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) CreateTask(ctx context.Context, t ScheduledTask) (ScheduledTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) GetTask(ctx context.Context, workspaceID, id string) (ScheduledTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || !inTenant(workspaceID, t.WorkspaceID) {
		return ScheduledTask{}, ErrTaskNotFound
	}
	return t, nil
}

func sortByNextExecution(rows []ScheduledTask) {
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].NextExecution.Equal(rows[j].NextExecution) {
			return rows[i].NextExecution.Before(rows[j].NextExecution)
		}
		return rows[i].ID < rows[j].ID
	})
}

func (r *MemoryRepo) ListTasks(ctx context.Context, f TaskFilter) ([]ScheduledTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ScheduledTask
	for _, t := range r.tasks {
		switch {
		case !inTenant(f.WorkspaceID, t.WorkspaceID),
			f.Status != "" && t.Status != f.Status,
			f.TaskType != "" && t.TaskType != f.TaskType:
			continue
		}
		out = append(out, t)
	}
	sortByNextExecution(out)
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) SaveTask(ctx context.Context, t ScheduledTask) (ScheduledTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tasks[t.ID]
	if !ok || cur.WorkspaceID != t.WorkspaceID {
		return ScheduledTask{}, ErrTaskNotFound
	}
	t.CreatedAt, t.CreatedBy = cur.CreatedAt, cur.CreatedBy
	r.tasks[t.ID] = t
	return t, nil
}

func (r *MemoryRepo) DeleteTask(ctx context.Context, workspaceID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.WorkspaceID != workspaceID {
		return ErrTaskNotFound
	}
	delete(r.tasks, id)
	for eid, e := range r.taskExecutions {
		if e.TaskID == id {
			delete(r.taskExecutions, eid)
		}
	}
	return nil
}

func (r *MemoryRepo) DueTasks(ctx context.Context, now time.Time, limit int) ([]ScheduledTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ScheduledTask
	for _, t := range r.tasks {
		if t.IsEnabled && t.Status == TaskActive && !t.NextExecution.After(now) {
			out = append(out, t)
		}
	}
	sortByNextExecution(out)
	return window(out, limit, 0), nil
}

func (r *MemoryRepo) CreateTaskExecution(ctx context.Context, e TaskExecution) (TaskExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.taskExecutions[e.ID] = e
	return e, nil
}

func (r *MemoryRepo) GetTaskExecution(ctx context.Context, workspaceID, id string) (TaskExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.taskExecutions[id]
	if !ok || !inTenant(workspaceID, e.WorkspaceID) {
		return TaskExecution{}, ErrTaskExecutionNotFound
	}
	return e, nil
}

func (r *MemoryRepo) ListTaskExecutions(ctx context.Context, f TaskExecutionFilter) ([]TaskExecution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TaskExecution
	for _, e := range r.taskExecutions {
		switch {
		case !inTenant(f.WorkspaceID, e.WorkspaceID),
			f.TaskID != "" && e.TaskID != f.TaskID,
			f.Status != "" && e.Status != f.Status:
			continue
		}
		out = append(out, e)
	}
	newestFirst(out, func(e TaskExecution) time.Time { return e.CreatedAt }, func(e TaskExecution) string { return e.ID })
	return window(out, f.Limit, f.Offset), nil
}

func (r *MemoryRepo) PruneHistory(ctx context.Context, workspaceID string, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, e := range r.executions {
		if e.WorkspaceID == workspaceID && e.CreatedAt.Before(before) && slices.Contains(finishedStatuses, e.Status) {
			delete(r.executions, id)
			n++
		}
	}
	for id, e := range r.taskExecutions {
		if e.WorkspaceID == workspaceID && e.CreatedAt.Before(before) && slices.Contains(finishedStatuses, e.Status) {
			delete(r.taskExecutions, id)
			n++
		}
	}
	return n, nil
}
