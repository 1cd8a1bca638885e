// Package automation runs tenant workflows on demand and scheduled tasks on a
// timer. Workflows are a condition list and an ordered action list stored as
// JSON; tasks dispatch to a handler per task type.
package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/notifications"
	"bizops-platform/internal/rbac"
	"bizops-platform/internal/settings"
	"bizops-platform/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Notifier interface {
	Notify(ctx context.Context, req notifications.NotifyRequest) (notifications.Notification, error)
}

// Messenger delivers a WhatsApp text on behalf of a workspace.
type Messenger interface {
	SendText(ctx context.Context, workspaceID, phone, message string) error
}

type MessengerFunc func(ctx context.Context, workspaceID, phone, message string) error

func (f MessengerFunc) SendText(ctx context.Context, workspaceID, phone, message string) error {
	return f(ctx, workspaceID, phone, message)
}

// Deps are the outbound channels actions and tasks use. Nil members make the
// matching action fail with a not-configured error.
type Deps struct {
	Notifier  Notifier
	Messenger Messenger
	Mailer    notifications.Mailer
}

type Service struct {
	repo     Repository
	deps     Deps
	handlers map[TaskType]TaskHandler
	clock    func() time.Time
}

func NewService(repo Repository, deps Deps) *Service {
	s := &Service{repo: repo, deps: deps, handlers: map[TaskType]TaskHandler{}, clock: time.Now}
	s.handlers[TaskNotification] = s.notificationTask
	s.handlers[TaskEmail] = s.emailTask
	s.handlers[TaskCleanup] = s.cleanupTask
	s.handlers[TaskCustom] = logTask
	return s
}

func (s *Service) now() time.Time { return s.clock().UTC() }

func readScope(c auth.Caller) (string, error) {
	switch {
	case rbac.IsPlatformAdmin(c.Role):
		return "", nil
	case rbac.IsTenantAdmin(c.Role) && c.WorkspaceID != "":
		return c.WorkspaceID, nil
	}
	return "", ErrForbidden
}

func writableTenant(c auth.Caller) (string, error) {
	if c.WorkspaceID == "" || !(rbac.IsTenantAdmin(c.Role) || rbac.IsPlatformAdmin(c.Role)) {
		return "", ErrForbidden
	}
	return c.WorkspaceID, nil
}

func validJSON(v json.RawMessage) bool { return len(v) == 0 || json.Valid(v) }

func mustJSON(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return datatypes.JSON(b)
}

type WorkflowRequest struct {
	Name          string          `json:"name" binding:"required,max=200"`
	Description   string          `json:"description"`
	TriggerType   TriggerType     `json:"trigger_type" binding:"required"`
	TriggerConfig json.RawMessage `json:"trigger_config"`
	Conditions    []Condition     `json:"conditions"`
	Actions       []Action        `json:"actions" binding:"required,min=1"`
	Status        WorkflowStatus  `json:"status"`
	IsEnabled     *bool           `json:"is_enabled"`
	MaxExecutions int             `json:"max_executions" binding:"min=0"`
}

type WorkflowUpdate struct {
	Name          *string         `json:"name" binding:"omitempty,max=200"`
	Description   *string         `json:"description"`
	TriggerType   *TriggerType    `json:"trigger_type"`
	TriggerConfig json.RawMessage `json:"trigger_config"`
	Conditions    []Condition     `json:"conditions"`
	Actions       []Action        `json:"actions"`
	Status        *WorkflowStatus `json:"status"`
	IsEnabled     *bool           `json:"is_enabled"`
	MaxExecutions *int            `json:"max_executions" binding:"omitempty,min=0"`
}

func validConditions(conds []Condition) bool {
	for _, c := range conds {
		if strings.TrimSpace(c.Field) == "" || !knownOp(c.Op) {
			return false
		}
	}
	return true
}

func validActions(actions []Action) bool {
	for _, a := range actions {
		if a.validate() != nil {
			return false
		}
	}
	return true
}

func (s *Service) CreateWorkflow(ctx context.Context, c auth.Caller, req WorkflowRequest) (Workflow, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return Workflow{}, err
	}
	if req.Status == "" {
		req.Status = WorkflowDraft
	}
	switch {
	case strings.TrimSpace(req.Name) == "",
		!req.TriggerType.Valid(),
		!req.Status.Valid(),
		!validJSON(req.TriggerConfig),
		len(req.Actions) == 0,
		!validConditions(req.Conditions),
		!validActions(req.Actions),
		req.MaxExecutions < 0:
		return Workflow{}, ErrInvalidArgument
	}
	if req.Conditions == nil {
		req.Conditions = []Condition{}
	}
	enabled := true
	if req.IsEnabled != nil {
		enabled = *req.IsEnabled
	}
	now := s.now()
	return s.repo.CreateWorkflow(ctx, Workflow{
		ID:            uuid.NewString(),
		WorkspaceID:   ws,
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		TriggerType:   req.TriggerType,
		TriggerConfig: datatypes.JSON(req.TriggerConfig),
		Conditions:    mustJSON(req.Conditions),
		Actions:       mustJSON(req.Actions),
		Status:        req.Status,
		IsEnabled:     enabled,
		MaxExecutions: req.MaxExecutions,
		CreatedBy:     c.UserID,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}

func (s *Service) GetWorkflow(ctx context.Context, c auth.Caller, id string) (Workflow, error) {
	ws, err := readScope(c)
	if err != nil {
		return Workflow{}, err
	}
	return s.repo.GetWorkflow(ctx, ws, id)
}

func (s *Service) ListWorkflows(ctx context.Context, c auth.Caller, f WorkflowFilter) ([]Workflow, error) {
	ws, err := readScope(c)
	if err != nil {
		return nil, err
	}
	f.WorkspaceID = ws
	return s.repo.ListWorkflows(ctx, f)
}

func (s *Service) UpdateWorkflow(ctx context.Context, c auth.Caller, id string, req WorkflowUpdate) (Workflow, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return Workflow{}, err
	}
	w, err := s.repo.GetWorkflow(ctx, ws, id)
	if err != nil {
		return Workflow{}, err
	}
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return Workflow{}, ErrInvalidArgument
		}
		w.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		w.Description = *req.Description
	}
	if req.TriggerType != nil {
		if !req.TriggerType.Valid() {
			return Workflow{}, ErrInvalidArgument
		}
		w.TriggerType = *req.TriggerType
	}
	if req.TriggerConfig != nil {
		if !validJSON(req.TriggerConfig) {
			return Workflow{}, ErrInvalidArgument
		}
		w.TriggerConfig = datatypes.JSON(req.TriggerConfig)
	}
	if req.Conditions != nil {
		if !validConditions(req.Conditions) {
			return Workflow{}, ErrInvalidArgument
		}
		w.Conditions = mustJSON(req.Conditions)
	}
	if req.Actions != nil {
		if len(req.Actions) == 0 || !validActions(req.Actions) {
			return Workflow{}, ErrInvalidArgument
		}
		w.Actions = mustJSON(req.Actions)
	}
	if req.Status != nil {
		if !req.Status.Valid() {
			return Workflow{}, ErrInvalidArgument
		}
		w.Status = *req.Status
	}
	if req.IsEnabled != nil {
		w.IsEnabled = *req.IsEnabled
	}
	if req.MaxExecutions != nil {
		if *req.MaxExecutions < 0 {
			return Workflow{}, ErrInvalidArgument
		}
		w.MaxExecutions = *req.MaxExecutions
	}
	w.UpdatedAt = s.now()
	return s.repo.SaveWorkflow(ctx, w)
}

func (s *Service) DeleteWorkflow(ctx context.Context, c auth.Caller, id string) error {
	ws, err := writableTenant(c)
	if err != nil {
		return err
	}
	return s.repo.DeleteWorkflow(ctx, ws, id)
}

func (s *Service) GetExecution(ctx context.Context, c auth.Caller, id string) (Execution, error) {
	ws, err := readScope(c)
	if err != nil {
		return Execution{}, err
	}
	return s.repo.GetExecution(ctx, ws, id)
}

func (s *Service) ListExecutions(ctx context.Context, c auth.Caller, f ExecutionFilter) ([]Execution, error) {
	ws, err := readScope(c)
	if err != nil {
		return nil, err
	}
	f.WorkspaceID = ws
	return s.repo.ListExecutions(ctx, f)
}

type actionResult struct {
	Step   int    `json:"step"`
	Type   string `json:"type"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type runOutput struct {
	ConditionsMet bool           `json:"conditions_met"`
	Actions       []actionResult `json:"actions"`
}

// Execute runs a workflow once with input as the condition and template
// source. A failed action ends the execution failed; the error is reported on
// the Execution, not returned.
func (s *Service) Execute(ctx context.Context, c auth.Caller, id string, input json.RawMessage) (Execution, error) {
	ws, err := writableTenant(c)
	if err != nil {
		return Execution{}, err
	}
	w, err := s.repo.GetWorkflow(ctx, ws, id)
	if err != nil {
		return Execution{}, err
	}
	if !w.IsEnabled || w.Status == WorkflowInactive {
		return Execution{}, ErrWorkflowDisabled
	}
	if w.IsLimitReached() {
		return Execution{}, ErrLimitReached
	}
	data := map[string]any{}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &data); err != nil {
			return Execution{}, ErrInvalidArgument
		}
	}

	started := s.now()
	exec, err := s.repo.CreateExecution(ctx, Execution{
		ID:          uuid.NewString(),
		WorkspaceID: ws,
		WorkflowID:  w.ID,
		Status:      ExecutionRunning,
		InputData:   datatypes.JSON(input),
		StartedAt:   &started,
		TriggeredBy: c.UserID,
		CreatedAt:   started,
	})
	if err != nil {
		return Execution{}, err
	}

	out, progress, runErr := s.run(ctx, w, data)
	finished := s.now()
	exec.Progress = progress
	exec.OutputData = mustJSON(out)
	exec.CompletedAt = &finished
	exec.DurationSeconds = int(finished.Sub(started).Seconds())
	exec.Status = ExecutionCompleted
	if runErr != nil {
		exec.Status = ExecutionFailed
		exec.ErrorMessage = runErr.Error()
		logger.From(ctx).Warn("workflow execution failed",
			"workflow_id", w.ID, "execution_id", exec.ID, "err", runErr)
	}
	if exec, err = s.repo.SaveExecution(ctx, exec); err != nil {
		return Execution{}, err
	}
	if err := s.repo.RecordRun(ctx, ws, w.ID, finished); err != nil {
		return Execution{}, err
	}
	return exec, nil
}

func (s *Service) run(ctx context.Context, w Workflow, input map[string]any) (runOutput, int, error) {
	out := runOutput{Actions: []actionResult{}}
	var conds []Condition
	if len(w.Conditions) > 0 {
		if err := json.Unmarshal(w.Conditions, &conds); err != nil {
			return out, 0, fmt.Errorf("decode conditions: %w", err)
		}
	}
	if !MatchAll(conds, input) {
		return out, 100, nil
	}
	out.ConditionsMet = true

	var actions []Action
	if err := json.Unmarshal(w.Actions, &actions); err != nil {
		return out, 0, fmt.Errorf("decode actions: %w", err)
	}
	vars := flatten(input)
	for i, a := range actions {
		detail, err := s.perform(ctx, w.WorkspaceID, a, vars)
		if err != nil {
			out.Actions = append(out.Actions, actionResult{Step: i + 1, Type: a.Type, Status: "failed", Detail: err.Error()})
			return out, i * 100 / len(actions), fmt.Errorf("action %d (%s): %w", i+1, a.Type, err)
		}
		out.Actions = append(out.Actions, actionResult{Step: i + 1, Type: a.Type, Status: "ok", Detail: detail})
	}
	return out, 100, nil
}

// flatten exposes the top-level input fields to action templates.
func flatten(input map[string]any) map[string]string {
	vars := make(map[string]string, len(input))
	for k, v := range input {
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		vars[k] = fmt.Sprint(v)
	}
	return vars
}

const (
	actionNotify   = "notify"
	actionWhatsApp = "whatsapp"
	actionLog      = "log"
)

var errNotConfigured = errors.New("channel not configured")

func (a Action) validate() error {
	need := func(keys ...string) error {
		for _, k := range keys {
			if strings.TrimSpace(a.Params[k]) == "" {
				return fmt.Errorf("%s action needs %s", a.Type, k)
			}
		}
		return nil
	}
	switch a.Type {
	case actionNotify:
		if t := a.Params["type"]; t != "" && !notifications.Type(t).Valid() {
			return fmt.Errorf("unknown notification type %q", t)
		}
		if p := a.Params["priority"]; p != "" && !notifications.Priority(p).Valid() {
			return fmt.Errorf("unknown priority %q", p)
		}
		return need("user_id", "title", "message")
	case actionWhatsApp:
		return need("phone", "message")
	case actionLog:
		return need("message")
	}
	return fmt.Errorf("unknown action type %q", a.Type)
}

func (s *Service) perform(ctx context.Context, workspaceID string, a Action, vars map[string]string) (string, error) {
	param := func(k string) string { return settings.Interpolate(a.Params[k], vars) }
	switch a.Type {
	case actionNotify:
		if s.deps.Notifier == nil {
			return "", errNotConfigured
		}
		typ := notifications.Type(a.Params["type"])
		if typ == "" {
			typ = notifications.TypeTaskReminder
		}
		n, err := s.deps.Notifier.Notify(ctx, notifications.NotifyRequest{
			WorkspaceID: workspaceID,
			UserID:      param("user_id"),
			Type:        typ,
			Priority:    notifications.Priority(a.Params["priority"]),
			Title:       param("title"),
			Message:     param("message"),
			ActionURL:   param("action_url"),
		})
		if err != nil {
			return "", err
		}
		if n.ID == "" {
			return "suppressed by user settings", nil
		}
		return n.ID, nil
	case actionWhatsApp:
		if s.deps.Messenger == nil {
			return "", errNotConfigured
		}
		phone := param("phone")
		if err := s.deps.Messenger.SendText(ctx, workspaceID, phone, param("message")); err != nil {
			return "", err
		}
		return phone, nil
	case actionLog:
		msg := param("message")
		logger.From(ctx).Info("workflow log action", "workspace_id", workspaceID, "message", msg)
		return msg, nil
	}
	return "", fmt.Errorf("unknown action type %q", a.Type)
}
