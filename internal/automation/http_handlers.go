package automation

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
}

type workflowView struct {
	Workflow
	IsLimitReached bool `json:"is_limit_reached"`
}

func viewWorkflow(w Workflow) workflowView {
	return workflowView{Workflow: w, IsLimitReached: w.IsLimitReached()}
}

type taskView struct {
	ScheduledTask
	SuccessRate float64 `json:"success_rate"`
	IsOverdue   bool    `json:"is_overdue"`
}

func viewTask(t ScheduledTask, now time.Time) taskView {
	return taskView{ScheduledTask: t, SuccessRate: t.SuccessRate(), IsOverdue: t.IsOverdue(now)}
}

func (h Handlers) listWorkflows(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListWorkflows(c.Request.Context(), caller, WorkflowFilter{
		Status:      WorkflowStatus(c.Query("status")),
		TriggerType: TriggerType(c.Query("trigger_type")),
		Limit:       page.Limit,
		Offset:      page.Offset,
	})
	views := make([]workflowView, 0, len(items))
	for _, w := range items {
		views = append(views, viewWorkflow(w))
	}
	httpapi.RespondList(c, views, err)
}

func (h Handlers) createWorkflow(c *gin.Context, caller auth.Caller) {
	var req WorkflowRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	w, err := h.Service.CreateWorkflow(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, viewWorkflow(w), err)
}

func (h Handlers) getWorkflow(c *gin.Context, caller auth.Caller) {
	w, err := h.Service.GetWorkflow(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, viewWorkflow(w), err)
}

func (h Handlers) updateWorkflow(c *gin.Context, caller auth.Caller) {
	var req WorkflowUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	w, err := h.Service.UpdateWorkflow(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, viewWorkflow(w), err)
}

func (h Handlers) deleteWorkflow(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteWorkflow(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// executeWorkflow accepts an optional JSON object body as the run input.
func (h Handlers) executeWorkflow(c *gin.Context, caller auth.Caller) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	var input json.RawMessage
	if len(body) > 0 {
		if !json.Valid(body) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "body must be a JSON object"})
			return
		}
		input = body
	}
	e, err := h.Service.Execute(c.Request.Context(), caller, c.Param("id"), input)
	httpapi.Respond(c, http.StatusOK, e, err)
}

func (h Handlers) listExecutions(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListExecutions(c.Request.Context(), caller, ExecutionFilter{
		WorkflowID: c.Query("workflow_id"),
		Status:     ExecutionStatus(c.Query("status")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) getExecution(c *gin.Context, caller auth.Caller) {
	e, err := h.Service.GetExecution(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, e, err)
}

func (h Handlers) listTasks(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListTasks(c.Request.Context(), caller, TaskFilter{
		Status:   TaskStatus(c.Query("status")),
		TaskType: TaskType(c.Query("task_type")),
		Limit:    page.Limit,
		Offset:   page.Offset,
	})
	now := time.Now()
	views := make([]taskView, 0, len(items))
	for _, t := range items {
		views = append(views, viewTask(t, now))
	}
	httpapi.RespondList(c, views, err)
}

func (h Handlers) createTask(c *gin.Context, caller auth.Caller) {
	var req TaskRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	t, err := h.Service.CreateTask(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, viewTask(t, time.Now()), err)
}

func (h Handlers) getTask(c *gin.Context, caller auth.Caller) {
	t, err := h.Service.GetTask(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, viewTask(t, time.Now()), err)
}

func (h Handlers) updateTask(c *gin.Context, caller auth.Caller) {
	var req TaskUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	t, err := h.Service.UpdateTask(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, viewTask(t, time.Now()), err)
}

func (h Handlers) deleteTask(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteTask(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) executeTask(c *gin.Context, caller auth.Caller) {
	e, err := h.Service.ExecuteTask(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, e, err)
}

func (h Handlers) listTaskExecutions(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListTaskExecutions(c.Request.Context(), caller, TaskExecutionFilter{
		TaskID: c.Query("task_id"),
		Status: ExecutionStatus(c.Query("status")),
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) getTaskExecution(c *gin.Context, caller auth.Caller) {
	e, err := h.Service.GetTaskExecution(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, e, err)
}

// Register mounts /automation. Every route needs a tenant admin; the platform
// operator may read across tenants.
func (h Handlers) Register(g *gin.RouterGroup) {
	a := g.Group("/automation")
	a.GET("/workflows", httpapi.WithCaller(h.listWorkflows))
	a.POST("/workflows", httpapi.WithCaller(h.createWorkflow))
	a.GET("/workflows/:id", httpapi.WithCaller(h.getWorkflow))
	a.PATCH("/workflows/:id", httpapi.WithCaller(h.updateWorkflow))
	a.DELETE("/workflows/:id", httpapi.WithCaller(h.deleteWorkflow))
	a.POST("/workflows/:id/execute", httpapi.WithCaller(h.executeWorkflow))

	a.GET("/executions", httpapi.WithCaller(h.listExecutions))
	a.GET("/executions/:id", httpapi.WithCaller(h.getExecution))

	a.GET("/tasks", httpapi.WithCaller(h.listTasks))
	a.POST("/tasks", httpapi.WithCaller(h.createTask))
	a.GET("/tasks/:id", httpapi.WithCaller(h.getTask))
	a.PATCH("/tasks/:id", httpapi.WithCaller(h.updateTask))
	a.DELETE("/tasks/:id", httpapi.WithCaller(h.deleteTask))
	a.POST("/tasks/:id/execute", httpapi.WithCaller(h.executeTask))

	a.GET("/task-executions", httpapi.WithCaller(h.listTaskExecutions))
	a.GET("/task-executions/:id", httpapi.WithCaller(h.getTaskExecution))
}
