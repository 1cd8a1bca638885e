package automation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bizops-platform/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(svc *Service, c auth.Caller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/v1", func(ctx *gin.Context) {
		ctx.Request = ctx.Request.WithContext(auth.WithCaller(ctx.Request.Context(), c))
		ctx.Next()
	})
	Handlers{Service: svc}.Register(v1)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlers_WorkflowLifecycle(t *testing.T) {
	messenger := &fakeMessenger{}
	svc, _ := newTestService(Deps{Messenger: messenger})
	router := newRouter(svc, manager)

	w := do(newRouter(svc, staff), http.MethodGet, "/v1/automation/workflows", ``)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(router, http.MethodPost, "/v1/automation/workflows", `{"name":"n","trigger_type":"manual"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/v1/automation/workflows", `{
		"name":"Welcome","trigger_type":"manual","status":"active","max_executions":1,
		"actions":[{"type":"whatsapp","params":{"phone":"{{phone}}","message":"Welcome {{name}}"}}]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		ID             string `json:"id"`
		IsLimitReached bool   `json:"is_limit_reached"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.False(t, created.IsLimitReached)

	w = do(router, http.MethodPost, "/v1/automation/workflows/"+created.ID+"/execute", `{"phone":"9000000001","name":"Meera"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"completed"`)
	require.Equal(t, []sentText{{"w1", "9000000001", "Welcome Meera"}}, messenger.sent)

	w = do(router, http.MethodPost, "/v1/automation/workflows/"+created.ID+"/execute", ``)
	require.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodGet, "/v1/automation/workflows/"+created.ID, ``)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"is_limit_reached":true`)

	w = do(router, http.MethodGet, "/v1/automation/executions?workflow_id="+created.ID, ``)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Results []Execution `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Results, 1)

	w = do(router, http.MethodDelete, "/v1/automation/workflows/"+created.ID, ``)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = do(router, http.MethodGet, "/v1/automation/executions/"+list.Results[0].ID, ``)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_TaskRoutes(t *testing.T) {
	svc, _ := newTestService(Deps{})
	router := newRouter(svc, manager)

	w := do(router, http.MethodPost, "/v1/automation/tasks", `{"name":"t","task_type":"custom","frequency":"custom"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/v1/automation/tasks", `{"name":"t","task_type":"custom","frequency":"daily"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var task struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))

	w = do(router, http.MethodPost, "/v1/automation/tasks/"+task.ID+"/execute", ``)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"completed"`)

	w = do(router, http.MethodGet, "/v1/automation/tasks/"+task.ID, ``)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"success_rate":100`)
	require.Contains(t, w.Body.String(), `"execution_count":1`)

	w = do(router, http.MethodGet, "/v1/automation/task-executions?task_id="+task.ID, ``)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"logged":true`)
}
