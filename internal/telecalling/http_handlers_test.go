package telecalling

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

func newRouter(svc *Service, c auth.Caller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/v1", func(ctx *gin.Context) {
		ctx.Request = ctx.Request.WithContext(auth.WithCaller(ctx.Request.Context(), c))
		ctx.Next()
	})
	Handlers{Service: svc}.Register(v1,
		rbac.RequireAnyRole(rbac.RoleInhouseSales, rbac.RoleTeleCalling, rbac.RoleManager, rbac.RoleBusinessAdmin),
		rbac.RequireAnyRole(rbac.RoleManager, rbac.RoleBusinessAdmin))
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlers_MembersOnly(t *testing.T) {
	svc := newService(t)
	if w := doJSON(newRouter(svc, staffCaller), http.MethodGet, "/v1/telecalling/visits", ""); w.Code != http.StatusForbidden {
		t.Fatalf("staff should be rejected, got %d", w.Code)
	}
	if w := doJSON(newRouter(svc, sales), http.MethodGet, "/v1/telecalling/visits", ""); w.Code != http.StatusOK {
		t.Fatalf("sales should list visits, got %d", w.Code)
	}
}

func TestHandlers_VisitAndBulkAssignFlow(t *testing.T) {
	svc := newService(t)

	w := doJSON(newRouter(svc, sales), http.MethodPost, "/v1/telecalling/visits", `{"customer_name":"Asha","customer_phone":"abc"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad phone should be 400, got %d %s", w.Code, w.Body.String())
	}
	w = doJSON(newRouter(svc, sales), http.MethodPost, "/v1/telecalling/visits", `{"customer_name":"Asha","customer_phone":"+91 98765 43210","interests":["sofa"]}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create visit: %d %s", w.Code, w.Body.String())
	}
	var v Visit
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}

	body := `{"telecaller_ids":["t1"],"customer_visit_ids":["` + v.ID + `"]}`
	if w := doJSON(newRouter(svc, caller1), http.MethodPost, "/v1/telecalling/assignments/bulk-assign", body); w.Code != http.StatusForbidden {
		t.Fatalf("telecaller cannot bulk assign, got %d", w.Code)
	}
	w = doJSON(newRouter(svc, manager), http.MethodPost, "/v1/telecalling/assignments/bulk-assign", body)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Successfully created 1 assignments") {
		t.Fatalf("bulk assign: %d %s", w.Code, w.Body.String())
	}
	var res BulkAssignResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil || len(res.Assignments) != 1 {
		t.Fatalf("decode bulk: %v %s", err, w.Body.String())
	}

	w = doJSON(newRouter(svc, caller1), http.MethodPost, "/v1/telecalling/call-logs",
		`{"assignment_id":"`+res.Assignments[0].ID+`","call_status":"connected","customer_sentiment":"positive","duration_seconds":60}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("log call: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(newRouter(svc, manager), http.MethodGet, "/v1/telecalling/assignments/stats", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"conversion_rate":100`) {
		t.Fatalf("stats: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(newRouter(svc, manager), http.MethodPost, "/v1/telecalling/notifications/mark-all-read", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"updated":2`) {
		t.Fatalf("mark all read: %d %s", w.Code, w.Body.String())
	}
}
