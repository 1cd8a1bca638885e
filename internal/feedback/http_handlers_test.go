package feedback

import (
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
	h := Handlers{Service: svc}
	h.RegisterPublic(r.Group(""), func(ctx *gin.Context) { ctx.Next() })
	v1 := r.Group("/v1", func(ctx *gin.Context) {
		ctx.Request = ctx.Request.WithContext(auth.WithCaller(ctx.Request.Context(), c))
		ctx.Next()
	})
	h.Register(v1, rbac.RequireAnyRole(rbac.RoleManager, rbac.RoleBusinessAdmin))
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlers_PublicSubmitRequiresTenant(t *testing.T) {
	svc, _ := newService(t)
	r := newRouter(svc, staff)

	w := doJSON(r, http.MethodPost, "/public/feedback", `{"title":"t","content":"c","overall_rating":5}`)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), "tenant_id") {
		t.Fatalf("expected 400 tenant_id, got %d %s", w.Code, w.Body.String())
	}
	w = doJSON(r, http.MethodPost, "/public/feedback", `{"tenant_id":"w1","title":"t","content":"c","overall_rating":9}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("rating out of range must be 400, got %d", w.Code)
	}
	w = doJSON(r, http.MethodPost, "/public/feedback", `{"tenant_id":"w1","title":"t","content":"c","overall_rating":4}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
}

func TestHandlers_SurveyManagementGate(t *testing.T) {
	svc, _ := newService(t)
	if w := doJSON(newRouter(svc, staff), http.MethodPost, "/v1/feedback/surveys", `{"name":"s"}`); w.Code != http.StatusForbidden {
		t.Fatalf("staff cannot manage surveys, got %d", w.Code)
	}
	if w := doJSON(newRouter(svc, manager), http.MethodPost, "/v1/feedback/surveys", `{"name":"s"}`); w.Code != http.StatusCreated {
		t.Fatalf("manager creates surveys, got %d %s", w.Code, w.Body.String())
	}
	if w := doJSON(newRouter(svc, staff), http.MethodGet, "/v1/feedback/stats", ``); w.Code != http.StatusOK {
		t.Fatalf("stats: %d", w.Code)
	}
}
