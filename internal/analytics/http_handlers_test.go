package analytics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(svc *Service, c auth.Caller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(httpapi.ClientIPMiddleware())
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
	req.Header.Set("User-Agent", "unit-test/1.0")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlers_TrackUsesRequestMetadata(t *testing.T) {
	svc, repo := newTestService(Counters{})

	w := do(newRouter(svc, staff), http.MethodPost, "/v1/analytics/track",
		`{"event_type":"click","event_name":"cta","ip_address":"1.2.3.4","user_agent":"spoofed"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	events, err := repo.ListEvents(context.Background(), EventFilter{WorkspaceID: "w1"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "unit-test/1.0", events[0].UserAgent)
	require.NotEqual(t, "1.2.3.4", events[0].IPAddress)
	require.NotEmpty(t, events[0].IPAddress)
}

func TestHandlers_DashboardStats(t *testing.T) {
	svc, _ := newTestService(Counters{
		ActiveCampaigns: CounterFunc(func(ctx context.Context, c auth.Caller) (int, error) { return 3, nil }),
	})

	w := do(newRouter(svc, staff), http.MethodGet, "/v1/analytics/dashboard-stats", ``)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = do(newRouter(svc, manager), http.MethodGet, "/v1/analytics/dashboard-stats", ``)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"active_campaigns":3`)
	require.Contains(t, w.Body.String(), `"change":"+0%"`)

	svc.counters.ActiveCampaigns = CounterFunc(func(ctx context.Context, c auth.Caller) (int, error) {
		return 0, errors.New("connection refused")
	})
	w = do(newRouter(svc, manager), http.MethodGet, "/v1/analytics/dashboard-stats", ``)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"failed to load dashboard statistics"}`, w.Body.String())
}

func TestHandlers_ReportDownload(t *testing.T) {
	svc, _ := newTestService(Counters{})
	router := newRouter(svc, manager)

	w := do(router, http.MethodPost, "/v1/analytics/reports", `{"name":"r","report_type":"custom","format":"csv"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	list, err := svc.ListReports(context.Background(), manager, ReportFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	id := list[0].ID

	w = do(router, http.MethodGet, "/v1/analytics/reports/"+id+"/download", ``)
	require.Equal(t, http.StatusConflict, w.Code)

	w = do(router, http.MethodPost, "/v1/analytics/reports/"+id+"/generate", ``)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"completed"`)

	w = do(router, http.MethodGet, "/v1/analytics/reports/"+id+"/download", ``)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	require.True(t, strings.HasPrefix(w.Body.String(), "section,name,period_start,value"))
}
