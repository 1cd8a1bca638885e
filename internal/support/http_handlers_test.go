package support

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bizops-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func newRouter(f *fixture, c auth.Caller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/v1", func(ctx *gin.Context) {
		ctx.Request = ctx.Request.WithContext(auth.WithCaller(ctx.Request.Context(), c))
		ctx.Next()
	})
	Handlers{Service: f.svc}.Register(v1)
	return r
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlers_CreateAndAct(t *testing.T) {
	f := newFixture(t)

	if w := doJSON(newRouter(f, staff), http.MethodPost, "/v1/support/tickets", `{"title":"x","summary":"y"}`); w.Code != http.StatusForbidden {
		t.Fatalf("staff cannot create tickets, got %d", w.Code)
	}
	if w := doJSON(newRouter(f, bizAdmin), http.MethodPost, "/v1/support/tickets", `{"title":"x","summary":"y","callback_phone":"abc"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid phone must be 400, got %d", w.Code)
	}

	w := doJSON(newRouter(f, bizAdmin), http.MethodPost, "/v1/support/tickets", `{"title":"x","summary":"y","priority":"high"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created TicketView
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ValidTicketID(created.TicketID) || !created.IsOpen {
		t.Fatalf("unexpected ticket %+v", created)
	}

	if w := doJSON(newRouter(f, bizAdmin), http.MethodPost, "/v1/support/tickets/"+created.ID+"/reopen", ``); w.Code != http.StatusBadRequest {
		t.Fatalf("reopen of open ticket must be 400, got %d", w.Code)
	}
	if w := doJSON(newRouter(f, bizAdmin), http.MethodPost, "/v1/support/tickets/"+created.ID+"/resolve", ``); w.Code != http.StatusForbidden {
		t.Fatalf("resolve by tenant must be 403, got %d", w.Code)
	}
	if w := doJSON(newRouter(f, platformA), http.MethodPost, "/v1/support/tickets/"+created.ID+"/resolve", ``); w.Code != http.StatusOK {
		t.Fatalf("resolve by platform admin, got %d", w.Code)
	}
	if w := doJSON(newRouter(f, otherBiz), http.MethodGet, "/v1/support/tickets/"+created.ID, ``); w.Code != http.StatusNotFound {
		t.Fatalf("other tenant gets 404, got %d", w.Code)
	}
	if w := doJSON(newRouter(f, bizAdmin), http.MethodGet, "/v1/support/tickets/stats", ``); w.Code != http.StatusOK {
		t.Fatalf("stats, got %d", w.Code)
	}
}
