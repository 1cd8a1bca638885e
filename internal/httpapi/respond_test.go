package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func TestAbort_MapsErrorClasses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("ticket %w", apperr.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("bad %w", apperr.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("no %w", apperr.ErrForbidden), http.StatusForbidden},
		{fmt.Errorf("dup %w", apperr.ErrConflict), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) { Abort(c, tc.err) })
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		if w.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
	}
}

func TestPageFrom_DefaultsAndCaps(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var got Page
	r := gin.New()
	r.GET("/x", func(c *gin.Context) { got = PageFrom(c) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	if got.Limit != DefaultLimit || got.Offset != 0 {
		t.Fatalf("unexpected default page: %+v", got)
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x?limit=1000&offset=5", nil))
	if got.Limit != MaxLimit || got.Offset != 5 {
		t.Fatalf("unexpected capped page: %+v", got)
	}
}

func TestApply(t *testing.T) {
	rows := []int{1, 2, 3, 4, 5}
	if got := Apply(Page{Limit: 2, Offset: 1}, rows); len(got) != 2 || got[0] != 2 {
		t.Fatalf("unexpected window: %v", got)
	}
	if got := Apply(Page{Limit: 2, Offset: 10}, rows); len(got) != 0 {
		t.Fatalf("expected empty window, got %v", got)
	}
}

type phoneReq struct {
	Phone string `json:"phone" binding:"required,phone"`
	Color string `json:"color" binding:"omitempty,hexcolor6"`
}

func TestBindJSON_CustomValidators(t *testing.T) {
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		var req phoneReq
		if !BindJSON(c, &req) {
			return
		}
		c.Status(http.StatusOK)
	})

	for body, want := range map[string]int{
		`{"phone":"+91 98765 43210"}`:              http.StatusOK,
		`{"phone":"abc"}`:                          http.StatusBadRequest,
		`{"phone":"9876543210","color":"#1e40af"}`: http.StatusOK,
		`{"phone":"9876543210","color":"blue"}`:    http.StatusBadRequest,
		`{"phone":`:                                http.StatusBadRequest,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("%s: expected %d, got %d", body, want, w.Code)
		}
	}
}

func TestRespondHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/list", func(c *gin.Context) { RespondList[string](c, nil, nil) })
	r.GET("/one", func(c *gin.Context) { Respond(c, http.StatusCreated, gin.H{"id": "x"}, nil) })
	r.GET("/missing", func(c *gin.Context) { Respond(c, http.StatusOK, nil, fmt.Errorf("row %w", apperr.ErrNotFound)) })
	r.GET("/me", WithCaller(func(c *gin.Context, caller auth.Caller) { c.String(http.StatusOK, caller.UserID) }))

	get := func(path string, ctxCaller *auth.Caller) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if ctxCaller != nil {
			req = req.WithContext(auth.WithCaller(req.Context(), *ctxCaller))
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	if w := get("/list", nil); w.Code != http.StatusOK || strings.TrimSpace(w.Body.String()) != `{"results":[]}` {
		t.Fatalf("nil list should encode as empty results, got %d %s", w.Code, w.Body.String())
	}
	if w := get("/one", nil); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if w := get("/missing", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := get("/me", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", w.Code)
	}
	if w := get("/me", &auth.Caller{UserID: "u1", WorkspaceID: "w1", Role: "staff"}); w.Code != http.StatusOK || w.Body.String() != "u1" {
		t.Fatalf("expected caller passed through, got %d %s", w.Code, w.Body.String())
	}
}
