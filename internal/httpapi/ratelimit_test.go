package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizops-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

type countingAllower struct {
	limit int
	seen  map[string]int
	err   error
}

func (a *countingAllower) Allow(ctx context.Context, key string) (bool, error) {
	if a.err != nil {
		return false, a.err
	}
	a.seen[key]++
	return a.seen[key] <= a.limit, nil
}

func TestRateLimitByIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := &countingAllower{limit: 2, seen: map[string]int{}}
	r := gin.New()
	r.POST("/x", RateLimitByIP(a, "test"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for i, want := range []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Fatalf("call %d: expected %d, got %d", i, want, w.Code)
		}
	}
	if a.seen["rl:test:10.0.0.1"] != 3 {
		t.Fatalf("unexpected keys: %#v", a.seen)
	}
}

func TestRateLimitByIP_FailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/x", RateLimitByIP(&countingAllower{err: errors.New("down")}, "test"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected pass-through, got %d", w.Code)
	}
}

func TestRateLimitByWorkspace_KeysOnTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := &countingAllower{limit: 1, seen: map[string]int{}}
	r := gin.New()
	r.POST("/x", func(c *gin.Context) {
		if ws := c.GetHeader("X-Test-Workspace"); ws != "" {
			c.Request = c.Request.WithContext(auth.WithCaller(c.Request.Context(), auth.Caller{UserID: "u", WorkspaceID: ws}))
		}
		c.Next()
	}, RateLimitByWorkspace(a, "bulk"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func(ws string) int {
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.RemoteAddr = "10.0.0.9:1234"
		req.Header.Set("X-Test-Workspace", ws)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}
	if got := send("w1"); got != http.StatusNoContent {
		t.Fatalf("first w1 call: got %d", got)
	}
	if got := send("w2"); got != http.StatusNoContent {
		t.Fatalf("w2 shares no window with w1: got %d", got)
	}
	if got := send("w1"); got != http.StatusTooManyRequests {
		t.Fatalf("second w1 call: got %d", got)
	}
	if got := send(""); got != http.StatusNoContent {
		t.Fatalf("anonymous call: got %d", got)
	}
	if a.seen["rl:bulk:ws:w1"] != 2 || a.seen["rl:bulk:10.0.0.9"] != 1 {
		t.Fatalf("unexpected keys: %#v", a.seen)
	}
}
