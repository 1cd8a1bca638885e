package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/config"

	"github.com/gin-gonic/gin"
)

func newAuth(t *testing.T) *auth.Manager {
	t.Helper()
	m, err := auth.NewManager(config.AuthConfig{JWTSecret: "s", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour})
	if err != nil {
		t.Fatalf("auth: %v", err)
	}
	return m
}

func post(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIssueToken_DevLoginOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := NewMemoryRepo(User{ID: "u1", WorkspaceID: "w1", StoreID: "s1", Role: "manager", Name: "M", IsActive: true})
	m := newAuth(t)

	h := Handlers{Service: NewService(repo), Auth: m}
	r := gin.New()
	r.POST("/auth/token", h.IssueToken)
	if w := post(r, "/auth/token", tokenRequest{UserID: "u1"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when dev login disabled, got %d", w.Code)
	}

	h.AllowDevLogin = true
	r = gin.New()
	r.POST("/auth/token", h.IssueToken)
	r.POST("/auth/refresh", h.Refresh)

	w := post(r, "/auth/token", tokenRequest{UserID: "u1"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var pair auth.TokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := m.Verify(pair.AccessToken, auth.TokenTypeAccess, time.Now())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.StoreID != "s1" || claims.Role != "manager" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if w := post(r, "/auth/refresh", refreshRequest{RefreshToken: pair.RefreshToken}); w.Code != http.StatusOK {
		t.Fatalf("expected refresh 200, got %d", w.Code)
	}
	if w := post(r, "/auth/refresh", refreshRequest{RefreshToken: pair.AccessToken}); w.Code != http.StatusUnauthorized {
		t.Fatalf("access token must not refresh, got %d", w.Code)
	}
	if w := post(r, "/auth/token", tokenRequest{UserID: "nobody"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown user, got %d", w.Code)
	}
}

func TestService_UpsertValidatesRole(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if _, err := svc.Upsert(context.Background(), "w1", UpsertUserRequest{Role: "owner", Name: "x"}); err == nil {
		t.Fatalf("expected invalid role error")
	}
	u, err := svc.Upsert(context.Background(), "w1", UpsertUserRequest{Role: "platform_admin", Name: " Ada "})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if u.ID == "" || u.Name != "Ada" || !u.IsActive {
		t.Fatalf("unexpected user: %+v", u)
	}
	admins, _ := svc.PlatformAdmins(context.Background())
	if len(admins) != 1 {
		t.Fatalf("expected 1 platform admin, got %d", len(admins))
	}
	if _, err := svc.Upsert(context.Background(), "w2", UpsertUserRequest{ID: u.ID, Role: "staff", Name: "x"}); err == nil {
		t.Fatalf("cross-tenant overwrite must fail")
	}
}
