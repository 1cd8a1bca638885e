package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bizops-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func serveAs(workspaceID, role string, allowed ...string) int {
	r := gin.New()
	r.GET("/x", func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "u", workspaceID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}, RequireWorkspace(), RequireAnyRole(allowed...), func(c *gin.Context) {
		c.Status(200)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_PlatformAdminBypasses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if code := serveAs("w", RolePlatformAdmin, RoleManager); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_DeniesOtherRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if code := serveAs("w", RoleTeleCalling, RoleManager, RoleBusinessAdmin); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serveAs("w", RoleManager, RoleManager, RoleBusinessAdmin); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_WorkspaceRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	if code := serveAs("", RoleManager, RoleManager); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestIsKnownRole(t *testing.T) {
	if !IsKnownRole(RoleMarketing) || IsKnownRole("owner") {
		t.Fatalf("unexpected role classification")
	}
	if !IsTenantAdmin(RoleManager) || IsTenantAdmin(RoleStaff) {
		t.Fatalf("unexpected tenant admin classification")
	}
}
