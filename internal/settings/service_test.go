package settings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Unix(1700000000, 0).UTC()

	admin   = auth.Caller{UserID: "a1", WorkspaceID: "w1", Role: rbac.RoleBusinessAdmin}
	staff   = auth.Caller{UserID: "u1", WorkspaceID: "w1", Role: rbac.RoleStaff}
	foreign = auth.Caller{UserID: "a2", WorkspaceID: "w2", Role: rbac.RoleManager}
)

func newTestService() *Service {
	svc := NewService(NewMemoryRepo(), nil)
	svc.clock = func() time.Time { return fixedNow }
	return svc
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"VIP Customer":     "vip-customer",
		"  Repeat--Buyer ": "repeat-buyer",
		"Diwali 2024!":     "diwali-2024",
		"***":              "",
	}
	for in, want := range cases {
		require.Equal(t, want, Slugify(in), in)
	}
}

func TestRender_SubstitutesKnownPlaceholders(t *testing.T) {
	tpl := NotificationTemplate{Template: "Hi {{name}}, your order {{ order_id }} is ready. {{unknown}}"}
	got := tpl.Render(map[string]string{"name": "Asha", "order_id": "42"})
	require.Equal(t, "Hi Asha, your order 42 is ready. {{unknown}}", got)
}

func TestBusinessSettings_UpsertPerKey(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.PutSetting(ctx, staff, "currency", json.RawMessage(`"INR"`))
	require.True(t, errors.Is(err, apperr.ErrForbidden))
	_, err = svc.PutSetting(ctx, admin, "currency", json.RawMessage(`{bad`))
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	first, err := svc.PutSetting(ctx, admin, "currency", json.RawMessage(`"INR"`))
	require.NoError(t, err)
	second, err := svc.PutSetting(ctx, admin, "currency", json.RawMessage(`"USD"`))
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	items, err := svc.ListSettings(ctx, staff)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.JSONEq(t, `"USD"`, string(items[0].Value))

	_, err = svc.GetSetting(ctx, foreign, "currency")
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestTags_SlugUniquePerTenant(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tag, err := svc.CreateTag(ctx, admin, TagRequest{Name: "VIP Customer", Category: "loyalty"})
	require.NoError(t, err)
	require.Equal(t, "vip-customer", tag.Slug)
	require.True(t, tag.IsActive)

	_, err = svc.CreateTag(ctx, admin, TagRequest{Name: "vip customer"})
	require.True(t, errors.Is(err, apperr.ErrConflict))
	_, err = svc.CreateTag(ctx, foreign, TagRequest{Name: "VIP Customer"})
	require.NoError(t, err)

	other, err := svc.CreateTag(ctx, admin, TagRequest{Name: "Walk-in"})
	require.NoError(t, err)
	_, err = svc.UpdateTag(ctx, admin, other.ID, TagUpdate{Name: ptr("VIP customer")})
	require.True(t, errors.Is(err, apperr.ErrConflict))

	off := false
	upd, err := svc.UpdateTag(ctx, admin, other.ID, TagUpdate{Name: ptr("Walk In Lead"), IsActive: &off})
	require.NoError(t, err)
	require.Equal(t, "walk-in-lead", upd.Slug)

	active, err := svc.ListTags(ctx, staff, TagFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "VIP Customer", active[0].Name)
}

func TestTemplates_ActiveTemplateAndRender(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.CreateTemplate(ctx, admin, TemplateRequest{Name: "x", Channel: "fax", Event: "purchase", Template: "t"})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	tpl, err := svc.CreateTemplate(ctx, admin, TemplateRequest{
		Name: "thanks", Channel: ChannelWhatsApp, Event: "purchase", Template: "Thanks {{name}}!",
	})
	require.NoError(t, err)

	got, ok, err := svc.ActiveTemplate(ctx, "w1", ChannelWhatsApp, "purchase")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, tpl.ID, got.ID)

	out, err := svc.RenderTemplate(ctx, staff, tpl.ID, map[string]string{"name": "Ravi"})
	require.NoError(t, err)
	require.Equal(t, "Thanks Ravi!", out)

	off := false
	_, err = svc.UpdateTemplate(ctx, admin, tpl.ID, TemplateUpdate{IsActive: &off})
	require.NoError(t, err)
	_, ok, err = svc.ActiveTemplate(ctx, "w1", ChannelWhatsApp, "purchase")
	require.NoError(t, err)
	require.False(t, ok)

	require.True(t, errors.Is(svc.DeleteTemplate(ctx, foreign, tpl.ID), apperr.ErrNotFound))
	require.NoError(t, svc.DeleteTemplate(ctx, admin, tpl.ID))
}

func TestBranding_DefaultsAndPartialUpdate(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	b, err := svc.Branding(ctx, staff)
	require.NoError(t, err)
	require.Equal(t, DefaultThemeColor, b.ThemeColor)

	_, err = svc.UpdateBranding(ctx, staff, BrandingUpdate{BusinessName: ptr("Shop")})
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	b, err = svc.UpdateBranding(ctx, admin, BrandingUpdate{BusinessName: ptr(" Shop ")})
	require.NoError(t, err)
	require.Equal(t, "Shop", b.BusinessName)
	require.Equal(t, DefaultThemeColor, b.ThemeColor)

	b, err = svc.UpdateBranding(ctx, admin, BrandingUpdate{ThemeColor: ptr("#ff0000")})
	require.NoError(t, err)
	require.Equal(t, "Shop", b.BusinessName)
	require.Equal(t, "#ff0000", b.ThemeColor)

	l, err := svc.UpdateLegal(ctx, admin, LegalUpdate{ReturnPolicy: ptr("30 days")})
	require.NoError(t, err)
	require.Equal(t, "30 days", l.ReturnPolicy)
	l, err = svc.Legal(ctx, foreign)
	require.NoError(t, err)
	require.Empty(t, l.ReturnPolicy)
}

func ptr[T any](v T) *T { return &v }

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

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlers_SettingsRoutes(t *testing.T) {
	svc := newTestService()

	w := doJSON(newRouter(svc, admin), http.MethodPut, "/v1/settings/branding", `{"theme_color":"blue"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(newRouter(svc, staff), http.MethodPut, "/v1/settings/branding", `{"theme_color":"#000000"}`)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(newRouter(svc, admin), http.MethodPut, "/v1/settings/business/hours", `{"value":{"open":"09:00"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"key":"hours"`)

	w = doJSON(newRouter(svc, staff), http.MethodGet, "/v1/settings/business", ``)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"open":"09:00"`)

	w = doJSON(newRouter(svc, admin), http.MethodPost, "/v1/settings/tags", `{"name":"Hot Lead"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), `"slug":"hot-lead"`)
	w = doJSON(newRouter(svc, admin), http.MethodPost, "/v1/settings/tags", `{"name":"hot lead"}`)
	require.Equal(t, http.StatusConflict, w.Code)
}
