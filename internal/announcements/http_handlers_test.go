package announcements

import (
	"context"
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

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandlers_AcknowledgeAndRecipients(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	w := doJSON(newRouter(svc, author), http.MethodPost, "/v1/announcements", `{"title":"t"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	a, err := svc.CreateAnnouncement(ctx, author, CreateAnnouncementRequest{Title: "t", Content: "c"})
	require.NoError(t, err)
	w = doJSON(newRouter(svc, sameShop), http.MethodPost, "/v1/announcements/"+a.ID+"/acknowledge", ``)
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(newRouter(svc, sameShop), http.MethodGet, "/v1/announcements/unread-count", ``)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"unread_count":1}`, w.Body.String())

	m, err := svc.SendMessage(ctx, author, SendMessageRequest{Recipients: []string{"u2"}, Subject: "s", Content: "c"})
	require.NoError(t, err)
	w = doJSON(newRouter(svc, author), http.MethodPost, "/v1/team-messages/"+m.ID+"/read", ``)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(newRouter(svc, sameShop), http.MethodPost, "/v1/team-messages/"+m.ID+"/reply", `{"content":"ok"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Contains(t, w.Body.String(), `"subject":"Re: s"`)
}
