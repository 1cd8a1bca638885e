package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"bizops-platform/internal/config"

	"github.com/stretchr/testify/require"
)

func TestChatID(t *testing.T) {
	cases := map[string]string{
		"98765 43210":      "919876543210@c.us",
		"+91 98765-43210":  "919876543210@c.us",
		"(987) 654-3210":   "919876543210@c.us",
		"+1 415 555 01234": "141555501234@c.us",
	}
	for in, want := range cases {
		require.Equal(t, want, ChatID(in, "91"), in)
	}
}

type recorded struct {
	method, path, auth string
	body               map[string]any
}

func wahaServer(t *testing.T, status int, reply string) (*httptest.Server, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path, auth: r.Header.Get("Authorization")}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			require.NoError(t, json.Unmarshal(b, &rec.body))
		}
		calls = append(calls, rec)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newClient(baseURL, apiKey string) *WAHAClient {
	return NewWAHAClient(config.WhatsAppConfig{
		BaseURL:            baseURL + "/",
		Session:            "default",
		APIKey:             apiKey,
		DefaultCountryCode: "91",
		SiteURL:            "https://app.example.com/",
	})
}

func TestWAHAClient_SendText(t *testing.T) {
	srv, calls := wahaServer(t, http.StatusCreated, `{"id":"m1"}`)
	c := newClient(srv.URL, "secret")

	require.NoError(t, c.SendText(context.Background(), "98765 43210", "hello"))
	require.Len(t, *calls, 1)
	got := (*calls)[0]
	require.Equal(t, http.MethodPost, got.method)
	require.Equal(t, "/api/sendText", got.path)
	require.Equal(t, "Bearer secret", got.auth)
	require.Equal(t, map[string]any{"session": "default", "chatId": "919876543210@c.us", "text": "hello"}, got.body)
}

func TestWAHAClient_SendImageWithoutKey(t *testing.T) {
	srv, calls := wahaServer(t, http.StatusOK, ``)
	c := newClient(srv.URL, "")

	require.NoError(t, c.SendImage(context.Background(), "9876543210", "https://cdn.example.com/a.jpg", "new stock"))
	got := (*calls)[0]
	require.Equal(t, "/api/sendImage", got.path)
	require.Empty(t, got.auth)
	require.Equal(t, map[string]any{"url": "https://cdn.example.com/a.jpg", "caption": "new stock"}, got.body["file"])
}

func TestWAHAClient_SessionStatus(t *testing.T) {
	srv, _ := wahaServer(t, http.StatusOK, `[{"name":"other","status":"STOPPED"},{"name":"default","status":"WORKING"}]`)
	sess, err := newClient(srv.URL, "").SessionStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, "WORKING", sess.Status)

	srv, _ = wahaServer(t, http.StatusOK, `[]`)
	sess, err = newClient(srv.URL, "").SessionStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, SessionNotFound, sess.Status)
}

func TestWAHAClient_StartSessionRegistersWebhook(t *testing.T) {
	srv, calls := wahaServer(t, http.StatusCreated, `{}`)
	require.NoError(t, newClient(srv.URL, "").StartSession(context.Background()))

	got := (*calls)[0]
	require.Equal(t, "/api/sessions", got.path)
	require.Equal(t, "default", got.body["name"])
	hooks := got.body["config"].(map[string]any)["webhooks"].([]any)
	hook := hooks[0].(map[string]any)
	require.Equal(t, "https://app.example.com/webhooks/whatsapp", hook["url"])
	require.Equal(t, []any{"message", "session.status"}, hook["events"])
}

func TestWAHAClient_Non2xxIsDeliveryError(t *testing.T) {
	srv, _ := wahaServer(t, http.StatusUnprocessableEntity, `{"message":"bad chat"}`)
	err := newClient(srv.URL, "").SendText(context.Background(), "9876543210", "x")

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	require.Equal(t, http.StatusUnprocessableEntity, de.Status)
	require.Equal(t, "sendText", de.Op)
}
