package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/rbac"

	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Unix(1700000000, 0).UTC()

	owner     = auth.Caller{UserID: "o1", WorkspaceID: "w1", Role: rbac.RoleBusinessAdmin}
	manager   = auth.Caller{UserID: "m1", WorkspaceID: "w1", Role: rbac.RoleManager}
	marketer  = auth.Caller{UserID: "k1", WorkspaceID: "w1", Role: rbac.RoleMarketing}
	staff     = auth.Caller{UserID: "u1", WorkspaceID: "w1", Role: rbac.RoleStaff}
	otherShop = auth.Caller{UserID: "o2", WorkspaceID: "w2", Role: rbac.RoleBusinessAdmin}
)

type sent struct{ phone, text, image string }

type fakeGateway struct {
	mu      sync.Mutex
	sent    []sent
	failFor map[string]bool
	status  string
	err     error
	started int
}

func (f *fakeGateway) SendText(ctx context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.failFor[phone] {
		return &DeliveryError{Op: "sendText", Status: 422, Body: "bad chat"}
	}
	f.sent = append(f.sent, sent{phone: phone, text: text})
	return nil
}

func (f *fakeGateway) SendImage(ctx context.Context, phone, imageURL, caption string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{phone: phone, text: caption, image: imageURL})
	return nil
}

func (f *fakeGateway) SessionStatus(ctx context.Context) (Session, error) {
	if f.err != nil {
		return Session{}, f.err
	}
	return Session{Name: "default", Status: f.status}, nil
}

func (f *fakeGateway) StartSession(ctx context.Context) error {
	f.started++
	return f.err
}

func newTestService(gw *fakeGateway, token string) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	svc := NewService(repo, gw, nil, Options{CountryCode: "91", WebhookToken: token})
	svc.clock = func() time.Time { return fixedNow }
	return svc, repo
}

func connectWhatsApp(t *testing.T, svc *Service, phone string) Detail {
	t.Helper()
	d, err := svc.CreateIntegration(context.Background(), owner, IntegrationRequest{
		Platform:  PlatformWhatsApp,
		Name:      "Shop WhatsApp",
		APIKey:    "k",
		IsEnabled: true,
		WhatsApp:  &WhatsAppSettings{PhoneNumber: phone, BusinessName: "Shop"},
	})
	require.NoError(t, err)
	return d
}

func TestSend_TextAndImage(t *testing.T) {
	gw := &fakeGateway{}
	svc, repo := newTestService(gw, "")
	d := connectWhatsApp(t, svc, "98765 43210")
	ctx := context.Background()

	res, err := svc.Send(ctx, staff, SendRequest{Phone: "9000000001", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "919000000001@c.us", res.ChatID)

	_, err = svc.Send(ctx, staff, SendRequest{Phone: "9000000001", Message: "look", Type: MessageImage})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	_, err = svc.Send(ctx, staff, SendRequest{Phone: "9000000001", Message: "look", Type: MessageImage, ImageURL: "https://cdn.example.com/x.jpg"})
	require.NoError(t, err)
	require.Equal(t, []sent{
		{phone: "9000000001", text: "hi"},
		{phone: "9000000001", text: "look", image: "https://cdn.example.com/x.jpg"},
	}, gw.sent)

	cfg, err := repo.GetWhatsAppConfig(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.MessagesSent)
	require.Equal(t, fixedNow, *cfg.LastMessageSent)
}

func TestSend_GatewayFailureIsLogged(t *testing.T) {
	gw := &fakeGateway{}
	svc, repo := newTestService(gw, "")
	d := connectWhatsApp(t, svc, "9876543210")
	gw.err = errors.New("connection refused")

	_, err := svc.Send(context.Background(), staff, SendRequest{Phone: "9000000001", Message: "hi"})
	require.True(t, errors.Is(err, ErrGateway))

	logs, err := repo.ListLogs(context.Background(), LogFilter{WorkspaceID: "w1", IntegrationID: d.ID, Level: LevelError})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "send failed", logs[0].Message)
}

func TestBulkSend(t *testing.T) {
	gw := &fakeGateway{failFor: map[string]bool{"9000000002": true}}
	svc, repo := newTestService(gw, "")
	d := connectWhatsApp(t, svc, "9876543210")
	ctx := context.Background()

	_, err := svc.BulkSend(ctx, staff, BulkRequest{Recipients: []string{"9000000001"}, Message: "x"})
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = svc.BulkSend(ctx, marketer, BulkRequest{Recipients: []string{"9000000001"}, Message: "x", TemplateType: "order_ready"})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	res, err := svc.BulkSend(ctx, marketer, BulkRequest{
		Recipients:   []string{"9000000001", "9000000002", " ", "9000000003"},
		Message:      "fallback",
		TemplateType: "new_collection",
		TemplateData: map[string]string{"collection_name": "Festive", "discount": ""},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.SentCount)
	require.Equal(t, 2, res.FailedCount)
	require.Equal(t, []string{"9000000002"}, res.Failed)
	require.Contains(t, gw.sent[0].text, "*Festive* collection")
	require.Contains(t, gw.sent[0].text, "10% OFF")
	require.Contains(t, gw.sent[0].text, "Valued Customer")

	cfg, err := repo.GetWhatsAppConfig(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, 2, cfg.MessagesSent)

	logs, err := repo.ListLogs(ctx, LogFilter{WorkspaceID: "w1", Level: LevelWarning})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "bulk send completed", logs[0].Message)
}

func TestStatusAndStartSession(t *testing.T) {
	gw := &fakeGateway{status: "WORKING"}
	svc, _ := newTestService(gw, "")
	ctx := context.Background()

	sess, err := svc.Status(ctx, staff)
	require.NoError(t, err)
	require.Equal(t, "WORKING", sess.Status)

	require.True(t, errors.Is(svc.StartSession(ctx, staff), apperr.ErrForbidden))
	require.NoError(t, svc.StartSession(ctx, manager))
	require.Equal(t, 1, gw.started)
}

func TestIntegrationCRUD(t *testing.T) {
	gw := &fakeGateway{status: "SCAN_QR_CODE"}
	svc, repo := newTestService(gw, "")
	ctx := context.Background()

	_, err := svc.CreateIntegration(ctx, manager, IntegrationRequest{Platform: PlatformShopify, Name: "s"})
	require.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = svc.CreateIntegration(ctx, owner, IntegrationRequest{Platform: "etsy", Name: "s"})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	_, err = svc.CreateIntegration(ctx, owner, IntegrationRequest{
		Platform: PlatformShopify, Name: "s", WhatsApp: &WhatsAppSettings{PhoneNumber: "9876543210"},
	})
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	shop, err := svc.CreateIntegration(ctx, owner, IntegrationRequest{
		Platform:  PlatformShopify,
		Name:      "Storefront",
		APIKey:    "key",
		Ecommerce: &EcommerceSettings{StoreURL: "https://shop.example.com"},
	})
	require.NoError(t, err)
	require.True(t, shop.HasAPIKey)
	require.False(t, shop.HasAPISecret)
	require.Equal(t, StatusInactive, shop.Status)
	require.NotNil(t, shop.Ecommerce)
	require.Equal(t, defaultSyncIntervalHours, shop.Ecommerce.SyncIntervalHours)
	require.True(t, shop.Ecommerce.SyncProducts)
	require.False(t, shop.Ecommerce.SyncCustomers)

	_, err = svc.CreateIntegration(ctx, owner, IntegrationRequest{Platform: PlatformShopify, Name: "again"})
	require.True(t, errors.Is(err, apperr.ErrConflict))

	_, err = svc.GetIntegration(ctx, otherShop, shop.ID)
	require.True(t, errors.Is(err, apperr.ErrNotFound))

	name, enabled := "Main store", true
	up, err := svc.UpdateIntegration(ctx, owner, shop.ID, IntegrationUpdate{Name: &name, IsEnabled: &enabled})
	require.NoError(t, err)
	require.Equal(t, "Main store", up.Name)
	require.True(t, up.IsEnabled)
	require.Equal(t, PlatformShopify, up.Platform)

	raw, err := json.Marshal(up)
	require.NoError(t, err)
	require.NotContains(t, string(raw), `"key"`)

	list, err := svc.ListIntegrations(ctx, owner, "")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.TestConnection(ctx, owner, shop.ID)
	require.True(t, errors.Is(err, apperr.ErrInvalidArgument))

	wa := connectWhatsApp(t, svc, "+91 98765 43210")
	require.Equal(t, "919876543210", wa.WhatsApp.PhoneNumber)
	require.True(t, wa.WhatsApp.OrderNotificationsEnabled)
	tested, err := svc.TestConnection(ctx, owner, wa.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, tested.Status)
	require.Equal(t, "session status SCAN_QR_CODE", tested.LastError)

	gw.status = "WORKING"
	tested, err = svc.TestConnection(ctx, owner, wa.ID)
	require.NoError(t, err)
	require.Equal(t, StatusActive, tested.Status)
	require.Empty(t, tested.LastError)
	require.Equal(t, fixedNow, *tested.LastSync)

	logs, err := svc.ListLogs(ctx, owner, LogFilter{IntegrationID: shop.ID})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "integration updated", logs[0].Message)
	require.Equal(t, "integration created", logs[1].Message)

	require.NoError(t, svc.DeleteIntegration(ctx, owner, shop.ID))
	_, err = repo.GetEcommerceConfig(ctx, shop.ID)
	require.True(t, errors.Is(err, ErrConfigNotFound))
	_, err = svc.ListLogs(ctx, owner, LogFilter{IntegrationID: shop.ID})
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}

func messageEvent(to, from, body string) WebhookEvent {
	payload, _ := json.Marshal(map[string]any{"id": "x", "from": from, "to": to, "body": body})
	return WebhookEvent{Event: EventMessage, Session: "default", Payload: payload}
}

func TestHandleWebhook(t *testing.T) {
	svc, repo := newTestService(&fakeGateway{}, "s3cret")
	d := connectWhatsApp(t, svc, "9876543210")
	ctx := context.Background()

	_, err := svc.HandleWebhook(ctx, "wrong", messageEvent("919876543210@c.us", "919000000001@c.us", "hi"))
	require.True(t, errors.Is(err, ErrUnauthorized))

	res, err := svc.HandleWebhook(ctx, "s3cret", messageEvent("919876543210@c.us", "919000000001@c.us", "hi"))
	require.NoError(t, err)
	require.True(t, res.Handled)
	require.Equal(t, "w1", res.WorkspaceID)

	res, err = svc.HandleWebhook(ctx, "s3cret", messageEvent("910000000000@c.us", "919000000001@c.us", "hi"))
	require.NoError(t, err)
	require.False(t, res.Handled)

	res, err = svc.HandleWebhook(ctx, "s3cret", WebhookEvent{Event: EventSessionStatus, Payload: json.RawMessage(`{"status":"WORKING"}`)})
	require.NoError(t, err)
	require.True(t, res.Handled)

	cfg, err := repo.GetWhatsAppConfig(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.MessagesReceived)
	require.Equal(t, fixedNow, *cfg.LastMessageReceived)

	logs, err := repo.ListLogs(ctx, LogFilter{WorkspaceID: "w1", IntegrationID: d.ID, Level: LevelInfo})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, "message received", logs[0].Message)
}

func TestTemplates(t *testing.T) {
	ids := make([]string, 0)
	for _, tpl := range Templates() {
		ids = append(ids, tpl.ID)
	}
	require.Equal(t, []string{"appointment_reminder", "order_ready", "payment_reminder", "new_collection", "follow_up"}, ids)

	tpl, ok := findTemplate("follow_up")
	require.True(t, ok)
	out := tpl.Render(map[string]string{"customer_name": "Asha"})
	require.Contains(t, out, "Hello Asha!")
	require.Contains(t, out, "This is Our team from our store")
}
