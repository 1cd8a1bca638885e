package integrations

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bizops-platform/internal/config"
	"bizops-platform/pkg/logger"
)

// Messenger is the WhatsApp gateway the service talks to. WAHAClient is the
// production implementation.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
	SendImage(ctx context.Context, phone, imageURL, caption string) error
	SessionStatus(ctx context.Context) (Session, error)
	StartSession(ctx context.Context) error
}

// Session is the gateway's view of the configured WhatsApp session. Status is
// the WAHA status string (WORKING, SCAN_QR_CODE, STOPPED, ...) or NOT_FOUND.
type Session struct {
	Name   string          `json:"name"`
	Status string          `json:"status"`
	Me     json.RawMessage `json:"me,omitempty"`
}

const SessionNotFound = "NOT_FOUND"

// WAHAClient calls a WAHA (WhatsApp HTTP API) deployment.
type WAHAClient struct {
	baseURL     string
	session     string
	apiKey      string
	siteURL     string
	countryCode string
	http        *http.Client
}

func NewWAHAClient(cfg config.WhatsAppConfig) *WAHAClient {
	return &WAHAClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		session:     cfg.Session,
		apiKey:      cfg.APIKey,
		siteURL:     strings.TrimRight(cfg.SiteURL, "/"),
		countryCode: cfg.DefaultCountryCode,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

// ChatID turns a free-form phone number into a WhatsApp chat id: digits
// only, with countryCode prefixed to 10-digit national numbers.
func ChatID(phone, countryCode string) string {
	digits := onlyDigits(phone)
	if len(digits) == 10 {
		digits = countryCode + digits
	}
	return digits + "@c.us"
}

// DeliveryError is a non-2xx answer from the gateway.
type DeliveryError struct {
	Op     string
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("waha %s: status %d: %s", e.Op, e.Status, e.Body)
}

func (c *WAHAClient) do(ctx context.Context, op, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("waha %s: %w", op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("waha %s: read body: %w", op, err)
	}
	logger.From(ctx).Debug("waha response", "op", op, "status", resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DeliveryError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("waha %s: decode: %w", op, err)
		}
	}
	return nil
}

type textMessage struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

func (c *WAHAClient) SendText(ctx context.Context, phone, text string) error {
	return c.do(ctx, "sendText", http.MethodPost, "/api/sendText", textMessage{
		Session: c.session,
		ChatID:  ChatID(phone, c.countryCode),
		Text:    text,
	}, nil)
}

type imageFile struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

type imageMessage struct {
	Session string    `json:"session"`
	ChatID  string    `json:"chatId"`
	File    imageFile `json:"file"`
}

func (c *WAHAClient) SendImage(ctx context.Context, phone, imageURL, caption string) error {
	return c.do(ctx, "sendImage", http.MethodPost, "/api/sendImage", imageMessage{
		Session: c.session,
		ChatID:  ChatID(phone, c.countryCode),
		File:    imageFile{URL: imageURL, Caption: caption},
	}, nil)
}

// SessionStatus looks the configured session up in GET /api/sessions.
func (c *WAHAClient) SessionStatus(ctx context.Context) (Session, error) {
	var sessions []Session
	if err := c.do(ctx, "sessions", http.MethodGet, "/api/sessions", nil, &sessions); err != nil {
		return Session{}, err
	}
	for _, s := range sessions {
		if s.Name == c.session {
			return s, nil
		}
	}
	return Session{Name: c.session, Status: SessionNotFound}, nil
}

type webhookConfig struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

type sessionConfig struct {
	Webhooks []webhookConfig `json:"webhooks"`
}

type startSession struct {
	Name   string        `json:"name"`
	Config sessionConfig `json:"config"`
}

// StartSession creates the session and points its webhook at this service.
func (c *WAHAClient) StartSession(ctx context.Context) error {
	return c.do(ctx, "startSession", http.MethodPost, "/api/sessions", startSession{
		Name: c.session,
		Config: sessionConfig{Webhooks: []webhookConfig{{
			URL:    c.siteURL + WebhookPath,
			Events: []string{EventMessage, EventSessionStatus},
		}}},
	}, nil)
}
