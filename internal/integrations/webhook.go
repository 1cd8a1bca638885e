package integrations

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"bizops-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	WebhookPath        = "/webhooks/whatsapp"
	WebhookTokenHeader = "X-Webhook-Token"

	EventMessage       = "message"
	EventSessionStatus = "session.status"
)

// WebhookEvent is the envelope WAHA posts for every subscribed event.
type WebhookEvent struct {
	Event   string          `json:"event"`
	Session string          `json:"session"`
	Me      *WebhookMe      `json:"me,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

type WebhookMe struct {
	ID       string `json:"id"`
	PushName string `json:"pushName,omitempty"`
}

type messagePayload struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Body   string `json:"body"`
	FromMe bool   `json:"fromMe"`
}

type sessionPayload struct {
	Status string `json:"status"`
}

// WebhookResult says what the event was applied to. Handled is false for
// events that were accepted but matched no tenant or no handler.
type WebhookResult struct {
	Event       string `json:"event"`
	Handled     bool   `json:"handled"`
	WorkspaceID string `json:"-"`
}

func (s *Service) checkToken(token string) error {
	if s.opts.WebhookToken == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.WebhookToken)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

const previewLen = 100

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen])
}

// HandleWebhook applies one gateway event. Inbound messages are attributed
// to the tenant whose WhatsApp config owns the receiving number.
func (s *Service) HandleWebhook(ctx context.Context, token string, ev WebhookEvent) (WebhookResult, error) {
	if err := s.checkToken(token); err != nil {
		return WebhookResult{}, err
	}
	res := WebhookResult{Event: ev.Event}
	log := logger.From(ctx).With("event", ev.Event, "session", ev.Session)

	switch ev.Event {
	case EventMessage:
		var msg messagePayload
		if err := json.Unmarshal(ev.Payload, &msg); err != nil {
			return WebhookResult{}, fmt.Errorf("%w: bad message payload", ErrInvalidArgument)
		}
		if msg.FromMe {
			return res, nil
		}
		number := msg.To
		if number == "" && ev.Me != nil {
			number = ev.Me.ID
		}
		cfg, err := s.repo.FindWhatsAppConfigByPhone(ctx, onlyDigits(strings.Split(number, "@")[0]))
		if errors.Is(err, ErrConfigNotFound) {
			log.Warn("whatsapp message for unknown number", "to", number)
			return res, nil
		}
		if err != nil {
			return WebhookResult{}, err
		}
		if err := s.repo.RecordReceived(ctx, cfg.ID, s.now()); err != nil {
			return WebhookResult{}, err
		}
		s.addLog(ctx, Integration{ID: cfg.IntegrationID, WorkspaceID: cfg.WorkspaceID}, LevelInfo,
			"message received", map[string]any{"from": msg.From, "body": preview(msg.Body)})
		res.Handled, res.WorkspaceID = true, cfg.WorkspaceID
	case EventSessionStatus:
		var st sessionPayload
		_ = json.Unmarshal(ev.Payload, &st)
		log.Info("whatsapp session status", "status", st.Status)
		res.Handled = true
	default:
		log.Debug("whatsapp event ignored")
	}
	return res, nil
}

// WebhookHandler is the public endpoint WAHA calls. The shared token comes
// from the X-Webhook-Token header or the token query param.
type WebhookHandler struct {
	Service *Service
}

func (h WebhookHandler) Handle(c *gin.Context) {
	log := logger.FromGin(c)
	if h.Service == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "whatsapp webhook not configured"})
		return
	}
	token := c.GetHeader(WebhookTokenHeader)
	if token == "" {
		token = c.Query("token")
	}

	var ev WebhookEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		log.Warn("whatsapp webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	res, err := h.Service.HandleWebhook(c.Request.Context(), token, ev)
	switch {
	case errors.Is(err, ErrUnauthorized):
		log.Warn("whatsapp webhook rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	case errors.Is(err, ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Error("whatsapp webhook failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "webhook failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}
