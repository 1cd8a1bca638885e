package integrations

import (
	"errors"
	"net/http"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"
	"bizops-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
	// BulkLimit guards bulk sends, typically httpapi.RateLimitByIP. Nil
	// leaves them unlimited.
	BulkLimit gin.HandlerFunc
}

// respond maps gateway failures to 502 and leaves the rest to httpapi.Abort.
func respond(c *gin.Context, status int, v any, err error) {
	if errors.Is(err, ErrGateway) {
		_ = c.Error(err)
		logger.FromGin(c).Error("whatsapp gateway call failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "whatsapp gateway unavailable"})
		return
	}
	httpapi.Respond(c, status, v, err)
}

func (h Handlers) status(c *gin.Context, caller auth.Caller) {
	sess, err := h.Service.Status(c.Request.Context(), caller)
	respond(c, http.StatusOK, sess, err)
}

func (h Handlers) startSession(c *gin.Context, caller auth.Caller) {
	err := h.Service.StartSession(c.Request.Context(), caller)
	respond(c, http.StatusOK, gin.H{"started": true}, err)
}

func (h Handlers) send(c *gin.Context, caller auth.Caller) {
	var req SendRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	res, err := h.Service.Send(c.Request.Context(), caller, req)
	respond(c, http.StatusOK, res, err)
}

func (h Handlers) bulkSend(c *gin.Context, caller auth.Caller) {
	var req BulkRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	res, err := h.Service.BulkSend(c.Request.Context(), caller, req)
	respond(c, http.StatusOK, res, err)
}

func (h Handlers) templates(c *gin.Context, _ auth.Caller) {
	httpapi.RespondList(c, Templates(), nil)
}

func (h Handlers) listIntegrations(c *gin.Context, caller auth.Caller) {
	items, err := h.Service.ListIntegrations(c.Request.Context(), caller, Platform(c.Query("platform")))
	httpapi.RespondList(c, items, err)
}

func (h Handlers) createIntegration(c *gin.Context, caller auth.Caller) {
	var req IntegrationRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	d, err := h.Service.CreateIntegration(c.Request.Context(), caller, req)
	respond(c, http.StatusCreated, d, err)
}

func (h Handlers) getIntegration(c *gin.Context, caller auth.Caller) {
	d, err := h.Service.GetIntegration(c.Request.Context(), caller, c.Param("id"))
	respond(c, http.StatusOK, d, err)
}

func (h Handlers) updateIntegration(c *gin.Context, caller auth.Caller) {
	var req IntegrationUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	d, err := h.Service.UpdateIntegration(c.Request.Context(), caller, c.Param("id"), req)
	respond(c, http.StatusOK, d, err)
}

func (h Handlers) deleteIntegration(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteIntegration(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) testConnection(c *gin.Context, caller auth.Caller) {
	d, err := h.Service.TestConnection(c.Request.Context(), caller, c.Param("id"))
	respond(c, http.StatusOK, d, err)
}

func (h Handlers) listLogs(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListLogs(c.Request.Context(), caller, LogFilter{
		IntegrationID: c.Param("id"),
		Level:         LogLevel(c.Query("level")),
		Limit:         page.Limit,
		Offset:        page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

// Register mounts the authenticated routes. The webhook is mounted
// separately with RegisterWebhook since it carries no bearer token.
func (h Handlers) Register(g *gin.RouterGroup) {
	wa := g.Group("/whatsapp")
	wa.GET("/status", httpapi.WithCaller(h.status))
	wa.POST("/session/start", httpapi.WithCaller(h.startSession))
	wa.POST("/send", httpapi.WithCaller(h.send))
	bulk := []gin.HandlerFunc{httpapi.WithCaller(h.bulkSend)}
	if h.BulkLimit != nil {
		bulk = append([]gin.HandlerFunc{h.BulkLimit}, bulk...)
	}
	wa.POST("/bulk-send", bulk...)
	wa.GET("/templates", httpapi.WithCaller(h.templates))

	in := g.Group("/integrations")
	in.GET("", httpapi.WithCaller(h.listIntegrations))
	in.POST("", httpapi.WithCaller(h.createIntegration))
	in.GET("/:id", httpapi.WithCaller(h.getIntegration))
	in.PATCH("/:id", httpapi.WithCaller(h.updateIntegration))
	in.DELETE("/:id", httpapi.WithCaller(h.deleteIntegration))
	in.POST("/:id/test", httpapi.WithCaller(h.testConnection))
	in.GET("/:id/logs", httpapi.WithCaller(h.listLogs))
}

func RegisterWebhook(r gin.IRoutes, svc *Service) {
	r.POST(WebhookPath, WebhookHandler{Service: svc}.Handle)
}
