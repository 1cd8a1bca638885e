package settings

import (
	"encoding/json"
	"net/http"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
}

func (h Handlers) listSettings(c *gin.Context, caller auth.Caller) {
	items, err := h.Service.ListSettings(c.Request.Context(), caller)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) getSetting(c *gin.Context, caller auth.Caller) {
	s, err := h.Service.GetSetting(c.Request.Context(), caller, c.Param("key"))
	httpapi.Respond(c, http.StatusOK, s, err)
}

func (h Handlers) putSetting(c *gin.Context, caller auth.Caller) {
	var req struct {
		Value json.RawMessage `json:"value" binding:"required"`
	}
	if !httpapi.BindJSON(c, &req) {
		return
	}
	s, err := h.Service.PutSetting(c.Request.Context(), caller, c.Param("key"), req.Value)
	httpapi.Respond(c, http.StatusOK, s, err)
}

func (h Handlers) deleteSetting(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteSetting(c.Request.Context(), caller, c.Param("key")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) listTags(c *gin.Context, caller auth.Caller) {
	items, err := h.Service.ListTags(c.Request.Context(), caller, TagFilter{
		Category:   c.Query("category"),
		ActiveOnly: c.Query("active") == "true",
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) createTag(c *gin.Context, caller auth.Caller) {
	var req TagRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	t, err := h.Service.CreateTag(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, t, err)
}

func (h Handlers) getTag(c *gin.Context, caller auth.Caller) {
	t, err := h.Service.GetTag(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, t, err)
}

func (h Handlers) updateTag(c *gin.Context, caller auth.Caller) {
	var req TagUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	t, err := h.Service.UpdateTag(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, t, err)
}

func (h Handlers) deleteTag(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteTag(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) listTemplates(c *gin.Context, caller auth.Caller) {
	items, err := h.Service.ListTemplates(c.Request.Context(), caller, TemplateFilter{
		Channel:    Channel(c.Query("channel")),
		Event:      c.Query("event"),
		ActiveOnly: c.Query("active") == "true",
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) createTemplate(c *gin.Context, caller auth.Caller) {
	var req TemplateRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	t, err := h.Service.CreateTemplate(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, t, err)
}

func (h Handlers) getTemplate(c *gin.Context, caller auth.Caller) {
	t, err := h.Service.GetTemplate(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, t, err)
}

func (h Handlers) updateTemplate(c *gin.Context, caller auth.Caller) {
	var req TemplateUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	t, err := h.Service.UpdateTemplate(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, t, err)
}

func (h Handlers) deleteTemplate(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteTemplate(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) renderTemplate(c *gin.Context, caller auth.Caller) {
	var req struct {
		Variables map[string]string `json:"variables"`
	}
	if !httpapi.BindJSON(c, &req) {
		return
	}
	out, err := h.Service.RenderTemplate(c.Request.Context(), caller, c.Param("id"), req.Variables)
	httpapi.Respond(c, http.StatusOK, gin.H{"rendered": out}, err)
}

func (h Handlers) getBranding(c *gin.Context, caller auth.Caller) {
	b, err := h.Service.Branding(c.Request.Context(), caller)
	httpapi.Respond(c, http.StatusOK, b, err)
}

func (h Handlers) updateBranding(c *gin.Context, caller auth.Caller) {
	var req BrandingUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	b, err := h.Service.UpdateBranding(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusOK, b, err)
}

func (h Handlers) getLegal(c *gin.Context, caller auth.Caller) {
	l, err := h.Service.Legal(c.Request.Context(), caller)
	httpapi.Respond(c, http.StatusOK, l, err)
}

func (h Handlers) updateLegal(c *gin.Context, caller auth.Caller) {
	var req LegalUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	l, err := h.Service.UpdateLegal(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusOK, l, err)
}

// Register mounts /settings. Write permissions are enforced by the service.
func (h Handlers) Register(g *gin.RouterGroup) {
	s := g.Group("/settings")

	s.GET("/business", httpapi.WithCaller(h.listSettings))
	s.GET("/business/:key", httpapi.WithCaller(h.getSetting))
	s.PUT("/business/:key", httpapi.WithCaller(h.putSetting))
	s.DELETE("/business/:key", httpapi.WithCaller(h.deleteSetting))

	s.GET("/tags", httpapi.WithCaller(h.listTags))
	s.POST("/tags", httpapi.WithCaller(h.createTag))
	s.GET("/tags/:id", httpapi.WithCaller(h.getTag))
	s.PATCH("/tags/:id", httpapi.WithCaller(h.updateTag))
	s.DELETE("/tags/:id", httpapi.WithCaller(h.deleteTag))

	s.GET("/notification-templates", httpapi.WithCaller(h.listTemplates))
	s.POST("/notification-templates", httpapi.WithCaller(h.createTemplate))
	s.GET("/notification-templates/:id", httpapi.WithCaller(h.getTemplate))
	s.PATCH("/notification-templates/:id", httpapi.WithCaller(h.updateTemplate))
	s.DELETE("/notification-templates/:id", httpapi.WithCaller(h.deleteTemplate))
	s.POST("/notification-templates/:id/render", httpapi.WithCaller(h.renderTemplate))

	s.GET("/branding", httpapi.WithCaller(h.getBranding))
	s.PUT("/branding", httpapi.WithCaller(h.updateBranding))
	s.GET("/legal", httpapi.WithCaller(h.getLegal))
	s.PUT("/legal", httpapi.WithCaller(h.updateLegal))
}
