package marketing

import (
	"net/http"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
}

func boolQuery(c *gin.Context, key string) *bool {
	switch c.Query(key) {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	}
	return nil
}

func (h Handlers) ListCampaigns(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListCampaigns(c.Request.Context(), caller, CampaignListFilter{
		Status:       CampaignStatus(c.Query("status")),
		CampaignType: CampaignType(c.Query("campaign_type")),
		Search:       c.Query("search"),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) CreateCampaign(c *gin.Context, caller auth.Caller) {
	var req CampaignRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.CreateCampaign(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, v, err)
}

func (h Handlers) GetCampaign(c *gin.Context, caller auth.Caller) {
	v, err := h.Service.GetCampaign(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) UpdateCampaign(c *gin.Context, caller auth.Caller) {
	var req CampaignUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.UpdateCampaign(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) DeleteCampaign(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteCampaign(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) RecordAnalytics(c *gin.Context, caller auth.Caller) {
	var req AnalyticsRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.RecordAnalytics(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, v, err)
}

func dateQuery(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return t, true
}

func (h Handlers) CampaignAnalytics(c *gin.Context, caller auth.Caller) {
	from, ok := dateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to")
	if !ok {
		return
	}
	items, err := h.Service.CampaignAnalytics(c.Request.Context(), caller, c.Param("id"), from, to)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) ListTemplates(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListTemplates(c.Request.Context(), caller, TemplateFilter{
		TemplateType: TemplateType(c.Query("template_type")),
		Category:     TemplateCategory(c.Query("category")),
		Approved:     boolQuery(c, "is_approved"),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) CreateTemplate(c *gin.Context, caller auth.Caller) {
	var req TemplateRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.CreateTemplate(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, v, err)
}

func (h Handlers) GetTemplate(c *gin.Context, caller auth.Caller) {
	v, err := h.Service.GetTemplate(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) UpdateTemplate(c *gin.Context, caller auth.Caller) {
	var req TemplateUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.UpdateTemplate(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) ApproveTemplate(c *gin.Context, caller auth.Caller) {
	v, err := h.Service.ApproveTemplate(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) DeleteTemplate(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteTemplate(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListPlatforms(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListPlatforms(c.Request.Context(), caller, PlatformFilter{
		PlatformType: PlatformType(c.Query("platform_type")),
		Status:       PlatformStatus(c.Query("status")),
		Limit:        page.Limit,
		Offset:       page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) CreatePlatform(c *gin.Context, caller auth.Caller) {
	var req PlatformRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.CreatePlatform(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, v, err)
}

func (h Handlers) GetPlatform(c *gin.Context, caller auth.Caller) {
	v, err := h.Service.GetPlatform(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) UpdatePlatform(c *gin.Context, caller auth.Caller) {
	var req PlatformUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.UpdatePlatform(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) DeletePlatform(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeletePlatform(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListSegments(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListSegments(c.Request.Context(), caller, page.Limit, page.Offset)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) CreateSegment(c *gin.Context, caller auth.Caller) {
	var req SegmentRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.CreateSegment(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, v, err)
}

func (h Handlers) GetSegment(c *gin.Context, caller auth.Caller) {
	v, err := h.Service.GetSegment(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) UpdateSegment(c *gin.Context, caller auth.Caller) {
	var req SegmentRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	v, err := h.Service.UpdateSegment(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) DeleteSegment(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteSegment(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) Events(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.Events(c.Request.Context(), caller, EventType(c.Query("event_type")), c.Query("campaign_id"), page.Limit, page.Offset)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) Dashboard(c *gin.Context, caller auth.Caller) {
	v, err := h.Service.Dashboard(c.Request.Context(), caller)
	if err != nil {
		httpapi.AbortWithMessage(c, err, "Failed to fetch marketing dashboard")
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h Handlers) CampaignMetrics(c *gin.Context, caller auth.Caller) {
	items, err := h.Service.CampaignMetrics(c.Request.Context(), caller)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) SegmentOverview(c *gin.Context, caller auth.Caller) {
	items, err := h.Service.SegmentOverview(c.Request.Context(), caller)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) EcommerceSummary(c *gin.Context, caller auth.Caller) {
	v, err := h.Service.EcommerceSummary(c.Request.Context(), caller)
	httpapi.Respond(c, http.StatusOK, v, err)
}

func (h Handlers) WhatsAppMetrics(c *gin.Context, caller auth.Caller) {
	v, err := h.Service.WhatsAppMetrics(c.Request.Context(), caller)
	httpapi.Respond(c, http.StatusOK, v, err)
}

// Register mounts /marketing. writers gates every mutating route.
func (h Handlers) Register(g *gin.RouterGroup, writers gin.HandlerFunc) {
	m := g.Group("/marketing")
	m.GET("/dashboard", httpapi.WithCaller(h.Dashboard))
	m.GET("/campaign-metrics", httpapi.WithCaller(h.CampaignMetrics))
	m.GET("/segment-overview", httpapi.WithCaller(h.SegmentOverview))
	m.GET("/ecommerce-summary", httpapi.WithCaller(h.EcommerceSummary))
	m.GET("/whatsapp-metrics", httpapi.WithCaller(h.WhatsAppMetrics))
	m.GET("/events", httpapi.WithCaller(h.Events))

	cg := m.Group("/campaigns")
	cg.GET("", httpapi.WithCaller(h.ListCampaigns))
	cg.POST("", writers, httpapi.WithCaller(h.CreateCampaign))
	cg.GET("/:id", httpapi.WithCaller(h.GetCampaign))
	cg.PATCH("/:id", writers, httpapi.WithCaller(h.UpdateCampaign))
	cg.DELETE("/:id", writers, httpapi.WithCaller(h.DeleteCampaign))
	cg.GET("/:id/analytics", httpapi.WithCaller(h.CampaignAnalytics))
	cg.POST("/:id/analytics", writers, httpapi.WithCaller(h.RecordAnalytics))

	tg := m.Group("/templates")
	tg.GET("", httpapi.WithCaller(h.ListTemplates))
	tg.POST("", writers, httpapi.WithCaller(h.CreateTemplate))
	tg.GET("/:id", httpapi.WithCaller(h.GetTemplate))
	tg.PATCH("/:id", writers, httpapi.WithCaller(h.UpdateTemplate))
	tg.DELETE("/:id", writers, httpapi.WithCaller(h.DeleteTemplate))
	tg.POST("/:id/approve", writers, httpapi.WithCaller(h.ApproveTemplate))

	pg := m.Group("/platforms")
	pg.GET("", httpapi.WithCaller(h.ListPlatforms))
	pg.POST("", writers, httpapi.WithCaller(h.CreatePlatform))
	pg.GET("/:id", httpapi.WithCaller(h.GetPlatform))
	pg.PATCH("/:id", writers, httpapi.WithCaller(h.UpdatePlatform))
	pg.DELETE("/:id", writers, httpapi.WithCaller(h.DeletePlatform))

	sg := m.Group("/segments")
	sg.GET("", httpapi.WithCaller(h.ListSegments))
	sg.POST("", writers, httpapi.WithCaller(h.CreateSegment))
	sg.GET("/:id", httpapi.WithCaller(h.GetSegment))
	sg.PUT("/:id", writers, httpapi.WithCaller(h.UpdateSegment))
	sg.DELETE("/:id", writers, httpapi.WithCaller(h.DeleteSegment))
}
