package analytics

import (
	"errors"
	"net/http"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Service *Service
}

// timeQuery accepts RFC 3339 timestamps or plain dates.
func timeQuery(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, true
		}
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": key + " must be a date or RFC 3339 timestamp"})
	return nil, false
}

func (h Handlers) track(c *gin.Context, caller auth.Caller) {
	var req TrackRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	req.IPAddress = httpapi.ClientIPFromContext(c.Request.Context())
	if req.IPAddress == "" {
		req.IPAddress = c.ClientIP()
	}
	req.UserAgent = c.Request.UserAgent()
	e, err := h.Service.Track(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, e, err)
}

func (h Handlers) listEvents(c *gin.Context, caller auth.Caller) {
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListEvents(c.Request.Context(), caller, EventFilter{
		EventType: EventType(c.Query("event_type")),
		UserID:    c.Query("user_id"),
		SessionID: c.Query("session_id"),
		From:      from,
		To:        to,
		Limit:     page.Limit,
		Offset:    page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) summary(c *gin.Context, caller auth.Caller) {
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}
	r := TimeRange{}
	if to != nil {
		r.To = *to
	} else {
		r.To = time.Now().UTC()
	}
	if from != nil {
		r.From = *from
	} else {
		r.From = r.To.AddDate(0, 0, -defaultReportDays)
	}
	sum, err := h.Service.Summary(c.Request.Context(), caller, r)
	httpapi.Respond(c, http.StatusOK, sum, err)
}

func (h Handlers) dashboardStats(c *gin.Context, caller auth.Caller) {
	st, err := h.Service.DashboardStats(c.Request.Context(), caller)
	if err != nil && !isClientError(err) {
		httpapi.AbortWithMessage(c, err, "failed to load dashboard statistics")
		return
	}
	httpapi.Respond(c, http.StatusOK, st, err)
}

func isClientError(err error) bool {
	return errors.Is(err, ErrForbidden) || errors.Is(err, ErrInvalidArgument)
}

func (h Handlers) recordMetric(c *gin.Context, caller auth.Caller) {
	var req MetricRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	m, err := h.Service.RecordMetric(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusOK, m, err)
}

func (h Handlers) listMetrics(c *gin.Context, caller auth.Caller) {
	from, ok := timeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := timeQuery(c, "to")
	if !ok {
		return
	}
	f := MetricFilter{Period: Period(c.Query("period")), From: from, To: to}
	if t := c.Query("metric_type"); t != "" {
		f.MetricTypes = []MetricType{MetricType(t)}
	}
	page := httpapi.PageFrom(c)
	f.Limit, f.Offset = page.Limit, page.Offset
	items, err := h.Service.ListMetrics(c.Request.Context(), caller, f)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) listWidgets(c *gin.Context, caller auth.Caller) {
	items, err := h.Service.ListWidgets(c.Request.Context(), caller)
	httpapi.RespondList(c, items, err)
}

func (h Handlers) createWidget(c *gin.Context, caller auth.Caller) {
	var req WidgetRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	w, err := h.Service.CreateWidget(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, w, err)
}

func (h Handlers) getWidget(c *gin.Context, caller auth.Caller) {
	w, err := h.Service.GetWidget(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, w, err)
}

func (h Handlers) updateWidget(c *gin.Context, caller auth.Caller) {
	var req WidgetUpdate
	if !httpapi.BindJSON(c, &req) {
		return
	}
	w, err := h.Service.UpdateWidget(c.Request.Context(), caller, c.Param("id"), req)
	httpapi.Respond(c, http.StatusOK, w, err)
}

func (h Handlers) deleteWidget(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteWidget(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h Handlers) listReports(c *gin.Context, caller auth.Caller) {
	page := httpapi.PageFrom(c)
	items, err := h.Service.ListReports(c.Request.Context(), caller, ReportFilter{
		ReportType: ReportType(c.Query("report_type")),
		Status:     ReportStatus(c.Query("status")),
		Limit:      page.Limit,
		Offset:     page.Offset,
	})
	httpapi.RespondList(c, items, err)
}

func (h Handlers) createReport(c *gin.Context, caller auth.Caller) {
	var req ReportRequest
	if !httpapi.BindJSON(c, &req) {
		return
	}
	r, err := h.Service.CreateReport(c.Request.Context(), caller, req)
	httpapi.Respond(c, http.StatusCreated, r, err)
}

func (h Handlers) getReport(c *gin.Context, caller auth.Caller) {
	r, err := h.Service.GetReport(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, r, err)
}

func (h Handlers) generateReport(c *gin.Context, caller auth.Caller) {
	r, err := h.Service.Generate(c.Request.Context(), caller, c.Param("id"))
	httpapi.Respond(c, http.StatusOK, r, err)
}

func (h Handlers) downloadReport(c *gin.Context, caller auth.Caller) {
	r, err := h.Service.Download(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+r.ID+"."+string(r.Format)+`"`)
	c.Data(http.StatusOK, r.ContentType(), r.Content)
}

func (h Handlers) deleteReport(c *gin.Context, caller auth.Caller) {
	if err := h.Service.DeleteReport(c.Request.Context(), caller, c.Param("id")); err != nil {
		httpapi.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Register mounts /analytics. Tracking and widgets are open to every tenant
// member; the service restricts the rest to tenant admins.
func (h Handlers) Register(g *gin.RouterGroup) {
	a := g.Group("/analytics")
	a.POST("/track", httpapi.WithCaller(h.track))
	a.GET("/events", httpapi.WithCaller(h.listEvents))
	a.GET("/summary", httpapi.WithCaller(h.summary))
	a.GET("/dashboard-stats", httpapi.WithCaller(h.dashboardStats))

	a.GET("/metrics", httpapi.WithCaller(h.listMetrics))
	a.POST("/metrics", httpapi.WithCaller(h.recordMetric))

	a.GET("/widgets", httpapi.WithCaller(h.listWidgets))
	a.POST("/widgets", httpapi.WithCaller(h.createWidget))
	a.GET("/widgets/:id", httpapi.WithCaller(h.getWidget))
	a.PATCH("/widgets/:id", httpapi.WithCaller(h.updateWidget))
	a.DELETE("/widgets/:id", httpapi.WithCaller(h.deleteWidget))

	a.GET("/reports", httpapi.WithCaller(h.listReports))
	a.POST("/reports", httpapi.WithCaller(h.createReport))
	a.GET("/reports/:id", httpapi.WithCaller(h.getReport))
	a.POST("/reports/:id/generate", httpapi.WithCaller(h.generateReport))
	a.GET("/reports/:id/download", httpapi.WithCaller(h.downloadReport))
	a.DELETE("/reports/:id", httpapi.WithCaller(h.deleteReport))
}
