package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"bizops-platform/internal/analytics"
	"bizops-platform/internal/announcements"
	"bizops-platform/internal/app"
	"bizops-platform/internal/auth"
	"bizops-platform/internal/automation"
	"bizops-platform/internal/config"
	"bizops-platform/internal/directory"
	"bizops-platform/internal/feedback"
	"bizops-platform/internal/httpapi"
	"bizops-platform/internal/integrations"
	"bizops-platform/internal/marketing"
	"bizops-platform/internal/notifications"
	"bizops-platform/internal/rbac"
	"bizops-platform/internal/settings"
	"bizops-platform/internal/support"
	"bizops-platform/internal/telecalling"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type limiters struct {
	publicFeedback httpapi.Allower
	bulkWhatsApp   httpapi.Allower
}

func newLimiters(rdb *redis.Client) limiters {
	return limiters{
		publicFeedback: httpapi.RedisWindow{RDB: rdb, Limit: 10, Window: time.Minute},
		bulkWhatsApp:   httpapi.RedisWindow{RDB: rdb, Limit: 5, Window: time.Second},
	}
}

type routeDeps struct {
	cfg      config.Config
	svcs     *app.Services
	auth     *auth.Manager
	db       *sql.DB
	limiters limiters
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	s := d.svcs

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "db": "unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks and public forms (no bearer token).
	integrations.RegisterWebhook(r, s.Integrations)
	pub := r.Group("/v1")
	feedback.Handlers{Service: s.Feedback}.RegisterPublic(pub,
		httpapi.RateLimitByIP(d.limiters.publicFeedback, "feedback"))

	dir := directory.Handlers{Service: s.Directory, Auth: d.auth, AllowDevLogin: !d.cfg.IsProduction()}
	pub.POST("/auth/token", dir.IssueToken)
	pub.POST("/auth/refresh", dir.Refresh)

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(d.auth))
	v1.Use(rbac.RequireWorkspace())

	tenantAdmins := rbac.RequireAnyRole(rbac.RoleBusinessAdmin, rbac.RoleManager)
	businessAdmin := rbac.RequireAnyRole(rbac.RoleBusinessAdmin)

	dir.Register(v1, businessAdmin)
	notifications.Handlers{Service: s.Notifications}.Register(v1, businessAdmin)
	support.Handlers{Service: s.Support}.Register(v1)
	telecalling.Handlers{Service: s.Telecalling}.Register(v1,
		rbac.RequireAnyRole(rbac.RoleBusinessAdmin, rbac.RoleManager, rbac.RoleTeleCalling, rbac.RoleInhouseSales),
		tenantAdmins)
	feedback.Handlers{Service: s.Feedback}.Register(v1, tenantAdmins)
	announcements.Handlers{Service: s.Announcements}.Register(v1)
	marketing.Handlers{Service: s.Marketing}.Register(v1,
		rbac.RequireAnyRole(rbac.RoleBusinessAdmin, rbac.RoleManager, rbac.RoleMarketing))
	settings.Handlers{Service: s.Settings}.Register(v1)
	analytics.Handlers{Service: s.Analytics}.Register(v1)
	automation.Handlers{Service: s.Automation}.Register(v1)
	integrations.Handlers{
		Service:   s.Integrations,
		BulkLimit: httpapi.RateLimitByWorkspace(d.limiters.bulkWhatsApp, "whatsapp-bulk"),
	}.Register(v1)
}
