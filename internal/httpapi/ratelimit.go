package httpapi

import (
	"context"
	"net/http"
	"time"

	"bizops-platform/internal/auth"
	"bizops-platform/pkg/logger"
	"bizops-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Allower decides whether one more call for key fits the current window.
type Allower interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisWindow is a fixed-window Allower backed by utils.AllowRate.
type RedisWindow struct {
	RDB    *redis.Client
	Limit  int
	Window time.Duration
}

func (w RedisWindow) Allow(ctx context.Context, key string) (bool, error) {
	return utils.AllowRate(ctx, w.RDB, key, w.Limit, w.Window)
}

// RateLimitByIP rejects callers over the limit with 429. A nil allower or a
// limiter error lets the request through.
func RateLimitByIP(a Allower, prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			c.Next()
			return
		}
		ok, err := a.Allow(c.Request.Context(), "rl:"+prefix+":"+c.ClientIP())
		if err != nil {
			logger.FromGin(c).Warn("rate limiter unavailable", "prefix", prefix, "err", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

// RateLimitByWorkspace is RateLimitByIP keyed on the caller's workspace. It
// must run after the auth middleware; anonymous calls fall back to the IP.
func RateLimitByWorkspace(a Allower, prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			c.Next()
			return
		}
		key := c.ClientIP()
		if ws, err := auth.WorkspaceID(c.Request.Context()); err == nil && ws != "" {
			key = "ws:" + ws
		}
		ok, err := a.Allow(c.Request.Context(), "rl:"+prefix+":"+key)
		if err != nil {
			logger.FromGin(c).Warn("rate limiter unavailable", "prefix", prefix, "err", err)
			c.Next()
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
