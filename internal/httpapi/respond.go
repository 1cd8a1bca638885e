// Package httpapi holds the helpers every module's gin handlers share:
// caller extraction, error-to-status mapping, paging and request validation.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"bizops-platform/internal/apperr"
	"bizops-platform/internal/auth"
	"bizops-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

// Page is the limit/offset window parsed from query params.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// Apply slices an in-memory result set to the page window.
func Apply[T any](p Page, rows []T) []T {
	if p.Offset >= len(rows) {
		return []T{}
	}
	end := p.Offset + p.Limit
	if p.Limit <= 0 || end > len(rows) {
		end = len(rows)
	}
	return rows[p.Offset:end]
}

// PageFrom reads ?limit=&offset= with defaults and caps.
func PageFrom(c *gin.Context) Page {
	p := Page{Limit: DefaultLimit}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 {
		p.Limit = v
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v > 0 {
		p.Offset = v
	}
	return p
}

// Caller returns the authenticated identity or aborts with 401.
func Caller(c *gin.Context) (auth.Caller, bool) {
	caller, err := auth.CallerFrom(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return auth.Caller{}, false
	}
	return caller, true
}

// BindJSON binds and validates the body, aborting with 400 on failure.
func BindJSON(c *gin.Context, dst any) bool {
	RegisterValidators()
	if err := c.ShouldBindJSON(dst); err != nil {
		msg := "invalid json"
		var verr validationErrors
		if errors.As(err, &verr) {
			msg = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
		return false
	}
	return true
}

// Abort maps domain errors onto HTTP status codes.
func Abort(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// Respond writes v with status, or maps err through Abort.
func Respond(c *gin.Context, status int, v any, err error) {
	if err != nil {
		Abort(c, err)
		return
	}
	c.JSON(status, v)
}

// RespondList wraps items as {"results": [...]}; a nil slice encodes as [].
func RespondList[T any](c *gin.Context, items []T, err error) {
	if err != nil {
		Abort(c, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

// WithCaller adapts a handler that needs the authenticated identity.
func WithCaller(fn func(*gin.Context, auth.Caller)) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, ok := Caller(c)
		if !ok {
			return
		}
		fn(c, caller)
	}
}

// AbortWithMessage logs err and answers 500 with a fixed message.
// Used by statistics endpoints that must not leak internals.
func AbortWithMessage(c *gin.Context, err error, msg string) {
	_ = c.Error(err)
	logger.FromGin(c).Error(msg, "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": msg})
}

// NotConfigured answers 500 when a handler's dependency was not wired.
func NotConfigured(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": what + " not configured"})
}
