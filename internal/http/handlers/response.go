// Package handlers provides the HTTP handlers of the reminder backend: the
// Telegram webhook endpoint and the health probe.
//
// This file defines the shared response utilities. All error responses use the
// ErrorResponse envelope with a stable machine-readable code; 5xx responses are
// logged with request context.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/remindbot/go-reminder-backend/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code"`
	// Human-readable message
	Message string `json:"message"`
}

// fail aborts the request with a structured error and logs server-side errors.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail(), used by router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ack acknowledges a webhook delivery. Telegram redelivers on any non-2xx, so
// every drop decision (stale, duplicate, non-message update) still acks.
func ack(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
