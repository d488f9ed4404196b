// Package httpapi wires the HTTP transport (Gin) to the webhook pipeline,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, and metrics.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/remindbot/go-reminder-backend/internal/config"
	"github.com/remindbot/go-reminder-backend/internal/guard"
	"github.com/remindbot/go-reminder-backend/internal/http/handlers"
	"github.com/remindbot/go-reminder-backend/internal/http/middleware"
	"github.com/remindbot/go-reminder-backend/internal/services"
)

// Dependencies carries the externally constructed collaborators of the HTTP
// surface. The command builder and sender are interfaces so tests can inject
// fakes; the guards are shared with the builder and reported by /health.
type Dependencies struct {
	Builder services.CommandBuilder
	Sender  services.MessageSender
	Breaker *guard.Breaker
	Budget  *guard.Budget
}

// RegisterRoutes attaches all middleware and endpoints to the given Gin
// engine: the Telegram webhook route, the health probe, and /metrics.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
func RegisterRoutes(r *gin.Engine, db *gorm.DB, loc *time.Location, deps Dependencies, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Dependency injection: pipeline ← services ← db
	reminders := &services.ReminderService{
		DB:  db,
		Loc: loc,
		Log: log.With().Str("component", "reminders").Logger(),
	}
	pipeline := &services.Pipeline{
		Builder:     deps.Builder,
		Reminders:   reminders,
		Sender:      deps.Sender,
		AdminChatID: cfg.AdminChatID,
		Loc:         loc,
		Log:         log.With().Str("component", "pipeline").Logger(),
	}

	health := &handlers.Health{DB: db, Breaker: deps.Breaker, Budget: deps.Budget}
	r.GET("/health", health.Handle)

	webhook := &handlers.Webhook{
		DB:           db,
		Pipeline:     pipeline,
		Sender:       deps.Sender,
		Secret:       cfg.Webhook.Secret,
		MaxUpdateAge: cfg.Webhook.MaxUpdateAge,
		DedupTTL:     cfg.Webhook.DedupTTL,
	}
	r.POST(cfg.Webhook.Path, webhook.Handle)
}

// limitBody caps the request body size for all endpoints using
// http.MaxBytesReader. Requests exceeding the cap error on body read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
