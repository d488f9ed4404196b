package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/remindbot/go-reminder-backend/internal/http/middleware"
	"github.com/remindbot/go-reminder-backend/internal/repo"
	"github.com/remindbot/go-reminder-backend/internal/services"
)

// secretTokenHeader carries the shared secret Telegram echoes back on every
// webhook delivery when the webhook was registered with one.
const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// webhookUpdates counts webhook deliveries by outcome.
var webhookUpdates = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_updates_total",
		Help: "Total number of webhook updates by outcome.",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(webhookUpdates)
}

// Webhook handles inbound Telegram updates. Every accepted delivery is
// acknowledged with 200 regardless of how message handling went; Telegram
// redelivers on non-2xx and redelivery of a handled update must not rerun
// the pipeline.
type Webhook struct {
	DB       *gorm.DB
	Pipeline *services.Pipeline
	Sender   services.MessageSender

	Secret       string        // expected secret header value; empty disables the check
	MaxUpdateAge time.Duration // deliveries older than this are acked and dropped
	DedupTTL     time.Duration // recency horizon of the update-id dedup guard

	Now func() time.Time
}

func (h *Webhook) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Handle processes one webhook delivery.
func (h *Webhook) Handle(c *gin.Context) {
	if h.Secret != "" && c.GetHeader(secretTokenHeader) != h.Secret {
		webhookUpdates.WithLabelValues("unauthorized").Inc()
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "bad secret token")
		return
	}

	var upd tgbotapi.Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		webhookUpdates.WithLabelValues("malformed").Inc()
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed update payload")
		return
	}

	lg := middleware.LoggerFrom(c)

	// Edited messages, callbacks, and other non-text updates are acked
	// without touching the dedup store.
	msg := upd.Message
	if msg == nil || msg.Chat == nil || strings.TrimSpace(msg.Text) == "" {
		webhookUpdates.WithLabelValues("ignored").Inc()
		ack(c)
		return
	}

	if h.MaxUpdateAge > 0 && h.now().Sub(msg.Time()) > h.MaxUpdateAge {
		webhookUpdates.WithLabelValues("stale").Inc()
		lg.Warn().
			Int("update_id", upd.UpdateID).
			Time("message_time", msg.Time()).
			Msg("stale update dropped")
		ack(c)
		return
	}

	ctx := c.Request.Context()
	if err := repo.AdmitUpdate(ctx, h.DB, int64(upd.UpdateID), h.DedupTTL); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			webhookUpdates.WithLabelValues("duplicate").Inc()
			lg.Debug().Int("update_id", upd.UpdateID).Msg("duplicate update acked")
			ack(c)
			return
		}
		// A 5xx makes Telegram retry the delivery once the store recovers.
		webhookUpdates.WithLabelValues("error").Inc()
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "dedup store unavailable")
		return
	}

	reply := h.Pipeline.HandleMessage(ctx, msg.Chat.ID, msg.Text)
	if reply != "" {
		if err := h.Sender.SendMessage(ctx, msg.Chat.ID, reply); err != nil {
			// The update stays consumed; acking prevents a redelivery loop.
			lg.Error().
				Err(err).
				Int64("chat_id", msg.Chat.ID).
				Msg("reply delivery failed")
		}
	}

	webhookUpdates.WithLabelValues("processed").Inc()
	ack(c)
}
