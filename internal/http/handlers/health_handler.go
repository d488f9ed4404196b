package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/remindbot/go-reminder-backend/internal/guard"
)

// Health reports liveness plus the state of the guarded LLM dependency: the
// circuit breaker and the current month's spend against the budget.
type Health struct {
	DB      *gorm.DB
	Breaker *guard.Breaker
	Budget  *guard.Budget
}

// Handle answers the health probe. A failed database ping yields 503; guard
// state is informational and never degrades the probe.
func (h *Health) Handle(c *gin.Context) {
	sqlDB, err := h.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnhealthy, "database unreachable")
		return
	}

	body := gin.H{"status": "ok"}
	if h.Breaker != nil {
		body["circuit"] = h.Breaker.State().String()
	}
	if h.Budget != nil {
		if ledger, err := h.Budget.Status(c.Request.Context()); err == nil {
			body["budget"] = gin.H{
				"period":     ledger.PeriodKey,
				"spent_usd":  ledger.TotalUSD,
				"budget_usd": h.Budget.MonthlyBudgetUSD,
			}
		}
	}
	c.JSON(http.StatusOK, body)
}
