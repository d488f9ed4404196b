// Package guard implements the protective layers wrapped around LLM
// invocation. This file provides the monthly spend budget.
package guard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/remindbot/go-reminder-backend/internal/domain"
	"github.com/remindbot/go-reminder-backend/internal/repo"
)

// BudgetAlert reports a spend threshold crossed for the first time in the
// current period. The command layer turns it into an operator notification.
type BudgetAlert struct {
	Threshold int // 50, 80, or 100 (percent of the monthly budget)
	SpentUSD  float64
	BudgetUSD float64
	Period    string
}

func (a BudgetAlert) String() string {
	return fmt.Sprintf("budget %d%% reached for %s: $%.2f / $%.2f",
		a.Threshold, a.Period, a.SpentUSD, a.BudgetUSD)
}

// Budget enforces a hard monthly USD cap on estimated LLM spend, keyed by
// calendar month. Spend accumulates in the cost_ledger table; threshold
// alerts at 50, 80, and 100 percent fire at most once per period.
//
// Now is injectable for tests and defaults to time.Now.
type Budget struct {
	DB *gorm.DB

	MonthlyBudgetUSD float64
	InputCostPer1K   float64
	OutputCostPer1K  float64

	Now func() time.Time

	mu sync.Mutex
}

// EstimateUSD converts a token count pair to estimated dollars using the
// configured per-1K prices.
func (b *Budget) EstimateUSD(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)/1000*b.InputCostPer1K +
		float64(outputTokens)/1000*b.OutputCostPer1K
}

func (b *Budget) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// CanSpend checks whether a call with the given estimated cost fits the
// current period's remaining budget. On rejection it returns
// ErrBudgetExceeded and records nothing: the call never happens, so the
// ledger stays untouched.
func (b *Budget) CanSpend(ctx context.Context, estimateUSD float64) error {
	if b.MonthlyBudgetUSD <= 0 {
		return nil
	}
	period := repo.PeriodKey(b.now())
	ledger, err := repo.GetLedger(ctx, b.DB, period)
	if err != nil {
		return err
	}
	if ledger.TotalUSD+estimateUSD > b.MonthlyBudgetUSD {
		return fmt.Errorf("%w: $%.2f spent of $%.2f in %s",
			ErrBudgetExceeded, ledger.TotalUSD, b.MonthlyBudgetUSD, period)
	}
	return nil
}

// Record accumulates the actual token usage of a completed call onto the
// period's ledger and returns any budget thresholds crossed for the first
// time, in ascending order.
func (b *Budget) Record(ctx context.Context, inputTokens, outputTokens int64) ([]BudgetAlert, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	period := repo.PeriodKey(b.now())
	usd := b.EstimateUSD(inputTokens, outputTokens)

	ledger, err := repo.AddSpend(ctx, b.DB, period, inputTokens+outputTokens, usd)
	if err != nil {
		return nil, err
	}
	if b.MonthlyBudgetUSD <= 0 {
		return nil, nil
	}

	var alerts []BudgetAlert
	for _, th := range []struct {
		pct   int
		fired bool
	}{
		{50, ledger.Alerted50},
		{80, ledger.Alerted80},
		{100, ledger.Alerted100},
	} {
		if th.fired || ledger.TotalUSD < b.MonthlyBudgetUSD*float64(th.pct)/100 {
			continue
		}
		if err := repo.MarkAlerted(ctx, b.DB, period, th.pct); err != nil {
			return alerts, err
		}
		alerts = append(alerts, BudgetAlert{
			Threshold: th.pct,
			SpentUSD:  ledger.TotalUSD,
			BudgetUSD: b.MonthlyBudgetUSD,
			Period:    period,
		})
	}
	return alerts, nil
}

// Status returns the period key and spend snapshot for health reporting.
func (b *Budget) Status(ctx context.Context) (*domain.CostLedger, error) {
	return repo.GetLedger(ctx, b.DB, repo.PeriodKey(b.now()))
}
