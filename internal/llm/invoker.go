// Package llm talks to the upstream model API. This file implements the
// guarded invocation pipeline: per-chat rate limit, circuit breaker, budget
// check, bounded retry, then schema-validated command decoding.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/remindbot/go-reminder-backend/internal/command"
	"github.com/remindbot/go-reminder-backend/internal/guard"
)

// llmCalls counts completed upstream invocations by outcome. Calls rejected
// by a guard never reach the upstream and are not counted here.
var llmCalls = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "llm_calls_total",
		Help: "Total number of upstream LLM invocations by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(llmCalls)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrUpstreamRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUpstreamTransient):
		return "transient"
	default:
		return "permanent"
	}
}

// DefaultEstimatedCallCostUSD is the pre-call spend estimate used for the
// budget check when no better number is known.
const DefaultEstimatedCallCostUSD = 0.001

// Invoker runs one guarded model invocation per incoming chat message.
//
// Guard order is fixed: the chat rate limit runs first (cheapest, protects
// everything behind it), then the circuit breaker, then the budget check.
// Only a call that passes all three reaches the upstream. Transient and
// rate-limited upstream failures feed the breaker; permanent failures (bad
// credentials, malformed payloads) propagate without counting toward the
// streak. Successful calls record actual spend.
type Invoker struct {
	Client  Client
	Limiter *guard.ChatLimiter
	Breaker *guard.Breaker
	Budget  *guard.Budget

	// MaxAttempts bounds the total tries for transient failures; values
	// below 1 are coerced to 1. Rate-limited and permanent failures are
	// never retried.
	MaxAttempts int
	InitialWait time.Duration

	EstimatedCallCostUSD float64

	Log zerolog.Logger
}

func (inv *Invoker) estimate() float64 {
	if inv.EstimatedCallCostUSD > 0 {
		return inv.EstimatedCallCostUSD
	}
	return DefaultEstimatedCallCostUSD
}

// BuildCommand turns a raw chat message into a validated command. It returns
// any budget alerts crossed by the call's recorded spend; the caller
// forwards them to the operator chat.
//
// Error classes the caller must handle: guard.ErrRateLimited,
// guard.ErrCircuitOpen, guard.ErrBudgetExceeded, *command.ValidationError,
// and the upstream taxonomy of this package.
func (inv *Invoker) BuildCommand(ctx context.Context, chatID int64, userText string, now time.Time) (command.Command, []guard.BudgetAlert, error) {
	if err := inv.Limiter.Allow(chatID); err != nil {
		return nil, nil, err
	}
	if err := inv.Breaker.Allow(); err != nil {
		return nil, nil, err
	}
	if err := inv.Budget.CanSpend(ctx, inv.estimate()); err != nil {
		return nil, nil, err
	}

	res, err := inv.complete(ctx, userText, now)
	llmCalls.WithLabelValues(outcomeLabel(err)).Inc()
	if err != nil {
		if errors.Is(err, ErrUpstreamTransient) || errors.Is(err, ErrUpstreamRateLimited) {
			inv.Breaker.RecordFailure()
		}
		inv.Log.Warn().
			Err(err).
			Int64("chat_id", chatID).
			Str("circuit", inv.Breaker.State().String()).
			Msg("llm invocation failed")
		return nil, nil, err
	}
	inv.Breaker.RecordSuccess()

	alerts, err := inv.Budget.Record(ctx, res.InputTokens, res.OutputTokens)
	if err != nil {
		return nil, nil, err
	}
	inv.Log.Info().
		Int64("chat_id", chatID).
		Int64("input_tokens", res.InputTokens).
		Int64("output_tokens", res.OutputTokens).
		Msg("llm usage tracked")
	for _, a := range alerts {
		inv.Log.Warn().
			Int("threshold_pct", a.Threshold).
			Float64("spent_usd", a.SpentUSD).
			Str("period", a.Period).
			Msg("llm budget threshold reached")
	}

	cmd, err := command.DecodeString(res.Output)
	if err != nil {
		// Spend is already recorded; the output is just unusable.
		return nil, alerts, err
	}
	return cmd, alerts, nil
}

// complete calls the upstream with bounded retries on transient failures.
func (inv *Invoker) complete(ctx context.Context, userText string, now time.Time) (*Result, error) {
	attempts := inv.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	wait := inv.InitialWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = wait

	prompt := buildUserPrompt(userText, now)
	return backoff.Retry(ctx, func() (*Result, error) {
		res, err := inv.Client.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			if errors.Is(err, ErrUpstreamTransient) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return res, nil
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(uint(attempts)))
}
