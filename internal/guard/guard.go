// Package guard implements the protective layers wrapped around LLM
// invocation: per-chat rate limiting, a circuit breaker for the upstream
// model API, and a monthly spend budget. Each guard is independent; the
// invoker composes them in a fixed order.
package guard

import "errors"

// Sentinel errors surfaced by the guards. The caller maps them to
// user-facing replies instead of retrying.
var (
	// ErrRateLimited means the chat exhausted its token bucket.
	ErrRateLimited = errors.New("chat rate limit exceeded")

	// ErrCircuitOpen means the upstream breaker is rejecting calls.
	ErrCircuitOpen = errors.New("upstream circuit open")

	// ErrBudgetExceeded means the monthly spend cap blocks further calls.
	ErrBudgetExceeded = errors.New("monthly budget exceeded")
)
