// Package llm talks to the upstream model API and classifies its failures.
// This file centralizes the error taxonomy the retry policy and circuit
// breaker are built on.
package llm

import (
	"errors"
	"fmt"
)

// Error classes for upstream failures. Retry policy is derived from the
// class, never from string matching at call sites.
var (
	// ErrUpstreamTransient marks failures worth retrying: timeouts,
	// connection errors, and 5xx responses.
	ErrUpstreamTransient = errors.New("transient upstream error")

	// ErrUpstreamPermanent marks failures that will not improve on retry:
	// 4xx responses other than 429, and malformed upstream payloads.
	ErrUpstreamPermanent = errors.New("permanent upstream error")

	// ErrUpstreamRateLimited marks a 429 from the upstream. Never retried
	// in-line (retrying against a rate limit makes it worse), but it still
	// counts toward the circuit failure streak.
	ErrUpstreamRateLimited = errors.New("upstream rate limited")

	// ErrEmptyCompletion is returned when the upstream answered 200 with no
	// usable choice.
	ErrEmptyCompletion = fmt.Errorf("%w: empty completion", ErrUpstreamPermanent)
)

// UpstreamError carries the HTTP status and body excerpt of a failed call,
// wrapped around the matching class sentinel.
type UpstreamError struct {
	StatusCode int
	Body       string
	class      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap yields the class sentinel so errors.Is works against the taxonomy.
func (e *UpstreamError) Unwrap() error { return e.class }

// classifyStatus wraps a non-200 response into the right error class.
func classifyStatus(status int, body string) error {
	e := &UpstreamError{StatusCode: status, Body: body}
	switch {
	case status == 429:
		e.class = ErrUpstreamRateLimited
	case status >= 500:
		e.class = ErrUpstreamTransient
	default:
		e.class = ErrUpstreamPermanent
	}
	return e
}
