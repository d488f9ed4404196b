// Package handlers defines HTTP-layer error codes returned in error envelopes.
//
// Codes are lowercase snake_case and stable so that operators and probes can
// branch on them programmatically. Handlers select the most specific matching
// code and pass it to fail() along with the HTTP status and message.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnhealthy        = "unhealthy"
)
