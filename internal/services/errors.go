// Package services implements the reminder business logic: command
// execution, listing and deletion semantics, and due-reminder dispatch.
// This file centralizes common service-level error values so that they can
// be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer;
// translation into user-facing messages is performed by the command
// pipeline.
package services

import "errors"

var (
	// ErrNothingToDelete is returned when a delete command matches no
	// reminders at all.
	ErrNothingToDelete = errors.New("no reminders match the delete request")

	// ErrDeleteAllNeedsConfirm is returned when a filter-mode delete
	// carries no filter and no explicit confirmation. An unfiltered delete
	// wipes the whole chat, so it never happens implicitly.
	ErrDeleteAllNeedsConfirm = errors.New("deleting all reminders requires explicit confirmation")

	// ErrReminderNotFound indicates that a referenced reminder does not
	// exist.
	ErrReminderNotFound = errors.New("reminder not found")
)
