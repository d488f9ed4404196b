// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the
// ProcessedUpdate model used to deduplicate webhook deliveries.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/remindbot/go-reminder-backend/internal/domain"
)

// ErrDuplicate indicates that an update ID has already been processed within
// its dedup window.
var ErrDuplicate = errors.New("duplicate")

// AdmitUpdate records updateID as processed for the given window. The first
// call for an ID succeeds; any repeat within the window (or before the row
// is purged) returns ErrDuplicate.
func AdmitUpdate(ctx context.Context, db *gorm.DB, updateID int64, window time.Duration) error {
	now := time.Now().UTC()
	rec := &domain.ProcessedUpdate{
		UpdateID:  updateID,
		SeenAt:    now,
		ExpiresAt: now.Add(window),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// PurgeExpiredUpdates removes dedup rows whose window has passed, returning
// how many were removed. The scheduler runs this periodically.
func PurgeExpiredUpdates(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.ProcessedUpdate{})
	return res.RowsAffected, res.Error
}
