// Package domain defines the persistence models of the reminder backend.
// This file holds the webhook deduplication record.
package domain

import "time"

// ProcessedUpdate records a webhook update ID that has already been handled.
// Telegram delivers webhooks at-least-once, so the primary key on UpdateID is
// what makes processing effectively once per update. Rows are purged after
// their dedup window expires.
type ProcessedUpdate struct {
	UpdateID  int64     `gorm:"primaryKey;autoIncrement:false"`
	SeenAt    time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName returns the database table name for ProcessedUpdate.
func (ProcessedUpdate) TableName() string { return "processed_updates" }
