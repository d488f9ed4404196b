// Package domain defines the persistence models for reminders, recurring
// series, the LLM cost ledger, and the circuit-breaker snapshot. These types
// are mapped with GORM and form the core data layer of the reminder backend.
package domain

import (
	"strings"
	"time"
)

// Reminder status values. A reminder is created pending and becomes sent
// when delivered. Delete commands remove rows outright; cancelled is part
// of the schema and filter vocabulary for rows retired out of band.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusCancelled = "cancelled"
)

// Reminder represents a single scheduled notification owned by a chat.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ChatID: identifier of the owning chat; indexed for efficient retrieval.
//   - Title: free-form reminder text shown to the user.
//   - DueAt: fully resolved absolute due instant, stored in UTC. Never an
//     ambiguous or relative time.
//   - Status: pending | sent | cancelled (enforced by DB constraint).
//   - RecurrenceRule: optional structured rule ("FREQ=DAILY;INTERVAL=2;COUNT=5").
//   - SeriesID: optional link to the ReminderSeries that spawned this row.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Reminder struct {
	ID             string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ChatID         int64     `json:"chat_id"    gorm:"not null;index:idx_chat_reminders"`
	Title          string    `json:"title"      gorm:"type:text;not null"`
	DueAt          time.Time `json:"due_at"     gorm:"not null;index"`
	Status         string    `json:"status"     gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','sent','cancelled');index"`
	RecurrenceRule *string   `json:"recurrence_rule,omitempty" gorm:"type:varchar(255)"`
	SeriesID       *string   `json:"series_id,omitempty"       gorm:"type:char(36);index"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Reminder.
func (Reminder) TableName() string { return "reminders" }

// PreReminderPrefix marks hidden heads-up rows scheduled one hour before a
// main reminder. Rows with this prefix never appear in user-facing listings.
const PreReminderPrefix = "__pre1h__::"

// PreReminderLead is how far ahead of the main due time a heads-up fires.
const PreReminderLead = time.Hour

// PreReminderTitle builds the hidden title of the heads-up row belonging to
// the main reminder with the given ID.
func PreReminderTitle(mainID string) string { return PreReminderPrefix + mainID }

// IsPreReminder reports whether r is a hidden heads-up row.
func (r Reminder) IsPreReminder() bool { return strings.HasPrefix(r.Title, PreReminderPrefix) }

// PreReminderTarget returns the ID of the main reminder a heads-up row points
// at, or "" when r is not a heads-up row.
func (r Reminder) PreReminderTarget() string {
	if !r.IsPreReminder() {
		return ""
	}
	return strings.TrimPrefix(r.Title, PreReminderPrefix)
}

// ReminderSeries records the origin of a recurring reminder: the source text
// and rule a create command carried. Occurrences spawned from the series
// reference it via Reminder.SeriesID.
type ReminderSeries struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	ChatID         int64     `json:"chat_id"         gorm:"not null;index"`
	SourceTitle    string    `json:"source_title"    gorm:"type:text;not null"`
	RecurrenceRule string    `json:"recurrence_rule" gorm:"type:varchar(255);not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for ReminderSeries.
func (ReminderSeries) TableName() string { return "reminder_series" }

// CostLedger accumulates estimated LLM spend for one accounting period
// (calendar month, keyed "YYYY-MM"). The per-threshold fired flags make
// budget alerts idempotent within a period; a fresh row starts the next one.
type CostLedger struct {
	PeriodKey   string    `gorm:"column:period_key;type:char(7);primaryKey"`
	TotalTokens int64     `gorm:"column:total_tokens;not null;default:0"`
	TotalUSD    float64   `gorm:"column:total_usd;not null;default:0"`
	Alerted50   bool      `gorm:"column:alerted_50;not null;default:false"`
	Alerted80   bool      `gorm:"column:alerted_80;not null;default:false"`
	Alerted100  bool      `gorm:"column:alerted_100;not null;default:false"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

// TableName returns the database table name for CostLedger.
func (CostLedger) TableName() string { return "cost_ledger" }

// CircuitStateRecord is a single-row snapshot of the LLM circuit breaker so
// an open circuit survives a process restart. Name is the breaker identity
// ("llm" for the only breaker today).
type CircuitStateRecord struct {
	Name        string     `gorm:"type:varchar(32);primaryKey"`
	State       string     `gorm:"type:varchar(16);not null"`
	Failures    int        `gorm:"not null;default:0"`
	OpenedUntil *time.Time `gorm:""`
	UpdatedAt   time.Time
}

// TableName returns the database table name for CircuitStateRecord.
func (CircuitStateRecord) TableName() string { return "circuit_state" }
