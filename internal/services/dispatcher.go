// This file implements due-reminder delivery. The scheduler ticks it once a
// minute; each tick scans a bounded batch of due rows, sends them, marks
// them sent, and respawns the next occurrence of recurring series.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/remindbot/go-reminder-backend/internal/command"
	"github.com/remindbot/go-reminder-backend/internal/domain"
	"github.com/remindbot/go-reminder-backend/internal/repo"
)

// MessageSender delivers one text message to a chat.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Dispatcher delivers due reminders. It is safe to run ticks concurrently
// with command execution: MarkSent's status guard makes delivery
// effectively once, and respawning checks for an existing occurrence before
// inserting.
type Dispatcher struct {
	DB     *gorm.DB
	Sender MessageSender

	// BatchSize bounds how many due rows one tick processes.
	BatchSize int

	// Now is injectable for tests and defaults to time.Now.
	Now func() time.Time

	Log zerolog.Logger
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DispatchDue processes one batch of due reminders and returns how many
// were delivered. Send failures leave the row pending so the next tick
// retries it; everything else is logged and skipped rather than aborting
// the batch.
func (d *Dispatcher) DispatchDue(ctx context.Context) (int, error) {
	tr := otel.Tracer("services/Dispatcher")
	ctx, span := tr.Start(ctx, "DispatchDue")
	defer span.End()

	batch := d.BatchSize
	if batch <= 0 {
		batch = 100
	}

	now := d.now()
	due, err := repo.DueReminders(ctx, d.DB, now, batch)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range due {
		text, skip, err := d.renderText(ctx, r)
		if err != nil {
			d.Log.Error().Err(err).Str("reminder_id", r.ID).Msg("render reminder")
			continue
		}

		if !skip {
			if err := d.Sender.SendMessage(ctx, r.ChatID, text); err != nil {
				d.Log.Warn().Err(err).Str("reminder_id", r.ID).Msg("send failed, will retry next tick")
				continue
			}
		}

		if err := repo.MarkSent(ctx, d.DB, r.ID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				// Another tick already delivered it; do not respawn twice.
				continue
			}
			d.Log.Error().Err(err).Str("reminder_id", r.ID).Msg("mark sent")
			continue
		}
		if !skip {
			sent++
		}

		if r.SeriesID != nil {
			if err := d.respawn(ctx, r, now); err != nil {
				d.Log.Error().Err(err).Str("series_id", *r.SeriesID).Msg("respawn next occurrence")
			}
		}
	}
	return sent, nil
}

// renderText builds the outgoing message. Heads-up rows resolve their
// target reminder; when the target is gone or already sent, the heads-up is
// consumed silently.
func (d *Dispatcher) renderText(ctx context.Context, r domain.Reminder) (text string, skip bool, err error) {
	if !r.IsPreReminder() {
		return fmt.Sprintf("Reminder: %s", r.Title), false, nil
	}

	target, err := repo.GetReminder(ctx, d.DB, r.PreReminderTarget())
	if errors.Is(err, repo.ErrNotFound) {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	if target.Status != domain.StatusPending {
		return "", true, nil
	}
	return fmt.Sprintf("In one hour: %s", target.Title), false, nil
}

// respawn inserts the next pending occurrence of a recurring reminder. It
// is idempotent: the next due time is a pure function of (rule, lastDue,
// now), and an occurrence that already exists is never duplicated.
func (d *Dispatcher) respawn(ctx context.Context, r domain.Reminder, now time.Time) error {
	series, err := repo.GetSeries(ctx, d.DB, *r.SeriesID)
	if err != nil {
		return err
	}
	rule, err := command.ParseRule(series.RecurrenceRule)
	if err != nil {
		return err
	}

	if rule.Count > 0 {
		spawned, err := repo.CountSeriesOccurrences(ctx, d.DB, series.ID)
		if err != nil {
			return err
		}
		if spawned >= int64(rule.Count) {
			return nil
		}
	}

	next, ok := rule.NextOccurrence(r.DueAt, now)
	if !ok {
		return nil
	}
	exists, err := repo.SeriesOccurrenceExists(ctx, d.DB, series.ID, next)
	if err != nil || exists {
		return err
	}

	ruleStr := series.RecurrenceRule
	occ := domain.Reminder{
		ID:             uuid.NewString(),
		ChatID:         r.ChatID,
		Title:          series.SourceTitle,
		DueAt:          next.UTC(),
		Status:         domain.StatusPending,
		RecurrenceRule: &ruleStr,
		SeriesID:       &series.ID,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	if err := repo.CreateReminder(ctx, d.DB, &occ); err != nil {
		return err
	}
	d.Log.Info().
		Str("series_id", series.ID).
		Time("next_due", next).
		Msg("recurring occurrence respawned")
	return nil
}
