// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Reminder
// and ReminderSeries models.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a reminder is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Hidden heads-up rows (domain.PreReminderPrefix) are excluded from every
// user-facing query; only the dispatcher's due scan sees them.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/remindbot/go-reminder-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ReminderFilter is the resolved selection for listing and filtered deletes.
// The service layer translates command filter modes (today, range, search,
// status) into this absolute form before the repository is involved.
type ReminderFilter struct {
	Status string
	Search string
	From   *time.Time
	To     *time.Time
}

func visibleReminders(db *gorm.DB, chatID int64) *gorm.DB {
	return db.Model(&domain.Reminder{}).
		Where("chat_id = ?", chatID).
		Where("title NOT LIKE ?", domain.PreReminderPrefix+"%")
}

func applyFilter(q *gorm.DB, f ReminderFilter) *gorm.DB {
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		q = q.Where("title LIKE ?", "%"+f.Search+"%")
	}
	if f.From != nil {
		q = q.Where("due_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("due_at < ?", f.To.UTC())
	}
	return q
}

// CreateReminders inserts the given rows atomically: either every reminder
// (and its heads-up rows) is persisted or none are. Series rows created for
// recurring reminders ride in the same transaction.
func CreateReminders(ctx context.Context, db *gorm.DB, series []domain.ReminderSeries, reminders []domain.Reminder) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range series {
			if err := tx.Create(&series[i]).Error; err != nil {
				return err
			}
		}
		for i := range reminders {
			if err := tx.Create(&reminders[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListReminders returns the chat's visible reminders matching the filter,
// ordered by due time ascending with ID as a stable tiebreaker.
func ListReminders(ctx context.Context, db *gorm.DB, chatID int64, f ReminderFilter) ([]domain.Reminder, error) {
	var out []domain.Reminder
	err := applyFilter(visibleReminders(db.WithContext(ctx), chatID), f).
		Order("due_at asc, id asc").
		Find(&out).Error
	return out, err
}

// LastCreatedReminders returns up to n of the chat's most recently created
// reminders matching the filter, newest first.
func LastCreatedReminders(ctx context.Context, db *gorm.DB, chatID int64, n int, f ReminderFilter) ([]domain.Reminder, error) {
	var out []domain.Reminder
	err := applyFilter(visibleReminders(db.WithContext(ctx), chatID), f).
		Order("created_at desc, id desc").
		Limit(n).
		Find(&out).Error
	return out, err
}

// DeleteReminders removes the given reminders of one chat together with
// their hidden heads-up rows, returning how many visible reminders were
// actually deleted.
func DeleteReminders(ctx context.Context, db *gorm.DB, chatID int64, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	preTitles := make([]string, 0, len(ids))
	for _, id := range ids {
		preTitles = append(preTitles, domain.PreReminderTitle(id))
	}

	var deleted int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("chat_id = ? AND id IN ?", chatID, ids).Delete(&domain.Reminder{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return tx.Where("chat_id = ? AND title IN ?", chatID, preTitles).
			Delete(&domain.Reminder{}).Error
	})
	return deleted, err
}

// GetReminder fetches a single reminder by ID regardless of owner. Returns
// ErrNotFound if the record does not exist.
func GetReminder(ctx context.Context, db *gorm.DB, id string) (*domain.Reminder, error) {
	var r domain.Reminder
	if err := db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// DueReminders returns up to limit pending reminders (heads-up rows
// included) whose due time is at or before now, oldest first.
func DueReminders(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Reminder, error) {
	var out []domain.Reminder
	err := db.WithContext(ctx).
		Where("status = ? AND due_at <= ?", domain.StatusPending, now.UTC()).
		Order("due_at asc, id asc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkSent flips a pending reminder to sent. The status guard in the WHERE
// clause makes the transition idempotent: a second delivery attempt affects
// zero rows and returns ErrNotFound instead of double-sending.
func MarkSent(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Model(&domain.Reminder{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Update("status", domain.StatusSent)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateReminder inserts a single row. Used by the dispatcher when
// respawning the next occurrence of a recurring series.
func CreateReminder(ctx context.Context, db *gorm.DB, r *domain.Reminder) error {
	return db.WithContext(ctx).Create(r).Error
}

// SeriesOccurrenceExists reports whether the series already has a reminder
// at exactly dueAt. The dispatcher uses this to keep respawning idempotent
// under at-least-once delivery.
func SeriesOccurrenceExists(ctx context.Context, db *gorm.DB, seriesID string, dueAt time.Time) (bool, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Reminder{}).
		Where("series_id = ? AND due_at = ?", seriesID, dueAt.UTC()).
		Count(&total).Error
	return total > 0, err
}

// CountSeriesOccurrences returns how many reminders a series has spawned so
// far, in any status. COUNT-bounded recurrence rules stop at this number.
func CountSeriesOccurrences(ctx context.Context, db *gorm.DB, seriesID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Reminder{}).
		Where("series_id = ?", seriesID).
		Count(&total).Error
	return total, err
}

// GetSeries fetches a recurrence series by ID or ErrNotFound.
func GetSeries(ctx context.Context, db *gorm.DB, id string) (*domain.ReminderSeries, error) {
	var s domain.ReminderSeries
	if err := db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// CountRemindersByStatus returns a status -> count map over the chat's
// visible reminders, used in listing summaries.
func CountRemindersByStatus(ctx context.Context, db *gorm.DB, chatID int64) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}
	var rows []row
	err := visibleReminders(db.WithContext(ctx), chatID).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}
