package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/remindbot/go-reminder-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("reminder_repo_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedReminder(t *testing.T, db *gorm.DB, r domain.Reminder) domain.Reminder {
	t.Helper()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = domain.StatusPending
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seed reminder %s: %v", r.ID, err)
	}
	return r
}

func TestCreateReminders_AtomicRollback(t *testing.T) {
	db := newRepoDB(t, &domain.Reminder{}, &domain.ReminderSeries{})

	due := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	dup := uuid.NewString()
	batch := []domain.Reminder{
		{ID: uuid.NewString(), ChatID: 1, Title: "a", DueAt: due, Status: domain.StatusPending},
		{ID: dup, ChatID: 1, Title: "b", DueAt: due, Status: domain.StatusPending},
		{ID: dup, ChatID: 1, Title: "c", DueAt: due, Status: domain.StatusPending}, // PK collision
	}
	if err := CreateReminders(context.Background(), db, nil, batch); err == nil {
		t.Fatalf("expected PK collision error")
	}

	var total int64
	if err := db.Model(&domain.Reminder{}).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 0 {
		t.Fatalf("failed batch must persist nothing, found %d rows", total)
	}
}

func TestCreateReminders_WithSeries(t *testing.T) {
	db := newRepoDB(t, &domain.Reminder{}, &domain.ReminderSeries{})

	sid := uuid.NewString()
	series := []domain.ReminderSeries{{ID: sid, ChatID: 1, SourceTitle: "gym", RecurrenceRule: "FREQ=DAILY"}}
	due := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	rows := []domain.Reminder{
		{ID: uuid.NewString(), ChatID: 1, Title: "gym", DueAt: due, Status: domain.StatusPending, SeriesID: &sid},
		{ID: uuid.NewString(), ChatID: 1, Title: "gym", DueAt: due.AddDate(0, 0, 1), Status: domain.StatusPending, SeriesID: &sid},
	}
	if err := CreateReminders(context.Background(), db, series, rows); err != nil {
		t.Fatalf("CreateReminders: %v", err)
	}

	n, err := CountSeriesOccurrences(context.Background(), db, sid)
	if err != nil {
		t.Fatalf("CountSeriesOccurrences: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 occurrences, got %d", n)
	}
	if _, err := GetSeries(context.Background(), db, sid); err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
}

func TestListReminders_FilterAndOrder(t *testing.T) {
	db := newRepoDB(t, &domain.Reminder{})
	ctx := context.Background()

	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	seedReminder(t, db, domain.Reminder{ID: "r2", ChatID: 1, Title: "dentist", DueAt: base.Add(2 * time.Hour)})
	seedReminder(t, db, domain.Reminder{ID: "r1", ChatID: 1, Title: "call mom", DueAt: base})
	seedReminder(t, db, domain.Reminder{ID: "r3", ChatID: 1, Title: "pay rent", DueAt: base.Add(4 * time.Hour), Status: domain.StatusSent})
	seedReminder(t, db, domain.Reminder{ID: "rx", ChatID: 2, Title: "other chat", DueAt: base})
	seedReminder(t, db, domain.Reminder{ID: "rp", ChatID: 1, Title: domain.PreReminderTitle("r2"), DueAt: base.Add(time.Hour)})

	all, err := ListReminders(ctx, db, 1, ReminderFilter{})
	if err != nil {
		t.Fatalf("ListReminders: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 visible reminders, got %d", len(all))
	}
	if all[0].ID != "r1" || all[1].ID != "r2" || all[2].ID != "r3" {
		t.Fatalf("expected due-ascending order, got %v %v %v", all[0].ID, all[1].ID, all[2].ID)
	}

	pending, err := ListReminders(ctx, db, 1, ReminderFilter{Status: domain.StatusPending})
	if err != nil {
		t.Fatalf("status filter: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}

	found, err := ListReminders(ctx, db, 1, ReminderFilter{Search: "rent"})
	if err != nil {
		t.Fatalf("search filter: %v", err)
	}
	if len(found) != 1 || found[0].ID != "r3" {
		t.Fatalf("expected search hit r3, got %+v", found)
	}

	from := base.Add(time.Hour)
	to := base.Add(3 * time.Hour)
	ranged, err := ListReminders(ctx, db, 1, ReminderFilter{From: &from, To: &to})
	if err != nil {
		t.Fatalf("range filter: %v", err)
	}
	if len(ranged) != 1 || ranged[0].ID != "r2" {
		t.Fatalf("expected range hit r2, got %+v", ranged)
	}
}

func TestLastCreatedReminders(t *testing.T) {
	db := newRepoDB(t, &domain.Reminder{})
	ctx := context.Background()

	base := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		seedReminder(t, db, domain.Reminder{
			ID:        fmt.Sprintf("r%d", i),
			ChatID:    1,
			Title:     "t",
			DueAt:     base,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	seedReminder(t, db, domain.Reminder{ID: "sent", ChatID: 1, Title: "t", DueAt: base, Status: domain.StatusSent, CreatedAt: base.Add(time.Hour)})

	last, err := LastCreatedReminders(ctx, db, 1, 3, ReminderFilter{Status: domain.StatusPending})
	if err != nil {
		t.Fatalf("LastCreatedReminders: %v", err)
	}
	if len(last) != 3 || last[0].ID != "r5" || last[1].ID != "r4" || last[2].ID != "r3" {
		t.Fatalf("expected r5,r4,r3 newest-first, got %+v", last)
	}

	// Without a status filter the sent row is the newest match.
	all, err := LastCreatedReminders(ctx, db, 1, 2, ReminderFilter{})
	if err != nil {
		t.Fatalf("LastCreatedReminders unfiltered: %v", err)
	}
	if len(all) != 2 || all[0].ID != "sent" || all[1].ID != "r5" {
		t.Fatalf("expected sent,r5 newest-first, got %+v", all)
	}
}

func TestDeleteReminders_RemovesHeadsUpRows(t *testing.T) {
	db := newRepoDB(t, &domain.Reminder{})
	ctx := context.Background()

	due := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	main := seedReminder(t, db, domain.Reminder{ID: "main", ChatID: 1, Title: "flight", DueAt: due})
	seedReminder(t, db, domain.Reminder{ID: "pre", ChatID: 1, Title: domain.PreReminderTitle(main.ID), DueAt: due.Add(-time.Hour)})
	seedReminder(t, db, domain.Reminder{ID: "keep", ChatID: 1, Title: "other", DueAt: due})

	deleted, err := DeleteReminders(ctx, db, 1, []string{"main", "missing"})
	if err != nil {
		t.Fatalf("DeleteReminders: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 visible deletion, got %d", deleted)
	}

	var total int64
	if err := db.Model(&domain.Reminder{}).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Fatalf("heads-up row should be gone with its main reminder, %d rows remain", total)
	}
}

func TestDeleteReminders_EmptyIDs(t *testing.T) {
	db := newRepoDB(t, &domain.Reminder{})
	deleted, err := DeleteReminders(context.Background(), db, 1, nil)
	if err != nil || deleted != 0 {
		t.Fatalf("empty id set must be a no-op, got deleted=%d err=%v", deleted, err)
	}
}

func TestDueReminders_And_MarkSent(t *testing.T) {
	db := newRepoDB(t, &domain.Reminder{})
	ctx := context.Background()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	seedReminder(t, db, domain.Reminder{ID: "due1", ChatID: 1, Title: "a", DueAt: now.Add(-time.Hour)})
	seedReminder(t, db, domain.Reminder{ID: "due2", ChatID: 1, Title: "b", DueAt: now})
	seedReminder(t, db, domain.Reminder{ID: "later", ChatID: 1, Title: "c", DueAt: now.Add(time.Minute)})
	seedReminder(t, db, domain.Reminder{ID: "done", ChatID: 1, Title: "d", DueAt: now.Add(-time.Hour), Status: domain.StatusSent})

	due, err := DueReminders(ctx, db, now, 100)
	if err != nil {
		t.Fatalf("DueReminders: %v", err)
	}
	if len(due) != 2 || due[0].ID != "due1" || due[1].ID != "due2" {
		t.Fatalf("unexpected due scan: %+v", due)
	}

	if err := MarkSent(ctx, db, "due1"); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	// Second transition is a no-op and reports not found.
	if err := MarkSent(ctx, db, "due1"); err == nil {
		t.Fatalf("expected ErrNotFound on repeated MarkSent")
	}

	got, err := GetReminder(ctx, db, "due1")
	if err != nil {
		t.Fatalf("GetReminder: %v", err)
	}
	if got.Status != domain.StatusSent {
		t.Fatalf("expected sent status, got %q", got.Status)
	}
}

func TestSeriesOccurrenceExists(t *testing.T) {
	db := newRepoDB(t, &domain.Reminder{})
	ctx := context.Background()

	sid := uuid.NewString()
	due := time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC)
	seedReminder(t, db, domain.Reminder{ID: "occ", ChatID: 1, Title: "gym", DueAt: due, SeriesID: &sid})

	exists, err := SeriesOccurrenceExists(ctx, db, sid, due)
	if err != nil {
		t.Fatalf("SeriesOccurrenceExists: %v", err)
	}
	if !exists {
		t.Fatalf("expected existing occurrence to be found")
	}
	exists, err = SeriesOccurrenceExists(ctx, db, sid, due.Add(time.Hour))
	if err != nil {
		t.Fatalf("SeriesOccurrenceExists: %v", err)
	}
	if exists {
		t.Fatalf("unexpected occurrence at a different due time")
	}
}

func TestCountRemindersByStatus(t *testing.T) {
	db := newRepoDB(t, &domain.Reminder{})
	ctx := context.Background()

	due := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	seedReminder(t, db, domain.Reminder{ChatID: 1, Title: "a", DueAt: due})
	seedReminder(t, db, domain.Reminder{ChatID: 1, Title: "b", DueAt: due})
	seedReminder(t, db, domain.Reminder{ChatID: 1, Title: "c", DueAt: due, Status: domain.StatusSent})

	counts, err := CountRemindersByStatus(ctx, db, 1)
	if err != nil {
		t.Fatalf("CountRemindersByStatus: %v", err)
	}
	if counts[domain.StatusPending] != 2 || counts[domain.StatusSent] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestListReminders_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	if _, err := ListReminders(context.Background(), db, 1, ReminderFilter{}); err == nil {
		t.Fatalf("expected error when table missing")
	}
}
