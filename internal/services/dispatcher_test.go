package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/remindbot/go-reminder-backend/internal/domain"
)

// recordingSender captures sent messages; fail makes every send error.
type recordingSender struct {
	sent []sentMessage
	fail bool
}

type sentMessage struct {
	chatID int64
	text   string
}

func (r *recordingSender) SendMessage(ctx context.Context, chatID int64, text string) error {
	if r.fail {
		return errors.New("telegram unreachable")
	}
	r.sent = append(r.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func newDispatcher(t *testing.T, db *gorm.DB, sender MessageSender, now time.Time) *Dispatcher {
	t.Helper()
	return &Dispatcher{
		DB:        db,
		Sender:    sender,
		BatchSize: 100,
		Now:       func() time.Time { return now },
		Log:       zerolog.Nop(),
	}
}

func seedPending(t *testing.T, db *gorm.DB, r domain.Reminder) domain.Reminder {
	t.Helper()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Status = domain.StatusPending
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("seed reminder: %v", err)
	}
	return r
}

func TestDispatchDue_SendsAndMarksSent(t *testing.T) {
	db := newServiceDB(t)
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	sender := &recordingSender{}
	d := newDispatcher(t, db, sender, now)

	due := seedPending(t, db, domain.Reminder{ChatID: 7, Title: "call mom", DueAt: now.Add(-time.Minute)})
	seedPending(t, db, domain.Reminder{ChatID: 7, Title: "later", DueAt: now.Add(time.Hour)})

	sent, err := d.DispatchDue(context.Background())
	if err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if sent != 1 {
		t.Fatalf("expected 1 delivery, got %d", sent)
	}
	if len(sender.sent) != 1 || sender.sent[0].chatID != 7 || sender.sent[0].text != "Reminder: call mom" {
		t.Fatalf("unexpected outgoing message: %+v", sender.sent)
	}

	var got domain.Reminder
	if err := db.First(&got, "id = ?", due.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != domain.StatusSent {
		t.Fatalf("expected sent, got %q", got.Status)
	}

	// A second tick has nothing left to deliver.
	sent, err = d.DispatchDue(context.Background())
	if err != nil || sent != 0 {
		t.Fatalf("second tick must deliver nothing, got sent=%d err=%v", sent, err)
	}
}

func TestDispatchDue_SendFailureLeavesPending(t *testing.T) {
	db := newServiceDB(t)
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	sender := &recordingSender{fail: true}
	d := newDispatcher(t, db, sender, now)

	due := seedPending(t, db, domain.Reminder{ChatID: 7, Title: "x", DueAt: now.Add(-time.Minute)})

	sent, err := d.DispatchDue(context.Background())
	if err != nil || sent != 0 {
		t.Fatalf("failed send must not count, got sent=%d err=%v", sent, err)
	}

	var got domain.Reminder
	if err := db.First(&got, "id = ?", due.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Fatalf("failed send must stay pending for the next tick, got %q", got.Status)
	}
}

func TestDispatchDue_HeadsUpRendering(t *testing.T) {
	db := newServiceDB(t)
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	sender := &recordingSender{}
	d := newDispatcher(t, db, sender, now)

	main := seedPending(t, db, domain.Reminder{ChatID: 7, Title: "flight to Oslo", DueAt: now.Add(55 * time.Minute)})
	seedPending(t, db, domain.Reminder{ChatID: 7, Title: domain.PreReminderTitle(main.ID), DueAt: now.Add(-time.Minute)})

	sent, err := d.DispatchDue(context.Background())
	if err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if sent != 1 || sender.sent[0].text != "In one hour: flight to Oslo" {
		t.Fatalf("unexpected heads-up delivery: sent=%d msgs=%+v", sent, sender.sent)
	}
}

func TestDispatchDue_OrphanHeadsUpConsumedSilently(t *testing.T) {
	db := newServiceDB(t)
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	sender := &recordingSender{}
	d := newDispatcher(t, db, sender, now)

	pre := seedPending(t, db, domain.Reminder{ChatID: 7, Title: domain.PreReminderTitle("gone"), DueAt: now.Add(-time.Minute)})

	sent, err := d.DispatchDue(context.Background())
	if err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}
	if sent != 0 || len(sender.sent) != 0 {
		t.Fatalf("orphan heads-up must not produce a message")
	}

	var got domain.Reminder
	if err := db.First(&got, "id = ?", pre.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Status != domain.StatusSent {
		t.Fatalf("orphan heads-up must still be consumed, got %q", got.Status)
	}
}

func TestDispatchDue_RespawnsNextOccurrence(t *testing.T) {
	db := newServiceDB(t)
	now := time.Date(2026, 8, 22, 12, 0, 30, 0, time.UTC)
	sender := &recordingSender{}
	d := newDispatcher(t, db, sender, now)

	series := domain.ReminderSeries{ID: uuid.NewString(), ChatID: 7, SourceTitle: "standup", RecurrenceRule: "FREQ=DAILY"}
	if err := db.Create(&series).Error; err != nil {
		t.Fatalf("seed series: %v", err)
	}
	rule := series.RecurrenceRule
	due := now.Add(-30 * time.Second)
	seedPending(t, db, domain.Reminder{
		ChatID: 7, Title: "standup", DueAt: due,
		RecurrenceRule: &rule, SeriesID: &series.ID,
	})

	if _, err := d.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}

	var next domain.Reminder
	err := db.First(&next, "series_id = ? AND status = ?", series.ID, domain.StatusPending).Error
	if err != nil {
		t.Fatalf("expected respawned occurrence: %v", err)
	}
	if want := due.AddDate(0, 0, 1); !next.DueAt.Equal(want) {
		t.Fatalf("expected next occurrence at %v, got %v", want, next.DueAt)
	}

	// Re-running the tick does not duplicate the occurrence.
	if _, err := d.DispatchDue(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	var pendingCount int64
	if err := db.Model(&domain.Reminder{}).
		Where("series_id = ? AND status = ?", series.ID, domain.StatusPending).
		Count(&pendingCount).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if pendingCount != 1 {
		t.Fatalf("respawn must be idempotent, found %d pending occurrences", pendingCount)
	}
}

func TestDispatchDue_CountBoundStopsRespawn(t *testing.T) {
	db := newServiceDB(t)
	now := time.Date(2026, 8, 22, 12, 0, 0, 0, time.UTC)
	sender := &recordingSender{}
	d := newDispatcher(t, db, sender, now)

	series := domain.ReminderSeries{ID: uuid.NewString(), ChatID: 7, SourceTitle: "meds", RecurrenceRule: "FREQ=DAILY;COUNT=2"}
	if err := db.Create(&series).Error; err != nil {
		t.Fatalf("seed series: %v", err)
	}
	rule := series.RecurrenceRule
	// Both allowed occurrences already exist; the due one is the second.
	seedFirst := seedPending(t, db, domain.Reminder{ChatID: 7, Title: "meds", DueAt: now.AddDate(0, 0, -1), RecurrenceRule: &rule, SeriesID: &series.ID})
	if err := db.Model(&domain.Reminder{}).Where("id = ?", seedFirst.ID).Update("status", domain.StatusSent).Error; err != nil {
		t.Fatalf("mark first sent: %v", err)
	}
	seedPending(t, db, domain.Reminder{ChatID: 7, Title: "meds", DueAt: now.Add(-time.Minute), RecurrenceRule: &rule, SeriesID: &series.ID})

	if _, err := d.DispatchDue(context.Background()); err != nil {
		t.Fatalf("DispatchDue: %v", err)
	}

	var total int64
	if err := db.Model(&domain.Reminder{}).Where("series_id = ?", series.ID).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 {
		t.Fatalf("COUNT=2 series must never spawn a third occurrence, found %d", total)
	}
}
