package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/remindbot/go-reminder-backend/internal/domain"
)

func TestAdmitUpdate_FirstInRepeatOut(t *testing.T) {
	db := newRepoDB(t, &domain.ProcessedUpdate{})
	ctx := context.Background()

	if err := AdmitUpdate(ctx, db, 42, 10*time.Minute); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	if err := AdmitUpdate(ctx, db, 42, 10*time.Minute); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate on repeat, got %v", err)
	}
	if err := AdmitUpdate(ctx, db, 43, 10*time.Minute); err != nil {
		t.Fatalf("different update must pass: %v", err)
	}
}

func TestPurgeExpiredUpdates(t *testing.T) {
	db := newRepoDB(t, &domain.ProcessedUpdate{})
	ctx := context.Background()

	now := time.Now().UTC()
	rows := []domain.ProcessedUpdate{
		{UpdateID: 1, SeenAt: now.Add(-time.Hour), ExpiresAt: now.Add(-50 * time.Minute)},
		{UpdateID: 2, SeenAt: now.Add(-time.Minute), ExpiresAt: now.Add(9 * time.Minute)},
	}
	for _, r := range rows {
		if err := db.Create(&r).Error; err != nil {
			t.Fatalf("seed %d: %v", r.UpdateID, err)
		}
	}

	purged, err := PurgeExpiredUpdates(ctx, db, now)
	if err != nil {
		t.Fatalf("PurgeExpiredUpdates: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected 1 purged row, got %d", purged)
	}

	var total int64
	if err := db.Model(&domain.ProcessedUpdate{}).Count(&total).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected the live row to survive, %d rows remain", total)
	}
}

func TestAdmitUpdate_Error_NoTable(t *testing.T) {
	db := newRepoDB(t /* no migrations */)
	if err := AdmitUpdate(context.Background(), db, 1, time.Minute); err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected raw DB error, got %v", err)
	}
}
