package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/remindbot/go-reminder-backend/internal/domain"
)

func TestCircuitSnapshot_RoundTripAndUpsert(t *testing.T) {
	db := newRepoDB(t, &domain.CircuitStateRecord{})
	ctx := context.Background()

	if _, err := LoadCircuit(ctx, db, "llm"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unsaved snapshot, got %v", err)
	}

	until := time.Date(2026, 8, 23, 15, 0, 0, 0, time.UTC)
	rec := &domain.CircuitStateRecord{Name: "llm", State: "open", Failures: 3, OpenedUntil: &until}
	if err := SaveCircuit(ctx, db, rec); err != nil {
		t.Fatalf("SaveCircuit: %v", err)
	}

	got, err := LoadCircuit(ctx, db, "llm")
	if err != nil {
		t.Fatalf("LoadCircuit: %v", err)
	}
	if got.State != "open" || got.Failures != 3 || got.OpenedUntil == nil || !got.OpenedUntil.Equal(until) {
		t.Fatalf("round-trip mismatch: %+v", got)
	}

	// Upsert over the same name.
	if err := SaveCircuit(ctx, db, &domain.CircuitStateRecord{Name: "llm", State: "closed", Failures: 0}); err != nil {
		t.Fatalf("SaveCircuit upsert: %v", err)
	}
	got, err = LoadCircuit(ctx, db, "llm")
	if err != nil {
		t.Fatalf("LoadCircuit: %v", err)
	}
	if got.State != "closed" || got.Failures != 0 {
		t.Fatalf("upsert did not overwrite: %+v", got)
	}
}
