// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides snapshot persistence for the circuit
// breaker so an open circuit survives a process restart.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/remindbot/go-reminder-backend/internal/domain"
)

// LoadCircuit returns the persisted breaker snapshot by name, or ErrNotFound
// when no snapshot has been saved yet.
func LoadCircuit(ctx context.Context, db *gorm.DB, name string) (*domain.CircuitStateRecord, error) {
	var rec domain.CircuitStateRecord
	err := db.WithContext(ctx).First(&rec, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveCircuit upserts the breaker snapshot.
func SaveCircuit(ctx context.Context, db *gorm.DB, rec *domain.CircuitStateRecord) error {
	rec.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(rec).Error
}
