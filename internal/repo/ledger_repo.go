// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the CostLedger
// model backing the monthly LLM spend budget.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/remindbot/go-reminder-backend/internal/domain"
)

// PeriodKey formats t as the "YYYY-MM" accounting period the ledger is
// keyed on.
func PeriodKey(t time.Time) string { return t.UTC().Format("2006-01") }

// GetLedger returns the ledger row for the period, or a zero-valued row when
// the period has not accumulated any spend yet.
func GetLedger(ctx context.Context, db *gorm.DB, period string) (*domain.CostLedger, error) {
	var l domain.CostLedger
	err := db.WithContext(ctx).First(&l, "period_key = ?", period).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.CostLedger{PeriodKey: period}, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// AddSpend accumulates tokens and dollars onto the period's ledger row,
// creating it on first use, and returns the updated row.
func AddSpend(ctx context.Context, db *gorm.DB, period string, tokens int64, usd float64) (*domain.CostLedger, error) {
	now := time.Now().UTC()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "period_key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"total_tokens": gorm.Expr("total_tokens + ?", tokens),
			"total_usd":    gorm.Expr("total_usd + ?", usd),
			"updated_at":   now,
		}),
	}).Create(&domain.CostLedger{
		PeriodKey:   period,
		TotalTokens: tokens,
		TotalUSD:    usd,
		UpdatedAt:   now,
	}).Error
	if err != nil {
		return nil, err
	}
	return GetLedger(ctx, db, period)
}

// MarkAlerted sets the fired flag of one budget threshold (50, 80, or 100)
// for the period, making the corresponding alert once-per-period.
func MarkAlerted(ctx context.Context, db *gorm.DB, period string, threshold int) error {
	var column string
	switch threshold {
	case 50:
		column = "alerted_50"
	case 80:
		column = "alerted_80"
	case 100:
		column = "alerted_100"
	default:
		return errors.New("unknown budget threshold")
	}
	return db.WithContext(ctx).
		Model(&domain.CostLedger{}).
		Where("period_key = ?", period).
		Update(column, true).Error
}
