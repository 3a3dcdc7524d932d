package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lowtherloudspeakers/listening-circle/internal/ledger"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserAggregate is the per-member activity shown in stats and admin listings.
type UserAggregate struct {
	Clicks   int64
	Orders   int64
	Sales    decimal.Decimal
	Earnings decimal.Decimal // APPROVED + PAID
	Pending  decimal.Decimal
}

func newAggregate() *UserAggregate {
	return &UserAggregate{Sales: decimal.Zero, Earnings: decimal.Zero, Pending: decimal.Zero}
}

func loadAggregates(ctx context.Context, db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*UserAggregate, error) {
	out := make(map[uuid.UUID]*UserAggregate, len(ids))
	for _, id := range ids {
		out[id] = newAggregate()
	}
	if len(ids) == 0 {
		return out, nil
	}
	db = db.WithContext(ctx)

	var clicks []struct {
		UserID uuid.UUID
		N      int64
	}
	if err := db.Model(&models.Click{}).
		Select("user_id, COUNT(*) AS n").
		Where("user_id IN ?", ids).
		Group("user_id").
		Scan(&clicks).Error; err != nil {
		return nil, fmt.Errorf("count clicks: %w", err)
	}
	for _, r := range clicks {
		if a, ok := out[r.UserID]; ok {
			a.Clicks = r.N
		}
	}

	var orders []struct {
		UserID uuid.UUID
		N      int64
		Total  decimal.Decimal
	}
	if err := db.Model(&models.Order{}).
		Select("user_id, COUNT(*) AS n, COALESCE(SUM(net_subtotal), 0) AS total").
		Where("user_id IN ?", ids).
		Group("user_id").
		Scan(&orders).Error; err != nil {
		return nil, fmt.Errorf("sum orders: %w", err)
	}
	for _, r := range orders {
		if a, ok := out[r.UserID]; ok {
			a.Orders = r.N
			a.Sales = r.Total
		}
	}

	var entries []struct {
		UserID uuid.UUID
		Status string
		Total  decimal.Decimal
	}
	if err := db.Model(&models.CommissionLedger{}).
		Select("user_id, status, COALESCE(SUM(amount), 0) AS total").
		Where("user_id IN ?", ids).
		Group("user_id, status").
		Scan(&entries).Error; err != nil {
		return nil, fmt.Errorf("sum ledger: %w", err)
	}
	for _, r := range entries {
		a, ok := out[r.UserID]
		if !ok {
			continue
		}
		switch ledger.Status(r.Status) {
		case ledger.StatusApproved, ledger.StatusPaid:
			a.Earnings = a.Earnings.Add(r.Total)
		case ledger.StatusPending:
			a.Pending = a.Pending.Add(r.Total)
		}
	}
	return out, nil
}
