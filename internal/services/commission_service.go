package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lowtherloudspeakers/listening-circle/internal/ledger"
	"github.com/lowtherloudspeakers/listening-circle/internal/metrics"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommissionService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCommissionService(db *gorm.DB) *CommissionService {
	return &CommissionService{db: db, now: time.Now}
}

// Settlement is a committed payment. SplitIDs maps a partially paid entry to the new
// PAID entry created for it.
type Settlement struct {
	UserID   uuid.UUID
	Currency string
	Plan     ledger.Plan
	SplitIDs map[uuid.UUID]uuid.UUID
}

// Settle pays amount against the user's pending entries, oldest first, in one
// transaction. The user row and the pending rows are locked so concurrent settlements
// for the same user run one after the other.
func (s *CommissionService) Settle(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (*Settlement, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		metrics.SettlementsTotal.WithLabelValues("rejected").Inc()
		return nil, err
	}

	var result *Settlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&user, "id = ?", userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		var rows []models.CommissionLedger
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND status = ?", userID, string(ledger.StatusPending)).
			Order("created_at ASC").Order("id ASC").
			Find(&rows).Error
		if err != nil {
			return fmt.Errorf("load pending entries: %w", err)
		}

		plan, err := ledger.Settle(toLedgerEntries(rows), amount)
		if err != nil {
			return err
		}

		splitIDs, err := s.apply(tx, plan)
		if err != nil {
			return err
		}
		result = &Settlement{UserID: userID, Currency: rows[0].Currency, Plan: plan, SplitIDs: splitIDs}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrExceedsPending),
			errors.Is(err, ledger.ErrNothingToPay), errors.Is(err, ErrUserNotFound):
			metrics.SettlementsTotal.WithLabelValues("rejected").Inc()
		default:
			metrics.SettlementsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.SettlementsTotal.WithLabelValues("settled").Inc()
	metrics.SettledAmount.WithLabelValues(result.Currency).Add(amount.InexactFloat64())
	slog.Info("commission settled",
		"user_id", userID.String(),
		"action", "pay_commission",
		"amount", amount.StringFixed(ledger.CurrencyScale),
		"entries", len(result.Plan.Outcomes),
	)
	return result, nil
}

func (s *CommissionService) apply(tx *gorm.DB, plan ledger.Plan) (map[uuid.UUID]uuid.UUID, error) {
	now := s.now()
	for _, u := range plan.Updates {
		res := tx.Model(&models.CommissionLedger{}).
			Where("id = ?", u.ID).
			Updates(map[string]interface{}{
				"amount":     u.Amount,
				"status":     string(u.Status),
				"updated_at": now,
			})
		if res.Error != nil {
			return nil, fmt.Errorf("update entry %s: %w", u.ID, res.Error)
		}
		if res.RowsAffected != 1 {
			return nil, fmt.Errorf("update entry %s: %d rows affected", u.ID, res.RowsAffected)
		}
	}

	splitIDs := make(map[uuid.UUID]uuid.UUID, len(plan.Created))
	partials := make([]uuid.UUID, 0, len(plan.Created))
	for _, o := range plan.Outcomes {
		if o.Action == ledger.ActionPartiallyPaid {
			partials = append(partials, o.EntryID)
		}
	}

	for i, e := range plan.Created {
		row := models.CommissionLedger{
			ID:        uuid.New(),
			UserID:    e.UserID,
			OrderID:   e.OrderID,
			Amount:    e.Amount,
			Currency:  e.Currency,
			Status:    string(e.Status),
			Reason:    e.Reason,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return nil, fmt.Errorf("create split entry: %w", err)
		}
		if i < len(partials) {
			splitIDs[partials[i]] = row.ID
		}
	}
	return splitIDs, nil
}

// ApproveEntry moves a PENDING entry to APPROVED.
func (s *CommissionService) ApproveEntry(ctx context.Context, entryID uuid.UUID) (*models.CommissionLedger, error) {
	db := s.db.WithContext(ctx)
	res := db.Model(&models.CommissionLedger{}).
		Where("id = ? AND status = ?", entryID, string(ledger.StatusPending)).
		Updates(map[string]interface{}{"status": string(ledger.StatusApproved), "updated_at": s.now()})
	if res.Error != nil {
		return nil, fmt.Errorf("approve entry: %w", res.Error)
	}

	var entry models.CommissionLedger
	if err := db.First(&entry, "id = ?", entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("load entry: %w", err)
	}
	if res.RowsAffected == 0 {
		return nil, ErrEntryNotPending
	}
	return &entry, nil
}

// Entries lists a user's ledger, newest first, with totals per status.
func (s *CommissionService) Entries(ctx context.Context, userID uuid.UUID) ([]models.CommissionLedger, map[ledger.Status]decimal.Decimal, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if count == 0 {
		return nil, nil, ErrUserNotFound
	}

	var rows []models.CommissionLedger
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("load entries: %w", err)
	}
	return rows, ledger.Totals(toLedgerEntries(rows)), nil
}
