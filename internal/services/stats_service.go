package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/ledger"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type StatsService struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewStatsService(db *gorm.DB, cfg *config.Config) *StatsService {
	return &StatsService{db: db, cfg: cfg}
}

func (s *StatsService) UserStats(ctx context.Context, userID uuid.UUID) (*dto.UserStatsResponse, error) {
	var user models.User
	err := s.db.WithContext(ctx).Select("id").First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	aggs, err := loadAggregates(ctx, s.db, []uuid.UUID{userID})
	if err != nil {
		return nil, err
	}
	a := aggs[userID]
	return &dto.UserStatsResponse{
		UserID:   userID,
		Clicks:   a.Clicks,
		Orders:   a.Orders,
		Sales:    dto.Money(a.Sales),
		Earnings: dto.Money(a.Earnings),
		Pending:  dto.Money(a.Pending),
		Currency: s.cfg.DefaultCurrency,
	}, nil
}

// Advocates lists the approved downline of an ambassador. The upline commission is a
// projection from sales and UPLINE_RATE; nothing is written to the ledger for it.
func (s *StatsService) Advocates(ctx context.Context, ambassadorID uuid.UUID) (*dto.AdvocatesResponse, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", ambassadorID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if count == 0 {
		return nil, ErrUserNotFound
	}

	var advocates []models.User
	if err := db.Where("ambassador_id = ? AND is_approved = true", ambassadorID).
		Order("created_at ASC").
		Find(&advocates).Error; err != nil {
		return nil, fmt.Errorf("list advocates: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(advocates))
	for _, a := range advocates {
		ids = append(ids, a.ID)
	}
	aggs, err := loadAggregates(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	resp := &dto.AdvocatesResponse{
		Advocates:  make([]dto.AdvocateResponse, 0, len(advocates)),
		UplineRate: s.cfg.UplineRate.String(),
	}
	total := decimal.Zero
	for i := range advocates {
		u := &advocates[i]
		a := aggs[u.ID]
		projected := UplineProjection(a.Sales, s.cfg.UplineRate)
		total = total.Add(projected)
		resp.Advocates = append(resp.Advocates, dto.AdvocateResponse{
			ID:               u.ID,
			Email:            u.Email,
			FullName:         u.DisplayName(),
			RefCode:          u.RefCode,
			TotalSales:       dto.Money(a.Sales),
			Earnings:         dto.Money(a.Earnings),
			UplineCommission: dto.Money(projected),
			Projected:        true,
		})
	}
	resp.Total = dto.Money(total)
	return resp, nil
}

// UplineProjection is sales * rate rounded half away from zero to currency scale.
func UplineProjection(sales, rate decimal.Decimal) decimal.Decimal {
	return sales.Mul(rate).Round(ledger.CurrencyScale)
}
