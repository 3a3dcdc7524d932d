package services

import (
	"github.com/lowtherloudspeakers/listening-circle/internal/config"
	"github.com/lowtherloudspeakers/listening-circle/internal/dto"
	"github.com/lowtherloudspeakers/listening-circle/internal/ledger"
	"github.com/lowtherloudspeakers/listening-circle/internal/models"
)

func ToUserResponse(cfg *config.Config, u *models.User) dto.UserResponse {
	resp := dto.UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.DisplayName(),
		Role:         u.Role,
		Tier:         u.Tier,
		RefCode:      u.RefCode,
		IsApproved:   u.IsApproved,
		ApprovedAt:   u.ApprovedAt,
		AmbassadorID: u.AmbassadorID,
		CreatedAt:    u.CreatedAt,
	}
	if u.RefCode != nil && cfg != nil {
		resp.ReferralLink = cfg.ReferralLink(*u.RefCode)
	}
	return resp
}

func toLedgerEntry(row models.CommissionLedger) ledger.Entry {
	return ledger.Entry{
		ID:        row.ID,
		UserID:    row.UserID,
		OrderID:   row.OrderID,
		Amount:    row.Amount,
		Currency:  row.Currency,
		Status:    ledger.Status(row.Status),
		Reason:    row.Reason,
		CreatedAt: row.CreatedAt,
	}
}

func toLedgerEntries(rows []models.CommissionLedger) []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, toLedgerEntry(r))
	}
	return entries
}

func ToLedgerEntryResponse(row models.CommissionLedger) dto.LedgerEntryResponse {
	return dto.LedgerEntryResponse{
		ID:        row.ID,
		OrderID:   row.OrderID,
		Amount:    dto.Money(row.Amount),
		Currency:  row.Currency,
		Status:    row.Status,
		Reason:    row.Reason,
		CreatedAt: row.CreatedAt,
	}
}
