package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AdminUserResponse struct {
	UserResponse
	Clicks     int64  `json:"clicks"`
	Orders     int64  `json:"orders"`
	TotalSales string `json:"total_sales"`
	Earnings   string `json:"earnings"`
}

type ListUsersResponse struct {
	Users  []AdminUserResponse `json:"users"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type SetTierRequest struct {
	Tier string `json:"tier" validate:"required,oneof=ADVOCATE AMBASSADOR"`
}

// SetAmbassadorRequest clears the upline when AmbassadorID is null.
type SetAmbassadorRequest struct {
	AmbassadorID *uuid.UUID `json:"ambassador_id"`
}

// PayCommissionRequest accepts the amount as a JSON number or string; it is never
// decoded through float64.
type PayCommissionRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type SettledEntry struct {
	EntryID         uuid.UUID  `json:"entry_id"`
	Action          string     `json:"action"`
	PaidAmount      string     `json:"paid_amount"`
	OriginalAmount  string     `json:"original_amount,omitempty"`
	RemainingAmount string     `json:"remaining_amount,omitempty"`
	SplitEntryID    *uuid.UUID `json:"split_entry_id,omitempty"`
}

type PayCommissionResponse struct {
	Message   string         `json:"message"`
	UserID    uuid.UUID      `json:"user_id"`
	Requested string         `json:"requested"`
	Entries   []SettledEntry `json:"entries"`
}

type LedgerEntryResponse struct {
	ID        uuid.UUID `json:"id"`
	OrderID   uuid.UUID `json:"order_id"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

type CommissionsResponse struct {
	Entries []LedgerEntryResponse `json:"entries"`
	Totals  map[string]string     `json:"totals"`
}

// Money renders an amount at currency scale.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
