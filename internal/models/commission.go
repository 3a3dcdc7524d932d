package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is written by the storefront integration and only read here.
type Order struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	NetSubtotal decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"net_subtotal"`
	Currency    string          `gorm:"size:3;not null;default:'GBP'" json:"currency"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CommissionLedger is one commission obligation in a given status.
type CommissionLedger struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_user_status,priority:1" json:"user_id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency  string          `gorm:"size:3;not null;default:'GBP'" json:"currency"`
	Status    string          `gorm:"size:10;not null;default:'PENDING';index:idx_ledger_user_status,priority:2" json:"status"`
	Reason    string          `gorm:"type:text" json:"reason"`
	CreatedAt time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (CommissionLedger) TableName() string {
	return "commission_ledger"
}
