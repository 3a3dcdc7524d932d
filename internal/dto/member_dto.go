package dto

import "github.com/google/uuid"

type UserStatsResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Clicks   int64     `json:"clicks"`
	Orders   int64     `json:"orders"`
	Sales    string    `json:"total_sales"`
	Earnings string    `json:"earnings"`
	Pending  string    `json:"pending"`
	Currency string    `json:"currency"`
}

type AdvocateResponse struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	RefCode    *string   `json:"ref_code"`
	TotalSales string    `json:"total_sales"`
	Earnings   string    `json:"earnings"`
	// UplineCommission is derived at read time and is not backed by ledger entries.
	UplineCommission string `json:"upline_commission"`
	Projected        bool   `json:"projected"`
}

type AdvocatesResponse struct {
	Advocates  []AdvocateResponse `json:"advocates"`
	UplineRate string             `json:"upline_rate"`
	Total      string             `json:"upline_total"`
}
