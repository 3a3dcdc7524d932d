// Package ledger plans commission settlements against a user's pending ledger entries.
//
// Settle is pure: it never touches storage. Callers load the pending entries inside a
// transaction, run Settle, and apply the returned plan before committing.
package ledger

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusPaid     Status = "PAID"
)

// CurrencyScale is the number of decimal places a settlement amount may carry.
const CurrencyScale = 2

var (
	ErrInvalidAmount  = errors.New("payment amount must be greater than zero with at most two decimal places")
	ErrNothingToPay   = errors.New("no pending commissions found")
	ErrExceedsPending = errors.New("payment amount exceeds pending commissions")
)

type Entry struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	OrderID   uuid.UUID
	Amount    decimal.Decimal
	Currency  string
	Status    Status
	Reason    string
	CreatedAt time.Time
}

type Action string

const (
	ActionFullyPaid     Action = "fully_paid"
	ActionPartiallyPaid Action = "partially_paid"
)

// Update is an in-place change to an existing entry.
type Update struct {
	ID     uuid.UUID
	Amount decimal.Decimal
	Status Status
}

// Outcome describes what happened to one touched entry.
type Outcome struct {
	EntryID         uuid.UUID
	Action          Action
	PaidAmount      decimal.Decimal
	OriginalAmount  decimal.Decimal
	RemainingAmount decimal.Decimal
}

// Plan is the set of mutations a settlement needs. Created entries carry a zero ID;
// the persistence layer assigns one.
type Plan struct {
	Requested decimal.Decimal
	Updates   []Update
	Created   []Entry
	Outcomes  []Outcome
}

// PendingTotal sums the amounts of the PENDING entries in entries.
func PendingTotal(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.Status == StatusPending {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// ValidateAmount rejects non-positive amounts and amounts finer than the currency scale.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(CurrencyScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// Settle consumes pending entries oldest first until amount is exhausted. The entry that
// straddles the boundary is split: it stays PENDING with the unpaid remainder and a new
// PAID entry is planned for the paid part. An amount that lands exactly on an entry
// boundary marks that entry PAID in place.
//
// Entries with the same CreatedAt keep their input order, so callers should pass them
// already sorted by (created_at, id) when they need a fully deterministic plan.
func Settle(pending []Entry, amount decimal.Decimal) (Plan, error) {
	if err := ValidateAmount(amount); err != nil {
		return Plan{}, err
	}

	queue := make([]Entry, 0, len(pending))
	for _, e := range pending {
		if e.Status == StatusPending && e.Amount.IsPositive() {
			queue = append(queue, e)
		}
	}
	if len(queue) == 0 {
		return Plan{}, ErrNothingToPay
	}
	if amount.GreaterThan(PendingTotal(queue)) {
		return Plan{}, ErrExceedsPending
	}

	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].CreatedAt.Before(queue[j].CreatedAt)
	})

	plan := Plan{Requested: amount}
	remaining := amount
	for _, e := range queue {
		if !remaining.IsPositive() {
			break
		}

		if remaining.GreaterThanOrEqual(e.Amount) {
			plan.Updates = append(plan.Updates, Update{ID: e.ID, Amount: e.Amount, Status: StatusPaid})
			plan.Outcomes = append(plan.Outcomes, Outcome{
				EntryID:         e.ID,
				Action:          ActionFullyPaid,
				PaidAmount:      e.Amount,
				OriginalAmount:  e.Amount,
				RemainingAmount: decimal.Zero,
			})
			remaining = remaining.Sub(e.Amount)
			continue
		}

		left := e.Amount.Sub(remaining)
		plan.Updates = append(plan.Updates, Update{ID: e.ID, Amount: left, Status: StatusPending})
		plan.Created = append(plan.Created, Entry{
			UserID:   e.UserID,
			OrderID:  e.OrderID,
			Amount:   remaining,
			Currency: e.Currency,
			Status:   StatusPaid,
			Reason:   e.Reason,
		})
		plan.Outcomes = append(plan.Outcomes, Outcome{
			EntryID:         e.ID,
			Action:          ActionPartiallyPaid,
			PaidAmount:      remaining,
			OriginalAmount:  e.Amount,
			RemainingAmount: left,
		})
		remaining = decimal.Zero
	}

	return plan, nil
}

// Apply returns a copy of entries with plan applied, new entries appended. It is the
// in-memory mirror of what the persistence adapter writes.
func Apply(entries []Entry, plan Plan) []Entry {
	byID := make(map[uuid.UUID]Update, len(plan.Updates))
	for _, u := range plan.Updates {
		byID[u.ID] = u
	}

	out := make([]Entry, 0, len(entries)+len(plan.Created))
	for _, e := range entries {
		if u, ok := byID[e.ID]; ok {
			e.Amount = u.Amount
			e.Status = u.Status
		}
		out = append(out, e)
	}
	return append(out, plan.Created...)
}

// Totals sums entry amounts per status.
func Totals(entries []Entry) map[Status]decimal.Decimal {
	totals := map[Status]decimal.Decimal{
		StatusPending:  decimal.Zero,
		StatusApproved: decimal.Zero,
		StatusPaid:     decimal.Zero,
	}
	for _, e := range entries {
		totals[e.Status] = totals[e.Status].Add(e.Amount)
	}
	return totals
}
