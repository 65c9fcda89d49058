package forecast

import (
	"time"

	"github.com/google/uuid"
)

// DailyDraw is a user-recorded withdrawal against an open settlement.
// Draws are immutable once created and never deleted; the running total for
// a settlement is always recomputed by summation.
type DailyDraw struct {
	ID           string
	AccountID    string
	SettlementID string
	DrawDate     time.Time
	Amount       Money
	Notes        string
	CreatedAt    time.Time
}

// NewDailyDraw constructs a draw with a fresh identifier.
func NewDailyDraw(accountID, settlementID string, drawDate time.Time, amount Money, notes string) (*DailyDraw, error) {
	if accountID == "" {
		return nil, ErrEmptyAccountID
	}
	if settlementID == "" {
		return nil, ErrEmptySettlementID
	}
	if drawDate.IsZero() {
		return nil, ErrInvalidDrawDate
	}
	if amount <= 0 {
		return nil, ErrNonPositiveAmount
	}
	return &DailyDraw{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		SettlementID: settlementID,
		DrawDate:     DateOnly(drawDate, time.UTC),
		Amount:       amount,
		Notes:        notes,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// SumDraws totals a draw ledger.
func SumDraws(draws []*DailyDraw) Money {
	var total Money
	for _, draw := range draws {
		if draw != nil {
			total += draw.Amount
		}
	}
	return total
}
