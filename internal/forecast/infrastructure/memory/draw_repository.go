package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	forecast "payoutflow/internal/forecast/domain"
)

// DrawRepository is an in-memory daily draw ledger.
type DrawRepository struct {
	mu    sync.RWMutex
	draws []*forecast.DailyDraw
}

// NewDrawRepository constructs a repository.
func NewDrawRepository() *DrawRepository {
	return &DrawRepository{}
}

// Insert appends the draw.
func (r *DrawRepository) Insert(_ context.Context, draw *forecast.DailyDraw) error {
	if draw == nil {
		return forecast.ErrNonPositiveAmount
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *draw
	r.draws = append(r.draws, &copy)
	return nil
}

// ListBySettlement returns the settlement's draws ordered by draw date.
func (r *DrawRepository) ListBySettlement(_ context.Context, accountID, settlementID string) ([]*forecast.DailyDraw, error) {
	if accountID == "" {
		return nil, forecast.ErrEmptyAccountID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*forecast.DailyDraw
	for _, d := range r.draws {
		if d.AccountID == accountID && d.SettlementID == settlementID {
			copy := *d
			result = append(result, &copy)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DrawDate.Before(result[j].DrawDate)
	})
	return result, nil
}

// SumBySettlement totals the settlement's draws.
func (r *DrawRepository) SumBySettlement(_ context.Context, accountID, settlementID string) (forecast.Money, error) {
	if accountID == "" {
		return 0, forecast.ErrEmptyAccountID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total forecast.Money
	for _, d := range r.draws {
		if d.AccountID == accountID && d.SettlementID == settlementID {
			total += d.Amount
		}
	}
	return total, nil
}

// SumSince totals the account's draws taken on or after the day.
func (r *DrawRepository) SumSince(_ context.Context, accountID string, since time.Time) (forecast.Money, error) {
	if accountID == "" {
		return 0, forecast.ErrEmptyAccountID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total forecast.Money
	for _, d := range r.draws {
		if d.AccountID == accountID && !d.DrawDate.Before(since) {
			total += d.Amount
		}
	}
	return total, nil
}

// ExistsOnDate reports whether the account drew anything on the day.
func (r *DrawRepository) ExistsOnDate(_ context.Context, accountID string, day time.Time) (bool, error) {
	if accountID == "" {
		return false, forecast.ErrEmptyAccountID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.draws {
		if d.AccountID == accountID && forecast.SameDay(d.DrawDate, day) {
			return true, nil
		}
	}
	return false, nil
}
