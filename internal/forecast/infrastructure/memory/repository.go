package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	forecast "payoutflow/internal/forecast/domain"
)

// SettlementRepository is an in-memory settlement store mirroring the
// Postgres contract.
type SettlementRepository struct {
	mu   sync.RWMutex
	rows []*forecast.SettlementPeriod
}

// NewSettlementRepository constructs a repository.
func NewSettlementRepository() *SettlementRepository {
	return &SettlementRepository{}
}

// Seed inserts rows without upsert semantics; test convenience.
func (r *SettlementRepository) Seed(rows ...*forecast.SettlementPeriod) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		if row != nil {
			r.rows = append(r.rows, row.Clone())
		}
	}
}

// FindBySettlementID returns the parent (estimated or confirmed) row.
func (r *SettlementRepository) FindBySettlementID(_ context.Context, accountID, settlementID string) (*forecast.SettlementPeriod, error) {
	if accountID == "" {
		return nil, forecast.ErrEmptyAccountID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var confirmed *forecast.SettlementPeriod
	for _, row := range r.rows {
		if row.AccountID != accountID || row.SettlementID != settlementID {
			continue
		}
		switch row.Status {
		case forecast.StatusEstimated:
			return row.Clone(), nil
		case forecast.StatusConfirmed:
			confirmed = row
		}
	}
	return confirmed.Clone(), nil
}

// ListOpen returns estimated rows, newest period end first, open-ended
// periods first.
func (r *SettlementRepository) ListOpen(_ context.Context, accountID string) ([]*forecast.SettlementPeriod, error) {
	if accountID == "" {
		return nil, forecast.ErrEmptyAccountID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*forecast.SettlementPeriod
	for _, row := range r.rows {
		if row.AccountID == accountID && row.Status == forecast.StatusEstimated {
			result = append(result, row.Clone())
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.PeriodEnd.IsZero() != b.PeriodEnd.IsZero() {
			return a.PeriodEnd.IsZero()
		}
		if !a.PeriodEnd.Equal(b.PeriodEnd) {
			return a.PeriodEnd.After(b.PeriodEnd)
		}
		return a.PeriodStart.After(b.PeriodStart)
	})
	return result, nil
}

// ListConfirmedClosedSince returns confirmed rows closing on or after the
// day, newest first.
func (r *SettlementRepository) ListConfirmedClosedSince(_ context.Context, accountID string, since time.Time) ([]*forecast.SettlementPeriod, error) {
	if accountID == "" {
		return nil, forecast.ErrEmptyAccountID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*forecast.SettlementPeriod
	for _, row := range r.rows {
		if row.AccountID != accountID || row.Status != forecast.StatusConfirmed {
			continue
		}
		if row.PeriodEnd.IsZero() || row.PeriodEnd.Before(since) {
			continue
		}
		result = append(result, row.Clone())
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PeriodEnd.After(result[j].PeriodEnd)
	})
	return result, nil
}

// FindForecastOnDate returns the forecast row for the day, preferring a
// live forecasted row over a rolled-over one.
func (r *SettlementRepository) FindForecastOnDate(_ context.Context, accountID string, day time.Time) (*forecast.SettlementPeriod, error) {
	if accountID == "" {
		return nil, forecast.ErrEmptyAccountID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rolled *forecast.SettlementPeriod
	for _, row := range r.rows {
		if row.AccountID != accountID || !forecast.SameDay(row.PeriodStart, day) {
			continue
		}
		switch row.Status {
		case forecast.StatusForecasted:
			return row.Clone(), nil
		case forecast.StatusRolledOver:
			rolled = row
		}
	}
	return rolled.Clone(), nil
}

// ListForecastsBetween returns forecast rows in the inclusive range ordered
// by day ascending.
func (r *SettlementRepository) ListForecastsBetween(_ context.Context, accountID string, from, to time.Time) ([]*forecast.SettlementPeriod, error) {
	if accountID == "" {
		return nil, forecast.ErrEmptyAccountID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*forecast.SettlementPeriod
	for _, row := range r.rows {
		if row.AccountID != accountID {
			continue
		}
		if row.Status != forecast.StatusForecasted && row.Status != forecast.StatusRolledOver {
			continue
		}
		if row.PeriodStart.Before(from) || row.PeriodStart.After(to) {
			continue
		}
		result = append(result, row.Clone())
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PeriodStart.Before(result[j].PeriodStart)
	})
	return result, nil
}

// ReplaceAccountForecasts swaps the account's forecasted set.
func (r *SettlementRepository) ReplaceAccountForecasts(_ context.Context, accountID string, rows []*forecast.SettlementPeriod) error {
	if accountID == "" {
		return forecast.ErrEmptyAccountID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, row := range r.rows {
		if row.AccountID == accountID && row.Status == forecast.StatusForecasted {
			continue
		}
		kept = append(kept, row)
	}
	r.rows = kept
	for _, row := range rows {
		if row != nil {
			r.rows = append(r.rows, row.Clone())
		}
	}
	return nil
}

// ReplaceForecastRange swaps one settlement's forecasted rows in the range.
func (r *SettlementRepository) ReplaceForecastRange(_ context.Context, accountID, settlementID string, from, to time.Time, rows []*forecast.SettlementPeriod) error {
	if accountID == "" {
		return forecast.ErrEmptyAccountID
	}
	if settlementID == "" {
		return forecast.ErrEmptySettlementID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, row := range r.rows {
		drop := row.AccountID == accountID &&
			row.SettlementID == settlementID &&
			row.Status == forecast.StatusForecasted &&
			!row.PeriodStart.Before(from) && !row.PeriodStart.After(to)
		if !drop {
			kept = append(kept, row)
		}
	}
	r.rows = kept
	for _, row := range rows {
		if row != nil {
			r.rows = append(r.rows, row.Clone())
		}
	}
	return nil
}

// ApplyRollover folds the carry forward, guarding against double-carry.
// Rows are keyed by settlement id; a sibling settlement's row on the same
// day is never touched.
func (r *SettlementRepository) ApplyRollover(_ context.Context, accountID, sourceSettlementID, targetSettlementID string, fromDay, toDay time.Time, carry forecast.Money) (bool, error) {
	if accountID == "" {
		return false, forecast.ErrEmptyAccountID
	}
	if sourceSettlementID == "" || targetSettlementID == "" {
		return false, forecast.ErrEmptySettlementID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var source, target *forecast.SettlementPeriod
	for _, row := range r.rows {
		if row.AccountID != accountID || row.Status != forecast.StatusForecasted {
			continue
		}
		if row.SettlementID == sourceSettlementID && forecast.SameDay(row.PeriodStart, fromDay) {
			source = row
		}
		if row.SettlementID == targetSettlementID && forecast.SameDay(row.PeriodStart, toDay) {
			target = row
		}
	}
	if source == nil {
		return false, nil
	}
	if target == nil {
		return false, forecast.ErrStaleRolloverTarget
	}
	source.Status = forecast.StatusRolledOver
	target.TotalAmount += carry
	return true, nil
}

// Save upserts keyed by account, settlement, period start and status.
func (r *SettlementRepository) Save(_ context.Context, period *forecast.SettlementPeriod) error {
	if period == nil {
		return forecast.ErrNilSettlement
	}
	if period.AccountID == "" {
		return forecast.ErrEmptyAccountID
	}
	if period.SettlementID == "" {
		return forecast.ErrEmptySettlementID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, row := range r.rows {
		if row.AccountID == period.AccountID &&
			row.SettlementID == period.SettlementID &&
			forecast.SameDay(row.PeriodStart, period.PeriodStart) &&
			row.Status == period.Status {
			r.rows[i] = period.Clone()
			return nil
		}
	}
	r.rows = append(r.rows, period.Clone())
	return nil
}

// ListAccountIDs returns distinct account ids.
func (r *SettlementRepository) ListAccountIDs(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]struct{})
	var result []string
	for _, row := range r.rows {
		if _, ok := seen[row.AccountID]; ok {
			continue
		}
		seen[row.AccountID] = struct{}{}
		result = append(result, row.AccountID)
	}
	sort.Strings(result)
	return result, nil
}
