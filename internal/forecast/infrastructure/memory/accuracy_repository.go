package memory

import (
	"context"
	"sort"
	"sync"

	forecast "payoutflow/internal/forecast/domain"
)

// AccuracyRepository is an in-memory accuracy store keyed by settlement id.
type AccuracyRepository struct {
	mu      sync.RWMutex
	records map[string]*forecast.ForecastAccuracyRecord
}

// NewAccuracyRepository constructs a repository.
func NewAccuracyRepository() *AccuracyRepository {
	return &AccuracyRepository{records: make(map[string]*forecast.ForecastAccuracyRecord)}
}

// Upsert stores the record, replacing any prior run for the settlement.
func (r *AccuracyRepository) Upsert(_ context.Context, record *forecast.ForecastAccuracyRecord) error {
	if record == nil {
		return forecast.ErrNilSettlement
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copy := *record
	copy.ForecastedByDay = append([]forecast.DayAmount(nil), record.ForecastedByDay...)
	r.records[record.SettlementID] = &copy
	return nil
}

// FindBySettlementID returns the record or nil.
func (r *AccuracyRepository) FindBySettlementID(_ context.Context, settlementID string) (*forecast.ForecastAccuracyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[settlementID]
	if !ok {
		return nil, nil
	}
	copy := *record
	copy.ForecastedByDay = append([]forecast.DayAmount(nil), record.ForecastedByDay...)
	return &copy, nil
}

// ListByAccount returns the account's records ordered by period end, newest
// first.
func (r *AccuracyRepository) ListByAccount(_ context.Context, accountID string) ([]*forecast.ForecastAccuracyRecord, error) {
	if accountID == "" {
		return nil, forecast.ErrEmptyAccountID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*forecast.ForecastAccuracyRecord
	for _, record := range r.records {
		if record.AccountID != accountID {
			continue
		}
		copy := *record
		copy.ForecastedByDay = append([]forecast.DayAmount(nil), record.ForecastedByDay...)
		result = append(result, &copy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PeriodEnd.After(result[j].PeriodEnd)
	})
	return result, nil
}
