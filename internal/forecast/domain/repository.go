package forecast

import (
	"context"
	"time"
)

// SettlementRepository persists settlement periods and their per-day
// forecast rows.
type SettlementRepository interface {
	FindBySettlementID(ctx context.Context, accountID, settlementID string) (*SettlementPeriod, error)
	// ListOpen returns the account's open (estimated) settlements ordered by
	// period end descending, open-ended periods first.
	ListOpen(ctx context.Context, accountID string) ([]*SettlementPeriod, error)
	// ListConfirmedClosedSince returns confirmed settlements whose period end
	// falls on or after the given day.
	ListConfirmedClosedSince(ctx context.Context, accountID string, since time.Time) ([]*SettlementPeriod, error)
	// FindForecastOnDate returns the forecasted (or rolled-over) row for the
	// calendar day, or nil.
	FindForecastOnDate(ctx context.Context, accountID string, day time.Time) (*SettlementPeriod, error)
	// ListForecastsBetween returns forecast rows in the inclusive day range,
	// ordered by day ascending.
	ListForecastsBetween(ctx context.Context, accountID string, from, to time.Time) ([]*SettlementPeriod, error)
	// ReplaceAccountForecasts atomically deletes every forecasted row for the
	// account and inserts the fresh set.
	ReplaceAccountForecasts(ctx context.Context, accountID string, rows []*SettlementPeriod) error
	// ReplaceForecastRange atomically swaps the settlement's forecasted rows
	// within the inclusive day range.
	ReplaceForecastRange(ctx context.Context, accountID, settlementID string, from, to time.Time, rows []*SettlementPeriod) error
	// ApplyRollover folds the carry into the target settlement's row on the
	// target day and marks the source settlement's row on the source day
	// rolled over, in one transaction. Rows are keyed by settlement id so a
	// sibling settlement's row on the same day is never touched. Returns
	// false when the source row was already rolled over.
	ApplyRollover(ctx context.Context, accountID, sourceSettlementID, targetSettlementID string, fromDay, toDay time.Time, carry Money) (bool, error)
	// Save upserts a settlement period keyed by account, settlement id,
	// period start and status.
	Save(ctx context.Context, period *SettlementPeriod) error
	// ListAccountIDs returns every account with at least one settlement row.
	ListAccountIDs(ctx context.Context) ([]string, error)
}

// DrawRepository persists the immutable draw ledger.
type DrawRepository interface {
	Insert(ctx context.Context, draw *DailyDraw) error
	ListBySettlement(ctx context.Context, accountID, settlementID string) ([]*DailyDraw, error)
	SumBySettlement(ctx context.Context, accountID, settlementID string) (Money, error)
	SumSince(ctx context.Context, accountID string, since time.Time) (Money, error)
	ExistsOnDate(ctx context.Context, accountID string, day time.Time) (bool, error)
}

// AccuracyRepository persists forecast accuracy records, one per confirmed
// settlement.
type AccuracyRepository interface {
	Upsert(ctx context.Context, record *ForecastAccuracyRecord) error
	FindBySettlementID(ctx context.Context, settlementID string) (*ForecastAccuracyRecord, error)
	ListByAccount(ctx context.Context, accountID string) ([]*ForecastAccuracyRecord, error)
}
