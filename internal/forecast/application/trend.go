package application

import (
	"context"

	forecast "payoutflow/internal/forecast/domain"
)

// TrendEstimate is a longer-horizon point estimate plus confidence bounds.
// The engine treats the figures as opaque numbers; it never re-derives them.
type TrendEstimate struct {
	Amount     forecast.Money
	LowerBound forecast.Money
	UpperBound forecast.Money
	Horizon    int
}

// TrendProvider seeds projections beyond the currently open settlement.
type TrendProvider interface {
	Estimate(ctx context.Context, accountID string, horizonDays int) (TrendEstimate, error)
}
