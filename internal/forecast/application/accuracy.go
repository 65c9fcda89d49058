package application

import (
	"context"
	"errors"
	"log"
	"time"

	forecast "payoutflow/internal/forecast/domain"
	"payoutflow/internal/observability/metrics"
)

// EventPublisher emits domain events through the outbox.
type EventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// AccuracyTracker scores confirmed settlements against the forecast chain
// that led up to their closure.
type AccuracyTracker struct {
	settlements  forecast.SettlementRepository
	accuracy     forecast.AccuracyRepository
	publisher    EventPublisher
	clock        Clock
	lookbackDays int
	metrics      *metrics.ForecastMetrics
	logger       *log.Logger
}

// NewAccuracyTracker constructs the tracker.
func NewAccuracyTracker(
	settlements forecast.SettlementRepository,
	accuracy forecast.AccuracyRepository,
	publisher EventPublisher,
	clock Clock,
	lookbackDays int,
	m *metrics.ForecastMetrics,
	logger *log.Logger,
) (*AccuracyTracker, error) {
	if settlements == nil {
		return nil, errors.New("accuracy tracker: nil settlement repository")
	}
	if accuracy == nil {
		return nil, errors.New("accuracy tracker: nil accuracy repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	return &AccuracyTracker{
		settlements:  settlements,
		accuracy:     accuracy,
		publisher:    publisher,
		clock:        clock,
		lookbackDays: lookbackDays,
		metrics:      m,
		logger:       logger,
	}, nil
}

// Track upserts the accuracy record for a confirmed settlement. Returns
// ErrNoForecastToCompare when no forecast chain exists; callers treat that
// as informational, never as a failure.
func (t *AccuracyTracker) Track(ctx context.Context, confirmed *forecast.SettlementPeriod) error {
	if confirmed == nil {
		return forecast.ErrNilSettlement
	}
	if err := confirmed.ValidateBounds(); err != nil {
		return err
	}

	closeDate := forecast.DateOnly(confirmed.PeriodEnd, time.UTC)
	from := closeDate.AddDate(0, 0, -t.lookbackDays)
	to := closeDate.AddDate(0, 0, -1)

	rows, err := t.settlements.ListForecastsBetween(ctx, confirmed.AccountID, from, to)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return forecast.ErrNoForecastToCompare
	}

	chain := make([]forecast.DayAmount, 0, len(rows))
	for _, row := range rows {
		chain = append(chain, forecast.DayAmount{Date: row.PeriodStart, Amount: row.TotalAmount})
	}

	record, err := forecast.NewAccuracyRecord(confirmed, chain)
	if err != nil {
		return err
	}
	record.UpdatedAt = t.clock.Now()
	if err := t.accuracy.Upsert(ctx, record); err != nil {
		return err
	}

	if t.metrics != nil {
		t.metrics.AccuracyAbsPct.Observe(record.DifferencePercentage)
	}
	if t.logger != nil {
		t.logger.Printf("forecast accuracy tracked: account=%s settlement=%s actual=%s forecasted=%s diff=%s pct=%.2f",
			confirmed.AccountID, confirmed.SettlementID,
			record.ActualAmount.Decimal(), record.ForecastedAmount.Decimal(),
			record.DifferenceAmount.Decimal(), record.DifferencePercentage)
	}
	if t.publisher != nil {
		return t.publisher.Publish(ctx, ForecastAccuracyTracked{
			AccountID:       confirmed.AccountID,
			SettlementID:    confirmed.SettlementID,
			DifferenceCents: int64(record.DifferenceAmount),
			DifferencePct:   record.DifferencePercentage,
			OccurredAt:      t.clock.Now(),
		})
	}
	return nil
}
