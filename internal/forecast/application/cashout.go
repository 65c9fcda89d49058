package application

import (
	"context"
	"errors"
	"log"
	"time"

	forecast "payoutflow/internal/forecast/domain"
	"payoutflow/internal/observability/metrics"
)

// CashOutResult reports either an inferred cash-out or, when settlement
// boundaries are contiguous, the current true available balance.
type CashOutResult struct {
	CashOutDetected  bool
	CashOutDate      time.Time
	Amount           forecast.Money
	AvailableBalance forecast.Money
}

// CashOutDetector infers implicit full withdrawals from a discontinuity
// between the two most recent open settlements' boundaries.
type CashOutDetector struct {
	settlements forecast.SettlementRepository
	draws       forecast.DrawRepository
	publisher   EventPublisher
	clock       Clock
	metrics     *metrics.ForecastMetrics
	logger      *log.Logger
}

// NewCashOutDetector constructs the detector.
func NewCashOutDetector(
	settlements forecast.SettlementRepository,
	draws forecast.DrawRepository,
	publisher EventPublisher,
	clock Clock,
	m *metrics.ForecastMetrics,
	logger *log.Logger,
) (*CashOutDetector, error) {
	if settlements == nil {
		return nil, errors.New("cashout detector: nil settlement repository")
	}
	if draws == nil {
		return nil, errors.New("cashout detector: nil draw repository")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &CashOutDetector{
		settlements: settlements,
		draws:       draws,
		publisher:   publisher,
		clock:       clock,
		metrics:     m,
		logger:      logger,
	}, nil
}

// Detect inspects the two most recent open settlements. A newer period
// starting after the day that follows the older period's end implies the
// seller cashed out in between, outside the normal draw flow; the inferred
// amount is the older settlement's beginning balance. Detection is
// idempotent: the synthetic draw is recorded only when no draw already
// exists for that account on that date.
func (d *CashOutDetector) Detect(ctx context.Context, accountID string) (CashOutResult, error) {
	if accountID == "" {
		return CashOutResult{}, forecast.ErrEmptyAccountID
	}
	open, err := d.settlements.ListOpen(ctx, accountID)
	if err != nil {
		return CashOutResult{}, err
	}
	if len(open) == 0 {
		return CashOutResult{}, forecast.ErrSettlementNotFound
	}

	if len(open) >= 2 {
		newer, older := open[0], open[1]
		if !older.PeriodEnd.IsZero() && !newer.PeriodStart.IsZero() &&
			newer.PeriodStart.After(older.PeriodEnd.AddDate(0, 0, 1)) {
			return d.recordCashOut(ctx, accountID, older)
		}
	}

	return d.availableBalance(ctx, accountID, open[0])
}

func (d *CashOutDetector) recordCashOut(ctx context.Context, accountID string, older *forecast.SettlementPeriod) (CashOutResult, error) {
	cashOutDate := forecast.DateOnly(older.PeriodEnd.AddDate(0, 0, 1), time.UTC)
	amount := older.OpeningBalance()
	result := CashOutResult{CashOutDetected: true, CashOutDate: cashOutDate, Amount: amount}

	exists, err := d.draws.ExistsOnDate(ctx, accountID, cashOutDate)
	if err != nil {
		return CashOutResult{}, err
	}
	if exists {
		return result, nil
	}
	if amount <= 0 {
		// Nothing withdrawable to infer; report the gap without a ledger entry.
		return result, nil
	}

	draw, err := forecast.NewDailyDraw(accountID, older.SettlementID, cashOutDate, amount, "inferred full cash-out")
	if err != nil {
		return CashOutResult{}, err
	}
	if err := d.draws.Insert(ctx, draw); err != nil {
		return CashOutResult{}, err
	}
	if d.metrics != nil {
		d.metrics.CashOutsTotal.Inc()
	}
	if d.logger != nil {
		d.logger.Printf("cash-out inferred: account=%s settlement=%s date=%s amount=%s",
			accountID, older.SettlementID, cashOutDate.Format("2006-01-02"), amount.Decimal())
	}
	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, CashOutDetected{
			AccountID:    accountID,
			SettlementID: older.SettlementID,
			CashOutDate:  cashOutDate,
			AmountCents:  int64(amount),
			OccurredAt:   d.clock.Now(),
		}); err != nil {
			return CashOutResult{}, err
		}
	}
	return result, nil
}

func (d *CashOutDetector) availableBalance(ctx context.Context, accountID string, current *forecast.SettlementPeriod) (CashOutResult, error) {
	if current.PeriodStart.IsZero() {
		return CashOutResult{}, forecast.ErrInvalidPeriodBounds
	}
	drawn, err := d.draws.SumSince(ctx, accountID, current.PeriodStart)
	if err != nil {
		return CashOutResult{}, err
	}
	available := current.OpeningBalance() - drawn
	if available < 0 {
		available = 0
	}
	return CashOutResult{AvailableBalance: available}, nil
}
