package application

import (
	"context"
	"errors"
	"log"
	"time"

	forecast "payoutflow/internal/forecast/domain"
	"payoutflow/internal/observability/metrics"
)

// SettlementLocker serializes mutations on one settlement. The reconciler
// and the synchronous draw path must never interleave on the same
// settlement; a concurrent draw recorded mid-recalculation would otherwise
// be silently lost from the cumulative-draws read.
type SettlementLocker interface {
	WithLock(ctx context.Context, accountID, settlementID string, fn func(ctx context.Context) error) error
}

// DrawService records withdrawals and recalculates the remaining
// distribution for the rest of the settlement period.
type DrawService struct {
	settlements forecast.SettlementRepository
	draws       forecast.DrawRepository
	volume      VolumeWeightReader
	locker      SettlementLocker
	publisher   EventPublisher
	clock       Clock
	cfg         Config
	metrics     *metrics.ForecastMetrics
	logger      *log.Logger
}

// NewDrawService constructs the service.
func NewDrawService(
	settlements forecast.SettlementRepository,
	draws forecast.DrawRepository,
	volume VolumeWeightReader,
	locker SettlementLocker,
	publisher EventPublisher,
	clock Clock,
	cfg Config,
	m *metrics.ForecastMetrics,
	logger *log.Logger,
) (*DrawService, error) {
	if settlements == nil {
		return nil, errors.New("draw service: nil settlement repository")
	}
	if draws == nil {
		return nil, errors.New("draw service: nil draw repository")
	}
	if locker == nil {
		return nil, errors.New("draw service: nil settlement locker")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &DrawService{
		settlements: settlements,
		draws:       draws,
		volume:      volume,
		locker:      locker,
		publisher:   publisher,
		clock:       clock,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
	}, nil
}

// RecordDraw persists a withdrawal against the open settlement and
// recalculates the remaining schedule under the settlement lock. A draw
// against a settlement that is not currently open is rejected immediately
// with ErrSettlementNotOpen.
func (s *DrawService) RecordDraw(ctx context.Context, accountID, settlementID string, amount forecast.Money, drawDate time.Time, notes string) (*forecast.DailyDraw, error) {
	draw, err := forecast.NewDailyDraw(accountID, settlementID, drawDate, amount, notes)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	err = s.locker.WithLock(ctx, accountID, settlementID, func(ctx context.Context) error {
		settlement, err := s.loadOpen(ctx, accountID, settlementID)
		if err != nil {
			return err
		}
		if err := s.draws.Insert(ctx, draw); err != nil {
			return err
		}
		return s.recalculateLocked(ctx, settlement)
	})
	s.observeRecalc(err, started)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.Printf("draw recorded: account=%s settlement=%s amount=%s date=%s",
			accountID, settlementID, amount.Decimal(), draw.DrawDate.Format("2006-01-02"))
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, DrawRecorded{
			AccountID:    accountID,
			SettlementID: settlementID,
			DrawID:       draw.ID,
			DrawDate:     draw.DrawDate,
			AmountCents:  int64(draw.Amount),
			OccurredAt:   s.clock.Now(),
		}); err != nil {
			return nil, err
		}
	}
	return draw, nil
}

// Recalculate rebuilds the remaining distribution from the current draw
// ledger. It is a pure function of that ledger, so repeated identical calls
// produce identical rows.
func (s *DrawService) Recalculate(ctx context.Context, accountID, settlementID string) error {
	if accountID == "" {
		return forecast.ErrEmptyAccountID
	}
	if settlementID == "" {
		return forecast.ErrEmptySettlementID
	}
	return s.locker.WithLock(ctx, accountID, settlementID, func(ctx context.Context) error {
		settlement, err := s.loadOpen(ctx, accountID, settlementID)
		if err != nil {
			return err
		}
		return s.recalculateLocked(ctx, settlement)
	})
}

func (s *DrawService) loadOpen(ctx context.Context, accountID, settlementID string) (*forecast.SettlementPeriod, error) {
	settlement, err := s.settlements.FindBySettlementID(ctx, accountID, settlementID)
	if err != nil {
		return nil, err
	}
	if settlement == nil || !settlement.IsOpen() {
		return nil, forecast.ErrSettlementNotOpen
	}
	if err := settlement.ValidateBounds(); err != nil {
		return nil, err
	}
	return settlement, nil
}

// recalculateLocked re-spreads the undrawn remainder across today and the
// rest of the period. Days before today keep their committed rows; past
// "available" figures are historical projections, not promises.
func (s *DrawService) recalculateLocked(ctx context.Context, settlement *forecast.SettlementPeriod) error {
	loc, err := s.cfg.Location()
	if err != nil {
		return err
	}
	today := forecast.DateOnly(s.clock.Now(), loc)
	from := settlement.PeriodStart
	if today.After(from) {
		from = today
	}
	if from.After(settlement.PeriodEnd) {
		// Period exhausted; nothing left to redistribute.
		return nil
	}

	drawn, err := s.draws.SumBySettlement(ctx, settlement.AccountID, settlement.SettlementID)
	if err != nil {
		return err
	}

	var weights []forecast.DayVolume
	if s.volume != nil {
		weights, err = s.volume.ListDailyVolume(ctx, settlement.AccountID, from, settlement.PeriodEnd)
		if err != nil {
			if s.logger != nil {
				s.logger.Printf("volume weights unavailable, equal split: account=%s err=%v", settlement.AccountID, err)
			}
			weights = nil
		}
	}

	slices, err := forecast.DistributeDaily(settlement.TotalAmount, from, settlement.PeriodEnd, drawn, weights)
	if err != nil {
		return err
	}
	rows := forecast.ForecastRows(settlement, slices)
	return s.settlements.ReplaceForecastRange(ctx, settlement.AccountID, settlement.SettlementID, from, settlement.PeriodEnd, rows)
}

func (s *DrawService) observeRecalc(err error, started time.Time) {
	if s.metrics == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	s.metrics.DrawRecalcTotal.WithLabelValues(result).Inc()
	s.metrics.DrawRecalcLatency.Observe(time.Since(started).Seconds())
}
