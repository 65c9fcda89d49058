package application

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	forecast "payoutflow/internal/forecast/domain"
	"payoutflow/internal/observability/metrics"
)

// VolumeWeightReader supplies relative sales volume per day for a range.
// An empty result is valid and triggers equal-split distribution.
type VolumeWeightReader interface {
	ListDailyVolume(ctx context.Context, accountID string, from, to time.Time) ([]forecast.DayVolume, error)
}

// Reconciler runs the once-daily settlement lifecycle state machine per
// account: either a settlement closed yesterday (accuracy tracking plus a
// full forecast rebuild) or nothing closed (additive rollover of yesterday's
// undistributed amount).
type Reconciler struct {
	settlements forecast.SettlementRepository
	draws       forecast.DrawRepository
	tracker     *AccuracyTracker
	volume      VolumeWeightReader
	locker      SettlementLocker
	publisher   EventPublisher
	clock       Clock
	cfg         Config
	metrics     *metrics.ForecastMetrics
	logger      *log.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(
	settlements forecast.SettlementRepository,
	draws forecast.DrawRepository,
	tracker *AccuracyTracker,
	volume VolumeWeightReader,
	locker SettlementLocker,
	publisher EventPublisher,
	clock Clock,
	cfg Config,
	m *metrics.ForecastMetrics,
	logger *log.Logger,
) (*Reconciler, error) {
	if settlements == nil {
		return nil, errors.New("reconciler: nil settlement repository")
	}
	if draws == nil {
		return nil, errors.New("reconciler: nil draw repository")
	}
	if tracker == nil {
		return nil, errors.New("reconciler: nil accuracy tracker")
	}
	if locker == nil {
		return nil, errors.New("reconciler: nil settlement locker")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if _, err := cfg.Location(); err != nil {
		return nil, fmt.Errorf("reconciler: %w", err)
	}
	return &Reconciler{
		settlements: settlements,
		draws:       draws,
		tracker:     tracker,
		volume:      volume,
		locker:      locker,
		publisher:   publisher,
		clock:       clock,
		cfg:         cfg,
		metrics:     m,
		logger:      logger,
	}, nil
}

// RunAll processes every known account for the current operational day.
// Accounts are isolated units of work: a failure in one is logged and does
// not abort the others.
func (r *Reconciler) RunAll(ctx context.Context) error {
	return r.RunAllAt(ctx, r.clock.Now())
}

// RunAllAt processes every known account anchored to the given instant.
func (r *Reconciler) RunAllAt(ctx context.Context, now time.Time) error {
	accounts, err := r.settlements.ListAccountIDs(ctx)
	if err != nil {
		return err
	}
	var failed int
	for _, accountID := range accounts {
		if err := r.RunAccountAt(ctx, accountID, now); err != nil {
			failed++
			if r.logger != nil {
				r.logger.Printf("reconcile error: account=%s err=%v", accountID, err)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("reconciler: %d of %d accounts failed", failed, len(accounts))
	}
	return nil
}

// RunAccountAt runs one account's daily cycle anchored to the given instant.
// Both branches are safe to run twice for the same day.
func (r *Reconciler) RunAccountAt(ctx context.Context, accountID string, now time.Time) error {
	if accountID == "" {
		return forecast.ErrEmptyAccountID
	}
	loc, err := r.cfg.Location()
	if err != nil {
		return err
	}
	started := time.Now()
	today := forecast.DateOnly(now, loc)
	yesterday := today.AddDate(0, 0, -1)

	closed, err := r.findClosedYesterday(ctx, accountID, today, yesterday)
	if err != nil {
		r.observe("decide", "error", started)
		return err
	}

	if closed != nil {
		if err := r.runClosedBranch(ctx, accountID, closed); err != nil {
			r.observe("closed", "error", started)
			return err
		}
		r.observe("closed", "success", started)
		return nil
	}

	if err := r.runRolloverBranch(ctx, accountID, yesterday, today); err != nil {
		r.observe("rollover", "error", started)
		return err
	}
	r.observe("rollover", "success", started)
	return nil
}

// findClosedYesterday picks the daily-style settlement that closed on the
// operational yesterday, tolerating late marketplace reporting within the
// configured lag window.
func (r *Reconciler) findClosedYesterday(ctx context.Context, accountID string, today, yesterday time.Time) (*forecast.SettlementPeriod, error) {
	since := today.AddDate(0, 0, -r.cfg.CloseLagDays)
	candidates, err := r.settlements.ListConfirmedClosedSince(ctx, accountID, since)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if err := candidate.ValidateBounds(); err != nil {
			return nil, fmt.Errorf("confirmed settlement %s: %w", candidate.SettlementID, err)
		}
		if !forecast.SameDay(candidate.PeriodEnd, yesterday) {
			continue
		}
		if candidate.DurationDays() > r.cfg.DailyStyleMaxDays {
			// Long invoiced cycles are recorded but never redistributed.
			if r.logger != nil {
				r.logger.Printf("invoiced cycle ignored for rollover: account=%s settlement=%s days=%d",
					accountID, candidate.SettlementID, candidate.DurationDays())
			}
			continue
		}
		return candidate, nil
	}
	return nil, nil
}

// runClosedBranch scores the closed settlement and rebuilds the account's
// forecasts from scratch.
func (r *Reconciler) runClosedBranch(ctx context.Context, accountID string, closed *forecast.SettlementPeriod) error {
	if err := r.tracker.Track(ctx, closed); err != nil {
		if !errors.Is(err, forecast.ErrNoForecastToCompare) {
			return err
		}
		if r.logger != nil {
			r.logger.Printf("accuracy tracking skipped: account=%s settlement=%s no forecast chain",
				accountID, closed.SettlementID)
		}
	}
	return r.Regenerate(ctx, accountID)
}

// Regenerate discards every forecasted row for the account and rebuilds the
// schedule for each still-open settlement from its current draw ledger and
// volume weights. Delete-before-insert keeps repeated runs idempotent. The
// whole rebuild holds every open settlement's lock so a draw recorded by the
// synchronous path cannot commit between the ledger read and the forecast
// write; it would be missing from the rebuilt schedule otherwise.
func (r *Reconciler) Regenerate(ctx context.Context, accountID string) error {
	open, err := r.settlements.ListOpen(ctx, accountID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(open))
	for _, settlement := range open {
		ids = append(ids, settlement.SettlementID)
	}
	return r.withSettlementLocks(ctx, accountID, ids, func(ctx context.Context) error {
		return r.regenerateLocked(ctx, accountID, open)
	})
}

func (r *Reconciler) regenerateLocked(ctx context.Context, accountID string, open []*forecast.SettlementPeriod) error {
	var rows []*forecast.SettlementPeriod
	regenerated := make([]ForecastRegenerated, 0, len(open))
	for _, settlement := range open {
		if err := settlement.ValidateBounds(); err != nil {
			return fmt.Errorf("open settlement %s: %w", settlement.SettlementID, err)
		}
		drawn, err := r.draws.SumBySettlement(ctx, accountID, settlement.SettlementID)
		if err != nil {
			return err
		}
		weights := r.loadWeights(ctx, accountID, settlement.PeriodStart, settlement.PeriodEnd)
		slices, err := forecast.DistributeDaily(settlement.TotalAmount, settlement.PeriodStart, settlement.PeriodEnd, drawn, weights)
		if err != nil {
			return err
		}
		rows = append(rows, forecast.ForecastRows(settlement, slices)...)

		net := settlement.TotalAmount - drawn
		if net < 0 {
			net = 0
		}
		regenerated = append(regenerated, ForecastRegenerated{
			AccountID:    accountID,
			SettlementID: settlement.SettlementID,
			Days:         len(slices),
			NetCents:     int64(net),
			OccurredAt:   r.clock.Now(),
		})
	}

	if err := r.settlements.ReplaceAccountForecasts(ctx, accountID, rows); err != nil {
		return err
	}
	if r.publisher != nil {
		for _, event := range regenerated {
			if err := r.publisher.Publish(ctx, event); err != nil {
				return err
			}
		}
	}
	return nil
}

// runRolloverBranch folds yesterday's undistributed amount into today. The
// carry is intentionally additive, not a recompute: it preserves the
// committed shape of future days and only moves the unclaimed amount.
func (r *Reconciler) runRolloverBranch(ctx context.Context, accountID string, yesterday, today time.Time) error {
	source, err := r.settlements.FindForecastOnDate(ctx, accountID, yesterday)
	if err != nil {
		return err
	}
	if source == nil {
		if r.logger != nil {
			r.logger.Printf("rollover skipped: account=%s no forecast for %s", accountID, yesterday.Format("2006-01-02"))
		}
		return nil
	}
	if source.Status == forecast.StatusRolledOver {
		// Already carried, e.g. a retried run.
		return nil
	}
	target, err := r.settlements.FindForecastOnDate(ctx, accountID, today)
	if err != nil {
		return err
	}
	if target == nil {
		if r.logger != nil {
			r.logger.Printf("rollover skipped: account=%s %v for %s", accountID, forecast.ErrStaleRolloverTarget, today.Format("2006-01-02"))
		}
		return nil
	}

	ids := []string{source.SettlementID}
	if target.SettlementID != source.SettlementID {
		ids = append(ids, target.SettlementID)
	}
	return r.withSettlementLocks(ctx, accountID, ids, func(ctx context.Context) error {
		applied, err := r.settlements.ApplyRollover(ctx, accountID, source.SettlementID, target.SettlementID, yesterday, today, source.TotalAmount)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		if r.metrics != nil {
			r.metrics.RolloversTotal.Inc()
		}
		if r.logger != nil {
			r.logger.Printf("forecast rolled over: account=%s carry=%s from=%s to=%s",
				accountID, source.TotalAmount.Decimal(), yesterday.Format("2006-01-02"), today.Format("2006-01-02"))
		}
		if r.publisher != nil {
			return r.publisher.Publish(ctx, ForecastRolledOver{
				AccountID:  accountID,
				FromDate:   yesterday,
				ToDate:     today,
				CarryCents: int64(source.TotalAmount),
				OccurredAt: r.clock.Now(),
			})
		}
		return nil
	})
}

// withSettlementLocks holds the per-settlement locks in sorted order, so two
// overlapping runs acquiring the same set cannot deadlock.
func (r *Reconciler) withSettlementLocks(ctx context.Context, accountID string, settlementIDs []string, fn func(ctx context.Context) error) error {
	if len(settlementIDs) == 0 {
		return fn(ctx)
	}
	ids := append([]string(nil), settlementIDs...)
	sort.Strings(ids)
	var acquire func(ctx context.Context, i int) error
	acquire = func(ctx context.Context, i int) error {
		if i == len(ids) {
			return fn(ctx)
		}
		return r.locker.WithLock(ctx, accountID, ids[i], func(ctx context.Context) error {
			return acquire(ctx, i+1)
		})
	}
	return acquire(ctx, 0)
}

// loadWeights degrades to nil (equal split) when the volume source fails.
func (r *Reconciler) loadWeights(ctx context.Context, accountID string, from, to time.Time) []forecast.DayVolume {
	if r.volume == nil {
		return nil
	}
	weights, err := r.volume.ListDailyVolume(ctx, accountID, from, to)
	if err != nil {
		if r.logger != nil {
			r.logger.Printf("volume weights unavailable, equal split: account=%s err=%v", accountID, err)
		}
		return nil
	}
	return weights
}

func (r *Reconciler) observe(branch, result string, started time.Time) {
	if r.metrics == nil {
		return
	}
	r.metrics.ReconcileTotal.WithLabelValues(branch, result).Inc()
	r.metrics.ReconcileLatency.WithLabelValues(branch).Observe(time.Since(started).Seconds())
}
