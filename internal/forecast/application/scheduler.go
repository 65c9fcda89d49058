package application

import (
	"context"
	"log"
	"time"
)

// Scheduler triggers the daily reconciliation pass at the configured wall
// clock time in the anchor time zone.
type Scheduler struct {
	reconciler *Reconciler
	dailyAt    string
	loc        *time.Location
	logger     *log.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(reconciler *Reconciler, cfg Config, logger *log.Logger) (*Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		reconciler: reconciler,
		dailyAt:    cfg.Schedule.DailyAt,
		loc:        loc,
		logger:     logger,
	}, nil
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.reconciler == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.In(s.loc)) {
				continue
			}
			if err := s.reconciler.RunAllAt(ctx, now); err != nil && s.logger != nil {
				s.logger.Printf("scheduled reconcile error: %v", err)
			}
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
