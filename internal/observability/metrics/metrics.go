package metrics

import (
	"context"
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricPrefix = "payoutflow_"

// ForecastMetrics groups the forecasting engine's instruments.
type ForecastMetrics struct {
	ReconcileTotal    *prometheus.CounterVec
	ReconcileLatency  *prometheus.HistogramVec
	RolloversTotal    prometheus.Counter
	DrawRecalcTotal   *prometheus.CounterVec
	DrawRecalcLatency prometheus.Histogram
	CashOutsTotal     prometheus.Counter
	AccuracyAbsPct    prometheus.Histogram
	HTTPRequests      *prometheus.CounterVec
	HTTPLatency       *prometheus.HistogramVec
}

var (
	registerOnce sync.Once
	shared       *ForecastMetrics
)

// New registers and returns the shared instrument set. Safe to call more
// than once; registration happens a single time.
func New() *ForecastMetrics {
	registerOnce.Do(func() {
		shared = &ForecastMetrics{
			ReconcileTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: metricPrefix + "reconcile_runs_total",
					Help: "Reconciler account runs by branch and result",
				},
				[]string{"branch", "result"},
			),
			ReconcileLatency: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    metricPrefix + "reconcile_latency_seconds",
					Help:    "Reconciler account run latency in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"branch"},
			),
			RolloversTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: metricPrefix + "rollovers_total",
				Help: "Forecast day rollovers applied",
			}),
			DrawRecalcTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: metricPrefix + "draw_recalculations_total",
					Help: "Draw-triggered recalculations by result",
				},
				[]string{"result"},
			),
			DrawRecalcLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    metricPrefix + "draw_recalculation_latency_seconds",
				Help:    "Draw recalculation latency in seconds",
				Buckets: prometheus.DefBuckets,
			}),
			CashOutsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Name: metricPrefix + "cashouts_inferred_total",
				Help: "Implicit cash-outs inferred from settlement gaps",
			}),
			AccuracyAbsPct: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    metricPrefix + "forecast_abs_error_pct",
				Help:    "Absolute forecast error percentage at settlement confirmation",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 50, 100},
			}),
			HTTPRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: metricPrefix + "http_requests_total",
					Help: "HTTP requests by path and status",
				},
				[]string{"path", "status"},
			),
			HTTPLatency: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    metricPrefix + "http_latency_seconds",
					Help:    "HTTP latency in seconds by path",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"path"},
			),
		}
		prometheus.MustRegister(
			shared.ReconcileTotal,
			shared.ReconcileLatency,
			shared.RolloversTotal,
			shared.DrawRecalcTotal,
			shared.DrawRecalcLatency,
			shared.CashOutsTotal,
			shared.AccuracyAbsPct,
			shared.HTTPRequests,
			shared.HTTPLatency,
		)
	})
	return shared
}

// StartDBGauges polls slow-moving database-backed gauges.
func StartDBGauges(db *sql.DB, logger *log.Logger) {
	if db == nil {
		return
	}
	openSettlements := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metricPrefix + "open_settlements",
		Help: "Open settlement periods across all accounts",
	})
	pendingOutbox := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metricPrefix + "outbox_pending",
		Help: "Pending outbox events",
	})
	prometheus.MustRegister(openSettlements, pendingOutbox)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			var open int64
			if err := db.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM settlement_periods WHERE status = 'estimated'`).Scan(&open); err == nil {
				openSettlements.Set(float64(open))
			} else if logger != nil {
				logger.Printf("metrics gauge error: %v", err)
			}
			var pending int64
			if err := db.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM event_outbox WHERE status = 'pending'`).Scan(&pending); err == nil {
				pendingOutbox.Set(float64(pending))
			}
			cancel()
		}
	}()
}
