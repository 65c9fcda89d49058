package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"payoutflow/internal/audit"
	"payoutflow/internal/auth"
	"payoutflow/internal/eventing"
	"payoutflow/internal/eventing/eventbus"
	eventingrepo "payoutflow/internal/eventing/infrastructure/postgres"
	trendadapter "payoutflow/internal/forecast/adapters/trend"
	volumeadapter "payoutflow/internal/forecast/adapters/volume"
	"payoutflow/internal/forecast/application"
	forecastrepo "payoutflow/internal/forecast/infrastructure/postgres"
	forecastinterfaces "payoutflow/internal/forecast/interfaces"
	"payoutflow/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	forecastCfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("forecast config error: %v", err)
	}
	location, err := forecastCfg.Location()
	if err != nil {
		logger.Fatalf("time zone error: %v", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	forecastMetrics := metrics.New()
	metrics.StartDBGauges(db, logger)
	accountChecker := auth.NewAccountChecker(db)
	auditRepo := audit.NewRepository(db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(application.DrawRecorded{})
	registry.Register(application.ForecastRegenerated{})
	registry.Register(application.ForecastRolledOver{})
	registry.Register(application.ForecastAccuracyTracked{})
	registry.Register(application.CashOutDetected{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	outboxPublisher := eventing.NewPublisher(outboxStore, dispatcher, "", baseBus)
	publisher := forecastinterfaces.NewOutboxPublisher(outboxPublisher)

	eventing.Subscribe(baseBus, eventbus.EventTypeOf[application.CashOutDetected](), "forecast.cashout.log", func(ctx context.Context, event any) error {
		evt, ok := event.(application.CashOutDetected)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		logger.Printf("cash-out detected: account=%s date=%s amount_cents=%d", evt.AccountID, evt.CashOutDate.Format("2006-01-02"), evt.AmountCents)
		return nil
	}, processedStore)
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[application.ForecastRolledOver](), "forecast.rollover.log", func(ctx context.Context, event any) error {
		evt, ok := event.(application.ForecastRolledOver)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		logger.Printf("forecast rolled over: account=%s from=%s to=%s carry_cents=%d", evt.AccountID, evt.FromDate.Format("2006-01-02"), evt.ToDate.Format("2006-01-02"), evt.CarryCents)
		return nil
	}, processedStore)

	settlementRepo := forecastrepo.NewSettlementRepository(db, forecastrepo.WithCurrency(cfg.Currency))
	drawRepo := forecastrepo.NewDrawRepository(db)
	accuracyRepo := forecastrepo.NewAccuracyRepository(db)
	locker := forecastrepo.NewAdvisoryLocker(db)
	volumeReader := volumeadapter.NewDailyVolumeReader(db)

	var trendProvider application.TrendProvider
	if forecastCfg.TrendBaseURL != "" {
		client, err := trendadapter.NewClient(forecastCfg.TrendBaseURL)
		if err != nil {
			logger.Fatalf("trend client error: %v", err)
		}
		trendProvider = client
	}

	tracker, err := application.NewAccuracyTracker(settlementRepo, accuracyRepo, publisher, application.SystemClock{}, forecastCfg.AccuracyLookbackDays, forecastMetrics, logger)
	if err != nil {
		logger.Fatalf("accuracy tracker error: %v", err)
	}
	reconciler, err := application.NewReconciler(settlementRepo, drawRepo, tracker, volumeReader, locker, publisher, application.SystemClock{}, forecastCfg, forecastMetrics, logger)
	if err != nil {
		logger.Fatalf("reconciler error: %v", err)
	}
	drawService, err := application.NewDrawService(settlementRepo, drawRepo, volumeReader, locker, publisher, application.SystemClock{}, forecastCfg, forecastMetrics, logger)
	if err != nil {
		logger.Fatalf("draw service error: %v", err)
	}
	cashOutDetector, err := application.NewCashOutDetector(settlementRepo, drawRepo, publisher, application.SystemClock{}, forecastMetrics, logger)
	if err != nil {
		logger.Fatalf("cashout detector error: %v", err)
	}

	scheduler, err := application.NewScheduler(reconciler, forecastCfg, logger)
	if err != nil {
		logger.Fatalf("scheduler error: %v", err)
	}
	go scheduler.Start(context.Background())

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/ingest/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/ingest/settlements", ingestAuth.Wrap(forecastinterfaces.NewIngestHandler(settlementRepo, reconciler)))
	mux.Handle("/api/v1/accounts/", forecastinterfaces.NewAccountsHandler(settlementRepo, trendProvider, accountChecker, forecastCfg.TrendHorizonDays, location))
	mux.Handle("/api/v1/draws", forecastinterfaces.NewDrawsHandler(drawService, accountChecker, auditRepo))
	mux.Handle("/api/v1/cashout/detect", forecastinterfaces.NewCashOutHandler(cashOutDetector, accountChecker, auditRepo))
	mux.Handle("/api/v1/reconcile/run", forecastinterfaces.NewReconcileHandler(reconciler, auditRepo))
	mux.Handle("/api/v1/exports/schedule.xlsx", forecastinterfaces.NewExportScheduleXLSXHandler(settlementRepo, accountChecker, location))
	mux.Handle("/api/v1/exports/accuracy.pdf", forecastinterfaces.NewExportAccuracyPDFHandler(accuracyRepo, accountChecker))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger, forecastMetrics)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	Currency          string
	JWTSecret         string
	IngestSecret      string
	IngestSkewSeconds int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		Currency:          getenvDefault("CURRENCY", "USD"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger, m *metrics.ForecastMetrics) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		elapsed := time.Since(start)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, elapsed)
		if m != nil {
			m.HTTPRequests.WithLabelValues(r.URL.Path, strconv.Itoa(resp.status)).Inc()
			m.HTTPLatency.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())
		}
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
