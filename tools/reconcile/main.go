// Command reconcile runs one reconciliation cycle and exits. Useful for
// cron-driven deployments and for backfilling a specific operational day.
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"time"

	volumeadapter "payoutflow/internal/forecast/adapters/volume"
	"payoutflow/internal/forecast/application"
	forecastrepo "payoutflow/internal/forecast/infrastructure/postgres"
	forecastinterfaces "payoutflow/internal/forecast/interfaces"
	"payoutflow/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var (
		databaseURL = flag.String("db", os.Getenv("DATABASE_URL"), "postgres connection string")
		accountID   = flag.String("account", "", "reconcile a single account (default: all)")
		asOf        = flag.String("as-of", "", "operational day to anchor to, YYYY-MM-DD (default: now)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	if *databaseURL == "" {
		logger.Fatal("db connection string is required (-db or DATABASE_URL)")
	}

	cfg, err := application.LoadConfig()
	if err != nil {
		logger.Fatalf("forecast config error: %v", err)
	}

	now := time.Now()
	if *asOf != "" {
		parsed, err := time.Parse("2006-01-02", *asOf)
		if err != nil {
			logger.Fatalf("as-of must be YYYY-MM-DD: %v", err)
		}
		now = parsed
	}

	db, err := sql.Open("pgx", *databaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	settlementRepo := forecastrepo.NewSettlementRepository(db)
	drawRepo := forecastrepo.NewDrawRepository(db)
	accuracyRepo := forecastrepo.NewAccuracyRepository(db)
	locker := forecastrepo.NewAdvisoryLocker(db)
	volumeReader := volumeadapter.NewDailyVolumeReader(db)
	publisher := forecastinterfaces.NewLoggingPublisher(logger)
	instruments := metrics.New()

	tracker, err := application.NewAccuracyTracker(settlementRepo, accuracyRepo, publisher, application.SystemClock{}, cfg.AccuracyLookbackDays, instruments, logger)
	if err != nil {
		logger.Fatalf("accuracy tracker error: %v", err)
	}
	reconciler, err := application.NewReconciler(settlementRepo, drawRepo, tracker, volumeReader, locker, publisher, application.SystemClock{}, cfg, instruments, logger)
	if err != nil {
		logger.Fatalf("reconciler error: %v", err)
	}

	ctx := context.Background()
	if *accountID != "" {
		err = reconciler.RunAccountAt(ctx, *accountID, now)
	} else {
		err = reconciler.RunAllAt(ctx, now)
	}
	if err != nil {
		logger.Fatalf("reconcile error: %v", err)
	}
	logger.Printf("reconcile complete: as_of=%s", now.Format("2006-01-02"))
}
