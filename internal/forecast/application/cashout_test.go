package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"payoutflow/internal/forecast/application"
	forecast "payoutflow/internal/forecast/domain"
	"payoutflow/internal/forecast/infrastructure/memory"
)

func newDetector(t *testing.T, settlements *memory.SettlementRepository, draws *memory.DrawRepository, publisher application.EventPublisher) *application.CashOutDetector {
	t.Helper()
	detector, err := application.NewCashOutDetector(settlements, draws, publisher, fixedClock{now: day(2026, time.March, 10)}, nil, nil)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	return detector
}

func TestDetect_InfersCashOutFromBoundaryGap(t *testing.T) {
	ctx := context.Background()
	settlements := memory.NewSettlementRepository()
	draws := memory.NewDrawRepository()
	publisher := &capturePublisher{}

	older := estimated("acct-1", "stl-old", day(2026, time.March, 1), day(2026, time.March, 3), 120000)
	older.BeginningBalance = 80000
	older.HasBeginning = true
	newer := estimated("acct-1", "stl-new", day(2026, time.March, 5), day(2026, time.March, 7), 90000)
	settlements.Seed(older, newer)

	detector := newDetector(t, settlements, draws, publisher)

	result, err := detector.Detect(ctx, "acct-1")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !result.CashOutDetected {
		t.Fatalf("gap not detected: %+v", result)
	}
	if !result.CashOutDate.Equal(day(2026, time.March, 4)) {
		t.Fatalf("cash-out date mismatch: %s", result.CashOutDate)
	}
	if result.Amount != 80000 {
		t.Fatalf("cash-out amount mismatch: %d", result.Amount)
	}

	ledger, err := draws.ListBySettlement(ctx, "acct-1", "stl-old")
	if err != nil {
		t.Fatalf("list draws: %v", err)
	}
	if len(ledger) != 1 || ledger[0].Amount != 80000 {
		t.Fatalf("synthetic draw mismatch: %+v", ledger)
	}

	detected, ok := publisher.events[0].(application.CashOutDetected)
	if !ok {
		t.Fatalf("unexpected event type %T", publisher.events[0])
	}
	if detected.AmountCents != 80000 {
		t.Fatalf("event payload mismatch: %+v", detected)
	}

	// Repeat detection reports the gap but never double-records the draw.
	result, err = detector.Detect(ctx, "acct-1")
	if err != nil {
		t.Fatalf("repeat detect: %v", err)
	}
	if !result.CashOutDetected {
		t.Fatalf("repeat detection lost the gap: %+v", result)
	}
	ledger, err = draws.ListBySettlement(ctx, "acct-1", "stl-old")
	if err != nil {
		t.Fatalf("list draws: %v", err)
	}
	if len(ledger) != 1 {
		t.Fatalf("synthetic draw duplicated: %d entries", len(ledger))
	}
}

func TestDetect_ContiguousPeriodsReportBalance(t *testing.T) {
	ctx := context.Background()
	settlements := memory.NewSettlementRepository()
	draws := memory.NewDrawRepository()

	older := estimated("acct-1", "stl-old", day(2026, time.March, 1), day(2026, time.March, 3), 120000)
	newer := estimated("acct-1", "stl-new", day(2026, time.March, 4), day(2026, time.March, 6), 90000)
	settlements.Seed(older, newer)

	drawn, err := forecast.NewDailyDraw("acct-1", "stl-new", day(2026, time.March, 5), 25000, "")
	if err != nil {
		t.Fatalf("new draw: %v", err)
	}
	if err := draws.Insert(ctx, drawn); err != nil {
		t.Fatalf("insert draw: %v", err)
	}

	detector := newDetector(t, settlements, draws, nil)

	result, err := detector.Detect(ctx, "acct-1")
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if result.CashOutDetected {
		t.Fatalf("contiguous boundaries flagged as cash-out: %+v", result)
	}
	if result.AvailableBalance != 65000 {
		t.Fatalf("available balance mismatch: got=%d want=65000", result.AvailableBalance)
	}
}

func TestDetect_NoOpenSettlements(t *testing.T) {
	detector := newDetector(t, memory.NewSettlementRepository(), memory.NewDrawRepository(), nil)
	_, err := detector.Detect(context.Background(), "acct-1")
	if !errors.Is(err, forecast.ErrSettlementNotFound) {
		t.Fatalf("expected ErrSettlementNotFound, got %v", err)
	}
}
