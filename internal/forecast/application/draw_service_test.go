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

func newDrawService(t *testing.T, settlements *memory.SettlementRepository, draws *memory.DrawRepository, volume application.VolumeWeightReader, publisher application.EventPublisher, now time.Time) *application.DrawService {
	t.Helper()
	service, err := application.NewDrawService(
		settlements, draws, volume, memory.NewLocker(), publisher,
		fixedClock{now: now}, utcConfig(), nil, nil,
	)
	if err != nil {
		t.Fatalf("new draw service: %v", err)
	}
	return service
}

func TestRecordDraw_RedistributesRemainingDays(t *testing.T) {
	ctx := context.Background()
	settlements := memory.NewSettlementRepository()
	draws := memory.NewDrawRepository()
	publisher := &capturePublisher{}

	start := day(2026, time.March, 1)
	end := day(2026, time.March, 7)
	settlements.Seed(estimated("acct-1", "stl-1", start, end, 140000))

	service := newDrawService(t, settlements, draws, nil, publisher, day(2026, time.March, 3))

	draw, err := service.RecordDraw(ctx, "acct-1", "stl-1", 50000, day(2026, time.March, 3), "supplier invoice")
	if err != nil {
		t.Fatalf("record draw: %v", err)
	}
	if draw.Amount != 50000 {
		t.Fatalf("draw amount mismatch: %d", draw.Amount)
	}

	// (140000 - 50000) / 5 remaining days = 18000 per day.
	rows, err := settlements.ListForecastsBetween(ctx, "acct-1", day(2026, time.March, 3), end)
	if err != nil {
		t.Fatalf("list forecasts: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("forecast row count mismatch: got=%d want=5", len(rows))
	}
	for _, row := range rows {
		if row.TotalAmount != 18000 {
			t.Fatalf("daily amount mismatch on %s: got=%d want=18000", row.PeriodStart.Format("2006-01-02"), row.TotalAmount)
		}
		if row.Status != forecast.StatusForecasted {
			t.Fatalf("unexpected status %s", row.Status)
		}
		if row.SettlementID != "stl-1" {
			t.Fatalf("settlement id mismatch: %s", row.SettlementID)
		}
	}

	if len(publisher.events) != 1 {
		t.Fatalf("event count mismatch: %d", len(publisher.events))
	}
	recorded, ok := publisher.events[0].(application.DrawRecorded)
	if !ok {
		t.Fatalf("unexpected event type %T", publisher.events[0])
	}
	if recorded.AmountCents != 50000 || recorded.SettlementID != "stl-1" {
		t.Fatalf("event payload mismatch: %+v", recorded)
	}
}

func TestRecordDraw_LeavesPastDaysUntouched(t *testing.T) {
	ctx := context.Background()
	settlements := memory.NewSettlementRepository()
	draws := memory.NewDrawRepository()

	start := day(2026, time.March, 1)
	end := day(2026, time.March, 7)
	settlements.Seed(
		estimated("acct-1", "stl-1", start, end, 140000),
		forecastRow("acct-1", "stl-1", day(2026, time.March, 1), 20000),
		forecastRow("acct-1", "stl-1", day(2026, time.March, 2), 20000),
	)

	service := newDrawService(t, settlements, draws, nil, nil, day(2026, time.March, 3))
	if _, err := service.RecordDraw(ctx, "acct-1", "stl-1", 50000, day(2026, time.March, 3), ""); err != nil {
		t.Fatalf("record draw: %v", err)
	}

	rows, err := settlements.ListForecastsBetween(ctx, "acct-1", start, end)
	if err != nil {
		t.Fatalf("list forecasts: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("forecast row count mismatch: got=%d want=7", len(rows))
	}
	// Committed history stays as written; only today onward is respread.
	if rows[0].TotalAmount != 20000 || rows[1].TotalAmount != 20000 {
		t.Fatalf("past rows rewritten: %d %d", rows[0].TotalAmount, rows[1].TotalAmount)
	}
	for _, row := range rows[2:] {
		if row.TotalAmount != 18000 {
			t.Fatalf("remaining day mismatch on %s: %d", row.PeriodStart.Format("2006-01-02"), row.TotalAmount)
		}
	}
}

func TestRecordDraw_RejectsClosedSettlement(t *testing.T) {
	ctx := context.Background()
	settlements := memory.NewSettlementRepository()
	settlements.Seed(confirmed("acct-1", "stl-1", day(2026, time.March, 1), day(2026, time.March, 7), 140000))

	service := newDrawService(t, settlements, memory.NewDrawRepository(), nil, nil, day(2026, time.March, 3))

	_, err := service.RecordDraw(ctx, "acct-1", "stl-1", 50000, day(2026, time.March, 3), "")
	if !errors.Is(err, forecast.ErrSettlementNotOpen) {
		t.Fatalf("expected ErrSettlementNotOpen, got %v", err)
	}

	_, err = service.RecordDraw(ctx, "acct-1", "stl-unknown", 50000, day(2026, time.March, 3), "")
	if !errors.Is(err, forecast.ErrSettlementNotOpen) {
		t.Fatalf("expected ErrSettlementNotOpen for unknown settlement, got %v", err)
	}
}

func TestRecalculate_Idempotent(t *testing.T) {
	ctx := context.Background()
	settlements := memory.NewSettlementRepository()
	draws := memory.NewDrawRepository()

	start := day(2026, time.March, 1)
	end := day(2026, time.March, 7)
	settlements.Seed(estimated("acct-1", "stl-1", start, end, 140000))

	service := newDrawService(t, settlements, draws, nil, nil, day(2026, time.March, 1))

	for i := 0; i < 3; i++ {
		if err := service.Recalculate(ctx, "acct-1", "stl-1"); err != nil {
			t.Fatalf("recalculate %d: %v", i, err)
		}
	}

	rows, err := settlements.ListForecastsBetween(ctx, "acct-1", start, end)
	if err != nil {
		t.Fatalf("list forecasts: %v", err)
	}
	if len(rows) != 7 {
		t.Fatalf("repeated recalculation duplicated rows: got=%d want=7", len(rows))
	}
	for _, row := range rows {
		if row.TotalAmount != 20000 {
			t.Fatalf("daily amount mismatch: %d", row.TotalAmount)
		}
	}
}

func TestRecalculate_VolumeWeighted(t *testing.T) {
	ctx := context.Background()
	settlements := memory.NewSettlementRepository()

	start := day(2026, time.March, 1)
	end := day(2026, time.March, 3)
	settlements.Seed(estimated("acct-1", "stl-1", start, end, 100000))

	volume := staticVolume{days: []forecast.DayVolume{
		{Date: day(2026, time.March, 1), Volume: 100},
		{Date: day(2026, time.March, 2), Volume: 300},
		{Date: day(2026, time.March, 3), Volume: 100},
	}}
	service := newDrawService(t, settlements, memory.NewDrawRepository(), volume, nil, day(2026, time.March, 1))

	if err := service.Recalculate(ctx, "acct-1", "stl-1"); err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	rows, err := settlements.ListForecastsBetween(ctx, "acct-1", start, end)
	if err != nil {
		t.Fatalf("list forecasts: %v", err)
	}
	want := []forecast.Money{20000, 60000, 20000}
	if len(rows) != len(want) {
		t.Fatalf("row count mismatch: %d", len(rows))
	}
	for i, row := range rows {
		if row.TotalAmount != want[i] {
			t.Fatalf("weighted amount mismatch on day %d: got=%d want=%d", i, row.TotalAmount, want[i])
		}
	}
}
