package forecast

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDistributeDaily_EqualSplit(t *testing.T) {
	start := day(2026, time.March, 1)
	end := day(2026, time.March, 7)

	slices, err := DistributeDaily(140000, start, end, 0, nil)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(slices) != 7 {
		t.Fatalf("expected 7 slices, got %d", len(slices))
	}
	for i, slice := range slices {
		if slice.DailyUnlock != 20000 {
			t.Fatalf("day %d unlock mismatch: got=%d want=20000", i, slice.DailyUnlock)
		}
	}
	if got := slices[6].CumulativeAvailable; got != 140000 {
		t.Fatalf("final cumulative mismatch: got=%d want=140000", got)
	}
}

func TestDistributeDaily_NetOfPriorDraws(t *testing.T) {
	start := day(2026, time.March, 3)
	end := day(2026, time.March, 7)

	// $1400 settlement, $500 drawn on day 3: the remaining $900 spreads
	// over days 3-7 at $180 each.
	slices, err := DistributeDaily(140000, start, end, 50000, nil)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(slices) != 5 {
		t.Fatalf("expected 5 slices, got %d", len(slices))
	}
	for i, slice := range slices {
		if slice.DailyUnlock != 18000 {
			t.Fatalf("day %d unlock mismatch: got=%d want=18000", i, slice.DailyUnlock)
		}
	}
}

func TestDistributeDaily_VolumeWeighted(t *testing.T) {
	start := day(2026, time.March, 1)
	end := day(2026, time.March, 3)
	weights := []DayVolume{
		{Date: start, Volume: 100},
		{Date: start.AddDate(0, 0, 1), Volume: 300},
		{Date: start.AddDate(0, 0, 2), Volume: 100},
	}

	slices, err := DistributeDaily(100000, start, end, 0, weights)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if slices[0].DailyUnlock != 20000 || slices[1].DailyUnlock != 60000 || slices[2].DailyUnlock != 20000 {
		t.Fatalf("weighted unlocks mismatch: got=%d,%d,%d", slices[0].DailyUnlock, slices[1].DailyUnlock, slices[2].DailyUnlock)
	}
}

func TestDistributeDaily_WeightsOutsideRangeIgnored(t *testing.T) {
	start := day(2026, time.March, 1)
	end := day(2026, time.March, 2)
	weights := []DayVolume{
		{Date: day(2026, time.February, 27), Volume: 500},
	}

	slices, err := DistributeDaily(10000, start, end, 0, weights)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	// No in-range volume: equal split.
	if slices[0].DailyUnlock != 5000 || slices[1].DailyUnlock != 5000 {
		t.Fatalf("expected equal split, got %d,%d", slices[0].DailyUnlock, slices[1].DailyUnlock)
	}
}

func TestDistributeDaily_ConservationUnderRounding(t *testing.T) {
	start := day(2026, time.March, 1)
	end := day(2026, time.March, 7)

	// 100.00 over 7 days does not divide evenly; the cumulative column must
	// still land exactly on the total.
	slices, err := DistributeDaily(10000, start, end, 0, nil)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if got := slices[len(slices)-1].CumulativeAvailable; got != 10000 {
		t.Fatalf("cumulative drift: got=%d want=10000", got)
	}
	for i := 1; i < len(slices); i++ {
		if slices[i].CumulativeAvailable < slices[i-1].CumulativeAvailable {
			t.Fatalf("cumulative not monotonic at day %d", i)
		}
	}
}

func TestDistributeDaily_CumulativeMonotonic(t *testing.T) {
	start := day(2026, time.March, 1)
	end := day(2026, time.March, 7)

	// Lumpy weights with zero-volume days in between: the cumulative column
	// must never decrease and must land on the net amount.
	weights := []DayVolume{
		{Date: day(2026, time.March, 1), Volume: 700},
		{Date: day(2026, time.March, 3), Volume: 123},
		{Date: day(2026, time.March, 6), Volume: 77},
	}
	slices, err := DistributeDaily(99999, start, end, 12345, weights)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	if len(slices) != 7 {
		t.Fatalf("expected 7 slices, got %d", len(slices))
	}
	for i := 1; i < len(slices); i++ {
		if slices[i].CumulativeAvailable < slices[i-1].CumulativeAvailable {
			t.Fatalf("cumulative decreased at day %d: %d < %d",
				i, slices[i].CumulativeAvailable, slices[i-1].CumulativeAvailable)
		}
	}
	if got := slices[6].CumulativeAvailable; got != 87654 {
		t.Fatalf("final cumulative mismatch: got=%d want=87654", got)
	}
}

func TestDistributeDaily_DrawsExceedTotal(t *testing.T) {
	start := day(2026, time.March, 1)
	end := day(2026, time.March, 3)

	slices, err := DistributeDaily(10000, start, end, 20000, nil)
	if err != nil {
		t.Fatalf("distribute: %v", err)
	}
	for i, slice := range slices {
		if slice.DailyUnlock != 0 {
			t.Fatalf("day %d should be zero, got %d", i, slice.DailyUnlock)
		}
	}
}

func TestDistributeDaily_InvalidBounds(t *testing.T) {
	start := day(2026, time.March, 5)
	end := day(2026, time.March, 1)
	if _, err := DistributeDaily(10000, start, end, 0, nil); err != ErrInvalidPeriodBounds {
		t.Fatalf("expected ErrInvalidPeriodBounds, got %v", err)
	}
	if _, err := DistributeDaily(10000, time.Time{}, end, 0, nil); err != ErrInvalidPeriodBounds {
		t.Fatalf("expected ErrInvalidPeriodBounds for zero start, got %v", err)
	}
}

func TestForecastRows(t *testing.T) {
	parent := &SettlementPeriod{
		SettlementID: "stl-1",
		AccountID:    "acct-1",
		CurrencyCode: "USD",
		Status:       StatusEstimated,
	}
	slices := []DaySlice{
		{Date: day(2026, time.March, 1), DailyUnlock: 100},
		{Date: day(2026, time.March, 2), DailyUnlock: 200},
	}

	rows := ForecastRows(parent, slices)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for i, row := range rows {
		if row.Status != StatusForecasted {
			t.Fatalf("row %d status mismatch: %s", i, row.Status)
		}
		if !row.PeriodStart.Equal(row.PeriodEnd) {
			t.Fatalf("row %d should be single-day", i)
		}
		if row.TotalAmount != slices[i].DailyUnlock {
			t.Fatalf("row %d amount mismatch", i)
		}
	}
}
