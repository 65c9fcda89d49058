package forecast

import "time"

// DayVolume is the relative sales volume observed on a calendar day.
type DayVolume struct {
	Date   time.Time
	Volume int64
}

// DaySlice is one day of a distribution schedule. DailyUnlock is the amount
// that becomes safe to withdraw on the day; CumulativeAvailable is the
// running total assuming no withdrawals, used for UI projection only.
type DaySlice struct {
	Date                time.Time
	DailyUnlock         Money
	CumulativeAvailable Money
}

// DistributeDaily spreads a settlement total, net of prior draws, across the
// inclusive day range. When the volume weights cover the range with a
// nonzero total, each day receives its volume share; otherwise every day
// receives an equal share.
//
// The function is pure and deterministic: the nightly reconciler and the
// synchronous draw path both call it, and the two call sites must never
// diverge for the same settlement state. Running sums are kept in full
// precision; rounding to cents happens once per emitted value.
func DistributeDaily(totalAmount Money, periodStart, periodEnd time.Time, priorDraws Money, weights []DayVolume) ([]DaySlice, error) {
	if periodStart.IsZero() || periodEnd.IsZero() || periodEnd.Before(periodStart) {
		return nil, ErrInvalidPeriodBounds
	}

	periodStart = DateOnly(periodStart, time.UTC)
	periodEnd = DateOnly(periodEnd, time.UTC)
	totalDays := DaysBetween(periodStart, periodEnd) + 1

	netAvailable := totalAmount - priorDraws
	if netAvailable < 0 {
		netAvailable = 0
	}

	volumeByDay := make(map[time.Time]int64, len(weights))
	var totalVolume int64
	for _, w := range weights {
		day := DateOnly(w.Date, time.UTC)
		if day.Before(periodStart) || day.After(periodEnd) || w.Volume <= 0 {
			continue
		}
		volumeByDay[day] += w.Volume
		totalVolume += w.Volume
	}

	slices := make([]DaySlice, 0, totalDays)
	var running float64
	for day := periodStart; !day.After(periodEnd); day = day.AddDate(0, 0, 1) {
		var share float64
		if totalVolume > 0 {
			share = float64(netAvailable) * float64(volumeByDay[day]) / float64(totalVolume)
		} else {
			share = float64(netAvailable) / float64(totalDays)
		}
		running += share
		slices = append(slices, DaySlice{
			Date:                day,
			DailyUnlock:         RoundHalfUp(share),
			CumulativeAvailable: RoundHalfUp(running),
		})
	}
	return slices, nil
}

// ForecastRows converts a distribution schedule into per-day forecasted
// settlement rows for storage.
func ForecastRows(parent *SettlementPeriod, slices []DaySlice) []*SettlementPeriod {
	if parent == nil {
		return nil
	}
	rows := make([]*SettlementPeriod, 0, len(slices))
	for _, slice := range slices {
		rows = append(rows, &SettlementPeriod{
			SettlementID: parent.SettlementID,
			AccountID:    parent.AccountID,
			PeriodStart:  slice.Date,
			PeriodEnd:    slice.Date,
			TotalAmount:  slice.DailyUnlock,
			CurrencyCode: parent.CurrencyCode,
			Status:       StatusForecasted,
		})
	}
	return rows
}
