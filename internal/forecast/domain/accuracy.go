package forecast

import (
	"math"
	"time"
)

// DayAmount is one link of a forecast chain: the forecasted amount standing
// on a given day.
type DayAmount struct {
	Date   time.Time `json:"date"`
	Amount Money     `json:"amount"`
}

// ForecastAccuracyRecord compares the last rolled-forward forecast against
// the confirmed settlement total. Exactly one row per settlement; repeated
// tracking upserts idempotently.
type ForecastAccuracyRecord struct {
	SettlementID         string
	AccountID            string
	PeriodStart          time.Time
	PeriodEnd            time.Time
	DaysAccumulated      int
	ForecastedAmount     Money
	ForecastedByDay      []DayAmount
	ActualAmount         Money
	DifferenceAmount     Money
	DifferencePercentage float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewAccuracyRecord builds a record from the forecast chain that led up to
// closure. The chain must be ordered by day ascending; the most recent link
// already embeds all prior rollovers, so it alone carries the comparison
// figure.
func NewAccuracyRecord(confirmed *SettlementPeriod, chain []DayAmount) (*ForecastAccuracyRecord, error) {
	if confirmed == nil {
		return nil, ErrNilSettlement
	}
	if err := confirmed.ValidateBounds(); err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, ErrNoForecastToCompare
	}

	forecasted := chain[len(chain)-1].Amount
	actual := confirmed.TotalAmount
	difference := actual - forecasted

	var percentage float64
	if actual != 0 {
		percentage = math.Abs(float64(difference)) / math.Abs(float64(actual)) * 100
	}

	now := time.Now().UTC()
	return &ForecastAccuracyRecord{
		SettlementID:         confirmed.SettlementID,
		AccountID:            confirmed.AccountID,
		PeriodStart:          confirmed.PeriodStart,
		PeriodEnd:            confirmed.PeriodEnd,
		DaysAccumulated:      len(chain),
		ForecastedAmount:     forecasted,
		ForecastedByDay:      chain,
		ActualAmount:         actual,
		DifferenceAmount:     difference,
		DifferencePercentage: percentage,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}
