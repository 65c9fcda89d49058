package application_test

import (
	"context"
	"time"

	"payoutflow/internal/forecast/application"
	forecast "payoutflow/internal/forecast/domain"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type capturePublisher struct{ events []any }

func (p *capturePublisher) Publish(_ context.Context, event any) error {
	p.events = append(p.events, event)
	return nil
}

type staticVolume struct{ days []forecast.DayVolume }

func (v staticVolume) ListDailyVolume(_ context.Context, _ string, _, _ time.Time) ([]forecast.DayVolume, error) {
	return v.days, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func utcConfig() application.Config {
	return application.Config{
		TimeZone:             "UTC",
		DailyStyleMaxDays:    3,
		CloseLagDays:         3,
		AccuracyLookbackDays: 7,
	}
}

func estimated(accountID, settlementID string, start, end time.Time, total forecast.Money) *forecast.SettlementPeriod {
	return &forecast.SettlementPeriod{
		AccountID:    accountID,
		SettlementID: settlementID,
		PeriodStart:  start,
		PeriodEnd:    end,
		TotalAmount:  total,
		CurrencyCode: "USD",
		Status:       forecast.StatusEstimated,
	}
}

func confirmed(accountID, settlementID string, start, end time.Time, total forecast.Money) *forecast.SettlementPeriod {
	period := estimated(accountID, settlementID, start, end, total)
	period.Status = forecast.StatusConfirmed
	return period
}

func forecastRow(accountID, settlementID string, on time.Time, total forecast.Money) *forecast.SettlementPeriod {
	period := estimated(accountID, settlementID, on, on, total)
	period.Status = forecast.StatusForecasted
	return period
}
