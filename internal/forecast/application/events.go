package application

import "time"

// DrawRecorded is emitted when a withdrawal is recorded against an open
// settlement.
type DrawRecorded struct {
	AccountID    string    `json:"account_id"`
	SettlementID string    `json:"settlement_id"`
	DrawID       string    `json:"draw_id"`
	DrawDate     time.Time `json:"draw_date"`
	AmountCents  int64     `json:"amount_cents"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ForecastRegenerated is emitted after a discard-and-rebuild of an account's
// forecast rows.
type ForecastRegenerated struct {
	AccountID    string    `json:"account_id"`
	SettlementID string    `json:"settlement_id"`
	Days         int       `json:"days"`
	NetCents     int64     `json:"net_cents"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ForecastRolledOver is emitted when an undistributed day is carried forward.
type ForecastRolledOver struct {
	AccountID  string    `json:"account_id"`
	FromDate   time.Time `json:"from_date"`
	ToDate     time.Time `json:"to_date"`
	CarryCents int64     `json:"carry_cents"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ForecastAccuracyTracked is emitted when a confirmed settlement is scored
// against its forecast chain.
type ForecastAccuracyTracked struct {
	AccountID       string    `json:"account_id"`
	SettlementID    string    `json:"settlement_id"`
	DifferenceCents int64     `json:"difference_cents"`
	DifferencePct   float64   `json:"difference_pct"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// CashOutDetected is emitted when an implicit full cash-out is inferred from
// a settlement boundary gap.
type CashOutDetected struct {
	AccountID    string    `json:"account_id"`
	SettlementID string    `json:"settlement_id"`
	CashOutDate  time.Time `json:"cash_out_date"`
	AmountCents  int64     `json:"amount_cents"`
	OccurredAt   time.Time `json:"occurred_at"`
}
