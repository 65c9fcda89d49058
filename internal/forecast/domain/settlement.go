package forecast

import "time"

// Status classifies a settlement period row.
type Status string

const (
	// StatusForecasted marks a synthetic per-day distribution row generated
	// by this engine.
	StatusForecasted Status = "forecasted"
	// StatusEstimated marks the parent open settlement awaiting closure.
	StatusEstimated Status = "estimated"
	// StatusConfirmed marks a settlement finalized and paid by the marketplace.
	StatusConfirmed Status = "confirmed"
	// StatusRolledOver marks a forecasted day whose remainder was carried
	// into a later day.
	StatusRolledOver Status = "rolled_over"
)

// SettlementPeriod is one marketplace settlement cycle for one seller
// account, or a synthetic per-day forecast row derived from one.
// Identity: account id plus marketplace-issued settlement id; forecast rows
// additionally carry their calendar day in PeriodStart/PeriodEnd.
type SettlementPeriod struct {
	SettlementID string
	AccountID    string
	PeriodStart  time.Time
	// PeriodEnd is zero while the settlement is still open.
	PeriodEnd        time.Time
	TotalAmount      Money
	BeginningBalance Money
	HasBeginning     bool
	CurrencyCode     string
	Status           Status
}

// IsOpen reports whether the row is the open parent settlement.
func (s *SettlementPeriod) IsOpen() bool {
	return s != nil && s.Status == StatusEstimated
}

// PayoutDate derives the payout date (period end plus one day). Zero while
// the period end is unknown.
func (s *SettlementPeriod) PayoutDate() time.Time {
	if s == nil || s.PeriodEnd.IsZero() {
		return time.Time{}
	}
	return s.PeriodEnd.AddDate(0, 0, 1)
}

// DurationDays returns the inclusive day count of the period, or 0 when the
// bounds are incomplete.
func (s *SettlementPeriod) DurationDays() int {
	if s == nil || s.PeriodStart.IsZero() || s.PeriodEnd.IsZero() {
		return 0
	}
	return DaysBetween(s.PeriodStart, s.PeriodEnd) + 1
}

// ValidateBounds checks the period carries usable start/end dates. A missing
// boundary is a hard error: any distribution over an unknown range would be
// meaningless.
func (s *SettlementPeriod) ValidateBounds() error {
	if s == nil {
		return ErrNilSettlement
	}
	if s.PeriodStart.IsZero() || s.PeriodEnd.IsZero() {
		return ErrInvalidPeriodBounds
	}
	if s.PeriodEnd.Before(s.PeriodStart) {
		return ErrInvalidPeriodBounds
	}
	return nil
}

// OpeningBalance returns the beginning-balance figure when tracked,
// otherwise the settlement total.
func (s *SettlementPeriod) OpeningBalance() Money {
	if s == nil {
		return 0
	}
	if s.HasBeginning {
		return s.BeginningBalance
	}
	return s.TotalAmount
}

// Clone returns a detached copy.
func (s *SettlementPeriod) Clone() *SettlementPeriod {
	if s == nil {
		return nil
	}
	copy := *s
	return &copy
}

// DateOnly truncates a timestamp to its calendar day in the given location.
func DateOnly(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole days from a to b using calendar arithmetic.
func DaysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// SameDay reports whether two timestamps fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
