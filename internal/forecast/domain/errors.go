package forecast

import "errors"

var (
	// ErrEmptyAccountID is returned when an account id is empty.
	ErrEmptyAccountID = errors.New("forecast: empty account id")
	// ErrEmptySettlementID is returned when a settlement id is empty.
	ErrEmptySettlementID = errors.New("forecast: empty settlement id")
	// ErrNilSettlement is returned when a nil settlement is provided.
	ErrNilSettlement = errors.New("forecast: nil settlement")
	// ErrSettlementNotFound is returned when no settlement matches.
	ErrSettlementNotFound = errors.New("forecast: settlement not found")
	// ErrSettlementNotOpen is returned when a draw targets a settlement that
	// is not currently open.
	ErrSettlementNotOpen = errors.New("forecast: settlement not open")
	// ErrInvalidPeriodBounds is returned when an open settlement has missing
	// or inverted period bounds.
	ErrInvalidPeriodBounds = errors.New("forecast: invalid period bounds")
	// ErrNonPositiveAmount is returned when a draw amount is not positive.
	ErrNonPositiveAmount = errors.New("forecast: non-positive amount")
	// ErrInvalidDrawDate is returned when a draw date is zero.
	ErrInvalidDrawDate = errors.New("forecast: invalid draw date")
	// ErrNoForecastToCompare signals accuracy tracking has nothing to
	// compare against; informational, not a failure.
	ErrNoForecastToCompare = errors.New("forecast: no forecast to compare")
	// ErrStaleRolloverTarget signals the rollover target row is missing;
	// the carry is a no-op.
	ErrStaleRolloverTarget = errors.New("forecast: stale rollover target")
)
