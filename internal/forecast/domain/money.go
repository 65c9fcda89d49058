package forecast

import (
	"fmt"
	"math"
)

// Money is a currency amount in integer minor units (cents).
// All internal arithmetic stays in minor units; conversion to a decimal
// representation happens only at presentation boundaries.
type Money int64

// CentsFromFloat converts a decimal amount (e.g. 1400.00) to minor units,
// rounding half-up.
func CentsFromFloat(amount float64) Money {
	return RoundHalfUp(amount * 100)
}

// RoundHalfUp rounds a fractional minor-unit value half-up to whole cents.
func RoundHalfUp(cents float64) Money {
	if cents < 0 {
		return -Money(math.Floor(-cents + 0.5))
	}
	return Money(math.Floor(cents + 0.5))
}

// Float returns the amount in major units.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// Abs returns the absolute amount.
func (m Money) Abs() Money {
	if m < 0 {
		return -m
	}
	return m
}

// Decimal renders the amount as a fixed two-decimal string.
func (m Money) Decimal() string {
	sign := ""
	v := m
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}
