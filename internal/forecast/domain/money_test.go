package forecast

import "testing"

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   float64
		want Money
	}{
		{0, 0},
		{0.4, 0},
		{0.5, 1},
		{1.49, 1},
		{1.5, 2},
		{-0.4, 0},
		{-0.5, -1},
		{-1.5, -2},
		{19999.5, 20000},
	}
	for _, c := range cases {
		if got := RoundHalfUp(c.in); got != c.want {
			t.Fatalf("RoundHalfUp(%v): got=%d want=%d", c.in, got, c.want)
		}
	}
}

func TestCentsFromFloat(t *testing.T) {
	if got := CentsFromFloat(1400.00); got != 140000 {
		t.Fatalf("got %d", got)
	}
	if got := CentsFromFloat(0.015); got != 2 {
		t.Fatalf("half-up mismatch: got %d", got)
	}
	if got := CentsFromFloat(-12.345); got != -1235 {
		t.Fatalf("negative mismatch: got %d", got)
	}
}

func TestMoneyDecimal(t *testing.T) {
	cases := []struct {
		in   Money
		want string
	}{
		{0, "0.00"},
		{5, "0.05"},
		{140000, "1400.00"},
		{-18050, "-180.50"},
	}
	for _, c := range cases {
		if got := c.in.Decimal(); got != c.want {
			t.Fatalf("Decimal(%d): got=%s want=%s", c.in, got, c.want)
		}
	}
}
