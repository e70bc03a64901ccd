package money_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crewpay/payments-api/internal/domain/money"
)

func TestCeilDiv(t *testing.T) {
	assert.Equal(t, int64(0), money.CeilDiv(0, 60))
	assert.Equal(t, int64(0), money.CeilDiv(-5, 60))
	assert.Equal(t, int64(1), money.CeilDiv(1, 60))
	assert.Equal(t, int64(1), money.CeilDiv(60, 60))
	assert.Equal(t, int64(2), money.CeilDiv(61, 60))
	assert.Equal(t, int64(100), money.CeilDiv(6000, 60))
}

func TestParseHoursToMinutes(t *testing.T) {
	tests := []struct {
		in      string
		minutes int64
		ok      bool
	}{
		{"3:25", 205, true},
		{"0:45", 45, true},
		// Minute overflow is not normalized away: 11:65 is 11*60+65.
		{"11:65", 725, true},
		// Empty segments default to zero.
		{"10:", 600, true},
		{":30", 30, true},
		{":", 0, true},
		// A bare number is decimal hours, floored to whole minutes.
		{"2", 120, true},
		{"1.5", 90, true},
		{"0.25", 15, true},
		// Both segments non-numeric is invalid, not zero.
		{"abc:w", 0, false},
		{"", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := money.ParseHoursToMinutes(tt.in)
		assert.Equal(t, tt.ok, ok, "input %q", tt.in)
		assert.Equal(t, tt.minutes, got, "input %q", tt.in)
	}
}

func TestMinutesToHHMM(t *testing.T) {
	assert.Equal(t, "3:25", money.MinutesToHHMM(205))
	assert.Equal(t, "0:05", money.MinutesToHHMM(5))
	assert.Equal(t, "12:05", money.MinutesToHHMM(725))
	assert.Equal(t, "0:00", money.MinutesToHHMM(0))
}

func TestLineItemAmountCents(t *testing.T) {
	// 3h25m (205 min) at $60.00/hr: ceil(205*6000/60) = 20500 ($205.00).
	assert.Equal(t, int64(20500), money.LineItemAmountCents(205, true, 6000))

	// One extra minute always rounds up in the contractor's favor:
	// ceil(61*100/60) = 102.
	assert.Equal(t, int64(102), money.LineItemAmountCents(61, true, 100))

	// Non-hourly lines are quantity * rate.
	assert.Equal(t, int64(15000), money.LineItemAmountCents(3, false, 5000))

	// Non-positive inputs produce zero.
	assert.Equal(t, int64(0), money.LineItemAmountCents(0, true, 6000))
	assert.Equal(t, int64(0), money.LineItemAmountCents(10, false, 0))
	assert.Equal(t, int64(0), money.LineItemAmountCents(-5, false, 100))
}
