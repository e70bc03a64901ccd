// Package money implements the platform's money and time primitives.
//
// All currency amounts are integer USD cents; floating point never enters money
// math. Work durations are integer minutes. Rounding, where unavoidable, is
// always toward the contractor: ceiling division, so fractional cents are never
// truncated away from their pay.
package money

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CeilDiv returns ceil(a/b) for positive b using pure integer arithmetic.
func CeilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// MinutesToHHMM formats a minute count as "H:MM" (hours unpadded, minutes
// zero-padded), e.g. 205 -> "3:25".
func MinutesToHHMM(minutes int64) string {
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// ParseHoursToMinutes parses user-entered durations into whole minutes.
//
// Accepted shapes: "H:MM", "H:" (minutes default to 0) and bare "H" (fractional
// hours are floored to whole minutes). A non-numeric segment defaults to 0, but
// an input with no numeric segment at all is invalid. A minutes field over 59
// normalizes into hours, so "11:65" parses as 725 (12h05m).
func ParseHoursToMinutes(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if h, m, found := strings.Cut(s, ":"); found {
		hours, hOK := parseSegment(h)
		mins, mOK := parseSegment(m)
		if !hOK && !mOK {
			return 0, false
		}
		if hours < 0 || mins < 0 {
			return 0, false
		}
		return hours*60 + mins, true
	}

	// Bare hours, possibly fractional: floor(hours*60).
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64(f * 60), true
}

// parseSegment parses one "H" or "MM" segment. Empty or non-numeric segments
// yield 0 with ok=false so the caller can tell defaulting from garbage.
func parseSegment(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		// Missing segment: defaults to 0 and still counts as numeric ("10:" is valid).
		return 0, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// LineItemAmountCents computes a line item's amount in cents.
//
// Hourly lines bill quantity minutes at rateCents per hour, rounding the
// fractional-hour product up so the contractor is never under-paid. Quantity
// lines multiply exactly; no rounding is possible with two integers.
func LineItemAmountCents(quantity int64, hourly bool, rateCents int64) int64 {
	if quantity <= 0 || rateCents <= 0 {
		return 0
	}
	if hourly {
		return CeilDiv(quantity*rateCents, 60)
	}
	return quantity * rateCents
}

// YearOf returns the calendar year an invoice date falls in. Equity allocations
// partition by this value.
func YearOf(t time.Time) int {
	return t.Year()
}
