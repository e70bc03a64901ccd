// Package equity implements the cash/equity split calculation.
package equity

import "github.com/crewpay/payments-api/internal/domain/money"

// Split is the division of a billed amount into cash and equity cents.
// CashCents + EquityCents always equals the input amount exactly.
type Split struct {
	CashCents   int64
	EquityCents int64
}

// ComputeSplit maps a billable amount and the contractor's elected percentage
// to cash and equity portions.
//
// Equity rounds up (ceil(billable*pct/100)); cash is always the remainder,
// never computed independently, so the sum invariant holds to the cent. The
// function is pure: same inputs, same outputs, safe to re-invoke on every edit.
func ComputeSplit(billableCents int64, electedPercentage int, programEnabled bool) Split {
	if !programEnabled || electedPercentage <= 0 || billableCents <= 0 {
		cash := billableCents
		if cash < 0 {
			cash = 0
		}
		return Split{CashCents: cash, EquityCents: 0}
	}
	pct := int64(electedPercentage)
	if pct > 100 {
		pct = 100
	}
	equityCents := money.CeilDiv(billableCents*pct, 100)
	return Split{
		CashCents:   billableCents - equityCents,
		EquityCents: equityCents,
	}
}
