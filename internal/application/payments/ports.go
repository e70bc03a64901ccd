// Package payments holds the invoice lifecycle use cases: submission,
// approval, consolidation and provider callbacks.
package payments

import (
	"context"
	"time"

	"github.com/crewpay/payments-api/internal/domain/repository"
)

// TxRunner executes a function inside one database transaction with repos
// bound to that transaction. Every lifecycle mutation runs through it; the
// engine's correctness rests on these boundaries, not on in-process locking.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		invoiceRepo repository.InvoiceRepository,
		allocationRepo repository.EquityAllocationRepository,
		companyRepo repository.CompanyRepository,
		batchRepo repository.ConsolidatedInvoiceRepository,
	) error) error
}

// PaymentProvider is the outbound boundary to the payment execution service.
// Transfer mechanics, retries and settlement timing are its responsibility;
// the engine only submits batches and applies the callbacks it is told about.
type PaymentProvider interface {
	// SubmitBatch submits the invoices of a consolidated invoice for payment
	// and returns the provider-side batch reference.
	SubmitBatch(ctx context.Context, batchID string, invoiceIDs []string, totalCents int64) (providerRef string, err error)
}

// TaxComplianceChecker answers whether a contractor's tax documentation is in
// order. A false answer forces payability to false regardless of approvals.
type TaxComplianceChecker interface {
	AreTaxRequirementsMet(ctx context.Context, contractorID string) (bool, error)
}

// EquityGrantService converts committed equity cents into option units and
// ultimately issues the grant. The engine forwards equity cents and year
// unchanged and reads back the option count when present.
type EquityGrantService interface {
	CreateGrant(ctx context.Context, companyID, contractorID string, year int, equityCents int64) (optionCount int64, err error)
}

// Notifier publishes lifecycle milestones. Fire-and-forget: the state machine
// never waits on it.
type Notifier interface {
	InvoiceRejected(invoiceID, contractorID, reason string)
	InvoiceApproved(invoiceID, contractorID string, approvals, required int)
	InvoicePaid(invoiceID, contractorID string, paidAt time.Time)
	PaymentFailed(invoiceID, contractorID, reason string)
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }
