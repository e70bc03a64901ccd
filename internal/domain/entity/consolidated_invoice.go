package entity

import "time"

// Consolidated invoice (payment batch) statuses, mirroring the provider's
// lifecycle for the batch as a whole.
const (
	BatchPending      = "pending"      // created, submission to provider in flight
	BatchSubmitted    = "submitted"    // provider accepted the submission call
	BatchAcknowledged = "acknowledged" // provider acknowledged execution start
	BatchSettled      = "settled"      // funds settled
	BatchFailed       = "failed"       // provider reported failure
)

// ConsolidatedInvoice groups payable invoices into one submission to the
// payment provider. Claiming invoices into a batch is atomic: all of the
// selected set or none.
type ConsolidatedInvoice struct {
	ID          string
	CompanyID   string
	CreatedByID string
	InvoiceIDs  []string
	TotalCents  int64
	Status      string
	// ProviderRef is the provider-side batch identifier returned by SubmitBatch;
	// inbound callbacks are keyed by it.
	ProviderRef string
	SettledAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
