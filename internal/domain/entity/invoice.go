package entity

import (
	"strconv"
	"time"

	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/equity"
	"github.com/crewpay/payments-api/internal/domain/money"
)

// InvoiceStatus is a closed set; every transition site switches exhaustively
// over it so a new status cannot be silently mishandled.
type InvoiceStatus string

const (
	StatusReceived       InvoiceStatus = "received"        // submitted, awaiting approvals
	StatusApproved       InvoiceStatus = "approved"        // quorum reached, not yet batched
	StatusProcessing     InvoiceStatus = "processing"      // claimed by a payment batch
	StatusPaymentPending InvoiceStatus = "payment_pending" // batch accepted by provider, funds unsettled
	StatusPaid           InvoiceStatus = "paid"            // terminal success
	StatusRejected       InvoiceStatus = "rejected"        // terminal unless resubmitted
	StatusFailed         InvoiceStatus = "failed"          // payment execution failed; retryable
)

// Invoice types.
const (
	InvoiceTypeServices = "services"
	InvoiceTypeOther    = "other" // one-off payment created by an administrator
)

// LineItem is one billed line: minutes at an hourly rate, a unit count at a
// per-unit rate, or a direct total amount (RateCents with Quantity 1).
type LineItem struct {
	ID          string
	Description string
	Quantity    int64 // minutes when Hourly, otherwise a unit count
	Hourly      bool
	RateCents   int64 // cents per hour when Hourly, otherwise cents per unit
	AmountCents int64 // computed, never client-supplied
}

// Expense is a reimbursable attachment-backed cost.
type Expense struct {
	ID           string
	Description  string
	CategoryID   string
	AmountCents  int64
	AttachmentID string
}

// Approval records one administrator's approval. Append-only; an approver
// appears at most once per invoice.
type Approval struct {
	ApproverID string
	ApprovedAt time.Time
}

// Invoice is the aggregate the lifecycle engine operates on. Monetary fields
// are integer cents and satisfy CashAmountCents + EquityAmountCents ==
// TotalAmountCents after every mutation.
type Invoice struct {
	ID           string
	CompanyID    string
	ContractorID string
	CreatedByID  string

	InvoiceType   string
	InvoiceNumber string
	InvoiceDate   time.Time
	Notes         string

	LineItems []LineItem
	Expenses  []Expense

	TotalAmountCents  int64
	EquityPercentage  int
	EquityAmountCents int64
	CashAmountCents   int64
	// EquityOptionCount is filled in by the grant collaborator once it converts
	// EquityAmountCents at the year's per-option price; nil until then.
	EquityOptionCount *int64

	// One-off payments may carry a negotiable equity range the payee accepts later.
	MinAllowedEquityPercentage *int
	MaxAllowedEquityPercentage *int
	RequiresAcceptance         bool

	Status    InvoiceStatus
	Approvals []Approval

	RejectedByID    *string
	RejectedAt      *time.Time
	RejectionReason *string

	ConsolidatedInvoiceID *string
	PaidAt                *time.Time
	FailureReason         *string

	DeletedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Year returns the calendar year the invoice bills for, which selects the
// contractor's equity allocation.
func (inv *Invoice) Year() int {
	return money.YearOf(inv.InvoiceDate)
}

// IsEditable reports whether the submitter may still mutate content fields.
// Only received and rejected invoices are editable; everything else is
// read-only to the submitter.
func (inv *Invoice) IsEditable() bool {
	switch inv.Status {
	case StatusReceived, StatusRejected:
		return true
	case StatusApproved, StatusProcessing, StatusPaymentPending, StatusPaid, StatusFailed:
		return false
	default:
		return false
	}
}

// Recalculate recomputes every derived monetary field from the current line
// items and expenses, then re-splits against the elected percentage. Called
// after every content mutation so totals are never stale.
func (inv *Invoice) Recalculate(electedPercentage int, programEnabled bool) {
	var total int64
	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		li.AmountCents = money.LineItemAmountCents(li.Quantity, li.Hourly, li.RateCents)
		total += li.AmountCents
	}
	for _, ex := range inv.Expenses {
		total += ex.AmountCents
	}
	inv.TotalAmountCents = total

	split := equity.ComputeSplit(total, electedPercentage, programEnabled)
	if programEnabled {
		inv.EquityPercentage = electedPercentage
	} else {
		inv.EquityPercentage = 0
	}
	inv.EquityAmountCents = split.EquityCents
	inv.CashAmountCents = split.CashCents
}

// Validate checks submission rules and returns a field-keyed error, or nil.
// maxInvoiceMinutes bounds the total minutes of hourly lines (0 = no cap).
func (inv *Invoice) Validate(maxInvoiceMinutes int64) *domain.ValidationError {
	verr := domain.NewValidationError()

	if inv.InvoiceNumber == "" {
		verr.Add("invoiceNumber", "invoice number is required")
	}
	if len(inv.LineItems) == 0 && len(inv.Expenses) == 0 {
		verr.Add("lineItems", "at least one line item or expense is required")
	}

	var hourlyMinutes int64
	for i, li := range inv.LineItems {
		key := lineItemField(i)
		if li.Description == "" {
			verr.Add(key+".description", "description is required")
		}
		if li.Quantity <= 0 {
			verr.Add(key+".quantity", "quantity must be positive")
		}
		if li.RateCents <= 0 {
			verr.Add(key+".rate", "rate must be positive")
		}
		if li.Hourly {
			hourlyMinutes += li.Quantity
		}
	}
	if maxInvoiceMinutes > 0 && hourlyMinutes > maxInvoiceMinutes {
		verr.Add("lineItems", "billed hours exceed the company maximum for one invoice")
	}

	for i, ex := range inv.Expenses {
		key := expenseField(i)
		if ex.Description == "" {
			verr.Add(key+".description", "description is required")
		}
		if ex.CategoryID == "" {
			verr.Add(key+".category", "an expense category is required")
		}
		if ex.AmountCents <= 0 {
			verr.Add(key+".amount", "amount must be positive")
		}
	}

	if verr.Any() {
		return verr
	}
	return nil
}

func lineItemField(i int) string { return "lineItems[" + strconv.Itoa(i) + "]" }
func expenseField(i int) string  { return "expenses[" + strconv.Itoa(i) + "]" }

// ApprovedBy reports whether the given approver already approved this invoice.
func (inv *Invoice) ApprovedBy(approverID string) bool {
	for _, a := range inv.Approvals {
		if a.ApproverID == approverID {
			return true
		}
	}
	return false
}

// Approve appends an approval and promotes the invoice to approved once the
// company's current required count is met. Duplicate approvers get
// AlreadyApprovedError; a resulting approval count above the requirement is a
// QuorumMismatchError, whatever the status: the count never exceeds the
// company's required count.
func (inv *Invoice) Approve(approverID string, approvedAt time.Time, requiredCount int) error {
	switch inv.Status {
	case StatusReceived, StatusApproved, StatusFailed:
	default:
		return &domain.InvalidStateError{Action: "approve", Status: string(inv.Status)}
	}
	if inv.ApprovedBy(approverID) {
		return &domain.AlreadyApprovedError{ApproverID: approverID}
	}
	if requiredCount < 1 {
		requiredCount = 1
	}
	if len(inv.Approvals) >= requiredCount {
		return &domain.QuorumMismatchError{
			InvoiceID:     inv.ID,
			Approvals:     len(inv.Approvals) + 1,
			RequiredCount: requiredCount,
		}
	}
	inv.Approvals = append(inv.Approvals, Approval{ApproverID: approverID, ApprovedAt: approvedAt})
	if len(inv.Approvals) >= requiredCount && inv.Status == StatusReceived {
		inv.Status = StatusApproved
	}
	inv.UpdatedAt = approvedAt
	return nil
}

// PayabilityContext carries the company-level and actor-level inputs the
// payability rule needs. Passed explicitly so the re-evaluation behavior is
// testable instead of read from ambient state.
type PayabilityContext struct {
	RequiredApprovalCount int
	ActorHasApproved      bool
	TaxRequirementsMet    bool
}

// IsPayable reports whether the invoice may be claimed into a payment batch.
//
// Failed invoices are directly payable regardless of approval count. Otherwise
// the invoice must be received or approved, must not await payee acceptance,
// and must be at most one approval short of quorum: zero short when the
// current actor has already approved, one short when their pending approval
// would close the gap, so the final approval and the pay action can combine
// into a single admin gesture.
//
// Unmet tax requirements force false no matter what, including for failed
// invoices.
func (inv *Invoice) IsPayable(pc PayabilityContext) bool {
	if !pc.TaxRequirementsMet {
		return false
	}
	if inv.DeletedAt != nil {
		return false
	}
	switch inv.Status {
	case StatusFailed:
		return true
	case StatusReceived, StatusApproved:
		// fall through to the quorum-distance check
	case StatusProcessing, StatusPaymentPending, StatusPaid, StatusRejected:
		return false
	default:
		return false
	}
	if inv.RequiresAcceptance {
		return false
	}
	required := pc.RequiredApprovalCount
	if required < 1 {
		required = 1
	}
	allowedDeficit := 1
	if pc.ActorHasApproved {
		allowedDeficit = 0
	}
	return required-len(inv.Approvals) <= allowedDeficit
}

// Reject marks the invoice rejected with who/when/why. Permitted only before
// batching (received or approved). Monetary fields are untouched.
func (inv *Invoice) Reject(rejectedBy string, rejectedAt time.Time, reason string) error {
	switch inv.Status {
	case StatusReceived, StatusApproved:
	default:
		return &domain.InvalidStateError{Action: "reject", Status: string(inv.Status)}
	}
	inv.Status = StatusRejected
	inv.RejectedByID = &rejectedBy
	inv.RejectedAt = &rejectedAt
	inv.RejectionReason = &reason
	inv.UpdatedAt = rejectedAt
	return nil
}

// Resubmit returns a rejected (or edited received) invoice to the start of the
// lifecycle: approvals reset, status received. Rejection fields remain as
// history but no longer gate payability.
func (inv *Invoice) Resubmit(now time.Time) error {
	switch inv.Status {
	case StatusReceived, StatusRejected:
	default:
		return &domain.InvalidStateError{Action: "resubmit", Status: string(inv.Status)}
	}
	inv.Status = StatusReceived
	inv.Approvals = nil
	inv.UpdatedAt = now
	return nil
}

// MarkProcessing claims the invoice into a payment batch. Valid from any
// payable pre-batch state, including failed retries.
func (inv *Invoice) MarkProcessing(consolidatedInvoiceID string, now time.Time) error {
	switch inv.Status {
	case StatusReceived, StatusApproved, StatusFailed:
	default:
		return &domain.InvalidStateError{Action: "batch", Status: string(inv.Status)}
	}
	inv.Status = StatusProcessing
	inv.ConsolidatedInvoiceID = &consolidatedInvoiceID
	inv.FailureReason = nil
	inv.UpdatedAt = now
	return nil
}

// MarkPaymentPending records the provider's batch acknowledgement.
// Duplicate callbacks for an invoice already past processing are no-ops.
func (inv *Invoice) MarkPaymentPending(now time.Time) error {
	switch inv.Status {
	case StatusProcessing:
		inv.Status = StatusPaymentPending
		inv.UpdatedAt = now
		return nil
	case StatusPaymentPending, StatusPaid:
		return nil // idempotent replay
	default:
		return &domain.InvalidStateError{Action: "acknowledge", Status: string(inv.Status)}
	}
}

// MarkPaid records settlement. Replays keep the original PaidAt.
func (inv *Invoice) MarkPaid(paidAt time.Time) error {
	switch inv.Status {
	case StatusPaymentPending, StatusProcessing:
		inv.Status = StatusPaid
		inv.PaidAt = &paidAt
		inv.UpdatedAt = paidAt
		return nil
	case StatusPaid:
		return nil // idempotent replay; PaidAt unchanged
	default:
		return &domain.InvalidStateError{Action: "settle", Status: string(inv.Status)}
	}
}

// MarkFailed records a payment execution failure. Failed invoices remain
// directly payable for administrator retry.
func (inv *Invoice) MarkFailed(reason string, now time.Time) error {
	switch inv.Status {
	case StatusProcessing, StatusPaymentPending:
		inv.Status = StatusFailed
		inv.FailureReason = &reason
		inv.UpdatedAt = now
		return nil
	case StatusFailed:
		return nil // idempotent replay
	default:
		return &domain.InvalidStateError{Action: "fail", Status: string(inv.Status)}
	}
}

// AcceptOneOff lets the payee of a one-off payment pick a percentage within
// the offered range and clears the acceptance gate.
func (inv *Invoice) AcceptOneOff(percentage int, programEnabled bool, now time.Time) error {
	if inv.InvoiceType != InvoiceTypeOther || !inv.RequiresAcceptance {
		return &domain.InvalidStateError{Action: "accept", Status: string(inv.Status)}
	}
	if inv.MinAllowedEquityPercentage != nil && percentage < *inv.MinAllowedEquityPercentage {
		return domain.ErrInvalidInput
	}
	if inv.MaxAllowedEquityPercentage != nil && percentage > *inv.MaxAllowedEquityPercentage {
		return domain.ErrInvalidInput
	}
	inv.RequiresAcceptance = false
	inv.Recalculate(percentage, programEnabled)
	inv.UpdatedAt = now
	return nil
}

// SoftDelete hides the invoice from active views while retaining history.
func (inv *Invoice) SoftDelete(now time.Time) {
	if inv.DeletedAt == nil {
		inv.DeletedAt = &now
		inv.UpdatedAt = now
	}
}
