package dto

import "time"

// LineItemRequest one billed line. For hourly work either Minutes or the
// "H:MM" Duration string may be supplied; Duration wins when both are present.
type LineItemRequest struct {
	Description string `json:"description"`
	Hourly      bool   `json:"hourly"`
	Minutes     int64  `json:"minutes,omitempty"`
	Duration    string `json:"duration,omitempty"` // "3:25"
	Quantity    int64  `json:"quantity,omitempty"` // unit count for non-hourly lines
	RateCents   int64  `json:"rateCents"`
}

// ExpenseRequest one reimbursable expense.
type ExpenseRequest struct {
	Description  string `json:"description"`
	CategoryID   string `json:"categoryId"`
	AmountCents  int64  `json:"amountCents"`
	AttachmentID string `json:"attachmentId,omitempty"`
}

// SubmitInvoiceRequest contractor invoice submission (also used for resubmits).
type SubmitInvoiceRequest struct {
	InvoiceNumber    string           `json:"invoiceNumber"`
	InvoiceDate      time.Time        `json:"invoiceDate"`
	Notes            string           `json:"notes,omitempty"`
	EquityPercentage int              `json:"equityPercentage"`
	LineItems        []LineItemRequest `json:"lineItems"`
	Expenses         []ExpenseRequest  `json:"expenses,omitempty"`
}

// CreateOneOffRequest administrator-created one-off payment, optionally with a
// negotiable equity range the payee accepts later.
type CreateOneOffRequest struct {
	ContractorID               string `json:"contractorId"`
	Description                string `json:"description"`
	AmountCents                int64  `json:"amountCents"`
	MinAllowedEquityPercentage *int   `json:"minAllowedEquityPercentage,omitempty"`
	MaxAllowedEquityPercentage *int   `json:"maxAllowedEquityPercentage,omitempty"`
}

// AcceptOneOffRequest payee acceptance of a one-off payment.
type AcceptOneOffRequest struct {
	EquityPercentage int `json:"equityPercentage"`
}

// RejectInvoiceRequest administrator rejection.
type RejectInvoiceRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ApproveInvoiceRequest administrator approval; PayNow combines the final
// approval with immediate batching when the invoice is payable.
type ApproveInvoiceRequest struct {
	PayNow bool `json:"payNow,omitempty"`
}

// PreviewSplitRequest computes a cash/equity preview without locking the year.
type PreviewSplitRequest struct {
	AmountCents      int64 `json:"amountCents"`
	EquityPercentage int   `json:"equityPercentage"`
	Year             int   `json:"year"`
}

// SplitResponse preview or committed split amounts.
type SplitResponse struct {
	TotalAmountCents  int64 `json:"totalAmountCents"`
	CashAmountCents   int64 `json:"cashAmountCents"`
	EquityAmountCents int64 `json:"equityAmountCents"`
	EquityPercentage  int   `json:"equityPercentage"`
	Locked            bool  `json:"locked"` // whether the year's allocation is already locked
}

// LineItemResponse line item in responses.
type LineItemResponse struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Hourly      bool   `json:"hourly"`
	Quantity    int64  `json:"quantity"`
	Duration    string `json:"duration,omitempty"` // "H:MM" for hourly lines
	RateCents   int64  `json:"rateCents"`
	AmountCents int64  `json:"amountCents"`
}

// ExpenseResponse expense in responses.
type ExpenseResponse struct {
	ID           string `json:"id"`
	Description  string `json:"description"`
	CategoryID   string `json:"categoryId"`
	AmountCents  int64  `json:"amountCents"`
	AttachmentID string `json:"attachmentId,omitempty"`
}

// ApprovalResponse one recorded approval.
type ApprovalResponse struct {
	ApproverID string    `json:"approverId"`
	ApprovedAt time.Time `json:"approvedAt"`
}

// InvoiceResponse full invoice view.
type InvoiceResponse struct {
	ID                    string             `json:"id"`
	CompanyID             string             `json:"companyId"`
	ContractorID          string             `json:"contractorId"`
	InvoiceType           string             `json:"invoiceType"`
	InvoiceNumber         string             `json:"invoiceNumber"`
	InvoiceDate           string             `json:"invoiceDate"` // YYYY-MM-DD
	Notes                 string             `json:"notes,omitempty"`
	Status                string             `json:"status"`
	TotalAmountCents      int64              `json:"totalAmountCents"`
	CashAmountCents       int64              `json:"cashAmountCents"`
	EquityAmountCents     int64              `json:"equityAmountCents"`
	EquityPercentage      int                `json:"equityPercentage"`
	EquityOptionCount     *int64             `json:"equityOptionCount,omitempty"`
	RequiresAcceptance    bool               `json:"requiresAcceptance,omitempty"`
	LineItems             []LineItemResponse `json:"lineItems"`
	Expenses              []ExpenseResponse  `json:"expenses,omitempty"`
	Approvals             []ApprovalResponse `json:"approvals"`
	Payable               bool               `json:"payable"`
	RejectedBy            *string            `json:"rejectedBy,omitempty"`
	RejectedAt            *time.Time         `json:"rejectedAt,omitempty"`
	RejectionReason       *string            `json:"rejectionReason,omitempty"`
	ConsolidatedInvoiceID *string            `json:"consolidatedInvoiceId,omitempty"`
	PaidAt                *time.Time         `json:"paidAt,omitempty"`
	FailureReason         *string            `json:"failureReason,omitempty"`
	CreatedAt             time.Time          `json:"createdAt"`
}

// InvoiceListResponse paginated invoice listing.
type InvoiceListResponse struct {
	Invoices []InvoiceResponse `json:"invoices"`
	Page     PageResponse      `json:"page"`
}

// AllocationResponse a contractor's equity allocation for one year.
type AllocationResponse struct {
	ContractorID     string `json:"contractorId"`
	Year             int    `json:"year"`
	EquityPercentage int    `json:"equityPercentage"`
	Locked           bool   `json:"locked"`
	Status           string `json:"status"`
}

// BatchResponse one consolidated invoice (payment batch).
type BatchResponse struct {
	ID          string     `json:"id"`
	CompanyID   string     `json:"companyId"`
	Status      string     `json:"status"`
	TotalCents  int64      `json:"totalCents"`
	InvoiceIDs  []string   `json:"invoiceIds"`
	ProviderRef string     `json:"providerRef,omitempty"`
	SettledAt   *time.Time `json:"settledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}
