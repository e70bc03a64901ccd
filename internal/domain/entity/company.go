package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Company holds the equity-program state and approval policy read by the
// invoice engine. RequiredInvoiceApprovalCount can change at any time; quorum
// checks always use a fresh read, never a value frozen at invoice creation.
type Company struct {
	ID                           string
	Name                         string
	EquityCompensationEnabled    bool
	RequiredInvoiceApprovalCount int // >= 1
	// FMVPerShare is the current per-share fair market value used only by the
	// grant-creation collaborator to convert equity cents into option units.
	// Prices are frequently sub-cent, hence decimal rather than integer cents.
	FMVPerShare decimal.Decimal
	// MaxInvoiceMinutes caps the total billable minutes of a single hourly invoice.
	MaxInvoiceMinutes int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RequiredApprovals normalizes the configured count; anything below 1 behaves as 1.
func (c *Company) RequiredApprovals() int {
	if c.RequiredInvoiceApprovalCount < 1 {
		return 1
	}
	return c.RequiredInvoiceApprovalCount
}
