package entity

import (
	"time"

	"github.com/crewpay/payments-api/internal/domain"
)

// Equity allocation grant statuses. The grant process itself is an external
// collaborator; the engine only advances the status it is told about.
const (
	AllocationPendingConfirmation  = "pending_confirmation"
	AllocationPendingGrantCreation = "pending_grant_creation"
	AllocationPendingApproval      = "pending_approval"
	AllocationApproved             = "approved"
)

// EquityAllocation is a contractor's elected cash/equity split percentage for
// one calendar year. At most one record exists per (contractor, year).
//
// Once Locked, the percentage is immutable for that year; the next electable
// year is year+1.
type EquityAllocation struct {
	ID               string
	CompanyID        string
	ContractorID     string
	Year             int
	EquityPercentage int // 0..100
	Locked           bool
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewEquityAllocation lazily creates the year's record at 0%/unlocked.
func NewEquityAllocation(companyID, contractorID string, year int, now time.Time) *EquityAllocation {
	return &EquityAllocation{
		CompanyID:        companyID,
		ContractorID:     contractorID,
		Year:             year,
		EquityPercentage: 0,
		Locked:           false,
		Status:           AllocationPendingConfirmation,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Lock fixes the year's percentage as part of an invoice submission.
//
// Re-locking with the already-locked percentage is a no-op; a different
// percentage against a locked year returns ConcurrentLockError carrying the
// winning value so the caller can retry with it. Locking never unwinds.
func (a *EquityAllocation) Lock(percentage int, now time.Time) error {
	if percentage < 0 || percentage > 100 {
		return domain.ErrInvalidInput
	}
	if a.Locked {
		if percentage != a.EquityPercentage {
			return &domain.ConcurrentLockError{Year: a.Year, LockedPercentage: a.EquityPercentage}
		}
		return nil
	}
	a.EquityPercentage = percentage
	a.Locked = true
	a.Status = AllocationPendingGrantCreation
	a.UpdatedAt = now
	return nil
}
