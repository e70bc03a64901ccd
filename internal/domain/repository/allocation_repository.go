package repository

import (
	"context"

	"github.com/crewpay/payments-api/internal/domain/entity"
)

// EquityAllocationRepository is the persistence port for per-contractor-per-year
// equity allocations.
type EquityAllocationRepository interface {
	// GetForYear returns the allocation or nil when none exists yet.
	GetForYear(ctx context.Context, contractorID string, year int) (*entity.EquityAllocation, error)
	// GetOrCreateForUpdate lazily creates the year's record at 0%/unlocked and
	// returns it with its row locked for the rest of the transaction. The
	// unique (contractor_id, year) constraint makes concurrent lazy creates
	// collapse onto one winning row.
	GetOrCreateForUpdate(ctx context.Context, a *entity.EquityAllocation) (*entity.EquityAllocation, error)
	Update(ctx context.Context, a *entity.EquityAllocation) error
	// UpdateStatus advances the grant status reported by the external equity
	// grant process.
	UpdateStatus(ctx context.Context, id, status string) error
}
