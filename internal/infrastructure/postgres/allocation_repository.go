package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/repository"
)

// EquityAllocationRepository persists per-contractor-per-year allocations.
// The equity_allocations table carries a unique (contractor_id, year) index.
type EquityAllocationRepository struct {
	q Querier
}

var _ repository.EquityAllocationRepository = (*EquityAllocationRepository)(nil)

// NewEquityAllocationRepository builds a repository on a pool or transaction.
func NewEquityAllocationRepository(q Querier) *EquityAllocationRepository {
	return &EquityAllocationRepository{q: q}
}

const allocationColumns = `id, company_id, contractor_id, year, equity_percentage, locked, status, created_at, updated_at`

// GetForYear returns the allocation or nil when none exists yet.
func (r *EquityAllocationRepository) GetForYear(ctx context.Context, contractorID string, year int) (*entity.EquityAllocation, error) {
	query := "SELECT " + allocationColumns + " FROM equity_allocations WHERE contractor_id = $1 AND year = $2"
	a, err := scanAllocation(r.q.QueryRow(ctx, query, contractorID, year))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get allocation: %w", err)
	}
	return a, nil
}

// GetOrCreateForUpdate lazily inserts the year's 0%/unlocked record and then
// locks it. ON CONFLICT DO NOTHING makes racing lazy creates collapse onto
// one row; the following SELECT FOR UPDATE serializes the callers on it.
func (r *EquityAllocationRepository) GetOrCreateForUpdate(ctx context.Context, a *entity.EquityAllocation) (*entity.EquityAllocation, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO equity_allocations (`+allocationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (contractor_id, year) DO NOTHING`,
		a.ID, a.CompanyID, a.ContractorID, a.Year, a.EquityPercentage, a.Locked, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert allocation: %w", err)
	}

	query := "SELECT " + allocationColumns + " FROM equity_allocations WHERE contractor_id = $1 AND year = $2 FOR UPDATE"
	locked, err := scanAllocation(r.q.QueryRow(ctx, query, a.ContractorID, a.Year))
	if err != nil {
		return nil, fmt.Errorf("lock allocation: %w", err)
	}
	return locked, nil
}

// Update persists the allocation's mutable fields.
func (r *EquityAllocationRepository) Update(ctx context.Context, a *entity.EquityAllocation) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE equity_allocations
		SET equity_percentage = $2, locked = $3, status = $4, updated_at = $5
		WHERE id = $1`,
		a.ID, a.EquityPercentage, a.Locked, a.Status, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update allocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus advances only the grant status.
func (r *EquityAllocationRepository) UpdateStatus(ctx context.Context, id, status string) error {
	tag, err := r.q.Exec(ctx,
		"UPDATE equity_allocations SET status = $2, updated_at = NOW() WHERE id = $1",
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update allocation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAllocation(row pgx.Row) (*entity.EquityAllocation, error) {
	var a entity.EquityAllocation
	err := row.Scan(
		&a.ID, &a.CompanyID, &a.ContractorID, &a.Year,
		&a.EquityPercentage, &a.Locked, &a.Status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
