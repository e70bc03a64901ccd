package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/repository"
)

// CompanyRepository persists company settings. fmv_per_share is NUMERIC and
// scans into decimal.Decimal through the codec registered on the pool.
type CompanyRepository struct {
	q Querier
}

var _ repository.CompanyRepository = (*CompanyRepository)(nil)

// NewCompanyRepository builds a repository on a pool or transaction.
func NewCompanyRepository(q Querier) *CompanyRepository {
	return &CompanyRepository{q: q}
}

const companyColumns = `id, name, equity_compensation_enabled, required_invoice_approval_count,
		fmv_per_share, max_invoice_minutes, created_at, updated_at`

// GetByID returns the company or nil when absent.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	var c entity.Company
	err := r.q.QueryRow(ctx, "SELECT "+companyColumns+" FROM companies WHERE id = $1", id).Scan(
		&c.ID, &c.Name, &c.EquityCompensationEnabled, &c.RequiredInvoiceApprovalCount,
		&c.FMVPerShare, &c.MaxInvoiceMinutes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}

// Create inserts a company.
func (r *CompanyRepository) Create(ctx context.Context, c *entity.Company) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO companies (`+companyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.Name, c.EquityCompensationEnabled, c.RequiredInvoiceApprovalCount,
		c.FMVPerShare, c.MaxInvoiceMinutes, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// Update persists the company's mutable settings.
func (r *CompanyRepository) Update(ctx context.Context, c *entity.Company) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE companies SET
			name = $2, equity_compensation_enabled = $3, required_invoice_approval_count = $4,
			fmv_per_share = $5, max_invoice_minutes = $6, updated_at = $7
		WHERE id = $1`,
		c.ID, c.Name, c.EquityCompensationEnabled, c.RequiredInvoiceApprovalCount,
		c.FMVPerShare, c.MaxInvoiceMinutes, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
