package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/repository"
)

// ConsolidatedInvoiceRepository persists payment batches. The claimed invoice
// ids live in a TEXT[] column; the invoices themselves point back through
// invoices.consolidated_invoice_id.
type ConsolidatedInvoiceRepository struct {
	q Querier
}

var _ repository.ConsolidatedInvoiceRepository = (*ConsolidatedInvoiceRepository)(nil)

// NewConsolidatedInvoiceRepository builds a repository on a pool or transaction.
func NewConsolidatedInvoiceRepository(q Querier) *ConsolidatedInvoiceRepository {
	return &ConsolidatedInvoiceRepository{q: q}
}

const batchColumns = `id, company_id, created_by_id, invoice_ids, total_cents, status, provider_ref, settled_at, created_at, updated_at`

// Create inserts a batch.
func (r *ConsolidatedInvoiceRepository) Create(ctx context.Context, b *entity.ConsolidatedInvoice) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO consolidated_invoices (`+batchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		b.ID, b.CompanyID, b.CreatedByID, b.InvoiceIDs, b.TotalCents, b.Status,
		nullIfEmpty(b.ProviderRef), b.SettledAt, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// Update persists the batch's mutable fields.
func (r *ConsolidatedInvoiceRepository) Update(ctx context.Context, b *entity.ConsolidatedInvoice) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE consolidated_invoices
		SET status = $2, provider_ref = $3, settled_at = $4, updated_at = $5
		WHERE id = $1`,
		b.ID, b.Status, nullIfEmpty(b.ProviderRef), b.SettledAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID returns the batch or nil when absent.
func (r *ConsolidatedInvoiceRepository) GetByID(ctx context.Context, id string) (*entity.ConsolidatedInvoice, error) {
	return r.getOne(ctx, "SELECT "+batchColumns+" FROM consolidated_invoices WHERE id = $1", id)
}

// GetByProviderRef resolves an inbound callback to its batch, or nil.
func (r *ConsolidatedInvoiceRepository) GetByProviderRef(ctx context.Context, providerRef string) (*entity.ConsolidatedInvoice, error) {
	return r.getOne(ctx, "SELECT "+batchColumns+" FROM consolidated_invoices WHERE provider_ref = $1", providerRef)
}

// ListByCompany returns the company's batches, newest first.
func (r *ConsolidatedInvoiceRepository) ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.ConsolidatedInvoice, error) {
	query := "SELECT " + batchColumns + " FROM consolidated_invoices WHERE company_id = $1 ORDER BY created_at DESC"
	args := []any{companyID}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []*entity.ConsolidatedInvoice
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

func (r *ConsolidatedInvoiceRepository) getOne(ctx context.Context, query string, args ...any) (*entity.ConsolidatedInvoice, error) {
	b, err := scanBatch(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	return b, nil
}

func scanBatch(row pgx.Row) (*entity.ConsolidatedInvoice, error) {
	var b entity.ConsolidatedInvoice
	var providerRef *string
	err := row.Scan(
		&b.ID, &b.CompanyID, &b.CreatedByID, &b.InvoiceIDs, &b.TotalCents, &b.Status,
		&providerRef, &b.SettledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.ProviderRef = derefStr(providerRef)
	return &b, nil
}
