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

// InvoiceRepository persists the invoice aggregate across the invoices,
// invoice_line_items, invoice_expenses and invoice_approvals tables.
type InvoiceRepository struct {
	q Querier
}

var _ repository.InvoiceRepository = (*InvoiceRepository)(nil)

// NewInvoiceRepository builds a repository on a pool or transaction.
func NewInvoiceRepository(q Querier) *InvoiceRepository {
	return &InvoiceRepository{q: q}
}

const invoiceColumns = `id, company_id, contractor_id, created_by_id, invoice_type,
		invoice_number, invoice_date, notes, total_amount_cents, equity_percentage,
		equity_amount_cents, cash_amount_cents, equity_option_count,
		min_allowed_equity_percentage, max_allowed_equity_percentage, requires_acceptance,
		status, rejected_by_id, rejected_at, rejection_reason, consolidated_invoice_id,
		paid_at, failure_reason, deleted_at, created_at, updated_at`

// Create inserts the header and its child rows.
func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)`

	_, err := r.q.Exec(ctx, query,
		inv.ID, inv.CompanyID, inv.ContractorID, inv.CreatedByID, inv.InvoiceType,
		inv.InvoiceNumber, inv.InvoiceDate, inv.Notes, inv.TotalAmountCents, inv.EquityPercentage,
		inv.EquityAmountCents, inv.CashAmountCents, inv.EquityOptionCount,
		inv.MinAllowedEquityPercentage, inv.MaxAllowedEquityPercentage, inv.RequiresAcceptance,
		string(inv.Status), inv.RejectedByID, inv.RejectedAt, inv.RejectionReason, inv.ConsolidatedInvoiceID,
		inv.PaidAt, inv.FailureReason, inv.DeletedAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return r.insertChildren(ctx, inv)
}

// Update replaces the aggregate wholesale: the header row is updated and every
// child row is deleted and re-inserted from the in-memory state.
func (r *InvoiceRepository) Update(ctx context.Context, inv *entity.Invoice) error {
	query := `
		UPDATE invoices SET
			invoice_number = $2, invoice_date = $3, notes = $4,
			total_amount_cents = $5, equity_percentage = $6,
			equity_amount_cents = $7, cash_amount_cents = $8, equity_option_count = $9,
			min_allowed_equity_percentage = $10, max_allowed_equity_percentage = $11,
			requires_acceptance = $12, status = $13,
			rejected_by_id = $14, rejected_at = $15, rejection_reason = $16,
			consolidated_invoice_id = $17, paid_at = $18, failure_reason = $19,
			deleted_at = $20, updated_at = $21
		WHERE id = $1`

	tag, err := r.q.Exec(ctx, query,
		inv.ID,
		inv.InvoiceNumber, inv.InvoiceDate, inv.Notes,
		inv.TotalAmountCents, inv.EquityPercentage,
		inv.EquityAmountCents, inv.CashAmountCents, inv.EquityOptionCount,
		inv.MinAllowedEquityPercentage, inv.MaxAllowedEquityPercentage,
		inv.RequiresAcceptance, string(inv.Status),
		inv.RejectedByID, inv.RejectedAt, inv.RejectionReason,
		inv.ConsolidatedInvoiceID, inv.PaidAt, inv.FailureReason,
		inv.DeletedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	for _, table := range []string{"invoice_line_items", "invoice_expenses", "invoice_approvals"} {
		if _, err := r.q.Exec(ctx, "DELETE FROM "+table+" WHERE invoice_id = $1", inv.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return r.insertChildren(ctx, inv)
}

// GetByID returns the aggregate or nil when absent.
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.getOne(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE id = $1", id)
}

// GetByIDForUpdate locks the header row for the rest of the transaction.
func (r *InvoiceRepository) GetByIDForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.getOne(ctx, "SELECT "+invoiceColumns+" FROM invoices WHERE id = $1 FOR UPDATE", id)
}

// ListByCompany returns non-deleted invoices newest first, optionally filtered
// by contractor and status.
func (r *InvoiceRepository) ListByCompany(ctx context.Context, companyID string, f repository.InvoiceFilter) ([]*entity.Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices WHERE company_id = $1 AND deleted_at IS NULL"
	args := []any{companyID}

	if f.ContractorID != "" {
		args = append(args, f.ContractorID)
		query += fmt.Sprintf(" AND contractor_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return r.getMany(ctx, query, args...)
}

// ListPayable returns the company's batching candidates without locking:
// received, approved or failed, not deleted.
func (r *InvoiceRepository) ListPayable(ctx context.Context, companyID string) ([]*entity.Invoice, error) {
	query := "SELECT " + invoiceColumns + ` FROM invoices
		WHERE company_id = $1 AND deleted_at IS NULL
		  AND status IN ('received', 'approved', 'failed')
		ORDER BY id`
	return r.getMany(ctx, query, companyID)
}

// ListPayableForUpdate locks and returns the same candidate set. Ordered by id
// so concurrent batch creations acquire row locks in the same order.
func (r *InvoiceRepository) ListPayableForUpdate(ctx context.Context, companyID string) ([]*entity.Invoice, error) {
	query := "SELECT " + invoiceColumns + ` FROM invoices
		WHERE company_id = $1 AND deleted_at IS NULL
		  AND status IN ('received', 'approved', 'failed')
		ORDER BY id
		FOR UPDATE`
	return r.getMany(ctx, query, companyID)
}

// ListByConsolidatedInvoice returns the invoices claimed by a batch.
func (r *InvoiceRepository) ListByConsolidatedInvoice(ctx context.Context, batchID string) ([]*entity.Invoice, error) {
	query := "SELECT " + invoiceColumns + " FROM invoices WHERE consolidated_invoice_id = $1 ORDER BY id"
	return r.getMany(ctx, query, batchID)
}

func (r *InvoiceRepository) getOne(ctx context.Context, query string, args ...any) (*entity.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if err := r.loadChildren(ctx, []*entity.Invoice{inv}); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *InvoiceRepository) getMany(ctx context.Context, query string, args ...any) ([]*entity.Invoice, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoices: %w", err)
	}
	if err := r.loadChildren(ctx, invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var status string
	err := row.Scan(
		&inv.ID, &inv.CompanyID, &inv.ContractorID, &inv.CreatedByID, &inv.InvoiceType,
		&inv.InvoiceNumber, &inv.InvoiceDate, &inv.Notes, &inv.TotalAmountCents, &inv.EquityPercentage,
		&inv.EquityAmountCents, &inv.CashAmountCents, &inv.EquityOptionCount,
		&inv.MinAllowedEquityPercentage, &inv.MaxAllowedEquityPercentage, &inv.RequiresAcceptance,
		&status, &inv.RejectedByID, &inv.RejectedAt, &inv.RejectionReason, &inv.ConsolidatedInvoiceID,
		&inv.PaidAt, &inv.FailureReason, &inv.DeletedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	inv.Status = entity.InvoiceStatus(status)
	return &inv, nil
}

func (r *InvoiceRepository) insertChildren(ctx context.Context, inv *entity.Invoice) error {
	for i, li := range inv.LineItems {
		id := li.ID
		if id == "" {
			id = uuid.New().String()
			inv.LineItems[i].ID = id
		}
		_, err := r.q.Exec(ctx, `
			INSERT INTO invoice_line_items (id, invoice_id, position, description, quantity, hourly, rate_cents, amount_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			id, inv.ID, i, li.Description, li.Quantity, li.Hourly, li.RateCents, li.AmountCents,
		)
		if err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}
	for i, ex := range inv.Expenses {
		id := ex.ID
		if id == "" {
			id = uuid.New().String()
			inv.Expenses[i].ID = id
		}
		_, err := r.q.Exec(ctx, `
			INSERT INTO invoice_expenses (id, invoice_id, position, description, category_id, amount_cents, attachment_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			id, inv.ID, i, ex.Description, ex.CategoryID, ex.AmountCents, nullIfEmpty(ex.AttachmentID),
		)
		if err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
	}
	for _, ap := range inv.Approvals {
		_, err := r.q.Exec(ctx, `
			INSERT INTO invoice_approvals (invoice_id, approver_id, approved_at)
			VALUES ($1, $2, $3)`,
			inv.ID, ap.ApproverID, ap.ApprovedAt,
		)
		if err != nil {
			return fmt.Errorf("insert approval: %w", err)
		}
	}
	return nil
}

func (r *InvoiceRepository) loadChildren(ctx context.Context, invoices []*entity.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	byID := make(map[string]*entity.Invoice, len(invoices))
	ids := make([]string, 0, len(invoices))
	for _, inv := range invoices {
		byID[inv.ID] = inv
		ids = append(ids, inv.ID)
	}

	rows, err := r.q.Query(ctx, `
		SELECT invoice_id, id, description, quantity, hourly, rate_cents, amount_cents
		FROM invoice_line_items WHERE invoice_id = ANY($1) ORDER BY invoice_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load line items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var invoiceID string
		var li entity.LineItem
		if err := rows.Scan(&invoiceID, &li.ID, &li.Description, &li.Quantity, &li.Hourly, &li.RateCents, &li.AmountCents); err != nil {
			return fmt.Errorf("scan line item: %w", err)
		}
		inv := byID[invoiceID]
		inv.LineItems = append(inv.LineItems, li)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate line items: %w", err)
	}

	rows, err = r.q.Query(ctx, `
		SELECT invoice_id, id, description, category_id, amount_cents, attachment_id
		FROM invoice_expenses WHERE invoice_id = ANY($1) ORDER BY invoice_id, position`, ids)
	if err != nil {
		return fmt.Errorf("load expenses: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var invoiceID string
		var attachment *string
		var ex entity.Expense
		if err := rows.Scan(&invoiceID, &ex.ID, &ex.Description, &ex.CategoryID, &ex.AmountCents, &attachment); err != nil {
			return fmt.Errorf("scan expense: %w", err)
		}
		ex.AttachmentID = derefStr(attachment)
		inv := byID[invoiceID]
		inv.Expenses = append(inv.Expenses, ex)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate expenses: %w", err)
	}

	rows, err = r.q.Query(ctx, `
		SELECT invoice_id, approver_id, approved_at
		FROM invoice_approvals WHERE invoice_id = ANY($1) ORDER BY invoice_id, approved_at`, ids)
	if err != nil {
		return fmt.Errorf("load approvals: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var invoiceID string
		var ap entity.Approval
		if err := rows.Scan(&invoiceID, &ap.ApproverID, &ap.ApprovedAt); err != nil {
			return fmt.Errorf("scan approval: %w", err)
		}
		inv := byID[invoiceID]
		inv.Approvals = append(inv.Approvals, ap)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate approvals: %w", err)
	}
	return nil
}
