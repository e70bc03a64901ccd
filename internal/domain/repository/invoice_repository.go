package repository

import (
	"context"

	"github.com/crewpay/payments-api/internal/domain/entity"
)

// InvoiceFilter narrows listings. Zero values mean "no filter".
type InvoiceFilter struct {
	ContractorID string
	Status       entity.InvoiceStatus
	Limit        int
	Offset       int
}

// InvoiceRepository is the persistence port for the invoice aggregate.
// Implementations persist line items, expenses and approvals with the header
// so the aggregate round-trips whole.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *entity.Invoice) error
	// Update replaces the aggregate wholesale: header, line items, expenses and
	// approvals. Invoices are immutable values swapped on each mutation.
	Update(ctx context.Context, inv *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// GetByIDForUpdate locks the invoice row for the rest of the transaction.
	// Only meaningful on a tx-bound repository.
	GetByIDForUpdate(ctx context.Context, id string) (*entity.Invoice, error)
	// ListByCompany returns non-deleted invoices, newest first.
	ListByCompany(ctx context.Context, companyID string, f InvoiceFilter) ([]*entity.Invoice, error)
	// ListPayable returns the company's candidate invoices for batching,
	// received/approved/failed and not deleted, without locking. The
	// payability rule itself is applied by the caller.
	ListPayable(ctx context.Context, companyID string) ([]*entity.Invoice, error)
	// ListPayableForUpdate is ListPayable with row locks held for the rest of
	// the transaction. Only meaningful on a tx-bound repository.
	ListPayableForUpdate(ctx context.Context, companyID string) ([]*entity.Invoice, error)
	// ListByConsolidatedInvoice returns the invoices claimed by a batch.
	ListByConsolidatedInvoice(ctx context.Context, batchID string) ([]*entity.Invoice, error)
}
