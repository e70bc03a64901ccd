package repository

import (
	"context"

	"github.com/crewpay/payments-api/internal/domain/entity"
)

// ConsolidatedInvoiceRepository is the persistence port for payment batches.
type ConsolidatedInvoiceRepository interface {
	Create(ctx context.Context, b *entity.ConsolidatedInvoice) error
	Update(ctx context.Context, b *entity.ConsolidatedInvoice) error
	GetByID(ctx context.Context, id string) (*entity.ConsolidatedInvoice, error)
	// GetByProviderRef resolves an inbound provider callback to its batch.
	GetByProviderRef(ctx context.Context, providerRef string) (*entity.ConsolidatedInvoice, error)
	ListByCompany(ctx context.Context, companyID string, limit, offset int) ([]*entity.ConsolidatedInvoice, error)
}
