package repository

import (
	"context"

	"github.com/crewpay/payments-api/internal/domain/entity"
)

// CompanyRepository is the persistence port for company settings. The approval
// engine re-reads the company on every quorum check rather than caching the
// required count.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	Create(ctx context.Context, c *entity.Company) error
	Update(ctx context.Context, c *entity.Company) error
}
