package payments

import (
	"context"

	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/repository"
)

// InvoicePDFGenerator renders an invoice document.
type InvoicePDFGenerator interface {
	GenerateInvoicePDF(ctx context.Context, inv *entity.Invoice, company *entity.Company, contractor *entity.User) ([]byte, error)
}

// PDFUseCase loads an invoice with its company and contractor and renders the
// downloadable document.
type PDFUseCase struct {
	invoiceRepo repository.InvoiceRepository
	companyRepo repository.CompanyRepository
	userRepo    repository.UserRepository
	generator   InvoicePDFGenerator
}

// NewPDFUseCase builds the use case.
func NewPDFUseCase(
	invoiceRepo repository.InvoiceRepository,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	generator InvoicePDFGenerator,
) *PDFUseCase {
	return &PDFUseCase{
		invoiceRepo: invoiceRepo,
		companyRepo: companyRepo,
		userRepo:    userRepo,
		generator:   generator,
	}
}

// Render produces the PDF bytes for one invoice.
func (uc *PDFUseCase) Render(ctx context.Context, companyID, actorID, actorRole, invoiceID string) ([]byte, error) {
	inv, err := uc.invoiceRepo.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil || inv.DeletedAt != nil || inv.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	if actorRole == entity.RoleContractor && inv.ContractorID != actorID {
		return nil, domain.ErrForbidden
	}
	company, err := uc.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	contractor, err := uc.userRepo.GetByID(ctx, inv.ContractorID)
	if err != nil {
		return nil, err
	}
	return uc.generator.GenerateInvoicePDF(ctx, inv, company, contractor)
}
