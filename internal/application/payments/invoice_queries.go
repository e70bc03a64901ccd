package payments

import (
	"context"

	"github.com/crewpay/payments-api/internal/application/dto"
	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/repository"
)

// InvoiceQueryUseCase serves read-only invoice projections (listing APIs, CSV
// export feeds) and soft deletion. Reads run on pool-bound repos, no
// transaction needed.
type InvoiceQueryUseCase struct {
	invoiceRepo    repository.InvoiceRepository
	companyRepo    repository.CompanyRepository
	allocationRepo repository.EquityAllocationRepository
	taxChecker     TaxComplianceChecker
	txRunner       TxRunner
	clock          Clock
}

// NewInvoiceQueryUseCase builds the use case.
func NewInvoiceQueryUseCase(
	invoiceRepo repository.InvoiceRepository,
	companyRepo repository.CompanyRepository,
	allocationRepo repository.EquityAllocationRepository,
	taxChecker TaxComplianceChecker,
	txRunner TxRunner,
	clock Clock,
) *InvoiceQueryUseCase {
	return &InvoiceQueryUseCase{
		invoiceRepo:    invoiceRepo,
		companyRepo:    companyRepo,
		allocationRepo: allocationRepo,
		taxChecker:     taxChecker,
		txRunner:       txRunner,
		clock:          clock,
	}
}

// Get returns one invoice with its payability evaluated for the given actor
// against the company's current approval threshold.
func (uc *InvoiceQueryUseCase) Get(ctx context.Context, companyID, actorID, actorRole, invoiceID string) (*dto.InvoiceResponse, error) {
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
	payable, err := uc.payable(ctx, inv, actorID)
	if err != nil {
		return nil, err
	}
	return toInvoiceResponse(inv, payable), nil
}

// List returns the company's invoices; contractors only see their own.
func (uc *InvoiceQueryUseCase) List(ctx context.Context, companyID, actorID, actorRole string, status string, page dto.PageRequest) (*dto.InvoiceListResponse, error) {
	page.DefaultPage()
	filter := repository.InvoiceFilter{
		Status: entity.InvoiceStatus(status),
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	if actorRole == entity.RoleContractor {
		filter.ContractorID = actorID
	}
	invoices, err := uc.invoiceRepo.ListByCompany(ctx, companyID, filter)
	if err != nil {
		return nil, err
	}
	out := &dto.InvoiceListResponse{
		Invoices: make([]dto.InvoiceResponse, 0, len(invoices)),
		Page:     dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}
	for _, inv := range invoices {
		payable := false
		if actorRole == entity.RoleAdmin {
			if payable, err = uc.payable(ctx, inv, actorID); err != nil {
				return nil, err
			}
		}
		out.Invoices = append(out.Invoices, *toInvoiceResponse(inv, payable))
	}
	return out, nil
}

// SoftDelete hides an invoice from active views while retaining its history.
// Only the submitting contractor may delete, and only while editable.
func (uc *InvoiceQueryUseCase) SoftDelete(ctx context.Context, companyID, contractorID, invoiceID string) error {
	now := uc.clock.Now()
	return uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.EquityAllocationRepository,
		_ repository.CompanyRepository,
		_ repository.ConsolidatedInvoiceRepository,
	) error {
		inv, err := invoiceRepo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil || inv.DeletedAt != nil || inv.CompanyID != companyID {
			return domain.ErrNotFound
		}
		if inv.ContractorID != contractorID {
			return domain.ErrForbidden
		}
		if !inv.IsEditable() {
			return &domain.InvalidStateError{Action: "delete", Status: string(inv.Status)}
		}
		inv.SoftDelete(now)
		return invoiceRepo.Update(ctx, inv)
	})
}

// GetAllocation returns a contractor's allocation for a year, or the implicit
// 0%/unlocked default when none exists yet.
func (uc *InvoiceQueryUseCase) GetAllocation(ctx context.Context, contractorID string, year int) (*dto.AllocationResponse, error) {
	alloc, err := uc.allocationRepo.GetForYear(ctx, contractorID, year)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return &dto.AllocationResponse{
			ContractorID:     contractorID,
			Year:             year,
			EquityPercentage: 0,
			Locked:           false,
			Status:           entity.AllocationPendingConfirmation,
		}, nil
	}
	return toAllocationResponse(alloc), nil
}

func (uc *InvoiceQueryUseCase) payable(ctx context.Context, inv *entity.Invoice, actorID string) (bool, error) {
	company, err := uc.companyRepo.GetByID(ctx, inv.CompanyID)
	if err != nil {
		return false, err
	}
	if company == nil {
		return false, domain.ErrNotFound
	}
	taxMet, err := uc.taxChecker.AreTaxRequirementsMet(ctx, inv.ContractorID)
	if err != nil {
		return false, &domain.ExternalServiceError{Service: "tax compliance check", Err: err}
	}
	return inv.IsPayable(entity.PayabilityContext{
		RequiredApprovalCount: company.RequiredApprovals(),
		ActorHasApproved:      inv.ApprovedBy(actorID),
		TaxRequirementsMet:    taxMet,
	}), nil
}
