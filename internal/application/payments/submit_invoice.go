package payments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crewpay/payments-api/internal/application/dto"
	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/equity"
	"github.com/crewpay/payments-api/internal/domain/money"
	"github.com/crewpay/payments-api/internal/domain/repository"
)

// SubmitInvoiceUseCase creates and resubmits invoices, locking the year's
// equity allocation in the same transaction as the invoice write.
type SubmitInvoiceUseCase struct {
	txRunner       TxRunner
	companyRepo    repository.CompanyRepository
	allocationRepo repository.EquityAllocationRepository
	clock          Clock
}

// NewSubmitInvoiceUseCase builds the use case. companyRepo/allocationRepo are
// pool-bound and used for reads only; every write goes through txRunner.
func NewSubmitInvoiceUseCase(
	txRunner TxRunner,
	companyRepo repository.CompanyRepository,
	allocationRepo repository.EquityAllocationRepository,
	clock Clock,
) *SubmitInvoiceUseCase {
	return &SubmitInvoiceUseCase{
		txRunner:       txRunner,
		companyRepo:    companyRepo,
		allocationRepo: allocationRepo,
		clock:          clock,
	}
}

// Submit validates and persists a new services invoice. When the company's
// equity program is enabled, the contractor's allocation for the invoice year
// is locked to the elected percentage atomically with the invoice insert: no
// invoice exists without its year locked.
func (uc *SubmitInvoiceUseCase) Submit(ctx context.Context, companyID, contractorID string, in dto.SubmitInvoiceRequest) (*dto.InvoiceResponse, error) {
	now := uc.clock.Now()
	inv, err := uc.buildInvoice(companyID, contractorID, in, now)
	if err != nil {
		return nil, err
	}

	var out *dto.InvoiceResponse
	err = uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		allocationRepo repository.EquityAllocationRepository,
		companyRepo repository.CompanyRepository,
		_ repository.ConsolidatedInvoiceRepository,
	) error {
		company, err := companyRepo.GetByID(ctx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}
		if verr := inv.Validate(company.MaxInvoiceMinutes); verr != nil {
			return verr
		}

		pct, err := uc.lockAllocation(ctx, allocationRepo, company, contractorID, inv.Year(), in.EquityPercentage, now)
		if err != nil {
			return err
		}
		inv.Recalculate(pct, company.EquityCompensationEnabled)

		if err := invoiceRepo.Create(ctx, inv); err != nil {
			return err
		}
		out = toInvoiceResponse(inv, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Resubmit replaces the content of a received or rejected invoice and returns
// it to the start of the lifecycle: approvals reset, status received. The
// rejection fields stay as history.
func (uc *SubmitInvoiceUseCase) Resubmit(ctx context.Context, companyID, contractorID, invoiceID string, in dto.SubmitInvoiceRequest) (*dto.InvoiceResponse, error) {
	now := uc.clock.Now()

	var out *dto.InvoiceResponse
	err := uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		allocationRepo repository.EquityAllocationRepository,
		companyRepo repository.CompanyRepository,
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
			return &domain.InvalidStateError{Action: "edit", Status: string(inv.Status)}
		}

		company, err := companyRepo.GetByID(ctx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}

		if err := replaceContent(inv, in, now); err != nil {
			return err
		}
		if verr := inv.Validate(company.MaxInvoiceMinutes); verr != nil {
			return verr
		}
		if err := inv.Resubmit(now); err != nil {
			return err
		}

		pct, err := uc.lockAllocation(ctx, allocationRepo, company, contractorID, inv.Year(), in.EquityPercentage, now)
		if err != nil {
			return err
		}
		inv.Recalculate(pct, company.EquityCompensationEnabled)

		if err := invoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		out = toInvoiceResponse(inv, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOneOff creates an administrator-initiated one-off payment of type
// "other", optionally carrying a negotiable equity range the payee accepts
// later. Until accepted it is not payable. Without a range the contractor's
// locked allocation for the year applies, the same as a services invoice.
func (uc *SubmitInvoiceUseCase) CreateOneOff(ctx context.Context, companyID, adminID string, in dto.CreateOneOffRequest) (*dto.InvoiceResponse, error) {
	now := uc.clock.Now()
	if in.ContractorID == "" || in.AmountCents <= 0 || in.Description == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.MinAllowedEquityPercentage != nil && in.MaxAllowedEquityPercentage != nil &&
		*in.MinAllowedEquityPercentage > *in.MaxAllowedEquityPercentage {
		return nil, domain.ErrInvalidInput
	}

	inv := &entity.Invoice{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		ContractorID:  in.ContractorID,
		CreatedByID:   adminID,
		InvoiceType:   entity.InvoiceTypeOther,
		InvoiceNumber: "O-" + uuid.New().String()[:8],
		InvoiceDate:   now,
		LineItems: []entity.LineItem{{
			ID:          uuid.New().String(),
			Description: in.Description,
			Quantity:    1,
			RateCents:   in.AmountCents,
		}},
		MinAllowedEquityPercentage: in.MinAllowedEquityPercentage,
		MaxAllowedEquityPercentage: in.MaxAllowedEquityPercentage,
		RequiresAcceptance:         in.MinAllowedEquityPercentage != nil || in.MaxAllowedEquityPercentage != nil,
		Status:                     entity.StatusReceived,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	var out *dto.InvoiceResponse
	err := uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		allocationRepo repository.EquityAllocationRepository,
		companyRepo repository.CompanyRepository,
		_ repository.ConsolidatedInvoiceRepository,
	) error {
		company, err := companyRepo.GetByID(ctx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}
		pct := 0
		if !inv.RequiresAcceptance && company.EquityCompensationEnabled {
			alloc, err := allocationRepo.GetForYear(ctx, in.ContractorID, inv.Year())
			if err != nil {
				return err
			}
			if alloc != nil && alloc.Locked {
				pct = alloc.EquityPercentage
			}
		}
		inv.Recalculate(pct, company.EquityCompensationEnabled)
		if err := invoiceRepo.Create(ctx, inv); err != nil {
			return err
		}
		out = toInvoiceResponse(inv, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AcceptOneOff records the payee's chosen percentage for a one-off payment and
// locks the year's allocation with it.
func (uc *SubmitInvoiceUseCase) AcceptOneOff(ctx context.Context, companyID, contractorID, invoiceID string, in dto.AcceptOneOffRequest) (*dto.InvoiceResponse, error) {
	now := uc.clock.Now()

	var out *dto.InvoiceResponse
	err := uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		allocationRepo repository.EquityAllocationRepository,
		companyRepo repository.CompanyRepository,
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

		company, err := companyRepo.GetByID(ctx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}

		pct, err := uc.lockAllocation(ctx, allocationRepo, company, contractorID, inv.Year(), in.EquityPercentage, now)
		if err != nil {
			return err
		}
		if err := inv.AcceptOneOff(pct, company.EquityCompensationEnabled, now); err != nil {
			return err
		}
		if err := invoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		out = toInvoiceResponse(inv, false)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PreviewSplit computes the cash/equity division for an amount without any
// side effect: the year's allocation is read but never created or locked.
// Distinct from Submit by design, so the UI can preview before committing.
func (uc *SubmitInvoiceUseCase) PreviewSplit(ctx context.Context, companyID, contractorID string, in dto.PreviewSplitRequest) (*dto.SplitResponse, error) {
	company, err := uc.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}

	pct := in.EquityPercentage
	locked := false
	if company.EquityCompensationEnabled {
		alloc, err := uc.allocationRepo.GetForYear(ctx, contractorID, in.Year)
		if err != nil {
			return nil, err
		}
		if alloc != nil && alloc.Locked {
			pct = alloc.EquityPercentage
			locked = true
		}
	}

	split := equity.ComputeSplit(in.AmountCents, pct, company.EquityCompensationEnabled)
	if !company.EquityCompensationEnabled {
		pct = 0
	}
	return &dto.SplitResponse{
		TotalAmountCents:  in.AmountCents,
		CashAmountCents:   split.CashCents,
		EquityAmountCents: split.EquityCents,
		EquityPercentage:  pct,
		Locked:            locked,
	}, nil
}

// lockAllocation applies the lock protocol for (contractor, year) and returns
// the effective percentage the invoice must use. With the program disabled the
// percentage is always 0 and nothing is touched.
func (uc *SubmitInvoiceUseCase) lockAllocation(
	ctx context.Context,
	allocationRepo repository.EquityAllocationRepository,
	company *entity.Company,
	contractorID string,
	year int,
	electedPercentage int,
	now time.Time,
) (int, error) {
	if !company.EquityCompensationEnabled {
		return 0, nil
	}
	if electedPercentage < 0 || electedPercentage > 100 {
		return 0, domain.ErrInvalidInput
	}
	alloc, err := allocationRepo.GetOrCreateForUpdate(ctx, entity.NewEquityAllocation(company.ID, contractorID, year, now))
	if err != nil {
		return 0, err
	}
	if err := alloc.Lock(electedPercentage, now); err != nil {
		return 0, err
	}
	if err := allocationRepo.Update(ctx, alloc); err != nil {
		return 0, err
	}
	return alloc.EquityPercentage, nil
}

// buildInvoice maps the request into a fresh aggregate. Line amounts and the
// split are computed later by Recalculate; client-supplied amounts are ignored.
func (uc *SubmitInvoiceUseCase) buildInvoice(companyID, contractorID string, in dto.SubmitInvoiceRequest, now time.Time) (*entity.Invoice, error) {
	inv := &entity.Invoice{
		ID:            uuid.New().String(),
		CompanyID:     companyID,
		ContractorID:  contractorID,
		CreatedByID:   contractorID,
		InvoiceType:   entity.InvoiceTypeServices,
		InvoiceNumber: in.InvoiceNumber,
		InvoiceDate:   in.InvoiceDate,
		Notes:         in.Notes,
		Status:        entity.StatusReceived,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = now
	}
	if err := fillContent(inv, in); err != nil {
		return nil, err
	}
	return inv, nil
}

// replaceContent swaps the editable fields wholesale on a resubmit.
func replaceContent(inv *entity.Invoice, in dto.SubmitInvoiceRequest, now time.Time) error {
	inv.InvoiceNumber = in.InvoiceNumber
	if !in.InvoiceDate.IsZero() {
		inv.InvoiceDate = in.InvoiceDate
	}
	inv.Notes = in.Notes
	inv.LineItems = nil
	inv.Expenses = nil
	inv.UpdatedAt = now
	return fillContent(inv, in)
}

func fillContent(inv *entity.Invoice, in dto.SubmitInvoiceRequest) error {
	for _, li := range in.LineItems {
		quantity := li.Quantity
		if li.Hourly {
			quantity = li.Minutes
			if li.Duration != "" {
				minutes, ok := money.ParseHoursToMinutes(li.Duration)
				if !ok {
					verr := domain.NewValidationError()
					verr.Add("lineItems.duration", "invalid duration, expected H:MM")
					return verr
				}
				quantity = minutes
			}
		}
		inv.LineItems = append(inv.LineItems, entity.LineItem{
			ID:          uuid.New().String(),
			Description: li.Description,
			Quantity:    quantity,
			Hourly:      li.Hourly,
			RateCents:   li.RateCents,
		})
	}
	for _, ex := range in.Expenses {
		inv.Expenses = append(inv.Expenses, entity.Expense{
			ID:           uuid.New().String(),
			Description:  ex.Description,
			CategoryID:   ex.CategoryID,
			AmountCents:  ex.AmountCents,
			AttachmentID: ex.AttachmentID,
		})
	}
	return nil
}
