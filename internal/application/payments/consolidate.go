package payments

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crewpay/payments-api/internal/application/dto"
	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/repository"
	"github.com/crewpay/payments-api/pkg/logger"
)

// ConsolidationUseCase groups payable invoices into consolidated invoices
// (payment batches), submits them to the payment provider and applies the
// provider's asynchronous callbacks.
type ConsolidationUseCase struct {
	txRunner    TxRunner
	invoiceRepo repository.InvoiceRepository
	provider    PaymentProvider
	taxChecker  TaxComplianceChecker
	grants      EquityGrantService
	notifier    Notifier
	log         *logger.Logger
	clock       Clock
}

// NewConsolidationUseCase builds the use case. invoiceRepo is pool-bound and
// used for reads outside transactions.
func NewConsolidationUseCase(
	txRunner TxRunner,
	invoiceRepo repository.InvoiceRepository,
	provider PaymentProvider,
	taxChecker TaxComplianceChecker,
	grants EquityGrantService,
	notifier Notifier,
	log *logger.Logger,
	clock Clock,
) *ConsolidationUseCase {
	return &ConsolidationUseCase{
		txRunner:    txRunner,
		invoiceRepo: invoiceRepo,
		provider:    provider,
		taxChecker:  taxChecker,
		grants:      grants,
		notifier:    notifier,
		log:         log,
		clock:       clock,
	}
}

// CreatePaymentBatch claims every currently payable invoice of the company
// into a new consolidated invoice and submits it to the payment provider.
//
// The claim is atomic: candidate rows are locked, filtered through the
// payability rule and all moved to processing in one transaction, so no
// invoice can land in two batches and a partial claim cannot be observed.
func (uc *ConsolidationUseCase) CreatePaymentBatch(ctx context.Context, companyID, actorID string) (*dto.BatchResponse, error) {
	now := uc.clock.Now()

	// Tax compliance is an HTTP collaborator; resolve the answers per
	// contractor before the claim transaction so no row locks are held across
	// retried HTTP calls. Contractors appearing between this read and the
	// locked list fall back to an in-tx lookup.
	taxByContractor := map[string]bool{}
	prefetch, err := uc.invoiceRepo.ListPayable(ctx, companyID)
	if err != nil {
		return nil, err
	}
	for _, inv := range prefetch {
		if _, ok := taxByContractor[inv.ContractorID]; ok {
			continue
		}
		taxMet, err := uc.taxChecker.AreTaxRequirementsMet(ctx, inv.ContractorID)
		if err != nil {
			return nil, &domain.ExternalServiceError{Service: "tax compliance check", Err: err}
		}
		taxByContractor[inv.ContractorID] = taxMet
	}

	batch := &entity.ConsolidatedInvoice{
		ID:          uuid.New().String(),
		CompanyID:   companyID,
		CreatedByID: actorID,
		Status:      entity.BatchPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.EquityAllocationRepository,
		companyRepo repository.CompanyRepository,
		batchRepo repository.ConsolidatedInvoiceRepository,
	) error {
		company, err := companyRepo.GetByID(ctx, companyID)
		if err != nil {
			return err
		}
		if company == nil {
			return domain.ErrNotFound
		}

		candidates, err := invoiceRepo.ListPayableForUpdate(ctx, companyID)
		if err != nil {
			return err
		}
		for _, inv := range candidates {
			taxMet, ok := taxByContractor[inv.ContractorID]
			if !ok {
				taxMet, err = uc.taxChecker.AreTaxRequirementsMet(ctx, inv.ContractorID)
				if err != nil {
					return &domain.ExternalServiceError{Service: "tax compliance check", Err: err}
				}
				taxByContractor[inv.ContractorID] = taxMet
			}
			payable := inv.IsPayable(entity.PayabilityContext{
				RequiredApprovalCount: company.RequiredApprovals(),
				ActorHasApproved:      inv.ApprovedBy(actorID),
				TaxRequirementsMet:    taxMet,
			})
			if !payable {
				continue
			}
			if err := inv.MarkProcessing(batch.ID, now); err != nil {
				return err
			}
			if err := invoiceRepo.Update(ctx, inv); err != nil {
				return err
			}
			batch.InvoiceIDs = append(batch.InvoiceIDs, inv.ID)
			batch.TotalCents += inv.TotalAmountCents
		}
		if len(batch.InvoiceIDs) == 0 {
			return domain.ErrConflict // nothing payable right now
		}
		return batchRepo.Create(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	providerRef, err := uc.provider.SubmitBatch(ctx, batch.ID, batch.InvoiceIDs, batch.TotalCents)
	if err != nil {
		// Submission never reached the provider: release the claim by failing
		// the invoices, which keeps them directly payable for a retry.
		uc.log.Error().Err(err).Str("batch_id", batch.ID).Msg("payment batch submission failed")
		if ferr := uc.failBatch(ctx, batch.ID, "provider submission failed"); ferr != nil {
			uc.log.Error().Err(ferr).Str("batch_id", batch.ID).Msg("failed to mark batch failed")
		}
		return nil, &domain.ExternalServiceError{Service: "payment provider", Err: err}
	}

	batch.ProviderRef = providerRef
	batch.Status = entity.BatchSubmitted
	batch.UpdatedAt = uc.clock.Now()
	err = uc.txRunner.Run(ctx, func(
		_ repository.InvoiceRepository,
		_ repository.EquityAllocationRepository,
		_ repository.CompanyRepository,
		batchRepo repository.ConsolidatedInvoiceRepository,
	) error {
		return batchRepo.Update(ctx, batch)
	})
	if err != nil {
		return nil, err
	}
	return toBatchResponse(batch), nil
}

// HandleAcknowledged applies the provider's "batch accepted" callback:
// processing invoices move to payment_pending. Replays are no-ops.
func (uc *ConsolidationUseCase) HandleAcknowledged(ctx context.Context, providerRef string) error {
	now := uc.clock.Now()
	return uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.EquityAllocationRepository,
		_ repository.CompanyRepository,
		batchRepo repository.ConsolidatedInvoiceRepository,
	) error {
		batch, err := batchRepo.GetByProviderRef(ctx, providerRef)
		if err != nil {
			return err
		}
		if batch == nil {
			return domain.ErrNotFound
		}
		invoices, err := invoiceRepo.ListByConsolidatedInvoice(ctx, batch.ID)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			if err := inv.MarkPaymentPending(now); err != nil {
				return err
			}
			if err := invoiceRepo.Update(ctx, inv); err != nil {
				return err
			}
		}
		if batch.Status != entity.BatchSettled && batch.Status != entity.BatchFailed {
			batch.Status = entity.BatchAcknowledged
			batch.UpdatedAt = now
			return batchRepo.Update(ctx, batch)
		}
		return nil
	})
}

// HandleSettled applies the provider's settlement callback: invoices become
// paid with the given settlement time. A duplicate callback leaves PaidAt at
// its first value. Equity grants are created after the transition commits.
func (uc *ConsolidationUseCase) HandleSettled(ctx context.Context, providerRef string, paidAt time.Time) error {
	var settled []*entity.Invoice
	err := uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.EquityAllocationRepository,
		_ repository.CompanyRepository,
		batchRepo repository.ConsolidatedInvoiceRepository,
	) error {
		batch, err := batchRepo.GetByProviderRef(ctx, providerRef)
		if err != nil {
			return err
		}
		if batch == nil {
			return domain.ErrNotFound
		}
		invoices, err := invoiceRepo.ListByConsolidatedInvoice(ctx, batch.ID)
		if err != nil {
			return err
		}
		for _, inv := range invoices {
			alreadyPaid := inv.Status == entity.StatusPaid
			if err := inv.MarkPaid(paidAt); err != nil {
				return err
			}
			if err := invoiceRepo.Update(ctx, inv); err != nil {
				return err
			}
			if !alreadyPaid {
				settled = append(settled, inv)
			}
		}
		if batch.Status != entity.BatchSettled {
			batch.Status = entity.BatchSettled
			batch.SettledAt = &paidAt
			batch.UpdatedAt = uc.clock.Now()
			return batchRepo.Update(ctx, batch)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, inv := range settled {
		uc.notifier.InvoicePaid(inv.ID, inv.ContractorID, paidAt)
		if inv.EquityAmountCents > 0 {
			uc.createGrant(ctx, inv)
		}
	}
	return nil
}

// HandleFailed applies the provider's failure callback: in-flight invoices
// move to failed (and stay directly payable for retry).
func (uc *ConsolidationUseCase) HandleFailed(ctx context.Context, providerRef, reason string) error {
	var failed []*entity.Invoice
	err := uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.EquityAllocationRepository,
		_ repository.CompanyRepository,
		batchRepo repository.ConsolidatedInvoiceRepository,
	) error {
		batch, err := batchRepo.GetByProviderRef(ctx, providerRef)
		if err != nil {
			return err
		}
		if batch == nil {
			return domain.ErrNotFound
		}
		return uc.failBatchTx(ctx, invoiceRepo, batchRepo, batch, reason, &failed)
	})
	if err != nil {
		return err
	}
	for _, inv := range failed {
		uc.notifier.PaymentFailed(inv.ID, inv.ContractorID, reason)
	}
	return nil
}

// ListBatches returns the company's consolidated invoices, newest first.
func (uc *ConsolidationUseCase) ListBatches(ctx context.Context, companyID string, page dto.PageRequest) ([]dto.BatchResponse, error) {
	page.DefaultPage()
	var out []dto.BatchResponse
	err := uc.txRunner.Run(ctx, func(
		_ repository.InvoiceRepository,
		_ repository.EquityAllocationRepository,
		_ repository.CompanyRepository,
		batchRepo repository.ConsolidatedInvoiceRepository,
	) error {
		batches, err := batchRepo.ListByCompany(ctx, companyID, page.Limit, page.Offset)
		if err != nil {
			return err
		}
		for _, b := range batches {
			out = append(out, *toBatchResponse(b))
		}
		return nil
	})
	return out, err
}

// failBatch marks a batch and its invoices failed by our own internal ID,
// used when the submission call itself errors before a ProviderRef exists.
func (uc *ConsolidationUseCase) failBatch(ctx context.Context, batchID, reason string) error {
	var failed []*entity.Invoice
	return uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.EquityAllocationRepository,
		_ repository.CompanyRepository,
		batchRepo repository.ConsolidatedInvoiceRepository,
	) error {
		batch, err := batchRepo.GetByID(ctx, batchID)
		if err != nil {
			return err
		}
		if batch == nil {
			return domain.ErrNotFound
		}
		return uc.failBatchTx(ctx, invoiceRepo, batchRepo, batch, reason, &failed)
	})
}

func (uc *ConsolidationUseCase) failBatchTx(
	ctx context.Context,
	invoiceRepo repository.InvoiceRepository,
	batchRepo repository.ConsolidatedInvoiceRepository,
	batch *entity.ConsolidatedInvoice,
	reason string,
	failed *[]*entity.Invoice,
) error {
	now := uc.clock.Now()
	invoices, err := invoiceRepo.ListByConsolidatedInvoice(ctx, batch.ID)
	if err != nil {
		return err
	}
	for _, inv := range invoices {
		alreadyFailed := inv.Status == entity.StatusFailed
		if err := inv.MarkFailed(reason, now); err != nil {
			return err
		}
		if err := invoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		if !alreadyFailed {
			*failed = append(*failed, inv)
		}
	}
	if batch.Status != entity.BatchFailed {
		batch.Status = entity.BatchFailed
		batch.UpdatedAt = now
		return batchRepo.Update(ctx, batch)
	}
	return nil
}

// createGrant forwards the committed equity cents to the grant collaborator
// and stores the returned option count. Grant failures are logged, never
// propagated: the invoice is already paid and the grant process retries on
// its own schedule.
func (uc *ConsolidationUseCase) createGrant(ctx context.Context, inv *entity.Invoice) {
	optionCount, err := uc.grants.CreateGrant(ctx, inv.CompanyID, inv.ContractorID, inv.Year(), inv.EquityAmountCents)
	if err != nil {
		uc.log.Error().Err(err).
			Str("invoice_id", inv.ID).
			Int64("equity_cents", inv.EquityAmountCents).
			Msg("equity grant creation failed")
		return
	}
	inv.EquityOptionCount = &optionCount
	err = uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		allocationRepo repository.EquityAllocationRepository,
		_ repository.CompanyRepository,
		_ repository.ConsolidatedInvoiceRepository,
	) error {
		if err := invoiceRepo.Update(ctx, inv); err != nil {
			return err
		}
		alloc, err := allocationRepo.GetForYear(ctx, inv.ContractorID, inv.Year())
		if err != nil || alloc == nil {
			return err
		}
		return allocationRepo.UpdateStatus(ctx, alloc.ID, entity.AllocationPendingApproval)
	})
	if err != nil {
		uc.log.Error().Err(err).Str("invoice_id", inv.ID).Msg("storing option count failed")
	}
}

// getInvoice is a plain read used after a batch claim to refresh state.
func (uc *ConsolidationUseCase) getInvoice(ctx context.Context, id string) (*entity.Invoice, error) {
	return uc.invoiceRepo.GetByID(ctx, id)
}
