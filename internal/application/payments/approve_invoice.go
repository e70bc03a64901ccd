package payments

import (
	"context"

	"github.com/crewpay/payments-api/internal/application/dto"
	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/repository"
)

// ApprovalUseCase applies approval and rejection events to invoices.
//
// The approval insert and the status transition happen under a row lock on the
// invoice so two concurrent approvers cannot both read a stale count and miss
// quorum (write skew). The required count is re-read from the company inside
// the same transaction, never frozen at invoice creation.
type ApprovalUseCase struct {
	txRunner      TxRunner
	taxChecker    TaxComplianceChecker
	consolidation *ConsolidationUseCase
	notifier      Notifier
	clock         Clock
}

// NewApprovalUseCase builds the use case. consolidation handles the combined
// approve-and-pay gesture.
func NewApprovalUseCase(
	txRunner TxRunner,
	taxChecker TaxComplianceChecker,
	consolidation *ConsolidationUseCase,
	notifier Notifier,
	clock Clock,
) *ApprovalUseCase {
	return &ApprovalUseCase{
		txRunner:      txRunner,
		taxChecker:    taxChecker,
		consolidation: consolidation,
		notifier:      notifier,
		clock:         clock,
	}
}

// Approve records one administrator approval. With payNow, a payable invoice
// is claimed into a payment batch immediately after the approval commits, so
// the final approval and the payment trigger act as one admin action.
func (uc *ApprovalUseCase) Approve(ctx context.Context, companyID, approverID, invoiceID string, payNow bool) (*dto.InvoiceResponse, error) {
	now := uc.clock.Now()

	var inv *entity.Invoice
	var required int
	err := uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.EquityAllocationRepository,
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
		required = company.RequiredApprovals()

		inv, err = invoiceRepo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil || inv.DeletedAt != nil || inv.CompanyID != companyID {
			return domain.ErrNotFound
		}
		if err := inv.Approve(approverID, now, required); err != nil {
			return err
		}
		return invoiceRepo.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	uc.notifier.InvoiceApproved(inv.ID, inv.ContractorID, len(inv.Approvals), required)

	taxMet, err := uc.taxChecker.AreTaxRequirementsMet(ctx, inv.ContractorID)
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: "tax compliance check", Err: err}
	}
	payable := inv.IsPayable(entity.PayabilityContext{
		RequiredApprovalCount: required,
		ActorHasApproved:      true,
		TaxRequirementsMet:    taxMet,
	})

	if payNow && payable {
		if _, err := uc.consolidation.CreatePaymentBatch(ctx, companyID, approverID); err != nil {
			return nil, err
		}
		// Re-read: the batch claim moved this invoice to processing.
		refreshed, err := uc.consolidation.getInvoice(ctx, invoiceID)
		if err == nil && refreshed != nil {
			inv = refreshed
			payable = false
		}
	}
	return toInvoiceResponse(inv, payable), nil
}

// Reject marks the invoice rejected with the reason, notifies the payee and
// leaves every monetary field untouched. Only received or approved invoices
// can be rejected; batched and terminal ones return InvalidStateError.
func (uc *ApprovalUseCase) Reject(ctx context.Context, companyID, adminID, invoiceID, reason string) (*dto.InvoiceResponse, error) {
	now := uc.clock.Now()

	var inv *entity.Invoice
	err := uc.txRunner.Run(ctx, func(
		invoiceRepo repository.InvoiceRepository,
		_ repository.EquityAllocationRepository,
		_ repository.CompanyRepository,
		_ repository.ConsolidatedInvoiceRepository,
	) error {
		var err error
		inv, err = invoiceRepo.GetByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv == nil || inv.DeletedAt != nil || inv.CompanyID != companyID {
			return domain.ErrNotFound
		}
		if err := inv.Reject(adminID, now, reason); err != nil {
			return err
		}
		return invoiceRepo.Update(ctx, inv)
	})
	if err != nil {
		return nil, err
	}

	uc.notifier.InvoiceRejected(inv.ID, inv.ContractorID, reason)
	return toInvoiceResponse(inv, false), nil
}
