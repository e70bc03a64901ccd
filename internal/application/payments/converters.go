package payments

import (
	"github.com/crewpay/payments-api/internal/application/dto"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/money"
)

func toInvoiceResponse(inv *entity.Invoice, payable bool) *dto.InvoiceResponse {
	resp := &dto.InvoiceResponse{
		ID:                    inv.ID,
		CompanyID:             inv.CompanyID,
		ContractorID:          inv.ContractorID,
		InvoiceType:           inv.InvoiceType,
		InvoiceNumber:         inv.InvoiceNumber,
		InvoiceDate:           inv.InvoiceDate.Format("2006-01-02"),
		Notes:                 inv.Notes,
		Status:                string(inv.Status),
		TotalAmountCents:      inv.TotalAmountCents,
		CashAmountCents:       inv.CashAmountCents,
		EquityAmountCents:     inv.EquityAmountCents,
		EquityPercentage:      inv.EquityPercentage,
		EquityOptionCount:     inv.EquityOptionCount,
		RequiresAcceptance:    inv.RequiresAcceptance,
		Payable:               payable,
		RejectedBy:            inv.RejectedByID,
		RejectedAt:            inv.RejectedAt,
		RejectionReason:       inv.RejectionReason,
		ConsolidatedInvoiceID: inv.ConsolidatedInvoiceID,
		PaidAt:                inv.PaidAt,
		FailureReason:         inv.FailureReason,
		CreatedAt:             inv.CreatedAt,
		LineItems:             make([]dto.LineItemResponse, 0, len(inv.LineItems)),
		Approvals:             make([]dto.ApprovalResponse, 0, len(inv.Approvals)),
	}
	for _, li := range inv.LineItems {
		r := dto.LineItemResponse{
			ID:          li.ID,
			Description: li.Description,
			Hourly:      li.Hourly,
			Quantity:    li.Quantity,
			RateCents:   li.RateCents,
			AmountCents: li.AmountCents,
		}
		if li.Hourly {
			r.Duration = money.MinutesToHHMM(li.Quantity)
		}
		resp.LineItems = append(resp.LineItems, r)
	}
	for _, ex := range inv.Expenses {
		resp.Expenses = append(resp.Expenses, dto.ExpenseResponse{
			ID:           ex.ID,
			Description:  ex.Description,
			CategoryID:   ex.CategoryID,
			AmountCents:  ex.AmountCents,
			AttachmentID: ex.AttachmentID,
		})
	}
	for _, a := range inv.Approvals {
		resp.Approvals = append(resp.Approvals, dto.ApprovalResponse{
			ApproverID: a.ApproverID,
			ApprovedAt: a.ApprovedAt,
		})
	}
	return resp
}

func toBatchResponse(b *entity.ConsolidatedInvoice) *dto.BatchResponse {
	return &dto.BatchResponse{
		ID:          b.ID,
		CompanyID:   b.CompanyID,
		Status:      b.Status,
		TotalCents:  b.TotalCents,
		InvoiceIDs:  b.InvoiceIDs,
		ProviderRef: b.ProviderRef,
		SettledAt:   b.SettledAt,
		CreatedAt:   b.CreatedAt,
	}
}

func toAllocationResponse(a *entity.EquityAllocation) *dto.AllocationResponse {
	return &dto.AllocationResponse{
		ContractorID:     a.ContractorID,
		Year:             a.Year,
		EquityPercentage: a.EquityPercentage,
		Locked:           a.Locked,
		Status:           a.Status,
	}
}
