package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crewpay/payments-api/internal/application/dto"
	"github.com/crewpay/payments-api/internal/application/payments"
)

// PaymentHandler handles the administrator side of the lifecycle: approvals,
// rejections and payment batches.
type PaymentHandler struct {
	approvalUC      *payments.ApprovalUseCase
	consolidationUC *payments.ConsolidationUseCase
}

// NewPaymentHandler builds the handler.
func NewPaymentHandler(approvalUC *payments.ApprovalUseCase, consolidationUC *payments.ConsolidationUseCase) *PaymentHandler {
	return &PaymentHandler{approvalUC: approvalUC, consolidationUC: consolidationUC}
}

// Approve records the caller's approval; with payNow it also batches the
// invoice when payable.
// POST /api/invoices/:id/approve
func (h *PaymentHandler) Approve(c *fiber.Ctx) error {
	var in dto.ApproveInvoiceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
		}
	}
	invoice, err := h.approvalUC.Approve(c.Context(), GetCompanyID(c), GetUserID(c), c.Params("id"), in.PayNow)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(invoice)
}

// Reject rejects an invoice with a reason.
// POST /api/invoices/:id/reject
func (h *PaymentHandler) Reject(c *fiber.Ctx) error {
	var in dto.RejectInvoiceRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
		}
	}
	invoice, err := h.approvalUC.Reject(c.Context(), GetCompanyID(c), GetUserID(c), c.Params("id"), in.Reason)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(invoice)
}

// CreateBatch claims every currently payable invoice into one consolidated
// invoice and submits it to the provider.
// POST /api/payment-batches
func (h *PaymentHandler) CreateBatch(c *fiber.Ctx) error {
	batch, err := h.consolidationUC.CreatePaymentBatch(c.Context(), GetCompanyID(c), GetUserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(batch)
}

// ListBatches returns the company's payment batches, newest first.
// GET /api/payment-batches?limit=&offset=
func (h *PaymentHandler) ListBatches(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid pagination"})
	}
	batches, err := h.consolidationUC.ListBatches(c.Context(), GetCompanyID(c), page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(batches)
}
