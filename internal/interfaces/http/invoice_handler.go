package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/crewpay/payments-api/internal/application/dto"
	"github.com/crewpay/payments-api/internal/application/payments"
)

// InvoiceHandler handles invoice submission, queries and the one-off flow.
type InvoiceHandler struct {
	submitUC *payments.SubmitInvoiceUseCase
	queryUC  *payments.InvoiceQueryUseCase
	pdfUC    *payments.PDFUseCase
}

// NewInvoiceHandler builds the handler.
func NewInvoiceHandler(submitUC *payments.SubmitInvoiceUseCase, queryUC *payments.InvoiceQueryUseCase, pdfUC *payments.PDFUseCase) *InvoiceHandler {
	return &InvoiceHandler{submitUC: submitUC, queryUC: queryUC, pdfUC: pdfUC}
}

// Submit creates an invoice, locking the year's equity allocation.
// POST /api/invoices
func (h *InvoiceHandler) Submit(c *fiber.Ctx) error {
	var in dto.SubmitInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	invoice, err := h.submitUC.Submit(c.Context(), GetCompanyID(c), GetUserID(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// Resubmit replaces a received or rejected invoice's content and restarts the
// lifecycle.
// PUT /api/invoices/:id
func (h *InvoiceHandler) Resubmit(c *fiber.Ctx) error {
	var in dto.SubmitInvoiceRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	invoice, err := h.submitUC.Resubmit(c.Context(), GetCompanyID(c), GetUserID(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(invoice)
}

// Get returns one invoice with payability for the caller.
// GET /api/invoices/:id
func (h *InvoiceHandler) Get(c *fiber.Ctx) error {
	invoice, err := h.queryUC.Get(c.Context(), GetCompanyID(c), GetUserID(c), GetRole(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(invoice)
}

// List returns the company's invoices; contractors only see their own.
// GET /api/invoices?status=&limit=&offset=
func (h *InvoiceHandler) List(c *fiber.Ctx) error {
	var page dto.PageRequest
	if err := c.QueryParser(&page); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid pagination"})
	}
	out, err := h.queryUC.List(c.Context(), GetCompanyID(c), GetUserID(c), GetRole(c), c.Query("status"), page)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Delete soft-deletes an editable invoice of the calling contractor.
// DELETE /api/invoices/:id
func (h *InvoiceHandler) Delete(c *fiber.Ctx) error {
	if err := h.queryUC.SoftDelete(c.Context(), GetCompanyID(c), GetUserID(c), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// PreviewSplit computes the cash/equity breakdown without persisting anything.
// POST /api/invoices/preview-split
func (h *InvoiceHandler) PreviewSplit(c *fiber.Ctx) error {
	var in dto.PreviewSplitRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	out, err := h.submitUC.PreviewSplit(c.Context(), GetCompanyID(c), GetUserID(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// CreateOneOff creates an admin one-off payment, optionally with a negotiable
// equity range the payee accepts later.
// POST /api/invoices/one-off
func (h *InvoiceHandler) CreateOneOff(c *fiber.Ctx) error {
	var in dto.CreateOneOffRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	invoice, err := h.submitUC.CreateOneOff(c.Context(), GetCompanyID(c), GetUserID(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(invoice)
}

// AcceptOneOff lets the payee pick a percentage within the offered range.
// POST /api/invoices/:id/accept
func (h *InvoiceHandler) AcceptOneOff(c *fiber.Ctx) error {
	var in dto.AcceptOneOffRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	invoice, err := h.submitUC.AcceptOneOff(c.Context(), GetCompanyID(c), GetUserID(c), c.Params("id"), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(invoice)
}

// PDF renders the invoice document.
// GET /api/invoices/:id/pdf
func (h *InvoiceHandler) PDF(c *fiber.Ctx) error {
	data, err := h.pdfUC.Render(c.Context(), GetCompanyID(c), GetUserID(c), GetRole(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	c.Set("Content-Type", "application/pdf")
	c.Set("Content-Disposition", `attachment; filename="invoice-`+c.Params("id")+`.pdf"`)
	return c.Send(data)
}

// GetAllocation returns the caller's equity allocation for a year (implicit
// 0%/unlocked when none exists yet).
// GET /api/allocations/:year
func (h *InvoiceHandler) GetAllocation(c *fiber.Ctx) error {
	year, err := strconv.Atoi(c.Params("year"))
	if err != nil || year < 2000 || year > time.Now().Year()+1 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid year"})
	}
	out, err := h.queryUC.GetAllocation(c.Context(), GetUserID(c), year)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
