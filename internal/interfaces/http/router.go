package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crewpay/payments-api/internal/application/auth"
	"github.com/crewpay/payments-api/internal/application/payments"
)

// RouterDeps dependencies for the router.
type RouterDeps struct {
	AuthUC          *auth.AuthUseCase
	SubmitUC        *payments.SubmitInvoiceUseCase
	QueryUC         *payments.InvoiceQueryUseCase
	ApprovalUC      *payments.ApprovalUseCase
	ConsolidationUC *payments.ConsolidationUseCase
	PDFUC           *payments.PDFUseCase
	JWTSecret       string
	WebhookSecret   string
}

// Router registers the API routes.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (public)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	// Provider callbacks (authenticated by shared secret, not JWT)
	webhookHandler := NewWebhookHandler(deps.ConsolidationUC, deps.WebhookSecret)
	api.Post("/webhooks/payments", webhookHandler.Handle)

	// Protected routes (Bearer token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	invoiceHandler := NewInvoiceHandler(deps.SubmitUC, deps.QueryUC, deps.PDFUC)
	paymentHandler := NewPaymentHandler(deps.ApprovalUC, deps.ConsolidationUC)

	invoices := protected.Group("/invoices")
	invoices.Post("/", invoiceHandler.Submit)
	invoices.Get("/", invoiceHandler.List)
	invoices.Post("/preview-split", invoiceHandler.PreviewSplit)
	invoices.Post("/one-off", RequireAdmin(), invoiceHandler.CreateOneOff)
	invoices.Get("/:id", invoiceHandler.Get)
	invoices.Put("/:id", invoiceHandler.Resubmit)
	invoices.Delete("/:id", invoiceHandler.Delete)
	invoices.Get("/:id/pdf", invoiceHandler.PDF)
	invoices.Post("/:id/accept", invoiceHandler.AcceptOneOff)
	invoices.Post("/:id/approve", RequireAdmin(), paymentHandler.Approve)
	invoices.Post("/:id/reject", RequireAdmin(), paymentHandler.Reject)

	allocations := protected.Group("/allocations")
	allocations.Get("/:year", invoiceHandler.GetAllocation)

	batches := protected.Group("/payment-batches", RequireAdmin())
	batches.Post("/", paymentHandler.CreateBatch)
	batches.Get("/", paymentHandler.ListBatches)
}
