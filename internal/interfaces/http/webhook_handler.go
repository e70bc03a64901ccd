package http

import (
	"crypto/subtle"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/crewpay/payments-api/internal/application/dto"
	"github.com/crewpay/payments-api/internal/application/payments"
)

// WebhookHandler receives payment provider callbacks. Callbacks are keyed by
// the provider batch reference and are idempotent: replays are acknowledged
// without effect.
type WebhookHandler struct {
	consolidationUC *payments.ConsolidationUseCase
	secret          string
}

// NewWebhookHandler builds the handler.
func NewWebhookHandler(consolidationUC *payments.ConsolidationUseCase, secret string) *WebhookHandler {
	return &WebhookHandler{consolidationUC: consolidationUC, secret: secret}
}

type providerCallback struct {
	Event     string    `json:"event"` // acknowledged | settled | failed
	Reference string    `json:"reference"`
	Reason    string    `json:"reason,omitempty"`
	SettledAt time.Time `json:"settledAt,omitzero"`
}

// Handle applies one provider callback.
// POST /api/webhooks/payments
func (h *WebhookHandler) Handle(c *fiber.Ctx) error {
	got := c.Get("X-Webhook-Secret")
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "INVALID_SIGNATURE", Message: "webhook secret mismatch"})
	}

	var in providerCallback
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "invalid request body"})
	}
	if in.Reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "reference is required"})
	}

	var err error
	switch in.Event {
	case "acknowledged":
		err = h.consolidationUC.HandleAcknowledged(c.Context(), in.Reference)
	case "settled":
		settledAt := in.SettledAt
		if settledAt.IsZero() {
			settledAt = time.Now()
		}
		err = h.consolidationUC.HandleSettled(c.Context(), in.Reference, settledAt)
	case "failed":
		err = h.consolidationUC.HandleFailed(c.Context(), in.Reference, in.Reason)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "unknown event: " + in.Event})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
