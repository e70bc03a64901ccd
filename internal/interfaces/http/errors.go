package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/crewpay/payments-api/internal/application/dto"
	"github.com/crewpay/payments-api/internal/domain"
)

// writeError maps domain errors onto coded JSON responses. Handlers call it
// after their own request-shape checks.
func writeError(c *fiber.Ctx, err error) error {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Code: "VALIDATION", Message: "invoice failed validation", Fields: verr.Fields,
		})
	}
	var stateErr *domain.InvalidStateError
	if errors.As(err, &stateErr) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "INVALID_STATE", Message: stateErr.Error(),
		})
	}
	var approvedErr *domain.AlreadyApprovedError
	if errors.As(err, &approvedErr) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "ALREADY_APPROVED", Message: approvedErr.Error(),
		})
	}
	var lockErr *domain.ConcurrentLockError
	if errors.As(err, &lockErr) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "ALLOCATION_LOCKED", Message: lockErr.Error(),
		})
	}
	var quorumErr *domain.QuorumMismatchError
	if errors.As(err, &quorumErr) {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Code: "QUORUM_MISMATCH", Message: quorumErr.Error(),
		})
	}
	var extErr *domain.ExternalServiceError
	if errors.As(err, &extErr) {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Code: "EXTERNAL_SERVICE", Message: extErr.Error(),
		})
	}

	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "resource not found"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "invalid input"})
	case errors.Is(err, domain.ErrEmailExists):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "EMAIL_EXISTS", Message: "email already registered"})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: "resource already exists"})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "invalid credentials"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "access denied"})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
}
