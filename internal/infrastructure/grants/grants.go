// Package grants converts committed equity cents into option units against the
// company's current fair market value.
package grants

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/crewpay/payments-api/internal/application/payments"
	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/repository"
	"github.com/crewpay/payments-api/pkg/logger"
)

// Service implements the equity grant port. Option counts are floored; the
// sub-option remainder stays with the company.
type Service struct {
	companyRepo repository.CompanyRepository
	log         *logger.Logger
}

var _ payments.EquityGrantService = (*Service)(nil)

// NewService builds the grant service.
func NewService(companyRepo repository.CompanyRepository, log *logger.Logger) *Service {
	return &Service{companyRepo: companyRepo, log: log}
}

// CreateGrant converts equityCents into whole option units at the company's
// FMV per share: options = floor((cents / 100) / fmv).
func (s *Service) CreateGrant(ctx context.Context, companyID, contractorID string, year int, equityCents int64) (int64, error) {
	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return 0, err
	}
	if company == nil {
		return 0, domain.ErrNotFound
	}
	if !company.FMVPerShare.IsPositive() {
		s.log.Warn().Str("company_id", companyID).Msg("grant requested with non-positive FMV")
		return 0, domain.ErrInvalidInput
	}

	dollars := decimal.NewFromInt(equityCents).Div(decimal.NewFromInt(100))
	options := dollars.Div(company.FMVPerShare).Floor().IntPart()

	s.log.Info().
		Str("contractor_id", contractorID).
		Int("year", year).
		Int64("equity_cents", equityCents).
		Int64("options", options).
		Msg("equity grant created")
	return options, nil
}
