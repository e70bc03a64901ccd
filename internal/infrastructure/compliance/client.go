// Package compliance is the HTTP client for the tax documentation service.
package compliance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/crewpay/payments-api/internal/application/payments"
	"github.com/crewpay/payments-api/pkg/logger"
)

// Client answers tax-requirement checks against the compliance service. When
// no base URL is configured the check always passes, for local development
// without the dependency.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *logger.Logger
}

var _ payments.TaxComplianceChecker = (*Client)(nil)

// NewClient builds the compliance client.
func NewClient(baseURL string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

type taxStatusResponse struct {
	RequirementsMet bool `json:"requirementsMet"`
}

// AreTaxRequirementsMet fetches the contractor's tax documentation status.
func (c *Client) AreTaxRequirementsMet(ctx context.Context, contractorID string) (bool, error) {
	if c.baseURL == "" {
		return true, nil
	}

	var met bool
	operation := func() error {
		endpoint := c.baseURL + "/v1/contractors/" + url.PathEscape(contractorID) + "/tax-status"
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("compliance service returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("compliance service returned %d", resp.StatusCode))
		}

		var out taxStatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode tax status: %w", err))
		}
		met = out.RequirementsMet
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.log.Error().Err(err).Str("contractor_id", contractorID).Msg("tax status check failed")
		return false, err
	}
	return met, nil
}
