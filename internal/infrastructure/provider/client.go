// Package provider is the HTTP client for the payment execution service.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/crewpay/payments-api/internal/application/payments"
	"github.com/crewpay/payments-api/pkg/logger"
)

// Client submits payment batches to the provider's REST API with exponential
// backoff on transient failures.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger
}

var _ payments.PaymentProvider = (*Client)(nil)

// NewClient builds the provider client.
func NewClient(baseURL, apiKey string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

type submitBatchRequest struct {
	BatchID    string   `json:"batchId"`
	InvoiceIDs []string `json:"invoiceIds"`
	TotalCents int64    `json:"totalCents"`
}

type submitBatchResponse struct {
	Reference string `json:"reference"`
}

// SubmitBatch posts the batch and returns the provider-side reference. Retries
// on 5xx and network errors; 4xx responses fail immediately.
func (c *Client) SubmitBatch(ctx context.Context, batchID string, invoiceIDs []string, totalCents int64) (string, error) {
	body, err := json.Marshal(submitBatchRequest{
		BatchID:    batchID,
		InvoiceIDs: invoiceIDs,
		TotalCents: totalCents,
	})
	if err != nil {
		return "", fmt.Errorf("marshal batch: %w", err)
	}

	var ref string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/batches", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("provider returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return backoff.Permanent(fmt.Errorf("provider rejected batch: %d %s", resp.StatusCode, payload))
		}

		var out submitBatchResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode provider response: %w", err))
		}
		ref = out.Reference
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		c.log.Error().Err(err).Str("batch_id", batchID).Msg("batch submission failed")
		return "", err
	}
	return ref, nil
}
