package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crewpay/payments-api/internal/application/payments"
	"github.com/crewpay/payments-api/internal/domain/repository"
)

// TxRunner runs a use case function inside one pgx transaction with
// repositories bound to that transaction.
type TxRunner struct {
	pool *pgxpool.Pool
}

var _ payments.TxRunner = (*TxRunner)(nil)

// NewTxRunner builds the runner.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run begins a transaction, hands tx-bound repositories to fn, and commits if
// fn returns nil. Any error rolls everything back.
func (r *TxRunner) Run(ctx context.Context, fn func(
	invoiceRepo repository.InvoiceRepository,
	allocationRepo repository.EquityAllocationRepository,
	companyRepo repository.CompanyRepository,
	batchRepo repository.ConsolidatedInvoiceRepository,
) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(
		NewInvoiceRepository(tx),
		NewEquityAllocationRepository(tx),
		NewCompanyRepository(tx),
		NewConsolidatedInvoiceRepository(tx),
	); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
