package payments_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewpay/payments-api/internal/application/dto"
	"github.com/crewpay/payments-api/internal/application/payments"
	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/pkg/logger"
)

// env wires the use cases against in-memory fakes, mirroring the production
// graph built in main.
type env struct {
	store    *memStore
	clock    *fakeClock
	provider *fakeProvider
	tax      *fakeTaxChecker
	grants   *fakeGrants
	notifier *fakeNotifier

	submit        *payments.SubmitInvoiceUseCase
	approval      *payments.ApprovalUseCase
	consolidation *payments.ConsolidationUseCase
	queries       *payments.InvoiceQueryUseCase
}

func newEnv(t *testing.T, company *entity.Company) *env {
	t.Helper()
	e := &env{
		store:    newMemStore(),
		clock:    &fakeClock{t: time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)},
		provider: &fakeProvider{},
		grants:   &fakeGrants{options: 100},
		notifier: &fakeNotifier{},
	}
	e.tax = &fakeTaxChecker{unmet: map[string]bool{}, store: e.store}
	log := logger.New(logger.Config{Env: "development", Level: "error"})
	txRunner := &memTxRunner{s: e.store}
	invoiceRepo := &memInvoiceRepo{s: e.store}
	companyRepo := &memCompanyRepo{s: e.store}
	allocationRepo := &memAllocationRepo{s: e.store}

	require.NoError(t, companyRepo.Create(context.Background(), company))

	e.submit = payments.NewSubmitInvoiceUseCase(txRunner, companyRepo, allocationRepo, e.clock)
	e.consolidation = payments.NewConsolidationUseCase(
		txRunner, invoiceRepo, e.provider, e.tax, e.grants, e.notifier, log, e.clock,
	)
	e.approval = payments.NewApprovalUseCase(txRunner, e.tax, e.consolidation, e.notifier, e.clock)
	e.queries = payments.NewInvoiceQueryUseCase(invoiceRepo, companyRepo, allocationRepo, e.tax, txRunner, e.clock)
	return e
}

func testCompany(enabled bool, required int) *entity.Company {
	return &entity.Company{
		ID:                           "co-1",
		Name:                         "Acme Robotics",
		EquityCompensationEnabled:    enabled,
		RequiredInvoiceApprovalCount: required,
	}
}

func hourlyRequest(duration string) dto.SubmitInvoiceRequest {
	return dto.SubmitInvoiceRequest{
		InvoiceNumber: "2026-001",
		InvoiceDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		LineItems: []dto.LineItemRequest{
			{Description: "March work", Hourly: true, Duration: duration, RateCents: 6000},
		},
	}
}

func (e *env) invoiceByID(t *testing.T, id string) *entity.Invoice {
	t.Helper()
	inv, err := (&memInvoiceRepo{s: e.store}).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return inv
}

// Submission through settlement for an all-cash hourly invoice: 3h25m at
// $60/hr must round up to $205.00 and end paid with zero equity.
func TestLifecycleAllCash(t *testing.T) {
	e := newEnv(t, testCompany(false, 1))
	ctx := context.Background()

	out, err := e.submit.Submit(ctx, "co-1", "ct-1", hourlyRequest("3:25"))
	require.NoError(t, err)
	assert.Equal(t, int64(20500), out.TotalAmountCents)
	assert.Equal(t, int64(20500), out.CashAmountCents)
	assert.Equal(t, int64(0), out.EquityAmountCents)
	assert.Equal(t, "3:25", out.LineItems[0].Duration)

	_, err = e.approval.Approve(ctx, "co-1", "admin-1", out.ID, false)
	require.NoError(t, err)

	batch, err := e.consolidation.CreatePaymentBatch(ctx, "co-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20500), batch.TotalCents)
	assert.Equal(t, entity.BatchSubmitted, batch.Status)
	assert.NotEmpty(t, batch.ProviderRef)

	require.NoError(t, e.consolidation.HandleAcknowledged(ctx, batch.ProviderRef))
	paidAt := e.clock.t.Add(2 * time.Hour)
	require.NoError(t, e.consolidation.HandleSettled(ctx, batch.ProviderRef, paidAt))

	inv := e.invoiceByID(t, out.ID)
	assert.Equal(t, entity.StatusPaid, inv.Status)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, paidAt, *inv.PaidAt)
	assert.Equal(t, []string{out.ID}, e.notifier.paid)
	assert.Zero(t, e.grants.calls, "no grant for an all-cash invoice")
}

// A 30% election splits $205.00 into 6150/14350, locks the year, and creates
// a grant after settlement.
func TestLifecycleWithEquity(t *testing.T) {
	e := newEnv(t, testCompany(true, 1))
	ctx := context.Background()

	req := hourlyRequest("3:25")
	req.EquityPercentage = 30
	out, err := e.submit.Submit(ctx, "co-1", "ct-1", req)
	require.NoError(t, err)
	assert.Equal(t, int64(6150), out.EquityAmountCents)
	assert.Equal(t, int64(14350), out.CashAmountCents)

	alloc, err := e.queries.GetAllocation(ctx, "ct-1", 2026)
	require.NoError(t, err)
	assert.True(t, alloc.Locked)
	assert.Equal(t, 30, alloc.EquityPercentage)

	_, err = e.approval.Approve(ctx, "co-1", "admin-1", out.ID, false)
	require.NoError(t, err)
	batch, err := e.consolidation.CreatePaymentBatch(ctx, "co-1", "admin-1")
	require.NoError(t, err)
	require.NoError(t, e.consolidation.HandleSettled(ctx, batch.ProviderRef, e.clock.t))

	assert.Equal(t, 1, e.grants.calls)
	inv := e.invoiceByID(t, out.ID)
	require.NotNil(t, inv.EquityOptionCount)
	assert.Equal(t, int64(100), *inv.EquityOptionCount)

	alloc, err = e.queries.GetAllocation(ctx, "ct-1", 2026)
	require.NoError(t, err)
	assert.Equal(t, entity.AllocationPendingApproval, alloc.Status)
}

// A second submission in the same year with a different percentage loses the
// allocation race and reports the locked value.
func TestSubmitConcurrentLock(t *testing.T) {
	e := newEnv(t, testCompany(true, 1))
	ctx := context.Background()

	req := hourlyRequest("2:00")
	req.EquityPercentage = 30
	_, err := e.submit.Submit(ctx, "co-1", "ct-1", req)
	require.NoError(t, err)

	req2 := hourlyRequest("1:00")
	req2.InvoiceNumber = "2026-002"
	req2.EquityPercentage = 50
	_, err = e.submit.Submit(ctx, "co-1", "ct-1", req2)
	var lockErr *domain.ConcurrentLockError
	require.ErrorAs(t, err, &lockErr)
	assert.Equal(t, 30, lockErr.LockedPercentage)

	// Retrying with the locked value succeeds.
	req2.EquityPercentage = 30
	out, err := e.submit.Submit(ctx, "co-1", "ct-1", req2)
	require.NoError(t, err)
	assert.Equal(t, 30, out.EquityPercentage)
}

func TestSubmitInvalidDuration(t *testing.T) {
	e := newEnv(t, testCompany(false, 1))

	_, err := e.submit.Submit(context.Background(), "co-1", "ct-1", hourlyRequest("abc:w"))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "lineItems.duration")
}

// Quorum of two: the first approval leaves the invoice received, the second
// promotes it. The approve+pay gesture works from the last approver.
func TestApproveQuorumAndPayNow(t *testing.T) {
	e := newEnv(t, testCompany(false, 2))
	ctx := context.Background()

	out, err := e.submit.Submit(ctx, "co-1", "ct-1", hourlyRequest("1:00"))
	require.NoError(t, err)

	first, err := e.approval.Approve(ctx, "co-1", "admin-1", out.ID, false)
	require.NoError(t, err)
	assert.Equal(t, string(entity.StatusReceived), first.Status)
	assert.False(t, first.Payable, "the approver is still one short with nothing to add")

	second, err := e.approval.Approve(ctx, "co-1", "admin-2", out.ID, true)
	require.NoError(t, err)
	assert.Equal(t, string(entity.StatusProcessing), second.Status, "payNow batches immediately")
	assert.Len(t, e.provider.calls, 1)
}

func TestApproveDuplicate(t *testing.T) {
	e := newEnv(t, testCompany(false, 2))
	ctx := context.Background()

	out, err := e.submit.Submit(ctx, "co-1", "ct-1", hourlyRequest("1:00"))
	require.NoError(t, err)
	_, err = e.approval.Approve(ctx, "co-1", "admin-1", out.ID, false)
	require.NoError(t, err)

	_, err = e.approval.Approve(ctx, "co-1", "admin-1", out.ID, false)
	var dup *domain.AlreadyApprovedError
	require.ErrorAs(t, err, &dup)

	inv := e.invoiceByID(t, out.ID)
	assert.Len(t, inv.Approvals, 1, "failed duplicate approval must not persist")
}

func TestRejectResubmitCycle(t *testing.T) {
	e := newEnv(t, testCompany(false, 1))
	ctx := context.Background()

	out, err := e.submit.Submit(ctx, "co-1", "ct-1", hourlyRequest("1:00"))
	require.NoError(t, err)

	_, err = e.approval.Reject(ctx, "co-1", "admin-1", out.ID, "wrong rate")
	require.NoError(t, err)
	assert.Equal(t, []string{out.ID}, e.notifier.rejected)

	// The contractor fixes the rate and resubmits; approvals reset.
	fixed := hourlyRequest("1:00")
	fixed.LineItems[0].RateCents = 5000
	resubmitted, err := e.submit.Resubmit(ctx, "co-1", "ct-1", out.ID, fixed)
	require.NoError(t, err)
	assert.Equal(t, string(entity.StatusReceived), resubmitted.Status)
	assert.Equal(t, int64(5000), resubmitted.TotalAmountCents)
	assert.Empty(t, resubmitted.Approvals)
	assert.NotNil(t, resubmitted.RejectionReason, "rejection history survives resubmission")
}

// The batch claim takes everything payable and nothing else, atomically.
func TestCreatePaymentBatchSelection(t *testing.T) {
	e := newEnv(t, testCompany(false, 1))
	ctx := context.Background()

	approved, err := e.submit.Submit(ctx, "co-1", "ct-1", hourlyRequest("1:00"))
	require.NoError(t, err)
	_, err = e.approval.Approve(ctx, "co-1", "admin-1", approved.ID, false)
	require.NoError(t, err)

	req2 := hourlyRequest("2:00")
	req2.InvoiceNumber = "2026-002"
	pending, err := e.submit.Submit(ctx, "co-1", "ct-2", req2)
	require.NoError(t, err)
	// ct-2's invoice is payable pre-emptively (one approval short), but their
	// tax requirements are unmet, which excludes it.
	e.tax.unmet["ct-2"] = true

	batch, err := e.consolidation.CreatePaymentBatch(ctx, "co-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{approved.ID}, batch.InvoiceIDs)
	assert.Equal(t, int64(6000), batch.TotalCents)

	assert.Equal(t, entity.StatusProcessing, e.invoiceByID(t, approved.ID).Status)
	assert.Equal(t, entity.StatusReceived, e.invoiceByID(t, pending.ID).Status)
}

func TestCreatePaymentBatchNothingPayable(t *testing.T) {
	e := newEnv(t, testCompany(false, 2))
	ctx := context.Background()

	_, err := e.consolidation.CreatePaymentBatch(ctx, "co-1", "admin-1")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

// Provider submission failure releases the claim: invoices land in failed,
// which keeps them directly payable for a retry batch.
func TestCreatePaymentBatchProviderFailure(t *testing.T) {
	e := newEnv(t, testCompany(false, 1))
	ctx := context.Background()

	out, err := e.submit.Submit(ctx, "co-1", "ct-1", hourlyRequest("1:00"))
	require.NoError(t, err)
	_, err = e.approval.Approve(ctx, "co-1", "admin-1", out.ID, false)
	require.NoError(t, err)

	e.provider.err = errors.New("connection refused")
	_, err = e.consolidation.CreatePaymentBatch(ctx, "co-1", "admin-1")
	var extErr *domain.ExternalServiceError
	require.ErrorAs(t, err, &extErr)

	inv := e.invoiceByID(t, out.ID)
	assert.Equal(t, entity.StatusFailed, inv.Status)

	// Retry succeeds without any new approval.
	e.provider.err = nil
	batch, err := e.consolidation.CreatePaymentBatch(ctx, "co-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{out.ID}, batch.InvoiceIDs)
}

// Tax answers are resolved before the claim transaction, once per contractor,
// so no row locks are held across the compliance HTTP calls.
func TestCreatePaymentBatchTaxResolvedBeforeClaim(t *testing.T) {
	e := newEnv(t, testCompany(false, 1))
	ctx := context.Background()

	out, err := e.submit.Submit(ctx, "co-1", "ct-1", hourlyRequest("1:00"))
	require.NoError(t, err)
	req2 := hourlyRequest("2:00")
	req2.InvoiceNumber = "2026-002"
	out2, err := e.submit.Submit(ctx, "co-1", "ct-1", req2)
	require.NoError(t, err)
	_, err = e.approval.Approve(ctx, "co-1", "admin-1", out.ID, false)
	require.NoError(t, err)
	_, err = e.approval.Approve(ctx, "co-1", "admin-1", out2.ID, false)
	require.NoError(t, err)
	e.tax.calls = 0
	e.tax.inTxCalls = 0

	_, err = e.consolidation.CreatePaymentBatch(ctx, "co-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, e.tax.calls, "one distinct contractor, one lookup")
	assert.Zero(t, e.tax.inTxCalls, "lookups happen before the claim transaction")
}

// Replayed provider callbacks are acknowledged without changing anything.
func TestCallbackReplay(t *testing.T) {
	e := newEnv(t, testCompany(false, 1))
	ctx := context.Background()

	out, err := e.submit.Submit(ctx, "co-1", "ct-1", hourlyRequest("1:00"))
	require.NoError(t, err)
	_, err = e.approval.Approve(ctx, "co-1", "admin-1", out.ID, false)
	require.NoError(t, err)
	batch, err := e.consolidation.CreatePaymentBatch(ctx, "co-1", "admin-1")
	require.NoError(t, err)

	paidAt := e.clock.t.Add(time.Hour)
	require.NoError(t, e.consolidation.HandleSettled(ctx, batch.ProviderRef, paidAt))
	require.NoError(t, e.consolidation.HandleSettled(ctx, batch.ProviderRef, paidAt.Add(time.Hour)))
	require.NoError(t, e.consolidation.HandleAcknowledged(ctx, batch.ProviderRef))

	inv := e.invoiceByID(t, out.ID)
	assert.Equal(t, entity.StatusPaid, inv.Status)
	assert.Equal(t, paidAt, *inv.PaidAt, "replay keeps the first settlement time")
	assert.Len(t, e.notifier.paid, 1, "one settlement, one notification")
}

func TestOneOffAcceptFlow(t *testing.T) {
	e := newEnv(t, testCompany(true, 1))
	ctx := context.Background()
	minPct, maxPct := 10, 50

	out, err := e.submit.CreateOneOff(ctx, "co-1", "admin-1", dto.CreateOneOffRequest{
		ContractorID:               "ct-1",
		Description:                "Signing bonus",
		AmountCents:                100000,
		MinAllowedEquityPercentage: &minPct,
		MaxAllowedEquityPercentage: &maxPct,
	})
	require.NoError(t, err)
	assert.True(t, out.RequiresAcceptance)
	assert.Equal(t, entity.InvoiceTypeOther, out.InvoiceType)

	// Not payable while awaiting acceptance, even fully approved.
	_, err = e.approval.Approve(ctx, "co-1", "admin-1", out.ID, false)
	require.NoError(t, err)
	_, err = e.consolidation.CreatePaymentBatch(ctx, "co-1", "admin-1")
	assert.ErrorIs(t, err, domain.ErrConflict)

	accepted, err := e.submit.AcceptOneOff(ctx, "co-1", "ct-1", out.ID, dto.AcceptOneOffRequest{EquityPercentage: 25})
	require.NoError(t, err)
	assert.False(t, accepted.RequiresAcceptance)
	assert.Equal(t, int64(25000), accepted.EquityAmountCents)
	assert.Equal(t, int64(75000), accepted.CashAmountCents)

	batch, err := e.consolidation.CreatePaymentBatch(ctx, "co-1", "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{out.ID}, batch.InvoiceIDs)
}

// A one-off without a negotiable range splits against the contractor's locked
// allocation, the same as a services invoice.
func TestOneOffNoRangeUsesLockedAllocation(t *testing.T) {
	e := newEnv(t, testCompany(true, 1))
	ctx := context.Background()

	req := hourlyRequest("3:25")
	req.EquityPercentage = 30
	_, err := e.submit.Submit(ctx, "co-1", "ct-1", req)
	require.NoError(t, err)

	out, err := e.submit.CreateOneOff(ctx, "co-1", "admin-1", dto.CreateOneOffRequest{
		ContractorID: "ct-1",
		Description:  "Referral bonus",
		AmountCents:  100000,
	})
	require.NoError(t, err)
	assert.False(t, out.RequiresAcceptance)
	assert.Equal(t, 30, out.EquityPercentage)
	assert.Equal(t, int64(30000), out.EquityAmountCents)
	assert.Equal(t, int64(70000), out.CashAmountCents)

	// Without a lock in place it stays all-cash.
	out2, err := e.submit.CreateOneOff(ctx, "co-1", "admin-1", dto.CreateOneOffRequest{
		ContractorID: "ct-2",
		Description:  "Referral bonus",
		AmountCents:  100000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), out2.EquityAmountCents)
	assert.Equal(t, int64(100000), out2.CashAmountCents)
}

func TestPreviewSplitReportsLock(t *testing.T) {
	e := newEnv(t, testCompany(true, 1))
	ctx := context.Background()

	// Before any lock the elected percentage applies.
	preview, err := e.submit.PreviewSplit(ctx, "co-1", "ct-1", dto.PreviewSplitRequest{
		AmountCents: 20500, EquityPercentage: 30, Year: 2026,
	})
	require.NoError(t, err)
	assert.False(t, preview.Locked)
	assert.Equal(t, int64(6150), preview.EquityAmountCents)

	req := hourlyRequest("3:25")
	req.EquityPercentage = 30
	_, err = e.submit.Submit(ctx, "co-1", "ct-1", req)
	require.NoError(t, err)

	// After the lock the preview reports the locked value, ignoring the ask.
	preview, err = e.submit.PreviewSplit(ctx, "co-1", "ct-1", dto.PreviewSplitRequest{
		AmountCents: 10000, EquityPercentage: 80, Year: 2026,
	})
	require.NoError(t, err)
	assert.True(t, preview.Locked)
	assert.Equal(t, 30, preview.EquityPercentage)
	assert.Equal(t, int64(3000), preview.EquityAmountCents)
}

func TestSoftDeleteRules(t *testing.T) {
	e := newEnv(t, testCompany(false, 1))
	ctx := context.Background()

	out, err := e.submit.Submit(ctx, "co-1", "ct-1", hourlyRequest("1:00"))
	require.NoError(t, err)

	// Someone else's invoice is off limits.
	assert.ErrorIs(t, e.queries.SoftDelete(ctx, "co-1", "ct-2", out.ID), domain.ErrForbidden)

	require.NoError(t, e.queries.SoftDelete(ctx, "co-1", "ct-1", out.ID))
	_, err = e.queries.Get(ctx, "co-1", "ct-1", entity.RoleContractor, out.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Once batched, deletion is blocked.
	out2, err := e.submit.Submit(ctx, "co-1", "ct-2", hourlyRequest("2:00"))
	require.NoError(t, err)
	_, err = e.approval.Approve(ctx, "co-1", "admin-1", out2.ID, true)
	require.NoError(t, err)
	var state *domain.InvalidStateError
	assert.ErrorAs(t, e.queries.SoftDelete(ctx, "co-1", "ct-2", out2.ID), &state)
}

func TestListScoping(t *testing.T) {
	e := newEnv(t, testCompany(false, 1))
	ctx := context.Background()

	_, err := e.submit.Submit(ctx, "co-1", "ct-1", hourlyRequest("1:00"))
	require.NoError(t, err)
	req2 := hourlyRequest("2:00")
	req2.InvoiceNumber = "2026-002"
	_, err = e.submit.Submit(ctx, "co-1", "ct-2", req2)
	require.NoError(t, err)

	admin, err := e.queries.List(ctx, "co-1", "admin-1", entity.RoleAdmin, "", dto.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, admin.Invoices, 2)

	mine, err := e.queries.List(ctx, "co-1", "ct-1", entity.RoleContractor, "", dto.PageRequest{})
	require.NoError(t, err)
	require.Len(t, mine.Invoices, 1)
	assert.Equal(t, "ct-1", mine.Invoices[0].ContractorID)
}
