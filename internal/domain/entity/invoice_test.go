package entity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewpay/payments-api/internal/domain"
	"github.com/crewpay/payments-api/internal/domain/entity"
)

var testTime = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func newReceivedInvoice() *entity.Invoice {
	inv := &entity.Invoice{
		ID:            "inv-1",
		CompanyID:     "co-1",
		ContractorID:  "ct-1",
		InvoiceType:   entity.InvoiceTypeServices,
		InvoiceNumber: "2026-001",
		InvoiceDate:   testTime,
		Status:        entity.StatusReceived,
		LineItems: []entity.LineItem{
			{Description: "March work", Quantity: 205, Hourly: true, RateCents: 6000},
		},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	inv.Recalculate(0, false)
	return inv
}

func TestRecalculateHourly(t *testing.T) {
	inv := newReceivedInvoice()
	// 3h25m at $60/hr rounds up to $205.00.
	assert.Equal(t, int64(20500), inv.TotalAmountCents)
	assert.Equal(t, int64(20500), inv.CashAmountCents)
	assert.Equal(t, int64(0), inv.EquityAmountCents)
}

func TestRecalculateWithEquity(t *testing.T) {
	inv := newReceivedInvoice()
	inv.Recalculate(30, true)
	assert.Equal(t, int64(6150), inv.EquityAmountCents)
	assert.Equal(t, int64(14350), inv.CashAmountCents)
	assert.Equal(t, inv.TotalAmountCents, inv.CashAmountCents+inv.EquityAmountCents)

	// Disabling the program forces the percentage to zero on recalc.
	inv.Recalculate(30, false)
	assert.Equal(t, 0, inv.EquityPercentage)
	assert.Equal(t, int64(20500), inv.CashAmountCents)
}

func TestValidate(t *testing.T) {
	inv := newReceivedInvoice()
	assert.Nil(t, inv.Validate(0))

	inv.InvoiceNumber = ""
	inv.LineItems[0].Description = ""
	inv.LineItems[0].RateCents = 0
	verr := inv.Validate(0)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Fields, "invoiceNumber")
	assert.Contains(t, verr.Fields, "lineItems[0].description")
	assert.Contains(t, verr.Fields, "lineItems[0].rate")
}

func TestValidateHourlyCap(t *testing.T) {
	inv := newReceivedInvoice()
	verr := inv.Validate(100) // cap below the 205 billed minutes
	require.NotNil(t, verr)
	assert.Contains(t, verr.Fields, "lineItems")

	assert.Nil(t, inv.Validate(205))
}

func TestApproveQuorum(t *testing.T) {
	inv := newReceivedInvoice()

	require.NoError(t, inv.Approve("admin-1", testTime, 2))
	assert.Equal(t, entity.StatusReceived, inv.Status, "one of two approvals must not promote")

	require.NoError(t, inv.Approve("admin-2", testTime, 2))
	assert.Equal(t, entity.StatusApproved, inv.Status)
	assert.Len(t, inv.Approvals, 2)
}

func TestApproveDuplicateApprover(t *testing.T) {
	inv := newReceivedInvoice()
	require.NoError(t, inv.Approve("admin-1", testTime, 2))

	err := inv.Approve("admin-1", testTime, 2)
	var dup *domain.AlreadyApprovedError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "admin-1", dup.ApproverID)
	assert.Len(t, inv.Approvals, 1, "duplicate approval must not append")
}

func TestApproveOverQuorum(t *testing.T) {
	inv := newReceivedInvoice()
	require.NoError(t, inv.Approve("admin-1", testTime, 1))
	assert.Equal(t, entity.StatusApproved, inv.Status)

	err := inv.Approve("admin-2", testTime, 1)
	var quorum *domain.QuorumMismatchError
	require.ErrorAs(t, err, &quorum)
	assert.Len(t, inv.Approvals, 1)
}

func TestApproveFailedAtQuorum(t *testing.T) {
	inv := newReceivedInvoice()
	require.NoError(t, inv.Approve("admin-1", testTime, 1))
	require.NoError(t, inv.MarkProcessing("batch-1", testTime))
	require.NoError(t, inv.MarkFailed("insufficient funds", testTime))

	// A failed invoice that already met quorum takes no further approvals;
	// it is directly payable as-is.
	err := inv.Approve("admin-2", testTime, 1)
	var quorum *domain.QuorumMismatchError
	require.ErrorAs(t, err, &quorum)
	assert.Len(t, inv.Approvals, 1, "approvals must never exceed the required count")
}

func TestApproveInvalidStates(t *testing.T) {
	for _, status := range []entity.InvoiceStatus{
		entity.StatusProcessing, entity.StatusPaymentPending, entity.StatusPaid, entity.StatusRejected,
	} {
		inv := newReceivedInvoice()
		inv.Status = status
		err := inv.Approve("admin-1", testTime, 1)
		var state *domain.InvalidStateError
		assert.ErrorAs(t, err, &state, "status %s", status)
	}
}

func payableCtx() entity.PayabilityContext {
	return entity.PayabilityContext{RequiredApprovalCount: 2, TaxRequirementsMet: true}
}

func TestIsPayableQuorumDistance(t *testing.T) {
	inv := newReceivedInvoice()

	// Zero approvals, two required: two short, not payable.
	assert.False(t, inv.IsPayable(payableCtx()))

	// One approval: one short, payable for an actor who has not yet approved
	// because their approve+pay gesture closes the gap.
	require.NoError(t, inv.Approve("admin-1", testTime, 2))
	assert.True(t, inv.IsPayable(payableCtx()))

	// Same invoice viewed by the admin who already approved: still one short
	// with no pending approval to add, so not payable.
	ctx := payableCtx()
	ctx.ActorHasApproved = true
	assert.False(t, inv.IsPayable(ctx))

	// At quorum it is payable for everyone.
	require.NoError(t, inv.Approve("admin-2", testTime, 2))
	assert.True(t, inv.IsPayable(payableCtx()))
	assert.True(t, inv.IsPayable(ctx))
}

func TestIsPayableFailed(t *testing.T) {
	inv := newReceivedInvoice()
	inv.Status = entity.StatusFailed

	// Failed invoices are payable with zero approvals.
	assert.True(t, inv.IsPayable(payableCtx()))

	// Unless tax requirements are unmet, which overrides everything.
	ctx := payableCtx()
	ctx.TaxRequirementsMet = false
	assert.False(t, inv.IsPayable(ctx))
}

func TestIsPayableGates(t *testing.T) {
	inv := newReceivedInvoice()
	require.NoError(t, inv.Approve("admin-1", testTime, 2))
	require.NoError(t, inv.Approve("admin-2", testTime, 2))

	// Tax gate.
	ctx := payableCtx()
	ctx.TaxRequirementsMet = false
	assert.False(t, inv.IsPayable(ctx))

	// Acceptance gate for one-off payments.
	inv.RequiresAcceptance = true
	assert.False(t, inv.IsPayable(payableCtx()))
	inv.RequiresAcceptance = false

	// Deleted invoices are never payable.
	inv.SoftDelete(testTime)
	assert.False(t, inv.IsPayable(payableCtx()))
}

func TestIsPayableTerminalStates(t *testing.T) {
	for _, status := range []entity.InvoiceStatus{
		entity.StatusProcessing, entity.StatusPaymentPending, entity.StatusPaid, entity.StatusRejected,
	} {
		inv := newReceivedInvoice()
		inv.Status = status
		assert.False(t, inv.IsPayable(payableCtx()), "status %s", status)
	}
}

func TestRejectAndResubmit(t *testing.T) {
	inv := newReceivedInvoice()
	require.NoError(t, inv.Approve("admin-1", testTime, 2))

	require.NoError(t, inv.Reject("admin-2", testTime, "wrong rate"))
	assert.Equal(t, entity.StatusRejected, inv.Status)
	require.NotNil(t, inv.RejectionReason)
	assert.Equal(t, "wrong rate", *inv.RejectionReason)

	// Rejected invoices are editable and can be resubmitted; approvals reset.
	assert.True(t, inv.IsEditable())
	require.NoError(t, inv.Resubmit(testTime.Add(time.Hour)))
	assert.Equal(t, entity.StatusReceived, inv.Status)
	assert.Empty(t, inv.Approvals)
	assert.NotNil(t, inv.RejectionReason, "rejection history is kept")
}

func TestRejectInvalidStates(t *testing.T) {
	for _, status := range []entity.InvoiceStatus{
		entity.StatusProcessing, entity.StatusPaymentPending, entity.StatusPaid,
		entity.StatusRejected, entity.StatusFailed,
	} {
		inv := newReceivedInvoice()
		inv.Status = status
		var state *domain.InvalidStateError
		assert.ErrorAs(t, inv.Reject("admin-1", testTime, "no"), &state, "status %s", status)
	}
}

func TestPaymentLifecycle(t *testing.T) {
	inv := newReceivedInvoice()
	require.NoError(t, inv.Approve("admin-1", testTime, 1))

	require.NoError(t, inv.MarkProcessing("batch-1", testTime))
	assert.Equal(t, entity.StatusProcessing, inv.Status)
	require.NotNil(t, inv.ConsolidatedInvoiceID)

	require.NoError(t, inv.MarkPaymentPending(testTime))
	assert.Equal(t, entity.StatusPaymentPending, inv.Status)

	paidAt := testTime.Add(2 * time.Hour)
	require.NoError(t, inv.MarkPaid(paidAt))
	assert.Equal(t, entity.StatusPaid, inv.Status)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, paidAt, *inv.PaidAt)
}

func TestCallbackIdempotency(t *testing.T) {
	inv := newReceivedInvoice()
	require.NoError(t, inv.Approve("admin-1", testTime, 1))
	require.NoError(t, inv.MarkProcessing("batch-1", testTime))

	paidAt := testTime.Add(time.Hour)
	require.NoError(t, inv.MarkPaid(paidAt))

	// Replayed callbacks are no-ops: a late acknowledgement does not demote,
	// a second settlement keeps the original PaidAt.
	require.NoError(t, inv.MarkPaymentPending(testTime.Add(2*time.Hour)))
	assert.Equal(t, entity.StatusPaid, inv.Status)
	require.NoError(t, inv.MarkPaid(testTime.Add(3*time.Hour)))
	assert.Equal(t, paidAt, *inv.PaidAt)
}

func TestMarkFailedAndRetry(t *testing.T) {
	inv := newReceivedInvoice()
	require.NoError(t, inv.Approve("admin-1", testTime, 1))
	require.NoError(t, inv.MarkProcessing("batch-1", testTime))
	require.NoError(t, inv.MarkFailed("insufficient funds", testTime))

	assert.Equal(t, entity.StatusFailed, inv.Status)
	require.NotNil(t, inv.FailureReason)

	// A failed invoice can be claimed by a new batch; the failure reason clears.
	require.NoError(t, inv.MarkProcessing("batch-2", testTime))
	assert.Nil(t, inv.FailureReason)
	assert.Equal(t, "batch-2", *inv.ConsolidatedInvoiceID)
}

func TestAcceptOneOff(t *testing.T) {
	minPct, maxPct := 10, 50
	inv := newReceivedInvoice()
	inv.InvoiceType = entity.InvoiceTypeOther
	inv.RequiresAcceptance = true
	inv.MinAllowedEquityPercentage = &minPct
	inv.MaxAllowedEquityPercentage = &maxPct

	assert.ErrorIs(t, inv.AcceptOneOff(5, true, testTime), domain.ErrInvalidInput)
	assert.ErrorIs(t, inv.AcceptOneOff(51, true, testTime), domain.ErrInvalidInput)

	require.NoError(t, inv.AcceptOneOff(30, true, testTime))
	assert.False(t, inv.RequiresAcceptance)
	assert.Equal(t, 30, inv.EquityPercentage)
	assert.Equal(t, inv.TotalAmountCents, inv.CashAmountCents+inv.EquityAmountCents)

	// Accepting a services invoice is not a thing.
	services := newReceivedInvoice()
	var state *domain.InvalidStateError
	assert.ErrorAs(t, services.AcceptOneOff(30, true, testTime), &state)
}
