package payments_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/crewpay/payments-api/internal/application/payments"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/repository"
)

// In-memory fakes emulating the persistence behavior the use cases rely on:
// aggregates round-trip as copies, so only Update makes a mutation visible.

type memStore struct {
	mu          sync.Mutex
	inTx        bool // set by memTxRunner while a transaction callback runs
	invoices    map[string]*entity.Invoice
	allocations map[string]*entity.EquityAllocation // keyed contractorID|year
	companies   map[string]*entity.Company
	users       map[string]*entity.User
	batches     map[string]*entity.ConsolidatedInvoice
}

func newMemStore() *memStore {
	return &memStore{
		invoices:    map[string]*entity.Invoice{},
		allocations: map[string]*entity.EquityAllocation{},
		companies:   map[string]*entity.Company{},
		users:       map[string]*entity.User{},
		batches:     map[string]*entity.ConsolidatedInvoice{},
	}
}

func allocKey(contractorID string, year int) string {
	return fmt.Sprintf("%s|%d", contractorID, year)
}

func cloneInvoice(inv *entity.Invoice) *entity.Invoice {
	cp := *inv
	cp.LineItems = append([]entity.LineItem(nil), inv.LineItems...)
	cp.Expenses = append([]entity.Expense(nil), inv.Expenses...)
	cp.Approvals = append([]entity.Approval(nil), inv.Approvals...)
	return &cp
}

func cloneBatch(b *entity.ConsolidatedInvoice) *entity.ConsolidatedInvoice {
	cp := *b
	cp.InvoiceIDs = append([]string(nil), b.InvoiceIDs...)
	return &cp
}

// ── invoice repo ──

type memInvoiceRepo struct{ s *memStore }

var _ repository.InvoiceRepository = (*memInvoiceRepo)(nil)

func (r *memInvoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r *memInvoiceRepo) Update(_ context.Context, inv *entity.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.invoices[inv.ID]; !ok {
		return errors.New("invoice missing")
	}
	r.s.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r *memInvoiceRepo) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	return cloneInvoice(inv), nil
}

func (r *memInvoiceRepo) GetByIDForUpdate(ctx context.Context, id string) (*entity.Invoice, error) {
	return r.GetByID(ctx, id)
}

func (r *memInvoiceRepo) ListByCompany(_ context.Context, companyID string, f repository.InvoiceFilter) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.CompanyID != companyID || inv.DeletedAt != nil {
			continue
		}
		if f.ContractorID != "" && inv.ContractorID != f.ContractorID {
			continue
		}
		if f.Status != "" && inv.Status != f.Status {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memInvoiceRepo) ListPayable(ctx context.Context, companyID string) ([]*entity.Invoice, error) {
	return r.ListPayableForUpdate(ctx, companyID)
}

func (r *memInvoiceRepo) ListPayableForUpdate(_ context.Context, companyID string) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.CompanyID != companyID || inv.DeletedAt != nil {
			continue
		}
		switch inv.Status {
		case entity.StatusReceived, entity.StatusApproved, entity.StatusFailed:
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memInvoiceRepo) ListByConsolidatedInvoice(_ context.Context, batchID string) ([]*entity.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Invoice
	for _, inv := range r.s.invoices {
		if inv.ConsolidatedInvoiceID != nil && *inv.ConsolidatedInvoiceID == batchID {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ── allocation repo ──

type memAllocationRepo struct{ s *memStore }

var _ repository.EquityAllocationRepository = (*memAllocationRepo)(nil)

func (r *memAllocationRepo) GetForYear(_ context.Context, contractorID string, year int) (*entity.EquityAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.allocations[allocKey(contractorID, year)]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memAllocationRepo) GetOrCreateForUpdate(_ context.Context, a *entity.EquityAllocation) (*entity.EquityAllocation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := allocKey(a.ContractorID, a.Year)
	if existing, ok := r.s.allocations[key]; ok {
		cp := *existing
		return &cp, nil
	}
	if a.ID == "" {
		a.ID = "alloc-" + key
	}
	cp := *a
	r.s.allocations[key] = &cp
	out := cp
	return &out, nil
}

func (r *memAllocationRepo) Update(_ context.Context, a *entity.EquityAllocation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *a
	r.s.allocations[allocKey(a.ContractorID, a.Year)] = &cp
	return nil
}

func (r *memAllocationRepo) UpdateStatus(_ context.Context, id, status string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.allocations {
		if a.ID == id {
			a.Status = status
			return nil
		}
	}
	return errors.New("allocation missing")
}

// ── company repo ──

type memCompanyRepo struct{ s *memStore }

var _ repository.CompanyRepository = (*memCompanyRepo)(nil)

func (r *memCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *memCompanyRepo) Create(_ context.Context, c *entity.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *c
	r.s.companies[c.ID] = &cp
	return nil
}

func (r *memCompanyRepo) Update(_ context.Context, c *entity.Company) error {
	return r.Create(context.Background(), c)
}

// ── batch repo ──

type memBatchRepo struct{ s *memStore }

var _ repository.ConsolidatedInvoiceRepository = (*memBatchRepo)(nil)

func (r *memBatchRepo) Create(_ context.Context, b *entity.ConsolidatedInvoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.batches[b.ID] = cloneBatch(b)
	return nil
}

func (r *memBatchRepo) Update(_ context.Context, b *entity.ConsolidatedInvoice) error {
	return r.Create(context.Background(), b)
}

func (r *memBatchRepo) GetByID(_ context.Context, id string) (*entity.ConsolidatedInvoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.batches[id]
	if !ok {
		return nil, nil
	}
	return cloneBatch(b), nil
}

func (r *memBatchRepo) GetByProviderRef(_ context.Context, providerRef string) (*entity.ConsolidatedInvoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.batches {
		if b.ProviderRef == providerRef {
			return cloneBatch(b), nil
		}
	}
	return nil, nil
}

func (r *memBatchRepo) ListByCompany(_ context.Context, companyID string, limit, offset int) ([]*entity.ConsolidatedInvoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.ConsolidatedInvoice
	for _, b := range r.s.batches {
		if b.CompanyID == companyID {
			out = append(out, cloneBatch(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ── tx runner ──

type memTxRunner struct{ s *memStore }

var _ payments.TxRunner = (*memTxRunner)(nil)

func (r *memTxRunner) Run(_ context.Context, fn func(
	repository.InvoiceRepository,
	repository.EquityAllocationRepository,
	repository.CompanyRepository,
	repository.ConsolidatedInvoiceRepository,
) error) error {
	r.s.inTx = true
	defer func() { r.s.inTx = false }()
	return fn(
		&memInvoiceRepo{s: r.s},
		&memAllocationRepo{s: r.s},
		&memCompanyRepo{s: r.s},
		&memBatchRepo{s: r.s},
	)
}

// ── collaborator fakes ──

type fakeProvider struct {
	refs   int
	err    error
	calls  []string
	totals []int64
}

func (p *fakeProvider) SubmitBatch(_ context.Context, batchID string, invoiceIDs []string, totalCents int64) (string, error) {
	p.calls = append(p.calls, batchID)
	p.totals = append(p.totals, totalCents)
	if p.err != nil {
		return "", p.err
	}
	p.refs++
	return fmt.Sprintf("prov-ref-%d", p.refs), nil
}

type fakeTaxChecker struct {
	unmet     map[string]bool
	err       error
	store     *memStore
	calls     int
	inTxCalls int
}

func (t *fakeTaxChecker) AreTaxRequirementsMet(_ context.Context, contractorID string) (bool, error) {
	t.calls++
	if t.store != nil && t.store.inTx {
		t.inTxCalls++
	}
	if t.err != nil {
		return false, t.err
	}
	return !t.unmet[contractorID], nil
}

type fakeGrants struct {
	options int64
	err     error
	calls   int
}

func (g *fakeGrants) CreateGrant(_ context.Context, _, _ string, _ int, _ int64) (int64, error) {
	g.calls++
	if g.err != nil {
		return 0, g.err
	}
	return g.options, nil
}

type fakeNotifier struct {
	approved []string
	rejected []string
	paid     []string
	failed   []string
}

func (n *fakeNotifier) InvoiceRejected(invoiceID, _, _ string) {
	n.rejected = append(n.rejected, invoiceID)
}

func (n *fakeNotifier) InvoiceApproved(invoiceID, _ string, _, _ int) {
	n.approved = append(n.approved, invoiceID)
}

func (n *fakeNotifier) InvoicePaid(invoiceID, _ string, _ time.Time) {
	n.paid = append(n.paid, invoiceID)
}

func (n *fakeNotifier) PaymentFailed(invoiceID, _, _ string) {
	n.failed = append(n.failed, invoiceID)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
