// Package pdf renders the downloadable invoice document.
//
// A4 page layout:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Company name        │  Invoice number + date       │
//	│  ─────────────────────────────────────────────────────────  │
//	│  CONTRACTOR: name + email                                   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLE: Description | Qty/Duration | Rate | Amount          │
//	│  EXPENSES                                                   │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALS: Total / Cash portion / Equity portion              │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/crewpay/payments-api/internal/application/payments"
	"github.com/crewpay/payments-api/internal/domain/entity"
	"github.com/crewpay/payments-api/internal/domain/money"
)

var (
	colorPrimary = &props.Color{Red: 16, Green: 82, Blue: 62}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

var usPrinter = message.NewPrinter(language.AmericanEnglish)

// MarotoPDFGenerator implements payments.InvoicePDFGenerator with Maroto v2.
type MarotoPDFGenerator struct{}

var _ payments.InvoicePDFGenerator = (*MarotoPDFGenerator)(nil)

// NewMarotoPDFGenerator builds the generator.
func NewMarotoPDFGenerator() *MarotoPDFGenerator { return &MarotoPDFGenerator{} }

// GenerateInvoicePDF renders the invoice and returns its bytes.
func (g *MarotoPDFGenerator) GenerateInvoicePDF(
	_ context.Context,
	invoice *entity.Invoice,
	company *entity.Company,
	contractor *entity.User,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Invoice "+invoice.InvoiceNumber, true).
		WithAuthor(company.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(invoice, company))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(contractorRow(contractor))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range lineItemRows(invoice.LineItems) {
		m.AddRows(r)
	}
	for _, r := range expenseRows(invoice.Expenses) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(invoice))

	if invoice.Notes != "" {
		m.AddRows(notesRow(invoice.Notes))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate document: %w", err)
	}
	return doc.GetBytes(), nil
}

// headerRow: company name (left), invoice number and date (right).
func headerRow(invoice *entity.Invoice, company *entity.Company) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New(company.Name, props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Contractor invoice", props.Text{
				Size: 9, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New("INVOICE", props.Text{
				Style: fontstyle.Bold, Size: 8, Align: align.Right,
				Color: colorPrimary, Top: 1,
			}),
			text.New(invoice.InvoiceNumber, props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
			}),
			text.New("Date: "+invoice.InvoiceDate.Format("Jan 2, 2006"), props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// contractorRow: who the invoice pays.
func contractorRow(contractor *entity.User) core.Row {
	name, email := "—", "—"
	if contractor != nil {
		name, email = contractor.Name, contractor.Email
	}
	return row.New(12).Add(
		col.New(12).Add(
			text.New("CONTRACTOR", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(fmt.Sprintf("%s   |   %s", name, email), props.Text{
				Size: 8, Top: 7, Color: colorGray,
			}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Description", 6, align.Left),
		h("Qty / Duration", 2, align.Center),
		h("Rate", 2, align.Right),
		h("Amount", 2, align.Right),
	)
}

// lineItemRows: one row per billed line. Hourly lines show H:MM duration and
// the hourly rate; unit lines show the count and per-unit rate.
func lineItemRows(items []entity.LineItem) []core.Row {
	result := make([]core.Row, 0, len(items))
	for _, li := range items {
		qty := fmt.Sprintf("%d", li.Quantity)
		rate := formatCents(li.RateCents)
		if li.Hourly {
			qty = money.MinutesToHHMM(li.Quantity)
			rate += "/hr"
		}
		result = append(result, row.New(7).Add(
			col.New(6).Add(text.New(li.Description, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New(qty, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(2).Add(text.New(rate, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(2).Add(text.New(formatCents(li.AmountCents), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

// expenseRows: one row per reimbursable expense.
func expenseRows(expenses []entity.Expense) []core.Row {
	result := make([]core.Row, 0, len(expenses))
	for _, ex := range expenses {
		result = append(result, row.New(7).Add(
			col.New(6).Add(text.New("Expense: "+ex.Description, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(4),
			col.New(2).Add(text.New(formatCents(ex.AmountCents), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

// totalsRow: total with the cash/equity breakdown.
func totalsRow(invoice *entity.Invoice) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2,
		})
	}
	value := func(s string) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grandLabel := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 2,
		})
	}
	grandValue := func(s string) core.Component {
		return text.New(s, props.Text{
			Style: fontstyle.Bold, Size: 10, Align: align.Right,
			Color: colorPrimary, Right: 1,
		})
	}

	return row.New(26).Add(
		col.New(3),
		col.New(4).Add(
			grandLabel("TOTAL:"),
			label(fmt.Sprintf("Cash portion (%d%% equity elected):", invoice.EquityPercentage)),
			label("Equity portion:"),
		),
		col.New(3).Add(
			grandValue(formatCents(invoice.TotalAmountCents)),
			value(formatCents(invoice.CashAmountCents)),
			value(formatCents(invoice.EquityAmountCents)),
		),
		col.New(2),
	)
}

func notesRow(notes string) core.Row {
	return row.New(10).Add(col.New(12).Add(
		text.New("Notes: "+notes, props.Text{Size: 7, Color: colorGray, Top: 2}),
	))
}

// formatCents renders integer cents as a grouped en-US dollar amount.
// Ex: 2050000 → "$20,500.00"
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + usPrinter.Sprintf("$%d", cents/100) + fmt.Sprintf(".%02d", cents%100)
}
