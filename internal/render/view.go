package render

import (
	"fmt"
	"strings"
	"time"

	"orion-waste-reports/internal/aggregate"
	"orion-waste-reports/internal/models"
	"orion-waste-reports/internal/validation"

	"github.com/shopspring/decimal"
)

// view is the template model shared by the html and markdown renderers
type view struct {
	Title        string
	Period       string
	GeneratedAt  time.Time
	Summary      *aggregate.Summary
	Validation   *validation.Report
	Categories   []categoryRow
	Issues       []*validation.Issue
	IssuesHidden int
	Invoices     []*models.Invoice
	Statuses     map[string]string
	Notes        string
}

func newView(data *ReportData, maxIssues int) *view {
	cfg := data.config()
	v := &view{
		Title:       data.Title(),
		Period:      data.Period(),
		GeneratedAt: data.Summary.GeneratedAt,
		Summary:     data.Summary,
		Validation:  data.Validation,
		Categories:  categoryRows(data.Summary),
		Issues:      limitIssues(data.Validation.Issues, maxIssues),
		Statuses:    make(map[string]string, len(data.Summary.Properties)),
	}
	v.IssuesHidden = len(data.Validation.Issues) - len(v.Issues)
	if cfg.IncludeInvoices {
		v.Invoices = data.Invoices
	}
	for _, ps := range data.Summary.Properties {
		v.Statuses[ps.Property.Code] = status(data.Validation, ps.Property.Code)
	}
	v.Notes = notesMarkdown(data)
	return v
}

// notesMarkdown writes the key findings as a Markdown bullet list
func notesMarkdown(data *ReportData) string {
	s := data.Summary
	var b strings.Builder

	var top, perDoor, jump *aggregate.PropertySummary
	for _, ps := range s.Properties {
		if ps.Total.IsZero() {
			continue
		}
		if top == nil || ps.Total.GreaterThan(top.Total) {
			top = ps
		}
		if perDoor == nil || ps.CostPerDoorAverage.GreaterThan(perDoor.CostPerDoorAverage) {
			perDoor = ps
		}
		if ps.HasMonthOverMonth && ps.MonthOverMonthChange.IsPositive() &&
			(jump == nil || ps.MonthOverMonthChange.GreaterThan(jump.MonthOverMonthChange)) {
			jump = ps
		}
	}

	fmt.Fprintf(&b, "- Portfolio spend for %s was **%s** across %d invoices.\n",
		data.Period(), Money(s.PortfolioTotal), s.InvoiceCount)
	if top != nil {
		fmt.Fprintf(&b, "- **%s** had the highest spend at %s (%s of the portfolio).\n",
			top.Property.Name, Money(top.Total), Pct(top.ShareOfPortfolio))
	}
	if perDoor != nil {
		fmt.Fprintf(&b, "- **%s** had the highest average cost per door at %s.\n",
			perDoor.Property.Name, Money(perDoor.CostPerDoorAverage))
	}
	if jump != nil {
		fmt.Fprintf(&b, "- **%s** rose %s month over month.\n",
			jump.Property.Name, Pct(jump.MonthOverMonthChange))
	}
	if c := s.CategoryTotals[models.CategoryContamination]; c.GreaterThan(decimal.Zero) {
		fmt.Fprintf(&b, "- Contamination charges totalled %s.\n", Money(c))
	}
	if s.Unassigned > 0 {
		fmt.Fprintf(&b, "- %d invoices (%s) could not be assigned to a property.\n",
			s.Unassigned, Money(s.UnassignedTotal))
	}
	if r := data.Validation; r.ErrorCount+r.WarningCount > 0 {
		fmt.Fprintf(&b, "- Validation found %d errors and %d warnings.\n", r.ErrorCount, r.WarningCount)
	} else {
		b.WriteString("- Validation found no errors or warnings.\n")
	}

	if extra := strings.TrimSpace(data.config().Notes); extra != "" {
		b.WriteString("\n")
		b.WriteString(extra)
		b.WriteString("\n")
	}
	return b.String()
}
