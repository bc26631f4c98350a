package render

import (
	"fmt"
	"io"
	"strings"

	"orion-waste-reports/internal/aggregate"
	"orion-waste-reports/internal/validation"
)

type consoleRenderer struct{}

func (r *consoleRenderer) Format() Format { return FormatConsole }

// Render generates a human-readable console report
func (r *consoleRenderer) Render(data *ReportData, w io.Writer) error {
	s := data.Summary

	// Report header
	fmt.Fprintf(w, "%s\n", strings.ToUpper(data.Title()))
	fmt.Fprintf(w, "Period:    %s\n", data.Period())
	fmt.Fprintf(w, "Generated: %s\n\n", s.GeneratedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(w, "=== SUMMARY ===\n")
	r.printSummary(s, data.Validation, w)
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "=== PROPERTIES ===\n")
	r.printProperties(s, data.Validation, w)
	fmt.Fprintf(w, "\n")

	if categories := categoryRows(s); len(categories) > 0 {
		fmt.Fprintf(w, "=== CATEGORIES ===\n")
		for _, c := range categories {
			fmt.Fprintf(w, "  %-18s %14s  %6s\n", c.Label, Money(c.Total), Pct(c.Share))
		}
		fmt.Fprintf(w, "\n")
	}

	if len(data.Validation.Issues) > 0 {
		fmt.Fprintf(w, "=== VALIDATION ISSUES ===\n")
		r.printIssues(data.Validation.Issues, data.config().MaxIssues, w)
	}

	return nil
}

func (r *consoleRenderer) printSummary(s *aggregate.Summary, report *validation.Report, w io.Writer) {
	fmt.Fprintf(w, "Portfolio:        %s\n", s.Portfolio)
	fmt.Fprintf(w, "Properties:       %d (%d units)\n", len(s.Properties), s.TotalUnits)
	fmt.Fprintf(w, "Invoices:         %d\n", s.InvoiceCount)
	fmt.Fprintf(w, "Total Spend:      %s\n", Money(s.PortfolioTotal))
	fmt.Fprintf(w, "Monthly Average:  %s\n", Money(s.MonthlyAverage))
	fmt.Fprintf(w, "Cost Per Door:    %s\n", Money(s.PortfolioCostPerDoor))
	if s.Unassigned > 0 {
		fmt.Fprintf(w, "Unassigned:       %d (%s)\n", s.Unassigned, Money(s.UnassignedTotal))
	}
	if s.OutOfRange > 0 {
		fmt.Fprintf(w, "Out of Range:     %d\n", s.OutOfRange)
	}
	fmt.Fprintf(w, "Validation:       %d errors, %d warnings, %d info\n",
		report.ErrorCount, report.WarningCount, report.InfoCount)
}

func (r *consoleRenderer) printProperties(s *aggregate.Summary, report *validation.Report, w io.Writer) {
	fmt.Fprintf(w, "  %-10s %-28s %6s %14s %12s %10s %8s  %s\n",
		"CODE", "PROPERTY", "UNITS", "TOTAL", "MONTHLY", "PER DOOR", "MOM", "STATUS")
	for _, ps := range s.Properties {
		fmt.Fprintf(w, "  %-10s %-28s %6d %14s %12s %10s %8s  %s\n",
			ps.Property.Code,
			truncate(ps.Property.Name, 28),
			ps.Property.Units,
			Money(ps.Total),
			Money(ps.MonthlyAverage),
			Money(ps.CostPerDoorAverage),
			momLabel(ps),
			strings.ToUpper(status(report, ps.Property.Code)))
	}
}

func (r *consoleRenderer) printIssues(issues []*validation.Issue, max int, w io.Writer) {
	fmt.Fprintf(w, "Total Issues Found: %d\n\n", len(issues))

	shown := limitIssues(issues, max)
	for _, issue := range shown {
		fmt.Fprintf(w, "  - %s\n", issue.String())
	}
	if hidden := len(issues) - len(shown); hidden > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", hidden)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
