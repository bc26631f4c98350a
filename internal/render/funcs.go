package render

import (
	"strings"

	"orion-waste-reports/internal/aggregate"
	"orion-waste-reports/internal/models"
	"orion-waste-reports/internal/validation"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	xnumber "golang.org/x/text/number"
)

var moneyPrinter = message.NewPrinter(language.AmericanEnglish)

// Money formats an amount as "$1,234.56", credits as "-$45.00"
func Money(d decimal.Decimal) string {
	rounded := d.Round(2)
	amount := moneyPrinter.Sprint(xnumber.Decimal(rounded.Abs().InexactFloat64(), xnumber.Scale(2)))
	if rounded.IsNegative() {
		return "-$" + amount
	}
	return "$" + amount
}

// Pct formats a percentage with one decimal, e.g. "12.5%"
func Pct(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

func signedPct(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + Pct(d)
	}
	return Pct(d)
}

// momLabel renders a property's month-over-month change or "n/a"
func momLabel(ps *aggregate.PropertySummary) string {
	if !ps.HasMonthOverMonth {
		return "n/a"
	}
	return signedPct(ps.MonthOverMonthChange)
}

func monthCell(pm *aggregate.PropertyMonth) string {
	if !pm.HasData() {
		return "-"
	}
	return Money(pm.Total)
}

func status(report *validation.Report, code string) string {
	if s, ok := report.PropertyStatus[code]; ok {
		return string(s)
	}
	return string(validation.StatusPass)
}

func limitIssues(issues []*validation.Issue, max int) []*validation.Issue {
	if max <= 0 || len(issues) <= max {
		return issues
	}
	return issues[:max]
}

// barWidth scales a share to a CSS width between 0 and 100
func barWidth(share decimal.Decimal) string {
	if share.IsNegative() {
		return "0"
	}
	if share.GreaterThan(decimal.NewFromInt(100)) {
		return "100"
	}
	return share.StringFixed(1)
}

// escapePipes keeps free text from breaking Markdown tables
func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// categoryRow is a category with its portfolio total and share
type categoryRow struct {
	Category models.ExpenseCategory
	Label    string
	Total    decimal.Decimal
	Share    decimal.Decimal
}

func categoryRows(s *aggregate.Summary) []categoryRow {
	cats := s.Categories()
	rows := make([]categoryRow, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, categoryRow{
			Category: c,
			Label:    c.Label(),
			Total:    s.CategoryTotals[c],
			Share:    s.CategoryShare[c],
		})
	}
	return rows
}

func templateFuncs() map[string]interface{} {
	return map[string]interface{}{
		"money":       Money,
		"pct":         Pct,
		"signedPct":   signedPct,
		"mom":         momLabel,
		"monthLabel":  models.MonthLabel,
		"monthCell":   monthCell,
		"barWidth":    barWidth,
		"escapePipes": escapePipes,
		"upper":       strings.ToUpper,
		"join":        strings.Join,
		"date":        func(d interface{ Format(string) string }) string { return d.Format("2006-01-02 15:04") },
	}
}
