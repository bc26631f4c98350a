// Package aggregate rolls invoices up into monthly expense totals per
// property and for the whole portfolio.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"orion-waste-reports/internal/models"
	"orion-waste-reports/internal/portfolio"

	"github.com/shopspring/decimal"
)

// PropertyMonth is one property's spend in one billing month
type PropertyMonth struct {
	PropertyCode string                                     `json:"property_code"`
	Month        string                                     `json:"month"`
	Total        decimal.Decimal                            `json:"total"`
	ByCategory   map[models.ExpenseCategory]decimal.Decimal `json:"by_category"`
	InvoiceCount int                                        `json:"invoice_count"`
	CostPerDoor  decimal.Decimal                            `json:"cost_per_door"`
}

// HasData reports whether any invoice fell in this month
func (pm *PropertyMonth) HasData() bool {
	return pm.InvoiceCount > 0
}

// PropertySummary is a property's spend across the report range
type PropertySummary struct {
	Property             *models.Property                           `json:"property"`
	Months               []*PropertyMonth                           `json:"months"`
	Total                decimal.Decimal                            `json:"total"`
	MonthlyAverage       decimal.Decimal                            `json:"monthly_average"`
	CostPerDoorAverage   decimal.Decimal                            `json:"cost_per_door_average"`
	ShareOfPortfolio     decimal.Decimal                            `json:"share_of_portfolio"`
	MonthOverMonthChange decimal.Decimal                            `json:"month_over_month_change"`
	HasMonthOverMonth    bool                                       `json:"has_month_over_month"`
	Vendors              []string                                   `json:"vendors"`
	CategoryTotals       map[models.ExpenseCategory]decimal.Decimal `json:"category_totals"`
	InvoiceCount         int                                        `json:"invoice_count"`
	MonthsWithData       int                                        `json:"months_with_data"`
}

// Month returns the entry for a YYYY-MM month, or nil when out of range
func (ps *PropertySummary) Month(month string) *PropertyMonth {
	for _, pm := range ps.Months {
		if pm.Month == month {
			return pm
		}
	}
	return nil
}

// Summary is the portfolio-wide expense roll-up
type Summary struct {
	Portfolio            string                                     `json:"portfolio"`
	Months               []string                                   `json:"months"`
	Properties           []*PropertySummary                         `json:"properties"`
	PortfolioTotal       decimal.Decimal                            `json:"portfolio_total"`
	PortfolioMonthly     map[string]decimal.Decimal                 `json:"portfolio_monthly"`
	CategoryTotals       map[models.ExpenseCategory]decimal.Decimal `json:"category_totals"`
	CategoryShare        map[models.ExpenseCategory]decimal.Decimal `json:"category_share"`
	TotalUnits           int                                        `json:"total_units"`
	MonthlyAverage       decimal.Decimal                            `json:"monthly_average"`
	PortfolioCostPerDoor decimal.Decimal                            `json:"portfolio_cost_per_door"`
	InvoiceCount         int                                        `json:"invoice_count"`
	Unassigned           int                                        `json:"unassigned"`
	UnassignedTotal      decimal.Decimal                            `json:"unassigned_total"`
	OutOfRange           int                                        `json:"out_of_range"`
	GeneratedAt          time.Time                                  `json:"generated_at"`
}

// Property returns a property's summary by code
func (s *Summary) Property(code string) *PropertySummary {
	for _, ps := range s.Properties {
		if strings.EqualFold(ps.Property.Code, code) {
			return ps
		}
	}
	return nil
}

// Categories returns the categories that carry spend, in report column order
func (s *Summary) Categories() []models.ExpenseCategory {
	var out []models.ExpenseCategory
	for _, c := range models.AllCategories {
		if _, ok := s.CategoryTotals[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Aggregate builds the summary. Every property gets one entry per month in
// range, zero-filled. Invoices without a roster property are counted in
// Unassigned; invoices outside the range or without a month in OutOfRange.
// A nil months slice derives the range from the invoices.
func Aggregate(invoices []*models.Invoice, roster *portfolio.Roster, months []string) *Summary {
	if months == nil {
		months = MonthsFromInvoices(invoices)
	}

	summary := &Summary{
		Portfolio:        roster.Name,
		Months:           months,
		PortfolioMonthly: make(map[string]decimal.Decimal, len(months)),
		CategoryTotals:   make(map[models.ExpenseCategory]decimal.Decimal),
		CategoryShare:    make(map[models.ExpenseCategory]decimal.Decimal),
		TotalUnits:       roster.TotalUnits(),
		GeneratedAt:      time.Now(),
	}

	inRange := make(map[string]bool, len(months))
	for _, m := range months {
		inRange[m] = true
		summary.PortfolioMonthly[m] = decimal.Zero
	}

	byCode := make(map[string]*PropertySummary, len(roster.Properties))
	vendors := make(map[string]map[string]bool)
	for _, p := range roster.Properties {
		ps := &PropertySummary{
			Property:       p,
			Months:         make([]*PropertyMonth, len(months)),
			CategoryTotals: make(map[models.ExpenseCategory]decimal.Decimal),
		}
		for i, m := range months {
			ps.Months[i] = &PropertyMonth{
				PropertyCode: p.Code,
				Month:        m,
				ByCategory:   make(map[models.ExpenseCategory]decimal.Decimal),
			}
		}
		byCode[strings.ToUpper(p.Code)] = ps
		vendors[p.Code] = make(map[string]bool)
		summary.Properties = append(summary.Properties, ps)
	}

	for _, inv := range invoices {
		ps, ok := byCode[strings.ToUpper(inv.PropertyCode)]
		if !ok || inv.PropertyCode == "" {
			summary.Unassigned++
			summary.UnassignedTotal = summary.UnassignedTotal.Add(inv.Total)
			continue
		}
		month := inv.Month()
		if !inRange[month] {
			summary.OutOfRange++
			continue
		}

		pm := ps.Month(month)
		pm.Total = pm.Total.Add(inv.Total)
		pm.InvoiceCount++
		for cat, amount := range inv.CategoryTotals() {
			pm.ByCategory[cat] = pm.ByCategory[cat].Add(amount)
			ps.CategoryTotals[cat] = ps.CategoryTotals[cat].Add(amount)
			summary.CategoryTotals[cat] = summary.CategoryTotals[cat].Add(amount)
		}
		ps.Total = ps.Total.Add(inv.Total)
		ps.InvoiceCount++
		if inv.Vendor != "" {
			vendors[ps.Property.Code][inv.Vendor] = true
		}

		summary.PortfolioMonthly[month] = summary.PortfolioMonthly[month].Add(inv.Total)
		summary.PortfolioTotal = summary.PortfolioTotal.Add(inv.Total)
		summary.InvoiceCount++
	}

	for _, ps := range summary.Properties {
		finishProperty(ps, vendors[ps.Property.Code], summary.PortfolioTotal)
	}

	monthsWithData := 0
	for _, m := range months {
		if !summary.PortfolioMonthly[m].IsZero() {
			monthsWithData++
		}
	}
	if monthsWithData > 0 {
		summary.MonthlyAverage = summary.PortfolioTotal.Div(decimal.NewFromInt(int64(monthsWithData))).Round(2)
	}
	summary.PortfolioCostPerDoor = perDoor(summary.MonthlyAverage, summary.TotalUnits)

	for cat, amount := range summary.CategoryTotals {
		summary.CategoryShare[cat] = models.Percent(amount, summary.PortfolioTotal)
	}

	return summary
}

func finishProperty(ps *PropertySummary, vendors map[string]bool, portfolioTotal decimal.Decimal) {
	units := ps.Property.Units
	var withData []*PropertyMonth
	for _, pm := range ps.Months {
		pm.CostPerDoor = perDoor(pm.Total, units)
		if pm.HasData() {
			withData = append(withData, pm)
		}
	}

	ps.MonthsWithData = len(withData)
	if len(withData) > 0 {
		ps.MonthlyAverage = ps.Total.Div(decimal.NewFromInt(int64(len(withData)))).Round(2)
	}
	ps.CostPerDoorAverage = perDoor(ps.MonthlyAverage, units)
	ps.ShareOfPortfolio = models.Percent(ps.Total, portfolioTotal)

	if n := len(withData); n >= 2 {
		prev, last := withData[n-2].Total, withData[n-1].Total
		if !prev.IsZero() {
			ps.MonthOverMonthChange = models.Percent(last.Sub(prev), prev)
			ps.HasMonthOverMonth = true
		}
	}

	for v := range vendors {
		ps.Vendors = append(ps.Vendors, v)
	}
	sort.Strings(ps.Vendors)
}

func perDoor(amount decimal.Decimal, units int) decimal.Decimal {
	if units <= 0 {
		return decimal.Zero
	}
	return amount.Div(decimal.NewFromInt(int64(units))).Round(2)
}

// MonthsFromInvoices returns the inclusive month range spanned by the invoices
func MonthsFromInvoices(invoices []*models.Invoice) []string {
	var first, last string
	for _, inv := range invoices {
		m := inv.Month()
		if m == "" {
			continue
		}
		if first == "" || m < first {
			first = m
		}
		if last == "" || m > last {
			last = m
		}
	}
	if first == "" {
		return []string{}
	}
	months, err := models.MonthRange(first, last)
	if err != nil {
		return []string{}
	}
	return months
}

// Deduplicate keeps the first invoice for each vendor and invoice number and
// returns the rest as dropped
func Deduplicate(invoices []*models.Invoice) (kept, dropped []*models.Invoice) {
	seen := make(map[string]bool, len(invoices))
	for _, inv := range invoices {
		key := inv.Key()
		if seen[key] {
			dropped = append(dropped, inv)
			continue
		}
		seen[key] = true
		kept = append(kept, inv)
	}
	return kept, dropped
}
