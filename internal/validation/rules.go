package validation

import (
	"strings"

	"orion-waste-reports/internal/models"

	"github.com/shopspring/decimal"
)

func checkRequiredFields(c *check) {
	for _, inv := range c.invoices {
		var missing []string
		if strings.TrimSpace(inv.Vendor) == "" {
			missing = append(missing, "vendor")
		}
		// spreadsheet rows are identified by their row, documents need a number
		if inv.InvoiceNumber == "" && (inv.Source == models.SourcePDF || inv.Source == models.SourceText) {
			missing = append(missing, "invoice number")
		}
		if !inv.HasDate() {
			missing = append(missing, "date")
		}
		if inv.Total.IsZero() {
			missing = append(missing, "total")
		}
		if len(missing) > 0 {
			c.add(invoiceIssue(SeverityError, RuleRequiredFields, inv, inv.Total,
				"%s is missing %s", describe(inv), strings.Join(missing, ", ")))
		}
	}
}

func checkUnassigned(c *check) {
	for _, inv := range c.invoices {
		if inv.PropertyCode != "" {
			if _, ok := c.roster.Lookup(inv.PropertyCode); ok {
				continue
			}
		}
		hint := inv.PropertyName
		if hint == "" {
			hint = inv.ServiceAddress
		}
		c.add(invoiceIssue(SeverityError, RuleUnassignedProperty, inv, inv.Total,
			"%s could not be assigned to a property (site %q)", describe(inv), hint))
	}
}

func checkDuplicates(c *check) {
	first := make(map[string]*models.Invoice)
	for _, inv := range c.invoices {
		key := inv.Key()
		if prev, seen := first[key]; seen {
			c.add(invoiceIssue(SeverityError, RuleDuplicateInvoice, inv, inv.Total,
				"%s duplicates the invoice in %s", describe(inv), prev.SourceFile))
			continue
		}
		first[key] = inv
	}
}

func checkLineItems(c *check) {
	tolerance := c.config.tolerance()
	for _, inv := range c.invoices {
		if len(inv.LineItems) == 0 {
			continue
		}
		sum := inv.LineItemTotal()
		if !models.CompareAmountsWithTolerance(sum, inv.Total, tolerance) {
			c.add(invoiceIssue(SeverityWarning, RuleLineItemMismatch, inv, inv.Total.Sub(sum),
				"%s line items sum to %s but the total is %s", describe(inv), sum.StringFixed(2), inv.Total.StringFixed(2)))
		}
	}
}

func checkNegativeTotals(c *check) {
	for _, inv := range c.invoices {
		if inv.Total.IsNegative() {
			c.add(invoiceIssue(SeverityInfo, RuleNegativeTotal, inv, inv.Total,
				"%s is a credit of %s", describe(inv), inv.Total.Abs().StringFixed(2)))
		}
	}
}

func checkConfidence(c *check) {
	for _, inv := range c.invoices {
		if inv.Confidence < c.config.MinConfidence {
			c.add(invoiceIssue(SeverityWarning, RuleLowConfidence, inv, inv.Total,
				"%s was extracted with confidence %.2f, check it against the document", describe(inv), inv.Confidence))
		}
	}
}

func checkMissingMonths(c *check) {
	for _, ps := range c.summary.Properties {
		for _, pm := range ps.Months {
			if pm.HasData() {
				continue
			}
			c.add(&Issue{
				Severity:     SeverityWarning,
				Rule:         RuleMissingMonth,
				PropertyCode: ps.Property.Code,
				Month:        pm.Month,
				Message:      "no invoice for " + ps.Property.Name + " in " + models.MonthLabel(pm.Month),
			})
		}
	}
}

func checkOutliers(c *check) {
	limit := decimal.NewFromFloat(c.config.OutlierPercent)
	for _, ps := range c.summary.Properties {
		if ps.MonthsWithData < c.config.OutlierMinMonths || ps.MonthlyAverage.IsZero() {
			continue
		}
		for _, pm := range ps.Months {
			if !pm.HasData() {
				continue
			}
			deviation := models.Percent(pm.Total.Sub(ps.MonthlyAverage).Abs(), ps.MonthlyAverage.Abs())
			if deviation.GreaterThan(limit) {
				c.add(&Issue{
					Severity:     SeverityWarning,
					Rule:         RuleMonthlyOutlier,
					PropertyCode: ps.Property.Code,
					Month:        pm.Month,
					Message: ps.Property.Name + " spent " + pm.Total.StringFixed(2) + " in " + models.MonthLabel(pm.Month) +
						", " + deviation.StringFixed(1) + "% away from its monthly average of " + ps.MonthlyAverage.StringFixed(2),
					Amount: pm.Total,
				})
			}
		}
	}
}

func checkCostPerDoor(c *check) {
	limit := decimal.NewFromFloat(c.config.MaxCostPerDoor)
	for _, ps := range c.summary.Properties {
		for _, pm := range ps.Months {
			if pm.CostPerDoor.GreaterThan(limit) {
				c.add(&Issue{
					Severity:     SeverityWarning,
					Rule:         RuleCostPerDoor,
					PropertyCode: ps.Property.Code,
					Month:        pm.Month,
					Message: ps.Property.Name + " cost " + pm.CostPerDoor.StringFixed(2) + " per door in " +
						models.MonthLabel(pm.Month) + ", above the " + limit.StringFixed(2) + " limit",
					Amount: pm.Total,
				})
			}
		}
	}
}

func checkContamination(c *check) {
	for _, inv := range c.invoices {
		totals := inv.CategoryTotals()
		charged := totals[models.CategoryContamination].Add(totals[models.CategoryOverage])
		if charged.IsPositive() {
			c.add(invoiceIssue(SeverityInfo, RuleContaminationCharges, inv, charged,
				"%s includes %s of contamination or overage charges", describe(inv), charged.StringFixed(2)))
		}
	}
}

func describe(inv *models.Invoice) string {
	vendor := inv.Vendor
	if vendor == "" {
		vendor = "unknown vendor"
	}
	number := inv.InvoiceNumber
	if number == "" {
		number = inv.ID
	}
	return "invoice " + number + " (" + vendor + ")"
}
