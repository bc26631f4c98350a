package extract

import (
	"regexp"
	"strings"
	"time"

	"orion-waste-reports/internal/models"

	"github.com/shopspring/decimal"
)

// fallbackDateLayouts are tried after a profile's own layouts
var fallbackDateLayouts = []string{
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
	"January 2, 2006",
	"January 2 2006",
	"2006-01-02",
}

// requiredFieldCount is the number of fields confidence is measured against:
// invoice number, invoice date and total.
const requiredFieldCount = 3

// vendorBonus is added to confidence when a known hauler layout was recognised
const vendorBonus = 0.1

// skipLineWords marks summary lines the line item pattern must not pick up
var skipLineWords = []string{
	"total", "subtotal", "balance", "amount due", "previous", "payment", "please pay",
	"current charges", "invoice", "account", "due date", "page ",
}

// ExtractFields applies a vendor profile to invoice text. Fields whose
// pattern does not match are left empty. Source and ID are left for the caller.
func ExtractFields(text string, profile *VendorProfile) *models.Invoice {
	if profile == nil {
		profile = genericProfile
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	inv := &models.Invoice{Vendor: profile.Name}
	if profile.IsGeneric() {
		inv.Vendor = ""
	}

	found := 0

	inv.InvoiceNumber = firstGroup(profile.pattern(func(p *VendorProfile) *regexp.Regexp { return p.InvoiceNumber }), text)
	if inv.InvoiceNumber != "" {
		found++
	}
	inv.AccountNumber = firstGroup(profile.pattern(func(p *VendorProfile) *regexp.Regexp { return p.AccountNumber }), text)
	inv.ServiceAddress = cleanLine(firstGroup(profile.pattern(func(p *VendorProfile) *regexp.Regexp { return p.ServiceAddress }), text))
	inv.PropertyName = cleanLine(firstGroup(profile.pattern(func(p *VendorProfile) *regexp.Regexp { return p.CustomerName }), text))

	if s := firstGroup(profile.pattern(func(p *VendorProfile) *regexp.Regexp { return p.InvoiceDate }), text); s != "" {
		if t, ok := ParseDate(s, profile.DateLayouts); ok {
			inv.InvoiceDate = t
			found++
		}
	}
	if s := firstGroup(profile.pattern(func(p *VendorProfile) *regexp.Regexp { return p.DueDate }), text); s != "" {
		if t, ok := ParseDate(s, profile.DateLayouts); ok {
			inv.DueDate = t
		}
	}
	if m := profile.pattern(func(p *VendorProfile) *regexp.Regexp { return p.ServicePeriod }).FindStringSubmatch(text); len(m) == 3 {
		start, okStart := ParseDate(m[1], profile.DateLayouts)
		end, okEnd := ParseDate(m[2], profile.DateLayouts)
		if okStart && okEnd && !end.Before(start) {
			inv.ServicePeriodStart = start
			inv.ServicePeriodEnd = end
		}
	}

	inv.LineItems = extractLineItems(profile.pattern(func(p *VendorProfile) *regexp.Regexp { return p.LineItem }), text)

	hasTotal := false
	if s := firstGroup(profile.pattern(func(p *VendorProfile) *regexp.Regexp { return p.Total }), text); s != "" {
		if total, err := models.ParseAmount(s); err == nil {
			inv.Total = total
			hasTotal = true
		}
	}
	if inv.Total.IsZero() && len(inv.LineItems) > 0 {
		inv.Total = inv.LineItemTotal()
		hasTotal = true
	}
	// the total counts once whether printed or summed from line items
	if hasTotal {
		found++
	}

	inv.Confidence = float64(found) / requiredFieldCount
	if !profile.IsGeneric() {
		inv.Confidence += vendorBonus
	}
	if inv.Confidence > 1 {
		inv.Confidence = 1
	}

	return inv
}

func extractLineItems(re *regexp.Regexp, text string) []models.LineItem {
	var items []models.LineItem
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		desc := strings.TrimSpace(m[1])
		if isSummaryLine(desc) {
			continue
		}
		amount, err := models.ParseAmount(m[3])
		if err != nil {
			continue
		}
		item := models.NewLineItem(desc, amount)
		if m[2] != "" {
			if qty, err := decimal.NewFromString(m[2]); err == nil && qty.IsPositive() {
				item.Quantity = qty
			}
		}
		items = append(items, item)
	}
	return items
}

func isSummaryLine(desc string) bool {
	lower := strings.ToLower(desc)
	for _, w := range skipLineWords {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

// ParseDate parses s with the given layouts and then the common fallbacks
func ParseDate(s string, layouts []string) (time.Time, bool) {
	s = strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
	if s == "" {
		return time.Time{}, false
	}
	for _, group := range [][]string{layouts, fallbackDateLayouts} {
		for _, layout := range group {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func firstGroup(re *regexp.Regexp, text string) string {
	if re == nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ",;")
	return strings.Join(strings.Fields(s), " ")
}
