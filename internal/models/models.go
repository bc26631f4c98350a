package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout used for every date the toolkit writes out
const DateLayout = "2006-01-02"

// Property is one site of the portfolio roster
type Property struct {
	Code           string   `json:"code" yaml:"code"`
	Name           string   `json:"name" yaml:"name"`
	Units          int      `json:"units" yaml:"units"`
	Address        string   `json:"address,omitempty" yaml:"address"`
	City           string   `json:"city,omitempty" yaml:"city"`
	State          string   `json:"state,omitempty" yaml:"state"`
	Aliases        []string `json:"aliases,omitempty" yaml:"aliases"`
	AccountNumbers []string `json:"account_numbers,omitempty" yaml:"account_numbers"`
}

// Validate performs basic validation on the Property
func (p *Property) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return fmt.Errorf("property code cannot be empty")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("property %s: name cannot be empty", p.Code)
	}
	if p.Units <= 0 {
		return fmt.Errorf("property %s: units must be positive, got %d", p.Code, p.Units)
	}
	return nil
}

// String returns a string representation of the Property
func (p *Property) String() string {
	return fmt.Sprintf("Property{Code: %s, Name: %s, Units: %d}", p.Code, p.Name, p.Units)
}

// InvoiceSource identifies where an invoice was read from
type InvoiceSource string

const (
	SourcePDF   InvoiceSource = "pdf"
	SourceText  InvoiceSource = "text"
	SourceExcel InvoiceSource = "excel"
	SourceCSV   InvoiceSource = "csv"
)

// LineItem is a single charge on an invoice
type LineItem struct {
	Description string          `json:"description"`
	Category    ExpenseCategory `json:"category"`
	Quantity    decimal.Decimal `json:"quantity"`
	Amount      decimal.Decimal `json:"amount"`
}

// NewLineItem creates a line item and categorizes it from its description
func NewLineItem(description string, amount decimal.Decimal) LineItem {
	return LineItem{
		Description: strings.TrimSpace(description),
		Category:    CategorizeDescription(description, amount),
		Quantity:    decimal.NewFromInt(1),
		Amount:      amount,
	}
}

// MarshalJSON renders amounts as strings
func (li LineItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Description string          `json:"description"`
		Category    ExpenseCategory `json:"category"`
		Quantity    string          `json:"quantity"`
		Amount      string          `json:"amount"`
	}{
		Description: li.Description,
		Category:    li.Category,
		Quantity:    li.Quantity.String(),
		Amount:      li.Amount.StringFixed(2),
	})
}

// Invoice is a waste-management invoice after extraction
type Invoice struct {
	ID                 string          `json:"id"`
	Vendor             string          `json:"vendor"`
	AccountNumber      string          `json:"account_number,omitempty"`
	InvoiceNumber      string          `json:"invoice_number,omitempty"`
	InvoiceDate        time.Time       `json:"-"`
	DueDate            time.Time       `json:"-"`
	ServicePeriodStart time.Time       `json:"-"`
	ServicePeriodEnd   time.Time       `json:"-"`
	BillingMonth       string          `json:"-"`
	PropertyCode       string          `json:"property_code,omitempty"`
	PropertyName       string          `json:"property_name,omitempty"`
	ServiceAddress     string          `json:"service_address,omitempty"`
	LineItems          []LineItem      `json:"line_items,omitempty"`
	Total              decimal.Decimal `json:"-"`
	Source             InvoiceSource   `json:"source"`
	SourceFile         string          `json:"source_file"`
	Confidence         float64         `json:"confidence"`
}

// Month returns the billing month as YYYY-MM. The service period start wins
// over the invoice date because haulers bill in arrears.
func (inv *Invoice) Month() string {
	if inv.BillingMonth != "" {
		return inv.BillingMonth
	}
	if !inv.ServicePeriodStart.IsZero() {
		return inv.ServicePeriodStart.Format(MonthLayout)
	}
	if !inv.InvoiceDate.IsZero() {
		return inv.InvoiceDate.Format(MonthLayout)
	}
	return ""
}

// LineItemTotal sums all line item amounts
func (inv *Invoice) LineItemTotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range inv.LineItems {
		total = total.Add(li.Amount)
	}
	return total
}

// CategoryTotals sums line items per category. An invoice without line items
// counts its whole total as base service.
func (inv *Invoice) CategoryTotals() map[ExpenseCategory]decimal.Decimal {
	totals := make(map[ExpenseCategory]decimal.Decimal)
	if len(inv.LineItems) == 0 {
		if !inv.Total.IsZero() {
			totals[CategoryBaseService] = inv.Total
		}
		return totals
	}
	for _, li := range inv.LineItems {
		totals[li.Category] = totals[li.Category].Add(li.Amount)
	}
	return totals
}

// Key identifies an invoice across files for duplicate detection
func (inv *Invoice) Key() string {
	number := NormalizeIdentifier(inv.InvoiceNumber)
	if number == "" {
		number = inv.ID
	}
	return strings.ToLower(strings.TrimSpace(inv.Vendor)) + "|" + number
}

// HasDate reports whether a billing month can be derived
func (inv *Invoice) HasDate() bool {
	return inv.Month() != ""
}

// Validate performs basic structural validation on the Invoice
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.Vendor) == "" {
		return fmt.Errorf("invoice vendor cannot be empty")
	}
	if strings.TrimSpace(inv.InvoiceNumber) == "" && strings.TrimSpace(inv.ID) == "" {
		return fmt.Errorf("invoice number cannot be empty")
	}
	if !inv.HasDate() {
		return fmt.Errorf("invoice %s has no date or service period", inv.InvoiceNumber)
	}
	if inv.Total.IsZero() {
		return fmt.Errorf("invoice %s total cannot be zero", inv.InvoiceNumber)
	}
	return nil
}

// String returns a string representation of the Invoice
func (inv *Invoice) String() string {
	return fmt.Sprintf("Invoice{Vendor: %s, Number: %s, Month: %s, Total: %s, Property: %s}",
		inv.Vendor, inv.InvoiceNumber, inv.Month(), inv.Total.StringFixed(2), inv.PropertyCode)
}

type invoiceJSON struct {
	InvoiceDate        string `json:"invoice_date,omitempty"`
	DueDate            string `json:"due_date,omitempty"`
	ServicePeriodStart string `json:"service_period_start,omitempty"`
	ServicePeriodEnd   string `json:"service_period_end,omitempty"`
	Month              string `json:"month,omitempty"`
	Total              string `json:"total"`
}

// MarshalJSON implements custom JSON marshaling for Invoice
func (inv *Invoice) MarshalJSON() ([]byte, error) {
	type Alias Invoice
	return json.Marshal(&struct {
		invoiceJSON
		*Alias
	}{
		invoiceJSON: invoiceJSON{
			InvoiceDate:        formatDate(inv.InvoiceDate),
			DueDate:            formatDate(inv.DueDate),
			ServicePeriodStart: formatDate(inv.ServicePeriodStart),
			ServicePeriodEnd:   formatDate(inv.ServicePeriodEnd),
			Month:              inv.Month(),
			Total:              inv.Total.StringFixed(2),
		},
		Alias: (*Alias)(inv),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Invoice
func (inv *Invoice) UnmarshalJSON(data []byte) error {
	type Alias Invoice
	aux := &struct {
		invoiceJSON
		LineItems []struct {
			Description string          `json:"description"`
			Category    ExpenseCategory `json:"category"`
			Quantity    string          `json:"quantity"`
			Amount      string          `json:"amount"`
		} `json:"line_items"`
		*Alias
	}{
		Alias: (*Alias)(inv),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	inv.Total = decimal.Zero
	if aux.invoiceJSON.Total != "" {
		if inv.Total, err = ParseAmount(aux.invoiceJSON.Total); err != nil {
			return fmt.Errorf("invalid total: %w", err)
		}
	}

	dates := []struct {
		value string
		dst   *time.Time
	}{
		{aux.invoiceJSON.InvoiceDate, &inv.InvoiceDate},
		{aux.invoiceJSON.DueDate, &inv.DueDate},
		{aux.invoiceJSON.ServicePeriodStart, &inv.ServicePeriodStart},
		{aux.invoiceJSON.ServicePeriodEnd, &inv.ServicePeriodEnd},
	}
	for _, d := range dates {
		if d.value == "" {
			continue
		}
		if *d.dst, err = time.Parse(DateLayout, d.value); err != nil {
			return fmt.Errorf("invalid date %q: %w", d.value, err)
		}
	}
	if aux.invoiceJSON.Month != "" && inv.ServicePeriodStart.IsZero() && inv.InvoiceDate.IsZero() {
		inv.BillingMonth = aux.invoiceJSON.Month
	}

	inv.LineItems = make([]LineItem, 0, len(aux.LineItems))
	for _, li := range aux.LineItems {
		amount, err := ParseAmount(li.Amount)
		if err != nil {
			return fmt.Errorf("invalid line item amount: %w", err)
		}
		qty := decimal.NewFromInt(1)
		if li.Quantity != "" {
			if qty, err = decimal.NewFromString(li.Quantity); err != nil {
				return fmt.Errorf("invalid line item quantity: %w", err)
			}
		}
		inv.LineItems = append(inv.LineItems, LineItem{
			Description: li.Description,
			Category:    li.Category,
			Quantity:    qty,
			Amount:      amount,
		})
	}

	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// ParseAmount parses invoice amounts such as "$1,234.50", "(45.00)" or "45.00 CR".
// Parentheses and a CR suffix both mean a credit.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	}
	upper := strings.ToUpper(s)
	if strings.HasSuffix(upper, "CR") {
		negative = true
		s = strings.TrimSpace(s[:len(s)-2])
	}

	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[1:])
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// CompareAmountsWithTolerance compares two decimal amounts with a tolerance
func CompareAmountsWithTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// NormalizeIdentifier trims, uppercases and strips separators from invoice
// and account numbers so "3-0412-7788" and "304127788" compare equal.
func NormalizeIdentifier(id string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(id)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Percent returns part/total*100 rounded to 2 places, or zero when total is zero
func Percent(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
}
