package extract

import (
	"fmt"
	"strings"
)

// Standard sheet column names
const (
	ColumnPropertyCode  = "property_code"
	ColumnProperty      = "property"
	ColumnVendor        = "vendor"
	ColumnInvoiceNumber = "invoice_number"
	ColumnAccount       = "account"
	ColumnInvoiceDate   = "invoice_date"
	ColumnMonth         = "month"
	ColumnTotal         = "total"
	ColumnCategory      = "category"
	ColumnDescription   = "description"
	ColumnAddress       = "address"
)

// standardColumns is the order headers are matched in
var standardColumns = []string{
	ColumnPropertyCode, ColumnProperty, ColumnVendor, ColumnInvoiceNumber, ColumnAccount,
	ColumnInvoiceDate, ColumnMonth, ColumnTotal, ColumnCategory, ColumnDescription, ColumnAddress,
}

// requiredColumns must be present for a sheet to be read as invoice data
var requiredColumns = []string{ColumnVendor, ColumnTotal}

// Config holds configuration for invoice extraction
type Config struct {
	MaxConcurrentFiles int                 `json:"max_concurrent_files" mapstructure:"max_concurrent_files"`
	MinConfidence      float64             `json:"min_confidence" mapstructure:"min_confidence"`
	HeaderSearchRows   int                 `json:"header_search_rows" mapstructure:"header_search_rows"`
	ColumnAliases      map[string][]string `json:"column_aliases,omitempty" mapstructure:"column_aliases"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentFiles: 4,
		MinConfidence:      0.67,
		HeaderSearchRows:   10,
		ColumnAliases:      DefaultColumnAliases(),
	}
}

// DefaultColumnAliases returns the header spellings seen in property
// management exports, keyed by standard column name.
func DefaultColumnAliases() map[string][]string {
	return map[string][]string{
		ColumnPropertyCode:  {"property code", "code", "site code", "prop code"},
		ColumnProperty:      {"property", "property name", "site", "community"},
		ColumnVendor:        {"vendor", "hauler", "vendor name", "provider"},
		ColumnInvoiceNumber: {"invoice", "invoice #", "invoice number", "invoice no", "inv #"},
		ColumnAccount:       {"account", "account #", "account number", "acct"},
		ColumnInvoiceDate:   {"date", "invoice date", "bill date"},
		ColumnMonth:         {"service month", "month", "billing month", "period"},
		ColumnTotal:         {"amount", "total", "invoice total", "charge", "cost"},
		ColumnCategory:      {"category", "charge type", "expense type", "gl category"},
		ColumnDescription:   {"description", "memo", "line item", "notes"},
		ColumnAddress:       {"address", "service address"},
	}
}

// Validate checks if the extraction configuration is valid
func (c *Config) Validate() error {
	if c.MaxConcurrentFiles <= 0 {
		return fmt.Errorf("max concurrent files must be positive, got %d", c.MaxConcurrentFiles)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be between 0 and 1, got %.2f", c.MinConfidence)
	}
	if c.HeaderSearchRows <= 0 {
		return fmt.Errorf("header search rows must be positive, got %d", c.HeaderSearchRows)
	}
	for _, col := range requiredColumns {
		if len(c.ColumnAliases[col]) == 0 {
			return fmt.Errorf("no aliases configured for required column %s", col)
		}
	}

	known := make(map[string]bool, len(standardColumns))
	for _, col := range standardColumns {
		known[col] = true
	}
	for col := range c.ColumnAliases {
		if !known[col] {
			return fmt.Errorf("unknown column %s in column aliases", col)
		}
	}

	// a header may only ever map to one column
	owner := make(map[string]string)
	for _, col := range standardColumns {
		for _, name := range c.headerNames(col) {
			if other, ok := owner[name]; ok && other != col {
				return fmt.Errorf("header %q is configured for both %s and %s", name, other, col)
			}
			owner[name] = col
		}
	}
	return nil
}

// headerNames lists the normalized headers that map to col
func (c *Config) headerNames(col string) []string {
	names := []string{col, strings.ReplaceAll(col, "_", " ")}
	for _, a := range c.ColumnAliases[col] {
		if n := normalizeHeader(a); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// columnFor returns the standard column name for a sheet header, or "".
// Headers are compared case-insensitively with surrounding punctuation removed.
func (c *Config) columnFor(header string) string {
	h := normalizeHeader(header)
	if h == "" {
		return ""
	}
	for _, col := range standardColumns {
		for _, name := range c.headerNames(col) {
			if h == name {
				return col
			}
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Trim(h, ":*")
	return strings.Join(strings.Fields(h), " ")
}
