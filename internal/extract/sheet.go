package extract

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"orion-waste-reports/internal/models"
	"orion-waste-reports/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"
)

// Excel stores dates as days since 1899-12-30; serials in this window are
// treated as dates when they appear in date or month columns.
const (
	minExcelDateSerial = 20000 // 1954
	maxExcelDateSerial = 80000 // 2119
)

// table is a grid of cell text read from one sheet
type table struct {
	name string
	rows [][]string
}

// sheetResult is what a spreadsheet source yields
type sheetResult struct {
	invoices    []*models.Invoice
	rowsSkipped int
	warnings    []string
}

// readXLSXTables reads every sheet of a workbook as text
func readXLSXTables(ctx context.Context, path string) ([]table, error) {
	file, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	if len(file.Sheets) == 0 {
		return nil, errors.ExtractionError(errors.CodeNoInvoices, path, "", fmt.Errorf("workbook has no sheets"))
	}

	tables := make([]table, 0, len(file.Sheets))
	for _, sheet := range file.Sheets {
		if err := ctx.Err(); err != nil {
			return nil, errors.InternalError(errors.CodeCancelled, "xlsx extraction", err)
		}
		t := table{name: sheet.Name}
		err := sheet.ForEachRow(func(r *xlsx.Row) error {
			t.rows = append(t.rows, positionalRow(r, sheet.MaxCol))
			return nil
		})
		if err != nil {
			return nil, errors.ExtractionError(errors.CodeInvalidData, path, "sheet "+sheet.Name, err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

// positionalRow returns cell text by column index, keeping blank cells
func positionalRow(r *xlsx.Row, width int) []string {
	row := make([]string, width)
	for i := 0; i < width; i++ {
		if c := r.GetCell(i); c != nil {
			row[i] = cellText(c)
		}
	}
	return row
}

// cellText renders a cell the way a person reads it; dates come out as ISO
func cellText(c *xlsx.Cell) string {
	if c.IsTime() {
		if t, err := c.GetTime(false); err == nil {
			return t.Format(models.DateLayout)
		}
	}
	if s, err := c.FormattedValue(); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(c.String())
}

// readCSVTable reads a CSV export as a single table
func readCSVTable(ctx context.Context, path string) ([]table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	t := table{name: filepath.Base(path)}
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.InternalError(errors.CodeCancelled, "csv extraction", err)
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ExtractionError(errors.CodeInvalidData, path, fmt.Sprintf("line %d", line), err)
		}
		for i := range record {
			record[i] = strings.TrimSpace(strings.TrimPrefix(record[i], "\ufeff"))
		}
		t.rows = append(t.rows, record)
	}
	return []table{t}, nil
}

// invoicesFromTables reshapes sheet rows into invoices. Rows sharing a vendor
// and invoice number become line items of one invoice; rows without an
// invoice number are grouped by vendor, property, account and month.
func invoicesFromTables(path string, source models.InvoiceSource, tables []table, cfg *Config, vendors *VendorRegistry) (*sheetResult, error) {
	result := &sheetResult{}
	base := filepath.Base(path)
	usable := 0

	for _, t := range tables {
		headerRow, columns := findHeader(t.rows, cfg)
		if headerRow < 0 {
			continue
		}
		usable++

		groups := make(map[string]*models.Invoice)
		var order []string

		for i := headerRow + 1; i < len(t.rows); i++ {
			row := t.rows[i]
			if isBlankRow(row) {
				continue
			}
			get := func(col string) string {
				idx, ok := columns[col]
				if !ok || idx >= len(row) {
					return ""
				}
				return strings.TrimSpace(row[idx])
			}
			location := fmt.Sprintf("%s row %d", t.name, i+1)

			rawTotal := get(ColumnTotal)
			if rawTotal == "" || isTotalsRow(get(ColumnProperty), get(ColumnVendor)) {
				result.rowsSkipped++
				continue
			}
			amount, err := models.ParseAmount(rawTotal)
			if err != nil {
				result.rowsSkipped++
				result.warnings = append(result.warnings, fmt.Sprintf("%s: invalid amount %q", location, rawTotal))
				continue
			}

			vendor := vendors.CanonicalVendor(get(ColumnVendor))
			number := get(ColumnInvoiceNumber)
			invoiceDate, _ := parseDateCell(get(ColumnInvoiceDate))
			month := parseMonthCell(get(ColumnMonth))
			if month == "" && !invoiceDate.IsZero() {
				month = invoiceDate.Format(models.MonthLayout)
			}

			key := strings.ToLower(vendor) + "|" + models.NormalizeIdentifier(number)
			if number == "" {
				key = strings.Join([]string{
					strings.ToLower(vendor),
					strings.ToLower(get(ColumnPropertyCode)),
					strings.ToLower(get(ColumnProperty)),
					models.NormalizeIdentifier(get(ColumnAccount)),
					month,
				}, "|")
			}

			inv, exists := groups[key]
			if !exists {
				inv = &models.Invoice{
					ID:             fmt.Sprintf("%s#%s:%d", base, t.name, i+1),
					Vendor:         vendor,
					InvoiceNumber:  number,
					AccountNumber:  get(ColumnAccount),
					InvoiceDate:    invoiceDate,
					BillingMonth:   month,
					PropertyCode:   get(ColumnPropertyCode),
					PropertyName:   get(ColumnProperty),
					ServiceAddress: get(ColumnAddress),
					Source:         source,
					SourceFile:     path,
					Confidence:     1,
				}
				groups[key] = inv
				order = append(order, key)
			}

			inv.LineItems = append(inv.LineItems, sheetLineItem(get(ColumnDescription), get(ColumnCategory), amount))
		}

		for _, key := range order {
			inv := groups[key]
			inv.Total = inv.LineItemTotal()
			result.invoices = append(result.invoices, inv)
		}
	}

	if usable == 0 {
		return nil, errors.ExtractionError(errors.CodeMissingColumn, path, strings.Join(requiredColumns, ", "), nil)
	}
	return result, nil
}

// findHeader locates the header row within the first rows of a table and
// maps standard column names to indexes. Returns -1 if no row has the
// required columns.
func findHeader(rows [][]string, cfg *Config) (int, map[string]int) {
	limit := cfg.HeaderSearchRows
	if limit > len(rows) {
		limit = len(rows)
	}
	for r := 0; r < limit; r++ {
		columns := make(map[string]int)
		for i, cell := range rows[r] {
			if col := cfg.columnFor(cell); col != "" {
				if _, dup := columns[col]; !dup {
					columns[col] = i
				}
			}
		}
		complete := true
		for _, req := range requiredColumns {
			if _, ok := columns[req]; !ok {
				complete = false
				break
			}
		}
		if complete {
			return r, columns
		}
	}
	return -1, nil
}

func sheetLineItem(description, category string, amount decimal.Decimal) models.LineItem {
	if description == "" {
		description = category
	}
	if description == "" {
		description = "Invoice total"
	}
	item := models.NewLineItem(description, amount)
	if c, err := models.ParseCategory(category); err == nil {
		item.Category = c
	} else if category != "" {
		item.Category = models.CategorizeDescription(category, amount)
	}
	return item
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func isTotalsRow(property, vendor string) bool {
	p := strings.ToLower(property)
	v := strings.ToLower(vendor)
	return strings.HasPrefix(p, "total") || strings.HasPrefix(v, "total") || strings.HasPrefix(p, "grand total")
}

// parseDateCell parses a date cell, accepting Excel serial numbers
func parseDateCell(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial >= minExcelDateSerial && serial <= maxExcelDateSerial {
			return xlsx.TimeFromExcelTime(serial, false), true
		}
		return time.Time{}, false
	}
	if t, ok := ParseDate(s, nil); ok {
		return t, true
	}
	// datetime exports such as "2024-03-01 00:00:00"
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

var monthCellLayouts = []string{
	models.MonthLayout,
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"Jan-06",
	"01/2006",
	"1/2006",
}

// parseMonthCell turns "2024-03", "Mar 2024", "03/2024", a full date or an
// Excel serial into YYYY-MM.
func parseMonthCell(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range monthCellLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(models.MonthLayout)
		}
	}
	if t, ok := parseDateCell(s); ok {
		return t.Format(models.MonthLayout)
	}
	return ""
}
