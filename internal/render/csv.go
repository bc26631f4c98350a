package render

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"orion-waste-reports/internal/models"
	"orion-waste-reports/pkg/errors"
)

// csvRenderer writes one row per property and month for spreadsheet import.
// Amounts are plain decimals so Google Sheets parses them as numbers.
type csvRenderer struct{}

func (r *csvRenderer) Format() Format { return FormatCSV }

func (r *csvRenderer) Render(data *ReportData, w io.Writer) error {
	csvWriter := csv.NewWriter(w)

	categories := models.AllCategories
	headers := []string{"Property Code", "Property", "Units", "Month", "Total", "Cost Per Door", "Invoices"}
	for _, c := range categories {
		headers = append(headers, c.Label())
	}
	if err := csvWriter.Write(headers); err != nil {
		return errors.RenderError(errors.CodeWriteFailed, "csv", "", fmt.Errorf("failed to write CSV headers: %w", err))
	}

	for _, ps := range data.Summary.Properties {
		for _, pm := range ps.Months {
			record := []string{
				ps.Property.Code,
				ps.Property.Name,
				strconv.Itoa(ps.Property.Units),
				pm.Month,
				pm.Total.StringFixed(2),
				pm.CostPerDoor.StringFixed(2),
				strconv.Itoa(pm.InvoiceCount),
			}
			for _, c := range categories {
				record = append(record, pm.ByCategory[c].StringFixed(2))
			}
			if err := csvWriter.Write(record); err != nil {
				return errors.RenderError(errors.CodeWriteFailed, "csv", "",
					fmt.Errorf("failed to write record for %s %s: %w", ps.Property.Code, pm.Month, err))
			}
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return errors.RenderError(errors.CodeWriteFailed, "csv", "", err)
	}
	return nil
}
