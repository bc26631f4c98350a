package render

import (
	"fmt"
	"io"
	"strings"

	"orion-waste-reports/internal/models"
	"orion-waste-reports/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"
)

// Sheet names in the workbook
const (
	SheetSummary    = "Summary"
	SheetMonthly    = "Monthly"
	SheetInvoices   = "Invoices"
	SheetValidation = "Validation"
)

type xlsxRenderer struct{}

func (r *xlsxRenderer) Format() Format { return FormatXLSX }

// workbook wraps a tealeg file with the shared cell styles
type workbook struct {
	file     *xlsx.File
	bold     *xlsx.Style
	currency string
}

func newWorkbook(currency string) *workbook {
	bold := xlsx.NewStyle()
	bold.Font.Bold = true
	bold.ApplyFont = true
	return &workbook{file: xlsx.NewFile(), bold: bold, currency: currency}
}

func (wb *workbook) sheet(name string) (*xlsx.Sheet, error) {
	sheet, err := wb.file.AddSheet(name)
	if err != nil {
		return nil, errors.RenderError(errors.CodeWriteFailed, "xlsx", "", fmt.Errorf("failed to add sheet %s: %w", name, err))
	}
	return sheet, nil
}

func (wb *workbook) header(sheet *xlsx.Sheet, titles ...string) {
	row := sheet.AddRow()
	for _, t := range titles {
		cell := row.AddCell()
		cell.SetString(t)
		cell.SetStyle(wb.bold)
	}
}

func (wb *workbook) money(row *xlsx.Row, d decimal.Decimal) *xlsx.Cell {
	cell := row.AddCell()
	f, _ := d.Float64()
	cell.SetFloatWithFormat(f, wb.currency)
	return cell
}

func text(row *xlsx.Row, s string) *xlsx.Cell {
	cell := row.AddCell()
	cell.SetString(s)
	return cell
}

func number(row *xlsx.Row, n int) *xlsx.Cell {
	cell := row.AddCell()
	cell.SetInt(n)
	return cell
}

func percent(row *xlsx.Row, d decimal.Decimal) *xlsx.Cell {
	cell := row.AddCell()
	f, _ := d.Div(decimal.NewFromInt(100)).Float64()
	cell.SetFloatWithFormat(f, "0.0%")
	return cell
}

func (r *xlsxRenderer) Render(data *ReportData, w io.Writer) error {
	cfg := data.config()
	wb := newWorkbook(cfg.CurrencyFormat)

	steps := []func(*workbook, *ReportData) error{writeSummarySheet, writeMonthlySheet}
	if cfg.IncludeInvoices {
		steps = append(steps, writeInvoicesSheet)
	}
	steps = append(steps, writeValidationSheet)
	for _, step := range steps {
		if err := step(wb, data); err != nil {
			return err
		}
	}

	if err := wb.file.Write(w); err != nil {
		return errors.RenderError(errors.CodeWriteFailed, "xlsx", "", err)
	}
	return nil
}

func writeSummarySheet(wb *workbook, data *ReportData) error {
	sheet, err := wb.sheet(SheetSummary)
	if err != nil {
		return err
	}
	s := data.Summary

	title := text(sheet.AddRow(), data.Title())
	title.SetStyle(wb.bold)
	text(sheet.AddRow(), "Period: "+data.Period())
	sheet.AddRow()

	wb.header(sheet, "Metric", "Value")
	kpis := []struct {
		label  string
		amount *decimal.Decimal
		count  int
	}{
		{"Total Spend", &s.PortfolioTotal, 0},
		{"Monthly Average", &s.MonthlyAverage, 0},
		{"Cost Per Door", &s.PortfolioCostPerDoor, 0},
		{"Units", nil, s.TotalUnits},
		{"Invoices", nil, s.InvoiceCount},
		{"Unassigned Invoices", nil, s.Unassigned},
		{"Validation Errors", nil, data.Validation.ErrorCount},
		{"Validation Warnings", nil, data.Validation.WarningCount},
	}
	for _, kpi := range kpis {
		row := sheet.AddRow()
		text(row, kpi.label)
		if kpi.amount != nil {
			wb.money(row, *kpi.amount)
		} else {
			number(row, kpi.count)
		}
	}
	sheet.AddRow()

	wb.header(sheet, "Code", "Property", "Units", "Total", "Monthly Average", "Cost Per Door", "Share", "MoM Change", "Vendors", "Status")
	for _, ps := range s.Properties {
		row := sheet.AddRow()
		text(row, ps.Property.Code)
		text(row, ps.Property.Name)
		number(row, ps.Property.Units)
		wb.money(row, ps.Total)
		wb.money(row, ps.MonthlyAverage)
		wb.money(row, ps.CostPerDoorAverage)
		percent(row, ps.ShareOfPortfolio)
		if ps.HasMonthOverMonth {
			percent(row, ps.MonthOverMonthChange)
		} else {
			text(row, "n/a")
		}
		text(row, strings.Join(ps.Vendors, ", "))
		text(row, status(data.Validation, ps.Property.Code))
	}
	return nil
}

func writeMonthlySheet(wb *workbook, data *ReportData) error {
	sheet, err := wb.sheet(SheetMonthly)
	if err != nil {
		return err
	}
	s := data.Summary

	titles := []string{"Code", "Property"}
	for _, m := range s.Months {
		titles = append(titles, models.MonthLabel(m))
	}
	titles = append(titles, "Total")
	wb.header(sheet, titles...)

	for _, ps := range s.Properties {
		row := sheet.AddRow()
		text(row, ps.Property.Code)
		text(row, ps.Property.Name)
		for _, pm := range ps.Months {
			wb.money(row, pm.Total)
		}
		wb.money(row, ps.Total)
	}

	row := sheet.AddRow()
	text(row, "").SetStyle(wb.bold)
	text(row, "Total").SetStyle(wb.bold)
	for _, m := range s.Months {
		wb.money(row, s.PortfolioMonthly[m]).SetStyle(wb.bold)
	}
	wb.money(row, s.PortfolioTotal).SetStyle(wb.bold)
	return nil
}

func writeInvoicesSheet(wb *workbook, data *ReportData) error {
	sheet, err := wb.sheet(SheetInvoices)
	if err != nil {
		return err
	}

	wb.header(sheet, "Property Code", "Property", "Vendor", "Invoice Number", "Account Number",
		"Invoice Date", "Month", "Total", "Line Items", "Source", "Source File", "Confidence")
	for _, inv := range data.Invoices {
		row := sheet.AddRow()
		text(row, inv.PropertyCode)
		text(row, inv.PropertyName)
		text(row, inv.Vendor)
		text(row, inv.InvoiceNumber)
		text(row, inv.AccountNumber)
		if inv.InvoiceDate.IsZero() {
			text(row, "")
		} else {
			text(row, inv.InvoiceDate.Format(models.DateLayout))
		}
		text(row, inv.Month())
		wb.money(row, inv.Total)
		number(row, len(inv.LineItems))
		text(row, string(inv.Source))
		text(row, inv.SourceFile)
		cell := row.AddCell()
		cell.SetFloatWithFormat(inv.Confidence, "0.00")
	}
	return nil
}

func writeValidationSheet(wb *workbook, data *ReportData) error {
	sheet, err := wb.sheet(SheetValidation)
	if err != nil {
		return err
	}

	wb.header(sheet, "Severity", "Rule", "Property Code", "Month", "Invoice", "Source File", "Amount", "Message")
	for _, issue := range data.Validation.Issues {
		row := sheet.AddRow()
		text(row, string(issue.Severity))
		text(row, issue.Rule)
		text(row, issue.PropertyCode)
		text(row, issue.Month)
		text(row, issue.InvoiceKey)
		text(row, issue.SourceFile)
		wb.money(row, issue.Amount)
		text(row, issue.Message)
	}
	return nil
}
