// Package render writes a portfolio summary and its validation report to the
// fixed output formats: Excel workbook, HTML dashboard, Markdown report, CSV
// export, JSON and a console summary.
package render

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"orion-waste-reports/internal/aggregate"
	"orion-waste-reports/internal/models"
	"orion-waste-reports/internal/validation"
	"orion-waste-reports/pkg/errors"
	"orion-waste-reports/pkg/logger"
)

// Format represents an output document type
type Format string

const (
	FormatXLSX     Format = "xlsx"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
	FormatConsole  Format = "console"
)

// AllFormats lists every supported format in the order WriteAll emits them
var AllFormats = []Format{FormatXLSX, FormatHTML, FormatMarkdown, FormatCSV, FormatJSON, FormatConsole}

// IsValid checks if the output format is supported
func (f Format) IsValid() bool {
	switch f {
	case FormatXLSX, FormatHTML, FormatMarkdown, FormatCSV, FormatJSON, FormatConsole:
		return true
	default:
		return false
	}
}

// Extension returns the file extension written for the format
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return "md"
	case FormatConsole:
		return "txt"
	default:
		return string(f)
	}
}

// String returns the string representation of Format
func (f Format) String() string {
	return string(f)
}

// ParseFormats parses format names such as "xlsx,html" or ["md", "json"].
// Duplicates are dropped and "md" is accepted for markdown.
func ParseFormats(values []string) ([]Format, error) {
	var formats []Format
	seen := make(map[Format]bool)
	for _, value := range values {
		for _, name := range strings.Split(value, ",") {
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if name == "md" {
				name = string(FormatMarkdown)
			}
			f := Format(name)
			if !f.IsValid() {
				return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report.formats", name,
					fmt.Errorf("unsupported output format '%s'", name)).
					WithSuggestion("Use one of: xlsx, html, markdown, csv, json, console")
			}
			if !seen[f] {
				seen[f] = true
				formats = append(formats, f)
			}
		}
	}
	if len(formats) == 0 {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "report.formats", "",
			fmt.Errorf("at least one output format is required"))
	}
	return formats, nil
}

// Config controls report content
type Config struct {
	// Title heads every document; empty uses the portfolio name
	Title string `json:"title" mapstructure:"title"`

	// CurrencyFormat is the Excel number format applied to money cells
	CurrencyFormat string `json:"currency_format" mapstructure:"currency_format"`

	// IncludeInvoices adds the flat invoice list to xlsx, html and json output
	IncludeInvoices bool `json:"include_invoices" mapstructure:"include_invoices"`

	// MaxIssues caps the issues listed in console and markdown output; zero lists all
	MaxIssues int `json:"max_issues" mapstructure:"max_issues"`

	// Notes is free Markdown appended to the generated notes section
	Notes string `json:"notes,omitempty" mapstructure:"notes"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		CurrencyFormat:  "$#,##0.00",
		IncludeInvoices: true,
		MaxIssues:       50,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.CurrencyFormat) == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "report.currency_format", c.CurrencyFormat,
			fmt.Errorf("currency format cannot be empty"))
	}
	if c.MaxIssues < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report.max_issues", c.MaxIssues,
			fmt.Errorf("max issues cannot be negative"))
	}
	return nil
}

// ReportData is everything a renderer needs
type ReportData struct {
	Summary    *aggregate.Summary
	Validation *validation.Report
	Invoices   []*models.Invoice
	Config     *Config
}

// Title returns the configured title or the default one for the portfolio
func (d *ReportData) Title() string {
	if d.Config != nil && d.Config.Title != "" {
		return d.Config.Title
	}
	return d.Summary.Portfolio + " Waste Expense Report"
}

// Period describes the month range, e.g. "Jan 2024 - Mar 2024"
func (d *ReportData) Period() string {
	months := d.Summary.Months
	switch len(months) {
	case 0:
		return "no months"
	case 1:
		return models.MonthLabel(months[0])
	default:
		return models.MonthLabel(months[0]) + " - " + models.MonthLabel(months[len(months)-1])
	}
}

func (d *ReportData) config() *Config {
	if d.Config == nil {
		return DefaultConfig()
	}
	return d.Config
}

func (d *ReportData) validate() error {
	if d == nil || d.Summary == nil {
		return errors.ValidationError(errors.CodeMissingField, "summary", nil,
			fmt.Errorf("report data has no summary"))
	}
	if d.Validation == nil {
		d.Validation = &validation.Report{PropertyStatus: map[string]validation.Status{}}
	}
	return nil
}

// Renderer writes one output format
type Renderer interface {
	Format() Format
	Render(data *ReportData, w io.Writer) error
}

// NewRenderer returns the renderer for a format
func NewRenderer(format Format) (Renderer, error) {
	switch format {
	case FormatXLSX:
		return &xlsxRenderer{}, nil
	case FormatHTML:
		return &htmlRenderer{}, nil
	case FormatMarkdown:
		return &markdownRenderer{}, nil
	case FormatCSV:
		return &csvRenderer{}, nil
	case FormatJSON:
		return &jsonRenderer{}, nil
	case FormatConsole:
		return &consoleRenderer{}, nil
	default:
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "report.formats", string(format),
			fmt.Errorf("unsupported output format: %s", format))
	}
}

// Render writes a single format to w
func Render(format Format, data *ReportData, w io.Writer) error {
	if err := data.validate(); err != nil {
		return err
	}
	r, err := NewRenderer(format)
	if err != nil {
		return err
	}
	return r.Render(data, w)
}

// OutputPath returns <outputDir>/<baseName>.<ext>
func OutputPath(outputDir, baseName string, format Format) string {
	return filepath.Join(outputDir, baseName+"."+format.Extension())
}

// WriteAll writes each format to <outputDir>/<baseName>.<ext> and returns the
// written paths in format order. It stops at the first failure; files
// already written are kept and returned.
func WriteAll(ctx context.Context, data *ReportData, formats []Format, outputDir, baseName string) ([]string, error) {
	log := logger.GetGlobalLogger().WithComponent("render")

	if err := data.validate(); err != nil {
		return nil, err
	}
	if err := data.config().Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(baseName) == "" {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "report.name", baseName,
			fmt.Errorf("report base name cannot be empty"))
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, errors.FileError(errors.CodeDirectoryError, outputDir, err)
	}

	var written []string
	for _, format := range formats {
		select {
		case <-ctx.Done():
			return written, errors.InternalError(errors.CodeCancelled, "render", ctx.Err())
		default:
		}

		r, err := NewRenderer(format)
		if err != nil {
			return written, err
		}
		path := OutputPath(outputDir, baseName, format)
		err = logger.TimedOperation("render "+format.String(), log, func() error {
			return writeFile(path, data, r)
		})
		if err != nil {
			return written, err
		}
		log.WithFields(logger.Fields{
			"format": format,
			"path":   path,
		}).Info("Report written")
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, data *ReportData, r Renderer) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.RenderError(errors.CodeWriteFailed, r.Format().String(), path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.RenderError(errors.CodeWriteFailed, r.Format().String(), path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	if err := r.Render(data, w); err != nil {
		return errors.WrapIfNeeded(err, errors.CategoryRender, errors.CodeWriteFailed,
			fmt.Sprintf("failed to render %s", r.Format())).WithContext("path", path)
	}
	if err := w.Flush(); err != nil {
		return errors.RenderError(errors.CodeWriteFailed, r.Format().String(), path, err)
	}
	return nil
}
