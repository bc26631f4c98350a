package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"orion-waste-reports/cmd/wastereport/config"
	"orion-waste-reports/internal/extract"
	"orion-waste-reports/internal/matcher"
	"orion-waste-reports/internal/pipeline"
	"orion-waste-reports/internal/portfolio"
	"orion-waste-reports/internal/render"
	"orion-waste-reports/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the extract command
var (
	extractInputs     []string
	extractRoster     string
	extractFormat     string
	extractOutputFile string
	extractRecursive  bool
)

var extractFlagKeys = map[string]string{
	"inputs":      "inputs",
	"roster":      config.KeyRoster,
	"format":      "format",
	"output-file": "output-file",
	"recursive":   "recursive",
}

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract invoices from hauler documents and exports",
	Long: `Extract reads waste invoices from PDF text layers, OCR text files and
XLSX/CSV exports and prints what was found, without building a report.

Inputs may be files or directories. Directories are scanned for .pdf, .txt,
.xlsx and .csv files. When a roster is given, invoices are also assigned to
its properties.

Examples:
  # Extract a folder of hauler PDFs as JSON
  wastereport extract --inputs invoices/ --format json

  # Assign to properties and export a CSV
  wastereport extract --inputs invoices/,exports/q1.xlsx --roster portfolio.yaml \
    --format csv --output-file invoices.csv

  # Scan sub-directories too
  wastereport extract --inputs archive/ --recursive`,

	PreRunE: validateExtractFlags,
	RunE:    runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringSliceVarP(&extractInputs, "inputs", "i", []string{}, "comma-separated invoice files or directories (required)")
	extractCmd.Flags().StringVarP(&extractRoster, "roster", "r", "", "portfolio roster YAML; assigns invoices to properties")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "console", "output format: console, json, csv")
	extractCmd.Flags().StringVarP(&extractOutputFile, "output-file", "o", "", "output file path (default: stdout)")
	extractCmd.Flags().BoolVar(&extractRecursive, "recursive", false, "scan input directories recursively")
}

func validateExtractFlags(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, extractFlagKeys)

	// Get values from viper (allows override from config file)
	extractInputs = viper.GetStringSlice("inputs")
	extractRoster = viper.GetString(config.KeyRoster)
	extractFormat = strings.ToLower(viper.GetString("format"))
	extractOutputFile = viper.GetString("output-file")
	extractRecursive = viper.GetBool("recursive")

	if extractFormat == "" {
		extractFormat = string(render.FormatConsole)
	}

	if err := validateInputs(extractInputs); err != nil {
		return err
	}
	if extractRoster != "" {
		if err := validateFileExists(extractRoster, "roster file"); err != nil {
			return err
		}
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[extractFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", extractFormat)
	}

	return validateOutputFile(extractOutputFile)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	if viper.GetBool(config.KeyVerbose) {
		fmt.Fprintf(os.Stderr, "Extracting invoices...\n")
		fmt.Fprintf(os.Stderr, "Inputs: %s\n", strings.Join(extractInputs, ", "))
		fmt.Fprintf(os.Stderr, "Output format: %s\n", extractFormat)
	}

	pipelineConfig, err := config.Pipeline(viper.GetViper())
	if err != nil {
		return err
	}
	service, err := pipeline.NewService(pipelineConfig)
	if err != nil {
		return err
	}

	batch, err := service.Extract(ctx, extractInputs, extractRecursive)
	if err != nil {
		return err
	}

	if extractRoster != "" {
		roster, err := portfolio.LoadRoster(extractRoster)
		if err != nil {
			return err
		}
		engine, err := matcher.NewMatchingEngine(roster.Properties, pipelineConfig.Matching)
		if err != nil {
			return err
		}
		assignment := engine.Assign(batch.Invoices)
		if viper.GetBool(config.KeyVerbose) {
			fmt.Fprintf(os.Stderr, "Assigned %d of %d invoices to %s properties\n",
				assignment.Assigned, assignment.Total, roster.Name)
		}
	}

	out, closeOutput, err := openOutput(extractOutputFile, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	switch extractFormat {
	case "json":
		err = writeBatchJSON(batch, out)
	case "csv":
		err = writeInvoicesCSV(batch, out)
	default:
		err = writeBatchConsole(batch, out)
	}
	if err != nil {
		destination := extractOutputFile
		if destination == "" {
			destination = "stdout"
		}
		return errors.RenderError(errors.CodeWriteFailed, extractFormat, destination, err)
	}

	if viper.GetBool(config.KeyVerbose) {
		fmt.Fprintf(os.Stderr, "\nExtraction completed: %s\n", batch.Stats.String())
	}
	return nil
}

func writeBatchJSON(batch *extract.BatchResult, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(batch)
}

var invoiceCSVHeader = []string{
	"Source File", "Vendor", "Invoice #", "Account #", "Invoice Date", "Month",
	"Property Code", "Property", "Service Address", "Total", "Line Items", "Confidence",
}

func writeInvoicesCSV(batch *extract.BatchResult, w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(invoiceCSVHeader); err != nil {
		return err
	}

	for _, inv := range batch.Invoices {
		invoiceDate := ""
		if !inv.InvoiceDate.IsZero() {
			invoiceDate = inv.InvoiceDate.Format("2006-01-02")
		}
		record := []string{
			filepath.Base(inv.SourceFile),
			inv.Vendor,
			inv.InvoiceNumber,
			inv.AccountNumber,
			invoiceDate,
			inv.Month(),
			inv.PropertyCode,
			inv.PropertyName,
			inv.ServiceAddress,
			inv.Total.StringFixed(2),
			strconv.Itoa(len(inv.LineItems)),
			strconv.FormatFloat(inv.Confidence, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeBatchConsole(batch *extract.BatchResult, w io.Writer) error {
	fmt.Fprintf(w, "=== EXTRACTION SUMMARY ===\n")
	fmt.Fprintf(w, "%s\n", batch.Stats.String())
	fmt.Fprintf(w, "Duration: %v\n\n", batch.Stats.Duration)

	fmt.Fprintf(w, "=== FILES ===\n")
	for _, file := range batch.Files {
		vendor := file.Vendor
		if vendor == "" {
			vendor = "-"
		}
		fmt.Fprintf(w, "  %-40s %-22s %3d invoices\n", truncate(filepath.Base(file.FilePath), 40), vendor, len(file.Invoices))
		for _, warning := range file.Warnings {
			fmt.Fprintf(w, "    warning: %s\n", warning)
		}
	}
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "=== INVOICES ===\n")
	for _, inv := range batch.Invoices {
		property := inv.PropertyCode
		if property == "" {
			property = "unassigned"
		}
		month := inv.Month()
		if month == "" {
			month = "-------"
		}
		fmt.Fprintf(w, "  %-22s %-14s %s %12s  %-12s conf %.2f\n",
			truncate(inv.Vendor, 22), truncate(inv.InvoiceNumber, 14), month,
			render.Money(inv.Total), property, inv.Confidence)
	}

	if len(batch.Errors) > 0 {
		fmt.Fprintf(w, "\n=== FAILED FILES ===\n")
		fmt.Fprintf(w, "%s\n", errors.FormatForUser(batch.Errors))
	}
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
