package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"orion-waste-reports/cmd/wastereport/config"
	"orion-waste-reports/internal/pipeline"
	"orion-waste-reports/internal/render"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the report command
var (
	reportInputs       []string
	reportRoster       string
	reportFormats      []string
	reportOutputDir    string
	reportName         string
	reportStart        string
	reportEnd          string
	reportShowProgress bool
	reportRecursive    bool

	parsedFormats []render.Format
)

var reportFlagKeys = map[string]string{
	"inputs":      "inputs",
	"roster":      config.KeyRoster,
	"formats":     config.KeyReportFormats,
	"output-dir":  config.KeyReportOutputDir,
	"name":        config.KeyReportName,
	"title":       config.KeyReportTitle,
	"start-month": "start-month",
	"end-month":   "end-month",
	"progress":    "progress",
	"recursive":   "recursive",
}

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build monthly waste expense reports",
	Long: `Report runs the full workflow: extract invoices, assign them to roster
properties, validate them, aggregate monthly spend per property and write
the report in every requested format.

Formats: xlsx (workbook with Summary, Monthly, Invoices and Validation
sheets), html (single-file dashboard), markdown, csv (one row per property
and month), json and console (plain text).

Examples:
  # Default formats (xlsx, html, markdown) into ./reports
  wastereport report --inputs invoices/ --roster portfolio.yaml

  # First quarter, spreadsheet and dashboard only
  wastereport report --inputs invoices/ --roster portfolio.yaml \
    --formats xlsx,html --start-month 2024-01 --end-month 2024-03

  # Custom output location and file name, with progress indicators
  wastereport report --inputs invoices/ --roster portfolio.yaml \
    --output-dir out/ --name orion-q1 --progress`,

	PreRunE: validateReportFlags,
	RunE:    runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringSliceVarP(&reportInputs, "inputs", "i", []string{}, "comma-separated invoice files or directories (required)")
	reportCmd.Flags().StringVarP(&reportRoster, "roster", "r", "", "portfolio roster YAML (required)")
	reportCmd.Flags().StringSliceVarP(&reportFormats, "formats", "f", []string{}, "report formats: xlsx, html, markdown, csv, json, console (default xlsx,html,markdown)")
	reportCmd.Flags().StringVarP(&reportOutputDir, "output-dir", "o", "", "directory for report files (default reports)")
	reportCmd.Flags().StringVarP(&reportName, "name", "n", "", "base file name without extension (default waste-report)")
	reportCmd.Flags().String("title", "", "report title (default \"<portfolio> Waste Expense Report\")")
	reportCmd.Flags().StringVar(&reportStart, "start-month", "", "first report month (YYYY-MM)")
	reportCmd.Flags().StringVar(&reportEnd, "end-month", "", "last report month (YYYY-MM)")
	reportCmd.Flags().BoolVar(&reportShowProgress, "progress", false, "show progress indicators")
	reportCmd.Flags().BoolVar(&reportRecursive, "recursive", false, "scan input directories recursively")
}

func validateReportFlags(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, reportFlagKeys)

	// Get values from viper (allows override from config file)
	reportInputs = viper.GetStringSlice("inputs")
	reportRoster = viper.GetString(config.KeyRoster)
	reportFormats = viper.GetStringSlice(config.KeyReportFormats)
	reportOutputDir = viper.GetString(config.KeyReportOutputDir)
	reportName = viper.GetString(config.KeyReportName)
	reportStart = viper.GetString("start-month")
	reportEnd = viper.GetString("end-month")
	reportShowProgress = viper.GetBool("progress")
	reportRecursive = viper.GetBool("recursive")

	if err := validateInputs(reportInputs); err != nil {
		return err
	}
	if reportRoster == "" {
		return fmt.Errorf("roster is required")
	}
	if err := validateFileExists(reportRoster, "roster file"); err != nil {
		return err
	}
	if err := validateMonthRange(reportStart, reportEnd); err != nil {
		return err
	}

	formats, err := render.ParseFormats(reportFormats)
	if err != nil {
		return fmt.Errorf("invalid report formats '%s': %w", strings.Join(reportFormats, ","), err)
	}
	parsedFormats = formats

	if strings.TrimSpace(reportName) == "" {
		return fmt.Errorf("report name cannot be empty")
	}
	if strings.ContainsAny(reportName, `/\`) {
		return fmt.Errorf("report name must not contain path separators: %s", reportName)
	}

	return validateOutputDir(reportOutputDir)
}

// validateOutputDir accepts an existing directory or one whose parent exists
func validateOutputDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return fmt.Errorf("output path is not a directory: %s", dir)
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("error accessing output directory: %w", err)
	}
	parent := filepath.Dir(filepath.Clean(dir))
	if _, err := os.Stat(parent); os.IsNotExist(err) {
		return fmt.Errorf("output directory does not exist: %s", parent)
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	v := viper.GetViper()

	if v.GetBool(config.KeyVerbose) {
		fmt.Fprintf(os.Stderr, "Starting report...\n")
		fmt.Fprintf(os.Stderr, "Inputs: %s\n", strings.Join(reportInputs, ", "))
		fmt.Fprintf(os.Stderr, "Roster: %s\n", reportRoster)
		fmt.Fprintf(os.Stderr, "Formats: %s\n", strings.Join(reportFormats, ", "))
		fmt.Fprintf(os.Stderr, "Output directory: %s\n", reportOutputDir)
	}

	pipelineConfig, err := config.Pipeline(v)
	if err != nil {
		return err
	}
	renderConfig, err := config.Render(v)
	if err != nil {
		return err
	}

	service, err := pipeline.NewService(pipelineConfig)
	if err != nil {
		return err
	}

	// Add progress callback if requested
	if reportShowProgress {
		service.AddProgressCallback(func(progress *pipeline.Progress) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %-18s (%.1f%% complete)",
				progress.CompletedSteps, progress.TotalSteps,
				progress.CurrentStep, progress.PercentComplete)
		})
	}

	result, err := service.Run(ctx, &pipeline.Request{
		Inputs:     reportInputs,
		RosterPath: reportRoster,
		StartMonth: reportStart,
		EndMonth:   reportEnd,
		Recursive:  reportRecursive,
	})
	if reportShowProgress {
		fmt.Fprintf(os.Stderr, "\n") // New line after progress
	}
	if err != nil {
		return err
	}

	data := &render.ReportData{
		Summary:    result.Summary,
		Validation: result.Validation,
		Invoices:   result.Invoices,
		Config:     renderConfig,
	}
	written, err := render.WriteAll(ctx, data, parsedFormats, reportOutputDir, reportName)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s\n", data.Title(), data.Period())
	fmt.Fprintf(out, "Total spend %s across %d invoices, %s\n",
		render.Money(result.Summary.PortfolioTotal), result.Summary.InvoiceCount, result.Validation.String())
	for _, path := range written {
		fmt.Fprintf(out, "  wrote %s\n", path)
	}

	// Show completion message
	if v.GetBool(config.KeyVerbose) {
		fmt.Fprintf(os.Stderr, "\nReport completed in %v.\n", result.Duration)
		fmt.Fprintf(os.Stderr, "Extraction: %s\n", result.Extraction.Stats.String())
		fmt.Fprintf(os.Stderr, "Assigned %d of %d invoices, %d unmatched.\n",
			result.Assignment.Assigned, result.Assignment.Total, len(result.Unmatched))
		if len(result.Duplicates) > 0 {
			fmt.Fprintf(os.Stderr, "Dropped %d duplicate invoices.\n", len(result.Duplicates))
		}
		if result.Filtered > 0 {
			fmt.Fprintf(os.Stderr, "Skipped %d invoices outside the report months.\n", result.Filtered)
		}
	}

	return nil
}
