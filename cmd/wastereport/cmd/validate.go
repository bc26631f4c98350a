package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"orion-waste-reports/cmd/wastereport/config"
	"orion-waste-reports/internal/pipeline"
	"orion-waste-reports/internal/validation"
	"orion-waste-reports/pkg/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the validate command
var (
	validateInputsFlag []string
	validateRoster     string
	validateStart      string
	validateEnd        string
	validateFormat     string
	validateStrict     bool
	validateRecursive  bool
)

var validateFlagKeys = map[string]string{
	"inputs":      "inputs",
	"roster":      config.KeyRoster,
	"start-month": "start-month",
	"end-month":   "end-month",
	"format":      "format",
	"strict":      "strict",
	"recursive":   "recursive",
}

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate invoices against the portfolio roster",
	Long: `Validate extracts invoices, assigns them to roster properties and runs the
validation rules: required fields, unassigned invoices, duplicates, line
item totals, negative totals, low extraction confidence, missing months,
monthly outliers, cost per door and contamination charges.

With --strict the command exits with code 3 when any error-severity issue
is found, so it can gate a monthly close.

Examples:
  # Validate a quarter of invoices
  wastereport validate --inputs invoices/ --roster portfolio.yaml \
    --start-month 2024-01 --end-month 2024-03

  # Fail the run when errors are found
  wastereport validate --inputs invoices/ --roster portfolio.yaml --strict

  # Machine-readable output
  wastereport validate --inputs invoices/ --roster portfolio.yaml --format json`,

	PreRunE: validateValidateFlags,
	RunE:    runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringSliceVarP(&validateInputsFlag, "inputs", "i", []string{}, "comma-separated invoice files or directories (required)")
	validateCmd.Flags().StringVarP(&validateRoster, "roster", "r", "", "portfolio roster YAML (required)")
	validateCmd.Flags().StringVar(&validateStart, "start-month", "", "first month to validate (YYYY-MM)")
	validateCmd.Flags().StringVar(&validateEnd, "end-month", "", "last month to validate (YYYY-MM)")
	validateCmd.Flags().StringVarP(&validateFormat, "format", "f", "console", "output format: console, json")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "exit with code 3 when errors are found")
	validateCmd.Flags().BoolVar(&validateRecursive, "recursive", false, "scan input directories recursively")
}

func validateValidateFlags(cmd *cobra.Command, args []string) error {
	bindFlags(cmd, validateFlagKeys)

	// Get values from viper (allows override from config file)
	validateInputsFlag = viper.GetStringSlice("inputs")
	validateRoster = viper.GetString(config.KeyRoster)
	validateStart = viper.GetString("start-month")
	validateEnd = viper.GetString("end-month")
	validateFormat = strings.ToLower(viper.GetString("format"))
	validateStrict = viper.GetBool("strict")
	validateRecursive = viper.GetBool("recursive")

	if validateFormat == "" {
		validateFormat = "console"
	}

	if err := validateInputs(validateInputsFlag); err != nil {
		return err
	}
	if validateRoster == "" {
		return fmt.Errorf("roster is required")
	}
	if err := validateFileExists(validateRoster, "roster file"); err != nil {
		return err
	}
	if err := validateMonthRange(validateStart, validateEnd); err != nil {
		return err
	}

	if validateFormat != "console" && validateFormat != "json" {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json", validateFormat)
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	pipelineConfig, err := config.Pipeline(viper.GetViper())
	if err != nil {
		return err
	}
	service, err := pipeline.NewService(pipelineConfig)
	if err != nil {
		return err
	}

	result, err := service.Run(ctx, &pipeline.Request{
		Inputs:     validateInputsFlag,
		RosterPath: validateRoster,
		StartMonth: validateStart,
		EndMonth:   validateEnd,
		Recursive:  validateRecursive,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if validateFormat == "json" {
		err = writeValidationJSON(result, out)
	} else {
		err = writeValidationConsole(result, out)
	}
	if err != nil {
		return errors.RenderError(errors.CodeWriteFailed, validateFormat, "stdout", err)
	}

	if viper.GetBool(config.KeyVerbose) {
		fmt.Fprintf(os.Stderr, "\nValidation completed in %v: %s\n", result.Duration, result.Validation.String())
	}

	if validateStrict && !result.Validation.Passed() {
		return errors.New(errors.CategoryValidation, errors.CodeChecksFailed,
			fmt.Sprintf("validation found %d errors", result.Validation.ErrorCount)).
			WithContext("errors", result.Validation.ErrorCount).
			WithContext("warnings", result.Validation.WarningCount).
			WithSuggestion("Fix the reported invoices or rerun without --strict")
	}
	return nil
}

type validationOutput struct {
	Portfolio  string             `json:"portfolio"`
	Months     []string           `json:"months"`
	Invoices   int                `json:"invoices"`
	Unmatched  int                `json:"unmatched"`
	Duplicates int                `json:"duplicates_dropped"`
	Filtered   int                `json:"out_of_range"`
	Passed     bool               `json:"passed"`
	Validation *validation.Report `json:"validation"`
	ByRule     map[string]int     `json:"by_rule"`
}

func writeValidationJSON(result *pipeline.Result, w io.Writer) error {
	output := &validationOutput{
		Portfolio:  result.Roster.Name,
		Months:     result.Months,
		Invoices:   len(result.Invoices),
		Unmatched:  len(result.Unmatched),
		Duplicates: len(result.Duplicates),
		Filtered:   result.Filtered,
		Passed:     result.Validation.Passed(),
		Validation: result.Validation,
		ByRule:     result.Validation.CountByRule(),
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func writeValidationConsole(result *pipeline.Result, w io.Writer) error {
	report := result.Validation

	fmt.Fprintf(w, "=== VALIDATION SUMMARY ===\n")
	fmt.Fprintf(w, "Portfolio:   %s\n", result.Roster.Name)
	if len(result.Months) > 0 {
		fmt.Fprintf(w, "Months:      %s to %s\n", result.Months[0], result.Months[len(result.Months)-1])
	}
	fmt.Fprintf(w, "Invoices:    %d (%d unmatched, %d out of range)\n",
		len(result.Invoices), len(result.Unmatched), result.Filtered)
	fmt.Fprintf(w, "Result:      %s\n", report.String())
	if report.Passed() {
		fmt.Fprintf(w, "Status:      PASSED\n")
	} else {
		fmt.Fprintf(w, "Status:      FAILED\n")
	}
	fmt.Fprintf(w, "\n")

	if counts := report.CountByRule(); len(counts) > 0 {
		fmt.Fprintf(w, "=== ISSUES BY RULE ===\n")
		rules := make([]string, 0, len(counts))
		for rule := range counts {
			rules = append(rules, rule)
		}
		sort.Strings(rules)
		for _, rule := range rules {
			fmt.Fprintf(w, "  %-24s %d\n", rule, counts[rule])
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "=== PROPERTIES ===\n")
	for _, property := range result.Roster.Properties {
		status := report.PropertyStatus[property.Code]
		if status == "" {
			status = validation.StatusPass
		}
		fmt.Fprintf(w, "  %-10s %-30s %s\n", property.Code, truncate(property.Name, 30), strings.ToUpper(string(status)))
	}

	if len(report.Issues) > 0 {
		fmt.Fprintf(w, "\n=== ISSUES ===\n")
		for _, issue := range report.Issues {
			fmt.Fprintf(w, "  %s\n", issue.String())
		}
	}
	return nil
}
