package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"orion-waste-reports/cmd/wastereport/config"
	"orion-waste-reports/pkg/errors"
	"orion-waste-reports/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool(config.KeyVerbose),
		out:     os.Stderr,
	}
}

// HandleError prints a user-friendly message and returns the exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if appErr, ok := errors.AsAppError(err); ok {
		return h.handleAppError(appErr)
	}

	return h.handleGenericError(err)
}

// handleAppError handles AppError with detailed context
func (h *CLIErrorHandler) handleAppError(err *errors.AppError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		fmt.Fprintf(h.out, "\nContext:\n")
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	if err.Category == errors.CategoryFile && err.Code == errors.CodeFileNotFound {
		if path, ok := err.Context["file_path"].(string); ok {
			if similar := similarFiles(path); len(similar) > 0 {
				fmt.Fprintf(h.out, "\nSimilar files found:\n")
				for _, name := range similar {
					fmt.Fprintf(h.out, "  - %s\n", name)
				}
			}
		}
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	// Show underlying error in verbose mode
	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles errors that are not AppErrors
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more details, or use 'wastereport <command> --help'\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file
• Inputs must be .pdf, .txt, .xlsx or .csv files, or directories of them`

	case errors.CategoryExtraction:
		return `Extraction error help:
• Scanned PDFs have no text layer; save OCR output next to them as .txt
• Spreadsheet exports need a header row with vendor and amount columns
• Use 'wastereport vendors' to see which haulers are recognised
• Use 'wastereport extract --format json' to inspect what was read`

	case errors.CategoryValidation:
		return `Validation error help:
• Months use YYYY-MM and dates use YYYY-MM-DD
• Review the reported invoices with 'wastereport validate --format json'
• Disable rules that do not apply with validation.disabled_rules
• Check that every invoice carries an amount and a service month`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Environment variables use the WASTEREPORT_ prefix, e.g. WASTEREPORT_ROSTER
• Try running with default settings first`

	case errors.CategoryRender:
		return `Report error help:
• Check that the output directory exists and is writable
• Try a different format with --formats
• Make sure report files are not open in another program`

	default:
		return `For more help:
• Use 'wastereport --help' for general help
• Use 'wastereport <command> --help' for command-specific help
• Run with --verbose to see debug logs`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// similarFiles lists up to three files next to a missing path sharing its
// first three characters
func similarFiles(path string) []string {
	baseName := filepath.Base(path)
	if len(baseName) < 3 {
		return nil
	}
	prefix := strings.ToLower(baseName[:3])

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return nil
	}
	var similar []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(strings.ToLower(entry.Name()), prefix) {
			similar = append(similar, entry.Name())
			if len(similar) == 3 {
				break
			}
		}
	}
	return similar
}
