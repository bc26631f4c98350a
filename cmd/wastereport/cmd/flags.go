package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"orion-waste-reports/internal/models"
	"orion-waste-reports/pkg/errors"
)

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

// validateInputs checks that every input is an existing file or directory
func validateInputs(inputs []string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("at least one input is required")
	}
	for i, input := range inputs {
		if input == "" {
			return fmt.Errorf("input %d path cannot be empty", i+1)
		}
		info, err := os.Stat(input)
		if os.IsNotExist(err) {
			return fmt.Errorf("input %d does not exist: %s", i+1, input)
		}
		if err != nil {
			return fmt.Errorf("error accessing input %d: %w", i+1, err)
		}
		if !info.IsDir() {
			if err := validateFileExists(input, fmt.Sprintf("input %d", i+1)); err != nil {
				return err
			}
		}
	}
	return nil
}

// validateMonthRange checks YYYY-MM bounds, either of which may be empty
func validateMonthRange(start, end string) error {
	if start != "" {
		if _, err := models.ParseMonth(start); err != nil {
			return fmt.Errorf("invalid start month format. Use YYYY-MM: %w", err)
		}
	}
	if end != "" {
		if _, err := models.ParseMonth(end); err != nil {
			return fmt.Errorf("invalid end month format. Use YYYY-MM: %w", err)
		}
	}
	if start != "" && end != "" && start > end {
		return fmt.Errorf("start month cannot be after end month")
	}
	return nil
}

// validateOutputFile checks that the directory of an output file exists
func validateOutputFile(outputFile string) error {
	if outputFile == "" {
		return nil
	}
	dir := filepath.Dir(outputFile)
	if dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("output directory does not exist: %s", dir)
		}
	}
	return nil
}

// openOutput returns the output file, or the fallback writer when no file
// is given. The returned close function is always safe to call.
func openOutput(outputFile string, fallback io.Writer) (io.Writer, func() error, error) {
	if outputFile == "" {
		return fallback, func() error { return nil }, nil
	}
	file, err := os.Create(outputFile)
	if err != nil {
		return nil, nil, errors.FileError(errors.CodeFilePermission, outputFile, err)
	}
	return file, file.Close, nil
}
