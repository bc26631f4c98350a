package cmd

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orion-waste-reports/cmd/wastereport/config"
	"orion-waste-reports/internal/extract"
	"orion-waste-reports/pkg/errors"
	"orion-waste-reports/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const testRoster = `
portfolio: Orion Portfolio
properties:
  - code: ORN-001
    name: Orion at Lakeside
    units: 200
  - code: ORN-002
    name: Orion at Riverside
    units: 100
`

const testInvoices = `Property Code,Property,Vendor,Invoice #,Service Month,Description,Amount
ORN-001,Orion at Lakeside,Waste Management,INV-0,2023-12,Front load service,100.00
ORN-001,Orion at Lakeside,Waste Management,INV-1,2024-01,Front load service,900.00
ORN-001,Orion at Lakeside,Waste Management,INV-2,2024-02,Front load service,950.00
ORN-002,Orion at Riverside,Republic Services,R-1,2024-01,Valet trash,400.00
,Unknown Tower,Ally Waste Services,A-9,2024-02,Valet trash,150.00
`

type fixture struct {
	dir      string
	invoices string
	roster   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		invoices: filepath.Join(dir, "invoices.csv"),
		roster:   filepath.Join(dir, "portfolio.yaml"),
	}
	if err := os.WriteFile(f.invoices, []byte(testInvoices), 0644); err != nil {
		t.Fatalf("failed to create invoice file: %v", err)
	}
	if err := os.WriteFile(f.roster, []byte(testRoster), 0644); err != nil {
		t.Fatalf("failed to create roster file: %v", err)
	}
	return f
}

// resetViper gives each test fresh settings with the built-in defaults
func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	if err := config.Load(viper.GetViper(), ""); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	t.Cleanup(viper.Reset)
}

func TestValidateFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	validFile := filepath.Join(tmpDir, "valid.csv")
	if err := os.WriteFile(validFile, []byte("test"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	tests := []struct {
		name        string
		filePath    string
		expectError bool
	}{
		{"valid file", validFile, false},
		{"empty path", "", true},
		{"non-existent file", "/non/existent/file.csv", true},
		{"directory instead of file", tmpDir, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFileExists(tt.filePath, "test file")
			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateInputs(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name        string
		inputs      []string
		expectError bool
	}{
		{"file", []string{f.invoices}, false},
		{"directory", []string{f.dir}, false},
		{"file and directory", []string{f.invoices, f.dir}, false},
		{"none", nil, true},
		{"empty entry", []string{f.invoices, ""}, true},
		{"missing", []string{filepath.Join(f.dir, "nope.pdf")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInputs(tt.inputs)
			if tt.expectError && err == nil {
				t.Errorf("expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateMonthRange(t *testing.T) {
	tests := []struct {
		name          string
		start, end    string
		errorContains string
	}{
		{"no bounds", "", "", ""},
		{"start only", "2024-01", "", ""},
		{"same month", "2024-03", "2024-03", ""},
		{"full date", "2024-01-15", "", "invalid start month format"},
		{"bad end", "", "March", "invalid end month format"},
		{"reversed", "2024-04", "2024-01", "start month cannot be after end month"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMonthRange(tt.start, tt.end)
			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("expected error containing '%s', got: %v", tt.errorContains, err)
			}
		})
	}
}

func TestValidateReportFlags(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name          string
		setupFlags    func()
		errorContains string
	}{
		{
			name: "valid flags",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
				viper.Set(config.KeyRoster, f.roster)
				viper.Set(config.KeyReportOutputDir, filepath.Join(f.dir, "reports"))
			},
		},
		{
			name: "missing inputs",
			setupFlags: func() {
				viper.Set(config.KeyRoster, f.roster)
			},
			errorContains: "at least one input is required",
		},
		{
			name: "missing roster",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
			},
			errorContains: "roster is required",
		},
		{
			name: "invalid format",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
				viper.Set(config.KeyRoster, f.roster)
				viper.Set(config.KeyReportFormats, []string{"xlsx", "pdf"})
			},
			errorContains: "invalid report formats",
		},
		{
			name: "invalid start month",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
				viper.Set(config.KeyRoster, f.roster)
				viper.Set("start-month", "01/2024")
			},
			errorContains: "invalid start month format",
		},
		{
			name: "start month after end month",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
				viper.Set(config.KeyRoster, f.roster)
				viper.Set("start-month", "2024-03")
				viper.Set("end-month", "2024-01")
			},
			errorContains: "start month cannot be after end month",
		},
		{
			name: "name with separator",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
				viper.Set(config.KeyRoster, f.roster)
				viper.Set(config.KeyReportName, "q1/report")
			},
			errorContains: "must not contain path separators",
		},
		{
			name: "output directory parent missing",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
				viper.Set(config.KeyRoster, f.roster)
				viper.Set(config.KeyReportOutputDir, filepath.Join(f.dir, "missing", "reports"))
			},
			errorContains: "output directory does not exist",
		},
		{
			name: "output path is a file",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
				viper.Set(config.KeyRoster, f.roster)
				viper.Set(config.KeyReportOutputDir, f.invoices)
			},
			errorContains: "not a directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			tt.setupFlags()

			err := validateReportFlags(&cobra.Command{}, []string{})

			if tt.errorContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("expected error but got none")
			} else if !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("expected error to contain '%s', got: %v", tt.errorContains, err)
			}
		})
	}
}

func TestValidateExtractFlags(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name          string
		setupFlags    func()
		errorContains string
	}{
		{
			name: "defaults to console",
			setupFlags: func() {
				viper.Set("inputs", []string{f.dir})
			},
		},
		{
			name: "invalid format",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
				viper.Set("format", "xml")
			},
			errorContains: "invalid output format",
		},
		{
			name: "missing roster file",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
				viper.Set(config.KeyRoster, filepath.Join(f.dir, "nope.yaml"))
			},
			errorContains: "roster file does not exist",
		},
		{
			name: "output directory missing",
			setupFlags: func() {
				viper.Set("inputs", []string{f.invoices})
				viper.Set("output-file", filepath.Join(f.dir, "missing", "out.json"))
			},
			errorContains: "output directory does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			tt.setupFlags()

			err := validateExtractFlags(&cobra.Command{}, []string{})

			if tt.errorContains == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if extractFormat != "console" {
					t.Errorf("expected console format, got %s", extractFormat)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("expected error to contain '%s', got: %v", tt.errorContains, err)
			}
		})
	}
}

func TestRunReport(t *testing.T) {
	f := newFixture(t)
	resetViper(t)

	outputDir := filepath.Join(f.dir, "reports")
	viper.Set("inputs", []string{f.invoices})
	viper.Set(config.KeyRoster, f.roster)
	viper.Set(config.KeyReportFormats, []string{"csv", "json", "markdown"})
	viper.Set(config.KeyReportOutputDir, outputDir)
	viper.Set(config.KeyReportName, "orion-q1")
	viper.Set("start-month", "2024-01")

	cmd := &cobra.Command{}
	var output bytes.Buffer
	cmd.SetOut(&output)

	if err := validateReportFlags(cmd, nil); err != nil {
		t.Fatalf("unexpected flag error: %v", err)
	}
	if err := runReport(cmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, name := range []string{"orion-q1.csv", "orion-q1.json", "orion-q1.md"} {
		if _, err := os.Stat(filepath.Join(outputDir, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}

	text := output.String()
	for _, expected := range []string{"Orion Portfolio Waste Expense Report", "$2,250.00", "wrote"} {
		if !strings.Contains(text, expected) {
			t.Errorf("expected output to contain %q, got:\n%s", expected, text)
		}
	}
}

func TestRunValidate(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		strict   bool
		exitCode int
	}{
		{"reports without failing", false, 0},
		{"strict fails on errors", true, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper(t)
			viper.Set("inputs", []string{f.invoices})
			viper.Set(config.KeyRoster, f.roster)
			viper.Set("start-month", "2024-01")
			viper.Set("strict", tt.strict)

			cmd := &cobra.Command{}
			var output bytes.Buffer
			cmd.SetOut(&output)

			if err := validateValidateFlags(cmd, nil); err != nil {
				t.Fatalf("unexpected flag error: %v", err)
			}
			err := runValidate(cmd, nil)

			handler := &CLIErrorHandler{logger: logger.GetGlobalLogger(), out: &bytes.Buffer{}}
			if code := handler.HandleError(err); code != tt.exitCode {
				t.Errorf("expected exit code %d, got %d (%v)", tt.exitCode, code, err)
			}

			text := output.String()
			for _, expected := range []string{"Status:      FAILED", "unassigned_property", "A-9"} {
				if !strings.Contains(text, expected) {
					t.Errorf("expected output to contain %q, got:\n%s", expected, text)
				}
			}
		})
	}
}

func TestRunExtractCSV(t *testing.T) {
	f := newFixture(t)
	resetViper(t)

	outputFile := filepath.Join(f.dir, "invoices-out.csv")
	viper.Set("inputs", []string{f.invoices})
	viper.Set(config.KeyRoster, f.roster)
	viper.Set("format", "csv")
	viper.Set("output-file", outputFile)

	cmd := &cobra.Command{}
	if err := validateExtractFlags(cmd, nil); err != nil {
		t.Fatalf("unexpected flag error: %v", err)
	}
	if err := runExtract(cmd, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	file, err := os.Open(outputFile)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("expected header and 5 invoices, got %d records", len(records))
	}
	if records[0][0] != "Source File" || records[0][9] != "Total" {
		t.Errorf("unexpected header %v", records[0])
	}

	assigned := 0
	for _, record := range records[1:] {
		if record[6] != "" {
			assigned++
		}
	}
	if assigned != 4 {
		t.Errorf("expected 4 invoices assigned to properties, got %d", assigned)
	}
}

func TestWriteVendors(t *testing.T) {
	var output bytes.Buffer
	if err := writeVendors(extract.NewVendorRegistry(), &output); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	text := output.String()
	for _, expected := range []string{"Waste Management", "Republic Services", "Generic", "fallback", "Date layouts:"} {
		if !strings.Contains(text, expected) {
			t.Errorf("expected vendor list to contain %q", expected)
		}
	}
}

func TestCLIErrorHandler(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "invoices-jan.csv"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	tests := []struct {
		name     string
		err      error
		exitCode int
		contains []string
	}{
		{
			name:     "nil error",
			err:      nil,
			exitCode: 0,
		},
		{
			name:     "file not found suggests similar files",
			err:      errors.FileError(errors.CodeFileNotFound, filepath.Join(dir, "invoices-feb.csv"), nil),
			exitCode: 2,
			contains: []string{"Error: file not found", "Suggestion:", "invoices-jan.csv", "File error help:"},
		},
		{
			name:     "extraction error",
			err:      errors.ExtractionError(errors.CodeNoTextLayer, "scan.pdf", "", nil),
			exitCode: 3,
			contains: []string{"no text layer", "Extraction error help:", "file: scan.pdf"},
		},
		{
			name:     "configuration error",
			err:      errors.ConfigurationError(errors.CodeInvalidConfig, "log.level", "loud", nil),
			exitCode: 4,
			contains: []string{"Configuration error help:", "setting: log.level"},
		},
		{
			name:     "render error",
			err:      errors.RenderError(errors.CodeWriteFailed, "xlsx", "out/report.xlsx", fmt.Errorf("disk error")),
			exitCode: 5,
			contains: []string{"Report error help:"},
		},
		{
			name:     "wrapped app error",
			err:      fmt.Errorf("run failed: %w", errors.New(errors.CategoryValidation, errors.CodeChecksFailed, "validation found 2 errors")),
			exitCode: 3,
			contains: []string{"validation found 2 errors"},
		},
		{
			name:     "plain not found",
			err:      fmt.Errorf("open x.csv: %w", os.ErrNotExist),
			exitCode: 2,
			contains: []string{"File not found"},
		},
		{
			name:     "generic error",
			err:      fmt.Errorf("unknown flag: --nope"),
			exitCode: 1,
			contains: []string{"unknown flag", "--help"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &CLIErrorHandler{logger: logger.GetGlobalLogger(), out: &output}

			if code := handler.HandleError(tt.err); code != tt.exitCode {
				t.Errorf("expected exit code %d, got %d", tt.exitCode, code)
			}
			for _, expected := range tt.contains {
				if !strings.Contains(output.String(), expected) {
					t.Errorf("expected output to contain %q, got:\n%s", expected, output.String())
				}
			}
		})
	}
}

func TestReportCommandHelp(t *testing.T) {
	for _, name := range []string{"inputs", "roster", "formats", "output-dir", "name", "start-month", "end-month", "progress"} {
		if reportCmd.Flags().Lookup(name) == nil {
			t.Errorf("%s flag not found", name)
		}
	}

	var helpOutput bytes.Buffer
	reportCmd.SetOut(&helpOutput)
	reportCmd.Help()

	helpText := helpOutput.String()
	for _, section := range []string{"Usage:", "Examples:", "Flags:", "--inputs", "--formats", "--output-dir"} {
		if !strings.Contains(helpText, section) {
			t.Errorf("help text should contain '%s'", section)
		}
	}
}

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{"extract": false, "validate": false, "report": false, "vendors": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := expected[c.Name()]; ok {
			expected[c.Name()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("command %s not registered", name)
		}
	}

	for _, flag := range []string{"config", "verbose", "log-level", "log-format"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("global flag %s not found", flag)
		}
	}
}
