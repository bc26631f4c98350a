package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"orion-waste-reports/internal/render"
	"orion-waste-reports/internal/validation"
	"orion-waste-reports/pkg/errors"
	"orion-waste-reports/pkg/logger"

	"github.com/spf13/viper"
)

func loadViper(t *testing.T, path string) *viper.Viper {
	t.Helper()
	v := viper.New()
	if err := Load(v, path); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return v
}

func TestDefaults(t *testing.T) {
	v := loadViper(t, "")

	cfg, err := Pipeline(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Extract.MaxConcurrentFiles != 4 {
		t.Errorf("expected 4 concurrent files, got %d", cfg.Extract.MaxConcurrentFiles)
	}
	if !cfg.Matching.EnableFuzzyMatching || cfg.Matching.MinFuzzyScore != 0.5 {
		t.Errorf("unexpected matching defaults: %s", cfg.Matching)
	}
	if cfg.Validation.MinConfidence != 0.67 || cfg.Validation.OutlierPercent != 50 {
		t.Errorf("unexpected validation defaults: %+v", cfg.Validation)
	}
	if !cfg.DropDuplicates {
		t.Error("expected duplicates to be dropped by default")
	}

	formats, err := Formats(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(formats, []render.Format{render.FormatXLSX, render.FormatHTML, render.FormatMarkdown}) {
		t.Errorf("unexpected default formats %v", formats)
	}

	rc, err := Render(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rc.CurrencyFormat != "$#,##0.00" {
		t.Errorf("unexpected currency format %q", rc.CurrencyFormat)
	}

	lc, err := Logger(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.Level != logger.WarnLevel || lc.Format != logger.TextFormat {
		t.Errorf("unexpected logger defaults %+v", lc)
	}
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wastereport.yaml")
	content := `
roster: portfolio.yaml
validation:
  max_cost_per_door: 40
  disabled_rules: [low_confidence]
matching:
  enable_fuzzy_matching: false
report:
  formats: [csv, json]
  title: Q1 Waste Review
log:
  level: info
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	v := loadViper(t, path)

	if got := v.GetString(KeyRoster); got != "portfolio.yaml" {
		t.Errorf("expected roster from file, got %q", got)
	}

	val, err := Validation(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val.MaxCostPerDoor != 40 {
		t.Errorf("expected max cost per door 40, got %v", val.MaxCostPerDoor)
	}
	if val.IsEnabled(validation.RuleLowConfidence) {
		t.Error("expected low_confidence to be disabled")
	}
	if val.OutlierMinMonths != 3 {
		t.Errorf("expected unset keys to keep defaults, got %d", val.OutlierMinMonths)
	}

	m, err := Matching(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.EnableFuzzyMatching {
		t.Error("expected fuzzy matching to be disabled")
	}

	formats, err := Formats(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(formats, []render.Format{render.FormatCSV, render.FormatJSON}) {
		t.Errorf("unexpected formats %v", formats)
	}

	rc, _ := Render(v)
	if rc.Title != "Q1 Waste Review" {
		t.Errorf("unexpected title %q", rc.Title)
	}

	lc, err := Logger(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.Level != logger.InfoLevel || lc.Format != logger.JSONFormat {
		t.Errorf("unexpected logger config %+v", lc)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("WASTEREPORT_VALIDATION_MIN_CONFIDENCE", "0.9")
	t.Setenv("WASTEREPORT_VALIDATION_DISABLED_RULES", "low_confidence, missing_month")
	t.Setenv("WASTEREPORT_ROSTER", "/data/orion.yaml")

	v := loadViper(t, "")

	val, err := Validation(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val.MinConfidence != 0.9 {
		t.Errorf("expected min confidence 0.9 from env, got %v", val.MinConfidence)
	}
	if !reflect.DeepEqual(val.DisabledRules, []string{"low_confidence", "missing_month"}) {
		t.Errorf("unexpected disabled rules %v", val.DisabledRules)
	}
	if got := v.GetString(KeyRoster); got != "/data/orion.yaml" {
		t.Errorf("expected roster from env, got %q", got)
	}
}

func TestVerboseRaisesLogLevel(t *testing.T) {
	v := loadViper(t, "")
	v.Set(KeyVerbose, true)

	lc, err := Logger(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.Level != logger.DebugLevel {
		t.Errorf("expected debug level, got %s", lc.Level)
	}
	if !lc.CallerInfo {
		t.Error("expected caller info in verbose mode")
	}

	v.Set(KeyLogFormat, "json")
	if lc, err = Logger(v); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lc.Format != logger.JSONFormat {
		t.Errorf("verbose should keep the configured format, got %s", lc.Format)
	}
}

func TestInvalidSettings(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		build func(*viper.Viper) error
	}{
		{"zero concurrency", KeyExtractMaxConcurrentFiles, 0, func(v *viper.Viper) error { _, err := Extract(v); return err }},
		{"fuzzy score above one", KeyMatchingMinFuzzyScore, 1.5, func(v *viper.Viper) error { _, err := Matching(v); return err }},
		{"unknown rule", KeyValidationDisabledRules, []string{"no_such_rule"}, func(v *viper.Viper) error { _, err := Validation(v); return err }},
		{"negative tolerance", KeyValidationAmountTolerance, -1.0, func(v *viper.Viper) error { _, err := Pipeline(v); return err }},
		{"unknown format", KeyReportFormats, []string{"pdf"}, func(v *viper.Viper) error { _, err := Formats(v); return err }},
		{"empty currency format", KeyReportCurrencyFormat, " ", func(v *viper.Viper) error { _, err := Render(v); return err }},
		{"unknown log level", KeyLogLevel, "loud", func(v *viper.Viper) error { _, err := Logger(v); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := loadViper(t, "")
			v.Set(tt.key, tt.value)

			err := tt.build(v)
			if err == nil {
				t.Fatal("expected error but got none")
			}
			appErr, ok := errors.AsAppError(err)
			if !ok || appErr.Category != errors.CategoryConfiguration {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if appErr, ok := errors.AsAppError(err); !ok || appErr.GetExitCode() != 4 {
		t.Errorf("expected configuration exit code 4, got %v", err)
	}
}
