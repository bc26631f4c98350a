// Package config builds typed component configurations from viper settings.
// Settings come from, in increasing priority, built-in defaults, an optional
// YAML config file, WASTEREPORT_* environment variables and command flags.
package config

import (
	"fmt"
	"sort"
	"strings"

	"orion-waste-reports/internal/extract"
	"orion-waste-reports/internal/matcher"
	"orion-waste-reports/internal/pipeline"
	"orion-waste-reports/internal/render"
	"orion-waste-reports/internal/validation"
	"orion-waste-reports/pkg/errors"
	"orion-waste-reports/pkg/logger"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. WASTEREPORT_ROSTER
const EnvPrefix = "WASTEREPORT"

// Setting keys
const (
	KeyRoster = "roster"

	KeyExtractMaxConcurrentFiles = "extract.max_concurrent_files"
	KeyExtractMinConfidence      = "extract.min_confidence"
	KeyExtractHeaderSearchRows   = "extract.header_search_rows"

	KeyMatchingAccount       = "matching.enable_account_matching"
	KeyMatchingAddress       = "matching.enable_address_matching"
	KeyMatchingFuzzy         = "matching.enable_fuzzy_matching"
	KeyMatchingMinFuzzyScore = "matching.min_fuzzy_score"
	KeyMatchingStopwords     = "matching.stopwords"

	KeyValidationAmountTolerance  = "validation.amount_tolerance"
	KeyValidationMinConfidence    = "validation.min_confidence"
	KeyValidationOutlierPercent   = "validation.outlier_percent"
	KeyValidationOutlierMinMonths = "validation.outlier_min_months"
	KeyValidationMaxCostPerDoor   = "validation.max_cost_per_door"
	KeyValidationDisabledRules    = "validation.disabled_rules"

	KeyReportFormats         = "report.formats"
	KeyReportOutputDir       = "report.output_dir"
	KeyReportName            = "report.name"
	KeyReportTitle           = "report.title"
	KeyReportCurrencyFormat  = "report.currency_format"
	KeyReportIncludeInvoices = "report.include_invoices"
	KeyReportMaxIssues       = "report.max_issues"
	KeyReportNotes           = "report.notes"
	KeyReportDropDuplicates  = "report.drop_duplicates"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
	KeyLogFile   = "log.file"
	KeyVerbose   = "verbose"
)

// SetDefaults registers the default of every setting
func SetDefaults(v *viper.Viper) {
	ex := extract.DefaultConfig()
	v.SetDefault(KeyExtractMaxConcurrentFiles, ex.MaxConcurrentFiles)
	v.SetDefault(KeyExtractMinConfidence, ex.MinConfidence)
	v.SetDefault(KeyExtractHeaderSearchRows, ex.HeaderSearchRows)

	m := matcher.DefaultMatchingConfig()
	v.SetDefault(KeyMatchingAccount, m.EnableAccountMatching)
	v.SetDefault(KeyMatchingAddress, m.EnableAddressMatching)
	v.SetDefault(KeyMatchingFuzzy, m.EnableFuzzyMatching)
	v.SetDefault(KeyMatchingMinFuzzyScore, m.MinFuzzyScore)

	val := validation.DefaultConfig()
	v.SetDefault(KeyValidationAmountTolerance, val.AmountTolerance)
	v.SetDefault(KeyValidationMinConfidence, val.MinConfidence)
	v.SetDefault(KeyValidationOutlierPercent, val.OutlierPercent)
	v.SetDefault(KeyValidationOutlierMinMonths, val.OutlierMinMonths)
	v.SetDefault(KeyValidationMaxCostPerDoor, val.MaxCostPerDoor)

	r := render.DefaultConfig()
	v.SetDefault(KeyReportFormats, []string{"xlsx", "html", "markdown"})
	v.SetDefault(KeyReportOutputDir, "reports")
	v.SetDefault(KeyReportName, "waste-report")
	v.SetDefault(KeyReportCurrencyFormat, r.CurrencyFormat)
	v.SetDefault(KeyReportIncludeInvoices, r.IncludeInvoices)
	v.SetDefault(KeyReportMaxIssues, r.MaxIssues)
	v.SetDefault(KeyReportDropDuplicates, pipeline.DefaultConfig().DropDuplicates)

	l := logger.DefaultConfig()
	v.SetDefault(KeyLogLevel, string(l.Level))
	v.SetDefault(KeyLogFormat, string(l.Format))
}

// Load applies defaults, reads the optional config file and enables
// environment overrides. Nested keys map to variables with underscores,
// so validation.min_confidence is WASTEREPORT_VALIDATION_MIN_CONFIDENCE.
func Load(v *viper.Viper, path string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "config", path, err).
			WithSuggestion("Check that the config file exists and is valid YAML")
	}
	return nil
}

// Extract builds the extraction configuration
func Extract(v *viper.Viper) (*extract.Config, error) {
	cfg := extract.DefaultConfig()
	cfg.MaxConcurrentFiles = v.GetInt(KeyExtractMaxConcurrentFiles)
	cfg.MinConfidence = v.GetFloat64(KeyExtractMinConfidence)
	cfg.HeaderSearchRows = v.GetInt(KeyExtractHeaderSearchRows)

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "extract", nil, err)
	}
	return cfg, nil
}

// Matching builds the property matching configuration
func Matching(v *viper.Viper) (*matcher.MatchingConfig, error) {
	cfg := matcher.DefaultMatchingConfig()
	cfg.EnableAccountMatching = v.GetBool(KeyMatchingAccount)
	cfg.EnableAddressMatching = v.GetBool(KeyMatchingAddress)
	cfg.EnableFuzzyMatching = v.GetBool(KeyMatchingFuzzy)
	cfg.MinFuzzyScore = v.GetFloat64(KeyMatchingMinFuzzyScore)
	if words := v.GetStringSlice(KeyMatchingStopwords); len(words) > 0 {
		cfg.Stopwords = words
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", nil, err)
	}
	return cfg, nil
}

// Validation builds the validation rule configuration
func Validation(v *viper.Viper) (*validation.Config, error) {
	cfg := &validation.Config{
		AmountTolerance:  v.GetFloat64(KeyValidationAmountTolerance),
		MinConfidence:    v.GetFloat64(KeyValidationMinConfidence),
		OutlierPercent:   v.GetFloat64(KeyValidationOutlierPercent),
		OutlierMinMonths: v.GetInt(KeyValidationOutlierMinMonths),
		MaxCostPerDoor:   v.GetFloat64(KeyValidationMaxCostPerDoor),
		DisabledRules:    splitList(v.GetStringSlice(KeyValidationDisabledRules)),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Pipeline builds the full run configuration
func Pipeline(v *viper.Viper) (*pipeline.Config, error) {
	ex, err := Extract(v)
	if err != nil {
		return nil, err
	}
	m, err := Matching(v)
	if err != nil {
		return nil, err
	}
	val, err := Validation(v)
	if err != nil {
		return nil, err
	}
	return &pipeline.Config{
		Extract:        ex,
		Matching:       m,
		Validation:     val,
		DropDuplicates: v.GetBool(KeyReportDropDuplicates),
	}, nil
}

// Render builds the report content configuration
func Render(v *viper.Viper) (*render.Config, error) {
	cfg := &render.Config{
		Title:           v.GetString(KeyReportTitle),
		CurrencyFormat:  v.GetString(KeyReportCurrencyFormat),
		IncludeInvoices: v.GetBool(KeyReportIncludeInvoices),
		MaxIssues:       v.GetInt(KeyReportMaxIssues),
		Notes:           v.GetString(KeyReportNotes),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Formats parses the configured output formats
func Formats(v *viper.Viper) ([]render.Format, error) {
	return render.ParseFormats(v.GetStringSlice(KeyReportFormats))
}

// Logger builds the logger configuration. Verbose raises the level to debug.
func Logger(v *viper.Viper) (*logger.Config, error) {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.Level(strings.ToLower(v.GetString(KeyLogLevel)))
	cfg.Format = logger.Format(strings.ToLower(v.GetString(KeyLogFormat)))
	if file := v.GetString(KeyLogFile); file != "" {
		cfg.Output = logger.FileOutput
		cfg.File = file
	}
	if v.GetBool(KeyVerbose) {
		debug := logger.DebugConfig()
		debug.Format, debug.Output, debug.File = cfg.Format, cfg.Output, cfg.File
		cfg = debug
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "log", nil, err).
			WithSuggestion("Use log level debug, info, warn or error and format text or json")
	}
	return cfg, nil
}

// splitList accepts both YAML lists and comma separated env values
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

// Describe lists every effective setting, for --verbose runs
func Describe(v *viper.Viper) string {
	var b strings.Builder
	keys := v.AllKeys()
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", k, v.Get(k))
	}
	return b.String()
}
