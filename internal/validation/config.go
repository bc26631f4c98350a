package validation

import (
	"fmt"
	"strings"

	"orion-waste-reports/pkg/errors"

	"github.com/shopspring/decimal"
)

// Config holds the thresholds used by the validation rules
type Config struct {
	// AmountTolerance is the largest accepted gap between line items and total
	AmountTolerance float64 `json:"amount_tolerance" mapstructure:"amount_tolerance"`

	// MinConfidence flags document extractions below this confidence
	MinConfidence float64 `json:"min_confidence" mapstructure:"min_confidence"`

	// OutlierPercent is the deviation from a property's monthly mean that
	// counts as an outlier
	OutlierPercent float64 `json:"outlier_percent" mapstructure:"outlier_percent"`

	// OutlierMinMonths is how many months of data a property needs before
	// outliers are reported
	OutlierMinMonths int `json:"outlier_min_months" mapstructure:"outlier_min_months"`

	// MaxCostPerDoor flags months above this cost per unit; zero disables the rule
	MaxCostPerDoor float64 `json:"max_cost_per_door" mapstructure:"max_cost_per_door"`

	// DisabledRules lists rule names to skip
	DisabledRules []string `json:"disabled_rules" mapstructure:"disabled_rules"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		AmountTolerance:  0.01,
		MinConfidence:    0.67,
		OutlierPercent:   50,
		OutlierMinMonths: 3,
		MaxCostPerDoor:   0,
	}
}

// Validate checks the thresholds and rule names
func (c *Config) Validate() error {
	if c.AmountTolerance < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "validation.amount_tolerance", c.AmountTolerance,
			fmt.Errorf("amount tolerance cannot be negative"))
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "validation.min_confidence", c.MinConfidence,
			fmt.Errorf("confidence must be between 0 and 1"))
	}
	if c.OutlierPercent <= 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "validation.outlier_percent", c.OutlierPercent,
			fmt.Errorf("outlier percent must be positive"))
	}
	if c.OutlierMinMonths < 2 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "validation.outlier_min_months", c.OutlierMinMonths,
			fmt.Errorf("at least 2 months are needed to compare against a mean"))
	}
	if c.MaxCostPerDoor < 0 {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "validation.max_cost_per_door", c.MaxCostPerDoor,
			fmt.Errorf("cost per door limit cannot be negative"))
	}
	for _, name := range c.DisabledRules {
		if _, ok := rules[strings.TrimSpace(name)]; !ok {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "validation.disabled_rules", name,
				fmt.Errorf("unknown rule, valid rules are: %s", strings.Join(AllRules, ", ")))
		}
	}
	return nil
}

// IsEnabled reports whether a rule should run
func (c *Config) IsEnabled(rule string) bool {
	for _, name := range c.DisabledRules {
		if strings.TrimSpace(name) == rule {
			return false
		}
	}
	if rule == RuleCostPerDoor && c.MaxCostPerDoor <= 0 {
		return false
	}
	return true
}

func (c *Config) tolerance() decimal.Decimal {
	return decimal.NewFromFloat(c.AmountTolerance)
}
