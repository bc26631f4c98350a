// Package matcher assigns extracted invoices to the properties of a roster.
//
// Haulers rarely print the owner's property code, so an invoice is matched
// by trying progressively weaker evidence:
//  1. An explicit property code (spreadsheet exports usually carry one)
//  2. The hauler account number registered for the property
//  3. The exact property name or one of its aliases
//  4. The service address
//  5. Token overlap between the invoice's site name or address and the
//     property's names, ignoring filler words
//
// Example usage:
//
//	engine, err := matcher.NewMatchingEngine(roster.Properties, matcher.DefaultMatchingConfig())
//	unmatched := engine.AssignProperties(invoices)
package matcher

import (
	"fmt"
	"strings"
)

// MatchStrategy records which kind of evidence tied an invoice to a property
type MatchStrategy int

const (
	// StrategyPropertyCode matched on an explicit roster code
	StrategyPropertyCode MatchStrategy = iota

	// StrategyAccount matched on a hauler account number
	StrategyAccount

	// StrategyName matched a property name or alias exactly after normalisation
	StrategyName

	// StrategyAddress matched the service address
	StrategyAddress

	// StrategyFuzzy matched by token overlap above MinFuzzyScore.
	// These assignments deserve a look before the report goes out.
	StrategyFuzzy

	// StrategyNone means no property could be found
	StrategyNone
)

// String returns the string representation of MatchStrategy
func (s MatchStrategy) String() string {
	switch s {
	case StrategyPropertyCode:
		return "property_code"
	case StrategyAccount:
		return "account"
	case StrategyName:
		return "name"
	case StrategyAddress:
		return "address"
	case StrategyFuzzy:
		return "fuzzy"
	case StrategyNone:
		return "none"
	default:
		return "unknown"
	}
}

// defaultStopwords are dropped before comparing names by token overlap
var defaultStopwords = []string{
	"the", "at", "of", "on", "and", "apartments", "apartment", "apts", "apt",
	"homes", "residences", "community", "llc", "lp", "inc",
}

// MatchingConfig holds configuration for invoice to property matching
type MatchingConfig struct {
	// EnableAccountMatching allows hauler account numbers to identify a property
	EnableAccountMatching bool `json:"enable_account_matching" mapstructure:"enable_account_matching"`

	// EnableAddressMatching allows the service address to identify a property
	EnableAddressMatching bool `json:"enable_address_matching" mapstructure:"enable_address_matching"`

	// EnableFuzzyMatching enables token overlap matching as a last resort
	EnableFuzzyMatching bool `json:"enable_fuzzy_matching" mapstructure:"enable_fuzzy_matching"`

	// MinFuzzyScore is the minimum Jaccard similarity (0.0 to 1.0) for a fuzzy match
	MinFuzzyScore float64 `json:"min_fuzzy_score" mapstructure:"min_fuzzy_score"`

	// Stopwords are ignored when tokenising names for fuzzy matching
	Stopwords []string `json:"stopwords" mapstructure:"stopwords"`
}

// DefaultMatchingConfig returns a configuration with sensible defaults
func DefaultMatchingConfig() *MatchingConfig {
	return &MatchingConfig{
		EnableAccountMatching: true,
		EnableAddressMatching: true,
		EnableFuzzyMatching:   true,
		MinFuzzyScore:         0.5,
		Stopwords:             append([]string(nil), defaultStopwords...),
	}
}

// StrictMatchingConfig only accepts codes, account numbers and exact names
func StrictMatchingConfig() *MatchingConfig {
	cfg := DefaultMatchingConfig()
	cfg.EnableAddressMatching = false
	cfg.EnableFuzzyMatching = false
	cfg.MinFuzzyScore = 1.0
	return cfg
}

// Validate checks if the matching configuration is valid
func (mc *MatchingConfig) Validate() error {
	if mc.MinFuzzyScore < 0.0 || mc.MinFuzzyScore > 1.0 {
		return fmt.Errorf("minimum fuzzy score must be between 0.0 and 1.0: %f", mc.MinFuzzyScore)
	}
	for _, w := range mc.Stopwords {
		if strings.TrimSpace(w) == "" {
			return fmt.Errorf("stopwords cannot be empty")
		}
	}
	return nil
}

// Clone creates a deep copy of the matching configuration
func (mc *MatchingConfig) Clone() *MatchingConfig {
	if mc == nil {
		return nil
	}
	clone := *mc
	clone.Stopwords = append([]string(nil), mc.Stopwords...)
	return &clone
}

// String returns a human-readable description of the configuration
func (mc *MatchingConfig) String() string {
	return fmt.Sprintf("MatchingConfig{Account: %t, Address: %t, Fuzzy: %t, MinFuzzyScore: %.2f}",
		mc.EnableAccountMatching, mc.EnableAddressMatching, mc.EnableFuzzyMatching, mc.MinFuzzyScore)
}
