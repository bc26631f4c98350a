package matcher

import (
	"fmt"
	"sort"

	"orion-waste-reports/internal/models"
	"orion-waste-reports/pkg/errors"
	"orion-waste-reports/pkg/logger"
)

// MatchingEngine assigns invoices to roster properties
type MatchingEngine struct {
	Config *MatchingConfig
	Index  *PropertyIndex
	logger logger.Logger
}

// MatchResult is the outcome of matching one invoice
type MatchResult struct {
	Invoice  *models.Invoice
	Property *models.Property
	Strategy MatchStrategy
	Score    float64
	Reasons  []string
}

// Matched reports whether a property was found
func (mr *MatchResult) Matched() bool {
	return mr.Property != nil
}

// AssignmentSummary counts how invoices were assigned
type AssignmentSummary struct {
	Total      int                   `json:"total"`
	Assigned   int                   `json:"assigned"`
	Unmatched  int                   `json:"unmatched"`
	ByStrategy map[MatchStrategy]int `json:"-"`
}

// NewMatchingEngine creates an engine over the given properties
func NewMatchingEngine(properties []*models.Property, config *MatchingConfig) (*MatchingEngine, error) {
	if config == nil {
		config = DefaultMatchingConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", config.String(), err)
	}
	if len(properties) == 0 {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "roster.properties", nil, nil)
	}

	return &MatchingEngine{
		Config: config,
		Index:  NewPropertyIndex(properties, config.Stopwords),
		logger: logger.GetGlobalLogger().WithComponent("matcher"),
	}, nil
}

// Match finds the property for an invoice, trying strategies from strongest
// to weakest evidence
func (me *MatchingEngine) Match(inv *models.Invoice) *MatchResult {
	result := &MatchResult{Invoice: inv, Strategy: StrategyNone}

	for _, candidate := range []string{inv.PropertyCode, inv.PropertyName} {
		if p := me.Index.ByCode(candidate); p != nil {
			return me.matched(result, p, StrategyPropertyCode, 1.0,
				fmt.Sprintf("property code %q", candidate))
		}
	}

	if me.Config.EnableAccountMatching {
		if p := me.Index.ByAccount(inv.AccountNumber); p != nil {
			return me.matched(result, p, StrategyAccount, 1.0,
				fmt.Sprintf("account number %s", inv.AccountNumber))
		}
	}

	if p := me.Index.ByName(inv.PropertyName); p != nil {
		return me.matched(result, p, StrategyName, 1.0,
			fmt.Sprintf("property name %q", inv.PropertyName))
	}

	if me.Config.EnableAddressMatching {
		if p := me.Index.ByAddress(inv.ServiceAddress); p != nil {
			return me.matched(result, p, StrategyAddress, 1.0,
				fmt.Sprintf("service address %q", inv.ServiceAddress))
		}
	}

	if me.Config.EnableFuzzyMatching {
		if p, score := me.bestFuzzy(inv); p != nil && score >= me.Config.MinFuzzyScore {
			return me.matched(result, p, StrategyFuzzy, score,
				fmt.Sprintf("name similarity %.2f", score))
		}
	}

	result.Reasons = append(result.Reasons, "no property code, account, name or address matched the roster")
	return result
}

func (me *MatchingEngine) matched(result *MatchResult, p *models.Property, strategy MatchStrategy, score float64, reason string) *MatchResult {
	result.Property = p
	result.Strategy = strategy
	result.Score = score
	result.Reasons = append(result.Reasons, reason)
	return result
}

// bestFuzzy scores the invoice's site name and address against every
// property's name tokens. Ties go to the lower property code.
func (me *MatchingEngine) bestFuzzy(inv *models.Invoice) (*models.Property, float64) {
	var sources []map[string]bool
	for _, s := range []string{inv.PropertyName, inv.ServiceAddress} {
		if tokens := me.Index.Tokens(s); len(tokens) > 0 {
			sources = append(sources, tokens)
		}
	}
	if len(sources) == 0 {
		return nil, 0
	}

	var best *models.Property
	bestScore := 0.0
	for _, p := range me.Index.AllProperties {
		for _, nameTokens := range me.Index.TokenIndex[p.Code] {
			for _, src := range sources {
				if score := Jaccard(src, nameTokens); score > bestScore {
					best, bestScore = p, score
				}
			}
		}
	}
	return best, bestScore
}

// MatchAll matches every invoice without modifying it
func (me *MatchingEngine) MatchAll(invoices []*models.Invoice) []*MatchResult {
	results := make([]*MatchResult, len(invoices))
	for i, inv := range invoices {
		results[i] = me.Match(inv)
	}
	return results
}

// AssignProperties sets PropertyCode and PropertyName on every matched
// invoice and returns the invoices no property could be found for. Unmatched
// invoices keep their site name hint but lose any unknown property code.
func (me *MatchingEngine) AssignProperties(invoices []*models.Invoice) []*models.Invoice {
	summary := me.assign(invoices)
	var unmatched []*models.Invoice
	for _, inv := range invoices {
		if inv.PropertyCode == "" {
			unmatched = append(unmatched, inv)
		}
	}
	sort.SliceStable(unmatched, func(i, j int) bool {
		return unmatched[i].SourceFile < unmatched[j].SourceFile
	})

	me.logger.WithFields(logger.Fields{
		"total":     summary.Total,
		"assigned":  summary.Assigned,
		"unmatched": summary.Unmatched,
		"fuzzy":     summary.ByStrategy[StrategyFuzzy],
	}).Info("Assigned invoices to properties")

	return unmatched
}

// Assign is AssignProperties returning per-strategy counts
func (me *MatchingEngine) Assign(invoices []*models.Invoice) *AssignmentSummary {
	return me.assign(invoices)
}

func (me *MatchingEngine) assign(invoices []*models.Invoice) *AssignmentSummary {
	summary := &AssignmentSummary{
		Total:      len(invoices),
		ByStrategy: make(map[MatchStrategy]int),
	}

	for _, inv := range invoices {
		result := me.Match(inv)
		summary.ByStrategy[result.Strategy]++

		if !result.Matched() {
			inv.PropertyCode = ""
			summary.Unmatched++
			me.logger.WithFields(logger.Fields{
				"invoice":     inv.InvoiceNumber,
				"vendor":      inv.Vendor,
				"source_file": inv.SourceFile,
				"site":        inv.PropertyName,
			}).Debug("No property matched")
			continue
		}

		inv.PropertyCode = result.Property.Code
		inv.PropertyName = result.Property.Name
		summary.Assigned++

		if result.Strategy == StrategyFuzzy {
			me.logger.WithFields(logger.Fields{
				"invoice":  inv.InvoiceNumber,
				"property": result.Property.Code,
				"score":    fmt.Sprintf("%.2f", result.Score),
			}).Warn("Invoice assigned by fuzzy name match")
		}
	}
	return summary
}
