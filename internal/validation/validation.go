// Package validation checks extracted invoices and monthly totals for the
// problems a property accountant would otherwise catch by hand: missing
// fields, duplicates, totals that don't add up, gaps and outliers.
package validation

import (
	"fmt"
	"sort"
	"strings"

	"orion-waste-reports/internal/aggregate"
	"orion-waste-reports/internal/models"
	"orion-waste-reports/internal/portfolio"
	"orion-waste-reports/pkg/logger"

	"github.com/shopspring/decimal"
)

// Severity ranks how serious an issue is
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Rule names
const (
	RuleRequiredFields       = "required_fields"
	RuleUnassignedProperty   = "unassigned_property"
	RuleDuplicateInvoice     = "duplicate_invoice"
	RuleLineItemMismatch     = "line_item_mismatch"
	RuleNegativeTotal        = "negative_total"
	RuleLowConfidence        = "low_confidence"
	RuleMissingMonth         = "missing_month"
	RuleMonthlyOutlier       = "monthly_outlier"
	RuleCostPerDoor          = "cost_per_door"
	RuleContaminationCharges = "contamination_charges"
)

// AllRules lists every rule in evaluation order
var AllRules = []string{
	RuleRequiredFields,
	RuleUnassignedProperty,
	RuleDuplicateInvoice,
	RuleLineItemMismatch,
	RuleNegativeTotal,
	RuleLowConfidence,
	RuleMissingMonth,
	RuleMonthlyOutlier,
	RuleCostPerDoor,
	RuleContaminationCharges,
}

// Issue is one finding
type Issue struct {
	Severity     Severity        `json:"severity"`
	Rule         string          `json:"rule"`
	PropertyCode string          `json:"property_code,omitempty"`
	Month        string          `json:"month,omitempty"`
	InvoiceKey   string          `json:"invoice_key,omitempty"`
	SourceFile   string          `json:"source_file,omitempty"`
	Message      string          `json:"message"`
	Amount       decimal.Decimal `json:"amount"`
}

// String returns a one-line rendering of the issue
func (i *Issue) String() string {
	var where []string
	if i.PropertyCode != "" {
		where = append(where, i.PropertyCode)
	}
	if i.Month != "" {
		where = append(where, i.Month)
	}
	if len(where) == 0 {
		return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Rule, i.Message)
	}
	return fmt.Sprintf("[%s] %s (%s): %s", i.Severity, i.Rule, strings.Join(where, " "), i.Message)
}

// Status is a property's overall validation result
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Report holds all issues from a validation run
type Report struct {
	Issues          []*Issue          `json:"issues"`
	ErrorCount      int               `json:"error_count"`
	WarningCount    int               `json:"warning_count"`
	InfoCount       int               `json:"info_count"`
	PropertyStatus  map[string]Status `json:"property_status"`
	InvoicesChecked int               `json:"invoices_checked"`
	RulesRun        []string          `json:"rules_run"`
}

// Passed reports whether no error-severity issue was found
func (r *Report) Passed() bool {
	return r.ErrorCount == 0
}

// IssuesFor returns the issues raised against a property
func (r *Report) IssuesFor(propertyCode string) []*Issue {
	var out []*Issue
	for _, i := range r.Issues {
		if i.PropertyCode == propertyCode {
			out = append(out, i)
		}
	}
	return out
}

// CountByRule returns how many issues each rule raised
func (r *Report) CountByRule() map[string]int {
	counts := make(map[string]int)
	for _, i := range r.Issues {
		counts[i.Rule]++
	}
	return counts
}

// String returns a short summary of the report
func (r *Report) String() string {
	return fmt.Sprintf("%d invoices checked: %d errors, %d warnings, %d info",
		r.InvoicesChecked, r.ErrorCount, r.WarningCount, r.InfoCount)
}

// Validator runs the enabled rules
type Validator struct {
	config *Config
	logger logger.Logger
}

// NewValidator creates a validator
func NewValidator(config *Config) (*Validator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Validator{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("validation"),
	}, nil
}

// check holds the state shared by the rules of one run
type check struct {
	config   *Config
	invoices []*models.Invoice
	roster   *portfolio.Roster
	months   []string
	summary  *aggregate.Summary
	issues   []*Issue
}

func (c *check) add(issue *Issue) {
	c.issues = append(c.issues, issue)
}

func invoiceIssue(severity Severity, rule string, inv *models.Invoice, amount decimal.Decimal, format string, args ...interface{}) *Issue {
	return &Issue{
		Severity:     severity,
		Rule:         rule,
		PropertyCode: inv.PropertyCode,
		Month:        inv.Month(),
		InvoiceKey:   inv.Key(),
		SourceFile:   inv.SourceFile,
		Message:      fmt.Sprintf(format, args...),
		Amount:       amount,
	}
}

var rules = map[string]func(*check){
	RuleRequiredFields:       checkRequiredFields,
	RuleUnassignedProperty:   checkUnassigned,
	RuleDuplicateInvoice:     checkDuplicates,
	RuleLineItemMismatch:     checkLineItems,
	RuleNegativeTotal:        checkNegativeTotals,
	RuleLowConfidence:        checkConfidence,
	RuleMissingMonth:         checkMissingMonths,
	RuleMonthlyOutlier:       checkOutliers,
	RuleCostPerDoor:          checkCostPerDoor,
	RuleContaminationCharges: checkContamination,
}

// Validate runs every enabled rule over the invoices. months is the report
// range; nil derives it from the invoices. Month-level rules see each
// duplicate once; the copies are reported by duplicate_invoice.
func (v *Validator) Validate(invoices []*models.Invoice, roster *portfolio.Roster, months []string) *Report {
	if months == nil {
		months = aggregate.MonthsFromInvoices(invoices)
	}
	kept, _ := aggregate.Deduplicate(invoices)
	return v.ValidateSummary(invoices, roster, aggregate.Aggregate(kept, roster, months))
}

// ValidateSummary runs every enabled rule, judging the month-level rules on
// an already aggregated summary so they agree with the rendered report.
func (v *Validator) ValidateSummary(invoices []*models.Invoice, roster *portfolio.Roster, summary *aggregate.Summary) *Report {
	c := &check{
		config:   v.config,
		invoices: invoices,
		roster:   roster,
		months:   summary.Months,
		summary:  summary,
	}

	report := &Report{
		InvoicesChecked: len(invoices),
		PropertyStatus:  make(map[string]Status, len(roster.Properties)),
	}

	for _, name := range AllRules {
		if !v.config.IsEnabled(name) {
			v.logger.WithField("rule", name).Debug("Rule disabled")
			continue
		}
		before := len(c.issues)
		rules[name](c)
		report.RulesRun = append(report.RulesRun, name)
		v.logger.WithFields(logger.Fields{
			"rule":   name,
			"issues": len(c.issues) - before,
		}).Debug("Rule evaluated")
	}

	sort.SliceStable(c.issues, func(i, j int) bool {
		a, b := c.issues[i], c.issues[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		if a.PropertyCode != b.PropertyCode {
			return a.PropertyCode < b.PropertyCode
		}
		return a.Month < b.Month
	})
	report.Issues = c.issues

	for _, p := range roster.Properties {
		report.PropertyStatus[p.Code] = StatusPass
	}
	for _, issue := range report.Issues {
		switch issue.Severity {
		case SeverityError:
			report.ErrorCount++
		case SeverityWarning:
			report.WarningCount++
		default:
			report.InfoCount++
		}

		current, ok := report.PropertyStatus[issue.PropertyCode]
		if !ok {
			continue
		}
		switch {
		case issue.Severity == SeverityError:
			report.PropertyStatus[issue.PropertyCode] = StatusFail
		case issue.Severity == SeverityWarning && current == StatusPass:
			report.PropertyStatus[issue.PropertyCode] = StatusWarn
		}
	}

	v.logger.WithFields(logger.Fields{
		"invoices": report.InvoicesChecked,
		"errors":   report.ErrorCount,
		"warnings": report.WarningCount,
		"info":     report.InfoCount,
	}).Info("Validation completed")

	return report
}
