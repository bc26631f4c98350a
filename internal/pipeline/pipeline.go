// Package pipeline runs the full waste report workflow.
//
// A run loads the portfolio roster, extracts invoices from every input file,
// assigns invoices to properties, filters them to the report months,
// aggregates monthly spend and validates the result. Progress callbacks
// receive a snapshot after each step.
//
// Example usage:
//
//	service, err := pipeline.NewService(pipeline.DefaultConfig())
//	service.AddProgressCallback(func(p *pipeline.Progress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.CurrentStep)
//	})
//	result, err := service.Run(ctx, &pipeline.Request{
//		Inputs:     []string{"invoices/2024-03"},
//		RosterPath: "portfolio.yaml",
//	})
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"orion-waste-reports/internal/aggregate"
	"orion-waste-reports/internal/extract"
	"orion-waste-reports/internal/matcher"
	"orion-waste-reports/internal/models"
	"orion-waste-reports/internal/portfolio"
	"orion-waste-reports/internal/validation"
	"orion-waste-reports/pkg/errors"
	"orion-waste-reports/pkg/logger"
)

// Step names reported through Progress.CurrentStep
const (
	StepLoadRoster = "Loading portfolio roster"
	StepExtract    = "Extracting invoices"
	StepAssign     = "Assigning properties"
	StepFilter     = "Filtering report months"
	StepAggregate  = "Aggregating expenses"
	StepValidate   = "Validating invoices"
	StepCompleted  = "Completed"
)

const totalSteps = 6

// Config bundles the settings of every stage
type Config struct {
	Extract    *extract.Config         `json:"extract" mapstructure:"extract"`
	Matching   *matcher.MatchingConfig `json:"matching" mapstructure:"matching"`
	Validation *validation.Config      `json:"validation" mapstructure:"validation"`

	// DropDuplicates removes repeated vendor and invoice number pairs before
	// aggregation. Validation still reports them.
	DropDuplicates bool `json:"drop_duplicates" mapstructure:"drop_duplicates"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Extract:        extract.DefaultConfig(),
		Matching:       matcher.DefaultMatchingConfig(),
		Validation:     validation.DefaultConfig(),
		DropDuplicates: true,
	}
}

// Validate checks every stage configuration
func (c *Config) Validate() error {
	if c.Extract == nil || c.Matching == nil || c.Validation == nil {
		return errors.ConfigurationError(errors.CodeMissingConfig, "pipeline", nil,
			fmt.Errorf("extract, matching and validation configs are required"))
	}
	if err := c.Extract.Validate(); err != nil {
		return errors.WrapIfNeeded(err, errors.CategoryConfiguration, errors.CodeInvalidConfig, "invalid extract configuration")
	}
	if err := c.Matching.Validate(); err != nil {
		return errors.WrapIfNeeded(err, errors.CategoryConfiguration, errors.CodeInvalidConfig, "invalid matching configuration")
	}
	return c.Validation.Validate()
}

// Request describes one run
type Request struct {
	// Inputs are invoice files or directories
	Inputs []string

	// RosterPath is the portfolio YAML file; ignored when Roster is set
	RosterPath string

	// Roster is an already loaded roster
	Roster *portfolio.Roster

	// StartMonth and EndMonth bound the report (YYYY-MM, inclusive).
	// An empty bound is taken from the extracted invoices.
	StartMonth string
	EndMonth   string

	// Recursive descends into subdirectories of input directories
	Recursive bool
}

// Validate validates the request
func (r *Request) Validate() error {
	if len(r.Inputs) == 0 {
		return errors.ValidationError(errors.CodeMissingField, "inputs", nil,
			fmt.Errorf("at least one input file or directory is required"))
	}
	if r.Roster == nil && r.RosterPath == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, "roster", "",
			fmt.Errorf("a portfolio roster is required"))
	}
	for _, m := range []struct{ name, value string }{{"start_month", r.StartMonth}, {"end_month", r.EndMonth}} {
		if m.value == "" {
			continue
		}
		if _, err := models.ParseMonth(m.value); err != nil {
			return errors.ValidationError(errors.CodeInvalidDate, m.name, m.value, err)
		}
	}
	if r.StartMonth != "" && r.EndMonth != "" && r.StartMonth > r.EndMonth {
		return errors.ValidationError(errors.CodeOutOfRange, "start_month", r.StartMonth,
			fmt.Errorf("start month %s is after end month %s", r.StartMonth, r.EndMonth))
	}
	return nil
}

// Progress is a snapshot of a run
type Progress struct {
	TotalSteps         int           `json:"total_steps"`
	CompletedSteps     int           `json:"completed_steps"`
	CurrentStep        string        `json:"current_step"`
	PercentComplete    float64       `json:"percent_complete"`
	StartTime          time.Time     `json:"start_time"`
	ElapsedTime        time.Duration `json:"elapsed_time"`
	EstimatedRemaining time.Duration `json:"estimated_remaining"`
	FilesExtracted     int           `json:"files_extracted"`
	TotalFiles         int           `json:"total_files"`
}

// ProgressCallback is called to report run progress
type ProgressCallback func(*Progress)

// Result is the outcome of a run
type Result struct {
	Roster     *portfolio.Roster
	Months     []string
	Invoices   []*models.Invoice
	Extraction *extract.BatchResult
	Assignment *matcher.AssignmentSummary
	Validation *validation.Report
	Summary    *aggregate.Summary

	// Unmatched invoices have no roster property
	Unmatched []*models.Invoice

	// Duplicates were left out of the summary when DropDuplicates is set
	Duplicates []*models.Invoice

	// Filtered counts invoices dated outside the requested months
	Filtered int

	Duration time.Duration
}

// Service runs the workflow
type Service struct {
	config    *Config
	extractor *extract.Extractor
	validator *validation.Validator
	logger    logger.Logger

	callbacks     []ProgressCallback
	progress      *Progress
	progressMutex sync.Mutex
}

// NewService creates a service; a nil config uses DefaultConfig
func NewService(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	extractor, err := extract.NewExtractor(config.Extract, nil)
	if err != nil {
		return nil, err
	}
	validator, err := validation.NewValidator(config.Validation)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:    config,
		extractor: extractor,
		validator: validator,
		logger:    logger.GetGlobalLogger().WithComponent("pipeline"),
		progress:  &Progress{TotalSteps: totalSteps},
	}, nil
}

// Config returns the service configuration
func (s *Service) Config() *Config {
	return s.config
}

// Extractor returns the invoice extractor
func (s *Service) Extractor() *extract.Extractor {
	return s.extractor
}

// AddProgressCallback adds a progress callback function
func (s *Service) AddProgressCallback(callback ProgressCallback) {
	s.callbacks = append(s.callbacks, callback)
}

// Extract expands the inputs and extracts every file. It is the first half
// of Run, for callers that only want invoices.
func (s *Service) Extract(ctx context.Context, inputs []string, recursive bool) (*extract.BatchResult, error) {
	files, err := extract.ExpandInputs(inputs, recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.FileError(errors.CodeFileNotFound, inputs[0], fmt.Errorf("no supported invoice files found")).
			WithSuggestion("Inputs must contain .pdf, .txt, .xlsx or .csv files")
	}

	s.setFiles(0, len(files))
	batch := s.extractor.ExtractFilesWithCallback(ctx, files, func(path string, done, total int, err error) {
		s.setFiles(done, total)
	})

	if err := ctx.Err(); err != nil {
		return batch, errors.InternalError(errors.CodeCancelled, "extraction", err)
	}
	if len(batch.Invoices) == 0 {
		appErr := errors.ExtractionError(errors.CodeNoInvoices, strings.Join(inputs, ", "), "",
			fmt.Errorf("no invoices could be extracted from %d files", len(files))).
			WithContext("files_failed", batch.Stats.FilesFailed)
		if len(batch.Errors) > 0 {
			appErr.WithContext("first_error", batch.Errors[0].Error())
		}
		return batch, appErr
	}
	if len(batch.Errors) > 0 {
		summary := errors.NewErrorSummary(batch.Errors)
		s.logger.WithFields(logger.Fields{
			"files_failed": summary.Total,
			"by_category":  summary.ByCategory,
		}).Warn("Some files could not be read")
		if summary.HasCode(errors.CodeNoTextLayer) {
			s.logger.Warn("Scanned PDFs need their OCR text saved next to them as .txt files")
		}
		if summary.HasCategory(errors.CategoryFile) {
			s.logger.Warn("Some inputs could not be opened; check they are readable and not damaged")
		}
	}
	return batch, nil
}

// Run executes the workflow
func (s *Service) Run(ctx context.Context, req *Request) (*Result, error) {
	if req == nil {
		return nil, errors.ValidationError(errors.CodeMissingField, "request", nil, fmt.Errorf("request is required"))
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"inputs":      len(req.Inputs),
		"roster":      req.RosterPath,
		"start_month": req.StartMonth,
		"end_month":   req.EndMonth,
	}).Info("Starting waste report run")

	s.initializeProgress()
	start := time.Now()
	result := &Result{}

	// Step 1: roster
	s.updateProgress(StepLoadRoster, 0)
	roster := req.Roster
	if roster == nil {
		var err error
		if roster, err = portfolio.LoadRoster(req.RosterPath); err != nil {
			return nil, err
		}
	}
	result.Roster = roster

	// Step 2: extraction
	s.updateProgress(StepExtract, 1)
	batch, err := s.Extract(ctx, req.Inputs, req.Recursive)
	result.Extraction = batch
	if err != nil {
		return result, err
	}

	// Step 3: property assignment
	s.updateProgress(StepAssign, 2)
	engine, err := matcher.NewMatchingEngine(roster.Properties, s.config.Matching)
	if err != nil {
		return result, errors.WrapIfNeeded(err, errors.CategoryConfiguration, errors.CodeInvalidConfig, "failed to create matching engine")
	}
	result.Assignment = engine.Assign(batch.Invoices)
	for _, inv := range batch.Invoices {
		if inv.PropertyCode == "" {
			result.Unmatched = append(result.Unmatched, inv)
		}
	}

	// Step 4: month filter
	s.updateProgress(StepFilter, 3)
	if err := ctx.Err(); err != nil {
		return result, errors.InternalError(errors.CodeCancelled, "pipeline", err)
	}
	result.Invoices, result.Filtered = FilterMonths(batch.Invoices, req.StartMonth, req.EndMonth)
	result.Months, err = ReportMonths(result.Invoices, req.StartMonth, req.EndMonth)
	if err != nil {
		return result, err
	}

	// Step 5: aggregation
	s.updateProgress(StepAggregate, 4)
	invoices := result.Invoices
	if s.config.DropDuplicates {
		invoices, result.Duplicates = aggregate.Deduplicate(invoices)
		if len(result.Duplicates) > 0 {
			s.logger.WithField("duplicates", len(result.Duplicates)).Warn("Duplicate invoices left out of totals")
		}
	}
	result.Summary = aggregate.Aggregate(invoices, roster, result.Months)

	// Step 6: validation against the summary that gets rendered
	s.updateProgress(StepValidate, 5)
	result.Validation = s.validator.ValidateSummary(result.Invoices, roster, result.Summary)

	result.Duration = time.Since(start)
	s.updateProgress(StepCompleted, totalSteps)

	s.logger.WithFields(logger.Fields{
		"invoices":  len(result.Invoices),
		"unmatched": len(result.Unmatched),
		"months":    len(result.Months),
		"errors":    result.Validation.ErrorCount,
		"warnings":  result.Validation.WarningCount,
		"total":     result.Summary.PortfolioTotal.StringFixed(2),
		"duration":  result.Duration.String(),
	}).Info("Waste report run completed")

	return result, nil
}

// FilterMonths keeps invoices whose billing month is inside [start, end].
// Invoices without any date are kept so validation can report them.
func FilterMonths(invoices []*models.Invoice, start, end string) ([]*models.Invoice, int) {
	if start == "" && end == "" {
		return invoices, 0
	}
	kept := make([]*models.Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if !inv.HasDate() || models.InMonthRange(inv.Month(), start, end) {
			kept = append(kept, inv)
		}
	}
	return kept, len(invoices) - len(kept)
}

// ReportMonths returns the inclusive month list, filling an empty bound from
// the invoices
func ReportMonths(invoices []*models.Invoice, start, end string) ([]string, error) {
	derived := aggregate.MonthsFromInvoices(invoices)
	if start == "" && len(derived) > 0 {
		start = derived[0]
	}
	if end == "" && len(derived) > 0 {
		end = derived[len(derived)-1]
	}
	switch {
	case start == "" && end == "":
		return []string{}, nil
	case start == "":
		start = end
	case end == "":
		end = start
	}
	if start > end {
		return []string{}, nil
	}
	months, err := models.MonthRange(start, end)
	if err != nil {
		return nil, errors.ValidationError(errors.CodeInvalidDate, "month_range", start+".."+end, err)
	}
	return months, nil
}

func (s *Service) initializeProgress() {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()

	s.progress = &Progress{
		TotalSteps: totalSteps,
		StartTime:  time.Now(),
	}
}

func (s *Service) setFiles(done, total int) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()

	s.progress.FilesExtracted = done
	s.progress.TotalFiles = total
	s.notify()
}

func (s *Service) updateProgress(step string, completed int) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()

	p := s.progress
	p.CurrentStep = step
	p.CompletedSteps = completed
	p.ElapsedTime = time.Since(p.StartTime)
	p.PercentComplete = float64(completed) / float64(p.TotalSteps) * 100

	p.EstimatedRemaining = 0
	if completed > 0 && completed < p.TotalSteps {
		perStep := p.ElapsedTime / time.Duration(completed)
		p.EstimatedRemaining = perStep * time.Duration(p.TotalSteps-completed)
	}
	s.notify()
}

// notify hands each callback a copy so callers can keep snapshots
func (s *Service) notify() {
	for _, callback := range s.callbacks {
		snapshot := *s.progress
		callback(&snapshot)
	}
}
