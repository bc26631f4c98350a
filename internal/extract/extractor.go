// Package extract pulls waste invoice data out of hauler PDFs, OCR text and
// spreadsheet exports.
//
// Document sources (PDF text layers and OCR text) are read with per-vendor
// regular expression profiles; spreadsheet sources (.xlsx and .csv) are read
// through a header alias table and reshaped into one invoice per vendor and
// invoice number.
//
// Example usage:
//
//	ex, err := extract.NewExtractor(extract.DefaultConfig(), nil)
//	paths, err := extract.ExpandInputs([]string{"invoices/"}, false)
//	batch := ex.ExtractFiles(ctx, paths)
//	for _, inv := range batch.Invoices {
//		fmt.Println(inv)
//	}
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"orion-waste-reports/internal/models"
	"orion-waste-reports/pkg/errors"
	"orion-waste-reports/pkg/logger"
)

// SupportedExtensions lists the input file types the extractor reads
var SupportedExtensions = []string{".pdf", ".txt", ".xlsx", ".csv"}

// FileResult holds what was extracted from one input file
type FileResult struct {
	FilePath    string            `json:"file_path"`
	Vendor      string            `json:"vendor,omitempty"`
	Invoices    []*models.Invoice `json:"invoices"`
	RowsSkipped int               `json:"rows_skipped,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	Duration    time.Duration     `json:"duration"`
}

// ExtractStats summarises a batch extraction
type ExtractStats struct {
	FilesProcessed    int           `json:"files_processed"`
	FilesFailed       int           `json:"files_failed"`
	InvoicesExtracted int           `json:"invoices_extracted"`
	RowsSkipped       int           `json:"rows_skipped"`
	LowConfidence     int           `json:"low_confidence"`
	Duration          time.Duration `json:"duration"`
}

// String returns a human-readable summary of the extraction
func (s *ExtractStats) String() string {
	return fmt.Sprintf("Processed %d files (%d failed), %d invoices, %d rows skipped, %d low confidence",
		s.FilesProcessed, s.FilesFailed, s.InvoicesExtracted, s.RowsSkipped, s.LowConfidence)
}

// BatchResult holds the outcome of extracting a set of files. Files that fail
// are reported in Errors without stopping the batch.
type BatchResult struct {
	Files    []*FileResult      `json:"files"`
	Invoices []*models.Invoice  `json:"invoices"`
	Errors   []*errors.AppError `json:"errors,omitempty"`
	Stats    ExtractStats       `json:"stats"`
}

// FileCallback is invoked after each file of a batch finishes
type FileCallback func(path string, done, total int, err error)

// Extractor reads invoices from input files
type Extractor struct {
	config  *Config
	vendors *VendorRegistry
	logger  logger.Logger
}

// NewExtractor creates an extractor. A nil registry uses the built-in vendors.
func NewExtractor(config *Config, vendors *VendorRegistry) (*Extractor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "extract", nil, err)
	}
	if vendors == nil {
		vendors = NewVendorRegistry()
	}

	log := logger.GetGlobalLogger().WithComponent("extract")
	log.WithFields(logger.Fields{
		"max_concurrent_files": config.MaxConcurrentFiles,
		"min_confidence":       config.MinConfidence,
		"vendors":              len(vendors.profiles),
	}).Debug("Created extractor")

	return &Extractor{config: config, vendors: vendors, logger: log}, nil
}

// Vendors returns the registry used for vendor detection
func (e *Extractor) Vendors() *VendorRegistry {
	return e.vendors
}

// ExtractFile extracts invoices from one file, dispatching on its extension
func (e *Extractor) ExtractFile(ctx context.Context, path string) (*FileResult, error) {
	start := time.Now()
	log := e.logger.WithField("file_path", path)

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	}

	result := &FileResult{FilePath: path}
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".pdf", ".txt":
		var text string
		var err error
		source := models.SourceText
		if ext == ".pdf" {
			source = models.SourcePDF
			text, err = pdfText(ctx, path)
		} else {
			var data []byte
			if data, err = os.ReadFile(path); err != nil {
				err = errors.FileError(errors.CodeFileCorrupted, path, err)
			}
			text = string(data)
		}
		if err != nil {
			return nil, err
		}
		inv, err := e.extractDocument(text, path, source)
		if err != nil {
			return nil, err
		}
		result.Vendor = inv.Vendor
		result.Invoices = []*models.Invoice{inv}

	case ".xlsx", ".csv":
		var tables []table
		var err error
		source := models.SourceExcel
		if ext == ".xlsx" {
			tables, err = readXLSXTables(ctx, path)
		} else {
			source = models.SourceCSV
			tables, err = readCSVTable(ctx, path)
		}
		if err != nil {
			return nil, err
		}
		sheet, err := invoicesFromTables(path, source, tables, e.config, e.vendors)
		if err != nil {
			return nil, err
		}
		result.Invoices = sheet.invoices
		result.RowsSkipped = sheet.rowsSkipped
		result.Warnings = sheet.warnings
		if len(sheet.invoices) == 0 {
			return nil, errors.ExtractionError(errors.CodeNoInvoices, path, "", nil)
		}

	default:
		return nil, errors.FileError(errors.CodeUnsupportedInput, path, nil)
	}

	result.Duration = time.Since(start)
	log.WithFields(logger.Fields{
		"invoices":     len(result.Invoices),
		"rows_skipped": result.RowsSkipped,
		"duration":     result.Duration.String(),
	}).Debug("Extracted file")
	for _, w := range result.Warnings {
		log.Warn(w)
	}

	return result, nil
}

func (e *Extractor) extractDocument(text, path string, source models.InvoiceSource) (*models.Invoice, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.ExtractionError(errors.CodeNoInvoices, path, "", fmt.Errorf("document is empty"))
	}

	profile := e.vendors.DetectVendor(text)
	inv := ExtractFields(text, profile)
	if inv.InvoiceNumber == "" && inv.Total.IsZero() && len(inv.LineItems) == 0 {
		return nil, errors.ExtractionError(errors.CodeNoInvoices, path, "", nil).
			WithContext("vendor", profile.Name)
	}

	inv.ID = filepath.Base(path) + "#1"
	inv.Source = source
	inv.SourceFile = path

	if inv.Confidence < e.config.MinConfidence {
		e.logger.WithFields(logger.Fields{
			"file_path":  path,
			"vendor":     profile.Name,
			"confidence": fmt.Sprintf("%.2f", inv.Confidence),
		}).Warn("Low confidence extraction")
	}
	return inv, nil
}

// ExtractFiles extracts all files concurrently, bounded by MaxConcurrentFiles.
// Invoices come back sorted by property, month, vendor and invoice number.
func (e *Extractor) ExtractFiles(ctx context.Context, paths []string) *BatchResult {
	return e.ExtractFilesWithCallback(ctx, paths, nil)
}

// ExtractFilesWithCallback is ExtractFiles with per-file progress reporting
func (e *Extractor) ExtractFilesWithCallback(ctx context.Context, paths []string, callback FileCallback) *BatchResult {
	start := time.Now()
	batch := &BatchResult{}

	type fileOutcome struct {
		index  int
		result *FileResult
		err    error
	}

	outcomes := make(chan fileOutcome, len(paths))
	semaphore := make(chan struct{}, e.config.MaxConcurrentFiles)
	var wg sync.WaitGroup

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "extract",
		Total:     int64(len(paths)),
		Logger:    e.logger,
	})

	for i, path := range paths {
		wg.Add(1)
		go func(index int, path string) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				outcomes <- fileOutcome{index: index, err: errors.InternalError(errors.CodeCancelled, "extraction", ctx.Err()).
					WithContext("file_path", path)}
				return
			}
			defer func() { <-semaphore }()

			result, err := e.ExtractFile(ctx, path)
			outcomes <- fileOutcome{index: index, result: result, err: err}
		}(i, path)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make([]*FileResult, len(paths))
	failures := make([]*errors.AppError, len(paths))
	done := 0
	for o := range outcomes {
		done++
		tracker.Increment()
		if o.err != nil {
			appErr := errors.WrapIfNeeded(o.err, errors.CategoryExtraction, errors.CodeInvalidData,
				"failed to extract "+paths[o.index])
			failures[o.index] = appErr
			batch.Stats.FilesFailed++
			e.logger.WithError(o.err).WithField("file_path", paths[o.index]).Warn("Skipping file")
		} else {
			results[o.index] = o.result
		}
		if callback != nil {
			callback(paths[o.index], done, len(paths), o.err)
		}
	}
	tracker.Complete()

	collector := errors.NewCollector(0)
	for _, f := range failures {
		if f != nil {
			collector.Add(f)
		}
	}
	if collector.HasErrors() {
		batch.Errors = collector.Errors()
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		batch.Files = append(batch.Files, r)
		batch.Invoices = append(batch.Invoices, r.Invoices...)
		batch.Stats.RowsSkipped += r.RowsSkipped
	}
	for _, inv := range batch.Invoices {
		if inv.Confidence < e.config.MinConfidence {
			batch.Stats.LowConfidence++
		}
	}

	SortInvoices(batch.Invoices)

	batch.Stats.FilesProcessed = len(paths)
	batch.Stats.InvoicesExtracted = len(batch.Invoices)
	batch.Stats.Duration = time.Since(start)

	e.logger.WithFields(logger.Fields{
		"files":          batch.Stats.FilesProcessed,
		"failed":         batch.Stats.FilesFailed,
		"invoices":       batch.Stats.InvoicesExtracted,
		"low_confidence": batch.Stats.LowConfidence,
		"files_per_sec":  fmt.Sprintf("%.2f", tracker.GetStats().Rate),
	}).Info("Extraction completed")

	return batch
}

// SortInvoices orders invoices by property, month, vendor and invoice number
func SortInvoices(invoices []*models.Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		a, b := invoices[i], invoices[j]
		if a.PropertyCode != b.PropertyCode {
			return a.PropertyCode < b.PropertyCode
		}
		if a.Month() != b.Month() {
			return a.Month() < b.Month()
		}
		if a.Vendor != b.Vendor {
			return a.Vendor < b.Vendor
		}
		if a.InvoiceNumber != b.InvoiceNumber {
			return a.InvoiceNumber < b.InvoiceNumber
		}
		return a.ID < b.ID
	})
}

// IsSupported reports whether the extractor can read the file
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ExpandInputs turns files and directories into a sorted list of supported
// files. A .txt file next to a .pdf of the same name is the PDF's OCR sidecar
// and is not listed separately. Spreadsheet lock files (~$*) are ignored.
func ExpandInputs(paths []string, recursive bool) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		clean := filepath.Clean(path)
		if !seen[clean] {
			seen[clean] = true
			files = append(files, clean)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.FileError(errors.CodeFileNotFound, p, err)
			}
			return nil, errors.FileError(errors.CodeFilePermission, p, err)
		}

		if !info.IsDir() {
			if !IsSupported(p) {
				return nil, errors.FileError(errors.CodeUnsupportedInput, p, nil)
			}
			add(p)
			continue
		}

		err = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && !recursive {
					return filepath.SkipDir
				}
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") || !IsSupported(path) {
				return nil
			}
			if strings.EqualFold(filepath.Ext(name), ".txt") {
				if _, err := os.Stat(strings.TrimSuffix(path, filepath.Ext(path)) + ".pdf"); err == nil {
					return nil
				}
			}
			add(path)
			return nil
		})
		if err != nil {
			return nil, errors.FileError(errors.CodeDirectoryError, p, err)
		}
	}

	sort.Strings(files)
	return files, nil
}
