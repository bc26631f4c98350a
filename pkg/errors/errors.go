package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryExtraction    ErrorCategory = "extraction"
	CategoryValidation    ErrorCategory = "validation"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryRender        ErrorCategory = "render"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound     ErrorCode = "file_not_found"
	CodeFilePermission   ErrorCode = "file_permission"
	CodeFileCorrupted    ErrorCode = "file_corrupted"
	CodeDirectoryError   ErrorCode = "directory_error"
	CodeUnsupportedInput ErrorCode = "unsupported_input"

	// Extraction errors
	CodeNoTextLayer   ErrorCode = "no_text_layer"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeInvalidData   ErrorCode = "invalid_data"
	CodeNoInvoices    ErrorCode = "no_invoices"

	// Validation errors
	CodeInvalidAmount ErrorCode = "invalid_amount"
	CodeInvalidDate   ErrorCode = "invalid_date"
	CodeMissingField  ErrorCode = "missing_field"
	CodeOutOfRange    ErrorCode = "out_of_range"
	CodeDuplicate     ErrorCode = "duplicate"
	CodeChecksFailed  ErrorCode = "checks_failed"

	// Configuration errors
	CodeInvalidConfig  ErrorCode = "invalid_config"
	CodeMissingConfig  ErrorCode = "missing_config"
	CodeConfigConflict ErrorCode = "config_conflict"

	// Render errors
	CodeTemplateError ErrorCode = "template_error"
	CodeWriteFailed   ErrorCode = "write_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
	CodeCancelled       ErrorCode = "cancelled"
)

// AppError is the base error type for all application errors
type AppError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *AppError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *AppError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryExtraction, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryRender, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AppError
func New(category ErrorCategory, code ErrorCode, message string) *AppError {
	return &AppError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with AppError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	return &AppError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(err error, category ErrorCategory, code ErrorCode, message, suggestion string) *AppError {
	var result *AppError
	if err != nil {
		result = Wrap(err, category, code, message)
	} else {
		result = New(category, code, message)
	}
	return result.WithSuggestion(suggestion)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *AppError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "re-download the invoice or export the sheet again"
	case CodeDirectoryError:
		message = fmt.Sprintf("directory error: %s", path)
		suggestion = "ensure the directory exists and is accessible"
	case CodeUnsupportedInput:
		message = fmt.Sprintf("unsupported input file type: %s", path)
		suggestion = "supported inputs are .pdf, .txt, .xlsx and .csv"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(err, CategoryFile, code, message, suggestion).WithContext("file_path", path)
}

// ExtractionError creates an error raised while pulling invoice fields out of a source file
func ExtractionError(code ErrorCode, file string, location string, err error) *AppError {
	var message, suggestion string

	switch code {
	case CodeNoTextLayer:
		message = fmt.Sprintf("no text layer found in %s", file)
		suggestion = "the PDF is probably a scan; run OCR and place the text next to it as a .txt file with the same name"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column '%s' in %s", location, file)
		suggestion = "verify the sheet header has property, vendor, invoice and amount columns"
	case CodeInvalidData:
		message = fmt.Sprintf("invalid data in %s at %s", file, location)
		suggestion = "correct the cell value or remove the row"
	case CodeNoInvoices:
		message = fmt.Sprintf("no invoices could be extracted from %s", file)
		suggestion = "check that the file is a waste invoice or invoice export"
	default:
		message = fmt.Sprintf("extraction error in %s", file)
		suggestion = "check the file format and content"
	}

	result := build(err, CategoryExtraction, code, message, suggestion).WithContext("file", file)
	if location != "" {
		result.WithContext("location", location)
	}
	return result
}

// ValidationError creates a validation-related error
func ValidationError(code ErrorCode, field string, value interface{}, err error) *AppError {
	var message, suggestion string

	switch code {
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "amounts must be decimal numbers such as 1250.50"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use YYYY-MM-DD for dates and YYYY-MM for months"
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeOutOfRange:
		message = fmt.Sprintf("value out of range in field '%s': %v", field, value)
		suggestion = "ensure the value is within the acceptable range"
	case CodeDuplicate:
		message = fmt.Sprintf("duplicate value in field '%s': %v", field, value)
		suggestion = "values in this field must be unique"
	default:
		message = fmt.Sprintf("validation error in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return build(err, CategoryValidation, code, message, suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *AppError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this setting as a flag, in the config file or as a WASTEREPORT_ environment variable"
	case CodeConfigConflict:
		message = fmt.Sprintf("configuration conflict with setting '%s': %v", setting, value)
		suggestion = "resolve the conflicting settings"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(err, CategoryConfiguration, code, message, suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// RenderError creates an error raised while writing an output document
func RenderError(code ErrorCode, format string, path string, err error) *AppError {
	var message, suggestion string

	switch code {
	case CodeTemplateError:
		message = fmt.Sprintf("failed to render %s template", format)
		suggestion = "this is likely a bug in the report template"
	case CodeWriteFailed:
		message = fmt.Sprintf("failed to write %s output to %s", format, path)
		suggestion = "check that the output directory exists and is writable"
	default:
		message = fmt.Sprintf("render error for %s output", format)
		suggestion = "try a different output format"
	}

	result := build(err, CategoryRender, code, message, suggestion).WithContext("format", format)
	if path != "" {
		result.WithContext("path", path)
	}
	return result
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *AppError {
	var message, suggestion string

	switch code {
	case CodeCancelled:
		message = fmt.Sprintf("%s was cancelled", operation)
		suggestion = "run the command again"
	default:
		message = fmt.Sprintf("unexpected error during %s", operation)
		suggestion = "this is likely a bug - please report it with the error details"
	}

	return build(err, CategoryInternal, code, message, suggestion).WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*AppError           `json:"errors"`
	SampleErrors []*AppError           `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*AppError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if summary.Errors == nil {
		summary.Errors = []*AppError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}
	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}
	return maxCode
}

// AsAppError extracts an AppError from an error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already an AppError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Wrap(err, category, code, message)
}
