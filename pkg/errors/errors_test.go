package errors

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestAppError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "extraction error",
			category:   CategoryExtraction,
			code:       CodeNoTextLayer,
			message:    "no text",
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
		{
			name:       "render error",
			category:   CategoryRender,
			code:       CodeWriteFailed,
			message:    "write failed",
			expectCode: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *AppError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if !strings.HasPrefix(err.Error(), tt.message) {
				t.Errorf("expected error string to start with %q, got %q", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected a stack trace to be captured")
			}
		})
	}
}

func TestAppErrorWithContext(t *testing.T) {
	err := New(CategoryFile, CodeFileNotFound, "test error").
		WithContext("file", "/invoices/wm.pdf").
		WithContext("page", 2).
		WithSuggestion("check file path")

	if err.Context["file"] != "/invoices/wm.pdf" {
		t.Errorf("expected file context, got %v", err.Context["file"])
	}
	if err.Context["page"] != 2 {
		t.Errorf("expected page context 2, got %v", err.Context["page"])
	}

	expected := "test error (suggestion: check file path)"
	if err.Error() != expected {
		t.Errorf("expected error string '%s', got '%s'", expected, err.Error())
	}
}

func TestSpecificErrorConstructors(t *testing.T) {
	t.Run("FileError", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := FileError(CodeFilePermission, "/test/invoice.pdf", cause)

		if err.Category != CategoryFile {
			t.Errorf("expected file category, got %s", err.Category)
		}
		if err.Context["file_path"] != "/test/invoice.pdf" {
			t.Errorf("expected file_path context, got %v", err.Context["file_path"])
		}
		if err.Cause != cause {
			t.Errorf("expected cause to be %v, got %v", cause, err.Cause)
		}
	})

	t.Run("ExtractionError", func(t *testing.T) {
		err := ExtractionError(CodeMissingColumn, "march.xlsx", "amount", nil)

		if err.Category != CategoryExtraction {
			t.Errorf("expected extraction category, got %s", err.Category)
		}
		if err.Context["location"] != "amount" {
			t.Errorf("expected location context, got %v", err.Context["location"])
		}
		if !strings.Contains(err.Message, "amount") {
			t.Errorf("expected column in message, got %s", err.Message)
		}
	})

	t.Run("ValidationError", func(t *testing.T) {
		err := ValidationError(CodeOutOfRange, "units", 0, nil)

		if err.Category != CategoryValidation {
			t.Errorf("expected validation category, got %s", err.Category)
		}
		if err.Context["field"] != "units" {
			t.Errorf("expected field context, got %v", err.Context["field"])
		}
	})

	t.Run("RenderError", func(t *testing.T) {
		err := RenderError(CodeWriteFailed, "xlsx", "/out/report.xlsx", errors.New("disk full"))

		if err.GetExitCode() != 5 {
			t.Errorf("expected exit code 5, got %d", err.GetExitCode())
		}
		if err.Context["path"] != "/out/report.xlsx" {
			t.Errorf("expected path context, got %v", err.Context["path"])
		}
	})
}

func TestErrorSummary(t *testing.T) {
	errs := []*AppError{
		New(CategoryFile, CodeFileNotFound, "error 1"),
		New(CategoryFile, CodeFilePermission, "error 2"),
		New(CategoryExtraction, CodeNoTextLayer, "error 3"),
		New(CategoryConfiguration, CodeInvalidConfig, "error 4"),
	}

	summary := NewErrorSummary(errs)

	if summary.Total != 4 {
		t.Errorf("expected total 4, got %d", summary.Total)
	}
	if summary.ByCategory[CategoryFile] != 2 {
		t.Errorf("expected 2 file errors, got %d", summary.ByCategory[CategoryFile])
	}
	if !summary.HasCode(CodeNoTextLayer) {
		t.Error("expected no_text_layer code")
	}
	if summary.HasCategory(CategoryRender) {
		t.Error("expected no render errors")
	}
	if summary.GetExitCode() != 4 {
		t.Errorf("expected highest exit code 4, got %d", summary.GetExitCode())
	}
	if len(summary.SampleErrors) != 4 {
		t.Errorf("expected 4 samples, got %d", len(summary.SampleErrors))
	}
	if !strings.HasPrefix(summary.Error(), "4 errors occurred") {
		t.Errorf("unexpected summary error: %s", summary.Error())
	}

	empty := NewErrorSummary(nil)
	if empty.GetExitCode() != 0 || empty.Error() != "no errors" {
		t.Errorf("unexpected empty summary: %d %s", empty.GetExitCode(), empty.Error())
	}
}

func TestAsAppError(t *testing.T) {
	inner := FileError(CodeFileNotFound, "x.pdf", nil)
	wrapped := errors.Join(errors.New("context"), inner)

	got, ok := AsAppError(wrapped)
	if !ok || got != inner {
		t.Fatalf("expected to find AppError in chain")
	}

	if _, ok := AsAppError(errors.New("plain")); ok {
		t.Error("plain error should not be an AppError")
	}

	if WrapIfNeeded(inner, CategoryInternal, CodeUnexpectedError, "x") != inner {
		t.Error("WrapIfNeeded should return existing AppError")
	}
	if WrapIfNeeded(nil, CategoryInternal, CodeUnexpectedError, "x") != nil {
		t.Error("WrapIfNeeded(nil) should be nil")
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector(0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(ExtractionError(CodeNoInvoices, "a.pdf", "", nil))
		}()
	}
	wg.Wait()

	if !c.HasErrors() || len(c.Errors()) != 10 {
		t.Fatalf("expected 10 collected errors, got %d", len(c.Errors()))
	}

	limited := NewCollector(2)
	if !limited.Add(errors.New("one")) {
		t.Error("expected to continue after first error")
	}
	if limited.Add(errors.New("two")) {
		t.Error("expected to stop at max errors")
	}
	if limited.Errors()[0].Category != CategoryInternal {
		t.Error("plain errors should be wrapped as internal")
	}

	out := FormatForUser(c.Errors())
	if !strings.Contains(out, "a.pdf") || !strings.Contains(out, "Found 10 problem(s)") {
		t.Errorf("unexpected formatted output:\n%s", out)
	}
}
