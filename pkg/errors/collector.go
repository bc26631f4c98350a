package errors

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Collector gathers errors from a best-effort batch so one bad invoice file
// does not stop the rest. It is safe for concurrent use.
type Collector struct {
	mu        sync.Mutex
	errors    []*AppError
	maxErrors int
}

// NewCollector creates a collector that stops accepting errors after maxErrors.
// A maxErrors of zero or less means unlimited.
func NewCollector(maxErrors int) *Collector {
	return &Collector{maxErrors: maxErrors}
}

// Add records err, wrapping plain errors as internal errors. It reports
// whether processing should continue.
func (c *Collector) Add(err error) bool {
	if err == nil {
		return true
	}

	appErr := WrapIfNeeded(err, CategoryInternal, CodeUnexpectedError, "unexpected error")

	c.mu.Lock()
	defer c.mu.Unlock()

	c.errors = append(c.errors, appErr)
	return c.maxErrors <= 0 || len(c.errors) < c.maxErrors
}

// HasErrors returns true if any errors have been collected
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errors) > 0
}

// Errors returns a copy of all collected errors
func (c *Collector) Errors() []*AppError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*AppError, len(c.errors))
	copy(out, c.errors)
	return out
}

// Summary returns an error summary for all collected errors
func (c *Collector) Summary() *ErrorSummary {
	return NewErrorSummary(c.Errors())
}

// FormatForUser formats collected errors grouped by file.
func FormatForUser(errs []*AppError) string {
	if len(errs) == 0 {
		return "No errors"
	}

	byFile := make(map[string][]*AppError)
	for _, err := range errs {
		file := "general"
		if v, ok := err.Context["file"]; ok {
			file = filepath.Base(fmt.Sprint(v))
		} else if v, ok := err.Context["file_path"]; ok {
			file = filepath.Base(fmt.Sprint(v))
		}
		byFile[file] = append(byFile[file], err)
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d problem(s):", len(errs)))
	for _, f := range files {
		lines = append(lines, fmt.Sprintf("  %s:", f))
		for _, err := range byFile[f] {
			lines = append(lines, fmt.Sprintf("    - %s", err.Message))
			if err.Suggestion != "" {
				lines = append(lines, fmt.Sprintf("      → %s", err.Suggestion))
			}
		}
	}

	return strings.Join(lines, "\n")
}
