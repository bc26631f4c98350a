package models

import (
	"fmt"
	"strings"
	"time"
)

// MonthLayout is the YYYY-MM layout used for billing months
const MonthLayout = "2006-01"

// ParseMonth parses a YYYY-MM billing month
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month '%s', expected YYYY-MM: %w", s, err)
	}
	return t, nil
}

// MonthRange returns every month from start to end inclusive, as YYYY-MM.
func MonthRange(start, end string) ([]string, error) {
	s, err := ParseMonth(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseMonth(end)
	if err != nil {
		return nil, err
	}
	if s.After(e) {
		return nil, fmt.Errorf("start month %s is after end month %s", start, end)
	}

	var months []string
	for m := s; !m.After(e); m = m.AddDate(0, 1, 0) {
		months = append(months, m.Format(MonthLayout))
	}
	return months, nil
}

// MonthLabel renders 2024-03 as "Mar 2024"
func MonthLabel(month string) string {
	t, err := ParseMonth(month)
	if err != nil {
		return month
	}
	return t.Format("Jan 2006")
}

// InMonthRange reports whether month falls within [start, end]; empty bounds are open
func InMonthRange(month, start, end string) bool {
	if month == "" {
		return false
	}
	// YYYY-MM strings sort chronologically
	if start != "" && month < start {
		return false
	}
	if end != "" && month > end {
		return false
	}
	return true
}
