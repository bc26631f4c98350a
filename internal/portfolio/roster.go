// Package portfolio loads the property roster that invoices are assigned to.
package portfolio

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"orion-waste-reports/internal/models"
	"orion-waste-reports/pkg/errors"
	"orion-waste-reports/pkg/logger"

	"gopkg.in/yaml.v3"
)

// DefaultPortfolioName is used when the roster file does not name the portfolio
const DefaultPortfolioName = "Orion Portfolio"

// Roster is the validated set of properties in a portfolio
type Roster struct {
	Name       string             `yaml:"portfolio"`
	Properties []*models.Property `yaml:"properties"`

	byCode map[string]*models.Property
}

// LoadRoster reads and validates a YAML roster file
func LoadRoster(path string) (*Roster, error) {
	log := logger.WithComponent("portfolio").WithField("file_path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileCorrupted, path, err)
	}

	roster, err := ParseRoster(data)
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return nil, appErr.WithContext("file_path", path)
		}
		return nil, err
	}

	log.WithFields(logger.Fields{
		"portfolio":  roster.Name,
		"properties": len(roster.Properties),
		"units":      roster.TotalUnits(),
	}).Info("Loaded property roster")

	return roster, nil
}

// ParseRoster decodes roster YAML. Unknown keys are rejected so that typos
// like "unit:" don't silently produce a zero-unit property.
func ParseRoster(data []byte) (*Roster, error) {
	var roster Roster
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&roster); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "roster", "yaml", err).
			WithSuggestion("check the roster YAML syntax; each property needs code, name and units")
	}

	if err := roster.init(); err != nil {
		return nil, err
	}
	return &roster, nil
}

// NewRoster builds a roster from properties already in memory
func NewRoster(name string, properties []*models.Property) (*Roster, error) {
	r := &Roster{Name: name, Properties: properties}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Roster) init() error {
	if strings.TrimSpace(r.Name) == "" {
		r.Name = DefaultPortfolioName
	}
	if len(r.Properties) == 0 {
		return errors.ConfigurationError(errors.CodeMissingConfig, "roster.properties", nil, nil)
	}

	r.byCode = make(map[string]*models.Property, len(r.Properties))
	for i, p := range r.Properties {
		if p == nil {
			return errors.ValidationError(errors.CodeMissingField, fmt.Sprintf("properties[%d]", i), nil, nil)
		}
		p.Code = strings.TrimSpace(p.Code)
		if err := p.Validate(); err != nil {
			return errors.ValidationError(errors.CodeInvalidData, fmt.Sprintf("properties[%d]", i), p.Code, err)
		}
		key := strings.ToUpper(p.Code)
		if _, dup := r.byCode[key]; dup {
			return errors.ValidationError(errors.CodeDuplicate, "code", p.Code, nil)
		}
		r.byCode[key] = p
	}

	sort.SliceStable(r.Properties, func(i, j int) bool {
		return r.Properties[i].Code < r.Properties[j].Code
	})
	return nil
}

// Lookup finds a property by code, case-insensitively
func (r *Roster) Lookup(code string) (*models.Property, bool) {
	p, ok := r.byCode[strings.ToUpper(strings.TrimSpace(code))]
	return p, ok
}

// TotalUnits sums units across the portfolio
func (r *Roster) TotalUnits() int {
	total := 0
	for _, p := range r.Properties {
		total += p.Units
	}
	return total
}

// Codes returns property codes in roster order
func (r *Roster) Codes() []string {
	codes := make([]string, len(r.Properties))
	for i, p := range r.Properties {
		codes[i] = p.Code
	}
	return codes
}
