package matcher

import (
	"testing"

	"orion-waste-reports/internal/models"
)

func testProperties() []*models.Property {
	return []*models.Property{
		{
			Code:           "ORN-002",
			Name:           "Orion at Riverside",
			Units:          180,
			Address:        "22 River Road",
			Aliases:        []string{"Riverside Commons"},
			AccountNumbers: []string{"3-0620-0045123"},
		},
		{
			Code:           "ORN-001",
			Name:           "Orion at Lakeside",
			Units:          240,
			Address:        "100 Lakeside Dr",
			AccountNumbers: []string{"3-0412-7788"},
		},
		{
			Code:  "ORN-003",
			Name:  "Orion Hill Country Flats",
			Units: 96,
		},
	}
}

func newTestEngine(t *testing.T, config *MatchingConfig) *MatchingEngine {
	t.Helper()
	engine, err := NewMatchingEngine(testProperties(), config)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return engine
}

func TestMatchStrategies(t *testing.T) {
	engine := newTestEngine(t, nil)

	tests := []struct {
		name     string
		invoice  *models.Invoice
		property string
		strategy MatchStrategy
	}{
		{
			name:     "explicit code",
			invoice:  &models.Invoice{PropertyCode: "orn-003", AccountNumber: "3-0412-7788"},
			property: "ORN-003",
			strategy: StrategyPropertyCode,
		},
		{
			name:     "code in property column",
			invoice:  &models.Invoice{PropertyName: "ORN-002"},
			property: "ORN-002",
			strategy: StrategyPropertyCode,
		},
		{
			name:     "account number",
			invoice:  &models.Invoice{AccountNumber: "3 0412 7788", PropertyName: "Orion at Riverside"},
			property: "ORN-001",
			strategy: StrategyAccount,
		},
		{
			name:     "alias",
			invoice:  &models.Invoice{PropertyName: "RIVERSIDE COMMONS"},
			property: "ORN-002",
			strategy: StrategyName,
		},
		{
			name:     "address",
			invoice:  &models.Invoice{ServiceAddress: "22 River Rd, Austin TX"},
			property: "ORN-002",
			strategy: StrategyAddress,
		},
		{
			name:     "fuzzy name",
			invoice:  &models.Invoice{PropertyName: "Hill Country Flats Apartments"},
			property: "ORN-003",
			strategy: StrategyFuzzy,
		},
		{
			name:     "no match",
			invoice:  &models.Invoice{PropertyName: "Sunset Villas", ServiceAddress: "9 Elm St"},
			strategy: StrategyNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Match(tt.invoice)
			if result.Strategy != tt.strategy {
				t.Errorf("expected strategy %s, got %s (%v)", tt.strategy, result.Strategy, result.Reasons)
			}
			if tt.property == "" {
				if result.Matched() {
					t.Errorf("expected no match, got %s", result.Property.Code)
				}
				return
			}
			if !result.Matched() || result.Property.Code != tt.property {
				t.Errorf("expected property %s, got %v", tt.property, result.Property)
			}
		})
	}
}

func TestFuzzyBelowThreshold(t *testing.T) {
	engine := newTestEngine(t, nil)

	// "orion" alone overlaps every property name by one token
	result := engine.Match(&models.Invoice{PropertyName: "Orion Sunset"})
	if result.Matched() {
		t.Errorf("expected weak overlap to stay unmatched, got %s with %.2f", result.Property.Code, result.Score)
	}
}

func TestStrictConfigDisablesFuzzy(t *testing.T) {
	engine := newTestEngine(t, StrictMatchingConfig())

	if result := engine.Match(&models.Invoice{PropertyName: "Hill Country Flats Apartments"}); result.Matched() {
		t.Errorf("strict config should not fuzzy match, got %s", result.Property.Code)
	}
	if result := engine.Match(&models.Invoice{ServiceAddress: "22 River Rd"}); result.Matched() {
		t.Errorf("strict config should not match addresses, got %s", result.Property.Code)
	}
}

func TestAssignProperties(t *testing.T) {
	engine := newTestEngine(t, nil)

	invoices := []*models.Invoice{
		{InvoiceNumber: "1", AccountNumber: "3-0412-7788", SourceFile: "b.pdf"},
		{InvoiceNumber: "2", PropertyCode: "ORN-999", PropertyName: "Sunset Villas", SourceFile: "z.pdf"},
		{InvoiceNumber: "3", PropertyName: "Riverside Commons", SourceFile: "a.pdf"},
		{InvoiceNumber: "4", SourceFile: "c.pdf"},
	}

	unmatched := engine.AssignProperties(invoices)

	if invoices[0].PropertyCode != "ORN-001" || invoices[0].PropertyName != "Orion at Lakeside" {
		t.Errorf("invoice 1 not assigned: %s / %s", invoices[0].PropertyCode, invoices[0].PropertyName)
	}
	if invoices[2].PropertyCode != "ORN-002" || invoices[2].PropertyName != "Orion at Riverside" {
		t.Errorf("invoice 3 should carry the roster name, got %s", invoices[2].PropertyName)
	}

	if len(unmatched) != 2 {
		t.Fatalf("expected 2 unmatched, got %d", len(unmatched))
	}
	if unmatched[0].InvoiceNumber != "4" || unmatched[1].InvoiceNumber != "2" {
		t.Errorf("unmatched should be sorted by source file")
	}
	if invoices[1].PropertyCode != "" {
		t.Errorf("unknown property code should be cleared, got %s", invoices[1].PropertyCode)
	}
	if invoices[1].PropertyName != "Sunset Villas" {
		t.Errorf("site hint should be kept, got %s", invoices[1].PropertyName)
	}
}

func TestAssignSummary(t *testing.T) {
	engine := newTestEngine(t, nil)

	summary := engine.Assign([]*models.Invoice{
		{PropertyCode: "ORN-001"},
		{PropertyCode: "ORN-002"},
		{AccountNumber: "3-0620-0045123"},
		{PropertyName: "nowhere"},
	})

	if summary.Total != 4 || summary.Assigned != 3 || summary.Unmatched != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.ByStrategy[StrategyPropertyCode] != 2 || summary.ByStrategy[StrategyAccount] != 1 {
		t.Errorf("unexpected strategy counts %v", summary.ByStrategy)
	}
}

func TestNewMatchingEngineErrors(t *testing.T) {
	if _, err := NewMatchingEngine(nil, nil); err == nil {
		t.Error("expected error for empty roster")
	}

	cfg := DefaultMatchingConfig()
	cfg.MinFuzzyScore = 1.5
	if _, err := NewMatchingEngine(testProperties(), cfg); err == nil {
		t.Error("expected error for invalid fuzzy score")
	}
}

func TestConfigClone(t *testing.T) {
	cfg := DefaultMatchingConfig()
	clone := cfg.Clone()
	clone.Stopwords[0] = "changed"
	clone.MinFuzzyScore = 0.9

	if cfg.Stopwords[0] == "changed" || cfg.MinFuzzyScore == 0.9 {
		t.Error("clone should not share state with original")
	}
	if StrategyFuzzy.String() != "fuzzy" || MatchStrategy(42).String() != "unknown" {
		t.Error("unexpected strategy names")
	}
}
