package matcher

import (
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Orion at Lakeside", "orion at lakeside"},
		{"  ORION @ Lakeside, LLC ", "orion lakeside llc"},
		{"O'Connor Place", "oconnor place"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeName(tt.input); got != tt.expected {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"100 Lakeside Drive", "100 lakeside dr"},
		{"100 Lakeside Dr.", "100 lakeside dr"},
		{"22 North River Road, Austin TX", "22 n river rd austin tx"},
	}

	for _, tt := range tests {
		if got := NormalizeAddress(tt.input); got != tt.expected {
			t.Errorf("NormalizeAddress(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestJaccard(t *testing.T) {
	set := func(words ...string) map[string]bool {
		m := make(map[string]bool)
		for _, w := range words {
			m[w] = true
		}
		return m
	}

	tests := []struct {
		name     string
		a, b     map[string]bool
		expected float64
	}{
		{"identical", set("orion", "lakeside"), set("orion", "lakeside"), 1},
		{"half", set("orion", "lakeside"), set("orion", "riverside"), 1.0 / 3.0},
		{"disjoint", set("orion"), set("lakeside"), 0},
		{"empty", set(), set("orion"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Jaccard(tt.a, tt.b); got != tt.expected {
				t.Errorf("expected %.3f, got %.3f", tt.expected, got)
			}
		})
	}
}

func TestPropertyIndexLookups(t *testing.T) {
	index := NewPropertyIndex(testProperties(), defaultStopwords)

	if p := index.ByCode("orn-002"); p == nil || p.Code != "ORN-002" {
		t.Errorf("code lookup failed: %v", p)
	}
	if p := index.ByAccount("304127788"); p == nil || p.Code != "ORN-001" {
		t.Errorf("account lookup should ignore separators: %v", p)
	}
	if p := index.ByName("riverside commons"); p == nil || p.Code != "ORN-002" {
		t.Errorf("alias lookup failed: %v", p)
	}
	if p := index.ByAddress("100 Lakeside Drive, Austin, TX 78701"); p == nil || p.Code != "ORN-001" {
		t.Errorf("address prefix lookup failed: %v", p)
	}
	if p := index.ByAddress("1000 Lakeside Dr"); p != nil {
		t.Errorf("address lookup must respect token boundaries, got %s", p.Code)
	}
	if p := index.ByAccount(""); p != nil {
		t.Error("empty account should not match")
	}

	tokens := index.Tokens("The Apartments at Orion Lakeside")
	if len(tokens) != 2 || !tokens["orion"] || !tokens["lakeside"] {
		t.Errorf("expected stopwords removed, got %v", tokens)
	}
}
