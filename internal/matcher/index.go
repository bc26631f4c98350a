package matcher

import (
	"sort"
	"strings"
	"unicode"

	"orion-waste-reports/internal/models"
)

// streetAbbreviations maps spelled-out street suffixes to their USPS form
var streetAbbreviations = map[string]string{
	"drive":     "dr",
	"road":      "rd",
	"street":    "st",
	"avenue":    "ave",
	"boulevard": "blvd",
	"lane":      "ln",
	"parkway":   "pkwy",
	"court":     "ct",
	"circle":    "cir",
	"highway":   "hwy",
	"place":     "pl",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
}

// PropertyIndex provides lookups of roster properties by the identifiers
// found on invoices
type PropertyIndex struct {
	// CodeIndex maps upper-cased property codes to properties
	CodeIndex map[string]*models.Property

	// AccountIndex maps normalised hauler account numbers to properties
	AccountIndex map[string]*models.Property

	// NameIndex maps normalised names and aliases to properties
	NameIndex map[string]*models.Property

	// AddressIndex holds normalised street addresses, longest first
	AddressIndex []*AddressEntry

	// TokenIndex holds each property's name tokens for fuzzy matching
	TokenIndex map[string][]map[string]bool

	// AllProperties holds all indexed properties sorted by code
	AllProperties []*models.Property

	stopwords map[string]bool
}

// AddressEntry is one normalised street address
type AddressEntry struct {
	Address  string
	Property *models.Property
}

// NewPropertyIndex creates an index over the given properties
func NewPropertyIndex(properties []*models.Property, stopwords []string) *PropertyIndex {
	index := &PropertyIndex{
		CodeIndex:     make(map[string]*models.Property),
		AccountIndex:  make(map[string]*models.Property),
		NameIndex:     make(map[string]*models.Property),
		TokenIndex:    make(map[string][]map[string]bool),
		AllProperties: append([]*models.Property(nil), properties...),
		stopwords:     make(map[string]bool),
	}
	for _, w := range stopwords {
		index.stopwords[strings.ToLower(strings.TrimSpace(w))] = true
	}
	sort.SliceStable(index.AllProperties, func(i, j int) bool {
		return index.AllProperties[i].Code < index.AllProperties[j].Code
	})

	index.buildIndexes()
	return index
}

func (pi *PropertyIndex) buildIndexes() {
	for _, p := range pi.AllProperties {
		pi.CodeIndex[strings.ToUpper(strings.TrimSpace(p.Code))] = p

		for _, acct := range p.AccountNumbers {
			if key := models.NormalizeIdentifier(acct); key != "" {
				pi.AccountIndex[key] = p
			}
		}

		for _, name := range append([]string{p.Name}, p.Aliases...) {
			key := NormalizeName(name)
			if key == "" {
				continue
			}
			// first property wins when two share an alias
			if _, exists := pi.NameIndex[key]; !exists {
				pi.NameIndex[key] = p
			}
			if tokens := pi.Tokens(name); len(tokens) > 0 {
				pi.TokenIndex[p.Code] = append(pi.TokenIndex[p.Code], tokens)
			}
		}

		if addr := NormalizeAddress(p.Address); addr != "" {
			pi.AddressIndex = append(pi.AddressIndex, &AddressEntry{Address: addr, Property: p})
		}
	}

	sort.SliceStable(pi.AddressIndex, func(i, j int) bool {
		return len(pi.AddressIndex[i].Address) > len(pi.AddressIndex[j].Address)
	})
}

// ByCode looks up a property by code, case-insensitively
func (pi *PropertyIndex) ByCode(code string) *models.Property {
	return pi.CodeIndex[strings.ToUpper(strings.TrimSpace(code))]
}

// ByAccount looks up a property by hauler account number
func (pi *PropertyIndex) ByAccount(account string) *models.Property {
	key := models.NormalizeIdentifier(account)
	if key == "" {
		return nil
	}
	return pi.AccountIndex[key]
}

// ByName looks up a property by exact normalised name or alias
func (pi *PropertyIndex) ByName(name string) *models.Property {
	key := NormalizeName(name)
	if key == "" {
		return nil
	}
	return pi.NameIndex[key]
}

// ByAddress returns the property whose street address starts the given
// service address, so "100 Lakeside Drive, Austin TX" finds "100 Lakeside Dr".
func (pi *PropertyIndex) ByAddress(address string) *models.Property {
	addr := NormalizeAddress(address)
	if addr == "" {
		return nil
	}
	for _, entry := range pi.AddressIndex {
		if addr == entry.Address || strings.HasPrefix(addr, entry.Address+" ") {
			return entry.Property
		}
	}
	return nil
}

// Tokens splits a name into lower-case words with stopwords removed
func (pi *PropertyIndex) Tokens(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(NormalizeName(s)) {
		if !pi.stopwords[word] {
			tokens[word] = true
		}
	}
	return tokens
}

// NormalizeName lower-cases a name and reduces punctuation to single spaces
func NormalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'':
			// "O'Connor" and "OConnor" are the same name
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeAddress normalises a street address and abbreviates street suffixes
func NormalizeAddress(s string) string {
	words := strings.Fields(NormalizeName(s))
	for i, w := range words {
		if abbr, ok := streetAbbreviations[w]; ok {
			words[i] = abbr
		}
	}
	return strings.Join(words, " ")
}

// Jaccard returns the similarity of two token sets
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if b[t] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
