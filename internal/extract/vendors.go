package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// GenericVendor is the profile name used when no hauler is recognised
const GenericVendor = "Generic"

const (
	dateExpr   = `([A-Za-z]{3,9}\.?\s+\d{1,2},?\s+\d{4}|\d{1,2}/\d{1,2}/\d{2,4}|\d{4}-\d{2}-\d{2})`
	amountExpr = `(\(?-?\$?\s*\d{1,3}(?:,\d{3})*\.\d{2}\)?(?:\s*CR)?)`
)

// VendorProfile holds the patterns used to read one hauler's invoice layout.
// A nil pattern falls back to the generic profile's pattern for that field.
type VendorProfile struct {
	Name           string
	Detect         *regexp.Regexp
	InvoiceNumber  *regexp.Regexp
	AccountNumber  *regexp.Regexp
	InvoiceDate    *regexp.Regexp
	DueDate        *regexp.Regexp
	ServicePeriod  *regexp.Regexp
	Total          *regexp.Regexp
	ServiceAddress *regexp.Regexp
	CustomerName   *regexp.Regexp
	LineItem       *regexp.Regexp
	DateLayouts    []string
}

// IsGeneric reports whether this is the fallback profile
func (p *VendorProfile) IsGeneric() bool {
	return p.Name == GenericVendor
}

var genericProfile = &VendorProfile{
	Name:           GenericVendor,
	InvoiceNumber:  regexp.MustCompile(`(?i)invoice\s*(?:#|no\.?|number|num\.?)\s*[:.]?\s*([A-Z0-9-]*\d[A-Z0-9-]*)`),
	AccountNumber:  regexp.MustCompile(`(?i)(?:account|acct\.?|customer)\s*(?:#|no\.?|number|id)?\s*[:.]?\s*(\d[\d-]{3,}\d)`),
	InvoiceDate:    regexp.MustCompile(`(?i)(?:invoice|statement|bill(?:ing)?)\s+date\s*[:.]?\s*` + dateExpr),
	DueDate:        regexp.MustCompile(`(?i)(?:due\s+date|payment\s+due(?:\s+date)?)\s*[:.]?\s*` + dateExpr),
	ServicePeriod:  regexp.MustCompile(`(?i)(?:service|billing)\s+period\s*[:.]?\s*` + dateExpr + `\s*(?:-|to|through|thru)\s*` + dateExpr),
	Total:          regexp.MustCompile(`(?i)(?:total\s+amount\s+due|total\s+due|amount\s+due|invoice\s+total|balance\s+due|total\s+current\s+charges)\s*[:.]?\s*` + amountExpr),
	ServiceAddress: regexp.MustCompile(`(?i)service\s+(?:address|location)\s*[:.]?\s*([^\n]+)`),
	CustomerName:   regexp.MustCompile(`(?i)(?:customer|site|property)\s+name\s*[:.]?\s*([^\n]+)`),
	LineItem: regexp.MustCompile(`(?m)^[ \t]*(?:\d{1,2}/\d{1,2}(?:/\d{2,4})?[ \t]+)?` +
		`([A-Za-z0-9][A-Za-z0-9 /&().,#'%:-]*?[A-Za-z0-9)/%])[ \t]+(?:(\d+(?:\.\d+)?)[ \t]+)?` +
		amountExpr + `[ \t]*$`),
	DateLayouts: []string{"01/02/2006"},
}

// builtinProfiles are the haulers serving the portfolio
var builtinProfiles = []*VendorProfile{
	{
		Name:          "Waste Management",
		Detect:        regexp.MustCompile(`(?i)waste\s+management|\bwm\.com\b`),
		AccountNumber: regexp.MustCompile(`(?i)customer\s+id\s*[:.]?\s*(\d[\d-]{3,}\d)`),
		InvoiceNumber: regexp.MustCompile(`(?i)invoice\s+(?:number|no\.?)\s*[:.]?\s*(\d[\d-]{4,}\d)`),
		DateLayouts:   []string{"01/02/2006"},
	},
	{
		Name:          "Republic Services",
		Detect:        regexp.MustCompile(`(?i)republic\s+services`),
		AccountNumber: regexp.MustCompile(`(?i)account\s+(?:number|no\.?)\s*[:.]?\s*(\d-\d{4}-\d{4,7}|\d[\d-]{3,}\d)`),
		Total:         regexp.MustCompile(`(?i)(?:total\s+amount\s+due|please\s+pay(?:\s+this\s+amount)?)\s*[:.]?\s*` + amountExpr),
		DateLayouts:   []string{"01/02/2006", "Jan 2, 2006"},
	},
	{
		Name:          "Waste Connections",
		Detect:        regexp.MustCompile(`(?i)waste\s+connections`),
		InvoiceNumber: regexp.MustCompile(`(?i)invoice\s*(?:#|no\.?)\s*[:.]?\s*(\d{5,})`),
		DateLayouts:   []string{"01/02/06", "01/02/2006"},
	},
	{
		Name:        "GFL Environmental",
		Detect:      regexp.MustCompile(`(?i)\bGFL\b|green\s+for\s+life`),
		Total:       regexp.MustCompile(`(?i)(?:current\s+(?:invoice\s+)?charges|total\s+due)\s*[:.]?\s*` + amountExpr),
		DateLayouts: []string{"Jan 02, 2006", "January 2, 2006"},
	},
	{
		Name:          "Ally Waste Services",
		Detect:        regexp.MustCompile(`(?i)ally\s+waste`),
		ServicePeriod: regexp.MustCompile(`(?i)(?:billing|service)\s+(?:period|month)\s*[:.]?\s*` + dateExpr + `\s*(?:-|to|through)\s*` + dateExpr),
		CustomerName:  regexp.MustCompile(`(?i)(?:community|property)\s*(?:name)?\s*[:.]\s*([^\n]+)`),
		DateLayouts:   []string{"1/2/2006", "2006-01-02"},
	},
}

// VendorRegistry maps vendor names to their extraction profiles
type VendorRegistry struct {
	profiles []*VendorProfile
	byName   map[string]*VendorProfile
}

// NewVendorRegistry creates a registry holding the built-in haulers
func NewVendorRegistry() *VendorRegistry {
	r := &VendorRegistry{byName: make(map[string]*VendorProfile)}
	for _, p := range builtinProfiles {
		// registering a built-in profile cannot fail
		_ = r.Register(p)
	}
	return r
}

// Register adds a vendor profile. Profiles are tried in registration order.
func (r *VendorRegistry) Register(p *VendorProfile) error {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("vendor profile must have a name")
	}
	if p.Detect == nil {
		return fmt.Errorf("vendor profile %s has no detection pattern", p.Name)
	}
	key := strings.ToLower(p.Name)
	if _, exists := r.byName[key]; exists {
		return fmt.Errorf("vendor profile %s already registered", p.Name)
	}
	r.byName[key] = p
	r.profiles = append(r.profiles, p)
	return nil
}

// Get returns a profile by vendor name; the generic profile is always available
func (r *VendorRegistry) Get(name string) (*VendorProfile, bool) {
	if strings.EqualFold(name, GenericVendor) {
		return genericProfile, true
	}
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Profiles returns registered profiles sorted by name, generic last
func (r *VendorRegistry) Profiles() []*VendorProfile {
	out := make([]*VendorProfile, len(r.profiles))
	copy(out, r.profiles)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return append(out, genericProfile)
}

// DetectVendor returns the first profile whose detection pattern matches the
// invoice text, or the generic profile.
func (r *VendorRegistry) DetectVendor(text string) *VendorProfile {
	for _, p := range r.profiles {
		if p.Detect.MatchString(text) {
			return p
		}
	}
	return genericProfile
}

// CanonicalVendor maps a free-form hauler name from a spreadsheet onto a
// registered profile name, e.g. "WM of Texas" -> "Waste Management".
func (r *VendorRegistry) CanonicalVendor(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if p, ok := r.Get(name); ok {
		return p.Name
	}
	for _, p := range r.profiles {
		if p.Detect.MatchString(name) {
			return p.Name
		}
	}
	if strings.HasPrefix(strings.ToUpper(name), "WM ") {
		return "Waste Management"
	}
	return name
}

func (p *VendorProfile) pattern(pick func(*VendorProfile) *regexp.Regexp) *regexp.Regexp {
	if re := pick(p); re != nil {
		return re
	}
	return pick(genericProfile)
}
