package extract

import (
	"testing"
	"time"

	"orion-waste-reports/internal/models"

	"github.com/shopspring/decimal"
)

const wmInvoiceText = `WASTE MANAGEMENT
wm.com
Customer ID: 3-0412-7788
Invoice Number: 0412-77881
Invoice Date: 03/31/2024
Due Date: 04/20/2024
Service Period: 03/01/2024 - 03/31/2024
Service Address: 100 Lakeside Dr, Austin TX

8 YD Front Load Service 3x/wk    780.00
Fuel/Environmental Recovery Fee 18.5%    144.30
Extra Pickup 2    150.00
Total Amount Due: $1,074.30
`

const republicInvoiceText = "Republic Services\r\n" +
	"Account Number: 3-0620-0045123\r\n" +
	"Invoice #: 0620-001234567\r\n" +
	"Invoice Date: Apr 1, 2024\r\n" +
	"Service Period: Apr 01, 2024 - Apr 30, 2024\r\n" +
	"Roll Off 30 YD Haul   425.00\r\n" +
	"Disposal 3.2 Tons   198.40\r\n" +
	"Contamination Charge   75.00\r\n" +
	"Please Pay This Amount: $698.40\r\n"

func TestDetectVendor(t *testing.T) {
	registry := NewVendorRegistry()

	tests := []struct {
		text     string
		expected string
	}{
		{wmInvoiceText, "Waste Management"},
		{republicInvoiceText, "Republic Services"},
		{"Thank you for choosing Waste Connections", "Waste Connections"},
		{"GFL Environmental Inc.", "GFL Environmental"},
		{"Ally Waste Services - Valet Trash", "Ally Waste Services"},
		{"Acme Hauling Co", GenericVendor},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := registry.DetectVendor(tt.text).Name; got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestExtractFieldsWasteManagement(t *testing.T) {
	registry := NewVendorRegistry()
	inv := ExtractFields(wmInvoiceText, registry.DetectVendor(wmInvoiceText))

	if inv.Vendor != "Waste Management" {
		t.Errorf("expected vendor Waste Management, got %s", inv.Vendor)
	}
	if inv.AccountNumber != "3-0412-7788" {
		t.Errorf("expected account 3-0412-7788, got %s", inv.AccountNumber)
	}
	if inv.InvoiceNumber != "0412-77881" {
		t.Errorf("expected invoice number 0412-77881, got %s", inv.InvoiceNumber)
	}
	if !inv.InvoiceDate.Equal(time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected invoice date %v", inv.InvoiceDate)
	}
	if !inv.DueDate.Equal(time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected due date %v", inv.DueDate)
	}
	if inv.Month() != "2024-03" {
		t.Errorf("expected month 2024-03, got %s", inv.Month())
	}
	if inv.ServiceAddress != "100 Lakeside Dr, Austin TX" {
		t.Errorf("unexpected service address %q", inv.ServiceAddress)
	}
	if !inv.Total.Equal(decimal.RequireFromString("1074.30")) {
		t.Errorf("expected total 1074.30, got %s", inv.Total)
	}

	if len(inv.LineItems) != 3 {
		t.Fatalf("expected 3 line items, got %d: %+v", len(inv.LineItems), inv.LineItems)
	}
	wantCategories := []models.ExpenseCategory{
		models.CategoryBaseService,
		models.CategoryFuelSurcharge,
		models.CategoryExtraPickup,
	}
	for i, want := range wantCategories {
		if inv.LineItems[i].Category != want {
			t.Errorf("line %d: expected %s, got %s (%s)", i, want, inv.LineItems[i].Category, inv.LineItems[i].Description)
		}
	}
	if !inv.LineItems[2].Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("expected quantity 2 on extra pickup, got %s", inv.LineItems[2].Quantity)
	}
	if !inv.LineItemTotal().Equal(inv.Total) {
		t.Errorf("line items %s do not add up to total %s", inv.LineItemTotal(), inv.Total)
	}
	if inv.Confidence != 1 {
		t.Errorf("expected full confidence, got %.2f", inv.Confidence)
	}
}

func TestExtractFieldsRepublic(t *testing.T) {
	registry := NewVendorRegistry()
	inv := ExtractFields(republicInvoiceText, registry.DetectVendor(republicInvoiceText))

	if inv.AccountNumber != "3-0620-0045123" {
		t.Errorf("unexpected account %s", inv.AccountNumber)
	}
	if inv.InvoiceNumber != "0620-001234567" {
		t.Errorf("unexpected invoice number %s", inv.InvoiceNumber)
	}
	if inv.Month() != "2024-04" {
		t.Errorf("expected month 2024-04, got %s", inv.Month())
	}
	if !inv.Total.Equal(decimal.RequireFromString("698.40")) {
		t.Errorf("expected total 698.40, got %s", inv.Total)
	}
	if len(inv.LineItems) != 3 {
		t.Fatalf("expected 3 line items, got %d", len(inv.LineItems))
	}
	if inv.LineItems[2].Category != models.CategoryContamination {
		t.Errorf("expected contamination, got %s", inv.LineItems[2].Category)
	}
}

func TestExtractFieldsTotalFromLineItems(t *testing.T) {
	text := "Invoice No. 88123\nInvoice Date: 05/31/2024\nValet Trash Service    1,200.00\nService Credit    (50.00)\n"
	inv := ExtractFields(text, nil)

	if inv.Vendor != "" {
		t.Errorf("generic profile should not set a vendor, got %s", inv.Vendor)
	}
	if !inv.Total.Equal(decimal.RequireFromString("1150.00")) {
		t.Errorf("expected total from line items 1150.00, got %s", inv.Total)
	}
	if inv.LineItems[1].Category != models.CategoryCredit {
		t.Errorf("expected credit, got %s", inv.LineItems[1].Category)
	}
	if inv.Confidence != 1 {
		t.Errorf("expected confidence 1, got %.2f", inv.Confidence)
	}
}

func TestExtractFieldsZeroTotalCountsOnce(t *testing.T) {
	text := "WASTE MANAGEMENT\nwm.com\n8 YD Front Load Service    780.00\nExtra Pickup 2    150.00\nTotal Amount Due: $0.00\n"
	registry := NewVendorRegistry()
	inv := ExtractFields(text, registry.DetectVendor(text))

	if inv.Vendor != "Waste Management" {
		t.Fatalf("expected Waste Management, got %q", inv.Vendor)
	}
	if !inv.Total.Equal(decimal.RequireFromString("930")) {
		t.Errorf("expected total from line items 930, got %s", inv.Total)
	}
	// total plus the vendor bonus, no number and no date
	want := 1.0/requiredFieldCount + vendorBonus
	if diff := inv.Confidence - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("expected confidence %.3f, got %.3f", want, inv.Confidence)
	}
	if inv.Confidence >= 0.67 {
		t.Errorf("invoice without number or date should be low confidence, got %.3f", inv.Confidence)
	}
}

func TestExtractFieldsLowConfidence(t *testing.T) {
	inv := ExtractFields("Some hauler\nAmount Due: $310.00\n", nil)

	if !inv.Total.Equal(decimal.RequireFromString("310")) {
		t.Errorf("expected total 310, got %s", inv.Total)
	}
	if inv.Confidence >= 0.5 {
		t.Errorf("expected low confidence, got %.2f", inv.Confidence)
	}
	if inv.HasDate() {
		t.Error("no date should have been found")
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	inputs := []string{"03/05/2024", "3/5/2024", "03/05/24", "Mar 5, 2024", "March 5, 2024", "2024-03-05", "Mar  5,  2024"}

	for _, in := range inputs {
		got, ok := ParseDate(in, nil)
		if !ok {
			t.Errorf("failed to parse %q", in)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("%q: expected %v, got %v", in, want, got)
		}
	}

	if _, ok := ParseDate("next tuesday", nil); ok {
		t.Error("expected failure for free text")
	}
}

func TestVendorRegistry(t *testing.T) {
	registry := NewVendorRegistry()

	profiles := registry.Profiles()
	if profiles[len(profiles)-1].Name != GenericVendor {
		t.Errorf("generic profile should be listed last")
	}
	if len(profiles) != 6 {
		t.Errorf("expected 6 profiles, got %d", len(profiles))
	}

	if err := registry.Register(&VendorProfile{Name: "Waste Management", Detect: builtinProfiles[0].Detect}); err == nil {
		t.Error("expected duplicate registration to fail")
	}
	if err := registry.Register(&VendorProfile{Name: "No Pattern"}); err == nil {
		t.Error("expected profile without detection pattern to fail")
	}

	tests := map[string]string{
		"WM of Texas":          "Waste Management",
		"republic services":    "Republic Services",
		"GFL":                  "GFL Environmental",
		"City of Austin Solid": "City of Austin Solid",
		"":                     "",
	}
	for in, want := range tests {
		if got := registry.CanonicalVendor(in); got != want {
			t.Errorf("CanonicalVendor(%q) = %q, want %q", in, got, want)
		}
	}
}
