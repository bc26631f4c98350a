package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ExpenseCategory classifies a waste invoice charge
type ExpenseCategory string

const (
	CategoryBaseService      ExpenseCategory = "base_service"
	CategoryExtraPickup      ExpenseCategory = "extra_pickup"
	CategoryOverage          ExpenseCategory = "overage"
	CategoryContamination    ExpenseCategory = "contamination"
	CategoryFuelSurcharge    ExpenseCategory = "fuel_surcharge"
	CategoryEnvironmentalFee ExpenseCategory = "environmental_fee"
	CategoryContainerRental  ExpenseCategory = "container_rental"
	CategoryTax              ExpenseCategory = "tax"
	CategoryLateFee          ExpenseCategory = "late_fee"
	CategoryCredit           ExpenseCategory = "credit"
	CategoryOther            ExpenseCategory = "other"
)

// AllCategories lists categories in report column order
var AllCategories = []ExpenseCategory{
	CategoryBaseService,
	CategoryExtraPickup,
	CategoryOverage,
	CategoryContamination,
	CategoryFuelSurcharge,
	CategoryEnvironmentalFee,
	CategoryContainerRental,
	CategoryTax,
	CategoryLateFee,
	CategoryCredit,
	CategoryOther,
}

var categoryLabels = map[ExpenseCategory]string{
	CategoryBaseService:      "Base Service",
	CategoryExtraPickup:      "Extra Pickup",
	CategoryOverage:          "Overage",
	CategoryContamination:    "Contamination",
	CategoryFuelSurcharge:    "Fuel Surcharge",
	CategoryEnvironmentalFee: "Environmental Fee",
	CategoryContainerRental:  "Container Rental",
	CategoryTax:              "Tax",
	CategoryLateFee:          "Late Fee",
	CategoryCredit:           "Credit",
	CategoryOther:            "Other",
}

// String returns the string representation of ExpenseCategory
func (c ExpenseCategory) String() string {
	return string(c)
}

// Label returns the human readable column title
func (c ExpenseCategory) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// IsValid checks if the category is known
func (c ExpenseCategory) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// ParseCategory parses a category name or label, e.g. "fuel_surcharge" or "Fuel Surcharge"
func ParseCategory(s string) (ExpenseCategory, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	c := ExpenseCategory(key)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown expense category '%s'", s)
	}
	return c, nil
}

// categoryKeywords is checked in order; the first hit wins, so the more
// specific charges come before the generic service words.
var categoryKeywords = []struct {
	category ExpenseCategory
	words    []string
}{
	{CategoryContamination, []string{"contamina", "contaminated"}},
	{CategoryOverage, []string{"overage", "overfill", "overload", "over capacity"}},
	{CategoryFuelSurcharge, []string{"fuel", "fuel/env", "energy surcharge"}},
	{CategoryEnvironmentalFee, []string{"environmental", "env fee", "recovery fee", "regulatory", "franchise fee", "admin fee", "administrative"}},
	{CategoryLateFee, []string{"late fee", "late charge", "finance charge", "past due"}},
	{CategoryTax, []string{"tax"}},
	{CategoryContainerRental, []string{"rental", "lease"}},
	{CategoryExtraPickup, []string{"extra", "bulk", "on-call", "on call", "additional pickup", "special pickup"}},
	{CategoryBaseService, []string{"service", "collection", "pickup", "pick up", "hauling", "haul", "valet", "recycling", "trash", "refuse", "monthly", "disposal"}},
}

// CategorizeDescription maps a line item description to a category. Any
// negative amount is a credit regardless of its wording.
func CategorizeDescription(description string, amount decimal.Decimal) ExpenseCategory {
	desc := strings.ToLower(description)

	if amount.IsNegative() {
		return CategoryCredit
	}

	for _, entry := range categoryKeywords {
		for _, w := range entry.words {
			if strings.Contains(desc, w) {
				return entry.category
			}
		}
	}
	return CategoryOther
}
