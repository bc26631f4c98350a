package cmd

import (
	"fmt"
	"io"
	"strings"

	"orion-waste-reports/internal/extract"

	"github.com/spf13/cobra"
)

// vendorsCmd represents the vendors command
var vendorsCmd = &cobra.Command{
	Use:   "vendors",
	Short: "List the built-in hauler profiles",
	Long: `Vendors lists the hauler profiles used to read invoice documents, with the
pattern that detects each hauler and the fields it reads differently from
the generic profile. Documents that match no hauler use the generic profile.

Examples:
  wastereport vendors`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVendors(extract.NewVendorRegistry(), cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(vendorsCmd)
}

func writeVendors(registry *extract.VendorRegistry, w io.Writer) error {
	profiles := registry.Profiles()
	fmt.Fprintf(w, "=== VENDOR PROFILES (%d) ===\n", len(profiles))
	for _, p := range profiles {
		detect := "(fallback for unrecognised documents)"
		if p.Detect != nil {
			detect = p.Detect.String()
		}
		fmt.Fprintf(w, "%s\n", p.Name)
		fmt.Fprintf(w, "  Detect:       %s\n", detect)
		if len(p.DateLayouts) > 0 {
			fmt.Fprintf(w, "  Date layouts: %s\n", strings.Join(p.DateLayouts, ", "))
		}
		if fields := overriddenFields(p); len(fields) > 0 && !p.IsGeneric() {
			fmt.Fprintf(w, "  Custom:       %s\n", strings.Join(fields, ", "))
		}
	}
	return nil
}

// overriddenFields names the fields a profile reads with its own pattern
func overriddenFields(p *extract.VendorProfile) []string {
	var fields []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"invoice number", p.InvoiceNumber != nil},
		{"account number", p.AccountNumber != nil},
		{"invoice date", p.InvoiceDate != nil},
		{"due date", p.DueDate != nil},
		{"service period", p.ServicePeriod != nil},
		{"total", p.Total != nil},
		{"service address", p.ServiceAddress != nil},
		{"customer name", p.CustomerName != nil},
		{"line items", p.LineItem != nil},
	} {
		if f.set {
			fields = append(fields, f.name)
		}
	}
	return fields
}
