package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"orion-waste-reports/internal/models"
	"orion-waste-reports/pkg/errors"

	"github.com/shopspring/decimal"
)

var pdfEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)

// writePDF writes a one-page PDF whose text layer holds lines, one per text
// line. With no lines the page only draws a rule, like a scanned invoice.
func writePDF(t *testing.T, dir, name string, lines []string) string {
	t.Helper()

	var content bytes.Buffer
	if len(lines) == 0 {
		content.WriteString("72 720 m 540 720 l S\n")
	} else {
		content.WriteString("BT\n/F1 10 Tf\n12 TL\n72 740 Td\n")
		for i, line := range lines {
			if i > 0 {
				content.WriteString("T*\n")
			}
			fmt.Fprintf(&content, "(%s) Tj\n", pdfEscaper.Replace(line))
		}
		content.WriteString("ET\n")
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, out.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestExtractPDFTextLayer(t *testing.T) {
	lines := strings.Split(strings.TrimSpace(wmInvoiceText), "\n")
	path := writePDF(t, t.TempDir(), "wm-march.pdf", lines)

	result, err := newTestExtractor(t).ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	inv := result.Invoices[0]
	if result.Vendor != "Waste Management" || inv.Source != models.SourcePDF {
		t.Errorf("unexpected vendor %s source %s", result.Vendor, inv.Source)
	}
	if inv.InvoiceNumber != "0412-77881" {
		t.Errorf("unexpected invoice number %q", inv.InvoiceNumber)
	}
	if inv.Month() != "2024-03" {
		t.Errorf("expected month 2024-03, got %s", inv.Month())
	}
	if !inv.Total.Equal(decimal.RequireFromString("1074.30")) {
		t.Errorf("expected total 1074.30, got %s", inv.Total)
	}
	if len(inv.LineItems) != 3 {
		t.Errorf("expected 3 line items, got %d", len(inv.LineItems))
	}
}

func TestExtractScannedPDF(t *testing.T) {
	t.Run("with sidecar", func(t *testing.T) {
		dir := t.TempDir()
		path := writePDF(t, dir, "republic-april.pdf", nil)
		writeFile(t, dir, "republic-april.txt", republicInvoiceText)

		result, err := newTestExtractor(t).ExtractFile(context.Background(), path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		inv := result.Invoices[0]
		if inv.Vendor != "Republic Services" || inv.Source != models.SourcePDF {
			t.Errorf("unexpected vendor %s source %s", inv.Vendor, inv.Source)
		}
		if !inv.Total.Equal(decimal.RequireFromString("698.40")) {
			t.Errorf("expected total 698.40, got %s", inv.Total)
		}
	})

	t.Run("without sidecar", func(t *testing.T) {
		path := writePDF(t, t.TempDir(), "scan.pdf", nil)

		_, err := newTestExtractor(t).ExtractFile(context.Background(), path)
		appErr, ok := errors.AsAppError(err)
		if !ok || appErr.Code != errors.CodeNoTextLayer {
			t.Fatalf("expected no text layer error, got %v", err)
		}
		if appErr.Context["sidecar"] != sidecarPath(path) {
			t.Errorf("expected sidecar path in context, got %v", appErr.Context["sidecar"])
		}
	})

	t.Run("blank sidecar", func(t *testing.T) {
		dir := t.TempDir()
		path := writePDF(t, dir, "scan.pdf", nil)
		writeFile(t, dir, "scan.txt", "\n\n")

		_, err := newTestExtractor(t).ExtractFile(context.Background(), path)
		appErr, ok := errors.AsAppError(err)
		if !ok || appErr.Code != errors.CodeNoTextLayer {
			t.Errorf("expected no text layer error, got %v", err)
		}
	})
}

func TestExtractPDFIgnoresSidecarWithTextLayer(t *testing.T) {
	dir := t.TempDir()
	lines := strings.Split(strings.TrimSpace(wmInvoiceText), "\n")
	path := writePDF(t, dir, "wm-march.pdf", lines)
	writeFile(t, dir, "wm-march.txt", republicInvoiceText)

	text, err := pdfText(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "Invoice Number: 0412-77881") {
		t.Errorf("expected the text layer, got %q", text)
	}

	files, err := ExpandInputs([]string{dir}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 || files[0] != path {
		t.Errorf("sidecar should not be listed as its own input, got %v", files)
	}
}
