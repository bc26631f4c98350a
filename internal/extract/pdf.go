package extract

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"orion-waste-reports/pkg/errors"

	"github.com/ledongthuc/pdf"
)

// readPDFText returns the text layer of a PDF with pages separated by newlines
func readPDFText(ctx context.Context, path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.FileError(errors.CodeFileCorrupted, path, err)
	}
	defer f.Close()

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", errors.InternalError(errors.CodeCancelled, "pdf extraction", err)
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return "", errors.ExtractionError(errors.CodeInvalidData, path, pageLocation(i), err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// sidecarPath returns the OCR text file expected next to a scanned PDF
func sidecarPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".txt"
}

// pdfText reads a PDF's text layer, falling back to a .txt sidecar holding OCR
// output when the layer is empty.
func pdfText(ctx context.Context, path string) (string, error) {
	text, err := readPDFText(ctx, path)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) != "" {
		return text, nil
	}

	sidecar := sidecarPath(path)
	data, readErr := os.ReadFile(sidecar)
	if readErr != nil || strings.TrimSpace(string(data)) == "" {
		return "", errors.ExtractionError(errors.CodeNoTextLayer, path, "", nil).
			WithContext("sidecar", sidecar)
	}
	return string(data), nil
}

func pageLocation(page int) string {
	return "page " + strconv.Itoa(page)
}
