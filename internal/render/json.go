package render

import (
	"encoding/json"
	"io"
	"time"

	"orion-waste-reports/internal/aggregate"
	"orion-waste-reports/internal/models"
	"orion-waste-reports/internal/validation"
	"orion-waste-reports/pkg/errors"
)

type jsonRenderer struct{}

func (r *jsonRenderer) Format() Format { return FormatJSON }

type jsonReport struct {
	Title       string             `json:"title"`
	Period      string             `json:"period"`
	GeneratedAt time.Time          `json:"generated_at"`
	Summary     *aggregate.Summary `json:"summary"`
	Validation  *validation.Report `json:"validation"`
	Invoices    []*models.Invoice  `json:"invoices,omitempty"`
}

func (r *jsonRenderer) Render(data *ReportData, w io.Writer) error {
	out := jsonReport{
		Title:       data.Title(),
		Period:      data.Period(),
		GeneratedAt: data.Summary.GeneratedAt,
		Summary:     data.Summary,
		Validation:  data.Validation,
	}
	if data.config().IncludeInvoices {
		out.Invoices = data.Invoices
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return errors.RenderError(errors.CodeWriteFailed, "json", "", err)
	}
	return nil
}
