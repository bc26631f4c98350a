package render

import (
	"io"
	"text/template"

	"orion-waste-reports/pkg/errors"
)

var reportTemplate = template.Must(
	template.New("report.md.tmpl").
		Funcs(templateFuncs()).
		ParseFS(templateFS, "templates/report.md.tmpl"),
)

type markdownRenderer struct{}

func (r *markdownRenderer) Format() Format { return FormatMarkdown }

func (r *markdownRenderer) Render(data *ReportData, w io.Writer) error {
	v := newView(data, data.config().MaxIssues)
	if err := reportTemplate.Execute(w, v); err != nil {
		return errors.RenderError(errors.CodeTemplateError, "markdown", "", err)
	}
	return nil
}
