package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"orion-waste-reports/pkg/errors"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var dashboardTemplate = template.Must(
	template.New("dashboard.html.tmpl").
		Funcs(templateFuncs()).
		ParseFS(templateFS, "templates/dashboard.html.tmpl"),
)

var markdownConverter = goldmark.New(goldmark.WithExtensions(extension.Table))

type htmlRenderer struct{}

func (r *htmlRenderer) Format() Format { return FormatHTML }

// htmlView adds the converted notes to the shared view
type htmlView struct {
	*view
	NotesHTML template.HTML
}

func (r *htmlRenderer) Render(data *ReportData, w io.Writer) error {
	v := newView(data, 0)

	notes, err := markdownToHTML(v.Notes)
	if err != nil {
		return errors.RenderError(errors.CodeTemplateError, "html", "", err)
	}

	if err := dashboardTemplate.Execute(w, &htmlView{view: v, NotesHTML: notes}); err != nil {
		return errors.RenderError(errors.CodeTemplateError, "html", "", err)
	}
	return nil
}

// markdownToHTML converts Markdown to HTML. Raw HTML in the source is
// dropped by goldmark's default renderer.
func markdownToHTML(src string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdownConverter.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("failed to convert notes: %w", err)
	}
	return template.HTML(buf.String()), nil
}
