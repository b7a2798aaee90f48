package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"legalflow/pkg/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// HTML renders drafts as standalone HTML pages.
type HTML struct {
	tmpl *template.Template
}

type htmlData struct {
	Doc       model.GeneratedDocument
	Case      model.Case
	TypeLabel string
	Blocks    []Block
	Meta      Frontmatter
}

// NewHTML returns the HTML renderer. It panics if the embedded template does not parse.
func NewHTML() *HTML {
	tmpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	return &HTML{tmpl: tmpl}
}

// Format implements Renderer.
func (*HTML) Format() string { return FormatHTML }

// Render implements Renderer.
func (h *HTML) Render(c model.Case, doc model.GeneratedDocument) (model.Rendition, error) {
	var buf bytes.Buffer
	data := htmlData{
		Doc:       doc,
		Case:      c,
		TypeLabel: TypeLabel(doc.Type),
		Blocks:    ParseBlocks(doc.Content),
		Meta:      newFrontmatter(c, doc),
	}
	if err := h.tmpl.ExecuteTemplate(&buf, "document.html", data); err != nil {
		return model.Rendition{}, fmt.Errorf("failed to render %s as html: %w", doc.ID, err)
	}
	return model.Rendition{
		Format:      FormatHTML,
		ContentType: "text/html; charset=utf-8",
		Body:        buf.String(),
	}, nil
}
