package render

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"legalflow/pkg/model"
)

// Markdown writes the draft behind a YAML frontmatter block.
type Markdown struct{}

// NewMarkdown returns the Markdown renderer.
func NewMarkdown() *Markdown { return &Markdown{} }

// Format implements Renderer.
func (*Markdown) Format() string { return FormatMarkdown }

// Render implements Renderer.
func (*Markdown) Render(c model.Case, doc model.GeneratedDocument) (model.Rendition, error) {
	fm, err := yaml.Marshal(newFrontmatter(c, doc))
	if err != nil {
		return model.Rendition{}, fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	body := strings.TrimSpace(doc.Content)
	if first := ParseBlocks(body); len(first) == 0 || first[0].Kind != BlockHeading || first[0].Level != 1 {
		fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	}
	b.WriteString(body)
	b.WriteString("\n")

	return model.Rendition{
		Format:      FormatMarkdown,
		ContentType: "text/markdown; charset=utf-8",
		Body:        b.String(),
	}, nil
}
