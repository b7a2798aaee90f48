// Package render turns drafted documents into their physical formats.
//
// Drafts are Markdown produced by the model. The Markdown renderer wraps them with YAML
// frontmatter describing the case; the HTML renderer parses them into blocks and executes an
// embedded html/template. PDF and DOCX are left to external collaborators implementing Renderer.
package render

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"legalflow/pkg/model"
)

// Format names understood by New.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// ErrUnknownFormat is returned by New for a format with no built-in renderer.
var ErrUnknownFormat = errors.New("unknown render format")

// Renderer produces one physical rendition of a generated document.
type Renderer interface {
	Format() string
	Render(c model.Case, doc model.GeneratedDocument) (model.Rendition, error)
}

// New returns the built-in renderers for formats, in order.
func New(formats []string) ([]Renderer, error) {
	out := make([]Renderer, 0, len(formats))
	for _, f := range formats {
		switch strings.ToLower(strings.TrimSpace(f)) {
		case FormatHTML:
			out = append(out, NewHTML())
		case FormatMarkdown, "md":
			out = append(out, NewMarkdown())
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
		}
	}
	return out, nil
}

// Frontmatter is the document header written by the Markdown renderer.
type Frontmatter struct {
	DocumentID   string    `yaml:"document_id"`
	Type         string    `yaml:"type"`
	Title        string    `yaml:"title"`
	Status       string    `yaml:"status"`
	CaseID       string    `yaml:"case_id"`
	CaseTitle    string    `yaml:"case_title"`
	Plaintiff    string    `yaml:"plaintiff"`
	Court        string    `yaml:"court"`
	Jurisdiction string    `yaml:"jurisdiction"`
	Created      time.Time `yaml:"created"`
	Issues       []string  `yaml:"review_issues,omitempty"`
}

func newFrontmatter(c model.Case, doc model.GeneratedDocument) Frontmatter {
	return Frontmatter{
		DocumentID:   doc.ID,
		Type:         string(doc.Type),
		Title:        doc.Title,
		Status:       string(doc.Status),
		CaseID:       c.ID,
		CaseTitle:    c.Title,
		Plaintiff:    strings.TrimSpace(c.Plaintiff.FullName()),
		Court:        string(c.CourtLevel),
		Jurisdiction: c.Jurisdiction,
		Created:      doc.CreatedAt.UTC(),
		Issues:       doc.Issues,
	}
}

// TypeLabel turns a document type such as "cease-and-desist" into "Cease And Desist".
func TypeLabel(t model.DocumentType) string {
	words := strings.Split(string(t), "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
