// Package templates renders the prompts agents send to the generation service.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"legalflow/pkg/model"
)

//go:embed prompts/*.tpl.md
var templateFS embed.FS

// TemplateData holds the data for prompt rendering.
type TemplateData struct {
	Case         model.Case         `json:"case"`
	Context      string             `json:"context,omitempty"`
	DocumentType model.DocumentType `json:"document_type,omitempty"`
	Sections     []string           `json:"sections,omitempty"`
	Extra        map[string]any     `json:"extra,omitempty"`
}

// PromptTemplate names an embedded prompt.
type PromptTemplate string

const (
	// IntakeRefinementTemplate asks for a refined urgency, category and description.
	IntakeRefinementTemplate PromptTemplate = "prompts/intake_refinement.tpl.md"
	// ResearchAnalysisTemplate asks for a narrative legal analysis.
	ResearchAnalysisTemplate PromptTemplate = "prompts/research_analysis.tpl.md"
	// ResearchPrecedentsTemplate asks for ranked precedents as a JSON array.
	ResearchPrecedentsTemplate PromptTemplate = "prompts/research_precedents.tpl.md"
	// ResearchStatutesTemplate asks for relevant statutes as a JSON array.
	ResearchStatutesTemplate PromptTemplate = "prompts/research_statutes.tpl.md"
	// ArgumentOutlineTemplate asks for an argument outline as a JSON array.
	ArgumentOutlineTemplate PromptTemplate = "prompts/argument_outline.tpl.md"
	// DocumentDraftTemplate asks for one document following a section structure.
	DocumentDraftTemplate PromptTemplate = "prompts/document_draft.tpl.md"
)

// All lists every prompt the renderer loads.
func All() []PromptTemplate {
	return []PromptTemplate{
		IntakeRefinementTemplate,
		ResearchAnalysisTemplate,
		ResearchPrecedentsTemplate,
		ResearchStatutesTemplate,
		ArgumentOutlineTemplate,
		DocumentDraftTemplate,
	}
}

// Renderer holds the parsed prompts.
type Renderer struct {
	templates map[PromptTemplate]*template.Template
}

//nolint:gochecknoglobals // shared helpers
var funcs = template.FuncMap{
	"join":  strings.Join,
	"upper": strings.ToUpper,
	"add1":  func(i int) int { return i + 1 },
	"quote": func(s string) string { return fmt.Sprintf("%q", s) },
}

// NewRenderer parses every embedded prompt.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[PromptTemplate]*template.Template)}
	for _, name := range All() {
		content, err := templateFS.ReadFile(string(name))
		if err != nil {
			return nil, fmt.Errorf("failed to read template %s: %w", name, err)
		}
		tmpl, err := template.New(string(name)).Funcs(funcs).Option("missingkey=zero").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// MustNewRenderer is NewRenderer for the embedded prompts, which are known to parse.
func MustNewRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render renders the named prompt.
func (r *Renderer) Render(name PromptTemplate, data *TemplateData) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("template %s not found", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
