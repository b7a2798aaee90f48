// Package drafting implements the document agent. One instance serves the argument-generation,
// drafting, review and final-formatting stages, choosing its work from the case's workflow stage.
package drafting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"legalflow/pkg/agent"
	"legalflow/pkg/config"
	"legalflow/pkg/llm"
	"legalflow/pkg/model"
	"legalflow/pkg/render"
	"legalflow/pkg/templates"
	"legalflow/pkg/workflow"
)

// AgentID is the id of the document agent.
const AgentID = "document-agent"

const (
	stepOutline = "outline"
	stepDraft   = "draft"
)

// Errors returned by drafting.
var (
	ErrEmptyDraft  = errors.New("model returned an empty draft")
	ErrNoRenderers = errors.New("no renderers configured")
)

// Agent is the document variant.
type Agent struct {
	*agent.Base
	cfg       config.DocumentConfig
	client    llm.Client
	prompts   *templates.Renderer
	renderers []render.Renderer
}

// New returns a document agent rendering into the given formats.
func New(cfg config.DocumentConfig, client llm.Client, prompts *templates.Renderer, renderers []render.Renderer, deps agent.Deps) *Agent {
	if cfg.MinHealthLength <= 0 {
		cfg.MinHealthLength = 100
	}
	return &Agent{
		Base: agent.NewBase(AgentID, "Document Agent", agent.TypeDocument,
			[]string{"argument-generation", "document-drafting", "document-review", "document-formatting"}, deps),
		cfg:       cfg,
		client:    client,
		prompts:   prompts,
		renderers: renderers,
	}
}

// Process runs the work for the case's current stage and advances it.
func (a *Agent) Process(ctx context.Context, c model.Case) (model.Case, error) {
	return a.Run(ctx, c, a.process)
}

func (a *Agent) process(ctx context.Context, c model.Case) (model.Case, error) {
	var err error
	switch c.WorkflowStage {
	case workflow.StageArgumentGeneration.Index():
		c = a.outline(ctx, c)
	case workflow.StageDrafting.Index():
		c, err = a.draft(ctx, c)
	case workflow.StageReview.Index():
		c = a.review(ctx, c)
	case workflow.StageFinalFormatting.Index():
		c, err = a.format(ctx, c)
	default:
		c, err = a.complete(ctx, c)
	}
	if err != nil {
		return c, err
	}
	c.WorkflowStage++
	return c, nil
}

// complete drafts, reviews and formats in one pass.
func (a *Agent) complete(ctx context.Context, c model.Case) (model.Case, error) {
	c, err := a.draft(ctx, c)
	if err != nil {
		return c, err
	}
	c = a.review(ctx, c)
	return a.format(ctx, c)
}

func (a *Agent) outline(ctx context.Context, c model.Case) model.Case {
	fallback := FallbackArguments(c)
	prompt, err := a.prompts.Render(templates.ArgumentOutlineTemplate, &templates.TemplateData{Case: c})
	if err != nil {
		a.Fallback(stepOutline, err)
		c.Arguments = append(c.Arguments, fallback...)
		return c
	}
	req := llm.NewRequest(prompt)
	req.SystemPrompt = "You are a litigation strategist. Reply with JSON only."
	req.Temperature = llm.TemperatureDeterministic
	resp, err := a.client.Generate(agent.WithStep(ctx, stepOutline), req)
	if err != nil {
		a.Fallback(stepOutline, err)
		c.Arguments = append(c.Arguments, fallback...)
		return c
	}
	args := agent.ParseOrDefault(a.Base, stepOutline, resp.Content, fallback, validArguments)
	c.Arguments = append(c.Arguments, args...)
	a.ReportProgress(ctx, c.ID, 100, fmt.Sprintf("outlined %d arguments", len(args)))
	return c
}

func validArguments(args []model.Argument) error {
	if len(args) == 0 {
		return errors.New("no arguments")
	}
	for i, arg := range args {
		if strings.TrimSpace(arg.Heading) == "" {
			return fmt.Errorf("argument %d has no heading", i)
		}
	}
	return nil
}

// FallbackArguments outlines one argument per issue, supported by the strongest precedents.
func FallbackArguments(c model.Case) []model.Argument {
	var support []string
	for i, p := range c.Precedents {
		if i == 3 {
			break
		}
		support = append(support, "See "+p.Title)
	}
	if len(support) == 0 {
		support = []string{"Facts as stated in the complaint"}
	}

	headings := c.Issues
	if len(headings) == 0 {
		headings = []string{c.Title}
	}
	out := make([]model.Argument, 0, len(headings))
	for _, h := range headings {
		out = append(out, model.Argument{Heading: h, Points: append([]string(nil), support...)})
	}
	return out
}

// draft generates every required document not already on the case. Generation failure is fatal.
func (a *Agent) draft(ctx context.Context, c model.Case) (model.Case, error) {
	needed := DetermineDocumentsNeeded(c.Category, c.Complexity, c.Urgency)
	have := make(map[model.DocumentType]bool, len(c.Documents))
	for _, d := range c.Documents {
		have[d.Type] = true
	}

	for i, t := range needed {
		if have[t] {
			continue
		}
		doc, err := a.draftOne(ctx, c, t)
		if err != nil {
			return c, err
		}
		c.Documents = append(c.Documents, doc)
		a.ReportProgress(ctx, c.ID, (i+1)*100/len(needed), fmt.Sprintf("drafted %s", t))
	}
	return c, nil
}

func (a *Agent) draftOne(ctx context.Context, c model.Case, t model.DocumentType) (model.GeneratedDocument, error) {
	prompt, err := a.prompts.Render(templates.DocumentDraftTemplate, &templates.TemplateData{
		Case:         c,
		DocumentType: t,
		Sections:     SectionsFor(c.Category, t),
	})
	if err != nil {
		return model.GeneratedDocument{}, fmt.Errorf("failed to build %s prompt: %w", t, err)
	}
	req := llm.NewRequest(prompt)
	req.Context = c.ResearchSummary
	req.SystemPrompt = "You are an experienced litigation attorney. Draft court-ready documents in Markdown."
	resp, err := a.client.Generate(agent.WithStep(ctx, stepDraft), req)
	if err != nil {
		return model.GeneratedDocument{}, fmt.Errorf("failed to draft %s: %w", t, err)
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return model.GeneratedDocument{}, fmt.Errorf("failed to draft %s: %w", t, ErrEmptyDraft)
	}
	return model.GeneratedDocument{
		ID:        uuid.NewString(),
		Type:      t,
		Title:     fmt.Sprintf("%s: %s", render.TypeLabel(t), c.Title),
		Content:   content,
		Status:    model.DocumentDraft,
		Model:     resp.Model,
		CreatedAt: a.Now(),
	}, nil
}

func (a *Agent) review(ctx context.Context, c model.Case) model.Case {
	approved, flagged := applyReview(c.Documents)
	if flagged > 0 {
		a.Logger().Warn("Case %s: %d documents need review", c.ID, flagged)
	}
	a.ReportProgress(ctx, c.ID, 100, fmt.Sprintf("%d approved, %d need review", approved, flagged))
	return c
}

// format renders every document into every configured format.
func (a *Agent) format(ctx context.Context, c model.Case) (model.Case, error) {
	if len(a.renderers) == 0 {
		return c, ErrNoRenderers
	}
	for i := range c.Documents {
		doc := &c.Documents[i]
		if doc.Renditions == nil {
			doc.Renditions = make(map[string]model.Rendition, len(a.renderers))
		}
		for _, r := range a.renderers {
			out, err := r.Render(c, *doc)
			if err != nil {
				return c, fmt.Errorf("failed to render %s as %s: %w", doc.ID, r.Format(), err)
			}
			doc.Renditions[r.Format()] = out
		}
	}
	a.ReportProgress(ctx, c.ID, 100, fmt.Sprintf("rendered %d documents", len(c.Documents)))
	return c, nil
}

// SyntheticCase is the case the health check drafts.
func SyntheticCase() model.Case {
	return model.Case{
		ID: "health-check",
		Plaintiff: model.Plaintiff{
			FirstName: "Health", LastName: "Check", Email: "health@example.com", Phone: "+1 555 000 0000",
			Address: model.Address{Street: "1 Court St", City: "Springfield", State: "IL", ZipCode: "62701"},
		},
		Category:     model.CategoryOther,
		Urgency:      model.UrgencyLow,
		CourtLevel:   model.CourtDistrict,
		Complexity:   model.ComplexityLow,
		Jurisdiction: "federal",
		Title:        "Health check matter",
		Description:  "A synthetic matter used to verify that drafting, review and rendering work.",
	}
}

// HealthCheck drafts, reviews and renders a synthetic case outside the single-flight guard and
// checks the length of the rendered output.
func (a *Agent) HealthCheck(ctx context.Context) bool {
	c, err := a.complete(agent.WithStep(ctx, "health"), SyntheticCase())
	if err != nil || len(c.Documents) == 0 {
		return false
	}
	for _, doc := range c.Documents {
		if len(doc.Renditions) < len(a.renderers) {
			return false
		}
		for _, r := range doc.Renditions {
			if utf8.RuneCountInString(r.Body) < a.cfg.MinHealthLength {
				return false
			}
		}
	}
	return true
}
