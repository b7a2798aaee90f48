// Package research gathers authorities for a case from the retrieval engine and asks the model
// to analyse them.
//
// Retrieval failure is fatal for the stage. Each of the three generation steps degrades on its
// own to a deterministic result built from the retrieved documents.
package research

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"legalflow/pkg/agent"
	"legalflow/pkg/config"
	"legalflow/pkg/llm"
	"legalflow/pkg/model"
	"legalflow/pkg/retrieval"
	"legalflow/pkg/templates"
	"legalflow/pkg/utils"
)

// AgentID is the id of the research agent.
const AgentID = "research-agent"

// Document types and jurisdictions the research query is restricted to.
const (
	DocTypeCaseLaw    = "case-law"
	DocTypeStatute    = "statute"
	DocTypeRegulation = "regulation"

	FederalJurisdiction = "federal"
)

// Generation steps, used as metric labels.
const (
	StepAnalysis   = "analysis"
	StepPrecedents = "precedents"
	StepStatutes   = "statutes"
)

const contextExcerptRunes = 600

// Retriever is the part of the retrieval engine the agent uses.
type Retriever interface {
	Query(ctx context.Context, req retrieval.QueryRequest) (*retrieval.QueryResult, error)
	HealthCheck(ctx context.Context) error
}

// Agent is the research variant.
type Agent struct {
	*agent.Base
	cfg       config.ResearchConfig
	client    llm.Client
	retriever Retriever
	renderer  *templates.Renderer
}

// New returns a research agent.
func New(cfg config.ResearchConfig, client llm.Client, retriever Retriever, renderer *templates.Renderer, deps agent.Deps) *Agent {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.FallbackTopN <= 0 {
		cfg.FallbackTopN = 5
	}
	if cfg.ContextTopN <= 0 {
		cfg.ContextTopN = 8
	}
	return &Agent{
		Base: agent.NewBase(AgentID, "Research Agent", agent.TypeResearch,
			[]string{"legal-research", "precedent-analysis", "statute-extraction"}, deps),
		cfg:       cfg,
		client:    client,
		retriever: retriever,
		renderer:  renderer,
	}
}

// Process researches c and appends precedents, statutes and a summary.
func (a *Agent) Process(ctx context.Context, c model.Case) (model.Case, error) {
	return a.Run(ctx, c, a.process)
}

// QueryText builds the retrieval query from the case.
func QueryText(c model.Case) string {
	parts := []string{c.Title}
	parts = append(parts, c.Issues...)
	parts = append(parts, strings.ReplaceAll(string(c.Category), "-", " "), c.Jurisdiction)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// Request builds the filtered retrieval request for c.
func (a *Agent) Request(c model.Case) retrieval.QueryRequest {
	jurisdictions := []string{FederalJurisdiction}
	if j := strings.TrimSpace(c.Jurisdiction); j != "" && !strings.EqualFold(j, FederalJurisdiction) {
		jurisdictions = []string{j, FederalJurisdiction}
	}
	return retrieval.QueryRequest{
		Text:       QueryText(c),
		MaxResults: a.cfg.MaxResults,
		Threshold:  a.cfg.Threshold,
		Filters: retrieval.Filters{
			DocumentTypes: []string{DocTypeCaseLaw, DocTypeStatute, DocTypeRegulation},
			Jurisdictions: jurisdictions,
		},
	}
}

func (a *Agent) process(ctx context.Context, c model.Case) (model.Case, error) {
	res, err := a.retriever.Query(ctx, a.Request(c))
	if err != nil {
		return c, fmt.Errorf("research retrieval failed: %w", err)
	}
	docs := res.Documents
	a.ReportProgress(ctx, c.ID, 25, fmt.Sprintf("retrieved %d authorities", len(docs)))

	data := &templates.TemplateData{
		Case:    c,
		Context: buildContext(docs, a.cfg.ContextTopN),
		Extra:   map[string]any{"limit": a.cfg.ContextTopN},
	}

	summary := a.analysis(ctx, data, docs)
	a.ReportProgress(ctx, c.ID, 50, "analysis complete")
	precedents := a.precedents(ctx, data, docs)
	a.ReportProgress(ctx, c.ID, 75, fmt.Sprintf("%d precedents selected", len(precedents)))
	statutes := a.statutes(ctx, data, docs)

	c.Precedents = append(c.Precedents, precedents...)
	c.Laws = append(c.Laws, statutes...)
	if c.ResearchSummary != "" {
		c.ResearchSummary += "\n\n"
	}
	c.ResearchSummary += summary
	c.WorkflowStage++
	return c, nil
}

func buildContext(docs []retrieval.ScoredDocument, n int) string {
	var b strings.Builder
	for i, d := range docs {
		if i >= n {
			break
		}
		fmt.Fprintf(&b, "[%d] %s (%s, %s", i+1, d.Title, d.Metadata.DocumentType, d.Metadata.Jurisdiction)
		if d.Metadata.Citation != "" {
			fmt.Fprintf(&b, ", %s", d.Metadata.Citation)
		}
		fmt.Fprintf(&b, ", score %.2f)\n%s\n\n", d.Score, utils.TruncateRunes(d.Content, contextExcerptRunes))
	}
	if b.Len() == 0 {
		return "No authorities were retrieved."
	}
	return strings.TrimSpace(b.String())
}

func (a *Agent) generate(ctx context.Context, step string, name templates.PromptTemplate, data *templates.TemplateData) (string, error) {
	prompt, err := a.renderer.Render(name, data)
	if err != nil {
		return "", err //nolint:wrapcheck // renderer errors name the template
	}
	req := llm.NewRequest(prompt)
	req.Context = data.Context
	req.SystemPrompt = "You are a careful legal research assistant. Cite only the provided authorities."
	resp, err := a.client.Generate(agent.WithStep(ctx, step), req)
	if err != nil {
		return "", fmt.Errorf("%s generation failed: %w", step, err)
	}
	return resp.Content, nil
}

func (a *Agent) analysis(ctx context.Context, data *templates.TemplateData, docs []retrieval.ScoredDocument) string {
	out, err := a.generate(ctx, StepAnalysis, templates.ResearchAnalysisTemplate, data)
	if err == nil && strings.TrimSpace(out) == "" {
		err = errors.New("empty analysis")
	}
	if err != nil {
		a.Fallback(StepAnalysis, err)
		return FallbackSummary(data.Case, docs, a.cfg.FallbackTopN)
	}
	return strings.TrimSpace(out)
}

// FallbackSummary is the deterministic research summary used when analysis generation fails.
func FallbackSummary(c model.Case, docs []retrieval.ScoredDocument, n int) string {
	if len(docs) == 0 {
		return fmt.Sprintf("No authorities were retrieved for %s (%s, %s).", c.Title, c.Category, c.Jurisdiction)
	}
	titles := make([]string, 0, n)
	for i, d := range docs {
		if i >= n {
			break
		}
		titles = append(titles, d.Title)
	}
	return fmt.Sprintf("Retrieved %d authorities for %s (%s, %s). Most relevant: %s.",
		len(docs), c.Title, c.Category, c.Jurisdiction, strings.Join(titles, "; "))
}

func nonEmptyTitles[T any](title func(T) string) func([]T) error {
	return func(items []T) error {
		for i, it := range items {
			if strings.TrimSpace(title(it)) == "" {
				return fmt.Errorf("item %d has no title", i)
			}
		}
		return nil
	}
}

func (a *Agent) precedents(ctx context.Context, data *templates.TemplateData, docs []retrieval.ScoredDocument) []model.Precedent {
	fallback := FallbackPrecedents(docs, a.cfg.FallbackTopN)
	out, err := a.generate(ctx, StepPrecedents, templates.ResearchPrecedentsTemplate, data)
	if err != nil {
		a.Fallback(StepPrecedents, err)
		return fallback
	}
	parsed := agent.ParseOrDefault(a.Base, StepPrecedents, out, fallback,
		nonEmptyTitles(func(p model.Precedent) string { return p.Title }))
	if len(parsed) > a.cfg.ContextTopN {
		parsed = parsed[:a.cfg.ContextTopN]
	}
	return parsed
}

func (a *Agent) statutes(ctx context.Context, data *templates.TemplateData, docs []retrieval.ScoredDocument) []model.Statute {
	fallback := FallbackStatutes(docs, a.cfg.FallbackTopN)
	out, err := a.generate(ctx, StepStatutes, templates.ResearchStatutesTemplate, data)
	if err != nil {
		a.Fallback(StepStatutes, err)
		return fallback
	}
	parsed := agent.ParseOrDefault(a.Base, StepStatutes, out, fallback,
		nonEmptyTitles(func(s model.Statute) string { return s.Title }))
	if len(parsed) > a.cfg.ContextTopN {
		parsed = parsed[:a.cfg.ContextTopN]
	}
	return parsed
}

// FallbackPrecedents returns the top n retrieved case-law documents as precedents.
func FallbackPrecedents(docs []retrieval.ScoredDocument, n int) []model.Precedent {
	out := []model.Precedent{}
	for _, d := range docs {
		if len(out) >= n {
			break
		}
		if !strings.EqualFold(d.Metadata.DocumentType, DocTypeCaseLaw) {
			continue
		}
		out = append(out, model.Precedent{
			Title:     d.Title,
			Citation:  d.Metadata.Citation,
			Summary:   utils.TruncateRunes(d.Content, 280),
			Relevance: d.Score,
			Source:    d.Source,
		})
	}
	return out
}

// FallbackStatutes returns the top n retrieved statutes and regulations.
func FallbackStatutes(docs []retrieval.ScoredDocument, n int) []model.Statute {
	out := []model.Statute{}
	for _, d := range docs {
		if len(out) >= n {
			break
		}
		t := d.Metadata.DocumentType
		if !strings.EqualFold(t, DocTypeStatute) && !strings.EqualFold(t, DocTypeRegulation) {
			continue
		}
		out = append(out, model.Statute{
			Title:    d.Title,
			Citation: d.Metadata.Citation,
			Summary:  utils.TruncateRunes(d.Content, 280),
		})
	}
	return out
}

// HealthCheck requires a healthy retrieval engine and a generation round trip.
func (a *Agent) HealthCheck(ctx context.Context) bool {
	if err := a.retriever.HealthCheck(ctx); err != nil {
		a.Logger().Warn("Retrieval engine unhealthy: %v", err)
		return false
	}
	req := llm.NewRequest("Reply with the single word OK.")
	req.MaxTokens = 5
	resp, err := a.client.Generate(agent.WithStep(ctx, "health"), req)
	return err == nil && strings.TrimSpace(resp.Content) != ""
}
