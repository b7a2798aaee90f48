// Package intake validates new cases and optionally lets the model refine their classification.
package intake

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"legalflow/pkg/agent"
	"legalflow/pkg/config"
	"legalflow/pkg/llm"
	"legalflow/pkg/model"
	"legalflow/pkg/templates"
)

// AgentID is the id of the intake agent.
const AgentID = "intake-agent"

// Field limits.
const (
	MinNameLength        = 2
	MaxNameLength        = 50
	MinDescriptionLength = 20
)

//nolint:gochecknoglobals // compiled once
var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^\+?[0-9\s().-]{10,20}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// Agent is the intake variant.
type Agent struct {
	*agent.Base
	cfg      config.IntakeConfig
	client   llm.Client
	renderer *templates.Renderer
}

// New returns an intake agent.
func New(cfg config.IntakeConfig, client llm.Client, renderer *templates.Renderer, deps agent.Deps) *Agent {
	return &Agent{
		Base: agent.NewBase(AgentID, "Intake Agent", agent.TypeIntake,
			[]string{"input-validation", "case-classification"}, deps),
		cfg:      cfg,
		client:   client,
		renderer: renderer,
	}
}

// Process validates c, optionally refines it, and advances its workflow stage.
func (a *Agent) Process(ctx context.Context, c model.Case) (model.Case, error) {
	return a.Run(ctx, c, a.process)
}

func (a *Agent) process(ctx context.Context, c model.Case) (model.Case, error) {
	normalize(&c)
	if err := Validate(c); err != nil {
		return c, err
	}
	a.ReportProgress(ctx, c.ID, 50, "input validated")

	if a.cfg.AIRefinement {
		c = a.refine(ctx, c)
	}
	c.WorkflowStage++
	return c, nil
}

func normalize(c *model.Case) {
	p := &c.Plaintiff
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = strings.TrimSpace(p.Phone)
	p.Address.Street = strings.TrimSpace(p.Address.Street)
	p.Address.City = strings.TrimSpace(p.Address.City)
	p.Address.State = strings.TrimSpace(p.Address.State)
	p.Address.ZipCode = strings.TrimSpace(p.Address.ZipCode)
	c.Title = strings.TrimSpace(c.Title)
	c.Description = strings.TrimSpace(c.Description)
	c.Jurisdiction = strings.TrimSpace(c.Jurisdiction)
}

// Validate checks every field and reports all problems at once.
func Validate(c model.Case) error {
	ve := &agent.ValidationError{}
	p := c.Plaintiff

	checkName := func(field, v string) {
		if n := utf8.RuneCountInString(v); n < MinNameLength || n > MaxNameLength {
			ve.Add(field, "must be between %d and %d characters", MinNameLength, MaxNameLength)
		}
	}
	checkName("plaintiff.first_name", p.FirstName)
	checkName("plaintiff.last_name", p.LastName)

	if !emailPattern.MatchString(p.Email) {
		ve.Add("plaintiff.email", "invalid email address")
	}
	if !phonePattern.MatchString(p.Phone) {
		ve.Add("plaintiff.phone", "invalid phone number")
	}
	if p.Address.Street == "" {
		ve.Add("plaintiff.address.street", "required")
	}
	if p.Address.City == "" {
		ve.Add("plaintiff.address.city", "required")
	}
	if p.Address.State == "" {
		ve.Add("plaintiff.address.state", "required")
	}
	if !zipPattern.MatchString(p.Address.ZipCode) {
		ve.Add("plaintiff.address.zip_code", "must be ZIP or ZIP+4")
	}

	if !c.Urgency.Valid() {
		ve.Add("urgency", "unknown urgency %q", c.Urgency)
	}
	if !c.Category.Valid() {
		ve.Add("category", "unknown category %q", c.Category)
	}
	if !c.CourtLevel.Valid() {
		ve.Add("court_level", "unknown court level %q", c.CourtLevel)
	}
	if !c.Complexity.Valid() {
		ve.Add("complexity", "unknown complexity %q", c.Complexity)
	}
	if c.Title == "" {
		ve.Add("title", "required")
	}
	if utf8.RuneCountInString(c.Description) < MinDescriptionLength {
		ve.Add("description", "must be at least %d characters", MinDescriptionLength)
	}
	return ve.OrNil()
}

// Refinement is the model's suggested classification.
type Refinement struct {
	Urgency     model.Urgency  `json:"urgency"`
	Category    model.Category `json:"category"`
	Description string         `json:"description"`
}

func (r Refinement) validate() error {
	var errs []error
	if !r.Urgency.Valid() {
		errs = append(errs, fmt.Errorf("invalid urgency %q", r.Urgency))
	}
	if !r.Category.Valid() {
		errs = append(errs, fmt.Errorf("invalid category %q", r.Category))
	}
	if utf8.RuneCountInString(strings.TrimSpace(r.Description)) < MinDescriptionLength {
		errs = append(errs, errors.New("description too short"))
	}
	return errors.Join(errs...)
}

// refine asks the model for a better classification. Any failure keeps the validated values.
func (a *Agent) refine(ctx context.Context, c model.Case) model.Case {
	const step = "refine"
	original := Refinement{Urgency: c.Urgency, Category: c.Category, Description: c.Description}

	categories := make([]string, 0, len(model.Categories()))
	for _, cat := range model.Categories() {
		categories = append(categories, string(cat))
	}
	prompt, err := a.renderer.Render(templates.IntakeRefinementTemplate, &templates.TemplateData{
		Case:  c,
		Extra: map[string]any{"categories": categories},
	})
	if err != nil {
		a.Fallback(step, err)
		return c
	}

	req := llm.NewRequest(prompt)
	req.SystemPrompt = "You classify legal intake records. Reply with JSON only."
	req.Temperature = llm.TemperatureDeterministic
	req.MaxTokens = 1024
	resp, err := a.client.Generate(agent.WithStep(ctx, step), req)
	if err != nil {
		a.Fallback(step, err)
		return c
	}

	r := agent.ParseOrDefault(a.Base, step, resp.Content, original, Refinement.validate)
	c.Urgency = r.Urgency
	c.Category = r.Category
	c.Description = strings.TrimSpace(r.Description)
	return c
}

// HealthCheck performs a minimal generation round trip.
func (a *Agent) HealthCheck(ctx context.Context) bool {
	req := llm.NewRequest("Reply with the single word OK.")
	req.MaxTokens = 5
	resp, err := a.client.Generate(agent.WithStep(ctx, "health"), req)
	return err == nil && strings.TrimSpace(resp.Content) != ""
}
