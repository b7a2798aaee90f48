package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/model"
)

func sampleCase() model.Case {
	return model.Case{
		ID:           "case-1",
		Title:        "Doe v. Acme",
		Category:     model.CategoryContractDispute,
		Urgency:      model.UrgencyMedium,
		CourtLevel:   model.CourtDistrict,
		Jurisdiction: "California",
		Description:  "Acme failed to deliver goods under the supply agreement.",
		Issues:       []string{"breach of contract", "damages"},
		Plaintiff:    model.Plaintiff{FirstName: "Jane", LastName: "Doe"},
		Arguments:    []model.Argument{{Heading: "Acme breached", Points: []string{"late delivery"}}},
		Precedents:   []model.Precedent{{Title: "Smith v. Jones", Citation: "1 Cal. 1"}},
	}
}

func TestNewRendererLoadsAllTemplates(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	assert.Len(t, r.templates, len(All()))
}

func TestRenderDocumentDraft(t *testing.T) {
	r := MustNewRenderer()
	out, err := r.Render(DocumentDraftTemplate, &TemplateData{
		Case:         sampleCase(),
		DocumentType: model.DocComplaint,
		Sections:     []string{"Parties", "Causes of Action"},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Draft a complaint")
	assert.Contains(t, out, "## Parties")
	assert.Contains(t, out, "## Causes of Action")
	assert.Contains(t, out, "1. Acme breached")
	assert.Contains(t, out, "Smith v. Jones, 1 Cal. 1")
	assert.Contains(t, out, "Respectfully submitted,")
}

func TestRenderIntakeUsesExtra(t *testing.T) {
	r := MustNewRenderer()
	out, err := r.Render(IntakeRefinementTemplate, &TemplateData{
		Case:  sampleCase(),
		Extra: map[string]any{"categories": []string{"employment", "other"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "employment|other")
	assert.Contains(t, out, "Doe v. Acme")
}

func TestRenderResearchPrompts(t *testing.T) {
	r := MustNewRenderer()
	for _, name := range []PromptTemplate{ResearchAnalysisTemplate, ResearchPrecedentsTemplate, ResearchStatutesTemplate, ArgumentOutlineTemplate} {
		out, err := r.Render(name, &TemplateData{Case: sampleCase(), Extra: map[string]any{"limit": 5}})
		require.NoError(t, err, name)
		assert.Contains(t, out, "contract-dispute", name)
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	r := MustNewRenderer()
	_, err := r.Render("prompts/missing.tpl.md", &TemplateData{})
	require.Error(t, err)
}
