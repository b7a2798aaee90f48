package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/agent"
	"legalflow/pkg/config"
	"legalflow/pkg/llm"
	"legalflow/pkg/model"
	"legalflow/pkg/templates"
)

func validCase() model.Case {
	return model.Case{
		ID: "case-1",
		Plaintiff: model.Plaintiff{
			FirstName: " Jane ",
			LastName:  "Doe",
			Email:     "Jane.Doe@Example.com",
			Phone:     "+1 (555) 123-4567",
			Address:   model.Address{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"},
		},
		Category:     model.CategoryContractDispute,
		Urgency:      model.UrgencyMedium,
		CourtLevel:   model.CourtDistrict,
		Complexity:   model.ComplexityMedium,
		Jurisdiction: "Illinois",
		Title:        "Doe v. Acme Supply",
		Description:  "Acme failed to deliver goods ordered under a written supply contract.",
	}
}

func newAgent(cfg config.IntakeConfig, client llm.Client) *Agent {
	return New(cfg, client, templates.MustNewRenderer(), agent.Deps{})
}

func TestValidCasePassesAndAdvancesStage(t *testing.T) {
	a := newAgent(config.IntakeConfig{}, llm.NewMockClient())
	out, err := a.Process(context.Background(), validCase())
	require.NoError(t, err)
	assert.Equal(t, 1, out.WorkflowStage)
	assert.Equal(t, "Jane", out.Plaintiff.FirstName)
	assert.Equal(t, "jane.doe@example.com", out.Plaintiff.Email)
}

func TestValidationReportsEveryField(t *testing.T) {
	c := validCase()
	c.Plaintiff.FirstName = "J"
	c.Plaintiff.Email = "not-an-email"
	c.Plaintiff.Phone = "12"
	c.Plaintiff.Address.City = ""
	c.Plaintiff.Address.ZipCode = "1234"
	c.Urgency = "urgent"
	c.Category = "tax"
	c.CourtLevel = "county"
	c.Complexity = "extreme"
	c.Description = "too short"

	err := Validate(c)
	var ve *agent.ValidationError
	require.ErrorAs(t, err, &ve)
	for _, f := range []string{
		"plaintiff.first_name", "plaintiff.email", "plaintiff.phone", "plaintiff.address.city",
		"plaintiff.address.zip_code", "urgency", "category", "court_level", "complexity", "description",
	} {
		assert.True(t, ve.Has(f), f)
	}
	assert.False(t, ve.Has("plaintiff.last_name"))
}

func TestValidationPatterns(t *testing.T) {
	tests := []struct {
		name  string
		apply func(*model.Case)
		field string
		ok    bool
	}{
		{"zip plus four", func(c *model.Case) { c.Plaintiff.Address.ZipCode = "62701-1234" }, "plaintiff.address.zip_code", true},
		{"zip letters", func(c *model.Case) { c.Plaintiff.Address.ZipCode = "6270A" }, "plaintiff.address.zip_code", false},
		{"phone dotted", func(c *model.Case) { c.Plaintiff.Phone = "555.123.4567" }, "plaintiff.phone", true},
		{"phone letters", func(c *model.Case) { c.Plaintiff.Phone = "555-CALL-NOW" }, "plaintiff.phone", false},
		{"long name", func(c *model.Case) { c.Plaintiff.LastName = string(make([]byte, 51)) }, "plaintiff.last_name", false},
		{"missing title", func(c *model.Case) { c.Title = "" }, "title", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCase()
			normalize(&c)
			tt.apply(&c)
			err := Validate(c)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			var ve *agent.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.True(t, ve.Has(tt.field))
		})
	}
}

func TestValidationErrorLeavesAgentAvailable(t *testing.T) {
	a := newAgent(config.IntakeConfig{}, llm.NewMockClient())
	c := validCase()
	c.Description = ""
	_, err := a.Process(context.Background(), c)
	require.Error(t, err)
	assert.False(t, a.Busy())

	_, err = a.Process(context.Background(), validCase())
	require.NoError(t, err)
}

func TestRefinementApplied(t *testing.T) {
	client := llm.NewMockClient("```json\n" +
		`{"urgency":"high","category":"employment","description":"Wrongful termination after reporting safety violations."}` +
		"\n```")
	a := newAgent(config.IntakeConfig{AIRefinement: true}, client)
	out, err := a.Process(context.Background(), validCase())
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyHigh, out.Urgency)
	assert.Equal(t, model.CategoryEmployment, out.Category)
	assert.Equal(t, "Wrongful termination after reporting safety violations.", out.Description)
	require.Len(t, client.Calls(), 1)
	assert.InDelta(t, llm.TemperatureDeterministic, client.Calls()[0].Temperature, 1e-6)
}

func TestRefinementFallsBack(t *testing.T) {
	tests := map[string]*llm.MockClient{
		"unparseable":    llm.NewMockClient("Sure, I think it is urgent."),
		"invalid values": llm.NewMockClient(`{"urgency":"asap","category":"employment","description":"A sufficiently long description."}`),
		"generate error": llm.NewMockClient().SetError(errors.New("provider down")),
	}
	for name, client := range tests {
		t.Run(name, func(t *testing.T) {
			a := newAgent(config.IntakeConfig{AIRefinement: true}, client)
			in := validCase()
			out, err := a.Process(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, in.Urgency, out.Urgency)
			assert.Equal(t, in.Category, out.Category)
			assert.Equal(t, in.Description, out.Description)
			assert.Equal(t, 1, out.WorkflowStage)
		})
	}
}

func TestHealthCheck(t *testing.T) {
	assert.True(t, newAgent(config.IntakeConfig{}, llm.NewMockClient("OK")).HealthCheck(context.Background()))
	assert.False(t, newAgent(config.IntakeConfig{}, llm.NewMockClient().SetError(errors.New("down"))).HealthCheck(context.Background()))
}
