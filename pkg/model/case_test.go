package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnumerationValidity(t *testing.T) {
	assert.True(t, UrgencyCritical.Valid())
	assert.False(t, Urgency("urgent").Valid())
	assert.True(t, CategoryIntellectualProperty.Valid())
	assert.False(t, Category("tax").Valid())
	assert.True(t, CourtSmallClaims.Valid())
	assert.False(t, CourtLevel("county").Valid())
	assert.True(t, ComplexityHigh.Valid())
	assert.False(t, Complexity("extreme").Valid())
	assert.Len(t, Categories(), 8)
}

func TestCloneIsDeep(t *testing.T) {
	orig := Case{
		ID:        "c1",
		Issues:    []string{"breach"},
		Arguments: []Argument{{Heading: "h", Points: []string{"p"}}},
		Documents: []GeneratedDocument{{ID: "d1", Renditions: map[string]Rendition{"html": {Format: "html"}}}},
	}
	cp := orig.Clone()
	cp.Issues[0] = "changed"
	cp.Arguments[0].Points[0] = "changed"
	cp.Documents[0].Renditions["md"] = Rendition{}

	assert.Equal(t, "breach", orig.Issues[0])
	assert.Equal(t, "p", orig.Arguments[0].Points[0])
	assert.Len(t, orig.Documents[0].Renditions, 1)
}

func TestFullName(t *testing.T) {
	p := Plaintiff{FirstName: "Ada", LastName: "Lovelace"}
	assert.Equal(t, "Ada Lovelace", p.FullName())
}
