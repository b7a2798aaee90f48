package render

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/model"
)

const draft = `# Complaint

## Parties
Plaintiff **Jane Doe** resides in Springfield.
She brings this action in good faith.

## Causes of Action
- Breach of contract
- Unjust enrichment

1. Compensatory damages
2. Costs <and> fees

Respectfully submitted,
Counsel for Plaintiff`

func testInput() (model.Case, model.GeneratedDocument) {
	c := model.Case{
		ID:           "case-9",
		Title:        "Doe v. Acme",
		CourtLevel:   model.CourtDistrict,
		Jurisdiction: "Illinois",
		Plaintiff:    model.Plaintiff{FirstName: "Jane", LastName: "Doe"},
	}
	doc := model.GeneratedDocument{
		ID:        "doc-1",
		Type:      model.DocComplaint,
		Title:     "Complaint: Doe v. Acme",
		Content:   draft,
		Status:    model.DocumentApproved,
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	return c, doc
}

func TestParseBlocks(t *testing.T) {
	blocks := ParseBlocks(draft)
	kinds := make([]BlockKind, 0, len(blocks))
	for _, b := range blocks {
		kinds = append(kinds, b.Kind)
	}
	assert.Equal(t, []BlockKind{
		BlockHeading, BlockHeading, BlockParagraph, BlockHeading, BlockList, BlockOrdered, BlockParagraph,
	}, kinds)
	assert.Equal(t, 1, blocks[0].Level)
	assert.Equal(t, "Plaintiff Jane Doe resides in Springfield. She brings this action in good faith.", blocks[2].Text)
	assert.Equal(t, []string{"Breach of contract", "Unjust enrichment"}, blocks[4].Items)
	assert.Equal(t, []string{"Complaint", "Parties", "Causes of Action"}, Headings(draft))
}

func TestMarkdownFrontmatterRoundTrip(t *testing.T) {
	c, doc := testInput()
	r, err := NewMarkdown().Render(c, doc)
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, r.Format)

	fm, body, err := ParseFrontmatter(r.Body)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", fm.DocumentID)
	assert.Equal(t, "complaint", fm.Type)
	assert.Equal(t, "Jane Doe", fm.Plaintiff)
	assert.Equal(t, "approved", fm.Status)
	assert.True(t, doc.CreatedAt.Equal(fm.Created))
	// the draft already opens with a level-one heading, so none is added
	assert.Equal(t, 1, strings.Count(body, "# Complaint\n"))
}

func TestMarkdownAddsTitleHeading(t *testing.T) {
	c, doc := testInput()
	doc.Content = "Plain memo text."
	r, err := NewMarkdown().Render(c, doc)
	require.NoError(t, err)
	assert.Contains(t, r.Body, "# Complaint: Doe v. Acme\n\nPlain memo text.\n")
}

func TestHTMLEscapesAndStructures(t *testing.T) {
	c, doc := testInput()
	doc.Status = model.DocumentNeedsReview
	doc.Issues = []string{"missing signature block"}
	r, err := NewHTML().Render(c, doc)
	require.NoError(t, err)

	assert.Equal(t, "text/html; charset=utf-8", r.ContentType)
	assert.Contains(t, r.Body, "<h2>Causes of Action</h2>")
	assert.Contains(t, r.Body, "<li>Breach of contract</li>")
	assert.Contains(t, r.Body, "<ol>")
	assert.Contains(t, r.Body, "Costs &lt;and&gt; fees")
	assert.Contains(t, r.Body, `class="status-needs-review"`)
	assert.Contains(t, r.Body, "<li>missing signature block</li>")
	assert.NotContains(t, r.Body, "**")
}

func TestNewFormats(t *testing.T) {
	rs, err := New([]string{"html", "Markdown"})
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, FormatHTML, rs[0].Format())
	assert.Equal(t, FormatMarkdown, rs[1].Format())

	_, err = New([]string{"pdf"})
	require.ErrorIs(t, err, ErrUnknownFormat)
}

func TestSplitFrontmatterMissing(t *testing.T) {
	_, body, err := SplitFrontmatter("# Title\nbody")
	require.ErrorIs(t, err, ErrNoFrontmatter)
	assert.Equal(t, "# Title\nbody", body)
}

func TestTypeLabel(t *testing.T) {
	assert.Equal(t, "Cease And Desist", TypeLabel(model.DocCeaseAndDesist))
	assert.Equal(t, "Brief", TypeLabel(model.DocBrief))
}
