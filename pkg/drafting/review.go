package drafting

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"legalflow/pkg/model"
	"legalflow/pkg/render"
)

// MinDocumentLength is the shortest draft review accepts.
const MinDocumentLength = 200

//nolint:gochecknoglobals // fixed phrases
var signatureMarkers = []string{"respectfully submitted", "sincerely", "/s/"}

// Review checks the structure of a draft and returns every problem found. An empty result
// approves the document.
func Review(doc model.GeneratedDocument) []string {
	var issues []string
	content := strings.TrimSpace(doc.Content)

	if n := utf8.RuneCountInString(content); n < MinDocumentLength {
		issues = append(issues, fmt.Sprintf("content too short (%d characters, want at least %d)", n, MinDocumentLength))
	}

	lower := strings.ToLower(content)
	signed := false
	for _, m := range signatureMarkers {
		if strings.Contains(lower, m) {
			signed = true
			break
		}
	}
	if !signed {
		issues = append(issues, "missing signature block")
	}

	required := RequiredSection(doc.Type)
	if !hasHeading(render.Headings(content), required) {
		issues = append(issues, fmt.Sprintf("missing required section %q", required))
	}
	return issues
}

func hasHeading(headings []string, want string) bool {
	want = strings.ToLower(want)
	for _, h := range headings {
		if strings.Contains(strings.ToLower(h), want) {
			return true
		}
	}
	return false
}

// applyReview sets status and issues on every document still in draft.
func applyReview(docs []model.GeneratedDocument) (approved, flagged int) {
	for i := range docs {
		if docs[i].Status != model.DocumentDraft && docs[i].Status != "" {
			continue
		}
		docs[i].Issues = Review(docs[i])
		if len(docs[i].Issues) == 0 {
			docs[i].Status = model.DocumentApproved
			approved++
		} else {
			docs[i].Status = model.DocumentNeedsReview
			flagged++
		}
	}
	return approved, flagged
}
