package drafting

import (
	"legalflow/pkg/model"
)

//nolint:gochecknoglobals // fixed lookup tables
var (
	categoryDocuments = map[model.Category][]model.DocumentType{
		model.CategoryPersonalInjury:       {model.DocComplaint, model.DocDiscoveryRequest, model.DocEvidenceSummary},
		model.CategoryContractDispute:      {model.DocComplaint, model.DocMotion, model.DocLegalMemo},
		model.CategoryEmployment:           {model.DocComplaint, model.DocDiscoveryRequest, model.DocLegalMemo},
		model.CategoryPropertyDispute:      {model.DocComplaint, model.DocDemandLetter, model.DocLegalMemo},
		model.CategoryFamilyLaw:            {model.DocMotion, model.DocLegalMemo},
		model.CategoryCriminalDefense:      {model.DocMotion, model.DocBrief, model.DocLegalMemo},
		model.CategoryIntellectualProperty: {model.DocCeaseAndDesist, model.DocComplaint, model.DocLegalMemo},
		model.CategoryOther:                {model.DocLegalMemo},
	}

	typeSections = map[model.DocumentType][]string{
		model.DocComplaint:          {"Caption", "Parties", "Jurisdiction and Venue", "Statement of Facts", "Causes of Action", "Prayer for Relief"},
		model.DocMotion:             {"Caption", "Introduction", "Statement of Facts", "Argument", "Relief Requested"},
		model.DocUrgentMotion:       {"Caption", "Grounds for Urgency", "Statement of Facts", "Argument", "Relief Requested"},
		model.DocBrief:              {"Caption", "Questions Presented", "Statement of the Case", "Argument", "Conclusion"},
		model.DocLegalMemo:          {"Question Presented", "Brief Answer", "Facts", "Discussion", "Conclusion"},
		model.DocDiscoveryRequest:   {"Caption", "Definitions", "Instructions", "Requests", "Certificate of Service"},
		model.DocEvidenceSummary:    {"Overview", "Evidence", "Witnesses", "Analysis"},
		model.DocDemandLetter:       {"Introduction", "Facts", "Demand", "Deadline"},
		model.DocSettlementProposal: {"Background", "Proposed Terms", "Release", "Acceptance"},
		model.DocCeaseAndDesist:     {"Notice", "Protected Rights", "Infringing Conduct", "Demands", "Consequences"},
	}

	// requiredSections is the heading review insists on for each type.
	requiredSections = map[model.DocumentType]string{
		model.DocComplaint:          "Prayer for Relief",
		model.DocMotion:             "Relief Requested",
		model.DocUrgentMotion:       "Grounds for Urgency",
		model.DocBrief:              "Argument",
		model.DocLegalMemo:          "Discussion",
		model.DocDiscoveryRequest:   "Requests",
		model.DocEvidenceSummary:    "Evidence",
		model.DocDemandLetter:       "Demand",
		model.DocSettlementProposal: "Proposed Terms",
		model.DocCeaseAndDesist:     "Demands",
	}

	// categorySections adds a subject-matter section ahead of each document's closing section.
	categorySections = map[model.Category]string{
		model.CategoryPersonalInjury:       "Injuries and Damages",
		model.CategoryContractDispute:      "Contract Terms and Breach",
		model.CategoryEmployment:           "Employment Relationship",
		model.CategoryPropertyDispute:      "Property Description",
		model.CategoryFamilyLaw:            "Family Circumstances",
		model.CategoryCriminalDefense:      "Constitutional Issues",
		model.CategoryIntellectualProperty: "Intellectual Property Rights",
	}
)

// DetermineDocumentsNeeded returns the document types a case requires. High complexity appends a
// brief, critical urgency prepends a motion, and duplicates are dropped keeping first occurrence.
func DetermineDocumentsNeeded(category model.Category, complexity model.Complexity, urgency model.Urgency) []model.DocumentType {
	base, ok := categoryDocuments[category]
	if !ok {
		base = categoryDocuments[model.CategoryOther]
	}

	types := make([]model.DocumentType, 0, len(base)+2)
	if urgency == model.UrgencyCritical {
		types = append(types, model.DocMotion)
	}
	types = append(types, base...)
	if complexity == model.ComplexityHigh {
		types = append(types, model.DocBrief)
	}

	seen := make(map[model.DocumentType]bool, len(types))
	out := types[:0]
	for _, t := range types {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// SectionsFor returns the headings a draft of type t must use for a case in category.
func SectionsFor(category model.Category, t model.DocumentType) []string {
	base, ok := typeSections[t]
	if !ok {
		base = typeSections[model.DocLegalMemo]
	}
	out := append([]string(nil), base...)
	extra, ok := categorySections[category]
	if !ok {
		return out
	}
	last := len(out) - 1
	return append(out[:last], extra, base[last])
}

// RequiredSection is the heading review checks for on documents of type t.
func RequiredSection(t model.DocumentType) string {
	if s, ok := requiredSections[t]; ok {
		return s
	}
	return requiredSections[model.DocLegalMemo]
}
