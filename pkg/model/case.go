// Package model defines the case record passed by value through the workflow pipeline,
// together with its fixed enumerations.
package model

import (
	"time"
)

// Urgency is how quickly a case needs action.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// Category is the area of law a case belongs to.
type Category string

const (
	CategoryPersonalInjury       Category = "personal-injury"
	CategoryContractDispute      Category = "contract-dispute"
	CategoryEmployment           Category = "employment"
	CategoryPropertyDispute      Category = "property-dispute"
	CategoryFamilyLaw            Category = "family-law"
	CategoryCriminalDefense      Category = "criminal-defense"
	CategoryIntellectualProperty Category = "intellectual-property"
	CategoryOther                Category = "other"
)

// CourtLevel is the court a case is filed in.
type CourtLevel string

const (
	CourtSmallClaims CourtLevel = "small-claims"
	CourtDistrict    CourtLevel = "district"
	CourtSuperior    CourtLevel = "superior"
	CourtAppellate   CourtLevel = "appellate"
	CourtSupreme     CourtLevel = "supreme"
	CourtFederal     CourtLevel = "federal"
)

// Complexity is the expected effort for a case.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// DocumentType identifies a kind of generated legal document.
type DocumentType string

const (
	DocComplaint          DocumentType = "complaint"
	DocMotion             DocumentType = "motion"
	DocBrief              DocumentType = "brief"
	DocLegalMemo          DocumentType = "legal-memo"
	DocDiscoveryRequest   DocumentType = "discovery-request"
	DocEvidenceSummary    DocumentType = "evidence-summary"
	DocDemandLetter       DocumentType = "demand-letter"
	DocSettlementProposal DocumentType = "settlement-proposal"
	DocCeaseAndDesist     DocumentType = "cease-and-desist"
	DocUrgentMotion       DocumentType = "urgent-motion"
)

// DocumentStatus is the review outcome of a generated document.
type DocumentStatus string

const (
	DocumentDraft       DocumentStatus = "draft"
	DocumentApproved    DocumentStatus = "approved"
	DocumentNeedsReview DocumentStatus = "needs-review"
)

//nolint:gochecknoglobals // fixed enumerations
var (
	urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical}

	categories = []Category{
		CategoryPersonalInjury, CategoryContractDispute, CategoryEmployment, CategoryPropertyDispute,
		CategoryFamilyLaw, CategoryCriminalDefense, CategoryIntellectualProperty, CategoryOther,
	}

	courtLevels = []CourtLevel{CourtSmallClaims, CourtDistrict, CourtSuperior, CourtAppellate, CourtSupreme, CourtFederal}

	complexities = []Complexity{ComplexityLow, ComplexityMedium, ComplexityHigh}
)

// Valid reports whether u is a known urgency.
func (u Urgency) Valid() bool { return contains(urgencies, u) }

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return contains(categories, c) }

// Valid reports whether l is a known court level.
func (l CourtLevel) Valid() bool { return contains(courtLevels, l) }

// Valid reports whether c is a known complexity.
func (c Complexity) Valid() bool { return contains(complexities, c) }

// Categories returns every category in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Address is a postal address.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
}

// Plaintiff is the client bringing the case.
type Plaintiff struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Address   Address `json:"address"`
}

// FullName joins first and last name.
func (p Plaintiff) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Argument is one heading of the argument outline with supporting points.
type Argument struct {
	Heading string   `json:"heading"`
	Points  []string `json:"points"`
}

// Precedent is a prior decision relevant to the case.
type Precedent struct {
	Title     string  `json:"title"`
	Citation  string  `json:"citation,omitempty"`
	Summary   string  `json:"summary,omitempty"`
	Relevance float64 `json:"relevance,omitempty"`
	Source    string  `json:"source,omitempty"`
}

// Statute is a statute or regulation relevant to the case.
type Statute struct {
	Title    string `json:"title"`
	Citation string `json:"citation,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// Rendition is one physical rendering of a generated document.
type Rendition struct {
	Format      string `json:"format"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// GeneratedDocument is a drafted legal document attached to a case.
//
//nolint:govet // logical grouping preferred over alignment
type GeneratedDocument struct {
	ID         string               `json:"id"`
	Type       DocumentType         `json:"type"`
	Title      string               `json:"title"`
	Content    string               `json:"content"`
	Status     DocumentStatus       `json:"status"`
	Issues     []string             `json:"issues,omitempty"`
	Renditions map[string]Rendition `json:"renditions,omitempty"`
	Model      string               `json:"model,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
}

// Case is the record driven through the pipeline. Agents receive and return it by value.
//
//nolint:govet // logical grouping preferred over alignment
type Case struct {
	ID              string              `json:"id"`
	Plaintiff       Plaintiff           `json:"plaintiff"`
	Category        Category            `json:"category"`
	Urgency         Urgency             `json:"urgency"`
	CourtLevel      CourtLevel          `json:"court_level"`
	Complexity      Complexity          `json:"complexity"`
	Jurisdiction    string              `json:"jurisdiction"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Issues          []string            `json:"issues,omitempty"`
	WorkflowStage   int                 `json:"workflow_stage"`
	Arguments       []Argument          `json:"arguments,omitempty"`
	Precedents      []Precedent         `json:"precedents,omitempty"`
	Laws            []Statute           `json:"laws,omitempty"`
	ResearchSummary string              `json:"research_summary,omitempty"`
	Documents       []GeneratedDocument `json:"documents,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// Clone returns a deep copy so agents never share slices with their caller.
func (c Case) Clone() Case {
	out := c
	out.Issues = append([]string(nil), c.Issues...)
	out.Precedents = append([]Precedent(nil), c.Precedents...)
	out.Laws = append([]Statute(nil), c.Laws...)
	if c.Arguments != nil {
		out.Arguments = make([]Argument, len(c.Arguments))
		for i, a := range c.Arguments {
			out.Arguments[i] = Argument{Heading: a.Heading, Points: append([]string(nil), a.Points...)}
		}
	}
	if c.Documents != nil {
		out.Documents = make([]GeneratedDocument, len(c.Documents))
		for i := range c.Documents {
			d := c.Documents[i]
			d.Issues = append([]string(nil), d.Issues...)
			if d.Renditions != nil {
				r := make(map[string]Rendition, len(d.Renditions))
				for k, v := range d.Renditions {
					r[k] = v
				}
				d.Renditions = r
			}
			out.Documents[i] = d
		}
	}
	return out
}
