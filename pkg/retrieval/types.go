package retrieval

import (
	"strings"
	"time"
)

// Metadata describes a reference document for filtering.
type Metadata struct {
	DocumentType string    `json:"document_type"`
	Jurisdiction string    `json:"jurisdiction"`
	Court        string    `json:"court,omitempty"`
	Citation     string    `json:"citation,omitempty"`
	Date         time.Time `json:"date,omitzero"`
	Tags         []string  `json:"tags,omitempty"`
}

// DocumentInput is a document submitted for ingestion. ID is optional.
type DocumentInput struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Source   string   `json:"source"`
	Metadata Metadata `json:"metadata"`
}

// IndexedDocument is a catalogued document. Records are append-only.
type IndexedDocument struct {
	InternalIndex int       `json:"internal_index"`
	ExternalID    string    `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Source        string    `json:"source"`
	Metadata      Metadata  `json:"metadata"`
	IndexedAt     time.Time `json:"indexed_at"`

	// Vector is held only for documents ingested in this process; the persisted vector lives in
	// the index file.
	Vector []float32 `json:"-"`
}

// Filters narrow query results after the nearest-neighbour search. Zero values disable a filter.
type Filters struct {
	DocumentTypes []string
	Jurisdictions []string
	DateFrom      time.Time
	DateTo        time.Time
	MinScore      float64
}

// QueryRequest is a similarity query. MaxResults is the k requested from the index; filters
// apply afterwards and can only shrink the result.
type QueryRequest struct {
	Text       string
	MaxResults int
	Threshold  float64
	Filters    Filters
}

// DefaultMaxResults is used when a query leaves MaxResults unset.
const DefaultMaxResults = 10

// ScoredDocument is one query hit.
type ScoredDocument struct {
	IndexedDocument
	Score float64 `json:"score"`
}

// QueryResult holds the hits ordered by descending score. Confidence is their mean score.
type QueryResult struct {
	Documents    []ScoredDocument `json:"documents"`
	TotalResults int              `json:"total_results"`
	Confidence   float64          `json:"confidence"`
	Took         time.Duration    `json:"took"`
}

// Stats describes the engine.
type Stats struct {
	Initialized   bool   `json:"initialized"`
	DocumentCount int    `json:"document_count"`
	Dimension     int    `json:"dimension"`
	Embedder      string `json:"embedder"`
	Dir           string `json:"dir"`
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

func (f Filters) match(doc *IndexedDocument, score float64) bool {
	if f.MinScore > 0 && score < f.MinScore {
		return false
	}
	if len(f.DocumentTypes) > 0 && !containsFold(f.DocumentTypes, doc.Metadata.DocumentType) {
		return false
	}
	if len(f.Jurisdictions) > 0 && !containsFold(f.Jurisdictions, doc.Metadata.Jurisdiction) {
		return false
	}
	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		d := doc.Metadata.Date
		if d.IsZero() {
			return false
		}
		if !f.DateFrom.IsZero() && d.Before(f.DateFrom) {
			return false
		}
		if !f.DateTo.IsZero() && d.After(f.DateTo) {
			return false
		}
	}
	return true
}
