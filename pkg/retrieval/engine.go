// Package retrieval indexes reference documents as vectors and answers similarity queries with
// metadata post-filtering.
//
// The catalogue lives in two files in one directory: index.bin holds the HNSW graph and
// documents.json holds the document records in insertion order. Both are rewritten after every
// insert, so bulk ingestion costs one flush per document. Writers are serialised inside the
// process only; two processes must never ingest into the same directory at once.
//
// Filters run after the k-nearest-neighbour search. A selective filter with a small MaxResults
// can therefore return fewer hits than exist; k is never widened automatically.
package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"legalflow/pkg/config"
	"legalflow/pkg/embed"
	"legalflow/pkg/logx"
	"legalflow/pkg/metrics"
	"legalflow/pkg/utils"
	"legalflow/pkg/vectorindex"
)

// File names inside the retrieval directory.
const (
	IndexFile     = "index.bin"
	DocumentsFile = "documents.json"
)

var (
	// ErrNotInitialized is returned by operations called before Initialize.
	ErrNotInitialized = errors.New("retrieval engine not initialized")

	// ErrDimensionMismatch is returned when an embedding's length differs from the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrCorruptCatalogue is returned when the index and the document sidecar disagree.
	ErrCorruptCatalogue = errors.New("index and document catalogue disagree")
)

// Engine is the retrieval engine.
type Engine struct {
	dir      string
	opts     vectorindex.Options
	embedder embed.Embedder
	metrics  *metrics.Set
	logger   *logx.Logger
	now      func() time.Time

	mu          sync.RWMutex
	initialized bool
	index       *vectorindex.Index // nil until the dimension is known
	docs        []IndexedDocument
}

// Option customises an Engine.
type Option func(*Engine)

// WithMetrics attaches Prometheus recorders.
func WithMetrics(m *metrics.Set) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source used for IndexedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an uninitialised engine over cfg.Dir.
func New(cfg config.RetrievalConfig, embedder embed.Embedder, opts ...Option) *Engine {
	e := &Engine{
		dir: cfg.Dir,
		opts: vectorindex.Options{
			M:        cfg.M,
			Ml:       cfg.Ml,
			EfSearch: cfg.EfSearch,
		},
		embedder: embedder,
		logger:   logx.NewLogger("retrieval"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Initialize creates the directory and loads a persisted catalogue if one exists.
// Calling it again is a no-op.
func (e *Engine) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.initialized {
		return nil
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create retrieval directory %s: %w", e.dir, err)
	}

	docs, err := e.loadDocuments()
	if err != nil {
		return err
	}
	index, err := e.loadIndex()
	if err != nil {
		return err
	}

	switch {
	case index == nil && len(docs) > 0:
		return fmt.Errorf("%w: %d documents but no %s", ErrCorruptCatalogue, len(docs), IndexFile)
	case index != nil && index.Len() != len(docs):
		return fmt.Errorf("%w: index has %d vectors, %s has %d records",
			ErrCorruptCatalogue, index.Len(), DocumentsFile, len(docs))
	case index == nil && e.embedder.Dimension() > 0:
		index = vectorindex.New(e.embedder.Dimension(), e.opts)
	}

	e.index = index
	e.docs = docs
	e.initialized = true
	e.metrics.SetDocumentCount(len(docs))
	logx.Debug(ctx, "retrieval", "initialized %s with %d documents", e.dir, len(docs))
	e.logger.Info("Retrieval engine ready: %d documents in %s (embedder %s)", len(docs), e.dir, e.embedder.Name())
	return nil
}

func (e *Engine) loadDocuments() ([]IndexedDocument, error) {
	data, err := os.ReadFile(filepath.Join(e.dir, DocumentsFile))
	if errors.Is(err, os.ErrNotExist) {
		return []IndexedDocument{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", DocumentsFile, err)
	}
	var docs []IndexedDocument
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", DocumentsFile, err)
	}
	for i := range docs {
		if docs[i].InternalIndex != i {
			return nil, fmt.Errorf("%w: record %d has internal index %d", ErrCorruptCatalogue, i, docs[i].InternalIndex)
		}
	}
	return docs, nil
}

func (e *Engine) loadIndex() (*vectorindex.Index, error) {
	f, err := os.Open(filepath.Join(e.dir, IndexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil //nolint:nilnil // absent index is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", IndexFile, err)
	}
	defer func() { _ = f.Close() }()
	index, err := vectorindex.Read(f, e.opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", IndexFile, err)
	}
	return index, nil
}

// persist rewrites both files. Caller holds e.mu.
func (e *Engine) persist() error {
	var buf bytes.Buffer
	if _, err := e.index.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to serialise index: %w", err)
	}
	if err := utils.WriteFileAtomic(filepath.Join(e.dir, IndexFile), buf.Bytes(), 0o644); err != nil {
		return err //nolint:wrapcheck // already descriptive
	}
	data, err := json.MarshalIndent(e.docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", DocumentsFile, err)
	}
	return utils.WriteFileAtomic(filepath.Join(e.dir, DocumentsFile), data, 0o644) //nolint:wrapcheck
}

// AddDocument embeds and indexes one document, then flushes the catalogue to disk.
func (e *Engine) AddDocument(ctx context.Context, in DocumentInput) (*IndexedDocument, error) {
	doc, total, err := e.addDocument(ctx, in)
	e.metrics.ObserveIngest(total, err)
	return doc, err
}

func (e *Engine) addDocument(ctx context.Context, in DocumentInput) (*IndexedDocument, int, error) {
	if !e.isInitialized() {
		return nil, 0, ErrNotInitialized
	}
	vec, err := e.embedder.Embed(ctx, in.Content)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to embed document %q: %w", in.Title, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	created := e.index == nil
	if created {
		e.index = vectorindex.New(len(vec), e.opts)
	}
	if len(vec) != e.index.Dimension() {
		return nil, len(e.docs), fmt.Errorf("%w: document has %d, index has %d",
			ErrDimensionMismatch, len(vec), e.index.Dimension())
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	next := len(e.docs)
	if err := e.index.Add(next, vec); err != nil {
		return nil, next, fmt.Errorf("failed to index document %s: %w", id, err)
	}
	doc := IndexedDocument{
		InternalIndex: next,
		ExternalID:    id,
		Title:         in.Title,
		Content:       in.Content,
		Source:        in.Source,
		Metadata:      in.Metadata,
		IndexedAt:     e.now().UTC(),
		Vector:        vec,
	}
	e.docs = append(e.docs, doc)

	if err := e.persist(); err != nil {
		e.docs = e.docs[:next]
		e.index.Truncate(next)
		if created {
			e.index = nil
		}
		e.logger.Error("Document %s not persisted, insert rolled back: %v", id, err)
		return nil, next, err
	}
	out := doc
	return &out, len(e.docs), nil
}

// AddDocuments ingests docs sequentially and stops at the first failure, returning what was
// indexed before it.
func (e *Engine) AddDocuments(ctx context.Context, docs []DocumentInput) ([]*IndexedDocument, error) {
	out := make([]*IndexedDocument, 0, len(docs))
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("ingestion interrupted: %w", err)
		}
		d, err := e.AddDocument(ctx, docs[i])
		if err != nil {
			return out, fmt.Errorf("document %d (%s): %w", i, docs[i].Title, err)
		}
		out = append(out, d)
	}
	return out, nil
}

// Query runs a similarity search. Scores are 1 - cosine distance.
func (e *Engine) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	res, err := e.query(ctx, req)
	n := 0
	if res != nil {
		n = res.TotalResults
	}
	e.metrics.ObserveQuery(n, err)
	return res, err
}

func (e *Engine) query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	start := e.now()
	if !e.isInitialized() {
		return nil, ErrNotInitialized
	}
	k := req.MaxResults
	if k <= 0 {
		k = DefaultMaxResults
	}

	e.mu.RLock()
	empty := e.index == nil || e.index.Len() == 0
	e.mu.RUnlock()
	if empty {
		return &QueryResult{Documents: []ScoredDocument{}}, nil
	}

	vec, err := e.embedder.Embed(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	hits, err := e.index.Search(vec, k)
	if errors.Is(err, vectorindex.ErrDimensionMismatch) {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(vec), e.index.Dimension())
	}
	if err != nil {
		return nil, fmt.Errorf("index search failed: %w", err)
	}

	docs := make([]ScoredDocument, 0, len(hits))
	var sum float64
	for _, h := range hits {
		score := 1 - float64(h.Distance)
		if score < req.Threshold {
			continue
		}
		doc := &e.docs[h.ID]
		if !req.Filters.match(doc, score) {
			continue
		}
		docs = append(docs, ScoredDocument{IndexedDocument: *doc, Score: score})
		sum += score
	}

	res := &QueryResult{Documents: docs, TotalResults: len(docs), Took: e.now().Sub(start)}
	if len(docs) > 0 {
		res.Confidence = sum / float64(len(docs))
	}
	logx.Debug(ctx, "retrieval", "query k=%d hits=%d kept=%d", k, len(hits), len(docs))
	return res, nil
}

func (e *Engine) isInitialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// HealthCheck reports whether the engine is initialised and its directory is reachable.
func (e *Engine) HealthCheck(_ context.Context) error {
	if !e.isInitialized() {
		return ErrNotInitialized
	}
	if _, err := os.Stat(e.dir); err != nil {
		return fmt.Errorf("retrieval directory unavailable: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the engine state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Stats{
		Initialized:   e.initialized,
		DocumentCount: len(e.docs),
		Embedder:      e.embedder.Name(),
		Dir:           e.dir,
	}
	if e.index != nil {
		s.Dimension = e.index.Dimension()
	}
	return s
}

// Documents returns a copy of the catalogue in insertion order.
func (e *Engine) Documents() []IndexedDocument {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]IndexedDocument(nil), e.docs...)
}
