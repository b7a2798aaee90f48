// Package vectorindex wraps a github.com/coder/hnsw graph as a cosine-distance index keyed by
// sequential integer ids, with an on-disk form.
//
// Vectors are stored unit-normalised so distance is 1 - dot(a, b). Zero vectors have distance
// 1 to everything. Small indexes are searched exhaustively, which gives exact results while the
// graph is too sparse to navigate well.
package vectorindex

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// Defaults for the graph parameters.
const (
	DefaultM        = 16
	DefaultMl       = 0.25
	DefaultEfSearch = 64

	// ExactSearchThreshold is the size at or below which Search scans every vector.
	ExactSearchThreshold = 256

	// distanceName registers unitCosine with hnsw so exported graphs can be imported.
	distanceName = "legalflow-unit-cosine"
)

var (
	// ErrDimensionMismatch is returned when a vector's length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNonSequentialID is returned when Add is called with an id other than Len().
	ErrNonSequentialID = errors.New("ids must be assigned sequentially")
)

func init() { //nolint:gochecknoinits // hnsw resolves distance functions by name on import
	hnsw.RegisterDistanceFunc(distanceName, unitCosine)
}

// Options tunes graph construction and search.
type Options struct {
	M        int
	Ml       float64
	EfSearch int
}

func (o *Options) withDefaults() {
	if o.M < 2 {
		o.M = DefaultM
	}
	if o.Ml <= 0 || o.Ml >= 1 {
		o.Ml = DefaultMl
	}
	if o.EfSearch <= 0 {
		o.EfSearch = DefaultEfSearch
	}
}

// Result is one search hit.
type Result struct {
	ID       int
	Distance float32
}

// Index is safe for concurrent use. The graph underneath is not, so every call holds mu.
type Index struct {
	mu    sync.Mutex
	dim   int
	opts  Options
	graph *hnsw.Graph[int]
}

// New returns an empty index for vectors of length dim.
func New(dim int, opts Options) *Index {
	opts.withDefaults()
	return &Index{dim: dim, opts: opts, graph: newGraph(opts)}
}

func newGraph(opts Options) *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.Distance = unitCosine
	g.M = opts.M
	g.Ml = opts.Ml
	g.EfSearch = opts.EfSearch
	return g
}

// Len returns the number of stored vectors.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.graph.Len()
}

// Dimension returns the vector length.
func (ix *Index) Dimension() int {
	return ix.dim
}

func normalized(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}

// unitCosine is the cosine distance of two unit or zero vectors.
func unitCosine(a, b []float32) float32 {
	var dot float32
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot
}

// Add inserts vec under id, which must equal Len().
func (ix *Index) Add(id int, vec []float32) error {
	if len(vec) != ix.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), ix.dim)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if n := ix.graph.Len(); id != n {
		return fmt.Errorf("%w: got %d, want %d", ErrNonSequentialID, id, n)
	}
	ix.graph.Add(hnsw.MakeNode(id, normalized(vec)))
	return nil
}

// Truncate removes every vector with an id of n or more, undoing the Adds that assigned them.
func (ix *Index) Truncate(n int) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for id := ix.graph.Len() - 1; id >= n; id-- {
		ix.graph.Delete(id)
	}
}

// Search returns up to k nearest vectors, closest first. Ties break on id.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	n := ix.graph.Len()
	if k <= 0 || n == 0 {
		return []Result{}, nil
	}
	q := normalized(query)

	var rs []Result
	if n <= ExactSearchThreshold {
		rs = make([]Result, 0, n)
		for id := range n {
			if v, ok := ix.graph.Lookup(id); ok {
				rs = append(rs, Result{ID: id, Distance: unitCosine(q, v)})
			}
		}
	} else {
		nodes := ix.graph.Search(q, k)
		rs = make([]Result, len(nodes))
		for i, node := range nodes {
			rs[i] = Result{ID: node.Key, Distance: unitCosine(q, node.Value)}
		}
	}
	return closest(rs, k), nil
}

func closest(rs []Result, k int) []Result {
	slices.SortFunc(rs, func(a, b Result) int {
		if a.Distance != b.Distance {
			if a.Distance < b.Distance {
				return -1
			}
			return 1
		}
		return a.ID - b.ID
	})
	if len(rs) > k {
		rs = rs[:k]
	}
	return rs
}
