package vectorindex

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// file layout: magic[8] version u32 dim u32 (little endian), then the hnsw graph export.
const (
	magic         = "LFHNSW\x00\x00"
	formatVersion = 2
)

// ErrBadFormat is returned when a file is not a serialised index.
var ErrBadFormat = errors.New("not a vector index file")

type header struct {
	Version uint32
	Dim     uint32
}

// WriteTo serialises the index.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)
	if _, err := io.WriteString(bw, magic); err != nil {
		return cw.n, fmt.Errorf("write magic: %w", err)
	}
	h := header{Version: formatVersion, Dim: uint32(ix.dim)} //nolint:gosec // embedding widths are small
	if err := binary.Write(bw, binary.LittleEndian, &h); err != nil {
		return cw.n, fmt.Errorf("write header: %w", err)
	}
	if err := ix.graph.Export(bw); err != nil {
		return cw.n, fmt.Errorf("export graph: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return cw.n, fmt.Errorf("flush index: %w", err)
	}
	return cw.n, nil
}

// Read loads an index written by WriteTo. opts.EfSearch overrides the stored value when set.
func Read(r io.Reader, opts Options) (*Index, error) {
	br := bufio.NewReader(r)
	var m [len(magic)]byte
	if _, err := io.ReadFull(br, m[:]); err != nil || string(m[:]) != magic {
		return nil, ErrBadFormat
	}
	var h header
	if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("%w: short header", ErrBadFormat)
	}
	if h.Version != formatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadFormat, h.Version)
	}

	opts.withDefaults()
	g := newGraph(opts)
	if err := g.Import(br); err != nil {
		return nil, fmt.Errorf("import graph: %w", err)
	}
	g.EfSearch = opts.EfSearch
	if v, ok := g.Lookup(0); ok && len(v) != int(h.Dim) {
		return nil, fmt.Errorf("%w: header says %d dimensions, graph has %d", ErrBadFormat, h.Dim, len(v))
	}
	return &Index{dim: int(h.Dim), opts: opts, graph: g}, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err //nolint:wrapcheck // pass-through writer
}
