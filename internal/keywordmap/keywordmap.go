// Package keywordmap implements the in-memory hierarchical keyword map
// builder (spec §4.2): for every keyword produced by the tokenizer it
// records which columns and (row group, row) locations it occurred at,
// run-length-compressing consecutive rows, and tracks the immediate parent
// token of every occurrence for later phrase verification.
//
// The map exists only during index build; internal/index/serialize
// consumes it and it is discarded once the four on-disk artifacts are
// written.
package keywordmap

import (
	"math"
	"sort"

	"github.com/grafana/parquet-keyword-index/internal/columnpool"
	"github.com/grafana/parquet-keyword-index/internal/tokenize"
)

// MaxAdditionalRows is the run-length cap from spec §3: u16::MAX - 1.
const MaxAdditionalRows = math.MaxUint16 - 1

// Ref is a stable, cheap-to-copy reference to an interned keyword string,
// used as the parent pointer in an Occurrence. This is the arena + 32-bit
// index design spec §9 recommends in place of a reference-counted string.
type Ref int32

// NoParent is the Ref value meaning "no parent" (a derivation root).
const NoParent Ref = -1

// Occurrence is one run-length-compressed row range: spec §3's
// (row, additional_rows, splits_matched, parent).
type Occurrence struct {
	Row            uint32
	AdditionalRows uint16
	SplitsMatched  tokenize.SplitMask
	Parent         Ref
}

// End returns the last row covered by this occurrence's inclusive range.
func (o Occurrence) End() uint32 {
	return o.Row + uint32(o.AdditionalRows)
}

// columnBucket holds, for one (keyword, column) pair, the ordered row
// groups it appears in and their row occurrence lists.
type columnBucket struct {
	rowGroups []uint16
	rows      [][]Occurrence // parallel to rowGroups
}

// Record is the per-keyword entry (spec §3 "Keyword record"). Column index
// 0 is always present and mirrors the union of the real columns' buckets.
type Record struct {
	SplitsMatchedUnion tokenize.SplitMask

	columnIDs  []uint32 // columnpool ids; columnIDs[0] == columnpool.Aggregate
	columnIdx  map[uint32]int
	columns    []columnBucket // parallel to columnIDs
}

// Columns returns the column ids this keyword appears in, aggregate first.
func (r *Record) Columns() []uint32 {
	return r.columnIDs
}

// RowGroups returns the row group ids a keyword appears in under a column,
// or nil if the keyword never occurred in that column.
func (r *Record) RowGroups(columnID uint32) []uint16 {
	idx, ok := r.columnIdx[columnID]
	if !ok {
		return nil
	}
	return r.columns[idx].rowGroups
}

// Occurrences returns the run-length-compressed row occurrences for a
// (column, row group) pair.
func (r *Record) Occurrences(columnID uint32, rowGroup uint16) []Occurrence {
	idx, ok := r.columnIdx[columnID]
	if !ok {
		return nil
	}
	b := &r.columns[idx]
	for i, rg := range b.rowGroups {
		if rg == rowGroup {
			return b.rows[i]
		}
	}
	return nil
}

// NumOccurrences counts all run-length-compressed occurrences across every
// row group of one column (0 = aggregate).
func (r *Record) NumOccurrences(columnID uint32) int {
	idx, ok := r.columnIdx[columnID]
	if !ok {
		return 0
	}
	n := 0
	for _, rows := range r.columns[idx].rows {
		n += len(rows)
	}
	return n
}

// Builder accumulates keyword occurrences for one build. It is
// single-writer: spec §5 mandates no concurrent readers or writers during
// build.
type Builder struct {
	columns *columnpool.Pool
	records map[string]*Record

	arena      []string
	arenaIndex map[string]Ref
}

// New creates an empty builder over the given column pool.
func New(columns *columnpool.Pool) *Builder {
	return &Builder{
		columns:    columns,
		records:    make(map[string]*Record),
		arenaIndex: make(map[string]Ref),
	}
}

// CapacityHint implements spec §4.2's pre-sizing heuristic for a Parquet
// file with R rows and C columns.
func CapacityHint(rows, columns int) int {
	if rows <= 0 || columns <= 0 {
		return 0
	}
	denom := 1 + math.Log10(float64(rows))/2
	return int(float64(rows) * float64(columns) * 2 / denom)
}

// Reserve pre-sizes the internal keyword table per CapacityHint.
func (b *Builder) Reserve(rows, columns int) {
	hint := CapacityHint(rows, columns)
	if hint <= 0 {
		return
	}
	grown := make(map[string]*Record, hint)
	for k, v := range b.records {
		grown[k] = v
	}
	b.records = grown
}

// InternColumn interns a column name into the shared column pool.
func (b *Builder) InternColumn(name string) (uint32, error) {
	return b.columns.Intern(name)
}

// Ref interns keyword into the builder's arena and returns its stable
// reference, without recording any occurrence. Used by Add, and by the
// tokenizer driver to turn the tokenizer's string parent into a Ref before
// calling Add; Text resolves a Ref back to its keyword.
func (b *Builder) Ref(keyword string) Ref {
	if ref, ok := b.arenaIndex[keyword]; ok {
		return ref
	}
	ref := Ref(len(b.arena))
	b.arena = append(b.arena, keyword)
	b.arenaIndex[keyword] = ref
	return ref
}

// Text resolves a Ref back to its keyword string.
func (b *Builder) Text(ref Ref) (string, bool) {
	if ref == NoParent || int(ref) < 0 || int(ref) >= len(b.arena) {
		return "", false
	}
	return b.arena[ref], true
}

// Add records one occurrence of keyword at (columnID, rowGroup, row),
// applying the run-length merge rule of spec §3 to both the column-0
// aggregate bucket and the specific column's bucket. It returns a Ref to
// keyword so callers can pass it as the parent of keywords derived from it.
//
// columnID must be a real column (>=1); the aggregate bucket (id 0) is
// maintained automatically.
func (b *Builder) Add(keyword string, columnID uint32, rowGroup uint16, row uint32, mask tokenize.SplitMask, parent Ref) Ref {
	ref := b.Ref(keyword)

	rec, ok := b.records[keyword]
	if !ok {
		rec = &Record{
			SplitsMatchedUnion: mask,
			columnIDs:          []uint32{columnpool.Aggregate, columnID},
			columnIdx:          map[uint32]int{columnpool.Aggregate: 0, columnID: 1},
			columns:            make([]columnBucket, 2),
		}
		rec.columns[0].rowGroups = []uint16{rowGroup}
		rec.columns[0].rows = [][]Occurrence{{{Row: row, SplitsMatched: mask, Parent: parent}}}
		rec.columns[1].rowGroups = []uint16{rowGroup}
		rec.columns[1].rows = [][]Occurrence{{{Row: row, SplitsMatched: mask, Parent: parent}}}
		b.records[keyword] = rec
		return ref
	}

	rec.SplitsMatchedUnion |= mask
	insertLocation(rec, columnpool.Aggregate, rowGroup, row, mask, parent)
	insertLocation(rec, columnID, rowGroup, row, mask, parent)
	return ref
}

func insertLocation(rec *Record, columnID uint32, rowGroup uint16, row uint32, mask tokenize.SplitMask, parent Ref) {
	idx, ok := rec.columnIdx[columnID]
	if !ok {
		idx = len(rec.columnIDs)
		rec.columnIdx[columnID] = idx
		rec.columnIDs = append(rec.columnIDs, columnID)
		rec.columns = append(rec.columns, columnBucket{})
	}
	b := &rec.columns[idx]

	rgIdx := -1
	for i := len(b.rowGroups) - 1; i >= 0; i-- {
		if b.rowGroups[i] == rowGroup {
			rgIdx = i
			break
		}
	}
	if rgIdx == -1 {
		b.rowGroups = append(b.rowGroups, rowGroup)
		b.rows = append(b.rows, nil)
		rgIdx = len(b.rowGroups) - 1
	}

	appendOccurrence(&b.rows[rgIdx], row, mask, parent)
}

// appendOccurrence applies the canonical run-length merge rule: same-row
// enrichment, consecutive-row extension (capped), or a fresh occurrence.
func appendOccurrence(occurrences *[]Occurrence, row uint32, mask tokenize.SplitMask, parent Ref) {
	n := len(*occurrences)
	if n > 0 {
		last := &(*occurrences)[n-1]
		end := last.End()
		switch {
		case row == end && parent == last.Parent:
			last.SplitsMatched |= mask
			return
		case row == end+1 && mask == last.SplitsMatched && parent == last.Parent && last.AdditionalRows < MaxAdditionalRows:
			last.AdditionalRows++
			return
		}
	}
	*occurrences = append(*occurrences, Occurrence{Row: row, SplitsMatched: mask, Parent: parent})
}

// Get returns the record for keyword, if any.
func (b *Builder) Get(keyword string) (*Record, bool) {
	r, ok := b.records[keyword]
	return r, ok
}

// Len returns the number of distinct keywords recorded.
func (b *Builder) Len() int {
	return len(b.records)
}

// SortedKeywords returns every recorded keyword in lexicographic (byte)
// order, matching the ordering spec §4.4 requires for serialization.
func (b *Builder) SortedKeywords() []string {
	out := make([]string, 0, len(b.records))
	for k := range b.records {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Records exposes the raw keyword -> record table, for the serializer.
func (b *Builder) Records() map[string]*Record {
	return b.records
}

// Columns returns the column pool shared by this builder.
func (b *Builder) Columns() *columnpool.Pool {
	return b.columns
}

// AddCell tokenizes one cell value and inserts every keyword it produces at
// (columnID, rowGroup, row). This is the glue between internal/tokenize and
// the map builder that internal/index/build's consumer stage drives.
func (b *Builder) AddCell(cell string, columnID uint32, rowGroup uint16, row uint32) {
	parents := make(map[string]Ref)
	tokenize.Split(cell, func(text string, mask tokenize.SplitMask, parent string, hasParent bool) {
		parentRef := NoParent
		if hasParent {
			if ref, ok := parents[parent]; ok {
				parentRef = ref
			} else {
				parentRef = b.Ref(parent)
			}
		}
		ref := b.Add(text, columnID, rowGroup, row, mask, parentRef)
		parents[text] = ref
	})
}
