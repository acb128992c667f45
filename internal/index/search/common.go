// Package search implements the two read-side query operations over a
// loaded index: single-keyword lookup (spec §4.6) and multi-token phrase
// lookup with parent-chain verification (spec §4.7).
package search

import (
	"github.com/grafana/parquet-keyword-index/internal/columnpool"
	"github.com/grafana/parquet-keyword-index/internal/index/artifact"
)

// Match is one run-length-compressed occurrence of a keyword, resolved down
// to the column it was found under.
type Match struct {
	Column         uint32
	RowGroup       uint16
	Row            uint32
	AdditionalRows uint16
	SplitsMatched  uint16
	ParentOffset   uint32
}

// End returns the last row covered by this match's inclusive range.
func (m Match) End() uint32 {
	return m.Row + uint32(m.AdditionalRows)
}

// Covers reports whether row falls inside this match's run-length range.
func (m Match) Covers(row uint32) bool {
	return row >= m.Row && row <= m.End()
}

func containsColumn(ids []uint32, column uint32) bool {
	for _, id := range ids {
		if id == column {
			return true
		}
	}
	return false
}

func findBucket(blob artifact.DataBlob, column uint32) (artifact.ColumnBucket, bool) {
	for _, col := range blob.Columns {
		if col.ColumnID == column {
			return col, true
		}
	}
	return artifact.ColumnBucket{}, false
}

func bucketMatches(column uint32, bucket artifact.ColumnBucket) []Match {
	var out []Match
	for i, rg := range bucket.RowGroups {
		for _, occ := range bucket.Rows[i] {
			out = append(out, Match{
				Column:         column,
				RowGroup:       rg,
				Row:            occ.Row,
				AdditionalRows: occ.AdditionalRows,
				SplitsMatched:  occ.SplitsMatched,
				ParentOffset:   occ.ParentOffset,
			})
		}
	}
	return out
}

// findOccurrenceCovering returns the occurrence in bucket's row group rg
// whose run-length range covers row, if any.
func findOccurrenceCovering(bucket artifact.ColumnBucket, rg uint16, row uint32) (artifact.Occurrence, bool) {
	for i, g := range bucket.RowGroups {
		if g != rg {
			continue
		}
		for _, occ := range bucket.Rows[i] {
			end := occ.Row + uint32(occ.AdditionalRows)
			if row >= occ.Row && row <= end {
				return occ, true
			}
		}
	}
	return artifact.Occurrence{}, false
}

// columnOrAggregate picks a real column's own bucket if present, falling
// back to the aggregate bucket (id 0) — used when walking a parent chain
// for a column=None query, where occurrences were only ever recorded
// distinctly under the aggregate view.
func columnOrAggregate(blob artifact.DataBlob, column uint32) (artifact.ColumnBucket, bool) {
	if b, ok := findBucket(blob, column); ok {
		return b, ok
	}
	return findBucket(blob, columnpool.Aggregate)
}
