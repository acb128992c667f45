package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeRanges_MergesOverlappingAndAdjacent(t *testing.T) {
	in := []Range{{Start: 10, End: 12}, {Start: 0, End: 5}, {Start: 6, End: 9}, {Start: 20, End: 25}}
	got := canonicalizeRanges(in)
	assert.Equal(t, []Range{{Start: 0, End: 12}, {Start: 20, End: 25}}, got)
}

func TestCombineOr_UnionIsIdempotent(t *testing.T) {
	a := []Match{
		{Column: 1, RowGroup: 0, Row: 0, AdditionalRows: 2},
		{Column: 1, RowGroup: 0, Row: 10},
	}
	once := CombineOr(a)
	twice := CombineOr(a, a)
	assert.Equal(t, once, twice)
}

func TestCombineOr_UnionsDisjointRanges(t *testing.T) {
	a := []Match{{Column: 1, RowGroup: 0, Row: 0, AdditionalRows: 1}}
	b := []Match{{Column: 1, RowGroup: 0, Row: 5, AdditionalRows: 1}}
	got := CombineOr(a, b)
	assert.Equal(t, []Range{{Start: 0, End: 1}, {Start: 5, End: 6}}, got.RowGroups[0])
}

func TestCombineAnd_IntersectionIsIdempotent(t *testing.T) {
	a := []Match{{Column: 1, RowGroup: 0, Row: 0, AdditionalRows: 9}}
	once := CombineAnd(a)
	twice := CombineAnd(a, a)
	assert.Equal(t, once, twice)
}

func TestCombineAnd_IntersectsOverlappingRanges(t *testing.T) {
	a := []Match{{Column: 1, RowGroup: 0, Row: 0, AdditionalRows: 9}}  // rows 0-9
	b := []Match{{Column: 1, RowGroup: 0, Row: 5, AdditionalRows: 9}} // rows 5-14
	got := CombineAnd(a, b)
	assert.Equal(t, []Range{{Start: 5, End: 9}}, got.RowGroups[0])
}

func TestCombineAnd_NoOverlapProducesNoRowGroups(t *testing.T) {
	a := []Match{{Column: 1, RowGroup: 0, Row: 0, AdditionalRows: 1}}
	b := []Match{{Column: 1, RowGroup: 0, Row: 5, AdditionalRows: 1}}
	got := CombineAnd(a, b)
	assert.Empty(t, got.RowGroups)
}

func TestCombineAnd_MissingRowGroupInOneInputProducesNoMatch(t *testing.T) {
	a := []Match{{Column: 1, RowGroup: 0, Row: 0, AdditionalRows: 1}}
	b := []Match{{Column: 1, RowGroup: 1, Row: 0, AdditionalRows: 1}}
	got := CombineAnd(a, b)
	assert.Empty(t, got.RowGroups)
}
