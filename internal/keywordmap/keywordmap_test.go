package keywordmap

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grafana/parquet-keyword-index/internal/columnpool"
)

func TestAddCell_AggregateBucketMirrorsRealColumn(t *testing.T) {
	pool := columnpool.New()
	b := New(pool)
	colID, err := b.InternColumn("message")
	assert.NoError(t, err)

	b.AddCell("hello world", colID, 0, 5)

	rec, ok := b.Get("hello")
	assert.True(t, ok)
	assert.ElementsMatch(t, []uint32{columnpool.Aggregate, colID}, rec.Columns())
	assert.Equal(t, rec.NumOccurrences(columnpool.Aggregate), rec.NumOccurrences(colID))
}

func TestAdd_ConsecutiveRowsMergeIntoOneOccurrence(t *testing.T) {
	pool := columnpool.New()
	b := New(pool)
	colID, _ := b.InternColumn("status")

	b.AddCell("active", colID, 0, 10)
	b.AddCell("active", colID, 0, 11)
	b.AddCell("active", colID, 0, 12)

	rec, ok := b.Get("active")
	assert.True(t, ok)
	occs := rec.Occurrences(colID, 0)
	assert.Len(t, occs, 1)
	assert.Equal(t, uint32(10), occs[0].Row)
	assert.Equal(t, uint16(2), occs[0].AdditionalRows)
	assert.Equal(t, uint32(12), occs[0].End())
}

func TestAdd_NonConsecutiveRowsDoNotMerge(t *testing.T) {
	pool := columnpool.New()
	b := New(pool)
	colID, _ := b.InternColumn("status")

	b.AddCell("active", colID, 0, 10)
	b.AddCell("active", colID, 0, 50)

	rec, _ := b.Get("active")
	occs := rec.Occurrences(colID, 0)
	assert.Len(t, occs, 2)
}

func TestAdd_RunLengthCapSplitsIntoTwoOccurrences(t *testing.T) {
	pool := columnpool.New()
	b := New(pool)
	colID, _ := b.InternColumn("status")

	// 131070 consecutive rows: exactly two occurrences of AdditionalRows ==
	// MaxAdditionalRows (65534) each, per the run-length cap.
	const totalRows = 2 * (MaxAdditionalRows + 1)
	for row := uint32(0); row < totalRows; row++ {
		b.Add("active", colID, 0, row, 0, NoParent)
	}

	rec, _ := b.Get("active")
	occs := rec.Occurrences(colID, 0)
	assert.Len(t, occs, 2)
	assert.Equal(t, uint32(0), occs[0].Row)
	assert.Equal(t, uint16(MaxAdditionalRows), occs[0].AdditionalRows)
	assert.Equal(t, uint32(MaxAdditionalRows+1), occs[1].Row)
	assert.Equal(t, uint16(MaxAdditionalRows), occs[1].AdditionalRows)
}

func TestAddCell_ParentLinkagePreserved(t *testing.T) {
	pool := columnpool.New()
	b := New(pool)
	colID, _ := b.InternColumn("path")

	b.AddCell("a-b/c", colID, 0, 0)

	root, ok := b.Get("a-b/c")
	assert.True(t, ok)
	rootOcc := root.Occurrences(colID, 0)[0]
	assert.Equal(t, NoParent, rootOcc.Parent)

	child, ok := b.Get("a-b")
	assert.True(t, ok)
	childOcc := child.Occurrences(colID, 0)[0]
	assert.NotEqual(t, NoParent, childOcc.Parent)

	parentText, ok := b.Text(childOcc.Parent)
	assert.True(t, ok)
	assert.Equal(t, "a-b/c", parentText)
}

func TestSortedKeywordsIsLexicographic(t *testing.T) {
	pool := columnpool.New()
	b := New(pool)
	colID, _ := b.InternColumn("c")
	b.AddCell("zebra apple mango", colID, 0, 0)

	sorted := b.SortedKeywords()
	for i := 1; i < len(sorted); i++ {
		assert.LessOrEqual(t, sorted[i-1], sorted[i])
	}
}

func TestCapacityHint(t *testing.T) {
	assert.Equal(t, 0, CapacityHint(0, 10))
	assert.Equal(t, 0, CapacityHint(10, 0))
	assert.Greater(t, CapacityHint(1000, 5), 0)
}
