package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/parquet-keyword-index/internal/columnpool"
	"github.com/grafana/parquet-keyword-index/internal/index/artifact"
	"github.com/grafana/parquet-keyword-index/internal/index/load"
	"github.com/grafana/parquet-keyword-index/internal/index/serialize"
	"github.com/grafana/parquet-keyword-index/internal/keywordmap"
	"github.com/grafana/parquet-keyword-index/internal/objectstore"
)

// buildTestIndex writes a small, fully built index to a fresh LocalStore and
// loads it back, exercising serialize -> objectstore -> load end to end.
func buildTestIndex(t *testing.T) (*load.Index, objectstore.Store) {
	t.Helper()

	pool := columnpool.New()
	b := keywordmap.New(pool)
	messageCol, err := b.InternColumn("message")
	require.NoError(t, err)
	statusCol, err := b.InternColumn("status")
	require.NoError(t, err)
	codeCol, err := b.InternColumn("code")
	require.NoError(t, err)

	// Hyphenated values so the tokenizer emits a real parent keyword
	// ("connection-reset") above its leaves ("connection", "reset"): a
	// phrase made of two leaves sharing that parent is what phrase search
	// verification is meant to confirm.
	b.AddCell("connection-reset", messageCol, 0, 0)
	b.AddCell("connection-established", messageCol, 0, 1)
	b.AddCell("timeout-error unrelated-problem", messageCol, 0, 2)
	b.AddCell("active", statusCol, 0, 0)
	b.AddCell("active", statusCol, 0, 1)
	// Both level-3 delimiters present: "a"/"b" share immediate parent
	// "a-q_b", which does not itself contain "a-b" as a substring.
	b.AddCell("a-q_b", codeCol, 0, 0)

	artifacts, err := serialize.Build(b, serialize.Options{
		ErrorRate: 0.01,
		Source:    serialize.SourceInfo{ETag: "etag", Size: 10, LastModified: 1700000000},
	})
	require.NoError(t, err)

	store, err := objectstore.NewLocal(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	prefix := "idx"
	require.NoError(t, store.Put(ctx, prefix+"/"+artifact.FileFilters, artifacts.Filters))
	require.NoError(t, store.Put(ctx, prefix+"/"+artifact.FileMetadata, artifacts.Metadata))
	require.NoError(t, store.Put(ctx, prefix+"/"+artifact.FileData, artifacts.Data))
	require.NoError(t, store.Put(ctx, prefix+"/"+artifact.FileColumnKeywords, artifacts.ColumnKeywords))

	idx, err := load.Load(ctx, store, prefix)
	require.NoError(t, err)
	return idx, store
}

func TestKeywordSearch_FindsOccurrenceInSpecificColumn(t *testing.T) {
	idx, _ := buildTestIndex(t)
	ctx := context.Background()

	statusCol, ok := idx.Columns.Lookup("status")
	require.True(t, ok)

	matches, err := NewKeywordSearcher(idx).Search(ctx, "active", &statusCol)
	assert.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, uint32(0), matches[0].Row)
	assert.Equal(t, uint16(1), matches[0].AdditionalRows)
}

func TestKeywordSearch_UnknownKeywordReturnsNoMatches(t *testing.T) {
	idx, _ := buildTestIndex(t)
	ctx := context.Background()

	matches, err := NewKeywordSearcher(idx).Search(ctx, "nonexistent", nil)
	assert.NoError(t, err)
	assert.Empty(t, matches)
}

func TestKeywordSearch_ColumnNoneExpandsAcrossRealColumns(t *testing.T) {
	idx, _ := buildTestIndex(t)
	ctx := context.Background()

	matches, err := NewKeywordSearcher(idx).Search(ctx, "active", nil)
	assert.NoError(t, err)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		name, _ := idx.Columns.Name(m.Column)
		assert.Equal(t, "status", name)
	}
}

func TestKeywordSearch_WrongColumnMisses(t *testing.T) {
	idx, _ := buildTestIndex(t)
	ctx := context.Background()

	messageCol, ok := idx.Columns.Lookup("message")
	require.True(t, ok)

	matches, err := NewKeywordSearcher(idx).Search(ctx, "active", &messageCol)
	assert.NoError(t, err)
	assert.Empty(t, matches)
}

func TestPhraseSearch_FindsMultiTokenPhrase(t *testing.T) {
	idx, _ := buildTestIndex(t)
	ctx := context.Background()

	messageCol, ok := idx.Columns.Lookup("message")
	require.True(t, ok)

	result, err := NewPhraseSearcher(idx).Search(ctx, "connection-reset", &messageCol)
	assert.NoError(t, err)
	assert.True(t, result.Found)
	assert.Empty(t, result.NeedsVerification)
	require.Len(t, result.Verified, 1)
	assert.Equal(t, uint32(0), result.Verified[0].Row)
}

func TestPhraseSearch_DifferentParentsNeedSecondaryVerification(t *testing.T) {
	idx, _ := buildTestIndex(t)
	ctx := context.Background()

	messageCol, ok := idx.Columns.Lookup("message")
	require.True(t, ok)

	// "error" (from "timeout-error") and "unrelated" (from
	// "unrelated-problem") both occur on row 2, but derive from different
	// parents: the index can't confirm or reject this on its own, so it
	// must come back needs_verification rather than being silently
	// dropped.
	result, err := NewPhraseSearcher(idx).Search(ctx, "error unrelated", &messageCol)
	assert.NoError(t, err)
	assert.True(t, result.Found)
	assert.Empty(t, result.Verified)
	require.Len(t, result.NeedsVerification, 1)
	assert.Equal(t, uint32(2), result.NeedsVerification[0].Row)
}

func TestPhraseSearch_SharedParentNotContainingPhraseIsRejected(t *testing.T) {
	idx, _ := buildTestIndex(t)
	ctx := context.Background()

	codeCol, ok := idx.Columns.Lookup("code")
	require.True(t, ok)

	// "a" and "b" both derive from "a-q_b", but "a-q_b" does not contain
	// "a-b" as a substring, and it has no further parent to ascend to: the
	// candidate must be rejected outright, not confirmed by leaf
	// convergence alone.
	result, err := NewPhraseSearcher(idx).Search(ctx, "a-b", &codeCol)
	assert.NoError(t, err)
	assert.Empty(t, result.Verified)
	assert.Empty(t, result.NeedsVerification)
}

func TestSearchInColumn_ReportsMembershipWithoutRowPositions(t *testing.T) {
	idx, _ := buildTestIndex(t)
	ctx := context.Background()

	kw := NewKeywordSearcher(idx)

	ok, err := kw.SearchInColumn(ctx, "active", "status")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = kw.SearchInColumn(ctx, "active", "message")
	assert.NoError(t, err)
	assert.False(t, ok)

	_, err = kw.SearchInColumn(ctx, "active", "nonexistent-column")
	assert.Error(t, err)
}

func TestIndexValidate_DetectsStaleSource(t *testing.T) {
	idx, store := buildTestIndex(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "source.parquet", []byte("0123456789")))
	err := idx.Validate(ctx, store, "source.parquet")
	assert.ErrorIs(t, err, load.ErrStale)
}
