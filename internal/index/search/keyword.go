package search

import (
	"context"

	"github.com/pkg/errors"

	"github.com/grafana/parquet-keyword-index/internal/columnpool"
	"github.com/grafana/parquet-keyword-index/internal/index/load"
)

// KeywordSearcher answers single-keyword lookups against a loaded index
// (spec §4.6): filter prefilter, chunk binary search, in-chunk lookup,
// data blob decode, then column filtering or aggregate expansion.
type KeywordSearcher struct {
	idx *load.Index
}

// NewKeywordSearcher returns a searcher over an already-loaded index.
func NewKeywordSearcher(idx *load.Index) *KeywordSearcher {
	return &KeywordSearcher{idx: idx}
}

// Search returns every occurrence of keyword. If column is non-nil, results
// are restricted to (and the lookup is prefiltered by) that column's own
// filter; otherwise the whole-index filter and the aggregate bucket are
// used, with column=None's occurrences expanded across every real column
// the keyword actually occurs in (§4.6 step 5).
func (s *KeywordSearcher) Search(ctx context.Context, keyword string, column *uint32) ([]Match, error) {
	if keyword == "" {
		return nil, errors.New("search: empty keyword")
	}

	if column != nil {
		cf, err := s.idx.ColumnFilter(*column)
		if err != nil {
			return nil, err
		}
		if !cf.MightContain(keyword) {
			return nil, nil
		}
	} else {
		gf, err := s.idx.GlobalFilter()
		if err != nil {
			return nil, err
		}
		if !gf.MightContain(keyword) {
			return nil, nil
		}
	}

	entry, found, err := s.idx.FindMetadata(ctx, keyword)
	if err != nil {
		return nil, errors.Wrapf(err, "search: find metadata for %q", keyword)
	}
	if !found {
		return nil, nil
	}

	if column != nil && !containsColumn(entry.ColumnIDs, *column) {
		return nil, nil
	}

	blob, err := s.idx.LoadDataBlob(ctx, entry)
	if err != nil {
		return nil, errors.Wrapf(err, "search: load data blob for %q", keyword)
	}

	if column != nil {
		bucket, ok := findBucket(blob, *column)
		if !ok {
			return nil, nil
		}
		return bucketMatches(*column, bucket), nil
	}

	agg, ok := findBucket(blob, columnpool.Aggregate)
	if !ok {
		return nil, nil
	}
	var out []Match
	for _, cid := range entry.ColumnIDs {
		out = append(out, bucketMatches(cid, agg)...)
	}
	return out, nil
}

// SearchInColumn reports whether keyword occurs anywhere in columnName
// (spec §6's search_in_column), without Search's data-blob read: once the
// metadata entry resolves, its ColumnIDs alone answer a yes/no question, so
// this never needs step 4's data blob or step 5's bucket expansion.
func (s *KeywordSearcher) SearchInColumn(ctx context.Context, keyword, columnName string) (bool, error) {
	if keyword == "" {
		return false, errors.New("search: empty keyword")
	}
	column, ok := s.idx.Columns.Lookup(columnName)
	if !ok {
		return false, errors.Errorf("search: unknown column %q", columnName)
	}

	cf, err := s.idx.ColumnFilter(column)
	if err != nil {
		return false, err
	}
	if !cf.MightContain(keyword) {
		return false, nil
	}

	entry, found, err := s.idx.FindMetadata(ctx, keyword)
	if err != nil {
		return false, errors.Wrapf(err, "search: find metadata for %q", keyword)
	}
	if !found {
		return false, nil
	}
	return containsColumn(entry.ColumnIDs, column), nil
}
