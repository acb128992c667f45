// Package load reads the four on-disk artifacts of an index back from an
// objectstore.Store (spec §4.5): the filters artifact and the sorted
// keyword list are decoded eagerly, while metadata and data stay as raw
// bytes fetched on demand by internal/index/search's per-keyword lookups.
package load

import (
	"context"
	"path"
	"sort"

	"github.com/pkg/errors"

	"github.com/grafana/parquet-keyword-index/internal/columnpool"
	"github.com/grafana/parquet-keyword-index/internal/filter"
	"github.com/grafana/parquet-keyword-index/internal/index/artifact"
	"github.com/grafana/parquet-keyword-index/internal/objectstore"
)

// ErrUnsupportedFormat is returned when an index's format_version doesn't
// match what this binary understands.
var ErrUnsupportedFormat = errors.New("load: unsupported index format version")

// ErrStale is returned by Validate when the source object's validation
// triple no longer matches what the index was built against.
var ErrStale = errors.New("load: index is stale relative to its source object")

// Index is a fully-opened index: the filters artifact and sorted keyword
// list in memory, with lazy, on-demand access to metadata and data.
type Index struct {
	store  objectstore.Store
	prefix string

	Filters        *artifact.Filters
	Columns        *columnpool.Pool
	ColumnKeywords *artifact.ColumnKeywords
}

// Load opens an index whose four artifacts live under prefix in store.
func Load(ctx context.Context, store objectstore.Store, prefix string) (*Index, error) {
	fBytes, err := store.Get(ctx, path.Join(prefix, artifact.FileFilters))
	if err != nil {
		return nil, errors.Wrap(err, "load: read filters artifact")
	}
	filters, err := artifact.UnmarshalFilters(fBytes)
	if err != nil {
		return nil, errors.Wrap(err, "load: decode filters artifact")
	}
	if filters.FormatVersion != artifact.FormatVersion {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "got version %d, want %d", filters.FormatVersion, artifact.FormatVersion)
	}

	ckBytes, err := store.Get(ctx, path.Join(prefix, artifact.FileColumnKeywords))
	if err != nil {
		return nil, errors.Wrap(err, "load: read column_keywords artifact")
	}
	ck, err := artifact.UnmarshalColumnKeywords(ckBytes)
	if err != nil {
		return nil, errors.Wrap(err, "load: decode column_keywords artifact")
	}

	return &Index{
		store:          store,
		prefix:         prefix,
		Filters:        filters,
		Columns:        columnpool.FromNames(filters.Columns),
		ColumnKeywords: ck,
	}, nil
}

// Validate compares sourceKey's current head() against the validation
// triple this index was built against, per spec §4.5.
func (idx *Index) Validate(ctx context.Context, store objectstore.Store, sourceKey string) error {
	info, err := store.Head(ctx, sourceKey)
	if err != nil {
		return errors.Wrap(err, "load: head source object")
	}
	if info.ETag != idx.Filters.SourceETag ||
		info.Size != idx.Filters.SourceSize ||
		uint64(info.LastModified.Unix()) != idx.Filters.SourceLastModified {
		return ErrStale
	}
	return nil
}

// GlobalFilter decodes the index-wide Bloom/exact filter.
func (idx *Index) GlobalFilter() (*filter.Filter, error) {
	f, err := filter.Unmarshal(idx.Filters.GlobalFilter)
	if err != nil {
		return nil, errors.Wrap(err, "load: decode global filter")
	}
	return f, nil
}

// ColumnFilter decodes one real column's filter. columnID must not be the
// aggregate id; callers wanting the whole-index filter use GlobalFilter.
func (idx *Index) ColumnFilter(columnID uint32) (*filter.Filter, error) {
	if columnID == columnpool.Aggregate || int(columnID) >= len(idx.Filters.ColumnFilters) {
		return nil, errors.Errorf("load: no filter for column id %d", columnID)
	}
	f, err := filter.Unmarshal(idx.Filters.ColumnFilters[columnID])
	if err != nil {
		return nil, errors.Wrapf(err, "load: decode filter for column id %d", columnID)
	}
	return f, nil
}

// findChunk returns the chunk descriptor whose keyword range could contain
// keyword, via binary search over the chunk index (§4.6 step 2).
func (idx *Index) findChunk(keyword string) (artifact.ChunkDescriptor, bool) {
	chunks := idx.Filters.ChunkIndex
	if len(chunks) == 0 {
		return artifact.ChunkDescriptor{}, false
	}
	i := sort.Search(len(chunks), func(i int) bool {
		return chunks[i].StartKeyword > keyword
	})
	if i == 0 {
		return artifact.ChunkDescriptor{}, false
	}
	return chunks[i-1], true
}

// FindMetadata looks up keyword's metadata entry: chunk binary search,
// get_range the chunk, then a linear/binary scan inside it (§4.6 steps 2-3).
func (idx *Index) FindMetadata(ctx context.Context, keyword string) (*artifact.MetadataEntry, bool, error) {
	chunk, ok := idx.findChunk(keyword)
	if !ok {
		return nil, false, nil
	}
	raw, err := idx.store.GetRange(ctx, path.Join(idx.prefix, artifact.FileMetadata), chunk.Offset, chunk.Length)
	if err != nil {
		return nil, false, errors.Wrap(err, "load: read metadata chunk")
	}
	entries, err := artifact.UnmarshalMetadataChunk(raw, chunk.Count)
	if err != nil {
		return nil, false, errors.Wrap(err, "load: decode metadata chunk")
	}
	i := sort.Search(len(entries), func(i int) bool { return entries[i].Keyword >= keyword })
	if i >= len(entries) || entries[i].Keyword != keyword {
		return nil, false, nil
	}
	return &entries[i], true, nil
}

// LoadDataBlob fetches and decodes one keyword's data blob, located by its
// metadata entry (§4.6 step 4).
func (idx *Index) LoadDataBlob(ctx context.Context, entry *artifact.MetadataEntry) (artifact.DataBlob, error) {
	raw, err := idx.store.GetRange(ctx, path.Join(idx.prefix, artifact.FileData), entry.DataOffset, uint64(entry.DataLength))
	if err != nil {
		return artifact.DataBlob{}, errors.Wrap(err, "load: read data blob")
	}
	blob, err := artifact.UnmarshalDataBlob(raw)
	if err != nil {
		return artifact.DataBlob{}, errors.Wrap(err, "load: decode data blob")
	}
	return blob, nil
}

// KeywordAtOffset resolves a parent offset (as stored in an Occurrence)
// back to its keyword text, used while walking a phrase's parent chain.
func (idx *Index) KeywordAtOffset(offset uint32) (string, bool) {
	if offset == artifact.NoParentOffset || int(offset) >= len(idx.ColumnKeywords.Keywords) {
		return "", false
	}
	return idx.ColumnKeywords.Keywords[offset], true
}

// Info reports summary statistics about the loaded index: the seven fields
// spec §6's info() names (FormatVersion, SourceETag, SourceSize,
// SourceLastModified, ErrorRate, NumColumns, NumChunks) plus the NumKeywords
// and NumOccurrences counters SPEC_FULL.md's supplemented features add.
type Info struct {
	FormatVersion      uint32
	SourceETag         string
	SourceSize         uint64
	SourceLastModified uint64
	ErrorRate          float64
	NumColumns         int
	NumChunks          int
	NumKeywords        int
	NumOccurrences     uint64
}

// Info computes summary statistics about the loaded index. NumOccurrences
// requires scanning every metadata entry, so unlike the rest of Index's
// accessors this does one full read of the metadata artifact.
func (idx *Index) Info(ctx context.Context) (Info, error) {
	raw, err := idx.store.Get(ctx, path.Join(idx.prefix, artifact.FileMetadata))
	if err != nil {
		return Info{}, errors.Wrap(err, "load: read metadata artifact")
	}

	var totalOccurrences uint64
	for _, chunk := range idx.Filters.ChunkIndex {
		if chunk.Offset+chunk.Length > uint64(len(raw)) {
			return Info{}, errors.Errorf("load: metadata chunk at offset %d length %d exceeds artifact size %d", chunk.Offset, chunk.Length, len(raw))
		}
		entries, err := artifact.UnmarshalMetadataChunk(raw[chunk.Offset:chunk.Offset+chunk.Length], chunk.Count)
		if err != nil {
			return Info{}, errors.Wrap(err, "load: decode metadata chunk")
		}
		for _, e := range entries {
			totalOccurrences += uint64(e.NumOccurrences)
		}
	}

	return Info{
		FormatVersion:      idx.Filters.FormatVersion,
		SourceETag:         idx.Filters.SourceETag,
		SourceSize:         idx.Filters.SourceSize,
		SourceLastModified: idx.Filters.SourceLastModified,
		ErrorRate:          idx.Filters.ErrorRate,
		NumColumns:         idx.Columns.Len(),
		NumChunks:          len(idx.Filters.ChunkIndex),
		NumKeywords:        len(idx.ColumnKeywords.Keywords),
		NumOccurrences:     totalOccurrences,
	}, nil
}
