// Package serialize turns a completed keywordmap.Builder into the four
// on-disk artifacts of spec §4.4: filters, metadata, data, and
// column_keywords. It runs once, single-threaded, after a build's producer
// and consumer stages have finished and before the builder is discarded.
package serialize

import (
	"fmt"

	"github.com/grafana/parquet-keyword-index/internal/columnpool"
	"github.com/grafana/parquet-keyword-index/internal/filter"
	"github.com/grafana/parquet-keyword-index/internal/index/artifact"
	"github.com/grafana/parquet-keyword-index/internal/keywordmap"
	"github.com/grafana/parquet-keyword-index/internal/tokenize"
)

// MetadataChunkSize is the number of sorted keyword entries grouped into one
// metadata chunk, and so the granularity of the chunk index's binary search
// in §4.6 step 2. Chosen so a single chunk is a handful of KiB at typical
// keyword lengths — small enough that the get_range read in step 3 of a
// lookup stays cheap, large enough to keep the chunk index itself compact.
const MetadataChunkSize = 1024

// SourceInfo is the source Parquet object's validation triple, persisted
// into the filters artifact so a loader's validate() (spec §4.5) can detect
// a stale index against a since-modified source file.
type SourceInfo struct {
	ETag         string
	Size         uint64
	LastModified uint64 // Unix seconds
}

// Options configures one Build call.
type Options struct {
	ErrorRate float64
	Source    SourceInfo
}

// Artifacts holds the four encoded byte payloads, ready to be written to an
// objectstore under an index's storage prefix.
type Artifacts struct {
	Filters        []byte
	Metadata       []byte
	Data           []byte
	ColumnKeywords []byte
}

// Build serializes b into the four artifacts. b must not be mutated
// concurrently; spec §5 guarantees a build has no concurrent writers by the
// time this runs.
func Build(b *keywordmap.Builder, opts Options) (*Artifacts, error) {
	if opts.ErrorRate <= 0 {
		opts.ErrorRate = filter.DefaultErrorRate
	}

	sortedKeywords := b.SortedKeywords()
	keywordOffset := make(map[string]uint32, len(sortedKeywords))
	for i, kw := range sortedKeywords {
		keywordOffset[kw] = uint32(i)
	}

	pool := b.Columns()
	perColumnKeywords := make(map[uint32][]string, pool.Len())
	for _, kw := range sortedKeywords {
		rec, _ := b.Get(kw)
		for _, cid := range rec.Columns() {
			if cid == columnpool.Aggregate {
				continue
			}
			perColumnKeywords[cid] = append(perColumnKeywords[cid], kw)
		}
	}

	names := pool.Names()
	columnFilters := make([][]byte, len(names))
	byColumn := make(map[string][]uint32, pool.Len())
	for id := 1; id < len(names); id++ {
		kws := perColumnKeywords[uint32(id)]
		f := filter.Build(kws, opts.ErrorRate)
		enc, err := f.Marshal()
		if err != nil {
			return nil, fmt.Errorf("serialize: marshal column filter %q: %w", names[id], err)
		}
		columnFilters[id] = enc

		idxs := make([]uint32, len(kws))
		for i, kw := range kws {
			idxs[i] = keywordOffset[kw]
		}
		byColumn[names[id]] = idxs
	}

	globalFilter := filter.Build(sortedKeywords, opts.ErrorRate)
	globalEnc, err := globalFilter.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serialize: marshal global filter: %w", err)
	}

	var dataBuf []byte
	var metadataEntries []artifact.MetadataEntry
	for _, kw := range sortedKeywords {
		rec, _ := b.Get(kw)

		blob := artifact.DataBlob{Columns: make([]artifact.ColumnBucket, 0, len(rec.Columns()))}
		for _, cid := range rec.Columns() {
			rowGroups := rec.RowGroups(cid)
			col := artifact.ColumnBucket{
				ColumnID:  cid,
				RowGroups: append([]uint16(nil), rowGroups...),
				Rows:      make([][]artifact.Occurrence, len(rowGroups)),
			}
			for i, rg := range rowGroups {
				occs := rec.Occurrences(cid, rg)
				out := make([]artifact.Occurrence, len(occs))
				for j, o := range occs {
					out[j] = artifact.Occurrence{
						Row:            o.Row,
						AdditionalRows: o.AdditionalRows,
						SplitsMatched:  uint16(o.SplitsMatched),
						ParentOffset:   resolveParent(b, o.Parent, keywordOffset),
					}
				}
				col.Rows[i] = out
			}
			blob.Columns = append(blob.Columns, col)
		}

		blobBytes := artifact.MarshalDataBlob(blob)
		entry := artifact.MetadataEntry{
			Keyword:        kw,
			DataOffset:     uint64(len(dataBuf)),
			DataLength:     uint32(len(blobBytes)),
			ColumnIDs:      rec.Columns()[1:],
			NumOccurrences: uint32(rec.NumOccurrences(columnpool.Aggregate)),
		}
		dataBuf = append(dataBuf, blobBytes...)
		metadataEntries = append(metadataEntries, entry)
	}

	var metadataBuf []byte
	var chunkIndex []artifact.ChunkDescriptor
	for start := 0; start < len(metadataEntries); start += MetadataChunkSize {
		end := start + MetadataChunkSize
		if end > len(metadataEntries) {
			end = len(metadataEntries)
		}
		chunk := metadataEntries[start:end]
		chunkBytes := artifact.MarshalMetadataChunk(chunk)
		chunkIndex = append(chunkIndex, artifact.ChunkDescriptor{
			StartKeyword: chunk[0].Keyword,
			Offset:       uint64(len(metadataBuf)),
			Length:       uint64(len(chunkBytes)),
			Count:        uint32(len(chunk)),
		})
		metadataBuf = append(metadataBuf, chunkBytes...)
	}

	filters := &artifact.Filters{
		FormatVersion:      artifact.FormatVersion,
		SourceETag:         opts.Source.ETag,
		SourceSize:         opts.Source.Size,
		SourceLastModified: opts.Source.LastModified,
		ErrorRate:          opts.ErrorRate,
		Columns:            names,
		ColumnFilters:      columnFilters,
		GlobalFilter:       globalEnc,
		ChunkIndex:         chunkIndex,
	}
	for level := 0; level < tokenize.NumLevels; level++ {
		filters.Delimiters[level] = tokenize.Delimiters(level)
	}
	filtersBytes, err := filters.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serialize: marshal filters artifact: %w", err)
	}

	columnKeywords := &artifact.ColumnKeywords{Keywords: sortedKeywords, ByColumn: byColumn}

	return &Artifacts{
		Filters:        filtersBytes,
		Metadata:       metadataBuf,
		Data:           dataBuf,
		ColumnKeywords: columnKeywords.Marshal(),
	}, nil
}

// resolveParent rewrites a build-time arena Ref into its offset in the
// final sorted keyword list, per spec §4.4.
func resolveParent(b *keywordmap.Builder, parent keywordmap.Ref, offsets map[string]uint32) uint32 {
	if parent == keywordmap.NoParent {
		return artifact.NoParentOffset
	}
	text, ok := b.Text(parent)
	if !ok {
		return artifact.NoParentOffset
	}
	off, ok := offsets[text]
	if !ok {
		return artifact.NoParentOffset
	}
	return off
}
