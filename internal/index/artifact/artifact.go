// Package artifact defines the shared binary layout for the four on-disk
// index artifacts of spec §4.4/§4.5 (filters, metadata, data, column_keywords)
// and the encode/decode helpers internal/index/serialize and
// internal/index/load both build on. Keeping the layout in one place is what
// keeps a writer and a reader from drifting apart.
package artifact

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// FormatVersion is written as the first field of the filters artifact; a
// loader rejects anything else (spec §4.5).
const FormatVersion uint32 = 1

// NoParentOffset is the sentinel ParentOffset value meaning "derivation
// root, no parent" — keyword indices are always < math.MaxUint32 in any
// index this implementation could build.
const NoParentOffset uint32 = math.MaxUint32

// Names of the four artifacts, relative to an index's storage prefix.
const (
	FileFilters        = "filters.rkyv"
	FileMetadata       = "metadata.rkyv"
	FileData           = "data.bin"
	FileColumnKeywords = "column_keywords.rkyv"
)

// ChunkDescriptor locates one sorted run of metadata entries within the
// metadata artifact, keyed by the first keyword it contains (spec §4.4's
// "chunk index" used for the binary search in §4.6 step 2).
type ChunkDescriptor struct {
	StartKeyword string
	Offset       uint64
	Length       uint64
	Count        uint32
}

// Filters is the fully-decoded contents of filters.rkyv: everything a loader
// needs eagerly in memory to drive a search without touching metadata.rkyv or
// data.bin (spec §4.5).
type Filters struct {
	FormatVersion uint32

	// Source validation triple (spec §4.5's validate()).
	SourceETag         string
	SourceSize         uint64
	SourceLastModified uint64

	ErrorRate float64

	// Delimiters[level] is the delimiter character set used at that
	// tokenizer level, persisted so a query-time re-split (phrase search)
	// matches the build exactly even if the binary's compiled-in table
	// ever changes.
	Delimiters [4]string

	// Columns is the column pool's id->name vector; Columns[0] == "".
	Columns []string

	// ColumnFilters[id] is the marshaled per-column filter for that column
	// id; ColumnFilters[0] is always nil (the aggregate has no filter of
	// its own, only GlobalFilter).
	ColumnFilters [][]byte

	GlobalFilter []byte

	ChunkIndex []ChunkDescriptor
}

// MetadataEntry is one keyword's directory entry (spec §4.4): where its data
// blob lives, which real columns it occurs in, and how many total
// occurrences it has (for info()/stats).
type MetadataEntry struct {
	Keyword        string
	DataOffset     uint64
	DataLength     uint32
	ColumnIDs      []uint32 // real columns only, excludes the aggregate id
	NumOccurrences uint32
}

// Occurrence is one on-disk run-length-compressed row range, with the
// parent rewritten from a build-time arena Ref to an offset into the final
// sorted keyword list (spec §4.4: "parent refs rewritten to sorted-keyword-
// list offsets").
type Occurrence struct {
	Row            uint32
	AdditionalRows uint16
	SplitsMatched  uint16
	ParentOffset   uint32 // NoParentOffset if this occurrence has no parent
}

// ColumnBucket is one column's row-group/occurrence data within a keyword's
// data blob.
type ColumnBucket struct {
	ColumnID  uint32
	RowGroups []uint16
	Rows      [][]Occurrence // parallel to RowGroups
}

// DataBlob is one keyword's full location payload. It includes the
// aggregate bucket (column id 0) alongside every real column's own bucket,
// trading disk space (spec §9's acknowledged column-0 duplication) for a
// direct, correct-by-construction implementation of §4.6 step 5's
// column=None "expand the aggregate bucket" behavior: rather than
// recomputing the union at query time, we simply read it back.
type DataBlob struct {
	Columns []ColumnBucket
}

// ColumnKeywords is the column_keywords.rkyv artifact: every distinct
// keyword sorted, plus the reverse index from column name to the sorted
// positions of keywords that occur in it.
type ColumnKeywords struct {
	Keywords []string
	ByColumn map[string][]uint32
}

// --- encoding primitives ---

func writeString(w *bytes.Buffer, s string) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	w.Write(lenBuf[:])
	w.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", fmt.Errorf("artifact: read string length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("artifact: read string body: %w", err)
	}
	return string(buf), nil
}

func writeBytes(w *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(b)))
	w.Write(lenBuf[:])
	w.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("artifact: read bytes length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("artifact: read bytes body: %w", err)
	}
	return buf, nil
}

func writeU16(w *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.Write(b[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func writeU32(w *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.Write(b[:])
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func writeU64(w *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.Write(b[:])
}

func readU64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func writeF64(w *bytes.Buffer, v float64) {
	writeU64(w, math.Float64bits(v))
}

func readF64(r *bytes.Reader) (float64, error) {
	u, err := readU64(r)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(u), nil
}

// --- Filters ---

// Marshal encodes f for the filters.rkyv artifact.
func (f *Filters) Marshal() ([]byte, error) {
	var w bytes.Buffer
	writeU32(&w, f.FormatVersion)
	writeString(&w, f.SourceETag)
	writeU64(&w, f.SourceSize)
	writeU64(&w, f.SourceLastModified)
	writeF64(&w, f.ErrorRate)
	for _, d := range f.Delimiters {
		writeString(&w, d)
	}
	writeU32(&w, uint32(len(f.Columns)))
	for _, c := range f.Columns {
		writeString(&w, c)
	}
	writeU32(&w, uint32(len(f.ColumnFilters)))
	for _, cf := range f.ColumnFilters {
		writeBytes(&w, cf)
	}
	writeBytes(&w, f.GlobalFilter)
	writeU32(&w, uint32(len(f.ChunkIndex)))
	for _, c := range f.ChunkIndex {
		writeString(&w, c.StartKeyword)
		writeU64(&w, c.Offset)
		writeU64(&w, c.Length)
		writeU32(&w, c.Count)
	}
	return w.Bytes(), nil
}

// UnmarshalFilters decodes a filters.rkyv payload.
func UnmarshalFilters(data []byte) (*Filters, error) {
	r := bytes.NewReader(data)
	f := &Filters{}
	var err error
	if f.FormatVersion, err = readU32(r); err != nil {
		return nil, err
	}
	if f.SourceETag, err = readString(r); err != nil {
		return nil, err
	}
	if f.SourceSize, err = readU64(r); err != nil {
		return nil, err
	}
	if f.SourceLastModified, err = readU64(r); err != nil {
		return nil, err
	}
	if f.ErrorRate, err = readF64(r); err != nil {
		return nil, err
	}
	for i := range f.Delimiters {
		if f.Delimiters[i], err = readString(r); err != nil {
			return nil, err
		}
	}
	nCols, err := readU32(r)
	if err != nil {
		return nil, err
	}
	f.Columns = make([]string, nCols)
	for i := range f.Columns {
		if f.Columns[i], err = readString(r); err != nil {
			return nil, err
		}
	}
	nFilters, err := readU32(r)
	if err != nil {
		return nil, err
	}
	f.ColumnFilters = make([][]byte, nFilters)
	for i := range f.ColumnFilters {
		if f.ColumnFilters[i], err = readBytes(r); err != nil {
			return nil, err
		}
	}
	if f.GlobalFilter, err = readBytes(r); err != nil {
		return nil, err
	}
	nChunks, err := readU32(r)
	if err != nil {
		return nil, err
	}
	f.ChunkIndex = make([]ChunkDescriptor, nChunks)
	for i := range f.ChunkIndex {
		c := &f.ChunkIndex[i]
		if c.StartKeyword, err = readString(r); err != nil {
			return nil, err
		}
		if c.Offset, err = readU64(r); err != nil {
			return nil, err
		}
		if c.Length, err = readU64(r); err != nil {
			return nil, err
		}
		if c.Count, err = readU32(r); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// --- Metadata chunk (one contiguous run of MetadataEntry) ---

// MarshalMetadataChunk encodes one chunk's worth of entries, already in
// sorted-keyword order, as a contiguous byte run within metadata.rkyv.
func MarshalMetadataChunk(entries []MetadataEntry) []byte {
	var w bytes.Buffer
	for _, e := range entries {
		writeString(&w, e.Keyword)
		writeU64(&w, e.DataOffset)
		writeU32(&w, e.DataLength)
		writeU32(&w, uint32(len(e.ColumnIDs)))
		for _, c := range e.ColumnIDs {
			writeU32(&w, c)
		}
		writeU32(&w, e.NumOccurrences)
	}
	return w.Bytes()
}

// UnmarshalMetadataChunk decodes a chunk previously produced by
// MarshalMetadataChunk. count is the entry count from the chunk's
// ChunkDescriptor.
func UnmarshalMetadataChunk(data []byte, count uint32) ([]MetadataEntry, error) {
	r := bytes.NewReader(data)
	entries := make([]MetadataEntry, count)
	for i := range entries {
		e := &entries[i]
		var err error
		if e.Keyword, err = readString(r); err != nil {
			return nil, err
		}
		if e.DataOffset, err = readU64(r); err != nil {
			return nil, err
		}
		if e.DataLength, err = readU32(r); err != nil {
			return nil, err
		}
		nCols, err := readU32(r)
		if err != nil {
			return nil, err
		}
		e.ColumnIDs = make([]uint32, nCols)
		for j := range e.ColumnIDs {
			if e.ColumnIDs[j], err = readU32(r); err != nil {
				return nil, err
			}
		}
		if e.NumOccurrences, err = readU32(r); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// --- Data blob (one keyword's location payload) ---

// MarshalDataBlob encodes one keyword's full column/row-group/occurrence
// payload as a length-independent byte run within data.bin.
func MarshalDataBlob(blob DataBlob) []byte {
	var w bytes.Buffer
	writeU32(&w, uint32(len(blob.Columns)))
	for _, col := range blob.Columns {
		writeU32(&w, col.ColumnID)
		writeU16(&w, uint16(len(col.RowGroups)))
		for i, rg := range col.RowGroups {
			writeU16(&w, rg)
			rows := col.Rows[i]
			writeU16(&w, uint16(len(rows)))
			for _, occ := range rows {
				writeU32(&w, occ.Row)
				writeU16(&w, occ.AdditionalRows)
				writeU16(&w, occ.SplitsMatched)
				writeU32(&w, occ.ParentOffset)
			}
		}
	}
	return w.Bytes()
}

// UnmarshalDataBlob decodes a blob previously produced by MarshalDataBlob.
func UnmarshalDataBlob(data []byte) (DataBlob, error) {
	r := bytes.NewReader(data)
	nCols, err := readU32(r)
	if err != nil {
		return DataBlob{}, err
	}
	blob := DataBlob{Columns: make([]ColumnBucket, nCols)}
	for i := range blob.Columns {
		col := &blob.Columns[i]
		if col.ColumnID, err = readU32(r); err != nil {
			return DataBlob{}, err
		}
		nRG, err := readU16(r)
		if err != nil {
			return DataBlob{}, err
		}
		col.RowGroups = make([]uint16, nRG)
		col.Rows = make([][]Occurrence, nRG)
		for j := range col.RowGroups {
			if col.RowGroups[j], err = readU16(r); err != nil {
				return DataBlob{}, err
			}
			nOcc, err := readU16(r)
			if err != nil {
				return DataBlob{}, err
			}
			rows := make([]Occurrence, nOcc)
			for k := range rows {
				o := &rows[k]
				if o.Row, err = readU32(r); err != nil {
					return DataBlob{}, err
				}
				if o.AdditionalRows, err = readU16(r); err != nil {
					return DataBlob{}, err
				}
				var sm uint16
				if sm, err = readU16(r); err != nil {
					return DataBlob{}, err
				}
				o.SplitsMatched = sm
				if o.ParentOffset, err = readU32(r); err != nil {
					return DataBlob{}, err
				}
			}
			col.Rows[j] = rows
		}
	}
	return blob, nil
}

// --- Column keywords ---

// Marshal encodes the column_keywords.rkyv artifact.
func (ck *ColumnKeywords) Marshal() []byte {
	var w bytes.Buffer
	writeU32(&w, uint32(len(ck.Keywords)))
	for _, k := range ck.Keywords {
		writeString(&w, k)
	}
	writeU32(&w, uint32(len(ck.ByColumn)))
	// Map iteration order is random; sort column names so rebuilding an
	// unchanged source produces byte-identical output (spec §8 idempotence).
	names := make([]string, 0, len(ck.ByColumn))
	for name := range ck.ByColumn {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		idxs := ck.ByColumn[name]
		writeString(&w, name)
		writeU32(&w, uint32(len(idxs)))
		for _, idx := range idxs {
			writeU32(&w, idx)
		}
	}
	return w.Bytes()
}

// UnmarshalColumnKeywords decodes a column_keywords.rkyv payload.
func UnmarshalColumnKeywords(data []byte) (*ColumnKeywords, error) {
	r := bytes.NewReader(data)
	ck := &ColumnKeywords{ByColumn: make(map[string][]uint32)}
	nKw, err := readU32(r)
	if err != nil {
		return nil, err
	}
	ck.Keywords = make([]string, nKw)
	for i := range ck.Keywords {
		if ck.Keywords[i], err = readString(r); err != nil {
			return nil, err
		}
	}
	nCols, err := readU32(r)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nCols; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		n, err := readU32(r)
		if err != nil {
			return nil, err
		}
		idxs := make([]uint32, n)
		for j := range idxs {
			if idxs[j], err = readU32(r); err != nil {
				return nil, err
			}
		}
		ck.ByColumn[name] = idxs
	}
	return ck, nil
}
