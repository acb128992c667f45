// Package parquetsource streams the string-castable cell values of a
// columnar Parquet file for internal/index/build to tokenize and index. It
// is a concrete stand-in for spec §6's externally-supplied Parquet column
// reader collaborator, built directly on parquet-go so the rest of the
// module has a real producer to exercise and test against.
package parquetsource

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"
)

// MaxRowGroups is the row-group count ceiling a build must reject beyond,
// since a row group id is persisted as a u16 (spec §3/§4.4).
const MaxRowGroups = 1<<16 - 1

// Cell is one non-null cell value, already cast to UTF-8 text, located at a
// specific column/row-group/row.
type Cell struct {
	Column   string
	RowGroup uint16
	Row      uint32
	Value    string
}

// CellFunc is called once per non-null, non-empty cell value.
type CellFunc func(Cell) error

// Reader streams a Parquet file's cells in row-group, then row, order.
type Reader struct {
	file *parquet.File
}

// Open parses a Parquet file's footer and metadata from r. Per spec §6,
// this only reads the footer/metadata up front; row data streams lazily as
// ForEachCell iterates row groups.
func Open(r io.ReaderAt, size int64) (*Reader, error) {
	f, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("parquetsource: open file: %w", err)
	}
	return &Reader{file: f}, nil
}

// Columns returns every leaf column's dotted path name.
func (r *Reader) Columns() []string {
	paths := r.file.Schema().Columns()
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = strings.Join(p, ".")
	}
	return out
}

// NumRowGroups returns the file's row group count.
func (r *Reader) NumRowGroups() int {
	return len(r.file.RowGroups())
}

// ForEachCell streams every non-null, non-empty cell value across every row
// group, rejecting a file whose row group count would overflow a u16 row
// group id (spec §6's size-limit rejection).
func (r *Reader) ForEachCell(ctx context.Context, fn CellFunc) error {
	rowGroups := r.file.RowGroups()
	if len(rowGroups) > MaxRowGroups {
		return fmt.Errorf("parquetsource: file has %d row groups, exceeds max %d", len(rowGroups), MaxRowGroups)
	}
	for rgIdx, rg := range rowGroups {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := forEachCellInRowGroup(uint16(rgIdx), rg, fn); err != nil {
			return err
		}
	}
	return nil
}

func forEachCellInRowGroup(rgIdx uint16, rg parquet.RowGroup, fn CellFunc) error {
	columns := rg.Schema().Columns()
	rows := rg.Rows()
	defer rows.Close()

	buf := make([]parquet.Row, 256)
	var rowIdx uint32
	for {
		n, readErr := rows.ReadRows(buf)
		for i := 0; i < n; i++ {
			for _, v := range buf[i] {
				if v.IsNull() {
					continue
				}
				text := cellToString(v)
				if text == "" {
					continue
				}
				cell := Cell{
					Column:   columnName(columns, v.Column()),
					RowGroup: rgIdx,
					Row:      rowIdx,
					Value:    text,
				}
				if err := fn(cell); err != nil {
					return err
				}
			}
			rowIdx++
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("parquetsource: read rows in row group %d: %w", rgIdx, readErr)
		}
	}
}

func columnName(columns [][]string, idx int) string {
	if idx < 0 || idx >= len(columns) {
		return fmt.Sprintf("column_%d", idx)
	}
	return strings.Join(columns[idx], ".")
}

// cellToString casts a leaf value to its UTF-8 text representation,
// matching spec §6's "cast non-string columns to text before tokenizing".
func cellToString(v parquet.Value) string {
	switch v.Kind() {
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	default:
		return v.String()
	}
}
