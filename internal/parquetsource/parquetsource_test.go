package parquetsource

import (
	"bytes"
	"context"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logRow struct {
	Message string `parquet:"message"`
	Status  string `parquet:"status"`
}

func writeTestFile(t *testing.T, rows []logRow) (*Reader, int64) {
	t.Helper()

	buf := new(bytes.Buffer)
	w := parquet.NewGenericWriter[logRow](buf)
	_, err := w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data := buf.Bytes()
	r, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return r, int64(len(data))
}

func TestOpen_ColumnsAndRowGroups(t *testing.T) {
	r, _ := writeTestFile(t, []logRow{
		{Message: "connection reset", Status: "active"},
		{Message: "timeout", Status: "closed"},
	})

	assert.ElementsMatch(t, []string{"message", "status"}, r.Columns())
	assert.Equal(t, 1, r.NumRowGroups())
}

func TestForEachCell_StreamsNonEmptyValues(t *testing.T) {
	r, _ := writeTestFile(t, []logRow{
		{Message: "connection reset", Status: "active"},
		{Message: "timeout", Status: ""},
	})

	var cells []Cell
	err := r.ForEachCell(context.Background(), func(c Cell) error {
		cells = append(cells, c)
		return nil
	})
	require.NoError(t, err)

	// Row 1's empty status cell is skipped entirely.
	var gotStatusRow1 bool
	for _, c := range cells {
		if c.Column == "status" && c.Row == 1 {
			gotStatusRow1 = true
		}
	}
	assert.False(t, gotStatusRow1)

	var messages []string
	for _, c := range cells {
		if c.Column == "message" {
			messages = append(messages, c.Value)
		}
	}
	assert.ElementsMatch(t, []string{"connection reset", "timeout"}, messages)
}

func TestForEachCell_RespectsContextCancellation(t *testing.T) {
	r, _ := writeTestFile(t, []logRow{{Message: "a", Status: "b"}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.ForEachCell(ctx, func(c Cell) error { return nil })
	assert.Error(t, err)
}
