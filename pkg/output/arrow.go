package output

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/shortcut"
)

// DefaultBatchRows is the record batch size of the Arrow stream.
const DefaultBatchRows = 64 * 1024

var tableSchema = arrow.NewSchema([]arrow.Field{
	{Name: "from_edge", Type: arrow.PrimitiveTypes.Int64},
	{Name: "to_edge", Type: arrow.PrimitiveTypes.Int64},
	{Name: "cost", Type: arrow.PrimitiveTypes.Float64},
	{Name: "via_edge", Type: arrow.PrimitiveTypes.Int64},
	{Name: "final_cell", Type: arrow.PrimitiveTypes.Uint64},
	{Name: "inside", Type: arrow.FixedWidthTypes.Boolean},
}, nil)

// WriteArrow writes t as an Arrow IPC stream in batches of batchRows.
func WriteArrow(w io.Writer, t *shortcut.Table, batchRows int) error {
	if batchRows <= 0 {
		batchRows = DefaultBatchRows
	}
	pool := memory.NewGoAllocator()
	writer := ipc.NewWriter(w, ipc.WithSchema(tableSchema), ipc.WithAllocator(pool))

	b := array.NewRecordBuilder(pool, tableSchema)
	defer b.Release()
	from := b.Field(0).(*array.Int64Builder)
	to := b.Field(1).(*array.Int64Builder)
	cost := b.Field(2).(*array.Float64Builder)
	via := b.Field(3).(*array.Int64Builder)
	final := b.Field(4).(*array.Uint64Builder)
	inside := b.Field(5).(*array.BooleanBuilder)

	for start := 0; start < t.Len(); start += batchRows {
		end := min(start+batchRows, t.Len())
		b.Reserve(end - start)
		for i := start; i < end; i++ {
			from.Append(int64(t.From[i]))
			to.Append(int64(t.To[i]))
			cost.Append(t.Cost[i])
			via.Append(int64(t.Via[i]))
			final.Append(uint64(t.FinalCell[i]))
			inside.Append(t.Inside[i])
		}
		rec := b.NewRecord()
		err := writer.Write(rec)
		rec.Release()
		if err != nil {
			writer.Close()
			return fmt.Errorf("write arrow batch at row %d: %w", start, err)
		}
	}
	// Close emits the schema even for an empty table.
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close arrow stream: %w", err)
	}
	return nil
}

// ReadArrow reads a stream written by WriteArrow.
func ReadArrow(r io.Reader) (*shortcut.Table, error) {
	pool := memory.NewGoAllocator()
	rdr, err := ipc.NewReader(r, ipc.WithAllocator(pool))
	if err != nil {
		return nil, fmt.Errorf("open arrow stream: %w", err)
	}
	defer rdr.Release()
	if !rdr.Schema().Equal(tableSchema) {
		return nil, fmt.Errorf("unexpected arrow schema: %s", rdr.Schema())
	}

	t := shortcut.NewTable(0)
	for rdr.Next() {
		rec := rdr.Record()
		from := rec.Column(0).(*array.Int64)
		to := rec.Column(1).(*array.Int64)
		cost := rec.Column(2).(*array.Float64)
		via := rec.Column(3).(*array.Int64)
		final := rec.Column(4).(*array.Uint64)
		inside := rec.Column(5).(*array.Boolean)
		for i := 0; i < int(rec.NumRows()); i++ {
			t.Append(shortcut.Final{
				From:      graph.EdgeID(from.Value(i)),
				To:        graph.EdgeID(to.Value(i)),
				Cost:      cost.Value(i),
				Via:       graph.EdgeID(via.Value(i)),
				FinalCell: cell.Cell(final.Value(i)),
				Inside:    inside.Value(i),
			})
		}
	}
	if err := rdr.Err(); err != nil {
		return nil, fmt.Errorf("read arrow stream: %w", err)
	}
	return t, nil
}
