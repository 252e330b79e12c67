package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/shortcut"
)

// WriteCSV writes t with a header row. Costs keep full float64 precision.
func WriteCSV(w io.Writer, t *shortcut.Table) error {
	bw := bufio.NewWriterSize(w, 1<<20)
	cw := csv.NewWriter(bw)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	rec := make([]string, len(Columns))
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		rec[0] = strconv.FormatInt(int64(r.From), 10)
		rec[1] = strconv.FormatInt(int64(r.To), 10)
		rec[2] = strconv.FormatFloat(r.Cost, 'g', -1, 64)
		rec[3] = strconv.FormatInt(int64(r.Via), 10)
		rec[4] = r.FinalCell.String()
		rec[5] = strconv.FormatBool(r.Inside)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadCSV reads a table written by WriteCSV.
func ReadCSV(r io.Reader) (*shortcut.Table, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != len(Columns) {
		return nil, fmt.Errorf("header has %d columns, want %d", len(header), len(Columns))
	}
	for i, name := range Columns {
		if header[i] != name {
			return nil, fmt.Errorf("column %d is %q, want %q", i, header[i], name)
		}
	}

	t := shortcut.NewTable(0)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t.Append(row)
	}
	return t, nil
}

func parseRow(rec []string) (shortcut.Final, error) {
	var row shortcut.Final
	ids := [3]int64{}
	for k, col := range [3]int{0, 1, 3} {
		v, err := strconv.ParseInt(rec[col], 10, 64)
		if err != nil {
			return row, fmt.Errorf("%s: %w", Columns[col], err)
		}
		ids[k] = v
	}
	cost, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return row, fmt.Errorf("cost: %w", err)
	}
	c, err := cell.Parse(rec[4])
	if err != nil {
		return row, err
	}
	inside, err := strconv.ParseBool(rec[5])
	if err != nil {
		return row, fmt.Errorf("inside: %w", err)
	}
	row = shortcut.Final{
		From:      graph.EdgeID(ids[0]),
		To:        graph.EdgeID(ids[1]),
		Cost:      cost,
		Via:       graph.EdgeID(ids[2]),
		FinalCell: c,
		Inside:    inside,
	}
	return row, nil
}
