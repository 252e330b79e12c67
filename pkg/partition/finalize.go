package partition

import (
	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/shortcut"
)

// Finalize annotates every stored shortcut with its final cell: the cell at
// the deepest resolution in [maxRes, Root] where both inner anchors fall in
// the same cell. Inside is set when the outer anchors lie in that cell too.
// Rows that never share a cell get cell.None and Inside false.
func Finalize(store *shortcut.Store, oracle Oracle, maxRes cell.Resolution) *shortcut.Table {
	m := newMemo(oracle)
	rows := store.Rows()
	t := shortcut.NewTable(len(rows))

	for _, row := range rows {
		out := shortcut.Final{From: row.From, To: row.To, Cost: row.Cost, Via: row.Via}
		for r := maxRes; r >= cell.Root; r-- {
			c := m.cell(row.From, Inner.From, r)
			if c == cell.None || m.cell(row.To, Inner.To, r) != c {
				continue
			}
			out.FinalCell = c
			out.Inside = m.cell(row.From, graph.Start, r) == c && m.cell(row.To, graph.End, r) == c
			break
		}
		t.Append(out)
	}
	return t
}
