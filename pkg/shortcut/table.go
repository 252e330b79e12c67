package shortcut

import (
	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/graph"
)

// Final is an output row: a shortcut annotated with the deepest cell that
// contains its junction side and whether the whole path stays in it.
type Final struct {
	From      graph.EdgeID
	To        graph.EdgeID
	Cost      float64
	Via       graph.EdgeID
	FinalCell cell.Cell
	Inside    bool
}

// Table is the final shortcut table in columnar form.
type Table struct {
	From      []graph.EdgeID
	To        []graph.EdgeID
	Via       []graph.EdgeID
	Cost      []float64
	FinalCell []cell.Cell
	Inside    []bool
}

// NewTable allocates a table with room for n rows.
func NewTable(n int) *Table {
	return &Table{
		From:      make([]graph.EdgeID, 0, n),
		To:        make([]graph.EdgeID, 0, n),
		Via:       make([]graph.EdgeID, 0, n),
		Cost:      make([]float64, 0, n),
		FinalCell: make([]cell.Cell, 0, n),
		Inside:    make([]bool, 0, n),
	}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.From) }

// Append adds a row.
func (t *Table) Append(r Final) {
	t.From = append(t.From, r.From)
	t.To = append(t.To, r.To)
	t.Via = append(t.Via, r.Via)
	t.Cost = append(t.Cost, r.Cost)
	t.FinalCell = append(t.FinalCell, r.FinalCell)
	t.Inside = append(t.Inside, r.Inside)
}

// Row returns row i.
func (t *Table) Row(i int) Final {
	return Final{
		From:      t.From[i],
		To:        t.To[i],
		Cost:      t.Cost[i],
		Via:       t.Via[i],
		FinalCell: t.FinalCell[i],
		Inside:    t.Inside[i],
	}
}

// Shortcuts returns the rows without the final annotation.
func (t *Table) Shortcuts() []Shortcut {
	rows := make([]Shortcut, t.Len())
	for i := range rows {
		rows[i] = Shortcut{From: t.From[i], To: t.To[i], Cost: t.Cost[i], Via: t.Via[i]}
	}
	return rows
}

// FromShortcuts builds an unannotated table from rows.
func FromShortcuts(rows []Shortcut) *Table {
	t := NewTable(len(rows))
	for _, r := range rows {
		t.Append(Final{From: r.From, To: r.To, Cost: r.Cost, Via: r.Via, FinalCell: r.Cell})
	}
	return t
}

// Index maps (from, to) to the via of each row, for path unpacking.
type Index map[Pair]graph.EdgeID

// Index builds a lookup index over the table.
func (t *Table) Index() Index {
	idx := make(Index, t.Len())
	for i := range t.From {
		idx[Pair{From: t.From[i], To: t.To[i]}] = t.Via[i]
	}
	return idx
}

// Via implements ViaLookup.
func (idx Index) Via(from, to graph.EdgeID) (graph.EdgeID, bool) {
	v, ok := idx[Pair{From: from, To: to}]
	return v, ok
}
