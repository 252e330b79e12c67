package partition

import (
	"fmt"
	"sort"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/shortcut"
)

// Anchor selects which endpoints of a shortcut's first and last edge are
// used to place it in a cell.
type Anchor struct {
	From graph.Endpoint // endpoint of from_edge
	To   graph.Endpoint // endpoint of to_edge
}

var (
	// Inner anchors on the junction side: the end of from_edge and the start
	// of to_edge.
	Inner = Anchor{From: graph.End, To: graph.Start}
	// Outer anchors on the far ends: the start of from_edge and the end of
	// to_edge.
	Outer = Anchor{From: graph.Start, To: graph.End}
)

func (a Anchor) String() string {
	switch a {
	case Inner:
		return "inner"
	case Outer:
		return "outer"
	}
	return fmt.Sprintf("%s/%s", a.From, a.To)
}

// ParseAnchor parses "inner" or "outer".
func ParseAnchor(s string) (Anchor, error) {
	switch s {
	case "", "inner":
		return Inner, nil
	case "outer":
		return Outer, nil
	}
	return Anchor{}, fmt.Errorf("unknown anchor %q (want inner or outer)", s)
}

// Partition is the set of active rows sharing one cell.
type Partition struct {
	Resolution cell.Resolution
	Cell       cell.Cell
	Rows       []shortcut.Shortcut // sorted by (from, to); Cell set
}

// ActiveSet is the output of Assign.
type ActiveSet struct {
	Resolution cell.Resolution
	Partitions []Partition // sorted by cell
	Active     int
	Inactive   int
}

// Empty reports whether no row is active.
func (a *ActiveSet) Empty() bool { return a.Active == 0 }

// Assign tags every stored shortcut with the cell shared by its anchors at
// resolution r. A row is active when both anchors resolve to the same
// non-None cell; inactive rows stay in the store untouched.
func Assign(store *shortcut.Store, oracle Oracle, r cell.Resolution, anchor Anchor) *ActiveSet {
	m := newMemo(oracle)
	set := &ActiveSet{Resolution: r}

	byCell := make(map[cell.Cell][]shortcut.Shortcut)
	for _, row := range store.Rows() {
		c := m.cell(row.From, anchor.From, r)
		if c == cell.None || m.cell(row.To, anchor.To, r) != c {
			set.Inactive++
			continue
		}
		row.Cell = c
		byCell[c] = append(byCell[c], row)
		set.Active++
	}

	set.Partitions = make([]Partition, 0, len(byCell))
	for c, rows := range byCell {
		set.Partitions = append(set.Partitions, Partition{Resolution: r, Cell: c, Rows: rows})
	}
	sort.Slice(set.Partitions, func(i, j int) bool {
		return set.Partitions[i].Cell < set.Partitions[j].Cell
	})
	return set
}
