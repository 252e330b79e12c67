package shortcut

import (
	"math"

	"map_shortcuts/pkg/cost"
	"map_shortcuts/pkg/graph"
)

// MergeStats counts what a merge did with its input rows.
type MergeStats struct {
	Inserted  int // new pairs
	Improved  int // existing pairs that got a better cost or via
	Unchanged int // rows that did not beat the stored value
	Rejected  int // rows that violate the row invariants
}

// Changed returns the number of rows that modified the store.
func (m MergeStats) Changed() int { return m.Inserted + m.Improved }

// Add accumulates o into m.
func (m *MergeStats) Add(o MergeStats) {
	m.Inserted += o.Inserted
	m.Improved += o.Improved
	m.Unchanged += o.Unchanged
	m.Rejected += o.Rejected
}

type entry struct {
	cost float64
	via  graph.EdgeID
}

// Store is the authoritative shortcut table, unique on (from, to). It only
// ever keeps the best cost seen for a pair. Store is not safe for concurrent
// writes; the pipeline merges once per step.
type Store struct {
	rows map[Pair]entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{rows: make(map[Pair]entry)}
}

// Len returns the number of stored pairs.
func (s *Store) Len() int { return len(s.rows) }

// Get returns the stored shortcut for a pair.
func (s *Store) Get(from, to graph.EdgeID) (Shortcut, bool) {
	e, ok := s.rows[Pair{From: from, To: to}]
	if !ok {
		return Shortcut{}, false
	}
	return Shortcut{From: from, To: to, Cost: e.cost, Via: e.via}, true
}

// Via implements ViaLookup.
func (s *Store) Via(from, to graph.EdgeID) (graph.EdgeID, bool) {
	e, ok := s.rows[Pair{From: from, To: to}]
	return e.via, ok
}

// Rows returns a copy of all stored rows sorted by (from, to). Cell is None.
func (s *Store) Rows() []Shortcut {
	rows := make([]Shortcut, 0, len(s.rows))
	for k, e := range s.rows {
		rows = append(rows, Shortcut{From: k.From, To: k.To, Cost: e.cost, Via: e.via})
	}
	SortRows(rows)
	return rows
}

// TotalCost returns the sum of all stored costs.
func (s *Store) TotalCost() float64 {
	// Summed in key order so the result is reproducible.
	var sum float64
	for _, r := range s.Rows() {
		sum += r.Cost
	}
	return sum
}

// Merge folds rows into the store. For every pair a strictly lower cost
// replaces the stored row; on equal cost the stored witness stays. Invalid
// rows are rejected and counted.
// Merging the same rows twice leaves the store unchanged the second time.
func (s *Store) Merge(rows []Shortcut) MergeStats {
	var st MergeStats
	for _, r := range rows {
		if r.Validate() != nil {
			st.Rejected++
			continue
		}
		k := r.Key()
		cur, ok := s.rows[k]
		switch {
		case !ok:
			s.rows[k] = entry{cost: r.Cost, via: r.Via}
			st.Inserted++
		case r.Cost < cur.cost:
			s.rows[k] = entry{cost: r.Cost, via: r.Via}
			st.Improved++
		default:
			st.Unchanged++
		}
	}
	return st
}

// Seed loads the direct hops: a connection a->b becomes {a, b, cost(a), via b}.
// Connections leaving an edge without a finite cost are rejected.
func (s *Store) Seed(conns []graph.Connection, costs cost.Table) MergeStats {
	rows := make([]Shortcut, 0, len(conns))
	for _, c := range conns {
		w, ok := costs[c.From]
		if !ok {
			w = math.NaN()
		}
		rows = append(rows, Shortcut{From: c.From, To: c.To, Cost: w, Via: c.To})
	}
	return s.Merge(rows)
}

// Reset replaces the store content with rows. Used when restoring a
// checkpoint.
func (s *Store) Reset(rows []Shortcut) MergeStats {
	s.rows = make(map[Pair]entry, len(rows))
	return s.Merge(rows)
}
