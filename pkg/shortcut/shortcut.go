// Package shortcut holds shortcut records, the authoritative shortcut store
// and its monotone merge.
package shortcut

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/graph"
)

var (
	// ErrSelfLoop is returned for a shortcut whose endpoints coincide.
	ErrSelfLoop = errors.New("self-loop shortcut")
	// ErrInvalidCost is returned for NaN, negative or infinite costs.
	ErrInvalidCost = errors.New("invalid shortcut cost")
)

// Shortcut states that To can be reached after leaving From at the given
// cost. Via is an edge on a best-known path; Via == To marks a direct hop.
// Cell is the partition the row is currently assigned to, None when inactive.
type Shortcut struct {
	From graph.EdgeID
	To   graph.EdgeID
	Cost float64
	Via  graph.EdgeID
	Cell cell.Cell
}

// Pair is the unique key of a shortcut.
type Pair struct {
	From graph.EdgeID
	To   graph.EdgeID
}

// Key returns the (from, to) pair of s.
func (s Shortcut) Key() Pair { return Pair{From: s.From, To: s.To} }

// Validate checks the row invariants.
func (s Shortcut) Validate() error {
	if s.From == s.To {
		return fmt.Errorf("%d->%d: %w", s.From, s.To, ErrSelfLoop)
	}
	if !validCost(s.Cost) {
		return fmt.Errorf("%d->%d cost %v: %w", s.From, s.To, s.Cost, ErrInvalidCost)
	}
	return nil
}

func validCost(c float64) bool {
	return !math.IsNaN(c) && !math.IsInf(c, 0) && c >= 0
}

// Better reports whether (cost, via) beats (curCost, curVia): lower cost
// wins, equal cost falls back to the smaller via. Use it only to choose
// among rows derived together; a stored witness is replaced only by a
// strictly lower cost, otherwise zero-cost hops can make via chains cyclic.
func Better(cost float64, via graph.EdgeID, curCost float64, curVia graph.EdgeID) bool {
	if cost != curCost {
		return cost < curCost
	}
	return via < curVia
}

// SortRows orders rows by (from, to).
func SortRows(rows []Shortcut) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].From != rows[j].From {
			return rows[i].From < rows[j].From
		}
		return rows[i].To < rows[j].To
	})
}
