// Package expand computes, inside each active cell, the shortest paths
// between all shortcut endpoints that the cell's rows can compose.
package expand

import (
	"context"
	"errors"
	"fmt"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/partition"
	"map_shortcuts/pkg/shortcut"
)

// ErrMalformedPartition is returned when a partition holds rows a solver
// cannot work with.
var ErrMalformedPartition = errors.New("malformed partition")

// Termination records how a solver finished.
type Termination int

const (
	Converged Termination = iota
	MaxIterationsReached
	Interrupted
)

func (t Termination) String() string {
	switch t {
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max_iterations"
	case Interrupted:
		return "interrupted"
	}
	return fmt.Sprintf("termination(%d)", int(t))
}

// Result is a solver's output for one partition.
type Result struct {
	Rows        []shortcut.Shortcut // sorted by (from, to); Cell is the partition's
	Termination Termination
	Iterations  int
	RowDelta    int     // rows added by the last iteration
	CostDelta   float64 // cost sum change of the last iteration
}

// Solver computes the min-cost closure of one partition's rows.
// Rows of the result never have from == to.
type Solver interface {
	Name() string
	Solve(ctx context.Context, p partition.Partition) (Result, error)
}

// PartitionError names the partition a solver failed on.
type PartitionError struct {
	Resolution cell.Resolution
	Cell       cell.Cell
	Solver     string
	Err        error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %s at resolution %d (%s): %v", e.Cell, e.Resolution, e.Solver, e.Err)
}

func (e *PartitionError) Unwrap() error { return e.Err }

// checkRows validates partition input shared by both solvers.
func checkRows(p partition.Partition) error {
	for i, r := range p.Rows {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: row %d: %w", ErrMalformedPartition, i, err)
		}
		if r.Cell != p.Cell {
			return fmt.Errorf("%w: row %d: cell %s does not match partition", ErrMalformedPartition, i, r.Cell)
		}
	}
	return nil
}
