package expand

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/partition"
	"map_shortcuts/pkg/shortcut"
)

// stubSolver records calls and returns a canned answer.
type stubSolver struct {
	name string
	fn   func(ctx context.Context, p partition.Partition) (Result, error)
}

func (s stubSolver) Name() string { return s.name }

func (s stubSolver) Solve(ctx context.Context, p partition.Partition) (Result, error) {
	return s.fn(ctx, p)
}

func twoPartitions(res cell.Resolution) *partition.ActiveSet {
	a := partition.Partition{Resolution: res, Cell: 10, Rows: []shortcut.Shortcut{
		{From: 1, To: 2, Cost: 1, Via: 2, Cell: 10},
		{From: 2, To: 3, Cost: 1, Via: 3, Cell: 10},
	}}
	b := partition.Partition{Resolution: res, Cell: 20, Rows: []shortcut.Shortcut{
		{From: 7, To: 8, Cost: 2, Via: 8, Cell: 20},
		{From: 8, To: 9, Cost: 2, Via: 9, Cell: 20},
	}}
	return &partition.ActiveSet{Resolution: res, Partitions: []partition.Partition{a, b}, Active: 4}
}

func TestDispatch(t *testing.T) {
	d := NewDispatch(DefaultMatrixMaxResolution, MatrixSolver{}, JoinSolver{})
	for r := cell.Root; r <= 9; r++ {
		assert.Equal(t, "matrix", d.SolverFor(r).Name(), "res %d", r)
	}
	for r := cell.Resolution(10); r <= 15; r++ {
		assert.Equal(t, "join", d.SolverFor(r).Name(), "res %d", r)
	}
}

func TestExpandCollectsInPartitionOrder(t *testing.T) {
	d := NewDispatch(DefaultMatrixMaxResolution, MatrixSolver{}, JoinSolver{})
	for _, res := range []cell.Resolution{3, 12} {
		e := NewEngine(d, Options{Workers: 4})
		out, err := e.Expand(context.Background(), twoPartitions(res))
		require.NoError(t, err)

		assert.Equal(t, d.SolverFor(res).Name(), out.Solver)
		assert.Equal(t, 2, out.Partitions)
		assert.Equal(t, 2, out.Terminations[Converged])

		require.Len(t, out.Rows, 6)
		for i, r := range out.Rows {
			if i < 3 {
				assert.Equal(t, cell.Cell(10), r.Cell)
				assert.Less(t, int64(r.To), int64(7), "rows must not cross partitions")
			} else {
				assert.Equal(t, cell.Cell(20), r.Cell)
				assert.GreaterOrEqual(t, int64(r.From), int64(7))
			}
		}
	}
}

func TestExpandEmptySet(t *testing.T) {
	e := NewEngine(NewDispatch(9, MatrixSolver{}, JoinSolver{}), Options{})
	out, err := e.Expand(context.Background(), &partition.ActiveSet{Resolution: 4})
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
	assert.Zero(t, out.Partitions)
}

func TestExpandPartitionError(t *testing.T) {
	boom := errors.New("boom")
	failing := stubSolver{name: "stub", fn: func(ctx context.Context, p partition.Partition) (Result, error) {
		if p.Cell == 20 {
			return Result{}, boom
		}
		return Result{Rows: p.Rows}, nil
	}}
	e := NewEngine(Dispatch{MatrixMaxResolution: 9, Matrix: failing, Join: failing}, Options{Workers: 1})

	_, err := e.Expand(context.Background(), twoPartitions(5))
	require.Error(t, err)

	var pe *PartitionError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, cell.Cell(20), pe.Cell)
	assert.Equal(t, cell.Resolution(5), pe.Resolution)
	assert.Equal(t, "stub", pe.Solver)
	assert.ErrorIs(t, err, boom)
}

func TestExpandPartitionTimeoutKeepsPartial(t *testing.T) {
	slow := stubSolver{name: "slow", fn: func(ctx context.Context, p partition.Partition) (Result, error) {
		if p.Cell == 10 {
			<-ctx.Done()
			return Result{Rows: p.Rows[:1], Termination: Interrupted}, nil
		}
		return Result{Rows: p.Rows}, nil
	}}
	e := NewEngine(Dispatch{MatrixMaxResolution: 9, Matrix: slow, Join: slow},
		Options{Workers: 2, PartitionTimeout: 20 * time.Millisecond})

	out, err := e.Expand(context.Background(), twoPartitions(5))
	require.NoError(t, err)
	assert.Len(t, out.Rows, 3)
	assert.Equal(t, 1, out.Terminations[Interrupted])
	assert.Equal(t, 1, out.Terminations[Converged])
}

func TestExpandCancelledRunAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(NewDispatch(9, MatrixSolver{}, JoinSolver{}), Options{Workers: 2})
	_, err := e.Expand(ctx, twoPartitions(12))
	assert.ErrorIs(t, err, context.Canceled)
}
