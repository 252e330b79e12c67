package expand

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"map_shortcuts/pkg/partition"
	"map_shortcuts/pkg/shortcut"
)

// Options configures an Engine.
type Options struct {
	Workers          int           // concurrent partitions; <= 0 means GOMAXPROCS
	PartitionTimeout time.Duration // 0 disables the per-partition deadline
	Logger           *log.Logger
}

// Engine expands every partition of an active set.
type Engine struct {
	dispatch Dispatch
	workers  int
	timeout  time.Duration
	logger   *log.Logger
}

// NewEngine creates an engine.
func NewEngine(d Dispatch, opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Engine{dispatch: d, workers: workers, timeout: opts.PartitionTimeout, logger: logger}
}

// Derived is the combined output of all partitions of a step.
type Derived struct {
	Rows         []shortcut.Shortcut // partition order, then (from, to)
	Partitions   int
	Solver       string
	Terminations map[Termination]int
	Iterations   int // max over partitions
}

// Expand solves every partition independently and concatenates the results
// in partition order. A partition that hits its own deadline contributes its
// partial rows; a cancelled ctx aborts the whole call.
func (e *Engine) Expand(ctx context.Context, set *partition.ActiveSet) (*Derived, error) {
	solver := e.dispatch.SolverFor(set.Resolution)
	out := &Derived{
		Partitions:   len(set.Partitions),
		Solver:       solver.Name(),
		Terminations: make(map[Termination]int),
	}
	if set.Empty() {
		return out, nil
	}

	results := make([]Result, len(set.Partitions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := range set.Partitions {
		p := set.Partitions[i]
		g.Go(func() error {
			pctx := gctx
			if e.timeout > 0 {
				var cancel context.CancelFunc
				pctx, cancel = context.WithTimeout(gctx, e.timeout)
				defer cancel()
			}

			start := time.Now()
			res, err := solver.Solve(pctx, p)
			if err != nil {
				return &PartitionError{Resolution: p.Resolution, Cell: p.Cell, Solver: solver.Name(), Err: err}
			}

			switch res.Termination {
			case Interrupted:
				if err := gctx.Err(); err != nil {
					return err
				}
				e.logger.Warn("partition timed out, keeping partial result",
					"res", p.Resolution, "cell", p.Cell, "rows", len(res.Rows), "timeout", e.timeout)
			case MaxIterationsReached:
				e.logger.Warn("partition did not converge",
					"res", p.Resolution, "cell", p.Cell, "iterations", res.Iterations,
					"row_delta", res.RowDelta, "cost_delta", res.CostDelta)
			}
			e.logger.Debug("partition solved",
				"res", p.Resolution, "cell", p.Cell, "solver", solver.Name(),
				"in", len(p.Rows), "out", len(res.Rows), "took", time.Since(start))

			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var pe *PartitionError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, fmt.Errorf("expand resolution %d: %w", set.Resolution, err)
	}

	n := 0
	for _, r := range results {
		n += len(r.Rows)
	}
	out.Rows = make([]shortcut.Shortcut, 0, n)
	for _, r := range results {
		out.Rows = append(out.Rows, r.Rows...)
		out.Terminations[r.Termination]++
		out.Iterations = max(out.Iterations, r.Iterations)
	}
	return out, nil
}
