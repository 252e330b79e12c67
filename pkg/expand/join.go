package expand

import (
	"context"
	"math"

	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/partition"
	"map_shortcuts/pkg/shortcut"
)

const (
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-6
)

// JoinSolver repeatedly joins the partition's paths with themselves on
// L.to = R.from until nothing improves. Each iteration only joins pairs where
// at least one side changed in the previous iteration.
type JoinSolver struct {
	MaxIterations int
	Tolerance     float64
}

// Name implements Solver.
func (s JoinSolver) Name() string { return "join" }

type pathEntry struct {
	cost float64
	via  graph.EdgeID
}

// joinState is the in-memory path table of one partition with its two join
// indexes.
type joinState struct {
	paths  map[shortcut.Pair]pathEntry
	byFrom map[graph.EdgeID][]graph.EdgeID // from -> tos
	byTo   map[graph.EdgeID][]graph.EdgeID // to -> froms
	sum    float64
}

// put stores e when k is new or e is strictly cheaper. An equal-cost path
// never replaces the stored witness.
func (st *joinState) put(k shortcut.Pair, e pathEntry) bool {
	cur, ok := st.paths[k]
	if ok && !(e.cost < cur.cost) {
		return false
	}
	if !ok {
		st.byFrom[k.From] = append(st.byFrom[k.From], k.To)
		st.byTo[k.To] = append(st.byTo[k.To], k.From)
	} else {
		st.sum -= cur.cost
	}
	st.sum += e.cost
	st.paths[k] = e
	return true
}

type candidate struct {
	key shortcut.Pair
	e   pathEntry
}

// reduce keeps the best entry per pair; ties go to the smaller via.
func reduce(best map[shortcut.Pair]pathEntry, k shortcut.Pair, e pathEntry) {
	if cur, ok := best[k]; !ok || shortcut.Better(e.cost, e.via, cur.cost, cur.via) {
		best[k] = e
	}
}

// Solve implements Solver.
func (s JoinSolver) Solve(ctx context.Context, p partition.Partition) (Result, error) {
	if err := checkRows(p); err != nil {
		return Result{}, err
	}
	maxIter := s.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	tol := s.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}

	st := &joinState{
		paths:  make(map[shortcut.Pair]pathEntry, len(p.Rows)),
		byFrom: make(map[graph.EdgeID][]graph.EdgeID),
		byTo:   make(map[graph.EdgeID][]graph.EdgeID),
	}
	initial := make(map[shortcut.Pair]pathEntry, len(p.Rows))
	for _, r := range p.Rows {
		reduce(initial, r.Key(), pathEntry{cost: r.Cost, via: r.Via})
	}
	delta := make([]shortcut.Pair, 0, len(initial))
	for k, e := range initial {
		st.put(k, e)
		delta = append(delta, k)
	}

	res := Result{Termination: MaxIterationsReached}
	for iter := 1; iter <= maxIter; iter++ {
		if ctx.Err() != nil {
			res.Termination = Interrupted
			break
		}
		res.Iterations = iter
		countBefore, sumBefore := len(st.paths), st.sum

		// Compose against the table as it was before this iteration.
		var cands []candidate
		for _, d := range delta {
			de := st.paths[d]
			// d as the left side: d.From -> d.To -> x.
			for _, x := range st.byFrom[d.To] {
				if x == d.From {
					continue
				}
				r := st.paths[shortcut.Pair{From: d.To, To: x}]
				cands = append(cands, candidate{
					key: shortcut.Pair{From: d.From, To: x},
					e:   pathEntry{cost: de.cost + r.cost, via: d.To},
				})
			}
			// d as the right side: y -> d.From -> d.To.
			for _, y := range st.byTo[d.From] {
				if y == d.To {
					continue
				}
				l := st.paths[shortcut.Pair{From: y, To: d.From}]
				cands = append(cands, candidate{
					key: shortcut.Pair{From: y, To: d.To},
					e:   pathEntry{cost: l.cost + de.cost, via: d.From},
				})
			}
		}

		best := make(map[shortcut.Pair]pathEntry, len(cands))
		for _, c := range cands {
			reduce(best, c.key, c.e)
		}
		delta = delta[:0]
		for k, e := range best {
			if st.put(k, e) {
				delta = append(delta, k)
			}
		}

		res.RowDelta = len(st.paths) - countBefore
		res.CostDelta = st.sum - sumBefore
		if len(st.paths) == countBefore && math.Abs(res.CostDelta) < tol {
			res.Termination = Converged
			break
		}
	}

	res.Rows = make([]shortcut.Shortcut, 0, len(st.paths))
	for k, e := range st.paths {
		res.Rows = append(res.Rows, shortcut.Shortcut{From: k.From, To: k.To, Cost: e.cost, Via: e.via, Cell: p.Cell})
	}
	shortcut.SortRows(res.Rows)
	return res, nil
}
