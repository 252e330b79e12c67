package expand

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/partition"
	"map_shortcuts/pkg/shortcut"
)

const (
	DefaultDenseMaxNodes   = 512
	DefaultDenseMinDensity = 0.05
)

// MatrixSolver solves a partition as an all-pairs shortest path problem over
// the local graph whose vertices are the partition's edge IDs. Small dense
// partitions use Floyd-Warshall, everything else one Dijkstra per source.
type MatrixSolver struct {
	DenseMaxNodes   int
	DenseMinDensity float64
}

// Name implements Solver.
func (s MatrixSolver) Name() string { return "matrix" }

type arc struct {
	to   int32
	cost float64
	via  graph.EdgeID
}

// localGraph is the partition re-indexed to 0..n-1.
type localGraph struct {
	ids []graph.EdgeID // local -> edge
	out [][]arc
	in  [][]arc // arc.to holds the source of the incoming arc
}

func buildLocal(rows []shortcut.Shortcut) *localGraph {
	index := make(map[graph.EdgeID]int32)
	var ids []graph.EdgeID
	local := func(id graph.EdgeID) int32 {
		if i, ok := index[id]; ok {
			return i
		}
		i := int32(len(ids))
		index[id] = i
		ids = append(ids, id)
		return i
	}

	// Keep the best row per pair.
	best := make(map[[2]int32]arc, len(rows))
	for _, r := range rows {
		u, v := local(r.From), local(r.To)
		k := [2]int32{u, v}
		cur, ok := best[k]
		if !ok || shortcut.Better(r.Cost, r.Via, cur.cost, cur.via) {
			best[k] = arc{to: v, cost: r.Cost, via: r.Via}
		}
	}

	lg := &localGraph{
		ids: ids,
		out: make([][]arc, len(ids)),
		in:  make([][]arc, len(ids)),
	}
	for k, a := range best {
		lg.out[k[0]] = append(lg.out[k[0]], a)
		lg.in[k[1]] = append(lg.in[k[1]], arc{to: k[0], cost: a.cost, via: a.via})
	}
	// Map iteration order is random; sort for reproducible output.
	for i := range lg.out {
		sortArcs(lg.out[i])
		sortArcs(lg.in[i])
	}
	return lg
}

func sortArcs(a []arc) {
	sort.Slice(a, func(i, j int) bool { return a[i].to < a[j].to })
}

func (lg *localGraph) numArcs() int {
	n := 0
	for _, a := range lg.out {
		n += len(a)
	}
	return n
}

// Solve implements Solver.
func (s MatrixSolver) Solve(ctx context.Context, p partition.Partition) (Result, error) {
	if err := checkRows(p); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{Termination: Interrupted}, nil
	}

	lg := buildLocal(p.Rows)
	n := len(lg.ids)
	if n == 0 {
		return Result{Termination: Converged}, nil
	}

	if s.dense(n, lg.numArcs()) {
		dist, err := floydWarshall(lg)
		if err != nil {
			return Result{}, err
		}
		rows := make([]shortcut.Shortcut, 0, lg.numArcs())
		hops := make([]int32, n)
		var queue []int32
		for u := 0; u < n; u++ {
			queue = lg.hopsFrom(int32(u), dist[u], hops, queue)
			rows = lg.emit(rows, int32(u), dist[u], hops, p)
		}
		shortcut.SortRows(rows)
		return Result{Rows: rows, Termination: Converged, Iterations: 1}, nil
	}

	var rows []shortcut.Shortcut
	dist := make([]float64, n)
	hops := make([]int32, n)
	var queue []int32
	var h minHeap
	for u := 0; u < n; u++ {
		if ctx.Err() != nil {
			shortcut.SortRows(rows)
			return Result{Rows: rows, Termination: Interrupted, Iterations: u}, nil
		}
		lg.dijkstra(int32(u), dist, &h)
		queue = lg.hopsFrom(int32(u), dist, hops, queue)
		rows = lg.emit(rows, int32(u), dist, hops, p)
	}
	shortcut.SortRows(rows)
	return Result{Rows: rows, Termination: Converged, Iterations: n}, nil
}

func (s MatrixSolver) dense(nodes, arcs int) bool {
	maxNodes := s.DenseMaxNodes
	if maxNodes <= 0 {
		maxNodes = DefaultDenseMaxNodes
	}
	minDensity := s.DenseMinDensity
	if minDensity <= 0 {
		minDensity = DefaultDenseMinDensity
	}
	if nodes > maxNodes || nodes < 2 {
		return false
	}
	return float64(arcs)/float64(nodes*(nodes-1)) >= minDensity
}

// floydWarshall returns the all-pairs distance matrix, +Inf for unreachable.
func floydWarshall(lg *localGraph) ([][]float64, error) {
	n := len(lg.ids)
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for u := 0; u < n; u++ {
		g.AddNode(simple.Node(u))
	}
	for u, arcs := range lg.out {
		for _, a := range arcs {
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(u), simple.Node(a.to), a.cost))
		}
	}

	paths, ok := path.FloydWarshall(g)
	if !ok {
		// Unreachable with non-negative costs.
		return nil, fmt.Errorf("%w: negative cycle", ErrMalformedPartition)
	}

	dist := make([][]float64, n)
	for u := 0; u < n; u++ {
		dist[u] = make([]float64, n)
		for v := 0; v < n; v++ {
			dist[u][v] = paths.Weight(int64(u), int64(v))
		}
	}
	return dist, nil
}

// dijkstra fills dist with shortest distances from source.
func (lg *localGraph) dijkstra(source int32, dist []float64, h *minHeap) {
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	h.Reset()
	dist[source] = 0
	h.Push(source, 0)

	for h.Len() > 0 {
		cur := h.Pop()
		// Skip stale entries.
		if cur.dist > dist[cur.node] {
			continue
		}
		for _, a := range lg.out[cur.node] {
			if d := cur.dist + a.cost; d < dist[a.to] {
				dist[a.to] = d
				h.Push(a.to, d)
			}
		}
	}
}

// hopsFrom fills hops with the fewest arcs on any shortest path from u,
// found by a BFS over the arcs that lie on shortest paths. Unreached
// nodes get -1.
func (lg *localGraph) hopsFrom(u int32, dist []float64, hops []int32, queue []int32) []int32 {
	for i := range hops {
		hops[i] = -1
	}
	hops[u] = 0
	queue = append(queue[:0], u)
	for i := 0; i < len(queue); i++ {
		w := queue[i]
		for _, a := range lg.out[w] {
			if hops[a.to] >= 0 || !tight(dist[w]+a.cost, dist[a.to]) {
				continue
			}
			hops[a.to] = hops[w] + 1
			queue = append(queue, a.to)
		}
	}
	return queue
}

// emit appends one row per reachable target of u. The witness is the source
// of a last hop on a shortest path with the fewest arcs, or the stored via
// when that is the direct row. Among equal last hops the smallest via wins.
// Preferring fewer arcs keeps via chains acyclic when costs are zero.
func (lg *localGraph) emit(rows []shortcut.Shortcut, u int32, dist []float64, hops []int32, p partition.Partition) []shortcut.Shortcut {
	for v, d := range dist {
		if int32(v) == u || math.IsInf(d, 1) {
			continue
		}
		var (
			via   graph.EdgeID
			found bool
		)
		for _, a := range lg.in[v] {
			w := a.to // source of the incoming arc
			if hops[w] < 0 || hops[w]+1 != hops[v] || !tight(dist[w]+a.cost, d) {
				continue
			}
			cand := lg.ids[w]
			if w == u {
				cand = a.via
			}
			if !found || cand < via {
				via, found = cand, true
			}
		}
		if !found {
			continue
		}
		rows = append(rows, shortcut.Shortcut{
			From: lg.ids[u],
			To:   lg.ids[v],
			Cost: d,
			Via:  via,
			Cell: p.Cell,
		})
	}
	return rows
}

func tight(c, d float64) bool {
	return math.Abs(c-d) <= costEpsilon(d)
}

func costEpsilon(c float64) float64 {
	return 1e-9 * math.Max(1, math.Abs(c))
}
