package expand

import (
	"math"
	"math/rand"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/partition"
	"map_shortcuts/pkg/shortcut"
)

const testCell = cell.Cell(42)

func part(rows ...shortcut.Shortcut) partition.Partition {
	for i := range rows {
		rows[i].Cell = testCell
		if rows[i].Via == 0 {
			rows[i].Via = rows[i].To
		}
	}
	return partition.Partition{Resolution: 5, Cell: testCell, Rows: rows}
}

// cycle is the 4-edge ring 1 -> 2 -> 3 -> 4 -> 1 with unit costs.
func cycle() partition.Partition {
	return part(
		shortcut.Shortcut{From: 1, To: 2, Cost: 1},
		shortcut.Shortcut{From: 2, To: 3, Cost: 1},
		shortcut.Shortcut{From: 3, To: 4, Cost: 1},
		shortcut.Shortcut{From: 4, To: 1, Cost: 1},
	)
}

// randomPartition builds a connected-ish random partition over edges 1..n.
func randomPartition(seed int64, n, arcs int) partition.Partition {
	rng := rand.New(rand.NewSource(seed))
	var rows []shortcut.Shortcut
	for i := 1; i < n; i++ {
		rows = append(rows, shortcut.Shortcut{
			From: graph.EdgeID(i), To: graph.EdgeID(i + 1), Cost: 1 + rng.Float64()*9,
		})
	}
	for len(rows) < arcs {
		a := graph.EdgeID(1 + rng.Intn(n))
		b := graph.EdgeID(1 + rng.Intn(n))
		if a == b {
			continue
		}
		rows = append(rows, shortcut.Shortcut{From: a, To: b, Cost: 1 + rng.Float64()*20})
	}
	return part(rows...)
}

// withZeroCosts zeroes roughly frac of the rows of p, chosen by seed.
func withZeroCosts(p partition.Partition, seed int64, frac float64) partition.Partition {
	rng := rand.New(rand.NewSource(seed))
	rows := append([]shortcut.Shortcut(nil), p.Rows...)
	for i := range rows {
		if rng.Float64() < frac {
			rows[i].Cost = 0
		}
	}
	p.Rows = rows
	return p
}

// referenceDistances is a plain Floyd-Warshall over the partition rows.
func referenceDistances(p partition.Partition) map[shortcut.Pair]float64 {
	ids := map[graph.EdgeID]int{}
	var list []graph.EdgeID
	for _, r := range p.Rows {
		for _, id := range []graph.EdgeID{r.From, r.To} {
			if _, ok := ids[id]; !ok {
				ids[id] = len(list)
				list = append(list, id)
			}
		}
	}
	n := len(list)
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
		for j := range d[i] {
			if i != j {
				d[i][j] = math.Inf(1)
			}
		}
	}
	for _, r := range p.Rows {
		i, j := ids[r.From], ids[r.To]
		d[i][j] = math.Min(d[i][j], r.Cost)
	}
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if d[i][k]+d[k][j] < d[i][j] {
					d[i][j] = d[i][k] + d[k][j]
				}
			}
		}
	}
	out := map[shortcut.Pair]float64{}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && !math.IsInf(d[i][j], 1) {
				out[shortcut.Pair{From: list[i], To: list[j]}] = d[i][j]
			}
		}
	}
	return out
}

func costsOf(rows []shortcut.Shortcut) map[shortcut.Pair]float64 {
	out := make(map[shortcut.Pair]float64, len(rows))
	for _, r := range rows {
		out[r.Key()] = r.Cost
	}
	return out
}
