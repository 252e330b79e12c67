// Package partition assigns shortcuts to spatial cells and annotates the
// final table with the deepest enclosing cell.
package partition

import (
	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/graph"
)

// Oracle maps an edge endpoint to its enclosing cell at a resolution.
// It must be deterministic and total: points it cannot place yield cell.None.
type Oracle interface {
	EnclosingCell(e graph.EdgeID, end graph.Endpoint, r cell.Resolution) cell.Cell
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(e graph.EdgeID, end graph.Endpoint, r cell.Resolution) cell.Cell

// EnclosingCell calls f.
func (f OracleFunc) EnclosingCell(e graph.EdgeID, end graph.Endpoint, r cell.Resolution) cell.Cell {
	return f(e, end, r)
}

// EdgeOracle places edge endpoints on a grid, restricted to a region.
type EdgeOracle struct {
	edges  *graph.Edges
	grid   cell.Grid
	region *cell.Region
}

// NewEdgeOracle returns an oracle over the edge table. A nil region
// contains everything.
func NewEdgeOracle(edges *graph.Edges, grid cell.Grid, region *cell.Region) *EdgeOracle {
	return &EdgeOracle{edges: edges, grid: grid, region: region}
}

// EnclosingCell implements Oracle.
func (o *EdgeOracle) EnclosingCell(id graph.EdgeID, end graph.Endpoint, r cell.Resolution) cell.Cell {
	e, ok := o.edges.Get(id)
	if !ok {
		return cell.None
	}
	p := e.Point(end)
	if !o.region.Contains(p) {
		return cell.None
	}
	return o.grid.CellAt(p, r)
}

type lookupKey struct {
	edge graph.EdgeID
	end  graph.Endpoint
	res  cell.Resolution
}

// memo caches oracle answers for the lifetime of one operation.
type memo struct {
	oracle Oracle
	cache  map[lookupKey]cell.Cell
}

func newMemo(o Oracle) *memo {
	return &memo{oracle: o, cache: make(map[lookupKey]cell.Cell)}
}

func (m *memo) cell(e graph.EdgeID, end graph.Endpoint, r cell.Resolution) cell.Cell {
	k := lookupKey{edge: e, end: end, res: r}
	if c, ok := m.cache[k]; ok {
		return c
	}
	c := m.oracle.EnclosingCell(e, end, r)
	m.cache[k] = c
	return c
}
