package graph

import (
	"fmt"
	"sort"
)

// Build creates the CSR connectivity graph for an edge table.
// Duplicate connections are collapsed. A connection referencing an edge that
// is not in the table is an input error.
func Build(edges *Edges, conns []Connection) (*Graph, error) {
	n := uint32(edges.Len())

	type arc struct{ from, to uint32 }
	arcs := make([]arc, 0, len(conns))
	for _, c := range conns {
		from, ok := edges.IndexOf(c.From)
		if !ok {
			return nil, fmt.Errorf("connection %d->%d: from %w", c.From, c.To, ErrUnknownEdge)
		}
		to, ok := edges.IndexOf(c.To)
		if !ok {
			return nil, fmt.Errorf("connection %d->%d: to %w", c.From, c.To, ErrUnknownEdge)
		}
		arcs = append(arcs, arc{from: from, to: to})
	}

	// Sort by source, then target, so duplicates become adjacent.
	sort.Slice(arcs, func(i, j int) bool {
		if arcs[i].from != arcs[j].from {
			return arcs[i].from < arcs[j].from
		}
		return arcs[i].to < arcs[j].to
	})
	dedup := arcs[:0]
	for i, a := range arcs {
		if i > 0 && a == arcs[i-1] {
			continue
		}
		dedup = append(dedup, a)
	}
	arcs = dedup

	numConns := uint32(len(arcs))
	firstOut := make([]uint32, n+1)
	head := make([]uint32, numConns)

	for i, a := range arcs {
		head[i] = a.to
		firstOut[a.from+1]++
	}
	// Prefix sum.
	for i := uint32(1); i <= n; i++ {
		firstOut[i] += firstOut[i-1]
	}

	return &Graph{
		NumEdges: n,
		NumConns: numConns,
		FirstOut: firstOut,
		Head:     head,
	}, nil
}

// Connections returns the graph's arcs as edge-ID pairs in CSR order.
func (g *Graph) Connections(edges *Edges) []Connection {
	all := edges.All()
	conns := make([]Connection, 0, g.NumConns)
	for u := uint32(0); u < g.NumEdges; u++ {
		start, end := g.ConnectionsFrom(u)
		for a := start; a < end; a++ {
			conns = append(conns, Connection{From: all[u].ID, To: all[g.Head[a]].ID})
		}
	}
	return conns
}
