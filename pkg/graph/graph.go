package graph

import (
	"errors"
	"fmt"
	"math"

	"map_shortcuts/pkg/geo"
)

// EdgeID identifies a road edge. IDs are opaque and stable across a run.
type EdgeID int64

// Endpoint selects one end of a directed edge.
type Endpoint uint8

const (
	Start Endpoint = iota // the point where the edge is entered
	End                   // the point where the edge is left
)

func (p Endpoint) String() string {
	if p == Start {
		return "start"
	}
	return "end"
}

// ErrUnknownEdge is returned when a connection references an edge that is not
// in the edge table.
var ErrUnknownEdge = errors.New("unknown edge")

// ErrDuplicateEdge is returned when two edges share an ID.
var ErrDuplicateEdge = errors.New("duplicate edge id")

// Edge is a directed road segment between two junctions.
type Edge struct {
	ID          EdgeID
	FromNode    int64
	ToNode      int64
	Start       geo.Point
	End         geo.Point
	LengthM     float64
	MaxSpeedKmh float64 // 0 = unknown, the cost model falls back to the highway class
	Highway     string
	Restricted  bool // no through traffic for cars
}

// Point returns the coordinate of the requested endpoint.
func (e *Edge) Point(p Endpoint) geo.Point {
	if p == Start {
		return e.Start
	}
	return e.End
}

// Connection states that To can be entered directly after leaving From.
type Connection struct {
	From EdgeID
	To   EdgeID
}

// Edges is an immutable edge table with an ID index.
type Edges struct {
	list  []Edge
	index map[EdgeID]uint32
}

// NewEdges validates and indexes an edge list. The slice is retained.
func NewEdges(list []Edge) (*Edges, error) {
	index := make(map[EdgeID]uint32, len(list))
	for i := range list {
		e := &list[i]
		if _, dup := index[e.ID]; dup {
			return nil, fmt.Errorf("edge %d: %w", e.ID, ErrDuplicateEdge)
		}
		if !e.Start.Valid() || !e.End.Valid() {
			return nil, fmt.Errorf("edge %d: invalid coordinates", e.ID)
		}
		if math.IsNaN(e.LengthM) || math.IsInf(e.LengthM, 0) || e.LengthM < 0 {
			return nil, fmt.Errorf("edge %d: invalid length %v", e.ID, e.LengthM)
		}
		if math.IsNaN(e.MaxSpeedKmh) || e.MaxSpeedKmh < 0 {
			return nil, fmt.Errorf("edge %d: invalid maxspeed %v", e.ID, e.MaxSpeedKmh)
		}
		index[e.ID] = uint32(i)
	}
	return &Edges{list: list, index: index}, nil
}

// Len returns the number of edges.
func (t *Edges) Len() int { return len(t.list) }

// All returns the edges in table order. Callers must not modify the slice.
func (t *Edges) All() []Edge { return t.list }

// Get returns the edge with the given ID.
func (t *Edges) Get(id EdgeID) (*Edge, bool) {
	i, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return &t.list[i], true
}

// IndexOf returns the table position of an edge ID.
func (t *Edges) IndexOf(id EdgeID) (uint32, bool) {
	i, ok := t.index[id]
	return i, ok
}

// Graph is the edge-to-edge connectivity in CSR (Compressed Sparse Row) format.
// Vertex i is the i-th edge of the Edges table it was built from.
type Graph struct {
	NumEdges uint32   // vertices: road edges
	NumConns uint32   // arcs: connections
	FirstOut []uint32 // len: NumEdges + 1
	Head     []uint32 // len: NumConns; successor edge index
}

// ConnectionsFrom returns the range of arc indices leaving edge index u.
func (g *Graph) ConnectionsFrom(u uint32) (start, end uint32) {
	return g.FirstOut[u], g.FirstOut[u+1]
}
