package graph

// UnionFind implements a disjoint-set data structure with path halving
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	uf := &UnionFind{
		parent: make([]uint32, n),
		rank:   make([]byte, n),
		size:   make([]uint32, n),
	}
	for i := range n {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

// Find returns the representative of the set containing x.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx, ry := uf.Find(x), uf.Find(y)
	if rx == ry {
		return false
	}
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the number of elements in x's set.
func (uf *UnionFind) Size(x uint32) uint32 {
	return uf.size[uf.Find(x)]
}

// LargestComponent returns the edge indices belonging to the largest weakly
// connected component of the connectivity graph.
func LargestComponent(g *Graph) []uint32 {
	if g.NumEdges == 0 {
		return nil
	}

	uf := NewUnionFind(g.NumEdges)
	for u := uint32(0); u < g.NumEdges; u++ {
		start, end := g.ConnectionsFrom(u)
		for a := start; a < end; a++ {
			uf.Union(u, g.Head[a])
		}
	}

	bestRoot, bestSize := uint32(0), uint32(0)
	for i := uint32(0); i < g.NumEdges; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	members := make([]uint32, 0, bestSize)
	for i := uint32(0); i < g.NumEdges; i++ {
		if uf.Find(i) == bestRoot {
			members = append(members, i)
		}
	}
	return members
}

// FilterToComponent keeps only the given edge indices and the connections
// between them.
func FilterToComponent(edges *Edges, g *Graph, members []uint32) (*Edges, []Connection, error) {
	all := edges.All()
	keep := make([]bool, g.NumEdges)
	kept := make([]Edge, 0, len(members))
	for _, i := range members {
		keep[i] = true
		kept = append(kept, all[i])
	}

	var conns []Connection
	for _, u := range members {
		start, end := g.ConnectionsFrom(u)
		for a := start; a < end; a++ {
			if v := g.Head[a]; keep[v] {
				conns = append(conns, Connection{From: all[u].ID, To: all[v].ID})
			}
		}
	}

	filtered, err := NewEdges(kept)
	if err != nil {
		return nil, nil, err
	}
	return filtered, conns, nil
}
