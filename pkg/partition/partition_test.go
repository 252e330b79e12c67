package partition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/geo"
	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/shortcut"
)

func pt(lat, lon float64) geo.Point { return geo.Point{Lat: lat, Lon: lon} }

type fixture struct {
	grid   cell.Grid
	oracle *EdgeOracle
	store  *shortcut.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	edges, err := graph.NewEdges([]graph.Edge{
		{ID: 1, Start: pt(1, 1), End: pt(2, 2)},
		{ID: 2, Start: pt(2, 2), End: pt(3, 3)},
		{ID: 3, Start: pt(2, 2), End: pt(30, 30)},
		{ID: 4, Start: pt(-50, -100), End: pt(-50, -100.1)},
		{ID: 5, Start: pt(-50, -100.1), End: pt(-50, -100.2)},
	})
	require.NoError(t, err)
	grid, err := cell.NewGrid(cell.DefaultBaseDegrees, 3)
	require.NoError(t, err)

	store := shortcut.NewStore()
	store.Merge([]shortcut.Shortcut{
		{From: 1, To: 2, Cost: 1, Via: 2},
		{From: 1, To: 3, Cost: 1, Via: 3},
		{From: 4, To: 1, Cost: 9, Via: 1},
		{From: 4, To: 5, Cost: 1, Via: 5},
		{From: 9, To: 1, Cost: 1, Via: 1}, // unknown edge
	})
	return fixture{grid: grid, oracle: NewEdgeOracle(edges, grid, nil), store: store}
}

func TestEdgeOracle(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, f.grid.CellAt(pt(2, 2), 3), f.oracle.EnclosingCell(1, graph.End, 3))
	assert.Equal(t, f.grid.CellAt(pt(1, 1), 3), f.oracle.EnclosingCell(1, graph.Start, 3))
	assert.Equal(t, cell.None, f.oracle.EnclosingCell(99, graph.Start, 3))
	assert.Equal(t, cell.None, f.oracle.EnclosingCell(1, graph.Start, 4))
}

func TestEdgeOracleRegion(t *testing.T) {
	edges, err := graph.NewEdges([]graph.Edge{
		{ID: 1, Start: pt(1, 1), End: pt(2, 2)},
		{ID: 2, Start: pt(40, 40), End: pt(41, 41)},
	})
	require.NoError(t, err)
	grid, err := cell.NewGrid(cell.DefaultBaseDegrees, 5)
	require.NoError(t, err)
	region := cell.NewRegion([]geo.BBox{{MinLat: 0, MaxLat: 10, MinLon: 0, MaxLon: 10}})

	o := NewEdgeOracle(edges, grid, region)
	assert.NotEqual(t, cell.None, o.EnclosingCell(1, graph.End, 5))
	for r := cell.Root; r <= 5; r++ {
		assert.Equal(t, cell.None, o.EnclosingCell(2, graph.Start, r))
	}
}

func TestAssignInner(t *testing.T) {
	f := newFixture(t)
	set := Assign(f.store, f.oracle, 3, Inner)

	assert.Equal(t, 3, set.Active)
	assert.Equal(t, 2, set.Inactive)
	require.Len(t, set.Partitions, 2)

	south, north := set.Partitions[0], set.Partitions[1]
	assert.Less(t, south.Cell, north.Cell)

	assert.Equal(t, f.grid.CellAt(pt(-50, -100.1), 3), south.Cell)
	require.Len(t, south.Rows, 1)
	assert.Equal(t, graph.EdgeID(4), south.Rows[0].From)
	assert.Equal(t, south.Cell, south.Rows[0].Cell)

	assert.Equal(t, f.grid.CellAt(pt(2, 2), 3), north.Cell)
	require.Len(t, north.Rows, 2)
	assert.Equal(t, graph.EdgeID(2), north.Rows[0].To)
	assert.Equal(t, graph.EdgeID(3), north.Rows[1].To)
	for _, p := range set.Partitions {
		assert.Equal(t, cell.Resolution(3), p.Resolution)
	}

	// The store itself is untouched.
	assert.Equal(t, 5, f.store.Len())
	for _, row := range f.store.Rows() {
		assert.Equal(t, cell.None, row.Cell)
	}
}

func TestAssignOuter(t *testing.T) {
	f := newFixture(t)

	set := Assign(f.store, f.oracle, 0, Outer)
	// 1->2 and 1->3 share a level-0 cell from start of 1 to end of 2/3; 4->5 too.
	assert.Equal(t, 3, set.Active)

	set = Assign(f.store, f.oracle, 1, Outer)
	// At level 1 the far end of edge 3 leaves the cell.
	assert.Equal(t, 2, set.Active)
}

func TestAssignRootActivatesAllKnownRows(t *testing.T) {
	f := newFixture(t)
	set := Assign(f.store, f.oracle, cell.Root, Inner)
	assert.Equal(t, 4, set.Active)
	assert.Equal(t, 1, set.Inactive)
	assert.Len(t, set.Partitions, 1)
}

func TestAssignEmptyStore(t *testing.T) {
	f := newFixture(t)
	set := Assign(shortcut.NewStore(), f.oracle, 2, Inner)
	assert.True(t, set.Empty())
	assert.Empty(t, set.Partitions)
}

func TestAssignMemoisesLookups(t *testing.T) {
	calls := make(map[lookupKey]int)
	oracle := OracleFunc(func(e graph.EdgeID, end graph.Endpoint, r cell.Resolution) cell.Cell {
		calls[lookupKey{edge: e, end: end, res: r}]++
		return cell.Cell(1)
	})
	store := shortcut.NewStore()
	store.Merge([]shortcut.Shortcut{
		{From: 1, To: 2, Cost: 1, Via: 2},
		{From: 1, To: 3, Cost: 1, Via: 3},
		{From: 3, To: 2, Cost: 1, Via: 2},
	})

	set := Assign(store, oracle, 5, Inner)
	assert.Equal(t, 3, set.Active)
	for k, n := range calls {
		assert.Equal(t, 1, n, "lookup %+v", k)
	}
}

func TestParseAnchor(t *testing.T) {
	a, err := ParseAnchor("outer")
	require.NoError(t, err)
	assert.Equal(t, Outer, a)
	assert.Equal(t, "outer", a.String())

	a, err = ParseAnchor("")
	require.NoError(t, err)
	assert.Equal(t, Inner, a)

	_, err = ParseAnchor("sideways")
	assert.Error(t, err)
}

func TestFinalize(t *testing.T) {
	f := newFixture(t)
	table := Finalize(f.store, f.oracle, 3)
	require.Equal(t, 5, table.Len())

	rows := map[shortcut.Pair]shortcut.Final{}
	for i := 0; i < table.Len(); i++ {
		r := table.Row(i)
		rows[shortcut.Pair{From: r.From, To: r.To}] = r
	}

	// Same finest cell on both sides, whole path inside it.
	r := rows[shortcut.Pair{From: 1, To: 2}]
	assert.Equal(t, f.grid.CellAt(pt(2, 2), 3), r.FinalCell)
	assert.True(t, r.Inside)

	// Junction in a finest cell, far end outside it.
	r = rows[shortcut.Pair{From: 1, To: 3}]
	assert.Equal(t, f.grid.CellAt(pt(2, 2), 3), r.FinalCell)
	assert.False(t, r.Inside)

	// Only the root cell contains both sides.
	r = rows[shortcut.Pair{From: 4, To: 1}]
	assert.Equal(t, f.grid.CellAt(pt(0, 0), cell.Root), r.FinalCell)
	assert.True(t, r.Inside)

	// Unknown edge never gets a cell.
	r = rows[shortcut.Pair{From: 9, To: 1}]
	assert.Equal(t, cell.None, r.FinalCell)
	assert.False(t, r.Inside)

	// Costs and vias are carried through.
	assert.Equal(t, 9.0, rows[shortcut.Pair{From: 4, To: 1}].Cost)
	assert.Equal(t, graph.EdgeID(5), rows[shortcut.Pair{From: 4, To: 5}].Via)
}
