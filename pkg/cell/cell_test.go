package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"map_shortcuts/pkg/geo"
)

func testGrid(t *testing.T) Grid {
	t.Helper()
	g, err := NewGrid(DefaultBaseDegrees, 15)
	require.NoError(t, err)
	return g
}

func TestNewGrid(t *testing.T) {
	_, err := NewGrid(45, 15)
	assert.NoError(t, err)

	tests := []struct {
		name   string
		base   float64
		maxRes Resolution
	}{
		{"zero base", 0, 10},
		{"base too large", 200, 10},
		{"base does not divide 180", 50, 10},
		{"negative max", 45, -1},
		{"too fine", 45, 27},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGrid(tt.base, tt.maxRes)
			assert.Error(t, err)
		})
	}
}

func TestCellAt(t *testing.T) {
	g := testGrid(t)
	vancouver := geo.Point{Lat: 49.2827, Lon: -123.1207}

	c := g.CellAt(vancouver, 0)
	require.NotEqual(t, None, c)
	assert.Equal(t, Resolution(0), c.Resolution())
	lat, lon := c.indices()
	assert.Equal(t, uint64(3), lat) // (49+90)/45 = 3.09
	assert.Equal(t, uint64(1), lon) // (-123+180)/45 = 1.26

	assert.Equal(t, None, g.CellAt(vancouver, 16))
	assert.Equal(t, None, g.CellAt(vancouver, -2))
	assert.Equal(t, None, g.CellAt(geo.Point{Lat: 95}, 3))
}

func TestCellAtPoles(t *testing.T) {
	g := testGrid(t)
	north := g.CellAt(geo.Point{Lat: 90, Lon: 180}, 2)
	lat, lon := north.indices()
	assert.Equal(t, uint64(15), lat)
	assert.Equal(t, uint64(31), lon)
}

func TestRootIsSingleCell(t *testing.T) {
	g := testGrid(t)
	a := g.CellAt(geo.Point{Lat: -60, Lon: -170}, Root)
	b := g.CellAt(geo.Point{Lat: 70, Lon: 120}, Root)
	assert.Equal(t, a, b)
	assert.NotEqual(t, None, a)
	assert.Equal(t, Root, a.Resolution())
}

func TestCellsNest(t *testing.T) {
	g := testGrid(t)
	points := []geo.Point{
		{Lat: 49.2827, Lon: -123.1207},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 0, Lon: 0},
		{Lat: 89.9999, Lon: -179.9999},
	}
	for _, p := range points {
		for r := g.MaxResolution; r > Root; r-- {
			fine := g.CellAt(p, r)
			assert.Equal(t, g.CellAt(p, r-1), g.Parent(fine, r-1), "point %v res %d", p, r)
			assert.Equal(t, g.CellAt(p, Root), g.Parent(fine, Root))
		}
	}
}

func TestParentInvalid(t *testing.T) {
	g := testGrid(t)
	c := g.CellAt(geo.Point{Lat: 1, Lon: 1}, 4)
	assert.Equal(t, None, g.Parent(c, 5))
	assert.Equal(t, None, g.Parent(None, 2))
	assert.Equal(t, c, g.Parent(c, 4))
}

func TestCellString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Len(t, encode(3, 1, 2).String(), 16)
}

func TestCellSize(t *testing.T) {
	g := testGrid(t)
	assert.Equal(t, 45.0, g.CellSize(0))
	assert.Equal(t, 90.0, g.CellSize(Root))
	assert.InDelta(t, 45.0/32768, g.CellSize(15), 1e-12)
}

func TestParse(t *testing.T) {
	g := testGrid(t)
	c := g.CellAt(geo.Point{Lat: 1.3, Lon: 103.8}, 12)

	got, err := Parse(c.String())
	require.NoError(t, err)
	assert.Equal(t, c, got)

	got, err = Parse("none")
	require.NoError(t, err)
	assert.Equal(t, None, got)

	_, err = Parse("zz")
	assert.Error(t, err)
	_, err = Parse("ffffffffffffffff")
	assert.Error(t, err)
}
