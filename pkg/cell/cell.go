// Package cell implements a hierarchical lat/lon grid used as the spatial
// partition of the shortcut engine.
package cell

import (
	"fmt"
	"math"
	"strconv"

	"map_shortcuts/pkg/geo"
)

// Resolution is a grid level. Higher is finer. Root is the single world cell
// above level 0.
type Resolution int

// Root is the coarsest level: one cell covering the world.
const Root Resolution = -1

// Cell identifies a grid cell at some resolution. The zero value is None.
//
// Layout: bits 58..63 hold resolution+2, bits 29..57 the latitude index and
// bits 0..28 the longitude index.
type Cell uint64

// None means "no enclosing cell".
const None Cell = 0

const (
	resShift = 58
	latShift = 29
	idxBits  = 29
	idxMask  = 1<<idxBits - 1
)

// MaxGridResolution bounds the resolution so that indices fit their bit fields.
const MaxGridResolution Resolution = 30

func encode(r Resolution, lat, lon uint64) Cell {
	return Cell(uint64(r+2)<<resShift | lat<<latShift | lon)
}

// Resolution returns the level of c. None reports Root-1.
func (c Cell) Resolution() Resolution {
	return Resolution(uint64(c)>>resShift) - 2
}

func (c Cell) indices() (lat, lon uint64) {
	return uint64(c) >> latShift & idxMask, uint64(c) & idxMask
}

func (c Cell) String() string {
	if c == None {
		return "none"
	}
	return fmt.Sprintf("%016x", uint64(c))
}

// Parse reverses String.
func Parse(s string) (Cell, error) {
	if s == "" || s == "none" {
		return None, nil
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return None, fmt.Errorf("parse cell %q: %w", s, err)
	}
	c := Cell(v)
	if r := c.Resolution(); r < Root || r > MaxGridResolution {
		return None, fmt.Errorf("parse cell %q: resolution %d out of range", s, r)
	}
	return c, nil
}

// Grid is a quadtree over the WGS84 plate carrée. The cell edge at resolution
// r is BaseDegrees/2^r, so every cell has exactly four children.
type Grid struct {
	BaseDegrees   float64
	MaxResolution Resolution
}

// DefaultBaseDegrees gives 4x8 cells at resolution 0 and ~150 m cells at 15.
const DefaultBaseDegrees = 45.0

// NewGrid validates the grid parameters.
func NewGrid(baseDegrees float64, maxRes Resolution) (Grid, error) {
	g := Grid{BaseDegrees: baseDegrees, MaxResolution: maxRes}
	if !(baseDegrees > 0) || baseDegrees > 180 {
		return Grid{}, fmt.Errorf("grid base %v out of range (0, 180]", baseDegrees)
	}
	if n := 180 / baseDegrees; math.Abs(n-math.Round(n)) > 1e-9 {
		return Grid{}, fmt.Errorf("grid base %v must divide 180", baseDegrees)
	}
	if maxRes < 0 {
		return Grid{}, fmt.Errorf("max resolution %d must be >= 0", maxRes)
	}
	// The longitude count at maxRes must fit idxBits.
	if float64(360/baseDegrees)*math.Exp2(float64(maxRes)) >= 1<<idxBits || maxRes > MaxGridResolution {
		return Grid{}, fmt.Errorf("max resolution %d too fine for base %v", maxRes, baseDegrees)
	}
	return g, nil
}

// CellSize returns the cell edge length in degrees at resolution r.
func (g Grid) CellSize(r Resolution) float64 {
	return g.BaseDegrees / math.Exp2(float64(r))
}

func (g Grid) counts(r Resolution) (lat, lon uint64) {
	size := g.CellSize(r)
	return uint64(math.Round(180 / size)), uint64(math.Round(360 / size))
}

// CellAt returns the cell enclosing p at resolution r, or None when r is
// outside [Root, MaxResolution] or p is not a valid coordinate.
func (g Grid) CellAt(p geo.Point, r Resolution) Cell {
	if r < Root || r > g.MaxResolution || !p.Valid() {
		return None
	}
	if r == Root {
		return encode(Root, 0, 0)
	}
	size := g.CellSize(r)
	nLat, nLon := g.counts(r)
	lat := clampIndex((p.Lat+90)/size, nLat)
	lon := clampIndex((p.Lon+180)/size, nLon)
	return encode(r, lat, lon)
}

func clampIndex(v float64, n uint64) uint64 {
	i := uint64(math.Floor(v))
	if i >= n {
		return n - 1
	}
	return i
}

// Parent returns the ancestor of c at the coarser resolution r. It returns
// None if r is finer than c.
func (g Grid) Parent(c Cell, r Resolution) Cell {
	if c == None {
		return None
	}
	cr := c.Resolution()
	if r > cr || r < Root {
		return None
	}
	if r == Root {
		return encode(Root, 0, 0)
	}
	lat, lon := c.indices()
	shift := uint(cr - r)
	return encode(r, lat>>shift, lon>>shift)
}
