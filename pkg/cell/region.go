package cell

import (
	"github.com/tidwall/rtree"

	"map_shortcuts/pkg/geo"
)

// Region is a union of bounding boxes. An empty region contains every point.
type Region struct {
	tree rtree.RTreeG[int]
}

// NewRegion indexes the given boxes. Zero boxes are ignored.
func NewRegion(boxes []geo.BBox) *Region {
	r := &Region{}
	for i, b := range boxes {
		if b.IsZero() {
			continue
		}
		r.tree.Insert([2]float64{b.MinLon, b.MinLat}, [2]float64{b.MaxLon, b.MaxLat}, i)
	}
	return r
}

// Len returns the number of boxes in the region.
func (r *Region) Len() int {
	if r == nil {
		return 0
	}
	return r.tree.Len()
}

// Contains reports whether p lies in at least one box.
func (r *Region) Contains(p geo.Point) bool {
	if r.Len() == 0 {
		return true
	}
	pt := [2]float64{p.Lon, p.Lat}
	found := false
	r.tree.Search(pt, pt, func(_, _ [2]float64, _ int) bool {
		found = true
		return false
	})
	return found
}
