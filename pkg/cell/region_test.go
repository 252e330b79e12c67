package cell

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"map_shortcuts/pkg/geo"
)

func TestRegion(t *testing.T) {
	r := NewRegion([]geo.BBox{
		{MinLat: 49, MaxLat: 50, MinLon: -124, MaxLon: -122},
		{MinLat: 10, MaxLat: 11, MinLon: 10, MaxLon: 11},
		{}, // ignored
	})
	assert.Equal(t, 2, r.Len())

	assert.True(t, r.Contains(geo.Point{Lat: 49.5, Lon: -123}))
	assert.True(t, r.Contains(geo.Point{Lat: 10, Lon: 11}))
	assert.False(t, r.Contains(geo.Point{Lat: 0, Lon: 0}))
}

func TestEmptyRegionContainsEverything(t *testing.T) {
	var nilRegion *Region
	assert.True(t, nilRegion.Contains(geo.Point{Lat: 1, Lon: 2}))
	assert.True(t, NewRegion(nil).Contains(geo.Point{Lat: -45, Lon: 170}))
}
