package graph

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"map_shortcuts/pkg/geo"
)

const edgesCSV = `id,from_node,to_node,start_lat,start_lon,end_lat,end_lon,length_m,maxspeed_kmh,highway,restricted
1,100,101,49.25,-123.10,49.26,-123.10,1112.5,50,primary,false
2,101,102,49.26,-123.10,49.26,-123.11,725,,residential,
`

func TestReadEdgesCSV(t *testing.T) {
	edges, err := ReadEdgesCSV(strings.NewReader(edgesCSV))
	require.NoError(t, err)
	require.Len(t, edges, 2)

	assert.Equal(t, Edge{
		ID: 1, FromNode: 100, ToNode: 101,
		Start:   geo.Point{Lat: 49.25, Lon: -123.10},
		End:     geo.Point{Lat: 49.26, Lon: -123.10},
		LengthM: 1112.5, MaxSpeedKmh: 50, Highway: "primary",
	}, edges[0])
	assert.Zero(t, edges[1].MaxSpeedKmh)
	assert.False(t, edges[1].Restricted)
}

func TestReadEdgesCSVOptionalColumns(t *testing.T) {
	in := "length_m,id,from_node,to_node,start_lat,start_lon,end_lat,end_lon\n10,7,1,2,0,0,0,0.001\n"
	edges, err := ReadEdgesCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, EdgeID(7), edges[0].ID)
	assert.Equal(t, 10.0, edges[0].LengthM)
	assert.Empty(t, edges[0].Highway)
}

func TestReadEdgesCSVErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"missing column", "id,from_node\n1,2\n"},
		{"bad id", strings.Replace(edgesCSV, "\n1,", "\nx,", 1)},
		{"bad length", strings.Replace(edgesCSV, "1112.5", "long", 1)},
		{"bad restricted", strings.Replace(edgesCSV, ",false", ",maybe", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadEdgesCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestEdgesCSVRoundTrip(t *testing.T) {
	in, err := ReadEdgesCSV(strings.NewReader(edgesCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteEdgesCSV(&buf, in))

	out, err := ReadEdgesCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestConnectionsCSV(t *testing.T) {
	conns := []Connection{{1, 2}, {2, 1}}
	var buf bytes.Buffer
	require.NoError(t, WriteConnectionsCSV(&buf, conns))
	assert.True(t, strings.HasPrefix(buf.String(), "from_edge,to_edge\n"))

	got, err := ReadConnectionsCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, conns, got)

	_, err = ReadConnectionsCSV(strings.NewReader("from_edge,to_edge\n1,abc\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	edgesPath := filepath.Join(dir, "edges.csv")
	graphPath := filepath.Join(dir, "graph.csv")
	require.NoError(t, os.WriteFile(edgesPath, []byte(edgesCSV), 0o644))

	require.NoError(t, os.WriteFile(graphPath, []byte("from_edge,to_edge\n1,2\n"), 0o644))
	edges, conns, err := Load(edgesPath, graphPath)
	require.NoError(t, err)
	assert.Equal(t, 2, edges.Len())
	assert.Equal(t, []Connection{{1, 2}}, conns)

	require.NoError(t, os.WriteFile(graphPath, []byte("from_edge,to_edge\n1,3\n"), 0o644))
	_, _, err = Load(edgesPath, graphPath)
	assert.ErrorIs(t, err, ErrUnknownEdge)

	dup := edgesCSV + "1,100,101,49.25,-123.10,49.26,-123.10,5,,,\n"
	require.NoError(t, os.WriteFile(edgesPath, []byte(dup), 0o644))
	_, _, err = Load(edgesPath, graphPath)
	assert.ErrorIs(t, err, ErrDuplicateEdge)
}
