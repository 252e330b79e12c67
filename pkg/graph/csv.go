package graph

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"map_shortcuts/pkg/geo"
)

// EdgeColumns is the header of the edge CSV.
var EdgeColumns = []string{
	"id", "from_node", "to_node",
	"start_lat", "start_lon", "end_lat", "end_lon",
	"length_m", "maxspeed_kmh", "highway", "restricted",
}

// ConnectionColumns is the header of the graph CSV.
var ConnectionColumns = []string{"from_edge", "to_edge"}

// headerIndex maps required column names to their positions. Extra columns
// are ignored; optional columns may be absent and map to -1.
func headerIndex(header []string, required, optional []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.TrimSpace(strings.ToLower(h))] = i
	}
	idx := make(map[string]int, len(required)+len(optional))
	for _, name := range required {
		i, ok := pos[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		idx[name] = i
	}
	for _, name := range optional {
		if i, ok := pos[name]; ok {
			idx[name] = i
		} else {
			idx[name] = -1
		}
	}
	return idx, nil
}

type rowReader struct {
	rec  []string
	line int
	err  error
}

func (r *rowReader) str(i int) string {
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(r.rec[i])
}

func (r *rowReader) int64(i int, name string) int64 {
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseInt(r.str(i), 10, 64)
	if err != nil {
		r.err = fmt.Errorf("line %d: column %s: %w", r.line, name, err)
	}
	return v
}

func (r *rowReader) float(i int, name string) float64 {
	if r.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(r.str(i), 64)
	if err != nil {
		r.err = fmt.Errorf("line %d: column %s: %w", r.line, name, err)
	}
	return v
}

func (r *rowReader) bool(i int, name string) bool {
	if r.err != nil || i < 0 {
		return false
	}
	s := r.str(i)
	if s == "" {
		return false
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		r.err = fmt.Errorf("line %d: column %s: %w", r.line, name, err)
	}
	return v
}

// ReadEdgesCSV parses an edge table. Columns are matched by header name;
// maxspeed_kmh, highway and restricted are optional.
func ReadEdgesCSV(r io.Reader) ([]Edge, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("edge csv: missing header")
		}
		return nil, fmt.Errorf("edge csv: %w", err)
	}
	idx, err := headerIndex(header, EdgeColumns[:8], EdgeColumns[8:])
	if err != nil {
		return nil, fmt.Errorf("edge csv: %w", err)
	}

	var edges []Edge
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("edge csv: %w", err)
		}
		rr := rowReader{rec: rec, line: line}
		e := Edge{
			ID:       EdgeID(rr.int64(idx["id"], "id")),
			FromNode: rr.int64(idx["from_node"], "from_node"),
			ToNode:   rr.int64(idx["to_node"], "to_node"),
			Start: geo.Point{
				Lat: rr.float(idx["start_lat"], "start_lat"),
				Lon: rr.float(idx["start_lon"], "start_lon"),
			},
			End: geo.Point{
				Lat: rr.float(idx["end_lat"], "end_lat"),
				Lon: rr.float(idx["end_lon"], "end_lon"),
			},
			LengthM:     rr.float(idx["length_m"], "length_m"),
			MaxSpeedKmh: rr.optionalFloat(idx["maxspeed_kmh"], "maxspeed_kmh"),
			Highway:     rr.str(idx["highway"]),
			Restricted:  rr.bool(idx["restricted"], "restricted"),
		}
		if rr.err != nil {
			return nil, fmt.Errorf("edge csv: %w", rr.err)
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func (r *rowReader) optionalFloat(i int, name string) float64 {
	if i < 0 || r.str(i) == "" {
		return 0
	}
	return r.float(i, name)
}

// WriteEdgesCSV writes an edge table with the full header.
func WriteEdgesCSV(w io.Writer, edges []Edge) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(EdgeColumns); err != nil {
		return err
	}
	rec := make([]string, len(EdgeColumns))
	for i := range edges {
		e := &edges[i]
		rec[0] = strconv.FormatInt(int64(e.ID), 10)
		rec[1] = strconv.FormatInt(e.FromNode, 10)
		rec[2] = strconv.FormatInt(e.ToNode, 10)
		rec[3] = strconv.FormatFloat(e.Start.Lat, 'f', -1, 64)
		rec[4] = strconv.FormatFloat(e.Start.Lon, 'f', -1, 64)
		rec[5] = strconv.FormatFloat(e.End.Lat, 'f', -1, 64)
		rec[6] = strconv.FormatFloat(e.End.Lon, 'f', -1, 64)
		rec[7] = strconv.FormatFloat(e.LengthM, 'f', 3, 64)
		rec[8] = strconv.FormatFloat(e.MaxSpeedKmh, 'f', -1, 64)
		rec[9] = e.Highway
		rec[10] = strconv.FormatBool(e.Restricted)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadConnectionsCSV parses a graph CSV of from_edge,to_edge pairs.
func ReadConnectionsCSV(r io.Reader) ([]Connection, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("graph csv: missing header")
		}
		return nil, fmt.Errorf("graph csv: %w", err)
	}
	idx, err := headerIndex(header, ConnectionColumns, nil)
	if err != nil {
		return nil, fmt.Errorf("graph csv: %w", err)
	}

	var conns []Connection
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("graph csv: %w", err)
		}
		rr := rowReader{rec: rec, line: line}
		c := Connection{
			From: EdgeID(rr.int64(idx["from_edge"], "from_edge")),
			To:   EdgeID(rr.int64(idx["to_edge"], "to_edge")),
		}
		if rr.err != nil {
			return nil, fmt.Errorf("graph csv: %w", rr.err)
		}
		conns = append(conns, c)
	}
	return conns, nil
}

// WriteConnectionsCSV writes a graph CSV.
func WriteConnectionsCSV(w io.Writer, conns []Connection) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ConnectionColumns); err != nil {
		return err
	}
	rec := make([]string, 2)
	for _, c := range conns {
		rec[0] = strconv.FormatInt(int64(c.From), 10)
		rec[1] = strconv.FormatInt(int64(c.To), 10)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Load reads the edge and graph CSV files and validates them against each
// other. Any malformed row, duplicate edge ID or dangling connection is an
// error.
func Load(edgesPath, graphPath string) (*Edges, []Connection, error) {
	ef, err := os.Open(edgesPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open edges: %w", err)
	}
	defer ef.Close()
	list, err := ReadEdgesCSV(ef)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", edgesPath, err)
	}
	edges, err := NewEdges(list)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", edgesPath, err)
	}

	gf, err := os.Open(graphPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open graph: %w", err)
	}
	defer gf.Close()
	conns, err := ReadConnectionsCSV(gf)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", graphPath, err)
	}
	for _, c := range conns {
		if _, ok := edges.IndexOf(c.From); !ok {
			return nil, nil, fmt.Errorf("%s: connection %d->%d: from %w", graphPath, c.From, c.To, ErrUnknownEdge)
		}
		if _, ok := edges.IndexOf(c.To); !ok {
			return nil, nil, fmt.Errorf("%s: connection %d->%d: to %w", graphPath, c.From, c.To, ErrUnknownEdge)
		}
	}
	return edges, conns, nil
}
