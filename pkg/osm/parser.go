package osm

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"

	"map_shortcuts/pkg/geo"
	"map_shortcuts/pkg/graph"
)

// Result holds the road edge table and its connectivity.
type Result struct {
	Edges       []graph.Edge
	Connections []graph.Connection
}

// carHighways lists highway tag values accessible by car.
var carHighways = map[string]bool{
	"motorway":       true,
	"motorway_link":  true,
	"trunk":          true,
	"trunk_link":     true,
	"primary":        true,
	"primary_link":   true,
	"secondary":      true,
	"secondary_link": true,
	"tertiary":       true,
	"tertiary_link":  true,
	"unclassified":   true,
	"residential":    true,
	"living_street":  true,
	"service":        true,
}

// carAccess reports whether the way is drivable by car, and whether through
// traffic is restricted on it.
func carAccess(tags osm.Tags) (accessible, restricted bool) {
	hw := tags.Find("highway")
	if !carHighways[hw] {
		return false, false
	}

	// Skip area highways (pedestrian plazas).
	if tags.Find("area") == "yes" {
		return false, false
	}

	access := tags.Find("access")
	if access == "no" || tags.Find("motor_vehicle") == "no" {
		return false, false
	}
	switch access {
	case "private", "destination", "delivery", "customers":
		restricted = true
	}
	if tags.Find("motor_vehicle") == "destination" {
		restricted = true
	}
	return true, restricted
}

// directionFlags returns (forward, backward) based on highway type and oneway tags.
func directionFlags(tags osm.Tags) (forward, backward bool) {
	forward = true
	backward = true

	hw := tags.Find("highway")

	// Implied oneway for motorways and roundabouts.
	if hw == "motorway" || hw == "motorway_link" || tags.Find("junction") == "roundabout" {
		backward = false
	}

	// Explicit oneway tag overrides.
	switch tags.Find("oneway") {
	case "yes", "true", "1":
		forward, backward = true, false
	case "-1", "reverse":
		forward, backward = false, true
	case "no":
		forward, backward = true, true
	case "reversible":
		// Time-dependent, skip entirely.
		forward, backward = false, false
	}

	return forward, backward
}

const kmhPerMph = 1.609344

// parseMaxSpeed converts a maxspeed tag to km/h. Values it cannot interpret
// ("none", "signals", country codes) yield 0, which means unknown.
func parseMaxSpeed(v string) float64 {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	factor := 1.0
	switch {
	case strings.HasSuffix(v, "mph"):
		factor = kmhPerMph
		v = strings.TrimSpace(strings.TrimSuffix(v, "mph"))
	case strings.HasSuffix(v, "km/h"):
		v = strings.TrimSpace(strings.TrimSuffix(v, "km/h"))
	case strings.HasSuffix(v, "kmh"):
		v = strings.TrimSpace(strings.TrimSuffix(v, "kmh"))
	}
	speed, err := strconv.ParseFloat(v, 64)
	if err != nil || speed <= 0 {
		return 0
	}
	return speed * factor
}

// wayInfo holds parsed way data collected during Pass 1.
type wayInfo struct {
	NodeIDs    []osm.NodeID
	Forward    bool
	Backward   bool
	Highway    string
	MaxSpeed   float64
	Restricted bool
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	BBox   geo.BBox    // if non-zero, only segments with both ends inside are kept
	Logger *log.Logger // progress logging; nil discards
}

// Parse reads an OSM PBF file and returns the directed road edges between
// junctions together with their turn connectivity.
// The reader is consumed twice (seeks back to start for the second pass),
// so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opt ParseOptions) (*Result, error) {
	logger := opt.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	// Pass 1: Scan ways and count how many way positions reference each node.
	refs := make(map[osm.NodeID]int)
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}

		accessible, restricted := carAccess(w.Tags)
		if !accessible || len(w.Nodes) < 2 {
			continue
		}

		fwd, bwd := directionFlags(w.Tags)
		if !fwd && !bwd {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			refs[wn.ID]++
		}

		ways = append(ways, wayInfo{
			NodeIDs:    nodeIDs,
			Forward:    fwd,
			Backward:   bwd,
			Highway:    w.Tags.Find("highway"),
			MaxSpeed:   parseMaxSpeed(w.Tags.Find("maxspeed")),
			Restricted: restricted,
		})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	logger.Info("pass 1 complete", "ways", len(ways), "nodes", len(refs))

	// Pass 2: Scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	coords := make(map[osm.NodeID]geo.Point, len(refs))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := refs[n.ID]; !needed {
			continue
		}
		coords[n.ID] = geo.Point{Lat: n.Lat, Lon: n.Lon}
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	logger.Info("pass 2 complete", "coordinates", len(coords))

	res := buildNetwork(ways, refs, coords, opt.BBox, logger)
	logger.Info("built edge graph", "edges", len(res.Edges), "connections", len(res.Connections))
	return res, nil
}

// buildNetwork splits ways at junctions into directed edges and connects
// every edge to the edges leaving its end node, except the reverse twin.
func buildNetwork(ways []wayInfo, refs map[osm.NodeID]int, coords map[osm.NodeID]geo.Point, bbox geo.BBox, logger *log.Logger) *Result {
	useBBox := !bbox.IsZero()

	var edges []graph.Edge
	twin := make(map[graph.EdgeID]graph.EdgeID)
	var skipped, filtered int

	nextID := graph.EdgeID(1)
	for _, w := range ways {
		start := 0
		for i := 1; i < len(w.NodeIDs); i++ {
			if i != len(w.NodeIDs)-1 && refs[w.NodeIDs[i]] < 2 {
				continue
			}
			seg := w.NodeIDs[start : i+1]
			start = i

			pts := make([]geo.Point, 0, len(seg))
			for _, id := range seg {
				p, ok := coords[id]
				if !ok {
					break
				}
				pts = append(pts, p)
			}
			if len(pts) != len(seg) {
				skipped++
				continue
			}

			first, last := pts[0], pts[len(pts)-1]
			if useBBox && (!bbox.Contains(first) || !bbox.Contains(last)) {
				filtered++
				continue
			}

			base := graph.Edge{
				Highway:     w.Highway,
				MaxSpeedKmh: w.MaxSpeed,
				Restricted:  w.Restricted,
				LengthM:     geo.PathLength(pts),
			}

			var fwdID graph.EdgeID
			if w.Forward {
				e := base
				e.ID = nextID
				e.FromNode, e.ToNode = int64(seg[0]), int64(seg[len(seg)-1])
				e.Start, e.End = first, last
				edges = append(edges, e)
				fwdID = nextID
				nextID++
			}
			if w.Backward {
				e := base
				e.ID = nextID
				e.FromNode, e.ToNode = int64(seg[len(seg)-1]), int64(seg[0])
				e.Start, e.End = last, first
				edges = append(edges, e)
				if fwdID != 0 {
					twin[fwdID] = nextID
					twin[nextID] = fwdID
				}
				nextID++
			}
		}
	}

	if skipped > 0 {
		logger.Warn("skipped segments with missing node coordinates", "count", skipped)
	}
	if filtered > 0 {
		logger.Info("filtered segments outside bounding box", "count", filtered)
	}

	outgoing := make(map[int64][]graph.EdgeID)
	for i := range edges {
		outgoing[edges[i].FromNode] = append(outgoing[edges[i].FromNode], edges[i].ID)
	}

	var conns []graph.Connection
	for i := range edges {
		e := &edges[i]
		for _, next := range outgoing[e.ToNode] {
			if next == e.ID {
				continue
			}
			if t, ok := twin[e.ID]; ok && t == next {
				continue
			}
			conns = append(conns, graph.Connection{From: e.ID, To: next})
		}
	}
	sort.Slice(conns, func(i, j int) bool {
		if conns[i].From != conns[j].From {
			return conns[i].From < conns[j].From
		}
		return conns[i].To < conns[j].To
	})

	return &Result{Edges: edges, Connections: conns}
}
