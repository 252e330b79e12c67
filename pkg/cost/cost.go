// Package cost turns edge attributes into traversal times.
package cost

import (
	"fmt"
	"math"

	"map_shortcuts/pkg/graph"
)

// DefaultSpeeds are typical free-flow car speeds in km/h per highway class.
var DefaultSpeeds = map[string]float64{
	"motorway":       110,
	"motorway_link":  60,
	"trunk":          90,
	"trunk_link":     50,
	"primary":        70,
	"primary_link":   40,
	"secondary":      60,
	"secondary_link": 40,
	"tertiary":       50,
	"tertiary_link":  30,
	"unclassified":   40,
	"residential":    30,
	"living_street":  10,
	"service":        20,
}

// Model computes the cost of traversing an edge, in seconds.
type Model struct {
	DefaultSpeedKmh float64            // used when neither maxspeed nor class speed is known
	Speeds          map[string]float64 // per highway class, km/h
}

// NewModel returns a model with the built-in class speeds, overridden by
// the given ones.
func NewModel(defaultSpeed float64, overrides map[string]float64) Model {
	speeds := make(map[string]float64, len(DefaultSpeeds)+len(overrides))
	for k, v := range DefaultSpeeds {
		speeds[k] = v
	}
	for k, v := range overrides {
		speeds[k] = v
	}
	return Model{DefaultSpeedKmh: defaultSpeed, Speeds: speeds}
}

// Validate rejects non-positive speeds.
func (m Model) Validate() error {
	if !(m.DefaultSpeedKmh > 0) || math.IsInf(m.DefaultSpeedKmh, 0) {
		return fmt.Errorf("default speed must be positive, got %v", m.DefaultSpeedKmh)
	}
	for k, v := range m.Speeds {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("speed for %q must be positive, got %v", k, v)
		}
	}
	return nil
}

// Speed returns the speed used for e in km/h. A posted maxspeed wins over the
// highway class.
func (m Model) Speed(e *graph.Edge) float64 {
	if e.MaxSpeedKmh > 0 {
		return e.MaxSpeedKmh
	}
	if s, ok := m.Speeds[e.Highway]; ok {
		return s
	}
	return m.DefaultSpeedKmh
}

// Seconds returns the traversal time of e. Restricted edges cost +Inf.
func (m Model) Seconds(e *graph.Edge) float64 {
	if e.Restricted {
		return math.Inf(1)
	}
	return e.LengthM / (m.Speed(e) / 3.6)
}

// Table maps each edge to its traversal cost. It is computed once and
// read-only afterwards.
type Table map[graph.EdgeID]float64

// Compute evaluates the model for every edge.
func (m Model) Compute(edges *graph.Edges) Table {
	all := edges.All()
	t := make(Table, len(all))
	for i := range all {
		t[all[i].ID] = m.Seconds(&all[i])
	}
	return t
}
