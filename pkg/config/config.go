// Package config loads run settings from TOML or YAML files.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"map_shortcuts/pkg/cell"
	"map_shortcuts/pkg/cost"
	"map_shortcuts/pkg/expand"
	"map_shortcuts/pkg/geo"
	"map_shortcuts/pkg/output"
	"map_shortcuts/pkg/partition"
	"map_shortcuts/pkg/pipeline"
)

// Config is the complete run configuration.
type Config struct {
	Input      Input      `toml:"input" yaml:"input"`
	Output     Output     `toml:"output" yaml:"output"`
	Resolution Resolution `toml:"resolution" yaml:"resolution"`
	Solver     Solver     `toml:"solver" yaml:"solver"`
	Partition  Partition  `toml:"partition" yaml:"partition"`
	Cost       Cost       `toml:"cost" yaml:"cost"`
	Checkpoint Checkpoint `toml:"checkpoint" yaml:"checkpoint"`
	Log        Log        `toml:"log" yaml:"log"`
	Status     Status     `toml:"status" yaml:"status"`
}

type Input struct {
	Edges string `toml:"edges" yaml:"edges"`
	Graph string `toml:"graph" yaml:"graph"`
}

type Output struct {
	Path   string `toml:"path" yaml:"path"`
	Format string `toml:"format" yaml:"format"` // empty: by extension
}

type Resolution struct {
	Min int `toml:"min" yaml:"min"`
	Max int `toml:"max" yaml:"max"`
}

type Solver struct {
	MatrixMaxResolution int     `toml:"matrix_max_resolution" yaml:"matrix-max-resolution"`
	MaxIterations       int     `toml:"max_iterations" yaml:"max-iterations"`
	Tolerance           float64 `toml:"tolerance" yaml:"tolerance"`
	Workers             int     `toml:"workers" yaml:"workers"`
	PartitionTimeout    string  `toml:"partition_timeout" yaml:"partition-timeout"`
	DenseMaxNodes       int     `toml:"dense_max_nodes" yaml:"dense-max-nodes"`
	DenseMinDensity     float64 `toml:"dense_min_density" yaml:"dense-min-density"`
}

type Partition struct {
	BackwardAnchor  string  `toml:"backward_anchor" yaml:"backward-anchor"`
	GridBaseDegrees float64 `toml:"grid_base_degrees" yaml:"grid-base-degrees"`
	Region          []BBox  `toml:"region" yaml:"region"`
}

// BBox is one rectangle of the region of interest.
type BBox struct {
	MinLat float64 `toml:"min_lat" yaml:"min-lat"`
	MaxLat float64 `toml:"max_lat" yaml:"max-lat"`
	MinLon float64 `toml:"min_lon" yaml:"min-lon"`
	MaxLon float64 `toml:"max_lon" yaml:"max-lon"`
}

type Cost struct {
	DefaultSpeedKmh float64            `toml:"default_speed_kmh" yaml:"default-speed-kmh"`
	Speeds          map[string]float64 `toml:"speeds" yaml:"speeds"`
}

type Checkpoint struct {
	Dir    string `toml:"dir" yaml:"dir"`
	Resume bool   `toml:"resume" yaml:"resume"`
}

type Log struct {
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max-size-mb"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max-age-days"`
	MaxBackups int    `toml:"max_backups" yaml:"max-backups"`
	Level      string `toml:"level" yaml:"level"`
}

type Status struct {
	Addr string `toml:"addr" yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Output: Output{Path: "shortcuts.csv"},
		Resolution: Resolution{
			Min: 0,
			Max: 15,
		},
		Solver: Solver{
			MatrixMaxResolution: int(expand.DefaultMatrixMaxResolution),
			MaxIterations:       expand.DefaultMaxIterations,
			Tolerance:           expand.DefaultTolerance,
			DenseMaxNodes:       expand.DefaultDenseMaxNodes,
			DenseMinDensity:     expand.DefaultDenseMinDensity,
		},
		Partition: Partition{
			BackwardAnchor:  partition.Inner.String(),
			GridBaseDegrees: cell.DefaultBaseDegrees,
		},
		Cost: Cost{DefaultSpeedKmh: 30},
		Log: Log{
			MaxSizeMB:  100,
			MaxAgeDays: 28,
			MaxBackups: 3,
			Level:      "info",
		},
	}
}

// Load reads path over the defaults. The decoder is chosen by extension.
func Load(path string) (*Config, error) {
	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q (want .toml, .yaml or .yml)", ext)
	}
	return cfg, nil
}

// Validate checks every section and returns all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Resolution.Min < 0 {
		errs = append(errs, fmt.Errorf("resolution.min %d must be >= 0", c.Resolution.Min))
	}
	if c.Resolution.Max < c.Resolution.Min {
		errs = append(errs, fmt.Errorf("resolution.max %d < resolution.min %d", c.Resolution.Max, c.Resolution.Min))
	}
	if _, err := c.Grid(); err != nil {
		errs = append(errs, err)
	}
	if c.Solver.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("solver.max_iterations must be positive, got %d", c.Solver.MaxIterations))
	}
	if !(c.Solver.Tolerance > 0) || math.IsInf(c.Solver.Tolerance, 0) {
		errs = append(errs, fmt.Errorf("solver.tolerance must be positive, got %v", c.Solver.Tolerance))
	}
	if c.Solver.Workers < 0 {
		errs = append(errs, fmt.Errorf("solver.workers must be >= 0, got %d", c.Solver.Workers))
	}
	if c.Solver.MatrixMaxResolution < int(cell.Root) {
		errs = append(errs, fmt.Errorf("solver.matrix_max_resolution %d below root", c.Solver.MatrixMaxResolution))
	}
	if c.Solver.DenseMaxNodes < 0 || c.Solver.DenseMinDensity < 0 || c.Solver.DenseMinDensity > 1 {
		errs = append(errs, errors.New("solver dense thresholds out of range"))
	}
	if _, err := c.PartitionTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BackwardAnchor(); err != nil {
		errs = append(errs, err)
	}
	for i, b := range c.Partition.Region {
		if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon ||
			!(geo.Point{Lat: b.MinLat, Lon: b.MinLon}).Valid() || !(geo.Point{Lat: b.MaxLat, Lon: b.MaxLon}).Valid() {
			errs = append(errs, fmt.Errorf("partition.region[%d] is not a valid box", i))
		}
	}
	if err := c.CostModel().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cost: %w", err))
	}
	if _, err := c.OutputFormat(); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// Grid returns the partition grid.
func (c *Config) Grid() (cell.Grid, error) {
	return cell.NewGrid(c.Partition.GridBaseDegrees, cell.Resolution(c.Resolution.Max))
}

// Region returns the region of interest; empty means the whole world.
func (c *Config) Region() *cell.Region {
	boxes := make([]geo.BBox, len(c.Partition.Region))
	for i, b := range c.Partition.Region {
		boxes[i] = geo.BBox{MinLat: b.MinLat, MaxLat: b.MaxLat, MinLon: b.MinLon, MaxLon: b.MaxLon}
	}
	return cell.NewRegion(boxes)
}

// BackwardAnchor parses the backward pass anchor.
func (c *Config) BackwardAnchor() (partition.Anchor, error) {
	return partition.ParseAnchor(c.Partition.BackwardAnchor)
}

// PartitionTimeout parses the per-partition deadline; empty disables it.
func (c *Config) PartitionTimeout() (time.Duration, error) {
	if c.Solver.PartitionTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Solver.PartitionTimeout)
	if err != nil {
		return 0, fmt.Errorf("solver.partition_timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("solver.partition_timeout must be >= 0, got %s", d)
	}
	return d, nil
}

// CostModel returns the edge cost model.
func (c *Config) CostModel() cost.Model {
	return cost.NewModel(c.Cost.DefaultSpeedKmh, c.Cost.Speeds)
}

// OutputFormat returns the configured format, falling back to the path
// extension.
func (c *Config) OutputFormat() (output.Format, error) {
	if c.Output.Format == "" {
		return output.FormatFor(c.Output.Path), nil
	}
	return output.ParseFormat(c.Output.Format)
}

// Dispatch builds the solver table.
func (c *Config) Dispatch() expand.Dispatch {
	return expand.NewDispatch(
		cell.Resolution(c.Solver.MatrixMaxResolution),
		expand.MatrixSolver{DenseMaxNodes: c.Solver.DenseMaxNodes, DenseMinDensity: c.Solver.DenseMinDensity},
		expand.JoinSolver{MaxIterations: c.Solver.MaxIterations, Tolerance: c.Solver.Tolerance},
	)
}

// Pipeline returns the controller settings. Call Validate first.
func (c *Config) Pipeline() pipeline.Config {
	anchor, _ := c.BackwardAnchor()
	return pipeline.Config{
		MinResolution:  cell.Resolution(c.Resolution.Min),
		MaxResolution:  cell.Resolution(c.Resolution.Max),
		BackwardAnchor: anchor,
		Resume:         c.Checkpoint.Resume,
	}
}
