package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"map_shortcuts/pkg/geo"
	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/osm"
)

func newConvertCmd(a *app) *cobra.Command {
	var (
		input, edgesOut, graphOut, bbox string
		largest                         bool
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert an OSM PBF extract into edge and graph CSVs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return errors.New("--input is required")
			}
			box, err := parseBBox(bbox)
			if err != nil {
				return err
			}
			return convert(cmd.Context(), convertOptions{
				Input:            input,
				EdgesOut:         edgesOut,
				GraphOut:         graphOut,
				BBox:             box,
				LargestComponent: largest,
			}, a.logger)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&input, "input", "i", "", "path to .osm.pbf file")
	fl.StringVar(&edgesOut, "edges", "edges.csv", "edge CSV to write")
	fl.StringVar(&graphOut, "graph", "graph.csv", "graph CSV to write")
	fl.StringVar(&bbox, "bbox", "", "bounding box filter: minLat,minLon,maxLat,maxLon")
	fl.BoolVar(&largest, "largest-component", false, "keep only the largest connected component")
	return cmd
}

// parseBBox parses "minLat,minLon,maxLat,maxLon"; empty means no filter.
func parseBBox(s string) (geo.BBox, error) {
	if s == "" {
		return geo.BBox{}, nil
	}
	var b geo.BBox
	if _, err := fmt.Sscanf(s, "%f,%f,%f,%f", &b.MinLat, &b.MinLon, &b.MaxLat, &b.MaxLon); err != nil {
		return geo.BBox{}, fmt.Errorf("invalid bbox %q (expected minLat,minLon,maxLat,maxLon): %w", s, err)
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return geo.BBox{}, fmt.Errorf("invalid bbox %q: min exceeds max", s)
	}
	return b, nil
}

type convertOptions struct {
	Input            string
	EdgesOut         string
	GraphOut         string
	BBox             geo.BBox
	LargestComponent bool
}

func convert(ctx context.Context, opt convertOptions, logger *log.Logger) error {
	section(logger, "Parsing OSM data")
	if !opt.BBox.IsZero() {
		logger.Info("using bounding box filter",
			"lat", fmt.Sprintf("[%.4f, %.4f]", opt.BBox.MinLat, opt.BBox.MaxLat),
			"lon", fmt.Sprintf("[%.4f, %.4f]", opt.BBox.MinLon, opt.BBox.MaxLon))
	}
	f, err := os.Open(opt.Input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	p := newProgress(logger)
	res, err := osm.Parse(ctx, f, osm.ParseOptions{BBox: opt.BBox, Logger: logger})
	if err != nil {
		return fmt.Errorf("parse osm: %w", err)
	}
	p.done("parsed network", "edges", humanize.Comma(int64(len(res.Edges))), "connections", humanize.Comma(int64(len(res.Connections))))

	edges, err := graph.NewEdges(res.Edges)
	if err != nil {
		return err
	}
	conns := res.Connections

	if opt.LargestComponent {
		g, err := graph.Build(edges, conns)
		if err != nil {
			return err
		}
		members := graph.LargestComponent(g)
		if edges, conns, err = graph.FilterToComponent(edges, g, members); err != nil {
			return err
		}
		logger.Info("kept largest component",
			"edges", humanize.Comma(int64(edges.Len())),
			"share", fmt.Sprintf("%.1f%%", 100*float64(edges.Len())/float64(max(g.NumEdges, 1))))
	}

	section(logger, "Writing CSVs")
	if err := writeCSV(opt.EdgesOut, func(w *os.File) error { return graph.WriteEdgesCSV(w, edges.All()) }); err != nil {
		return err
	}
	if err := writeCSV(opt.GraphOut, func(w *os.File) error { return graph.WriteConnectionsCSV(w, conns) }); err != nil {
		return err
	}
	logger.Info("done", "edges", opt.EdgesOut, "graph", opt.GraphOut)
	return nil
}

func writeCSV(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
