package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"map_shortcuts/pkg/api"
	"map_shortcuts/pkg/checkpoint"
	"map_shortcuts/pkg/config"
	"map_shortcuts/pkg/expand"
	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/output"
	"map_shortcuts/pkg/partition"
	"map_shortcuts/pkg/pipeline"
	"map_shortcuts/pkg/shortcut"
)

func newGenerateCmd(a *app) *cobra.Command {
	var (
		edges, graphPath, out, format string
		minRes, maxRes, workers       int
		ckptDir, statusAddr           string
		resume                        bool
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compute the shortcut table for an edge graph",
		Long: `Generate seeds one shortcut per connection, runs the forward pass from the
finest resolution up to the root cell and the backward pass back down, then
writes the final table with each row's deepest common cell.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			f := cmd.Flags()
			if f.Changed("edges") {
				cfg.Input.Edges = edges
			}
			if f.Changed("graph") {
				cfg.Input.Graph = graphPath
			}
			if f.Changed("output") {
				cfg.Output.Path = out
			}
			if f.Changed("format") {
				cfg.Output.Format = format
			}
			if f.Changed("min-res") {
				cfg.Resolution.Min = minRes
			}
			if f.Changed("max-res") {
				cfg.Resolution.Max = maxRes
			}
			if f.Changed("workers") {
				cfg.Solver.Workers = workers
			}
			if f.Changed("checkpoint-dir") {
				cfg.Checkpoint.Dir = ckptDir
			}
			if f.Changed("resume") {
				cfg.Checkpoint.Resume = resume
			}
			if f.Changed("status-addr") {
				cfg.Status.Addr = statusAddr
			}
			if cfg.Input.Edges == "" || cfg.Input.Graph == "" {
				return errors.New("both --edges and --graph are required")
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			_, err := generate(cmd.Context(), cfg, a.logger)
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&edges, "edges", "", "edge CSV")
	fl.StringVar(&graphPath, "graph", "", "graph (connection) CSV")
	fl.StringVarP(&out, "output", "o", "", "output table path")
	fl.StringVar(&format, "format", "", "output format: csv, arrow or binary (default: by extension)")
	fl.IntVar(&minRes, "min-res", 0, "resolution the backward pass starts at")
	fl.IntVar(&maxRes, "max-res", 0, "finest resolution")
	fl.IntVar(&workers, "workers", 0, "partitions solved concurrently (0: all CPUs)")
	fl.StringVar(&ckptDir, "checkpoint-dir", "", "save the store after every step to this directory")
	fl.BoolVar(&resume, "resume", false, "continue from the checkpoint in --checkpoint-dir")
	fl.StringVar(&statusAddr, "status-addr", "", "serve run status and metrics on this address")
	return cmd
}

// generate runs the whole pipeline for cfg and writes the output table.
func generate(ctx context.Context, cfg *config.Config, logger *log.Logger) (*pipeline.Result, error) {
	runID := uuid.NewString()
	logger = logger.With("run", runID[:8])

	section(logger, "Loading input")
	p := newProgress(logger)
	edges, conns, err := graph.Load(cfg.Input.Edges, cfg.Input.Graph)
	if err != nil {
		return nil, err
	}
	p.done("loaded graph", "edges", humanize.Comma(int64(edges.Len())), "connections", humanize.Comma(int64(len(conns))))

	costs := cfg.CostModel().Compute(edges)
	store := shortcut.NewStore()
	seed := store.Seed(conns, costs)
	logger.Info("seeded store", "shortcuts", humanize.Comma(int64(store.Len())), "skipped", seed.Rejected)

	grid, err := cfg.Grid()
	if err != nil {
		return nil, err
	}
	region := cfg.Region()
	oracle := partition.NewEdgeOracle(edges, grid, region)
	logger.Debug("partition grid", "base_degrees", grid.BaseDegrees, "max_res", grid.MaxResolution, "region_boxes", region.Len())

	timeout, err := cfg.PartitionTimeout()
	if err != nil {
		return nil, err
	}
	engine := expand.NewEngine(cfg.Dispatch(), expand.Options{
		Workers:          cfg.Solver.Workers,
		PartitionTimeout: timeout,
		Logger:           logger,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	status := api.NewStatus(runID, reg)
	opts := []pipeline.Option{pipeline.WithLogger(logger), pipeline.WithHooks(status)}

	if cfg.Checkpoint.Dir != "" {
		ckpt, err := checkpoint.Open(cfg.Checkpoint.Dir, logger)
		if err != nil {
			return nil, err
		}
		defer ckpt.Close()
		opts = append(opts, pipeline.WithCheckpointer(ckpt))
		logger.Info("checkpointing enabled", "dir", cfg.Checkpoint.Dir, "resume", cfg.Checkpoint.Resume)
	}

	if cfg.Status.Addr != "" {
		stop, err := startStatusServer(ctx, cfg.Status.Addr, status, reg, logger)
		if err != nil {
			return nil, err
		}
		defer stop()
	}

	ctrl, err := pipeline.New(cfg.Pipeline(), oracle, engine, opts...)
	if err != nil {
		return nil, err
	}

	section(logger, "Expanding shortcuts")
	p = newProgress(logger)
	res, err := ctrl.Run(ctx, store)
	if err != nil {
		status.Fail(err)
		return nil, err
	}
	p.done("pipeline finished", "steps", len(res.Steps), "resumed", res.Resumed)

	section(logger, "Writing output")
	format, err := cfg.OutputFormat()
	if err != nil {
		return nil, err
	}
	p = newProgress(logger)
	if err := output.Write(cfg.Output.Path, format, res.Final); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	size := ""
	if info, err := os.Stat(cfg.Output.Path); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	p.done("wrote table", "path", cfg.Output.Path, "format", format, "rows", humanize.Comma(int64(res.Final.Len())), "size", size)

	section(logger, "Summary")
	for _, line := range summaryLines(res.Steps) {
		logger.Info(line)
	}
	return res, nil
}

// startStatusServer serves status until the returned stop func is called.
func startStatusServer(ctx context.Context, addr string, status *api.Status, reg *prometheus.Registry, logger *log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("status server: %w", err)
	}
	srv := api.NewServer(api.DefaultConfig(addr), api.NewHandlers(status), reg, logger)
	serveCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := api.Serve(serveCtx, srv, ln, logger); err != nil {
			logger.Warn("status server stopped", "err", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}, nil
}
