// Package cli implements the shortcuts command-line interface.
//
// Commands:
//   - generate: precompute the shortcut table for an edge graph
//   - convert: turn an OSM PBF extract into edge and graph CSVs
//   - unpack: expand one shortcut of a written table into its edge sequence
//
// Settings come from an optional TOML or YAML file (--config); command flags
// override file values.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"map_shortcuts/pkg/config"
)

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// app carries state shared by all commands of one invocation.
type app struct {
	stdout, stderr io.Writer

	configPath string
	verbose    bool
	logFile    string

	cfg      *config.Config
	logger   *log.Logger
	closeLog func() error
}

// Execute runs the CLI with the process streams.
func Execute(ctx context.Context) error {
	return NewRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
}

// NewRootCmd builds the command tree writing to the given streams.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, closeLog: func() error { return nil }}

	root := &cobra.Command{
		Use:           "shortcuts",
		Short:         "Precompute hierarchical shortcuts for road edge graphs",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closeLog()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(fmt.Sprintf("shortcuts %s\ncommit: %s\nbuilt: %s\n", version, commit, date))

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "TOML or YAML config file")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&a.logFile, "log-file", "", "also write the log to this rotated file")

	root.AddCommand(newGenerateCmd(a))
	root.AddCommand(newConvertCmd(a))
	root.AddCommand(newUnpackCmd(a))
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup() error {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return err
		}
	}
	if a.logFile != "" {
		cfg.Log.File = a.logFile
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}

	logger, closeLog, err := newRunLogger(a.stderr, cfg.Log)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.closeLog = closeLog
	if a.configPath != "" {
		logger.Debug("loaded config", "path", a.configPath)
	}
	return nil
}
