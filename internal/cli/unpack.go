package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"map_shortcuts/pkg/graph"
	"map_shortcuts/pkg/output"
	"map_shortcuts/pkg/shortcut"
)

func newUnpackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <table> <from_edge> <to_edge>",
		Short: "Print the edge sequence behind one shortcut",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseEdgeID(args[1])
			if err != nil {
				return err
			}
			to, err := parseEdgeID(args[2])
			if err != nil {
				return err
			}

			p := newProgress(a.logger)
			t, err := output.Read(args[0])
			if err != nil {
				return err
			}
			p.done("loaded table", "rows", t.Len())

			path, err := shortcut.Unpack(t.Index(), from, to)
			if err != nil {
				return err
			}
			ids := make([]string, len(path))
			for i, e := range path {
				ids[i] = strconv.FormatInt(int64(e), 10)
			}
			for i := 0; i < t.Len(); i++ {
				if t.From[i] == from && t.To[i] == to {
					a.logger.Info("shortcut", "cost", t.Cost[i], "final_cell", t.FinalCell[i], "inside", t.Inside[i], "edges", len(path))
					break
				}
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), strings.Join(ids, " "))
			return err
		},
	}
}

func parseEdgeID(s string) (graph.EdgeID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid edge id %q", s)
	}
	return graph.EdgeID(v), nil
}
