package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CaliLuke/go-relmap/driver"
	"github.com/CaliLuke/go-relmap/orm"
)

func newRouteCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route <schema.yaml> <destination>...",
		Short: "Resolve the walk connecting a set of destinations",
		Long: `Resolve the shortest walk through the schema's rules that starts at the
first destination and reaches every other one.

Destinations are written Entity[@Alias][!][:prop=value,...]; a trailing !
requests the destination as output.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoute(cmd, root, args[0], args[1:])
		},
	}
	cmd.Flags().StringVar(&root.Chain, "chain", "", "explicit chain to follow instead of searching")
	return cmd
}

func runRoute(cmd *cobra.Command, root *rootOptions, path string, args []string) error {
	s, err := loadSchema(path, driver.OpenDB(nil, driver.SQLite))
	if err != nil {
		return err
	}
	dests, err := parseDestinations(args)
	if err != nil {
		return err
	}
	w, err := s.Resolve(dests, root.Chain)
	if err != nil {
		return err
	}
	printWalk(cmd, w)
	return nil
}

func printWalk(cmd *cobra.Command, w *orm.Walk) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, w)
	for i, st := range w.Steps() {
		fmt.Fprintf(out, "  %d  %s  (%d -> %d)\n", i, st.Rule, st.Near, st.Far)
	}
}
