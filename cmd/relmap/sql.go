package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CaliLuke/go-relmap/driver"
	"github.com/CaliLuke/go-relmap/orm"
)

type sqlOptions struct {
	*rootOptions
	Dialect  string
	Inline   bool
	Template bool
}

func newSQLCommand(root *rootOptions) *cobra.Command {
	opts := &sqlOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "sql <schema.yaml> <destination>...",
		Short: "Print the SQL compiled for a request",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSQL(cmd, opts, args[0], args[1:])
		},
	}
	cmd.Flags().StringVar(&opts.Dialect, "dialect", "sqlite", "SQL dialect (sqlite|mysql|postgres)")
	cmd.Flags().BoolVar(&opts.Inline, "inline", false, "format filter values into the SQL text")
	cmd.Flags().BoolVar(&opts.Template, "template", false, "print the cached template with :name parameters")
	cmd.Flags().StringVar(&root.Chain, "chain", "", "explicit chain to follow instead of searching")
	return cmd
}

func runSQL(cmd *cobra.Command, opts *sqlOptions, path string, args []string) error {
	dialect, err := driver.DialectFor(opts.Dialect)
	if err != nil {
		return err
	}
	db := driver.OpenDB(nil, dialect)
	setupOpts := []orm.SetupOption{orm.WithPlaceholders(db.Placeholder())}
	if opts.Inline {
		setupOpts = append(setupOpts, orm.WithInlineLiterals())
	}
	s, err := loadSchema(path, db, setupOpts...)
	if err != nil {
		return err
	}
	dests, err := parseDestinations(args)
	if err != nil {
		return err
	}
	t, values, err := s.Prepare(dests, opts.Chain)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "-- %s\n", t.Chain)
	if opts.Template {
		text, err := t.SQL()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, text)
		for _, name := range t.Placeholders {
			fmt.Fprintf(out, "-- :%s = %v\n", name, values[name])
		}
		return nil
	}
	query, qargs, err := s.Render(t, values)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, query)
	for i, a := range qargs {
		fmt.Fprintf(out, "-- arg %d = %v\n", i+1, a)
	}
	return nil
}
