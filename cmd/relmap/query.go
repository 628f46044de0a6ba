package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CaliLuke/go-relmap/driver"
	"github.com/CaliLuke/go-relmap/orm"
)

type queryOptions struct {
	*rootOptions
	Driver string
	DSN    string
	Inline bool
	Format string
}

func newQueryCommand(root *rootOptions) *cobra.Command {
	opts := &queryOptions{rootOptions: root}

	cmd := &cobra.Command{
		Use:   "query <schema.yaml> <destination>...",
		Short: "Run a request against a database and print the hydrated rows",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, opts, args[0], args[1:])
		},
	}
	cmd.Flags().StringVar(&opts.Driver, "driver", "sqlite", "database driver (sqlite|mysql|postgres)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "data source name")
	cmd.Flags().BoolVar(&opts.Inline, "inline", false, "format filter values into the SQL text")
	cmd.Flags().StringVar(&opts.Format, "format", "text", "output format (text|json)")
	cmd.Flags().StringVar(&root.Chain, "chain", "", "explicit chain to follow instead of searching")
	_ = cmd.MarkFlagRequired("dsn")
	return cmd
}

func runQuery(cmd *cobra.Command, opts *queryOptions, path string, args []string) error {
	if opts.Format != "text" && opts.Format != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", opts.Format)
	}
	db, err := driver.Open(opts.Driver, opts.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rs, err := s.Query(ctx, dests, opts.Chain)
	if err != nil {
		return err
	}
	if opts.Format == "json" {
		return writeJSON(cmd, rs)
	}
	writeText(cmd, rs)
	return nil
}

// rowRecords flattens a row into instance label -> values. Relationship
// labels carry a leading "~".
func rowRecords(r *orm.ResultRow) map[string]map[string]any {
	out := make(map[string]map[string]any, r.Len())
	for _, k := range r.EntityKeys() {
		inst, _ := r.EntityAt(k.Alias, k.Occurrence)
		out[k.String()] = inst.Values()
	}
	for _, k := range r.RelationshipKeys() {
		inst, _ := r.Relationship(k.Alias, k.Occurrence)
		out["~"+k.String()] = inst.Values()
	}
	return out
}

func writeJSON(cmd *cobra.Command, rs *orm.ResultSet) error {
	rows := make([]map[string]map[string]any, 0, rs.Len())
	for _, r := range rs.Rows() {
		rows = append(rows, rowRecords(r))
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func writeText(cmd *cobra.Command, rs *orm.ResultSet) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "-- %s\n", rs.Chain())
	for i, r := range rs.Rows() {
		fmt.Fprintf(out, "row %d\n", i)
		recs := rowRecords(r)
		labels := make([]string, 0, len(recs))
		for l := range recs {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			fmt.Fprintf(out, "  %s  %s\n", l, formatValues(recs[l]))
		}
	}
	fmt.Fprintf(out, "(%d rows)\n", rs.Len())
}

func formatValues(vals map[string]any) string {
	props := make([]string, 0, len(vals))
	for p := range vals {
		props = append(props, p)
	}
	sort.Strings(props)
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = fmt.Sprintf("%s=%v", p, vals[p])
	}
	return strings.Join(parts, " ")
}
