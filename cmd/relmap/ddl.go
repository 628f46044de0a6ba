package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/CaliLuke/go-relmap/ddlgen"
	"github.com/CaliLuke/go-relmap/driver"
)

type ddlOptions struct {
	Output      string
	ColumnType  string
	IDType      string
	IfNotExists bool
}

func newDDLCommand(_ *rootOptions) *cobra.Command {
	opts := &ddlOptions{}
	defaults := ddlgen.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "ddl <schema.yaml>",
		Short: "Print CREATE TABLE statements for the schema's storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDDL(cmd, opts, args[0])
		},
	}
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&opts.ColumnType, "column-type", defaults.ColumnType, "SQL type of property and key columns")
	cmd.Flags().StringVar(&opts.IDType, "id-type", defaults.IDType, "SQL type of synthetic identity columns")
	cmd.Flags().BoolVar(&opts.IfNotExists, "if-not-exists", defaults.IfNotExists, "emit CREATE TABLE IF NOT EXISTS")
	return cmd
}

func runDDL(cmd *cobra.Command, opts *ddlOptions, path string) error {
	s, err := loadSchema(path, driver.OpenDB(nil, driver.SQLite))
	if err != nil {
		return err
	}
	cfg := ddlgen.Config{
		ColumnType:  opts.ColumnType,
		IDType:      opts.IDType,
		IfNotExists: opts.IfNotExists,
	}

	w := cmd.OutOrStdout()
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	return ddlgen.Render(w, s.StorageObjects(), cfg)
}
