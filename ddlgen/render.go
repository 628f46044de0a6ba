// Package ddlgen renders CREATE TABLE statements for the storage objects of
// a registered schema.
package ddlgen

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/CaliLuke/go-relmap/orm"
)

// Config specifies the settings for generating DDL.
type Config struct {
	// ColumnType is the SQL type of property and link columns.
	ColumnType string
	// IDType is the SQL type of the synthetic identity and of columns
	// referencing it.
	IDType string
	// IfNotExists adds IF NOT EXISTS to every statement.
	IfNotExists bool
}

// DefaultConfig returns a Config suitable for SQLite.
func DefaultConfig() Config {
	return Config{
		ColumnType:  "TEXT",
		IDType:      "INTEGER",
		IfNotExists: true,
	}
}

type renderData struct {
	Tables []tableCtx
}

type tableCtx struct {
	Name        string
	Comment     string
	IfNotExists bool
	Defs        []string
}

// Render writes one CREATE TABLE statement per storage object.
func Render(w io.Writer, objs []orm.StorageObject, cfg Config) error {
	return renderTemplate.Execute(w, buildData(objs, cfg))
}

// Statements returns the CREATE TABLE statements individually, for
// executing against a database.
func Statements(objs []orm.StorageObject, cfg Config) ([]string, error) {
	data := buildData(objs, cfg)
	out := make([]string, 0, len(data.Tables))
	for _, t := range data.Tables {
		var buf bytes.Buffer
		if err := statementTemplate.Execute(&buf, t); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", t.Name, err)
		}
		out = append(out, buf.String())
	}
	return out, nil
}

func buildData(objs []orm.StorageObject, cfg Config) *renderData {
	if cfg.ColumnType == "" {
		cfg.ColumnType = "TEXT"
	}
	if cfg.IDType == "" {
		cfg.IDType = "INTEGER"
	}
	data := &renderData{}
	for _, o := range objs {
		data.Tables = append(data.Tables, buildTableCtx(o, cfg))
	}
	return data
}

func buildTableCtx(o orm.StorageObject, cfg Config) tableCtx {
	t := tableCtx{Name: o.Table, IfNotExists: cfg.IfNotExists}
	switch {
	case !o.Declared:
		t.Comment = o.Name + " has no declared type"
	case o.Parent != "":
		t.Comment = o.Name + " extends " + o.Parent
	}

	var cols []string
	cols = append(cols, o.Columns...)
	cols = append(cols, o.ParentColumns...)
	for _, l := range o.Links {
		cols = append(cols, l.KeyColumns...)
		cols = append(cols, l.VarColumns...)
	}
	for _, c := range cols {
		t.Defs = append(t.Defs, c+" "+columnType(c, cfg))
	}
	t.Defs = append(t.Defs, "PRIMARY KEY ("+strings.Join(o.Keys, ", ")+")")
	return t
}

func columnType(col string, cfg Config) string {
	if col == orm.IDProperty || strings.HasSuffix(col, "__key__"+orm.IDProperty) {
		return cfg.IDType
	}
	return cfg.ColumnType
}

var funcs = template.FuncMap{"join": strings.Join}

const statementText = `CREATE TABLE {{if .IfNotExists}}IF NOT EXISTS {{end}}{{.Name}} (
	{{join .Defs ",\n\t"}}
)`

var statementTemplate = template.Must(template.New("statement").Funcs(funcs).Parse(statementText))

var renderTemplate = template.Must(template.New("ddl").Funcs(funcs).Parse(`-- Code generated by relmap ddl. DO NOT EDIT.
{{range .Tables}}
{{- if .Comment}}
-- {{.Comment}}
{{- end}}
CREATE TABLE {{if .IfNotExists}}IF NOT EXISTS {{end}}{{.Name}} (
	{{join .Defs ",\n\t"}}
);
{{end}}`))
