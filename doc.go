// Package relmap maps an object model of entities and relationships onto
// relational tables and compiles graph-style requests into SQL.
//
// A schema is a set of rules, each naming a relationship from one type to
// another. A request lists destinations (an anchor, filters and the types
// to read back); the router finds the shortest walk through the rules that
// visits all of them, the compiler turns the walk into a single SELECT with
// inheritance joins, and the hydrator rebuilds typed instances from the
// result rows.
//
// The module is organized into these packages:
//
//   - [github.com/CaliLuke/go-relmap/orm] schema registry, router, compiler, cache and hydrator
//   - [github.com/CaliLuke/go-relmap/ast] SQL AST nodes, rendering and literal formatting
//   - [github.com/CaliLuke/go-relmap/ruledsl] rule text grammar and YAML schema documents
//   - [github.com/CaliLuke/go-relmap/ddlgen] CREATE TABLE generation from a schema's storage
//   - [github.com/CaliLuke/go-relmap/driver] database/sql executor for SQLite, MySQL and PostgreSQL
//
// The relmap command in cmd/relmap exposes routing, SQL, DDL and live
// queries over a YAML schema document.
package relmap
