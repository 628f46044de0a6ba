// Package ast defines the node types for the SELECT statements relmap emits.
//
// Compiled queries are kept as nodes rather than text so that a cached
// template can be bound to fresh literal values without re-running the
// router or the compiler.
package ast

// Node is the marker interface for all AST nodes.
type Node interface {
	sqlNode()
}

// Operand is the marker interface for the right-hand side of a comparison.
type Operand interface {
	Node
	operand()
}

// ColumnRef references a column through a table alias, e.g. person__0__person.name.
type ColumnRef struct {
	// Table is the table alias (or bare table name) that owns the column.
	Table string
	// Column is the storage column name.
	Column string
}

func (ColumnRef) sqlNode() {}
func (ColumnRef) operand() {}

// Param is a named placeholder bound when a template is applied.
type Param struct {
	Name string
}

func (Param) sqlNode() {}
func (Param) operand() {}

// LiteralValue is a literal embedded directly into a statement.
type LiteralValue struct {
	// Val is the Go value.
	Val any
	// Type is the formatting hint; LiteralAuto infers it from Val.
	Type LiteralType
}

func (LiteralValue) sqlNode() {}
func (LiteralValue) operand() {}

// SelectItem projects a column under an output name.
type SelectItem struct {
	Column ColumnRef
	As     string
}

func (SelectItem) sqlNode() {}

// TableRef names a table in the FROM list. An empty Alias renders the bare table.
type TableRef struct {
	Table string
	Alias string
}

func (TableRef) sqlNode() {}

// Comparison is an equality predicate. All predicates of a statement are ANDed.
type Comparison struct {
	Left  ColumnRef
	Right Operand
}

func (Comparison) sqlNode() {}

// SelectStatement is a comma-join SELECT: projected items, the FROM list and
// the conjunction of Where comparisons.
type SelectStatement struct {
	Items []SelectItem
	From  []TableRef
	Where []Comparison
}

func (SelectStatement) sqlNode() {}

// Params returns the placeholder names referenced by the statement in
// the order they appear in the WHERE list.
func (s SelectStatement) Params() []string {
	var names []string
	for _, cmp := range s.Where {
		if p, ok := cmp.Right.(Param); ok {
			names = append(names, p.Name)
		}
	}
	return names
}
