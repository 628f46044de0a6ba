package ast

// Col creates a ColumnRef.
func Col(table, column string) ColumnRef {
	return ColumnRef{Table: table, Column: column}
}

// As creates a SelectItem projecting table.column under name.
func As(table, column, name string) SelectItem {
	return SelectItem{Column: Col(table, column), As: name}
}

// Table creates a TableRef. Pass an empty alias for a bare table.
func Table(table, alias string) TableRef {
	return TableRef{Table: table, Alias: alias}
}

// Eq creates an equality Comparison.
func Eq(left ColumnRef, right Operand) Comparison {
	return Comparison{Left: left, Right: right}
}

// P creates a named Param.
func P(name string) Param {
	return Param{Name: name}
}

// Lit creates a LiteralValue with an inferred type.
func Lit(v any) LiteralValue {
	return LiteralValue{Val: v}
}
