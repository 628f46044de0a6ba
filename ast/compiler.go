package ast

import (
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Compiler turns AST nodes into SQL text.
//
// Compile renders nodes for display and cache keys, with parameters shown
// as :name. Bind produces executable SQL with positional arguments and
// Inline produces executable SQL with literals formatted into the text.
type Compiler struct {
	// Placeholder is the positional placeholder format used by Bind.
	// Nil means sq.Question.
	Placeholder sq.PlaceholderFormat
	// Quote renders table aliases and column aliases. Nil leaves them as is.
	Quote func(ident string) string
}

// Compile compiles a single AST node into its SQL string representation.
func (c *Compiler) Compile(node Node) (string, error) {
	switch n := node.(type) {
	case ColumnRef:
		return c.compileColumn(n), nil
	case Param:
		return ":" + n.Name, nil
	case LiteralValue:
		return FormatLiteral(n.Val, n.Type)
	case SelectItem:
		return c.compileColumn(n.Column) + " AS " + c.quote(n.As), nil
	case TableRef:
		return c.compileTable(n), nil
	case Comparison:
		return c.compileComparison(n, func(p Param) (string, error) { return ":" + p.Name, nil })
	case SelectStatement:
		return c.compileStatement(n)
	default:
		return "", fmt.Errorf("unknown node type: %T", node)
	}
}

func (c *Compiler) quote(ident string) string {
	if c.Quote == nil {
		return ident
	}
	return c.Quote(ident)
}

func (c *Compiler) compileColumn(col ColumnRef) string {
	if col.Table == "" {
		return col.Column
	}
	return c.quote(col.Table) + "." + col.Column
}

func (c *Compiler) compileTable(t TableRef) string {
	if t.Alias == "" || t.Alias == t.Table {
		return t.Table
	}
	return t.Table + " " + c.quote(t.Alias)
}

func (c *Compiler) compileComparison(cmp Comparison, param func(Param) (string, error)) (string, error) {
	left := c.compileColumn(cmp.Left)
	var right string
	switch r := cmp.Right.(type) {
	case ColumnRef:
		right = c.compileColumn(r)
	case Param:
		s, err := param(r)
		if err != nil {
			return "", err
		}
		right = s
	case LiteralValue:
		s, err := FormatLiteral(r.Val, r.Type)
		if err != nil {
			return "", err
		}
		right = s
	default:
		return "", fmt.Errorf("unknown operand type: %T", cmp.Right)
	}
	return left + " = " + right, nil
}

func (c *Compiler) compileStatement(s SelectStatement) (string, error) {
	parts := []string{"SELECT " + strings.Join(c.selectList(s), ", ")}
	parts = append(parts, "FROM "+strings.Join(c.fromList(s), ", "))
	if len(s.Where) > 0 {
		preds := make([]string, 0, len(s.Where))
		for _, cmp := range s.Where {
			p, err := c.Compile(cmp)
			if err != nil {
				return "", err
			}
			preds = append(preds, p)
		}
		parts = append(parts, "WHERE "+strings.Join(preds, " AND "))
	}
	return strings.Join(parts, " "), nil
}

func (c *Compiler) selectList(s SelectStatement) []string {
	cols := make([]string, 0, len(s.Items))
	for _, item := range s.Items {
		cols = append(cols, c.compileColumn(item.Column)+" AS "+c.quote(item.As))
	}
	return cols
}

func (c *Compiler) fromList(s SelectStatement) []string {
	tables := make([]string, 0, len(s.From))
	for _, t := range s.From {
		tables = append(tables, c.compileTable(t))
	}
	return tables
}

// Bind renders s as executable SQL, replacing each Param with a positional
// placeholder and returning the bound values in placeholder order.
func (c *Compiler) Bind(s SelectStatement, values map[string]any) (string, []any, error) {
	b := sq.Select(c.selectList(s)...).From(strings.Join(c.fromList(s), ", "))
	for _, cmp := range s.Where {
		var arg any
		bound := false
		pred, err := c.compileComparison(cmp, func(p Param) (string, error) {
			v, ok := values[p.Name]
			if !ok {
				return "", &UnboundParamError{Name: p.Name}
			}
			if lit, ok := v.(LiteralValue); ok {
				coerced, err := CoerceLiteral(lit.Val, lit.Type)
				if err != nil {
					return "", err
				}
				v = coerced
			}
			arg, bound = v, true
			return "?", nil
		})
		if err != nil {
			return "", nil, err
		}
		if bound {
			b = b.Where(pred, arg)
		} else {
			b = b.Where(pred)
		}
	}
	ph := c.Placeholder
	if ph == nil {
		ph = sq.Question
	}
	return b.PlaceholderFormat(ph).ToSql()
}

// Inline renders s as executable SQL with every Param replaced by its value
// formatted through format. A nil format uses FormatLiteral.
func (c *Compiler) Inline(s SelectStatement, values map[string]any, format Formatter) (string, error) {
	if format == nil {
		format = FormatLiteral
	}
	b := sq.Select(c.selectList(s)...).From(strings.Join(c.fromList(s), ", "))
	for _, cmp := range s.Where {
		pred, err := c.compileComparison(cmp, func(p Param) (string, error) {
			v, ok := values[p.Name]
			if !ok {
				return "", &UnboundParamError{Name: p.Name}
			}
			if lit, ok := v.(LiteralValue); ok {
				return format(lit.Val, lit.Type)
			}
			return format(v, LiteralAuto)
		})
		if err != nil {
			return "", err
		}
		b = b.Where(pred)
	}
	query, _, err := b.PlaceholderFormat(sq.Question).ToSql()
	return query, err
}

// QuoteANSI double-quotes identifiers that cannot appear bare because they
// start with a digit, such as the anchor alias 0__0__person.
func QuoteANSI(ident string) string {
	if ident == "" || ident[0] < '0' || ident[0] > '9' {
		return ident
	}
	return `"` + ident + `"`
}

// QuoteBacktick is QuoteANSI for MySQL.
func QuoteBacktick(ident string) string {
	if ident == "" || ident[0] < '0' || ident[0] > '9' {
		return ident
	}
	return "`" + ident + "`"
}

// UnboundParamError is returned when a statement references a placeholder
// that has no value.
type UnboundParamError struct {
	Name string
}

// Error returns the error message for UnboundParamError.
func (e *UnboundParamError) Error() string {
	return fmt.Sprintf("no value bound for placeholder %q", e.Name)
}
