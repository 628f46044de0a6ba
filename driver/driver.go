package driver

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync/atomic"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/CaliLuke/go-relmap/ast"
	"github.com/CaliLuke/go-relmap/internal/logging"
)

// Dialect selects identifier quoting, literal escaping and placeholders.
type Dialect int

const (
	// SQLite uses ANSI quoting and ? placeholders.
	SQLite Dialect = iota
	// MySQL uses backtick quoting, backslash escapes and ? placeholders.
	MySQL
	// Postgres uses ANSI quoting and $n placeholders.
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case MySQL:
		return "mysql"
	case Postgres:
		return "postgres"
	default:
		return "sqlite"
	}
}

// DialectFor maps a database/sql driver name to its dialect.
func DialectFor(driverName string) (Dialect, error) {
	switch driverName {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDialect, driverName)
	}
}

// DB executes queries against a relational database and returns fully
// materialized rows.
type DB struct {
	db      *sql.DB
	dialect Dialect
	closed  atomic.Bool
}

// Open connects to a database. The driver name selects the dialect; MySQL
// and PostgreSQL DSNs are parsed by their drivers' connectors.
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	dialect, err := DialectFor(driverName)
	if err != nil {
		return nil, err
	}
	o := defaultOptions(dialect)
	for _, opt := range opts {
		opt(&o)
	}

	var db *sql.DB
	switch dialect {
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, &DriverError{Op: "parse dsn", Err: err}
		}
		cfg.ParseTime = o.parseTime
		conn, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, &DriverError{Op: "connect", Err: err}
		}
		db = sql.OpenDB(conn)
	case Postgres:
		conn, err := pq.NewConnector(dsn)
		if err != nil {
			return nil, &DriverError{Op: "parse dsn", Err: err}
		}
		db = sql.OpenDB(conn)
	default:
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, &DriverError{Op: "open", Err: err}
		}
	}
	if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
	}
	if o.connMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(o.connMaxIdleTime)
	}
	logging.Debug().Str("dialect", dialect.String()).Msg("database opened")
	return OpenDB(db, dialect), nil
}

// OpenDB wraps an existing connection pool.
func OpenDB(db *sql.DB, dialect Dialect) *DB {
	return &DB{db: db, dialect: dialect}
}

// Dialect returns the dialect the DB was opened with.
func (d *DB) Dialect() Dialect { return d.dialect }

// Placeholder returns the positional placeholder format of the dialect.
func (d *DB) Placeholder() sq.PlaceholderFormat {
	if d.dialect == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

// Query runs a query and reads every row into a column-name keyed map.
// Byte slices are copied into strings.
func (d *DB) Query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	if d.closed.Load() {
		return nil, ErrNotConnected
	}
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &DriverError{Op: "query", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &DriverError{Op: "columns", Err: err}
	}
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &DriverError{Op: "scan", Err: err}
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &DriverError{Op: "rows", Err: err}
	}
	logging.Trace().Str("query", query).Int("rows", len(out)).Msg("query finished")
	return out, nil
}

// Exec runs a statement that returns no rows, such as generated DDL.
func (d *DB) Exec(ctx context.Context, query string, args ...any) error {
	if d.closed.Load() {
		return ErrNotConnected
	}
	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return &DriverError{Op: "exec", Err: err}
	}
	return nil
}

// EscapeLiteral formats value as an SQL literal of the dialect.
func (d *DB) EscapeLiteral(value any, hint ast.LiteralType) (string, error) {
	v, err := ast.CoerceLiteral(value, hint)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return ast.FormatLiteral(v, ast.LiteralAuto)
	}
	switch d.dialect {
	case MySQL:
		return "'" + escapeBackslash(s) + "'", nil
	case Postgres:
		return pq.QuoteLiteral(s), nil
	default:
		return ast.FormatLiteral(s, ast.LiteralAuto)
	}
}

// QuoteIdent quotes identifiers that are not valid bare SQL names.
func (d *DB) QuoteIdent(ident string) string {
	if d.dialect == MySQL {
		return ast.QuoteBacktick(ident)
	}
	return ast.QuoteANSI(ident)
}

// Close releases the connection pool.
func (d *DB) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.db.Close()
}

// escapeBackslash escapes a string for a MySQL literal in the default
// (non NO_BACKSLASH_ESCAPES) SQL mode.
func escapeBackslash(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\x1a':
			b.WriteString(`\Z`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
