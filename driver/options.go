package driver

import "time"

// Option configures Open.
type Option func(*options)

type options struct {
	maxOpenConns    int
	connMaxIdleTime time.Duration
	parseTime       bool
}

func defaultOptions(d Dialect) options {
	o := options{parseTime: true}
	// Each connection to an in-memory SQLite database is its own database.
	if d == SQLite {
		o.maxOpenConns = 1
	}
	return o
}

// WithMaxOpenConns limits the number of open connections. Zero means no limit.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		o.maxOpenConns = n
	}
}

// WithConnMaxIdleTime sets how long an idle connection is kept.
func WithConnMaxIdleTime(d time.Duration) Option {
	return func(o *options) {
		o.connMaxIdleTime = d
	}
}

// WithParseTime controls whether MySQL DATE and DATETIME values are scanned
// as time.Time. It is on by default and ignored by other dialects.
func WithParseTime(on bool) Option {
	return func(o *options) {
		o.parseTime = on
	}
}
