// Package driver provides relational storage connectivity over database/sql.
//
// A DB executes the queries compiled by the orm package and formats literal
// values for the dialect it was opened with. SQLite, MySQL and PostgreSQL
// are supported.
package driver
