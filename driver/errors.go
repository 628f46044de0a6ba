package driver

import (
	"errors"
)

// DriverError represents an error returned by the underlying database driver.
type DriverError struct {
	// Op names the operation that failed.
	Op string
	// Err is the error returned from database/sql or the driver.
	Err error
}

func (e *DriverError) Error() string {
	return "driver: " + e.Op + ": " + e.Err.Error()
}

func (e *DriverError) Unwrap() error {
	return e.Err
}

var (
	// ErrNotConnected is returned when an operation is attempted on a closed DB.
	ErrNotConnected = errors.New("driver: not connected")
	// ErrUnknownDialect is returned for driver names with no known dialect.
	ErrUnknownDialect = errors.New("driver: unknown dialect")
)
