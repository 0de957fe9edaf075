// Package feederr defines the fixed error taxonomy of the sync pipeline.
// Every terminal failure is classified into one of these categories so batch
// counters and the completion report can distinguish "file never existed"
// from "connection degraded" from "data integrity problem".
package feederr

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection covers transport and auth failures against the feed host.
	ErrConnection = errors.New("feed connection error")
	// ErrCircuitOpen is returned without network I/O while the breaker is open.
	ErrCircuitOpen = errors.New("feed circuit open")
	// ErrFileNotFound means every candidate remote path was exhausted.
	ErrFileNotFound = errors.New("feed file not found")
	// ErrParse means the downloaded document had an unrecognized or invalid shape.
	ErrParse = errors.New("feed document parse error")
	// ErrConstraint means an upsert violated a data invariant.
	ErrConstraint = errors.New("feed data constraint violation")
	// ErrSizeLimit rejects jobs exceeding the configured sailing count upfront.
	ErrSizeLimit = errors.New("sync job exceeds size limit")
	// ErrLockContention means another job already holds the per-line lock.
	ErrLockContention = errors.New("line sync already in progress")
)

// Category is the reporting bucket of a classified error.
type Category string

const (
	CategoryConnection   Category = "connection"
	CategoryCircuitOpen  Category = "circuit_open"
	CategoryFileNotFound Category = "file_not_found"
	CategoryParse        Category = "parse"
	CategoryConstraint   Category = "constraint"
	CategorySizeLimit    Category = "size_limit"
	CategoryLock         Category = "lock_contention"
	CategoryUnknown      Category = "unknown"
)

// Classify maps any error onto its taxonomy category.
func Classify(err error) Category {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return CategoryCircuitOpen
	case errors.Is(err, ErrConnection):
		return CategoryConnection
	case errors.Is(err, ErrFileNotFound):
		return CategoryFileNotFound
	case errors.Is(err, ErrParse):
		return CategoryParse
	case errors.Is(err, ErrConstraint):
		return CategoryConstraint
	case errors.Is(err, ErrSizeLimit):
		return CategorySizeLimit
	case errors.Is(err, ErrLockContention):
		return CategoryLock
	default:
		return CategoryUnknown
	}
}

// Retryable reports whether the scheduler may retry the operation. Only
// connection-level failures are retried; a missing file stays missing and
// retrying it just hammers the feed host.
func Retryable(err error) bool {
	return Classify(err) == CategoryConnection
}

// Wrap attaches a taxonomy sentinel to a concrete cause.
func Wrap(sentinel error, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), sentinel)
}
