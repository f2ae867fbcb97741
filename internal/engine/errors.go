package engine

import (
	"errors"
	"fmt"
)

// Domain errors for the engine package.
var (
	// ErrCardinality is returned when a statement expected to touch at most
	// one row touched or returned more. It signals a wrong key or predicate
	// in the caller; the change is still pending in the open transaction and
	// must not be committed.
	ErrCardinality = errors.New("engine: more than one row matched")

	// ErrTableNotFound is returned when the catalog reports no columns for a table.
	ErrTableNotFound = errors.New("engine: table not found")

	// ErrNoColumn is returned when a named key or stamp column is not a
	// column of the table.
	ErrNoColumn = errors.New("engine: no such column")

	// ErrNoPrimaryKey is returned by the ByPK operations on a table without
	// a declared primary key.
	ErrNoPrimaryKey = errors.New("engine: table has no primary key")

	// ErrMissingKey is returned when a key or stamp column has no non-NULL
	// value in the parameters.
	ErrMissingKey = errors.New("engine: missing key value")

	// ErrNoValues is returned when no parameter matches a writable column.
	ErrNoValues = errors.New("engine: no parameter matches a column")

	// ErrNotInserted is returned when an INSERT reports zero affected rows.
	ErrNotInserted = errors.New("engine: insert affected no rows")

	// ErrInvalidLimit is returned by SelectRows for a limit below 1.
	ErrInvalidLimit = errors.New("engine: limit must be positive")
)

// ExecError wraps a driver failure with the statement and connection it
// happened on. Unwrap returns the driver error.
type ExecError struct {
	Op     string // "executing" when empty, "reading" for result reads
	SQL    string
	Args   []any
	Pool   string
	ConnID uint64
	Err    error
}

func (e *ExecError) Error() string {
	op := e.Op
	if op == "" {
		op = "executing"
	}
	return fmt.Sprintf("%s %q %v on %s conn %d: %v", op, e.SQL, e.Args, poolLabel(e.Pool), e.ConnID, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

func poolLabel(name string) string {
	if name == "" {
		return "direct"
	}
	return "pool " + name
}
