package row

import "errors"

// Domain errors for the row package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, row.ErrNoField) {
//	    // column was not selected
//	}
var (
	// ErrDuplicateField is returned by Add when the (case-normalised) field
	// name is already present in the row.
	ErrDuplicateField = errors.New("row: duplicate field")

	// ErrNoField is returned by typed accessors for a field the row does not hold.
	ErrNoField = errors.New("row: no such field")

	// ErrNullValue is returned by typed accessors when the value is SQL NULL.
	ErrNullValue = errors.New("row: null value")

	// ErrTypeMismatch is returned when a value cannot be coerced to the requested type.
	ErrTypeMismatch = errors.New("row: type mismatch")

	// ErrBadTemporal is returned when text cannot be parsed as an ISO date or timestamp.
	ErrBadTemporal = errors.New("row: malformed date or timestamp")
)
