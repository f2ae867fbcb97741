package sqlbuild

import "errors"

// Errors returned while declaring, binding or executing SQL.
var (
	// ErrMissingParam is returned by Template.Bind when the parameter source
	// lacks a declared slot name. It is a configuration error.
	ErrMissingParam = errors.New("sqlbuild: missing bind parameter")

	// ErrDuplicateParam is returned by Template.Bind when a Params source
	// holds two keys that differ only in case.
	ErrDuplicateParam = errors.New("sqlbuild: parameter given twice")

	// ErrMarkerCount is returned when a template fragment carries the wrong
	// number of bind markers for its declaration.
	ErrMarkerCount = errors.New("sqlbuild: wrong number of bind markers")

	// ErrSlotType is returned when a slot name is redeclared with another type.
	ErrSlotType = errors.New("sqlbuild: slot redeclared with a different type")

	// ErrBindMismatch is returned when a statement's marker count differs from
	// its number of bind values.
	ErrBindMismatch = errors.New("sqlbuild: bind marker count does not match values")
)
