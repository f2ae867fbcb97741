package migrate

import "errors"

// Domain-specific errors for migrations.
var (
	// ErrDuplicateVersion is returned by Load when two up scripts share a version.
	ErrDuplicateVersion = errors.New("migrate: duplicate migration version")

	// ErrUnknownVersion is returned when an applied version has no script.
	ErrUnknownVersion = errors.New("migrate: applied version not found in scripts")

	// ErrNoDownSQL is returned by Down when the latest migration has no down script.
	ErrNoDownSQL = errors.New("migrate: migration has no down script")

	// ErrAlreadyRecorded is returned when another process recorded the
	// version while this one was applying it.
	ErrAlreadyRecorded = errors.New("migrate: version already recorded")
)
