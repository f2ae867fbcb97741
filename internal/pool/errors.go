package pool

import "errors"

// Domain errors for the pool package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, pool.ErrPoolExhausted) {
//	    // every connection of the pool is checked out
//	}
var (
	// ErrPoolNotConfigured is returned when acquiring from a pool name with
	// no configuration. It is a configuration error.
	ErrPoolNotConfigured = errors.New("pool: pool not configured")

	// ErrPoolExhausted is returned when every connection of a pool is checked
	// out. Acquire never waits for a release.
	ErrPoolExhausted = errors.New("pool: pool exhausted")

	// ErrConnectFailed wraps a failure to open a physical connection.
	ErrConnectFailed = errors.New("pool: opening connection failed")

	// ErrCorruptConnection is returned by Close when a connection could neither
	// be rolled back nor physically closed.
	ErrCorruptConnection = errors.New("pool: connection could not be rolled back or closed")

	// ErrConnClosed is returned by operations on a released connection handle.
	ErrConnClosed = errors.New("pool: connection already released")

	// ErrManagerClosed is returned by Acquire after Shutdown.
	ErrManagerClosed = errors.New("pool: manager shut down")
)
