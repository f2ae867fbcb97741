package dialect

import "errors"

// ErrUnsupported is returned when a driver or driver name belongs to no
// supported engine.
var ErrUnsupported = errors.New("dialect: unsupported database engine")
