package influxdb

import "errors"

// Errors returned by Connect and the health check.
var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed wraps a failed ping or an unhealthy server at Connect.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned by HealthCheck after Close or a lost server.
	ErrNotConnected = errors.New("influxdb: not connected")
)
