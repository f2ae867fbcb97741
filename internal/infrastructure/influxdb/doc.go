// Package influxdb records database core telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management, batched non-blocking writes, and health monitoring.
//
// # Measurements
//
//	db_statement   one point per executed statement
//	               tags: pool, dialect, kind, outcome (ok, slow, error)
//	               fields: elapsed_ms, rows
//	db_pool_event  one point per pool membership change
//	               tags: pool, kind
//	               fields: conn_id, busy
//	db_pool        periodic pool occupancy from Manager.Stats
//	               tags: pool
//	               fields: max, idle, busy, acquired, exhausted
//
// The Client implements engine.Observer and pool.Observer, so it can be
// registered directly:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	eng.SetObserver(client)
//	mgr.SetObserver(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write errors are delivered asynchronously through SetOnError.
// Connection and health check errors are returned directly.
package influxdb
