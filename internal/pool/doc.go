// Package pool manages named pools of physical database connections.
//
// This package manages:
//   - One Manager per process holding every configured pool
//   - Checkout and release of connections with a per-pool ceiling
//   - Eviction of idle connections that fail a liveness check
//   - Transaction boundaries: every connection works inside an implicit
//     transaction that the caller commits and Close rolls back
//
// A physical connection is a *sql.Conn taken from the pool's *sql.DB and held
// by the Manager for its whole life, so database/sql never hands it to anyone
// else. Connections are identified by a serial number unique to the Manager.
//
// Exhaustion:
//
// Acquire never waits. When every connection of a pool is checked out it
// fails with ErrPoolExhausted and the caller decides what to do.
//
// Usage:
//
//	mgr := pool.NewManager(cfg.Pools)
//	mgr.SetLogger(logger.With("component", "pool"))
//	defer mgr.Shutdown()
//
//	conn, err := mgr.Acquire(ctx, "main")
//	if err != nil {
//	    return err
//	}
//	defer conn.Close() // rolls back anything not committed
//
//	if _, err := eng.InsertRow(ctx, conn, "t_user", params); err != nil {
//	    return err
//	}
//	return conn.Commit()
//
// Metrics:
//
//	prometheus.MustRegister(pool.NewMetricsCollector(mgr))
package pool
