package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-dbcore/internal/dialect"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
)

// ReleasePolicy decides what Close does with the physical connection once
// the unit of work has been rolled back.
type ReleasePolicy int

const (
	// ReleaseToPool makes the connection idle in its pool again.
	ReleaseToPool ReleasePolicy = iota

	// ReleaseClose disconnects it.
	ReleaseClose
)

// String returns the policy name.
func (p ReleasePolicy) String() string {
	if p == ReleaseClose {
		return "close"
	}
	return "pool"
}

// directSerial numbers connections opened by OpenDirect.
var directSerial atomic.Uint64

// txn is the open transaction of an entry. *sql.Tx implements it.
type txn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Commit() error
	Rollback() error
}

// entry is one physical connection and its current transaction.
type entry struct {
	id      uint64
	pool    string
	conn    *sql.Conn
	dialect dialect.Dialect

	mu     sync.Mutex
	tx     txn
	closed bool
}

func newEntry(ctx context.Context, db *sql.DB, id uint64, pool string) (*entry, error) {
	d, err := dialect.Detect(db.Driver())
	if err != nil {
		return nil, err
	}
	c, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.PingContext(ctx); err != nil {
		c.Raw(func(any) error { return driver.ErrBadConn }) //nolint:errcheck // discarding a connection that never worked
		return nil, err
	}
	return &entry{id: id, pool: pool, conn: c, dialect: d}, nil
}

// ping is the liveness check run before an idle entry is handed out.
func (e *entry) ping(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return sql.ErrConnDone
	}
	return e.conn.PingContext(ctx)
}

// txLocked returns the current transaction, beginning one if none is open.
// The transaction outlives ctx: it ends only by commit or rollback.
func (e *entry) txLocked(ctx context.Context) (txn, error) {
	if e.closed {
		return nil, ErrConnClosed
	}
	if e.tx == nil {
		tx, err := e.conn.BeginTx(context.WithoutCancel(ctx), nil)
		if err != nil {
			return nil, fmt.Errorf("beginning transaction on conn %d: %w", e.id, err)
		}
		e.tx = tx
	}
	return e.tx, nil
}

// rollback ends the current transaction, if any. On a rollback failure the
// physical connection is discarded; rbErr carries the rollback failure and
// fatal is set only if the discard failed too.
func (e *entry) rollback() (healthy bool, rbErr, fatal error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return false, nil, nil
	}
	if e.tx == nil {
		return true, nil, nil
	}

	err := e.tx.Rollback()
	e.tx = nil
	if err == nil || errors.Is(err, sql.ErrTxDone) {
		return true, nil, nil
	}
	if cerr := e.discardLocked(); cerr != nil {
		return false, err, fmt.Errorf("%w: conn %d: rollback: %v; close: %v", ErrCorruptConnection, e.id, err, cerr)
	}
	return false, err, nil
}

// discard rolls back and physically closes the connection.
func (e *entry) discard() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discardLocked()
}

func (e *entry) discardLocked() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.tx != nil {
		e.tx.Rollback() //nolint:errcheck // the connection is being destroyed
		e.tx = nil
	}
	// Reporting ErrBadConn from Raw makes database/sql close the driver
	// connection instead of keeping it for reuse.
	err := e.conn.Raw(func(any) error { return driver.ErrBadConn })
	if err == nil || errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return nil
	}
	return err
}

// Conn is a checked-out connection handle.
//
// Statements run inside an implicit transaction that begins with the first
// statement. Commit ends it and the next statement begins another. Close
// rolls back anything uncommitted, then applies the release policy.
//
// A Conn is owned by one goroutine between acquisition and Close.
type Conn struct {
	e        *entry
	policy   ReleasePolicy
	pool     *namedPool
	mgr      *Manager
	db       *sql.DB
	logger   Logger
	released atomic.Bool
}

// OpenDirect opens a one-shot connection outside any pool. Its Close rolls
// back and disconnects.
func OpenDirect(ctx context.Context, cfg config.ConnConfig) (*Conn, error) {
	driverName, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	db.SetMaxOpenConns(1)

	e, err := newEntry(ctx, db, directSerial.Add(1), "")
	if err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectFailed, redact(cfg.URL), err)
	}
	return &Conn{e: e, policy: ReleaseClose, db: db, logger: noopLogger{}}, nil
}

// ID returns the serial identifier of the physical connection.
func (c *Conn) ID() uint64 { return c.e.id }

// Pool returns the pool name, or "" for a direct connection.
func (c *Conn) Pool() string { return c.e.pool }

// Dialect returns the dialect selected for the physical connection.
func (c *Conn) Dialect() dialect.Dialect { return c.e.dialect }

// Policy returns the release policy.
func (c *Conn) Policy() ReleasePolicy { return c.policy }

// ExecContext runs a statement in the current transaction.
// The query must already be in the driver's placeholder syntax.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if c.released.Load() {
		return nil, ErrConnClosed
	}
	c.e.mu.Lock()
	defer c.e.mu.Unlock()

	tx, err := c.e.txLocked(ctx)
	if err != nil {
		return nil, err
	}
	return tx.ExecContext(ctx, query, args...)
}

// QueryContext runs a query in the current transaction. The caller must
// close the returned rows.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if c.released.Load() {
		return nil, ErrConnClosed
	}
	c.e.mu.Lock()
	defer c.e.mu.Unlock()

	tx, err := c.e.txLocked(ctx)
	if err != nil {
		return nil, err
	}
	return tx.QueryContext(ctx, query, args...)
}

// Commit commits the current unit of work. With no statement run since the
// last commit or rollback it does nothing.
func (c *Conn) Commit() error {
	if c.released.Load() {
		return ErrConnClosed
	}
	c.e.mu.Lock()
	defer c.e.mu.Unlock()

	if c.e.tx == nil {
		return nil
	}
	err := c.e.tx.Commit()
	c.e.tx = nil
	if err != nil {
		return fmt.Errorf("committing conn %d: %w", c.e.id, err)
	}
	return nil
}

// Rollback discards the current unit of work.
func (c *Conn) Rollback() error {
	if c.released.Load() {
		return ErrConnClosed
	}
	c.e.mu.Lock()
	defer c.e.mu.Unlock()

	if c.e.tx == nil {
		return nil
	}
	err := c.e.tx.Rollback()
	c.e.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back conn %d: %w", c.e.id, err)
	}
	return nil
}

// HealthCheck verifies the connection answers a query.
func (c *Conn) HealthCheck(ctx context.Context) error {
	if c.released.Load() {
		return ErrConnClosed
	}
	if err := c.e.ping(ctx); err != nil {
		return fmt.Errorf("pinging conn %d: %w", c.e.id, err)
	}

	rows, err := c.QueryContext(ctx, c.e.dialect.CurrentDateQuery())
	if err != nil {
		return fmt.Errorf("querying conn %d: %w", c.e.id, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return fmt.Errorf("querying conn %d: %w", c.e.id, err)
		}
		return fmt.Errorf("querying conn %d: no row returned", c.e.id)
	}
	return rows.Close()
}

// Close releases the connection: it rolls back uncommitted work and then
// returns the connection to its pool or disconnects it, per the policy.
//
// If the rollback fails the physical connection is discarded instead of
// being reused; if discarding fails too, ErrCorruptConnection is returned.
// A pooled connection always leaves the busy set. Closing twice is a no-op.
func (c *Conn) Close() error {
	if !c.released.CompareAndSwap(false, true) {
		return nil
	}

	healthy, rbErr, fatal := c.e.rollback()
	if rbErr != nil {
		c.logger.Warn("rollback on release failed, discarding connection",
			"pool", c.e.pool, "conn_id", c.e.id, "error", rbErr)
	}

	switch c.policy {
	case ReleaseClose:
		if err := c.e.discard(); err != nil && fatal == nil {
			fatal = fmt.Errorf("%w: conn %d: %v", ErrCorruptConnection, c.e.id, err)
		}
		if c.db != nil {
			c.db.Close() //nolint:errcheck // the only connection is already closed
		}
	default:
		c.pool.release(c.mgr, c.e, healthy, rbErr)
	}
	return fatal
}
