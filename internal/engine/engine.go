package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-dbcore/internal/dialect"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbcore/internal/sqlbuild"
)

// Conn is the connection the engine executes on. *pool.Conn implements it.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Dialect() dialect.Dialect
	ID() uint64
	Pool() string
}

// Engine executes statements and generates CRUD SQL from table metadata.
//
// An Engine holds only settings; it is built once at startup and shared.
// Every operation takes the connection to run on, which stays owned by the
// caller together with its transaction.
//
// Thread Safety:
//   - All operations are safe for concurrent use on different connections.
//   - SetLogger and SetObserver must be called before first use.
type Engine struct {
	slowWarn  time.Duration
	fetchSize int
	logger    Logger
	observer  Observer
}

// New creates an engine with the statement settings from configuration.
func New(cfg config.StatementsConfig) *Engine {
	fetch := cfg.FetchSize
	if fetch <= 0 {
		fetch = dialect.DefaultFetchSize
	}
	return &Engine{
		slowWarn:  cfg.SlowWarn(),
		fetchSize: fetch,
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the engine.
func (e *Engine) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	e.logger = logger
}

// SetObserver registers an observer for executed statements.
func (e *Engine) SetObserver(o Observer) {
	e.observer = o
}

// FetchSize returns the default driver page size for streaming reads.
func (e *Engine) FetchSize() int { return e.fetchSize }

// prepared is a statement ready for the driver.
type prepared struct {
	sql    string // as written, with "?" markers
	driver string // in the dialect's placeholder syntax
	args   []any  // converted by the dialect
}

// prepare checks the marker count, converts bind values and rebinds
// placeholders for the connection's dialect.
func prepare(d dialect.Dialect, stmt sqlbuild.Statement) (prepared, error) {
	query, raw, err := stmt.Query()
	if err != nil {
		return prepared{}, err
	}
	args := make([]any, len(raw))
	for i, a := range raw {
		v, err := d.BindValue(a)
		if err != nil {
			return prepared{}, fmt.Errorf("binding value %d of %q: %w", i+1, query, err)
		}
		args[i] = v
	}
	return prepared{sql: query, driver: d.Rebind(query), args: args}, nil
}

// query runs a statement expected to return rows.
func (e *Engine) query(ctx context.Context, c Conn, stmt sqlbuild.Statement) (*sql.Rows, prepared, error) {
	p, err := prepare(c.Dialect(), stmt)
	if err != nil {
		return nil, p, err
	}

	start := time.Now()
	rows, err := c.QueryContext(ctx, p.driver, p.args...)
	if err != nil {
		err = e.wrap(c, p, err)
	}
	e.observe(c, KindQuery, p, start, -1, err)
	return rows, p, err
}

// exec runs a statement and returns the affected row count.
func (e *Engine) exec(ctx context.Context, c Conn, stmt sqlbuild.Statement) (int64, error) {
	p, err := prepare(c.Dialect(), stmt)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	var affected int64
	res, err := c.ExecContext(ctx, p.driver, p.args...)
	if err == nil {
		affected, err = res.RowsAffected()
	}
	if err != nil {
		err = e.wrap(c, p, err)
	}
	e.observe(c, KindExec, p, start, affected, err)
	return affected, err
}

// Exec runs an arbitrary statement, e.g. DDL or a hand-written UPDATE, and
// returns the affected row count.
func (e *Engine) Exec(ctx context.Context, c Conn, stmt sqlbuild.Statement) (int64, error) {
	return e.exec(ctx, c, stmt)
}

func (e *Engine) wrap(c Conn, p prepared, err error) error {
	return &ExecError{SQL: p.sql, Args: p.args, Pool: c.Pool(), ConnID: c.ID(), Err: err}
}

// observe logs the statement, warns when it was slow and notifies the observer.
func (e *Engine) observe(c Conn, kind string, p prepared, start time.Time, rows int64, err error) {
	elapsed := time.Since(start)
	slow := e.slowWarn > 0 && elapsed >= e.slowWarn

	if slow {
		e.logger.Warn("slow statement",
			"elapsed", elapsed,
			"sql", p.sql,
			"args", p.args,
			"pool", c.Pool(),
			"conn_id", c.ID(),
		)
	} else {
		e.logger.Debug("statement executed",
			"kind", kind,
			"elapsed", elapsed,
			"sql", p.sql,
			"pool", c.Pool(),
			"conn_id", c.ID(),
		)
	}

	if e.observer == nil {
		return
	}
	e.observer.Statement(StatementEvent{
		Pool:    c.Pool(),
		ConnID:  c.ID(),
		Dialect: c.Dialect().Name(),
		Kind:    kind,
		SQL:     p.sql,
		Elapsed: elapsed,
		Rows:    rows,
		Slow:    slow,
		Err:     err,
		Time:    start,
	})
}
