package migrate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nerrad567/gray-logic-dbcore/internal/engine"
	"github.com/nerrad567/gray-logic-dbcore/internal/row"
	"github.com/nerrad567/gray-logic-dbcore/internal/sqlbuild"
	"github.com/nerrad567/gray-logic-dbcore/internal/sqltext"
)

// Table records applied migration versions.
const Table = "dbcore_schema_migrations"

const createTable = `CREATE TABLE dbcore_schema_migrations (
	version    VARCHAR(64)  NOT NULL PRIMARY KEY,
	name       VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP    NOT NULL
)`

const selectApplied = "SELECT version, name, applied_at FROM dbcore_schema_migrations ORDER BY version"

// Conn is a pooled connection whose unit of work the migrator commits.
// *pool.Conn implements it.
type Conn interface {
	engine.Conn
	Commit() error
	Rollback() error
}

// Logger is the logging interface used by the migrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Record is a row of the migrations table.
type Record struct {
	Version   string
	Name      string
	AppliedAt time.Time
}

// Migrator applies a fixed set of migrations through an engine.
type Migrator struct {
	eng        *engine.Engine
	migrations []Migration
	logger     Logger
}

// New returns a migrator for migs. The slice is copied and sorted by version.
func New(eng *engine.Engine, migs []Migration) *Migrator {
	sorted := make([]Migration, len(migs))
	copy(sorted, migs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Migrator{eng: eng, migrations: sorted, logger: noopLogger{}}
}

// SetLogger sets the logger for the migrator.
func (m *Migrator) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	m.logger = logger
}

// Up applies every pending migration in version order and returns how many
// were applied. Work already pending on c is committed with the first
// migration.
func (m *Migrator) Up(ctx context.Context, c Conn) (int, error) {
	if err := m.ensureTable(ctx, c); err != nil {
		return 0, err
	}
	_, pending, err := m.status(ctx, c)
	if err != nil {
		return 0, err
	}

	for i, mig := range pending {
		start := time.Now()
		if err := m.apply(ctx, c, mig); err != nil {
			m.rollback(c, mig.Version)
			return i, fmt.Errorf("applying migration %s (%s): %w", mig.Version, mig.Name, err)
		}
		m.logger.Info("migration applied",
			"pool", c.Pool(),
			"version", mig.Version,
			"name", mig.Name,
			"elapsed", time.Since(start),
		)
	}
	return len(pending), nil
}

// Down reverts the most recently applied migration and returns its record,
// or nil if nothing is applied.
func (m *Migrator) Down(ctx context.Context, c Conn) (*Record, error) {
	applied, _, err := m.status(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(applied) == 0 {
		return nil, nil
	}
	latest := applied[len(applied)-1]

	mig, ok := m.find(latest.Version)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVersion, latest.Version)
	}
	if mig.DownSQL == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoDownSQL, latest.Version)
	}

	if err := m.revert(ctx, c, mig); err != nil {
		m.rollback(c, mig.Version)
		return nil, fmt.Errorf("reverting migration %s (%s): %w", mig.Version, mig.Name, err)
	}
	m.logger.Info("migration reverted", "pool", c.Pool(), "version", mig.Version, "name", mig.Name)
	return &latest, nil
}

// Status returns the applied records and the pending migrations. It does
// not create the migrations table.
func (m *Migrator) Status(ctx context.Context, c Conn) (applied []Record, pending []Migration, err error) {
	return m.status(ctx, c)
}

func (m *Migrator) status(ctx context.Context, c Conn) ([]Record, []Migration, error) {
	applied, err := m.applied(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	done := make(map[string]bool, len(applied))
	for _, r := range applied {
		done[r.Version] = true
		if _, ok := m.find(r.Version); !ok {
			m.logger.Warn("applied migration has no script", "pool", c.Pool(), "version", r.Version)
		}
	}

	var pending []Migration
	for _, mig := range m.migrations {
		if !done[mig.Version] {
			pending = append(pending, mig)
		}
	}
	return applied, pending, nil
}

// applied reads the migrations table. A missing table means nothing is applied.
func (m *Migrator) applied(ctx context.Context, c Conn) ([]Record, error) {
	if _, err := m.eng.TableInfo(ctx, c, Table); err != nil {
		if errors.Is(err, engine.ErrTableNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading migrations table: %w", err)
	}

	rows, err := m.eng.SelectAll(ctx, c, sqlbuild.New(selectApplied))
	if err != nil {
		return nil, fmt.Errorf("querying migrations: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, r := range rows {
		rec := Record{Version: r.Text("version"), Name: r.Text("name")}
		// The stamp is written by the database itself; an unparsable one
		// leaves AppliedAt zero.
		rec.AppliedAt, _ = r.Time("applied_at") //nolint:errcheck // format is controlled by the dialect
		records = append(records, rec)
	}
	return records, nil
}

// ensureTable creates and commits the migrations table if it is missing.
func (m *Migrator) ensureTable(ctx context.Context, c Conn) error {
	_, err := m.eng.TableInfo(ctx, c, Table)
	if err == nil {
		return nil
	}
	if !errors.Is(err, engine.ErrTableNotFound) {
		return fmt.Errorf("reading migrations table: %w", err)
	}

	if _, err := m.eng.Exec(ctx, c, sqlbuild.Bound{SQL: createTable}); err != nil {
		m.rollback(c, "")
		return fmt.Errorf("creating migrations table: %w", err)
	}
	if err := c.Commit(); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}
	m.logger.Info("migrations table created", "pool", c.Pool())
	return nil
}

func (m *Migrator) apply(ctx context.Context, c Conn, mig Migration) error {
	if err := m.script(ctx, c, mig.UpSQL); err != nil {
		return err
	}

	rec := row.New().
		SetText("version", mig.Version).
		SetText("name", mig.Name)
	ok, err := m.eng.InsertRowWithStamp(ctx, c, Table, rec, "applied_at")
	if err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRecorded, mig.Version)
	}
	return c.Commit()
}

func (m *Migrator) revert(ctx context.Context, c Conn, mig Migration) error {
	if err := m.script(ctx, c, mig.DownSQL); err != nil {
		return err
	}

	ok, err := m.eng.DeleteOneByPK(ctx, c, Table, row.New().SetText("version", mig.Version))
	if err != nil {
		return fmt.Errorf("removing migration record: %w", err)
	}
	if !ok {
		return fmt.Errorf("removing migration record: %s not recorded", mig.Version)
	}
	return c.Commit()
}

// script executes each statement of a migration script in turn.
func (m *Migrator) script(ctx context.Context, c Conn, text string) error {
	for i, stmt := range sqltext.Split(text) {
		if _, err := m.eng.Exec(ctx, c, sqlbuild.Bound{SQL: stmt}); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

func (m *Migrator) rollback(c Conn, version string) {
	if err := c.Rollback(); err != nil {
		m.logger.Error("rolling back migration failed", "pool", c.Pool(), "version", version, "error", err)
	}
}

func (m *Migrator) find(version string) (Migration, bool) {
	for _, mig := range m.migrations {
		if mig.Version == version {
			return mig, true
		}
	}
	return Migration{}, false
}
