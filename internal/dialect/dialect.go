package dialect

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
	"github.com/nerrad567/gray-logic-dbcore/internal/sqltext"
)

// Engine names returned by Dialect.Name.
const (
	NameSQLite   = "sqlite"
	NamePostgres = "postgres"
	NameMySQL    = "mysql"
	NameOracle   = "oracle"
)

// DefaultFetchSize is the number of rows a streaming read asks the driver to
// pull per round trip when the caller does not say otherwise.
const DefaultFetchSize = 500

// Dialect is the per-engine strategy consulted by the pool and the engine.
// Implementations are stateless and safe for concurrent use.
type Dialect interface {
	// Name returns the engine identifier, e.g. "postgres".
	Name() string

	// MapType maps a native column type name (as reported by the driver or
	// the catalog) to a semantic type.
	MapType(typeName string) row.Type

	// BindValue converts a bind value into what the driver should receive.
	// row.Value is unwrapped; temporal values are text-encoded where the
	// engine stores them as text.
	BindValue(v any) (any, error)

	// IsUniqueViolation reports whether err is a unique or primary key
	// constraint violation.
	IsUniqueViolation(err error) bool

	// CurrentTimestamp returns the SQL expression for the current timestamp
	// in the representation the engine stores.
	CurrentTimestamp() string

	// CurrentDateQuery returns a query yielding the current date as its only
	// column of its only row.
	CurrentDateQuery() string

	// Rebind rewrites "?" markers into the engine's placeholder syntax.
	Rebind(query string) string

	// ColumnsQuery returns a catalog query taking the table name as its only
	// bind value and yielding (column name, type name) in column order.
	ColumnsQuery() string

	// PrimaryKeyQuery returns a catalog query taking the table name as its
	// only bind value and yielding primary key column names in key order.
	PrimaryKeyQuery() string

	// NormalizeTable returns the table name as the catalog stores it.
	NormalizeTable(name string) string

	// FetchSize returns the driver page size to use for a requested size.
	// Zero means the driver decides.
	FetchSize(requested int) int

	// NeedsSavepoint reports whether a failed statement aborts the whole
	// transaction, so a statement whose failure is expected must run inside
	// a savepoint.
	NeedsSavepoint() bool
}

// Detect returns the dialect for a driver instance, typically db.Driver().
func Detect(drv driver.Driver) (Dialect, error) {
	switch drv.(type) {
	case *sqlite3.SQLiteDriver, *sqlite.Driver:
		return SQLite{}, nil
	case *pq.Driver:
		return Postgres{}, nil
	case *mysql.MySQLDriver:
		return MySQL{}, nil
	}

	// Oracle drivers are not linked into this module; recognise them by type.
	typeName := strings.ToLower(fmt.Sprintf("%T", drv))
	if strings.Contains(typeName, "godror") || strings.Contains(typeName, "go_ora") {
		return Oracle{}, nil
	}
	return nil, fmt.Errorf("%w: driver %T", ErrUnsupported, drv)
}

// ForDriverName returns the dialect for a database/sql driver name as used in
// configuration, e.g. "sqlite3" or "postgres".
func ForDriverName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite3", "sqlite":
		return SQLite{}, nil
	case "postgres", "postgresql", "pq":
		return Postgres{}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	case "godror", "oracle", "go_ora":
		return Oracle{}, nil
	}
	return nil, fmt.Errorf("%w: driver name %q", ErrUnsupported, name)
}

// bindNative unwraps row values for engines with native temporal binding.
func bindNative(v any) (any, error) {
	switch x := v.(type) {
	case row.Value:
		return x.Interface(), nil
	case *row.Value:
		if x == nil {
			return nil, nil
		}
		return x.Interface(), nil
	}
	return v, nil
}

// bindText unwraps row values and renders temporal values as fixed-width
// ISO text.
func bindText(v any) (any, error) {
	switch x := v.(type) {
	case *row.Value:
		if x == nil {
			return nil, nil
		}
		return bindText(*x)
	case row.Value:
		if x.IsNull() {
			return nil, nil
		}
		switch x.Type() {
		case row.Date, row.Timestamp:
			return x.String(), nil
		}
		return x.Interface(), nil
	case time.Time:
		return row.FormatTimestamp(row.TruncateTimestamp(x)), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return row.FormatTimestamp(row.TruncateTimestamp(*x)), nil
	}
	return v, nil
}

// numbered rebinds markers to prefix+ordinal placeholders.
func numbered(query, prefix string) string {
	if sqltext.Markers(query) == 0 {
		return query
	}
	return sqltext.Rewrite(query, sqltext.Numbered(prefix))
}

// baseType lowercases a type name and drops any length or precision
// suffix, so "NUMERIC(10,2)" becomes "numeric".
func baseType(typeName string) string {
	t := strings.ToLower(strings.TrimSpace(typeName))
	if i := strings.IndexByte(t, '('); i >= 0 {
		rest := ""
		if j := strings.IndexByte(t[i:], ')'); j >= 0 {
			rest = t[i+j+1:]
		}
		t = strings.TrimSpace(t[:i]) + rest
	}
	return strings.TrimSpace(t)
}

// hasAny reports whether s contains any of the substrings.
func hasAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
