package dialect

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
)

// sqliteUniqueMessage is the text SQLite puts in unique and primary key
// constraint errors.
const sqliteUniqueMessage = "UNIQUE constraint failed"

// SQLite is the dialect for SQLite. Temporal values are stored as
// fixed-width ISO text, so temporal columns use the text bridge types.
type SQLite struct{}

// Name implements Dialect.
func (SQLite) Name() string { return NameSQLite }

// MapType follows SQLite's declared-type affinity rules, refined for the
// temporal type names SQLite itself does not recognise.
func (SQLite) MapType(typeName string) row.Type {
	t := strings.ToUpper(strings.TrimSpace(typeName))
	switch {
	case strings.Contains(t, "INT"):
		return row.Decimal
	case strings.Contains(t, "DATETIME"), strings.Contains(t, "TIMESTAMP"):
		return row.TimestampText
	case strings.Contains(t, "DATE"):
		return row.DateText
	case hasAny(t, "CHAR", "CLOB", "TEXT"):
		return row.Text
	case hasAny(t, "REAL", "FLOA", "DOUB", "NUMERIC", "DECIMAL", "BOOL"):
		return row.Decimal
	}
	return row.Text
}

// BindValue implements Dialect. Dates and timestamps are bound as text.
func (SQLite) BindValue(v any) (any, error) { return bindText(v) }

// IsUniqueViolation recognises both the cgo and the pure-Go driver errors.
func (SQLite) IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var cgoErr sqlite3.Error
	if errors.As(err, &cgoErr) {
		switch cgoErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return true
		}
		return cgoErr.Code == sqlite3.ErrConstraint && strings.Contains(cgoErr.Error(), sqliteUniqueMessage)
	}

	var pureErr *sqlite.Error
	if errors.As(err, &pureErr) {
		switch pureErr.Code() {
		case sqlitelib.SQLITE_CONSTRAINT_UNIQUE, sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
		return pureErr.Code()&0xff == sqlitelib.SQLITE_CONSTRAINT && strings.Contains(pureErr.Error(), sqliteUniqueMessage)
	}

	return strings.Contains(err.Error(), sqliteUniqueMessage)
}

// CurrentTimestamp renders the current UTC time with six fractional digits
// so stored values compare equal to bound ones.
func (SQLite) CurrentTimestamp() string {
	return "strftime('%Y-%m-%d %H:%M:%f000', 'now')"
}

// CurrentDateQuery implements Dialect.
func (SQLite) CurrentDateQuery() string { return "SELECT date('now')" }

// Rebind implements Dialect. SQLite accepts "?" natively.
func (SQLite) Rebind(query string) string { return query }

// ColumnsQuery implements Dialect.
func (SQLite) ColumnsQuery() string {
	return "SELECT name, type FROM pragma_table_info(?) ORDER BY cid"
}

// PrimaryKeyQuery implements Dialect.
func (SQLite) PrimaryKeyQuery() string {
	return "SELECT name FROM pragma_table_info(?) WHERE pk > 0 ORDER BY pk"
}

// NormalizeTable implements Dialect. SQLite table names are case-insensitive.
func (SQLite) NormalizeTable(name string) string { return strings.TrimSpace(name) }

// FetchSize implements Dialect. SQLite steps one row at a time; there is no
// page to size.
func (SQLite) FetchSize(int) int { return 0 }

// NeedsSavepoint implements Dialect.
func (SQLite) NeedsSavepoint() bool { return false }
