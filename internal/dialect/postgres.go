package dialect

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation pq.ErrorCode = "23505"

// Postgres is the dialect for PostgreSQL.
type Postgres struct{}

// Name implements Dialect.
func (Postgres) Name() string { return NamePostgres }

// MapType accepts both driver type names (INT4, TIMESTAMPTZ) and catalog
// data_type values (integer, timestamp without time zone).
func (Postgres) MapType(typeName string) row.Type {
	t := baseType(typeName)
	switch {
	case t == "date":
		return row.Date
	case strings.HasPrefix(t, "timestamp"):
		return row.Timestamp
	case pgNumeric[t]:
		return row.Decimal
	}
	return row.Text
}

// pgNumeric holds the numeric type names. interval, point and the other
// geometric types read as text.
var pgNumeric = map[string]bool{
	"int2": true, "int4": true, "int8": true,
	"smallint": true, "integer": true, "bigint": true,
	"smallserial": true, "serial": true, "bigserial": true,
	"serial2": true, "serial4": true, "serial8": true,
	"numeric": true, "decimal": true, "money": true,
	"real": true, "float4": true, "float8": true, "double precision": true,
}

// BindValue implements Dialect.
func (Postgres) BindValue(v any) (any, error) { return bindNative(v) }

// IsUniqueViolation implements Dialect.
func (Postgres) IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// CurrentTimestamp implements Dialect. CURRENT_TIMESTAMP is fixed at
// transaction start; clock_timestamp() moves with each statement.
func (Postgres) CurrentTimestamp() string { return "clock_timestamp()" }

// CurrentDateQuery implements Dialect.
func (Postgres) CurrentDateQuery() string { return "SELECT CURRENT_DATE" }

// Rebind rewrites markers to $1, $2, ...
func (Postgres) Rebind(query string) string { return numbered(query, "$") }

// ColumnsQuery implements Dialect.
func (Postgres) ColumnsQuery() string {
	return "SELECT column_name, data_type FROM information_schema.columns" +
		" WHERE table_schema = current_schema() AND table_name = ?" +
		" ORDER BY ordinal_position"
}

// PrimaryKeyQuery implements Dialect.
func (Postgres) PrimaryKeyQuery() string {
	return "SELECT k.column_name FROM information_schema.table_constraints c" +
		" JOIN information_schema.key_column_usage k" +
		" ON k.constraint_name = c.constraint_name AND k.table_schema = c.table_schema AND k.table_name = c.table_name" +
		" WHERE c.constraint_type = 'PRIMARY KEY' AND c.table_schema = current_schema() AND c.table_name = ?" +
		" ORDER BY k.ordinal_position"
}

// NormalizeTable folds unquoted names to lower case as PostgreSQL does.
func (Postgres) NormalizeTable(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// FetchSize implements Dialect.
func (Postgres) FetchSize(requested int) int { return clampFetch(requested) }

// clampFetch bounds a requested page size to (0, DefaultFetchSize].
func clampFetch(requested int) int {
	if requested <= 0 || requested > DefaultFetchSize {
		return DefaultFetchSize
	}
	return requested
}

// NeedsSavepoint implements Dialect. Any error aborts the transaction until
// it is rolled back.
func (Postgres) NeedsSavepoint() bool { return true }
