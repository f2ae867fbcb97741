package dialect

import (
	"strings"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
)

// oracleUniqueCode is ORA-00001, unique constraint violated.
const oracleUniqueCode = "ORA-00001"

// Oracle is the dialect for Oracle Database.
//
// No Oracle driver is linked into this module; the dialect is selected when
// one is registered by the embedding binary.
type Oracle struct{}

// Name implements Dialect.
func (Oracle) Name() string { return NameOracle }

// MapType implements Dialect. Oracle DATE carries a time of day.
func (Oracle) MapType(typeName string) row.Type {
	t := strings.ToUpper(strings.TrimSpace(typeName))
	switch {
	case t == "DATE", strings.HasPrefix(t, "TIMESTAMP"):
		return row.Timestamp
	case hasAny(t, "NUMBER", "FLOAT", "INTEGER", "BINARY_DOUBLE", "BINARY_FLOAT", "DECIMAL"):
		return row.Decimal
	}
	return row.Text
}

// BindValue implements Dialect.
func (Oracle) BindValue(v any) (any, error) { return bindNative(v) }

// IsUniqueViolation matches the ORA code in the driver message; Oracle
// drivers do not share an error type.
func (Oracle) IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), oracleUniqueCode)
}

// CurrentTimestamp implements Dialect.
func (Oracle) CurrentTimestamp() string { return "SYSTIMESTAMP" }

// CurrentDateQuery implements Dialect.
func (Oracle) CurrentDateQuery() string { return "SELECT TRUNC(SYSDATE) FROM DUAL" }

// Rebind rewrites markers to :1, :2, ...
func (Oracle) Rebind(query string) string { return numbered(query, ":") }

// ColumnsQuery implements Dialect.
func (Oracle) ColumnsQuery() string {
	return "SELECT column_name, data_type FROM user_tab_columns WHERE table_name = ? ORDER BY column_id"
}

// PrimaryKeyQuery implements Dialect.
func (Oracle) PrimaryKeyQuery() string {
	return "SELECT cc.column_name FROM user_constraints c" +
		" JOIN user_cons_columns cc ON cc.constraint_name = c.constraint_name" +
		" WHERE c.constraint_type = 'P' AND c.table_name = ?" +
		" ORDER BY cc.position"
}

// NormalizeTable folds unquoted names to upper case as Oracle does.
func (Oracle) NormalizeTable(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// FetchSize implements Dialect.
func (Oracle) FetchSize(requested int) int { return clampFetch(requested) }

// NeedsSavepoint implements Dialect.
func (Oracle) NeedsSavepoint() bool { return false }
