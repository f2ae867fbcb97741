package dialect

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
)

// mysqlDupEntry is ER_DUP_ENTRY.
const mysqlDupEntry = 1062

// MySQL is the dialect for MySQL and MariaDB.
type MySQL struct{}

// Name implements Dialect.
func (MySQL) Name() string { return NameMySQL }

// MapType implements Dialect.
func (MySQL) MapType(typeName string) row.Type {
	t := strings.TrimPrefix(baseType(typeName), "unsigned ")
	t = strings.TrimSpace(strings.TrimSuffix(t, " unsigned"))
	switch {
	case t == "date":
		return row.Date
	case t == "datetime", t == "timestamp":
		return row.Timestamp
	case mysqlNumeric[t]:
		return row.Decimal
	}
	return row.Text
}

// mysqlNumeric holds the numeric type names. point and the other spatial
// types read as text.
var mysqlNumeric = map[string]bool{
	"tinyint": true, "smallint": true, "mediumint": true,
	"int": true, "integer": true, "bigint": true,
	"decimal": true, "numeric": true, "dec": true, "fixed": true,
	"float": true, "double": true, "double precision": true, "real": true,
	"year": true,
}

// BindValue implements Dialect.
func (MySQL) BindValue(v any) (any, error) { return bindNative(v) }

// IsUniqueViolation implements Dialect.
func (MySQL) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDupEntry
}

// CurrentTimestamp implements Dialect. DATETIME(6) columns keep microseconds.
func (MySQL) CurrentTimestamp() string { return "CURRENT_TIMESTAMP(6)" }

// CurrentDateQuery implements Dialect.
func (MySQL) CurrentDateQuery() string { return "SELECT CURRENT_DATE" }

// Rebind implements Dialect. MySQL accepts "?" natively.
func (MySQL) Rebind(query string) string { return query }

// ColumnsQuery implements Dialect.
func (MySQL) ColumnsQuery() string {
	return "SELECT column_name, data_type FROM information_schema.columns" +
		" WHERE table_schema = DATABASE() AND table_name = ?" +
		" ORDER BY ordinal_position"
}

// PrimaryKeyQuery implements Dialect.
func (MySQL) PrimaryKeyQuery() string {
	return "SELECT column_name FROM information_schema.key_column_usage" +
		" WHERE table_schema = DATABASE() AND table_name = ? AND constraint_name = 'PRIMARY'" +
		" ORDER BY ordinal_position"
}

// NormalizeTable implements Dialect.
func (MySQL) NormalizeTable(name string) string { return strings.TrimSpace(name) }

// FetchSize implements Dialect. The text protocol streams rows off the socket
// as they are read, so there is no page to size.
func (MySQL) FetchSize(int) int { return 0 }

// NeedsSavepoint implements Dialect.
func (MySQL) NeedsSavepoint() bool { return false }
