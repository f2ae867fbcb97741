// Package dialect hides the differences between the database engines the
// core talks to.
//
// Each supported engine has one Dialect implementation. The pool picks it
// once per physical connection from the connection's driver and every
// dependent call (type mapping, bind coercion, unique-violation detection,
// timestamp SQL, catalog lookups) goes through it, so no caller ever
// branches on an engine name.
//
// Supported engines:
//   - SQLite via github.com/mattn/go-sqlite3 or modernc.org/sqlite
//   - PostgreSQL via github.com/lib/pq
//   - MySQL and MariaDB via github.com/go-sql-driver/mysql
//   - Oracle via any driver registered as "godror" or "oracle"
//
// Type Mapping:
//
// Every numeric column maps to row.Decimal. SQLite has no temporal storage
// class, so its DATE and DATETIME/TIMESTAMP declared types map to the text
// bridge types row.DateText and row.TimestampText; values are written as
// fixed-width ISO text with exactly six fractional digits and parsed back on
// read. Oracle's DATE carries a time of day and maps to row.Timestamp.
//
// Usage:
//
//	d, err := dialect.Detect(db.Driver())
//	if err != nil {
//	    return err
//	}
//	if d.IsUniqueViolation(execErr) {
//	    // duplicate key, not a failure
//	}
package dialect
