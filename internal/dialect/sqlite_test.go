package dialect

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
)

// openSQLite opens an in-memory database on the named driver with a t_user
// table keyed on user_id.
func openSQLite(t *testing.T, driverName string) *sql.DB {
	t.Helper()

	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		t.Fatalf("sql.Open() error = %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE t_user (
		user_id TEXT PRIMARY KEY,
		email   TEXT UNIQUE,
		upd_ts  DATETIME
	)`)
	if err != nil {
		t.Fatalf("creating table: %v", err)
	}
	return db
}

func TestSQLite_IsUniqueViolation(t *testing.T) {
	for _, driverName := range []string{"sqlite3", "sqlite"} {
		t.Run(driverName, func(t *testing.T) {
			db := openSQLite(t, driverName)
			d := SQLite{}

			if _, err := db.Exec(`INSERT INTO t_user (user_id, email) VALUES ('U001', 'a@example.com')`); err != nil {
				t.Fatalf("first insert error = %v", err)
			}

			_, err := db.Exec(`INSERT INTO t_user (user_id, email) VALUES ('U001', 'b@example.com')`)
			if err == nil || !d.IsUniqueViolation(err) {
				t.Errorf("duplicate primary key: IsUniqueViolation(%v) = false", err)
			}

			_, err = db.Exec(`INSERT INTO t_user (user_id, email) VALUES ('U002', 'a@example.com')`)
			if err == nil || !d.IsUniqueViolation(err) {
				t.Errorf("duplicate unique column: IsUniqueViolation(%v) = false", err)
			}

			_, err = db.Exec(`INSERT INTO t_missing (x) VALUES (1)`)
			if err == nil || d.IsUniqueViolation(err) {
				t.Errorf("missing table: IsUniqueViolation(%v) = true", err)
			}
		})
	}
}

func TestSQLite_CurrentTimestampHasSixDigits(t *testing.T) {
	db := openSQLite(t, "sqlite3")
	d := SQLite{}

	var got string
	if err := db.QueryRow("SELECT " + d.CurrentTimestamp()).Scan(&got); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if len(got) != len(row.TimestampLayout) {
		t.Fatalf("CurrentTimestamp() = %q, want layout %q", got, row.TimestampLayout)
	}
	ts, err := row.ParseTimestamp(got)
	if err != nil {
		t.Fatalf("ParseTimestamp(%q) error = %v", got, err)
	}
	if time.Since(ts) > time.Minute || time.Since(ts) < -time.Minute {
		t.Errorf("CurrentTimestamp() = %v, not near now", ts)
	}
}

func TestSQLite_BridgeRoundTrip(t *testing.T) {
	db := openSQLite(t, "sqlite3")
	d := SQLite{}
	ctx := context.Background()

	want := row.NewTimestamp(time.Date(2026, 5, 6, 7, 8, 9, 987654321, time.FixedZone("X", 3600)))
	arg, err := d.BindValue(want)
	if err != nil {
		t.Fatalf("BindValue() error = %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO t_user (user_id, upd_ts) VALUES ('U001', ?)`, arg); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT upd_ts FROM t_user WHERE upd_ts = ?`, arg)
	if err != nil {
		t.Fatalf("select error = %v", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		t.Fatalf("ColumnTypes() error = %v", err)
	}
	typ := d.MapType(types[0].DatabaseTypeName())
	if typ != row.TimestampText {
		t.Fatalf("MapType(%q) = %s", types[0].DatabaseTypeName(), typ)
	}

	if !rows.Next() {
		t.Fatal("stored timestamp did not compare equal to the bound value")
	}
	var src any
	if err := rows.Scan(&src); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	got, err := row.Convert(typ, src)
	if err != nil {
		t.Fatalf("Convert() error = %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("round trip = %s, want %s", got, want)
	}
}

func TestSQLite_CatalogQueries(t *testing.T) {
	db := openSQLite(t, "sqlite3")
	d := SQLite{}

	rows, err := db.Query(d.ColumnsQuery(), d.NormalizeTable(" t_user "))
	if err != nil {
		t.Fatalf("ColumnsQuery error = %v", err)
	}
	var names []string
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			t.Fatalf("Scan() error = %v", err)
		}
		names = append(names, name)
	}
	rows.Close()
	if len(names) != 3 || names[0] != "user_id" || names[2] != "upd_ts" {
		t.Errorf("columns = %v", names)
	}

	var pk string
	if err := db.QueryRow(d.PrimaryKeyQuery(), "t_user").Scan(&pk); err != nil {
		t.Fatalf("PrimaryKeyQuery error = %v", err)
	}
	if pk != "user_id" {
		t.Errorf("primary key = %q", pk)
	}

	var today string
	if err := db.QueryRow(d.CurrentDateQuery()).Scan(&today); err != nil {
		t.Fatalf("CurrentDateQuery error = %v", err)
	}
	if _, err := row.ParseDate(today); err != nil {
		t.Errorf("CurrentDateQuery() = %q: %v", today, err)
	}
}
