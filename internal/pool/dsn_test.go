package pool

import (
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
)

func TestDataSource(t *testing.T) {
	tests := []struct {
		name       string
		conn       config.ConnConfig
		wantDriver string
		contains   []string
		excludes   []string
	}{
		{
			name:       "postgres url with credentials merged",
			conn:       config.ConnConfig{URL: "postgres://db:5432/app?sslmode=disable", User: "svc", Pass: "p@ss"},
			wantDriver: "postgres",
			contains:   []string{"postgres://svc:p%40ss@db:5432/app", "sslmode=disable"},
		},
		{
			name:       "postgres url keeps embedded user",
			conn:       config.ConnConfig{URL: "postgres://owner@db/app", Pass: "secret"},
			wantDriver: "postgres",
			contains:   []string{"owner:secret@db"},
		},
		{
			name:       "postgres key value form",
			conn:       config.ConnConfig{Driver: "postgres", URL: "host=db dbname=app", User: "svc", Pass: "a b"},
			wantDriver: "postgres",
			contains:   []string{"host=db dbname=app user=svc password='a b'"},
		},
		{
			name:       "mysql url",
			conn:       config.ConnConfig{URL: "mysql://db:3306/shop?charset=utf8mb4", User: "app", Pass: "secret"},
			wantDriver: "mysql",
			contains:   []string{"app:secret@tcp(db:3306)/shop", "parseTime=true", "charset=utf8mb4"},
		},
		{
			name:       "mysql native dsn",
			conn:       config.ConnConfig{Driver: "mysql", URL: "root@tcp(localhost:3306)/test", Pass: "pw"},
			wantDriver: "mysql",
			contains:   []string{"root:pw@tcp(localhost:3306)/test", "parseTime=true"},
		},
		{
			name:       "oracle url",
			conn:       config.ConnConfig{URL: "oracle://scott:tiger@db:1521/ORCL"},
			wantDriver: "godror",
			contains:   []string{`connectString="db:1521/ORCL"`, `user="scott"`, `password="tiger"`},
		},
		{
			name:       "sqlite prefix stripped",
			conn:       config.ConnConfig{URL: "sqlite:/var/lib/app.db", User: "ignored"},
			wantDriver: "sqlite3",
			contains:   []string{"/var/lib/app.db"},
			excludes:   []string{"sqlite:", "ignored"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driverName, dsn, err := dataSource(tt.conn)
			if err != nil {
				t.Fatalf("dataSource() error = %v", err)
			}
			if driverName != tt.wantDriver {
				t.Errorf("dataSource() driver = %q, want %q", driverName, tt.wantDriver)
			}
			for _, s := range tt.contains {
				if !strings.Contains(dsn, s) {
					t.Errorf("dataSource() dsn = %q, missing %q", dsn, s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(dsn, s) {
					t.Errorf("dataSource() dsn = %q, should not contain %q", dsn, s)
				}
			}
		})
	}
}

func TestDataSource_UnknownDriver(t *testing.T) {
	if _, _, err := dataSource(config.ConnConfig{URL: "db2://h/db"}); err == nil {
		t.Error("dataSource() expected error for an unrecognised url")
	}
}

func TestRedact(t *testing.T) {
	got := redact("postgres://svc:secret@db/app")
	if strings.Contains(got, "secret") {
		t.Errorf("redact() = %q still holds the password", got)
	}
	if redact("/var/lib/app.db") != "/var/lib/app.db" {
		t.Error("redact() changed a plain path")
	}
}
