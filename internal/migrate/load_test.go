package migrate

import (
	"embed"
	"errors"
	"testing"
	"testing/fstest"
)

//go:embed testdata/*.sql testdata/README.md
var testdataFS embed.FS

func TestLoad(t *testing.T) {
	migs, err := Load(testdataFS, "testdata")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(migs) != 2 {
		t.Fatalf("Load() returned %d migrations, want 2", len(migs))
	}

	first, second := migs[0], migs[1]
	if first.Version != "20260118_120000" || first.Name != "create_users" {
		t.Errorf("first = %s %s, want 20260118_120000 create_users", first.Version, first.Name)
	}
	if first.DownSQL == "" {
		t.Error("first migration should carry its down script")
	}
	if second.Version != "20260119_090000" || second.Name != "create_orders" {
		t.Errorf("second = %s %s, want 20260119_090000 create_orders", second.Version, second.Name)
	}
	if second.DownSQL != "" {
		t.Errorf("second.DownSQL = %q, want empty", second.DownSQL)
	}
}

func TestLoad_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"m/20260101_000000_a.up.sql": {Data: []byte("SELECT 1")},
		"m/20260101_000000_b.up.sql": {Data: []byte("SELECT 2")},
	}
	if _, err := Load(fsys, "m"); !errors.Is(err, ErrDuplicateVersion) {
		t.Errorf("Load() error = %v, want ErrDuplicateVersion", err)
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, err := Load(fstest.MapFS{}, "nowhere"); err == nil {
		t.Error("Load() should fail for a missing directory")
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		version string
		isUp    bool
		ok      bool
	}{
		{"up", "20260118_120000_initial_schema.up.sql", "20260118_120000", true, true},
		{"down", "20260118_120000_initial_schema.down.sql", "20260118_120000", false, true},
		{"no description", "20260118_120000.up.sql", "20260118_120000", true, true},
		{"no direction", "20260118_120000_initial.sql", "", false, false},
		{"not sql", "20260118_120000_initial.up.txt", "", false, false},
		{"no time part", "20260118.up.sql", "", false, false},
		{"non numeric", "v1_init_schema.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseFilename(tt.file)
			if version != tt.version || isUp != tt.isUp || ok != tt.ok {
				t.Errorf("parseFilename(%q) = (%q, %v, %v), want (%q, %v, %v)",
					tt.file, version, isUp, ok, tt.version, tt.isUp, tt.ok)
			}
		})
	}
}

func TestMigrationName(t *testing.T) {
	tests := map[string]string{
		"20260118_120000_initial_schema.up.sql":   "initial_schema",
		"20260118_120000_initial_schema.down.sql": "initial_schema",
		"20260118_120000.up.sql":                  "20260118_120000",
	}
	for file, want := range tests {
		if got := migrationName(file); got != want {
			t.Errorf("migrationName(%q) = %q, want %q", file, got, want)
		}
	}
}
