package sqltext

import "testing"

func TestMarkers(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"none", "SELECT 1", 0},
		{"plain", "SELECT * FROM t WHERE a = ? AND b = ?", 2},
		{"inside literal", "SELECT '?' FROM t WHERE a = ?", 1},
		{"escaped quote", "SELECT 'it''s ?' , ?", 1},
		{"double quoted ident", `SELECT "a?" FROM t WHERE x = ?`, 1},
		{"line comment", "SELECT ? -- why?\nFROM t", 1},
		{"block comment", "SELECT /* ? */ ?", 1},
		{"dollar body", "SELECT $$ ? $$, ?", 1},
		{"unterminated literal", "SELECT ? , 'abc ?", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Markers(tt.query); got != tt.want {
				t.Errorf("Markers(%q) = %d, want %d", tt.query, got, tt.want)
			}
		})
	}
}

func TestRewrite(t *testing.T) {
	got := Rewrite("UPDATE t SET a = ?, b = '?' WHERE c = ? AND d = $1x", Numbered("$"))
	want := "UPDATE t SET a = $1, b = '?' WHERE c = $2 AND d = $1x"
	if got != want {
		t.Errorf("Rewrite() = %q, want %q", got, want)
	}

	got = Rewrite("a = ? OR b = ?", Numbered(":"))
	if got != "a = :1 OR b = :2" {
		t.Errorf("Rewrite(:) = %q", got)
	}
}

func TestCollapse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"SELECT  a,\n\t b", "SELECT a, b"},
		{"  WHERE x = 1  ", " WHERE x = 1 "},
		{"a = 'two  spaces'", "a = 'two  spaces'"},
		{"a\n-- note  here\n  b", "a -- note  here\n b"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Collapse(tt.in); got != tt.want {
			t.Errorf("Collapse(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsWordByte(t *testing.T) {
	for _, c := range []byte("aZ9_?'") {
		if !IsWordByte(c) {
			t.Errorf("IsWordByte(%q) = false, want true", c)
		}
	}
	for _, c := range []byte("(),= ") {
		if IsWordByte(c) {
			t.Errorf("IsWordByte(%q) = true, want false", c)
		}
	}
}

func TestSplit(t *testing.T) {
	script := `-- users
CREATE TABLE t_user (user_id TEXT PRIMARY KEY, note TEXT DEFAULT 'a;b');

/* seed */
INSERT INTO t_user (user_id) VALUES ('U001') ;
CREATE FUNCTION f() RETURNS int AS $$ BEGIN RETURN 1; END $$ LANGUAGE plpgsql;
-- trailing comment
`
	got := Split(script)
	want := []string{
		"-- users\nCREATE TABLE t_user (user_id TEXT PRIMARY KEY, note TEXT DEFAULT 'a;b')",
		"/* seed */\nINSERT INTO t_user (user_id) VALUES ('U001')",
		"CREATE FUNCTION f() RETURNS int AS $$ BEGIN RETURN 1; END $$ LANGUAGE plpgsql",
	}
	if len(got) != len(want) {
		t.Fatalf("Split() returned %d statements, want %d: %q", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("statement %d = %q, want %q", i, got[i], want[i])
		}
	}

	if got := Split("  ;; -- nothing\n"); len(got) != 0 {
		t.Errorf("Split(empty) = %q, want none", got)
	}
}
