package sqlbuild

import (
	"errors"
	"testing"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
)

func TestBuilder_WhitespaceNormalisation(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Builder
		want  string
	}{
		{
			name: "collapses runs",
			build: func() *Builder {
				return New("SELECT  a,\n\t\tb\n FROM   t")
			},
			want: "SELECT a, b FROM t",
		},
		{
			name: "inserts boundary space between words",
			build: func() *Builder {
				return New("SELECT a").Append("FROM t").Append("WHERE x = ?", 1)
			},
			want: "SELECT a FROM t WHERE x = ?",
		},
		{
			name: "keeps a single boundary space",
			build: func() *Builder {
				return New("SELECT a ").Append("  FROM t  ").Append(" WHERE 1 = 1")
			},
			want: "SELECT a FROM t WHERE 1 = 1",
		},
		{
			name: "does not pad punctuation",
			build: func() *Builder {
				return New("f(").Append("a").Append(",").Append("b").Append(")")
			},
			want: "f(a,b)",
		},
		{
			name: "preserves quoted literals",
			build: func() *Builder {
				return New("SELECT 'a   b'").Append("FROM t")
			},
			want: "SELECT 'a   b' FROM t",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.build().SQL(); got != tt.want {
				t.Errorf("SQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuilder_LoopWithDropTrailing(t *testing.T) {
	b := New("INSERT INTO t_user (")
	for _, col := range []string{"user_id", "user_nm"} {
		b.Append(col + ",")
	}
	b.DropTrailing(1).Append(") VALUES (")
	for _, v := range []string{"U001", "A"} {
		b.Append("?,", v)
	}
	b.DropTrailing(1).Append(")")

	query, args, err := b.Query()
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if want := "INSERT INTO t_user (user_id,user_nm) VALUES (?,?)"; query != want {
		t.Errorf("Query() sql = %q, want %q", query, want)
	}
	if len(args) != 2 || args[0] != "U001" || args[1] != "A" {
		t.Errorf("Query() args = %v", args)
	}
}

func TestBuilder_DropTrailingIgnoresBoundarySpace(t *testing.T) {
	b := New("WHERE a = ? AND ", 1)
	b.DropTrailing(len("AND"))
	if got := b.SQL(); got != "WHERE a = ?" {
		t.Errorf("SQL() = %q", got)
	}
	if b.Len() != len("WHERE a = ?") {
		t.Errorf("Len() = %d", b.Len())
	}
	b.DropTrailing(100)
	if b.SQL() != "" {
		t.Errorf("DropTrailing beyond length left %q", b.SQL())
	}
}

func TestBuilder_AppendIfPresent(t *testing.T) {
	var nilStr *string
	name := "A"

	b := New("SELECT * FROM t_user WHERE 1 = 1").
		AppendIfPresent("AND user_nm = ?", "").
		AppendIfPresent("AND user_nm = ?", "   ").
		AppendIfPresent("AND user_nm = ?", nil).
		AppendIfPresent("AND user_nm = ?", nilStr).
		AppendIfPresent("AND user_nm = ?", row.Null(row.Text)).
		AppendIfPresent("AND user_id = ?", row.NewText("U001")).
		AppendIfPresent("AND user_nm = ?", &name).
		AppendIfPresent("AND age = ?", 0)

	query, args, err := b.Query()
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	want := "SELECT * FROM t_user WHERE 1 = 1 AND user_id = ? AND user_nm = ? AND age = ?"
	if query != want {
		t.Errorf("Query() sql = %q, want %q", query, want)
	}
	if len(args) != 3 {
		t.Errorf("Query() args = %v, want 3 values", args)
	}
}

func TestBuilder_AppendBuilder(t *testing.T) {
	where := New("WHERE a = ?", 1).Append("AND b = ?", 2)
	b := New("DELETE FROM t").AppendBuilder(where).AppendBuilder(nil)

	query, args, err := b.Query()
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if query != "DELETE FROM t WHERE a = ? AND b = ?" || len(args) != 2 {
		t.Errorf("Query() = %q, %v", query, args)
	}
	if b.Markers() != 2 {
		t.Errorf("Markers() = %d, want 2", b.Markers())
	}
}

func TestBuilder_BindMismatch(t *testing.T) {
	_, _, err := New("SELECT * FROM t WHERE a = ? AND b = ?", 1).Query()
	if !errors.Is(err, ErrBindMismatch) {
		t.Errorf("Query() error = %v, want ErrBindMismatch", err)
	}

	_, _, err = New("SELECT '?' FROM t WHERE a = ?", 1).Query()
	if err != nil {
		t.Errorf("Query() with quoted marker error = %v", err)
	}
}

func TestBuilder_ArgsIsCopy(t *testing.T) {
	b := New("a = ?", 1)
	args := b.Args()
	args[0] = 2
	if b.Args()[0] != 1 {
		t.Error("Args() must return a copy")
	}
}
