package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
	"github.com/nerrad567/gray-logic-dbcore/internal/sqltext"
)

// Builder assembles SQL text and its positional bind values incrementally.
//
// Each appended fragment has its whitespace collapsed (outside quoted
// literals) and is joined to the previous fragment with at most one space,
// inserted automatically when two word characters would otherwise fuse.
//
// A Builder is mutable during assembly and must not be modified once handed
// to the engine. It is not safe for concurrent use.
type Builder struct {
	sb   strings.Builder
	args []any
}

// New returns a Builder seeded with an optional first fragment and values.
func New(fragment string, args ...any) *Builder {
	b := &Builder{}
	return b.Append(fragment, args...)
}

// Append adds a fragment and the values for the markers it contains.
func (b *Builder) Append(fragment string, args ...any) *Builder {
	b.write(sqltext.Collapse(fragment))
	b.args = append(b.args, args...)
	return b
}

// AppendIfPresent appends fragment and v only when v is present: not nil,
// not a NULL row.Value and not blank text. It is meant for optional filter
// predicates such as "AND user_nm = ?".
func (b *Builder) AppendIfPresent(fragment string, v any) *Builder {
	if !present(v) {
		return b
	}
	return b.Append(fragment, v)
}

// AppendBuilder splices the text and values of o onto b.
func (b *Builder) AppendBuilder(o *Builder) *Builder {
	if o == nil {
		return b
	}
	b.write(o.sb.String())
	b.args = append(b.args, o.args...)
	return b
}

// DropTrailing removes the last n characters of text, ignoring a trailing
// boundary space. It is used to trim a separator left by a loop, e.g. the
// final "," of a column list or the final "AND".
func (b *Builder) DropTrailing(n int) *Builder {
	s := strings.TrimRight(b.sb.String(), " ")
	if n > len(s) {
		n = len(s)
	}
	s = s[:len(s)-n]
	b.sb.Reset()
	b.sb.WriteString(s)
	return b
}

// Len returns the length of the assembled text, excluding boundary spaces.
func (b *Builder) Len() int {
	return len(b.SQL())
}

// SQL returns the assembled text without leading or trailing spaces.
func (b *Builder) SQL() string {
	return strings.TrimSpace(b.sb.String())
}

// Args returns a copy of the bind values in marker order.
func (b *Builder) Args() []any {
	out := make([]any, len(b.args))
	copy(out, b.args)
	return out
}

// Markers returns the number of bind markers in the assembled text.
func (b *Builder) Markers() int {
	return sqltext.Markers(b.sb.String())
}

// Query implements Statement. It fails if the marker count and the number of
// bind values disagree.
func (b *Builder) Query() (string, []any, error) {
	if m := b.Markers(); m != len(b.args) {
		return "", nil, fmt.Errorf("%w: %d markers, %d values in %q", ErrBindMismatch, m, len(b.args), b.SQL())
	}
	return b.SQL(), b.Args(), nil
}

// String returns the assembled text; it is intended for logs.
func (b *Builder) String() string {
	return b.SQL()
}

// write joins a collapsed fragment onto the text.
func (b *Builder) write(frag string) {
	if frag == "" {
		return
	}
	cur := b.sb.String()
	if cur == "" {
		b.sb.WriteString(strings.TrimLeft(frag, " "))
		return
	}

	last := cur[len(cur)-1]
	first := frag[0]
	switch {
	case last == ' ' && first == ' ':
		frag = frag[1:]
	case last != ' ' && first != ' ' && sqltext.IsWordByte(last) && sqltext.IsWordByte(first):
		b.sb.WriteByte(' ')
	}
	b.sb.WriteString(frag)
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case row.Value:
		return !x.IsBlank()
	case string:
		return strings.TrimSpace(x) != ""
	case *string:
		return x != nil && strings.TrimSpace(*x) != ""
	}
	return true
}
