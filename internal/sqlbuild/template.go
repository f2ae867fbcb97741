package sqlbuild

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nerrad567/gray-logic-dbcore/internal/row"
	"github.com/nerrad567/gray-logic-dbcore/internal/sqltext"
)

// Slot is a named, typed bind marker declared in a Template.
type Slot struct {
	Name string
	Type row.Type
}

// ParamSource resolves bind-slot names to values. *row.Row implements it.
type ParamSource interface {
	Param(name string) (row.Value, bool)
}

// Params is a map-backed ParamSource. Keys are matched case-insensitively;
// Template.Bind rejects a Params holding two keys that differ only in case.
type Params map[string]row.Value

// Param implements ParamSource. An exact key wins over a case-folded match.
func (p Params) Param(name string) (row.Value, bool) {
	if v, ok := p[name]; ok {
		return v, true
	}
	key := row.NormaliseName(name)
	for k, v := range p {
		if row.NormaliseName(k) == key {
			return v, true
		}
	}
	return row.Value{}, false
}

// collision returns the first pair of keys, in sorted order, that
// normalise to the same name.
func (p Params) collision() (string, string, bool) {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	seen := make(map[string]string, len(keys))
	for _, k := range keys {
		norm := row.NormaliseName(k)
		if prev, ok := seen[norm]; ok {
			return prev, k, true
		}
		seen[norm] = k
	}
	return "", "", false
}

// Template is immutable SQL with one declared Slot per bind marker.
//
// Templates are built once at process start (usually into package-level
// variables via Must) and bound many times; Bind never mutates the template.
type Template struct {
	sql   string
	slots []Slot
}

// SQL returns the template text.
func (t *Template) SQL() string { return t.sql }

// Slots returns a copy of the declared slots in marker order.
func (t *Template) Slots() []Slot {
	out := make([]Slot, len(t.slots))
	copy(out, t.slots)
	return out
}

// Bind resolves every slot against src in declaration order, coercing each
// value to the slot type. A slot name declared more than once is resolved
// once per declaration. It fails with ErrMissingParam if src lacks a name
// and with ErrDuplicateParam if a Params source is ambiguous.
func (t *Template) Bind(src ParamSource) (Bound, error) {
	if p, ok := src.(Params); ok {
		if a, b, dup := p.collision(); dup {
			return Bound{}, fmt.Errorf("%w: %q and %q", ErrDuplicateParam, a, b)
		}
	}
	args := make([]any, len(t.slots))
	for i, slot := range t.slots {
		v, ok := src.Param(slot.Name)
		if !ok {
			return Bound{}, fmt.Errorf("%w: %s", ErrMissingParam, slot.Name)
		}
		coerced, err := v.As(slot.Type)
		if err != nil {
			return Bound{}, fmt.Errorf("binding %s: %w", slot.Name, err)
		}
		args[i] = coerced
	}
	return Bound{SQL: t.sql, Args: args}, nil
}

// Bound is a template bound to concrete values. It is disposable.
type Bound struct {
	SQL  string
	Args []any
}

// Query implements Statement.
func (b Bound) Query() (string, []any, error) {
	if m := sqltext.Markers(b.SQL); m != len(b.Args) {
		return "", nil, fmt.Errorf("%w: %d markers, %d values in %q", ErrBindMismatch, m, len(b.Args), b.SQL)
	}
	args := make([]any, len(b.Args))
	copy(args, b.Args)
	return b.SQL, args, nil
}

// TemplateBuilder declares a Template fragment by fragment.
// The first declaration error is kept and reported by Build.
type TemplateBuilder struct {
	b     *Builder
	slots []Slot
	types map[string]row.Type
	err   error
}

// NewTemplate starts a template declaration.
func NewTemplate() *TemplateBuilder {
	return &TemplateBuilder{b: &Builder{}, types: make(map[string]row.Type)}
}

// SQL appends literal text. The text must not contain a bind marker.
func (tb *TemplateBuilder) SQL(text string) *TemplateBuilder {
	if tb.err != nil {
		return tb
	}
	if n := sqltext.Markers(text); n != 0 {
		tb.err = fmt.Errorf("%w: literal fragment %q has %d markers", ErrMarkerCount, strings.TrimSpace(text), n)
		return tb
	}
	tb.b.Append(text)
	return tb
}

// Bind appends text containing exactly one bind marker, declared as slot
// name of type t. Redeclaring a name with a different type is an error.
func (tb *TemplateBuilder) Bind(text, name string, t row.Type) *TemplateBuilder {
	if tb.err != nil {
		return tb
	}
	if n := sqltext.Markers(text); n != 1 {
		tb.err = fmt.Errorf("%w: fragment %q for slot %s has %d markers", ErrMarkerCount, strings.TrimSpace(text), name, n)
		return tb
	}
	key := row.NormaliseName(name)
	if key == "" {
		tb.err = fmt.Errorf("%w: empty slot name in %q", ErrMarkerCount, strings.TrimSpace(text))
		return tb
	}
	if prev, ok := tb.types[key]; ok && prev != t {
		tb.err = fmt.Errorf("%w: %s declared as %s and %s", ErrSlotType, key, prev, t)
		return tb
	}
	tb.types[key] = t
	tb.slots = append(tb.slots, Slot{Name: key, Type: t})
	tb.b.Append(text)
	return tb
}

// Build returns the template or the first declaration error.
func (tb *TemplateBuilder) Build() (*Template, error) {
	if tb.err != nil {
		return nil, tb.err
	}
	return &Template{sql: tb.b.SQL(), slots: tb.Slots()}, nil
}

// Slots returns the slots declared so far.
func (tb *TemplateBuilder) Slots() []Slot {
	out := make([]Slot, len(tb.slots))
	copy(out, tb.slots)
	return out
}

// Must panics if err is non-nil. It is intended for package-level template
// variables, where a declaration error is a programming error.
func Must(t *Template, err error) *Template {
	if err != nil {
		panic(err)
	}
	return t
}
