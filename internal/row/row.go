package row

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Row is an ordered, string-keyed set of values.
//
// Field names are case-normalised (trimmed, lowercased) on every access.
// Insertion order is preserved and drives column order wherever a row is
// turned back into SQL.
//
// Thread Safety:
//   - A Row is not safe for concurrent mutation. Rows are created per result
//     row or per caller-assembled parameter set and owned by one goroutine.
type Row struct {
	keys []string
	vals map[string]Value
}

// New returns an empty row.
func New() *Row {
	return &Row{vals: make(map[string]Value)}
}

// NormaliseName returns the canonical form of a field name.
func NormaliseName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add inserts a field. It returns ErrDuplicateField if the name is present.
func (r *Row) Add(name string, v Value) error {
	key := NormaliseName(name)
	if _, ok := r.vals[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateField, key)
	}
	r.keys = append(r.keys, key)
	r.vals[key] = v.clone()
	return nil
}

// Set inserts or replaces a field. A replaced field keeps its position.
func (r *Row) Set(name string, v Value) *Row {
	key := NormaliseName(name)
	if _, ok := r.vals[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.vals[key] = v.clone()
	return r
}

// SetText is shorthand for Set(name, NewText(s)).
func (r *Row) SetText(name, s string) *Row { return r.Set(name, NewText(s)) }

// SetInt is shorthand for Set(name, NewInt(i)).
func (r *Row) SetInt(name string, i int64) *Row { return r.Set(name, NewInt(i)) }

// SetDecimal is shorthand for Set(name, NewDecimal(d)).
func (r *Row) SetDecimal(name string, d decimal.Decimal) *Row { return r.Set(name, NewDecimal(d)) }

// SetDate is shorthand for Set(name, NewDate(t)).
func (r *Row) SetDate(name string, t time.Time) *Row { return r.Set(name, NewDate(t)) }

// SetTimestamp is shorthand for Set(name, NewTimestamp(t)).
func (r *Row) SetTimestamp(name string, t time.Time) *Row { return r.Set(name, NewTimestamp(t)) }

// SetNull is shorthand for Set(name, Null(t)).
func (r *Row) SetNull(name string, t Type) *Row { return r.Set(name, Null(t)) }

// Get returns a copy of the named value.
func (r *Row) Get(name string) (Value, bool) {
	v, ok := r.vals[NormaliseName(name)]
	if !ok {
		return Value{}, false
	}
	return v.clone(), true
}

// Param implements the parameter source used when binding SQL templates.
func (r *Row) Param(name string) (Value, bool) {
	return r.Get(name)
}

// Has reports whether the row holds the named field.
func (r *Row) Has(name string) bool {
	_, ok := r.vals[NormaliseName(name)]
	return ok
}

// Remove deletes the named field and reports whether it was present.
func (r *Row) Remove(name string) bool {
	key := NormaliseName(name)
	if _, ok := r.vals[key]; !ok {
		return false
	}
	delete(r.vals, key)
	for i, k := range r.keys {
		if k == key {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns the field names in insertion order.
func (r *Row) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len returns the number of fields.
func (r *Row) Len() int { return len(r.keys) }

// Clone returns a deep copy of the row.
func (r *Row) Clone() *Row {
	c := &Row{keys: r.Keys(), vals: make(map[string]Value, len(r.vals))}
	for k, v := range r.vals {
		c.vals[k] = v.clone()
	}
	return c
}

// IsNull reports whether the named field is NULL or absent.
func (r *Row) IsNull(name string) bool {
	v, ok := r.vals[NormaliseName(name)]
	return !ok || v.IsNull()
}

// Text returns the named field rendered as text. NULL and absent fields
// render as "".
func (r *Row) Text(name string) string {
	return r.vals[NormaliseName(name)].String()
}

// Decimal returns the named field as a decimal.
func (r *Row) Decimal(name string) (decimal.Decimal, error) {
	v, err := r.lookup(name)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.Decimal()
}

// Int64 returns the named field as an integer.
func (r *Row) Int64(name string) (int64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	return v.Int64()
}

// Time returns the named date or timestamp field.
func (r *Row) Time(name string) (time.Time, error) {
	v, err := r.lookup(name)
	if err != nil {
		return time.Time{}, err
	}
	return v.Time()
}

// Equal reports whether both rows hold the same fields in the same order.
func (r *Row) Equal(o *Row) bool {
	if r.Len() != o.Len() {
		return false
	}
	for i, k := range r.keys {
		if o.keys[i] != k || !r.vals[k].Equal(o.vals[k]) {
			return false
		}
	}
	return true
}

// GoString renders the row for logs and test failures.
func (r *Row) GoString() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			sb.WriteString(", ")
		}
		v := r.vals[k]
		if v.IsNull() {
			fmt.Fprintf(&sb, "%s:NULL", k)
			continue
		}
		fmt.Fprintf(&sb, "%s:%q", k, v.String())
	}
	sb.WriteByte('}')
	return sb.String()
}

func (r *Row) lookup(name string) (Value, error) {
	v, ok := r.vals[NormaliseName(name)]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrNoField, NormaliseName(name))
	}
	return v, nil
}
