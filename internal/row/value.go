package row

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Value is a single nullable value of one semantic type.
//
// The zero Value is a NULL text value. Values are immutable; every accessor
// returns a copy so no caller can alias another caller's data.
type Value struct {
	typ   Type
	valid bool
	text  string
	num   decimal.Decimal
	when  time.Time
}

// Null returns a NULL value of type t.
func Null(t Type) Value {
	return Value{typ: t.Base()}
}

// NewText returns a text value.
func NewText(s string) Value {
	return Value{typ: Text, valid: true, text: s}
}

// NewDecimal returns a decimal value.
func NewDecimal(d decimal.Decimal) Value {
	return Value{typ: Decimal, valid: true, num: copyDecimal(d)}
}

// NewInt returns a decimal value holding i.
func NewInt(i int64) Value {
	return Value{typ: Decimal, valid: true, num: decimal.NewFromInt(i)}
}

// NewDate returns a date value holding the wall-clock date of t.
func NewDate(t time.Time) Value {
	return Value{typ: Date, valid: true, when: TruncateDate(t)}
}

// NewTimestamp returns a timestamp value holding the wall clock of t at
// microsecond precision.
func NewTimestamp(t time.Time) Value {
	return Value{typ: Timestamp, valid: true, when: TruncateTimestamp(t)}
}

// Convert builds a value of type t from a driver-scanned source value.
// Bridge types accept text and parse it with the fixed-width layouts.
func Convert(t Type, src any) (Value, error) {
	if src == nil {
		return Null(t), nil
	}

	switch t.Base() {
	case Decimal:
		d, err := toDecimal(src)
		if err != nil {
			return Value{}, err
		}
		return NewDecimal(d), nil
	case Date:
		tm, err := toTime(t, src, ParseDate)
		if err != nil {
			return Value{}, err
		}
		return NewDate(tm), nil
	case Timestamp:
		tm, err := toTime(t, src, ParseTimestamp)
		if err != nil {
			return Value{}, err
		}
		return NewTimestamp(tm), nil
	default:
		return NewText(toText(src)), nil
	}
}

// Type returns the semantic type of the value.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether the value is SQL NULL.
func (v Value) IsNull() bool { return !v.valid }

// IsBlank reports whether the value is NULL or renders as whitespace only.
func (v Value) IsBlank() bool {
	return !v.valid || strings.TrimSpace(v.String()) == ""
}

// String renders the value as text; NULL renders as "".
// Dates and timestamps use the fixed-width ISO layouts.
func (v Value) String() string {
	if !v.valid {
		return ""
	}
	switch v.typ {
	case Decimal:
		return v.num.String()
	case Date:
		return FormatDate(v.when)
	case Timestamp:
		return FormatTimestamp(v.when)
	default:
		return v.text
	}
}

// Decimal returns the value as a decimal, parsing text if necessary.
func (v Value) Decimal() (decimal.Decimal, error) {
	if !v.valid {
		return decimal.Decimal{}, ErrNullValue
	}
	switch v.typ {
	case Decimal:
		return copyDecimal(v.num), nil
	case Text:
		return toDecimal(v.text)
	default:
		return decimal.Decimal{}, fmt.Errorf("%w: %s is not numeric", ErrTypeMismatch, v.typ)
	}
}

// Int64 returns the value as an integer. Fractional decimals are rejected.
func (v Value) Int64() (int64, error) {
	d, err := v.Decimal()
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrTypeMismatch, d)
	}
	return d.IntPart(), nil
}

// Time returns the value as a time, parsing text if necessary.
func (v Value) Time() (time.Time, error) {
	if !v.valid {
		return time.Time{}, ErrNullValue
	}
	switch v.typ {
	case Date, Timestamp:
		return v.when, nil
	case Text:
		return ParseTimestamp(v.text)
	default:
		return time.Time{}, fmt.Errorf("%w: %s is not temporal", ErrTypeMismatch, v.typ)
	}
}

// As coerces the value to type t. NULL stays NULL.
func (v Value) As(t Type) (Value, error) {
	t = t.Base()
	if v.typ == t {
		return v.clone(), nil
	}
	if !v.valid {
		return Null(t), nil
	}
	switch t {
	case Text:
		return NewText(v.String()), nil
	case Decimal:
		d, err := v.Decimal()
		if err != nil {
			return Value{}, err
		}
		return NewDecimal(d), nil
	case Date:
		tm, err := v.Time()
		if err != nil {
			return Value{}, err
		}
		return NewDate(tm), nil
	case Timestamp:
		tm, err := v.Time()
		if err != nil {
			return Value{}, err
		}
		return NewTimestamp(tm), nil
	}
	return Value{}, fmt.Errorf("%w: cannot convert %s to %s", ErrTypeMismatch, v.typ, t)
}

// Interface returns the Go representation: nil, string, decimal.Decimal or time.Time.
func (v Value) Interface() any {
	if !v.valid {
		return nil
	}
	switch v.typ {
	case Decimal:
		return copyDecimal(v.num)
	case Date, Timestamp:
		return v.when
	default:
		return v.text
	}
}

// Equal reports whether two values have the same type, nullness and content.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ || v.valid != o.valid {
		return false
	}
	if !v.valid {
		return true
	}
	switch v.typ {
	case Decimal:
		return v.num.Equal(o.num)
	case Date, Timestamp:
		return v.when.Equal(o.when)
	default:
		return v.text == o.text
	}
}

func (v Value) clone() Value {
	c := v
	if v.typ == Decimal && v.valid {
		c.num = copyDecimal(v.num)
	}
	return c
}

// copyDecimal detaches d from the big.Int backing it.
func copyDecimal(d decimal.Decimal) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).Set(d.Coefficient()), d.Exponent())
}

func toDecimal(src any) (decimal.Decimal, error) {
	switch s := src.(type) {
	case decimal.Decimal:
		return s, nil
	case int64:
		return decimal.NewFromInt(s), nil
	case int:
		return decimal.NewFromInt(int64(s)), nil
	case int32:
		return decimal.NewFromInt32(s), nil
	case float64:
		return decimal.NewFromFloat(s), nil
	case float32:
		return decimal.NewFromFloat32(s), nil
	case bool:
		if s {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	case []byte:
		return parseDecimal(string(s))
	case string:
		return parseDecimal(s)
	}
	return decimal.Decimal{}, fmt.Errorf("%w: cannot read %T as decimal", ErrTypeMismatch, src)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q is not numeric", ErrTypeMismatch, s)
	}
	return d, nil
}

// toTime reads a driver value as a time. A bridge column holds text, so a
// zero time.Time there is a driver that failed to parse the stored text.
func toTime(t Type, src any, parse func(string) (time.Time, error)) (time.Time, error) {
	switch s := src.(type) {
	case time.Time:
		if t.IsBridge() && s.IsZero() {
			return time.Time{}, fmt.Errorf("%w: driver could not parse the stored %s", ErrBadTemporal, t)
		}
		return s, nil
	case []byte:
		return parse(string(s))
	case string:
		return parse(s)
	}
	return time.Time{}, fmt.Errorf("%w: cannot read %T as time", ErrTypeMismatch, src)
}

func toText(src any) string {
	switch s := src.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return decimal.NewFromFloat(s).String()
	case bool:
		return strconv.FormatBool(s)
	case time.Time:
		return FormatTimestamp(s)
	case decimal.Decimal:
		return s.String()
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(src)
}
