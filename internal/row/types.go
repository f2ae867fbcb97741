package row

import "fmt"

// Type is the semantic type of a value as seen by callers of the database core.
//
// Every engine-native column type is normalised to one of these. Numeric
// columns of any width map to Decimal so no precision is lost between engines.
type Type int

const (
	// Text is any character or otherwise unrecognised column.
	Text Type = iota

	// Decimal is every integer, fixed-point and floating-point column.
	Decimal

	// Date is a calendar date without a time-of-day component.
	Date

	// Timestamp is a date and time with microsecond precision.
	Timestamp

	// DateText is a date column stored by the engine as fixed-width ISO text
	// ("2006-01-02"). Values read from it surface as Date.
	DateText

	// TimestampText is a timestamp column stored by the engine as fixed-width
	// ISO text with exactly six fractional digits. Values surface as Timestamp.
	TimestampText
)

var typeNames = map[Type]string{
	Text:          "text",
	Decimal:       "decimal",
	Date:          "date",
	Timestamp:     "timestamp",
	DateText:      "date_text",
	TimestampText: "timestamp_text",
}

// String returns the lowercase name of the type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Base returns the caller-facing type: the text bridge types collapse onto
// Date and Timestamp, everything else is returned unchanged.
func (t Type) Base() Type {
	switch t {
	case DateText:
		return Date
	case TimestampText:
		return Timestamp
	default:
		return t
	}
}

// IsTemporal reports whether the type carries a date or timestamp.
func (t Type) IsTemporal() bool {
	switch t.Base() {
	case Date, Timestamp:
		return true
	default:
		return false
	}
}

// IsBridge reports whether the type is one of the text-encoded temporal types.
func (t Type) IsBridge() bool {
	return t == DateText || t == TimestampText
}

// ParseType converts a type name as produced by String back into a Type.
func ParseType(name string) (Type, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return Text, fmt.Errorf("%w: unknown type %q", ErrTypeMismatch, name)
}
