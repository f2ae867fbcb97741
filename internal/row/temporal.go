package row

import (
	"fmt"
	"strings"
	"time"
)

// Fixed-width layouts used by engines that store temporal values as text.
const (
	DateLayout      = "2006-01-02"
	TimestampLayout = "2006-01-02 15:04:05.000000"

	// fractionDigits is the precision every timestamp is normalised to.
	fractionDigits = 6

	// secondsLen is the width of "2006-01-02 15:04:05".
	secondsLen = 19
)

// FormatDate renders the wall-clock date of t as "2006-01-02".
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatTimestamp renders the wall-clock time of t with exactly six
// fractional digits; sub-microsecond precision is truncated.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseDate parses fixed-width ISO date text. Anything after the first ten
// characters (a time part written by a lenient writer) is ignored.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTemporal, s)
	}
	t, err := time.ParseInLocation(DateLayout, s[:len(DateLayout)], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTemporal, s)
	}
	return t, nil
}

// ParseTimestamp parses ISO timestamp text of the form
// "2006-01-02 15:04:05[.ffffff]" ('T' is accepted as the separator).
// The fraction is padded or truncated to six digits. A bare date is read as
// midnight. A trailing "Z" is accepted; the result is always a UTC wall clock.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "Z")
	if len(s) == len(DateLayout) {
		return ParseDate(s)
	}
	if len(s) < secondsLen {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTemporal, s)
	}

	base := []byte(s[:secondsLen])
	if base[10] == 'T' {
		base[10] = ' '
	}

	frac := ""
	if rest := s[secondsLen:]; rest != "" {
		if rest[0] != '.' {
			return time.Time{}, fmt.Errorf("%w: %q", ErrBadTemporal, s)
		}
		frac = rest[1:]
	}
	frac = normaliseFraction(frac)

	t, err := time.ParseInLocation(TimestampLayout, string(base)+"."+frac, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrBadTemporal, s)
	}
	return t, nil
}

// normaliseFraction pads or truncates a digit string to exactly six digits.
func normaliseFraction(frac string) string {
	if len(frac) >= fractionDigits {
		return frac[:fractionDigits]
	}
	return frac + strings.Repeat("0", fractionDigits-len(frac))
}

// TruncateDate drops the time-of-day of t, keeping its wall-clock date in UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TruncateTimestamp keeps the wall clock of t at microsecond precision in UTC.
// Two timestamps are equal after a text round trip iff their truncations are.
func TruncateTimestamp(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	micro := t.Nanosecond() / int(time.Microsecond)
	return time.Date(y, mo, d, h, mi, s, micro*int(time.Microsecond), time.UTC)
}
