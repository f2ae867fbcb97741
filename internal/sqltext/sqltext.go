// Package sqltext scans SQL text for positional bind markers and whitespace.
//
// Quoted literals ('...'), quoted identifiers ("..." and `...`), PostgreSQL
// dollar-quoted bodies and comments are treated as opaque: markers inside them
// are not counted and their whitespace is never touched.
package sqltext

import (
	"strconv"
	"strings"
)

// Marker is the positional bind marker used by all SQL assembled in this module.
const Marker = '?'

// Markers counts the bind markers outside opaque regions.
func Markers(query string) int {
	n := 0
	for i := 0; i < len(query); {
		if end, ok := opaqueEnd(query, i); ok {
			i = end
			continue
		}
		if query[i] == Marker {
			n++
		}
		i++
	}
	return n
}

// Rewrite replaces every bind marker outside opaque regions with mark(n),
// where n is the 1-based marker ordinal.
func Rewrite(query string, mark func(n int) string) string {
	var sb strings.Builder
	sb.Grow(len(query) + 16)
	arg := 1
	for i := 0; i < len(query); {
		if end, ok := opaqueEnd(query, i); ok {
			sb.WriteString(query[i:end])
			i = end
			continue
		}
		if query[i] == Marker {
			sb.WriteString(mark(arg))
			arg++
			i++
			continue
		}
		sb.WriteByte(query[i])
		i++
	}
	return sb.String()
}

// Numbered returns a mark function producing prefix+ordinal, e.g. "$1" or ":1".
func Numbered(prefix string) func(int) string {
	return func(n int) string {
		return prefix + strconv.Itoa(n)
	}
}

// Collapse reduces every run of whitespace outside opaque regions to a single
// space. A leading or trailing run is kept as one space so callers can decide
// whether a fragment boundary needs separation.
func Collapse(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inSpace := false
	for i := 0; i < len(s); {
		if end, ok := opaqueEnd(s, i); ok {
			sb.WriteString(s[i:end])
			inSpace = false
			i = end
			continue
		}
		if isSpace(s[i]) {
			if !inSpace {
				sb.WriteByte(' ')
				inSpace = true
			}
			i++
			continue
		}
		sb.WriteByte(s[i])
		inSpace = false
		i++
	}
	return sb.String()
}

// Split breaks a script into statements at every ";" outside opaque regions.
// Statements are trimmed; those holding only whitespace and comments are
// dropped.
func Split(script string) []string {
	var out []string
	start := 0
	flush := func(end int) {
		if stmt := strings.TrimSpace(script[start:end]); hasCode(stmt) {
			out = append(out, stmt)
		}
	}
	for i := 0; i < len(script); {
		if end, ok := opaqueEnd(script, i); ok {
			i = end
			continue
		}
		if script[i] == ';' {
			flush(i)
			start = i + 1
		}
		i++
	}
	flush(len(script))
	return out
}

// hasCode reports whether s holds anything besides whitespace and comments.
func hasCode(s string) bool {
	for i := 0; i < len(s); {
		if end, ok := opaqueEnd(s, i); ok {
			if s[i] != '-' && s[i] != '/' {
				return true
			}
			i = end
			continue
		}
		if !isSpace(s[i]) {
			return true
		}
		i++
	}
	return false
}

// IsWordByte reports whether c can be part of an identifier, literal or marker,
// i.e. whether two such bytes placed side by side would fuse into one token.
func IsWordByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '?', c == '\'', c == '"', c == '$', c >= 0x80:
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// opaqueEnd reports whether an opaque region starts at i and, if so, the index
// just past it. Unterminated regions run to the end of the text.
func opaqueEnd(s string, i int) (int, bool) {
	switch s[i] {
	case '\'', '"', '`':
		return closeQuote(s, i+1, s[i]), true
	case '-':
		if strings.HasPrefix(s[i:], "--") {
			if j := strings.IndexByte(s[i+2:], '\n'); j >= 0 {
				return i + 2 + j + 1, true
			}
			return len(s), true
		}
	case '/':
		if strings.HasPrefix(s[i:], "/*") {
			if j := strings.Index(s[i+2:], "*/"); j >= 0 {
				return i + 2 + j + 2, true
			}
			return len(s), true
		}
	case '$':
		return dollarEnd(s, i)
	}
	return i, false
}

// closeQuote finds the end of a quoted region, honouring doubled-quote escapes.
func closeQuote(s string, i int, q byte) int {
	for i < len(s) {
		if s[i] == q {
			if i+1 < len(s) && s[i+1] == q {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return len(s)
}

// dollarEnd handles $$...$$ and $tag$...$tag$ bodies.
func dollarEnd(s string, i int) (int, bool) {
	j := i + 1
	for j < len(s) && s[j] != '$' && isTagByte(s[j]) {
		j++
	}
	if j >= len(s) || s[j] != '$' {
		return i, false
	}
	// $1 style placeholders are not tags.
	if j > i+1 && s[i+1] >= '0' && s[i+1] <= '9' {
		return i, false
	}
	tag := s[i : j+1]
	if k := strings.Index(s[j+1:], tag); k >= 0 {
		return j + 1 + k + len(tag), true
	}
	return len(s), true
}

func isTagByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}
