// Package pathnorm turns endpoint paths that interpolate runtime values into
// stable keys.
//
// Two placeholder schemes exist and must not be mixed. Normalize rewrites every
// `${expr}` to the single literal Placeholder so call sites that interpolate
// different expressions at the same position collapse into one key. Number
// renders such a key for interfaces that need a distinct name per position.
package pathnorm

import (
	"fmt"
	"strings"
)

// Placeholder replaces every interpolated expression in an aggregation key.
const Placeholder = "{PARAM}"

// Path is a normalized endpoint path.
type Path struct {
	// Key is the path with each `${...}` replaced by Placeholder.
	Key string
	// Expressions holds the trimmed inner expressions in source order.
	Expressions []string
}

// Normalize replaces each `${expr}` in path with Placeholder. Nested braces
// inside an expression are balanced; an unterminated marker is left as
// literal text.
func Normalize(path string) Path {
	var b strings.Builder
	b.Grow(len(path))
	exprs := make([]string, 0)

	i := 0
	for i < len(path) {
		start := strings.Index(path[i:], "${")
		if start < 0 {
			b.WriteString(path[i:])
			break
		}
		start += i

		end := closingBrace(path, start+2)
		if end < 0 {
			b.WriteString(path[i:])
			break
		}

		b.WriteString(path[i:start])
		b.WriteString(Placeholder)
		if expr := strings.TrimSpace(path[start+2 : end]); expr != "" {
			exprs = append(exprs, expr)
		}
		i = end + 1
	}

	return Path{Key: b.String(), Expressions: exprs}
}

// closingBrace finds the '}' ending an expression that starts at from.
func closingBrace(s string, from int) int {
	depth := 1
	var quote byte
	for i := from; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// SplitQuery separates path from its query string at the first '?' outside
// any `${...}` marker.
func SplitQuery(raw string) (path, query string) {
	parts := splitOutside(raw, '?', 2)
	if len(parts) == 1 {
		return raw, ""
	}
	return parts[0], parts[1]
}

// QueryPairs splits a query string on '&' outside `${...}` markers. Empty
// pairs are dropped.
func QueryPairs(query string) []string {
	pairs := make([]string, 0)
	for _, p := range splitOutside(query, '&', -1) {
		if p != "" {
			pairs = append(pairs, p)
		}
	}
	return pairs
}

// splitOutside splits s on sep where sep is not inside a `${...}` marker,
// into at most n parts (n < 0 means no limit).
func splitOutside(s string, sep byte, n int) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if n > 0 && len(parts) == n-1 {
			break
		}
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '{' {
			if end := closingBrace(s, i+2); end >= 0 {
				i = end
				continue
			}
		}
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// HasPlaceholder reports whether key contains the aggregation placeholder.
func HasPlaceholder(key string) bool {
	return strings.Contains(key, Placeholder)
}

// IsDynamic reports whether a value is an interpolation marker rather than a
// literal.
func IsDynamic(value string) bool {
	return strings.Contains(value, "${") || strings.Contains(value, Placeholder)
}

// Number renders a key for export: any remaining `${x}` becomes `{x}`, and
// each Placeholder becomes `{param1}`, `{param2}` and so on. It returns the
// rewritten path and the parameter names in path order.
func Number(key string) (string, []string) {
	var b strings.Builder
	names := make([]string, 0)
	n := 0

	i := 0
	for i < len(key) {
		switch {
		case strings.HasPrefix(key[i:], Placeholder):
			n++
			name := fmt.Sprintf("param%d", n)
			names = append(names, name)
			b.WriteString("{" + name + "}")
			i += len(Placeholder)

		case strings.HasPrefix(key[i:], "${"):
			end := closingBrace(key, i+2)
			if end < 0 {
				b.WriteString(key[i:])
				i = len(key)
				continue
			}
			name := strings.TrimSpace(key[i+2 : end])
			names = append(names, name)
			b.WriteString("{" + name + "}")
			i = end + 1

		case key[i] == '{':
			end := strings.IndexByte(key[i:], '}')
			if end < 0 {
				b.WriteString(key[i:])
				i = len(key)
				continue
			}
			names = append(names, key[i+1:i+end])
			b.WriteString(key[i : i+end+1])
			i += end + 1

		default:
			b.WriteByte(key[i])
			i++
		}
	}

	return b.String(), names
}

// Segments returns the non-empty '/'-separated parts of path.
func Segments(path string) []string {
	parts := strings.Split(path, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
