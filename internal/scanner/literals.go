package scanner

import (
	"strings"

	"github.com/PentesterFlow/JSRecon/internal/jsobject"
)

// span is a half-open region of the source: [start, end).
type span struct {
	start, end int
}

// templateLiterals returns the backtick literals of content, delimiters
// included. Backticks are paired in order; a backtick inside another kind of
// string is not told apart.
func templateLiterals(content string) []span {
	var spans []span
	for i := 0; i < len(content); i++ {
		if content[i] != '`' {
			continue
		}
		end := closeTemplate(content, i+1)
		if end < 0 {
			return spans
		}
		spans = append(spans, span{start: i, end: end + 1})
		i = end
	}
	return spans
}

// closeTemplate returns the index of the backtick ending a template whose
// body starts at from. Interpolations may nest other templates.
func closeTemplate(s string, from int) int {
	for i := from; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '`':
			return i
		case '$':
			if i+1 < len(s) && s[i+1] == '{' {
				end := jsobject.MatchClose(s, i+1)
				if end < 0 {
					return -1
				}
				i = end
			}
		}
	}
	return -1
}

// splitConcat splits an expression on '+' outside strings and nesting.
func splitConcat(expr string) []string {
	var parts []string
	var quote byte
	depth := 0
	start := 0

	for i := 0; i < len(expr); i++ {
		c := expr[i]
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
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '+':
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(expr[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(expr[start:]))
}

// urlFromExpression renders a URL argument as template text. A string or
// template literal is taken as is; a concatenation of literals and other
// operands becomes a template with each operand interpolated. ok is false
// when no literal text is involved.
func urlFromExpression(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", false
	}
	if jsobject.IsQuoted(expr) {
		return jsobject.Unquote(expr), true
	}

	parts := splitConcat(expr)
	if len(parts) < 2 {
		return "", false
	}

	var b strings.Builder
	literal := false
	for _, p := range parts {
		if p == "" {
			continue
		}
		if jsobject.IsQuoted(p) {
			b.WriteString(jsobject.Unquote(p))
			literal = true
			continue
		}
		b.WriteString("${" + p + "}")
	}
	return b.String(), literal
}
