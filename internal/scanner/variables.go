package scanner

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/PentesterFlow/JSRecon/internal/jsobject"
)

const lookupTimeout = 250 * time.Millisecond

// assignment compiles (once per name) a pattern matching a declaration of, or
// plain assignment to, name. The lookbehind keeps `obj.name =` and `xname =`
// from matching; the lookahead drops comparisons and arrow functions.
func (s *Scanner) assignment(name string) *regexp2.Regexp {
	if re, ok := s.lookups.Load(name); ok {
		return re.(*regexp2.Regexp)
	}
	pattern := `(?<![\w$.])(?:(?:const|let|var)\s+)?` + regexp2.Escape(name) + `\s*=(?![=>])\s*`
	re := regexp2.MustCompile(pattern, regexp2.None)
	re.MatchTimeout = lookupTimeout
	actual, _ := s.lookups.LoadOrStore(name, re)
	return actual.(*regexp2.Regexp)
}

// definition returns the expression last assigned to name before pos, looking
// no further than the variable window in either direction. Without an earlier
// assignment the nearest later one is used.
func (s *Scanner) definition(content string, pos int, name string) (string, bool) {
	if !jsobject.IsIdentifier(name) {
		return "", false
	}

	lo := pos - s.cfg.VariableWindow
	if lo < 0 {
		lo = 0
	}
	hi := pos + s.cfg.VariableWindow
	if hi > len(content) {
		hi = len(content)
	}
	window := content[lo:hi]
	rel := pos - lo

	re := s.assignment(name)
	offsets := runeOffsets(window)

	best, after := -1, -1
	m, err := re.FindStringMatch(window)
	for err == nil && m != nil {
		start := offsets[m.Index]
		end := offsets[m.Index+m.Length]
		if start < rel {
			best = end
		} else if after < 0 {
			after = end
		}
		m, err = re.FindNextMatch(m)
	}
	if best < 0 {
		best = after
	}
	if best < 0 {
		return "", false
	}

	expr := jsobject.ExpressionAt(window, best)
	return expr, expr != ""
}

// runeOffsets maps each rune index of s to its byte offset; the extra final
// entry is len(s). regexp2 reports positions in runes.
func runeOffsets(s string) []int {
	offsets := make([]int, 0, len(s)+1)
	for i := range s {
		offsets = append(offsets, i)
	}
	return append(offsets, len(s))
}

// resolve follows an identifier or a dotted property path to the expression
// it holds. Each step through a property requires an object literal.
func (s *Scanner) resolve(content string, pos int, ref string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(ref), ".")
	value, ok := s.definition(content, pos, parts[0])
	if !ok {
		return "", false
	}
	for _, prop := range parts[1:] {
		if !strings.HasPrefix(value, "{") {
			return "", false
		}
		if value, ok = jsobject.Lookup(value, prop); !ok {
			return "", false
		}
	}
	return value, true
}

// objectArg resolves a call argument to object literal text. It accepts a
// literal, JSON.stringify of something it accepts, and references that
// resolve to a literal.
func (s *Scanner) objectArg(content string, pos int, expr string) (string, bool) {
	for depth := 0; depth < 4; depth++ {
		expr = strings.TrimSpace(expr)
		switch {
		case strings.HasPrefix(expr, "{"):
			return expr, true
		case strings.HasPrefix(expr, "JSON.stringify("):
			inner := strings.TrimSuffix(strings.TrimPrefix(expr, "JSON.stringify("), ")")
			args := jsobject.SplitArguments(inner)
			if len(args) == 0 {
				return "", false
			}
			expr = args[0]
		case isReference(expr):
			v, ok := s.resolve(content, pos, expr)
			if !ok {
				return "", false
			}
			expr = v
		default:
			return "", false
		}
	}
	return "", false
}

// urlArg resolves a URL argument, following one variable reference.
func (s *Scanner) urlArg(content string, pos int, expr string) (string, bool) {
	if u, ok := urlFromExpression(expr); ok {
		return u, true
	}
	if !isReference(expr) {
		return "", false
	}
	v, ok := s.resolve(content, pos, expr)
	if !ok {
		return "", false
	}
	return urlFromExpression(v)
}

// isReference reports whether expr is an identifier or a dotted path of them.
func isReference(expr string) bool {
	for _, part := range strings.Split(expr, ".") {
		if !jsobject.IsIdentifier(part) {
			return false
		}
	}
	return expr != "this" && !strings.HasPrefix(expr, "this.")
}
