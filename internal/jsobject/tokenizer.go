// Package jsobject pulls structure out of object-literal-like JavaScript text
// without a real lexer. Every function is lenient: malformed or truncated input
// yields whatever could be read instead of an error.
package jsobject

import (
	"strings"
)

// isQuote reports whether c opens a string literal.
func isQuote(c byte) bool {
	return c == '"' || c == '\'' || c == '`'
}

// SplitTopLevel splits the body of an object or array literal (delimiters
// already stripped) on commas that sit outside strings and nested {} / [].
// Tokens are trimmed. Empty tokens between commas are kept; a blank trailing
// token is dropped. Unbalanced input is flushed as-is.
func SplitTopLevel(text string) []string {
	return split(text, false)
}

// SplitArguments splits the argument list of a call (parens already
// stripped). It is SplitTopLevel that also treats nested () as opaque.
func SplitArguments(text string) []string {
	return split(text, true)
}

func split(text string, parens bool) []string {
	tokens := make([]string, 0)
	var current strings.Builder

	var quote byte
	escaped := false
	braceDepth := 0
	bracketDepth := 0
	parenDepth := 0

	for i := 0; i < len(text); i++ {
		c := text[i]

		if quote != 0 {
			current.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}

		switch c {
		case '"', '\'', '`':
			quote = c
		case '{':
			braceDepth++
		case '}':
			braceDepth--
		case '[':
			bracketDepth++
		case ']':
			bracketDepth--
		case '(':
			if parens {
				parenDepth++
			}
		case ')':
			if parens {
				parenDepth--
			}
		case ',':
			if braceDepth == 0 && bracketDepth == 0 && parenDepth == 0 {
				tokens = append(tokens, strings.TrimSpace(current.String()))
				current.Reset()
				continue
			}
		}
		current.WriteByte(c)
	}

	if last := strings.TrimSpace(current.String()); last != "" {
		tokens = append(tokens, last)
	}

	return tokens
}

// SplitPair splits a "key: value" token on its first colon outside quotes.
// The key is trimmed and unquoted, the value trimmed. ok is false when the
// token has no such colon or the key is empty.
func SplitPair(token string) (key, value string, ok bool) {
	var quote byte
	escaped := false

	for i := 0; i < len(token); i++ {
		c := token[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		if isQuote(c) {
			quote = c
			continue
		}
		if c == ':' {
			key = Unquote(strings.TrimSpace(token[:i]))
			if key == "" {
				return "", "", false
			}
			return key, strings.TrimSpace(token[i+1:]), true
		}
	}

	return "", "", false
}

// MatchClose returns the index of the delimiter closing the one at open
// ('(', '{' or '['), skipping over string literals and other nesting.
// It returns -1 when open is not an opening delimiter or the text ends first.
func MatchClose(text string, open int) int {
	return MatchCloseWithin(text, open, len(text))
}

// MatchCloseWithin is MatchClose with the scan bounded to text[:limit].
func MatchCloseWithin(text string, open, limit int) int {
	if open < 0 || open >= len(text) {
		return -1
	}
	if limit > len(text) {
		limit = len(text)
	}

	var closer byte
	switch text[open] {
	case '(':
		closer = ')'
	case '{':
		closer = '}'
	case '[':
		closer = ']'
	default:
		return -1
	}
	opener := text[open]

	var quote byte
	escaped := false
	depth := 0

	for i := open; i < limit; i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch {
		case isQuote(c):
			quote = c
		case c == opener:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

// Balanced reports whether every brace, bracket, paren and string in text is
// closed.
func Balanced(text string) bool {
	var quote byte
	escaped := false
	stack := make([]byte, 0, 8)

	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{', '[', '(':
			stack = append(stack, c)
		case '}', ']', ')':
			if len(stack) == 0 || stack[len(stack)-1] != opening(c) {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}

	return quote == 0 && len(stack) == 0
}

func opening(closer byte) byte {
	switch closer {
	case '}':
		return '{'
	case ']':
		return '['
	default:
		return '('
	}
}

// Unquote strips one pair of matching quotes. Text that starts or ends with a
// quote but is not cleanly wrapped has the stray quote characters trimmed.
func Unquote(s string) string {
	if len(s) >= 2 && isQuote(s[0]) && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return strings.Trim(s, "'\"`")
}

// IsQuoted reports whether s is a single complete string literal.
func IsQuoted(s string) bool {
	if len(s) < 2 || !isQuote(s[0]) {
		return false
	}
	end := 1 + closingQuote(s[1:], s[0])
	return end == len(s)-1
}

// closingQuote returns the index of the first unescaped q in s, or -2.
func closingQuote(s string, q byte) int {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == q:
			return i
		}
	}
	return -2
}

// isWrapped reports whether s starts with open and ends with close.
func isWrapped(s string, open, close byte) bool {
	return len(s) >= 2 && s[0] == open && s[len(s)-1] == close
}

// ExpressionAt returns the expression that starts at text[start], ending at
// the first ',', ';' or newline outside nesting, or at a closer that has no
// opener. The result is trimmed.
func ExpressionAt(text string, start int) string {
	if start < 0 || start >= len(text) {
		return ""
	}

	var quote byte
	escaped := false
	depth := 0

	i := start
	for ; i < len(text); i++ {
		c := text[i]
		if quote != 0 {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == quote:
				quote = 0
			case c == '\n' && quote != '`':
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			quote = c
		case '{', '[', '(':
			depth++
		case '}', ']', ')':
			if depth == 0 {
				return strings.TrimSpace(text[start:i])
			}
			depth--
		case ',', ';', '\n':
			if depth == 0 {
				return strings.TrimSpace(text[start:i])
			}
		}
	}

	return strings.TrimSpace(text[start:i])
}
