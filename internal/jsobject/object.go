package jsobject

import (
	"strings"
)

// EmptyObjectKey is the sentinel property recorded for a literal `{}` so that
// an empty body is kept rather than dropped.
const EmptyObjectKey = "emptyObject"

// EmptyObjectShape is the shape stored under EmptyObjectKey.
func EmptyObjectShape() Shape {
	return Shape{Type: TypeObject, Example: "{}"}
}

// SkipReason says why a token was left out of an extraction.
type SkipReason string

const (
	SkipNoColon    SkipReason = "no_colon"
	SkipEmptyKey   SkipReason = "empty_key"
	SkipEmptyToken SkipReason = "empty_token"
)

// Skip records one token the extractor could not use.
type Skip struct {
	Token  string
	Reason SkipReason
}

// Extraction is the full outcome of reading one object literal.
type Extraction struct {
	Properties Properties
	Skipped    []Skip
	// Unbalanced is set when the literal's delimiters or strings do not close.
	Unbalanced bool
}

// Recovered reports whether anything was skipped or flushed early.
func (e Extraction) Recovered() bool {
	return len(e.Skipped) > 0 || e.Unbalanced
}

// ExtractObject maps each property of an object literal (outer braces
// included) to its inferred shape. A blank body yields the emptyObject
// sentinel. Malformed properties are skipped.
func ExtractObject(text string) Properties {
	return ExtractObjectReport(text).Properties
}

// ExtractObjectReport is ExtractObject that also reports what it skipped.
func ExtractObjectReport(text string) Extraction {
	text = strings.TrimSpace(text)
	if strings.TrimSpace(stripBraces(text)) == "" {
		return Extraction{
			Properties: Properties{EmptyObjectKey: EmptyObjectShape()},
			Unbalanced: !Balanced(text),
		}
	}
	return extractObject(text, 0)
}

// extractObject reads the properties of text without the empty sentinel.
func extractObject(text string, depth int) Extraction {
	ext := Extraction{
		Properties: make(Properties),
		Unbalanced: !Balanced(text),
	}

	body := strings.TrimSpace(stripBraces(text))
	if body == "" {
		return ext
	}

	for _, token := range SplitTopLevel(body) {
		// only a doubled or leading comma leaves an empty token
		if token == "" {
			ext.Skipped = append(ext.Skipped, Skip{Reason: SkipEmptyToken})
			continue
		}
		key, value, ok := SplitPair(token)
		if !ok {
			reason := SkipNoColon
			if strings.Contains(token, ":") {
				reason = SkipEmptyKey
			}
			ext.Skipped = append(ext.Skipped, Skip{Token: token, Reason: reason})
			continue
		}
		ext.Properties[key] = inferShape(value, depth)
	}

	return ext
}

// stripBraces removes one leading '{' and one trailing '}' when present.
func stripBraces(text string) string {
	text = strings.TrimPrefix(text, "{")
	return strings.TrimSuffix(text, "}")
}

// Pairs splits an object literal into raw key/value text without inferring
// shapes. Order follows the source. Unlike ExtractObject it keeps call
// arguments inside a value together.
func Pairs(text string) []Pair {
	body := strings.TrimSpace(stripBraces(strings.TrimSpace(text)))
	if body == "" {
		return nil
	}

	var pairs []Pair
	for _, token := range SplitArguments(body) {
		if key, value, ok := SplitPair(token); ok {
			pairs = append(pairs, Pair{Key: key, Value: value})
			continue
		}
		// shorthand property: { page, limit }
		if IsIdentifier(token) {
			pairs = append(pairs, Pair{Key: token, Value: token})
		}
	}
	return pairs
}

// IsIdentifier reports whether s is a plain JavaScript identifier.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c == '$':
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Pair is one raw key/value entry of an object literal.
type Pair struct {
	Key   string
	Value string
}

// Lookup returns the raw value of key in the object literal text.
func Lookup(text, key string) (string, bool) {
	for _, p := range Pairs(text) {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}
