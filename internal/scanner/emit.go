package scanner

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
	"github.com/PentesterFlow/JSRecon/internal/jsobject"
	"github.com/PentesterFlow/JSRecon/internal/metrics"
	"github.com/PentesterFlow/JSRecon/internal/pathnorm"
)

const maxDetail = 80

var methodKeyword = regexp.MustCompile(`(?i)\b(get|post|put|delete|patch)\b`)

// emitter appends facts for one file.
type emitter struct {
	s   *Scanner
	out *Output
}

func (e *emitter) add(f aggregate.Fact) {
	e.out.Facts = append(e.out.Facts, f)
}

func (e *emitter) recover(kind, detail string) {
	if len(detail) > maxDetail {
		detail = detail[:maxDetail]
	}
	e.out.Recoveries = append(e.out.Recoveries, Recovery{Kind: kind, Detail: detail})
}

// endpoint canonicalizes raw, records the file and any path expressions and
// query parameters, and returns the aggregation key.
func (e *emitter) endpoint(raw string) (string, bool) {
	path, query, ok := e.s.canonical(raw)
	if !ok {
		return "", false
	}

	norm := pathnorm.Normalize(path)
	if strings.ContainsAny(norm.Key, " \t\r\n<>\\\"'`") {
		return "", false
	}

	e.add(aggregate.FileFact(norm.Key, e.out.File))
	for _, expr := range norm.Expressions {
		e.add(aggregate.TemplateParamFact(norm.Key, expr))
	}
	if query != "" {
		e.query(norm.Key, query)
	}

	return norm.Key, true
}

// canonical trims everything before the first API prefix and splits off the
// query string. Paths written without the leading slash get one.
func (s *Scanner) canonical(raw string) (path, query string, ok bool) {
	path, query = pathnorm.SplitQuery(strings.TrimSpace(raw))
	if i := strings.IndexByte(path, '#'); i >= 0 && !strings.Contains(path[i:], "}") {
		path = path[:i]
	}

	idx, prefix := -1, ""
	for _, p := range s.cfg.APIPrefixes {
		if i := strings.Index(path, p); i >= 0 && (idx < 0 || i < idx) {
			idx, prefix = i, p
		}
	}
	if idx < 0 {
		for _, p := range s.cfg.APIPrefixes {
			bare := strings.TrimPrefix(p, "/")
			if bare != p && strings.HasPrefix(path, bare) {
				path = "/" + path
				idx, prefix = 0, p
				break
			}
		}
	}
	if idx < 0 {
		return "", "", false
	}

	path = path[idx:]
	if len(path) <= len(prefix) {
		return "", "", false
	}
	return path, query, true
}

// hasPrefix reports whether text mentions any API prefix, with or without
// its leading slash.
func (s *Scanner) hasPrefix(text string) bool {
	for _, p := range s.cfg.APIPrefixes {
		if strings.Contains(text, strings.TrimPrefix(p, "/")) {
			return true
		}
	}
	return false
}

func (e *emitter) query(key, query string) {
	for _, pair := range pathnorm.QueryPairs(query) {
		name, value, hasValue := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if n, err := url.QueryUnescape(name); err == nil {
			name = n
		}
		if name == "" || pathnorm.IsDynamic(name) {
			continue
		}

		switch {
		case !hasValue:
			e.add(aggregate.ParamNameFact(key, name))
		case pathnorm.IsDynamic(value):
			e.add(aggregate.DynamicParamFact(key, name))
		default:
			if v, err := url.QueryUnescape(value); err == nil {
				value = v
			}
			e.add(aggregate.StaticParamFact(key, name, value))
		}
	}
}

// param records name with a static value when valueExpr is a literal, and as
// dynamic otherwise.
func (e *emitter) param(key, name, valueExpr string) {
	if name == "" {
		return
	}
	if v, ok := literalValue(valueExpr); ok {
		e.add(aggregate.StaticParamFact(key, name, v))
		return
	}
	e.add(aggregate.DynamicParamFact(key, name))
}

// params records every pair of an object literal as a parameter.
func (e *emitter) params(key, object string) {
	for _, p := range jsobject.Pairs(object) {
		e.param(key, p.Key, p.Value)
	}
}

func (e *emitter) method(key, method string) {
	e.add(aggregate.MethodFact(key, strings.ToUpper(method)))
}

// body infers the shape of an object literal and records it.
func (e *emitter) body(key, object, contentType string) {
	ext := jsobject.ExtractObjectReport(object)
	for _, sk := range ext.Skipped {
		detail := sk.Token
		if detail == "" {
			detail = string(sk.Reason)
		}
		e.recover(metrics.RecoveryMalformedToken, detail)
	}
	if ext.Unbalanced {
		e.recover(metrics.RecoveryUnbalancedInput, object)
	}
	if len(ext.Properties) == 0 {
		return
	}
	if contentType == "" {
		contentType = aggregate.DefaultContentType
	}
	e.add(aggregate.BodyFact(key, aggregate.Body{ContentType: contentType, Properties: ext.Properties}))
}

// methodHint looks for an HTTP verb in the window before pos. The last one
// wins.
func (s *Scanner) methodHint(content string, pos int) (string, bool) {
	start := pos - s.cfg.MethodHintWindow
	if start < 0 {
		start = 0
	}
	found := methodKeyword.FindAllString(content[start:pos], -1)
	if len(found) == 0 {
		return aggregate.DefaultMethod, false
	}
	return strings.ToUpper(found[len(found)-1]), true
}

// literalValue returns the value of a string, number, boolean or null literal.
// Template literals with interpolation are not literals.
func literalValue(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if jsobject.IsQuoted(expr) {
		if expr[0] == '`' && strings.Contains(expr, "${") {
			return "", false
		}
		return jsobject.Unquote(expr), true
	}
	switch expr {
	case "true", "false", "null":
		return expr, true
	}
	if _, err := strconv.ParseFloat(expr, 64); err == nil {
		return expr, true
	}
	return "", false
}
