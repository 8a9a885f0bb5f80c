package scanner

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PentesterFlow/JSRecon/internal/jsobject"
	"github.com/PentesterFlow/JSRecon/internal/metrics"
)

var (
	quotedQueryPattern = regexp.MustCompile(`['"]([^'"\s]*\?[^'"\s]*)['"]`)
	newURLPattern      = regexp.MustCompile("new\\s+URL\\s*\\(\\s*('[^'\\n]*'|\"[^\"\\n]*\"|`[^`]*`)")
	searchParamPattern = regexp.MustCompile(`searchParams\s*\.\s*(?:append|set)\s*\(`)
	externalPattern    = regexp.MustCompile("https?://[^\\s'\"`<>(){}\\\\$]+")
)

// scanStaticQuery records quoted paths that carry a query string. Each match
// is attributed to its own path.
func (s *Scanner) scanStaticQuery(e *emitter, content string) {
	for _, m := range quotedQueryPattern.FindAllStringSubmatch(content, -1) {
		if !s.hasPrefix(m[1]) {
			continue
		}
		e.endpoint(m[1])
	}
}

// scanTemplates records template literals that mention an API prefix. The
// method is hinted by a verb just before the literal; a literal passed to
// fetch or as a `url:` option is left to the call strategy.
func (s *Scanner) scanTemplates(e *emitter, content string) {
	for _, lit := range templateLiterals(content) {
		body := content[lit.start+1 : lit.end-1]
		if !s.hasPrefix(body) {
			continue
		}
		key, ok := e.endpoint(body)
		if !ok {
			continue
		}
		if s.cfg.ClientCalls && callArgument(content, lit.start) {
			continue
		}
		method, hinted := s.methodHint(content, lit.start)
		if !hinted {
			e.recover(metrics.RecoveryDefaultMethod, key)
		}
		e.method(key, method)
	}
}

// callArgument reports whether pos is the first argument of a fetch call or
// the value of a url option.
func callArgument(content string, pos int) bool {
	before := strings.TrimRight(content[:pos], " \t\r\n")
	if strings.HasSuffix(before, ":") {
		return strings.HasSuffix(strings.TrimRight(before[:len(before)-1], " \t"), "url")
	}
	if !strings.HasSuffix(before, "(") {
		return false
	}
	before = strings.TrimRight(before[:len(before)-1], " \t\r\n")
	if !strings.HasSuffix(before, "fetch") {
		return false
	}
	rest := before[:len(before)-len("fetch")]
	return rest == "" || !isIdentByte(rest[len(rest)-1])
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// scanSearchParams pairs `new URL('/api/...')` with the searchParams calls
// that follow it, up to the window size or the next URL construction.
func (s *Scanner) scanSearchParams(e *emitter, content string) {
	matches := newURLPattern.FindAllStringSubmatchIndex(content, -1)
	for i, m := range matches {
		raw := jsobject.Unquote(content[m[2]:m[3]])
		if !s.hasPrefix(raw) {
			continue
		}
		key, ok := e.endpoint(raw)
		if !ok {
			continue
		}

		limit := m[0] + s.cfg.SearchParamsWindow
		if i+1 < len(matches) && matches[i+1][0] < limit {
			limit = matches[i+1][0]
		}
		if limit > len(content) {
			limit = len(content)
		}

		window := content[m[1]:limit]
		for _, pm := range searchParamPattern.FindAllStringIndex(window, -1) {
			open := m[1] + pm[1] - 1
			end := jsobject.MatchCloseWithin(content, open, limit)
			if end < 0 {
				e.recover(metrics.RecoveryUnbalancedInput, content[open:limit])
				continue
			}
			args := jsobject.SplitArguments(content[open+1 : end])
			if len(args) < 2 || !jsobject.IsQuoted(args[0]) {
				continue
			}
			e.param(key, jsobject.Unquote(args[0]), args[1])
		}
	}
}

// scanExternal collects absolute URLs, once per URL per file.
func (s *Scanner) scanExternal(e *emitter, content string) {
	seen := make(map[string]bool)
	for _, raw := range externalPattern.FindAllString(content, -1) {
		raw = strings.TrimRight(raw, ".,;:!?")
		if seen[raw] {
			continue
		}
		seen[raw] = true

		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" || s.ignoredHost(u.Hostname()) {
			continue
		}
		e.out.External = append(e.out.External, ExternalURL{
			Host: u.Hostname(),
			URL:  raw,
			File: e.out.File,
		})
	}
}

func (s *Scanner) ignoredHost(host string) bool {
	for _, h := range s.cfg.IgnoreHosts {
		if strings.EqualFold(h, host) {
			return true
		}
	}
	return false
}
