package scanner

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
	"github.com/PentesterFlow/JSRecon/internal/jsobject"
	"github.com/PentesterFlow/JSRecon/internal/metrics"
)

// callStyle says how a call's arguments are laid out.
type callStyle int

const (
	// client.verb(url, [data,] config)
	styleMethod callStyle = iota
	// $.get(url, data)
	styleJQuery
	// fetch(url, options)
	styleFetch
	// $.ajax({url, ...}), $.ajax(url, {...}), axios({...})
	styleConfig
	// xhr.open(method, url)
	styleXHR
)

var (
	axiosMethodPattern   = regexp.MustCompile(`\baxios\s*\.\s*(get|post|put|delete|patch|head|options)\s*\(`)
	axiosInstancePattern = regexp.MustCompile(`(?:const|let|var)\s+([A-Za-z_$][\w$]*)\s*=\s*axios\b`)
	jqueryMethodPattern  = regexp.MustCompile(`(?:\$|\bjQuery)\s*\.\s*(get|post|getJSON)\s*\(`)
	configCallPattern    = regexp.MustCompile(`(?:\$|\bjQuery)\s*\.\s*ajax\s*\(|\baxios\s*(?:\.\s*request\s*)?\(`)
	fetchPattern         = regexp.MustCompile(`\bfetch\s*\(`)
	xhrOpenPattern       = regexp.MustCompile(`\.open\s*\(\s*['"]([A-Za-z]+)['"]\s*,`)
)

// call is one located call expression.
type call struct {
	pos    int
	open   int
	method string
	style  callStyle
}

// scanCalls handles the HTTP client calls of content. Parameters and bodies
// are paired with a path only inside the same call expression.
func (s *Scanner) scanCalls(e *emitter, content string) {
	for _, c := range findCalls(content) {
		s.handleCall(e, content, c)
	}
}

func findCalls(content string) []call {
	var calls []call

	verbCalls := func(re *regexp.Regexp, style callStyle) {
		for _, m := range re.FindAllStringSubmatchIndex(content, -1) {
			method := strings.ToUpper(content[m[2]:m[3]])
			if method == "GETJSON" {
				method = aggregate.DefaultMethod
			}
			calls = append(calls, call{pos: m[0], open: m[1] - 1, method: method, style: style})
		}
	}

	verbCalls(axiosMethodPattern, styleMethod)
	verbCalls(jqueryMethodPattern, styleJQuery)
	for _, name := range axiosInstances(content) {
		verbCalls(instancePattern(name), styleMethod)
	}

	for _, m := range configCallPattern.FindAllStringIndex(content, -1) {
		calls = append(calls, call{pos: m[0], open: m[1] - 1, style: styleConfig})
	}
	for _, m := range fetchPattern.FindAllStringIndex(content, -1) {
		calls = append(calls, call{pos: m[0], open: m[1] - 1, style: styleFetch})
	}
	for _, m := range xhrOpenPattern.FindAllStringSubmatchIndex(content, -1) {
		open := m[0] + strings.IndexByte(content[m[0]:m[1]], '(')
		calls = append(calls, call{
			pos:    m[0],
			open:   open,
			method: strings.ToUpper(content[m[2]:m[3]]),
			style:  styleXHR,
		})
	}

	sort.SliceStable(calls, func(i, j int) bool { return calls[i].pos < calls[j].pos })
	return calls
}

// axiosInstances returns the names bound to axios or an axios instance.
func axiosInstances(content string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range axiosInstancePattern.FindAllStringSubmatch(content, -1) {
		name := m[1]
		if name == "axios" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func instancePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\w$.])` + regexp.QuoteMeta(name) +
		`\s*\.\s*(get|post|put|delete|patch|head|options)\s*\(`)
}

func (s *Scanner) handleCall(e *emitter, content string, c call) {
	limit := c.open + s.cfg.CallSpanLimit
	if limit > len(content) {
		limit = len(content)
	}
	end := jsobject.MatchCloseWithin(content, c.open, limit)
	if end < 0 {
		e.recover(metrics.RecoveryUnbalancedInput, content[c.pos:limit])
		end = limit
	}
	args := jsobject.SplitArguments(content[c.open+1 : end])
	if len(args) == 0 {
		return
	}

	method := c.method
	var urlExpr, dataExpr, optionsExpr string

	switch c.style {
	case styleMethod:
		urlExpr = args[0]
		if hasBody(method) {
			dataExpr, optionsExpr = arg(args, 1), arg(args, 2)
		} else {
			optionsExpr = arg(args, 1)
		}
	case styleJQuery:
		urlExpr, dataExpr = args[0], arg(args, 1)
	case styleFetch:
		urlExpr, optionsExpr = args[0], arg(args, 1)
	case styleConfig:
		if strings.HasPrefix(args[0], "{") || (isReference(args[0]) && !s.holdsURL(content, c.pos, args[0])) {
			optionsExpr = args[0]
		} else {
			urlExpr, optionsExpr = args[0], arg(args, 1)
		}
	case styleXHR:
		urlExpr = arg(args, 1)
	}

	var options string
	if optionsExpr != "" {
		options, _ = s.objectArg(content, c.pos, optionsExpr)
	}
	if options != "" {
		if urlExpr == "" {
			urlExpr, _ = jsobject.Lookup(options, "url")
		}
		if method == "" {
			method = optionMethod(options)
		}
		if dataExpr == "" && (c.style == styleConfig || c.style == styleFetch) {
			if v, ok := jsobject.Lookup(options, "data"); ok {
				dataExpr = v
			} else if v, ok := jsobject.Lookup(options, "body"); ok {
				dataExpr = v
			}
		}
	}

	raw, ok := s.urlArg(content, c.pos, urlExpr)
	if !ok || !s.hasPrefix(raw) {
		return
	}
	key, ok := e.endpoint(raw)
	if !ok {
		return
	}

	if method == "" {
		method = aggregate.DefaultMethod
	}
	e.method(key, method)

	if options != "" {
		if p, ok := jsobject.Lookup(options, "params"); ok {
			if obj, ok := s.objectArg(content, c.pos, p); ok {
				e.params(key, obj)
			}
		}
	}

	if dataExpr == "" {
		return
	}
	obj, ok := s.objectArg(content, c.pos, dataExpr)
	if !ok {
		return
	}
	switch {
	case hasBody(method):
		e.body(key, obj, s.contentType(content, c.pos, options))
	case c.style == styleJQuery || c.style == styleConfig:
		// jQuery sends data as the query string of GET requests
		e.params(key, obj)
	}
}

// holdsURL reports whether a reference passed to $.ajax or axios holds a URL
// rather than a settings object.
func (s *Scanner) holdsURL(content string, pos int, ref string) bool {
	v, ok := s.resolve(content, pos, ref)
	return ok && !strings.HasPrefix(v, "{")
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func hasBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}

// optionMethod reads the verb from a `method:` or jQuery `type:` option.
func optionMethod(options string) string {
	for _, key := range []string{"method", "type"} {
		if v, ok := jsobject.Lookup(options, key); ok {
			if m, ok := literalValue(v); ok && m != "" {
				return strings.ToUpper(m)
			}
		}
	}
	return ""
}

// contentType reads the request content type from call options.
func (s *Scanner) contentType(content string, pos int, options string) string {
	if options == "" {
		return ""
	}
	if v, ok := jsobject.Lookup(options, "contentType"); ok {
		if ct, ok := literalValue(v); ok {
			return ct
		}
	}
	h, ok := jsobject.Lookup(options, "headers")
	if !ok {
		return ""
	}
	headers, ok := s.objectArg(content, pos, h)
	if !ok {
		return ""
	}
	for _, p := range jsobject.Pairs(headers) {
		if strings.EqualFold(p.Key, "content-type") {
			if ct, ok := literalValue(p.Value); ok {
				return ct
			}
		}
	}
	return ""
}
