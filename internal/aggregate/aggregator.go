// Package aggregate merges endpoint observations from many files into one
// deduplicated record per canonical endpoint key.
//
// An Aggregator is owned by a single analysis run and is not safe for
// concurrent use. Scanners running in parallel should emit Facts and leave a
// single goroutine to Apply them.
package aggregate

import (
	"sort"
	"strings"
)

// DefaultMethod is reported for endpoints with no observed method.
const DefaultMethod = "GET"

// DynamicSuffix marks a parameter whose value is only known at runtime.
const DynamicSuffix = "=dynamic"

type set map[string]struct{}

func (s set) add(v string) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// record is the mutable form of EndpointRecord.
type record struct {
	files           set
	params          map[string]set
	templateParams  set
	dynamicPatterns set
	methods         set
	bodies          []Body
}

func newRecord() *record {
	return &record{
		files:           make(set),
		params:          make(map[string]set),
		templateParams:  make(set),
		dynamicPatterns: make(set),
		methods:         make(set),
	}
}

// Aggregator holds the endpoint records of one run.
type Aggregator struct {
	records map[string]*record
}

// New returns an empty Aggregator.
func New() *Aggregator {
	return &Aggregator{records: make(map[string]*record)}
}

// FromResult returns an Aggregator seeded with a previously serialized
// result, so a new run merges into it.
func FromResult(res Result) *Aggregator {
	a := New()
	for endpoint, rec := range res.BackendEndpoints {
		r := a.get(endpoint)
		for _, f := range rec.Files {
			r.files.add(f)
		}
		for name, values := range rec.Params {
			ps := r.param(name)
			for _, v := range values {
				ps.add(v)
			}
		}
		for _, expr := range rec.TemplateParams {
			r.templateParams.add(expr)
		}
		for _, p := range rec.DynamicPatterns {
			r.dynamicPatterns.add(p)
		}
		for _, m := range rec.HTTPMethods {
			r.methods.add(strings.ToUpper(m))
		}
		for _, b := range rec.RequestBodies {
			r.addBody(b)
		}
	}
	return a
}

func (a *Aggregator) get(endpoint string) *record {
	r, ok := a.records[endpoint]
	if !ok {
		r = newRecord()
		a.records[endpoint] = r
	}
	return r
}

func (r *record) param(name string) set {
	ps, ok := r.params[name]
	if !ok {
		ps = make(set)
		r.params[name] = ps
	}
	return ps
}

func (r *record) addBody(b Body) bool {
	for _, existing := range r.bodies {
		if Equivalent(existing, b) {
			return false
		}
	}
	r.bodies = append(r.bodies, b.Clone())
	return true
}

// ObserveFile records that endpoint was seen in file.
func (a *Aggregator) ObserveFile(endpoint, file string) bool {
	return a.get(endpoint).files.add(file)
}

// ObserveStaticParam adds a literal value for the named parameter.
func (a *Aggregator) ObserveStaticParam(endpoint, name, value string) bool {
	return a.get(endpoint).param(name).add(value)
}

// ObserveParamName marks a parameter as present without adding a value.
// It reports whether the parameter was new.
func (a *Aggregator) ObserveParamName(endpoint, name string) bool {
	r := a.get(endpoint)
	if _, ok := r.params[name]; ok {
		return false
	}
	r.param(name)
	return true
}

// ObserveTemplateParam records an interpolated path expression.
func (a *Aggregator) ObserveTemplateParam(endpoint, expr string) bool {
	return a.get(endpoint).templateParams.add(expr)
}

// ObserveDynamicParam records "<name>=dynamic" for the endpoint.
func (a *Aggregator) ObserveDynamicParam(endpoint, name string) bool {
	return a.get(endpoint).dynamicPatterns.add(name + DynamicSuffix)
}

// ObserveMethod records method in upper case. A blank method counts as GET.
func (a *Aggregator) ObserveMethod(endpoint, method string) bool {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = DefaultMethod
	}
	return a.get(endpoint).methods.add(method)
}

// ObserveBody appends body unless an equivalent one is already stored.
func (a *Aggregator) ObserveBody(endpoint string, body Body) bool {
	return a.get(endpoint).addBody(body)
}

// Apply dispatches a Fact to the matching Observe method. It reports whether
// the record changed.
func (a *Aggregator) Apply(f Fact) bool {
	switch f.Kind {
	case FactFile:
		return a.ObserveFile(f.Endpoint, f.Value)
	case FactStaticParam:
		return a.ObserveStaticParam(f.Endpoint, f.Name, f.Value)
	case FactParamName:
		return a.ObserveParamName(f.Endpoint, f.Name)
	case FactTemplateParam:
		return a.ObserveTemplateParam(f.Endpoint, f.Value)
	case FactDynamicParam:
		return a.ObserveDynamicParam(f.Endpoint, f.Name)
	case FactMethod:
		return a.ObserveMethod(f.Endpoint, f.Value)
	case FactBody:
		if f.Body == nil {
			return false
		}
		return a.ObserveBody(f.Endpoint, *f.Body)
	default:
		return false
	}
}

// Merge folds every record of other into a. Bodies from other are appended
// after a's in their original order.
func (a *Aggregator) Merge(other *Aggregator) {
	if other == nil {
		return
	}
	for _, endpoint := range other.Endpoints() {
		src := other.records[endpoint]
		dst := a.get(endpoint)
		for f := range src.files {
			dst.files.add(f)
		}
		for name, values := range src.params {
			ps := dst.param(name)
			for v := range values {
				ps.add(v)
			}
		}
		for e := range src.templateParams {
			dst.templateParams.add(e)
		}
		for p := range src.dynamicPatterns {
			dst.dynamicPatterns.add(p)
		}
		for m := range src.methods {
			dst.methods.add(m)
		}
		for _, b := range src.bodies {
			dst.addBody(b)
		}
	}
}

// Len returns the number of endpoint records.
func (a *Aggregator) Len() int {
	return len(a.records)
}

// Endpoints returns the endpoint keys in lexical order.
func (a *Aggregator) Endpoints() []string {
	keys := make([]string, 0, len(a.records))
	for k := range a.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Record returns the serialized form of one endpoint.
func (a *Aggregator) Record(endpoint string) (EndpointRecord, bool) {
	r, ok := a.records[endpoint]
	if !ok {
		return EndpointRecord{}, false
	}
	return r.snapshot(), true
}

// Result materializes every record. Collections become sorted lists and
// http_methods falls back to ["GET"].
func (a *Aggregator) Result() Result {
	res := Result{BackendEndpoints: make(map[string]EndpointRecord, len(a.records))}
	for endpoint, r := range a.records {
		res.BackendEndpoints[endpoint] = r.snapshot()
	}
	return res
}

func (r *record) snapshot() EndpointRecord {
	params := make(map[string][]string, len(r.params))
	for name, values := range r.params {
		params[name] = values.sorted()
	}

	methods := r.methods.sorted()
	if len(methods) == 0 {
		methods = []string{DefaultMethod}
	}

	bodies := make([]Body, 0, len(r.bodies))
	for _, b := range r.bodies {
		bodies = append(bodies, b.Clone())
	}

	return EndpointRecord{
		Files:           r.files.sorted(),
		Params:          params,
		TemplateParams:  r.templateParams.sorted(),
		DynamicPatterns: r.dynamicPatterns.sorted(),
		HTTPMethods:     methods,
		RequestBodies:   bodies,
	}
}
