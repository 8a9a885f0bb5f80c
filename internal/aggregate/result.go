package aggregate

import (
	"strings"
)

// Result is the serialized output of a run, consumed read-only by the
// writers and report generators.
type Result struct {
	BackendEndpoints map[string]EndpointRecord `json:"backend_endpoints" yaml:"backend_endpoints"`
}

// EndpointRecord is everything known about one endpoint.
type EndpointRecord struct {
	Files           []string            `json:"files" yaml:"files"`
	Params          map[string][]string `json:"params" yaml:"params"`
	TemplateParams  []string            `json:"template_params" yaml:"template_params"`
	DynamicPatterns []string            `json:"dynamic_patterns" yaml:"dynamic_patterns"`
	HTTPMethods     []string            `json:"http_methods" yaml:"http_methods"`
	RequestBodies   []Body              `json:"request_bodies" yaml:"request_bodies"`
}

// DynamicNames returns the parameter names from the "<name>=dynamic" markers.
func (r EndpointRecord) DynamicNames() []string {
	names := make([]string, 0, len(r.DynamicPatterns))
	for _, p := range r.DynamicPatterns {
		names = append(names, strings.TrimSuffix(p, DynamicSuffix))
	}
	return names
}

// HasMethod reports whether the record lists method.
func (r EndpointRecord) HasMethod(method string) bool {
	method = strings.ToUpper(method)
	for _, m := range r.HTTPMethods {
		if m == method {
			return true
		}
	}
	return false
}

// Stats summarizes a Result.
type Stats struct {
	Endpoints       int            `json:"endpoints"`
	WithParams      int            `json:"with_params"`
	WithTemplates   int            `json:"with_template_params"`
	WithDynamic     int            `json:"with_dynamic_patterns"`
	WithBodies      int            `json:"with_request_bodies"`
	TotalBodies     int            `json:"total_request_bodies"`
	DistinctFiles   int            `json:"distinct_files"`
	MethodBreakdown map[string]int `json:"methods"`
}

// Summarize counts what a Result contains.
func (res Result) Summarize() Stats {
	s := Stats{MethodBreakdown: make(map[string]int)}
	files := make(set)

	for _, r := range res.BackendEndpoints {
		s.Endpoints++
		if len(r.Params) > 0 {
			s.WithParams++
		}
		if len(r.TemplateParams) > 0 {
			s.WithTemplates++
		}
		if len(r.DynamicPatterns) > 0 {
			s.WithDynamic++
		}
		if len(r.RequestBodies) > 0 {
			s.WithBodies++
			s.TotalBodies += len(r.RequestBodies)
		}
		for _, f := range r.Files {
			files.add(f)
		}
		for _, m := range r.HTTPMethods {
			s.MethodBreakdown[m]++
		}
	}
	s.DistinctFiles = len(files)
	return s
}
