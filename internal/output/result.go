package output

import (
	"sort"
	"time"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
)

// DefaultResultsFile is the conventional name of the results file.
const DefaultResultsFile = "api_query_results.json"

// Report is the complete result of one run.
type Report struct {
	Target      string              `json:"target,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at,omitempty"`
	Stats       Stats               `json:"stats"`
	Result      aggregate.Result    `json:"result"`
	External    map[string][]string `json:"external_endpoints"`
	Errors      []Error             `json:"errors,omitempty"`
}

// Stats contains statistics about a run.
type Stats struct {
	Scripts      int              `json:"scripts"`
	Files        int              `json:"files"`
	Bytes        int64            `json:"bytes"`
	Endpoints    int              `json:"endpoints"`
	WithParams   int              `json:"with_params"`
	WithBodies   int              `json:"with_request_bodies"`
	ExternalURLs int              `json:"external_urls"`
	Facts        int64            `json:"facts"`
	Recoveries   map[string]int64 `json:"recoveries,omitempty"`
	ErrorCount   int              `json:"error_count"`
	Duration     time.Duration    `json:"duration"`
}

// Endpoint is one record of the result together with its key, the unit of
// streaming output.
type Endpoint struct {
	Path string `json:"path"`
	aggregate.EndpointRecord
}

// Error is a non-fatal failure recorded during a run.
type Error struct {
	Target    string    `json:"target"`
	Operation string    `json:"operation,omitempty"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Endpoints lists the records of res sorted by path.
func Endpoints(res aggregate.Result) []Endpoint {
	paths := make([]string, 0, len(res.BackendEndpoints))
	for p := range res.BackendEndpoints {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]Endpoint, 0, len(paths))
	for _, p := range paths {
		out = append(out, Endpoint{Path: p, EndpointRecord: res.BackendEndpoints[p]})
	}
	return out
}

// Hosts returns the hosts of an external endpoint map, sorted.
func Hosts(external map[string][]string) []string {
	hosts := make([]string, 0, len(external))
	for h := range external {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	return hosts
}
