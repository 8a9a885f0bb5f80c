package state

import (
	"time"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
)

// RunStats summarizes one scan run.
type RunStats struct {
	Files      int              `json:"files"`
	Bytes      int64            `json:"bytes"`
	Endpoints  int              `json:"endpoints"`
	Facts      int64            `json:"facts"`
	Errors     int64            `json:"errors"`
	Recoveries map[string]int64 `json:"recoveries,omitempty"`
	Duration   time.Duration    `json:"duration"`
}

// Run is a stored scan: the aggregated result plus what was scanned.
type Run struct {
	Target     string              `json:"target"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Files      []string            `json:"files"`
	Result     aggregate.Result    `json:"result"`
	External   map[string][]string `json:"external_endpoints,omitempty"`
	Stats      RunStats            `json:"stats"`
}

// RunSummary is the listing form of a Run.
type RunSummary struct {
	Target     string    `json:"target"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Files      int       `json:"files"`
	Endpoints  int       `json:"endpoints"`
}

// Summary returns the listing form of r.
func (r *Run) Summary() RunSummary {
	return RunSummary{
		Target:     r.Target,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Files:      len(r.Files),
		Endpoints:  len(r.Result.BackendEndpoints),
	}
}
