// Package output writes scan results: JSON documents and event streams, the
// results file, and a plain-text listing for the terminal.
package output

import (
	"io"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
)

// Writer defines the interface for output writers.
type Writer interface {
	// WriteReport writes the complete run report
	WriteReport(report *Report) error

	// WriteResult writes only the endpoint map, as {"backend_endpoints": ...}
	WriteResult(result aggregate.Result) error

	// WriteEndpoint writes a single endpoint (for streaming)
	WriteEndpoint(endpoint *Endpoint) error

	// WriteExternal writes the external URLs of one host (for streaming)
	WriteExternal(host string, urls []string) error

	// WriteError writes an error (for streaming)
	WriteError(err *Error) error

	// Flush flushes any buffered output
	Flush() error

	// Close closes the writer
	Close() error
}

// Config holds output configuration.
type Config struct {
	Format string `json:"format" yaml:"format"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Stream bool   `json:"stream" yaml:"stream"`
}

// NewWriter creates a new output writer.
func NewWriter(w io.Writer, config Config) Writer {
	switch config.Format {
	case "text", "console":
		return NewConsole(w)
	default:
		return NewJSONWriter(w, config.Pretty, config.Stream)
	}
}
