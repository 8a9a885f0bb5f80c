package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
)

// JSONWriter writes output in JSON format.
type JSONWriter struct {
	mu     sync.Mutex
	writer io.Writer
	pretty bool
	stream bool
	closed bool
}

// NewJSONWriter creates a new JSON writer.
func NewJSONWriter(w io.Writer, pretty, stream bool) *JSONWriter {
	return &JSONWriter{
		writer: w,
		pretty: pretty,
		stream: stream,
	}
}

// WriteReport writes the complete run report.
func (j *JSONWriter) WriteReport(report *Report) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	return j.write(report)
}

// WriteResult writes the endpoint map alone. In stream mode each endpoint
// becomes its own event instead.
func (j *JSONWriter) WriteResult(result aggregate.Result) error {
	if j.stream {
		for _, ep := range Endpoints(result) {
			ep := ep
			if err := j.WriteEndpoint(&ep); err != nil {
				return err
			}
		}
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	return j.write(normalize(result))
}

// WriteEndpoint writes a single endpoint in streaming mode.
func (j *JSONWriter) WriteEndpoint(endpoint *Endpoint) error {
	return j.event("endpoint", endpoint)
}

// WriteExternal writes one host's external URLs in streaming mode.
func (j *JSONWriter) WriteExternal(host string, urls []string) error {
	return j.event("external", ExternalHost{Host: host, URLs: urls})
}

// WriteError writes an error in streaming mode.
func (j *JSONWriter) WriteError(err *Error) error {
	return j.event("error", err)
}

func (j *JSONWriter) event(kind string, data interface{}) error {
	if !j.stream {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	return j.write(StreamEvent{Type: kind, Data: data})
}

func (j *JSONWriter) write(v interface{}) error {
	data, err := marshal(v, j.pretty)
	if err != nil {
		return err
	}

	if _, err := j.writer.Write(data); err != nil {
		return err
	}
	_, err = j.writer.Write([]byte("\n"))
	return err
}

func marshal(v interface{}, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// normalize makes sure an empty result still serializes as an object.
func normalize(result aggregate.Result) aggregate.Result {
	if result.BackendEndpoints == nil {
		result.BackendEndpoints = map[string]aggregate.EndpointRecord{}
	}
	return result
}

// Flush flushes the writer.
func (j *JSONWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if flusher, ok := j.writer.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

// Close closes the writer.
func (j *JSONWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true

	if closer, ok := j.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// StreamEvent represents a streaming output event.
type StreamEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExternalHost is the payload of an "external" stream event.
type ExternalHost struct {
	Host string   `json:"host"`
	URLs []string `json:"urls"`
}

// WriteResultsFile writes result to path as {"backend_endpoints": ...},
// creating parent directories as needed.
func WriteResultsFile(path string, result aggregate.Result, pretty bool) error {
	if path == "" {
		path = DefaultResultsFile
	}
	data, err := marshal(normalize(result), pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// ReadResultsFile reads a results file written by WriteResultsFile.
func ReadResultsFile(path string) (aggregate.Result, error) {
	var result aggregate.Result
	data, err := os.ReadFile(path)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return normalize(result), nil
}
