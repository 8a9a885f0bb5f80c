package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
)

// Console writes a plain-text listing of the endpoints for the terminal.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewConsole creates a console writer.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// WriteReport lists the endpoints followed by the external hosts.
func (c *Console) WriteReport(report *Report) error {
	if err := c.WriteResult(report.Result); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}

	if len(report.External) == 0 {
		_, err := fmt.Fprintln(c.w, "No external API calls found.")
		return err
	}
	fmt.Fprintln(c.w, "External API calls by domain:")
	for _, host := range Hosts(report.External) {
		c.external(host, report.External[host])
	}
	return nil
}

// WriteResult lists every endpoint with its methods, parameters, bodies and
// files.
func (c *Console) WriteResult(result aggregate.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if len(result.BackendEndpoints) == 0 {
		_, err := fmt.Fprintln(c.w, "No API endpoints found.")
		return err
	}

	fmt.Fprintf(c.w, "API endpoints (%d):\n\n", len(result.BackendEndpoints))
	for _, ep := range Endpoints(result) {
		ep := ep
		c.endpoint(&ep)
	}
	return nil
}

// WriteEndpoint prints a single endpoint.
func (c *Console) WriteEndpoint(endpoint *Endpoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.endpoint(endpoint)
	}
	return nil
}

// WriteExternal prints the external URLs of one host.
func (c *Console) WriteExternal(host string, urls []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.external(host, urls)
	}
	return nil
}

// WriteError prints an error line.
func (c *Console) WriteError(err *Error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	_, werr := fmt.Fprintf(c.w, "error: %s %s: %s\n", err.Type, err.Target, err.Message)
	return werr
}

func (c *Console) endpoint(ep *Endpoint) {
	methods := ep.HTTPMethods
	if len(methods) == 0 {
		methods = []string{aggregate.DefaultMethod}
	}
	fmt.Fprintf(c.w, "%s [%s]\n", ep.Path, strings.Join(methods, ", "))

	if len(ep.Params) > 0 {
		fmt.Fprintln(c.w, "  Static parameters:")
		names := make([]string, 0, len(ep.Params))
		for name := range ep.Params {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			values := ep.Params[name]
			if len(values) == 0 {
				fmt.Fprintf(c.w, "    - %s: <no value>\n", name)
				continue
			}
			fmt.Fprintf(c.w, "    - %s: %s\n", name, strings.Join(values, ", "))
		}
	}

	if len(ep.TemplateParams) > 0 {
		fmt.Fprintln(c.w, "  Template parameters:")
		for _, p := range ep.TemplateParams {
			fmt.Fprintf(c.w, "    - ${%s}\n", p)
		}
	}

	if len(ep.DynamicPatterns) > 0 {
		fmt.Fprintln(c.w, "  Dynamic parameters:")
		for _, p := range ep.DynamicPatterns {
			fmt.Fprintf(c.w, "    - %s\n", p)
		}
	}

	for i, body := range ep.RequestBodies {
		fmt.Fprintf(c.w, "  Body #%d (%s):\n", i+1, body.ContentType)
		names := make([]string, 0, len(body.Properties))
		for name := range body.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(c.w, "    - %s (%s)\n", name, body.Properties[name].Type)
		}
	}

	fmt.Fprintln(c.w, "  Found in:")
	for _, f := range ep.Files {
		fmt.Fprintf(c.w, "    - %s\n", f)
	}
	fmt.Fprintln(c.w)
}

func (c *Console) external(host string, urls []string) {
	fmt.Fprintf(c.w, "  %s\n", host)
	for _, u := range urls {
		fmt.Fprintf(c.w, "    - %s\n", u)
	}
}

// Flush is a no-op; lines are written immediately.
func (c *Console) Flush() error {
	return nil
}

// Close stops further output. The underlying writer is left open.
func (c *Console) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}
