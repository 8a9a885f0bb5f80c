// Package report renders a run as a standalone HTML page.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
	"github.com/PentesterFlow/JSRecon/internal/output"
)

// DefaultFile is the conventional report name.
const DefaultFile = "api_report.html"

// Generator renders reports from a parsed template.
type Generator struct {
	tmpl *template.Template
	now  func() time.Time
}

// Page is the data handed to the template.
type Page struct {
	Title       string
	Target      string
	GeneratedAt string
	Stats       Stats
	Endpoints   []Endpoint
	External    []Host
}

// Stats are the numbers shown on the summary cards.
type Stats struct {
	Endpoints      int
	StaticParams   int
	TemplateParams int
	Files          int
	Bodies         int
	ExternalHosts  int
}

// Endpoint is one endpoint card.
type Endpoint struct {
	Path           string
	Methods        []string
	Params         []Param
	TemplateParams []string
	Dynamic        []string
	Bodies         []Body
	Files          []string
}

// Param is a static parameter and its known values.
type Param struct {
	Name   string
	Values []string
}

// Body is one request body table.
type Body struct {
	ContentType string
	Properties  []Property
}

// Property is a row of a body table.
type Property struct {
	Name    string
	Type    string
	Example string
}

// Host groups the external URLs of one domain.
type Host struct {
	Name string
	URLs []string
}

// NewGenerator parses the report template.
func NewGenerator() (*Generator, error) {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"join":  strings.Join,
		"inc":   func(i int) int { return i + 1 },
	}

	tmpl, err := template.New("report").Funcs(funcMap).Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %w", err)
	}
	return &Generator{tmpl: tmpl, now: time.Now}, nil
}

// Build converts a run report into template data.
func (g *Generator) Build(r *output.Report) Page {
	page := Page{
		Title:       "API Endpoints Analysis",
		Target:      r.Target,
		GeneratedAt: g.now().Format("2006-01-02 15:04:05"),
	}

	files := make(map[string]struct{})
	for _, ep := range output.Endpoints(r.Result) {
		page.Endpoints = append(page.Endpoints, endpoint(ep))

		page.Stats.StaticParams += len(ep.Params)
		page.Stats.TemplateParams += len(ep.TemplateParams)
		page.Stats.Bodies += len(ep.RequestBodies)
		for _, f := range ep.Files {
			files[f] = struct{}{}
		}
	}
	page.Stats.Endpoints = len(page.Endpoints)
	page.Stats.Files = len(files)

	for _, host := range output.Hosts(r.External) {
		page.External = append(page.External, Host{Name: host, URLs: r.External[host]})
	}
	page.Stats.ExternalHosts = len(page.External)

	return page
}

func endpoint(ep output.Endpoint) Endpoint {
	out := Endpoint{
		Path:           ep.Path,
		Methods:        ep.HTTPMethods,
		TemplateParams: ep.TemplateParams,
		Dynamic:        ep.DynamicPatterns,
		Files:          ep.Files,
	}
	if len(out.Methods) == 0 {
		out.Methods = []string{aggregate.DefaultMethod}
	}

	names := make([]string, 0, len(ep.Params))
	for name := range ep.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out.Params = append(out.Params, Param{Name: name, Values: ep.Params[name]})
	}

	for _, b := range ep.RequestBodies {
		body := Body{ContentType: b.ContentType}
		if body.ContentType == "" {
			body.ContentType = aggregate.DefaultContentType
		}
		props := make([]string, 0, len(b.Properties))
		for name := range b.Properties {
			props = append(props, name)
		}
		sort.Strings(props)
		for _, name := range props {
			shape := b.Properties[name]
			body.Properties = append(body.Properties, Property{
				Name:    name,
				Type:    string(shape.Type),
				Example: example(shape.Example),
			})
		}
		out.Bodies = append(out.Bodies, body)
	}
	return out
}

func example(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return fmt.Sprintf("%q", x)
	case map[string]interface{}:
		return "{}"
	case []interface{}:
		return "[]"
	default:
		return fmt.Sprint(x)
	}
}

// Render writes the HTML page for r to w.
func (g *Generator) Render(w io.Writer, r *output.Report) error {
	return g.tmpl.Execute(w, g.Build(r))
}

// WriteFile renders r into path, creating parent directories.
func (g *Generator) WriteFile(path string, r *output.Report) error {
	if path == "" {
		path = DefaultFile
	}

	var buf bytes.Buffer
	if err := g.Render(&buf, r); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// HTML renders r into path with a fresh generator.
func HTML(path string, r *output.Report) error {
	g, err := NewGenerator()
	if err != nil {
		return err
	}
	return g.WriteFile(path, r)
}
