// Package openapi converts an endpoint result into an OpenAPI 3.0 document.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
	"github.com/PentesterFlow/JSRecon/internal/jsobject"
	"github.com/PentesterFlow/JSRecon/internal/pathnorm"
)

// Version is the OpenAPI version written into generated documents.
const Version = "3.0.0"

// DefaultFile is the conventional output name.
const DefaultFile = "api_openapi_spec.json"

// DynamicDescription marks query parameters whose value is only known at runtime.
const DynamicDescription = "Dynamic parameter (value determined at runtime)"

// Option configures Generate.
type Option func(*openapi3.T)

// WithInfo overrides the info block.
func WithInfo(info openapi3.Info) Option {
	return func(doc *openapi3.T) {
		doc.Info = &info
	}
}

// WithServer replaces the server list with url.
func WithServer(url, description string) Option {
	return func(doc *openapi3.T) {
		doc.Servers = openapi3.Servers{{URL: url, Description: description}}
	}
}

var (
	numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	partSplit     = regexp.MustCompile(`[/{}-]`)
	templateParam = regexp.MustCompile(`\{[^{}/]*\}`)
	componentChar = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

var bodyMethods = map[string]bool{http.MethodPost: true, http.MethodPut: true, http.MethodPatch: true}

// operationMethods are the methods a path item can hold.
var operationMethods = map[string]bool{
	http.MethodGet: true, http.MethodPost: true, http.MethodPut: true,
	http.MethodPatch: true, http.MethodDelete: true, http.MethodHead: true,
	http.MethodOptions: true, http.MethodTrace: true, http.MethodConnect: true,
}

// generator carries the bookkeeping that keeps one document valid.
type generator struct {
	doc *openapi3.T
	// templates maps a path with its parameter names blanked to the first
	// path registered with that shape.
	templates    map[string]string
	operationIDs map[string]int
}

// Generate builds the document for res. Endpoints are visited in key order
// and the first definition of a path and method wins.
func Generate(res aggregate.Result, opts ...Option) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: Version,
		Info: &openapi3.Info{
			Title:       "Extracted API Specification",
			Description: "API specification generated from JavaScript analysis",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{{URL: "/", Description: "Local server"}},
		Paths:   openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
			SecuritySchemes: openapi3.SecuritySchemes{
				"bearerAuth": &openapi3.SecuritySchemeRef{Value: openapi3.NewJWTSecurityScheme()},
			},
		},
	}
	for _, opt := range opts {
		opt(doc)
	}

	g := &generator{
		doc:          doc,
		templates:    make(map[string]string),
		operationIDs: make(map[string]int),
	}

	keys := make([]string, 0, len(res.BackendEndpoints))
	for k := range res.BackendEndpoints {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, endpoint := range keys {
		rec := res.BackendEndpoints[endpoint]
		// A placeholder with no recorded expression says nothing about the path.
		if pathnorm.HasPlaceholder(endpoint) && len(rec.TemplateParams) == 0 {
			continue
		}
		g.addEndpoint(endpoint, rec)
	}

	if len(doc.Components.Schemas) == 0 {
		doc.Components.Schemas = nil
	}
	return doc
}

// path numbers the placeholders of endpoint and folds it onto an earlier
// path of the same shape, so /a/{x} and /a/{y} share one entry.
func (g *generator) path(endpoint string) (string, []string) {
	path, names := pathnorm.Number(endpoint)
	path, names = cleanParams(path, unique(names))
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	shape := templateParam.ReplaceAllString(path, "{}")
	if first, ok := g.templates[shape]; ok {
		return first, templateNames(first)
	}
	g.templates[shape] = path
	return path, names
}

func (g *generator) addEndpoint(endpoint string, rec aggregate.EndpointRecord) {
	path, pathParams := g.path(endpoint)

	item := g.doc.Paths.Value(path)
	if item == nil {
		item = &openapi3.PathItem{}
		g.doc.Paths.Set(path, item)
	}

	methods := rec.HTTPMethods
	if len(methods) == 0 {
		methods = []string{aggregate.DefaultMethod}
	}

	for _, m := range methods {
		method := strings.ToUpper(m)
		if !operationMethods[method] || item.GetOperation(method) != nil {
			continue
		}
		lower := strings.ToLower(method)

		op := openapi3.NewOperation()
		op.Summary = method + " " + endpoint
		op.Description = "Endpoint extracted from JavaScript analysis"
		op.OperationID = g.operationID(lower + titleParts(path))
		op.Tags = []string{tag(path)}
		op.Responses = openapi3.NewResponses(
			openapi3.WithStatus(200, response("Successful response")),
			openapi3.WithStatus(400, response("Bad request")),
			openapi3.WithStatus(401, response("Unauthorized")),
		)
		op.Parameters = parameters(pathParams, rec)

		if bodyMethods[method] {
			if body, ok := bestBody(rec.RequestBodies); ok {
				name := componentName(titleParts(path) + title(lower) + "Body")
				schema := bodySchema(body)
				g.doc.Components.Schemas[name] = schema.NewRef()

				contentType := body.ContentType
				if contentType == "" {
					contentType = aggregate.DefaultContentType
				}
				ref := &openapi3.SchemaRef{Ref: "#/components/schemas/" + name, Value: schema}
				op.RequestBody = &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
					WithDescription("Request body").
					WithRequired(true).
					WithContent(openapi3.Content{
						contentType: openapi3.NewMediaType().WithSchemaRef(ref),
					})}
			}
		}

		item.SetOperation(method, op)
	}
}

// operationID returns id, suffixed with a counter when it is already taken.
func (g *generator) operationID(id string) string {
	n := g.operationIDs[id]
	g.operationIDs[id] = n + 1
	if n == 0 {
		return id
	}
	return id + strconv.Itoa(n+1)
}

func response(description string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(description)}
}

// parameters lists the path parameters, then the static query parameters by
// name, then dynamic ones not already listed.
func parameters(pathParams []string, rec aggregate.EndpointRecord) openapi3.Parameters {
	var params openapi3.Parameters
	for _, name := range pathParams {
		p := openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema())
		params = append(params, &openapi3.ParameterRef{Value: p})
	}

	names := make([]string, 0, len(rec.Params))
	for name := range rec.Params {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	query := make(map[string]bool, len(names))
	for _, name := range names {
		query[name] = true
		p := openapi3.NewQueryParameter(name).WithSchema(querySchema(rec.Params[name]))
		params = append(params, &openapi3.ParameterRef{Value: p})
	}

	for _, name := range rec.DynamicNames() {
		if name == "" || query[name] {
			continue
		}
		query[name] = true
		p := openapi3.NewQueryParameter(name).
			WithSchema(openapi3.NewStringSchema()).
			WithDescription(DynamicDescription)
		params = append(params, &openapi3.ParameterRef{Value: p})
	}
	return params
}

// queryType guesses a parameter type from its first value.
func queryType(values []string) string {
	if len(values) == 0 || values[0] == "" {
		return openapi3.TypeString
	}
	v := values[0]
	switch {
	case strings.EqualFold(v, "true") || strings.EqualFold(v, "false"):
		return openapi3.TypeBoolean
	case isDigits(v):
		return openapi3.TypeInteger
	case numberPattern.MatchString(v):
		return openapi3.TypeNumber
	default:
		return openapi3.TypeString
	}
}

func querySchema(values []string) *openapi3.Schema {
	switch queryType(values) {
	case openapi3.TypeBoolean:
		return openapi3.NewBoolSchema()
	case openapi3.TypeInteger:
		return openapi3.NewIntegerSchema()
	case openapi3.TypeNumber:
		return openapi3.NewFloat64Schema()
	default:
		return openapi3.NewStringSchema()
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// bestBody picks the body with the most properties, the earliest on ties.
func bestBody(bodies []aggregate.Body) (aggregate.Body, bool) {
	if len(bodies) == 0 {
		return aggregate.Body{}, false
	}
	best := bodies[0]
	for _, b := range bodies[1:] {
		if len(b.Properties) > len(best.Properties) {
			best = b
		}
	}
	return best, true
}

func bodySchema(body aggregate.Body) *openapi3.Schema {
	schema := openapi3.NewObjectSchema()
	for name, shape := range body.Properties {
		schema.Properties[name] = propertySchema(shape).NewRef()
	}
	return schema
}

func propertySchema(shape jsobject.Shape) *openapi3.Schema {
	var schema *openapi3.Schema
	switch shape.Type {
	case jsobject.TypeNumber:
		schema = openapi3.NewFloat64Schema()
	case jsobject.TypeBoolean:
		schema = openapi3.NewBoolSchema()
	case jsobject.TypeObject:
		schema = openapi3.NewObjectSchema()
	case jsobject.TypeArray:
		items := openapi3.NewStringSchema()
		if shape.Items != nil {
			items = propertySchema(jsobject.Shape{Type: shape.Items.Type})
		}
		schema = openapi3.NewArraySchema().WithItems(items)
	default:
		schema = openapi3.NewStringSchema()
	}
	schema.Example = shape.Example
	return schema
}

func tag(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if parts[0] == "" {
		return "api"
	}
	return parts[0]
}

// titleParts joins the words of path, each title-cased.
func titleParts(path string) string {
	var b strings.Builder
	for _, part := range partSplit.Split(strings.Trim(path, "/"), -1) {
		if part != "" {
			b.WriteString(title(part))
		}
	}
	return b.String()
}

// title upper-cases the first letter of every letter run and lower-cases the
// rest, so "userId" becomes "Userid" and "v2beta" becomes "V2Beta".
func title(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// componentName drops the characters a components key may not contain.
func componentName(name string) string {
	name = componentChar.ReplaceAllString(name, "")
	if name == "" {
		return "Body"
	}
	return name
}

// cleanParams renames path parameters whose expression cannot sit inside a
// path template, such as ${fn({a})} or ${a/b}.
func cleanParams(path string, names []string) (string, []string) {
	out := make([]string, 0, len(names))
	for i, name := range names {
		if name != "" && !strings.ContainsAny(name, "{}/") {
			out = append(out, name)
			continue
		}
		renamed := fmt.Sprintf("expr%d", i+1)
		path = strings.ReplaceAll(path, "{"+name+"}", "{"+renamed+"}")
		out = append(out, renamed)
	}
	return path, out
}

// templateNames returns the parameter names of a path template in order.
func templateNames(path string) []string {
	var names []string
	for _, m := range templateParam.FindAllString(path, -1) {
		names = append(names, strings.Trim(m, "{}"))
	}
	return unique(names)
}

func unique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// Validate checks doc against the OpenAPI 3.0 rules. Examples are inferred
// from source snippets and are not checked against their schemas.
func Validate(ctx context.Context, doc *openapi3.T) error {
	return doc.Validate(ctx, openapi3.DisableExamplesValidation())
}

// JSON encodes the document, indented when pretty is set.
func JSON(doc *openapi3.T, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(doc, "", "  ")
	}
	return json.Marshal(doc)
}

// YAML encodes the document as YAML.
func YAML(doc *openapi3.T) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var tree interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return yaml.Marshal(tree)
}

// Save validates doc and writes it to path. A .yaml or .yml extension
// selects YAML, anything else indented JSON.
func Save(ctx context.Context, doc *openapi3.T, path string) error {
	if path == "" {
		path = DefaultFile
	}

	if err := Validate(ctx, doc); err != nil {
		return fmt.Errorf("invalid openapi document: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = YAML(doc)
	default:
		data, err = JSON(doc, true)
	}
	if err != nil {
		return fmt.Errorf("failed to encode openapi document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
