package openapi

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/JSRecon/internal/aggregate"
	"github.com/PentesterFlow/JSRecon/internal/jsobject"
)

func sampleResult() aggregate.Result {
	a := aggregate.New()

	a.ObserveFile("/api/users", "main.js")
	a.ObserveStaticParam("/api/users", "page", "2")
	a.ObserveStaticParam("/api/users", "active", "true")
	a.ObserveStaticParam("/api/users", "ratio", "-0.5")
	a.ObserveStaticParam("/api/users", "q", "bob")
	a.ObserveParamName("/api/users", "debug")
	a.ObserveDynamicParam("/api/users", "sort")
	a.ObserveMethod("/api/users", "GET")
	a.ObserveMethod("/api/users", "POST")
	a.ObserveBody("/api/users", aggregate.NewBody(jsobject.Properties{
		"name": {Type: jsobject.TypeString, Example: "x"},
	}))
	a.ObserveBody("/api/users", aggregate.NewBody(jsobject.Properties{
		"name": {Type: jsobject.TypeString, Example: "x"},
		"age":  {Type: jsobject.TypeNumber, Example: 30.0},
	}))

	a.ObserveFile("/api/users/{PARAM}/orders", "main.js")
	a.ObserveTemplateParam("/api/users/{PARAM}/orders", "userId")
	a.ObserveMethod("/api/users/{PARAM}/orders", "put")

	// no template params recorded, so it is skipped
	a.ObserveFile("/api/items/{PARAM}", "main.js")

	return a.Result()
}

// =============================================================================
// Generate
// =============================================================================

func operation(t *testing.T, doc *openapi3.T, path, method string) *openapi3.Operation {
	t.Helper()
	item := doc.Paths.Value(path)
	if item == nil {
		t.Fatalf("path %s missing", path)
	}
	op := item.GetOperation(method)
	if op == nil {
		t.Fatalf("operation %s %s missing", method, path)
	}
	return op
}

func TestGenerate_Document(t *testing.T) {
	doc := Generate(sampleResult())

	if err := Validate(context.Background(), doc); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if doc.OpenAPI != "3.0.0" {
		t.Errorf("OpenAPI = %q, want 3.0.0", doc.OpenAPI)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "/" {
		t.Errorf("Servers = %v", doc.Servers)
	}
	if s := doc.Components.SecuritySchemes["bearerAuth"].Value; s.Scheme != "bearer" || s.BearerFormat != "JWT" {
		t.Errorf("bearerAuth = %+v", s)
	}

	want := []string{"/api/users", "/api/users/{param1}/orders"}
	if doc.Paths.Len() != len(want) {
		t.Fatalf("Paths = %d entries, want %d", doc.Paths.Len(), len(want))
	}
	for _, p := range want {
		if doc.Paths.Value(p) == nil {
			t.Errorf("missing path %s", p)
		}
	}
	if doc.Paths.Value("/api/items/{param1}") != nil {
		t.Error("placeholder path without template params should be skipped")
	}
}

func TestGenerate_Operations(t *testing.T) {
	doc := Generate(sampleResult())

	tests := []struct {
		path        string
		method      string
		operationID string
		tag         string
	}{
		{"/api/users", "GET", "getApiUsers", "api"},
		{"/api/users", "POST", "postApiUsers", "api"},
		{"/api/users/{param1}/orders", "PUT", "putApiUsersParam1Orders", "api"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			op := operation(t, doc, tt.path, tt.method)
			if op.OperationID != tt.operationID {
				t.Errorf("OperationID = %q, want %q", op.OperationID, tt.operationID)
			}
			if len(op.Tags) != 1 || op.Tags[0] != tt.tag {
				t.Errorf("Tags = %v, want [%s]", op.Tags, tt.tag)
			}
			if op.Responses.Len() != 3 || op.Responses.Status(401) == nil {
				t.Errorf("Responses = %d, want 200/400/401", op.Responses.Len())
			}
		})
	}
}

func TestGenerate_Parameters(t *testing.T) {
	doc := Generate(sampleResult())

	params := make(map[string]*openapi3.Parameter)
	for _, ref := range operation(t, doc, "/api/users", "GET").Parameters {
		params[ref.Value.Name] = ref.Value
	}

	tests := []struct {
		name     string
		in       string
		typ      string
		required bool
		dynamic  bool
	}{
		{"page", "query", "integer", false, false},
		{"active", "query", "boolean", false, false},
		{"ratio", "query", "number", false, false},
		{"q", "query", "string", false, false},
		{"debug", "query", "string", false, false},
		{"sort", "query", "string", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := params[tt.name]
			if !ok {
				t.Fatalf("parameter %s missing", tt.name)
			}
			if p.In != tt.in || !p.Schema.Value.Type.Is(tt.typ) || p.Required != tt.required {
				t.Errorf("parameter = %+v (type %v), want in=%s type=%s", p, p.Schema.Value.Type, tt.in, tt.typ)
			}
			if (p.Description == DynamicDescription) != tt.dynamic {
				t.Errorf("Description = %q, dynamic %v", p.Description, tt.dynamic)
			}
		})
	}

	orders := operation(t, doc, "/api/users/{param1}/orders", "PUT")
	if len(orders.Parameters) != 1 {
		t.Fatalf("orders parameters = %v", orders.Parameters)
	}
	if p := orders.Parameters[0].Value; p.Name != "param1" || p.In != "path" || !p.Required {
		t.Errorf("path parameter = %+v", p)
	}
}

func TestGenerate_StaticAndDynamicQueryName(t *testing.T) {
	a := aggregate.New()
	a.ObserveStaticParam("/api/search", "page", "1")
	a.ObserveDynamicParam("/api/search", "page")
	a.ObserveDynamicParam("/api/search", "cursor")
	a.ObserveMethod("/api/search", "GET")

	doc := Generate(a.Result())
	if err := Validate(context.Background(), doc); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	var got []string
	for _, ref := range operation(t, doc, "/api/search", "GET").Parameters {
		got = append(got, ref.Value.In+":"+ref.Value.Name)
	}
	if strings.Join(got, ",") != "query:page,query:cursor" {
		t.Errorf("parameters = %v, want page once then cursor", got)
	}

	page := operation(t, doc, "/api/search", "GET").Parameters.GetByInAndName("query", "page")
	if page == nil || !page.Schema.Value.Type.Is("integer") || page.Description != "" {
		t.Errorf("page should keep its static definition, got %+v", page)
	}
}

func TestGenerate_RequestBody(t *testing.T) {
	doc := Generate(sampleResult())

	if operation(t, doc, "/api/users", "GET").RequestBody != nil {
		t.Error("GET should have no request body")
	}
	if operation(t, doc, "/api/users/{param1}/orders", "PUT").RequestBody != nil {
		t.Error("PUT without recorded bodies should have no request body")
	}

	post := operation(t, doc, "/api/users", "POST")
	if post.RequestBody == nil || !post.RequestBody.Value.Required {
		t.Fatalf("POST request body = %+v", post.RequestBody)
	}
	media := post.RequestBody.Value.Content.Get("application/json")
	if media == nil {
		t.Fatalf("content = %v", post.RequestBody.Value.Content)
	}
	if media.Schema.Ref != "#/components/schemas/ApiUsersPostBody" {
		t.Errorf("$ref = %q", media.Schema.Ref)
	}

	ref := doc.Components.Schemas["ApiUsersPostBody"]
	if ref == nil || !ref.Value.Type.Is("object") {
		t.Fatalf("schema = %+v", ref)
	}
	schema := ref.Value
	if len(schema.Properties) != 2 {
		t.Errorf("the body with the most properties should win, got %v", schema.Properties)
	}
	if age := schema.Properties["age"].Value; !age.Type.Is("number") || age.Example != 30.0 {
		t.Errorf("age = %+v", age)
	}
}

func TestGenerate_FirstDefinitionWins(t *testing.T) {
	a := aggregate.New()
	a.ObserveTemplateParam("/api/a/${x}", "x")
	a.ObserveMethod("/api/a/${x}", "GET")
	a.ObserveTemplateParam("/api/a/{x}", "x")
	a.ObserveMethod("/api/a/{x}", "GET")

	doc := Generate(a.Result())
	op := operation(t, doc, "/api/a/{x}", "GET")
	if op.Summary != "GET /api/a/${x}" {
		t.Errorf("Summary = %q, want the first key in order", op.Summary)
	}
}

func TestGenerate_SameShapePaths(t *testing.T) {
	a := aggregate.New()
	a.ObserveTemplateParam("/api/a/${x}", "x")
	a.ObserveMethod("/api/a/${x}", "GET")
	a.ObserveTemplateParam("/api/a/${y}", "y")
	a.ObserveMethod("/api/a/${y}", "DELETE")

	doc := Generate(a.Result())
	if err := Validate(context.Background(), doc); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if doc.Paths.Len() != 1 {
		t.Fatalf("Paths = %v, want one entry", doc.Paths.Map())
	}
	del := operation(t, doc, "/api/a/{x}", "DELETE")
	if p := del.Parameters[0].Value; p.Name != "x" || p.In != "path" {
		t.Errorf("path parameter = %+v, want the first path's name", p)
	}
}

func TestGenerate_DuplicateOperationIDs(t *testing.T) {
	a := aggregate.New()
	a.ObserveMethod("/api/user-list", "GET")
	a.ObserveMethod("/api/user/list", "GET")

	doc := Generate(a.Result())
	if err := Validate(context.Background(), doc); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	first := operation(t, doc, "/api/user-list", "GET").OperationID
	second := operation(t, doc, "/api/user/list", "GET").OperationID
	if first != "getApiUserList" || second != "getApiUserList2" {
		t.Errorf("operation ids = %q, %q", first, second)
	}
}

func TestGenerate_UnusableTemplateExpression(t *testing.T) {
	a := aggregate.New()
	a.ObserveTemplateParam("/api/files/${a/b}", "a/b")
	a.ObserveMethod("/api/files/${a/b}", "GET")

	doc := Generate(a.Result())
	if err := Validate(context.Background(), doc); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if doc.Paths.Value("/api/files/{expr1}") == nil {
		t.Errorf("Paths = %v", doc.Paths.Map())
	}
}

func TestGenerate_Empty(t *testing.T) {
	doc := Generate(aggregate.Result{})

	if doc.Components.Schemas != nil {
		t.Error("empty schemas should be removed")
	}
	if err := Validate(context.Background(), doc); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	data, err := JSON(doc, false)
	if err != nil {
		t.Fatalf("JSON() error = %v", err)
	}
	if strings.Contains(string(data), `"schemas"`) {
		t.Errorf("schemas key present: %s", data)
	}
	if !strings.Contains(string(data), `"paths":{}`) {
		t.Errorf("paths should be an empty object: %s", data)
	}
}

func TestGenerate_Options(t *testing.T) {
	doc := Generate(aggregate.Result{},
		WithInfo(openapi3.Info{Title: "Shop", Version: "2"}),
		WithServer("https://shop.example.com", "prod"),
	)

	if doc.Info.Title != "Shop" || doc.Info.Version != "2" {
		t.Errorf("Info = %+v", doc.Info)
	}
	if doc.Servers[0].URL != "https://shop.example.com" {
		t.Errorf("Servers = %v", doc.Servers)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func TestTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"users", "Users"},
		{"userId", "Userid"},
		{"v2beta", "V2Beta"},
		{"param1", "Param1"},
		{"get", "Get"},
	}

	for _, tt := range tests {
		if got := title(tt.in); got != tt.want {
			t.Errorf("title(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTag(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/users", "api"},
		{"/v1/x", "v1"},
		{"/", "api"},
	}

	for _, tt := range tests {
		if got := tag(tt.path); got != tt.want {
			t.Errorf("tag(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestQueryType(t *testing.T) {
	tests := []struct {
		values []string
		want   string
	}{
		{nil, "string"},
		{[]string{""}, "string"},
		{[]string{"TRUE"}, "boolean"},
		{[]string{"10"}, "integer"},
		{[]string{"-10"}, "number"},
		{[]string{"1.5"}, "number"},
		{[]string{"1e3"}, "string"},
	}

	for _, tt := range tests {
		if got := queryType(tt.values); got != tt.want {
			t.Errorf("queryType(%v) = %q, want %q", tt.values, got, tt.want)
		}
	}
}

// =============================================================================
// Save
// =============================================================================

func TestSave(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	doc := Generate(sampleResult())

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "results", DefaultFile)
		if err := Save(ctx, doc, path); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		loaded, err := openapi3.NewLoader().LoadFromData(data)
		if err != nil {
			t.Fatalf("saved file does not load: %v", err)
		}
		if err := Validate(ctx, loaded); err != nil {
			t.Errorf("saved document does not validate: %v", err)
		}
		if loaded.OpenAPI != "3.0.0" {
			t.Errorf("openapi = %v", loaded.OpenAPI)
		}
	})

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "spec.yaml")
		if err := Save(ctx, doc, path); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		var decoded struct {
			Paths map[string]map[string]interface{} `yaml:"paths"`
		}
		if err := yaml.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("saved file is not YAML: %v", err)
		}
		if _, ok := decoded.Paths["/api/users"]["post"]; !ok {
			t.Errorf("paths = %v", decoded.Paths)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		bad := Generate(aggregate.Result{}, WithInfo(openapi3.Info{Title: "No version"}))
		path := filepath.Join(dir, "bad.json")
		if err := Save(ctx, bad, path); err == nil {
			t.Fatal("Save() of an invalid document should fail")
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Error("an invalid document should not be written")
		}
	})
}
