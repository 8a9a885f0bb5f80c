package aggregate

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/PentesterFlow/JSRecon/internal/jsobject"
	"github.com/PentesterFlow/JSRecon/internal/pathnorm"
)

func nameBody(example string) Body {
	return NewBody(jsobject.Properties{
		"name": {Type: jsobject.TypeString, Example: example},
	})
}

func serialize(t *testing.T, a *Aggregator) string {
	t.Helper()
	data, err := json.Marshal(a.Result())
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return string(data)
}

// =============================================================================
// Observe Tests
// =============================================================================

func TestAggregator_Idempotence(t *testing.T) {
	const ep = "/api/users"

	facts := []Fact{
		FileFact(ep, "main.js"),
		StaticParamFact(ep, "page", "1"),
		ParamNameFact(ep, "sort"),
		TemplateParamFact(ep, "userId"),
		DynamicParamFact(ep, "q"),
		MethodFact(ep, "post"),
		BodyFact(ep, nameBody("a")),
	}

	for _, f := range facts {
		t.Run(string(f.Kind), func(t *testing.T) {
			a := New()
			if !a.Apply(f) {
				t.Fatalf("Apply(%s) first call = false, want true", f.Kind)
			}
			before := serialize(t, a)

			if a.Apply(f) {
				t.Errorf("Apply(%s) second call = true, want false", f.Kind)
			}
			if after := serialize(t, a); after != before {
				t.Errorf("record changed on repeat:\n got %s\nwant %s", after, before)
			}
		})
	}
}

func TestAggregator_MergeStaticValues(t *testing.T) {
	a := New()
	a.ObserveStaticParam("/api/users", "page", "1")
	a.ObserveStaticParam("/api/users", "page", "2")

	rec, ok := a.Record("/api/users")
	if !ok {
		t.Fatal("Record() not found")
	}
	if want := []string{"1", "2"}; !reflect.DeepEqual(rec.Params["page"], want) {
		t.Errorf("params[page] = %v, want %v", rec.Params["page"], want)
	}
}

func TestAggregator_ParamNameWithoutValue(t *testing.T) {
	a := New()
	a.ObserveParamName("/api/x", "debug")

	rec, _ := a.Record("/api/x")
	values, ok := rec.Params["debug"]
	if !ok {
		t.Fatal("params[debug] missing")
	}
	if len(values) != 0 {
		t.Errorf("params[debug] = %v, want empty", values)
	}

	if a.ObserveParamName("/api/x", "debug") {
		t.Error("ObserveParamName() repeat = true, want false")
	}

	a.ObserveStaticParam("/api/x", "debug", "1")
	if a.ObserveParamName("/api/x", "debug") {
		t.Error("ObserveParamName() after value = true, want false")
	}
	rec, _ = a.Record("/api/x")
	if !reflect.DeepEqual(rec.Params["debug"], []string{"1"}) {
		t.Errorf("params[debug] = %v, want [1]", rec.Params["debug"])
	}
}

func TestAggregator_DefaultMethod(t *testing.T) {
	a := New()
	a.ObserveFile("/api/health", "app.js")

	rec, _ := a.Record("/api/health")
	if !reflect.DeepEqual(rec.HTTPMethods, []string{"GET"}) {
		t.Errorf("http_methods = %v, want [GET]", rec.HTTPMethods)
	}
}

func TestAggregator_ObserveMethod(t *testing.T) {
	tests := []struct {
		name    string
		methods []string
		want    []string
	}{
		{"uppercased", []string{"post"}, []string{"POST"}},
		{"blank is GET", []string{"  "}, []string{"GET"}},
		{"dedup across case", []string{"put", "PUT", "Put"}, []string{"PUT"}},
		{"sorted", []string{"post", "delete", "get"}, []string{"DELETE", "GET", "POST"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New()
			for _, m := range tt.methods {
				a.ObserveMethod("/api/x", m)
			}
			rec, _ := a.Record("/api/x")
			if !reflect.DeepEqual(rec.HTTPMethods, tt.want) {
				t.Errorf("http_methods = %v, want %v", rec.HTTPMethods, tt.want)
			}
		})
	}
}

func TestAggregator_DynamicParam(t *testing.T) {
	a := New()
	a.ObserveDynamicParam("/api/search", "q")
	a.ObserveDynamicParam("/api/search", "q")

	rec, _ := a.Record("/api/search")
	if !reflect.DeepEqual(rec.DynamicPatterns, []string{"q=dynamic"}) {
		t.Errorf("dynamic_patterns = %v, want [q=dynamic]", rec.DynamicPatterns)
	}
	if !reflect.DeepEqual(rec.DynamicNames(), []string{"q"}) {
		t.Errorf("DynamicNames() = %v, want [q]", rec.DynamicNames())
	}
}

func TestAggregator_NormalizedPathsCollapse(t *testing.T) {
	a := New()
	for _, raw := range []string{"/api/users/${userId}", "/api/users/${id}"} {
		p := pathnorm.Normalize(raw)
		a.ObserveFile(p.Key, "app.js")
		for _, e := range p.Expressions {
			a.ObserveTemplateParam(p.Key, e)
		}
	}

	if a.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", a.Len())
	}
	rec, ok := a.Record("/api/users/{PARAM}")
	if !ok {
		t.Fatal("Record(/api/users/{PARAM}) not found")
	}
	if !reflect.DeepEqual(rec.TemplateParams, []string{"id", "userId"}) {
		t.Errorf("template_params = %v, want [id userId]", rec.TemplateParams)
	}
}

// =============================================================================
// Body Tests
// =============================================================================

func TestAggregator_BodyDedup(t *testing.T) {
	a := New()

	if !a.ObserveBody("/api/users", nameBody("a")) {
		t.Fatal("ObserveBody() first = false, want true")
	}
	if a.ObserveBody("/api/users", nameBody("b")) {
		t.Error("ObserveBody() equivalent = true, want false")
	}

	other := NewBody(jsobject.Properties{
		"name": {Type: jsobject.TypeNumber, Example: 1},
	})
	if !a.ObserveBody("/api/users", other) {
		t.Error("ObserveBody() different type = false, want true")
	}

	rec, _ := a.Record("/api/users")
	if len(rec.RequestBodies) != 2 {
		t.Fatalf("len(request_bodies) = %d, want 2", len(rec.RequestBodies))
	}
	if rec.RequestBodies[0].Properties["name"].Example != "a" {
		t.Errorf("first body example = %v, want first-seen 'a'", rec.RequestBodies[0].Properties["name"].Example)
	}
}

func TestAggregator_EmptyBodyKept(t *testing.T) {
	a := New()
	a.ObserveBody("/api/ping", NewBody(jsobject.ExtractObject("{}")))

	rec, _ := a.Record("/api/ping")
	if len(rec.RequestBodies) != 1 {
		t.Fatalf("len(request_bodies) = %d, want 1", len(rec.RequestBodies))
	}
	if _, ok := rec.RequestBodies[0].Properties[jsobject.EmptyObjectKey]; !ok {
		t.Error("empty object sentinel missing")
	}
}

func TestAggregator_BodyIsCopied(t *testing.T) {
	a := New()
	body := nameBody("a")
	a.ObserveBody("/api/x", body)

	body.Properties["name"] = jsobject.Shape{Type: jsobject.TypeBoolean}

	rec, _ := a.Record("/api/x")
	if rec.RequestBodies[0].Properties["name"].Type != jsobject.TypeString {
		t.Error("stored body aliases caller's map")
	}
}

func TestEquivalent(t *testing.T) {
	str := jsobject.Shape{Type: jsobject.TypeString}
	num := jsobject.Shape{Type: jsobject.TypeNumber}

	tests := []struct {
		name string
		a    Body
		b    Body
		want bool
	}{
		{
			name: "examples differ",
			a:    nameBody("a"),
			b:    nameBody("b"),
			want: true,
		},
		{
			name: "content type differs",
			a:    nameBody("a"),
			b:    Body{ContentType: "application/x-www-form-urlencoded", Properties: nameBody("a").Properties},
			want: false,
		},
		{
			name: "both empty",
			a:    NewBody(nil),
			b:    NewBody(jsobject.Properties{}),
			want: true,
		},
		{
			name: "one empty",
			a:    NewBody(nil),
			b:    nameBody("a"),
			want: false,
		},
		{
			name: "different names",
			a:    NewBody(jsobject.Properties{"a": str}),
			b:    NewBody(jsobject.Properties{"b": str}),
			want: false,
		},
		{
			name: "extra name",
			a:    NewBody(jsobject.Properties{"a": str}),
			b:    NewBody(jsobject.Properties{"a": str, "b": str}),
			want: false,
		},
		{
			name: "type differs",
			a:    NewBody(jsobject.Properties{"a": str}),
			b:    NewBody(jsobject.Properties{"a": num}),
			want: false,
		},
		{
			name: "nested properties ignored",
			a: NewBody(jsobject.Properties{"u": {
				Type:       jsobject.TypeObject,
				Properties: jsobject.Properties{"x": str},
			}}),
			b: NewBody(jsobject.Properties{"u": {
				Type:       jsobject.TypeObject,
				Properties: jsobject.Properties{"y": num},
			}}),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equivalent(tt.a, tt.b); got != tt.want {
				t.Errorf("Equivalent() = %v, want %v", got, tt.want)
			}
			if got := Equivalent(tt.b, tt.a); got != tt.want {
				t.Errorf("Equivalent() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Result / Merge Tests
// =============================================================================

func TestResult_JSONShape(t *testing.T) {
	a := New()
	a.ObserveFile("/api/x", "b.js")
	a.ObserveFile("/api/x", "a.js")

	data, err := json.Marshal(a.Result())
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	want := `{"backend_endpoints":{"/api/x":{"files":["a.js","b.js"],"params":{},"template_params":[],"dynamic_patterns":[],"http_methods":["GET"],"request_bodies":[]}}}`
	if string(data) != want {
		t.Errorf("json = %s\nwant %s", data, want)
	}
}

func TestFromResult_RoundTrip(t *testing.T) {
	a := New()
	a.ObserveFile("/api/x", "a.js")
	a.ObserveStaticParam("/api/x", "page", "1")
	a.ObserveParamName("/api/x", "debug")
	a.ObserveMethod("/api/x", "post")
	a.ObserveBody("/api/x", nameBody("a"))

	b := FromResult(a.Result())
	if got, want := serialize(t, b), serialize(t, a); got != want {
		t.Errorf("FromResult() = %s\nwant %s", got, want)
	}

	b.ObserveStaticParam("/api/x", "page", "2")
	rec, _ := b.Record("/api/x")
	if !reflect.DeepEqual(rec.Params["page"], []string{"1", "2"}) {
		t.Errorf("params[page] = %v, want [1 2]", rec.Params["page"])
	}
}

func TestAggregator_Merge(t *testing.T) {
	a := New()
	a.ObserveFile("/api/x", "a.js")
	a.ObserveBody("/api/x", nameBody("a"))

	b := New()
	b.ObserveFile("/api/x", "b.js")
	b.ObserveBody("/api/x", nameBody("z"))
	b.ObserveMethod("/api/y", "delete")

	a.Merge(b)
	a.Merge(nil)

	if a.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", a.Len())
	}
	rec, _ := a.Record("/api/x")
	if !reflect.DeepEqual(rec.Files, []string{"a.js", "b.js"}) {
		t.Errorf("files = %v", rec.Files)
	}
	if len(rec.RequestBodies) != 1 {
		t.Errorf("len(request_bodies) = %d, want 1", len(rec.RequestBodies))
	}
	if !reflect.DeepEqual(a.Endpoints(), []string{"/api/x", "/api/y"}) {
		t.Errorf("Endpoints() = %v", a.Endpoints())
	}
}

func TestResult_Summarize(t *testing.T) {
	a := New()
	a.ObserveFile("/api/x", "a.js")
	a.ObserveStaticParam("/api/x", "p", "1")
	a.ObserveMethod("/api/x", "post")
	a.ObserveBody("/api/x", nameBody("a"))
	a.ObserveFile("/api/y", "a.js")
	a.ObserveFile("/api/y", "b.js")
	a.ObserveTemplateParam("/api/y", "id")

	s := a.Result().Summarize()
	if s.Endpoints != 2 || s.WithParams != 1 || s.WithTemplates != 1 || s.WithBodies != 1 {
		t.Errorf("Summarize() = %+v", s)
	}
	if s.DistinctFiles != 2 {
		t.Errorf("DistinctFiles = %d, want 2", s.DistinctFiles)
	}
	if s.MethodBreakdown["POST"] != 1 || s.MethodBreakdown["GET"] != 1 {
		t.Errorf("MethodBreakdown = %v", s.MethodBreakdown)
	}
}

func TestAggregator_ApplyUnknown(t *testing.T) {
	a := New()
	if a.Apply(Fact{Kind: "bogus", Endpoint: "/api/x"}) {
		t.Error("Apply(unknown) = true, want false")
	}
	if a.Apply(Fact{Kind: FactBody, Endpoint: "/api/x"}) {
		t.Error("Apply(body without body) = true, want false")
	}
}
