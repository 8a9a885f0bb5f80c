package jsobject

import (
	"reflect"
	"testing"
)

// =============================================================================
// Tokenizer Tests
// =============================================================================

func TestSplitTopLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "nested object and array",
			input: "a: {x: 1, y: 2}, b: [1,2,3]",
			want:  []string{"a: {x: 1, y: 2}", "b: [1,2,3]"},
		},
		{
			name:  "comma inside double quotes",
			input: `name: "Doe, John", age: 3`,
			want:  []string{`name: "Doe, John"`, "age: 3"},
		},
		{
			name:  "other quote inside string",
			input: `a: "it's, fine", b: 'say "hi, there"'`,
			want:  []string{`a: "it's, fine"`, `b: 'say "hi, there"'`},
		},
		{
			name:  "escaped quote inside string",
			input: `a: 'don\'t, stop', b: 1`,
			want:  []string{`a: 'don\'t, stop'`, "b: 1"},
		},
		{
			name:  "template literal",
			input: "a: `x, ${y}`, b: 2",
			want:  []string{"a: `x, ${y}`", "b: 2"},
		},
		{
			name:  "trailing comma dropped",
			input: "a: 1, b: 2, ",
			want:  []string{"a: 1", "b: 2"},
		},
		{
			name:  "empty middle token kept",
			input: "a: 1,,b: 2",
			want:  []string{"a: 1", "", "b: 2"},
		},
		{
			name:  "unbalanced flushes remainder",
			input: "a: {x: 1, y: 2",
			want:  []string{"a: {x: 1, y: 2"},
		},
		{
			name:  "empty input",
			input: "   ",
			want:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitTopLevel(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitTopLevel(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitPair(t *testing.T) {
	tests := []struct {
		name      string
		token     string
		wantKey   string
		wantValue string
		wantOK    bool
	}{
		{"plain", "page: 1", "page", "1", true},
		{"quoted key", `"user-id": 'abc'`, "user-id", "'abc'", true},
		{"colon in value", "url: 'http://x'", "url", "'http://x'", true},
		{"colon in quoted key", `"a:b": 1`, "a:b", "1", true},
		{"no colon", "page", "", "", false},
		{"empty key", ": 1", "", "", false},
		{"colon only inside string", `'a:b'`, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, value, ok := SplitPair(tt.token)
			if ok != tt.wantOK {
				t.Fatalf("SplitPair(%q) ok = %v, want %v", tt.token, ok, tt.wantOK)
			}
			if key != tt.wantKey || value != tt.wantValue {
				t.Errorf("SplitPair(%q) = (%q, %q), want (%q, %q)", tt.token, key, value, tt.wantKey, tt.wantValue)
			}
		})
	}
}

func TestMatchClose(t *testing.T) {
	tests := []struct {
		name string
		text string
		open int
		want int
	}{
		{"parens", "f(a, (b))", 1, 8},
		{"braces with string", `{a: "}", b: {}}`, 0, 14},
		{"brackets", "[1, [2], 3]", 0, 10},
		{"unbalanced", "f(a, (b)", 1, -1},
		{"not an opener", "abc", 0, -1},
		{"out of range", "abc", 5, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchClose(tt.text, tt.open); got != tt.want {
				t.Errorf("MatchClose(%q, %d) = %d, want %d", tt.text, tt.open, got, tt.want)
			}
		})
	}
}

func TestBalanced(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"{a: [1, (2)]}", true},
		{`{a: "{"}`, true},
		{"{a: [1, 2}", false},
		{"{a: 'open}", false},
		{"}{", false},
	}

	for _, tt := range tests {
		if got := Balanced(tt.text); got != tt.want {
			t.Errorf("Balanced(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestUnquote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`"abc"`, "abc"},
		{"'abc'", "abc"},
		{"`abc`", "abc"},
		{"abc", "abc"},
		{`"abc`, "abc"},
		{`"a'`, "a"},
	}

	for _, tt := range tests {
		if got := Unquote(tt.in); got != tt.want {
			t.Errorf("Unquote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Shape Inference Tests
// =============================================================================

func TestInferShape(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Shape
	}{
		{
			name: "integer",
			raw:  "42",
			want: Shape{Type: TypeNumber, Example: 42},
		},
		{
			name: "negative decimal",
			raw:  "-3.5",
			want: Shape{Type: TypeNumber, Example: -3.5},
		},
		{
			name: "decimal",
			raw:  "3.5",
			want: Shape{Type: TypeNumber, Example: 3.5},
		},
		{
			name: "overflowing integer keeps raw text",
			raw:  "99999999999999999999999",
			want: Shape{Type: TypeNumber, Example: "99999999999999999999999"},
		},
		{
			name: "true",
			raw:  "true",
			want: Shape{Type: TypeBoolean, Example: true},
		},
		{
			name: "false",
			raw:  " false ",
			want: Shape{Type: TypeBoolean, Example: false},
		},
		{
			name: "single quoted string",
			raw:  "'hello'",
			want: Shape{Type: TypeString, Example: "hello"},
		},
		{
			name: "quoted number stays string",
			raw:  `"42"`,
			want: Shape{Type: TypeString, Example: "42"},
		},
		{
			name: "empty array",
			raw:  "[]",
			want: Shape{Type: TypeArray, Example: "[]", Items: &ItemShape{Type: TypeString}},
		},
		{
			name: "number array",
			raw:  "[1, 2]",
			want: Shape{Type: TypeArray, Example: "[1, 2]", Items: &ItemShape{Type: TypeNumber}},
		},
		{
			name: "boolean array",
			raw:  "[true]",
			want: Shape{Type: TypeArray, Example: "[true]", Items: &ItemShape{Type: TypeBoolean}},
		},
		{
			name: "object array",
			raw:  "[{a: 1}, {a: 2}]",
			want: Shape{Type: TypeArray, Example: "[{a: 1}, {a: 2}]", Items: &ItemShape{Type: TypeObject}},
		},
		{
			name: "array judged by first item",
			raw:  "['a', 1]",
			want: Shape{Type: TypeArray, Example: "['a', 1]", Items: &ItemShape{Type: TypeString}},
		},
		{
			name: "object",
			raw:  "{a: 1}",
			want: Shape{
				Type:       TypeObject,
				Example:    "{a: 1}",
				Properties: Properties{"a": {Type: TypeNumber, Example: 1}},
			},
		},
		{
			name: "empty object falls back to string",
			raw:  "{}",
			want: Shape{Type: TypeString, Example: "{}"},
		},
		{
			name: "object without pairs falls back to string",
			raw:  "{ ...rest }",
			want: Shape{Type: TypeString, Example: "{ ...rest }"},
		},
		{
			name: "date constructor",
			raw:  "new Date()",
			want: Shape{Type: TypeString, Example: DateExample},
		},
		{
			name: "other constructor",
			raw:  "new Blob()",
			want: Shape{Type: TypeString, Example: "new Blob()"},
		},
		{
			name: "identifier fallback",
			raw:  "user.name",
			want: Shape{Type: TypeString, Example: "user.name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferShape(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("InferShape(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestInferShape_Nested(t *testing.T) {
	got := InferShape("{user: {name: 'a', tags: ['x']}, active: true}")
	if got.Type != TypeObject {
		t.Fatalf("Type = %v, want object", got.Type)
	}

	user, ok := got.Properties["user"]
	if !ok || user.Type != TypeObject {
		t.Fatalf("user = %+v, want object", user)
	}
	if name := user.Properties["name"]; name.Type != TypeString || name.Example != "a" {
		t.Errorf("user.name = %+v, want string 'a'", name)
	}
	if tags := user.Properties["tags"]; tags.Type != TypeArray || tags.Items == nil || tags.Items.Type != TypeString {
		t.Errorf("user.tags = %+v, want array of string", tags)
	}
	if active := got.Properties["active"]; active.Type != TypeBoolean {
		t.Errorf("active = %+v, want boolean", active)
	}
}

func TestInferShape_DeepNesting(t *testing.T) {
	raw := ""
	for i := 0; i < 200; i++ {
		raw += "{a: "
	}
	raw += "1"
	for i := 0; i < 200; i++ {
		raw += "}"
	}

	got := InferShape(raw)
	if got.Type != TypeObject {
		t.Errorf("Type = %v, want object", got.Type)
	}
}

// =============================================================================
// Object Extraction Tests
// =============================================================================

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Properties
	}{
		{
			name: "empty object sentinel",
			text: "{}",
			want: Properties{EmptyObjectKey: EmptyObjectShape()},
		},
		{
			name: "blank body sentinel",
			text: "{  \n }",
			want: Properties{EmptyObjectKey: EmptyObjectShape()},
		},
		{
			name: "simple",
			text: "{name: 'x', age: 3}",
			want: Properties{
				"name": {Type: TypeString, Example: "x"},
				"age":  {Type: TypeNumber, Example: 3},
			},
		},
		{
			name: "quoted keys",
			text: `{"first-name": "x", 'ok': true}`,
			want: Properties{
				"first-name": {Type: TypeString, Example: "x"},
				"ok":         {Type: TypeBoolean, Example: true},
			},
		},
		{
			name: "last write wins",
			text: "{a: 1, a: 'two'}",
			want: Properties{"a": {Type: TypeString, Example: "two"}},
		},
		{
			name: "malformed token skipped",
			text: "{a: 1, oops, b: false}",
			want: Properties{
				"a": {Type: TypeNumber, Example: 1},
				"b": {Type: TypeBoolean, Example: false},
			},
		},
		{
			name: "truncated input keeps what parsed",
			text: "{a: 1, b: {c: 2",
			want: Properties{
				"a": {Type: TypeNumber, Example: 1},
				"b": {Type: TypeString, Example: "{c: 2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractObject(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractObject(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestExtractObjectReport(t *testing.T) {
	ext := ExtractObjectReport("{a: 1, oops, : 2, b: 3")

	if len(ext.Properties) != 2 {
		t.Errorf("len(Properties) = %d, want 2", len(ext.Properties))
	}
	if !ext.Unbalanced {
		t.Error("Unbalanced = false, want true")
	}
	if !ext.Recovered() {
		t.Error("Recovered() = false, want true")
	}

	want := []Skip{
		{Token: "oops", Reason: SkipNoColon},
		{Token: ": 2", Reason: SkipEmptyKey},
	}
	if !reflect.DeepEqual(ext.Skipped, want) {
		t.Errorf("Skipped = %+v, want %+v", ext.Skipped, want)
	}

	clean := ExtractObjectReport("{a: 1}")
	if clean.Recovered() {
		t.Errorf("Recovered() = true for clean input, skipped %+v", clean.Skipped)
	}
}

func TestExtractObjectReport_EmptyTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		props int
		skips int
	}{
		{"doubled comma", "{a: 1,,b: 2}", 2, 1},
		{"only a comma", "{ , }", 0, 1},
		{"leading comma", "{, a: 1}", 1, 1},
		{"trailing comma", "{a: 1, b: 2,}", 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext := ExtractObjectReport(tt.input)
			if len(ext.Properties) != tt.props {
				t.Errorf("len(Properties) = %d, want %d", len(ext.Properties), tt.props)
			}
			if len(ext.Skipped) != tt.skips {
				t.Fatalf("Skipped = %+v, want %d", ext.Skipped, tt.skips)
			}
			for _, sk := range ext.Skipped {
				if sk.Reason != SkipEmptyToken || sk.Token != "" {
					t.Errorf("Skip = %+v, want an empty_token skip", sk)
				}
			}
			if ext.Recovered() != (tt.skips > 0) {
				t.Errorf("Recovered() = %v", ext.Recovered())
			}
		})
	}
}

func TestPairs(t *testing.T) {
	got := Pairs("{ page: 1, 'q': search, limit }")
	want := []Pair{
		{Key: "page", Value: "1"},
		{Key: "q", Value: "search"},
		{Key: "limit", Value: "limit"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Pairs() = %+v, want %+v", got, want)
	}

	if v, ok := Lookup("{a: {b: 2}}", "a"); !ok || v != "{b: 2}" {
		t.Errorf("Lookup() = (%q, %v), want ({b: 2}, true)", v, ok)
	}
	if _, ok := Lookup("{a: 1}", "z"); ok {
		t.Error("Lookup() found missing key")
	}
}

func TestShapeClone(t *testing.T) {
	orig := InferShape("{a: {b: [1]}}")
	cp := orig.Clone()

	inner := cp.Properties["a"]
	inner.Properties["b"].Items.Type = TypeString

	if orig.Properties["a"].Properties["b"].Items.Type != TypeNumber {
		t.Error("Clone() shares item shape with original")
	}
}

func TestIsQuoted(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"'abc'", true},
		{`"a\"b"`, true},
		{"`x`", true},
		{"'a' + b", false},
		{"'a", false},
		{"abc", false},
		{"''", true},
	}

	for _, tt := range tests {
		if got := IsQuoted(tt.in); got != tt.want {
			t.Errorf("IsQuoted(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSplitArguments(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"'/api/x', fn(a, b), {c: 1}", []string{"'/api/x'", "fn(a, b)", "{c: 1}"}},
		{"url", []string{"url"}},
		{"", []string{}},
	}

	for _, tt := range tests {
		got := SplitArguments(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitArguments(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	// SplitTopLevel does not treat parens as nesting.
	if got := SplitTopLevel("fn(a, b)"); len(got) != 2 {
		t.Errorf("SplitTopLevel(fn(a, b)) = %q, want 2 tokens", got)
	}
}

func TestExpressionAt(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		start int
		want  string
	}{
		{"object then semicolon", "x = {a: 1, b: [2, 3]}; y()", 4, "{a: 1, b: [2, 3]}"},
		{"string with comma", `v = 'a, b', w`, 4, "'a, b'"},
		{"stops at closer", "f(a + b) + c", 2, "a + b"},
		{"multi-line object", "{\n a: 1,\n b: 2\n}\nnext", 0, "{\n a: 1,\n b: 2\n}"},
		{"runs to end", "value", 0, "value"},
		{"out of range", "abc", 9, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpressionAt(tt.text, tt.start); got != tt.want {
				t.Errorf("ExpressionAt(%q, %d) = %q, want %q", tt.text, tt.start, got, tt.want)
			}
		})
	}
}
