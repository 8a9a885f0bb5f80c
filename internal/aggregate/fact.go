package aggregate

// FactKind identifies which observation a Fact carries.
type FactKind string

const (
	FactFile          FactKind = "file"
	FactStaticParam   FactKind = "static_param"
	FactParamName     FactKind = "param_name"
	FactTemplateParam FactKind = "template_param"
	FactDynamicParam  FactKind = "dynamic_param"
	FactMethod        FactKind = "method"
	FactBody          FactKind = "body"
)

// Fact is one observation about an endpoint, produced by a scanner and
// applied to an Aggregator later. Facts let extraction run in parallel while
// a single goroutine owns the Aggregator.
type Fact struct {
	Kind     FactKind
	Endpoint string
	Name     string
	Value    string
	Body     *Body
}

// FileFact records that endpoint appears in file.
func FileFact(endpoint, file string) Fact {
	return Fact{Kind: FactFile, Endpoint: endpoint, Value: file}
}

// StaticParamFact records a literal parameter value.
func StaticParamFact(endpoint, name, value string) Fact {
	return Fact{Kind: FactStaticParam, Endpoint: endpoint, Name: name, Value: value}
}

// ParamNameFact records a parameter seen without any value.
func ParamNameFact(endpoint, name string) Fact {
	return Fact{Kind: FactParamName, Endpoint: endpoint, Name: name}
}

// TemplateParamFact records an interpolated path expression.
func TemplateParamFact(endpoint, expr string) Fact {
	return Fact{Kind: FactTemplateParam, Endpoint: endpoint, Value: expr}
}

// DynamicParamFact records a parameter whose value is not a literal.
func DynamicParamFact(endpoint, name string) Fact {
	return Fact{Kind: FactDynamicParam, Endpoint: endpoint, Name: name}
}

// MethodFact records an HTTP method.
func MethodFact(endpoint, method string) Fact {
	return Fact{Kind: FactMethod, Endpoint: endpoint, Value: method}
}

// BodyFact records a request body shape.
func BodyFact(endpoint string, body Body) Fact {
	return Fact{Kind: FactBody, Endpoint: endpoint, Body: &body}
}
