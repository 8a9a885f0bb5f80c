package jsobject

import (
	"regexp"
	"strconv"
	"strings"
)

// ShapeType tags the inferred type of a value.
type ShapeType string

const (
	TypeString  ShapeType = "string"
	TypeNumber  ShapeType = "number"
	TypeBoolean ShapeType = "boolean"
	TypeArray   ShapeType = "array"
	TypeObject  ShapeType = "object"
)

// DateExample stands in for any `new Date(...)` expression.
const DateExample = "2023-01-01T00:00:00Z"

// maxDepth bounds recursion on pathologically nested literals.
const maxDepth = 64

var numberPattern = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// ItemShape describes the elements of an array.
type ItemShape struct {
	Type ShapeType `json:"type"`
}

// Shape is the inferred type and example of one value.
type Shape struct {
	Type       ShapeType   `json:"type"`
	Example    interface{} `json:"example"`
	Items      *ItemShape  `json:"items,omitempty"`
	Properties Properties  `json:"properties,omitempty"`
}

// Properties maps property names to their shapes.
type Properties map[string]Shape

// Clone returns a deep copy of p.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v.Clone()
	}
	return out
}

// Clone returns a deep copy of s.
func (s Shape) Clone() Shape {
	out := s
	if s.Items != nil {
		items := *s.Items
		out.Items = &items
	}
	out.Properties = s.Properties.Clone()
	return out
}

// InferShape classifies the trimmed right-hand side of a key/value pair.
// The checks run in a fixed order and the first match wins, so a quoted
// number stays a string.
func InferShape(raw string) Shape {
	return inferShape(strings.TrimSpace(raw), 0)
}

func inferShape(value string, depth int) Shape {
	if value == "true" || value == "false" {
		return Shape{Type: TypeBoolean, Example: value == "true"}
	}

	if numberPattern.MatchString(value) {
		return Shape{Type: TypeNumber, Example: parseNumber(value)}
	}

	if isWrapped(value, '[', ']') {
		return Shape{
			Type:    TypeArray,
			Example: value,
			Items:   &ItemShape{Type: itemType(value[1 : len(value)-1])},
		}
	}

	if isWrapped(value, '{', '}') {
		if depth < maxDepth {
			ext := extractObject(value, depth+1)
			if len(ext.Properties) > 0 {
				return Shape{Type: TypeObject, Example: value, Properties: ext.Properties}
			}
		}
		return Shape{Type: TypeString, Example: value}
	}

	if value != "" && (value[0] == '\'' || value[0] == '"') {
		return Shape{Type: TypeString, Example: Unquote(value)}
	}

	if strings.HasPrefix(value, "new ") && strings.Contains(value, "Date") {
		return Shape{Type: TypeString, Example: DateExample}
	}

	return Shape{Type: TypeString, Example: value}
}

// parseNumber returns an int or float64 for a value matching numberPattern.
// Values that overflow are kept as raw text.
func parseNumber(value string) interface{} {
	if strings.Contains(value, ".") {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return value
		}
		return f
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return value
	}
	return n
}

// itemType infers an array's item type from its first element only.
func itemType(inner string) ShapeType {
	items := SplitTopLevel(inner)
	if len(items) == 0 {
		return TypeString
	}

	first := items[0]
	switch {
	case numberPattern.MatchString(first):
		return TypeNumber
	case first == "true" || first == "false":
		return TypeBoolean
	case isWrapped(first, '{', '}'):
		return TypeObject
	default:
		return TypeString
	}
}
