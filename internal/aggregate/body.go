package aggregate

import (
	"github.com/PentesterFlow/JSRecon/internal/jsobject"
)

// DefaultContentType is used for bodies whose content type is not known.
const DefaultContentType = "application/json"

// Body is the inferred shape of one request payload.
type Body struct {
	ContentType string              `json:"contentType"`
	Properties  jsobject.Properties `json:"properties"`
}

// NewBody returns a JSON body with the given properties.
func NewBody(props jsobject.Properties) Body {
	return Body{ContentType: DefaultContentType, Properties: props}
}

// Clone returns a deep copy of b.
func (b Body) Clone() Body {
	return Body{ContentType: b.ContentType, Properties: b.Properties.Clone()}
}

// Equivalent reports whether a and b have the same shape: same content type,
// the same property names, and the same top-level type for each name.
// Examples and nested items or properties are not compared.
func Equivalent(a, b Body) bool {
	if a.ContentType != b.ContentType {
		return false
	}
	if (len(a.Properties) == 0) != (len(b.Properties) == 0) {
		return false
	}
	if len(a.Properties) != len(b.Properties) {
		return false
	}
	for name, pa := range a.Properties {
		pb, ok := b.Properties[name]
		if !ok || pa.Type != pb.Type {
			return false
		}
	}
	return true
}
