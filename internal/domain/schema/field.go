package schema

import (
	"fmt"
	"strings"

	"github.com/nxx-sync/nxx/internal/domain"
)

// Type is the declared type of a schema field.
type Type string

// Field type constants.
const (
	String  Type = "string"
	Number  Type = "number"
	Boolean Type = "boolean"
	Date    Type = "date"
	Array   Type = "array"
	Object  Type = "object"
)

// IsPrimitive reports whether t is a leaf type.
func (t Type) IsPrimitive() bool {
	switch t {
	case String, Number, Boolean, Date:
		return true
	}
	return false
}

// Field describes one model field.
// Arrays carry ElementType; arrays of objects and objects carry Properties.
type Field struct {
	Type        Type  `json:"type"`
	Required    bool  `json:"required,omitempty"`
	Filterable  bool  `json:"filterable,omitempty"`
	ElementType Type  `json:"elementType,omitempty"`
	Properties  Model `json:"properties,omitempty"`
}

// Model maps field names to their definitions.
type Model map[string]Field

// IsLeaf reports whether the field is a primitive reachable by a dotted path.
func (f Field) IsLeaf() bool { return f.Type.IsPrimitive() }

// Element returns the definition every element of an array field must satisfy.
func (f Field) Element() Field {
	if f.ElementType == Object {
		return Field{Type: Object, Required: true, Properties: f.Properties}
	}
	return Field{Type: f.ElementType, Required: true}
}

// Validate checks the field definition rooted at path.
func (f Field) Validate(path string) error {
	switch {
	case f.Type.IsPrimitive():
		if len(f.Properties) > 0 {
			return fmt.Errorf("field %q: %s field cannot declare properties: %w", path, f.Type, domain.ErrInvalidSchema)
		}
		return nil
	case f.Type == Object:
		if f.Filterable {
			return fmt.Errorf("field %q: object fields cannot be filterable: %w", path, domain.ErrInvalidSchema)
		}
		return f.Properties.validate(path + ".")
	case f.Type == Array:
		if f.Filterable {
			return fmt.Errorf("field %q: array fields cannot be filterable: %w", path, domain.ErrInvalidSchema)
		}
		if f.ElementType == Object {
			return f.Properties.validate(path + ".")
		}
		if !f.ElementType.IsPrimitive() {
			return fmt.Errorf("field %q: invalid array element type %q: %w", path, f.ElementType, domain.ErrInvalidSchema)
		}
		if len(f.Properties) > 0 {
			return fmt.Errorf("field %q: primitive arrays cannot declare properties: %w", path, domain.ErrInvalidSchema)
		}
		return nil
	default:
		return fmt.Errorf("field %q: invalid type %q: %w", path, f.Type, domain.ErrInvalidSchema)
	}
}

func (m Model) validate(prefix string) error {
	for name, f := range m {
		if name == "" {
			return fmt.Errorf("empty field name under %q: %w", prefix, domain.ErrInvalidSchema)
		}
		// Paths are dotted, so a dotted name could never be addressed.
		if strings.Contains(name, ".") {
			return fmt.Errorf("field name %q under %q must not contain '.': %w", name, prefix, domain.ErrInvalidSchema)
		}
		if err := f.Validate(prefix + name); err != nil {
			return err
		}
	}
	return nil
}

// Lookup resolves a dotted path through nested objects.
// Arrays are not traversed: nothing inside an array is addressable by a filter path.
func (m Model) Lookup(path []string) (Field, bool) {
	if len(path) == 0 {
		return Field{}, false
	}
	f, ok := m[path[0]]
	if !ok {
		return Field{}, false
	}
	if len(path) == 1 {
		return f, true
	}
	if f.Type != Object {
		return Field{}, false
	}
	return f.Properties.Lookup(path[1:])
}

// Merge returns a new model with the fields of every argument, later ones winning.
func Merge(models ...Model) Model {
	n := 0
	for _, m := range models {
		n += len(m)
	}
	out := make(Model, n)
	for _, m := range models {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
