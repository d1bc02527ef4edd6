package patch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nxx-sync/nxx/internal/domain"
	"github.com/nxx-sync/nxx/internal/domain/schema"
)

// Replace is the only operation kind currently defined.
const Replace = "replace"

// Metadata keys identifying the record a patch targets.
const (
	MetaAppID = "appId"
	MetaID    = "id"
	MetaType  = "type"
)

// Operation is a batch of (path, value) replacements against one record.
// Path and Value are positionally paired; a path is a dotted field path.
type Operation struct {
	Op       string         `json:"op"`
	Path     []string       `json:"path"`
	Value    []any          `json:"value"`
	Metadata map[string]any `json:"metadata"`
}

// AppID returns the target application, or "" when metadata is malformed.
func (o Operation) AppID() string { return o.meta(MetaAppID) }

// RecordID returns the target record id, or "" when metadata is malformed.
func (o Operation) RecordID() string { return o.meta(MetaID) }

// ModelType returns the target model, or "" when metadata is malformed.
func (o Operation) ModelType() string { return o.meta(MetaType) }

func (o Operation) meta(key string) string {
	s, _ := o.Metadata[key].(string)
	return s
}

// CheckShape validates everything that does not need a schema: path/value pairing,
// metadata and the operation kind.
func (o Operation) CheckShape() error {
	if len(o.Path) != len(o.Value) {
		return domain.NewPatchError(domain.PatchLengthMismatch, "",
			fmt.Sprintf("%d paths, %d values", len(o.Path), len(o.Value)))
	}
	for _, key := range []string{MetaAppID, MetaID, MetaType} {
		v, ok := o.Metadata[key]
		if !ok {
			return domain.NewPatchError(domain.PatchMetadata, key, "missing")
		}
		if s, isStr := v.(string); !isStr || s == "" {
			return domain.NewPatchError(domain.PatchMetadata, key, "must be a non-empty string")
		}
	}
	if o.Op != Replace {
		return domain.NewPatchError(domain.PatchUnsupportedOp, "", fmt.Sprintf("operation %q", o.Op))
	}
	return nil
}

// Validate checks the operation against the target application's schema.
// It has no side effects and never partially accepts: any bad pair rejects the operation.
func Validate(o Operation, app schema.Application) error {
	if err := o.CheckShape(); err != nil {
		return err
	}
	model, ok := app.Model(o.ModelType())
	if !ok {
		return domain.NewPatchError(domain.PatchUnknownModel, "", o.ModelType())
	}
	for i, path := range o.Path {
		f, err := Resolve(model, path)
		if err != nil {
			return err
		}
		if err := validateValue(f, o.Value[i], path); err != nil {
			return err
		}
	}
	return nil
}

// Resolve walks a dotted path through objects and arrays.
// Numeric segments index into arrays; arrays of objects may also be addressed by
// property name directly, which targets that property on every element.
func Resolve(model schema.Model, path string) (schema.Field, error) {
	segs := strings.Split(path, ".")
	f, ok := model[segs[0]]
	if !ok {
		return schema.Field{}, domain.NewPatchError(domain.PatchUnknownPath, path, "")
	}
	for _, seg := range segs[1:] {
		switch {
		case f.Type == schema.Object:
			f, ok = f.Properties[seg]
		case f.Type == schema.Array && isIndex(seg):
			f, ok = f.Element(), true
		case f.Type == schema.Array && f.ElementType == schema.Object:
			f, ok = f.Properties[seg]
		default:
			ok = false
		}
		if !ok {
			return schema.Field{}, domain.NewPatchError(domain.PatchUnknownPath, path, "")
		}
	}
	return f, nil
}

func isIndex(seg string) bool {
	n, err := strconv.Atoi(seg)
	return err == nil && n >= 0
}

func validateValue(f schema.Field, v any, path string) error {
	if v == nil {
		if f.Required {
			return domain.NewPatchError(domain.PatchRequired, path, "null for a required field")
		}
		return nil
	}

	switch f.Type {
	case schema.Object:
		obj, ok := v.(map[string]any)
		if !ok {
			return domain.NewPatchError(domain.PatchTypeMismatch, path, "expected object")
		}
		for key, child := range obj {
			prop, known := f.Properties[key]
			if !known {
				return domain.NewPatchError(domain.PatchUnknownProperty, path+"."+key, "")
			}
			if err := validateValue(prop, child, path+"."+key); err != nil {
				return err
			}
		}
		for key, prop := range f.Properties {
			if _, present := obj[key]; !present && prop.Required {
				return domain.NewPatchError(domain.PatchRequired, path+"."+key, "missing")
			}
		}
		return nil
	case schema.Array:
		items, ok := v.([]any)
		if !ok {
			return domain.NewPatchError(domain.PatchTypeMismatch, path, "expected array")
		}
		elem := f.Element()
		for i, item := range items {
			if err := validateValue(elem, item, fmt.Sprintf("%s.%d", path, i)); err != nil {
				return err
			}
		}
		return nil
	default:
		if !f.Type.Accepts(v) {
			return domain.NewPatchError(domain.PatchTypeMismatch, path, "expected "+string(f.Type))
		}
		return nil
	}
}
