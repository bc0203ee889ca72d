package strategy

import (
	"fmt"

	"github.com/casthq/warden/pkg/errors"
)

// FieldType enumerates the parameter types a schema can declare.
type FieldType string

// Schema field types.
const (
	FieldNumber     FieldType = "number"
	FieldString     FieldType = "string"
	FieldBoolean    FieldType = "boolean"
	FieldStringList FieldType = "stringList"
)

// Field describes one typed strategy parameter.
type Field struct {
	Key         string    `json:"key"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Min         *float64  `json:"min,omitempty"`
	Max         *float64  `json:"max,omitempty"`
	Default     any       `json:"default,omitempty"`
	Description string    `json:"description,omitempty"`
}

func minOf(v float64) *float64 { return &v }
func maxOf(v float64) *float64 { return &v }

// validateParams normalizes caller params against a schema: coerces
// types, applies defaults, and enforces ranges. Unknown fields are
// preserved untouched so newer callers keep working against older
// schemas; known fields with the wrong type or out of range are
// rejected.
func validateParams(schema []Field, params map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(params)+len(schema))
	known := make(map[string]bool, len(schema))

	for _, f := range schema {
		known[f.Key] = true

		raw, present := params[f.Key]
		if !present || raw == nil {
			if f.Required && f.Default == nil {
				return nil, errors.Validation("parameter %q is required", f.Key)
			}
			if f.Default != nil {
				out[f.Key] = f.Default
			}
			continue
		}

		value, err := coerce(f, raw)
		if err != nil {
			return nil, err
		}
		out[f.Key] = value
	}

	for k, v := range params {
		if !known[k] {
			out[k] = v
		}
	}
	return out, nil
}

func coerce(f Field, raw any) (any, error) {
	switch f.Type {
	case FieldNumber:
		n, ok := asFloat(raw)
		if !ok {
			return nil, errors.Validation("parameter %q must be a number", f.Key)
		}
		if f.Min != nil && n < *f.Min {
			return nil, errors.Validation("parameter %q must be at least %v", f.Key, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return nil, errors.Validation("parameter %q must be at most %v", f.Key, *f.Max)
		}
		return n, nil

	case FieldString:
		s, ok := raw.(string)
		if !ok {
			return nil, errors.Validation("parameter %q must be a string", f.Key)
		}
		if f.Required && s == "" {
			return nil, errors.Validation("parameter %q must not be empty", f.Key)
		}
		return s, nil

	case FieldBoolean:
		b, ok := raw.(bool)
		if !ok {
			return nil, errors.Validation("parameter %q must be a boolean", f.Key)
		}
		return b, nil

	case FieldStringList:
		list, err := asStringList(raw)
		if err != nil {
			return nil, errors.Validation("parameter %q must be a list of strings", f.Key)
		}
		if f.Required && len(list) == 0 {
			return nil, errors.Validation("parameter %q must not be empty", f.Key)
		}
		return list, nil

	default:
		return nil, errors.Internal(fmt.Sprintf("unknown schema field type %q for %s", f.Type, f.Key), nil)
	}
}

func asFloat(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

func asStringList(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errors.Validation("list contains a non-string value")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.Validation("not a list")
	}
}

// Typed accessors over normalized params. validateParams guarantees the
// types, so lookups degrade to zero values only for unknown keys.

func floatParam(params map[string]any, key string) float64 {
	n, _ := asFloat(params[key])
	return n
}

func intParam(params map[string]any, key string) int {
	n, _ := asFloat(params[key])
	return int(n)
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func stringListParam(params map[string]any, key string) []string {
	list, err := asStringList(params[key])
	if err != nil {
		return nil
	}
	return list
}
