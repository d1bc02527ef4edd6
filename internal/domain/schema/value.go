package schema

import (
	"math"
	"time"
)

// Accepts reports whether v is a valid value for the primitive type t.
// Dates accept ISO-8601 strings and numeric unix-millisecond timestamps.
func (t Type) Accepts(v any) bool {
	switch t {
	case String:
		_, ok := v.(string)
		return ok
	case Number:
		_, ok := ToFloat(v)
		return ok
	case Boolean:
		_, ok := v.(bool)
		return ok
	case Date:
		_, ok := ToMillis(v)
		return ok
	}
	return false
}

// ToFloat accepts finite, non-NaN numbers of any Go numeric kind.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ToMillis reads an ISO-8601 string or a numeric unix-millisecond timestamp.
func ToMillis(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return float64(ts.UnixMilli()), true
			}
		}
		return 0, false
	}
	return ToFloat(v)
}
