package filter

import (
	"strings"

	"github.com/nxx-sync/nxx/internal/domain/schema"
)

// Matches evaluates the query against a record.
// A field absent from the record (or null) never matches, whatever the operator.
func (q *Query) Matches(record map[string]any) bool {
	return q.root.matches(record)
}

func (n *Node) matches(record map[string]any) bool {
	switch n.op {
	case And:
		for _, c := range n.children {
			if !c.matches(record) {
				return false
			}
		}
		return true
	case Or:
		for _, c := range n.children {
			if c.matches(record) {
				return true
			}
		}
		return false
	}

	actual, ok := lookup(record, n.path)
	if !ok || actual == nil {
		return false
	}

	switch n.op {
	case Eq:
		return equal(n.field.Type, actual, n.value)
	case Ne:
		return !equal(n.field.Type, actual, n.value)
	case In:
		for _, candidate := range n.value.([]any) {
			if equal(n.field.Type, actual, candidate) {
				return true
			}
		}
		return false
	}

	a, okA := ordinal(n.field.Type, actual)
	b, okB := ordinal(n.field.Type, n.value)
	if !okA || !okB {
		return false
	}
	switch n.op {
	case Gt:
		return a > b
	case Gte:
		return a >= b
	case Lt:
		return a < b
	case Lte:
		return a <= b
	}
	return false
}

func lookup(record map[string]any, path string) (any, bool) {
	var cur any = record
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func ordinal(t schema.Type, v any) (float64, bool) {
	if t == schema.Date {
		return schema.ToMillis(v)
	}
	return schema.ToFloat(v)
}

func equal(t schema.Type, a, b any) bool {
	switch t {
	case schema.Number, schema.Date:
		x, okA := ordinal(t, a)
		y, okB := ordinal(t, b)
		return okA && okB && x == y
	case schema.String:
		x, okA := a.(string)
		y, okB := b.(string)
		return okA && okB && x == y
	case schema.Boolean:
		x, okA := a.(bool)
		y, okB := b.(bool)
		return okA && okB && x == y
	}
	return false
}
