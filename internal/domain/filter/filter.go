package filter

import (
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/nxx-sync/nxx/internal/domain"
	"github.com/nxx-sync/nxx/internal/domain/schema"
)

// Operator is a field comparison or a logical combinator.
type Operator string

// Field operators.
const (
	Eq  Operator = "eq"
	Ne  Operator = "ne"
	Gt  Operator = "gt"
	Gte Operator = "gte"
	Lt  Operator = "lt"
	Lte Operator = "lte"
	In  Operator = "in"
)

// Logical operators.
const (
	And Operator = "and"
	Or  Operator = "or"
)

// Wire keys of the logical operators.
const (
	AndKey = "$and"
	OrKey  = "$or"
)

// IsLogical reports whether op combines child nodes.
func (op Operator) IsLogical() bool { return op == And || op == Or }

func (op Operator) isRange() bool {
	return op == Gt || op == Gte || op == Lt || op == Lte
}

func parseFieldOperator(key string) (Operator, bool) {
	switch op := Operator(key); op {
	case Eq, Ne, Gt, Gte, Lt, Lte, In:
		return op, true
	}
	return "", false
}

// Node is one vertex of a validated filter tree.
// Field nodes carry a path, an operator and a value; logical nodes carry children.
type Node struct {
	op       Operator
	path     string
	value    any
	field    schema.Field
	children []*Node
}

// Operator returns the node operator.
func (n *Node) Operator() Operator { return n.op }

// IsLogical reports whether this is an and/or node.
func (n *Node) IsLogical() bool { return n.op.IsLogical() }

// Path returns the dotted field path (empty for logical nodes).
func (n *Node) Path() string { return n.path }

// Value returns the comparison value; a []any for the in operator.
func (n *Node) Value() any { return n.value }

// Field returns the schema leaf the path resolved to.
func (n *Node) Field() schema.Field { return n.field }

// Children returns the sub-nodes of a logical node.
func (n *Node) Children() []*Node { return n.children }

// Query is a filter expression validated against one model.
type Query struct {
	root *Node
}

// New parses expr and validates every field condition against model.
// Validation is all-or-nothing: on error no Query is returned.
func New(expr map[string]any, model schema.Model) (*Query, error) {
	root, err := parseExpression(expr, model)
	if err != nil {
		return nil, err
	}
	return &Query{root: root}, nil
}

// Compile resolves modelName within app and builds a Query for it.
func Compile(expr map[string]any, app schema.Application, modelName string) (*Query, error) {
	model, ok := app.Model(modelName)
	if !ok {
		return nil, fmt.Errorf("model %q: %w", modelName, domain.ErrSchemaNotFound)
	}
	return New(expr, model)
}

// Root returns the top of the filter tree.
func (q *Query) Root() *Node { return q.root }

// Visit is one step of a depth-first traversal.
type Visit struct {
	Node   *Node
	Depth  int
	Parent Operator
}

// All yields every node depth-first, parents before children.
// The sequence is finite and can be ranged over any number of times.
func (q *Query) All() iter.Seq[Visit] {
	return func(yield func(Visit) bool) {
		walk(q.root, 0, "", yield)
	}
}

func walk(n *Node, depth int, parent Operator, yield func(Visit) bool) bool {
	if !yield(Visit{Node: n, Depth: depth, Parent: parent}) {
		return false
	}
	for _, c := range n.children {
		if !walk(c, depth+1, n.op, yield) {
			return false
		}
	}
	return true
}

func parseExpression(expr map[string]any, model schema.Model) (*Node, error) {
	if len(expr) == 0 {
		return nil, domain.NewFilterError(domain.FilterEmptyGroup, "", "expression has no conditions")
	}

	// Sorted keys give the same tree for the same expression regardless of map order.
	keys := make([]string, 0, len(expr))
	for k := range expr {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	nodes := make([]*Node, 0, len(keys))
	for _, key := range keys {
		var (
			n   *Node
			err error
		)
		switch {
		case key == AndKey:
			n, err = parseGroup(And, expr[key], model)
		case key == OrKey:
			n, err = parseGroup(Or, expr[key], model)
		case strings.HasPrefix(key, "$"):
			err = domain.NewFilterError(domain.FilterUnknownOperator, key, "unknown logical operator")
		default:
			n, err = parseField(key, expr[key], model)
		}
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}

	if len(nodes) == 1 {
		return nodes[0], nil
	}
	return &Node{op: And, children: nodes}, nil
}

func parseGroup(op Operator, raw any, model schema.Model) (*Node, error) {
	key := AndKey
	if op == Or {
		key = OrKey
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, domain.NewFilterError(domain.FilterMalformed, key, "expected an array of expressions")
	}
	if len(items) == 0 {
		return nil, domain.NewFilterError(domain.FilterEmptyGroup, key, "empty condition array")
	}

	children := make([]*Node, 0, len(items))
	for i, item := range items {
		sub, ok := item.(map[string]any)
		if !ok {
			return nil, domain.NewFilterError(domain.FilterMalformed, fmt.Sprintf("%s[%d]", key, i),
				"expected an expression object")
		}
		child, err := parseExpression(sub, model)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return &Node{op: op, children: children}, nil
}

func parseField(path string, cond any, model schema.Model) (*Node, error) {
	f, ok := model.Lookup(strings.Split(path, "."))
	if !ok {
		return nil, domain.NewFilterError(domain.FilterUnknownField, path, "")
	}
	if !f.IsLeaf() {
		return nil, domain.NewFilterError(domain.FilterNotLeaf, path, fmt.Sprintf("%s fields cannot be filtered", f.Type))
	}
	if !f.Filterable {
		return nil, domain.NewFilterError(domain.FilterNotFilterable, path, "")
	}

	op, value := Eq, cond
	if m, isObj := cond.(map[string]any); isObj {
		if len(m) != 1 {
			return nil, domain.NewFilterError(domain.FilterMultipleOperators, path,
				fmt.Sprintf("expected exactly one operator, got %d", len(m)))
		}
		for k, v := range m {
			parsed, known := parseFieldOperator(k)
			if !known {
				return nil, domain.NewFilterError(domain.FilterUnknownOperator, path, k)
			}
			op, value = parsed, v
		}
	}

	if op.isRange() && f.Type != schema.Number && f.Type != schema.Date {
		return nil, domain.NewFilterError(domain.FilterOperatorType, path,
			fmt.Sprintf("%s requires a number or date field, got %s", op, f.Type))
	}

	if op == In {
		items, isArr := value.([]any)
		if !isArr {
			return nil, domain.NewFilterError(domain.FilterTypeMismatch, path, "in requires an array")
		}
		for i, item := range items {
			if !f.Type.Accepts(item) {
				return nil, domain.NewFilterError(domain.FilterTypeMismatch, fmt.Sprintf("%s[%d]", path, i),
					"expected "+string(f.Type))
			}
		}
	} else if !f.Type.Accepts(value) {
		return nil, domain.NewFilterError(domain.FilterTypeMismatch, path, "expected "+string(f.Type))
	}

	return &Node{op: op, path: path, value: value, field: f}, nil
}
