package query

import (
	"encoding/json"
	"fmt"

	"github.com/stratadb/strata/pkg/flake"
)

// Field is one projected predicate. Sub, when set, is an explicit
// sub-selection for reference values and overrides the remaining crawl
// depth.
type Field struct {
	Name      string
	Predicate flake.PredicateID
	Sub       *SelectSpec
}

// OrderBy names the sort key of the finishing function. Either Var is set
// (ordering was requested on a query variable) or Predicate is resolved.
type OrderBy struct {
	Var          string
	Predicate    flake.PredicateID
	HasPredicate bool
	Desc         bool
}

// SelectSpec is the parsed select expression plus its compile options. It is
// immutable after parsing and shared across queries via the parse cache.
type SelectSpec struct {
	Wildcard bool
	Fields   []Field

	// Graph requests nested expansion of reference values to Depth levels.
	Graph bool
	Depth int

	GroupBy []string
	OrderBy *OrderBy
	Limit   int
	Offset  int

	// SelectOne unwraps the result collection to its first element.
	SelectOne bool
	// PrettyPrint re-keys each result under Var.
	PrettyPrint bool
	// Var is the variable the selection originates from.
	Var string
}

// Options are the compile options accompanying a raw select expression.
type Options struct {
	Graph       bool
	Depth       int
	OrderBy     string
	OrderDesc   bool
	Limit       int
	Offset      int
	SelectOne   bool
	PrettyPrint bool
	Var         string
	GroupBy     []string
}

// SchemaResolver is the subset of the store's schema the parser needs.
type SchemaResolver interface {
	PredicateID(name string) (flake.PredicateID, bool)
	SchemaVersion() uint64
}

// ParseSelect compiles a raw JSON select expression, e.g.
//
//	["*"]
//	["name", "age", {"friend": ["name"]}]
//
// against the given schema. Unknown predicate names are a query-shape error.
func ParseSelect(schema SchemaResolver, raw string, opts Options) (*SelectSpec, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("malformed select expression: %w", err)
	}

	spec := &SelectSpec{
		Graph:       opts.Graph,
		Depth:       opts.Depth,
		GroupBy:     opts.GroupBy,
		Limit:       opts.Limit,
		Offset:      opts.Offset,
		SelectOne:   opts.SelectOne,
		PrettyPrint: opts.PrettyPrint,
		Var:         opts.Var,
	}

	if opts.OrderBy != "" {
		ob := &OrderBy{Desc: opts.OrderDesc}
		if opts.OrderBy[0] == '?' {
			ob.Var = opts.OrderBy
		} else if id, ok := schema.PredicateID(opts.OrderBy); ok {
			ob.Predicate = id
			ob.HasPredicate = true
		} else {
			return nil, fmt.Errorf("order-by references unknown predicate %q", opts.OrderBy)
		}
		spec.OrderBy = ob
	}

	for _, elem := range elems {
		var name string
		if err := json.Unmarshal(elem, &name); err == nil {
			if name == "*" {
				spec.Wildcard = true
				continue
			}
			id, ok := schema.PredicateID(name)
			if !ok {
				return nil, fmt.Errorf("select references unknown predicate %q", name)
			}
			spec.Fields = append(spec.Fields, Field{Name: name, Predicate: id})
			continue
		}

		var sub map[string]json.RawMessage
		if err := json.Unmarshal(elem, &sub); err != nil {
			return nil, fmt.Errorf("malformed select element %s", string(elem))
		}
		for name, rawSub := range sub {
			id, ok := schema.PredicateID(name)
			if !ok {
				return nil, fmt.Errorf("select references unknown predicate %q", name)
			}
			subSpec, err := ParseSelect(schema, string(rawSub), Options{Graph: true, Depth: opts.Depth})
			if err != nil {
				return nil, err
			}
			spec.Fields = append(spec.Fields, Field{Name: name, Predicate: id, Sub: subSpec})
		}
	}

	return spec, nil
}
