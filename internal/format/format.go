// Package format turns a filtered fact set into the caller's requested
// output shape: a flat node keyed by predicate name, or a nested graph
// crawl expanding reference values to a requested depth.
package format

import (
	"context"
	"sort"

	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/query"
)

// IDKey is the key carrying the subject id in every formatted node.
const IDKey = "_id"

// Node is one formatted result.
type Node = map[string]any

// NameResolver maps predicate ids back to their compact names.
type NameResolver interface {
	PredicateName(id flake.PredicateID) string
}

// ResolveFunc fetches the visible fact set of a referenced subject. ok is
// false when the subject has no visible facts.
type ResolveFunc func(ctx context.Context, subject flake.SubjectID) ([]*flake.Flake, bool, error)

// Formatter is safe for concurrent use: formatting runs concurrently
// across subjects in the pipeline.
type Formatter struct {
	names   NameResolver
	resolve ResolveFunc
}

func NewFormatter(names NameResolver, resolve ResolveFunc) *Formatter {
	return &Formatter{names: names, resolve: resolve}
}

// Format renders one subject's visible facts according to the select
// specification. ok is false when the rendered node would be empty beyond
// the subject id, which excludes it from the result collection.
func (fm *Formatter) Format(ctx context.Context, subject flake.SubjectID, facts []*flake.Flake, sel *query.SelectSpec) (Node, bool, error) {
	depth := 0
	if sel.Graph {
		depth = sel.Depth
	}
	return fm.node(ctx, subject, facts, sel, depth)
}

func (fm *Formatter) node(ctx context.Context, subject flake.SubjectID, facts []*flake.Flake, sel *query.SelectSpec, depth int) (Node, bool, error) {
	node := Node{IDKey: int64(subject)}

	for _, field := range fm.fields(facts, sel) {
		vals, err := fm.values(ctx, facts, field, sel, depth)
		if err != nil {
			return nil, false, err
		}
		switch len(vals) {
		case 0:
			// every value was suppressed; omit the key entirely
		case 1:
			node[field.Name] = vals[0]
		default:
			node[field.Name] = vals
		}
	}

	if len(node) == 1 {
		// nothing beyond the subject id is visible
		return nil, false, nil
	}
	return node, true, nil
}

// fields resolves the projection: the explicit field list, or under a
// wildcard every distinct predicate present, sorted by predicate id so
// repeated queries are deterministic.
func (fm *Formatter) fields(facts []*flake.Flake, sel *query.SelectSpec) []query.Field {
	if !sel.Wildcard {
		return sel.Fields
	}

	sub := make(map[flake.PredicateID]*query.SelectSpec, len(sel.Fields))
	for _, f := range sel.Fields {
		sub[f.Predicate] = f.Sub
	}

	seen := make(map[flake.PredicateID]bool)
	var preds []flake.PredicateID
	for _, f := range facts {
		if !seen[f.Predicate] {
			seen[f.Predicate] = true
			preds = append(preds, f.Predicate)
		}
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i] < preds[j] })

	fields := make([]query.Field, 0, len(preds))
	for _, p := range preds {
		fields = append(fields, query.Field{
			Name:      fm.names.PredicateName(p),
			Predicate: p,
			Sub:       sub[p],
		})
	}
	return fields
}

func (fm *Formatter) values(ctx context.Context, facts []*flake.Flake, field query.Field, sel *query.SelectSpec, depth int) ([]any, error) {
	var vals []any
	for _, f := range facts {
		if f.Predicate != field.Predicate {
			continue
		}

		if f.Object.Kind == flake.DatatypeRef && (field.Sub != nil || depth > 0) {
			child, ok, err := fm.expand(ctx, f.Object.Ref, field, sel, depth)
			if err != nil {
				return nil, err
			}
			if ok {
				vals = append(vals, child)
			}
			continue
		}

		vals = append(vals, f.Object.Native())
	}
	return vals, nil
}

// expand recursively renders a referenced subject. An explicit
// sub-selection overrides the remaining depth; otherwise the child is a
// wildcard node one level shallower. A child with nothing visible beyond
// its id is omitted from the parent's collection, never emitted empty.
func (fm *Formatter) expand(ctx context.Context, ref flake.SubjectID, field query.Field, sel *query.SelectSpec, depth int) (Node, bool, error) {
	childFacts, ok, err := fm.resolve(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if field.Sub != nil {
		return fm.node(ctx, ref, childFacts, field.Sub, field.Sub.Depth)
	}

	child := &query.SelectSpec{Wildcard: true, Graph: true}
	return fm.node(ctx, ref, childFacts, child, depth-1)
}
