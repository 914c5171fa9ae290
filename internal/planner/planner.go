// Package planner decides whether a parsed query fits the subject-crawl
// strategy family and, when it does, rewrites the pattern list into the
// compact plan the crawl pipeline executes: the leading pattern stays a
// candidate-discovery clause and every residual pattern is compiled into
// the filter map.
package planner

import (
	"fmt"

	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/query"
)

// FilterFunc is a single-fact boolean test. A returned error is query-fatal.
type FilterFunc func(*flake.Flake) (bool, error)

// FilterMap is the compiled form of every residual pattern. A subject
// qualifies iff, for every predicate in RequiredP, at least one of its
// facts with that predicate satisfies all filter functions registered for
// it.
type FilterMap struct {
	ByPredicate map[flake.PredicateID][]FilterFunc
	RequiredP   []flake.PredicateID
}

// Empty reports whether the map imposes no constraints.
func (m *FilterMap) Empty() bool {
	return len(m.RequiredP) == 0
}

// Plan is a rewritten query ready for crawl execution.
type Plan struct {
	SubjectVar string
	First      query.Pattern
	Filters    *FilterMap
	Select     *query.SelectSpec
	T          int64
}

// InvalidQueryError is a query-shape error detected before any streaming
// begins.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}

// Rewrite inspects the query and select specification. It returns
// (plan, true, nil) when the subject-crawl strategy applies, (nil, false,
// nil) when the caller must fall back to the general evaluator, and an
// InvalidQueryError for shapes that are usage errors rather than fallback
// cases.
func Rewrite(q *query.Query, sel *query.SelectSpec) (*Plan, bool, error) {
	if len(q.Patterns) == 0 {
		return nil, false, &InvalidQueryError{Reason: "query has no patterns"}
	}
	if err := validateOrderBy(q, sel); err != nil {
		return nil, false, err
	}

	if len(sel.GroupBy) > 0 {
		return nil, false, nil
	}
	if sel.OrderBy != nil && sel.OrderBy.Var != "" {
		// explicit-variable ordering is the general evaluator's job
		return nil, false, nil
	}

	first := q.Patterns[0]
	if first.Subject.Kind != query.TermVariable || first.Subject.Var == "" {
		return nil, false, nil
	}
	subjVar := first.Subject.Var

	for _, p := range q.Patterns {
		if p.Recurse > 0 {
			return nil, false, nil
		}
		if p.Subject.Kind != query.TermVariable || p.Subject.Var != subjVar {
			return nil, false, nil
		}
	}
	if first.Shape == query.ShapeTuple && first.Object.Kind == query.TermExpression {
		return nil, false, nil
	}

	filters, ok, err := compileFilters(q, subjVar)
	if err != nil || !ok {
		return nil, ok, err
	}

	// a variable bound through vars is a literal as far as the scan is
	// concerned
	if v, ok := q.Bound(first.Predicate); ok && first.Predicate.Kind == query.TermVariable {
		first.Predicate = query.Literal(v)
	}
	if v, ok := q.Bound(first.Object); ok && first.Object.Kind == query.TermVariable {
		first.Object = query.Literal(v)
	}

	return &Plan{
		SubjectVar: subjVar,
		First:      first,
		Filters:    filters,
		Select:     sel,
		T:          q.T,
	}, true, nil
}

// compileFilters reduces every residual pattern to per-predicate
// single-fact tests. A residual pattern that cannot be reduced, such as a
// cross-fact join through a shared object variable, disqualifies the whole
// query rather than being dropped.
func compileFilters(q *query.Query, subjVar string) (*FilterMap, bool, error) {
	m := &FilterMap{ByPredicate: make(map[flake.PredicateID][]FilterFunc)}

	objectVars := make(map[string]int)
	for _, p := range q.Patterns[1:] {
		if p.Object.Kind == query.TermVariable {
			if _, bound := q.Vars[p.Object.Var]; !bound {
				objectVars[p.Object.Var]++
			}
		}
	}

	seen := make(map[flake.PredicateID]bool)
	for _, p := range q.Patterns[1:] {
		if p.Shape != query.ShapeTuple {
			// _id and class assertions only discover candidates; as
			// residuals they do not reduce to a single-fact test
			return nil, false, nil
		}
		pred, ok := p.Predicate.PredicateID()
		if !ok {
			return nil, false, nil
		}

		switch p.Object.Kind {
		case query.TermValue:
			want := p.Object.Value
			m.ByPredicate[pred] = append(m.ByPredicate[pred], equalsFilter(want))

		case query.TermVariable:
			if bound, ok := q.Bound(p.Object); ok {
				m.ByPredicate[pred] = append(m.ByPredicate[pred], equalsFilter(bound))
				break
			}
			if p.Object.Var == subjVar || objectVars[p.Object.Var] > 1 {
				// a shared unbound object variable is a join, not a
				// single-fact test
				return nil, false, nil
			}
			// unbound object: the predicate must merely be present

		case query.TermExpression:
			f, err := compileExpression(p.Object.Expr)
			if err != nil {
				return nil, false, &InvalidQueryError{
					Reason: fmt.Sprintf("filter expression %q: %v", p.Object.Expr, err),
				}
			}
			m.ByPredicate[pred] = append(m.ByPredicate[pred], f)

		default:
			return nil, false, nil
		}

		if !seen[pred] {
			seen[pred] = true
			m.RequiredP = append(m.RequiredP, pred)
		}
	}

	return m, true, nil
}

func equalsFilter(want flake.Value) FilterFunc {
	return func(f *flake.Flake) (bool, error) {
		return flake.CompareValues(f.Object, want) == 0, nil
	}
}

func validateOrderBy(q *query.Query, sel *query.SelectSpec) error {
	if sel.OrderBy == nil || sel.OrderBy.Var == "" {
		return nil
	}
	for _, p := range q.Patterns {
		if p.Subject.Kind == query.TermVariable && p.Subject.Var == sel.OrderBy.Var {
			return nil
		}
		if p.Object.Kind == query.TermVariable && p.Object.Var == sel.OrderBy.Var {
			return nil
		}
	}
	return &InvalidQueryError{
		Reason: fmt.Sprintf("order-by references unbound variable %s", sel.OrderBy.Var),
	}
}
