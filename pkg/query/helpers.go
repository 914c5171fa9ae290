package query

import "github.com/stratadb/strata/pkg/flake"

// Predicate returns a bound predicate term.
func Predicate(id flake.PredicateID) Term {
	return Term{Kind: TermValue, Value: flake.Int(int64(id))}
}

// PredicateID extracts the bound predicate id from a predicate term. A
// zero-valued term is not a predicate: ok is false unless the term carries
// an integer value.
func (t Term) PredicateID() (flake.PredicateID, bool) {
	if t.Kind != TermValue || t.Value.Kind != flake.DatatypeInt {
		return 0, false
	}
	return flake.PredicateID(t.Value.Int), true
}

// Bound resolves a term against the query's pre-bound variables: a variable
// carrying a value through vars is treated as a literal.
func (q *Query) Bound(t Term) (flake.Value, bool) {
	switch t.Kind {
	case TermValue:
		return t.Value, true
	case TermVariable:
		v, ok := q.Vars[t.Var]
		return v, ok
	default:
		return flake.Value{}, false
	}
}
