package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/pkg/flake"
)

func TestPredicateIDRejectsNonPredicateTerms(t *testing.T) {
	id, ok := Predicate(3).PredicateID()
	require.True(t, ok)
	require.Equal(t, flake.PredicateID(3), id)

	// a zero-valued term carries no integer and is not a predicate
	_, ok = Term{}.PredicateID()
	require.False(t, ok)

	_, ok = Variable("?p").PredicateID()
	require.False(t, ok)

	_, ok = Literal(flake.String("name")).PredicateID()
	require.False(t, ok)
}

func TestBoundResolvesVars(t *testing.T) {
	q := &Query{Vars: map[string]flake.Value{"?age": flake.Int(30)}}

	v, ok := q.Bound(Variable("?age"))
	require.True(t, ok)
	require.Equal(t, flake.Int(30), v)

	_, ok = q.Bound(Variable("?other"))
	require.False(t, ok)

	v, ok = q.Bound(Literal(flake.String("x")))
	require.True(t, ok)
	require.Equal(t, flake.String("x"), v)
}
