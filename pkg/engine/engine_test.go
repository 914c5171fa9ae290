package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/internal/format"
	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/policy"
	"github.com/stratadb/strata/pkg/query"
	"github.com/stratadb/strata/pkg/storage/memory"
)

func seedStore(t *testing.T) (*memory.Datastore, flake.SubjectID) {
	t.Helper()

	ds := memory.New()
	person := ds.DefineClass("person")
	name := ds.DefinePredicate("name")
	age := ds.DefinePredicate("age")

	for i := 0; i < 5; i++ {
		s := ds.NewSubject(person)
		ds.RegisterIRI(fmt.Sprintf("ex:p%d", i), s)
		ds.Add(&flake.Flake{Subject: s, Predicate: name, Object: flake.String(fmt.Sprintf("p%d", i)), T: 1, Op: flake.OpAssert})
		ds.Add(&flake.Flake{Subject: s, Predicate: age, Object: flake.Int(int64(30 + i)), T: 1, Op: flake.OpAssert})
	}
	return ds, person
}

func classQuery(person flake.SubjectID) *query.Query {
	return &query.Query{
		Patterns: []query.Pattern{{
			Shape:   query.ShapeClass,
			Subject: query.Variable("?s"),
			Object:  query.Literal(flake.Ref(person)),
		}},
		T: 1,
	}
}

func TestExecute(t *testing.T) {
	ds, person := seedStore(t)
	e, err := New(ds)
	require.NoError(t, err)
	defer e.Close()

	sel, err := e.ParseSelect(`["*"]`, query.Options{})
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), &Request{
		Query:  classQuery(person),
		Select: sel,
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.QueryID)
	require.Positive(t, res.Fuel)

	nodes, ok := res.Data.([]any)
	require.True(t, ok)
	require.Len(t, nodes, 5)
	for _, n := range nodes {
		node := n.(format.Node)
		require.Contains(t, node, format.IDKey)
		require.Contains(t, node, "name")
		require.Contains(t, node, "age")
	}
}

func TestExecuteFuelExhausted(t *testing.T) {
	ds, person := seedStore(t)
	e, err := New(ds)
	require.NoError(t, err)
	defer e.Close()

	sel, err := e.ParseSelect(`["*"]`, query.Options{})
	require.NoError(t, err)

	_, err = e.Execute(context.Background(), &Request{
		Query:     classQuery(person),
		Select:    sel,
		FuelLimit: 2,
	})
	require.ErrorIs(t, err, ErrFuelExhausted)
}

func TestExecuteNoStrategy(t *testing.T) {
	ds, _ := seedStore(t)
	e, err := New(ds)
	require.NoError(t, err)
	defer e.Close()

	// a recursive pattern falls back to the general evaluator
	q := &query.Query{
		Patterns: []query.Pattern{{
			Subject:   query.Variable("?s"),
			Predicate: query.Predicate(1),
			Object:    query.Variable("?o"),
			Recurse:   3,
		}},
		T: 1,
	}

	_, err = e.Execute(context.Background(), &Request{
		Query:  q,
		Select: &query.SelectSpec{Wildcard: true},
	})
	require.ErrorIs(t, err, ErrNoStrategy)
}

func TestExecuteInvalidQuery(t *testing.T) {
	ds, _ := seedStore(t)
	e, err := New(ds)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Execute(context.Background(), &Request{
		Query:  &query.Query{T: 1},
		Select: &query.SelectSpec{Wildcard: true},
	})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestExecuteRejectsIncompleteRequest(t *testing.T) {
	ds, person := seedStore(t)
	e, err := New(ds)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Execute(context.Background(), &Request{
		Query: classQuery(person),
	})
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = e.Execute(context.Background(), &Request{
		Select: &query.SelectSpec{Wildcard: true},
	})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestParseSelectErrorsAreInvalidQuery(t *testing.T) {
	ds, _ := seedStore(t)
	e, err := New(ds)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.ParseSelect(`["no-such-predicate"]`, query.Options{})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestExecuteAppliesPolicy(t *testing.T) {
	ds, person := seedStore(t)
	e, err := New(ds)
	require.NoError(t, err)
	defer e.Close()

	agePred, ok := ds.PredicateID("age")
	require.True(t, ok)
	pol, err := policy.Compile(true, []policy.Rule{
		{Name: "hide ages", Predicate: &agePred, Allow: false},
	})
	require.NoError(t, err)

	sel, err := e.ParseSelect(`["*"]`, query.Options{})
	require.NoError(t, err)

	res, err := e.Execute(context.Background(), &Request{
		Query:  classQuery(person),
		Select: sel,
		Policy: pol,
	})
	require.NoError(t, err)

	nodes := res.Data.([]any)
	require.Len(t, nodes, 5)
	for _, n := range nodes {
		require.NotContains(t, n.(format.Node), "age")
	}
}
