package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/storage"
)

func assertAt(s flake.SubjectID, p flake.PredicateID, v flake.Value, t int64) *flake.Flake {
	return &flake.Flake{Subject: s, Predicate: p, Object: v, T: t, Op: flake.OpAssert}
}

func retractAt(s flake.SubjectID, p flake.PredicateID, v flake.Value, t int64) *flake.Flake {
	return &flake.Flake{Subject: s, Predicate: p, Object: v, T: t, Op: flake.OpRetract}
}

func TestScanPrefixRange(t *testing.T) {
	ds := New()
	name := ds.DefinePredicate("name")
	age := ds.DefinePredicate("age")

	ds.AddAll([]*flake.Flake{
		assertAt(1, name, flake.String("alice"), 1),
		assertAt(2, name, flake.String("bob"), 1),
		assertAt(1, age, flake.Int(30), 1),
	})

	bound := flake.Bound{Predicate: &name}
	iter, err := ds.Scan(context.Background(), flake.OrderPSOT, bound.Lower(), bound.Upper(), 1)
	require.NoError(t, err)

	facts, err := storage.Collect(context.Background(), iter)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	for _, f := range facts {
		require.Equal(t, name, f.Predicate)
	}
}

func TestScanPointRange(t *testing.T) {
	ds := New()
	color := ds.DefinePredicate("color")

	ds.AddAll([]*flake.Flake{
		assertAt(1, color, flake.String("red"), 1),
		assertAt(2, color, flake.String("blue"), 1),
		assertAt(3, color, flake.String("red"), 1),
	})

	red := flake.String("red")
	bound := flake.Bound{Predicate: &color, Object: &red}
	iter, err := ds.Scan(context.Background(), flake.OrderPOST, bound.Lower(), bound.Upper(), 1)
	require.NoError(t, err)

	facts, err := storage.Collect(context.Background(), iter)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	require.Equal(t, flake.SubjectID(1), facts[0].Subject)
	require.Equal(t, flake.SubjectID(3), facts[1].Subject)
}

func TestPointLookup(t *testing.T) {
	ds := New()
	color := ds.DefinePredicate("color")

	ds.AddAll([]*flake.Flake{
		assertAt(1, color, flake.String("red"), 1),
		assertAt(1, color, flake.String("blue"), 1),
		assertAt(2, color, flake.String("red"), 1),
	})
	ds.Add(retractAt(1, color, flake.String("blue"), 4))

	key := &flake.Flake{Subject: 1, Predicate: color, Object: flake.String("red")}
	facts, err := ds.PointLookup(context.Background(), flake.OrderSPOT, key, 5)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, flake.SubjectID(1), facts[0].Subject)

	// the retracted triple resolves to nothing
	key = &flake.Flake{Subject: 1, Predicate: color, Object: flake.String("blue")}
	facts, err = ds.PointLookup(context.Background(), flake.OrderSPOT, key, 5)
	require.NoError(t, err)
	require.Empty(t, facts)
}

func TestRetractHidesFactAfterT(t *testing.T) {
	ds := New()
	name := ds.DefinePredicate("name")

	ds.Add(assertAt(1, name, flake.String("alice"), 1))
	ds.Add(retractAt(1, name, flake.String("alice"), 5))

	for _, tc := range []struct {
		t    int64
		want int
	}{
		{t: 1, want: 1},
		{t: 4, want: 1},
		{t: 5, want: 0},
		{t: 9, want: 0},
	} {
		facts, err := ds.SubjectFacts(context.Background(), 1, tc.t)
		require.NoError(t, err)
		require.Len(t, facts, tc.want, "at t=%d", tc.t)
	}
}

func TestReassertAfterRetract(t *testing.T) {
	ds := New()
	name := ds.DefinePredicate("name")

	ds.Add(assertAt(1, name, flake.String("alice"), 1))
	ds.Add(retractAt(1, name, flake.String("alice"), 3))
	ds.Add(assertAt(1, name, flake.String("alice"), 7))

	facts, err := ds.SubjectFacts(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, int64(7), facts[0].T)
}

func TestFutureFactsInvisible(t *testing.T) {
	ds := New()
	name := ds.DefinePredicate("name")
	ds.Add(assertAt(1, name, flake.String("alice"), 8))

	facts, err := ds.SubjectFacts(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Empty(t, facts)
}

func TestClassRange(t *testing.T) {
	ds := New()
	person := ds.DefineClass("person")
	city := ds.DefineClass("city")

	alice := ds.NewSubject(person)
	bob := ds.NewSubject(person)
	oslo := ds.NewSubject(city)

	min, max, err := ds.ClassRange(context.Background(), person)
	require.NoError(t, err)
	require.LessOrEqual(t, min, alice)
	require.LessOrEqual(t, alice, max)
	require.LessOrEqual(t, bob, max)
	require.Greater(t, oslo, max, "city ids live outside the person block")

	_, _, err = ds.ClassRange(context.Background(), flake.SubjectID(999999))
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestResolveIRI(t *testing.T) {
	ds := New()
	ds.RegisterIRI("ex:alice", 42)

	id, ok, err := ds.ResolveIRI(context.Background(), "ex:alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, flake.SubjectID(42), id)

	_, ok, err = ds.ResolveIRI(context.Background(), "ex:nobody")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSchemaVersionBumps(t *testing.T) {
	ds := New()
	v0 := ds.SchemaVersion()
	ds.DefinePredicate("name")
	require.Greater(t, ds.SchemaVersion(), v0)

	// redefining is a no-op
	v1 := ds.SchemaVersion()
	ds.DefinePredicate("name")
	require.Equal(t, v1, ds.SchemaVersion())
}
