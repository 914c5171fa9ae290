package format

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/query"
)

type staticNames map[flake.PredicateID]string

func (n staticNames) PredicateName(id flake.PredicateID) string { return n[id] }

const (
	pName  flake.PredicateID = 1
	pAge   flake.PredicateID = 2
	pTag   flake.PredicateID = 3
	pOwner flake.PredicateID = 4
)

var names = staticNames{pName: "name", pAge: "age", pTag: "tag", pOwner: "owner"}

func fact(s flake.SubjectID, p flake.PredicateID, o flake.Value) *flake.Flake {
	return &flake.Flake{Subject: s, Predicate: p, Object: o, T: 1, Op: flake.OpAssert}
}

func noRefs(context.Context, flake.SubjectID) ([]*flake.Flake, bool, error) {
	return nil, false, nil
}

func TestWildcardIsDeterministic(t *testing.T) {
	fm := NewFormatter(names, noRefs)
	facts := []*flake.Flake{
		fact(7, pTag, flake.String("b")),
		fact(7, pName, flake.String("x")),
		fact(7, pTag, flake.String("a")),
		fact(7, pAge, flake.Int(3)),
	}
	sel := &query.SelectSpec{Wildcard: true}

	first, ok, err := fm.Format(context.Background(), 7, facts, sel)
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, Node{
		IDKey:  int64(7),
		"name": "x",
		"age":  int64(3),
		"tag":  []any{"b", "a"},
	}, first)

	for i := 0; i < 5; i++ {
		again, ok, err := fm.Format(context.Background(), 7, facts, sel)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, first, again)
	}
}

func TestExplicitFieldsOnly(t *testing.T) {
	fm := NewFormatter(names, noRefs)
	facts := []*flake.Flake{
		fact(7, pName, flake.String("x")),
		fact(7, pAge, flake.Int(3)),
	}
	sel := &query.SelectSpec{Fields: []query.Field{{Name: "age", Predicate: pAge}}}

	node, ok, err := fm.Format(context.Background(), 7, facts, sel)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Node{IDKey: int64(7), "age": int64(3)}, node)
}

func TestEmptyNodeSuppressed(t *testing.T) {
	fm := NewFormatter(names, noRefs)
	sel := &query.SelectSpec{Fields: []query.Field{{Name: "age", Predicate: pAge}}}

	// the subject exists but none of its facts match the projection
	_, ok, err := fm.Format(context.Background(), 7, []*flake.Flake{fact(7, pName, flake.String("x"))}, sel)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRefNotExpandedWithoutGraph(t *testing.T) {
	resolve := func(context.Context, flake.SubjectID) ([]*flake.Flake, bool, error) {
		return nil, false, fmt.Errorf("resolve must not be called")
	}
	fm := NewFormatter(names, resolve)
	facts := []*flake.Flake{fact(7, pOwner, flake.Ref(9))}

	node, ok, err := fm.Format(context.Background(), 7, facts, &query.SelectSpec{Wildcard: true})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(9), node["owner"], "a reference stays a scalar id")
}

func TestGraphDepthExpansion(t *testing.T) {
	resolve := func(_ context.Context, s flake.SubjectID) ([]*flake.Flake, bool, error) {
		switch s {
		case 9:
			return []*flake.Flake{
				fact(9, pName, flake.String("child")),
				fact(9, pOwner, flake.Ref(11)),
			}, true, nil
		case 11:
			return []*flake.Flake{fact(11, pName, flake.String("grandchild"))}, true, nil
		}
		return nil, false, nil
	}
	fm := NewFormatter(names, resolve)
	facts := []*flake.Flake{fact(7, pOwner, flake.Ref(9))}

	node, ok, err := fm.Format(context.Background(), 7, facts, &query.SelectSpec{Wildcard: true, Graph: true, Depth: 1})
	require.NoError(t, err)
	require.True(t, ok)

	child, isNode := node["owner"].(Node)
	require.True(t, isNode)
	require.Equal(t, "child", child["name"])
	require.Equal(t, int64(11), child["owner"], "depth 1 stops expanding at the child")
}

func TestSubSelectionOverridesDepth(t *testing.T) {
	resolve := func(_ context.Context, s flake.SubjectID) ([]*flake.Flake, bool, error) {
		require.Equal(t, flake.SubjectID(9), s)
		return []*flake.Flake{
			fact(9, pName, flake.String("child")),
			fact(9, pAge, flake.Int(4)),
		}, true, nil
	}
	fm := NewFormatter(names, resolve)
	facts := []*flake.Flake{fact(7, pOwner, flake.Ref(9))}

	sel := &query.SelectSpec{Fields: []query.Field{{
		Name:      "owner",
		Predicate: pOwner,
		Sub:       &query.SelectSpec{Fields: []query.Field{{Name: "name", Predicate: pName}}},
	}}}

	node, ok, err := fm.Format(context.Background(), 7, facts, sel)
	require.NoError(t, err)
	require.True(t, ok)

	child := node["owner"].(Node)
	require.Equal(t, Node{IDKey: int64(9), "name": "child"}, child)
}

func TestUnresolvableRefOmitted(t *testing.T) {
	fm := NewFormatter(names, noRefs)
	facts := []*flake.Flake{
		fact(7, pName, flake.String("x")),
		fact(7, pOwner, flake.Ref(9)),
	}

	node, ok, err := fm.Format(context.Background(), 7, facts, &query.SelectSpec{Wildcard: true, Graph: true, Depth: 1})
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, node, "owner")
	require.Equal(t, "x", node["name"])
}
