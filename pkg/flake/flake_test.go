package flake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubjectIDClassPartitioning(t *testing.T) {
	s := NewSubjectID(7, 42)
	require.Equal(t, ClassID(7), s.Class())
	require.Equal(t, NewSubjectID(7, 0), s-42)

	// ids of consecutive classes never overlap
	require.Less(t, NewSubjectID(7, 1<<ClassShift-1), NewSubjectID(8, 0))
}

func TestCompareOrders(t *testing.T) {
	a := &Flake{Subject: 1, Predicate: 10, Object: String("a"), T: 1}
	b := &Flake{Subject: 1, Predicate: 10, Object: String("b"), T: 1}
	c := &Flake{Subject: 2, Predicate: 5, Object: String("a"), T: 1}

	for _, order := range []SortOrder{OrderSPOT, OrderPSOT, OrderPOST} {
		require.Negative(t, Compare(order, a, b), order.String())
		require.Positive(t, Compare(order, b, a), order.String())
		require.Zero(t, Compare(order, a, a), order.String())
	}

	// subject leads in SPOT, predicate leads in the other two
	require.Negative(t, Compare(OrderSPOT, a, c))
	require.Positive(t, Compare(OrderPSOT, a, c))
	require.Positive(t, Compare(OrderPOST, a, c))
}

func TestCompareSameFactDiffersOnlyByT(t *testing.T) {
	early := &Flake{Subject: 1, Predicate: 2, Object: Int(3), T: 5}
	late := &Flake{Subject: 1, Predicate: 2, Object: Int(3), T: 9}

	for _, order := range []SortOrder{OrderSPOT, OrderPSOT, OrderPOST} {
		require.Negative(t, Compare(order, early, late))
	}
}

func TestCompareValuesAcrossDatatypes(t *testing.T) {
	// datatype is the leading component, so mixed-type predicates still
	// have a stable order
	require.Negative(t, CompareValues(Bool(true), Int(0)))
	require.Negative(t, CompareValues(Int(100), Float(1.0)))
	require.Negative(t, CompareValues(Float(9.5), String("")))
	require.Negative(t, CompareValues(String("z"), Ref(1)))
}

func TestBoundSentinelsBracketEverything(t *testing.T) {
	vals := []Value{Bool(false), Int(-1 << 60), Float(1e300), String("zzz"), Ref(1 << 50), Time(time.Now())}
	for _, v := range vals {
		require.Negative(t, CompareValues(MinValue(), v))
		require.Positive(t, CompareValues(MaxValue(), v))
	}
}

func TestBoundLowerUpper(t *testing.T) {
	pred := PredicateID(12)
	obj := Int(7)
	bound := Bound{Predicate: &pred, Object: &obj}

	lower, upper := bound.Lower(), bound.Upper()
	require.Equal(t, pred, lower.Predicate)
	require.Equal(t, pred, upper.Predicate)

	inside := &Flake{Subject: 3, Predicate: 12, Object: Int(7), T: 4}
	outside := &Flake{Subject: 3, Predicate: 13, Object: Int(7), T: 4}

	require.LessOrEqual(t, Compare(OrderPOST, lower, inside), 0)
	require.GreaterOrEqual(t, Compare(OrderPOST, upper, inside), 0)
	require.Positive(t, Compare(OrderPOST, outside, upper))
}

func TestValueNative(t *testing.T) {
	now := time.Unix(0, 1712345678900).UTC()
	require.Equal(t, "x", String("x").Native())
	require.Equal(t, int64(4), Int(4).Native())
	require.Equal(t, 1.5, Float(1.5).Native())
	require.Equal(t, true, Bool(true).Native())
	require.Equal(t, int64(9), Ref(9).Native())
	require.Equal(t, now, Time(now).Native())
}
