// Package flake defines the immutable fact record that every index order,
// scan, and query in strata operates on, together with the comparators that
// establish the total order of each index.
package flake

// ClassShift partitions the subject id space: the bits above ClassShift carry
// the class id, the bits below it the ordinal within the class. Classes
// therefore own contiguous subject-id blocks, which is what allows a class
// scan to be expressed as a plain subject range.
const ClassShift = 40

// SubjectID identifies a subject. Subject ids are allocated per class.
type SubjectID int64

// PredicateID identifies a predicate (attribute) in the schema.
type PredicateID int64

// ClassID identifies a class (collection) of subjects.
type ClassID int64

// NewSubjectID builds the subject id for the nth subject of a class.
func NewSubjectID(class ClassID, n int64) SubjectID {
	return SubjectID(int64(class)<<ClassShift | n)
}

// Class returns the class that owns this subject id.
func (s SubjectID) Class() ClassID {
	return ClassID(s >> ClassShift)
}

// Op records whether a flake asserts or retracts its fact.
type Op uint8

const (
	OpAssert Op = iota
	OpRetract
)

func (o Op) String() string {
	if o == OpRetract {
		return "retract"
	}
	return "assert"
}

// Flake is an immutable fact: subject, predicate, object value (which carries
// its own datatype), the transaction id at which the fact became true or
// false, and the assert/retract op. Flakes are never mutated; a logical
// change is a new flake at a new T.
type Flake struct {
	Subject   SubjectID
	Predicate PredicateID
	Object    Value
	T         int64
	Op        Op
}

// SortOrder names one of the sort orders maintained over the same flake set.
// Range scans pick whichever order has the query's bound components leading.
type SortOrder uint8

const (
	// OrderSPOT sorts by subject, predicate, object, t.
	OrderSPOT SortOrder = iota
	// OrderPSOT sorts by predicate, subject, object, t.
	OrderPSOT
	// OrderPOST sorts by predicate, object, subject, t.
	OrderPOST
)

func (o SortOrder) String() string {
	switch o {
	case OrderPSOT:
		return "psot"
	case OrderPOST:
		return "post"
	default:
		return "spot"
	}
}

// Compare establishes the total order of flakes within the given sort order.
// The same logical flake has a stable position in every order because every
// order compares all of subject, predicate, object, and t, differing only in
// which components lead.
func Compare(order SortOrder, a, b *Flake) int {
	switch order {
	case OrderPSOT:
		if c := cmpInt64(int64(a.Predicate), int64(b.Predicate)); c != 0 {
			return c
		}
		if c := cmpInt64(int64(a.Subject), int64(b.Subject)); c != 0 {
			return c
		}
		if c := CompareValues(a.Object, b.Object); c != 0 {
			return c
		}
	case OrderPOST:
		if c := cmpInt64(int64(a.Predicate), int64(b.Predicate)); c != 0 {
			return c
		}
		if c := CompareValues(a.Object, b.Object); c != 0 {
			return c
		}
		if c := cmpInt64(int64(a.Subject), int64(b.Subject)); c != 0 {
			return c
		}
	default:
		if c := cmpInt64(int64(a.Subject), int64(b.Subject)); c != 0 {
			return c
		}
		if c := cmpInt64(int64(a.Predicate), int64(b.Predicate)); c != 0 {
			return c
		}
		if c := CompareValues(a.Object, b.Object); c != 0 {
			return c
		}
	}
	return cmpInt64(a.T, b.T)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
