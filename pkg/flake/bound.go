package flake

import "math"

// Bound describes which components of a scan range are pinned. A nil
// component is unbounded: it widens to the component's minimum in the lower
// key and its maximum in the upper key, which is what turns a partially
// bound pattern into a prefix range within the right sort order.
type Bound struct {
	Subject   *SubjectID
	Predicate *PredicateID
	Object    *Value
}

// Lower materializes the inclusive lower scan key.
func (b Bound) Lower() *Flake {
	f := &Flake{
		Subject:   SubjectID(math.MinInt64),
		Predicate: PredicateID(math.MinInt64),
		Object:    MinValue(),
		T:         math.MinInt64,
	}
	b.apply(f)
	return f
}

// Upper materializes the inclusive upper scan key.
func (b Bound) Upper() *Flake {
	f := &Flake{
		Subject:   SubjectID(math.MaxInt64),
		Predicate: PredicateID(math.MaxInt64),
		Object:    MaxValue(),
		T:         math.MaxInt64,
	}
	b.apply(f)
	return f
}

func (b Bound) apply(f *Flake) {
	if b.Subject != nil {
		f.Subject = *b.Subject
	}
	if b.Predicate != nil {
		f.Predicate = *b.Predicate
	}
	if b.Object != nil {
		f.Object = *b.Object
	}
}

// SubjectRange is a convenience bound covering every flake of the subjects
// in [min, max].
func SubjectRange(min, max SubjectID) (lower, upper *Flake) {
	return Bound{Subject: &min}.Lower(), Bound{Subject: &max}.Upper()
}
