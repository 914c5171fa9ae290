// Package crawl implements the subject-crawl execution pipeline: candidate
// discovery from a sorted index, permission- and filter-aware fact pulling,
// result formatting, and the bounded-concurrency orchestration tying the
// stages together.
package crawl

import (
	"context"
	"errors"

	"github.com/stratadb/strata/internal/fuel"
	"github.com/stratadb/strata/internal/planner"
	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/query"
	"github.com/stratadb/strata/pkg/storage"
)

// Candidate is one unit of the candidate stream: a subject id, optionally
// with its fact batch already grouped by the discovery scan.
type Candidate struct {
	Subject flake.SubjectID
	Facts   []*flake.Flake
}

// CandidateIterator streams candidates in index order.
type CandidateIterator = storage.Iterator[Candidate]

// NewCandidateStream builds the candidate stream for the plan's leading
// pattern. The three builders share one output contract, so the rest of
// the pipeline does not care which strategy produced a candidate.
func NewCandidateStream(ctx context.Context, ds storage.Datastore, plan *planner.Plan, tracker *fuel.Tracker) (CandidateIterator, error) {
	switch plan.First.Shape {
	case query.ShapeID:
		return newDirectStream(ctx, ds, plan)
	case query.ShapeClass:
		return newClassStream(ctx, ds, plan, tracker)
	default:
		return newGenericStream(ctx, ds, plan, tracker)
	}
}

// newGenericStream picks the narrowest sort order the leading pattern's
// bound components allow and projects candidate subjects out of the scan.
func newGenericStream(ctx context.Context, ds storage.Datastore, plan *planner.Plan, tracker *fuel.Tracker) (CandidateIterator, error) {
	first := plan.First

	var bound flake.Bound
	order := flake.OrderSPOT

	if pred, ok := first.Predicate.PredicateID(); ok {
		bound.Predicate = &pred
		order = flake.OrderPSOT
		if first.Object.Kind == query.TermValue {
			obj := first.Object.Value
			bound.Object = &obj
			order = flake.OrderPOST
		}
	}

	iter, err := ds.Scan(ctx, order, bound.Lower(), bound.Upper(), plan.T)
	if err != nil {
		return nil, err
	}

	return &subjectStream{
		iter:    iter,
		tracker: tracker,
		counter: tracker.Counter(),
	}, nil
}

// subjectStream projects the subject component of each scanned flake and
// drops adjacent duplicates. Flakes of one subject are contiguous within a
// sort order, so adjacent deduplication is exact.
type subjectStream struct {
	iter    storage.FactIterator
	tracker *fuel.Tracker
	counter *fuel.Counter

	last    flake.SubjectID
	started bool
}

func (s *subjectStream) Next(ctx context.Context) (Candidate, error) {
	for {
		f, err := s.iter.Next(ctx)
		if err != nil {
			return Candidate{}, err
		}
		if s.started && f.Subject == s.last {
			continue
		}
		s.started = true
		s.last = f.Subject

		if err := s.tracker.Consume(s.counter, 1); err != nil {
			return Candidate{}, err
		}
		return Candidate{Subject: f.Subject}, nil
	}
}

func (s *subjectStream) Stop() {
	s.iter.Stop()
}

// newClassStream bounds the scan by the contiguous subject-id block the
// class owns. The scan already returns flakes grouped by subject, so facts
// are partitioned at subject boundaries without a dedup stage.
func newClassStream(ctx context.Context, ds storage.Datastore, plan *planner.Plan, tracker *fuel.Tracker) (CandidateIterator, error) {
	marker, ok, err := resolveRef(ctx, ds, plan.First.Object)
	if err != nil {
		return nil, err
	}
	if !ok {
		return storage.NewEmptyIterator[Candidate](), nil
	}

	min, max, err := ds.ClassRange(ctx, marker)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.NewEmptyIterator[Candidate](), nil
		}
		return nil, err
	}

	lower, upper := flake.SubjectRange(min, max)
	iter, err := ds.Scan(ctx, flake.OrderSPOT, lower, upper, plan.T)
	if err != nil {
		return nil, err
	}

	return &groupedStream{
		iter:    iter,
		tracker: tracker,
		counter: tracker.Counter(),
	}, nil
}

// groupedStream batches contiguous flakes of one subject into a single
// candidate.
type groupedStream struct {
	iter    storage.FactIterator
	tracker *fuel.Tracker
	counter *fuel.Counter

	pending *flake.Flake
	done    bool
}

func (g *groupedStream) Next(ctx context.Context) (Candidate, error) {
	if g.done {
		return Candidate{}, storage.ErrIteratorDone
	}

	var facts []*flake.Flake
	if g.pending != nil {
		facts = append(facts, g.pending)
		g.pending = nil
	}

	for {
		f, err := g.iter.Next(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrIteratorDone) {
				g.done = true
				if len(facts) == 0 {
					return Candidate{}, storage.ErrIteratorDone
				}
				return g.emit(facts)
			}
			return Candidate{}, err
		}

		if len(facts) > 0 && f.Subject != facts[0].Subject {
			g.pending = f
			return g.emit(facts)
		}
		facts = append(facts, f)
	}
}

func (g *groupedStream) emit(facts []*flake.Flake) (Candidate, error) {
	if err := g.tracker.Consume(g.counter, 1); err != nil {
		return Candidate{}, err
	}
	return Candidate{Subject: facts[0].Subject, Facts: facts}, nil
}

func (g *groupedStream) Stop() {
	g.iter.Stop()
}

// newDirectStream degenerates the stream to the single resolved subject, or
// nothing when an IRI does not resolve. An unresolvable IRI is not an
// error: it distinguishes "not found" from a malformed query.
func newDirectStream(ctx context.Context, ds storage.Datastore, plan *planner.Plan) (CandidateIterator, error) {
	id, ok, err := resolveRef(ctx, ds, plan.First.Object)
	if err != nil {
		return nil, err
	}
	if !ok {
		return storage.NewEmptyIterator[Candidate](), nil
	}
	return storage.NewStaticIterator([]Candidate{{Subject: id}}), nil
}

func resolveRef(ctx context.Context, ds storage.Datastore, t query.Term) (flake.SubjectID, bool, error) {
	switch t.Kind {
	case query.TermIRI:
		return ds.ResolveIRI(ctx, t.IRI)
	case query.TermValue:
		if t.Value.Kind == flake.DatatypeRef {
			return t.Value.Ref, true, nil
		}
		if t.Value.Kind == flake.DatatypeInt {
			return flake.SubjectID(t.Value.Int), true, nil
		}
	}
	return 0, false, nil
}
