package crawl

import (
	"context"

	"github.com/stratadb/strata/internal/fuel"
	"github.com/stratadb/strata/internal/planner"
	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/policy"
	"github.com/stratadb/strata/pkg/storage"
)

// Puller is the flake-pulling stage: it completes a candidate's fact set
// and applies the filter map and the permission filter. A dropped subject
// is not an error; it simply produces no output.
type Puller struct {
	store   storage.FactStore
	policy  *policy.Policy
	filters *planner.FilterMap
	t       int64

	tracker *fuel.Tracker
	counter *fuel.Counter
}

func NewPuller(store storage.FactStore, pol *policy.Policy, filters *planner.FilterMap, t int64, tracker *fuel.Tracker) *Puller {
	return &Puller{
		store:   store,
		policy:  pol,
		filters: filters,
		t:       t,
		tracker: tracker,
		counter: tracker.Counter(),
	}
}

// Pull returns the subject's visible fact set, or ok=false when the subject
// is dropped by the filter map or emptied by the permission filter.
func (p *Puller) Pull(ctx context.Context, cand Candidate) ([]*flake.Flake, bool, error) {
	facts := cand.Facts
	if facts == nil {
		var err error
		facts, err = p.store.SubjectFacts(ctx, cand.Subject, p.t)
		if err != nil {
			return nil, false, err
		}
	}
	if len(facts) == 0 {
		return nil, false, nil
	}

	if err := p.tracker.Consume(p.counter, int64(len(facts))); err != nil {
		return nil, false, err
	}

	ok, err := p.satisfies(facts)
	if err != nil || !ok {
		return nil, false, err
	}

	facts, err = p.visible(ctx, facts)
	if err != nil {
		return nil, false, err
	}
	if len(facts) == 0 {
		return nil, false, nil
	}

	return facts, true, nil
}

// satisfies checks the filter map: every required predicate must have at
// least one fact passing all of its registered filter functions. A
// predicate that is present but never passes and a predicate that is
// entirely absent both exclude the subject.
func (p *Puller) satisfies(facts []*flake.Flake) (bool, error) {
	for _, pred := range p.filters.RequiredP {
		matched := false
		for _, f := range facts {
			if f.Predicate != pred {
				continue
			}
			pass := true
			for _, filter := range p.filters.ByPredicate[pred] {
				ok, err := filter(f)
				if err != nil {
					return false, err
				}
				if !ok {
					pass = false
					break
				}
			}
			if pass {
				matched = true
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// visible drops the facts the policy denies. Root policies skip the walk.
func (p *Puller) visible(ctx context.Context, facts []*flake.Flake) ([]*flake.Flake, error) {
	if p.policy.IsRoot() {
		return facts, nil
	}

	out := make([]*flake.Flake, 0, len(facts))
	for _, f := range facts {
		ok, err := p.policy.Visible(ctx, f)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, f)
		}
	}
	return out, nil
}
