package crawl

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/stratadb/strata/internal/concurrency"
	"github.com/stratadb/strata/internal/format"
	"github.com/stratadb/strata/internal/fuel"
	"github.com/stratadb/strata/internal/planner"
	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/logger"
	"github.com/stratadb/strata/pkg/policy"
	"github.com/stratadb/strata/pkg/query"
	"github.com/stratadb/strata/pkg/storage"
)

// DefaultParallelism bounds how many subjects are being pulled, filtered,
// and formatted at once.
const DefaultParallelism = 3

// Pipeline wires candidate discovery, flake pulling, and formatting into a
// bounded-concurrency execution that either produces the full result
// collection or propagates the first error.
type Pipeline struct {
	Datastore   storage.Datastore
	Policy      *policy.Policy
	Logger      logger.Logger
	Tracker     *fuel.Tracker
	Parallelism int
}

// Item is one collected result. The sort key is captured during the pull
// so the finishing function can order without re-reading the store.
type Item struct {
	Subject flake.SubjectID
	Node    format.Node
	SortKey *flake.Value
}

// Run executes the plan. For the generic crawl the output order is not
// deterministic once concurrency exceeds one; callers needing a stable
// order request order-by, which the finishing function applies to the
// collected set. Class and direct-id plans preserve index order: their
// candidates are consumed single-threaded relative to discovery.
func (p *Pipeline) Run(ctx context.Context, plan *planner.Plan) ([]Item, error) {
	parallelism := p.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	stream, err := NewCandidateStream(ctx, p.Datastore, plan, p.Tracker)
	if err != nil {
		return nil, err
	}

	r := &run{
		pipeline: p,
		plan:     plan,
		stream:   stream,
		puller:   NewPuller(p.Datastore, p.Policy, plan.Filters, plan.T, p.Tracker),

		parallelism: parallelism,
		results:     make(chan Item, parallelism),
		errs:        make(chan error, 1),
		resolved:    make(chan struct{}),

		formatCounter: p.Tracker.Counter(),
		refCounter:    p.Tracker.Counter(),
	}
	r.formatter = format.NewFormatter(p.Datastore, r.resolveRef)

	var collected []Item
	wg := concurrency.Drain(r.results, func(it Item) {
		collected = append(collected, it)
	})

	go r.produce(ctx)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-r.errs:
		return nil, err
	case <-r.resolved:
		wg.Wait()
		return collected, nil
	}
}

type run struct {
	pipeline  *Pipeline
	plan      *planner.Plan
	stream    CandidateIterator
	puller    *Puller
	formatter *format.Formatter

	parallelism int
	results     chan Item
	errs        chan error
	resolved    chan struct{}

	formatCounter *fuel.Counter
	refCounter    *fuel.Counter

	accepted atomic.Int64
}

// produce drives candidate discovery single-threaded and fans each
// candidate out to a bounded worker group. On any stage error the group
// context cancels the remaining workers; the error is surfaced exactly once
// on the error channel and the result channel is closed either way so the
// collector always terminates.
func (r *run) produce(ctx context.Context) {
	defer r.stream.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool := concurrency.NewPool(ctx, r.parallelism)

	sel := r.plan.Select
	ordered := sel.OrderBy != nil && sel.OrderBy.HasPredicate

	// class and direct-id discovery already runs in index order; inline
	// consumption keeps it that way. Only the generic crawl fans out.
	sequential := r.plan.First.Shape != query.ShapeTuple

	// without ordering the result order is already final, so offset and
	// limit apply before formatting and discovery can stop early
	counting := !ordered && (sel.Limit > 0 || sel.Offset > 0)
	var stopAt int64
	if counting && sel.Limit > 0 {
		stopAt = int64(sel.Offset + sel.Limit)
	}

	var fatal error
	for {
		if ctx.Err() != nil {
			break
		}
		if stopAt > 0 && r.accepted.Load() >= stopAt {
			break
		}

		cand, err := r.stream.Next(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrIteratorDone) {
				break
			}
			fatal = err
			break
		}

		if sequential {
			if err := r.process(ctx, cand, ordered, counting, stopAt); err != nil {
				fatal = err
				break
			}
			continue
		}

		pool.Go(func(taskCtx context.Context) error {
			err := r.process(taskCtx, cand, ordered, counting, stopAt)
			if err != nil {
				// stop discovery as well; the pool only cancels its own
				// descendants
				cancel()
			}
			return err
		})
	}

	if err := pool.Wait(); err != nil && fatal == nil {
		fatal = err
	}
	close(r.results)

	if fatal != nil {
		r.errs <- fatal
		return
	}
	close(r.resolved)
}

func (r *run) process(ctx context.Context, cand Candidate, ordered, counting bool, stopAt int64) error {
	facts, ok, err := r.puller.Pull(ctx, cand)
	if err != nil || !ok {
		return err
	}

	var sortKey *flake.Value
	if ordered {
		pred := r.plan.Select.OrderBy.Predicate
		for _, f := range facts {
			if f.Predicate == pred {
				v := f.Object
				sortKey = &v
				break
			}
		}
	}

	if counting {
		idx := r.accepted.Add(1)
		if idx <= int64(r.plan.Select.Offset) {
			return nil
		}
		if stopAt > 0 && idx > stopAt {
			return nil
		}
	}

	node, ok, err := r.formatter.Format(ctx, cand.Subject, facts, r.plan.Select)
	if err != nil || !ok {
		return err
	}
	if err := r.pipeline.Tracker.Consume(r.formatCounter, 1); err != nil {
		return err
	}

	concurrency.TrySendThroughChannel(ctx, Item{
		Subject: cand.Subject,
		Node:    node,
		SortKey: sortKey,
	}, r.results)
	return nil
}

// resolveRef feeds the formatter's nested-reference expansion: the child's
// facts pass through the permission filter but not the filter map, which
// constrains top-level subjects only.
func (r *run) resolveRef(ctx context.Context, subject flake.SubjectID) ([]*flake.Flake, bool, error) {
	facts, err := r.pipeline.Datastore.SubjectFacts(ctx, subject, r.plan.T)
	if err != nil {
		return nil, false, err
	}
	if len(facts) == 0 {
		return nil, false, nil
	}
	if err := r.pipeline.Tracker.Consume(r.refCounter, int64(len(facts))); err != nil {
		return nil, false, err
	}

	facts, err = r.puller.visible(ctx, facts)
	if err != nil {
		return nil, false, err
	}
	if len(facts) == 0 {
		return nil, false, nil
	}
	return facts, true, nil
}
