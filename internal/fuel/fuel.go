// Package fuel implements the per-query work budget. Each pipeline stage
// owns a private atomic counter; the tracker sums all counters on demand,
// so many stages can burn fuel without contending on a single counter.
package fuel

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Tracker is the shared fuel state of one query. A limit of 0 means
// unlimited. Counters are appended for the lifetime of the query and never
// removed.
type Tracker struct {
	limit int64

	mu       sync.Mutex
	counters []*Counter
}

// Counter is one stage's private share of the budget.
type Counter struct {
	n atomic.Int64
}

// Add records n units of work against this counter.
func (c *Counter) Add(n int64) {
	c.n.Add(n)
}

func NewTracker(limit int64) *Tracker {
	return &Tracker{limit: limit}
}

// Limit returns the configured budget, 0 when unlimited.
func (t *Tracker) Limit() int64 {
	return t.limit
}

// Counter registers and returns a new per-stage counter.
func (t *Tracker) Counter() *Counter {
	c := &Counter{}
	t.mu.Lock()
	t.counters = append(t.counters, c)
	t.mu.Unlock()
	return c
}

// Tally sums every registered counter. The result is a consistent snapshot
// only once all stages have quiesced; mid-flight it is a lower bound on
// eventual consumption, which is all cooperative enforcement needs.
func (t *Tracker) Tally() int64 {
	t.mu.Lock()
	counters := t.counters
	t.mu.Unlock()

	var total int64
	for _, c := range counters {
		total += c.n.Load()
	}
	return total
}

// Consume burns n units on the stage counter c and then checks the global
// tally. It returns an ExhaustedError on the increment that pushes the
// tally past a positive limit. Enforcement is cooperative: the caller is
// expected to surface the error to the orchestrator, which tears the
// pipeline down.
func (t *Tracker) Consume(c *Counter, n int64) error {
	c.Add(n)
	if t.limit <= 0 {
		return nil
	}
	if used := t.Tally(); used > t.limit {
		return &ExhaustedError{Used: used, Limit: t.limit}
	}
	return nil
}

// ExhaustedError reports that a query ran out of fuel.
type ExhaustedError struct {
	Used  int64
	Limit int64
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("fuel limit exceeded: used %d of %d", e.Used, e.Limit)
}
