// Package memory provides an in-memory Datastore backed by one red-black
// tree per sort order. It exists for embedding, tests, and the CLI; it does
// not persist anything.
package memory

import (
	"context"
	"math"
	"sync"

	"github.com/emirpasic/gods/trees/redblacktree"
	"go.opentelemetry.io/otel"

	"github.com/stratadb/strata/pkg/flake"
	"github.com/stratadb/strata/pkg/storage"
)

var tracer = otel.Tracer("strata/pkg/storage/memory")

var orders = []flake.SortOrder{flake.OrderSPOT, flake.OrderPSOT, flake.OrderPOST}

// Datastore keeps every flake, asserts and retracts alike, in three sorted
// trees. Scans resolve validity at read time: within one (subject,
// predicate, object) group the latest op at or before t decides whether the
// fact is visible.
type Datastore struct {
	mu    sync.RWMutex
	trees map[flake.SortOrder]*redblacktree.Tree

	preds     map[string]flake.PredicateID
	predNames map[flake.PredicateID]string
	nextPred  flake.PredicateID

	iris    map[string]flake.SubjectID
	classes map[flake.SubjectID]flake.ClassID
	nextSub map[flake.ClassID]int64

	version uint64
	maxT    int64
}

var _ storage.Datastore = (*Datastore)(nil)

func New() *Datastore {
	d := &Datastore{
		trees:     make(map[flake.SortOrder]*redblacktree.Tree, len(orders)),
		preds:     make(map[string]flake.PredicateID),
		predNames: make(map[flake.PredicateID]string),
		nextPred:  1,
		iris:      make(map[string]flake.SubjectID),
		classes:   make(map[flake.SubjectID]flake.ClassID),
		nextSub:   make(map[flake.ClassID]int64),
	}
	for _, order := range orders {
		order := order
		d.trees[order] = redblacktree.NewWith(func(a, b interface{}) int {
			return flake.Compare(order, a.(*flake.Flake), b.(*flake.Flake))
		})
	}
	return d
}

// DefinePredicate registers a predicate name and returns its id. Defining
// the same name twice returns the existing id.
func (d *Datastore) DefinePredicate(name string) flake.PredicateID {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.preds[name]; ok {
		return id
	}
	id := d.nextPred
	d.nextPred++
	d.preds[name] = id
	d.predNames[id] = name
	d.version++
	return id
}

// DefineClass registers a class and returns the subject id standing for the
// class itself. Class marker subjects live in the reserved class 0.
func (d *Datastore) DefineClass(name string) flake.SubjectID {
	d.mu.Lock()
	defer d.mu.Unlock()

	class := flake.ClassID(len(d.classes) + 1)
	marker := flake.NewSubjectID(0, int64(class))
	d.classes[marker] = class
	d.iris[name] = marker
	d.version++
	return marker
}

// NewSubject allocates the next subject id in the class identified by its
// marker subject.
func (d *Datastore) NewSubject(classMarker flake.SubjectID) flake.SubjectID {
	d.mu.Lock()
	defer d.mu.Unlock()

	class := d.classes[classMarker]
	n := d.nextSub[class]
	d.nextSub[class] = n + 1
	return flake.NewSubjectID(class, n)
}

// RegisterIRI binds an external identifier to a subject id.
func (d *Datastore) RegisterIRI(iri string, id flake.SubjectID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.iris[iri] = id
	d.version++
}

// Add inserts a flake into every sort order.
func (d *Datastore) Add(f *flake.Flake) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, tree := range d.trees {
		tree.Put(f, nil)
	}
	if f.T > d.maxT {
		d.maxT = f.T
	}
}

// AddAll inserts a batch of flakes.
func (d *Datastore) AddAll(fs []*flake.Flake) {
	for _, f := range fs {
		d.Add(f)
	}
}

// MaxT returns the highest transaction id seen by the store.
func (d *Datastore) MaxT() int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxT
}

// Scan implements storage.FactStore. The raw tree range is snapshotted
// under the read lock and validity at t is resolved while streaming, so the
// returned iterator never observes later writes.
func (d *Datastore) Scan(ctx context.Context, order flake.SortOrder, lower, upper *flake.Flake, t int64) (storage.FactIterator, error) {
	_, span := tracer.Start(ctx, "memory.Scan")
	defer span.End()

	d.mu.RLock()
	raw := d.rangeLocked(order, lower, upper)
	d.mu.RUnlock()

	return storage.NewStaticIterator(validAt(raw, t)), nil
}

// PointLookup implements storage.FactStore. The key's T and Op are ignored;
// the lookup spans every transaction of the exact (subject, predicate,
// object) triple and resolves validity at t.
func (d *Datastore) PointLookup(ctx context.Context, order flake.SortOrder, key *flake.Flake, t int64) ([]*flake.Flake, error) {
	lower, upper := *key, *key
	lower.T, upper.T = math.MinInt64, math.MaxInt64

	d.mu.RLock()
	raw := d.rangeLocked(order, &lower, &upper)
	d.mu.RUnlock()

	return validAt(raw, t), nil
}

// SubjectFacts implements storage.FactStore.
func (d *Datastore) SubjectFacts(ctx context.Context, subject flake.SubjectID, t int64) ([]*flake.Flake, error) {
	lower, upper := flake.SubjectRange(subject, subject)

	d.mu.RLock()
	raw := d.rangeLocked(flake.OrderSPOT, lower, upper)
	d.mu.RUnlock()

	return validAt(raw, t), nil
}

// ClassRange implements storage.ClassRangeResolver.
func (d *Datastore) ClassRange(ctx context.Context, classMarker flake.SubjectID) (flake.SubjectID, flake.SubjectID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	class, ok := d.classes[classMarker]
	if !ok {
		return 0, 0, storage.ErrNotFound
	}
	min := flake.NewSubjectID(class, 0)
	max := flake.NewSubjectID(class+1, 0) - 1
	return min, max, nil
}

// ResolveIRI implements storage.IRIResolver.
func (d *Datastore) ResolveIRI(ctx context.Context, iri string) (flake.SubjectID, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.iris[iri]
	return id, ok, nil
}

// PredicateID implements storage.Schema.
func (d *Datastore) PredicateID(name string) (flake.PredicateID, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.preds[name]
	return id, ok
}

// PredicateName implements storage.Schema.
func (d *Datastore) PredicateName(id flake.PredicateID) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.predNames[id]
}

// SchemaVersion implements storage.Schema.
func (d *Datastore) SchemaVersion() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// rangeLocked walks one tree from the smallest key >= lower up to the
// largest key <= upper. Callers hold at least the read lock.
func (d *Datastore) rangeLocked(order flake.SortOrder, lower, upper *flake.Flake) []*flake.Flake {
	tree := d.trees[order]

	node, ok := tree.Ceiling(lower)
	if !ok {
		return nil
	}

	var out []*flake.Flake
	it := tree.IteratorAt(node)
	for {
		f := it.Key().(*flake.Flake)
		if flake.Compare(order, f, upper) > 0 {
			break
		}
		out = append(out, f)
		if !it.Next() {
			break
		}
	}
	return out
}

// validAt reduces a raw sorted run of asserts and retracts to the facts
// visible at t. Flakes sharing (subject, predicate, object) are adjacent in
// every sort order, so one forward pass suffices.
func validAt(raw []*flake.Flake, t int64) []*flake.Flake {
	var out []*flake.Flake
	for i := 0; i < len(raw); {
		j := i
		var latest *flake.Flake
		for ; j < len(raw) && sameFact(raw[i], raw[j]); j++ {
			if raw[j].T <= t && (latest == nil || raw[j].T > latest.T) {
				latest = raw[j]
			}
		}
		if latest != nil && latest.Op == flake.OpAssert {
			out = append(out, latest)
		}
		i = j
	}
	return out
}

func sameFact(a, b *flake.Flake) bool {
	return a.Subject == b.Subject &&
		a.Predicate == b.Predicate &&
		flake.CompareValues(a.Object, b.Object) == 0
}
