// Package storage defines the collaborator interfaces the query engine
// consumes: sorted range scans over immutable flakes at a fixed transaction
// id, class id-range resolution, and IRI resolution. Implementations must be
// safe for concurrent readers; the engine treats a store as read-only for
// the duration of a query.
package storage

import (
	"context"
	"errors"

	"github.com/stratadb/strata/pkg/flake"
)

// ErrIteratorDone is returned by Iterator.Next when iteration is exhausted
// or the context is cancelled.
var ErrIteratorDone = errors.New("iterator done")

// ErrNotFound is returned by lookups whose key does not exist.
var ErrNotFound = errors.New("not found")

// Iterator is a lazy, finite stream. It is closed by calling Stop or by
// calling Next until it returns ErrIteratorDone.
type Iterator[T any] interface {
	// Next returns the next available item. If the context is cancelled or
	// times out it returns ErrIteratorDone.
	Next(ctx context.Context) (T, error)
	// Stop terminates iteration over the underlying source.
	Stop()
}

// FactIterator streams flakes in the order of the scan that produced it.
type FactIterator = Iterator[*flake.Flake]

// FactStore is a sorted range-scan primitive over immutable flakes. Every
// read runs "as of" a fixed transaction id t: scans return only flakes
// asserted at or before t and not retracted by t.
type FactStore interface {
	// Scan streams the flakes between lower and upper (inclusive, compared
	// in the given sort order) that are valid at t.
	Scan(ctx context.Context, order flake.SortOrder, lower, upper *flake.Flake, t int64) (FactIterator, error)

	// PointLookup returns the facts valid at t whose subject, predicate,
	// and object all equal the key's.
	PointLookup(ctx context.Context, order flake.SortOrder, key *flake.Flake, t int64) ([]*flake.Flake, error)

	// SubjectFacts returns the complete fact set of one subject at t.
	SubjectFacts(ctx context.Context, subject flake.SubjectID, t int64) ([]*flake.Flake, error)
}

// ClassRangeResolver maps a class reference to the contiguous subject-id
// block owned by that class.
type ClassRangeResolver interface {
	ClassRange(ctx context.Context, class flake.SubjectID) (min, max flake.SubjectID, err error)
}

// IRIResolver maps external identifiers to subject ids. A missing IRI is
// not an error: ok is false and err is nil.
type IRIResolver interface {
	ResolveIRI(ctx context.Context, iri string) (id flake.SubjectID, ok bool, err error)
}

// Schema exposes the predicate dictionary of a store. Version changes
// whenever the dictionary changes, which invalidates cached parsed selects.
type Schema interface {
	PredicateID(name string) (flake.PredicateID, bool)
	PredicateName(id flake.PredicateID) string
	SchemaVersion() uint64
}

// Datastore is the full collaborator surface the engine executes against.
type Datastore interface {
	FactStore
	ClassRangeResolver
	IRIResolver
	Schema
}
