package storage

import (
	"context"
)

type staticIterator[T any] struct {
	items []T
}

func (s *staticIterator[T]) Next(ctx context.Context) (T, error) {
	var val T
	select {
	case <-ctx.Done():
		return val, ErrIteratorDone
	default:
		if len(s.items) == 0 {
			return val, ErrIteratorDone
		}

		next, rest := s.items[0], s.items[1:]
		s.items = rest

		return next, nil
	}
}

func (s *staticIterator[T]) Stop() {}

// NewStaticIterator returns an Iterator that yields the provided slice in
// order.
func NewStaticIterator[T any](items []T) Iterator[T] {
	return &staticIterator[T]{items: items}
}

type emptyIterator[T any] struct{}

func (emptyIterator[T]) Next(ctx context.Context) (T, error) {
	var val T
	return val, ErrIteratorDone
}

func (emptyIterator[T]) Stop() {}

// NewEmptyIterator returns an Iterator that is immediately done.
func NewEmptyIterator[T any]() Iterator[T] {
	return emptyIterator[T]{}
}

// FilterFunc reports whether an item should be yielded by a filtered
// iterator. An error aborts iteration.
type FilterFunc[T any] func(T) (bool, error)

type filteredIterator[T any] struct {
	iter   Iterator[T]
	filter FilterFunc[T]
}

// Next returns the next item in the underlying iterator that passes the
// filter function this iterator was constructed with.
func (f *filteredIterator[T]) Next(ctx context.Context) (T, error) {
	for {
		item, err := f.iter.Next(ctx)
		if err != nil {
			var val T
			return val, err
		}

		ok, err := f.filter(item)
		if err != nil {
			var val T
			return val, err
		}
		if ok {
			return item, nil
		}
	}
}

func (f *filteredIterator[T]) Stop() {
	f.iter.Stop()
}

// NewFilteredIterator returns an iterator that yields only the items of
// iter for which filter returns true.
func NewFilteredIterator[T any](iter Iterator[T], filter FilterFunc[T]) Iterator[T] {
	return &filteredIterator[T]{iter: iter, filter: filter}
}

// Collect drains an iterator into a slice. The iterator is stopped before
// returning.
func Collect[T any](ctx context.Context, iter Iterator[T]) ([]T, error) {
	defer iter.Stop()

	var out []T
	for {
		item, err := iter.Next(ctx)
		if err != nil {
			if err == ErrIteratorDone {
				return out, nil
			}
			return nil, err
		}
		out = append(out, item)
	}
}
