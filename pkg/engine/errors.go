package engine

import "errors"

var (
	// ErrNoStrategy reports that no specialized crawl strategy applies to
	// the query; the caller owns the fallback to the general evaluator.
	ErrNoStrategy = errors.New("no crawl strategy applies")

	// ErrInvalidQuery is the kind of every query-shape error detected
	// before execution starts.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrFuelExhausted is the kind of a mid-pipeline fuel budget overrun.
	// The underlying fuel.ExhaustedError carries the used/limit counts.
	ErrFuelExhausted = errors.New("query fuel exhausted")

	// ErrExecution is the kind of every failure raised while the pipeline
	// is running: permission rule evaluation, filter functions, formatting.
	ErrExecution = errors.New("query execution failed")
)
