// Package engine is the public surface of the analytical query executor.
// It rewrites a parsed query into a subject-crawl plan, runs the
// fuel-bounded, permission-aware pipeline against the datastore, and
// finishes the collected results into the caller's requested shape.
package engine

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/stratadb/strata/internal/crawl"
	"github.com/stratadb/strata/internal/errors"
	"github.com/stratadb/strata/internal/fuel"
	"github.com/stratadb/strata/internal/planner"
	"github.com/stratadb/strata/pkg/logger"
	"github.com/stratadb/strata/pkg/policy"
	"github.com/stratadb/strata/pkg/query"
	"github.com/stratadb/strata/pkg/storage"
)

var tracer = otel.Tracer("strata/pkg/engine")

const defaultSelectCacheSize = 1024

// Engine executes analytical queries against one datastore. It is safe for
// concurrent use; per-query state lives in the request.
type Engine struct {
	datastore   storage.Datastore
	logger      logger.Logger
	selects     *query.SelectCache
	parallelism int
}

type Option func(*Engine)

func WithLogger(l logger.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithParallelism bounds how many subjects one query processes at once.
func WithParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = n }
}

func New(ds storage.Datastore, opts ...Option) (*Engine, error) {
	selects, err := query.NewSelectCache(defaultSelectCacheSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		datastore: ds,
		logger:    logger.NewNoopLogger(),
		selects:   selects,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Close releases the select-spec cache.
func (e *Engine) Close() {
	e.selects.Close()
}

// ParseSelect compiles a raw select expression through the engine's cache.
func (e *Engine) ParseSelect(raw string, opts query.Options) (*query.SelectSpec, error) {
	spec, err := e.selects.Parse(e.datastore, raw, opts)
	if err != nil {
		return nil, errors.With(err, ErrInvalidQuery)
	}
	return spec, nil
}

// Request is one query invocation.
type Request struct {
	Query  *query.Query
	Select *query.SelectSpec

	// FuelLimit bounds the work units the query may consume; 0 is
	// unlimited.
	FuelLimit int64

	// Policy filters fact visibility. Nil means unrestricted access.
	Policy *policy.Policy
}

// Result is the finished collection plus execution metadata.
type Result struct {
	// Data is the finished result: a slice of formatted nodes, a single
	// node under select-one, or nil for an empty select-one.
	Data any

	// Fuel is the total work consumed by the query.
	Fuel int64

	// QueryID correlates log lines and traces of one execution.
	QueryID string
}

// Execute runs the query. It returns either the full result collection or
// a single error carrying a machine-checkable kind; partial results are
// never returned.
func (e *Engine) Execute(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "engine.Execute")
	defer span.End()

	start := time.Now()
	qid := ulid.Make().String()
	log := e.logger.With(zap.String("query_id", qid))
	if sc := trace.SpanContextFromContext(ctx); sc.IsSampled() {
		log = log.With(zap.String("trace_id", sc.TraceID().String()))
	}

	if req.Query == nil || req.Select == nil {
		queriesTotal.WithLabelValues("invalid").Inc()
		return nil, errors.With(stderrors.New("request needs a query and a select specification"), ErrInvalidQuery)
	}

	pol := req.Policy
	if pol == nil {
		pol = policy.Root()
	}

	plan, ok, err := planner.Rewrite(req.Query, req.Select)
	if err != nil {
		queriesTotal.WithLabelValues("invalid").Inc()
		return nil, errors.With(err, ErrInvalidQuery)
	}
	if !ok {
		queriesTotal.WithLabelValues("fallback").Inc()
		return nil, ErrNoStrategy
	}

	tracker := fuel.NewTracker(req.FuelLimit)
	pipeline := &crawl.Pipeline{
		Datastore:   e.datastore,
		Policy:      pol,
		Logger:      log,
		Tracker:     tracker,
		Parallelism: e.parallelism,
	}

	items, err := pipeline.Run(ctx, plan)
	if err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		log.Warn("query failed", zap.Error(err), zap.Int64("fuel_used", tracker.Tally()))
		return nil, classify(err)
	}

	finish := crawl.NewFinisher(plan.Select)
	data := finish(items)

	used := tracker.Tally()
	queriesTotal.WithLabelValues("ok").Inc()
	queryDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	fuelConsumed.Observe(float64(used))
	log.Debug("query finished",
		zap.Int("results", len(items)),
		zap.Int64("fuel_used", used),
		zap.Duration("took", time.Since(start)))

	return &Result{Data: data, Fuel: used, QueryID: qid}, nil
}

// classify attaches the machine-checkable kind to a pipeline error.
func classify(err error) error {
	var exhausted *fuel.ExhaustedError
	if stderrors.As(err, &exhausted) {
		return errors.With(err, ErrFuelExhausted)
	}
	var invalid *planner.InvalidQueryError
	if stderrors.As(err, &invalid) {
		return errors.With(err, ErrInvalidQuery)
	}
	return errors.With(err, ErrExecution)
}
