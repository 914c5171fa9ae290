package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "strata",
		Name:      "engine_queries_total",
		Help:      "Number of queries executed, by outcome",
	}, []string{"status"})

	queryDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "strata",
		Name:      "engine_query_duration_ms",
		Help:      "End-to-end query execution time",
		Buckets:   []float64{1, 3, 5, 10, 25, 50, 100, 1000, 5000},
	})

	fuelConsumed = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "strata",
		Name:      "engine_query_fuel_consumed",
		Help:      "Fuel units consumed per query",
		Buckets:   []float64{10, 100, 1000, 10000, 100000, 1000000},
	})
)
