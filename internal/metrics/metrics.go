package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iotdash_store_queries_total",
			Help: "Total time-series store queries",
		},
		[]string{"source", "measurement", "status"},
	)

	QueryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "iotdash_store_query_latency_seconds",
			Help:    "Time-series store query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "measurement"},
	)

	ReadingsReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iotdash_readings_returned_total",
			Help: "Total long-format readings returned by the store",
		},
		[]string{"source", "measurement"},
	)

	NonNumericValues = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iotdash_non_numeric_values_total",
			Help: "Readings skipped because their value was not numeric",
		},
		[]string{"measurement"},
	)

	SensorFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iotdash_sensor_fetches_total",
			Help: "Sensor fetches by outcome (ok, empty, error)",
		},
		[]string{"sensor", "outcome"},
	)

	ChartsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iotdash_charts_rendered_total",
			Help: "Total PNG charts rendered",
		},
		[]string{"sensor"},
	)
)
