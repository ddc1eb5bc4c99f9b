// Package prometheus registers the NimbusStore Prometheus collectors.
// Importing the package registers everything with the default registry;
// the metrics HTTP endpoint is served from cmd via promhttp.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway HTTP metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nimbus",
		Subsystem: "gateway",
		Name:      "requests_total",
		Help:      "S3 gateway requests by method and status code.",
	}, []string{"method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nimbus",
		Subsystem: "gateway",
		Name:      "request_duration_seconds",
		Help:      "S3 gateway request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)

// Ordered KV store metrics, recorded by the instrumented store wrapper.
var (
	KVOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nimbus",
		Subsystem: "kv",
		Name:      "ops_total",
		Help:      "KV operations by op and outcome.",
	}, []string{"op", "outcome"})

	KVOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "nimbus",
		Subsystem: "kv",
		Name:      "op_duration_seconds",
		Help:      "KV operation latency.",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
	}, []string{"op"})
)

// Chunk store metrics.
var (
	ChunkOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nimbus",
		Subsystem: "chunkstore",
		Name:      "ops_total",
		Help:      "Chunk store operations by op and outcome.",
	}, []string{"op", "outcome"})

	ChunkBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "nimbus",
		Subsystem: "chunkstore",
		Name:      "bytes_total",
		Help:      "Bytes moved through the chunk store by direction.",
	}, []string{"direction"})
)
