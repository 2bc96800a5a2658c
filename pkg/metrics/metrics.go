// Package metrics registers the Prometheus instruments the store's
// operations report against. Collectors are package-level so every caller
// in the process shares one registration regardless of how many Store
// instances it opens.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels the result of one store operation.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"
	OutcomeError Outcome = "error"
)

var (
	opsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "branchgraph_store_ops_total",
		Help: "Total versioned-store operations, by operation and outcome.",
	}, []string{"op", "outcome"})

	opDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "branchgraph_store_op_duration_seconds",
		Help:    "Latency of versioned-store operations, by operation.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(opsTotal, opDuration)
}

// Observe records one completed operation's outcome and latency.
func Observe(op string, start time.Time, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	opsTotal.WithLabelValues(op, string(outcome)).Inc()
	opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Track wraps a single store call, recording its outcome and latency. Call
// at the top of the operation and pass the final error when it returns:
//
//	done := metrics.Track("node_val_set")
//	defer func() { done(err) }()
func Track(op string) func(err error) {
	start := time.Now()
	return func(err error) {
		Observe(op, start, err)
	}
}
