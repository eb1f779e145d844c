// Package metrics holds the Prometheus collectors for document and RPC traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// DocumentOps counts store round trips made by entity managers.
	DocumentOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitledger",
		Name:      "document_ops_total",
		Help:      "Document store operations issued by entity managers.",
	}, []string{"kind", "op", "result"})

	// FlushDuration observes the time spent applying and writing a change log.
	FlushDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "splitledger",
		Name:      "flush_duration_seconds",
		Help:      "Time spent flushing an entity manager.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})

	// IgnoredChanges counts queued changes dropped as invalid for their kind.
	IgnoredChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitledger",
		Name:      "ignored_changes_total",
		Help:      "Queued changes ignored because the field or value is not valid for the entity kind.",
	}, []string{"kind", "op", "field"})

	// RPCs counts served RPCs by procedure and connect code.
	RPCs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "splitledger",
		Name:      "rpc_requests_total",
		Help:      "RPCs served, by procedure and result code.",
	}, []string{"procedure", "code"})
)

// ObserveOp records a store operation outcome.
func ObserveOp(kind, op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	DocumentOps.WithLabelValues(kind, op, result).Inc()
}
