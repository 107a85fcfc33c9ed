package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AdmissionDecisions counts admission outcomes by result code. Admitted
// requests are labeled "ADMITTED"; rejections carry their rejection code.
var AdmissionDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stencil_admission_decisions_total",
		Help: "Total admission pipeline decisions by outcome code",
	},
	[]string{"code"},
)

// StoreErrors counts failed round-trips to the counter store
var StoreErrors = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "stencil_store_errors_total",
		Help: "Total key-value store calls that failed",
	},
)

// GenerationLatency records latency distribution for upstream image generation
var GenerationLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "stencil_generation_latency_seconds",
		Help:    "Latency in seconds of upstream image generation calls",
		Buckets: prometheus.DefBuckets,
	},
)

// GenerationFailures counts upstream generation failures by kind
var GenerationFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stencil_generation_failures_total",
		Help: "Total upstream image generation failures",
	},
	[]string{"kind"},
)

func init() {
	prometheus.MustRegister(AdmissionDecisions, StoreErrors)
	prometheus.MustRegister(GenerationLatency, GenerationFailures)
}
