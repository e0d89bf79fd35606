package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chamber_transitions_total",
		Help: "Lifecycle steps by operation and outcome",
	}, []string{"op", "status"})

	ExternalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chamber_external_calls_total",
		Help: "External program calls staged into committed units",
	}, []string{"call", "status"})

	UnitLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chamber_unit_latency_seconds",
		Help:    "Time from unit begin to commit or abort",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chamber_http_latency_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chamber_rejections_total",
		Help: "Lifecycle steps rejected before any external call",
	}, []string{"reason"})
)
