package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fxbridge",
			Subsystem: "http",
			Name:      "latency_seconds",
			Help:      "Latency of bridge HTTP endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	HTTPErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fxbridge",
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Errors by bridge HTTP endpoint",
		},
		[]string{"endpoint"},
	)

	HTTPRateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fxbridge",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the ingest rate limiter",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(HTTPLatency, HTTPErrors, HTTPRateLimited)
	})
}
