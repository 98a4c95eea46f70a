package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	quotesIngested *prometheus.CounterVec
	ingestRejected *prometheus.CounterVec
	signalEvents   *prometheus.CounterVec
	ordersRouted   *prometheus.CounterVec
	guardBlocks    *prometheus.CounterVec
	breakerActive  *prometheus.GaugeVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		quotesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxbridge_quotes_ingested_total",
				Help: "Quotes accepted into the market-data cache",
			},
			[]string{"broker", "symbol"},
		),
		ingestRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxbridge_ingest_rejected_total",
				Help: "Ingest records rejected by validation or freshness checks",
			},
			[]string{"kind"},
		),
		signalEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxbridge_signal_events_total",
				Help: "Signal pipeline events by type",
			},
			[]string{"type", "broker"},
		),
		ordersRouted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxbridge_orders_routed_total",
				Help: "Orders routed to broker connectors by outcome",
			},
			[]string{"broker", "outcome"},
		),
		guardBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxbridge_guard_blocks_total",
				Help: "Trading pauses or blocks by guard",
			},
			[]string{"guard"},
		),
		breakerActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fxbridge_breaker_active",
				Help: "Circuit breaker state per broker (1 tripped, 0 closed)",
			},
			[]string{"broker"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxbridge_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fxbridge_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordQuoteIngested(broker, symbol string) {
	r.quotesIngested.WithLabelValues(broker, symbol).Inc()
}

func (r *Recorder) RecordIngestRejected(kind string) {
	r.ingestRejected.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordSignalEvent(eventType, broker string) {
	r.signalEvents.WithLabelValues(eventType, broker).Inc()
}

func (r *Recorder) RecordOrderRouted(broker, outcome string) {
	r.ordersRouted.WithLabelValues(broker, outcome).Inc()
}

func (r *Recorder) RecordGuardBlock(guard string) {
	r.guardBlocks.WithLabelValues(guard).Inc()
}

func (r *Recorder) RecordBreakerState(broker string, active bool) {
	v := 0.0
	if active {
		v = 1.0
	}
	r.breakerActive.WithLabelValues(broker).Set(v)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
