package usecase

import (
	"context"
	"encoding/json"
	"time"

	"FxBridge/internal/domain/models"
	drepo "FxBridge/internal/domain/repository"
	"FxBridge/internal/marketdata"
)

// KafkaQuotesHandler consumes the quotes topic and replays each quote into
// the market-data cache. It lets a second bridge instance warm its cache from
// the stream a peer publishes.
type KafkaQuotesHandler struct {
	topic    string
	store    *marketdata.Store
	notifier SymbolNotifier
	metrics  drepo.Metrics
}

func NewKafkaQuotesHandler(topic string, store *marketdata.Store, notifier SymbolNotifier, metrics drepo.Metrics) *KafkaQuotesHandler {
	return &KafkaQuotesHandler{topic: topic, store: store, notifier: notifier, metrics: metrics}
}

func (h *KafkaQuotesHandler) Topic() string { return h.topic }

// Handle ingests one quote message. Cache rejections are not errors; the
// message is already consumed and a stale replayed tick is expected.
func (h *KafkaQuotesHandler) Handle(ctx context.Context, b []byte) error {
	var q models.Quote
	if err := json.Unmarshal(b, &q); err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("consumer_unmarshal")
		}
		return err
	}
	if h.metrics != nil && !q.Timestamp.IsZero() {
		h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(q.Timestamp).Seconds())
	}
	q.Source = "kafka"
	res := h.store.RecordQuote(&q)
	if !res.Success {
		if h.metrics != nil {
			h.metrics.RecordIngestRejected("kafka_quote")
		}
		return nil
	}
	if h.notifier != nil {
		h.notifier.IngestSymbols(q.Broker, q.Symbol)
	}
	return nil
}
