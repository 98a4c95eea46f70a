package usecase

import (
	"context"
	"fmt"
	"time"

	"FxBridge/internal/domain/models"
	drepo "FxBridge/internal/domain/repository"
	"FxBridge/internal/marketdata"
	pkgkafka "FxBridge/pkg/kafka"
)

// SymbolNotifier wakes the signal pipeline after a quote lands in the cache.
type SymbolNotifier interface {
	IngestSymbols(broker string, symbols ...string)
}

// QuoteProcessor is the downstream sink of the realtime pipeline: it records
// quotes in the market-data cache, wakes the signal pipeline, and mirrors
// accepted quotes to Kafka for durable downstream consumers.
type QuoteProcessor struct {
	store    *marketdata.Store
	notifier SymbolNotifier
	producer *pkgkafka.Producer
	topic    string
	metrics  drepo.Metrics
}

func NewQuoteProcessor(store *marketdata.Store, notifier SymbolNotifier, producer *pkgkafka.Producer, topic string, metrics drepo.Metrics) *QuoteProcessor {
	return &QuoteProcessor{
		store:    store,
		notifier: notifier,
		producer: producer,
		topic:    topic,
		metrics:  metrics,
	}
}

// Process records one quote. A cache rejection (stale, disallowed symbol) is
// terminal and returns nil so the pipeline does not buffer-retry it; only a
// Kafka publish failure is reported as a downstream error.
func (p *QuoteProcessor) Process(ctx context.Context, q *models.Quote) error {
	if q == nil {
		return fmt.Errorf("quote is nil")
	}
	start := time.Now()
	res := p.store.RecordQuote(q)
	if !res.Success {
		if p.metrics != nil {
			p.metrics.RecordIngestRejected("ws_quote")
		}
		return nil
	}
	if p.notifier != nil {
		p.notifier.IngestSymbols(q.Broker, q.Symbol)
	}
	if p.producer != nil && p.topic != "" {
		key := []byte(q.Broker + "|" + q.Symbol)
		if err := p.producer.Publish(ctx, p.topic, key, q); err != nil {
			if p.metrics != nil {
				p.metrics.RecordError("quote_publish")
			}
			return fmt.Errorf("publish quote: %w", err)
		}
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("quote_process", time.Since(start).Seconds())
	}
	return nil
}
