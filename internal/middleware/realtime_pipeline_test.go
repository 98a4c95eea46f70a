package middleware

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"FxBridge/internal/domain/models"
)

type captureSink struct {
	mu     sync.Mutex
	got    []*models.Quote
	failN  int // fail the first N calls
	called int
}

func (s *captureSink) Process(_ context.Context, q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.called++
	if s.called <= s.failN {
		return errors.New("downstream unavailable")
	}
	s.got = append(s.got, q)
	return nil
}

func (s *captureSink) quotes() []*models.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Quote, len(s.got))
	copy(out, s.got)
	return out
}

func tick(symbol string, bid float64) *models.Quote {
	return &models.Quote{Broker: "mt5", Symbol: symbol, Bid: bid, Ask: bid + 0.0002}
}

func TestPipelineRejectsInvalidQuotes(t *testing.T) {
	sink := &captureSink{}
	p := NewRealtimePipeline(sink, nil)

	tests := []struct {
		name string
		q    *models.Quote
	}{
		{"nil quote", nil},
		{"missing broker", &models.Quote{Symbol: "EURUSD", Bid: 1.1}},
		{"missing symbol", &models.Quote{Broker: "mt5", Bid: 1.1}},
		{"no price", &models.Quote{Broker: "mt5", Symbol: "EURUSD"}},
		{"nan price", &models.Quote{Broker: "mt5", Symbol: "EURUSD", Bid: math.NaN()}},
		{"inf price", &models.Quote{Broker: "mt5", Symbol: "EURUSD", Ask: math.Inf(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := p.Process(context.Background(), tt.q); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
	if len(sink.quotes()) != 0 {
		t.Fatal("invalid quotes must never reach the sink")
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	sink := &captureSink{}
	p := NewRealtimePipeline(sink, nil, WithMaxRPS(1))

	// Two ticks of the same symbol inside one second: the second is dropped.
	if err := p.Process(context.Background(), tick("EURUSD", 1.1000)); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	if err := p.Process(context.Background(), tick("EURUSD", 1.1001)); err != nil {
		t.Fatalf("throttled tick must drop silently, got %v", err)
	}
	// A different symbol throttles independently.
	if err := p.Process(context.Background(), tick("GBPUSD", 1.2500)); err != nil {
		t.Fatalf("other symbol: %v", err)
	}

	got := sink.quotes()
	if len(got) != 2 {
		t.Fatalf("forwarded %d quotes, want 2", len(got))
	}
	if got[0].Symbol != "EURUSD" || got[1].Symbol != "GBPUSD" {
		t.Fatalf("unexpected forwarded symbols: %s, %s", got[0].Symbol, got[1].Symbol)
	}
}

func TestPipelineTransformApplied(t *testing.T) {
	sink := &captureSink{}
	p := NewRealtimePipeline(sink, nil, WithTransform(func(q *models.Quote) *models.Quote {
		q.Symbol = strings.TrimSuffix(q.Symbol, ".PRO")
		return q
	}))

	if err := p.Process(context.Background(), tick("EURUSD.PRO", 1.1)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := sink.quotes()
	if len(got) != 1 || got[0].Symbol != "EURUSD" {
		t.Fatalf("transform not applied: %+v", got)
	}
}

func TestPipelineBuffersAndFlushesOnDownstreamError(t *testing.T) {
	sink := &captureSink{failN: 1}
	p := NewRealtimePipeline(sink, nil, WithBufferSize(4))

	ctx := context.Background()
	if err := p.Process(ctx, tick("EURUSD", 1.1)); err == nil {
		t.Fatal("downstream failure must surface to the caller")
	}
	if len(sink.quotes()) != 0 {
		t.Fatal("failed quote must not be recorded as delivered")
	}

	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.quotes()) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("buffered quote was not flushed, delivered=%d", len(sink.quotes()))
}

func TestPipelineStartIsIdempotent(t *testing.T) {
	p := NewRealtimePipeline(&captureSink{}, nil)
	ctx := context.Background()
	p.Start(ctx)
	p.Start(ctx)
	p.Stop()
	p.Stop()
}
