package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"FxBridge/internal/domain/models"
	"FxBridge/internal/marketdata"
	"FxBridge/internal/symbols"
	"FxBridge/internal/usecase"
)

var fixedNow = time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)

type capturePublisher struct {
	mu     sync.Mutex
	events []*models.SignalEvent
}

func (p *capturePublisher) PublishSignalEvent(_ context.Context, ev *models.SignalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) PublishAuditEvent(context.Context, any) error { return nil }
func (p *capturePublisher) Close() error                                { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func newSeededStore(t *testing.T) *marketdata.Store {
	t.Helper()
	store := marketdata.NewStore(marketdata.DefaultConfig(), symbols.New(), nil,
		marketdata.WithClock(func() time.Time { return fixedNow }))

	bars := make([]models.Bar, 0, 30)
	price := 1.1000
	for i := 29; i >= 0; i-- {
		open := price
		price += 0.0008
		bars = append(bars, models.Bar{
			Time:   fixedNow.Add(-time.Duration(i+1) * 15 * time.Minute),
			Open:   open,
			High:   price + 0.0003,
			Low:    open - 0.0002,
			Close:  price,
			Volume: 100,
		})
	}
	if res := store.RecordBars("mt5", "EURUSD", models.TFM15, bars); !res.Success {
		t.Fatalf("bar ingest failed: %s", res.Message)
	}
	res := store.RecordQuote(&models.Quote{
		Broker: "mt5", Symbol: "EURUSD", Bid: price - 0.00005, Ask: price + 0.00005,
		Digits: 5, Point: 0.00001, Timestamp: fixedNow,
	})
	if !res.Success {
		t.Fatalf("quote ingest failed: %s", res.Message)
	}
	return store
}

func newTestRunner(store *marketdata.Store, pub *capturePublisher, cfg Config) *Runner {
	engine := usecase.NewSignalEngine(usecase.EngineConfig{}, store, nil,
		usecase.WithEngineClock(func() time.Time { return fixedNow }))
	return NewRunner(cfg, engine, store, pub, nil,
		WithRunnerClock(func() time.Time { return fixedNow }))
}

func TestFingerprintDedup(t *testing.T) {
	store := newSeededStore(t)
	pub := &capturePublisher{}
	r := newTestRunner(store, pub, Config{})

	ev1, err := r.MaybeGenerateSignal(context.Background(), "mt5", "EURUSD", false)
	if err != nil {
		t.Fatalf("first generation: %v", err)
	}
	if ev1 == nil {
		t.Fatal("expected an event from the first computation")
	}

	ev2, err := r.MaybeGenerateSignal(context.Background(), "mt5", "EURUSD", true)
	if err != nil {
		t.Fatalf("second generation: %v", err)
	}
	if ev2 != nil {
		t.Fatalf("identical fingerprint within the same bar must not re-broadcast, got %+v", ev2)
	}
	if pub.count() != 1 {
		t.Fatalf("expected exactly one broadcast, got %d", pub.count())
	}
}

func TestMinIntervalThrottle(t *testing.T) {
	store := newSeededStore(t)
	pub := &capturePublisher{}
	r := newTestRunner(store, pub, Config{MinInterval: time.Minute})

	if ev, _ := r.MaybeGenerateSignal(context.Background(), "mt5", "EURUSD", false); ev == nil {
		t.Fatal("first computation should emit")
	}
	// throttled without force even though the fingerprint would differ
	if ev, _ := r.MaybeGenerateSignal(context.Background(), "mt5", "EURUSD", false); ev != nil {
		t.Fatal("second computation within min interval should be throttled")
	}
}

func TestFlushBatchesAndRequeues(t *testing.T) {
	store := newSeededStore(t)
	pub := &capturePublisher{}
	r := newTestRunner(store, pub, Config{MaxSymbolsPerFlush: 3})

	syms := []string{"EURUSD", "GBPUSD", "USDJPY", "AUDUSD", "NZDUSD"}
	r.IngestSymbols("mt5", syms...)
	r.IngestSymbols("mt5", "EURUSD") // duplicate, must not enqueue twice

	r.mu.Lock()
	queued := len(r.pending["mt5"])
	r.mu.Unlock()
	if queued != len(syms) {
		t.Fatalf("expected %d queued symbols, got %d", len(syms), queued)
	}

	if leftover := r.flushBroker(context.Background(), "mt5"); !leftover {
		t.Fatal("expected leftovers after a capped flush")
	}
	r.mu.Lock()
	remaining := append([]string(nil), r.pending["mt5"]...)
	r.mu.Unlock()
	if len(remaining) != 2 {
		t.Fatalf("expected 2 re-queued symbols, got %v", remaining)
	}
	if remaining[0] != "AUDUSD" || remaining[1] != "NZDUSD" {
		t.Fatalf("round-robin order broken: %v", remaining)
	}
}

func TestSnapshotSolicitedForUnknownSymbol(t *testing.T) {
	store := newSeededStore(t)
	pub := &capturePublisher{}
	r := newTestRunner(store, pub, Config{})

	ev, err := r.MaybeGenerateSignal(context.Background(), "mt5", "GBPJPY", false)
	if err != nil || ev != nil {
		t.Fatalf("symbol without data should not emit: ev=%v err=%v", ev, err)
	}
	reqs := store.ConsumeSnapshotRequests("mt5", 10)
	if len(reqs) == 0 {
		t.Fatal("expected a snapshot request for the unknown symbol")
	}
}

func TestRequireBarsGate(t *testing.T) {
	store := newSeededStore(t)
	pub := &capturePublisher{}
	r := newTestRunner(store, pub, Config{RequireBars: true, MinBars: 50})

	// 30 bars < 50 required
	ev, err := r.MaybeGenerateSignal(context.Background(), "mt5", "EURUSD", false)
	if err != nil || ev != nil {
		t.Fatalf("insufficient bars should gate generation: ev=%v err=%v", ev, err)
	}
	if pub.count() != 0 {
		t.Fatalf("nothing should publish, got %d events", pub.count())
	}
}

func TestRevalidateOnlyTouchesPublished(t *testing.T) {
	store := newSeededStore(t)
	pub := &capturePublisher{}
	r := newTestRunner(store, pub, Config{})

	if ev, _ := r.MaybeGenerateSignal(context.Background(), "mt5", "EURUSD", false); ev == nil {
		t.Fatal("seed computation should emit")
	}
	before := pub.count()

	// same data, identical fingerprint: revalidation recomputes but stays quiet
	r.Revalidate(context.Background())
	if pub.count() != before {
		t.Fatalf("unchanged signal must not re-broadcast on revalidation, got %d events", pub.count())
	}
}
