package usecase

import (
	"context"
	"testing"
	"time"

	"FxBridge/internal/domain/models"
	domsvc "FxBridge/internal/domain/service"
	"FxBridge/internal/guards"
	"FxBridge/internal/marketdata"
	"FxBridge/internal/symbols"
)

var execNow = time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)

// seedTrend loads a steady uptrend plus a fresh tight-spread quote, the
// minimum a symbol needs to clear the data gates.
func seedTrend(t *testing.T, store *marketdata.Store) {
	t.Helper()
	bars := make([]models.Bar, 0, 30)
	price := 1.1000
	for i := 29; i >= 0; i-- {
		open := price
		price += 0.0008
		bars = append(bars, models.Bar{
			Time:   execNow.Add(-time.Duration(i+1) * 15 * time.Minute),
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
		Digits: 5, Point: 0.00001, Timestamp: execNow,
	})
	if !res.Success {
		t.Fatalf("quote ingest failed: %s", res.Message)
	}
}

func newExecFixture(t *testing.T, quality domsvc.TradeQualityEvaluator) (*marketdata.Store, *ExecutionService) {
	t.Helper()
	store := marketdata.NewStore(marketdata.DefaultConfig(), symbols.New(), nil,
		marketdata.WithClock(func() time.Time { return execNow }))
	engine := NewSignalEngine(EngineConfig{}, store, nil,
		WithEngineClock(func() time.Time { return execNow }))
	g := guards.NewEngine(guards.DefaultConfig(), store, nil, nil,
		guards.WithClock(func() time.Time { return execNow }))
	svc := NewExecutionService(ExecutionConfig{}, store, engine, g, quality, nil,
		WithExecutionClock(func() time.Time { return execNow }))
	return store, svc
}

func TestExecutionPendingWithoutQuote(t *testing.T) {
	store, svc := newExecFixture(t, nil)

	resp := svc.SignalForExecution(context.Background(), "mt5", "EURUSD")
	if !resp.Success || resp.ShouldExecute {
		t.Fatalf("no data must be pending, not a failure: %+v", resp)
	}
	if reqs := store.ConsumeSnapshotRequests("mt5", 10); len(reqs) == 0 {
		t.Fatal("a snapshot should be solicited for the missing symbol")
	}
}

func TestExecutionPendingWithoutHistory(t *testing.T) {
	store, svc := newExecFixture(t, nil)
	store.RecordQuote(&models.Quote{
		Broker: "mt5", Symbol: "EURUSD", Bid: 1.1000, Ask: 1.1002, Timestamp: execNow,
	})

	resp := svc.SignalForExecution(context.Background(), "mt5", "EURUSD")
	if !resp.Success || resp.ShouldExecute {
		t.Fatalf("insufficient history must be pending: %+v", resp)
	}
	if resp.Signal != nil {
		t.Fatal("no signal should be computed before the data gates pass")
	}
}

func TestExecutionGateChainConsistency(t *testing.T) {
	store, svc := newExecFixture(t, nil)
	seedTrend(t, store)

	resp := svc.SignalForExecution(context.Background(), "mt5", "EURUSD")
	if !resp.Success {
		t.Fatalf("gate evaluation is not an error: %+v", resp)
	}
	if resp.Signal == nil || resp.Execution == nil {
		t.Fatalf("signal and detail must accompany a gate evaluation: %+v", resp)
	}

	allGates := true
	for _, ok := range resp.Execution.Gates {
		allGates = allGates && ok
	}
	if resp.ShouldExecute {
		if !allGates {
			t.Fatalf("shouldExecute with failing gates: %+v", resp.Execution.Gates)
		}
		if resp.Execution.ManagementPlan == nil {
			t.Fatal("executable signal must carry a management plan")
		}
	} else if allGates && resp.Execution.Guards != nil && resp.Execution.Guards.Enabled {
		t.Fatalf("all gates and guards passed but execution withheld: %s", resp.Message)
	}
}

func TestExecutionGateMessageIsStable(t *testing.T) {
	store := marketdata.NewStore(marketdata.DefaultConfig(), symbols.New(), nil,
		marketdata.WithClock(func() time.Time { return execNow }))
	engine := NewSignalEngine(EngineConfig{}, store, nil,
		WithEngineClock(func() time.Time { return execNow }))
	g := guards.NewEngine(guards.DefaultConfig(), store, nil, nil,
		guards.WithClock(func() time.Time { return execNow }))
	// Unreachable floors make at least two gates fail at once.
	svc := NewExecutionService(ExecutionConfig{MinConfidence: 1.01, MinStrength: 1.01},
		store, engine, g, nil, nil,
		WithExecutionClock(func() time.Time { return execNow }))
	seedTrend(t, store)

	resp := svc.SignalForExecution(context.Background(), "mt5", "EURUSD")
	if resp.ShouldExecute || resp.Execution == nil {
		t.Fatalf("unreachable floors must withhold execution: %+v", resp)
	}
	failing := 0
	for _, ok := range resp.Execution.Gates {
		if !ok {
			failing++
		}
	}
	if failing < 2 {
		t.Fatalf("expected several failing gates, got %+v", resp.Execution.Gates)
	}
	for i := 0; i < 10; i++ {
		again := svc.SignalForExecution(context.Background(), "mt5", "EURUSD")
		if again.Message != resp.Message {
			t.Fatalf("gate message changed between evaluations: %q vs %q", resp.Message, again.Message)
		}
	}
	want := ""
	for _, name := range []string{"notExpired", "decisionEnter", "confidenceFloor", "strengthFloor", "tradeValidity"} {
		if !resp.Execution.Gates[name] {
			want = "gate failed: " + name
			break
		}
	}
	if resp.Message != want {
		t.Fatalf("first failing gate should be reported in evaluation order, want %q got %q", want, resp.Message)
	}
}

type vetoEvaluator struct{}

func (vetoEvaluator) Evaluate(context.Context, *models.Signal) (domsvc.QualityVerdict, error) {
	return domsvc.QualityVerdict{Approved: false, Reason: "score below threshold"}, nil
}

func TestExecutionQualityVeto(t *testing.T) {
	store, svc := newExecFixture(t, vetoEvaluator{})
	seedTrend(t, store)

	resp := svc.SignalForExecution(context.Background(), "mt5", "EURUSD")
	if resp.ShouldExecute {
		t.Fatalf("quality veto must withhold execution: %+v", resp)
	}
}

func TestExecutionStaleQuoteIsPending(t *testing.T) {
	store, svc := newExecFixture(t, nil)
	seedTrend(t, store)

	// Overwrite with a quote older than the execution freshness bound but
	// young enough for the cache to keep it.
	store.RecordQuote(&models.Quote{
		Broker: "mt5", Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002,
		Timestamp: execNow.Add(-100 * time.Second),
	})

	resp := svc.SignalForExecution(context.Background(), "mt5", "EURUSD")
	if !resp.Success || resp.ShouldExecute || resp.Signal != nil {
		t.Fatalf("stale quote must park execution: %+v", resp)
	}
}
