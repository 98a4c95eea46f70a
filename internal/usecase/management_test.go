package usecase

import (
	"context"
	"testing"
	"time"

	"FxBridge/internal/domain/models"
	"FxBridge/internal/guards"
	"FxBridge/internal/marketdata"
	"FxBridge/internal/symbols"
)

var mgmtNow = time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)

func newMgmtFixture(t *testing.T) (*marketdata.Store, *PositionManager, *MemoryCommandQueue) {
	t.Helper()
	store := marketdata.NewStore(marketdata.DefaultConfig(), symbols.New(), nil,
		marketdata.WithClock(func() time.Time { return mgmtNow }))
	g := guards.NewEngine(guards.DefaultConfig(), store, nil, nil,
		guards.WithClock(func() time.Time { return mgmtNow }))
	queue := NewMemoryCommandQueue()
	m := NewPositionManager(store, g, queue, nil)
	m.now = func() time.Time { return mgmtNow }
	return store, m, queue
}

func setPrice(t *testing.T, store *marketdata.Store, symbol string, bid, ask float64) {
	t.Helper()
	res := store.RecordQuote(&models.Quote{
		Broker: "mt5", Symbol: symbol, Bid: bid, Ask: ask,
		Digits: 5, Point: 0.00001, Timestamp: mgmtNow,
	})
	if !res.Success {
		t.Fatalf("quote ingest failed: %s", res.Message)
	}
}

func longPosition() models.Position {
	// 100 pips of risk: entry 1.1000, stop 1.0900.
	return models.Position{
		Broker: "mt5", Symbol: "EURUSD", Ticket: "t1",
		Side: models.SideBuy, Units: 10000,
		EntryPrice: 1.1000, StopLoss: 1.0900,
	}
}

func TestManagementBreakeven(t *testing.T) {
	store, m, _ := newMgmtFixture(t)
	// +1.0R on a plan with BreakevenAtR 1.0 and first partial at 1.5R.
	setPrice(t, store, "EURUSD", 1.1100, 1.1100)

	plan := PlanForSignal(&models.Signal{}) // normal regime
	cmds, err := m.EvaluatePositionManagement(context.Background(), "mt5",
		[]models.Position{longPosition()}, plan)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(cmds) != 1 {
		t.Fatalf("got %d commands, want 1", len(cmds))
	}
	if cmds[0].Action != models.ActionMoveStop || cmds[0].StopLoss != 1.1000 {
		t.Fatalf("expected breakeven stop move, got %+v", cmds[0])
	}

	// Breakeven is never issued twice for the same ticket.
	cmds, _ = m.EvaluatePositionManagement(context.Background(), "mt5",
		[]models.Position{longPosition()}, plan)
	if len(cmds) != 0 {
		t.Fatalf("breakeven re-issued: %+v", cmds)
	}
}

func TestManagementPartialCloseLadder(t *testing.T) {
	store, m, queue := newMgmtFixture(t)
	// +1.5R hits the first partial-close rung before breakeven runs.
	setPrice(t, store, "EURUSD", 1.1150, 1.1150)

	plan := PlanForSignal(&models.Signal{})
	cmds, err := m.EvaluatePositionManagement(context.Background(), "mt5",
		[]models.Position{longPosition()}, plan)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Action != models.ActionPartialClose {
		t.Fatalf("expected first partial close, got %+v", cmds)
	}
	if cmds[0].CloseFraction != 0.5 {
		t.Fatalf("fraction = %v, want 0.5", cmds[0].CloseFraction)
	}

	drained, err := queue.Drain(context.Background(), "mt5", 10)
	if err != nil || len(drained) != 1 {
		t.Fatalf("drain: %v %+v", err, drained)
	}

	// Second pass at the same price issues the breakeven, not the same rung.
	cmds, _ = m.EvaluatePositionManagement(context.Background(), "mt5",
		[]models.Position{longPosition()}, plan)
	if len(cmds) != 1 || cmds[0].Action != models.ActionMoveStop {
		t.Fatalf("expected breakeven after rung, got %+v", cmds)
	}
}

func TestManagementTrailShort(t *testing.T) {
	store, m, _ := newMgmtFixture(t)
	short := models.Position{
		Broker: "mt5", Symbol: "EURUSD", Ticket: "t2",
		Side: models.SideSell, Units: 10000,
		EntryPrice: 1.1000, StopLoss: 1.1100,
	}
	// +3R for the short. High-volatility plan: rungs at 1.0R and 2.0R,
	// breakeven at 0.8R, trail from 1.2R at 1.0R distance.
	setPrice(t, store, "EURUSD", 1.0700, 1.0700)
	plan := PlanForSignal(&models.Signal{Risk: models.RiskPlan{VolatilityRegime: "high"}})

	seen := map[models.ManagementAction]bool{}
	for i := 0; i < 4; i++ {
		cmds, err := m.EvaluatePositionManagement(context.Background(), "mt5",
			[]models.Position{short}, plan)
		if err != nil {
			t.Fatalf("evaluate pass %d: %v", i, err)
		}
		for _, c := range cmds {
			seen[c.Action] = true
			if c.Action == models.ActionTrailStop && c.StopLoss >= short.StopLoss {
				t.Fatalf("short trail must tighten the stop downward, got %v", c.StopLoss)
			}
		}
	}
	for _, want := range []models.ManagementAction{
		models.ActionPartialClose, models.ActionMoveStop, models.ActionTrailStop,
	} {
		if !seen[want] {
			t.Fatalf("action %s never issued; saw %v", want, seen)
		}
	}
}

func TestManagementNoActionWithoutStop(t *testing.T) {
	store, m, _ := newMgmtFixture(t)
	setPrice(t, store, "EURUSD", 1.1200, 1.1200)

	pos := longPosition()
	pos.StopLoss = 0
	cmds, err := m.EvaluatePositionManagement(context.Background(), "mt5",
		[]models.Position{pos}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(cmds) != 0 {
		t.Fatalf("position without a stop cannot be managed in R terms: %+v", cmds)
	}
}

func TestMemoryCommandQueueBound(t *testing.T) {
	q := NewMemoryCommandQueue()
	for i := 0; i < memoryQueueCap+50; i++ {
		_ = q.Enqueue(context.Background(), models.ManagementCommand{Broker: "mt5"})
	}
	cmds, err := q.Drain(context.Background(), "mt5", 0)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(cmds) != memoryQueueCap {
		t.Fatalf("queue should cap at %d, got %d", memoryQueueCap, len(cmds))
	}
	if again, _ := q.Drain(context.Background(), "mt5", 0); len(again) != 0 {
		t.Fatalf("drain should empty the queue, got %d", len(again))
	}
}
