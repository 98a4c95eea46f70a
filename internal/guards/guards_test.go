package guards

import (
	"context"
	"testing"
	"time"

	"FxBridge/internal/domain/models"
	domsvc "FxBridge/internal/domain/service"
	"FxBridge/internal/marketdata"
	"FxBridge/internal/symbols"
)

// fixedNow is a Tuesday 13:00 UTC, inside the London/NY overlap.
var fixedNow = time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)

func newTestStore() *marketdata.Store {
	return marketdata.NewStore(marketdata.DefaultConfig(), symbols.New(), nil,
		marketdata.WithClock(func() time.Time { return fixedNow }))
}

func newTestEngine(store *marketdata.Store, cfg Config, quality domsvc.DataQualityReporter, learning domsvc.LearningState) *Engine {
	return NewEngine(cfg, store, quality, learning, WithClock(func() time.Time { return fixedNow }))
}

func TestNewsGuardBlackout(t *testing.T) {
	store := newTestStore()
	cfg := DefaultConfig()
	cfg.NewsImpactMin = 70
	cfg.NewsBlackoutBefore = 15 * time.Minute
	cfg.NewsBlackoutAfter = 15 * time.Minute
	e := newTestEngine(store, cfg, nil, nil)

	res := store.RecordNews("mt5", []models.NewsItem{{
		ID: "nfp", Title: "Non-Farm Payrolls", Currency: "USD",
		Impact: 90, Time: fixedNow.Add(10 * time.Minute),
	}})
	if !res.Success {
		t.Fatalf("news ingest failed: %s", res.Message)
	}

	v := e.BuildNewsGuard("mt5")
	if !v.PauseTrading || v.Level != LevelBlocked {
		t.Fatalf("expected blackout pause, got %+v", v)
	}
}

func TestNewsGuardUpcomingIsCaution(t *testing.T) {
	store := newTestStore()
	cfg := DefaultConfig()
	cfg.NewsBlackoutBefore = 15 * time.Minute
	e := newTestEngine(store, cfg, nil, nil)

	store.RecordNews("mt5", []models.NewsItem{{
		ID: "cpi", Title: "CPI", Currency: "USD",
		Impact: 90, Time: fixedNow.Add(3 * time.Hour),
	}})

	v := e.BuildNewsGuard("mt5")
	if v.PauseTrading {
		t.Fatalf("distant news should not pause: %+v", v)
	}
	if v.Level != LevelCaution {
		t.Fatalf("expected caution, got %s", v.Level)
	}
}

func TestNewsGuardIgnoresLowImpact(t *testing.T) {
	store := newTestStore()
	e := newTestEngine(store, DefaultConfig(), nil, nil)

	store.RecordNews("mt5", []models.NewsItem{{
		ID: "minor", Title: "Minor speech", Impact: 30, Time: fixedNow.Add(5 * time.Minute),
	}})

	if v := e.BuildNewsGuard("mt5"); v.Level != LevelNormal {
		t.Fatalf("low impact news should be ignored, got %+v", v)
	}
}

func TestNewEngineDefaultsNewsWindows(t *testing.T) {
	store := newTestStore()
	// Zero config must still produce working blackout and scan windows.
	e := newTestEngine(store, Config{}, nil, nil)

	store.RecordNews("mt5", []models.NewsItem{{
		ID: "fomc", Title: "FOMC Statement", Currency: "USD",
		Impact: 95, Time: fixedNow.Add(10 * time.Minute),
	}})

	v := e.BuildNewsGuard("mt5")
	if !v.PauseTrading || v.Level != LevelBlocked {
		t.Fatalf("zero config should inherit default blackout windows, got %+v", v)
	}
}

type stubQuality struct {
	bySymbol map[string]domsvc.DataQualityReport
}

func (s stubQuality) Report(_ context.Context, _, symbol string) (domsvc.DataQualityReport, error) {
	if r, ok := s.bySymbol[symbol]; ok {
		return r, nil
	}
	return domsvc.DataQualityReport{Level: domsvc.QualityOK}, nil
}

func TestDataQualityGuard(t *testing.T) {
	store := newTestStore()
	quality := stubQuality{bySymbol: map[string]domsvc.DataQualityReport{
		"EURUSD": {Level: domsvc.QualityDegraded},
		"GBPJPY": {Level: domsvc.QualityCritical},
	}}
	e := newTestEngine(store, DefaultConfig(), quality, nil)

	v := e.BuildDataQualityGuard(context.Background(), "mt5", []string{"EURUSD"})
	if v.BlockTrading || v.Level != LevelDegraded {
		t.Fatalf("expected degraded, got %+v", v)
	}

	v = e.BuildDataQualityGuard(context.Background(), "mt5", []string{"EURUSD", "GBPJPY"})
	if !v.BlockTrading {
		t.Fatalf("critical symbol should block, got %+v", v)
	}
}

func TestSessionGuardStrictVsLenient(t *testing.T) {
	store := newTestStore()

	// Saturday: FX market closed
	saturday := time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC)
	strictCfg := DefaultConfig()
	strictCfg.SessionStrict = true
	strict := NewEngine(strictCfg, store, nil, nil, WithClock(func() time.Time { return saturday }))
	if v := strict.BuildSessionGuard("EURUSD"); !v.PauseTrading {
		t.Fatalf("strict session should pause on Saturday, got %+v", v)
	}

	lenient := NewEngine(DefaultConfig(), store, nil, nil, WithClock(func() time.Time { return saturday }))
	if v := lenient.BuildSessionGuard("EURUSD"); v.PauseTrading || v.Level != LevelCaution {
		t.Fatalf("lenient session should only caution, got %+v", v)
	}

	// crypto never pauses
	if v := strict.BuildSessionGuard("BTCUSD"); v.Level != LevelNormal {
		t.Fatalf("crypto session should be normal, got %+v", v)
	}
}

func TestLiquidityGuard(t *testing.T) {
	store := newTestStore()
	cfg := DefaultConfig()
	cfg.MaxSpreadPips = 2.0
	e := newTestEngine(store, cfg, nil, nil)

	// 5-digit quote with a 6-pip spread
	store.RecordQuote(&models.Quote{
		Broker: "mt5", Symbol: "EURUSD", Bid: 1.10000, Ask: 1.10060,
		Digits: 5, Point: 0.00001, Timestamp: fixedNow,
	})
	if v := e.BuildLiquidityGuard("mt5"); !v.PauseTrading {
		t.Fatalf("wide spread should pause, got %+v", v)
	}

	store2 := newTestStore()
	e2 := newTestEngine(store2, cfg, nil, nil)
	store2.RecordQuote(&models.Quote{
		Broker: "mt5", Symbol: "EURUSD", Bid: 1.10000, Ask: 1.10010,
		Digits: 5, Point: 0.00001, Timestamp: fixedNow,
	})
	if v := e2.BuildLiquidityGuard("mt5"); v.PauseTrading {
		t.Fatalf("tight spread should pass, got %+v", v)
	}
}

func TestShouldEnableTradingShortCircuits(t *testing.T) {
	store := newTestStore()
	learning := domsvc.NewLossStreakLearning(2)
	learning.RecordOutcome("mt5", -10)
	learning.RecordOutcome("mt5", -20)
	e := newTestEngine(store, DefaultConfig(), nil, learning)

	rep := e.ShouldEnableTrading(context.Background(), "mt5", "EURUSD", nil)
	if rep.Enabled || rep.BlockedBy != "learning" {
		t.Fatalf("expected learning kill switch first, got %+v", rep)
	}

	// winner resets the streak, guards pass again
	learning.RecordOutcome("mt5", 50)
	rep = e.ShouldEnableTrading(context.Background(), "mt5", "EURUSD", nil)
	if !rep.Enabled {
		t.Fatalf("expected trading enabled, got %+v", rep)
	}
}
