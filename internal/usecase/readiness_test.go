package usecase

import (
	"context"
	"testing"
	"time"

	"FxBridge/internal/analysis"
	"FxBridge/internal/domain/models"
)

func TestTrendAligned(t *testing.T) {
	tests := []struct {
		name  string
		dir   models.Direction
		trend float64
		want  bool
	}{
		{"buy with uptrend", models.DirectionBuy, 0.4, true},
		{"buy against downtrend", models.DirectionBuy, -0.4, false},
		{"sell with downtrend", models.DirectionSell, -0.2, true},
		{"sell against uptrend", models.DirectionSell, 0.2, false},
		{"neutral never aligns", models.DirectionNeutral, 0.9, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := trendAligned(tt.dir, tt.trend); got != tt.want {
				t.Fatalf("trendAligned(%s, %v) = %t, want %t", tt.dir, tt.trend, got, tt.want)
			}
		})
	}
}

func TestRSIRoom(t *testing.T) {
	tests := []struct {
		name string
		dir  models.Direction
		rsi  float64
		want bool
	}{
		{"buy below overbought", models.DirectionBuy, 65, true},
		{"buy at overbought", models.DirectionBuy, 72, false},
		{"sell above oversold", models.DirectionSell, 35, true},
		{"sell at oversold", models.DirectionSell, 28, false},
		{"neutral mid-range", models.DirectionNeutral, 50, true},
		{"neutral extreme", models.DirectionNeutral, 80, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rsiRoom(tt.dir, tt.rsi); got != tt.want {
				t.Fatalf("rsiRoom(%s, %v) = %t, want %t", tt.dir, tt.rsi, got, tt.want)
			}
		})
	}
}

func TestSweepSupports(t *testing.T) {
	low := &analysis.Sweep{Type: analysis.SweepLow}
	high := &analysis.Sweep{Type: analysis.SweepHigh}

	if !sweepSupports(models.DirectionBuy, low) {
		t.Fatal("a sweep of the lows should support a long")
	}
	if sweepSupports(models.DirectionBuy, high) {
		t.Fatal("a sweep of the highs should not support a long")
	}
	if !sweepSupports(models.DirectionSell, high) {
		t.Fatal("a sweep of the highs should support a short")
	}
	if sweepSupports(models.DirectionSell, nil) {
		t.Fatal("no sweep supports nothing")
	}
}

func TestOrderBlockSupports(t *testing.T) {
	blocks := []analysis.OrderBlock{{Type: "bearish"}, {Type: "bullish"}}
	if !orderBlockSupports(models.DirectionBuy, blocks) {
		t.Fatal("a bullish block should support a long")
	}
	if orderBlockSupports(models.DirectionSell, []analysis.OrderBlock{{Type: "bullish"}}) {
		t.Fatal("only bullish blocks cannot support a short")
	}
	if orderBlockSupports(models.DirectionNeutral, blocks) {
		t.Fatal("neutral direction has no supporting block")
	}
}

func TestFVGSupports(t *testing.T) {
	// FilledPct is a 0-100 percentage, matching the gap detector's output.
	gaps := []analysis.FairValueGap{
		{Type: "bullish", FilledPct: 90},
		{Type: "bullish", FilledPct: 30},
	}
	if !fvgSupports(models.DirectionBuy, gaps) {
		t.Fatal("a lightly filled bullish gap should support a long")
	}
	half := []analysis.FairValueGap{{Type: "bullish", FilledPct: 50}}
	if !fvgSupports(models.DirectionBuy, half) {
		t.Fatal("a half filled gap should still support a long")
	}
	filled := []analysis.FairValueGap{{Type: "bullish", FilledPct: 95}}
	if fvgSupports(models.DirectionBuy, filled) {
		t.Fatal("a mostly filled gap offers no support")
	}
}

func TestImbalanceSupports(t *testing.T) {
	if !imbalanceSupports(models.DirectionBuy, analysis.VolumeImbalance{BuyPressure: 0.7, SellPressure: 0.3}) {
		t.Fatal("buy pressure should support a long")
	}
	if imbalanceSupports(models.DirectionSell, analysis.VolumeImbalance{BuyPressure: 0.7, SellPressure: 0.3}) {
		t.Fatal("buy pressure should not support a short")
	}
}

func TestReadinessLayerCount(t *testing.T) {
	store, _ := newExecFixture(t, nil)
	seedTrend(t, store)

	engine := NewSignalEngine(EngineConfig{}, store, nil,
		WithEngineClock(func() time.Time { return execNow }))
	sig, err := engine.GenerateSignal(context.Background(), "mt5", "EURUSD")
	if err != nil {
		t.Fatalf("GenerateSignal: %v", err)
	}
	if sig == nil || sig.Readiness == nil {
		t.Fatal("a seeded symbol must yield a signal with readiness layers")
	}
	if sig.Readiness.LayersTotal != 18 {
		t.Fatalf("layers total = %d, want 18", sig.Readiness.LayersTotal)
	}
	if len(sig.Readiness.Layers) != sig.Readiness.LayersTotal {
		t.Fatalf("layer list length %d disagrees with total %d",
			len(sig.Readiness.Layers), sig.Readiness.LayersTotal)
	}
}
