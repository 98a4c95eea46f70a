package analysis

import (
	"math"
	"reflect"
	"testing"
	"time"

	"FxBridge/internal/domain/models"
)

func barAt(t0 time.Time, i int, o, h, l, c, v float64) models.Bar {
	return models.Bar{
		Time: t0.Add(time.Duration(i) * 15 * time.Minute),
		Open: o, High: h, Low: l, Close: c, Volume: v,
	}
}

// rangeBars builds a choppy range around 1.1000.
func rangeBars(t0 time.Time, n int) []models.Bar {
	bars := make([]models.Bar, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			bars = append(bars, barAt(t0, i, 1.1005, 1.1010, 1.0993, 1.0995, 100))
		} else {
			bars = append(bars, barAt(t0, i, 1.0995, 1.1008, 1.0990, 1.1005, 100))
		}
	}
	return bars
}

func TestAnalyzeRequiresThreeBars(t *testing.T) {
	t0 := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	bars := []models.Bar{
		barAt(t0, 0, 1.1, 1.2, 1.0, 1.15, 10),
		barAt(t0, 1, 1.15, 1.2, 1.1, 1.18, 10),
	}
	if got := AnalyzeCandleSeries(bars, Options{Timeframe: models.TFM15}); got != nil {
		t.Fatalf("expected nil for 2 bars, got %+v", got)
	}
	// bars with non-finite values are dropped during normalization
	bars = append(bars, models.Bar{Time: t0.Add(30 * time.Minute), Open: math.NaN(), High: 1, Low: 1, Close: 1})
	if got := AnalyzeCandleSeries(bars, Options{Timeframe: models.TFM15}); got != nil {
		t.Fatalf("expected nil after dropping invalid bar, got %+v", got)
	}
}

func TestAnalyzeDeterminism(t *testing.T) {
	t0 := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	bars := rangeBars(t0, 40)

	a := AnalyzeCandleSeries(bars, Options{Timeframe: models.TFM15})
	b := AnalyzeCandleSeries(bars, Options{Timeframe: models.TFM15})
	if a == nil || b == nil {
		t.Fatal("expected analyses")
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("analyzer not deterministic:\n%+v\n%+v", a, b)
	}
}

func TestAnalyzeNormalizesOrderAndDuplicates(t *testing.T) {
	t0 := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	bars := rangeBars(t0, 30)
	// newest-first with a duplicate, as the cache hands them out
	reversed := make([]models.Bar, 0, len(bars)+1)
	for i := len(bars) - 1; i >= 0; i-- {
		reversed = append(reversed, bars[i])
	}
	reversed = append(reversed, bars[5])

	a := AnalyzeCandleSeries(bars, Options{Timeframe: models.TFM15})
	b := AnalyzeCandleSeries(reversed, Options{Timeframe: models.TFM15})
	if a == nil || b == nil {
		t.Fatal("expected analyses")
	}
	if a.Bars != b.Bars || a.Bias != b.Bias || a.Strength != b.Strength {
		t.Fatalf("normalization changed outcome: %+v vs %+v", a, b)
	}
}

func TestLiquiditySweepHighYieldsSellBias(t *testing.T) {
	t0 := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	bars := rangeBars(t0, 29)
	// wick above the prior 20-bar high (1.1010), close back below it,
	// upper wick well over 1.4x the body
	bars = append(bars, barAt(t0, 29, 1.1002, 1.1030, 1.0990, 1.0993, 100))

	a := AnalyzeCandleSeries(bars, Options{Timeframe: models.TFM15})
	if a == nil {
		t.Fatal("expected analysis")
	}
	if a.SMC.LiquiditySweep == nil {
		t.Fatal("expected a liquidity sweep")
	}
	if a.SMC.LiquiditySweep.Type != SweepHigh {
		t.Fatalf("sweep type = %s, want %s", a.SMC.LiquiditySweep.Type, SweepHigh)
	}
	if a.SMC.LiquiditySweep.WickToBody < 1.4 {
		t.Fatalf("wick-to-body %.2f below threshold", a.SMC.LiquiditySweep.WickToBody)
	}
	if a.Bias != models.DirectionSell {
		t.Fatalf("bias = %s, want SELL", a.Bias)
	}
	if a.Confidence < 0 {
		t.Fatalf("confidence %.2f < 0", a.Confidence)
	}
}

func TestSweepLowDetected(t *testing.T) {
	t0 := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	bars := rangeBars(t0, 29)
	// mirror case: wick below the prior low (1.0990), close back above
	bars = append(bars, barAt(t0, 29, 1.0998, 1.1008, 1.0965, 1.1006, 100))

	a := AnalyzeCandleSeries(bars, Options{Timeframe: models.TFM15})
	if a == nil || a.SMC.LiquiditySweep == nil {
		t.Fatal("expected sweep_low analysis")
	}
	if a.SMC.LiquiditySweep.Type != SweepLow {
		t.Fatalf("sweep type = %s, want %s", a.SMC.LiquiditySweep.Type, SweepLow)
	}
}

func TestVolumeSpike(t *testing.T) {
	t0 := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	bars := rangeBars(t0, 30)
	last := &bars[len(bars)-1]
	last.Volume = 500 // 5x the rolling average

	a := AnalyzeCandleSeries(bars, Options{Timeframe: models.TFM15})
	if a == nil || a.SMC.VolumeSpike == nil {
		t.Fatal("expected a volume spike")
	}
	if a.SMC.VolumeSpike.Ratio < 1.8 {
		t.Fatalf("spike ratio %.2f below threshold", a.SMC.VolumeSpike.Ratio)
	}
}

func TestRegimeTrendVsRange(t *testing.T) {
	t0 := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	// steady climb: strong fit, big move
	trend := make([]models.Bar, 0, 35)
	for i := 0; i < 35; i++ {
		c := 1.1000 + float64(i)*0.0010
		trend = append(trend, barAt(t0, i, c-0.0005, c+0.0006, c-0.0008, c, 100))
	}
	a := AnalyzeCandleSeries(trend, Options{Timeframe: models.TFH1})
	if a == nil || a.Regime != "trend" {
		t.Fatalf("expected trend regime, got %+v", a)
	}

	b := AnalyzeCandleSeries(rangeBars(t0, 35), Options{Timeframe: models.TFH1})
	if b == nil || b.Regime != "range" {
		t.Fatalf("expected range regime, got %+v", b)
	}
}

func TestAggregateAnalysesWeighting(t *testing.T) {
	mk := func(bias models.Direction, strength, conf float64) *Analysis {
		return &Analysis{Bias: bias, Strength: strength, Confidence: conf}
	}
	byTF := map[models.Timeframe]*Analysis{
		models.TFD1:  mk(models.DirectionSell, 0.8, 0.7),
		models.TFH1:  mk(models.DirectionSell, 0.6, 0.6),
		models.TFM1:  mk(models.DirectionBuy, 0.9, 0.9),
	}
	agg := AggregateAnalyses(byTF)
	if agg == nil {
		t.Fatal("expected aggregate")
	}
	// D1+H1 outweigh M1 regardless of M1's strength
	if agg.Direction != models.DirectionSell {
		t.Fatalf("direction = %s, want SELL", agg.Direction)
	}
	if agg.Agreeing != 2 || agg.Disagreeing != 1 {
		t.Fatalf("agree/disagree = %d/%d", agg.Agreeing, agg.Disagreeing)
	}

	if AggregateAnalyses(nil) != nil {
		t.Fatal("empty input should aggregate to nil")
	}
}
