package usecase

import (
	"time"

	"FxBridge/internal/analysis"
	"FxBridge/internal/domain/models"
)

const maxSpreadPipsForEntry = 3.0

// buildReadiness runs the layered entry checklist. Each layer is an
// independent boolean; the gate passes when enough layers agree.
func (e *SignalEngine) buildReadiness(broker, symbol string, quote *models.Quote, primary *analysis.Analysis, byTF map[models.Timeframe]*analysis.Analysis, agg *analysis.Aggregate) *models.Readiness {
	now := e.now()
	layers := make(map[string]bool, 18)

	dir := agg.Direction

	// price feed
	layers["freshQuote"] = quote != nil && now.Sub(quote.Timestamp) <= 2*time.Minute
	layers["spreadAcceptable"] = quote == nil || quote.SpreadPips() <= maxSpreadPipsForEntry
	layers["barSufficiency"] = primary.Bars >= e.cfg.MinBars

	// primary timeframe technicals
	layers["trendAlignment"] = trendAligned(dir, primary.TrendPct)
	layers["structureBias"] = primary.Structure.Bias == dir && dir != models.DirectionNeutral
	layers["regimeTrend"] = primary.Regime == "trend"
	layers["rsiNotExtreme"] = rsiRoom(dir, primary.RSI)
	layers["atrAvailable"] = primary.ATR > 0
	layers["volatilityAcceptable"] = primary.LastClose > 0 &&
		primary.ATR/primary.LastClose*100 < 1.0

	// smart money context
	layers["sweepContext"] = sweepSupports(dir, primary.SMC.LiquiditySweep)
	layers["orderBlockNearby"] = orderBlockSupports(dir, primary.SMC.OrderBlocks)
	layers["volumeConfirmation"] = primary.SMC.VolumeSpike != nil ||
		imbalanceSupports(dir, primary.SMC.VolumeImbalance)
	layers["fvgContext"] = fvgSupports(dir, primary.SMC.FairValueGaps)
	layers["noLiquidityTrap"] = primary.SMC.LiquidityTrap == nil

	// cross-timeframe agreement
	layers["multiTfAgreement"] = agg.Agreeing > agg.Disagreeing
	layers["higherTfAlignment"] = higherTFAligned(dir, byTF)

	// aggregate floors
	layers["confidenceFloor"] = agg.Confidence >= e.cfg.MinConfidence
	layers["strengthFloor"] = agg.Strength >= e.cfg.MinStrength

	passed := 0
	for _, ok := range layers {
		if ok {
			passed++
		}
	}
	return &models.Readiness{
		Ready:        passed >= e.cfg.ReadinessMin,
		LayersPassed: passed,
		LayersTotal:  len(layers),
		Layers:       layers,
	}
}

func trendAligned(dir models.Direction, trendPct float64) bool {
	switch dir {
	case models.DirectionBuy:
		return trendPct > 0
	case models.DirectionSell:
		return trendPct < 0
	default:
		return false
	}
}

func rsiRoom(dir models.Direction, rsi float64) bool {
	switch dir {
	case models.DirectionBuy:
		return rsi < 70
	case models.DirectionSell:
		return rsi > 30
	default:
		return rsi > 30 && rsi < 70
	}
}

// sweepSupports: a sweep of the highs hints at a short, a sweep of the lows
// at a long.
func sweepSupports(dir models.Direction, sweep *analysis.Sweep) bool {
	if sweep == nil {
		return false
	}
	switch dir {
	case models.DirectionBuy:
		return sweep.Type == analysis.SweepLow
	case models.DirectionSell:
		return sweep.Type == analysis.SweepHigh
	default:
		return false
	}
}

func orderBlockSupports(dir models.Direction, blocks []analysis.OrderBlock) bool {
	want := ""
	switch dir {
	case models.DirectionBuy:
		want = "bullish"
	case models.DirectionSell:
		want = "bearish"
	default:
		return false
	}
	for _, ob := range blocks {
		if ob.Type == want {
			return true
		}
	}
	return false
}

func imbalanceSupports(dir models.Direction, imb analysis.VolumeImbalance) bool {
	switch dir {
	case models.DirectionBuy:
		return imb.BuyPressure > imb.SellPressure
	case models.DirectionSell:
		return imb.SellPressure > imb.BuyPressure
	default:
		return false
	}
}

// fvgMaxFilledPct is the fill percentage (0-100) past which a gap no
// longer offers a usable entry zone.
const fvgMaxFilledPct = 80.0

func fvgSupports(dir models.Direction, gaps []analysis.FairValueGap) bool {
	want := ""
	switch dir {
	case models.DirectionBuy:
		want = "bullish"
	case models.DirectionSell:
		want = "bearish"
	default:
		return false
	}
	for _, g := range gaps {
		if g.Type == want && g.FilledPct < fvgMaxFilledPct {
			return true
		}
	}
	return false
}

// higherTFAligned checks H4 and D1 against the vote direction. Missing
// higher timeframes do not count against the signal.
func higherTFAligned(dir models.Direction, byTF map[models.Timeframe]*analysis.Analysis) bool {
	if dir == models.DirectionNeutral {
		return false
	}
	seen := false
	for _, tf := range []models.Timeframe{models.TFH4, models.TFD1} {
		a, ok := byTF[tf]
		if !ok || a == nil {
			continue
		}
		seen = true
		if a.Bias != models.DirectionNeutral && a.Bias != dir {
			return false
		}
	}
	return seen
}
