package analysis

import (
	"math"
	"sort"
	"time"

	"FxBridge/internal/domain/models"
)

// Options parameterizes one analyzer call.
type Options struct {
	Timeframe  models.Timeframe
	Thresholds *Thresholds // nil uses DefaultThresholds
}

// barView is a validated bar, ascending by time inside the analyzer.
type barView struct {
	Time                          time.Time
	Open, High, Low, Close, Volume float64
}

// Structure counts swing relations over the lookback.
type Structure struct {
	HigherHighs int              `json:"higherHighs"`
	HigherLows  int              `json:"higherLows"`
	LowerHighs  int              `json:"lowerHighs"`
	LowerLows   int              `json:"lowerLows"`
	Bias        models.Direction `json:"bias"`
}

// Patterns flags two-candle formations on the latest bars.
type Patterns struct {
	Doji             bool `json:"doji"`
	BullishEngulfing bool `json:"bullishEngulfing"`
	BearishEngulfing bool `json:"bearishEngulfing"`
	BullishPinbar    bool `json:"bullishPinbar"`
	BearishPinbar    bool `json:"bearishPinbar"`
}

// Analysis is the full structural/technical read of one OHLCV series.
// AnalyzeCandleSeries is pure: identical input yields identical output.
type Analysis struct {
	Timeframe models.Timeframe `json:"timeframe"`
	Bars      int              `json:"bars"`
	LastClose float64          `json:"lastClose"`
	LastBar   time.Time        `json:"lastBar"`

	TrendPct         float64    `json:"trendPct"`
	ReturnVolatility float64    `json:"returnVolatility"`
	ATR              float64    `json:"atr"`
	RSI              float64    `json:"rsi"`
	Regression       Regression `json:"regression"`
	Regime           string     `json:"regime"` // "trend" | "range"

	Structure Structure `json:"structure"`
	Patterns  Patterns  `json:"patterns"`
	SMC       SMC       `json:"smc"`

	Bias       models.Direction `json:"bias"`
	Strength   float64          `json:"strength"`
	Confidence float64          `json:"confidence"`
}

// AnalyzeCandleSeries turns an OHLCV series (any order, duplicates allowed)
// into an Analysis. Returns nil when fewer than 3 normalized bars remain.
func AnalyzeCandleSeries(bars []models.Bar, opts Options) *Analysis {
	th := DefaultThresholds()
	if opts.Thresholds != nil {
		th = *opts.Thresholds
	}
	views := normalize(bars)
	if len(views) < 3 {
		return nil
	}

	a := &Analysis{
		Timeframe: opts.Timeframe,
		Bars:      len(views),
		LastClose: views[len(views)-1].Close,
		LastBar:   views[len(views)-1].Time,
	}

	a.TrendPct = trendPct(views, th.TrendLookback)
	a.ReturnVolatility = returnStdev(views, th.TrendLookback)
	a.ATR = atr(views, th.ATRPeriod)
	a.RSI = rsi(views, th.RSIPeriod)
	a.Regression = linearRegression(views, th.RegressionPoints)
	if a.Regression.R2 >= th.RegimeR2Min && math.Abs(a.TrendPct) >= th.RegimeTrendPctMin {
		a.Regime = "trend"
	} else {
		a.Regime = "range"
	}
	a.Structure = structure(views, th.StructureLookback)
	a.Patterns = patterns(views)
	a.SMC = analyzeSMC(views, a.ATR, th)

	a.Bias, a.Strength, a.Confidence = conclude(a, th)
	return a
}

// normalize sorts ascending, drops duplicates by time and bars with
// non-finite OHLC.
func normalize(bars []models.Bar) []barView {
	views := make([]barView, 0, len(bars))
	for _, b := range bars {
		if b.Time.IsZero() || !finite(b.Open) || !finite(b.High) || !finite(b.Low) || !finite(b.Close) {
			continue
		}
		views = append(views, barView{
			Time: b.Time, Open: b.Open, High: b.High, Low: b.Low,
			Close: b.Close, Volume: b.Volume,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Time.Before(views[j].Time) })
	dedup := views[:0]
	for i, v := range views {
		if i > 0 && v.Time.Equal(views[i-1].Time) {
			dedup[len(dedup)-1] = v
			continue
		}
		dedup = append(dedup, v)
	}
	return dedup
}

func finite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// trendPct is the percentage move over the lookback window.
func trendPct(bars []barView, lookback int) float64 {
	start := len(bars) - lookback - 1
	if start < 0 {
		start = 0
	}
	first := bars[start].Close
	last := bars[len(bars)-1].Close
	if first <= 0 {
		return 0
	}
	return (last - first) / first * 100
}

func structure(bars []barView, lookback int) Structure {
	start := len(bars) - lookback
	if start < 1 {
		start = 1
	}
	var s Structure
	for i := start; i < len(bars); i++ {
		if bars[i].High > bars[i-1].High {
			s.HigherHighs++
		} else {
			s.LowerHighs++
		}
		if bars[i].Low > bars[i-1].Low {
			s.HigherLows++
		} else {
			s.LowerLows++
		}
	}
	up := s.HigherHighs + s.HigherLows
	down := s.LowerHighs + s.LowerLows
	switch {
	case up > down+2:
		s.Bias = models.DirectionBuy
	case down > up+2:
		s.Bias = models.DirectionSell
	default:
		s.Bias = models.DirectionNeutral
	}
	return s
}

func patterns(bars []barView) Patterns {
	var p Patterns
	last := bars[len(bars)-1]
	prev := bars[len(bars)-2]

	body := math.Abs(last.Close - last.Open)
	full := last.High - last.Low
	if full > 0 && body/full < 0.1 {
		p.Doji = true
	}

	prevBody := math.Abs(prev.Close - prev.Open)
	if prevBody > 0 {
		if last.Close > last.Open && prev.Close < prev.Open &&
			last.Close >= prev.Open && last.Open <= prev.Close {
			p.BullishEngulfing = true
		}
		if last.Close < last.Open && prev.Close > prev.Open &&
			last.Open >= prev.Close && last.Close <= prev.Open {
			p.BearishEngulfing = true
		}
	}

	if full > 0 && body > 0 {
		upperWick := last.High - math.Max(last.Open, last.Close)
		lowerWick := math.Min(last.Open, last.Close) - last.Low
		if lowerWick >= 2*body && upperWick < body {
			p.BullishPinbar = true
		}
		if upperWick >= 2*body && lowerWick < body {
			p.BearishPinbar = true
		}
	}
	return p
}

// conclude blends the layers into one direction/strength/confidence verdict.
func conclude(a *Analysis, th Thresholds) (models.Direction, float64, float64) {
	score := 0.0

	// trend direction
	if a.TrendPct > th.RegimeTrendPctMin {
		score += 1
	} else if a.TrendPct < -th.RegimeTrendPctMin {
		score -= 1
	}

	// structure vote
	switch a.Structure.Bias {
	case models.DirectionBuy:
		score += 1
	case models.DirectionSell:
		score -= 1
	}

	// momentum extremes fade the move
	if a.RSI >= 70 {
		score -= 0.5
	} else if a.RSI <= 30 {
		score += 0.5
	}

	// smart money confirmations
	if sw := a.SMC.LiquiditySweep; sw != nil {
		// a sweep of the highs is bearish, of the lows bullish
		if sw.Type == SweepHigh {
			score -= 1.5
		} else {
			score += 1.5
		}
	}
	if a.Patterns.BullishEngulfing || a.Patterns.BullishPinbar {
		score += 0.5
	}
	if a.Patterns.BearishEngulfing || a.Patterns.BearishPinbar {
		score -= 0.5
	}
	if a.SMC.VolumeImbalance.BuyPressure > a.SMC.VolumeImbalance.SellPressure*1.5 {
		score += 0.5
	} else if a.SMC.VolumeImbalance.SellPressure > a.SMC.VolumeImbalance.BuyPressure*1.5 {
		score -= 0.5
	}

	dir := models.DirectionNeutral
	if score > 0.5 {
		dir = models.DirectionBuy
	} else if score < -0.5 {
		dir = models.DirectionSell
	}

	strength := math.Min(1, math.Abs(score)/4)

	confidence := strength * 0.6
	if a.Regime == "trend" {
		confidence += 0.2
	}
	if a.SMC.VolumeSpike != nil && dir != models.DirectionNeutral {
		confidence += 0.1
	}
	if a.SMC.LiquidityTrap != nil {
		// a trap means the sweep read is suspect
		confidence *= 0.7
	}
	if confidence > 1 {
		confidence = 1
	}
	return dir, strength, confidence
}
