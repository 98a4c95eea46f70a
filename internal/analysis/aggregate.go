package analysis

import (
	"math"

	"FxBridge/internal/domain/models"
)

// timeframe weights for the confluence vote. Daily structure outweighs
// intraday noise.
var timeframeWeights = map[models.Timeframe]float64{
	models.TFD1:  3.0,
	models.TFH4:  2.4,
	models.TFH1:  1.8,
	models.TFM30: 1.4,
	models.TFM15: 1.0,
	models.TFM5:  0.7,
	models.TFM1:  0.4,
}

// Aggregate is the cross-timeframe confluence verdict.
type Aggregate struct {
	Direction      models.Direction `json:"direction"`
	Strength       float64          `json:"strength"`
	Confidence     float64          `json:"confidence"`
	Score          float64          `json:"score"` // signed weighted vote, -1..1
	Agreeing       int              `json:"agreeing"`
	Disagreeing    int              `json:"disagreeing"`
	TimeframesUsed int              `json:"timeframesUsed"`
}

// AggregateAnalyses combines per-timeframe analyses into one weighted vote.
// Majority direction wins; strength and confidence are weight-blended from
// the agreeing timeframes.
func AggregateAnalyses(byTF map[models.Timeframe]*Analysis) *Aggregate {
	if len(byTF) == 0 {
		return nil
	}
	var vote, totalWeight float64
	for tf, a := range byTF {
		if a == nil {
			continue
		}
		w, ok := timeframeWeights[tf]
		if !ok {
			w = 1.0
		}
		totalWeight += w
		switch a.Bias {
		case models.DirectionBuy:
			vote += w * a.Strength
		case models.DirectionSell:
			vote -= w * a.Strength
		}
	}
	if totalWeight == 0 {
		return nil
	}

	agg := &Aggregate{Score: vote / totalWeight}
	switch {
	case agg.Score > 0.08:
		agg.Direction = models.DirectionBuy
	case agg.Score < -0.08:
		agg.Direction = models.DirectionSell
	default:
		agg.Direction = models.DirectionNeutral
	}

	var strSum, confSum, wSum float64
	for tf, a := range byTF {
		if a == nil {
			continue
		}
		agg.TimeframesUsed++
		if a.Bias == agg.Direction && agg.Direction != models.DirectionNeutral {
			agg.Agreeing++
		} else if a.Bias != models.DirectionNeutral && a.Bias != agg.Direction {
			agg.Disagreeing++
		}
		w := timeframeWeights[tf]
		if w == 0 {
			w = 1.0
		}
		strSum += w * a.Strength
		confSum += w * a.Confidence
		wSum += w
	}
	agg.Strength = math.Min(1, strSum/wSum)
	agg.Confidence = math.Min(1, confSum/wSum)

	// disagreement across timeframes discounts confidence
	if agg.TimeframesUsed > 0 && agg.Disagreeing > 0 {
		agg.Confidence *= 1 - 0.5*float64(agg.Disagreeing)/float64(agg.TimeframesUsed)
	}
	return agg
}
