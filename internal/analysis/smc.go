package analysis

import "math"

// Sweep types.
const (
	SweepHigh = "sweep_high"
	SweepLow  = "sweep_low"
)

// Sweep is a liquidity sweep: price breaching the prior N-bar extreme and
// closing back inside, with a dominant wick.
type Sweep struct {
	Type        string  `json:"type"` // sweep_high | sweep_low
	Level       float64 `json:"level"`
	WickToBody  float64 `json:"wickToBody"`
	WickToRange float64 `json:"wickToRange"`
}

// OrderBlock is the candle preceding an impulsive move, a supply/demand zone.
type OrderBlock struct {
	Type        string  `json:"type"` // bullish | bearish
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	DistanceATR float64 `json:"distanceATR"`
}

// VolumeSpike marks volume far above its rolling average.
type VolumeSpike struct {
	ZScore float64 `json:"zScore"`
	Ratio  float64 `json:"ratio"`
}

// VolumeImbalance splits recent volume into buy and sell pressure by candle
// direction.
type VolumeImbalance struct {
	BuyPressure  float64 `json:"buyPressure"`
	SellPressure float64 `json:"sellPressure"`
}

// FairValueGap is a three-candle price imbalance with fill tracking.
type FairValueGap struct {
	Type      string  `json:"type"` // bullish | bearish
	Top       float64 `json:"top"`
	Bottom    float64 `json:"bottom"`
	FilledPct float64 `json:"filledPct"`
}

// Trap is a liquidity sweep whose follow-through is weak and volume
// unconfirmed; entries in the sweep's direction tend to be trapped.
type Trap struct {
	SweepType     string  `json:"sweepType"`
	FollowThrough float64 `json:"followThrough"`
}

// SMC bundles the smart-money-concept reads.
type SMC struct {
	LiquiditySweep  *Sweep          `json:"liquiditySweep,omitempty"`
	OrderBlocks     []OrderBlock    `json:"orderBlocks,omitempty"`
	VolumeSpike     *VolumeSpike    `json:"volumeSpike,omitempty"`
	VolumeImbalance VolumeImbalance `json:"volumeImbalance"`
	FairValueGaps   []FairValueGap  `json:"fairValueGaps,omitempty"`
	LiquidityTrap   *Trap           `json:"liquidityTrap,omitempty"`
}

func analyzeSMC(bars []barView, atrValue float64, th Thresholds) SMC {
	smc := SMC{
		VolumeImbalance: volumeImbalance(bars, th.VolumeWindow),
	}
	smc.LiquiditySweep = detectSweep(bars, th)
	smc.OrderBlocks = detectOrderBlocks(bars, atrValue, th)
	smc.VolumeSpike = detectVolumeSpike(bars, th)
	smc.FairValueGaps = detectFVGs(bars, atrValue, th)
	smc.LiquidityTrap = detectTrap(bars, smc.LiquiditySweep, smc.VolumeSpike, th)
	return smc
}

// detectSweep inspects the latest bar against the prior lookback extremes.
func detectSweep(bars []barView, th Thresholds) *Sweep {
	if len(bars) < th.SweepLookback+1 {
		return nil
	}
	last := bars[len(bars)-1]
	prior := bars[len(bars)-1-th.SweepLookback : len(bars)-1]

	priorHigh, priorLow := prior[0].High, prior[0].Low
	for _, b := range prior[1:] {
		if b.High > priorHigh {
			priorHigh = b.High
		}
		if b.Low < priorLow {
			priorLow = b.Low
		}
	}

	body := math.Abs(last.Close - last.Open)
	full := last.High - last.Low
	if full <= 0 {
		return nil
	}
	if body <= 0 {
		body = full * 0.01
	}

	// high sweep: wick above prior high, close back below it
	if last.High > priorHigh && last.Close < priorHigh {
		wick := last.High - math.Max(last.Open, last.Close)
		wtb := wick / body
		wtr := wick / full
		if wtb >= th.SweepWickToBodyMin && wtr >= th.SweepWickToRangeMin {
			return &Sweep{Type: SweepHigh, Level: priorHigh, WickToBody: wtb, WickToRange: wtr}
		}
	}
	// low sweep: wick below prior low, close back above it
	if last.Low < priorLow && last.Close > priorLow {
		wick := math.Min(last.Open, last.Close) - last.Low
		wtb := wick / body
		wtr := wick / full
		if wtb >= th.SweepWickToBodyMin && wtr >= th.SweepWickToRangeMin {
			return &Sweep{Type: SweepLow, Level: priorLow, WickToBody: wtb, WickToRange: wtr}
		}
	}
	return nil
}

// detectOrderBlocks finds impulse candles preceded by an opposite candle,
// keeping zones within reach of the current price.
func detectOrderBlocks(bars []barView, atrValue float64, th Thresholds) []OrderBlock {
	if atrValue <= 0 || len(bars) < 3 {
		return nil
	}
	price := bars[len(bars)-1].Close
	var blocks []OrderBlock
	for i := len(bars) - 2; i >= 1 && len(blocks) < th.OrderBlockMaxCount; i-- {
		impulse := bars[i]
		prev := bars[i-1]
		body := math.Abs(impulse.Close - impulse.Open)
		if body < atrValue*th.OrderBlockImpulseATR {
			continue
		}
		bullImpulse := impulse.Close > impulse.Open
		prevBear := prev.Close < prev.Open
		// an opposite-direction candle before the impulse is the block
		if bullImpulse != prevBear {
			continue
		}
		mid := (prev.High + prev.Low) / 2
		dist := math.Abs(price-mid) / atrValue
		if dist > th.OrderBlockMaxDistATR {
			continue
		}
		typ := "bullish"
		if !bullImpulse {
			typ = "bearish"
		}
		blocks = append(blocks, OrderBlock{Type: typ, High: prev.High, Low: prev.Low, DistanceATR: dist})
	}
	return blocks
}

func detectVolumeSpike(bars []barView, th Thresholds) *VolumeSpike {
	window := th.VolumeWindow
	if len(bars) < window+1 {
		return nil
	}
	recent := bars[len(bars)-1-window : len(bars)-1]
	mean, count := 0.0, 0
	for _, b := range recent {
		if b.Volume > 0 {
			mean += b.Volume
			count++
		}
	}
	if count < window/2 {
		return nil
	}
	mean /= float64(count)
	if mean <= 0 {
		return nil
	}
	varsum := 0.0
	for _, b := range recent {
		if b.Volume > 0 {
			varsum += (b.Volume - mean) * (b.Volume - mean)
		}
	}
	stdev := math.Sqrt(varsum / float64(count))
	last := bars[len(bars)-1].Volume
	ratio := last / mean
	z := 0.0
	if stdev > 0 {
		z = (last - mean) / stdev
	}
	if z >= th.VolumeSpikeZ || ratio >= th.VolumeSpikeRatio {
		return &VolumeSpike{ZScore: z, Ratio: ratio}
	}
	return nil
}

func volumeImbalance(bars []barView, window int) VolumeImbalance {
	start := len(bars) - window
	if start < 0 {
		start = 0
	}
	var vi VolumeImbalance
	for _, b := range bars[start:] {
		if b.Close >= b.Open {
			vi.BuyPressure += b.Volume
		} else {
			vi.SellPressure += b.Volume
		}
	}
	return vi
}

// detectFVGs finds three-candle gaps and how far later price filled them.
func detectFVGs(bars []barView, atrValue float64, th Thresholds) []FairValueGap {
	if atrValue <= 0 || len(bars) < 3 {
		return nil
	}
	var gaps []FairValueGap
	for i := 2; i < len(bars) && len(gaps) < th.FVGMaxCount; i++ {
		a, c := bars[i-2], bars[i]
		// bullish gap: candle C's low above candle A's high
		if c.Low > a.High && c.Low-a.High >= atrValue*th.FVGMinGapATR {
			gaps = append(gaps, fvgWithFill("bullish", c.Low, a.High, bars[i+1:]))
		}
		// bearish gap: candle C's high below candle A's low
		if c.High < a.Low && a.Low-c.High >= atrValue*th.FVGMinGapATR {
			gaps = append(gaps, fvgWithFill("bearish", a.Low, c.High, bars[i+1:]))
		}
	}
	return gaps
}

func fvgWithFill(typ string, top, bottom float64, later []barView) FairValueGap {
	gap := FairValueGap{Type: typ, Top: top, Bottom: bottom}
	height := top - bottom
	if height <= 0 {
		return gap
	}
	deepest := 0.0
	for _, b := range later {
		var fill float64
		if typ == "bullish" {
			// fills from the top down as price trades back into the gap
			fill = top - b.Low
		} else {
			fill = b.High - bottom
		}
		if fill > deepest {
			deepest = fill
		}
	}
	pct := deepest / height * 100
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}
	gap.FilledPct = pct
	return gap
}

// detectTrap flags a sweep whose follow-through is weak and whose volume is
// unconfirmed.
func detectTrap(bars []barView, sweep *Sweep, spike *VolumeSpike, th Thresholds) *Trap {
	if sweep == nil || spike != nil || len(bars) < 2 {
		return nil
	}
	last := bars[len(bars)-1]
	full := last.High - last.Low
	if full <= 0 {
		return nil
	}
	var follow float64
	if sweep.Type == SweepHigh {
		// after sweeping the highs, strong follow-through closes near the low
		follow = (last.Close - last.Low) / full
	} else {
		follow = (last.High - last.Close) / full
	}
	if follow <= th.TrapFollowThroughMax {
		return nil
	}
	return &Trap{SweepType: sweep.Type, FollowThrough: follow}
}
