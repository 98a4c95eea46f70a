package analysis

import "math"

// atr computes the Average True Range over the last period bars.
// Bars are ascending by time.
func atr(bars []barView, period int) float64 {
	if len(bars) < 2 {
		return 0
	}
	start := len(bars) - period
	if start < 1 {
		start = 1
	}
	sum := 0.0
	n := 0
	for i := start; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1])
		sum += tr
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func trueRange(cur, prev barView) float64 {
	hl := cur.High - cur.Low
	hc := math.Abs(cur.High - prev.Close)
	lc := math.Abs(cur.Low - prev.Close)
	return math.Max(hl, math.Max(hc, lc))
}

// rsi computes Wilder's RSI over the last period closes.
func rsi(bars []barView, period int) float64 {
	if len(bars) < period+1 {
		period = len(bars) - 1
	}
	if period < 2 {
		return 50
	}
	gains, losses := 0.0, 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		d := bars[i].Close - bars[i-1].Close
		if d > 0 {
			gains += d
		} else {
			losses -= d
		}
	}
	if gains+losses == 0 {
		return 50
	}
	if losses == 0 {
		return 100
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - 100/(1+rs)
}

// returnStdev is the standard deviation of simple close-to-close returns.
func returnStdev(bars []barView, window int) float64 {
	if len(bars) < 3 {
		return 0
	}
	start := len(bars) - window
	if start < 1 {
		start = 1
	}
	rets := make([]float64, 0, len(bars)-start)
	for i := start; i < len(bars); i++ {
		if bars[i-1].Close <= 0 {
			continue
		}
		rets = append(rets, bars[i].Close/bars[i-1].Close-1)
	}
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	varsum := 0.0
	for _, r := range rets {
		varsum += (r - mean) * (r - mean)
	}
	return math.Sqrt(varsum / float64(len(rets)-1))
}

// Regression is the least-squares fit over recent closes.
type Regression struct {
	Slope float64 `json:"slope"`
	R2    float64 `json:"r2"`
}

// linearRegression fits close = a + slope*i over up to maxPoints recent bars.
func linearRegression(bars []barView, maxPoints int) Regression {
	n := len(bars)
	if n > maxPoints {
		bars = bars[n-maxPoints:]
		n = maxPoints
	}
	if n < 3 {
		return Regression{}
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, b := range bars {
		x := float64(i)
		sumX += x
		sumY += b.Close
		sumXY += x * b.Close
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return Regression{}
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	meanY := sumY / fn
	var ssTot, ssRes float64
	for i, b := range bars {
		pred := intercept + slope*float64(i)
		ssRes += (b.Close - pred) * (b.Close - pred)
		ssTot += (b.Close - meanY) * (b.Close - meanY)
	}
	r2 := 0.0
	if ssTot > 0 {
		r2 = 1 - ssRes/ssTot
	}
	return Regression{Slope: slope, R2: r2}
}
