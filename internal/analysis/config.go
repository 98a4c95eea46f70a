package analysis

// Thresholds are the named tuning constants for the candle analyzer. They
// are values, not env lookups: construct once, pass in Options, test freely.
type Thresholds struct {
	// trend / regime
	TrendLookback     int     // bars for trend percentage
	RegressionPoints  int     // max points for the linear regression
	RegimeR2Min       float64 // R² at or above which price action counts as trending
	RegimeTrendPctMin float64 // minimum |trend %| for the trend regime

	// momentum
	ATRPeriod int
	RSIPeriod int

	// structure
	StructureLookback int

	// liquidity sweeps
	SweepLookback       int     // prior bars whose high/low define the liquidity level
	SweepWickToBodyMin  float64 // wick must be at least this many times the body
	SweepWickToRangeMin float64 // wick share of the candle's full range

	// order blocks
	OrderBlockImpulseATR  float64 // impulse body measured in ATRs
	OrderBlockMaxDistATR  float64 // max distance from current price, in ATRs
	OrderBlockMaxCount    int

	// volume
	VolumeWindow     int
	VolumeSpikeZ     float64
	VolumeSpikeRatio float64

	// fair value gaps
	FVGMinGapATR float64
	FVGMaxCount  int

	// liquidity trap
	TrapFollowThroughMax float64 // weak follow-through as a share of sweep range
}

// DefaultThresholds returns the production tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TrendLookback:        20,
		RegressionPoints:     30,
		RegimeR2Min:          0.62,
		RegimeTrendPctMin:    0.18,
		ATRPeriod:            14,
		RSIPeriod:            14,
		StructureLookback:    10,
		SweepLookback:        20,
		SweepWickToBodyMin:   1.4,
		SweepWickToRangeMin:  0.35,
		OrderBlockImpulseATR: 1.2,
		OrderBlockMaxDistATR: 3.0,
		OrderBlockMaxCount:   3,
		VolumeWindow:         20,
		VolumeSpikeZ:         2.0,
		VolumeSpikeRatio:     1.8,
		FVGMinGapATR:         0.15,
		FVGMaxCount:          5,
		TrapFollowThroughMax: 0.3,
	}
}
