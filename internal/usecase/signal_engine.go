package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"FxBridge/internal/analysis"
	"FxBridge/internal/domain/models"
	domsvc "FxBridge/internal/domain/service"
	"FxBridge/internal/marketdata"
	"FxBridge/pkg/logger"
)

// EngineConfig tunes signal computation. Zero values fall back to defaults.
type EngineConfig struct {
	Timeframes       []models.Timeframe
	BarsPerTimeframe int
	MinBars          int
	SignalTTL        time.Duration
	MinConfidence    float64
	MinStrength      float64
	ReadinessMin     int

	BaseRiskPercent float64
	StopATRMult     float64
	TargetATRMult   float64
}

func (c *EngineConfig) fillDefaults() {
	if len(c.Timeframes) == 0 {
		c.Timeframes = []models.Timeframe{
			models.TFM5, models.TFM15, models.TFM30,
			models.TFH1, models.TFH4, models.TFD1,
		}
	}
	if c.BarsPerTimeframe <= 0 {
		c.BarsPerTimeframe = 120
	}
	if c.MinBars <= 0 {
		c.MinBars = 20
	}
	if c.SignalTTL <= 0 {
		c.SignalTTL = 5 * time.Minute
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.55
	}
	if c.MinStrength <= 0 {
		c.MinStrength = 0.5
	}
	if c.ReadinessMin <= 0 {
		c.ReadinessMin = 13
	}
	if c.BaseRiskPercent <= 0 {
		c.BaseRiskPercent = 1.0
	}
	if c.StopATRMult <= 0 {
		c.StopATRMult = 1.5
	}
	if c.TargetATRMult <= 0 {
		c.TargetATRMult = 2.5
	}
}

// SignalEngine turns cached market data into Signal artifacts. It is the
// single computation path shared by the realtime pipeline, the execution
// endpoint, and dashboards so they can never disagree.
type SignalEngine struct {
	cfg      EngineConfig
	store    *marketdata.Store
	learning domsvc.LearningState
	log      *logger.Logger
	now      func() time.Time
}

// EngineOption configures a SignalEngine.
type EngineOption func(*SignalEngine)

// WithEngineClock overrides the time source (tests).
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *SignalEngine) { e.now = now }
}

// WithEngineLogger attaches a logger.
func WithEngineLogger(log *logger.Logger) EngineOption {
	return func(e *SignalEngine) { e.log = log }
}

// NewSignalEngine creates the shared signal computation engine.
func NewSignalEngine(cfg EngineConfig, store *marketdata.Store, learning domsvc.LearningState, opts ...EngineOption) *SignalEngine {
	cfg.fillDefaults()
	if learning == nil {
		learning = domsvc.NewLossStreakLearning(0)
	}
	e := &SignalEngine{cfg: cfg, store: store, learning: learning, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// referencePrice finds a usable price for the symbol: live quote, then
// snapshot-embedded quote, then the latest bar close. ok=false means the
// caller should solicit a snapshot from the EA.
func (e *SignalEngine) referencePrice(broker, symbol string) (price float64, quote *models.Quote, ok bool) {
	if q := e.store.Quote(broker, symbol); q != nil {
		return q.Price(), q, true
	}
	if snap := e.store.Snapshot(broker, symbol); snap != nil && snap.Quote != nil {
		return snap.Quote.Price(), snap.Quote, true
	}
	for _, tf := range e.cfg.Timeframes {
		if bars := e.store.Candles(broker, symbol, tf, 1); len(bars) > 0 {
			return bars[0].Close, nil, true
		}
	}
	return 0, nil, false
}

// GenerateSignal computes the Signal for one (broker, symbol). A nil signal
// with a nil error means there is not enough data yet; a snapshot request has
// been queued for the EA in that case.
func (e *SignalEngine) GenerateSignal(ctx context.Context, broker, symbol string) (*models.Signal, error) {
	if resolved, ok := e.store.BestSymbolMatch(broker, symbol); ok {
		symbol = resolved
	}
	e.store.MarkRelevant(broker, symbol)

	price, quote, ok := e.referencePrice(broker, symbol)
	if !ok || price <= 0 {
		e.store.RequestSnapshot(broker, symbol, 0)
		return nil, nil
	}

	byTF := e.store.MultiTimeframeAnalysis(broker, symbol, e.cfg.Timeframes, e.cfg.BarsPerTimeframe)
	if len(byTF) == 0 {
		e.store.RequestSnapshot(broker, symbol, 0)
		return nil, nil
	}
	agg := analysis.AggregateAnalyses(byTF)

	primary := e.primaryAnalysis(byTF)
	now := e.now()

	sig := &models.Signal{
		Broker:     broker,
		Pair:       symbol,
		Timeframe:  primary.Timeframe,
		Timestamp:  now,
		ExpiresAt:  now.Add(e.cfg.SignalTTL),
		BarTime:    primary.LastBar,
		Direction:  agg.Direction,
		Strength:   agg.Strength,
		Confidence: agg.Confidence,
		Status:     "active",
	}

	sig.Components = models.SignalComponents{
		Technical:  signedScore(primary.Bias, primary.Strength),
		Confluence: agg.Score,
		News:       e.newsComponent(broker, symbol, now),
	}

	readiness := e.buildReadiness(broker, symbol, quote, primary, byTF, agg)
	sig.Readiness = readiness
	if readiness.LayersTotal > 0 {
		sig.Components.Layered = float64(readiness.LayersPassed) / float64(readiness.LayersTotal)
	}
	sig.FinalScore = finalScore(sig.Components)

	sig.ConfluenceScore = math.Abs(agg.Score)
	sig.ConfluencePassed = agg.Agreeing > agg.Disagreeing && agg.TimeframesUsed >= 2

	e.attachPlans(sig, primary, price)
	e.validate(sig, readiness)
	e.explain(sig, primary, agg)
	return sig, nil
}

// primaryAnalysis picks the timeframe whose analysis drives entry levels:
// M15 when present, otherwise the lowest timeframe with data.
func (e *SignalEngine) primaryAnalysis(byTF map[models.Timeframe]*analysis.Analysis) *analysis.Analysis {
	if a, ok := byTF[models.TFM15]; ok && a != nil {
		return a
	}
	var best *analysis.Analysis
	var bestDur time.Duration
	for tf, a := range byTF {
		if a == nil {
			continue
		}
		d := models.TimeframeDuration(tf)
		if best == nil || d < bestDur {
			best, bestDur = a, d
		}
	}
	return best
}

// newsComponent discounts the score when a high-impact item is near.
func (e *SignalEngine) newsComponent(broker, symbol string, now time.Time) float64 {
	base := symbol
	if len(base) >= 6 {
		base = base[:3] + "," + base[3:6]
	}
	for _, item := range e.store.News(broker, 50) {
		if item.Impact < 70 {
			continue
		}
		if item.Currency != "" && !strings.Contains(base, strings.ToUpper(item.Currency)) {
			continue
		}
		if d := item.Time.Sub(now); d > -time.Hour && d < time.Hour {
			return -0.5
		}
	}
	return 0
}

func (e *SignalEngine) attachPlans(sig *models.Signal, primary *analysis.Analysis, price float64) {
	atr := primary.ATR
	if atr <= 0 {
		atr = price * 0.001
	}
	stopMult := e.cfg.StopATRMult * e.learning.StopLossMultiplier(sig.Broker)
	entry := models.EntryPlan{Price: price}
	switch sig.Direction {
	case models.DirectionBuy:
		entry.StopLoss = price - atr*stopMult
		entry.TakeProfit = price + atr*e.cfg.TargetATRMult
	case models.DirectionSell:
		entry.StopLoss = price + atr*stopMult
		entry.TakeProfit = price - atr*e.cfg.TargetATRMult
	}
	sig.Entry = entry

	regime := volatilityRegime(atr, price)
	risk := models.RiskPlan{
		RiskPercent:      e.cfg.BaseRiskPercent * e.learning.RiskMultiplier(sig.Broker),
		RiskMultiplier:   e.learning.RiskMultiplier(sig.Broker),
		VolatilityRegime: regime,
	}
	if entry.StopLoss > 0 && entry.TakeProfit > 0 {
		riskDist := math.Abs(price - entry.StopLoss)
		if riskDist > 0 {
			risk.RewardRisk = math.Abs(entry.TakeProfit-price) / riskDist
		}
	}
	sig.Risk = risk
}

// validate fills the validity block and the trade decision.
func (e *SignalEngine) validate(sig *models.Signal, readiness *models.Readiness) {
	checks := map[string]bool{
		"hasDirection":    sig.Direction != models.DirectionNeutral,
		"confidenceFloor": sig.Confidence >= e.cfg.MinConfidence,
		"strengthFloor":   sig.Strength >= e.cfg.MinStrength,
		"confluence":      sig.ConfluencePassed,
		"readiness":       readiness.Ready,
		"notExpired":      true,
	}
	valid := true
	reason := ""
	for name, ok := range checks {
		if !ok {
			valid = false
			if reason == "" {
				reason = "failed check: " + name
			}
		}
	}
	decision := models.TradeDecision{State: models.DecisionBlocked, Reason: reason}
	switch {
	case valid:
		decision = models.TradeDecision{State: models.DecisionEnter}
	case sig.Direction != models.DirectionNeutral:
		decision = models.TradeDecision{State: models.DecisionWaitMonitor, Reason: reason}
	}
	sig.Validity = models.Validity{
		IsValid:  valid,
		Checks:   checks,
		Reason:   reason,
		Decision: decision,
	}
}

func (e *SignalEngine) explain(sig *models.Signal, primary *analysis.Analysis, agg *analysis.Aggregate) {
	var notes []string
	notes = append(notes, fmt.Sprintf("aggregate vote %.2f over %d timeframes (%d agree, %d disagree)",
		agg.Score, agg.TimeframesUsed, agg.Agreeing, agg.Disagreeing))
	notes = append(notes, fmt.Sprintf("%s regime on %s, trend %.2f%%, RSI %.1f",
		primary.Regime, primary.Timeframe, primary.TrendPct, primary.RSI))
	if primary.SMC.LiquiditySweep != nil {
		notes = append(notes, "liquidity sweep: "+primary.SMC.LiquiditySweep.Type)
	}
	if primary.SMC.LiquidityTrap != nil {
		notes = append(notes, "possible liquidity trap, confidence discounted")
	}
	sig.Explainability = notes
	sig.Reasoning = fmt.Sprintf("%s %s (strength %.2f, confidence %.2f): %s",
		sig.Direction, sig.Pair, sig.Strength, sig.Confidence, notes[0])
}

func signedScore(bias models.Direction, strength float64) float64 {
	switch bias {
	case models.DirectionBuy:
		return strength
	case models.DirectionSell:
		return -strength
	default:
		return 0
	}
}

func finalScore(c models.SignalComponents) float64 {
	score := 0.45*c.Technical + 0.30*c.Confluence + 0.15*c.Layered + 0.10*c.News
	if score > 1 {
		return 1
	}
	if score < -1 {
		return -1
	}
	return score
}

func volatilityRegime(atr, price float64) string {
	if price <= 0 {
		return "normal"
	}
	pct := atr / price * 100
	switch {
	case pct >= 0.30:
		return "high"
	case pct <= 0.05:
		return "low"
	default:
		return "normal"
	}
}
