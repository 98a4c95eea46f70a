package guards

import (
	"context"
	"time"

	domsvc "FxBridge/internal/domain/service"
	"FxBridge/internal/marketdata"
)

// Level grades a guard verdict.
type Level string

const (
	LevelNormal   Level = "normal"
	LevelCaution  Level = "caution"
	LevelDegraded Level = "degraded"
	LevelBlocked  Level = "blocked"
)

// Verdict is one guard's pass/fail plus severity.
type Verdict struct {
	Guard        string `json:"guard"`
	Level        Level  `json:"level"`
	PauseTrading bool   `json:"pauseTrading"`
	BlockTrading bool   `json:"blockTrading"`
	Reason       string `json:"reason,omitempty"`
}

// Config holds the guard thresholds.
type Config struct {
	NewsImpactMin      int
	NewsBlackoutBefore time.Duration
	NewsBlackoutAfter  time.Duration
	NewsScanWindow     time.Duration

	SessionStrict bool

	MaxSpreadPips  float64
	MinFreshQuotes int
}

// DefaultConfig returns guard defaults.
func DefaultConfig() Config {
	return Config{
		NewsImpactMin:      70,
		NewsBlackoutBefore: 30 * time.Minute,
		NewsBlackoutAfter:  30 * time.Minute,
		NewsScanWindow:     24 * time.Hour,
		SessionStrict:      false,
		MaxSpreadPips:      3.0,
		MinFreshQuotes:     1,
	}
}

// Engine evaluates the independent execution guards.
type Engine struct {
	cfg      Config
	store    *marketdata.Store
	quality  domsvc.DataQualityReporter
	learning domsvc.LearningState
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a guard engine. Collaborators may be the no-op defaults.
func NewEngine(cfg Config, store *marketdata.Store, quality domsvc.DataQualityReporter, learning domsvc.LearningState, opts ...Option) *Engine {
	if cfg.NewsImpactMin <= 0 {
		cfg.NewsImpactMin = DefaultConfig().NewsImpactMin
	}
	if cfg.NewsBlackoutBefore <= 0 {
		cfg.NewsBlackoutBefore = DefaultConfig().NewsBlackoutBefore
	}
	if cfg.NewsBlackoutAfter <= 0 {
		cfg.NewsBlackoutAfter = DefaultConfig().NewsBlackoutAfter
	}
	if cfg.NewsScanWindow <= 0 {
		cfg.NewsScanWindow = DefaultConfig().NewsScanWindow
	}
	if cfg.MaxSpreadPips <= 0 {
		cfg.MaxSpreadPips = DefaultConfig().MaxSpreadPips
	}
	if cfg.MinFreshQuotes <= 0 {
		cfg.MinFreshQuotes = DefaultConfig().MinFreshQuotes
	}
	if quality == nil {
		quality = domsvc.NopDataQualityReporter{}
	}
	if learning == nil {
		learning = domsvc.NewLossStreakLearning(0)
	}
	e := &Engine{cfg: cfg, store: store, quality: quality, learning: learning, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BuildNewsGuard scans the broker's recent news for qualifying items. Trading
// pauses when the nearest qualifying item is within the blackout window in
// either direction of now; an upcoming item outside the window downgrades to
// caution.
func (e *Engine) BuildNewsGuard(broker string) Verdict {
	v := Verdict{Guard: "news", Level: LevelNormal}
	now := e.now()
	upcoming := false
	for _, item := range e.store.News(broker, 0) {
		if item.Impact < e.cfg.NewsImpactMin {
			continue
		}
		delta := item.Time.Sub(now)
		if delta > e.cfg.NewsScanWindow || delta < -e.cfg.NewsScanWindow {
			continue
		}
		if delta >= -e.cfg.NewsBlackoutAfter && delta <= e.cfg.NewsBlackoutBefore {
			v.Level = LevelBlocked
			v.PauseTrading = true
			v.Reason = "high-impact news within blackout window: " + item.Title
			return v
		}
		if delta > 0 {
			upcoming = true
		}
	}
	if upcoming {
		v.Level = LevelCaution
		v.Reason = "high-impact news upcoming"
	}
	return v
}

// BuildDataQualityGuard asks the reporter about each active symbol. Any
// critical or circuit-broken symbol blocks trading; degraded symbols
// downgrade the level.
func (e *Engine) BuildDataQualityGuard(ctx context.Context, broker string, activeSymbols []string) Verdict {
	v := Verdict{Guard: "dataQuality", Level: LevelNormal}
	for _, sym := range activeSymbols {
		report, err := e.quality.Report(ctx, broker, sym)
		if err != nil {
			// a failing reporter must not block trading by itself
			continue
		}
		if report.Level == domsvc.QualityCritical || report.CircuitBreak {
			v.Level = LevelBlocked
			v.BlockTrading = true
			v.Reason = "critical data quality: " + sym
			return v
		}
		if report.Level == domsvc.QualityDegraded && v.Level == LevelNormal {
			v.Level = LevelDegraded
			v.Reason = "degraded data quality: " + sym
		}
	}
	return v
}

// BuildSessionGuard checks the preferred trading window for an asset class.
// Strict mode pauses outside the window; otherwise it only flags caution.
func (e *Engine) BuildSessionGuard(symbol string) Verdict {
	v := Verdict{Guard: "session", Level: LevelNormal}
	ctx := SessionContext(symbol, e.now())
	if ctx.InPreferredWindow {
		return v
	}
	if e.cfg.SessionStrict {
		v.Level = LevelBlocked
		v.PauseTrading = true
		v.Reason = "outside preferred session: " + ctx.Name
		return v
	}
	v.Level = LevelCaution
	v.Reason = "outside preferred session: " + ctx.Name
	return v
}

// BuildLiquidityGuard averages spreads across the broker's fresh quotes and
// pauses when the average exceeds the configured maximum.
func (e *Engine) BuildLiquidityGuard(broker string) Verdict {
	v := Verdict{Guard: "liquidity", Level: LevelNormal}
	quotes := e.store.Quotes(broker)
	var sum float64
	n := 0
	for _, q := range quotes {
		if pips := q.SpreadPips(); pips > 0 {
			sum += pips
			n++
		}
	}
	if n < e.cfg.MinFreshQuotes {
		return v
	}
	avg := sum / float64(n)
	if avg > e.cfg.MaxSpreadPips {
		v.Level = LevelBlocked
		v.PauseTrading = true
		v.Reason = "average spread above limit"
	}
	return v
}

// Report bundles the composed verdicts for a response payload.
type Report struct {
	Enabled   bool      `json:"enabled"`
	BlockedBy string    `json:"blockedBy,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Verdicts  []Verdict `json:"verdicts"`
}

// ShouldEnableTrading composes the guards in priority order, short-circuiting
// on the first blocking reason: learning kill switch, data quality, news,
// session, liquidity.
func (e *Engine) ShouldEnableTrading(ctx context.Context, broker, symbol string, activeSymbols []string) Report {
	if halted, reason := e.learning.TradingHalted(broker); halted {
		return Report{
			Enabled:   false,
			BlockedBy: "learning",
			Reason:    reason,
			Verdicts: []Verdict{{
				Guard: "learning", Level: LevelBlocked, BlockTrading: true, Reason: reason,
			}},
		}
	}

	verdicts := make([]Verdict, 0, 4)
	for _, v := range []Verdict{
		e.BuildDataQualityGuard(ctx, broker, activeSymbols),
		e.BuildNewsGuard(broker),
		e.BuildSessionGuard(symbol),
		e.BuildLiquidityGuard(broker),
	} {
		verdicts = append(verdicts, v)
		if v.BlockTrading || v.PauseTrading {
			return Report{Enabled: false, BlockedBy: v.Guard, Reason: v.Reason, Verdicts: verdicts}
		}
	}
	return Report{Enabled: true, Verdicts: verdicts}
}
