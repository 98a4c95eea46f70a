package usecase

import (
	"context"
	"time"

	"FxBridge/internal/domain/models"
	domsvc "FxBridge/internal/domain/service"
	"FxBridge/internal/guards"
	"FxBridge/internal/marketdata"
	"FxBridge/pkg/logger"
)

// ExecutionConfig tunes the EA-facing execution gate.
type ExecutionConfig struct {
	MaxQuoteAge      time.Duration
	SnapshotMaxAge   time.Duration
	MinBars          int
	RequireReadiness bool
	MinConfidence    float64
	MinStrength      float64
}

func (c *ExecutionConfig) fillDefaults() {
	if c.MaxQuoteAge <= 0 {
		c.MaxQuoteAge = 90 * time.Second
	}
	if c.SnapshotMaxAge <= 0 {
		c.SnapshotMaxAge = 5 * time.Minute
	}
	if c.MinBars <= 0 {
		c.MinBars = 20
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.55
	}
	if c.MinStrength <= 0 {
		c.MinStrength = 0.5
	}
}

// ExecutionDetail explains the execution decision to the EA.
type ExecutionDetail struct {
	Gates          map[string]bool        `json:"gates"`
	Guards         *guards.Report         `json:"guards,omitempty"`
	ManagementPlan *models.ManagementPlan `json:"managementPlan,omitempty"`
	Quality        *domsvc.QualityVerdict `json:"quality,omitempty"`
}

// ExecutionResponse is always parseable by the EA: rejections are explained
// through gates and message, never through errors.
type ExecutionResponse struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message,omitempty"`
	Signal        *models.Signal   `json:"signal,omitempty"`
	ShouldExecute bool             `json:"shouldExecute"`
	Execution     *ExecutionDetail `json:"execution,omitempty"`
}

// ExecutionService decides whether the EA should act on the current signal.
// Signal computation is delegated to the shared engine so execution and
// dashboards never disagree.
type ExecutionService struct {
	cfg     ExecutionConfig
	store   *marketdata.Store
	engine  *SignalEngine
	guards  *guards.Engine
	quality domsvc.TradeQualityEvaluator
	log     *logger.Logger
	now     func() time.Time
}

// ExecutionOption configures an ExecutionService.
type ExecutionOption func(*ExecutionService)

// WithExecutionClock overrides the time source (tests).
func WithExecutionClock(now func() time.Time) ExecutionOption {
	return func(s *ExecutionService) { s.now = now }
}

// NewExecutionService wires the execution gate.
func NewExecutionService(cfg ExecutionConfig, store *marketdata.Store, engine *SignalEngine, g *guards.Engine, quality domsvc.TradeQualityEvaluator, log *logger.Logger, opts ...ExecutionOption) *ExecutionService {
	cfg.fillDefaults()
	if quality == nil {
		quality = domsvc.NopQualityEvaluator{}
	}
	s := &ExecutionService{
		cfg:     cfg,
		store:   store,
		engine:  engine,
		guards:  g,
		quality: quality,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func pending(message string) *ExecutionResponse {
	return &ExecutionResponse{Success: true, Message: message, ShouldExecute: false}
}

// SignalForExecution runs the full gate chain for one (broker, symbol).
// Data insufficiency is the expected steady state while the EA catches up;
// it is reported as success with shouldExecute=false, never as a failure.
func (s *ExecutionService) SignalForExecution(ctx context.Context, broker, symbol string) *ExecutionResponse {
	if resolved, ok := s.store.BestSymbolMatch(broker, symbol); ok {
		symbol = resolved
	}
	now := s.now()

	quote := s.freshQuote(broker, symbol, now)
	if quote == nil {
		s.store.RequestSnapshot(broker, symbol, 0)
		return pending("waiting for a fresh quote")
	}

	if !s.dataSufficient(broker, symbol) {
		s.store.RequestSnapshot(broker, symbol, 0)
		return pending("waiting for snapshot or bar history")
	}

	sig, err := s.engine.GenerateSignal(ctx, broker, symbol)
	if err != nil {
		if s.log != nil {
			s.log.Error("signal generation failed",
				logger.String("broker", broker), logger.String("symbol", symbol), logger.Error(err))
		}
		return &ExecutionResponse{Success: false, Message: "signal generation failed"}
	}
	if sig == nil {
		return pending("analysis pending, snapshot requested")
	}

	gateOrder := []string{"notExpired", "decisionEnter", "confidenceFloor", "strengthFloor", "tradeValidity"}
	gates := map[string]bool{
		"notExpired":      sig.ExpiresAt.IsZero() || !now.After(sig.ExpiresAt),
		"decisionEnter":   sig.Validity.Decision.State == models.DecisionEnter,
		"confidenceFloor": sig.Confidence >= s.cfg.MinConfidence,
		"strengthFloor":   sig.Strength >= s.cfg.MinStrength,
		"tradeValidity":   sig.Validity.IsValid,
	}
	if s.cfg.RequireReadiness {
		gateOrder = append(gateOrder, "readiness")
		gates["readiness"] = sig.Readiness != nil && sig.Readiness.Ready
	}

	detail := &ExecutionDetail{Gates: gates}
	resp := &ExecutionResponse{Success: true, Signal: sig, Execution: detail}

	// Report the first failed gate in a stable order.
	for _, name := range gateOrder {
		if !gates[name] {
			resp.Message = "gate failed: " + name
			return resp
		}
	}

	guardReport := s.guards.ShouldEnableTrading(ctx, broker, symbol, []string{symbol})
	detail.Guards = &guardReport
	if !guardReport.Enabled {
		resp.Message = "blocked by guard: " + guardReport.BlockedBy
		return resp
	}

	// best-effort: the evaluator can veto, its failure cannot
	if verdict, qerr := s.quality.Evaluate(ctx, sig); qerr == nil {
		detail.Quality = &verdict
		if !verdict.Approved {
			resp.Message = "vetoed by trade quality evaluation"
			return resp
		}
	} else if s.log != nil {
		s.log.Warn("trade quality evaluation failed",
			logger.String("symbol", symbol), logger.Error(qerr))
	}

	detail.ManagementPlan = PlanForSignal(sig)
	resp.ShouldExecute = true
	resp.Message = "signal ready for execution"
	return resp
}

// freshQuote returns a real bid/ask quote newer than the max age, falling
// back to a snapshot-embedded quote.
func (s *ExecutionService) freshQuote(broker, symbol string, now time.Time) *models.Quote {
	q := s.store.Quote(broker, symbol)
	if q == nil {
		if snap := s.store.Snapshot(broker, symbol); snap != nil {
			q = snap.Quote
		}
	}
	if q == nil || q.Bid <= 0 || q.Ask <= 0 {
		return nil
	}
	if now.Sub(q.Timestamp) > s.cfg.MaxQuoteAge {
		return nil
	}
	return q
}

// dataSufficient checks for a fresh snapshot or enough bar history on any
// analysis timeframe.
func (s *ExecutionService) dataSufficient(broker, symbol string) bool {
	if snap := s.store.SnapshotFresh(broker, symbol, s.cfg.SnapshotMaxAge); snap != nil {
		return true
	}
	for _, tf := range s.engine.cfg.Timeframes {
		if s.store.BarCount(broker, symbol, tf) >= s.cfg.MinBars {
			return true
		}
	}
	return false
}
