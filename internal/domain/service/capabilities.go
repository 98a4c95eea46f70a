package service

import (
	"context"

	"FxBridge/internal/domain/models"
)

// TradeQualityEvaluator can veto a gated-valid signal. Implementations are
// best-effort collaborators; the core always has one to call.
type TradeQualityEvaluator interface {
	Evaluate(ctx context.Context, sig *models.Signal) (QualityVerdict, error)
}

// QualityVerdict is the evaluator's judgement of a candidate trade.
type QualityVerdict struct {
	Approved bool    `json:"approved"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason,omitempty"`
}

// DataQualityReporter reports per-symbol feed health.
type DataQualityReporter interface {
	Report(ctx context.Context, broker, symbol string) (DataQualityReport, error)
}

// DataQualityLevel grades a symbol's feed.
type DataQualityLevel string

const (
	QualityOK       DataQualityLevel = "ok"
	QualityDegraded DataQualityLevel = "degraded"
	QualityCritical DataQualityLevel = "critical"
)

// DataQualityReport is the per-symbol verdict.
type DataQualityReport struct {
	Level        DataQualityLevel `json:"level"`
	CircuitBreak bool             `json:"circuitBreak"`
	Detail       string           `json:"detail,omitempty"`
}

// NewsClassifier scores a headline's impact when the feed does not carry one.
type NewsClassifier interface {
	Classify(ctx context.Context, item *models.NewsItem) (impact int, err error)
}

// LearningState supplies learning-driven risk adjustments and the
// consecutive-loss kill switch.
type LearningState interface {
	TradingHalted(broker string) (halted bool, reason string)
	RiskMultiplier(broker string) float64
	StopLossMultiplier(broker string) float64
	RecordOutcome(broker string, profit float64)
}
