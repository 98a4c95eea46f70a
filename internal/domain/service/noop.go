package service

import (
	"context"
	"sync"

	"FxBridge/internal/domain/models"
)

// NopQualityEvaluator approves everything. Used when no evaluator service is
// configured so callers never need presence checks.
type NopQualityEvaluator struct{}

func (NopQualityEvaluator) Evaluate(context.Context, *models.Signal) (QualityVerdict, error) {
	return QualityVerdict{Approved: true, Score: 1}, nil
}

// NopDataQualityReporter reports every symbol healthy.
type NopDataQualityReporter struct{}

func (NopDataQualityReporter) Report(context.Context, string, string) (DataQualityReport, error) {
	return DataQualityReport{Level: QualityOK}, nil
}

// NopNewsClassifier keeps the feed-reported impact.
type NopNewsClassifier struct{}

func (NopNewsClassifier) Classify(_ context.Context, item *models.NewsItem) (int, error) {
	return item.Impact, nil
}

// LossStreakLearning is the default LearningState: it halts trading for a
// broker after maxConsecutiveLosses losing trades and resets on a winner.
type LossStreakLearning struct {
	mu       sync.Mutex
	maxLoss  int
	streaks  map[string]int
	riskMult float64
	slMult   float64
}

func NewLossStreakLearning(maxConsecutiveLosses int) *LossStreakLearning {
	if maxConsecutiveLosses <= 0 {
		maxConsecutiveLosses = 3
	}
	return &LossStreakLearning{
		maxLoss:  maxConsecutiveLosses,
		streaks:  make(map[string]int),
		riskMult: 1.0,
		slMult:   1.0,
	}
}

func (l *LossStreakLearning) TradingHalted(broker string) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.streaks[broker] >= l.maxLoss {
		return true, "consecutive loss limit reached"
	}
	return false, ""
}

func (l *LossStreakLearning) RiskMultiplier(broker string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	// halve risk per loss in the current streak
	mult := l.riskMult
	for i := 0; i < l.streaks[broker]; i++ {
		mult *= 0.5
	}
	if mult < 0.25 {
		mult = 0.25
	}
	return mult
}

func (l *LossStreakLearning) StopLossMultiplier(string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slMult
}

func (l *LossStreakLearning) RecordOutcome(broker string, profit float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if profit < 0 {
		l.streaks[broker]++
		return
	}
	l.streaks[broker] = 0
}
