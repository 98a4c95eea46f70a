package intelligence

import (
	"context"
	"fmt"

	"FxBridge/internal/domain/models"
	domsvc "FxBridge/internal/domain/service"
	"FxBridge/pkg/config"
)

// HTTPQualityEvaluator asks the intelligence service for a final judgement on
// a gated-valid signal. It is the last voice before shouldExecute flips true.
type HTTPQualityEvaluator struct {
	base     *HTTPServiceBase
	attempts int
}

func NewHTTPQualityEvaluator(cfg *config.Config) *HTTPQualityEvaluator {
	attempts := cfg.Intelligence.Retries
	if attempts <= 0 {
		attempts = 2
	}
	return &HTTPQualityEvaluator{base: NewHTTPServiceBase(cfg), attempts: attempts}
}

type qualityReq struct {
	Broker          string             `json:"broker"`
	Symbol          string             `json:"symbol"`
	Direction       string             `json:"direction"`
	Confidence      float64            `json:"confidence"`
	Strength        float64            `json:"strength"`
	FinalScore      float64            `json:"finalScore"`
	Components      map[string]float64 `json:"components"`
	EntryPrice      float64            `json:"entryPrice"`
	StopLoss        float64            `json:"stopLoss"`
	TakeProfit      float64            `json:"takeProfit"`
	RewardRisk      float64            `json:"rewardRisk"`
	ReadinessPassed int                `json:"readinessPassed,omitempty"`
}

type qualityResp struct {
	Approved bool    `json:"approved"`
	Score    float64 `json:"score"`
	Reason   string  `json:"reason"`
}

func (s *HTTPQualityEvaluator) Evaluate(ctx context.Context, sig *models.Signal) (domsvc.QualityVerdict, error) {
	var out domsvc.QualityVerdict
	if sig == nil {
		return out, fmt.Errorf("signal is nil")
	}
	req := qualityReq{
		Broker:     sig.Broker,
		Symbol:     sig.Pair,
		Direction:  string(sig.Direction),
		Confidence: sig.Confidence,
		Strength:   sig.Strength,
		FinalScore: sig.FinalScore,
		Components: map[string]float64{
			"technical":  sig.Components.Technical,
			"confluence": sig.Components.Confluence,
			"layered":    sig.Components.Layered,
			"news":       sig.Components.News,
		},
		EntryPrice: sig.Entry.Price,
		StopLoss:   sig.Entry.StopLoss,
		TakeProfit: sig.Entry.TakeProfit,
		RewardRisk: sig.Risk.RewardRisk,
	}
	if sig.Readiness != nil {
		req.ReadinessPassed = sig.Readiness.LayersPassed
	}
	var resp qualityResp
	if err := s.base.PostJSONWithRetry(ctx, "/trade/evaluate", req, &resp, s.attempts); err != nil {
		return out, err
	}
	out.Approved = resp.Approved
	out.Score = resp.Score
	out.Reason = resp.Reason
	return out, nil
}

var _ domsvc.TradeQualityEvaluator = (*HTTPQualityEvaluator)(nil)
