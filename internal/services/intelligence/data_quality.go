package intelligence

import (
	"context"

	domsvc "FxBridge/internal/domain/service"
	"FxBridge/pkg/config"
)

// HTTPDataQualityReporter asks the intelligence service for per-symbol feed
// health. The guard engine treats a circuitBreak verdict as a hard block.
type HTTPDataQualityReporter struct {
	base *HTTPServiceBase
}

func NewHTTPDataQualityReporter(cfg *config.Config) *HTTPDataQualityReporter {
	return &HTTPDataQualityReporter{base: NewHTTPServiceBase(cfg)}
}

type dataQualityReq struct {
	Broker string `json:"broker"`
	Symbol string `json:"symbol"`
}

type dataQualityResp struct {
	Level        string `json:"level"`
	CircuitBreak bool   `json:"circuitBreak"`
	Detail       string `json:"detail"`
}

func (s *HTTPDataQualityReporter) Report(ctx context.Context, broker, symbol string) (domsvc.DataQualityReport, error) {
	var out domsvc.DataQualityReport
	var resp dataQualityResp
	if err := s.base.PostJSON(ctx, "/data/quality", dataQualityReq{Broker: broker, Symbol: symbol}, &resp); err != nil {
		return out, err
	}
	out.Level = domsvc.DataQualityLevel(resp.Level)
	if out.Level == "" {
		out.Level = domsvc.QualityOK
	}
	out.CircuitBreak = resp.CircuitBreak
	out.Detail = resp.Detail
	return out, nil
}

var _ domsvc.DataQualityReporter = (*HTTPDataQualityReporter)(nil)
