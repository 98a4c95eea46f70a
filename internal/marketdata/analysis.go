package marketdata

import (
	"fmt"
	"time"

	"FxBridge/internal/analysis"
	"FxBridge/internal/domain/models"
)

type cachedAnalysis struct {
	result     *analysis.Analysis
	newestBar  time.Time
	computedAt time.Time
}

// CandleAnalysis runs the candle analyzer over the symbol's candles, caching
// the result per (broker, symbol, timeframe, limit) with a short TTL. The
// cache is invalidated early when the newest bar's bucket time changes, so
// polls are cheap while new bars are picked up immediately.
func (s *Store) CandleAnalysis(broker, symbol string, tf models.Timeframe, limit int) *analysis.Analysis {
	candles := s.Candles(broker, symbol, tf, limit)
	if len(candles) == 0 {
		return nil
	}
	newest := candles[0].Time

	cacheKey := fmt.Sprintf("%s|%s|%d", s.key(broker, symbol), tf, limit)
	if v, ok := s.analysisCache.Get(cacheKey); ok {
		if c, ok := v.(*cachedAnalysis); ok && c.newestBar.Equal(newest) {
			return c.result
		}
	}

	res := analysis.AnalyzeCandleSeries(candles, analysis.Options{Timeframe: tf})
	s.analysisCache.Set(cacheKey, &cachedAnalysis{
		result:     res,
		newestBar:  newest,
		computedAt: s.now(),
	}, s.cfg.AnalysisCacheTTL)
	return res
}

// MultiTimeframeAnalysis computes analyses for the given timeframes, skipping
// ones with no data.
func (s *Store) MultiTimeframeAnalysis(broker, symbol string, tfs []models.Timeframe, limit int) map[models.Timeframe]*analysis.Analysis {
	out := make(map[models.Timeframe]*analysis.Analysis, len(tfs))
	for _, tf := range tfs {
		if a := s.CandleAnalysis(broker, symbol, tf, limit); a != nil {
			out[tf] = a
		}
	}
	return out
}
