package marketdata

import (
	"FxBridge/internal/domain/models"
)

// maybeBucketSynthetic folds a fresh quote mid into timeframe-aligned
// synthetic candles. Only symbols marked relevant (or every symbol in
// full-scan mode) are maintained; synthetic series exist purely as a
// fallback for timeframes the EA never supplies bars for.
func (s *Store) maybeBucketSynthetic(key string, q *models.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fullScan {
		if _, ok := s.relevant[key]; !ok {
			return
		}
	}
	price := q.Price()
	if price <= 0 {
		return
	}
	byTF := s.synthetic[key]
	if byTF == nil {
		byTF = make(map[models.Timeframe][]models.Bar)
		s.synthetic[key] = byTF
	}
	for _, tf := range []models.Timeframe{models.TFM1, models.TFM5, models.TFM15, models.TFH1} {
		bucket := models.BucketTime(q.Timestamp, tf)
		series := byTF[tf]
		if len(series) > 0 && series[0].Time.Equal(bucket) {
			cur := &series[0]
			if price > cur.High {
				cur.High = price
			}
			if price < cur.Low {
				cur.Low = price
			}
			cur.Close = price
			cur.Volume += q.Volume
			continue
		}
		bar := models.Bar{
			Time:       bucket,
			Open:       price,
			High:       price,
			Low:        price,
			Close:      price,
			Volume:     q.Volume,
			ReceivedAt: q.ReceivedAt,
			Source:     "synthetic",
		}
		series = append([]models.Bar{bar}, series...)
		if len(series) > s.cfg.SyntheticMaxCandles {
			series = series[:s.cfg.SyntheticMaxCandles]
		}
		byTF[tf] = series
	}
}

// SyntheticCandles returns quote-derived candles, newest-first.
func (s *Store) SyntheticCandles(broker, symbol string, tf models.Timeframe, limit int) []models.Bar {
	key := s.key(broker, symbol)
	s.mu.RLock()
	defer s.mu.RUnlock()
	series := s.synthetic[key][tf]
	if len(series) == 0 {
		return nil
	}
	if limit <= 0 || limit > len(series) {
		limit = len(series)
	}
	out := make([]models.Bar, limit)
	copy(out, series[:limit])
	return out
}
