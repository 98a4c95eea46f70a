package marketdata

import (
	"fmt"
	"sort"

	"FxBridge/internal/domain/models"
)

// RecordBars ingests EA-supplied OHLCV bars for one broker/symbol/timeframe.
// Bars are stored newest-first, deduplicated by bucket time, capped per
// series, with the oldest series evicted when the series bound is hit.
func (s *Store) RecordBars(broker, symbol string, tf models.Timeframe, bars []models.Bar) IngestResult {
	if broker == "" || symbol == "" {
		return reject("bars_fields", "broker and symbol are required", s.metrics)
	}
	if !models.IsValidTimeframe(tf) {
		return reject("bars_timeframe", fmt.Sprintf("unsupported timeframe %s", tf), s.metrics)
	}
	if len(bars) == 0 {
		return reject("bars_empty", "no bars supplied", s.metrics)
	}
	if !s.resolver.Acceptable(symbol, s.isStreaming(broker, symbol)) {
		return reject("bars_symbol", fmt.Sprintf("symbol %s not accepted", symbol), s.metrics)
	}

	now := s.now()
	valid := make([]models.Bar, 0, len(bars))
	rejected := 0
	for _, b := range bars {
		if b.Time.IsZero() ||
			!validPrice(b.Open) || !validPrice(b.High) ||
			!validPrice(b.Low) || !validPrice(b.Close) {
			rejected++
			continue
		}
		if b.Time.Sub(now) > s.cfg.MaxFutureBar || now.Sub(b.Time) > s.cfg.MaxBarAge {
			rejected++
			continue
		}
		b.Time = models.BucketTime(b.Time, tf)
		b.ReceivedAt = now
		if b.Source == "" {
			b.Source = "ea"
		}
		valid = append(valid, b)
	}
	if len(valid) == 0 {
		return reject("bars_invalid", "all bars rejected", s.metrics)
	}

	key := s.barKey(broker, symbol, tf)
	lock := s.shard(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	existing, present := s.bars[key]
	merged := mergeBars(existing, valid, s.cfg.MaxBarsPerSeries)
	s.bars[key] = merged
	s.barKeys = insertKey(s.barKeys, key, present)
	s.barKeys = evict(s.bars, s.barKeys, s.cfg.MaxBarSeries)
	s.mu.Unlock()

	return IngestResult{
		Success:  true,
		Message:  fmt.Sprintf("stored %d bars", len(valid)),
		Accepted: len(valid),
		Rejected: rejected,
	}
}

// mergeBars merges incoming into existing (both newest-first), dedups by
// bucket time keeping the incoming value, and caps the result.
func mergeBars(existing, incoming []models.Bar, max int) []models.Bar {
	byTime := make(map[int64]models.Bar, len(existing)+len(incoming))
	for _, b := range existing {
		byTime[b.Time.UnixMilli()] = b
	}
	for _, b := range incoming {
		byTime[b.Time.UnixMilli()] = b
	}
	out := make([]models.Bar, 0, len(byTime))
	for _, b := range byTime {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	if len(out) > max {
		out = out[:max]
	}
	return out
}

// Bars returns up to limit EA-supplied bars, newest-first.
func (s *Store) Bars(broker, symbol string, tf models.Timeframe, limit int) []models.Bar {
	key := s.barKey(broker, symbol, tf)
	s.mu.RLock()
	series := s.bars[key]
	s.mu.RUnlock()
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

// BarCount reports the series length without copying.
func (s *Store) BarCount(broker, symbol string, tf models.Timeframe) int {
	s.mu.RLock()
	n := len(s.bars[s.barKey(broker, symbol, tf)])
	s.mu.RUnlock()
	return n
}

// Candles returns EA bars when present, otherwise synthetic candles when the
// global synthetic flag allows. Empty means "no data", never an error.
func (s *Store) Candles(broker, symbol string, tf models.Timeframe, limit int) []models.Bar {
	if bars := s.Bars(broker, symbol, tf, limit); len(bars) > 0 {
		return bars
	}
	if !s.cfg.AllowSynthetic {
		return nil
	}
	return s.SyntheticCandles(broker, symbol, tf, limit)
}
