package marketdata

import (
	"strings"

	"FxBridge/internal/domain/models"
)

// ResolveFromQuotes maps a requested symbol to whatever spelling the broker
// terminal actually streams, so a dashboard can ask for EURUSD while the
// terminal publishes EURUSDm.
func (s *Store) ResolveFromQuotes(broker, symbol string) (string, bool) {
	return s.resolver.BestMatch(symbol, s.QuotedSymbols(broker))
}

// ResolveFromSnapshots matches against snapshot keys.
func (s *Store) ResolveFromSnapshots(broker, symbol string) (string, bool) {
	prefix := strings.ToLower(broker) + "|"
	s.mu.RLock()
	cands := make([]string, 0, 16)
	for key := range s.snaps {
		if strings.HasPrefix(key, prefix) {
			cands = append(cands, strings.TrimPrefix(key, prefix))
		}
	}
	s.mu.RUnlock()
	return s.resolver.BestMatch(symbol, cands)
}

// ResolveFromBars matches against bar-series keys for a timeframe.
func (s *Store) ResolveFromBars(broker, symbol string, tf models.Timeframe) (string, bool) {
	prefix := strings.ToLower(broker) + "|"
	suffix := "|" + string(tf)
	s.mu.RLock()
	cands := make([]string, 0, 16)
	for key := range s.bars {
		if strings.HasPrefix(key, prefix) && strings.HasSuffix(key, suffix) {
			cands = append(cands, strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix))
		}
	}
	s.mu.RUnlock()
	return s.resolver.BestMatch(symbol, cands)
}

// BestSymbolMatch resolves across quotes first, then snapshots, then bars.
func (s *Store) BestSymbolMatch(broker, symbol string) (string, bool) {
	if m, ok := s.ResolveFromQuotes(broker, symbol); ok {
		return m, true
	}
	if m, ok := s.ResolveFromSnapshots(broker, symbol); ok {
		return m, true
	}
	for _, tf := range []models.Timeframe{models.TFM15, models.TFH1, models.TFM5, models.TFM1} {
		if m, ok := s.ResolveFromBars(broker, symbol, tf); ok {
			return m, true
		}
	}
	return "", false
}
