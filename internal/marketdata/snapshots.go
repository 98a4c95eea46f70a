package marketdata

import (
	"fmt"
	"time"

	"FxBridge/internal/domain/models"
)

// RecordSnapshot stores the EA's multi-timeframe technical payload. The
// snapshot replaces the previous one wholesale; when it embeds a quote and no
// tick stream exists yet, that quote seeds the quote cache.
func (s *Store) RecordSnapshot(snap *models.Snapshot) IngestResult {
	if snap == nil || snap.Broker == "" || snap.Symbol == "" {
		return reject("snapshot_fields", "broker and symbol are required", s.metrics)
	}
	if len(snap.Timeframes) == 0 {
		return reject("snapshot_empty", "snapshot has no timeframes", s.metrics)
	}
	if !s.resolver.Acceptable(snap.Symbol, s.isStreaming(snap.Broker, snap.Symbol)) {
		return reject("snapshot_symbol", fmt.Sprintf("symbol %s not accepted", snap.Symbol), s.metrics)
	}

	snap.ReceivedAt = s.now()
	key := s.key(snap.Broker, snap.Symbol)

	s.mu.Lock()
	_, present := s.snaps[key]
	s.snaps[key] = snap
	s.snapKeys = insertKey(s.snapKeys, key, present)
	s.snapKeys = evict(s.snaps, s.snapKeys, s.cfg.MaxSnapshotKeys)
	seedQuote := s.quotes[key] == nil && snap.Quote != nil
	s.mu.Unlock()

	if seedQuote {
		q := *snap.Quote
		q.Broker = snap.Broker
		q.Symbol = snap.Symbol
		q.Source = "snapshot"
		_ = s.RecordQuote(&q)
	}
	return IngestResult{Success: true, Accepted: 1}
}

// Snapshot returns the latest snapshot for broker/symbol, nil when absent.
func (s *Store) Snapshot(broker, symbol string) *models.Snapshot {
	s.mu.RLock()
	snap := s.snaps[s.key(broker, symbol)]
	s.mu.RUnlock()
	return snap
}

// SnapshotFresh returns the snapshot only when received within maxAge.
func (s *Store) SnapshotFresh(broker, symbol string, maxAge time.Duration) *models.Snapshot {
	snap := s.Snapshot(broker, symbol)
	if snap == nil || s.now().Sub(snap.ReceivedAt) > maxAge {
		return nil
	}
	return snap
}

// RequestSnapshot queues a pull-based snapshot solicitation the EA will pick
// up on its next poll. Duplicate pending requests for the same symbol are
// coalesced.
func (s *Store) RequestSnapshot(broker, symbol string, ttl time.Duration) {
	if broker == "" || symbol == "" {
		return
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	sym := s.resolver.Resolve(symbol)
	now := s.now()
	s.snapReqMu.Lock()
	defer s.snapReqMu.Unlock()
	pending := s.snapReqs[broker]
	for i, r := range pending {
		if r.Symbol == sym {
			pending[i].ExpiresAt = now.Add(ttl)
			return
		}
	}
	s.snapReqs[broker] = append(pending, snapshotRequest{Symbol: sym, ExpiresAt: now.Add(ttl)})
}

// ConsumeSnapshotRequests drains up to max pending, unexpired snapshot
// requests for a broker.
func (s *Store) ConsumeSnapshotRequests(broker string, max int) []string {
	if max <= 0 {
		max = 10
	}
	now := s.now()
	s.snapReqMu.Lock()
	defer s.snapReqMu.Unlock()
	pending := s.snapReqs[broker]
	out := make([]string, 0, max)
	rest := pending[:0]
	for _, r := range pending {
		if now.After(r.ExpiresAt) {
			continue
		}
		if len(out) < max {
			out = append(out, r.Symbol)
			continue
		}
		rest = append(rest, r)
	}
	s.snapReqs[broker] = rest
	return out
}
