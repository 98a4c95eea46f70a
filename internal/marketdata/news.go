package marketdata

import (
	"fmt"
	"strings"

	"FxBridge/internal/domain/models"
)

// RecordNews ingests broker news items, deduplicated by (broker, id), kept
// newest-first per broker and capped with oldest eviction.
func (s *Store) RecordNews(broker string, items []models.NewsItem) IngestResult {
	if broker == "" {
		return reject("news_fields", "broker is required", s.metrics)
	}
	if len(items) == 0 {
		return reject("news_empty", "no news items", s.metrics)
	}

	now := s.now()
	b := strings.ToLower(broker)
	accepted, rejected := 0, 0

	s.mu.Lock()
	timeline := s.news[b]
	seen := make(map[string]struct{}, len(timeline))
	for _, item := range timeline {
		seen[item.ID] = struct{}{}
	}
	for _, item := range items {
		if item.ID == "" || item.Time.IsZero() {
			rejected++
			continue
		}
		if now.Sub(item.Time) > s.cfg.MaxNewsAge || item.Time.Sub(now) > s.cfg.MaxFutureNews {
			rejected++
			continue
		}
		if _, dup := seen[item.ID]; dup {
			rejected++
			continue
		}
		if item.Impact < 0 {
			item.Impact = 0
		}
		if item.Impact > 100 {
			item.Impact = 100
		}
		if item.Kind == "" {
			item.Kind = models.NewsCalendar
		}
		item.Broker = b
		item.ReceivedAt = now
		seen[item.ID] = struct{}{}
		timeline = append([]models.NewsItem{item}, timeline...)
		accepted++
	}
	if len(timeline) > s.cfg.MaxNewsPerBroker {
		timeline = timeline[:s.cfg.MaxNewsPerBroker]
	}
	s.news[b] = timeline
	s.mu.Unlock()

	if accepted == 0 {
		return reject("news_invalid", "all news items rejected", s.metrics)
	}
	return IngestResult{
		Success:  true,
		Message:  fmt.Sprintf("accepted %d news items", accepted),
		Accepted: accepted,
		Rejected: rejected,
	}
}

// News returns up to limit items from the broker's timeline, newest-first.
func (s *Store) News(broker string, limit int) []models.NewsItem {
	s.mu.RLock()
	timeline := s.news[strings.ToLower(broker)]
	s.mu.RUnlock()
	if limit <= 0 || limit > len(timeline) {
		limit = len(timeline)
	}
	out := make([]models.NewsItem, limit)
	copy(out, timeline[:limit])
	return out
}
