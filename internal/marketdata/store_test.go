package marketdata

import (
	"testing"
	"time"

	"FxBridge/internal/domain/models"
	"FxBridge/internal/symbols"
)

var baseNow = time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)

// newClockedStore returns a store whose clock reads *now.
func newClockedStore(now *time.Time) *Store {
	return NewStore(DefaultConfig(), symbols.New(), nil,
		WithClock(func() time.Time { return *now }))
}

func TestRecordQuoteDefaultsAndMid(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	res := s.RecordQuote(&models.Quote{
		Broker: "mt5", Symbol: "EURUSD", Bid: 1.1000, Ask: 1.1002,
	})
	if !res.Success || res.Accepted != 1 {
		t.Fatalf("ingest failed: %+v", res)
	}

	q := s.Quote("mt5", "EURUSD")
	if q == nil {
		t.Fatal("quote not stored")
	}
	if q.Mid != 1.1001 {
		t.Fatalf("mid = %v, want 1.1001", q.Mid)
	}
	if !q.Timestamp.Equal(baseNow) {
		t.Fatalf("zero timestamp should default to now, got %v", q.Timestamp)
	}
	if !q.ReceivedAt.Equal(baseNow) {
		t.Fatalf("receivedAt = %v, want %v", q.ReceivedAt, baseNow)
	}
	if q.Source != "ea" {
		t.Fatalf("source = %q, want ea", q.Source)
	}
}

func TestRecordQuoteSwapsInvertedBidAsk(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	s.RecordQuote(&models.Quote{Broker: "mt5", Symbol: "GBPUSD", Bid: 1.2702, Ask: 1.2700})
	q := s.Quote("mt5", "GBPUSD")
	if q.Bid != 1.2700 || q.Ask != 1.2702 {
		t.Fatalf("inverted bid/ask not swapped: bid=%v ask=%v", q.Bid, q.Ask)
	}
}

func TestRecordQuoteRejections(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	cases := []struct {
		name  string
		quote *models.Quote
	}{
		{"missing broker", &models.Quote{Symbol: "EURUSD", Bid: 1.1}},
		{"missing symbol", &models.Quote{Broker: "mt5", Bid: 1.1}},
		{"no price", &models.Quote{Broker: "mt5", Symbol: "EURUSD"}},
		{"stale", &models.Quote{Broker: "mt5", Symbol: "EURUSD", Bid: 1.1,
			Timestamp: baseNow.Add(-3 * time.Minute)}},
		{"future", &models.Quote{Broker: "mt5", Symbol: "EURUSD", Bid: 1.1,
			Timestamp: baseNow.Add(time.Minute)}},
		{"junk symbol", &models.Quote{Broker: "mt5", Symbol: "NOTATHING", Bid: 1.1}},
	}
	for _, tc := range cases {
		if res := s.RecordQuote(tc.quote); res.Success {
			t.Errorf("%s: expected rejection, got %+v", tc.name, res)
		}
	}
	if got := s.Quote("mt5", "EURUSD"); got != nil {
		t.Fatalf("rejected quote was stored: %+v", got)
	}
}

func TestRecordQuotesPartialBatch(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	res := s.RecordQuotes("mt5", []*models.Quote{
		{Broker: "mt5", Symbol: "EURUSD", Bid: 1.1000, Ask: 1.1002},
		{Broker: "mt5", Symbol: "USDJPY"}, // no price
	})
	if !res.Success {
		t.Fatalf("batch with one good quote should succeed: %+v", res)
	}
	if res.Accepted != 1 || res.Rejected != 1 {
		t.Fatalf("accepted=%d rejected=%d, want 1/1", res.Accepted, res.Rejected)
	}

	res = s.RecordQuotes("mt5", []*models.Quote{
		{Broker: "mt5", Symbol: "USDJPY"},
	})
	if res.Success {
		t.Fatalf("all-rejected batch should fail: %+v", res)
	}
}

func TestQuoteKinetics(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	s.RecordQuote(&models.Quote{
		Broker: "mt5", Symbol: "EURUSD", Bid: 1.1000, Ask: 1.1000, Timestamp: baseNow,
	})

	now = baseNow.Add(time.Second)
	s.RecordQuote(&models.Quote{
		Broker: "mt5", Symbol: "EURUSD", Bid: 1.1010, Ask: 1.1010, Timestamp: now,
	})

	q := s.Quote("mt5", "EURUSD")
	if delta := q.MidDelta; delta < 0.00099 || delta > 0.00101 {
		t.Fatalf("midDelta = %v, want ~0.001", delta)
	}
	if v := q.MidVelocityPerSec; v < 0.00099 || v > 0.00101 {
		t.Fatalf("velocity = %v, want ~0.001/s", v)
	}
}

func TestBestSymbolMatchResolvesBrokerSuffix(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	s.RecordQuote(&models.Quote{Broker: "mt5", Symbol: "EURUSDm", Bid: 1.1, Ask: 1.1002})

	got, ok := s.BestSymbolMatch("mt5", "EURUSD")
	if !ok {
		t.Fatal("expected a match for EURUSD")
	}
	if got != "EURUSDM" {
		t.Fatalf("match = %q, want EURUSDM", got)
	}
}

func TestSnapshotRequestConsumedOnce(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	s.RequestSnapshot("mt5", "EURUSD", time.Minute)
	s.RequestSnapshot("mt5", "GBPUSD", time.Minute)

	got := s.ConsumeSnapshotRequests("mt5", 10)
	if len(got) != 2 {
		t.Fatalf("got %d requests, want 2", len(got))
	}
	if again := s.ConsumeSnapshotRequests("mt5", 10); len(again) != 0 {
		t.Fatalf("requests should be consumed, got %v", again)
	}
}

func TestSnapshotRequestExpires(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	s.RequestSnapshot("mt5", "EURUSD", time.Minute)
	now = baseNow.Add(2 * time.Minute)

	if got := s.ConsumeSnapshotRequests("mt5", 10); len(got) != 0 {
		t.Fatalf("expired request should not be served, got %v", got)
	}
}

func TestRecordBarsBucketsAndMerges(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	t0 := baseNow.Add(-30 * time.Minute)
	res := s.RecordBars("mt5", "EURUSD", models.TFM15, []models.Bar{
		{Time: t0, Open: 1.1, High: 1.2, Low: 1.0, Close: 1.15},
		{Time: t0.Add(15 * time.Minute), Open: 1.15, High: 1.25, Low: 1.1, Close: 1.2},
	})
	if !res.Success || res.Accepted != 2 {
		t.Fatalf("bars ingest failed: %+v", res)
	}

	// Re-sending the newest bucket replaces it instead of duplicating.
	s.RecordBars("mt5", "EURUSD", models.TFM15, []models.Bar{
		{Time: t0.Add(15 * time.Minute), Open: 1.15, High: 1.3, Low: 1.1, Close: 1.28},
	})

	bars := s.Bars("mt5", "EURUSD", models.TFM15, 0)
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Close != 1.28 {
		t.Fatalf("newest bar close = %v, want replacement 1.28", bars[0].Close)
	}
}

func TestRecordBarsRejectsInvalid(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	res := s.RecordBars("mt5", "EURUSD", "W9", []models.Bar{
		{Time: baseNow, Open: 1, High: 1, Low: 1, Close: 1},
	})
	if res.Success {
		t.Fatalf("unknown timeframe should be rejected: %+v", res)
	}

	res = s.RecordBars("mt5", "EURUSD", models.TFM15, []models.Bar{
		{Time: baseNow, Open: 0, High: 1, Low: 1, Close: 1},
	})
	if res.Success {
		t.Fatalf("zero-open bar should be rejected: %+v", res)
	}
}

func TestCandlesFallBackToSynthetic(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)
	s.MarkRelevant("mt5", "EURUSD")

	// Two quotes in different M1 buckets, no EA bars at all.
	s.RecordQuote(&models.Quote{Broker: "mt5", Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002, Timestamp: now})
	now = baseNow.Add(time.Minute)
	s.RecordQuote(&models.Quote{Broker: "mt5", Symbol: "EURUSD", Bid: 1.2, Ask: 1.2002, Timestamp: now})

	candles := s.Candles("mt5", "EURUSD", models.TFM1, 0)
	if len(candles) != 2 {
		t.Fatalf("got %d synthetic candles, want 2", len(candles))
	}
	for _, c := range candles {
		if c.Source != "synthetic" {
			t.Fatalf("candle source = %q, want synthetic", c.Source)
		}
	}

	// Real EA bars take precedence once they exist.
	s.RecordBars("mt5", "EURUSD", models.TFM1, []models.Bar{
		{Time: now, Open: 1.2, High: 1.21, Low: 1.19, Close: 1.2},
	})
	candles = s.Candles("mt5", "EURUSD", models.TFM1, 0)
	if len(candles) != 1 || candles[0].Source != "ea" {
		t.Fatalf("EA bars should shadow synthetic, got %+v", candles)
	}
}

func TestRecordNewsDedupAndClamp(t *testing.T) {
	now := baseNow
	s := newClockedStore(&now)

	res := s.RecordNews("MT5", []models.NewsItem{
		{ID: "a", Title: "CPI", Impact: 250, Time: baseNow.Add(time.Hour)},
		{ID: "a", Title: "CPI again", Impact: 60, Time: baseNow.Add(time.Hour)},
		{ID: "", Title: "no id", Impact: 10, Time: baseNow},
	})
	if !res.Success || res.Accepted != 1 || res.Rejected != 2 {
		t.Fatalf("news ingest: %+v", res)
	}

	items := s.News("mt5", 0)
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Impact != 100 {
		t.Fatalf("impact should clamp to 100, got %d", items[0].Impact)
	}
	if items[0].Kind != models.NewsCalendar {
		t.Fatalf("kind should default to calendar, got %s", items[0].Kind)
	}
}

func TestQuoteEviction(t *testing.T) {
	now := baseNow
	cfg := DefaultConfig()
	cfg.MaxQuoteKeys = 2
	s := NewStore(cfg, symbols.New(), nil, WithClock(func() time.Time { return now }))

	s.RecordQuote(&models.Quote{Broker: "mt5", Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002})
	s.RecordQuote(&models.Quote{Broker: "mt5", Symbol: "GBPUSD", Bid: 1.27, Ask: 1.2702})
	s.RecordQuote(&models.Quote{Broker: "mt5", Symbol: "USDJPY", Bid: 149.10, Ask: 149.12})

	if q := s.Quote("mt5", "EURUSD"); q != nil {
		t.Fatal("oldest key should be evicted")
	}
	if q := s.Quote("mt5", "USDJPY"); q == nil {
		t.Fatal("newest key should survive eviction")
	}
}
