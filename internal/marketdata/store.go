package marketdata

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
	icache "FxBridge/internal/service/cache"
	"FxBridge/internal/symbols"
	xlogger "FxBridge/pkg/logger"
)

// Config bounds every cache the store owns. All windows and caps come from
// the top-level configuration; nothing is read from the environment here.
type Config struct {
	MaxQuoteAge    time.Duration
	MaxFutureQuote time.Duration
	MaxBarAge      time.Duration
	MaxFutureBar   time.Duration
	MaxNewsAge     time.Duration
	MaxFutureNews  time.Duration

	MaxQuoteKeys     int
	MaxBarSeries     int
	MaxBarsPerSeries int
	MaxSnapshotKeys  int
	MaxNewsPerBroker int
	MaxBatchQuotes   int

	AllowSynthetic      bool
	SyntheticMaxCandles int

	AnalysisCacheTTL time.Duration
}

// DefaultConfig returns the store defaults used when config omits a field.
func DefaultConfig() Config {
	return Config{
		MaxQuoteAge:         2 * time.Minute,
		MaxFutureQuote:      15 * time.Second,
		MaxBarAge:           48 * time.Hour,
		MaxFutureBar:        2 * time.Minute,
		MaxNewsAge:          7 * 24 * time.Hour,
		MaxFutureNews:       14 * 24 * time.Hour,
		MaxQuoteKeys:        2000,
		MaxBarSeries:        600,
		MaxBarsPerSeries:    500,
		MaxSnapshotKeys:     600,
		MaxNewsPerBroker:    300,
		MaxBatchQuotes:      200,
		AllowSynthetic:      true,
		SyntheticMaxCandles: 200,
		AnalysisCacheTTL:    5 * time.Second,
	}
}

func (c *Config) fillDefaults() {
	def := DefaultConfig()
	if c.MaxQuoteAge <= 0 {
		c.MaxQuoteAge = def.MaxQuoteAge
	}
	if c.MaxFutureQuote <= 0 {
		c.MaxFutureQuote = def.MaxFutureQuote
	}
	if c.MaxBarAge <= 0 {
		c.MaxBarAge = def.MaxBarAge
	}
	if c.MaxFutureBar <= 0 {
		c.MaxFutureBar = def.MaxFutureBar
	}
	if c.MaxNewsAge <= 0 {
		c.MaxNewsAge = def.MaxNewsAge
	}
	if c.MaxFutureNews <= 0 {
		c.MaxFutureNews = def.MaxFutureNews
	}
	if c.MaxQuoteKeys <= 0 {
		c.MaxQuoteKeys = def.MaxQuoteKeys
	}
	if c.MaxBarSeries <= 0 {
		c.MaxBarSeries = def.MaxBarSeries
	}
	if c.MaxBarsPerSeries <= 0 {
		c.MaxBarsPerSeries = def.MaxBarsPerSeries
	}
	if c.MaxSnapshotKeys <= 0 {
		c.MaxSnapshotKeys = def.MaxSnapshotKeys
	}
	if c.MaxNewsPerBroker <= 0 {
		c.MaxNewsPerBroker = def.MaxNewsPerBroker
	}
	if c.MaxBatchQuotes <= 0 {
		c.MaxBatchQuotes = def.MaxBatchQuotes
	}
	if c.SyntheticMaxCandles <= 0 {
		c.SyntheticMaxCandles = def.SyntheticMaxCandles
	}
	if c.AnalysisCacheTTL <= 0 {
		c.AnalysisCacheTTL = def.AnalysisCacheTTL
	}
}

// IngestResult is the non-throwing outcome of every ingest operation. EA
// polling loops must keep functioning on malformed input, so rejection is a
// value, never a panic or error return.
type IngestResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Accepted int    `json:"accepted,omitempty"`
	Rejected int    `json:"rejected,omitempty"`
}

const shardCount = 64

// Store is the per-broker, per-symbol market data cache. It is an injected
// instance, not process state: tests construct isolated stores. Mutations are
// serialized per (broker,symbol) key by a mutex shard so quote velocity and
// acceleration are always derived from the immediately preceding quote.
type Store struct {
	cfg      Config
	resolver *symbols.Resolver
	metrics  domrepo.Metrics
	logger   *xlogger.Logger
	now      func() time.Time

	shards [shardCount]sync.Mutex

	mu        sync.RWMutex
	quotes    map[string]*models.Quote
	quoteKeys []string
	bars      map[string][]models.Bar // newest-first
	barKeys   []string
	snaps     map[string]*models.Snapshot
	snapKeys  []string
	news      map[string][]models.NewsItem // per broker, newest-first

	synthetic map[string]map[models.Timeframe][]models.Bar
	relevant  map[string]struct{}
	fullScan  bool

	snapReqMu sync.Mutex
	snapReqs  map[string][]snapshotRequest

	analysisCache *icache.TTLCache
}

type snapshotRequest struct {
	Symbol    string
	ExpiresAt time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger attaches a logger.
func WithLogger(l *xlogger.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a market data store.
func NewStore(cfg Config, resolver *symbols.Resolver, metrics domrepo.Metrics, opts ...Option) *Store {
	cfg.fillDefaults()
	s := &Store{
		cfg:           cfg,
		resolver:      resolver,
		metrics:       metrics,
		now:           time.Now,
		quotes:        make(map[string]*models.Quote),
		bars:          make(map[string][]models.Bar),
		snaps:         make(map[string]*models.Snapshot),
		news:          make(map[string][]models.NewsItem),
		synthetic:     make(map[string]map[models.Timeframe][]models.Bar),
		relevant:      make(map[string]struct{}),
		snapReqs:      make(map[string][]snapshotRequest),
		analysisCache: icache.NewTTLCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFullScan marks every streaming symbol relevant for synthetic candles.
func (s *Store) SetFullScan(on bool) {
	s.mu.Lock()
	s.fullScan = on
	s.mu.Unlock()
}

// MarkRelevant marks a symbol for synthetic candle maintenance.
func (s *Store) MarkRelevant(broker, symbol string) {
	s.mu.Lock()
	s.relevant[s.key(broker, symbol)] = struct{}{}
	s.mu.Unlock()
}

func (s *Store) key(broker, symbol string) string {
	return strings.ToLower(broker) + "|" + s.resolver.Resolve(symbol)
}

func (s *Store) barKey(broker, symbol string, tf models.Timeframe) string {
	return s.key(broker, symbol) + "|" + string(tf)
}

func (s *Store) shard(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

func (s *Store) isStreaming(broker, symbol string) bool {
	s.mu.RLock()
	_, ok := s.quotes[s.key(broker, symbol)]
	s.mu.RUnlock()
	return ok
}

// evict drops the oldest-inserted key when a bound is exceeded. Keys keep
// insertion order; re-recording an existing key does not refresh its slot.
func evict[T any](m map[string]T, order []string, max int) []string {
	for len(m) > max && len(order) > 0 {
		oldest := order[0]
		order = order[1:]
		delete(m, oldest)
	}
	return order
}

func insertKey(order []string, key string, present bool) []string {
	if present {
		return order
	}
	return append(order, key)
}

func reject(kind, msg string, m domrepo.Metrics) IngestResult {
	if m != nil {
		m.RecordIngestRejected(kind)
	}
	return IngestResult{Success: false, Message: msg}
}

// RecordQuote validates and stores one quote, deriving mid, velocity and
// acceleration from the previous quote for the same key.
func (s *Store) RecordQuote(q *models.Quote) IngestResult {
	if q == nil || q.Broker == "" || q.Symbol == "" {
		return reject("quote_fields", "broker and symbol are required", s.metrics)
	}
	if !validPrice(q.Bid) && !validPrice(q.Ask) && !validPrice(q.Last) {
		return reject("quote_price", "quote needs a positive finite bid, ask or last", s.metrics)
	}
	if !s.resolver.Acceptable(q.Symbol, s.isStreaming(q.Broker, q.Symbol)) {
		return reject("quote_symbol", fmt.Sprintf("symbol %s not accepted", q.Symbol), s.metrics)
	}

	now := s.now()
	if q.Timestamp.IsZero() {
		q.Timestamp = now
	}
	if age := now.Sub(q.Timestamp); age > s.cfg.MaxQuoteAge {
		return reject("quote_stale", "quote too old", s.metrics)
	}
	if ahead := q.Timestamp.Sub(now); ahead > s.cfg.MaxFutureQuote {
		return reject("quote_future", "quote timestamp in the future", s.metrics)
	}

	// bid/ask sanity: swap when inverted
	if q.Bid > 0 && q.Ask > 0 && q.Bid > q.Ask {
		q.Bid, q.Ask = q.Ask, q.Bid
	}
	if q.Bid > 0 && q.Ask > 0 {
		q.Mid = (q.Bid + q.Ask) / 2
	} else if q.Last > 0 {
		q.Mid = q.Last
	} else if q.Bid > 0 {
		q.Mid = q.Bid
	} else {
		q.Mid = q.Ask
	}
	q.ReceivedAt = now
	if q.Source == "" {
		q.Source = "ea"
	}

	key := s.key(q.Broker, q.Symbol)
	lock := s.shard(key)
	lock.Lock()
	s.deriveKinetics(key, q)
	s.storeQuote(key, q)
	lock.Unlock()

	if s.metrics != nil {
		s.metrics.RecordQuoteIngested(q.Broker, q.Symbol)
	}
	s.maybeBucketSynthetic(key, q)
	return IngestResult{Success: true, Accepted: 1}
}

// deriveKinetics must run under the key's shard lock; interleaved writers
// would otherwise corrupt velocity and acceleration.
func (s *Store) deriveKinetics(key string, q *models.Quote) {
	s.mu.RLock()
	prev := s.quotes[key]
	s.mu.RUnlock()
	if prev == nil || prev.Mid <= 0 {
		return
	}
	dt := q.Timestamp.Sub(prev.Timestamp).Seconds()
	if dt <= 0 {
		// same-instant or out-of-order tick, keep prior derived fields
		q.MidDelta = prev.MidDelta
		q.MidVelocityPerSec = prev.MidVelocityPerSec
		q.MidAccelerationPerSec2 = prev.MidAccelerationPerSec2
		return
	}
	q.MidDelta = q.Mid - prev.Mid
	q.MidVelocityPerSec = q.MidDelta / dt
	q.MidAccelerationPerSec2 = (q.MidVelocityPerSec - prev.MidVelocityPerSec) / dt
}

func (s *Store) storeQuote(key string, q *models.Quote) {
	s.mu.Lock()
	_, present := s.quotes[key]
	s.quotes[key] = q
	s.quoteKeys = insertKey(s.quoteKeys, key, present)
	s.quoteKeys = evict(s.quotes, s.quoteKeys, s.cfg.MaxQuoteKeys)
	s.mu.Unlock()
}

// RecordQuotes ingests a capped batch; partial acceptance is reported, and a
// batch with zero accepted quotes is a failure.
func (s *Store) RecordQuotes(broker string, quotes []*models.Quote) IngestResult {
	if broker == "" {
		return reject("quotes_fields", "broker is required", s.metrics)
	}
	if len(quotes) == 0 {
		return reject("quotes_empty", "no quotes in batch", s.metrics)
	}
	if len(quotes) > s.cfg.MaxBatchQuotes {
		quotes = quotes[:s.cfg.MaxBatchQuotes]
	}
	accepted, rejected := 0, 0
	for _, q := range quotes {
		if q == nil {
			rejected++
			continue
		}
		if q.Broker == "" {
			q.Broker = broker
		}
		if res := s.RecordQuote(q); res.Success {
			accepted++
		} else {
			rejected++
		}
	}
	return IngestResult{
		Success:  accepted > 0,
		Message:  fmt.Sprintf("accepted %d of %d quotes", accepted, accepted+rejected),
		Accepted: accepted,
		Rejected: rejected,
	}
}

// Quote returns the latest quote for broker/symbol, nil when absent or stale.
func (s *Store) Quote(broker, symbol string) *models.Quote {
	s.mu.RLock()
	q := s.quotes[s.key(broker, symbol)]
	s.mu.RUnlock()
	if q == nil {
		return nil
	}
	if s.now().Sub(q.ReceivedAt) > s.cfg.MaxQuoteAge {
		return nil
	}
	return q
}

// Quotes returns all fresh quotes for a broker.
func (s *Store) Quotes(broker string) []*models.Quote {
	prefix := strings.ToLower(broker) + "|"
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Quote, 0, 16)
	for key, q := range s.quotes {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if now.Sub(q.ReceivedAt) > s.cfg.MaxQuoteAge {
			continue
		}
		out = append(out, q)
	}
	return out
}

// QuotedSymbols lists canonical symbols currently streaming for a broker.
func (s *Store) QuotedSymbols(broker string) []string {
	prefix := strings.ToLower(broker) + "|"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 16)
	for key := range s.quotes {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	return out
}

func validPrice(v float64) bool {
	return v > 0 && !isInfOrNaN(v)
}

func isInfOrNaN(v float64) bool {
	return v != v || v > 1e308 || v < -1e308
}
