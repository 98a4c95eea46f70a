package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
	"FxBridge/internal/marketdata"
	"FxBridge/internal/usecase"
	"FxBridge/pkg/logger"
)

// Config tunes the realtime runner. Zero values fall back to defaults.
type Config struct {
	Debounce           time.Duration
	MaxSymbolsPerFlush int
	MinInterval        time.Duration
	RevalidateInterval time.Duration

	RequireSnapshot bool
	RequireBars     bool
	MinBars         int
	SnapshotMaxAge  time.Duration

	MinConfidence    float64
	MinStrength      float64
	NearConfidence   float64
	NearStrength     float64
	AllowNearStrong  bool
	AllowWaitMonitor bool

	RequireConfluence bool
	RequireReadiness  bool

	MaxTrackedKeys int
}

func (c *Config) fillDefaults() {
	if c.Debounce <= 0 {
		c.Debounce = 750 * time.Millisecond
	}
	if c.MaxSymbolsPerFlush <= 0 {
		c.MaxSymbolsPerFlush = 8
	}
	if c.MinInterval <= 0 {
		c.MinInterval = 15 * time.Second
	}
	if c.RevalidateInterval <= 0 {
		c.RevalidateInterval = time.Minute
	}
	if c.MinBars <= 0 {
		c.MinBars = 20
	}
	if c.SnapshotMaxAge <= 0 {
		c.SnapshotMaxAge = 5 * time.Minute
	}
	if c.MinConfidence <= 0 {
		c.MinConfidence = 0.6
	}
	if c.MinStrength <= 0 {
		c.MinStrength = 0.55
	}
	if c.NearConfidence <= 0 {
		c.NearConfidence = c.MinConfidence - 0.1
	}
	if c.NearStrength <= 0 {
		c.NearStrength = c.MinStrength - 0.1
	}
	if c.MaxTrackedKeys <= 0 {
		c.MaxTrackedKeys = 500
	}
}

// keyState is the per-(broker,symbol) dedup and throttle state.
type keyState struct {
	lastGen     time.Time
	fingerprint string
	barTime     time.Time
	life        lifecycle
	published   bool
}

// Runner debounces symbol-touched events into batched signal computation and
// periodically revalidates previously published signals. Ingestion only
// enqueues and returns; all computation happens on the Run loop.
type Runner struct {
	cfg       Config
	engine    *usecase.SignalEngine
	store     *marketdata.Store
	publisher domrepo.EventPublisher
	metrics   domrepo.Metrics
	log       *logger.Logger
	now       func() time.Time

	mu         sync.Mutex
	pending    map[string][]string
	pendingSet map[string]map[string]struct{}
	inFlight   map[string]bool
	state      map[string]*keyState
	stateOrder []string

	notify chan struct{}
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerClock overrides the time source (tests).
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithRunnerLogger attaches a logger.
func WithRunnerLogger(log *logger.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates the realtime signal runner.
func NewRunner(cfg Config, engine *usecase.SignalEngine, store *marketdata.Store, publisher domrepo.EventPublisher, metrics domrepo.Metrics, opts ...RunnerOption) *Runner {
	cfg.fillDefaults()
	r := &Runner{
		cfg:        cfg,
		engine:     engine,
		store:      store,
		publisher:  publisher,
		metrics:    metrics,
		now:        time.Now,
		pending:    make(map[string][]string),
		pendingSet: make(map[string]map[string]struct{}),
		inFlight:   make(map[string]bool),
		state:      make(map[string]*keyState),
		notify:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IngestSymbols records touched symbols for a broker and returns immediately.
func (r *Runner) IngestSymbols(broker string, symbols ...string) {
	if broker == "" || len(symbols) == 0 {
		return
	}
	b := strings.ToLower(broker)
	r.mu.Lock()
	set, ok := r.pendingSet[b]
	if !ok {
		set = make(map[string]struct{})
		r.pendingSet[b] = set
	}
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			continue
		}
		if _, dup := set[sym]; dup {
			continue
		}
		set[sym] = struct{}{}
		r.pending[b] = append(r.pending[b], sym)
	}
	r.mu.Unlock()
	r.wake()
}

func (r *Runner) wake() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Run is the single consumer loop: debounce, flush, revalidate. It exits
// when the context is cancelled.
func (r *Runner) Run(ctx context.Context) {
	revalidate := time.NewTicker(r.cfg.RevalidateInterval)
	defer revalidate.Stop()

	debounce := time.NewTimer(r.cfg.Debounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	armed := false

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.notify:
			if !armed {
				debounce.Reset(r.cfg.Debounce)
				armed = true
			}
		case <-debounce.C:
			armed = false
			r.FlushPending(ctx)
		case <-revalidate.C:
			r.Revalidate(ctx)
		}
	}
}

// FlushPending processes up to MaxSymbolsPerFlush symbols per broker,
// re-queuing leftovers for the next tick.
func (r *Runner) FlushPending(ctx context.Context) {
	r.mu.Lock()
	brokers := make([]string, 0, len(r.pending))
	for b := range r.pending {
		brokers = append(brokers, b)
	}
	r.mu.Unlock()

	leftovers := false
	for _, b := range brokers {
		if r.flushBroker(ctx, b) {
			leftovers = true
		}
	}
	if leftovers {
		r.wake()
	}
}

// flushBroker runs one capped batch for a broker. A broker flush is
// single-flight: a concurrent call for the same broker is a no-op.
func (r *Runner) flushBroker(ctx context.Context, broker string) (leftover bool) {
	r.mu.Lock()
	if r.inFlight[broker] {
		r.mu.Unlock()
		return len(r.pending[broker]) > 0
	}
	queue := r.pending[broker]
	n := r.cfg.MaxSymbolsPerFlush
	if n > len(queue) {
		n = len(queue)
	}
	batch := make([]string, n)
	copy(batch, queue[:n])
	rest := queue[n:]
	if len(rest) == 0 {
		delete(r.pending, broker)
	} else {
		r.pending[broker] = rest
	}
	for _, sym := range batch {
		delete(r.pendingSet[broker], sym)
	}
	r.inFlight[broker] = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.inFlight[broker] = false
		leftover = len(r.pending[broker]) > 0
		r.mu.Unlock()
	}()

	for _, sym := range batch {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.MaybeGenerateSignal(ctx, broker, sym, false); err != nil && r.log != nil {
			r.log.Error("signal computation failed",
				logger.String("broker", broker), logger.String("symbol", sym), logger.Error(err))
		}
	}
	return
}

// Revalidate force-recomputes every previously published signal so stale
// entries are replaced or demoted.
func (r *Runner) Revalidate(ctx context.Context) {
	r.mu.Lock()
	keys := make([]string, 0, len(r.state))
	for k, st := range r.state {
		if st.published {
			keys = append(keys, k)
		}
	}
	r.mu.Unlock()

	for _, k := range keys {
		broker, symbol, ok := strings.Cut(k, "|")
		if !ok {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		if _, err := r.MaybeGenerateSignal(ctx, broker, symbol, true); err != nil && r.log != nil {
			r.log.Error("revalidation failed",
				logger.String("broker", broker), logger.String("symbol", symbol), logger.Error(err))
		}
	}
}

// MaybeGenerateSignal computes and possibly broadcasts a signal for one
// symbol. It returns the emitted event, or nil when throttled, suppressed,
// or lacking data. force bypasses the min-interval throttle.
func (r *Runner) MaybeGenerateSignal(ctx context.Context, broker, symbol string, force bool) (*models.SignalEvent, error) {
	key := strings.ToLower(broker) + "|" + strings.ToUpper(symbol)
	now := r.now()

	r.mu.Lock()
	st, ok := r.state[key]
	if !ok {
		st = &keyState{}
		r.insertStateLocked(key, st)
	}
	if !force && !st.lastGen.IsZero() && now.Sub(st.lastGen) < r.cfg.MinInterval {
		r.mu.Unlock()
		return nil, nil
	}
	st.lastGen = now
	r.mu.Unlock()

	if !r.dataGatesPass(broker, symbol) {
		r.store.RequestSnapshot(broker, symbol, 0)
		return nil, nil
	}

	sig, err := r.engine.GenerateSignal(ctx, broker, symbol)
	if err != nil || sig == nil {
		return nil, err
	}

	tier := r.tierOf(sig)
	actionable := tier != "" && r.lifecycleGatesPass(sig)

	fp := Fingerprint(sig)
	life := lifecycleOf(sig)

	r.mu.Lock()
	if fp == st.fingerprint {
		r.mu.Unlock()
		return nil, nil
	}
	if !st.barTime.IsZero() && st.barTime.Equal(sig.BarTime) && life == st.life {
		r.mu.Unlock()
		return nil, nil
	}
	st.fingerprint = fp
	st.barTime = sig.BarTime
	st.life = life
	if actionable {
		st.published = true
	}
	r.mu.Unlock()

	ev := &models.SignalEvent{
		Type:        models.EventSignalCandidate,
		Broker:      strings.ToLower(broker),
		Symbol:      sig.Pair,
		Tier:        tier,
		Fingerprint: fp,
		Signal:      sig,
		EmittedAt:   now,
	}
	if actionable {
		ev.Type = models.EventSignal
	}

	if r.publisher != nil {
		if err := r.publisher.PublishSignalEvent(ctx, ev); err != nil && r.log != nil {
			r.log.Error("signal event publish failed",
				logger.String("broker", broker), logger.String("symbol", symbol), logger.Error(err))
		}
	}
	if r.metrics != nil {
		r.metrics.RecordSignalEvent(string(ev.Type), ev.Broker)
	}
	return ev, nil
}

// dataGatesPass enforces the snapshot/bar prerequisites for dashboards.
func (r *Runner) dataGatesPass(broker, symbol string) bool {
	barsOK := false
	for _, tf := range []models.Timeframe{models.TFM5, models.TFM15, models.TFH1} {
		if r.store.BarCount(broker, symbol, tf) >= r.cfg.MinBars {
			barsOK = true
			break
		}
	}
	if r.cfg.RequireBars && !barsOK {
		return false
	}
	if r.cfg.RequireSnapshot && !barsOK {
		if r.store.SnapshotFresh(broker, symbol, r.cfg.SnapshotMaxAge) == nil {
			return false
		}
	}
	return true
}

// tierOf grades the signal: "strong", "near" (when allowed), or "".
func (r *Runner) tierOf(sig *models.Signal) string {
	if sig.Confidence >= r.cfg.MinConfidence && sig.Strength >= r.cfg.MinStrength {
		return "strong"
	}
	if r.cfg.AllowNearStrong &&
		sig.Confidence >= r.cfg.NearConfidence && sig.Strength >= r.cfg.NearStrength {
		return "near"
	}
	return ""
}

// lifecycleGatesPass checks decision state, confluence, readiness, and
// trade validity for actionable broadcast.
func (r *Runner) lifecycleGatesPass(sig *models.Signal) bool {
	switch sig.Validity.Decision.State {
	case models.DecisionEnter:
	case models.DecisionWaitMonitor:
		if !r.cfg.AllowWaitMonitor {
			return false
		}
	default:
		return false
	}
	if r.cfg.RequireConfluence && !sig.ConfluencePassed {
		return false
	}
	if r.cfg.RequireReadiness && (sig.Readiness == nil || !sig.Readiness.Ready) {
		return false
	}
	return sig.Validity.IsValid
}

// insertStateLocked tracks a new key, evicting the oldest when full.
func (r *Runner) insertStateLocked(key string, st *keyState) {
	if len(r.state) >= r.cfg.MaxTrackedKeys && len(r.stateOrder) > 0 {
		oldest := r.stateOrder[0]
		r.stateOrder = r.stateOrder[1:]
		delete(r.state, oldest)
	}
	r.state[key] = st
	r.stateOrder = append(r.stateOrder, key)
}
