package router

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
	"FxBridge/internal/guards"
	icache "FxBridge/internal/service/cache"
	"FxBridge/pkg/logger"
)

// Config tunes the order router. Zero values fall back to defaults.
type Config struct {
	RetryAttempts    int
	RetryBase        time.Duration
	BreakerThreshold int
	BreakerCooldown  time.Duration
	IdempotencyTTL   time.Duration
	AuditLogSize     int
	KillSwitch       bool
}

func (c *Config) fillDefaults() {
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	} else if c.RetryAttempts == 0 {
		c.RetryAttempts = 2
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 250 * time.Millisecond
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = 5
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = 30 * time.Second
	}
	if c.IdempotencyTTL <= 0 {
		c.IdempotencyTTL = 10 * time.Minute
	}
	if c.AuditLogSize <= 0 {
		c.AuditLogSize = 200
	}
}

// AuditEntry is one row of the bounded in-process order log.
type AuditEntry struct {
	Time           time.Time `json:"time"`
	Broker         string    `json:"broker"`
	Symbol         string    `json:"symbol"`
	Action         string    `json:"action"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	OrderID        string    `json:"orderId,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
}

// Router dispatches normalized order operations to broker connectors with a
// kill switch, idempotent replay, retry, and a per-broker circuit breaker.
type Router struct {
	cfg        Config
	connectors map[string]domrepo.Connector
	breaker    *breakerBoard
	idem       *icache.TTLCache
	book       *TradeBook
	archive    domrepo.AuditArchive
	publisher  domrepo.EventPublisher
	metrics    domrepo.Metrics
	log        *logger.Logger
	now        func() time.Time

	kill atomic.Bool

	auditMu sync.Mutex
	audit   []AuditEntry
}

// Option configures a Router.
type Option func(*Router)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithLogger attaches a logger.
func WithLogger(log *logger.Logger) Option {
	return func(r *Router) { r.log = log }
}

// WithMetrics attaches the observability surface.
func WithMetrics(m domrepo.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithTradeBook records accepted orders into the shared trade book so
// reconciliation can match broker fills against them.
func WithTradeBook(book *TradeBook) Option {
	return func(r *Router) { r.book = book }
}

// NewRouter creates the broker router over the given connectors. archive and
// publisher may be nil; both are best-effort sinks.
func NewRouter(cfg Config, connectors []domrepo.Connector, archive domrepo.AuditArchive, publisher domrepo.EventPublisher, opts ...Option) *Router {
	cfg.fillDefaults()
	r := &Router{
		cfg:        cfg,
		connectors: make(map[string]domrepo.Connector, len(connectors)),
		idem:       icache.NewTTLCache(),
		archive:    archive,
		publisher:  publisher,
		now:        time.Now,
	}
	for _, c := range connectors {
		r.connectors[strings.ToLower(c.Broker())] = c
	}
	for _, opt := range opts {
		opt(r)
	}
	r.breaker = newBreakerBoard(cfg.BreakerThreshold, cfg.BreakerCooldown, r.now)
	r.kill.Store(cfg.KillSwitch)
	return r
}

// SetKillSwitch toggles the global order kill switch.
func (r *Router) SetKillSwitch(on bool) {
	r.kill.Store(on)
	if r.log != nil {
		r.log.Warn("kill switch changed", logger.Bool("enabled", on))
	}
}

// KillSwitchEnabled reports the kill switch state.
func (r *Router) KillSwitchEnabled() bool { return r.kill.Load() }

func failed(broker, msg string) *models.OrderResult {
	return &models.OrderResult{Success: false, Broker: broker, Error: msg}
}

// PlaceOrder routes a signal-driven order. Blocked by the kill switch.
func (r *Router) PlaceOrder(ctx context.Context, req *models.OrderRequest) *models.OrderResult {
	return r.placeOrder(ctx, req, false)
}

// ManualOrder routes an operator-initiated order. bypassKill skips the kill
// switch for emergency interventions.
func (r *Router) ManualOrder(ctx context.Context, req *models.OrderRequest, bypassKill bool) *models.OrderResult {
	return r.placeOrder(ctx, req, bypassKill)
}

func (r *Router) placeOrder(ctx context.Context, req *models.OrderRequest, bypassKill bool) *models.OrderResult {
	if r.kill.Load() && !bypassKill {
		return failed(req.Broker, "order routing disabled by kill switch")
	}
	if err := normalizeOrder(req); err != "" {
		return failed(req.Broker, err)
	}
	conn, ok := r.connectors[req.Broker]
	if !ok {
		return failed(req.Broker, "no connector for broker "+req.Broker)
	}
	if !guards.MarketOpen(req.Symbol, r.now()) {
		return failed(req.Broker, "market closed for "+req.Symbol)
	}

	idemKey := req.Meta.IdempotencyKey
	if idemKey != "" {
		if cached, hit := r.idem.Get(idemCacheKey(req.Broker, idemKey)); hit {
			if res, ok := cached.(*models.OrderResult); ok {
				replay := *res
				replay.IdempotentReplay = true
				return &replay
			}
		}
	}

	if !r.breaker.allowed(req.Broker) {
		if r.metrics != nil {
			r.metrics.RecordOrderRouted(req.Broker, "breaker_open")
		}
		return failed(req.Broker, "circuit breaker open for broker "+req.Broker)
	}

	if req.Meta.TradeID == "" {
		req.Meta.TradeID = uuid.NewString()
	}
	res := r.dispatchWithRetry(ctx, conn, req)
	res.Broker = req.Broker
	if res.PlacedAt.IsZero() {
		res.PlacedAt = r.now()
	}

	if idemKey != "" {
		// Terminal results are cached whether or not the broker accepted the
		// order; a replayed key must never reach the broker twice. The TTL
		// bounds how long a failure stays replayable.
		r.idem.Set(idemCacheKey(req.Broker, idemKey), res, r.cfg.IdempotencyTTL)
	}
	if res.Success && r.book != nil {
		coid := res.ClientOrderID
		if coid == "" {
			coid = req.Meta.TradeID
		}
		r.book.Track(models.TrackedTrade{
			ID:            req.Meta.TradeID,
			Broker:        req.Broker,
			Symbol:        req.Symbol,
			Side:          req.Side,
			Units:         req.Units,
			Status:        models.TradePending,
			ClientOrderID: coid,
			OpenedAt:      res.PlacedAt,
		})
	}
	r.record(ctx, "place_order", req, res)
	return res
}

// dispatchWithRetry tries the connector with exponential backoff. Every
// failed try counts toward the breaker; a success clears it.
func (r *Router) dispatchWithRetry(ctx context.Context, conn domrepo.Connector, req *models.OrderRequest) *models.OrderResult {
	var res *models.OrderResult
	op := func() error {
		var err error
		res, err = conn.PlaceOrder(ctx, req)
		if err == nil && res != nil && !res.Success {
			err = errFromResult(res)
		}
		if err != nil {
			r.breaker.recordFailure(req.Broker)
			return err
		}
		r.breaker.recordSuccess(req.Broker)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.cfg.RetryBase
	bo.MaxElapsedTime = 0
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(r.cfg.RetryAttempts)), ctx))
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordOrderRouted(req.Broker, "failed")
		}
		return failed(req.Broker, err.Error())
	}
	if r.metrics != nil {
		r.metrics.RecordOrderRouted(req.Broker, "success")
	}
	return res
}

// ClosePosition dispatches a close without idempotency or breaker wrapping;
// closes are assumed idempotent at the broker.
func (r *Router) ClosePosition(ctx context.Context, req *models.CloseRequest) *models.OrderResult {
	req.Broker = strings.ToLower(strings.TrimSpace(req.Broker))
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	conn, ok := r.connectors[req.Broker]
	if !ok {
		return failed(req.Broker, "no connector for broker "+req.Broker)
	}
	res, err := conn.ClosePosition(ctx, req)
	if err != nil {
		res = failed(req.Broker, err.Error())
	}
	r.record(ctx, "close_position", &models.OrderRequest{Broker: req.Broker, Symbol: req.Symbol}, res)
	return res
}

// ModifyPosition dispatches a stop/target modification.
func (r *Router) ModifyPosition(ctx context.Context, req *models.ModifyRequest) *models.OrderResult {
	req.Broker = strings.ToLower(strings.TrimSpace(req.Broker))
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	conn, ok := r.connectors[req.Broker]
	if !ok {
		return failed(req.Broker, "no connector for broker "+req.Broker)
	}
	res, err := conn.ModifyPosition(ctx, req)
	if err != nil {
		res = failed(req.Broker, err.Error())
	}
	r.record(ctx, "modify_position", &models.OrderRequest{Broker: req.Broker, Symbol: req.Symbol}, res)
	return res
}

// HealthCheck polls every connector concurrently.
func (r *Router) HealthCheck(ctx context.Context) map[string]*domrepo.ConnectorHealth {
	out := make(map[string]*domrepo.ConnectorHealth, len(r.connectors))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for broker, conn := range r.connectors {
		wg.Add(1)
		go func(broker string, conn domrepo.Connector) {
			defer wg.Done()
			health, err := conn.HealthCheck(ctx)
			if err != nil {
				health = &domrepo.ConnectorHealth{Broker: broker, Connected: false, Details: err.Error()}
			}
			mu.Lock()
			out[broker] = health
			mu.Unlock()
		}(broker, conn)
	}
	wg.Wait()
	return out
}

// Status reports the router's shared state for the status endpoint.
type Status struct {
	KillSwitch bool                    `json:"killSwitch"`
	Breakers   map[string]BreakerState `json:"breakers"`
	Audit      []AuditEntry            `json:"audit"`
}

func (r *Router) Status() Status {
	r.auditMu.Lock()
	audit := make([]AuditEntry, len(r.audit))
	copy(audit, r.audit)
	r.auditMu.Unlock()
	return Status{
		KillSwitch: r.kill.Load(),
		Breakers:   r.breaker.states(),
		Audit:      audit,
	}
}

// BreakerState exposes one broker's circuit snapshot.
func (r *Router) BreakerState(broker string) BreakerState {
	return r.breaker.state(strings.ToLower(broker))
}

// record appends to the bounded audit log and forwards to the durable
// archive and the event bus, best-effort.
func (r *Router) record(ctx context.Context, action string, req *models.OrderRequest, res *models.OrderResult) {
	entry := AuditEntry{
		Time:           r.now(),
		Broker:         req.Broker,
		Symbol:         req.Symbol,
		Action:         action,
		Success:        res.Success,
		Error:          res.Error,
		OrderID:        res.OrderID,
		IdempotencyKey: req.Meta.IdempotencyKey,
	}
	r.auditMu.Lock()
	r.audit = append(r.audit, entry)
	if len(r.audit) > r.cfg.AuditLogSize {
		r.audit = r.audit[len(r.audit)-r.cfg.AuditLogSize:]
	}
	r.auditMu.Unlock()

	if r.archive != nil {
		if err := r.archive.ArchiveOrder(ctx, req, res); err != nil && r.log != nil {
			r.log.Warn("order archive write failed", logger.Error(err))
		}
	}
	if r.publisher != nil {
		if err := r.publisher.PublishAuditEvent(ctx, entry); err != nil && r.log != nil {
			r.log.Warn("audit event publish failed", logger.Error(err))
		}
	}
}

// normalizeOrder canonicalizes the request in place. Returns a non-empty
// message when the request is unusable.
func normalizeOrder(req *models.OrderRequest) string {
	req.Broker = strings.ToLower(strings.TrimSpace(req.Broker))
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Broker == "" {
		return "broker is required"
	}
	if req.Symbol == "" {
		return "symbol is required"
	}
	if req.Units <= 0 {
		return "units must be positive"
	}
	switch req.Side {
	case models.SideBuy, models.SideSell:
	default:
		return "side must be buy or sell"
	}
	if req.Type == "" {
		req.Type = models.OrderMarket
	}
	if req.Type != models.OrderMarket && req.Price <= 0 {
		return "limit and stop orders require a price"
	}
	return ""
}

func idemCacheKey(broker, key string) string {
	return broker + "|" + key
}

type resultError struct{ msg string }

func (e resultError) Error() string { return e.msg }

func errFromResult(res *models.OrderResult) error {
	msg := res.Error
	if msg == "" {
		msg = "broker rejected order"
	}
	return resultError{msg: msg}
}
