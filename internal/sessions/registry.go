package sessions

import (
	"sync"
	"time"

	"FxBridge/internal/domain/models"
	"FxBridge/pkg/logger"
)

const (
	defaultMaxSessions = 200
	defaultStaleAfter  = 5 * time.Minute
)

// Registry tracks live EA sessions, bounded and keyed by
// broker-mode-accountNumber.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	order    []string

	maxSessions int
	staleAfter  time.Duration
	now         func() time.Time
	log         *logger.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithMaxSessions bounds the registry size.
func WithMaxSessions(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxSessions = n
		}
	}
}

// WithStaleAfter sets how long a session may miss heartbeats before it is
// reported inactive.
func WithStaleAfter(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.staleAfter = d
		}
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithLogger attaches a logger.
func WithLogger(log *logger.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates an empty session registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions:    make(map[string]*models.Session),
		maxSessions: defaultMaxSessions,
		staleAfter:  defaultStaleAfter,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterInput is the register payload after DTO validation.
type RegisterInput struct {
	AccountNumber string
	Broker        string
	AccountMode   string
	Equity        float64
	Balance       float64
	Server        string
	Currency      string
}

// Register creates or refreshes the session for the account and returns it.
func (r *Registry) Register(in RegisterInput) *models.Session {
	id := models.SessionID(in.Broker, in.AccountMode, in.AccountNumber)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = &models.Session{
			ID:            id,
			Broker:        in.Broker,
			AccountNumber: in.AccountNumber,
			AccountMode:   in.AccountMode,
			ConnectedAt:   now,
		}
		r.insertLocked(id, s)
		if r.log != nil {
			r.log.Info("ea session registered",
				logger.String("session", id), logger.String("broker", in.Broker))
		}
	}
	s.Equity = in.Equity
	s.Balance = in.Balance
	s.Server = in.Server
	s.Currency = in.Currency
	s.LastHeartbeat = now
	s.IsActive = true

	out := *s
	return &out
}

// HeartbeatInput is the heartbeat payload after DTO validation.
type HeartbeatInput struct {
	AccountNumber string
	Broker        string
	AccountMode   string
	Equity        float64
	Balance       float64
	OpenTrades    int
}

// Heartbeat refreshes the session's liveness and account numbers. A heartbeat
// for an unknown session recreates it so a bridge restart does not strand a
// connected EA.
func (r *Registry) Heartbeat(in HeartbeatInput) *models.Session {
	id := models.SessionID(in.Broker, in.AccountMode, in.AccountNumber)
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = &models.Session{
			ID:            id,
			Broker:        in.Broker,
			AccountNumber: in.AccountNumber,
			AccountMode:   in.AccountMode,
			ConnectedAt:   now,
		}
		r.insertLocked(id, s)
		if r.log != nil {
			r.log.Warn("heartbeat for unknown session, recreating",
				logger.String("session", id))
		}
	}
	s.Equity = in.Equity
	s.Balance = in.Balance
	s.OpenTrades = in.OpenTrades
	s.LastHeartbeat = now
	s.IsActive = true

	out := *s
	return &out
}

// RecordTrade bumps the session's execution counters after a routed order.
func (r *Registry) RecordTrade(id string, profit float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.TradesExecuted++
		s.ProfitLoss += profit
	}
}

// Disconnect removes the session. Returns false when it was not present.
func (r *Registry) Disconnect(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	for i, k := range r.order {
		if k == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Session returns a copy of the session, marking it inactive when the last
// heartbeat is older than the stale window.
func (r *Registry) Session(id string) (*models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	out := *s
	out.IsActive = r.now().Sub(s.LastHeartbeat) <= r.staleAfter
	return &out, true
}

// Sessions returns copies of all tracked sessions, newest registration first.
func (r *Registry) Sessions() []*models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now()
	out := make([]*models.Session, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		if s, ok := r.sessions[r.order[i]]; ok {
			c := *s
			c.IsActive = now.Sub(s.LastHeartbeat) <= r.staleAfter
			out = append(out, &c)
		}
	}
	return out
}

// ActiveBrokers lists brokers with at least one live session.
func (r *Registry) ActiveBrokers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := r.now()
	seen := make(map[string]struct{})
	var out []string
	for _, k := range r.order {
		s, ok := r.sessions[k]
		if !ok || now.Sub(s.LastHeartbeat) > r.staleAfter {
			continue
		}
		if _, dup := seen[s.Broker]; dup {
			continue
		}
		seen[s.Broker] = struct{}{}
		out = append(out, s.Broker)
	}
	return out
}

// Len reports the number of tracked sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// insertLocked adds a new session, evicting the oldest when full.
func (r *Registry) insertLocked(id string, s *models.Session) {
	if len(r.sessions) >= r.maxSessions && len(r.order) > 0 {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.sessions, oldest)
	}
	r.sessions[id] = s
	r.order = append(r.order, id)
}
