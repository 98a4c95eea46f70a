package router

import (
	"context"
	"strings"
	"sync"
	"time"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
	"FxBridge/pkg/logger"
)

const maxTrackedTrades = 1000

// TradeBook is the engine-side record of routed orders, reconciled against
// broker-reported fills.
type TradeBook struct {
	mu      sync.RWMutex
	byID    map[string]*models.TrackedTrade
	byCOID  map[string]string
	ordered []string
}

func NewTradeBook() *TradeBook {
	return &TradeBook{
		byID:   make(map[string]*models.TrackedTrade),
		byCOID: make(map[string]string),
	}
}

// Track records a routed order as pending, evicting the oldest entry when
// the book is full.
func (b *TradeBook) Track(trade models.TrackedTrade) {
	if trade.ID == "" {
		return
	}
	if trade.Status == "" {
		trade.Status = models.TradePending
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.byID[trade.ID]; !exists {
		if len(b.ordered) >= maxTrackedTrades {
			oldest := b.ordered[0]
			b.ordered = b.ordered[1:]
			if old, ok := b.byID[oldest]; ok && old.ClientOrderID != "" {
				delete(b.byCOID, old.ClientOrderID)
			}
			delete(b.byID, oldest)
		}
		b.ordered = append(b.ordered, trade.ID)
	}
	b.byID[trade.ID] = &trade
	if trade.ClientOrderID != "" {
		b.byCOID[trade.ClientOrderID] = trade.ID
	}
}

// Trade returns a copy of the tracked trade.
func (b *TradeBook) Trade(id string) (models.TrackedTrade, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if t, ok := b.byID[id]; ok {
		return *t, true
	}
	return models.TrackedTrade{}, false
}

// Trades snapshots the book, newest first.
func (b *TradeBook) Trades() []models.TrackedTrade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]models.TrackedTrade, 0, len(b.ordered))
	for i := len(b.ordered) - 1; i >= 0; i-- {
		if t, ok := b.byID[b.ordered[i]]; ok {
			out = append(out, *t)
		}
	}
	return out
}

// IngestFills matches broker fills to tracked trades by client order id
// (trade id in the order comment) and marks them filled at the reported
// price. Returns the number of trades updated.
func (b *TradeBook) IngestFills(fills []models.Fill) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	updated := 0
	for _, fill := range fills {
		id := fill.ClientOrderID
		if mapped, ok := b.byCOID[id]; ok {
			id = mapped
		}
		t, ok := b.byID[id]
		if !ok || t.Status != models.TradePending {
			continue
		}
		t.Status = models.TradeFilled
		t.FillPrice = fill.Price
		updated++
	}
	return updated
}

// BrokerSnapshot is one connector's reconciliation fetch result.
type BrokerSnapshot struct {
	Broker    string                 `json:"broker"`
	Positions []models.Position      `json:"positions,omitempty"`
	Fills     []models.Fill          `json:"fills,omitempty"`
	Account   *models.AccountSummary `json:"account,omitempty"`
	Err       string                 `json:"error,omitempty"`
}

// ReconciliationService periodically polls every connector and feeds
// broker-reported fills back into the trade book.
type ReconciliationService struct {
	connectors []domrepo.Connector
	book       *TradeBook
	archive    domrepo.AuditArchive
	interval   time.Duration
	log        *logger.Logger
}

// NewReconciliationService wires the reconciliation loop. archive may be nil.
func NewReconciliationService(connectors []domrepo.Connector, book *TradeBook, archive domrepo.AuditArchive, interval time.Duration, log *logger.Logger) *ReconciliationService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReconciliationService{
		connectors: connectors,
		book:       book,
		archive:    archive,
		interval:   interval,
		log:        log,
	}
}

// Run polls on the configured interval until the context is cancelled.
func (s *ReconciliationService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce fetches positions, fills, and account state from every connector
// concurrently. One connector's failure never aborts the batch.
func (s *ReconciliationService) RunOnce(ctx context.Context) []BrokerSnapshot {
	snapshots := make([]BrokerSnapshot, len(s.connectors))
	var wg sync.WaitGroup
	for i, conn := range s.connectors {
		wg.Add(1)
		go func(i int, conn domrepo.Connector) {
			defer wg.Done()
			snapshots[i] = s.fetchOne(ctx, conn)
		}(i, conn)
	}
	wg.Wait()

	for _, snap := range snapshots {
		if snap.Err != "" {
			if s.log != nil {
				s.log.Warn("reconciliation fetch failed",
					logger.String("broker", snap.Broker), logger.String("error", snap.Err))
			}
			continue
		}
		if n := s.book.IngestFills(snap.Fills); n > 0 && s.log != nil {
			s.log.Info("reconciled fills",
				logger.String("broker", snap.Broker), logger.Int("updated", n))
		}
		if s.archive != nil {
			for i := range snap.Fills {
				if err := s.archive.ArchiveFill(ctx, &snap.Fills[i]); err != nil && s.log != nil {
					s.log.Warn("fill archive write failed", logger.Error(err))
				}
			}
		}
	}
	return snapshots
}

func (s *ReconciliationService) fetchOne(ctx context.Context, conn domrepo.Connector) BrokerSnapshot {
	snap := BrokerSnapshot{Broker: strings.ToLower(conn.Broker())}
	var errs []string

	positions, err := conn.FetchOpenPositions(ctx)
	if err != nil {
		errs = append(errs, "positions: "+err.Error())
	} else {
		snap.Positions = positions
	}
	fills, err := conn.FetchRecentFills(ctx)
	if err != nil {
		errs = append(errs, "fills: "+err.Error())
	} else {
		snap.Fills = fills
	}
	account, err := conn.FetchAccountSummary(ctx)
	if err != nil {
		errs = append(errs, "account: "+err.Error())
	} else {
		snap.Account = account
	}

	// partial fetch failures keep whatever data did arrive
	if len(errs) == 3 {
		snap.Err = strings.Join(errs, "; ")
	} else if len(errs) > 0 && s.log != nil {
		s.log.Warn("partial reconciliation fetch",
			logger.String("broker", snap.Broker), logger.String("errors", strings.Join(errs, "; ")))
	}
	return snap
}
