package router

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
)

// fixedNow is a Tuesday 13:00 UTC, well inside FX market hours.
var fixedNow = time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)

type fakeConnector struct {
	broker     string
	placeCalls atomic.Int64
	fail       atomic.Bool
	fills      []models.Fill
	positions  []models.Position
}

func (f *fakeConnector) Broker() string                   { return f.broker }
func (f *fakeConnector) Connect(context.Context) error    { return nil }
func (f *fakeConnector) Disconnect(context.Context) error { return nil }
func (f *fakeConnector) Restart(context.Context) error    { return nil }

func (f *fakeConnector) HealthCheck(context.Context) (*domrepo.ConnectorHealth, error) {
	return &domrepo.ConnectorHealth{Broker: f.broker, Connected: true}, nil
}

func (f *fakeConnector) PlaceOrder(_ context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	f.placeCalls.Add(1)
	if f.fail.Load() {
		return nil, errors.New("connector unavailable")
	}
	return &models.OrderResult{
		Success:       true,
		OrderID:       "ord-1",
		ClientOrderID: req.Meta.TradeID,
		FillPrice:     1.1000,
	}, nil
}

func (f *fakeConnector) ClosePosition(context.Context, *models.CloseRequest) (*models.OrderResult, error) {
	return &models.OrderResult{Success: true}, nil
}

func (f *fakeConnector) ModifyPosition(context.Context, *models.ModifyRequest) (*models.OrderResult, error) {
	return &models.OrderResult{Success: true}, nil
}

func (f *fakeConnector) FetchOpenPositions(context.Context) ([]models.Position, error) {
	return f.positions, nil
}

func (f *fakeConnector) FetchRecentFills(context.Context) ([]models.Fill, error) {
	return f.fills, nil
}

func (f *fakeConnector) FetchAccountSummary(context.Context) (*models.AccountSummary, error) {
	return &models.AccountSummary{Broker: f.broker, Equity: 1000}, nil
}

func newTestRouter(conn *fakeConnector, cfg Config) *Router {
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = -1 // single try keeps failure tests fast
	}
	if cfg.RetryBase == 0 {
		cfg.RetryBase = time.Millisecond
	}
	return NewRouter(cfg, []domrepo.Connector{conn}, nil, nil,
		WithClock(func() time.Time { return fixedNow }))
}

func marketOrder(idemKey string) *models.OrderRequest {
	return &models.OrderRequest{
		Broker: "mt5",
		Symbol: "EURUSD",
		Side:   models.SideBuy,
		Units:  1000,
		Meta:   models.RouterMeta{IdempotencyKey: idemKey},
	}
}

func TestIdempotentReplay(t *testing.T) {
	conn := &fakeConnector{broker: "mt5"}
	r := newTestRouter(conn, Config{})

	first := r.PlaceOrder(context.Background(), marketOrder("key-1"))
	if !first.Success || first.IdempotentReplay {
		t.Fatalf("first placement should be a fresh success: %+v", first)
	}

	second := r.PlaceOrder(context.Background(), marketOrder("key-1"))
	if !second.Success || !second.IdempotentReplay {
		t.Fatalf("second placement should replay from cache: %+v", second)
	}
	if second.OrderID != first.OrderID {
		t.Fatalf("replay must return the original result, got %q vs %q", second.OrderID, first.OrderID)
	}
	if calls := conn.placeCalls.Load(); calls != 1 {
		t.Fatalf("connector should be invoked once, got %d", calls)
	}
}

func TestIdempotencyCachesFailures(t *testing.T) {
	conn := &fakeConnector{broker: "mt5"}
	conn.fail.Store(true)
	r := newTestRouter(conn, Config{})

	first := r.PlaceOrder(context.Background(), marketOrder("key-f"))
	if first.Success {
		t.Fatalf("failing connector should not succeed: %+v", first)
	}

	// A replayed key must not reach the broker again, even after a failure.
	second := r.PlaceOrder(context.Background(), marketOrder("key-f"))
	if second.Success || !second.IdempotentReplay {
		t.Fatalf("replay should return the cached failure: %+v", second)
	}
	if calls := conn.placeCalls.Load(); calls != 1 {
		t.Fatalf("connector should be invoked once, got %d", calls)
	}
}

func TestRoutedOrderLandsInTradeBook(t *testing.T) {
	conn := &fakeConnector{broker: "mt5"}
	book := NewTradeBook()
	r := NewRouter(Config{RetryAttempts: -1, RetryBase: time.Millisecond},
		[]domrepo.Connector{conn}, nil, nil,
		WithClock(func() time.Time { return fixedNow }),
		WithTradeBook(book))

	res := r.PlaceOrder(context.Background(), marketOrder(""))
	if !res.Success {
		t.Fatalf("placement failed: %+v", res)
	}

	trades := book.Trades()
	if len(trades) != 1 {
		t.Fatalf("routed order should be tracked, got %d entries", len(trades))
	}
	tracked := trades[0]
	if tracked.Status != models.TradePending || tracked.ClientOrderID == "" {
		t.Fatalf("tracked trade should be pending with a client order id: %+v", tracked)
	}

	// The broker later reports a fill under the same client order id; the
	// reconciliation pass resolves the pending entry.
	conn.fills = []models.Fill{{
		Broker: "mt5", Symbol: "EURUSD", ClientOrderID: res.ClientOrderID, Price: 1.1042,
	}}
	svc := NewReconciliationService([]domrepo.Connector{conn}, book, nil, time.Minute, nil)
	if snaps := svc.RunOnce(context.Background()); len(snaps) != 1 || snaps[0].Err != "" {
		t.Fatalf("unexpected reconciliation snapshots: %+v", snaps)
	}

	filled, ok := book.Trade(tracked.ID)
	if !ok {
		t.Fatal("tracked trade disappeared")
	}
	if filled.Status != models.TradeFilled || filled.FillPrice != 1.1042 {
		t.Fatalf("fill did not resolve the routed order: %+v", filled)
	}
}

func TestKillSwitchBlocksOrders(t *testing.T) {
	conn := &fakeConnector{broker: "mt5"}
	r := newTestRouter(conn, Config{KillSwitch: true})

	if res := r.PlaceOrder(context.Background(), marketOrder("")); res.Success {
		t.Fatalf("kill switch should block placeOrder: %+v", res)
	}
	if res := r.ManualOrder(context.Background(), marketOrder(""), false); res.Success {
		t.Fatalf("kill switch should block manualOrder without bypass: %+v", res)
	}
	if calls := conn.placeCalls.Load(); calls != 0 {
		t.Fatalf("no connector invocation expected, got %d", calls)
	}

	if res := r.ManualOrder(context.Background(), marketOrder(""), true); !res.Success {
		t.Fatalf("bypass should route despite kill switch: %+v", res)
	}
}

func TestBreakerTripsAndRecovers(t *testing.T) {
	conn := &fakeConnector{broker: "mt5"}
	conn.fail.Store(true)
	r := newTestRouter(conn, Config{BreakerThreshold: 3, BreakerCooldown: 30 * time.Second})

	for i := 0; i < 3; i++ {
		if res := r.PlaceOrder(context.Background(), marketOrder("")); res.Success {
			t.Fatalf("failing connector should not succeed on try %d", i)
		}
	}
	if st := r.BreakerState("mt5"); !st.Active {
		t.Fatalf("breaker should be tripped after threshold failures: %+v", st)
	}

	before := conn.placeCalls.Load()
	res := r.PlaceOrder(context.Background(), marketOrder(""))
	if res.Success {
		t.Fatal("tripped breaker should reject immediately")
	}
	if conn.placeCalls.Load() != before {
		t.Fatal("tripped breaker must not invoke the connector")
	}

	// cooldown elapses, the next call goes through again
	fixedSave := fixedNow
	fixedNow = fixedNow.Add(31 * time.Second)
	defer func() { fixedNow = fixedSave }()
	conn.fail.Store(false)

	res = r.PlaceOrder(context.Background(), marketOrder(""))
	if !res.Success {
		t.Fatalf("breaker should recover after cooldown: %+v", res)
	}
	if st := r.BreakerState("mt5"); st.Active || st.Failures != 0 {
		t.Fatalf("success should clear the breaker: %+v", st)
	}
}

func TestNormalizationRejectsBadRequests(t *testing.T) {
	conn := &fakeConnector{broker: "mt5"}
	r := newTestRouter(conn, Config{})

	cases := []struct {
		name string
		req  *models.OrderRequest
	}{
		{"missing broker", &models.OrderRequest{Symbol: "EURUSD", Side: models.SideBuy, Units: 1}},
		{"missing symbol", &models.OrderRequest{Broker: "mt5", Side: models.SideBuy, Units: 1}},
		{"zero units", &models.OrderRequest{Broker: "mt5", Symbol: "EURUSD", Side: models.SideBuy}},
		{"bad side", &models.OrderRequest{Broker: "mt5", Symbol: "EURUSD", Side: "long", Units: 1}},
		{"limit without price", &models.OrderRequest{Broker: "mt5", Symbol: "EURUSD", Side: models.SideBuy, Units: 1, Type: models.OrderLimit}},
	}
	for _, tc := range cases {
		if res := r.PlaceOrder(context.Background(), tc.req); res.Success {
			t.Errorf("%s: expected rejection, got %+v", tc.name, res)
		}
	}
	if calls := conn.placeCalls.Load(); calls != 0 {
		t.Fatalf("malformed requests must not reach the connector, got %d calls", calls)
	}
}

func TestAuditLogBounded(t *testing.T) {
	conn := &fakeConnector{broker: "mt5"}
	r := newTestRouter(conn, Config{AuditLogSize: 5})

	for i := 0; i < 10; i++ {
		r.PlaceOrder(context.Background(), marketOrder(""))
	}
	if got := len(r.Status().Audit); got != 5 {
		t.Fatalf("audit log should cap at 5 entries, got %d", got)
	}
}

func TestReconciliationMatchesFills(t *testing.T) {
	book := NewTradeBook()
	book.Track(models.TrackedTrade{
		ID:            "trade-1",
		Broker:        "mt5",
		Symbol:        "EURUSD",
		Side:          models.SideBuy,
		Units:         1000,
		ClientOrderID: "trade-1",
		OpenedAt:      fixedNow,
	})

	conn := &fakeConnector{
		broker: "mt5",
		fills: []models.Fill{
			{Broker: "mt5", Symbol: "EURUSD", ClientOrderID: "trade-1", Price: 1.1042},
			{Broker: "mt5", Symbol: "GBPUSD", ClientOrderID: "unknown", Price: 1.2500},
		},
	}
	svc := NewReconciliationService([]domrepo.Connector{conn}, book, nil, time.Minute, nil)

	snaps := svc.RunOnce(context.Background())
	if len(snaps) != 1 || snaps[0].Err != "" {
		t.Fatalf("unexpected reconciliation snapshots: %+v", snaps)
	}

	trade, ok := book.Trade("trade-1")
	if !ok {
		t.Fatal("tracked trade disappeared")
	}
	if trade.Status != models.TradeFilled {
		t.Fatalf("expected filled status, got %s", trade.Status)
	}
	if trade.FillPrice != 1.1042 {
		t.Fatalf("expected fill price 1.1042, got %v", trade.FillPrice)
	}
}
