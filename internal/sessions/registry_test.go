package sessions

import (
	"fmt"
	"testing"
	"time"
)

func TestRegisterAndHeartbeat(t *testing.T) {
	now := time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)
	r := NewRegistry(WithClock(func() time.Time { return now }))

	s := r.Register(RegisterInput{
		AccountNumber: "12345", Broker: "mt5", AccountMode: "demo",
		Equity: 1000, Balance: 1000, Server: "Demo-1", Currency: "USD",
	})
	if s.ID != "mt5-demo-12345" {
		t.Fatalf("unexpected session id %q", s.ID)
	}
	if !s.IsActive || !s.ConnectedAt.Equal(now) {
		t.Fatalf("unexpected session state: %+v", s)
	}

	now = now.Add(30 * time.Second)
	hb := r.Heartbeat(HeartbeatInput{
		AccountNumber: "12345", Broker: "mt5", AccountMode: "demo",
		Equity: 1010, Balance: 1005, OpenTrades: 2,
	})
	if hb.ID != s.ID {
		t.Fatalf("heartbeat created a different session: %q", hb.ID)
	}
	if hb.Equity != 1010 || hb.OpenTrades != 2 {
		t.Fatalf("heartbeat did not update account state: %+v", hb)
	}
	if hb.ConnectedAt != s.ConnectedAt {
		t.Fatal("heartbeat must not reset connectedAt")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Len())
	}
}

func TestHeartbeatAutoCreatesSession(t *testing.T) {
	r := NewRegistry()

	hb := r.Heartbeat(HeartbeatInput{
		AccountNumber: "777", Broker: "oanda", AccountMode: "live", Equity: 500,
	})
	if hb == nil || hb.ID != "oanda-live-777" {
		t.Fatalf("heartbeat should recreate missing session, got %+v", hb)
	}
	if got, ok := r.Session(hb.ID); !ok || !got.IsActive {
		t.Fatalf("recreated session should be tracked and active, got %+v", got)
	}
}

func TestSessionGoesStale(t *testing.T) {
	now := time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)
	r := NewRegistry(
		WithClock(func() time.Time { return now }),
		WithStaleAfter(time.Minute),
	)
	s := r.Register(RegisterInput{AccountNumber: "1", Broker: "mt4", AccountMode: "demo"})

	now = now.Add(2 * time.Minute)
	got, ok := r.Session(s.ID)
	if !ok {
		t.Fatal("session should still exist")
	}
	if got.IsActive {
		t.Fatal("session past the stale window should report inactive")
	}
	if brokers := r.ActiveBrokers(); len(brokers) != 0 {
		t.Fatalf("stale session must not count as active broker: %v", brokers)
	}
}

func TestDisconnect(t *testing.T) {
	r := NewRegistry()
	s := r.Register(RegisterInput{AccountNumber: "9", Broker: "mt5", AccountMode: "live"})

	if !r.Disconnect(s.ID) {
		t.Fatal("disconnect should report true for a known session")
	}
	if r.Disconnect(s.ID) {
		t.Fatal("second disconnect should report false")
	}
	if _, ok := r.Session(s.ID); ok {
		t.Fatal("disconnected session should be gone")
	}
}

func TestRegistryBounded(t *testing.T) {
	r := NewRegistry(WithMaxSessions(3))
	for i := 0; i < 5; i++ {
		r.Register(RegisterInput{
			AccountNumber: fmt.Sprintf("%d", i), Broker: "mt5", AccountMode: "demo",
		})
	}
	if r.Len() != 3 {
		t.Fatalf("expected registry capped at 3, got %d", r.Len())
	}
	if _, ok := r.Session("mt5-demo-0"); ok {
		t.Fatal("oldest session should have been evicted")
	}
	if _, ok := r.Session("mt5-demo-4"); !ok {
		t.Fatal("newest session should survive eviction")
	}
}

func TestRecordTrade(t *testing.T) {
	r := NewRegistry()
	s := r.Register(RegisterInput{AccountNumber: "5", Broker: "ibkr", AccountMode: "live"})

	r.RecordTrade(s.ID, 12.5)
	r.RecordTrade(s.ID, -4.0)

	got, _ := r.Session(s.ID)
	if got.TradesExecuted != 2 {
		t.Fatalf("expected 2 trades, got %d", got.TradesExecuted)
	}
	if got.ProfitLoss != 8.5 {
		t.Fatalf("expected pnl 8.5, got %v", got.ProfitLoss)
	}
}
