package repository

import (
	"context"

	"FxBridge/internal/domain/models"
)

// MarketStream is a push quote feed (websocket gateway on the terminal side).
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Quote, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// EventPublisher broadcasts signal and audit events to an external bus.
type EventPublisher interface {
	PublishSignalEvent(ctx context.Context, ev *models.SignalEvent) error
	PublishAuditEvent(ctx context.Context, record any) error
	Close() error
}

// AuditArchive persists routed orders and reconciled fills, best-effort.
type AuditArchive interface {
	ArchiveOrder(ctx context.Context, req *models.OrderRequest, res *models.OrderResult) error
	ArchiveFill(ctx context.Context, fill *models.Fill) error
	Health(ctx context.Context) error
	Close() error
}

// Connector is the normalized broker adapter contract.
type Connector interface {
	Broker() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Restart(ctx context.Context) error
	HealthCheck(ctx context.Context) (*ConnectorHealth, error)
	PlaceOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error)
	ClosePosition(ctx context.Context, req *models.CloseRequest) (*models.OrderResult, error)
	ModifyPosition(ctx context.Context, req *models.ModifyRequest) (*models.OrderResult, error)
	FetchOpenPositions(ctx context.Context) ([]models.Position, error)
	FetchRecentFills(ctx context.Context) ([]models.Fill, error)
	FetchAccountSummary(ctx context.Context) (*models.AccountSummary, error)
}

// ConnectorHealth is the normalized health report for one broker.
type ConnectorHealth struct {
	Broker    string `json:"broker"`
	Mode      string `json:"mode,omitempty"`
	Connected bool   `json:"connected"`
	Details   string `json:"details,omitempty"`
}

// Metrics is the observability surface the core records against.
type Metrics interface {
	RecordQuoteIngested(broker, symbol string)
	RecordIngestRejected(kind string)
	RecordSignalEvent(eventType, broker string)
	RecordOrderRouted(broker, outcome string)
	RecordGuardBlock(guard string)
	RecordBreakerState(broker string, active bool)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
