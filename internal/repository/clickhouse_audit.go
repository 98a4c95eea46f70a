package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domrepo "FxBridge/internal/domain/repository"
	"FxBridge/internal/domain/models"
	pkgch "FxBridge/pkg/clickhouse"
	applogger "FxBridge/pkg/logger"
)

const (
	ordersTable = "fx_orders_audit"
	fillsTable  = "fx_fills_audit"
)

// AuditSchema is the DDL the ClickHouse client applies on startup.
var AuditSchema = []string{
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        ts DateTime64(3),
        broker LowCardinality(String),
        symbol LowCardinality(String),
        side LowCardinality(String),
        type LowCardinality(String),
        units Float64,
        price Float64,
        stop_loss Float64,
        take_profit Float64,
        trade_id String,
        idempotency_key String,
        order_id String,
        success UInt8,
        error String,
        source LowCardinality(String)
    ) ENGINE = MergeTree ORDER BY (broker, symbol, ts)`, ordersTable),
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        ts DateTime64(3),
        broker LowCardinality(String),
        symbol LowCardinality(String),
        side LowCardinality(String),
        units Float64,
        price Float64,
        order_id String,
        client_order_id String
    ) ENGINE = MergeTree ORDER BY (broker, symbol, ts)`, fillsTable),
}

// ClickHouseAuditArchive persists routed orders and reconciled fills. Callers
// treat every write as best-effort; a ClickHouse outage never blocks routing.
type ClickHouseAuditArchive struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewClickHouseAuditArchive(ch *pkgch.Client) *ClickHouseAuditArchive {
	return &ClickHouseAuditArchive{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *ClickHouseAuditArchive) SetLogger(l *applogger.Logger) { s.l = l }

func (s *ClickHouseAuditArchive) ArchiveOrder(ctx context.Context, req *models.OrderRequest, res *models.OrderResult) error {
	if req == nil || res == nil {
		return fmt.Errorf("order audit needs request and result")
	}
	q := fmt.Sprintf(`INSERT INTO %s
        (ts, broker, symbol, side, type, units, price, stop_loss, take_profit,
         trade_id, idempotency_key, order_id, success, error, source)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, ordersTable)

	ts := res.PlacedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	success := uint8(0)
	if res.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		ts, req.Broker, req.Symbol, string(req.Side), string(req.Type),
		req.Units, req.Price, req.StopLoss, req.TakeProfit,
		req.Meta.TradeID, req.Meta.IdempotencyKey, res.OrderID,
		success, res.Error, req.Meta.Source,
	)
	if err != nil && s.l != nil {
		s.l.Error("clickhouse order audit insert failed",
			applogger.String("broker", req.Broker),
			applogger.String("symbol", req.Symbol),
			applogger.Error(err),
		)
	}
	return err
}

func (s *ClickHouseAuditArchive) ArchiveFill(ctx context.Context, fill *models.Fill) error {
	if fill == nil {
		return fmt.Errorf("fill is nil")
	}
	q := fmt.Sprintf(`INSERT INTO %s
        (ts, broker, symbol, side, units, price, order_id, client_order_id)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, fillsTable)

	ts := fill.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, q,
		ts, fill.Broker, fill.Symbol, string(fill.Side),
		fill.Units, fill.Price, fill.OrderID, fill.ClientOrderID,
	)
	if err != nil && s.l != nil {
		s.l.Error("clickhouse fill audit insert failed",
			applogger.String("broker", fill.Broker),
			applogger.String("symbol", fill.Symbol),
			applogger.Error(err),
		)
	}
	return err
}

// RecentOrders returns the latest archived orders for a broker, newest first.
func (s *ClickHouseAuditArchive) RecentOrders(ctx context.Context, broker string, limit int) ([]models.AuditedOrder, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	q := fmt.Sprintf(`SELECT ts, broker, symbol, side, units, price, order_id, success, error
        FROM %s WHERE broker = ? ORDER BY ts DESC LIMIT ?`, ordersTable)
	rows, err := s.db.QueryContext(ctx, q, broker, limit)
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	defer rows.Close()

	out := make([]models.AuditedOrder, 0, limit)
	for rows.Next() {
		var o models.AuditedOrder
		var success uint8
		if err := rows.Scan(&o.Time, &o.Broker, &o.Symbol, &o.Side, &o.Units, &o.Price, &o.OrderID, &success, &o.Error); err != nil {
			return nil, fmt.Errorf("scan audited order: %w", err)
		}
		o.Success = success == 1
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *ClickHouseAuditArchive) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAuditArchive) Close() error {
	return nil // connection owned by pkg client
}

var _ domrepo.AuditArchive = (*ClickHouseAuditArchive)(nil)
