package models

import "time"

// OrderSide is the normalized direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType is the normalized execution type.
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
	OrderStop   OrderType = "stop"
)

// RouterMeta carries routing bookkeeping attached by the caller.
type RouterMeta struct {
	Source         string `json:"source,omitempty"`
	TradeID        string `json:"tradeId,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// OrderRequest is the router-normalized order/modify/close request.
type OrderRequest struct {
	Broker        string     `json:"broker"`
	Symbol        string     `json:"symbol"`
	Type          OrderType  `json:"type"`
	Side          OrderSide  `json:"side"`
	Units         float64    `json:"units"`
	Price         float64    `json:"price,omitempty"`
	TakeProfit    float64    `json:"takeProfit,omitempty"`
	StopLoss      float64    `json:"stopLoss,omitempty"`
	TimeInForce   string     `json:"timeInForce,omitempty"`
	Comment       string     `json:"comment,omitempty"`
	AccountNumber string     `json:"accountNumber,omitempty"`
	Meta          RouterMeta `json:"routerMeta,omitempty"`
}

// OrderResult is the normalized broker response for an order operation.
type OrderResult struct {
	Success          bool      `json:"success"`
	Broker           string    `json:"broker,omitempty"`
	OrderID          string    `json:"orderId,omitempty"`
	ClientOrderID    string    `json:"clientOrderId,omitempty"`
	FillPrice        float64   `json:"fillPrice,omitempty"`
	Error            string    `json:"error,omitempty"`
	IdempotentReplay bool      `json:"idempotentReplay,omitempty"`
	PlacedAt         time.Time `json:"placedAt,omitempty"`
}

// ModifyRequest adjusts stops on an open position.
type ModifyRequest struct {
	Broker     string  `json:"broker"`
	Symbol     string  `json:"symbol"`
	Ticket     string  `json:"ticket"`
	StopLoss   float64 `json:"stopLoss,omitempty"`
	TakeProfit float64 `json:"takeProfit,omitempty"`
}

// CloseRequest closes all or part of an open position.
type CloseRequest struct {
	Broker string  `json:"broker"`
	Symbol string  `json:"symbol"`
	Ticket string  `json:"ticket"`
	Units  float64 `json:"units,omitempty"` // 0 closes the full position
}

// Position is a broker-reported open position.
type Position struct {
	Broker       string    `json:"broker"`
	Symbol       string    `json:"symbol"`
	Ticket       string    `json:"ticket"`
	Side         OrderSide `json:"side"`
	Units        float64   `json:"units"`
	EntryPrice   float64   `json:"entryPrice"`
	StopLoss     float64   `json:"stopLoss,omitempty"`
	TakeProfit   float64   `json:"takeProfit,omitempty"`
	UnrealizedPL float64   `json:"unrealizedPL,omitempty"`
	OpenedAt     time.Time `json:"openedAt,omitempty"`
	Comment      string    `json:"comment,omitempty"`
}

// Fill is a broker-reported execution.
type Fill struct {
	Broker        string    `json:"broker"`
	Symbol        string    `json:"symbol"`
	OrderID       string    `json:"orderId"`
	ClientOrderID string    `json:"clientOrderId,omitempty"`
	Side          OrderSide `json:"side"`
	Units         float64   `json:"units"`
	Price         float64   `json:"price"`
	Time          time.Time `json:"time"`
}

// AccountSummary is the broker-reported account state.
type AccountSummary struct {
	Broker        string  `json:"broker"`
	AccountNumber string  `json:"accountNumber,omitempty"`
	Currency      string  `json:"currency,omitempty"`
	Equity        float64 `json:"equity"`
	Balance       float64 `json:"balance"`
	MarginUsed    float64 `json:"marginUsed,omitempty"`
}

// TradeStatus tracks an engine-side trade through its lifecycle.
type TradeStatus string

const (
	TradePending TradeStatus = "pending"
	TradeFilled  TradeStatus = "filled"
	TradeClosed  TradeStatus = "closed"
)

// TrackedTrade is the engine's record of a routed order, reconciled against
// broker-reported fills by client order id.
type TrackedTrade struct {
	ID            string      `json:"id"`
	Broker        string      `json:"broker"`
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	Units         float64     `json:"units"`
	FillPrice     float64     `json:"fillPrice,omitempty"`
	Status        TradeStatus `json:"status"`
	ClientOrderID string      `json:"clientOrderId,omitempty"`
	OpenedAt      time.Time   `json:"openedAt"`
}

// ManagementAction is a position-management command kind for the EA.
type ManagementAction string

const (
	ActionMoveStop     ManagementAction = "move_stop"
	ActionTrailStop    ManagementAction = "trail_stop"
	ActionPartialClose ManagementAction = "partial_close"
	ActionClose        ManagementAction = "close"
)

// ManagementCommand is queued for EA pickup via drain polling.
type ManagementCommand struct {
	ID            string           `json:"id"`
	Broker        string           `json:"broker"`
	Symbol        string           `json:"symbol"`
	Ticket        string           `json:"ticket,omitempty"`
	Action        ManagementAction `json:"action"`
	StopLoss      float64          `json:"stopLoss,omitempty"`
	TakeProfit    float64          `json:"takeProfit,omitempty"`
	CloseFraction float64          `json:"closeFraction,omitempty"`
	Reason        string           `json:"reason,omitempty"`
	IssuedAt      time.Time        `json:"issuedAt"`
}

// ManagementPlan is the trade-management schedule attached to an executable
// signal, adapted to the signal's volatility regime.
type ManagementPlan struct {
	BreakevenAtR   float64        `json:"breakevenAtR"`
	TrailStartAtR  float64        `json:"trailStartAtR"`
	TrailDistanceR float64        `json:"trailDistanceR"`
	PartialCloses  []PartialClose `json:"partialCloses,omitempty"`
}

// PartialClose is one rung of the partial-close ladder.
type PartialClose struct {
	AtR      float64 `json:"atR"`
	Fraction float64 `json:"fraction"`
}

// AuditedOrder is one archived routing record read back for dashboards.
type AuditedOrder struct {
	Time    time.Time `json:"time"`
	Broker  string    `json:"broker"`
	Symbol  string    `json:"symbol"`
	Side    string    `json:"side"`
	Units   float64   `json:"units"`
	Price   float64   `json:"price"`
	OrderID string    `json:"orderId,omitempty"`
	Success bool      `json:"success"`
	Error   string    `json:"error,omitempty"`
}
