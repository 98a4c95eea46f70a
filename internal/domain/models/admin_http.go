package models

// Request DTOs for the operator/admin HTTP surface.

type KillSwitchRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type ManualOrderRequest struct {
	Broker         string  `json:"broker" validate:"required"`
	Symbol         string  `json:"symbol" validate:"required"`
	Side           string  `json:"side" validate:"required,oneof=buy sell BUY SELL"`
	Type           string  `json:"type" default:"market" validate:"oneof=market limit stop"`
	Units          float64 `json:"units" validate:"required,gt=0"`
	Price          float64 `json:"price" validate:"gte=0"`
	StopLoss       float64 `json:"stopLoss" validate:"gte=0"`
	TakeProfit     float64 `json:"takeProfit" validate:"gte=0"`
	TimeInForce    string  `json:"timeInForce"`
	Comment        string  `json:"comment"`
	AccountNumber  string  `json:"accountNumber"`
	IdempotencyKey string  `json:"idempotencyKey"`
	BypassKill     bool    `json:"bypassKillSwitch"`
}

type ClosePositionRequest struct {
	Broker string  `json:"broker" validate:"required"`
	Symbol string  `json:"symbol"`
	Ticket string  `json:"ticket" validate:"required"`
	Units  float64 `json:"units" validate:"gte=0"`
}

type ModifyPositionRequest struct {
	Broker     string  `json:"broker" validate:"required"`
	Symbol     string  `json:"symbol"`
	Ticket     string  `json:"ticket" validate:"required"`
	StopLoss   float64 `json:"stopLoss" validate:"gte=0"`
	TakeProfit float64 `json:"takeProfit" validate:"gte=0"`
}

type MarketQuotesRequest struct {
	Broker string `query:"broker" json:"broker" validate:"required"`
}

type MarketBarsRequest struct {
	Broker    string `query:"broker" json:"broker" validate:"required"`
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"M15"`
	Limit     int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
	From      string `query:"from" json:"from,omitempty"`
	To        string `query:"to" json:"to,omitempty"`
}

type AuditHistoryRequest struct {
	Broker string `query:"broker" json:"broker"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}

type MarketNewsRequest struct {
	Broker string `query:"broker" json:"broker" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type MarketAnalysisRequest struct {
	Broker    string `query:"broker" json:"broker" validate:"required"`
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" json:"timeframe" default:"M15"`
	Limit     int    `query:"limit" json:"limit" default:"120" validate:"gte=20,lte=1000"`
}
