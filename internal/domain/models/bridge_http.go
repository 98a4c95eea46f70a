package models

// Request DTOs for the EA bridge HTTP surface. Timestamps arrive as epoch
// milliseconds because MQL4/MQL5 cannot easily emit RFC 3339.

type RegisterSessionRequest struct {
	AccountNumber string  `json:"accountNumber" validate:"required"`
	Broker        string  `json:"broker" validate:"required"`
	AccountMode   string  `json:"accountMode" default:"demo" validate:"oneof=demo live"`
	Equity        float64 `json:"equity" validate:"gte=0"`
	Balance       float64 `json:"balance" validate:"gte=0"`
	Server        string  `json:"server"`
	Currency      string  `json:"currency"`
}

type HeartbeatRequest struct {
	AccountNumber string   `json:"accountNumber" validate:"required"`
	Broker        string   `json:"broker" validate:"required"`
	AccountMode   string   `json:"accountMode" default:"demo" validate:"oneof=demo live"`
	Equity        float64  `json:"equity" validate:"gte=0"`
	Balance       float64  `json:"balance" validate:"gte=0"`
	OpenTrades    int      `json:"openTrades" validate:"gte=0"`
	Symbols       []string `json:"symbols,omitempty"`
}

type DisconnectSessionRequest struct {
	AccountNumber string `json:"accountNumber" validate:"required"`
	Broker        string `json:"broker" validate:"required"`
	AccountMode   string `json:"accountMode" default:"demo" validate:"oneof=demo live"`
}

type TradeResultRequest struct {
	AccountNumber string  `json:"accountNumber" validate:"required"`
	Broker        string  `json:"broker" validate:"required"`
	AccountMode   string  `json:"accountMode" default:"demo" validate:"oneof=demo live"`
	Profit        float64 `json:"profit"`
}

// QuotePayload is one tick as the EA reports it.
type QuotePayload struct {
	Symbol       string  `json:"symbol" validate:"required"`
	Bid          float64 `json:"bid"`
	Ask          float64 `json:"ask"`
	Last         float64 `json:"last"`
	Digits       int     `json:"digits" validate:"gte=0,lte=8"`
	Point        float64 `json:"point" validate:"gte=0"`
	SpreadPoints float64 `json:"spreadPoints" validate:"gte=0"`
	TickSize     float64 `json:"tickSize" validate:"gte=0"`
	TickValue    float64 `json:"tickValue" validate:"gte=0"`
	ContractSize float64 `json:"contractSize" validate:"gte=0"`
	Volume       float64 `json:"volume" validate:"gte=0"`
	Timestamp    int64   `json:"timestamp"`
}

type RecordQuoteRequest struct {
	Broker string `json:"broker" validate:"required"`
	QuotePayload
}

type RecordQuotesRequest struct {
	Broker string         `json:"broker" validate:"required"`
	Quotes []QuotePayload `json:"quotes" validate:"required,min=1,max=500,dive"`
}

// BarPayload is one OHLCV candle as the EA reports it, time in epoch ms.
type BarPayload struct {
	Time   int64   `json:"time" validate:"required,gt=0"`
	Open   float64 `json:"open" validate:"gt=0"`
	High   float64 `json:"high" validate:"gt=0"`
	Low    float64 `json:"low" validate:"gt=0"`
	Close  float64 `json:"close" validate:"gt=0"`
	Volume float64 `json:"volume" validate:"gte=0"`
}

type RecordBarsRequest struct {
	Broker    string       `json:"broker" validate:"required"`
	Symbol    string       `json:"symbol" validate:"required"`
	Timeframe string       `json:"timeframe" validate:"required"`
	Bars      []BarPayload `json:"bars" validate:"required,min=1,max=1000,dive"`
}

type RecordSnapshotRequest struct {
	Broker     string                       `json:"broker" validate:"required"`
	Symbol     string                       `json:"symbol" validate:"required"`
	Timeframes map[string]SnapshotTimeframe `json:"timeframes" validate:"required,min=1"`
	Quote      *QuotePayload                `json:"quote,omitempty"`
}

type NewsPayload struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Symbol   string `json:"symbol"`
	Currency string `json:"currency"`
	Impact   int    `json:"impact" validate:"gte=0,lte=100"`
	Time     int64  `json:"time" validate:"required,gt=0"`
	Kind     string `json:"kind" default:"calendar" validate:"oneof=calendar headline"`
	Source   string `json:"source"`
}

type RecordNewsRequest struct {
	Broker string        `json:"broker" validate:"required"`
	Items  []NewsPayload `json:"items" validate:"required,min=1,max=200,dive"`
}

type SnapshotRequestsRequest struct {
	Broker string `query:"broker" json:"broker" validate:"required"`
	Max    int    `query:"max" json:"max" default:"10" validate:"gte=1,lte=100"`
}

type RequestSnapshotRequest struct {
	Broker string `json:"broker" validate:"required"`
	Symbol string `json:"symbol" validate:"required"`
	TTLMs  int64  `json:"ttlMs" default:"60000" validate:"gte=1000,lte=3600000"`
}

type DrainCommandsRequest struct {
	Broker string `query:"broker" json:"broker" validate:"required"`
	Limit  int    `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=100"`
}

// PositionPayload mirrors an open position as the EA reports it.
type PositionPayload struct {
	Symbol       string  `json:"symbol" validate:"required"`
	Ticket       string  `json:"ticket" validate:"required"`
	Side         string  `json:"side" validate:"oneof=buy sell BUY SELL"`
	Units        float64 `json:"units" validate:"gt=0"`
	EntryPrice   float64 `json:"entryPrice" validate:"gt=0"`
	StopLoss     float64 `json:"stopLoss" validate:"gte=0"`
	TakeProfit   float64 `json:"takeProfit" validate:"gte=0"`
	UnrealizedPL float64 `json:"unrealizedPL"`
	OpenedAt     int64   `json:"openedAt"`
}

type ReportPositionsRequest struct {
	Broker    string            `json:"broker" validate:"required"`
	Positions []PositionPayload `json:"positions" validate:"max=200,dive"`
}

type SignalForExecutionRequest struct {
	Broker      string `query:"broker" json:"broker" validate:"required"`
	Symbol      string `query:"symbol" json:"symbol" validate:"required"`
	AccountMode string `query:"accountMode" json:"accountMode" default:"demo" validate:"oneof=demo live"`
}
