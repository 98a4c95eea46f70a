package models

import "time"

// Quote is the latest tick for a (broker, symbol) key. A new quote supersedes
// the previous one; derived fields are computed from the immediately
// preceding quote for the same key.
type Quote struct {
	Broker string `json:"broker"`
	Symbol string `json:"symbol"`

	Bid  float64 `json:"bid,omitempty"`
	Ask  float64 `json:"ask,omitempty"`
	Last float64 `json:"last,omitempty"`
	Mid  float64 `json:"mid,omitempty"`

	MidDelta               float64 `json:"midDelta,omitempty"`
	MidVelocityPerSec      float64 `json:"midVelocityPerSec,omitempty"`
	MidAccelerationPerSec2 float64 `json:"midAccelerationPerSec2,omitempty"`

	Digits       int     `json:"digits,omitempty"`
	Point        float64 `json:"point,omitempty"`
	SpreadPoints float64 `json:"spreadPoints,omitempty"`
	TickSize     float64 `json:"tickSize,omitempty"`
	TickValue    float64 `json:"tickValue,omitempty"`
	ContractSize float64 `json:"contractSize,omitempty"`
	Volume       float64 `json:"volume,omitempty"`

	Timestamp  time.Time `json:"timestamp"`
	ReceivedAt time.Time `json:"receivedAt"`
	Source     string    `json:"source,omitempty"`
}

// Price returns the best usable price: mid, then last, then bid/ask.
func (q *Quote) Price() float64 {
	switch {
	case q.Mid > 0:
		return q.Mid
	case q.Last > 0:
		return q.Last
	case q.Bid > 0 && q.Ask > 0:
		return (q.Bid + q.Ask) / 2
	case q.Bid > 0:
		return q.Bid
	default:
		return q.Ask
	}
}

// SpreadPips returns the spread in pips using the point size when known.
func (q *Quote) SpreadPips() float64 {
	if q.Bid <= 0 || q.Ask <= 0 || q.Ask < q.Bid {
		return 0
	}
	point := q.Point
	if point <= 0 {
		if q.Digits >= 5 {
			point = 0.00001
		} else {
			point = 0.0001
		}
	}
	pip := point
	if q.Digits == 5 || q.Digits == 3 {
		pip = point * 10
	}
	if pip <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / pip
}

// Bar is one OHLCV candle, bucket-aligned.
type Bar struct {
	Time       time.Time `json:"time"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	ReceivedAt time.Time `json:"receivedAt,omitempty"`
	Source     string    `json:"source,omitempty"`
}

// SnapshotTimeframe is the EA's per-timeframe technical payload.
type SnapshotTimeframe struct {
	Direction  string  `json:"direction,omitempty"`
	Score      float64 `json:"score,omitempty"`
	RSI        float64 `json:"rsi,omitempty"`
	MACD       float64 `json:"macd,omitempty"`
	ATR        float64 `json:"atr,omitempty"`
	LastPrice  float64 `json:"lastPrice,omitempty"`
	LatestBar  *Bar    `json:"latestCandle,omitempty"`
	RangeHigh  float64 `json:"rangeHigh,omitempty"`
	RangeLow   float64 `json:"rangeLow,omitempty"`
	PivotPoint float64 `json:"pivotPoint,omitempty"`
	PivotRes1  float64 `json:"pivotRes1,omitempty"`
	PivotSup1  float64 `json:"pivotSup1,omitempty"`
}

// Snapshot is a broker/symbol's most recent multi-timeframe payload.
// It is replaced wholesale on each ingest.
type Snapshot struct {
	Broker     string                          `json:"broker"`
	Symbol     string                          `json:"symbol"`
	Timeframes map[Timeframe]SnapshotTimeframe `json:"timeframes"`
	Quote      *Quote                          `json:"quote,omitempty"`
	ReceivedAt time.Time                       `json:"receivedAt"`
}

// NewsKind distinguishes calendar events from headlines.
type NewsKind string

const (
	NewsCalendar NewsKind = "calendar"
	NewsHeadline NewsKind = "headline"
)

// NewsItem is one broker-reported news record, impact normalized to 0-100.
type NewsItem struct {
	ID         string    `json:"id"`
	Broker     string    `json:"broker"`
	Title      string    `json:"title,omitempty"`
	Symbol     string    `json:"symbol,omitempty"`
	Currency   string    `json:"currency,omitempty"`
	Impact     int       `json:"impact"`
	Time       time.Time `json:"time"`
	Kind       NewsKind  `json:"kind"`
	Source     string    `json:"source,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}
