package models

import (
	"fmt"
	"time"
)

// Session is one EA connection, keyed by broker-mode-account.
type Session struct {
	ID             string    `json:"id"`
	Broker         string    `json:"broker"`
	AccountNumber  string    `json:"accountNumber"`
	AccountMode    string    `json:"accountMode"`
	Equity         float64   `json:"equity"`
	Balance        float64   `json:"balance"`
	Server         string    `json:"server,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	ConnectedAt    time.Time `json:"connectedAt"`
	LastHeartbeat  time.Time `json:"lastHeartbeat"`
	IsActive       bool      `json:"isActive"`
	OpenTrades     int       `json:"openTrades,omitempty"`
	TradesExecuted int       `json:"tradesExecuted"`
	ProfitLoss     float64   `json:"profitLoss"`
}

// SessionID builds the canonical session key.
func SessionID(broker, mode, accountNumber string) string {
	return fmt.Sprintf("%s-%s-%s", broker, mode, accountNumber)
}

// TradingInstructions is the heartbeat response the EA acts on.
type TradingInstructions struct {
	TradingEnabled     bool    `json:"tradingEnabled"`
	RiskMultiplier     float64 `json:"riskMultiplier"`
	StopLossMultiplier float64 `json:"stopLossMultiplier"`
	Reason             string  `json:"reason,omitempty"`
	Guards             any     `json:"guards,omitempty"`
}
