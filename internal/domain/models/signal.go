package models

import "time"

// Direction of a signal or structural bias.
type Direction string

const (
	DirectionBuy     Direction = "BUY"
	DirectionSell    Direction = "SELL"
	DirectionNeutral Direction = "NEUTRAL"
)

// DecisionState is the trade decision attached to a validated signal.
type DecisionState string

const (
	DecisionEnter       DecisionState = "ENTER"
	DecisionWaitMonitor DecisionState = "WAIT_MONITOR"
	DecisionBlocked     DecisionState = "NO_TRADE_BLOCKED"
)

// SignalComponents breaks the final score into its contributing layers.
type SignalComponents struct {
	Technical  float64 `json:"technical"`
	Confluence float64 `json:"confluence"`
	Layered    float64 `json:"layeredAnalysis"`
	News       float64 `json:"news"`
}

// EntryPlan carries the proposed entry and protective levels.
type EntryPlan struct {
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stopLoss,omitempty"`
	TakeProfit float64 `json:"takeProfit,omitempty"`
}

// RiskPlan carries learning-adjusted risk parameters for this signal.
type RiskPlan struct {
	RiskPercent      float64 `json:"riskPercent"`
	RewardRisk       float64 `json:"rewardRisk,omitempty"`
	RiskMultiplier   float64 `json:"riskMultiplier,omitempty"`
	VolatilityRegime string  `json:"volatilityRegime,omitempty"`
}

// TradeDecision is the per-signal decision block.
type TradeDecision struct {
	State  DecisionState `json:"state"`
	Reason string        `json:"reason,omitempty"`
}

// Validity is the outcome of trade-validity checks on a signal.
type Validity struct {
	IsValid  bool            `json:"isValid"`
	Checks   map[string]bool `json:"checks,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Decision TradeDecision   `json:"decision"`
}

// Readiness is the layered-analysis gate: how many of the analysis layers
// report ready for entry.
type Readiness struct {
	Ready        bool            `json:"ready"`
	LayersPassed int             `json:"layersPassed"`
	LayersTotal  int             `json:"layersTotal"`
	Layers       map[string]bool `json:"layers,omitempty"`
}

// Signal is the pipeline's externally visible decision artifact. It is
// immutable once published; revalidation replaces it with a new Signal.
type Signal struct {
	Broker    string    `json:"broker"`
	Pair      string    `json:"pair"`
	Timeframe Timeframe `json:"timeframe"`
	Timestamp time.Time `json:"timestamp"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	BarTime   time.Time `json:"barTime,omitempty"`

	Direction  Direction `json:"direction"`
	Strength   float64   `json:"strength"`
	Confidence float64   `json:"confidence"`
	FinalScore float64   `json:"finalScore"`

	Components SignalComponents `json:"components"`
	Entry      EntryPlan        `json:"entry"`
	Risk       RiskPlan         `json:"riskManagement"`
	Validity   Validity         `json:"isValid"`
	Readiness  *Readiness       `json:"readiness,omitempty"`

	ConfluenceScore  float64  `json:"confluenceScore"`
	ConfluencePassed bool     `json:"confluencePassed"`
	Status           string   `json:"status,omitempty"`
	Explainability   []string `json:"explainability,omitempty"`
	Reasoning        string   `json:"reasoning,omitempty"`
}

// SignalEventType tells subscribers whether a signal is actionable or
// diagnostic only.
type SignalEventType string

const (
	EventSignal          SignalEventType = "signal"
	EventSignalCandidate SignalEventType = "signal_candidate"
)

// SignalEvent is what the pipeline broadcasts for each publishable
// computation. Exactly one event is emitted per computation.
type SignalEvent struct {
	Type        SignalEventType `json:"type"`
	Broker      string          `json:"broker"`
	Symbol      string          `json:"symbol"`
	Tier        string          `json:"tier,omitempty"`
	Fingerprint string          `json:"fingerprint,omitempty"`
	Signal      *Signal         `json:"signal"`
	EmittedAt   time.Time       `json:"emittedAt"`
}
