package connectors

import (
	"context"
	"fmt"
	"time"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
	pkghttp "FxBridge/pkg/http"
)

const connectorTimeout = 5 * time.Second

// MTBridgeConfig points at a local MetaTrader terminal bridge.
type MTBridgeConfig struct {
	Broker  string `yaml:"broker" default:"mt5"`
	BaseURL string `yaml:"base_url" default:"http://127.0.0.1:6542"`
	APIKey  string `yaml:"api_key"`
	Mode    string `yaml:"mode" default:"demo"`
}

// MTBridge drives an MT4/MT5 terminal through its local HTTP bridge. The
// same adapter serves both platforms; Broker distinguishes them.
type MTBridge struct {
	cfg    MTBridgeConfig
	client *pkghttp.Client
}

// NewMTBridge creates the MetaTrader connector.
func NewMTBridge(cfg MTBridgeConfig) *MTBridge {
	if cfg.Broker == "" {
		cfg.Broker = "mt5"
	}
	return &MTBridge{
		cfg:    cfg,
		client: pkghttp.NewClient(pkghttp.WithTimeout(connectorTimeout)),
	}
}

func (m *MTBridge) Broker() string { return m.cfg.Broker }

func (m *MTBridge) headers() map[string]string {
	h := map[string]string{"Content-Type": "application/json"}
	if m.cfg.APIKey != "" {
		h["X-Api-Key"] = m.cfg.APIKey
	}
	return h
}

func (m *MTBridge) url(path string) string { return m.cfg.BaseURL + path }

type mtAck struct {
	Success bool    `json:"success"`
	Ticket  string  `json:"ticket,omitempty"`
	Price   float64 `json:"price,omitempty"`
	Message string  `json:"message,omitempty"`
}

func (m *MTBridge) Connect(ctx context.Context) error {
	return m.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodPost,
		URL:     m.url("/session/connect"),
		Headers: m.headers(),
		Body:    map[string]string{"mode": m.cfg.Mode},
	}, nil)
}

func (m *MTBridge) Disconnect(ctx context.Context) error {
	return m.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodPost,
		URL:     m.url("/session/disconnect"),
		Headers: m.headers(),
	}, nil)
}

func (m *MTBridge) Restart(ctx context.Context) error {
	if err := m.Disconnect(ctx); err != nil {
		return err
	}
	return m.Connect(ctx)
}

func (m *MTBridge) HealthCheck(ctx context.Context) (*domrepo.ConnectorHealth, error) {
	var out struct {
		Connected bool   `json:"connected"`
		Terminal  string `json:"terminal,omitempty"`
	}
	err := m.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     m.url("/health"),
		Headers: m.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &domrepo.ConnectorHealth{
		Broker:    m.cfg.Broker,
		Mode:      m.cfg.Mode,
		Connected: out.Connected,
		Details:   out.Terminal,
	}, nil
}

func (m *MTBridge) PlaceOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	body := map[string]any{
		"symbol":  req.Symbol,
		"type":    string(req.Type),
		"side":    string(req.Side),
		"volume":  req.Units,
		"comment": orderComment(req),
	}
	if req.Price > 0 {
		body["price"] = req.Price
	}
	if req.StopLoss > 0 {
		body["sl"] = req.StopLoss
	}
	if req.TakeProfit > 0 {
		body["tp"] = req.TakeProfit
	}

	var ack mtAck
	err := m.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodPost,
		URL:     m.url("/orders"),
		Headers: m.headers(),
		Body:    body,
	}, &ack)
	if err != nil {
		return nil, err
	}
	res := &models.OrderResult{
		Success:       ack.Success,
		Broker:        m.cfg.Broker,
		OrderID:       ack.Ticket,
		ClientOrderID: req.Meta.TradeID,
		FillPrice:     ack.Price,
	}
	if !ack.Success {
		res.Error = ack.Message
	}
	return res, nil
}

func (m *MTBridge) ClosePosition(ctx context.Context, req *models.CloseRequest) (*models.OrderResult, error) {
	var ack mtAck
	err := m.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodPost,
		URL:     m.url(fmt.Sprintf("/positions/%s/close", req.Ticket)),
		Headers: m.headers(),
		Body:    map[string]any{"volume": req.Units},
	}, &ack)
	if err != nil {
		return nil, err
	}
	return &models.OrderResult{Success: ack.Success, Broker: m.cfg.Broker, OrderID: ack.Ticket, FillPrice: ack.Price, Error: ack.Message}, nil
}

func (m *MTBridge) ModifyPosition(ctx context.Context, req *models.ModifyRequest) (*models.OrderResult, error) {
	var ack mtAck
	err := m.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodPatch,
		URL:     m.url(fmt.Sprintf("/positions/%s", req.Ticket)),
		Headers: m.headers(),
		Body:    map[string]any{"sl": req.StopLoss, "tp": req.TakeProfit},
	}, &ack)
	if err != nil {
		return nil, err
	}
	return &models.OrderResult{Success: ack.Success, Broker: m.cfg.Broker, OrderID: req.Ticket, Error: ack.Message}, nil
}

func (m *MTBridge) FetchOpenPositions(ctx context.Context) ([]models.Position, error) {
	var out []struct {
		Ticket  string  `json:"ticket"`
		Symbol  string  `json:"symbol"`
		Side    string  `json:"side"`
		Volume  float64 `json:"volume"`
		Price   float64 `json:"openPrice"`
		SL      float64 `json:"sl"`
		TP      float64 `json:"tp"`
		Profit  float64 `json:"profit"`
		Comment string  `json:"comment"`
	}
	err := m.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     m.url("/positions"),
		Headers: m.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}
	positions := make([]models.Position, 0, len(out))
	for _, p := range out {
		positions = append(positions, models.Position{
			Broker:       m.cfg.Broker,
			Symbol:       p.Symbol,
			Ticket:       p.Ticket,
			Side:         models.OrderSide(p.Side),
			Units:        p.Volume,
			EntryPrice:   p.Price,
			StopLoss:     p.SL,
			TakeProfit:   p.TP,
			UnrealizedPL: p.Profit,
			Comment:      p.Comment,
		})
	}
	return positions, nil
}

func (m *MTBridge) FetchRecentFills(ctx context.Context) ([]models.Fill, error) {
	var out []struct {
		Ticket  string  `json:"ticket"`
		Symbol  string  `json:"symbol"`
		Side    string  `json:"side"`
		Volume  float64 `json:"volume"`
		Price   float64 `json:"price"`
		Comment string  `json:"comment"`
		TimeMs  int64   `json:"time"`
	}
	err := m.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     m.url("/fills"),
		Headers: m.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}
	fills := make([]models.Fill, 0, len(out))
	for _, f := range out {
		fills = append(fills, models.Fill{
			Broker:        m.cfg.Broker,
			Symbol:        f.Symbol,
			OrderID:       f.Ticket,
			ClientOrderID: f.Comment,
			Side:          models.OrderSide(f.Side),
			Units:         f.Volume,
			Price:         f.Price,
			Time:          time.UnixMilli(f.TimeMs),
		})
	}
	return fills, nil
}

func (m *MTBridge) FetchAccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	var out struct {
		AccountNumber string  `json:"accountNumber"`
		Currency      string  `json:"currency"`
		Equity        float64 `json:"equity"`
		Balance       float64 `json:"balance"`
		Margin        float64 `json:"margin"`
	}
	err := m.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     m.url("/account"),
		Headers: m.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &models.AccountSummary{
		Broker:        m.cfg.Broker,
		AccountNumber: out.AccountNumber,
		Currency:      out.Currency,
		Equity:        out.Equity,
		Balance:       out.Balance,
		MarginUsed:    out.Margin,
	}, nil
}

// orderComment carries the engine trade id so fills reconcile back to the
// originating trade.
func orderComment(req *models.OrderRequest) string {
	if req.Meta.TradeID != "" {
		return req.Meta.TradeID
	}
	return req.Comment
}
