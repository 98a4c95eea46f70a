package connectors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
	pkghttp "FxBridge/pkg/http"
)

// IBKRConfig targets an Interactive Brokers client-portal gateway.
type IBKRConfig struct {
	BaseURL   string `yaml:"base_url" default:"https://127.0.0.1:5000/v1/api"`
	AccountID string `yaml:"account_id"`
	Mode      string `yaml:"mode" default:"paper"`
}

// IBKR is the Interactive Brokers connector. Forex symbols map to CASH
// contracts (EURUSD -> EUR.USD).
type IBKR struct {
	cfg    IBKRConfig
	client *pkghttp.Client
}

// NewIBKR creates the IBKR connector.
func NewIBKR(cfg IBKRConfig) *IBKR {
	return &IBKR{
		cfg:    cfg,
		client: pkghttp.NewClient(pkghttp.WithTimeout(connectorTimeout)),
	}
}

func (b *IBKR) Broker() string { return "ibkr" }

func (b *IBKR) url(path string) string { return b.cfg.BaseURL + path }

func ibkrContract(symbol string) string {
	if len(symbol) == 6 {
		return symbol[:3] + "." + symbol[3:]
	}
	return symbol
}

func fromIBKRContract(contract string) string {
	return strings.ReplaceAll(contract, ".", "")
}

func (b *IBKR) Connect(ctx context.Context) error {
	return b.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    b.url("/iserver/reauthenticate"),
	}, nil)
}

func (b *IBKR) Disconnect(ctx context.Context) error {
	return b.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    b.url("/logout"),
	}, nil)
}

func (b *IBKR) Restart(ctx context.Context) error { return b.Connect(ctx) }

func (b *IBKR) HealthCheck(ctx context.Context) (*domrepo.ConnectorHealth, error) {
	var out struct {
		Authenticated bool `json:"authenticated"`
		Connected     bool `json:"connected"`
	}
	err := b.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    b.url("/iserver/auth/status"),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &domrepo.ConnectorHealth{
		Broker:    "ibkr",
		Mode:      b.cfg.Mode,
		Connected: out.Authenticated && out.Connected,
	}, nil
}

func (b *IBKR) PlaceOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	order := map[string]any{
		"acctId":    b.cfg.AccountID,
		"conidex":   ibkrContract(req.Symbol),
		"secType":   "CASH",
		"orderType": strings.ToUpper(string(req.Type)),
		"side":      strings.ToUpper(string(req.Side)),
		"quantity":  req.Units,
		"tif":       defaultTIF(req.TimeInForce, "DAY"),
	}
	if req.Price > 0 {
		order["price"] = req.Price
	}
	if req.Meta.TradeID != "" {
		order["cOID"] = req.Meta.TradeID
	}

	var out []struct {
		OrderID string `json:"order_id"`
		Error   string `json:"error"`
	}
	err := b.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    b.url(fmt.Sprintf("/iserver/account/%s/orders", b.cfg.AccountID)),
		Body:   map[string]any{"orders": []map[string]any{order}},
	}, &out)
	if err != nil {
		return nil, err
	}
	res := &models.OrderResult{Broker: "ibkr", ClientOrderID: req.Meta.TradeID}
	if len(out) == 0 {
		res.Error = "empty order response"
		return res, nil
	}
	if out[0].Error != "" {
		res.Error = out[0].Error
		return res, nil
	}
	res.Success = true
	res.OrderID = out[0].OrderID
	return res, nil
}

func (b *IBKR) ClosePosition(ctx context.Context, req *models.CloseRequest) (*models.OrderResult, error) {
	// closing is an opposite-side market order against the open quantity
	side := models.SideSell
	units := req.Units
	if units <= 0 {
		positions, err := b.FetchOpenPositions(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range positions {
			if p.Ticket == req.Ticket {
				units = p.Units
				if p.Side == models.SideSell {
					side = models.SideBuy
				}
				break
			}
		}
	}
	if units <= 0 {
		return &models.OrderResult{Success: false, Broker: "ibkr", Error: "position not found: " + req.Ticket}, nil
	}
	return b.PlaceOrder(ctx, &models.OrderRequest{
		Broker: "ibkr",
		Symbol: req.Symbol,
		Type:   models.OrderMarket,
		Side:   side,
		Units:  units,
	})
}

func (b *IBKR) ModifyPosition(ctx context.Context, req *models.ModifyRequest) (*models.OrderResult, error) {
	body := map[string]any{}
	if req.StopLoss > 0 {
		body["auxPrice"] = req.StopLoss
	}
	if req.TakeProfit > 0 {
		body["price"] = req.TakeProfit
	}
	err := b.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    b.url(fmt.Sprintf("/iserver/account/%s/order/%s", b.cfg.AccountID, req.Ticket)),
		Body:   body,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &models.OrderResult{Success: true, Broker: "ibkr", OrderID: req.Ticket}, nil
}

func (b *IBKR) FetchOpenPositions(ctx context.Context) ([]models.Position, error) {
	var out []struct {
		ConID        int     `json:"conid"`
		ContractDesc string  `json:"contractDesc"`
		Position     float64 `json:"position"`
		AvgCost      float64 `json:"avgCost"`
		UnrealPL     float64 `json:"unrealizedPnl"`
	}
	err := b.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    b.url(fmt.Sprintf("/portfolio/%s/positions/0", b.cfg.AccountID)),
	}, &out)
	if err != nil {
		return nil, err
	}
	positions := make([]models.Position, 0, len(out))
	for _, p := range out {
		if p.Position == 0 {
			continue
		}
		side := models.SideBuy
		units := p.Position
		if units < 0 {
			side = models.SideSell
			units = -units
		}
		positions = append(positions, models.Position{
			Broker:       "ibkr",
			Symbol:       fromIBKRContract(p.ContractDesc),
			Ticket:       fmt.Sprintf("%d", p.ConID),
			Side:         side,
			Units:        units,
			EntryPrice:   p.AvgCost,
			UnrealizedPL: p.UnrealPL,
		})
	}
	return positions, nil
}

func (b *IBKR) FetchRecentFills(ctx context.Context) ([]models.Fill, error) {
	var out []struct {
		ExecutionID string  `json:"execution_id"`
		Symbol      string  `json:"symbol"`
		Side        string  `json:"side"`
		Size        float64 `json:"size"`
		Price       float64 `json:"price"`
		OrderRef    string  `json:"order_ref"`
		TimeMs      int64   `json:"trade_time_r"`
	}
	err := b.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    b.url("/iserver/account/trades"),
	}, &out)
	if err != nil {
		return nil, err
	}
	fills := make([]models.Fill, 0, len(out))
	for _, f := range out {
		side := models.SideBuy
		if strings.EqualFold(f.Side, "S") || strings.EqualFold(f.Side, "sell") {
			side = models.SideSell
		}
		fills = append(fills, models.Fill{
			Broker:        "ibkr",
			Symbol:        fromIBKRContract(f.Symbol),
			OrderID:       f.ExecutionID,
			ClientOrderID: f.OrderRef,
			Side:          side,
			Units:         f.Size,
			Price:         f.Price,
			Time:          time.UnixMilli(f.TimeMs),
		})
	}
	return fills, nil
}

func (b *IBKR) FetchAccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	var out struct {
		EquityWithLoanValue struct {
			Amount float64 `json:"amount"`
		} `json:"equitywithloanvalue"`
		NetLiquidation struct {
			Amount float64 `json:"amount"`
		} `json:"netliquidation"`
		Currency string `json:"currency"`
	}
	err := b.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    b.url(fmt.Sprintf("/portfolio/%s/summary", b.cfg.AccountID)),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &models.AccountSummary{
		Broker:        "ibkr",
		AccountNumber: b.cfg.AccountID,
		Currency:      out.Currency,
		Equity:        out.EquityWithLoanValue.Amount,
		Balance:       out.NetLiquidation.Amount,
	}, nil
}
