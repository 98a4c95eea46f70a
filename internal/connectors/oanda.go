package connectors

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
	pkghttp "FxBridge/pkg/http"
)

// OandaConfig targets the OANDA v20 REST API.
type OandaConfig struct {
	BaseURL   string `yaml:"base_url" default:"https://api-fxpractice.oanda.com"`
	AccountID string `yaml:"account_id"`
	Token     string `yaml:"token"`
	Mode      string `yaml:"mode" default:"practice"`
}

// Oanda is the OANDA v20 connector.
type Oanda struct {
	cfg    OandaConfig
	client *pkghttp.Client
}

// NewOanda creates the OANDA connector.
func NewOanda(cfg OandaConfig) *Oanda {
	return &Oanda{
		cfg:    cfg,
		client: pkghttp.NewClient(pkghttp.WithTimeout(connectorTimeout)),
	}
}

func (o *Oanda) Broker() string { return "oanda" }

func (o *Oanda) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + o.cfg.Token,
		"Content-Type":  "application/json",
	}
}

func (o *Oanda) accountURL(path string) string {
	return fmt.Sprintf("%s/v3/accounts/%s%s", o.cfg.BaseURL, o.cfg.AccountID, path)
}

// oandaInstrument converts EURUSD to EUR_USD.
func oandaInstrument(symbol string) string {
	if strings.Contains(symbol, "_") || len(symbol) < 6 {
		return symbol
	}
	return symbol[:3] + "_" + symbol[3:]
}

func fromOandaInstrument(instrument string) string {
	return strings.ReplaceAll(instrument, "_", "")
}

func (o *Oanda) Connect(ctx context.Context) error {
	_, err := o.FetchAccountSummary(ctx)
	return err
}

func (o *Oanda) Disconnect(context.Context) error { return nil }

func (o *Oanda) Restart(ctx context.Context) error { return o.Connect(ctx) }

func (o *Oanda) HealthCheck(ctx context.Context) (*domrepo.ConnectorHealth, error) {
	if _, err := o.FetchAccountSummary(ctx); err != nil {
		return &domrepo.ConnectorHealth{Broker: "oanda", Mode: o.cfg.Mode, Connected: false, Details: err.Error()}, nil
	}
	return &domrepo.ConnectorHealth{Broker: "oanda", Mode: o.cfg.Mode, Connected: true}, nil
}

func (o *Oanda) PlaceOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	units := req.Units
	if req.Side == models.SideSell {
		units = -units
	}
	order := map[string]any{
		"instrument":   oandaInstrument(req.Symbol),
		"units":        strconv.FormatFloat(units, 'f', -1, 64),
		"type":         strings.ToUpper(string(req.Type)),
		"timeInForce":  defaultTIF(req.TimeInForce, "FOK"),
		"positionFill": "DEFAULT",
	}
	if req.Price > 0 {
		order["price"] = strconv.FormatFloat(req.Price, 'f', -1, 64)
	}
	if req.StopLoss > 0 {
		order["stopLossOnFill"] = map[string]string{"price": strconv.FormatFloat(req.StopLoss, 'f', 5, 64)}
	}
	if req.TakeProfit > 0 {
		order["takeProfitOnFill"] = map[string]string{"price": strconv.FormatFloat(req.TakeProfit, 'f', 5, 64)}
	}
	if req.Meta.TradeID != "" {
		order["clientExtensions"] = map[string]string{"id": req.Meta.TradeID}
	}

	var out struct {
		OrderFillTransaction *struct {
			ID    string `json:"id"`
			Price string `json:"price"`
		} `json:"orderFillTransaction"`
		OrderCancelTransaction *struct {
			Reason string `json:"reason"`
		} `json:"orderCancelTransaction"`
		OrderCreateTransaction *struct {
			ID string `json:"id"`
		} `json:"orderCreateTransaction"`
	}
	err := o.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodPost,
		URL:     o.accountURL("/orders"),
		Headers: o.headers(),
		Body:    map[string]any{"order": order},
	}, &out)
	if err != nil {
		return nil, err
	}

	res := &models.OrderResult{Broker: "oanda", ClientOrderID: req.Meta.TradeID}
	switch {
	case out.OrderFillTransaction != nil:
		res.Success = true
		res.OrderID = out.OrderFillTransaction.ID
		res.FillPrice, _ = strconv.ParseFloat(out.OrderFillTransaction.Price, 64)
	case out.OrderCancelTransaction != nil:
		res.Error = "order cancelled: " + out.OrderCancelTransaction.Reason
	case out.OrderCreateTransaction != nil:
		res.Success = true
		res.OrderID = out.OrderCreateTransaction.ID
	default:
		res.Error = "no transaction in response"
	}
	return res, nil
}

func (o *Oanda) ClosePosition(ctx context.Context, req *models.CloseRequest) (*models.OrderResult, error) {
	body := map[string]any{"longUnits": "ALL"}
	if req.Units > 0 {
		body = map[string]any{"longUnits": strconv.FormatFloat(req.Units, 'f', -1, 64)}
	}
	var out struct {
		LongOrderFillTransaction *struct {
			ID    string `json:"id"`
			Price string `json:"price"`
		} `json:"longOrderFillTransaction"`
	}
	err := o.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodPut,
		URL:     o.accountURL("/positions/" + oandaInstrument(req.Symbol) + "/close"),
		Headers: o.headers(),
		Body:    body,
	}, &out)
	if err != nil {
		return nil, err
	}
	res := &models.OrderResult{Success: true, Broker: "oanda"}
	if out.LongOrderFillTransaction != nil {
		res.OrderID = out.LongOrderFillTransaction.ID
		res.FillPrice, _ = strconv.ParseFloat(out.LongOrderFillTransaction.Price, 64)
	}
	return res, nil
}

func (o *Oanda) ModifyPosition(ctx context.Context, req *models.ModifyRequest) (*models.OrderResult, error) {
	body := map[string]any{}
	if req.StopLoss > 0 {
		body["stopLoss"] = map[string]string{"price": strconv.FormatFloat(req.StopLoss, 'f', 5, 64), "timeInForce": "GTC"}
	}
	if req.TakeProfit > 0 {
		body["takeProfit"] = map[string]string{"price": strconv.FormatFloat(req.TakeProfit, 'f', 5, 64), "timeInForce": "GTC"}
	}
	err := o.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodPut,
		URL:     o.accountURL("/trades/" + req.Ticket + "/orders"),
		Headers: o.headers(),
		Body:    body,
	}, nil)
	if err != nil {
		return nil, err
	}
	return &models.OrderResult{Success: true, Broker: "oanda", OrderID: req.Ticket}, nil
}

func (o *Oanda) FetchOpenPositions(ctx context.Context) ([]models.Position, error) {
	var out struct {
		Trades []struct {
			ID               string `json:"id"`
			Instrument       string `json:"instrument"`
			CurrentUnits     string `json:"currentUnits"`
			Price            string `json:"price"`
			UnrealizedPL     string `json:"unrealizedPL"`
			OpenTime         string `json:"openTime"`
			ClientExtensions *struct {
				ID string `json:"id"`
			} `json:"clientExtensions"`
		} `json:"trades"`
	}
	err := o.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     o.accountURL("/openTrades"),
		Headers: o.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}
	positions := make([]models.Position, 0, len(out.Trades))
	for _, t := range out.Trades {
		units, _ := strconv.ParseFloat(t.CurrentUnits, 64)
		price, _ := strconv.ParseFloat(t.Price, 64)
		pl, _ := strconv.ParseFloat(t.UnrealizedPL, 64)
		side := models.SideBuy
		if units < 0 {
			side = models.SideSell
			units = -units
		}
		pos := models.Position{
			Broker:       "oanda",
			Symbol:       fromOandaInstrument(t.Instrument),
			Ticket:       t.ID,
			Side:         side,
			Units:        units,
			EntryPrice:   price,
			UnrealizedPL: pl,
		}
		if ts, err := time.Parse(time.RFC3339Nano, t.OpenTime); err == nil {
			pos.OpenedAt = ts
		}
		if t.ClientExtensions != nil {
			pos.Comment = t.ClientExtensions.ID
		}
		positions = append(positions, pos)
	}
	return positions, nil
}

func (o *Oanda) FetchRecentFills(ctx context.Context) ([]models.Fill, error) {
	var out struct {
		Transactions []struct {
			ID            string `json:"id"`
			Instrument    string `json:"instrument"`
			Units         string `json:"units"`
			Price         string `json:"price"`
			Time          string `json:"time"`
			ClientOrderID string `json:"clientOrderID"`
		} `json:"transactions"`
	}
	err := o.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:      pkghttp.MethodGet,
		URL:         o.accountURL("/transactions/idrange"),
		Headers:     o.headers(),
		QueryParams: map[string][]string{"type": {"ORDER_FILL"}},
	}, &out)
	if err != nil {
		return nil, err
	}
	fills := make([]models.Fill, 0, len(out.Transactions))
	for _, tx := range out.Transactions {
		units, _ := strconv.ParseFloat(tx.Units, 64)
		price, _ := strconv.ParseFloat(tx.Price, 64)
		side := models.SideBuy
		if units < 0 {
			side = models.SideSell
			units = -units
		}
		fill := models.Fill{
			Broker:        "oanda",
			Symbol:        fromOandaInstrument(tx.Instrument),
			OrderID:       tx.ID,
			ClientOrderID: tx.ClientOrderID,
			Side:          side,
			Units:         units,
			Price:         price,
		}
		if ts, err := time.Parse(time.RFC3339Nano, tx.Time); err == nil {
			fill.Time = ts
		}
		fills = append(fills, fill)
	}
	return fills, nil
}

func (o *Oanda) FetchAccountSummary(ctx context.Context) (*models.AccountSummary, error) {
	var out struct {
		Account struct {
			ID         string `json:"id"`
			Currency   string `json:"currency"`
			Balance    string `json:"balance"`
			NAV        string `json:"NAV"`
			MarginUsed string `json:"marginUsed"`
		} `json:"account"`
	}
	err := o.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method:  pkghttp.MethodGet,
		URL:     o.accountURL("/summary"),
		Headers: o.headers(),
	}, &out)
	if err != nil {
		return nil, err
	}
	balance, _ := strconv.ParseFloat(out.Account.Balance, 64)
	equity, _ := strconv.ParseFloat(out.Account.NAV, 64)
	margin, _ := strconv.ParseFloat(out.Account.MarginUsed, 64)
	return &models.AccountSummary{
		Broker:        "oanda",
		AccountNumber: out.Account.ID,
		Currency:      out.Account.Currency,
		Equity:        equity,
		Balance:       balance,
		MarginUsed:    margin,
	}, nil
}

func defaultTIF(tif, fallback string) string {
	if tif == "" {
		return fallback
	}
	return strings.ToUpper(tif)
}
