package api

import (
	"context"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"FxBridge/internal/domain/models"
	"FxBridge/internal/marketdata"
	"FxBridge/internal/router"
	"FxBridge/internal/sessions"
	xhttp "FxBridge/pkg/http"
	xlogger "FxBridge/pkg/logger"
)

// AuditReader serves persisted order history for the audit endpoint.
type AuditReader interface {
	RecentOrders(ctx context.Context, broker string, limit int) ([]models.AuditedOrder, error)
}

// AdminHandler is the operator surface: router control, session listing, and
// read-only market-data introspection for dashboards.
type AdminHandler struct {
	logger   *xlogger.Logger
	router   *router.Router
	registry *sessions.Registry
	store    *marketdata.Store
	audit    AuditReader
	started  time.Time
}

func NewAdminHandler(logger *xlogger.Logger, r *router.Router, registry *sessions.Registry, store *marketdata.Store) *AdminHandler {
	return &AdminHandler{
		logger:   logger,
		router:   r,
		registry: registry,
		store:    store,
		started:  time.Now(),
	}
}

// SetAuditReader enables the /api/router/audit endpoint when order history
// persistence is configured.
func (h *AdminHandler) SetAuditReader(a AuditReader) { h.audit = a }

func (h *AdminHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/readyz", h.Readyz)

	g := e.Group("/api")
	g.GET("/sessions", h.Sessions)
	g.GET("/router/status", h.RouterStatus)
	g.GET("/router/health", h.RouterHealth)
	g.POST("/router/kill-switch", h.KillSwitch)
	g.POST("/router/orders", h.ManualOrder)
	g.POST("/router/close", h.ClosePosition)
	g.POST("/router/modify", h.ModifyPosition)
	g.GET("/router/audit", h.AuditHistory)
	g.GET("/market/quotes", h.MarketQuotes)
	g.GET("/market/bars", h.MarketBars)
	g.GET("/market/news", h.MarketNews)
	g.GET("/market/analysis", h.MarketAnalysis)
}

func (h *AdminHandler) Healthz(c echo.Context) error {
	return xhttp.SuccessResponse(c, echo.Map{
		"status":        "ok",
		"uptimeSeconds": int64(time.Since(h.started).Seconds()),
		"sessions":      h.registry.Len(),
		"killSwitch":    h.router.KillSwitchEnabled(),
	})
}

// Readyz reports whether the bridge has live inputs. It stays 200 for an
// idle bridge so orchestrators do not restart it; the counters tell the
// operator what is missing.
func (h *AdminHandler) Readyz(c echo.Context) error {
	quoted := 0
	for _, broker := range h.registry.ActiveBrokers() {
		quoted += len(h.store.QuotedSymbols(broker))
	}
	return xhttp.SuccessResponse(c, echo.Map{
		"status":        "ok",
		"sessions":      h.registry.Len(),
		"quotedSymbols": quoted,
		"killSwitch":    h.router.KillSwitchEnabled(),
	})
}

func (h *AdminHandler) Sessions(c echo.Context) error {
	return xhttp.SuccessResponse(c, echo.Map{
		"sessions":      h.registry.Sessions(),
		"activeBrokers": h.registry.ActiveBrokers(),
	})
}

func (h *AdminHandler) RouterStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.router.Status())
}

func (h *AdminHandler) RouterHealth(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.router.HealthCheck(c.Request().Context()))
}

func (h *AdminHandler) KillSwitch(c echo.Context) error {
	req := &models.KillSwitchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.router.SetKillSwitch(*req.Enabled)
	h.logger.Warn("kill switch toggled", xlogger.Bool("enabled", *req.Enabled))
	return xhttp.SuccessResponse(c, echo.Map{"success": true, "killSwitch": *req.Enabled})
}

func (h *AdminHandler) ManualOrder(c echo.Context) error {
	req := &models.ManualOrderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	order := &models.OrderRequest{
		Broker:        req.Broker,
		Symbol:        req.Symbol,
		Type:          models.OrderType(req.Type),
		Side:          models.OrderSide(strings.ToLower(req.Side)),
		Units:         req.Units,
		Price:         req.Price,
		TakeProfit:    req.TakeProfit,
		StopLoss:      req.StopLoss,
		TimeInForce:   req.TimeInForce,
		Comment:       req.Comment,
		AccountNumber: req.AccountNumber,
		Meta: models.RouterMeta{
			Source:         "manual",
			IdempotencyKey: req.IdempotencyKey,
		},
	}
	res := h.router.ManualOrder(c.Request().Context(), order, req.BypassKill)
	if !res.Success {
		h.logger.Warn("manual order rejected",
			xlogger.String("broker", req.Broker), xlogger.String("symbol", req.Symbol),
			xlogger.String("error", res.Error))
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AdminHandler) ClosePosition(c echo.Context) error {
	req := &models.ClosePositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.router.ClosePosition(c.Request().Context(), &models.CloseRequest{
		Broker: strings.ToLower(req.Broker),
		Symbol: strings.ToUpper(req.Symbol),
		Ticket: req.Ticket,
		Units:  req.Units,
	})
	return xhttp.SuccessResponse(c, res)
}

func (h *AdminHandler) ModifyPosition(c echo.Context) error {
	req := &models.ModifyPositionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.router.ModifyPosition(c.Request().Context(), &models.ModifyRequest{
		Broker:     strings.ToLower(req.Broker),
		Symbol:     strings.ToUpper(req.Symbol),
		Ticket:     req.Ticket,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	return xhttp.SuccessResponse(c, res)
}

// AuditHistory reads persisted order history. The router's in-memory ring
// only covers the current process; this endpoint survives restarts.
func (h *AdminHandler) AuditHistory(c echo.Context) error {
	req := &models.AuditHistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.audit == nil {
		return xhttp.SuccessResponse(c, echo.Map{
			"success": false,
			"message": "audit persistence is not configured",
		})
	}
	orders, err := h.audit.RecentOrders(c.Request().Context(), strings.ToLower(req.Broker), req.Limit)
	if err != nil {
		h.logger.Error("audit history read failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, echo.Map{"success": true, "orders": orders})
}

func (h *AdminHandler) MarketQuotes(c echo.Context) error {
	req := &models.MarketQuotesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.store.Quotes(strings.ToLower(req.Broker)))
}

func (h *AdminHandler) MarketBars(c echo.Context) error {
	req := &models.MarketBarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := models.NormalizeTimeframe(req.Timeframe)
	bars := h.store.Candles(strings.ToLower(req.Broker), strings.ToUpper(req.Symbol), tf, req.Limit)
	if req.From != "" || req.To != "" {
		from := xhttp.ParseTimeDefault(req.From, time.Time{})
		to := xhttp.ParseTimeDefault(req.To, time.Now())
		from, to = xhttp.AlignFromTo(from, to, string(tf))
		filtered := make([]models.Bar, 0, len(bars))
		for _, b := range bars {
			if !b.Time.Before(from) && !b.Time.After(to) {
				filtered = append(filtered, b)
			}
		}
		bars = filtered
	}
	return xhttp.SuccessResponse(c, echo.Map{"timeframe": tf, "bars": bars})
}

func (h *AdminHandler) MarketNews(c echo.Context) error {
	req := &models.MarketNewsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.store.News(strings.ToLower(req.Broker), req.Limit))
}

// MarketAnalysis serves the same analysis snapshot path the signal engine
// uses, so dashboards and EA execution never disagree.
func (h *AdminHandler) MarketAnalysis(c echo.Context) error {
	req := &models.MarketAnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	broker := strings.ToLower(req.Broker)
	symbol := strings.ToUpper(req.Symbol)
	if resolved, ok := h.store.BestSymbolMatch(broker, symbol); ok {
		symbol = resolved
	}
	tf := models.NormalizeTimeframe(req.Timeframe)
	res := h.store.CandleAnalysis(broker, symbol, tf, req.Limit)
	if res == nil {
		return xhttp.SuccessResponse(c, echo.Map{
			"success": false,
			"message": "insufficient bars for analysis",
		})
	}
	return xhttp.SuccessResponse(c, res)
}
