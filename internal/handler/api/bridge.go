package api

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
	domsvc "FxBridge/internal/domain/service"
	"FxBridge/internal/guards"
	"FxBridge/internal/marketdata"
	"FxBridge/internal/sessions"
	"FxBridge/internal/usecase"
	xhttp "FxBridge/pkg/http"
	xlogger "FxBridge/pkg/logger"
)

// SymbolNotifier wakes the signal pipeline after market-data ingest.
type SymbolNotifier interface {
	IngestSymbols(broker string, symbols ...string)
}

// BridgeHandler is the EA-facing HTTP surface: session lifecycle, market-data
// ingest, snapshot solicitation, management-command drain, and signal
// delivery. Ingest endpoints never return errors to the EA; rejections come
// back as {success:false, message} so MQL polling loops keep functioning.
type BridgeHandler struct {
	logger   *xlogger.Logger
	store    *marketdata.Store
	registry *sessions.Registry
	guards   *guards.Engine
	learning domsvc.LearningState
	exec     *usecase.ExecutionService
	engine   *usecase.SignalEngine
	manager  *usecase.PositionManager
	pipeline SymbolNotifier
	metrics  domrepo.Metrics

	classifier domsvc.NewsClassifier
}

func NewBridgeHandler(
	logger *xlogger.Logger,
	store *marketdata.Store,
	registry *sessions.Registry,
	g *guards.Engine,
	learning domsvc.LearningState,
	exec *usecase.ExecutionService,
	engine *usecase.SignalEngine,
	manager *usecase.PositionManager,
	pipeline SymbolNotifier,
	metrics domrepo.Metrics,
) *BridgeHandler {
	return &BridgeHandler{
		logger:   logger,
		store:    store,
		registry: registry,
		guards:   g,
		learning: learning,
		exec:     exec,
		engine:   engine,
		manager:  manager,
		pipeline: pipeline,
		metrics:  metrics,
	}
}

// SetNewsClassifier attaches impact scoring for unscored headlines.
func (h *BridgeHandler) SetNewsClassifier(nc domsvc.NewsClassifier) { h.classifier = nc }

func (h *BridgeHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/ea")
	g.POST("/session/register", h.RegisterSession)
	g.POST("/session/heartbeat", h.Heartbeat)
	g.POST("/session/disconnect", h.DisconnectSession)
	g.POST("/session/trade-result", h.TradeResult)
	g.POST("/quote", h.RecordQuote)
	g.POST("/quotes", h.RecordQuotes)
	g.POST("/bars", h.RecordBars)
	g.POST("/snapshot", h.RecordSnapshot)
	g.POST("/news", h.RecordNews)
	g.GET("/snapshot-requests", h.SnapshotRequests)
	g.POST("/request-snapshot", h.RequestSnapshot)
	g.POST("/positions", h.ReportPositions)
	g.GET("/commands", h.DrainCommands)
	g.GET("/signal", h.SignalForExecution)
}

func (h *BridgeHandler) RegisterSession(c echo.Context) error {
	req := &models.RegisterSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	sess := h.registry.Register(sessions.RegisterInput{
		AccountNumber: req.AccountNumber,
		Broker:        strings.ToLower(req.Broker),
		AccountMode:   req.AccountMode,
		Equity:        req.Equity,
		Balance:       req.Balance,
		Server:        req.Server,
		Currency:      req.Currency,
	})
	h.logger.Info("ea session registered",
		xlogger.String("session", sess.ID), xlogger.String("broker", sess.Broker))
	return xhttp.SuccessResponse(c, echo.Map{
		"success":   true,
		"sessionId": sess.ID,
		"session":   sess,
	})
}

func (h *BridgeHandler) Heartbeat(c echo.Context) error {
	req := &models.HeartbeatRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	broker := strings.ToLower(req.Broker)
	sess := h.registry.Heartbeat(sessions.HeartbeatInput{
		AccountNumber: req.AccountNumber,
		Broker:        broker,
		AccountMode:   req.AccountMode,
		Equity:        req.Equity,
		Balance:       req.Balance,
		OpenTrades:    req.OpenTrades,
	})

	instructions := h.buildInstructions(c, broker, req.Symbols)
	return xhttp.SuccessResponse(c, echo.Map{
		"success":      true,
		"sessionId":    sess.ID,
		"instructions": instructions,
	})
}

// buildInstructions folds guard verdicts and learning state into the
// heartbeat response the EA acts on.
func (h *BridgeHandler) buildInstructions(c echo.Context, broker string, symbols []string) *models.TradingInstructions {
	report := h.guards.ShouldEnableTrading(c.Request().Context(), broker, "", symbols)
	out := &models.TradingInstructions{
		TradingEnabled:     report.Enabled,
		RiskMultiplier:     h.learning.RiskMultiplier(broker),
		StopLossMultiplier: h.learning.StopLossMultiplier(broker),
		Reason:             report.Reason,
		Guards:             report,
	}
	if halted, reason := h.learning.TradingHalted(broker); halted {
		out.TradingEnabled = false
		out.Reason = reason
	}
	return out
}

func (h *BridgeHandler) DisconnectSession(c echo.Context) error {
	req := &models.DisconnectSessionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	id := models.SessionID(strings.ToLower(req.Broker), req.AccountMode, req.AccountNumber)
	removed := h.registry.Disconnect(id)
	return xhttp.SuccessResponse(c, echo.Map{"success": true, "removed": removed})
}

func (h *BridgeHandler) TradeResult(c echo.Context) error {
	req := &models.TradeResultRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	broker := strings.ToLower(req.Broker)
	id := models.SessionID(broker, req.AccountMode, req.AccountNumber)
	h.registry.RecordTrade(id, req.Profit)
	h.learning.RecordOutcome(broker, req.Profit)

	halted, reason := h.learning.TradingHalted(broker)
	return xhttp.SuccessResponse(c, echo.Map{
		"success":       true,
		"tradingHalted": halted,
		"reason":        reason,
	})
}

func (h *BridgeHandler) RecordQuote(c echo.Context) error {
	req := &models.RecordQuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	broker := strings.ToLower(req.Broker)
	res := h.store.RecordQuote(quoteFromPayload(broker, &req.QuotePayload))
	if res.Success {
		h.notify(broker, req.Symbol)
	} else if h.metrics != nil {
		h.metrics.RecordIngestRejected("quote")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BridgeHandler) RecordQuotes(c echo.Context) error {
	req := &models.RecordQuotesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	broker := strings.ToLower(req.Broker)
	quotes := make([]*models.Quote, 0, len(req.Quotes))
	symbols := make([]string, 0, len(req.Quotes))
	for i := range req.Quotes {
		quotes = append(quotes, quoteFromPayload(broker, &req.Quotes[i]))
		symbols = append(symbols, req.Quotes[i].Symbol)
	}
	res := h.store.RecordQuotes(broker, quotes)
	if res.Accepted > 0 {
		h.notify(broker, symbols...)
	}
	if res.Rejected > 0 && h.metrics != nil {
		h.metrics.RecordIngestRejected("quote")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BridgeHandler) RecordBars(c echo.Context) error {
	req := &models.RecordBarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	tf := models.NormalizeTimeframe(req.Timeframe)
	if !models.IsValidTimeframe(tf) {
		return xhttp.SuccessResponse(c, marketdata.IngestResult{
			Success: false, Message: "unknown timeframe " + req.Timeframe,
		})
	}
	broker := strings.ToLower(req.Broker)
	bars := make([]models.Bar, 0, len(req.Bars))
	for _, b := range req.Bars {
		bars = append(bars, models.Bar{
			Time:   msTime(b.Time),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
			Source: "ea",
		})
	}
	res := h.store.RecordBars(broker, req.Symbol, tf, bars)
	if res.Accepted > 0 {
		h.notify(broker, req.Symbol)
	}
	if res.Rejected > 0 && h.metrics != nil {
		h.metrics.RecordIngestRejected("bar")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BridgeHandler) RecordSnapshot(c echo.Context) error {
	req := &models.RecordSnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	broker := strings.ToLower(req.Broker)
	snap := &models.Snapshot{
		Broker:     broker,
		Symbol:     req.Symbol,
		Timeframes: make(map[models.Timeframe]models.SnapshotTimeframe, len(req.Timeframes)),
	}
	for tfName, payload := range req.Timeframes {
		tf := models.NormalizeTimeframe(tfName)
		if !models.IsValidTimeframe(tf) {
			continue
		}
		snap.Timeframes[tf] = payload
	}
	if req.Quote != nil {
		if req.Quote.Symbol == "" {
			req.Quote.Symbol = req.Symbol
		}
		snap.Quote = quoteFromPayload(broker, req.Quote)
	}
	res := h.store.RecordSnapshot(snap)
	if res.Success {
		h.notify(broker, req.Symbol)
	} else if h.metrics != nil {
		h.metrics.RecordIngestRejected("snapshot")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BridgeHandler) RecordNews(c echo.Context) error {
	req := &models.RecordNewsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	broker := strings.ToLower(req.Broker)
	items := make([]models.NewsItem, 0, len(req.Items))
	for _, it := range req.Items {
		item := models.NewsItem{
			ID:       it.ID,
			Broker:   broker,
			Title:    it.Title,
			Symbol:   it.Symbol,
			Currency: strings.ToUpper(it.Currency),
			Impact:   it.Impact,
			Time:     msTime(it.Time),
			Kind:     models.NewsKind(it.Kind),
			Source:   it.Source,
		}
		if item.Impact == 0 && item.Kind == models.NewsHeadline && h.classifier != nil {
			if impact, err := h.classifier.Classify(c.Request().Context(), &item); err == nil {
				item.Impact = impact
			}
		}
		items = append(items, item)
	}
	res := h.store.RecordNews(broker, items)
	if res.Rejected > 0 && h.metrics != nil {
		h.metrics.RecordIngestRejected("news")
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BridgeHandler) SnapshotRequests(c echo.Context) error {
	req := &models.SnapshotRequestsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	symbols := h.store.ConsumeSnapshotRequests(strings.ToLower(req.Broker), req.Max)
	return xhttp.SuccessResponse(c, echo.Map{"success": true, "symbols": symbols})
}

func (h *BridgeHandler) RequestSnapshot(c echo.Context) error {
	req := &models.RequestSnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	h.store.RequestSnapshot(strings.ToLower(req.Broker), req.Symbol, time.Duration(req.TTLMs)*time.Millisecond)
	return xhttp.SuccessResponse(c, echo.Map{"success": true})
}

// ReportPositions runs the management pass over the EA's open positions and
// queues any due actions. Positions are grouped by symbol so each group gets
// the plan derived from that symbol's current signal.
func (h *BridgeHandler) ReportPositions(c echo.Context) error {
	req := &models.ReportPositionsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	broker := strings.ToLower(req.Broker)
	ctx := c.Request().Context()

	bySymbol := make(map[string][]models.Position)
	for _, p := range req.Positions {
		pos := models.Position{
			Broker:       broker,
			Symbol:       strings.ToUpper(p.Symbol),
			Ticket:       p.Ticket,
			Side:         models.OrderSide(strings.ToLower(p.Side)),
			Units:        p.Units,
			EntryPrice:   p.EntryPrice,
			StopLoss:     p.StopLoss,
			TakeProfit:   p.TakeProfit,
			UnrealizedPL: p.UnrealizedPL,
		}
		if p.OpenedAt > 0 {
			pos.OpenedAt = msTime(p.OpenedAt)
		}
		bySymbol[pos.Symbol] = append(bySymbol[pos.Symbol], pos)
	}

	queued := 0
	for symbol, positions := range bySymbol {
		var plan *models.ManagementPlan
		if sig, err := h.engine.GenerateSignal(ctx, broker, symbol); err == nil && sig != nil {
			plan = usecase.PlanForSignal(sig)
		}
		cmds, err := h.manager.EvaluatePositionManagement(ctx, broker, positions, plan)
		if err != nil {
			h.logger.Error("position management pass failed",
				xlogger.String("broker", broker), xlogger.String("symbol", symbol), xlogger.Error(err))
			continue
		}
		queued += len(cmds)
	}
	return xhttp.SuccessResponse(c, echo.Map{"success": true, "queued": queued})
}

func (h *BridgeHandler) DrainCommands(c echo.Context) error {
	req := &models.DrainCommandsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	cmds, err := h.manager.Queue().Drain(c.Request().Context(), strings.ToLower(req.Broker), req.Limit)
	if err != nil {
		h.logger.Error("command drain failed", xlogger.String("broker", req.Broker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if cmds == nil {
		cmds = []models.ManagementCommand{}
	}
	return xhttp.SuccessResponse(c, echo.Map{"success": true, "commands": cmds})
}

func (h *BridgeHandler) SignalForExecution(c echo.Context) error {
	start := time.Now()
	req := &models.SignalForExecutionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.exec.SignalForExecution(c.Request().Context(), strings.ToLower(req.Broker), req.Symbol)
	if h.metrics != nil {
		h.metrics.RecordLatency("signal_for_execution", time.Since(start).Seconds())
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BridgeHandler) notify(broker string, symbols ...string) {
	if h.pipeline == nil {
		return
	}
	h.pipeline.IngestSymbols(broker, symbols...)
}

// quoteFromPayload maps the wire tick to the domain quote. A zero timestamp
// means "now"; the store stamps ReceivedAt itself.
func quoteFromPayload(broker string, p *models.QuotePayload) *models.Quote {
	q := &models.Quote{
		Broker:       broker,
		Symbol:       strings.ToUpper(p.Symbol),
		Bid:          p.Bid,
		Ask:          p.Ask,
		Last:         p.Last,
		Digits:       p.Digits,
		Point:        p.Point,
		SpreadPoints: p.SpreadPoints,
		TickSize:     p.TickSize,
		TickValue:    p.TickValue,
		ContractSize: p.ContractSize,
		Volume:       p.Volume,
		Source:       "ea",
	}
	if p.Timestamp > 0 {
		q.Timestamp = msTime(p.Timestamp)
	}
	return q
}

func msTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
