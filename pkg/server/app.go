package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"FxBridge/internal/connectors"
	domrepo "FxBridge/internal/domain/repository"
	"FxBridge/internal/handler/api"
	"FxBridge/internal/pipeline"
	"FxBridge/internal/router"
	svcmetrics "FxBridge/internal/service/metrics"
	"FxBridge/internal/service/ratelimit"
	"FxBridge/internal/usecase"
	"FxBridge/pkg/config"
	xhttp "FxBridge/pkg/http"
	pkgkafka "FxBridge/pkg/kafka"
	applogger "FxBridge/pkg/logger"

	"github.com/labstack/echo/v4"
)

// Handlers mounts every HTTP surface onto one Echo instance, wrapped in the
// latency and rate-limit middleware.
type Handlers struct {
	Bridge *api.BridgeHandler
	Admin  *api.AdminHandler

	Limiter      *ratelimit.Limiter
	RateCapacity float64
	RateRefill   float64
}

func (h *Handlers) RegisterRoutes(e *echo.Echo) {
	svcmetrics.Register()
	e.Use(api.LatencyMiddleware())
	if h.Limiter != nil && h.RateCapacity > 0 {
		e.Use(api.RateLimitMiddleware(h.Limiter, h.RateCapacity, h.RateRefill))
	}
	h.Bridge.RegisterRoutes(e)
	h.Admin.RegisterRoutes(e)
}

type closer struct {
	name string
	fn   func() error
}

// App owns the process lifecycle: it starts the signal pipeline, the optional
// market feed and Kafka consumer, the reconciliation loop, and the HTTP
// server, then tears everything down on SIGINT or SIGTERM.
type App struct {
	cfg     *config.Config
	log     *applogger.Logger
	handler xhttp.Handler
	runner  *pipeline.Runner

	collector  *usecase.QuoteCollector
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	reconciler *router.ReconciliationService
	conns      []domrepo.Connector

	httpServer *xhttp.Server
	closers    []closer
}

// New creates the application around its always-present pieces. Optional
// subsystems attach through the setters below.
func New(cfg *config.Config, log *applogger.Logger, handler xhttp.Handler, runner *pipeline.Runner) *App {
	return &App{
		cfg:     cfg,
		log:     log,
		handler: handler,
		runner:  runner,
	}
}

// SetCollector attaches the websocket market feed.
func (a *App) SetCollector(c *usecase.QuoteCollector) { a.collector = c }

// SetConsumer attaches the Kafka quote consumer and its handler.
func (a *App) SetConsumer(consumer *pkgkafka.Consumer, kh pkgkafka.MessageHandler) {
	a.consumer = consumer
	a.kh = kh
}

// SetReconciler attaches the broker position reconciliation loop.
func (a *App) SetReconciler(r *router.ReconciliationService) { a.reconciler = r }

// SetConnectors registers the broker connectors dialed at startup.
func (a *App) SetConnectors(conns []domrepo.Connector) { a.conns = conns }

// AddCloser registers a resource closed during shutdown, in registration
// order.
func (a *App) AddCloser(name string, fn func() error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectors.ConnectAll(ctx, a.conns, a.log)

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	go a.runner.Run(ctx)
	a.log.Info("signal pipeline started",
		applogger.Duration("debounce", a.cfg.Pipeline.Debounce),
		applogger.Duration("revalidate", a.cfg.Pipeline.RevalidateInterval))

	if a.collector != nil {
		go func() {
			if err := a.collector.Start(ctx); err != nil {
				a.log.Error("market feed error", applogger.Error(err))
			}
		}()
		a.log.Info("market feed started",
			applogger.String("broker", a.cfg.Feed.Broker),
			applogger.Strings("symbols", a.cfg.Feed.Symbols))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.reconciler != nil {
		go a.reconciler.Run(ctx)
		a.log.Info("reconciliation loop started",
			applogger.Duration("interval", a.cfg.Router.ReconcileEvery))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(cancel)
}

// shutdown stops intake first so in-flight work drains before the resources
// underneath it close.
func (a *App) shutdown(cancel context.CancelFunc) error {
	shutdownCtx, done := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer done()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("market feed stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	// Stops the pipeline and reconciliation loops.
	cancel()

	for _, conn := range a.conns {
		if err := conn.Disconnect(shutdownCtx); err != nil {
			a.log.Warn("connector disconnect error",
				applogger.String("broker", conn.Broker()), applogger.Error(err))
		}
	}

	for _, cl := range a.closers {
		if err := cl.fn(); err != nil {
			a.log.Warn("close error", applogger.String("resource", cl.name), applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
