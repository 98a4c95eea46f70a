package di

import (
	"context"
	"fmt"
	"time"

	"FxBridge/internal/connectors"
	domrepo "FxBridge/internal/domain/repository"
	domsvc "FxBridge/internal/domain/service"
	"FxBridge/internal/guards"
	"FxBridge/internal/handler/api"
	"FxBridge/internal/marketdata"
	mid "FxBridge/internal/middleware"
	"FxBridge/internal/pipeline"
	internalrepo "FxBridge/internal/repository"
	"FxBridge/internal/router"
	icache "FxBridge/internal/service/cache"
	"FxBridge/internal/service/mtfeed"
	"FxBridge/internal/service/ratelimit"
	"FxBridge/internal/services/intelligence"
	"FxBridge/internal/sessions"
	"FxBridge/internal/symbols"
	"FxBridge/internal/usecase"
	pkgcache "FxBridge/pkg/cache"
	pkgch "FxBridge/pkg/clickhouse"
	"FxBridge/pkg/config"
	pkgkafka "FxBridge/pkg/kafka"
	applogger "FxBridge/pkg/logger"
	"FxBridge/pkg/metrics"
	"FxBridge/pkg/queue"
	"FxBridge/pkg/server"
)

// ProvideLogger creates the application logger. Production logs JSON for
// shippers; everything else gets the console writer.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{Level: "info", Format: "console", Output: "stdout"}
	if cfg.Environment == "production" {
		lc.Format = "json"
	}
	l, err := applogger.New(lc)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates the ClickHouse client and applies the audit
// schema. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append([]string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}, internalrepo.AuditSchema...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates the Kafka producer, nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the peer quote consumer, nil unless enabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideRedis creates the shared Redis cache, nil when disabled.
func ProvideRedis(cfg *config.Config) (*pkgcache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	c, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return c, nil
}

// ProvideEventPublisher publishes signal and audit events to Kafka, or
// swallows them when Kafka is disabled.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.EventPublisher {
	if producer == nil {
		return internalrepo.NopEventPublisher{}
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.SignalTopic, cfg.Kafka.AuditTopic)
}

// ProvideAuditStore creates the ClickHouse order archive, nil when ClickHouse
// is disabled.
func ProvideAuditStore(ch *pkgch.Client, log *applogger.Logger) *internalrepo.ClickHouseAuditArchive {
	if ch == nil {
		return nil
	}
	a := internalrepo.NewClickHouseAuditArchive(ch)
	a.SetLogger(log)
	return a
}

// ProvideAuditArchive adapts the optional ClickHouse archive to the router's
// required interface.
func ProvideAuditArchive(store *internalrepo.ClickHouseAuditArchive) domrepo.AuditArchive {
	if store == nil {
		return internalrepo.NopAuditArchive{}
	}
	return store
}

// ProvideSymbolResolver creates the broker symbol resolver.
func ProvideSymbolResolver() *symbols.Resolver {
	return symbols.New()
}

// ProvideMarketStore creates the in-memory market-data cache.
func ProvideMarketStore(cfg *config.Config, resolver *symbols.Resolver, m domrepo.Metrics, log *applogger.Logger) *marketdata.Store {
	mdCfg := marketdata.DefaultConfig()
	mdCfg.MaxQuoteAge = cfg.MarketData.MaxQuoteAge
	mdCfg.AllowSynthetic = cfg.MarketData.AllowSynthetic
	mdCfg.AnalysisCacheTTL = cfg.MarketData.AnalysisCacheTTL
	return marketdata.NewStore(mdCfg, resolver, m, marketdata.WithLogger(log))
}

// ProvideLearning creates the per-broker loss-streak state.
func ProvideLearning(cfg *config.Config) domsvc.LearningState {
	return domsvc.NewLossStreakLearning(cfg.Learning.MaxConsecutiveLosses)
}

// ProvideDataQualityReporter consults the intelligence service for
// broker-level data quality, or reports OK when it is not configured.
func ProvideDataQualityReporter(cfg *config.Config) domsvc.DataQualityReporter {
	if !cfg.Intelligence.Enabled {
		return domsvc.NopDataQualityReporter{}
	}
	return intelligence.NewHTTPDataQualityReporter(cfg)
}

// ProvideQualityEvaluator scores candidate trades via the intelligence
// service, approving everything when it is not configured.
func ProvideQualityEvaluator(cfg *config.Config) domsvc.TradeQualityEvaluator {
	if !cfg.Intelligence.Enabled {
		return domsvc.NopQualityEvaluator{}
	}
	return intelligence.NewHTTPQualityEvaluator(cfg)
}

// ProvideNewsClassifier scores unscored headlines. Results are cached in a
// memory-over-Redis layered cache when Redis is available so repeated
// headlines skip the service round trip.
func ProvideNewsClassifier(cfg *config.Config, redis *pkgcache.RedisCache) domsvc.NewsClassifier {
	if !cfg.Intelligence.Enabled {
		return domsvc.NopNewsClassifier{}
	}
	nc := intelligence.NewHTTPNewsClassifier(cfg)
	if redis != nil {
		nc.SetCache(icache.NewSharedCache(pkgcache.NewLayeredCache(redis)))
	}
	return nc
}

// ProvideGuardEngine creates the execution guard engine.
func ProvideGuardEngine(cfg *config.Config, store *marketdata.Store, dq domsvc.DataQualityReporter, learning domsvc.LearningState) *guards.Engine {
	return guards.NewEngine(guards.Config{
		NewsImpactMin:      cfg.Guards.NewsImpactMin,
		NewsBlackoutBefore: cfg.Guards.NewsBlackoutBefore,
		NewsBlackoutAfter:  cfg.Guards.NewsBlackoutAfter,
		SessionStrict:      cfg.Guards.SessionStrict,
		MaxSpreadPips:      cfg.Guards.MaxSpreadPips,
		MinFreshQuotes:     cfg.Guards.MinFreshQuotes,
	}, store, dq, learning)
}

// ProvideSignalEngine creates the multi-timeframe signal engine.
func ProvideSignalEngine(cfg *config.Config, store *marketdata.Store, learning domsvc.LearningState, log *applogger.Logger) *usecase.SignalEngine {
	return usecase.NewSignalEngine(usecase.EngineConfig{
		MinBars:         cfg.Engine.MinBars,
		SignalTTL:       cfg.Engine.SignalTTL,
		MinConfidence:   cfg.Engine.MinConfidence,
		MinStrength:     cfg.Engine.MinStrength,
		ReadinessMin:    cfg.Engine.ReadinessMin,
		BaseRiskPercent: cfg.Engine.BaseRiskPercent,
	}, store, learning, usecase.WithEngineLogger(log))
}

// ProvideExecutionService creates the EA-facing execution gate.
func ProvideExecutionService(cfg *config.Config, store *marketdata.Store, engine *usecase.SignalEngine, g *guards.Engine, quality domsvc.TradeQualityEvaluator, log *applogger.Logger) *usecase.ExecutionService {
	return usecase.NewExecutionService(usecase.ExecutionConfig{
		MinBars:          cfg.Engine.MinBars,
		RequireReadiness: cfg.Pipeline.RequireReadiness,
		MinConfidence:    cfg.Pipeline.MinConfidence,
		MinStrength:      cfg.Pipeline.MinStrength,
	}, store, engine, g, quality, log)
}

// ProvideCommandQueue buffers management commands in Redis when available so
// they survive restarts, falling back to the in-process queue.
func ProvideCommandQueue(redis *pkgcache.RedisCache, log *applogger.Logger) usecase.CommandQueue {
	if redis == nil {
		return usecase.NewMemoryCommandQueue()
	}
	fifo := queue.NewRedisFIFO(log, redis.Client())
	q := internalrepo.NewRedisCommandQueue(fifo)
	q.SetLogger(log)
	return q
}

// ProvidePositionManager creates the trade-management pass.
func ProvidePositionManager(store *marketdata.Store, g *guards.Engine, q usecase.CommandQueue, log *applogger.Logger) *usecase.PositionManager {
	return usecase.NewPositionManager(store, g, q, log)
}

// ProvideSessionRegistry tracks live EA terminal sessions.
func ProvideSessionRegistry(log *applogger.Logger) *sessions.Registry {
	return sessions.NewRegistry(sessions.WithLogger(log))
}

// ProvideConnectors builds the enabled broker connectors.
func ProvideConnectors(cfg *config.Config) []domrepo.Connector {
	return connectors.Build(cfg.Connectors)
}

// ProvideTradeBook creates the trade book shared by the router and the
// reconciliation loop. Routed orders land here as pending; broker fills
// resolve them.
func ProvideTradeBook() *router.TradeBook {
	return router.NewTradeBook()
}

// ProvideRouter creates the broker order router.
func ProvideRouter(cfg *config.Config, conns []domrepo.Connector, book *router.TradeBook, archive domrepo.AuditArchive, publisher domrepo.EventPublisher, log *applogger.Logger, m domrepo.Metrics) *router.Router {
	return router.NewRouter(router.Config{
		RetryAttempts:    cfg.Router.RetryAttempts,
		RetryBase:        cfg.Router.RetryBase,
		BreakerThreshold: cfg.Router.BreakerThreshold,
		BreakerCooldown:  cfg.Router.BreakerCooldown,
		IdempotencyTTL:   cfg.Router.IdempotencyTTL,
		AuditLogSize:     cfg.Router.AuditLogSize,
		KillSwitch:       cfg.Router.KillSwitch,
	}, conns, archive, publisher,
		router.WithLogger(log), router.WithMetrics(m), router.WithTradeBook(book))
}

// ProvideReconciler creates the periodic broker position reconciliation loop.
func ProvideReconciler(cfg *config.Config, conns []domrepo.Connector, book *router.TradeBook, archive domrepo.AuditArchive, log *applogger.Logger) *router.ReconciliationService {
	return router.NewReconciliationService(conns, book, archive, cfg.Router.ReconcileEvery, log)
}

// ProvidePipelineRunner creates the debounced signal pipeline.
func ProvidePipelineRunner(cfg *config.Config, engine *usecase.SignalEngine, store *marketdata.Store, publisher domrepo.EventPublisher, m domrepo.Metrics, log *applogger.Logger) *pipeline.Runner {
	return pipeline.NewRunner(pipeline.Config{
		Debounce:           cfg.Pipeline.Debounce,
		MinInterval:        cfg.Pipeline.MinInterval,
		RevalidateInterval: cfg.Pipeline.RevalidateInterval,
		RequireSnapshot:    cfg.Pipeline.RequireSnapshot,
		RequireBars:        cfg.Pipeline.RequireBars,
		MinBars:            cfg.Engine.MinBars,
		RequireConfluence:  cfg.Pipeline.RequireConfluence,
		RequireReadiness:   cfg.Pipeline.RequireReadiness,
		AllowWaitMonitor:   cfg.Pipeline.AllowWaitMonitor,
		MinConfidence:      cfg.Pipeline.MinConfidence,
		MinStrength:        cfg.Pipeline.MinStrength,
	}, engine, store, publisher, m, pipeline.WithRunnerLogger(log))
}

// ProvideFeedStream creates the terminal gateway websocket stream, nil when
// the feed is disabled.
func ProvideFeedStream(cfg *config.Config, log *applogger.Logger) domrepo.MarketStream {
	if !cfg.Feed.Enabled {
		return nil
	}
	return mtfeed.New(
		cfg.Feed.Broker,
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Symbols,
		cfg.Feed.ReconnectDelay,
		cfg.Feed.PingInterval,
		log,
	)
}

// ProvideQuoteCollector builds the websocket ingest path, nil when the feed
// is disabled. The runner doubles as the symbol notifier so streamed quotes
// wake the pipeline the same way EA pushes do.
func ProvideQuoteCollector(cfg *config.Config, stream domrepo.MarketStream, store *marketdata.Store, runner *pipeline.Runner, producer *pkgkafka.Producer, m domrepo.Metrics) *usecase.QuoteCollector {
	if stream == nil {
		return nil
	}
	proc := usecase.NewQuoteProcessor(store, runner, producer, cfg.Kafka.QuotesTopic, m)
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(cfg.Feed.MaxRPS),
		mid.WithBufferSize(cfg.Feed.BufferSize),
	)
	return usecase.NewQuoteCollector(stream, proc, m, pipe)
}

// ProvideKafkaQuotesHandler consumes quotes published by a peer instance.
func ProvideKafkaQuotesHandler(cfg *config.Config, store *marketdata.Store, runner *pipeline.Runner, m domrepo.Metrics) *usecase.KafkaQuotesHandler {
	return usecase.NewKafkaQuotesHandler(cfg.Kafka.QuotesTopic, store, runner, m)
}

// ProvideBridgeHandler creates the EA-facing HTTP surface.
func ProvideBridgeHandler(
	log *applogger.Logger,
	store *marketdata.Store,
	registry *sessions.Registry,
	g *guards.Engine,
	learning domsvc.LearningState,
	exec *usecase.ExecutionService,
	engine *usecase.SignalEngine,
	manager *usecase.PositionManager,
	runner *pipeline.Runner,
	m domrepo.Metrics,
	nc domsvc.NewsClassifier,
) *api.BridgeHandler {
	h := api.NewBridgeHandler(log, store, registry, g, learning, exec, engine, manager, runner, m)
	h.SetNewsClassifier(nc)
	return h
}

// ProvideAdminHandler creates the operator HTTP surface.
func ProvideAdminHandler(log *applogger.Logger, r *router.Router, registry *sessions.Registry, store *marketdata.Store, audit *internalrepo.ClickHouseAuditArchive) *api.AdminHandler {
	h := api.NewAdminHandler(log, r, registry, store)
	if audit != nil {
		h.SetAuditReader(audit)
	}
	return h
}

// ProvideHandlers aggregates the HTTP surfaces with shared middleware.
func ProvideHandlers(bridge *api.BridgeHandler, admin *api.AdminHandler) *server.Handlers {
	return &server.Handlers{
		Bridge:       bridge,
		Admin:        admin,
		Limiter:      ratelimit.New(),
		RateCapacity: 40,
		RateRefill:   20,
	}
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handlers *server.Handlers,
	runner *pipeline.Runner,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaQuotesHandler,
	reconciler *router.ReconciliationService,
	conns []domrepo.Connector,
	publisher domrepo.EventPublisher,
	archive domrepo.AuditArchive,
	chClient *pkgch.Client,
	redis *pkgcache.RedisCache,
	producer *pkgkafka.Producer,
) *server.App {
	app := server.New(cfg, log, handlers, runner)
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
		app.AddCloser("log collector", func() error {
			log.RemoveCollector()
			return nil
		})
	}
	app.SetConnectors(conns)
	app.SetReconciler(reconciler)
	if collector != nil {
		app.SetCollector(collector)
	}
	if consumer != nil {
		app.SetConsumer(consumer, kh)
	}

	app.AddCloser("event publisher", publisher.Close)
	app.AddCloser("audit archive", archive.Close)
	if chClient != nil {
		app.AddCloser("clickhouse", chClient.Close)
	}
	if redis != nil {
		app.AddCloser("redis", redis.Close)
	}
	return app
}
