//go:build wireinject
// +build wireinject

package di

import (
	"FxBridge/pkg/config"
	"FxBridge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedis,

		// Repositories
		ProvideEventPublisher,
		ProvideAuditStore,
		ProvideAuditArchive,

		// Market data
		ProvideSymbolResolver,
		ProvideMarketStore,

		// Domain capabilities
		ProvideLearning,
		ProvideDataQualityReporter,
		ProvideQualityEvaluator,
		ProvideNewsClassifier,
		ProvideGuardEngine,

		// Use cases
		ProvideSignalEngine,
		ProvideExecutionService,
		ProvideCommandQueue,
		ProvidePositionManager,
		ProvideSessionRegistry,

		// Routing
		ProvideConnectors,
		ProvideTradeBook,
		ProvideRouter,
		ProvideReconciler,

		// Pipeline and feeds
		ProvidePipelineRunner,
		ProvideFeedStream,
		ProvideQuoteCollector,
		ProvideKafkaQuotesHandler,

		// HTTP surfaces
		ProvideBridgeHandler,
		ProvideAdminHandler,
		ProvideHandlers,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
