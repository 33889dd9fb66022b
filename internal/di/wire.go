//go:build wireinject
// +build wireinject

package di

import (
	"SignalForge/pkg/config"
	"SignalForge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
    wire.Build(
        ProvideLogger,
        ProvideMetrics,

        // Infrastructure clients
        ProvideClickHouseClient,
        ProvidePostgres,
        ProvideRedisClient,
        ProvideCacheService,
        ProvideKafkaProducer,
        ProvideKafkaConsumer,

        // Repositories
        ProvideBarStore,
        ProvideSnapshotStore,
        ProvideSignalStore,
        ProvideSubscriberStore,
        ProvideNotificationLedger,
        ProvideBacktestStore,

        // Domain services
        ProvideStrategyRegistry,
        ProvideIndicatorEngine,
        ProvideEvaluator,
        ProvideReplayer,
        ProvideDeliveryTransport,
        ProvideExplainQueue,

        // Use cases
        ProvideIngestPipeline,
        ProvideKafkaBarsHandler,
        ProvideSignalPipeline,
        ProvideDispatcher,
        ProvideReplayUseCase,

        // HTTP + application server
        ProvideOpsHandler,
        ProvideApp,
    )
    return &server.App{}, nil
}
