//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MacoPull/pkg/config"
	"MacoPull/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideBlobStore,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideSeriesStore,
		ProvideSummaryStore,
		ProvideWarehouse,
		ProvideSignalPublisher,
		ProvideMarketData,

		// Use cases
		ProvidePipeline,
		ProvideSeriesQuery,

		// Transport
		ProvidePipelineHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}
