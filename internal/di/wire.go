//go:build wireinject
// +build wireinject

package di

import (
	"HistPull/pkg/config"
	"HistPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Vendor
		ProvideVendorClient,
		ProvideSession,
		ProvideDataSource,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCache,

		// Repositories
		ProvidePathPlanner,
		ProvidePersister,
		ProvideRowSinks,
		ProvideEventPublisher,
		ProvideReportStore,

		// Use cases
		ProvideBatchDownloader,
		ProvideDownloadService,

		// Application
		ProvideApp,
	)
	return nil, nil, nil
}
