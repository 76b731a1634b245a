//go:build wireinject
// +build wireinject

package di

import (
	"MetalPulse/pkg/config"
	"MetalPulse/pkg/server"

	"github.com/google/wire"
)

var infraSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideSeriesStore,
	ProvideResultStore,
	ProvideKafkaProducer,
	ProvideAlertPublisher,
	ProvideResultCache,
)

var analysisSet = wire.NewSet(
	ProvidePriceSource,
	ProvideMacroSource,
	ProvideAnalyzer,
	ProvideReportWriter,
	ProvideMonitor,
	ProvideMaintenance,
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		infraSet,
		analysisSet,
		ProvideHistory,
		ProvideQuoteTracker,
		ProvideScheduler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeJobs wires the use cases behind the one-shot CLI commands.
func InitializeJobs(cfg *config.Config) (*Jobs, func(), error) {
	wire.Build(
		infraSet,
		analysisSet,
		ProvideJobs,
	)
	return nil, nil, nil
}
