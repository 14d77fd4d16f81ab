//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"tangent-backend/internal/config"
)

// InitializeApp builds the application from configuration.
func InitializeApp(cfg *config.Config) (*App, error) {
	wire.Build(
		provideLogger,
		provideRegistry,
		provideMetrics,
		provideHistory,
		provideDimensionStore,
		provideEngine,
		provideHub,
		provideGraphService,
		provideStreamer,
		provideOrchestrator,
		provideParser,
		provideIngestor,
		provideHandler,
		provideRouter,
		newApp,
	)
	return nil, nil
}
