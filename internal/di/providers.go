// Package di assembles the application with Wire-generated wiring.
// Providers live here; wire.go declares the injector and wire_gen.go holds
// the generated assembly.
package di

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tangent-backend/interfaces/http/rest"
	"tangent-backend/interfaces/websocket"
	"tangent-backend/internal/application/cascade"
	"tangent-backend/internal/application/ports"
	"tangent-backend/internal/application/services"
	"tangent-backend/internal/config"
	"tangent-backend/internal/domain/history"
	"tangent-backend/internal/domain/layout"
	"tangent-backend/internal/infrastructure/ingest"
	"tangent-backend/internal/infrastructure/llm"
	"tangent-backend/internal/observability"
)

// App is the fully wired application.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Handler      http.Handler
	Hub          *websocket.Hub
	Orchestrator *cascade.Orchestrator
}

func newApp(
	cfg *config.Config,
	logger *zap.Logger,
	handler http.Handler,
	hub *websocket.Hub,
	orch *cascade.Orchestrator,
) *App {
	return &App{Config: cfg, Logger: logger, Handler: handler, Hub: hub, Orchestrator: orch}
}

// ApplyConfig pushes a hot-reloaded configuration into the components that
// can retune without a restart. Registered as a config.Watcher callback.
func (a *App) ApplyConfig(next *config.Config) {
	a.Orchestrator.SetConfig(cascadeConfig(next))
	a.Logger.Info("runtime configuration applied",
		zap.Int("max_parallel", next.Cascade.MaxParallel),
		zap.String("model", next.LLM.Model),
		zap.Duration("llm_timeout", next.LLM.Timeout))
}

func cascadeConfig(cfg *config.Config) cascade.Config {
	return cascade.Config{
		MaxParallel: cfg.Cascade.MaxParallel,
		Stream: ports.StreamOptions{
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		},
	}
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(string(cfg.Environment))
}

func provideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

func provideMetrics(reg *prometheus.Registry) *observability.Metrics {
	return observability.NewMetrics(reg)
}

func provideHistory(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *history.Manager {
	m := history.NewManager(cfg.History.Capacity, logger)
	m.ObserveDepth(func(depth int) {
		metrics.UndoDepth.Set(float64(depth))
	})
	return m
}

func provideDimensionStore() *layout.DimensionStore {
	return layout.NewDimensionStore()
}

func provideEngine(
	cfg *config.Config,
	dims *layout.DimensionStore,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *layout.Engine {
	lc := layout.Config{
		Gap:         cfg.Layout.Gap,
		RingStep:    cfg.Layout.RingStep,
		MaxRings:    cfg.Layout.MaxRings,
		MaxStep:     cfg.Layout.MaxStep,
		PinnedNudge: cfg.Layout.PinnedNudge,
	}
	return layout.NewEngine(dims, lc, logger, metrics.PlacementFallbacks.Inc)
}

func provideHub(logger *zap.Logger, metrics *observability.Metrics) *websocket.Hub {
	return websocket.NewHub(logger, metrics)
}

func provideGraphService(
	hist *history.Manager,
	engine *layout.Engine,
	dims *layout.DimensionStore,
	logger *zap.Logger,
	hub *websocket.Hub,
) *services.GraphService {
	return services.NewGraphService(hist, engine, dims, logger, hub)
}

func provideStreamer(
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) ports.ChatStreamer {
	return llm.NewOpenAIStreamer(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger, metrics)
}

func provideOrchestrator(
	svc *services.GraphService,
	streamer ports.ChatStreamer,
	cfg *config.Config,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *cascade.Orchestrator {
	return cascade.NewOrchestrator(svc, streamer, cascadeConfig(cfg), logger, metrics)
}

func provideParser() ports.FileParser {
	return ingest.NewParser()
}

func provideIngestor(
	svc *services.GraphService,
	parser ports.FileParser,
	logger *zap.Logger,
) *ingest.Ingestor {
	return ingest.NewIngestor(svc, parser, logger)
}

func provideHandler(
	svc *services.GraphService,
	orch *cascade.Orchestrator,
	ingestor *ingest.Ingestor,
	logger *zap.Logger,
) *rest.GraphHandler {
	return rest.NewGraphHandler(svc, orch, ingestor, logger)
}

func provideRouter(
	handler *rest.GraphHandler,
	hub *websocket.Hub,
	registry *prometheus.Registry,
	logger *zap.Logger,
) http.Handler {
	return rest.NewRouter(handler, hub, registry, logger).Setup()
}
