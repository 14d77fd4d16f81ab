// Package rest wires the editor API onto a chi router.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tangent-backend/interfaces/websocket"
)

// Router assembles middleware, API routes and operational endpoints.
type Router struct {
	handler  *GraphHandler
	hub      *websocket.Hub
	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewRouter creates a router over the handler set and the websocket hub.
func NewRouter(
	handler *GraphHandler,
	hub *websocket.Hub,
	registry *prometheus.Registry,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{handler: handler, hub: hub, registry: registry, logger: logger}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(rt.logger))
	r.Use(CORS)

	r.Get("/health", rt.health)
	r.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		websocket.ServeWS(rt.hub, w, req)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/graph", rt.handler.GetGraph)

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", rt.handler.CreateNode)
			r.Patch("/{nodeID}", rt.handler.PatchNode)
			r.Post("/{nodeID}/move", rt.handler.MoveNode)
			r.Delete("/{nodeID}", rt.handler.DeleteNode)
		})

		r.Post("/edges", rt.handler.CreateEdge)
		r.Post("/submit", rt.handler.Submit)
		r.Post("/undo", rt.handler.Undo)
		r.Post("/dimensions", rt.handler.ReportDimensions)
		r.Post("/files", rt.handler.IngestFiles)
	})

	return r
}

func (rt *Router) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
