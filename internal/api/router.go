package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	mw "github.com/membridge-ai/membridge/internal/middleware"
)

// HandlerSet holds handler functions injected from main to avoid import
// cycles between the router and the domain packages.
type HandlerSet struct {
	// Memory handlers
	StoreMemory    http.HandlerFunc
	SearchMemories http.HandlerFunc
	GetMemory      http.HandlerFunc
	DeleteMemory   http.HandlerFunc
	RelatedMemory  http.HandlerFunc
	Stats          http.HandlerFunc

	// Session continuity handlers
	InitializeSession http.HandlerFunc
	CloseSession      http.HandlerFunc

	// Dependency health (embedding service + store)
	Health http.HandlerFunc
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
}

func NewRouter(cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness — embedding service and store must both respond
	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Health)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/memories", func(r chi.Router) {
			r.Post("/", h.StoreMemory)
			r.Post("/search", h.SearchMemories)

			r.Route("/{memoryID}", func(r chi.Router) {
				r.Get("/", h.GetMemory)
				r.Delete("/", h.DeleteMemory)
				r.Get("/related", h.RelatedMemory)
			})
		})

		r.Get("/stats", h.Stats)

		r.Route("/session", func(r chi.Router) {
			r.Post("/initialize", h.InitializeSession)
			r.Post("/close", h.CloseSession)
		})
	})

	return r
}
