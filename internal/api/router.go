package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/api/middleware"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/handlers"
	"github.com/seqenenra08/avalanche-ai-agents-marketplace/internal/store"
)

const (
	maxJSONBody = 64 << 10
	maxFileBody = 1 << 20
)

// Options configures the router.
type Options struct {
	APIKey    string
	RateLimit middleware.RateLimiterConfig
}

// NewRouter creates and configures the HTTP router. Rate limiting is only
// installed when redisStore is non-nil.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, redisStore *store.RedisStore, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(maxJSONBody, maxFileBody))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger, opts.RateLimit)
		r.Use(limiter.Middleware)
	}

	// CORS - the web front end calls the gateway from the browser
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Api-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	auth := middleware.NewAuthMiddleware(opts.APIKey, logger)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/api", h.Root)
	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	r.Get("/uploads", h.ListUploads)
	r.Get("/agents", h.ListAgents)
	r.Get("/agents/search", h.Search)
	r.Get("/agents/{id}", h.GetAgent)
	r.Get("/agents/{id}/quote", h.QuoteAgent)

	// Upload routes (require x-api-key)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAPIKey)

		r.Post("/upload", h.UploadMetadata)
		r.Put("/upload", h.UploadFile)
	})

	return r
}
