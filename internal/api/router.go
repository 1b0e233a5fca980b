package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"hyaluron-watch/internal/api/handlers"
	apimiddleware "hyaluron-watch/internal/api/middleware"
	"hyaluron-watch/internal/config"
	"hyaluron-watch/pkg/logger"
)

// Router holds dependencies for the API router
type Router struct {
	config   config.Config
	handlers *handlers.Handlers
	limiter  apimiddleware.RateLimitChecker
	metrics  http.Handler
	observer apimiddleware.HTTPObserver
	logger   *logger.Logger
}

// NewRouter creates a new Router instance. limiter, metrics and observer
// may be nil.
func NewRouter(
	cfg config.Config,
	h *handlers.Handlers,
	limiter apimiddleware.RateLimitChecker,
	metrics http.Handler,
	observer apimiddleware.HTTPObserver,
	log *logger.Logger,
) *Router {
	return &Router{
		config:   cfg,
		handlers: h,
		limiter:  limiter,
		metrics:  metrics,
		observer: observer,
		logger:   log.WithComponent("router"),
	}
}

// Setup sets up the Chi router with all routes and middleware
func (r *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Core middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.Logger(r.logger, r.observer))
	router.Use(middleware.Recoverer)

	// CORS
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.config.CORS.AllowedOrigins,
		AllowedMethods:   r.config.CORS.AllowedMethods,
		AllowedHeaders:   r.config.CORS.AllowedHeaders,
		AllowCredentials: r.config.CORS.AllowCredentials,
		MaxAge:           r.config.CORS.MaxAge,
	}))

	// Public routes
	router.Group(func(pub chi.Router) {
		pub.Get("/health", r.handlers.Health.Check)
		pub.Get("/ready", r.handlers.Health.Ready)

		if r.metrics != nil && r.config.Metrics.Enabled {
			pub.Handle(r.metricsPath(), r.metrics)
		}
	})

	// WebSocket stream of detection and case events. Long-lived, so it
	// stays outside the request timeout.
	router.Get("/ws/events", r.handlers.Streaming.HandleWebSocket)

	// API v1 routes (authenticated)
	router.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(60 * time.Second))
		api.Use(apimiddleware.APIKeyAuth(r.config.App.APIKey))

		if r.config.RateLimit.Enabled && r.limiter != nil {
			api.Use(apimiddleware.RateLimiter(r.limiter, r.config.RateLimit, r.logger))
		}

		// On-demand scoring
		api.Route("/analyze", func(analyze chi.Router) {
			analyze.Post("/profile", r.handlers.Analysis.AnalyzeProfile)
			analyze.Post("/post", r.handlers.Analysis.AnalyzePost)
			analyze.Post("/batch", r.handlers.Analysis.AnalyzeBatch)
		})

		// Monitor runs
		api.Route("/scans", func(scans chi.Router) {
			scans.Post("/", r.handlers.Scans.Start)
			scans.Get("/status", r.handlers.Scans.Status)
		})

		// Persisted profiles
		api.Route("/profiles", func(profiles chi.Router) {
			profiles.Get("/", r.handlers.Profiles.List)
			profiles.Get("/{id}", r.handlers.Profiles.Get)
		})

		// Enforcement cases
		api.Route("/cases", func(cases chi.Router) {
			cases.Get("/", r.handlers.Cases.List)
			cases.Post("/check-deadlines", r.handlers.Cases.CheckDeadlines)
			cases.Get("/{id}", r.handlers.Cases.Get)
			cases.Post("/{id}/authorization-request", r.handlers.Cases.RequestAuthorization)
			cases.Post("/{id}/response", r.handlers.Cases.MarkResponded)
			cases.Post("/{id}/close", r.handlers.Cases.Close)
		})

		api.Get("/streaming/stats", r.handlers.Streaming.GetStats)
	})

	return router
}

func (r *Router) metricsPath() string {
	if r.config.Metrics.Path == "" {
		return "/metrics"
	}
	return r.config.Metrics.Path
}
