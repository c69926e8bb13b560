package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/handlers"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Discovery, deps.Logger)
	backendHandler := handlers.NewBackendHandler(deps.Discovery, deps.Logger)
	metricsHandler := handlers.NewMetricsHandler(deps.Tracker, deps.Logger)
	resourceHandler := handlers.NewResourceHandler(deps.Estimator, deps.Logger)
	routeHandler := handlers.NewRouteHandler(deps.Router, deps.Logger)
	batchHandler := handlers.NewBatchHandler(deps.Executor, deps.Router, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Get("/readyz", healthHandler.HandleReadiness)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/backends", func(r chi.Router) {
			r.Get("/", backendHandler.HandleListBackends)
			r.Get("/models", backendHandler.HandleModelIndex)
		})

		r.Route("/metrics", func(r chi.Router) {
			r.Get("/models", metricsHandler.HandleModelMetrics)
			r.Get("/top", metricsHandler.HandleTopPerformers)
			r.Get("/underperformers", metricsHandler.HandleUnderperformers)
			r.Get("/insights", metricsHandler.HandleInsights)
		})

		r.Get("/resources", resourceHandler.HandleResources)

		r.Post("/route", routeHandler.HandleRoute)
		r.Post("/generate", routeHandler.HandleGenerate)
		r.Post("/batch", batchHandler.HandleBatch)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
