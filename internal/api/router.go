// Package api provides the HTTP API for the air quality tracker.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aqtracker/aqtracker/internal/advisory"
	"github.com/aqtracker/aqtracker/internal/airquality"
	"github.com/aqtracker/aqtracker/internal/api/handler"
	"github.com/aqtracker/aqtracker/internal/api/middleware"
	"github.com/aqtracker/aqtracker/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	Metrics     *middleware.Metrics

	AirQualityService *airquality.Service
	AdvisoryService   *advisory.Service
	Registry          *resilience.Registry

	// Store is pinged by the readiness check.
	Store     handler.Pinger
	StoreName string

	// RequireTLS rejects plain-HTTP requests that did not arrive through a
	// TLS-terminating proxy.
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Request id first so every later layer can log and echo it.
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:    cfg.Version,
		BuildTime:  cfg.BuildTime,
		Store:      cfg.Store,
		StoreName:  cfg.StoreName,
		Registry:   cfg.Registry,
		AirQuality: cfg.AirQualityService,
	})
	airQualityHandler := handler.NewAirQualityHandler(cfg.AirQualityService)
	advisoryHandler := handler.NewAdvisoryHandler(cfg.AirQualityService, cfg.AdvisoryService)

	refreshRateLimit := middleware.RateLimitByIP(middleware.RefreshRateLimit)
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit)
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Read endpoints - standard rate limiting
		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/global", airQualityHandler.GlobalStats)
			r.Get("/cities", airQualityHandler.ListCities)
			r.Get("/cities/{name}", airQualityHandler.GetCity)
			r.Get("/countries", airQualityHandler.ListCountries)
			r.Get("/countries/{name}", airQualityHandler.GetCountry)
			r.Get("/rankings/polluted", airQualityHandler.MostPolluted)
			r.Get("/rankings/cleanest", airQualityHandler.Cleanest)
			r.Get("/filter/good", airQualityHandler.GoodAir)
			r.Get("/filter/unhealthy", airQualityHandler.UnhealthyAir)
			r.Get("/estimate", airQualityHandler.Estimate)
		})

		// Advisory endpoints may call a language model
		r.Group(func(r chi.Router) {
			r.Use(expensiveRateLimit)
			r.Get("/cities/{name}/recommendations", advisoryHandler.Recommendations)
			r.Get("/cities/{name}/analysis", advisoryHandler.Analysis)
			r.Get("/advisory", advisoryHandler.HealthAdvisory)
		})

		// Manual refresh - strict rate limiting
		r.With(refreshRateLimit, middleware.RequireJSON).Post("/refresh", airQualityHandler.Refresh)
	})

	return r
}
