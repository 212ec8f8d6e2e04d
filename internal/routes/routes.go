package routes

import (
	"github.com/BradenHooton/loginsentry/internal/auth"
	"github.com/BradenHooton/loginsentry/internal/handlers"
	"github.com/BradenHooton/loginsentry/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	eventsHandler *handlers.LoginEventsHandler,
	tokenManager *auth.ServiceTokenManager,
) {
	rateLimitConfig := middleware.DefaultIngestRateLimit()

	// All ingest routes require a service token
	router.Group(func(r chi.Router) {
		r.Use(auth.ServiceAuthMiddleware(tokenManager))
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/v1/login-events", eventsHandler.HandleLoginEvent)
	})
}
