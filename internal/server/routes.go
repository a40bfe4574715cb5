package server

import (
	"github.com/nulzo/prism-relay/internal/server/middleware"
	v1 "github.com/nulzo/prism-relay/internal/server/v1"
)

func (s *Server) SetupRoutes() {
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.ErrorHandler(s.logger))

	s.router.NoMethod(v1.MethodNotAllowed)

	healthHandler := v1.NewHealthHandler(s.deps.Version)
	s.router.GET("/health", healthHandler.Health)

	limited := s.router.Group("/")
	if s.deps.Limiter != nil {
		limited.Use(middleware.RateLimit(s.deps.Limiter, s.logger))
	}

	// relay contract, one route per deployment path
	relayHandler := v1.NewRelayHandler(s.deps.Completer, s.deps.Catalog, s.deps.Recorder, s.logger)
	for _, endpoint := range s.config.Relay.Endpoints {
		limited.POST(endpoint.Path, relayHandler.Generate)
	}

	api := limited.Group("/v1")
	{
		generateHandler := v1.NewGenerateHandler(s.deps.Engine)
		api.POST("/generate", generateHandler.Generate)

		configHandler := v1.NewConfigHandler(s.deps.Catalog, s.deps.Policy)
		api.GET("/providers", configHandler.Get)

		if s.deps.Analytics != nil {
			analyticsHandler := v1.NewAnalyticsHandler(s.deps.Analytics)
			api.GET("/analytics/usage", analyticsHandler.GetUsage)
			api.GET("/analytics/requests", analyticsHandler.GetRecent)
		}
	}
}
