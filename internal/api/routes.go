package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/mediashelf/mediashelf/internal/api/handlers"
	apimw "github.com/mediashelf/mediashelf/internal/api/middleware"
	"github.com/mediashelf/mediashelf/internal/metadata"
)

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(apimw.SecurityHeaders())

	// Fingerprints travel base64 in the body; 2MB is ample.
	s.echo.Use(middleware.BodyLimit("2M"))

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Str("requestId", v.RequestID).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	if dir := s.deps.Config.Artwork.Dir; dir != "" {
		s.echo.Static("/artwork", dir)
	}

	api := s.echo.Group("/api/v1")

	metadataHandlers := metadata.NewHandlers(s.deps.Store, s.deps.Dispatcher, s.logger)
	metadataHandlers.RegisterRoutes(api, s.limiter.Middleware())

	system := api.Group("/system")
	system.GET("/status", s.getStatus)
	system.GET("/outcomes", s.getOutcomes)

	if s.deps.Scheduler != nil {
		handlers.NewSchedulerHandler(s.deps.Scheduler).RegisterRoutes(api.Group("/scheduler"))
	}
}
