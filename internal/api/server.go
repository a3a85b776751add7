package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/api/ratelimit"
	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/enrichment"
	"github.com/mediashelf/mediashelf/internal/logger"
	"github.com/mediashelf/mediashelf/internal/metadata"
	"github.com/mediashelf/mediashelf/internal/scheduler"
)

// Store is the persistence the API reads from.
type Store interface {
	metadata.HandlerStore
	CountAttempts(ctx context.Context) (map[metadata.Outcome]int, error)
}

// Deps are the services the API server exposes.
type Deps struct {
	Config     *config.Config
	Store      Store
	Dispatcher enrichment.Dispatcher
	Outcomes   *logger.RingBuffer[enrichment.OutcomeRecord]
	Scheduler  *scheduler.Scheduler
	// Providers reports which catalogs are configured, keyed by provider id.
	Providers map[string]bool
}

// Server handles HTTP requests for the mediashelf API.
type Server struct {
	echo        *echo.Echo
	deps        Deps
	limiter     *ratelimit.IPLimiter
	stopCleanup chan struct{}
	startedAt   time.Time
	logger      zerolog.Logger
}

// NewServer creates a new API server instance.
func NewServer(deps Deps, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		deps:        deps,
		limiter:     ratelimit.NewIPLimiter(deps.Config.Server.TriggerRatePerMinute),
		stopCleanup: make(chan struct{}),
		startedAt:   time.Now(),
		logger:      logger.With().Str("component", "api").Logger(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Start begins listening for HTTP requests. It blocks until the server stops.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")
	s.limiter.StartCleanup(time.Minute, s.stopCleanup)
	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	close(s.stopCleanup)
	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
