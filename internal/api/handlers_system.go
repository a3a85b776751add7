package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mediashelf/mediashelf/internal/config"
	"github.com/mediashelf/mediashelf/internal/enrichment"
	"github.com/mediashelf/mediashelf/internal/metadata"
	"github.com/mediashelf/mediashelf/internal/scheduler"
)

const (
	defaultOutcomeLimit = 50
	maxOutcomeLimit     = 500
)

// StatusResponse is returned by GET /api/v1/system/status.
type StatusResponse struct {
	Version    string                   `json:"version"`
	StartTime  time.Time                `json:"startTime"`
	Uptime     string                   `json:"uptime"`
	DevMode    bool                     `json:"developerMode"`
	Providers  map[string]bool          `json:"providers"`
	Dispatcher enrichment.Stats         `json:"dispatcher"`
	Attempts   map[metadata.Outcome]int `json:"attempts"`
	Tasks      []scheduler.TaskInfo     `json:"tasks,omitempty"`
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// getStatus reports configured providers, dispatcher load and outcome totals.
// GET /api/v1/system/status
func (s *Server) getStatus(c echo.Context) error {
	attempts, err := s.deps.Store.CountAttempts(c.Request().Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to count attempts")
		attempts = map[metadata.Outcome]int{}
	}

	resp := StatusResponse{
		Version:   config.Version,
		StartTime: s.startedAt,
		Uptime:    time.Since(s.startedAt).Truncate(time.Second).String(),
		DevMode:   s.deps.Config.Metadata.DevMode,
		Providers: s.deps.Providers,
		Attempts:  attempts,
	}
	if resp.Providers == nil {
		resp.Providers = map[string]bool{}
	}
	if s.deps.Dispatcher != nil {
		resp.Dispatcher = s.deps.Dispatcher.Stats()
	}
	if s.deps.Scheduler != nil {
		resp.Tasks = s.deps.Scheduler.ListTasks()
	}
	return c.JSON(http.StatusOK, resp)
}

// getOutcomes returns the most recent resolver outcomes, newest first.
// GET /api/v1/system/outcomes?limit=50
func (s *Server) getOutcomes(c echo.Context) error {
	limit := defaultOutcomeLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxOutcomeLimit)
	}

	if s.deps.Outcomes == nil {
		return c.JSON(http.StatusOK, []enrichment.OutcomeRecord{})
	}
	return c.JSON(http.StatusOK, s.deps.Outcomes.Recent(limit))
}
