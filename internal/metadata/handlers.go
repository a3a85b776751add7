package metadata

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Submitter queues a request for background resolution.
type Submitter interface {
	Submit(req ResolveRequest) error
}

// HandlerStore is the read side used by the HTTP handlers.
type HandlerStore interface {
	GetMetadata(ctx context.Context, fileID string) (*PersistedMetadata, error)
	LatestRequest(ctx context.Context, fileID string) (*ResolveRequest, error)
}

// Handlers exposes resolution triggers and resolved metadata over HTTP.
type Handlers struct {
	store      HandlerStore
	dispatcher Submitter
	logger     zerolog.Logger
}

// NewHandlers creates new metadata handlers.
func NewHandlers(store HandlerStore, dispatcher Submitter, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "metadata-api").Logger(),
	}
}

// RegisterRoutes registers the metadata routes. trigger wraps the routes
// that enqueue work.
func (h *Handlers) RegisterRoutes(g *echo.Group, trigger ...echo.MiddlewareFunc) {
	g.POST("/resolve", h.Resolve, trigger...)
	g.GET("/files/:fileId/metadata", h.GetMetadata)
	g.POST("/files/:fileId/resolve", h.Reresolve, trigger...)
}

type queuedResponse struct {
	FileID string `json:"fileId"`
	Status string `json:"status"`
}

// Resolve is the upload-completion hook. It validates the request, queues it
// and returns without waiting for the resolver.
// POST /api/v1/resolve
func (h *Handlers) Resolve(c echo.Context) error {
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return h.submit(c, req)
}

// GetMetadata returns the persisted metadata for a file.
// GET /api/v1/files/:fileId/metadata
func (h *Handlers) GetMetadata(c echo.Context) error {
	fileID := c.Param("fileId")

	m, err := h.store.GetMetadata(c.Request().Context(), fileID)
	if err != nil {
		if errors.Is(err, ErrMetadataNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "metadata not found")
		}
		h.logger.Error().Err(err).Str("fileId", fileID).Msg("Failed to load metadata")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load metadata")
	}

	return c.JSON(http.StatusOK, m)
}

// Reresolve queues a manual re-resolution. The body may carry a corrected
// filename or tags; otherwise the last recorded request for the file is
// replayed. A successful run overwrites existing metadata.
// POST /api/v1/files/:fileId/resolve
func (h *Handlers) Reresolve(c echo.Context) error {
	fileID := c.Param("fileId")

	var override ResolveRequest
	if err := c.Bind(&override); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(override.Filename) != "" && override.Category != "" {
		override.FileID = fileID
		return h.submit(c, override)
	}

	prev, err := h.store.LatestRequest(c.Request().Context(), fileID)
	if err != nil {
		if errors.Is(err, ErrRequestNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no previous request for file; send filename and category")
		}
		h.logger.Error().Err(err).Str("fileId", fileID).Msg("Failed to load previous request")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load previous request")
	}

	req := *prev
	if override.BasicTitle != "" {
		req.BasicTitle = override.BasicTitle
	}
	if override.BasicArtist != "" {
		req.BasicArtist = override.BasicArtist
	}
	if override.BasicYear != nil {
		req.BasicYear = override.BasicYear
	}
	return h.submit(c, req)
}

func (h *Handlers) submit(c echo.Context, req ResolveRequest) error {
	if err := req.Validate(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.dispatcher.Submit(req); err != nil {
		h.logger.Warn().Err(err).Str("fileId", req.FileID).Msg("Failed to queue resolve request")
		return echo.NewHTTPError(http.StatusServiceUnavailable, "resolver is busy, retry later")
	}

	h.logger.Debug().Str("fileId", req.FileID).Str("category", string(req.Category)).Msg("Resolve request queued")
	return c.JSON(http.StatusAccepted, queuedResponse{FileID: req.FileID, Status: "queued"})
}
