package omdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/config"
)

var (
	ErrAPIKeyMissing = errors.New("OMDb API key is not configured")
	ErrNotFound      = errors.New("not found on OMDb")
	ErrAPIError      = errors.New("OMDb API error")
)

// Client is an OMDb API client.
type Client struct {
	httpClient *http.Client
	config     config.OMDBConfig
	logger     zerolog.Logger
}

// NewClient creates a new OMDb client.
func NewClient(cfg config.OMDBConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "omdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "omdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// GetByTitle looks up the single best match for a free-text title.
// OMDb answers "Movie not found!" with HTTP 200, which maps to ErrNotFound.
func (c *Client) GetByTitle(ctx context.Context, title string) (*NormalizedTitle, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}
	if strings.TrimSpace(title) == "" {
		return nil, ErrNotFound
	}

	params := url.Values{}
	params.Set("apikey", c.config.APIKey)
	params.Set("t", title)

	reqURL := fmt.Sprintf("%s?%s", c.config.BaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("title", title).Msg("HTTP request failed")
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	var omdbResp Response
	if err := json.NewDecoder(resp.Body).Decode(&omdbResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if omdbResp.Response == "False" {
		if strings.Contains(strings.ToLower(omdbResp.Error), "not found") {
			return nil, ErrNotFound
		}
		c.logger.Warn().Str("error", omdbResp.Error).Str("title", title).Msg("OMDb API returned error")
		return nil, fmt.Errorf("%w: %s", ErrAPIError, omdbResp.Error)
	}

	return normalizeTitle(omdbResp), nil
}

func normalizeTitle(resp Response) *NormalizedTitle {
	result := &NormalizedTitle{
		ImdbID: resp.ImdbID,
		Title:  resp.Title,
		Type:   resp.Type,
		Plot:   notAvailable(resp.Plot),
	}

	// Series years look like "2008–2013"; the first four digits are the start.
	if len(resp.Year) >= 4 {
		if y, err := strconv.Atoi(resp.Year[:4]); err == nil {
			result.Year = y
		}
	}

	result.PosterURL = notAvailable(resp.Poster)

	if g := notAvailable(resp.Genre); g != "" {
		for _, part := range strings.Split(g, ",") {
			if part = strings.TrimSpace(part); part != "" {
				result.Genres = append(result.Genres, part)
			}
		}
	}

	return result
}

func notAvailable(v string) string {
	if v == "N/A" {
		return ""
	}
	return v
}
