package musicbrainz

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
	"golang.org/x/time/rate"

	"github.com/mediashelf/mediashelf/internal/config"
)

var (
	ErrDisabled         = errors.New("MusicBrainz lookups are disabled")
	ErrUserAgentMissing = errors.New("MusicBrainz requires a User-Agent")
	ErrNotFound         = errors.New("not found on MusicBrainz")
	ErrAPIError         = errors.New("MusicBrainz API error")
	ErrRateLimited      = errors.New("MusicBrainz API rate limited")
)

// Client queries the MusicBrainz search API and the Cover Art Archive.
// Both services share one limiter; MusicBrainz allows one request per second.
type Client struct {
	httpClient *http.Client
	config     config.MusicBrainzConfig
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient creates a new MusicBrainz client.
func NewClient(cfg config.MusicBrainzConfig, logger zerolog.Logger) *Client {
	perSecond := cfg.RateLimit
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  logger.With().Str("component", "musicbrainz").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "musicbrainz"
}

// IsConfigured returns true if lookups are enabled and a User-Agent is set.
func (c *Client) IsConfigured() bool {
	return c.config.Enabled && c.config.UserAgent != ""
}

// SearchRecordings searches recordings by title and, when known, artist.
func (c *Client) SearchRecordings(ctx context.Context, title, artist string, limit int) ([]NormalizedRecording, error) {
	if !c.config.Enabled {
		return nil, ErrDisabled
	}
	if c.config.UserAgent == "" {
		return nil, ErrUserAgentMissing
	}

	query := BuildQuery(title, artist)
	if query == "" {
		return nil, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("fmt", "json")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response SearchResponse
	if err := c.doRequest(ctx, c.config.BaseURL+"/recording", params, &response); err != nil {
		return nil, err
	}

	results := make([]NormalizedRecording, 0, len(response.Recordings))
	for _, r := range response.Recordings {
		results = append(results, normalizeRecording(r))
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Recording search completed")

	return results, nil
}

// GetFrontCover returns the front cover URL for a release, preferring the
// 500px thumbnail. A release without art yields ErrNotFound.
func (c *Client) GetFrontCover(ctx context.Context, releaseID string) (string, error) {
	if releaseID == "" {
		return "", ErrNotFound
	}

	var art CoverArtResponse
	endpoint := fmt.Sprintf("%s/release/%s", c.config.CoverArtBaseURL, releaseID)
	if err := c.doRequest(ctx, endpoint, nil, &art); err != nil {
		return "", err
	}

	for _, img := range art.Images {
		if !img.Front {
			continue
		}
		if img.Thumbnails.Large != "" {
			return img.Thumbnails.Large, nil
		}
		return img.Image, nil
	}
	return "", ErrNotFound
}

// BuildQuery constructs a Lucene recording query.
func BuildQuery(title, artist string) string {
	var parts []string
	if t := strings.TrimSpace(title); t != "" {
		parts = append(parts, fmt.Sprintf("recording:\"%s\"", escapeQuery(t)))
	}
	if a := strings.TrimSpace(artist); a != "" {
		parts = append(parts, fmt.Sprintf("artist:\"%s\"", escapeQuery(a)))
	}
	return strings.Join(parts, " AND ")
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func normalizeRecording(r Recording) NormalizedRecording {
	n := NormalizedRecording{
		ID:      r.ID,
		Title:   r.Title,
		Score:   r.Score,
		Artists: []string{},
		Albums:  []string{},
	}

	for _, ac := range r.ArtistCredit {
		name := ac.Name
		if name == "" {
			name = ac.Artist.Name
		}
		if name != "" {
			n.Artists = append(n.Artists, name)
		}
	}

	seen := map[string]bool{}
	for _, rel := range r.Releases {
		title := rel.ReleaseGroup.Title
		if title == "" {
			title = rel.Title
		}
		if title != "" && !seen[title] {
			seen[title] = true
			n.Albums = append(n.Albums, title)
		}
		if n.ReleaseID == "" && rel.Status == "Official" {
			n.ReleaseID = rel.ID
		}
	}
	if n.ReleaseID == "" && len(r.Releases) > 0 {
		n.ReleaseID = r.Releases[0].ID
	}

	date := r.FirstReleaseDate
	if date == "" && len(r.Releases) > 0 {
		date = r.Releases[0].Date
	}
	if len(date) >= 4 {
		if y, err := strconv.Atoi(date[:4]); err == nil {
			n.Year = y
		}
	}

	for _, t := range r.Tags {
		n.Genres = append(n.Genres, t.Name)
	}
	return n
}
