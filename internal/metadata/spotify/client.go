package spotify

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
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/mediashelf/mediashelf/internal/config"
)

var (
	ErrCredentialsMissing = errors.New("Spotify client credentials are not configured")
	ErrNotFound           = errors.New("not found on Spotify")
	ErrAPIError           = errors.New("Spotify API error")
	ErrRateLimited        = errors.New("Spotify API rate limited")
)

// Client is a Spotify Web API client authenticated with the client
// credentials flow. Tokens are fetched lazily and refreshed by oauth2.
type Client struct {
	httpClient *http.Client
	config     config.SpotifyConfig
	logger     zerolog.Logger
}

// NewClient creates a new Spotify client.
func NewClient(cfg config.SpotifyConfig, logger zerolog.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: timeout})
	httpClient := cc.Client(tokenCtx)
	httpClient.Timeout = timeout

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		logger:     logger.With().Str("component", "spotify").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "spotify"
}

// IsConfigured returns true if both client id and secret are set.
func (c *Client) IsConfigured() bool {
	return c.config.ClientID != "" && c.config.ClientSecret != ""
}

// SearchTracks searches tracks with field filters. The artist filter is
// omitted when the artist is unknown.
func (c *Client) SearchTracks(ctx context.Context, title, artist string, limit int) ([]NormalizedTrack, error) {
	if !c.IsConfigured() {
		return nil, ErrCredentialsMissing
	}

	q := "track:" + strings.TrimSpace(title)
	if a := strings.TrimSpace(artist); a != "" {
		q += " artist:" + a
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("type", "track")
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if c.config.Market != "" {
		params.Set("market", c.config.Market)
	}

	var response SearchResponse
	if err := c.doRequest(ctx, "/search", params, &response); err != nil {
		return nil, err
	}

	results := make([]NormalizedTrack, 0, len(response.Tracks.Items))
	for _, t := range response.Tracks.Items {
		results = append(results, toTrack(t))
	}

	c.logger.Debug().
		Str("query", q).
		Int("results", len(results)).
		Msg("Track search completed")

	return results, nil
}

// GetArtist fetches an artist's genres and image.
func (c *Client) GetArtist(ctx context.Context, id string) (*NormalizedArtist, error) {
	if !c.IsConfigured() {
		return nil, ErrCredentialsMissing
	}
	if id == "" {
		return nil, ErrNotFound
	}

	var artist Artist
	if err := c.doRequest(ctx, "/artists/"+url.PathEscape(id), nil, &artist); err != nil {
		return nil, err
	}

	result := &NormalizedArtist{ID: artist.ID, Name: artist.Name, Genres: artist.Genres}
	if len(artist.Images) > 0 {
		result.ImageURL = artist.Images[0].URL
	}
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, path string, params url.Values, result interface{}) error {
	endpoint := c.config.BaseURL + path
	reqURL := endpoint
	if len(params) > 0 {
		reqURL = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", endpoint).Msg("HTTP request failed")
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error.Message != "" {
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("message", errResp.Error.Message).
				Msg("Spotify API error")
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusTooManyRequests:
			return ErrRateLimited
		default:
			return fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func toTrack(t Track) NormalizedTrack {
	n := NormalizedTrack{
		ID:        t.ID,
		Title:     t.Name,
		Album:     t.Album.Name,
		Artists:   []string{},
		ArtistIDs: []string{},
	}
	for _, a := range t.Artists {
		n.Artists = append(n.Artists, a.Name)
		n.ArtistIDs = append(n.ArtistIDs, a.ID)
	}
	if len(t.Album.Images) > 0 {
		n.ImageURL = t.Album.Images[0].URL
	}
	if len(t.Album.ReleaseDate) >= 4 {
		if y, err := strconv.Atoi(t.Album.ReleaseDate[:4]); err == nil {
			n.Year = y
		}
	}
	return n
}
