package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/config"
)

var (
	ErrAPIKeyMissing = errors.New("TMDB API key is not configured")
	ErrNotFound      = errors.New("TMDB resource not found")
	ErrAPIError      = errors.New("TMDB API error")
	ErrRateLimited   = errors.New("TMDB API rate limited")
)

// Client is a TMDB API client.
type Client struct {
	httpClient *http.Client
	config     config.TMDBConfig
	logger     zerolog.Logger
}

// NewClient creates a new TMDB client.
func NewClient(cfg config.TMDBConfig, logger zerolog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "tmdb").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "tmdb"
}

// IsConfigured returns true if the API key is set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != ""
}

// SearchMovies searches for movies by query with optional year filter.
// Results are ordered by vote count so well-known titles come first among
// equally relevant matches.
func (c *Client) SearchMovies(ctx context.Context, query string, year int) ([]NormalizedMovieResult, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	params := c.params()
	params.Set("query", query)
	params.Set("include_adult", "false")
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var response SearchMoviesResponse
	if err := c.doRequest(ctx, "/search/movie", params, &response); err != nil {
		return nil, err
	}

	movies := response.Results
	sort.SliceStable(movies, func(i, j int) bool {
		return movies[i].VoteCount > movies[j].VoteCount
	})

	results := make([]NormalizedMovieResult, len(movies))
	for i, m := range movies {
		results[i] = c.toMovieResult(m)
	}

	c.logger.Debug().
		Str("query", query).
		Int("year", year).
		Int("results", len(results)).
		Msg("Movie search completed")

	return results, nil
}

// GetMovie gets full movie details, including genre names.
func (c *Client) GetMovie(ctx context.Context, id int) (*NormalizedMovieResult, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	var details MovieDetails
	if err := c.doRequest(ctx, fmt.Sprintf("/movie/%d", id), c.params(), &details); err != nil {
		return nil, err
	}

	result := NormalizedMovieResult{
		ID:       details.ID,
		Title:    details.Title,
		Year:     parseYear(details.ReleaseDate),
		Overview: details.Overview,
		ImdbID:   details.ImdbID,
		Genres:   genreNames(details.Genres),
	}
	if details.PosterPath != nil {
		result.PosterURL = c.GetImageURL(*details.PosterPath, "w500")
	}
	if details.BackdropPath != nil {
		result.BackdropURL = c.GetImageURL(*details.BackdropPath, "w780")
	}
	return &result, nil
}

// SearchSeries searches for TV series by query.
func (c *Client) SearchSeries(ctx context.Context, query string) ([]NormalizedSeriesResult, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	params := c.params()
	params.Set("query", query)
	params.Set("include_adult", "false")

	var response SearchTVResponse
	if err := c.doRequest(ctx, "/search/tv", params, &response); err != nil {
		return nil, err
	}

	shows := response.Results
	sort.SliceStable(shows, func(i, j int) bool {
		return shows[i].VoteCount > shows[j].VoteCount
	})

	results := make([]NormalizedSeriesResult, len(shows))
	for i, tv := range shows {
		results[i] = c.toSeriesResult(tv)
	}

	c.logger.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("Series search completed")

	return results, nil
}

// GetSeries gets full series details, including genre names.
func (c *Client) GetSeries(ctx context.Context, id int) (*NormalizedSeriesResult, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	var details TVDetails
	if err := c.doRequest(ctx, fmt.Sprintf("/tv/%d", id), c.params(), &details); err != nil {
		return nil, err
	}

	result := NormalizedSeriesResult{
		ID:       details.ID,
		Title:    details.Name,
		Year:     parseYear(details.FirstAirDate),
		Overview: details.Overview,
		Genres:   genreNames(details.Genres),
	}
	if details.PosterPath != nil {
		result.PosterURL = c.GetImageURL(*details.PosterPath, "w500")
	}
	if details.BackdropPath != nil {
		result.BackdropURL = c.GetImageURL(*details.BackdropPath, "w780")
	}
	return &result, nil
}

// GetEpisode gets a single episode's title, synopsis and still image.
func (c *Client) GetEpisode(ctx context.Context, seriesID, season, episode int) (*NormalizedEpisodeResult, error) {
	if !c.IsConfigured() {
		return nil, ErrAPIKeyMissing
	}

	endpoint := fmt.Sprintf("/tv/%d/season/%d/episode/%d", seriesID, season, episode)
	var details EpisodeDetails
	if err := c.doRequest(ctx, endpoint, c.params(), &details); err != nil {
		return nil, err
	}

	result := NormalizedEpisodeResult{
		SeasonNumber:  details.SeasonNumber,
		EpisodeNumber: details.EpisodeNumber,
		Title:         details.Name,
		Overview:      details.Overview,
		AirDate:       details.AirDate,
	}
	if details.StillPath != nil {
		result.StillURL = c.GetImageURL(*details.StillPath, "w300")
	}
	return &result, nil
}

// GetImageURL returns a full image URL for a given path and size.
// Size options: "w92", "w154", "w185", "w300", "w342", "w500", "w780", "original"
func (c *Client) GetImageURL(path string, size string) string {
	if path == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s%s", c.config.ImageBaseURL, size, path)
}

func (c *Client) params() url.Values {
	params := url.Values{}
	params.Set("api_key", c.config.APIKey)
	return params
}

// doRequest performs an HTTP GET request and decodes the JSON response.
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
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil {
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("message", errResp.StatusMessage).
				Msg("TMDB API error")
		}

		switch resp.StatusCode {
		case http.StatusNotFound:
			return ErrNotFound
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: invalid API key", ErrAPIError)
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

func (c *Client) toMovieResult(movie MovieResult) NormalizedMovieResult {
	result := NormalizedMovieResult{
		ID:       movie.ID,
		Title:    movie.Title,
		Year:     parseYear(movie.ReleaseDate),
		Overview: movie.Overview,
	}
	if movie.PosterPath != nil {
		result.PosterURL = c.GetImageURL(*movie.PosterPath, "w500")
	}
	if movie.BackdropPath != nil {
		result.BackdropURL = c.GetImageURL(*movie.BackdropPath, "w780")
	}
	return result
}

func (c *Client) toSeriesResult(tv TVResult) NormalizedSeriesResult {
	result := NormalizedSeriesResult{
		ID:       tv.ID,
		Title:    tv.Name,
		Year:     parseYear(tv.FirstAirDate),
		Overview: tv.Overview,
	}
	if tv.PosterPath != nil {
		result.PosterURL = c.GetImageURL(*tv.PosterPath, "w500")
	}
	if tv.BackdropPath != nil {
		result.BackdropURL = c.GetImageURL(*tv.BackdropPath, "w780")
	}
	return result
}

func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	year, _ := strconv.Atoi(date[:4])
	return year
}

func genreNames(genres []Genre) []string {
	names := make([]string, len(genres))
	for i, g := range genres {
		names[i] = g.Name
	}
	return names
}
