package acoustid

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
	ErrClientKeyMissing = errors.New("AcoustID client key is not configured")
	ErrInvalidInput     = errors.New("fingerprint and duration are required")
	ErrAPIError         = errors.New("AcoustID API error")
)

// DefaultMinScore is the lowest fingerprint confidence accepted.
const DefaultMinScore = 0.8

// Client looks up pre-computed Chromaprint fingerprints on AcoustID.
type Client struct {
	httpClient *http.Client
	config     config.AcoustIDConfig
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// NewClient creates a new AcoustID client. The service allows three
// requests per second per client key.
func NewClient(cfg config.AcoustIDConfig, logger zerolog.Logger) *Client {
	perSecond := cfg.RateLimit
	if perSecond <= 0 {
		perSecond = 3
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
		logger:  logger.With().Str("component", "acoustid").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "acoustid"
}

// IsConfigured returns true if the client key is set.
func (c *Client) IsConfigured() bool {
	return c.config.ClientKey != ""
}

// Lookup returns the highest scoring match at or above the configured
// minimum score that has a titled recording, or nil when there is none.
func (c *Client) Lookup(ctx context.Context, fingerprint []byte, durationSeconds int) (*Match, error) {
	if !c.IsConfigured() {
		return nil, ErrClientKeyMissing
	}
	if len(fingerprint) == 0 || durationSeconds <= 0 {
		return nil, ErrInvalidInput
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	form := url.Values{}
	form.Set("client", c.config.ClientKey)
	form.Set("duration", strconv.Itoa(durationSeconds))
	form.Set("fingerprint", string(fingerprint))
	form.Set("meta", "recordings releasegroups")
	form.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("HTTP request failed")
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	var lookup LookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d", ErrAPIError, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if lookup.Status != "ok" {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if lookup.Error != nil {
			msg = lookup.Error.Message
		}
		c.logger.Warn().Str("error", msg).Msg("AcoustID returned error")
		return nil, fmt.Errorf("%w: %s", ErrAPIError, msg)
	}

	match := c.bestMatch(lookup.Results)
	c.logger.Debug().
		Int("results", len(lookup.Results)).
		Bool("matched", match != nil).
		Msg("Fingerprint lookup completed")
	return match, nil
}

func (c *Client) bestMatch(results []Result) *Match {
	var best *Match
	for _, r := range results {
		if r.Score < c.config.MinScore || (best != nil && r.Score <= best.Score) {
			continue
		}
		for _, rec := range r.Recordings {
			if strings.TrimSpace(rec.Title) == "" {
				continue
			}
			best = toMatch(r, rec)
			break
		}
	}
	return best
}

func toMatch(r Result, rec Recording) *Match {
	m := &Match{
		AcoustID:    r.ID,
		RecordingID: rec.ID,
		Title:       rec.Title,
		Score:       r.Score,
		Artists:     []string{},
		Albums:      []string{},
	}
	for _, a := range rec.Artists {
		m.Artists = append(m.Artists, a.Name)
	}
	for _, rg := range rec.ReleaseGroups {
		m.Albums = append(m.Albums, rg.Title)
		m.ReleaseGroups = append(m.ReleaseGroups, rg.ID)
	}
	return m
}
