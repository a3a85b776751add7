package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mediashelf/mediashelf/internal/config"
)

var (
	ErrAPIKeyMissing = errors.New("LLM API key is not configured")
	ErrAPIError      = errors.New("LLM API error")
	ErrEmptyContent  = errors.New("LLM returned empty content")
)

const maxErrorBody = 512

// Client wraps an OpenAI-compatible chat completion endpoint. Each call is a
// single request; callers decide whether a failure is worth another try.
type Client struct {
	httpClient *http.Client
	config     config.LLMConfig
	logger     zerolog.Logger
}

// NewClient creates a new chat completion client.
func NewClient(cfg config.LLMConfig, logger zerolog.Logger) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	return &Client{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		config: cfg,
		logger: logger.With().Str("component", "llm").Logger(),
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return "llm"
}

// IsConfigured returns true if an API key and endpoint are set.
func (c *Client) IsConfigured() bool {
	return c.config.APIKey != "" && c.config.BaseURL != ""
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		// Legacy completion-style responses.
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends prompt as a single user message and returns the trimmed
// text of the first non-empty choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrAPIKeyMissing
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("llm generate: prompt required")
	}

	payload := chatCompletionRequest{
		Model:       c.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0,
		MaxTokens:   100,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llm generate: encode body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("llm generate: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Msg("HTTP request failed")
		return "", fmt.Errorf("llm generate: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm generate: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return "", fmt.Errorf("%w: http %d: %s", ErrAPIError, resp.StatusCode, snippet)
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("llm generate: decode body: %w", err)
	}
	if completion.Error != nil && completion.Error.Message != "" {
		return "", fmt.Errorf("%w: %s", ErrAPIError, completion.Error.Message)
	}

	for _, choice := range completion.Choices {
		content := strings.TrimSpace(choice.Message.Content)
		if content == "" {
			content = strings.TrimSpace(choice.Text)
		}
		if content != "" {
			c.logger.Debug().
				Str("model", c.config.Model).
				Dur("duration", time.Since(start)).
				Msg("Completion received")
			return content, nil
		}
	}
	return "", ErrEmptyContent
}
