// ABOUTME: HTTP client for OpenAI-style chat completion endpoints.
// ABOUTME: Supports the public API and custom proxy deployments.

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Transport modes.
const (
	ModeOpenAI = "openai"
	ModeCustom = "custom"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-3.5-turbo"
)

// Config selects and configures the completion endpoint.
type Config struct {
	Mode    string // "openai" (default) or "custom"
	APIKey  string // bearer key for openai mode
	BaseURL string // openai mode; defaults to the public API
	Model   string // defaults to gpt-3.5-turbo

	// Custom proxy deployments.
	CustomURL      string // base URL including trailing slash
	DeploymentName string
	APIVersion     string
	ClientID       string
	ClientSecret   string
}

// Client implements Transport over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates the config and returns a Client. The required
// credential depends on the mode: an API key for openai, a client secret for
// custom. Missing credentials return ErrMissingCredential so callers can
// surface a configuration error instead of failing on first use.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeOpenAI
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	switch cfg.Mode {
	case ModeOpenAI:
		if cfg.APIKey == "" {
			return nil, ErrMissingCredential
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultBaseURL
		}
	case ModeCustom:
		if cfg.ClientSecret == "" {
			return nil, ErrMissingCredential
		}
		if cfg.CustomURL == "" {
			return nil, fmt.Errorf("custom mode requires a custom_url")
		}
	default:
		return nil, fmt.Errorf("unknown transport mode %q", cfg.Mode)
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			// Per-call deadlines come from ctx; dispatch owns the timeout.
			Timeout: 0,
		},
		logger: logger.With("component", "transport", "mode", cfg.Mode),
	}, nil
}

// completionRequest is the wire request body.
type completionRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`
}

// completionResponse is the wire response body.
type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// apiErrorBody is the error shape OpenAI-style services return.
type apiErrorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
	// Some proxies flatten the message to the top level.
	Message string `json:"message"`
}

// CreateChatCompletion sends the messages and returns the first choice.
func (c *Client) CreateChatCompletion(ctx context.Context, messages []ChatMessage) (*Completion, error) {
	body := completionRequest{Messages: messages}
	var url string
	switch c.cfg.Mode {
	case ModeCustom:
		url = fmt.Sprintf("%s%s/chat/completions?api-version=%s",
			c.cfg.CustomURL, c.cfg.DeploymentName, c.cfg.APIVersion)
	default:
		url = strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"
		body.Model = c.cfg.Model
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	switch c.cfg.Mode {
	case ModeCustom:
		req.Header.Set("client_id", c.cfg.ClientID)
		req.Header.Set("client_secret", c.cfg.ClientSecret)
	default:
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	start := time.Now()
	c.logger.Debug("sending completion request", "messages", len(messages))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// ctx cancellation and deadline expiry surface here; pass them
		// through so dispatch can classify timeouts.
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(data),
		}
	}

	var parsed completionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "malformed completion response body",
			Err:        err,
		}
	}
	if len(parsed.Choices) == 0 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    "completion response contained no choices",
		}
	}

	c.logger.Debug("completion received",
		"duration", time.Since(start),
		"prompt_tokens", parsed.Usage.PromptTokens,
		"completion_tokens", parsed.Usage.CompletionTokens)

	return &Completion{
		Reply: parsed.Choices[0].Message.Content,
		Model: parsed.Model,
		Usage: parsed.Usage,
	}, nil
}

// extractErrorMessage digs the most specific message out of an error body,
// falling back to the raw body text.
func extractErrorMessage(data []byte) string {
	var body apiErrorBody
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error.Message != "" {
			return body.Error.Message
		}
		if body.Message != "" {
			return body.Message
		}
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 200 {
		text = text[:200]
	}
	return text
}
