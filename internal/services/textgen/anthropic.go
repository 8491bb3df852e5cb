package textgen

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

	"postgate/internal/services"
	"postgate/internal/services/retry"
)

const (
	providerAnthropic  = "anthropic"
	anthropicVersion   = "2023-06-01"
	defaultHTTPTimeout = 60 * time.Second
	defaultMaxTokens   = 1000
)

// Config captures the runtime settings required to talk to the Messages API.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	TimeoutSeconds int
}

// AnthropicClient implements services.TextGenerator.
type AnthropicClient struct {
	cfg        Config
	httpClient *http.Client
	policy     retry.Policy
}

// Option customizes the client.
type Option func(*AnthropicClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *AnthropicClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *AnthropicClient) {
		c.policy = policy
	}
}

// NewAnthropic constructs a client. A missing API key is a ConfigurationError.
func NewAnthropic(cfg Config, opts ...Option) (*AnthropicClient, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, &services.ConfigurationError{Setting: "text.api_key", Reason: "is required (ANTHROPIC_API_KEY)"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com/v1/messages"
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &AnthropicClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends prompt as a single user message and returns the text reply.
func (c *AnthropicClient) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("anthropic generate: prompt required")
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	payload := messagesRequest{
		Model:     c.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	}

	var text string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := c.sendOnce(ctx, payload)
		if err != nil {
			return err
		}
		text = extractText(resp)
		if text == "" {
			return retry.Temporary(fmt.Errorf("empty content (stop_reason=%q)", resp.StopReason))
		}
		return nil
	})
	if err != nil {
		return "", &services.ProviderError{
			Provider:   providerAnthropic,
			Op:         "messages",
			StatusCode: retry.StatusCode(err),
			Err:        err,
		}
	}
	return text, nil
}

func (c *AnthropicClient) sendOnce(ctx context.Context, payload messagesRequest) (messagesResponse, error) {
	var decoded messagesResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return decoded, fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return decoded, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decoded, fmt.Errorf("http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decoded, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return decoded, retry.NewStatusError(resp, body)
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return decoded, fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return decoded, fmt.Errorf("api error %s: %s", decoded.Error.Type, strings.TrimSpace(decoded.Error.Message))
	}
	return decoded, nil
}

func extractText(resp messagesResponse) string {
	var parts []string
	for _, block := range resp.Content {
		if block.Type != "" && block.Type != "text" {
			continue
		}
		if text := strings.TrimSpace(block.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}
