// Package freepik generates post images through the Freepik text-to-image API.
package freepik

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
	providerName   = "freepik"
	defaultBaseURL = "https://api.freepik.com/v1/ai/text-to-image"
	defaultShape   = "square_1_1"
	defaultTimeout = 60 * time.Second
)

// Config configures the image client.
type Config struct {
	APIKey         string
	BaseURL        string
	Size           string
	TimeoutSeconds int
}

// Client implements services.ImageGenerator.
type Client struct {
	cfg        Config
	httpClient *http.Client
	policy     retry.Policy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) { c.policy = policy }
}

// New returns an image generator. Without an API key it returns
// services.DisabledImages so callers can create items without images.
func New(cfg Config, opts ...Option) services.ImageGenerator {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return services.DisabledImages{}
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Size) == "" {
		cfg.Size = defaultShape
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		policy:     retry.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type generateRequest struct {
	Prompt    string     `json:"prompt"`
	NumImages int        `json:"num_images"`
	Image     imageShape `json:"image"`
}

type imageShape struct {
	Size string `json:"size"`
}

type generateResponse struct {
	Data []struct {
		URL    string `json:"url"`
		Base64 string `json:"base64"`
	} `json:"data"`
}

// Generate requests a single image and returns its URL. An empty shape uses
// the configured size.
func (c *Client) Generate(ctx context.Context, prompt, shape string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("freepik generate: prompt required")
	}
	if strings.TrimSpace(shape) == "" {
		shape = c.cfg.Size
	}
	payload := generateRequest{Prompt: prompt, NumImages: 1, Image: imageShape{Size: shape}}

	var imageURL string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		decoded, err := c.sendOnce(ctx, payload)
		if err != nil {
			return err
		}
		if len(decoded.Data) == 0 || strings.TrimSpace(decoded.Data[0].URL) == "" {
			return errors.New("response carried no image url")
		}
		imageURL = strings.TrimSpace(decoded.Data[0].URL)
		return nil
	})
	if err != nil {
		return "", &services.ProviderError{
			Provider:   providerName,
			Op:         "text-to-image",
			StatusCode: retry.StatusCode(err),
			Err:        err,
		}
	}
	return imageURL, nil
}

func (c *Client) sendOnce(ctx context.Context, payload generateRequest) (generateResponse, error) {
	var decoded generateResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return decoded, fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return decoded, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-freepik-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decoded, fmt.Errorf("http error: %w", err)
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
	return decoded, nil
}
