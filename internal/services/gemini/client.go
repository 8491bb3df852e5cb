// Package gemini adapts the Google GenAI SDK to services.TextGenerator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"postgate/internal/services"
	"postgate/internal/services/retry"
)

const (
	providerName   = "gemini"
	defaultModel   = "gemini-2.5-flash"
	defaultTimeout = 60 * time.Second
)

// Config configures the Gemini client.
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	TimeoutSeconds int
	Policy         *retry.Policy
}

// Client generates text with a Gemini model.
type Client struct {
	client *genai.Client
	model  string
	policy retry.Policy
}

// New builds a client. A missing API key is a ConfigurationError.
func New(ctx context.Context, cfg Config) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, &services.ConfigurationError{Setting: "text.api_key", Reason: "is required (GEMINI_API_KEY)"}
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, services.Wrap(providerName, "new client", err)
	}
	policy := retry.Default()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	return &Client{client: client, model: model, policy: policy}, nil
}

// Model reports the configured model name.
func (c *Client) Model() string { return c.model }

// Generate implements services.TextGenerator.
func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("gemini generate: prompt required")
	}
	var genCfg *genai.GenerateContentConfig
	if maxTokens > 0 {
		genCfg = &genai.GenerateContentConfig{MaxOutputTokens: int32(maxTokens)}
	}

	var text string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		result, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), genCfg)
		if err != nil {
			return classify(err)
		}
		text = firstText(result)
		if text == "" {
			return errors.New("empty candidate list")
		}
		return nil
	})
	if err != nil {
		return "", &services.ProviderError{
			Provider:   providerName,
			Op:         "generate content",
			StatusCode: retry.StatusCode(err),
			Err:        err,
		}
	}
	return text, nil
}

// classify converts SDK API errors into retry.StatusError so the shared
// policy can decide whether to retry.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code > 0 {
		return &retry.StatusError{StatusCode: apiErr.Code, Body: fmt.Sprintf("%s: %s", apiErr.Status, apiErr.Message)}
	}
	return err
}

func firstText(result *genai.GenerateContentResponse) string {
	if result == nil {
		return ""
	}
	for _, candidate := range result.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var parts []string
		for _, part := range candidate.Content.Parts {
			if part != nil && strings.TrimSpace(part.Text) != "" {
				parts = append(parts, part.Text)
			}
		}
		if len(parts) > 0 {
			return strings.TrimSpace(strings.Join(parts, ""))
		}
	}
	return ""
}
