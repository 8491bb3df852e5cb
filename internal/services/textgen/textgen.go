package textgen

import (
	"context"
	"fmt"

	"postgate/internal/config"
	"postgate/internal/services"
	"postgate/internal/services/gemini"
)

// New returns the text generator selected by cfg.Text.Provider.
func New(ctx context.Context, cfg *config.Config) (services.TextGenerator, error) {
	switch cfg.Text.Provider {
	case "gemini":
		client, err := gemini.New(ctx, gemini.Config{
			APIKey:         cfg.Text.APIKey,
			Model:          cfg.Text.Model,
			BaseURL:        cfg.Text.BaseURL,
			TimeoutSeconds: cfg.Text.TimeoutSeconds,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	case "anthropic", "":
		client, err := NewAnthropic(Config{
			APIKey:         cfg.Text.APIKey,
			BaseURL:        cfg.Text.BaseURL,
			Model:          cfg.Text.Model,
			TimeoutSeconds: cfg.Text.TimeoutSeconds,
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, &services.ConfigurationError{Setting: "text.provider", Reason: fmt.Sprintf("unsupported value %q", cfg.Text.Provider)}
	}
}

// CaptionPrompt asks for an Instagram caption for description.
func CaptionPrompt(description string) string {
	return fmt.Sprintf("Create an engaging Instagram post caption for: %s. Include relevant hashtags. Keep it under 2200 characters.", description)
}

// ResearchPrompt asks for a research summary of topic.
func ResearchPrompt(topic string) string {
	return fmt.Sprintf("Research the following topic thoroughly and provide a comprehensive summary with key insights: %s", topic)
}

// MarketPrompt asks for a market analysis of query.
func MarketPrompt(query string) string {
	return fmt.Sprintf("Provide a market analysis for: %s. Include trends, opportunities, and recommendations based on publicly available data.", query)
}
