package services

import "context"

// TextGenerator produces text for a prompt, bounded by maxTokens of output.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// ImageGenerator produces an image reference (URL) for a prompt. Shape is a
// provider-specific aspect identifier such as "square_1_1".
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, shape string) (string, error)
}

// DisabledImages is the ImageGenerator used when no image provider is
// configured. It returns no image and no error.
type DisabledImages struct{}

func (DisabledImages) Generate(context.Context, string, string) (string, error) { return "", nil }

// DisabledText is the TextGenerator used when no text provider is configured.
type DisabledText struct{}

func (DisabledText) Generate(context.Context, string, int) (string, error) {
	return "", &ConfigurationError{Setting: "text.api_key"}
}
