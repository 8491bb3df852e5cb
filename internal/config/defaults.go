package config

import (
	"os"
	"path/filepath"
)

const (
	defaultQueuePath           = "~/.local/share/postgate/queue"
	defaultQueueBackend        = "files"
	defaultPollTimeout         = 30
	defaultTextProvider        = "anthropic"
	defaultAnthropicBaseURL    = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel      = "claude-sonnet-4-20250514"
	defaultGeminiModel         = "gemini-2.5-flash"
	defaultTextTimeoutSeconds  = 60
	defaultCaptionMaxTokens    = 500
	defaultResearchMaxTokens   = 2000
	defaultFreepikBaseURL      = "https://api.freepik.com/v1/ai/text-to-image"
	defaultImageSize           = "square_1_1"
	defaultImageTimeoutSeconds = 60
	defaultGraphBaseURL        = "https://graph.facebook.com/v18.0"
	defaultMaxPostsPerDay      = 10
	defaultSweepInterval       = 300
	defaultSettleDelay         = 5
	defaultPublishTimeout      = 120
	defaultDashboardBind       = "0.0.0.0:3000"
	defaultDashboardQueueLimit = 50
	defaultHealthInterval      = 30
	defaultHealthMaxAge        = 60
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Queue: Queue{
			Path:    defaultQueuePath,
			Backend: defaultQueueBackend,
		},
		Telegram: Telegram{
			PollTimeout: defaultPollTimeout,
		},
		Text: Text{
			Provider:          defaultTextProvider,
			TimeoutSeconds:    defaultTextTimeoutSeconds,
			CaptionMaxTokens:  defaultCaptionMaxTokens,
			ResearchMaxTokens: defaultResearchMaxTokens,
		},
		Image: Image{
			BaseURL:        defaultFreepikBaseURL,
			Size:           defaultImageSize,
			TimeoutSeconds: defaultImageTimeoutSeconds,
		},
		Instagram: Instagram{
			BaseURL: defaultGraphBaseURL,
		},
		Publisher: Publisher{
			MaxPostsPerDay: defaultMaxPostsPerDay,
			SweepInterval:  defaultSweepInterval,
			SettleDelay:    defaultSettleDelay,
			RequestTimeout: defaultPublishTimeout,
		},
		Dashboard: Dashboard{
			Bind:       defaultDashboardBind,
			QueueLimit: defaultDashboardQueueLimit,
		},
		Health: Health{
			Dir:      defaultHealthDir(),
			Interval: defaultHealthInterval,
			MaxAge:   defaultHealthMaxAge,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultHealthDir() string {
	return filepath.Join(os.TempDir(), "postgate")
}
