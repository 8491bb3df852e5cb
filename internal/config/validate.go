package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"postgate/internal/services"
)

// Validate ensures the configuration is internally consistent. Credentials are
// checked per role by RequireBot and RequirePublisher since each process needs
// a different subset.
func (c *Config) Validate() error {
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateText(); err != nil {
		return err
	}
	if err := c.validatePublisher(); err != nil {
		return err
	}
	if err := c.validateDashboard(); err != nil {
		return err
	}
	if err := c.validateHealth(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case "files", "sqlite":
	default:
		return fmt.Errorf("queue.backend must be \"files\" or \"sqlite\", got %q", c.Queue.Backend)
	}
	if strings.TrimSpace(c.Queue.Path) == "" {
		return errors.New("queue.path must be set")
	}
	return nil
}

func (c *Config) validateText() error {
	switch c.Text.Provider {
	case "anthropic", "gemini":
	default:
		return fmt.Errorf("text.provider must be \"anthropic\" or \"gemini\", got %q", c.Text.Provider)
	}
	return nil
}

func (c *Config) validatePublisher() error {
	if err := ensurePositiveMap(map[string]int{
		"publisher.max_posts_per_day": c.Publisher.MaxPostsPerDay,
		"publisher.sweep_interval":    c.Publisher.SweepInterval,
		"publisher.request_timeout":   c.Publisher.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Publisher.SettleDelay < 0 {
		return errors.New("publisher.settle_delay must not be negative")
	}
	return nil
}

func (c *Config) validateDashboard() error {
	if _, _, err := net.SplitHostPort(c.Dashboard.Bind); err != nil {
		return fmt.Errorf("dashboard.bind %q: %w", c.Dashboard.Bind, err)
	}
	return nil
}

func (c *Config) validateHealth() error {
	if err := ensurePositiveMap(map[string]int{
		"health.interval": c.Health.Interval,
		"health.max_age":  c.Health.MaxAge,
	}); err != nil {
		return err
	}
	if c.Health.MaxAge <= c.Health.Interval {
		return errors.New("health.max_age must be greater than health.interval")
	}
	return nil
}

func (c *Config) validateLogging() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return fmt.Errorf("logging.level %q: must be debug, info, warn, or error", c.Logging.Level)
	}
	return nil
}

// RequireBot reports the settings the bot cannot start without.
func (c *Config) RequireBot() error {
	if c.Telegram.BotToken == "" {
		return &services.ConfigurationError{Setting: "telegram.bot_token", Reason: "is required (TELEGRAM_BOT_TOKEN)"}
	}
	if c.Telegram.AdminID == 0 && len(c.Telegram.AllowedChats) == 0 {
		return &services.ConfigurationError{Setting: "telegram.admin_id", Reason: "is required (TELEGRAM_ADMIN_ID)"}
	}
	if c.Text.APIKey == "" {
		return &services.ConfigurationError{Setting: "text.api_key", Reason: "is required (ANTHROPIC_API_KEY or GEMINI_API_KEY)"}
	}
	return nil
}

// RequirePublisher reports the settings the publisher cannot start without.
func (c *Config) RequirePublisher() error {
	if c.Instagram.AccessToken == "" {
		return &services.ConfigurationError{Setting: "instagram.access_token", Reason: "is required (INSTAGRAM_ACCESS_TOKEN)"}
	}
	if c.Instagram.AccountID == "" {
		return &services.ConfigurationError{Setting: "instagram.business_account_id", Reason: "is required (INSTAGRAM_BUSINESS_ACCOUNT_ID)"}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
