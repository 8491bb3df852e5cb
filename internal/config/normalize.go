package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// applyEnv overrides file values with the deployment environment variables.
func (c *Config) applyEnv() error {
	setString(&c.Queue.Path, "APPROVAL_QUEUE_PATH")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	if err := setInt64(&c.Telegram.AdminID, "TELEGRAM_ADMIN_ID"); err != nil {
		return err
	}
	if value, ok := lookupEnv("TELEGRAM_ALLOWED_CHATS"); ok {
		chats, err := parseChatList(value)
		if err != nil {
			return fmt.Errorf("TELEGRAM_ALLOWED_CHATS: %w", err)
		}
		c.Telegram.AllowedChats = chats
	}

	setString(&c.Text.Provider, "TEXT_PROVIDER")
	switch strings.ToLower(strings.TrimSpace(c.Text.Provider)) {
	case "gemini":
		setString(&c.Text.APIKey, "GEMINI_API_KEY")
		setString(&c.Text.Model, "GEMINI_MODEL")
	default:
		setString(&c.Text.APIKey, "ANTHROPIC_API_KEY")
		setString(&c.Text.Model, "CLAUDE_MODEL")
	}

	setString(&c.Image.APIKey, "FREEPIK_API_KEY")
	setString(&c.Instagram.AccessToken, "INSTAGRAM_ACCESS_TOKEN")
	setString(&c.Instagram.AccountID, "INSTAGRAM_BUSINESS_ACCOUNT_ID")
	if err := setInt(&c.Publisher.MaxPostsPerDay, "MAX_POSTS_PER_DAY"); err != nil {
		return err
	}
	setString(&c.Dashboard.AuthToken, "DASHBOARD_AUTH_TOKEN")
	if value, ok := lookupEnv("PORT"); ok {
		port, err := strconv.Atoi(value)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("PORT: invalid port %q", value)
		}
		c.Dashboard.Bind = fmt.Sprintf("0.0.0.0:%d", port)
	}
	setString(&c.Logging.Level, "LOG_LEVEL")
	return nil
}

func (c *Config) normalize() error {
	if err := c.normalizeQueue(); err != nil {
		return err
	}
	c.normalizeTelegram()
	c.normalizeText()
	c.normalizeImage()
	c.normalizeInstagram()
	c.normalizeDashboard()
	if err := c.normalizeHealth(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeQueue() error {
	if strings.TrimSpace(c.Queue.Path) == "" {
		c.Queue.Path = defaultQueuePath
	}
	var err error
	if c.Queue.Path, err = expandPath(strings.TrimSpace(c.Queue.Path)); err != nil {
		return fmt.Errorf("queue.path: %w", err)
	}
	c.Queue.Backend = strings.ToLower(strings.TrimSpace(c.Queue.Backend))
	if c.Queue.Backend == "" {
		c.Queue.Backend = defaultQueueBackend
	}
	return nil
}

func (c *Config) normalizeTelegram() {
	c.Telegram.BotToken = strings.TrimSpace(c.Telegram.BotToken)
	if len(c.Telegram.AllowedChats) == 0 && c.Telegram.AdminID != 0 {
		c.Telegram.AllowedChats = []int64{c.Telegram.AdminID}
	}
	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = defaultPollTimeout
	}
}

func (c *Config) normalizeText() {
	c.Text.Provider = strings.ToLower(strings.TrimSpace(c.Text.Provider))
	if c.Text.Provider == "" {
		c.Text.Provider = defaultTextProvider
	}
	c.Text.APIKey = strings.TrimSpace(c.Text.APIKey)
	c.Text.BaseURL = strings.TrimSpace(c.Text.BaseURL)
	c.Text.Model = strings.TrimSpace(c.Text.Model)
	switch c.Text.Provider {
	case "anthropic":
		if c.Text.BaseURL == "" {
			c.Text.BaseURL = defaultAnthropicBaseURL
		}
		if c.Text.Model == "" {
			c.Text.Model = defaultAnthropicModel
		}
	case "gemini":
		if c.Text.Model == "" {
			c.Text.Model = defaultGeminiModel
		}
	}
	if c.Text.TimeoutSeconds <= 0 {
		c.Text.TimeoutSeconds = defaultTextTimeoutSeconds
	}
	if c.Text.CaptionMaxTokens <= 0 {
		c.Text.CaptionMaxTokens = defaultCaptionMaxTokens
	}
	if c.Text.ResearchMaxTokens <= 0 {
		c.Text.ResearchMaxTokens = defaultResearchMaxTokens
	}
}

func (c *Config) normalizeImage() {
	c.Image.APIKey = strings.TrimSpace(c.Image.APIKey)
	c.Image.BaseURL = strings.TrimSpace(c.Image.BaseURL)
	if c.Image.BaseURL == "" {
		c.Image.BaseURL = defaultFreepikBaseURL
	}
	c.Image.Size = strings.TrimSpace(c.Image.Size)
	if c.Image.Size == "" {
		c.Image.Size = defaultImageSize
	}
	if c.Image.TimeoutSeconds <= 0 {
		c.Image.TimeoutSeconds = defaultImageTimeoutSeconds
	}
}

func (c *Config) normalizeInstagram() {
	c.Instagram.AccessToken = strings.TrimSpace(c.Instagram.AccessToken)
	c.Instagram.AccountID = strings.TrimSpace(c.Instagram.AccountID)
	c.Instagram.BaseURL = strings.TrimRight(strings.TrimSpace(c.Instagram.BaseURL), "/")
	if c.Instagram.BaseURL == "" {
		c.Instagram.BaseURL = defaultGraphBaseURL
	}
}

func (c *Config) normalizeDashboard() {
	c.Dashboard.Bind = strings.TrimSpace(c.Dashboard.Bind)
	if c.Dashboard.Bind == "" {
		c.Dashboard.Bind = defaultDashboardBind
	}
	c.Dashboard.AuthToken = strings.TrimSpace(c.Dashboard.AuthToken)
	if c.Dashboard.QueueLimit <= 0 {
		c.Dashboard.QueueLimit = defaultDashboardQueueLimit
	}
}

func (c *Config) normalizeHealth() error {
	if strings.TrimSpace(c.Health.Dir) == "" {
		c.Health.Dir = defaultHealthDir()
	}
	var err error
	if c.Health.Dir, err = expandPath(strings.TrimSpace(c.Health.Dir)); err != nil {
		return fmt.Errorf("health.dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func setString(target *string, key string) {
	if value, ok := lookupEnv(key); ok {
		*target = value
	}
}

func setInt(target *int, key string) error {
	value, ok := lookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*target = parsed
	return nil
}

func setInt64(target *int64, key string) error {
	value, ok := lookupEnv(key)
	if !ok {
		return nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, value)
	}
	*target = parsed
	return nil
}

func parseChatList(value string) ([]int64, error) {
	fields := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' })
	chats := make([]int64, 0, len(fields))
	for _, field := range fields {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q", field)
		}
		chats = append(chats, id)
	}
	return chats, nil
}
