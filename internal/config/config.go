package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Queue contains the location and backend of the approval queue.
type Queue struct {
	Path    string `toml:"path"`
	Backend string `toml:"backend"`
}

// Telegram contains bot credentials and access control.
type Telegram struct {
	BotToken     string  `toml:"bot_token"`
	AdminID      int64   `toml:"admin_id"`
	AllowedChats []int64 `toml:"allowed_chats"`
	PollTimeout  int     `toml:"poll_timeout"`
}

// Text contains text generation provider settings.
type Text struct {
	Provider          string `toml:"provider"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	CaptionMaxTokens  int    `toml:"caption_max_tokens"`
	ResearchMaxTokens int    `toml:"research_max_tokens"`
}

// Image contains image generation provider settings. An empty API key
// disables image generation.
type Image struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Size           string `toml:"size"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Instagram contains Graph API credentials used by the publisher.
type Instagram struct {
	AccessToken string `toml:"access_token"`
	AccountID   string `toml:"business_account_id"`
	BaseURL     string `toml:"graph_base_url"`
}

// Publisher contains sweep timing and quota settings.
type Publisher struct {
	MaxPostsPerDay int `toml:"max_posts_per_day"`
	SweepInterval  int `toml:"sweep_interval"`
	SettleDelay    int `toml:"settle_delay"`
	RequestTimeout int `toml:"request_timeout"`
}

// Dashboard contains the read-only HTTP API settings.
type Dashboard struct {
	Bind       string `toml:"bind"`
	AuthToken  string `toml:"auth_token"`
	QueueLimit int    `toml:"queue_limit"`
}

// Health contains heartbeat file settings.
type Health struct {
	Dir      string `toml:"dir"`
	Interval int    `toml:"interval"`
	MaxAge   int    `toml:"max_age"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for postgate.
//
// Configuration sections by subsystem:
//   - Queue: approval queue root and storage backend
//   - Telegram: bot token, admin and allowed chats
//   - Text: caption and research generation (Anthropic or Gemini)
//   - Image: Freepik image generation
//   - Instagram: Graph API publishing credentials
//   - Publisher: daily quota and sweep timing
//   - Dashboard: bind address and shared-secret token
//   - Health: heartbeat files used by container health checks
//   - Logging: log format and level
type Config struct {
	Queue     Queue     `toml:"queue"`
	Telegram  Telegram  `toml:"telegram"`
	Text      Text      `toml:"text"`
	Image     Image     `toml:"image"`
	Instagram Instagram `toml:"instagram"`
	Publisher Publisher `toml:"publisher"`
	Dashboard Dashboard `toml:"dashboard"`
	Health    Health    `toml:"health"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/postgate/config.toml")
}

// Load locates, parses, and validates a configuration file. A .env file in the
// working directory is loaded first; environment variables override values from
// the file. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	if err := loadDotEnv(".env"); err != nil {
		return nil, "", false, err
	}

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// loadDotEnv populates unset environment variables from path when it exists.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("postgate.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the queue and health directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Queue.Path, c.Health.Dir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SweepInterval returns the publisher sweep period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Publisher.SweepInterval) * time.Second
}

// SettleDelay returns the wait between container creation and publishing.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Publisher.SettleDelay) * time.Second
}

// PublishTimeout bounds one complete publish attempt.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.Publisher.RequestTimeout) * time.Second
}

// HealthInterval returns the heartbeat write period.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Health.Interval) * time.Second
}

// HealthMaxAge returns how old a heartbeat may be before the role is unhealthy.
func (c *Config) HealthMaxAge() time.Duration {
	return time.Duration(c.Health.MaxAge) * time.Second
}

// ImageEnabled reports whether an image provider is configured.
func (c *Config) ImageEnabled() bool {
	return strings.TrimSpace(c.Image.APIKey) != ""
}

// ChatAllowed reports whether the bot should answer the given chat.
func (c *Config) ChatAllowed(chatID int64) bool {
	for _, allowed := range c.Telegram.AllowedChats {
		if allowed == chatID {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Masked returns a copy with secrets replaced, suitable for display.
func (c *Config) Masked() Config {
	masked := *c
	masked.Telegram.AllowedChats = append([]int64(nil), c.Telegram.AllowedChats...)
	masked.Telegram.BotToken = mask(c.Telegram.BotToken)
	masked.Text.APIKey = mask(c.Text.APIKey)
	masked.Image.APIKey = mask(c.Image.APIKey)
	masked.Instagram.AccessToken = mask(c.Instagram.AccessToken)
	masked.Dashboard.AuthToken = mask(c.Dashboard.AuthToken)
	return masked
}

func mask(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****"
	}
	return value[:4] + "****"
}

// Encode renders the config as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
