package testsupport

import (
	"path/filepath"
	"testing"

	"postgate/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Credentials are filled with placeholders so role checks pass.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Queue.Path = filepath.Join(base, "queue")
	cfgVal.Health.Dir = filepath.Join(base, "health")
	cfgVal.Telegram.BotToken = "test-bot-token"
	cfgVal.Telegram.AdminID = 1001
	cfgVal.Telegram.AllowedChats = []int64{1001}
	cfgVal.Text.APIKey = "test-text-key"
	cfgVal.Instagram.AccessToken = "test-access-token"
	cfgVal.Instagram.AccountID = "17841400000000000"
	cfgVal.Dashboard.Bind = "127.0.0.1:0"
	cfgVal.Publisher.SettleDelay = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithBackend selects the queue storage backend.
func WithBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.Backend = backend
	}
}

// WithMaxPostsPerDay overrides the publisher quota.
func WithMaxPostsPerDay(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Publisher.MaxPostsPerDay = n
	}
}

// WithDashboardToken enables dashboard authentication.
func WithDashboardToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Dashboard.AuthToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Queue.Path)
}
