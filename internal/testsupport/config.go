package testsupport

import (
	"path/filepath"
	"testing"

	"newsflow/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DatabasePath = filepath.Join(base, "db", "news.db")
	cfgVal.Paths.ArtifactDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Workflow.TickInterval = 1
	cfgVal.Workflow.TransformTimeout = 5
	cfgVal.LLM.APIKey = "test"
	cfgVal.Telegram.BotToken = "test-token"
	cfgVal.Telegram.ChatID = "-1001"

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

// WithWorkers sets per-tick parallelism.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Workers = n
	}
}

// WithStages limits the stages started by the workflow manager.
func WithStages(stages ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Workflow.Stages = append([]string(nil), stages...)
	}
}

// WithoutCredentials clears the LLM and Telegram credentials.
func WithoutCredentials() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = ""
		b.cfg.Telegram.BotToken = ""
		b.cfg.Telegram.ChatID = ""
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.ArtifactDir)
}
