package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file system locations shared by every stage process.
type Paths struct {
	DatabasePath string `toml:"database_path" yaml:"database_path"`
	ArtifactDir  string `toml:"artifact_dir" yaml:"artifact_dir"`
	LogDir       string `toml:"log_dir" yaml:"log_dir"`
}

// Store selects and configures the item store backend.
type Store struct {
	Driver          string `toml:"driver" yaml:"driver"`
	MongoURI        string `toml:"mongo_uri" yaml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database" yaml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection" yaml:"mongo_collection"`
}

// Workflow contains scheduling settings for stage runners.
type Workflow struct {
	TickInterval     int      `toml:"tick_interval" yaml:"tick_interval"`
	TransformTimeout int      `toml:"transform_timeout" yaml:"transform_timeout"`
	Workers          int      `toml:"workers" yaml:"workers"`
	Stages           []string `toml:"stages" yaml:"stages"`
}

// Fetch contains settings for the download stage.
type Fetch struct {
	UserAgent     string `toml:"user_agent" yaml:"user_agent"`
	MaxBodyBytes  int64  `toml:"max_body_bytes" yaml:"max_body_bytes"`
	RespectRobots bool   `toml:"respect_robots" yaml:"respect_robots"`
	RetryAttempts int    `toml:"retry_attempts" yaml:"retry_attempts"`
}

// LLM contains connection settings for the translation stage.
type LLM struct {
	APIKey         string `toml:"api_key" yaml:"api_key"`
	BaseURL        string `toml:"base_url" yaml:"base_url"`
	Model          string `toml:"model" yaml:"model"`
	Referer        string `toml:"referer" yaml:"referer"`
	Title          string `toml:"title" yaml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Prompt         string `toml:"prompt" yaml:"prompt"`
	TargetLanguage string `toml:"target_language" yaml:"target_language"`
}

// Telegram contains Bot API settings for the publish stage.
type Telegram struct {
	BotToken       string `toml:"bot_token" yaml:"bot_token"`
	ChatID         string `toml:"chat_id" yaml:"chat_id"`
	APIBaseURL     string `toml:"api_base_url" yaml:"api_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// Ingest describes the upstream feed page scraped by `newsflow ingest`.
type Ingest struct {
	FeedURL      string `toml:"feed_url" yaml:"feed_url"`
	ItemSelector string `toml:"item_selector" yaml:"item_selector"`
	LinkSelector string `toml:"link_selector" yaml:"link_selector"`
	DateSelector string `toml:"date_selector" yaml:"date_selector"`
	Interval     int    `toml:"interval" yaml:"interval"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic" yaml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout" yaml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format" yaml:"format"`
	Level          string            `toml:"level" yaml:"level"`
	RetentionDays  int               `toml:"retention_days" yaml:"retention_days"`
	StageOverrides map[string]string `toml:"stage_overrides" yaml:"stage_overrides"`
}

// Config encapsulates all configuration values for newsflow.
//
// Configuration sections by subsystem:
//   - Paths: item database, artifact directory, logs
//   - Store: item store backend (sqlite or mongo)
//   - Workflow: tick interval, transform timeout, per-tick parallelism
//   - Fetch: downloader behaviour
//   - LLM: translation endpoint and prompt
//   - Telegram: publish target
//   - Ingest: upstream feed scraping
//   - Notifications: ntfy alerts
//   - Logging: log format, level, retention, per-stage overrides
type Config struct {
	Paths         Paths         `toml:"paths" yaml:"paths"`
	Store         Store         `toml:"store" yaml:"store"`
	Workflow      Workflow      `toml:"workflow" yaml:"workflow"`
	Fetch         Fetch         `toml:"fetch" yaml:"fetch"`
	LLM           LLM           `toml:"llm" yaml:"llm"`
	Telegram      Telegram      `toml:"telegram" yaml:"telegram"`
	Ingest        Ingest        `toml:"ingest" yaml:"ingest"`
	Notifications Notifications `toml:"notifications" yaml:"notifications"`
	Logging       Logging       `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

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

		if err := decode(file, resolvedPath, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decode(r io.Reader, path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err := yaml.NewDecoder(r).Decode(cfg)
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	default:
		return toml.NewDecoder(r).Decode(cfg)
	}
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

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("newsflow.toml")
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

// EnsureDirectories creates the artifact, log, and database directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.ArtifactDir, c.Paths.LogDir}
	if c.Store.Driver == StoreDriverSQLite && c.Paths.DatabasePath != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.DatabasePath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// TickInterval returns the configured stage tick period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Workflow.TickInterval) * time.Second
}

// TransformTimeout returns the per-item transform deadline.
func (c *Config) TransformTimeout() time.Duration {
	return time.Duration(c.Workflow.TransformTimeout) * time.Second
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

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
