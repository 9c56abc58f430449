package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// ValidateStage checks the credentials a single stage needs before it can run.
// Stages that call no external service always pass.
func (c *Config) ValidateStage(stage string) error {
	switch strings.ToLower(strings.TrimSpace(stage)) {
	case "translated":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for the translated stage. Set NEWSFLOW_LLM_API_KEY or OPENROUTER_API_KEY, or edit %s", c.configHint())
		}
	case "published":
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required for the published stage. Set TG_TOKEN or edit %s", c.configHint())
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required for the published stage. Set TG_CHAT_ID or edit %s", c.configHint())
		}
	}
	return nil
}

func (c *Config) configHint() string {
	path, err := DefaultConfigPath()
	if err != nil {
		return "~/.config/newsflow/config.toml"
	}
	return path
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case StoreDriverSQLite:
		if strings.TrimSpace(c.Paths.DatabasePath) == "" {
			return errors.New("paths.database_path must be set when store.driver is sqlite")
		}
	case StoreDriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("store.mongo_uri must be set when store.driver is mongo (or set NEWSFLOW_MONGO_URI)")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported (use sqlite or mongo)", c.Store.Driver)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.tick_interval":        c.Workflow.TickInterval,
		"workflow.transform_timeout":    c.Workflow.TransformTimeout,
		"workflow.workers":              c.Workflow.Workers,
		"llm.timeout_seconds":           c.LLM.TimeoutSeconds,
		"telegram.timeout_seconds":      c.Telegram.TimeoutSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	known := make(map[string]struct{}, len(DefaultStages))
	for _, stage := range DefaultStages {
		known[stage] = struct{}{}
	}
	for _, stage := range c.Workflow.Stages {
		if _, ok := known[stage]; !ok {
			return fmt.Errorf("workflow.stages: unknown stage %q (expected one of %s)", stage, strings.Join(DefaultStages, ", "))
		}
	}
	return nil
}

func (c *Config) validateFetch() error {
	if c.Fetch.MaxBodyBytes <= 0 {
		return errors.New("fetch.max_body_bytes must be positive")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.Interval <= 0 {
		return errors.New("ingest.interval must be positive")
	}
	if c.Ingest.FeedURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Ingest.FeedURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("ingest.feed_url %q must be an absolute URL", c.Ingest.FeedURL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	for stage, level := range c.Logging.StageOverrides {
		if !validLevel(level) {
			return fmt.Errorf("logging.stage_overrides.%s: level %q is not supported", stage, level)
		}
	}
	return nil
}

func validLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "warning", "error":
		return true
	default:
		return false
	}
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
