package config

// Store drivers.
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverMongo  = "mongo"
)

const (
	defaultConfigPath           = "~/.config/newsflow/config.toml"
	defaultDatabasePath         = "~/.local/share/newsflow/news.db"
	defaultArtifactDir          = "~/.local/share/newsflow/data"
	defaultLogDir               = "~/.local/share/newsflow/logs"
	defaultLogRetentionDays     = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultMongoDatabase        = "newsflow"
	defaultMongoCollection      = "news"
	defaultTickInterval         = 60
	defaultTransformTimeout     = 300
	defaultWorkers              = 1
	defaultUserAgent            = "Mozilla/5.0 (compatible; newsflow/1.0)"
	defaultMaxBodyBytes         = 10 << 20
	defaultFetchRetryAttempts   = 3
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "google/gemini-3-flash-preview"
	defaultLLMReferer           = "https://github.com/newsflow/newsflow"
	defaultLLMTitle             = "newsflow"
	defaultLLMTimeoutSeconds    = 120
	defaultLLMTargetLanguage    = "Russian"
	defaultTelegramAPIBaseURL   = "https://api.telegram.org"
	defaultTelegramTimeout      = 30
	defaultIngestItemSelector   = "h3.entry-title.td-module-title"
	defaultIngestLinkSelector   = "a"
	defaultIngestDateSelector   = "div.td-editor-date span.td-post-date time"
	defaultIngestInterval       = 300
	defaultNotifyRequestTimeout = 10
)

// DefaultStages lists every stage in pipeline order.
var DefaultStages = []string{"downloaded", "extracted", "translated", "published"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DatabasePath: defaultDatabasePath,
			ArtifactDir:  defaultArtifactDir,
			LogDir:       defaultLogDir,
		},
		Store: Store{
			Driver:          StoreDriverSQLite,
			MongoDatabase:   defaultMongoDatabase,
			MongoCollection: defaultMongoCollection,
		},
		Workflow: Workflow{
			TickInterval:     defaultTickInterval,
			TransformTimeout: defaultTransformTimeout,
			Workers:          defaultWorkers,
			Stages:           append([]string(nil), DefaultStages...),
		},
		Fetch: Fetch{
			UserAgent:     defaultUserAgent,
			MaxBodyBytes:  defaultMaxBodyBytes,
			RetryAttempts: defaultFetchRetryAttempts,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			TargetLanguage: defaultLLMTargetLanguage,
		},
		Telegram: Telegram{
			APIBaseURL:     defaultTelegramAPIBaseURL,
			TimeoutSeconds: defaultTelegramTimeout,
		},
		Ingest: Ingest{
			ItemSelector: defaultIngestItemSelector,
			LinkSelector: defaultIngestLinkSelector,
			DateSelector: defaultIngestDateSelector,
			Interval:     defaultIngestInterval,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
