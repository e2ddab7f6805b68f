package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "NEWS_AUTOPILOT_CONFIG"
	dotenvPathEnv     = "NEWS_AUTOPILOT_ENV_FILE"
	databaseDSNEnv    = "DATABASE_DSN"
	ledgerAPIKeyEnv   = "LEDGER_API_KEY"
	rewriteAPIKeyEnv  = "REWRITE_API_KEY"
	chatGPTAPIKeyEnv  = "CHATGPT_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	publisherKeyEnv   = "PUBLISHER_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	httpAddrEnv       = "HTTP_ADDR"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Logging       LoggingConfig      `yaml:"logging"`
	HTTP          HTTPConfig         `yaml:"http"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	Rewrite       RewriteConfig      `yaml:"rewrite"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Publisher     PublisherConfig    `yaml:"publisher"`
	Notifications NotificationConfig `yaml:"notifications"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
}

// DatabaseConfig names the SQL store; postgres:// DSNs use Postgres, any
// other value is a sqlite path.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// LoggingConfig selects slog level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTPConfig configures the trigger API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// PipelineConfig tunes processing and collaborator timeouts.
type PipelineConfig struct {
	BatchSize        int           `yaml:"batchSize"`
	HealthyThreshold int           `yaml:"healthyThreshold"`
	EmptyRunLimit    int           `yaml:"emptyRunLimit"`
	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	RewriteTimeout   time.Duration `yaml:"rewriteTimeout"`
	PublishTimeout   time.Duration `yaml:"publishTimeout"`
	Tone             string        `yaml:"tone"`
	Style            string        `yaml:"style"`
	Language         string        `yaml:"language"`
	Length           string        `yaml:"length"`
}

// LedgerConfig points at the remote credit ledger. An empty endpoint keeps
// balances in the local database.
type LedgerConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// RewriteConfig points at the AI rewrite service.
type RewriteConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// ChatGPTConfig defines how to contact an OpenAI-compatible API. It is used
// when no rewrite service endpoint is set.
type ChatGPTConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	Model        string        `yaml:"model"`
	APIKey       string        `yaml:"apiKey"`
	SystemPrompt string        `yaml:"systemPrompt"`
	Timeout      time.Duration `yaml:"timeout"`
}

// PublisherConfig points at the publishing service.
type PublisherConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"apiKey"`
	MaxRetries int    `yaml:"maxRetries"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// SchedulerConfig defines how often due monitoring configs are polled.
type SchedulerConfig struct {
	TickInterval time.Duration  `yaml:"tickInterval"`
	Timezone     string         `yaml:"timezone"`
	location     *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Load reads YAML configuration (if present), then a .env file (if
// present), and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	loadDotenv()
	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

// loadDotenv never overrides variables already set in the environment.
func loadDotenv() {
	path := os.Getenv(dotenvPathEnv)
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("config: cannot load %s: %v", path, err)
	}
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{databaseDSNEnv, &c.Database.DSN},
		{ledgerAPIKeyEnv, &c.Ledger.APIKey},
		{rewriteAPIKeyEnv, &c.Rewrite.APIKey},
		{chatGPTAPIKeyEnv, &c.ChatGPT.APIKey},
		{chatGPTModelEnv, &c.ChatGPT.Model},
		{publisherKeyEnv, &c.Publisher.APIKey},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
		{httpAddrEnv, &c.HTTP.Addr},
		{logLevelEnv, &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeString(base *string, override string) {
	if override != "" {
		*base = override
	}
}

func mergeInt(base *int, override int) {
	if override != 0 {
		*base = override
	}
}

func mergeDuration(base *time.Duration, override time.Duration) {
	if override != 0 {
		*base = override
	}
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Database.DSN, override.Database.DSN)

	mergeString(&base.Logging.Level, override.Logging.Level)
	mergeString(&base.Logging.Format, override.Logging.Format)

	mergeString(&base.HTTP.Addr, override.HTTP.Addr)

	mergeInt(&base.Pipeline.BatchSize, override.Pipeline.BatchSize)
	mergeInt(&base.Pipeline.HealthyThreshold, override.Pipeline.HealthyThreshold)
	mergeInt(&base.Pipeline.EmptyRunLimit, override.Pipeline.EmptyRunLimit)
	mergeDuration(&base.Pipeline.FetchTimeout, override.Pipeline.FetchTimeout)
	mergeDuration(&base.Pipeline.RewriteTimeout, override.Pipeline.RewriteTimeout)
	mergeDuration(&base.Pipeline.PublishTimeout, override.Pipeline.PublishTimeout)
	mergeString(&base.Pipeline.Tone, override.Pipeline.Tone)
	mergeString(&base.Pipeline.Style, override.Pipeline.Style)
	mergeString(&base.Pipeline.Language, override.Pipeline.Language)
	mergeString(&base.Pipeline.Length, override.Pipeline.Length)

	mergeString(&base.Ledger.Endpoint, override.Ledger.Endpoint)
	mergeString(&base.Ledger.APIKey, override.Ledger.APIKey)

	mergeString(&base.Rewrite.Endpoint, override.Rewrite.Endpoint)
	mergeString(&base.Rewrite.APIKey, override.Rewrite.APIKey)

	mergeString(&base.ChatGPT.Endpoint, override.ChatGPT.Endpoint)
	mergeString(&base.ChatGPT.Model, override.ChatGPT.Model)
	mergeString(&base.ChatGPT.APIKey, override.ChatGPT.APIKey)
	mergeString(&base.ChatGPT.SystemPrompt, override.ChatGPT.SystemPrompt)
	mergeDuration(&base.ChatGPT.Timeout, override.ChatGPT.Timeout)

	mergeString(&base.Publisher.Endpoint, override.Publisher.Endpoint)
	mergeString(&base.Publisher.APIKey, override.Publisher.APIKey)
	mergeInt(&base.Publisher.MaxRetries, override.Publisher.MaxRetries)

	mergeString(&base.Notifications.Telegram.BotToken, override.Notifications.Telegram.BotToken)
	mergeString(&base.Notifications.Telegram.ChatID, override.Notifications.Telegram.ChatID)

	mergeDuration(&base.Scheduler.TickInterval, override.Scheduler.TickInterval)
	mergeString(&base.Scheduler.Timezone, override.Scheduler.Timezone)

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{DSN: "newsautopilot.db"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		HTTP:     HTTPConfig{Addr: ":8080"},
		Pipeline: PipelineConfig{
			BatchSize:        10,
			HealthyThreshold: 3,
			EmptyRunLimit:    2,
			FetchTimeout:     2 * time.Minute,
			RewriteTimeout:   90 * time.Second,
			PublishTimeout:   45 * time.Second,
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			SystemPrompt: "You rewrite news articles into original copy, keeping every fact.",
			Timeout:      90 * time.Second,
		},
		Publisher: PublisherConfig{MaxRetries: 3},
		Scheduler: SchedulerConfig{TickInterval: time.Minute, Timezone: defaultTimezone, location: tz},
	}
}
