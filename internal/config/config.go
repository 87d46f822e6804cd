package config

import (
	"errors"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "NOTES_TAGGER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	apiKeyEnv         = "ANTHROPIC_API_KEY"
	modelEnv          = "ANTHROPIC_MODEL"
	logLevelEnv       = "LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds every setting of a tagging run.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Oracle        OracleConfig       `yaml:"oracle"`
	Processing    ProcessingConfig   `yaml:"processing"`
	Sources       SourcesConfig      `yaml:"sources"`
	Audit         AuditConfig        `yaml:"audit"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects slog level and output format (text or json).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig points at the record store: a SQLite path or a postgres:// DSN.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// OracleConfig defines how to contact the labeling model.
type OracleConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"apiKey"`
	APIVersion     string        `yaml:"apiVersion"`
	MaxTokens      int           `yaml:"maxTokens"`
	Timeout        time.Duration `yaml:"timeout"`
	BodyLimit      int           `yaml:"bodyLimit"`
	PromptTemplate string        `yaml:"promptTemplate"`
}

// ProcessingConfig controls selection, batching and pacing.
type ProcessingConfig struct {
	BatchSize      int           `yaml:"batchSize"`
	MaxRecords     int           `yaml:"maxRecords"`
	LabelThreshold int           `yaml:"labelThreshold"`
	ItemDelay      time.Duration `yaml:"itemDelay"`
	BatchDelay     time.Duration `yaml:"batchDelay"`
	CostPerRecord  float64       `yaml:"costPerRecord"`
}

// SourcesConfig lists the scopes (folders) records are gathered from, in order.
type SourcesConfig struct {
	Scopes []ScopeConfig `yaml:"scopes"`
}

// ScopeConfig names one scope; optional scopes are expected to be missing sometimes.
type ScopeConfig struct {
	Name     string `yaml:"name"`
	Optional bool   `yaml:"optional"`
}

// AuditConfig controls the run log written back to the store.
type AuditConfig struct {
	Disabled bool     `yaml:"disabled"`
	Labels   []string `yaml:"labels"`
}

// NotificationConfig encapsulates outbound channels for the run summary.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration (if present) and applies environment overrides.
// An empty path falls back to the NOTES_TAGGER_CONFIG variable.
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
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

	cfg.applyEnvOverrides()
	return cfg
}

// Validate checks the settings a tagging run cannot do without.
func (c Config) Validate() error {
	var errs []error
	if c.Oracle.APIKey == "" {
		errs = append(errs, errors.New("oracle.apiKey is empty (set " + apiKeyEnv + ")"))
	}
	if c.Oracle.Endpoint == "" || c.Oracle.Model == "" {
		errs = append(errs, errors.New("oracle endpoint and model are required"))
	}
	if c.Processing.BatchSize <= 0 {
		errs = append(errs, errors.New("processing.batchSize must be positive"))
	}
	if c.Processing.LabelThreshold <= 0 {
		errs = append(errs, errors.New("processing.labelThreshold must be positive"))
	}
	if len(c.Sources.Scopes) == 0 {
		errs = append(errs, errors.New("sources.scopes is empty"))
	}
	return errors.Join(errs...)
}

// ScopeNames returns configured scope names in order.
func (c Config) ScopeNames() []string {
	names := make([]string, 0, len(c.Sources.Scopes))
	for _, s := range c.Sources.Scopes {
		names = append(names, s.Name)
	}
	return names
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(apiKeyEnv); v != "" {
		c.Oracle.APIKey = v
	}

	if v := os.Getenv(modelEnv); v != "" {
		c.Oracle.Model = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	o := override.Oracle
	if o.Endpoint != "" {
		base.Oracle.Endpoint = o.Endpoint
	}
	if o.Model != "" {
		base.Oracle.Model = o.Model
	}
	if o.APIKey != "" {
		base.Oracle.APIKey = o.APIKey
	}
	if o.APIVersion != "" {
		base.Oracle.APIVersion = o.APIVersion
	}
	if o.MaxTokens > 0 {
		base.Oracle.MaxTokens = o.MaxTokens
	}
	if o.Timeout > 0 {
		base.Oracle.Timeout = o.Timeout
	}
	if o.BodyLimit > 0 {
		base.Oracle.BodyLimit = o.BodyLimit
	}
	if o.PromptTemplate != "" {
		base.Oracle.PromptTemplate = o.PromptTemplate
	}

	p := override.Processing
	if p.BatchSize > 0 {
		base.Processing.BatchSize = p.BatchSize
	}
	if p.MaxRecords > 0 {
		base.Processing.MaxRecords = p.MaxRecords
	}
	if p.LabelThreshold > 0 {
		base.Processing.LabelThreshold = p.LabelThreshold
	}
	if p.ItemDelay > 0 {
		base.Processing.ItemDelay = p.ItemDelay
	}
	if p.BatchDelay > 0 {
		base.Processing.BatchDelay = p.BatchDelay
	}
	if p.CostPerRecord > 0 {
		base.Processing.CostPerRecord = p.CostPerRecord
	}

	if len(override.Sources.Scopes) > 0 {
		base.Sources = override.Sources
	}

	if override.Audit.Disabled {
		base.Audit.Disabled = true
	}
	if len(override.Audit.Labels) > 0 {
		base.Audit.Labels = override.Audit.Labels
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{DSN: "data/notes.db"},
		Oracle: OracleConfig{
			Endpoint:   "https://api.anthropic.com/v1/messages",
			Model:      "claude-3-haiku-20240307",
			APIVersion: "2023-06-01",
			MaxTokens:  250,
			Timeout:    30 * time.Second,
			BodyLimit:  1200,
		},
		Processing: ProcessingConfig{
			BatchSize:      10,
			MaxRecords:     100,
			LabelThreshold: 3,
			ItemDelay:      150 * time.Millisecond,
			BatchDelay:     800 * time.Millisecond,
			CostPerRecord:  0.012,
		},
		Sources: SourcesConfig{
			Scopes: []ScopeConfig{
				{Name: "inbox"},
				{Name: "archive"},
				{Name: "untagged", Optional: true},
			},
		},
		Audit: AuditConfig{
			Labels: []string{"auto-tagging", "processing-log", "claude-api"},
		},
	}
}
