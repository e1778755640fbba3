package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp"`
	SmartBot SmartBotConfig `yaml:"smartbot"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Storage  StorageConfig  `yaml:"storage"`
	Throttle ThrottleConfig `yaml:"throttle"`
	Campaign CampaignConfig `yaml:"campaign"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	// Allow override via environment
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// AuthConfig holds admin API authentication configuration.
// When APIKey is empty the admin API is open (local development).
type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// WhatsAppConfig holds the WhatsApp session configuration
type WhatsAppConfig struct {
	SessionDB   string `yaml:"session_db"`   // sqlite file for the device store
	DeviceName  string `yaml:"device_name"`  // shown in linked devices
	PrintQR     bool   `yaml:"print_qr"`     // render QR codes on the terminal
	LogLevel    string `yaml:"log_level"`    // whatsmeow internal log level
	ReadReceipt bool   `yaml:"read_receipt"` // mark handled messages as read
}

// SmartBotConfig holds the auto-reply engine configuration
type SmartBotConfig struct {
	Enabled        bool   `yaml:"enabled"`
	RulesFile      string `yaml:"rules_file"`
	HistoryFile    string `yaml:"history_file"`
	LexiconDir     string `yaml:"lexicon_dir"` // overrides the embedded tables when set
	FuzzyThreshold int    `yaml:"fuzzy_threshold"`
}

// WebhookConfig holds outbound webhook delivery configuration
type WebhookConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	RetryAttempts  int `yaml:"retry_attempts"`
	RetryDelayMS   int `yaml:"retry_delay_ms"`
	LogCapacity    int `yaml:"log_capacity"`
}

// Timeout returns the per-attempt HTTP timeout as a duration
func (c WebhookConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base retry delay as a duration
func (c WebhookConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMS) * time.Millisecond
}

// StorageConfig holds the data layer configuration
type StorageConfig struct {
	DataDir  string `yaml:"data_dir"`
	Database string `yaml:"database"` // sqlite file for webhooks + campaigns
}

// ThrottleConfig holds the outbound send throttle configuration.
// The throttle is disabled when RedisURL is empty.
type ThrottleConfig struct {
	RedisURL  string `yaml:"redis_url"`
	PerMinute int    `yaml:"per_minute"`
	PerHour   int    `yaml:"per_hour"`
	PerDay    int    `yaml:"per_day"`
}

// Enabled reports whether the redis-backed throttle should be used
func (c ThrottleConfig) Enabled() bool { return c.RedisURL != "" }

// CampaignConfig holds bulk campaign sending configuration
type CampaignConfig struct {
	MinDelaySeconds int `yaml:"min_delay_seconds"`
	MaxDelaySeconds int `yaml:"max_delay_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.WhatsApp.SessionDB == "" {
		cfg.WhatsApp.SessionDB = "data/session.db"
	}
	if cfg.WhatsApp.DeviceName == "" {
		cfg.WhatsApp.DeviceName = "WaQtor"
	}
	if cfg.WhatsApp.LogLevel == "" {
		cfg.WhatsApp.LogLevel = "ERROR"
	}
	if cfg.SmartBot.RulesFile == "" {
		cfg.SmartBot.RulesFile = "data/rules.json"
	}
	if cfg.SmartBot.HistoryFile == "" {
		cfg.SmartBot.HistoryFile = "data/reply_history.json"
	}
	if cfg.SmartBot.FuzzyThreshold == 0 {
		cfg.SmartBot.FuzzyThreshold = 70
	}
	if cfg.Webhook.TimeoutSeconds == 0 {
		cfg.Webhook.TimeoutSeconds = 10
	}
	if cfg.Webhook.RetryAttempts == 0 {
		cfg.Webhook.RetryAttempts = 3
	}
	if cfg.Webhook.RetryDelayMS == 0 {
		cfg.Webhook.RetryDelayMS = 1000
	}
	if cfg.Webhook.LogCapacity == 0 {
		cfg.Webhook.LogCapacity = 1000
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.Database == "" {
		cfg.Storage.Database = "data/waqtor.db"
	}
	if cfg.Throttle.PerMinute == 0 {
		cfg.Throttle.PerMinute = 20
	}
	if cfg.Throttle.PerHour == 0 {
		cfg.Throttle.PerHour = 300
	}
	if cfg.Throttle.PerDay == 0 {
		cfg.Throttle.PerDay = 2000
	}
	if cfg.Campaign.MinDelaySeconds == 0 {
		cfg.Campaign.MinDelaySeconds = 3
	}
	if cfg.Campaign.MaxDelaySeconds == 0 {
		cfg.Campaign.MaxDelaySeconds = 8
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("WAQTOR_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Throttle.RedisURL = v
	}
	if v := os.Getenv("WAQTOR_DATABASE"); v != "" {
		cfg.Storage.Database = v
	}
	if v := os.Getenv("WAQTOR_SESSION_DB"); v != "" {
		cfg.WhatsApp.SessionDB = v
	}
	if v := os.Getenv("WAQTOR_RULES_FILE"); v != "" {
		cfg.SmartBot.RulesFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
