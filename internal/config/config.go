// Package config builds the process configuration once at startup:
// defaults, then an optional YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	SlackBotToken   string `koanf:"slack_bot_token"`
	SlackAppToken   string `koanf:"slack_app_token"`
	AnthropicAPIKey string `koanf:"anthropic_api_key"`
	OpenAIAPIKey    string `koanf:"openai_api_key"`

	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`

	FinanceChannelID     string `koanf:"finance_channel_id"`
	NavanChannelID       string `koanf:"navan_channel_id"`
	TestMode             bool   `koanf:"test_mode"`
	TestFinanceChannelID string `koanf:"test_finance_channel_id"`
	TestNavanChannelID   string `koanf:"test_navan_channel_id"`

	Port            int           `koanf:"port"`
	LogLevel        string        `koanf:"log_level"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	HistoryDays     int           `koanf:"history_days"`

	// Optional collaborators; empty disables each.
	NatsURL     string `koanf:"nats_url"`
	NatsToken   string `koanf:"nats_token"`
	DatabaseURL string `koanf:"database_url"`

	// Future Navan integration toggle. Off until API access exists.
	NavanEnabled   bool   `koanf:"navan_enabled"`
	NavanAPIKey    string `koanf:"navan_api_key"`
	NavanAPISecret string `koanf:"navan_api_secret"`
}

// envKeys maps recognized environment variables to config keys. Variables
// outside this table are ignored.
var envKeys = map[string]string{
	"SLACK_BOT_TOKEN":         "slack_bot_token",
	"SLACK_APP_TOKEN":         "slack_app_token",
	"ANTHROPIC_API_KEY":       "anthropic_api_key",
	"OPENAI_API_KEY":          "openai_api_key",
	"ASKBOT_PROVIDER":         "provider",
	"ASKBOT_MODEL":            "model",
	"ASK_FINANCE_CHANNEL_ID":  "finance_channel_id",
	"ASK_NAVAN_CHANNEL_ID":    "navan_channel_id",
	"TEST_MODE":               "test_mode",
	"TEST_FINANCE_CHANNEL_ID": "test_finance_channel_id",
	"TEST_NAVAN_CHANNEL_ID":   "test_navan_channel_id",
	"ASKBOT_PORT":             "port",
	"LOG_LEVEL":               "log_level",
	"ASKBOT_REFRESH_INTERVAL": "refresh_interval",
	"ASKBOT_HISTORY_DAYS":     "history_days",
	"NATS_URL":                "nats_url",
	"NATS_TOKEN":              "nats_token",
	"DATABASE_URL":            "database_url",
	"NAVAN_ENABLED":           "navan_enabled",
	"NAVAN_API_KEY":           "navan_api_key",
	"NAVAN_API_SECRET":        "navan_api_secret",
}

func Default() *Config {
	return &Config{
		Provider:        "anthropic",
		Model:           "claude-sonnet-4-20250514",
		Port:            8640,
		LogLevel:        "info",
		RefreshInterval: time.Hour,
		HistoryDays:     30,
	}
}

// Load reads configuration from an optional YAML file at path, then
// overlays environment variables. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s] // unknown variables map to "" and are dropped
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration is complete enough to start.
func (c *Config) Validate() error {
	if c.SlackBotToken == "" {
		return fmt.Errorf("SLACK_BOT_TOKEN is required")
	}
	if c.SlackAppToken == "" {
		return fmt.Errorf("SLACK_APP_TOKEN is required")
	}

	switch c.Provider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
	default:
		return fmt.Errorf("invalid provider %q: must be anthropic or openai", c.Provider)
	}

	if c.FinanceChannelID == "" || c.NavanChannelID == "" {
		return fmt.Errorf("ASK_FINANCE_CHANNEL_ID and ASK_NAVAN_CHANNEL_ID are required")
	}
	if c.TestMode && (c.TestFinanceChannelID == "" || c.TestNavanChannelID == "") {
		return fmt.Errorf("TEST_MODE requires TEST_FINANCE_CHANNEL_ID and TEST_NAVAN_CHANNEL_ID")
	}

	if c.RefreshInterval <= 0 {
		return fmt.Errorf("refresh_interval must be positive")
	}
	if c.HistoryDays <= 0 {
		return fmt.Errorf("history_days must be positive")
	}
	if c.NavanEnabled && (c.NavanAPIKey == "" || c.NavanAPISecret == "") {
		return fmt.Errorf("NAVAN_ENABLED requires NAVAN_API_KEY and NAVAN_API_SECRET")
	}
	return nil
}

// APIKey returns the credential for the selected provider.
func (c *Config) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.AnthropicAPIKey
}

// HistoryWindow is the retrieval lookback as a duration.
func (c *Config) HistoryWindow() time.Duration {
	return time.Duration(c.HistoryDays) * 24 * time.Hour
}
