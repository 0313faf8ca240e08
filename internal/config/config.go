// Package config loads service configuration from the environment,
// with an optional config file for local development.
package config

import (
	"github.com/spf13/viper"
)

// Config holds everything the service reads at startup.
type Config struct {
	ServerAddr string `mapstructure:"SERVER_ADDR"`

	// DatabaseURL selects the PostgreSQL backend when set; otherwise
	// the service runs on SQLite at DBPath.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBPath      string `mapstructure:"DB_PATH"`

	OpenAIAPIKey  string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel   string `mapstructure:"OPENAI_MODEL"`
	OpenAIBaseURL string `mapstructure:"OPENAI_BASE_URL"`

	PrebidServerURL string `mapstructure:"PREBID_SERVER_URL"`

	// DefaultPublisher names the publisher that manual analysis
	// submissions attach to. It is seeded at startup.
	DefaultPublisher string `mapstructure:"DEFAULT_PUBLISHER"`

	// PollEnabled starts the background auto-ingest poller.
	PollEnabled bool `mapstructure:"POLL_ENABLED"`
}

// Load reads configuration from the environment and, when present,
// from a .env file in the working directory.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // the file is optional
	v.AutomaticEnv()

	v.SetDefault("SERVER_ADDR", ":8080")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_PATH", "modulr.db")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_MODEL", "gpt-4o")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("PREBID_SERVER_URL", "http://localhost:8000/openrtb2/auction")
	v.SetDefault("DEFAULT_PUBLISHER", "Default Publisher")
	v.SetDefault("POLL_ENABLED", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
