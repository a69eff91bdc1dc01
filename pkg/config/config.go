package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the sync daemon
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Stream    StreamConfig    `mapstructure:"stream"`
	API       APIConfig       `mapstructure:"api"`
	Watchlist WatchlistConfig `mapstructure:"watchlist"`
}

type AppConfig struct {
	Env string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level string `mapstructure:"level"` // "debug", "info", ...
}

type StreamConfig struct {
	// URL of the push endpoint. Empty means the platform has no streaming
	// capability and the client stays disconnected.
	URL string `mapstructure:"url"`
}

type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
	// Quote-class calls are short; advisory-class calls share the same
	// cancellation plumbing but are allowed to run much longer.
	Timeout         time.Duration `mapstructure:"timeout"`
	AdvisoryTimeout time.Duration `mapstructure:"advisory_timeout"`
}

type WatchlistConfig struct {
	Symbols      []string      `mapstructure:"symbols"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LoadConfig reads configuration from .env file, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Load .env file into System Environment (if it exists)
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	// 2. Set Defaults (12-Factor App: Dev/Prod Parity)
	v.SetDefault("app.env", "local")
	v.SetDefault("logger.level", "info")

	v.SetDefault("stream.url", "ws://localhost:8090/stream")
	v.SetDefault("api.base_url", "http://localhost:8090")
	v.SetDefault("api.timeout", "5s")
	v.SetDefault("api.advisory_timeout", "60s")

	v.SetDefault("watchlist.symbols", []string{"AAPL", "GOOG", "TSLA", "AMZN"})
	v.SetDefault("watchlist.poll_interval", "120s")

	// 3. Configure Viper to read Environment Variables
	// This maps dot-notation to underscores (e.g., "stream.url" -> "STREAM_URL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Explicitly Bind Env Vars to Keys
	// This is crucial for Viper to map flat Env Vars (STREAM_URL) to nested structs (Stream.URL)
	bindEnv(v, "app.env", "logger.level")
	bindEnv(v, "stream.url")
	bindEnv(v, "api.base_url", "api.timeout", "api.advisory_timeout")
	bindEnv(v, "watchlist.symbols", "watchlist.poll_interval")

	// 5. Unmarshal into Struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %v", err)
	}

	// 6. Basic Validation
	if cfg.API.BaseURL == "" {
		return nil, fmt.Errorf("api base_url cannot be empty")
	}
	if len(cfg.Watchlist.Symbols) == 0 {
		return nil, fmt.Errorf("watchlist symbols cannot be empty")
	}

	return &cfg, nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
