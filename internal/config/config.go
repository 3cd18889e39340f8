package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Telegram
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN,required"`

	// Google OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID,required"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET,required"`
	OAuthRedirectURL   string `env:"OAUTH_REDIRECT_URL,required"`

	// Persistence
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// Polling
	NotifyLimit     int           `env:"NOTIFY_LIMIT" envDefault:"30"`
	PollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"5m"`
	IMAPDialTimeout time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"30s"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// HTTP server
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.NotifyLimit <= 0 {
		return nil, fmt.Errorf("NOTIFY_LIMIT must be positive, got %d", cfg.NotifyLimit)
	}
	if cfg.PollInterval < time.Minute {
		return nil, fmt.Errorf("POLL_INTERVAL must be at least 1m, got %s", cfg.PollInterval)
	}

	return cfg, nil
}
