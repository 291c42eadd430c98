// Package config loads service settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all service settings.
type Config struct {
	AppointmentURL string

	TelegramToken   string
	TelegramAPIBase string
	WebhookSecret   string

	// State backend, in order of precedence: Redis, Cloud Storage, local directory.
	RedisAddr             string
	RedisPassword         string
	RedisPrefix           string
	StorageBucket         string
	GoogleCredentialsJSON string
	LocalStorage          string

	Port     string
	Timezone string
	LogLevel string

	CheckInterval time.Duration
	RedisDB       int
	WindowDays    int
	PollLimit     int

	PersistBeforeNotify bool
	RetryParseErrors    bool
}

// Load reads settings from envFile (if it exists) overlaid by environment variables.
func Load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetDefault("TELEGRAM_API_BASE", "https://api.telegram.org")
	v.SetDefault("PORT", "8080")
	v.SetDefault("CHECK_INTERVAL", "10m")
	v.SetDefault("WINDOW_DAYS", 30)
	v.SetDefault("POLL_LIMIT", 30)
	v.SetDefault("RETRY_PARSE_ERRORS", true)
	v.SetDefault("LOG_LEVEL", "info")
	v.AutomaticEnv()

	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			v.SetConfigFile(envFile)
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read %s: %w", envFile, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		AppointmentURL:        strings.TrimSpace(v.GetString("APPOINTMENT_URL")),
		TelegramToken:         v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramAPIBase:       v.GetString("TELEGRAM_API_BASE"),
		WebhookSecret:         v.GetString("TELEGRAM_WEBHOOK_SECRET"),
		RedisAddr:             v.GetString("REDIS_ADDR"),
		RedisPassword:         v.GetString("REDIS_PASSWORD"),
		RedisPrefix:           v.GetString("REDIS_PREFIX"),
		RedisDB:               v.GetInt("REDIS_DB"),
		StorageBucket:         v.GetString("STORAGE_BUCKET"),
		GoogleCredentialsJSON: v.GetString("GOOGLE_CREDENTIALS_JSON"),
		LocalStorage:          v.GetString("LOCAL_STORAGE"),
		Port:                  v.GetString("PORT"),
		Timezone:              v.GetString("TIMEZONE"),
		LogLevel:              v.GetString("LOG_LEVEL"),
		CheckInterval:         v.GetDuration("CHECK_INTERVAL"),
		WindowDays:            v.GetInt("WINDOW_DAYS"),
		PollLimit:             v.GetInt("POLL_LIMIT"),
		PersistBeforeNotify:   v.GetBool("PERSIST_BEFORE_NOTIFY"),
		RetryParseErrors:      v.GetBool("RETRY_PARSE_ERRORS"),
	}

	// Default to local development mode if no remote backend is configured
	if cfg.RedisAddr == "" && cfg.StorageBucket == "" && cfg.LocalStorage == "" {
		cfg.LocalStorage = "./data"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required settings are present and sane.
func (c *Config) Validate() error {
	if c.AppointmentURL == "" {
		return errors.New("APPOINTMENT_URL environment variable required")
	}
	u, err := url.Parse(c.AppointmentURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("APPOINTMENT_URL must be an absolute http(s) URL, got %q", c.AppointmentURL)
	}
	if c.WindowDays < 1 {
		return fmt.Errorf("WINDOW_DAYS must be at least 1, got %d", c.WindowDays)
	}
	if c.CheckInterval < 0 {
		return fmt.Errorf("CHECK_INTERVAL must not be negative, got %s", c.CheckInterval)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the time zone used to decide what "today" is.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
