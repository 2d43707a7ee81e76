// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	LogLevel       slog.Level
	AllowedOrigins []string
	Journal        JournalConfig
	DialTimeout    time.Duration
	ReadLimit      int64
	SendTimeout    time.Duration
	ConnectWait    time.Duration // how long POST /connect waits for the attempt to settle
}

// JournalConfig controls the SQLite transcript journal.
type JournalConfig struct {
	Enabled   bool
	Path      string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		LogLevel:       getEnvLevel("LOG_LEVEL", slog.LevelInfo),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		Journal: JournalConfig{
			Enabled:   getEnvBool("JOURNAL_ENABLED", true),
			Path:      getEnv("JOURNAL_PATH", "./data/wsdeck.db"),
			QueueSize: getEnvInt("JOURNAL_QUEUE_SIZE", 1000),
		},
		DialTimeout: getEnvDuration("DIAL_TIMEOUT", 15*time.Second),
		ReadLimit:   int64(getEnvInt("READ_LIMIT", 1<<20)),
		SendTimeout: getEnvDuration("SEND_TIMEOUT", 10*time.Second),
		ConnectWait: getEnvDuration("CONNECT_WAIT", 20*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGINS cannot be empty")
	}
	if c.Journal.Enabled {
		if c.Journal.Path == "" {
			return fmt.Errorf("JOURNAL_PATH cannot be empty when the journal is enabled")
		}
		if c.Journal.QueueSize <= 0 {
			return fmt.Errorf("JOURNAL_QUEUE_SIZE must be > 0")
		}
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("DIAL_TIMEOUT must be > 0")
	}
	if c.ReadLimit <= 0 {
		return fmt.Errorf("READ_LIMIT must be > 0")
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("SEND_TIMEOUT must be > 0")
	}
	if c.ConnectWait <= 0 {
		return fmt.Errorf("CONNECT_WAIT must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(value))); err != nil {
		return fallback
	}
	return level
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
