// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/aristath/marketcal/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Port            int
	LogLevel        string
	DevMode         bool
	CalendarsFile   string // Optional YAML file with extra or overriding calendars
	DefaultExchange string // Used by status endpoints when no exchange is given
	Monitor         MonitorConfig
	// How many days ahead status queries look for the next open
	StatusLookaheadDays int
}

// MonitorConfig controls the session monitor job.
type MonitorConfig struct {
	Enabled  bool
	Schedule string // cron expression with a seconds field
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnvAsInt("GO_PORT", 8001),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		CalendarsFile:   getEnv("CALENDARS_FILE", ""),
		DefaultExchange: strings.ToUpper(getEnv("DEFAULT_EXCHANGE", "XNYS")),
		Monitor: MonitorConfig{
			Enabled:  getEnvAsBool("MONITOR_ENABLED", true),
			Schedule: getEnv("MONITOR_SCHEDULE", "0 * * * * *"),
		},
		StatusLookaheadDays: getEnvAsInt("STATUS_LOOKAHEAD_DAYS", 14),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the loaded values
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid GO_PORT %d", c.Port)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if c.StatusLookaheadDays < 1 {
		return fmt.Errorf("invalid STATUS_LOOKAHEAD_DAYS %d", c.StatusLookaheadDays)
	}
	if c.Monitor.Enabled {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.Monitor.Schedule); err != nil {
			return fmt.Errorf("invalid MONITOR_SCHEDULE: %w", err)
		}
	}
	if c.CalendarsFile != "" {
		if _, err := os.Stat(c.CalendarsFile); err != nil {
			return fmt.Errorf("CALENDARS_FILE: %w", err)
		}
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
