// Package config provides configuration for the planner bot.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ivandudin29/tg-notes-bot/internal/render"
)

// Session backends
const (
	SessionBackendMemory = "memory"
	SessionBackendSQLite = "sqlite"
)

// Outbound modes
const (
	OutboundHub     = "hub"
	OutboundWebhook = "webhook"
	OutboundBoth    = "both"
)

// Log levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
)

// Config holds the bot configuration.
type Config struct {
	// Server settings
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080"` // webhook, read API, /health
	WSPort   int `env:"WS_PORT"   envDefault:"8090"` // websocket chat endpoint

	// Database
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:planbot.db?cache=shared&mode=rwc"`

	// Workflow sessions
	SessionBackend string        `env:"SESSION_BACKEND" envDefault:"memory"`
	SessionTTL     time.Duration `env:"SESSION_TTL"     envDefault:"0s"`

	// Reminders
	ReminderScanInterval time.Duration `env:"REMINDER_SCAN_INTERVAL" envDefault:"5m"`
	ReminderHorizon      time.Duration `env:"REMINDER_HORIZON"       envDefault:"24h"`
	ReminderSendDelay    time.Duration `env:"REMINDER_SEND_DELAY"    envDefault:"100ms"`
	ReminderMode         string        `env:"REMINDER_MODE"          envDefault:"repeat"`
	ReminderPolicyFile   string        `env:"REMINDER_POLICY_FILE"`

	// Outbound delivery
	OutboundMode       string `env:"OUTBOUND_MODE"        envDefault:"hub"`
	OutboundWebhookURL string `env:"OUTBOUND_WEBHOOK_URL"`

	// Auth settings
	APIKey string `env:"API_KEY"` // static key checked on websocket hello; empty disables the check

	// Presentation
	Locale   string `env:"LOCALE"   envDefault:"en"`
	Timezone string `env:"TIMEZONE" envDefault:"Local"`

	// WebSocket settings
	PingInterval   time.Duration `env:"WS_PING_INTERVAL"    envDefault:"30s"`
	WriteTimeout   time.Duration `env:"WS_WRITE_TIMEOUT"    envDefault:"10s"`
	ReadTimeout    time.Duration `env:"WS_READ_TIMEOUT"     envDefault:"60s"`
	MaxMessageSize int64         `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`

	// Logging: debug adds file:line to log lines and logs every reminder scan and send
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Location is Timezone resolved by Load.
	Location *time.Location `env:"-"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, port := range map[string]int{"HTTP_PORT": c.HTTPPort, "WS_PORT": c.WSPort} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535, got %d", name, port)
		}
	}
	if c.HTTPPort == c.WSPort {
		return fmt.Errorf("HTTP_PORT and WS_PORT must differ, both are %d", c.HTTPPort)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}

	switch c.SessionBackend {
	case SessionBackendMemory, SessionBackendSQLite:
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q, got %q", SessionBackendMemory, SessionBackendSQLite, c.SessionBackend)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL must not be negative, got %s", c.SessionTTL)
	}

	if c.ReminderScanInterval <= 0 {
		return fmt.Errorf("REMINDER_SCAN_INTERVAL must be positive, got %s", c.ReminderScanInterval)
	}
	if c.ReminderHorizon <= 0 {
		return fmt.Errorf("REMINDER_HORIZON must be positive, got %s", c.ReminderHorizon)
	}
	if c.ReminderSendDelay < 0 {
		return fmt.Errorf("REMINDER_SEND_DELAY must not be negative, got %s", c.ReminderSendDelay)
	}
	if c.ReminderMode != "repeat" && c.ReminderMode != "once" {
		return fmt.Errorf("REMINDER_MODE must be \"repeat\" or \"once\", got %q", c.ReminderMode)
	}

	switch c.OutboundMode {
	case OutboundHub:
	case OutboundWebhook, OutboundBoth:
		if strings.TrimSpace(c.OutboundWebhookURL) == "" {
			return fmt.Errorf("OUTBOUND_WEBHOOK_URL is required when OUTBOUND_MODE is %q", c.OutboundMode)
		}
	default:
		return fmt.Errorf("OUTBOUND_MODE must be one of hub, webhook, both, got %q", c.OutboundMode)
	}

	if !slices.Contains(render.Locales(), c.Locale) {
		return fmt.Errorf("LOCALE must be one of %v, got %q", render.Locales(), c.Locale)
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	c.Location = loc

	if c.PingInterval <= 0 || c.WriteTimeout <= 0 || c.ReadTimeout <= 0 {
		return fmt.Errorf("websocket timeouts must be positive")
	}
	if c.ReadTimeout <= c.PingInterval {
		return fmt.Errorf("WS_READ_TIMEOUT (%s) must exceed WS_PING_INTERVAL (%s)", c.ReadTimeout, c.PingInterval)
	}
	if c.MaxMessageSize < 1 {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be positive, got %d", c.MaxMessageSize)
	}

	if c.LogLevel != LogLevelDebug && c.LogLevel != LogLevelInfo {
		return fmt.Errorf("LOG_LEVEL must be %q or %q, got %q", LogLevelDebug, LogLevelInfo, c.LogLevel)
	}
	return nil
}

// Debug reports whether debug logging is enabled.
func (c *Config) Debug() bool {
	return c.LogLevel == LogLevelDebug
}
