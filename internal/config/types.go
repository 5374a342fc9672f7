package config

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support string based YAML decoding.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration values expressed as Go-style strings or numbers interpreted as seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		raw := strings.TrimSpace(value.Value)
		if raw == "" {
			d.Duration = 0
			return nil
		}
		parsed, err := time.ParseDuration(raw)
		if err == nil {
			d.Duration = parsed
			return nil
		}
		secs, convErr := time.ParseDuration(fmt.Sprintf("%ss", raw))
		if convErr == nil {
			d.Duration = secs
			return nil
		}
		return fmt.Errorf("invalid duration value %q: %w", raw, err)
	default:
		return fmt.Errorf("unsupported duration node kind: %v", value.Kind)
	}
}

// MarshalYAML renders the duration as a string to keep config edits human-friendly.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds application level configuration aggregated from file and environment variables.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Gateway       GatewayConfig       `yaml:"gateway"`
	Storage       StorageConfig       `yaml:"storage"`
	Notifications NotificationsConfig `yaml:"notifications"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address            string   `yaml:"address"`
	ReadTimeout        Duration `yaml:"read_timeout"`
	WriteTimeout       Duration `yaml:"write_timeout"`
	IdleTimeout        Duration `yaml:"idle_timeout"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
	// AdminAPIKey protects the /metrics endpoint and admin reads
	// (transaction verification, ledger snapshots). Empty disables protection.
	AdminAPIKey string `yaml:"admin_api_key"`
}

// GatewayConfig holds payment gateway webhook configuration.
type GatewayConfig struct {
	// WebhookSecret is the pre-shared secret the gateway echoes back in the
	// X-Webhook-Signature header. It is the sole authentication boundary of
	// the settlement pipeline.
	WebhookSecret string `yaml:"webhook_secret"`
	// PlatformSellerID identifies books the platform itself lists. Sales of
	// those books carry no platform fee.
	PlatformSellerID string `yaml:"platform_seller_id"`
	// PlatformFeeBps is the platform's cut for user-listed books in basis
	// points (default 1500 = 15%).
	PlatformFeeBps int64 `yaml:"platform_fee_bps"`
	// Currency is the settlement currency code (default "NGN").
	Currency string `yaml:"currency"`
}

// StorageConfig holds storage backend configuration.
type StorageConfig struct {
	Backend         string             `yaml:"backend"` // "memory", "mongodb", or "postgres"
	MongoDBURL      string             `yaml:"mongodb_url"`
	MongoDBDatabase string             `yaml:"mongodb_database"`
	PostgresURL     string             `yaml:"postgres_url"`
	PostgresPool    PostgresPoolConfig `yaml:"postgres_pool"`
}

// PostgresPoolConfig holds PostgreSQL connection pool settings.
type PostgresPoolConfig struct {
	MaxOpenConns    int      `yaml:"max_open_conns"`    // default: 25
	MaxIdleConns    int      `yaml:"max_idle_conns"`    // default: 5
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"` // default: 5m
}

// NotificationsConfig holds seller sale-notification configuration.
type NotificationsConfig struct {
	// SaleURL is the endpoint that relays sale summaries to sellers
	// (typically an email service). Empty disables notifications.
	SaleURL string            `yaml:"sale_url"`
	Headers map[string]string `yaml:"headers"`
	Timeout Duration          `yaml:"timeout"`
	Retry   RetryConfig       `yaml:"retry"`
	Breaker BreakerConfig     `yaml:"breaker"`
}

// RetryConfig holds notification retry configuration.
type RetryConfig struct {
	Enabled         bool     `yaml:"enabled"`          // default: true
	MaxAttempts     int      `yaml:"max_attempts"`     // default: 5
	InitialInterval Duration `yaml:"initial_interval"` // default: 1s
	MaxInterval     Duration `yaml:"max_interval"`     // default: 2m
	Multiplier      float64  `yaml:"multiplier"`       // default: 2.0
}

// BreakerConfig configures the circuit breaker around the notification endpoint.
type BreakerConfig struct {
	Enabled             bool     `yaml:"enabled"`              // default: true
	MaxRequests         uint32   `yaml:"max_requests"`         // half-open allowance (default: 3)
	Interval            Duration `yaml:"interval"`             // closed-state stats reset (default: 60s)
	Timeout             Duration `yaml:"timeout"`              // open-state duration (default: 30s)
	ConsecutiveFailures uint32   `yaml:"consecutive_failures"` // trip threshold (default: 5)
	FailureRatio        float64  `yaml:"failure_ratio"`        // trip ratio (default: 0.5)
	MinRequests         uint32   `yaml:"min_requests"`         // minimum sample before ratio applies (default: 10)
}

// LoggingConfig holds structured logging configuration.
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error (default: info)
	Format      string `yaml:"format"`      // json, console (default: json)
	Environment string `yaml:"environment"` // production, staging, development
}

// RateLimitConfig holds rate limiting configuration.
// The webhook endpoint is open to the internet by design, so rate limiting
// is the only traffic control in front of signature verification.
type RateLimitConfig struct {
	GlobalEnabled bool     `yaml:"global_enabled"`
	GlobalLimit   int      `yaml:"global_limit"`
	GlobalWindow  Duration `yaml:"global_window"`

	PerIPEnabled bool     `yaml:"per_ip_enabled"`
	PerIPLimit   int      `yaml:"per_ip_limit"`
	PerIPWindow  Duration `yaml:"per_ip_window"`
}
