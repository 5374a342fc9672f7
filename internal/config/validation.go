package config

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FolioMarket/server/internal/money"
)

// finalize applies defaults and validates the configuration.
func (c *Config) finalize() error {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Environment == "" {
		c.Logging.Environment = "production"
	}
	if c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	if c.Gateway.Currency == "" {
		c.Gateway.Currency = "NGN"
	}
	if c.Gateway.PlatformFeeBps == 0 {
		c.Gateway.PlatformFeeBps = 1500
	}
	if c.Notifications.Timeout.Duration <= 0 {
		c.Notifications.Timeout = Duration{Duration: 5 * time.Second}
	}
	if c.Notifications.Headers == nil {
		c.Notifications.Headers = make(map[string]string)
	}
	if c.Notifications.Retry.MaxAttempts <= 0 {
		c.Notifications.Retry.MaxAttempts = 5
	}
	if c.Notifications.Retry.Multiplier <= 0 {
		c.Notifications.Retry.Multiplier = 2.0
	}

	return c.validate()
}

// validate checks that required configuration fields are set correctly.
func (c *Config) validate() error {
	var errs []string

	// The webhook secret is the only thing standing between the open
	// internet and the settlement pipeline. Refuse to start without it.
	if c.Gateway.WebhookSecret == "" {
		errs = append(errs, "gateway.webhook_secret is required")
	}

	if c.Gateway.PlatformFeeBps < 0 || c.Gateway.PlatformFeeBps >= 10000 {
		errs = append(errs, fmt.Sprintf("gateway.platform_fee_bps must be in [0, 10000), got %d", c.Gateway.PlatformFeeBps))
	}

	if _, err := money.GetAsset(c.Gateway.Currency); err != nil {
		errs = append(errs, fmt.Sprintf("gateway.currency %q is not supported (one of: %s)",
			c.Gateway.Currency, strings.Join(money.SupportedAssets(), ", ")))
	}

	switch c.Storage.Backend {
	case "", "memory":
	case "mongodb":
		if c.Storage.MongoDBURL == "" {
			errs = append(errs, "storage.mongodb_url is required when backend is 'mongodb'")
		}
		if c.Storage.MongoDBDatabase == "" {
			errs = append(errs, "storage.mongodb_database is required when backend is 'mongodb'")
		}
	case "postgres":
		if c.Storage.PostgresURL == "" {
			errs = append(errs, "storage.postgres_url is required when backend is 'postgres'")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q is not one of memory, mongodb, postgres", c.Storage.Backend))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ApplyPostgresPoolSettings applies connection pool settings to a database connection.
// If pool config is not specified, applies sensible defaults.
func ApplyPostgresPoolSettings(db *sql.DB, pool PostgresPoolConfig) {
	maxOpen := pool.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 25
	}

	maxIdle := pool.MaxIdleConns
	if maxIdle <= 0 {
		maxIdle = 5
	}
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}

	maxLifetime := pool.ConnMaxLifetime.Duration
	if maxLifetime <= 0 {
		maxLifetime = 5 * time.Minute
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)
}
