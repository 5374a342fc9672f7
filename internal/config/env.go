package config

import (
	"net/textproto"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnvOverrides applies environment variable overrides to the config.
// Environment variables take precedence over YAML configuration.
// All env vars use the FOLIO_ prefix for namespace isolation.
func (c *Config) applyEnvOverrides() {
	// Server config
	setIfEnv(&c.Server.Address, "FOLIO_SERVER_ADDRESS")
	setIfEnv(&c.Server.AdminAPIKey, "FOLIO_ADMIN_API_KEY")

	// Gateway config
	setIfEnv(&c.Gateway.WebhookSecret, "FOLIO_GATEWAY_WEBHOOK_SECRET")
	setIfEnv(&c.Gateway.PlatformSellerID, "FOLIO_GATEWAY_PLATFORM_SELLER_ID")
	setIfEnv(&c.Gateway.Currency, "FOLIO_GATEWAY_CURRENCY")
	if v := os.Getenv("FOLIO_GATEWAY_PLATFORM_FEE_BPS"); v != "" {
		if bps, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Gateway.PlatformFeeBps = bps
		}
	}

	// Storage config
	setIfEnv(&c.Storage.Backend, "FOLIO_STORAGE_BACKEND")
	setIfEnv(&c.Storage.MongoDBURL, "FOLIO_STORAGE_MONGODB_URL")
	setIfEnv(&c.Storage.MongoDBDatabase, "FOLIO_STORAGE_MONGODB_DATABASE")
	setIfEnv(&c.Storage.PostgresURL, "FOLIO_STORAGE_POSTGRES_URL")

	// Notification config
	setIfEnv(&c.Notifications.SaleURL, "FOLIO_NOTIFY_SALE_URL")
	setDurationIfEnv(&c.Notifications.Timeout, "FOLIO_NOTIFY_TIMEOUT")

	// Notification headers (FOLIO_NOTIFY_HEADER_*), e.g.
	// FOLIO_NOTIFY_HEADER_AUTHORIZATION=Bearer xyz -> Authorization: Bearer xyz
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "FOLIO_NOTIFY_HEADER_") {
			continue
		}
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimPrefix(parts[0], "FOLIO_NOTIFY_HEADER_")
		if name == "" {
			continue
		}
		if c.Notifications.Headers == nil {
			c.Notifications.Headers = make(map[string]string)
		}
		headerName := textproto.CanonicalMIMEHeaderKey(strings.ReplaceAll(name, "_", "-"))
		c.Notifications.Headers[headerName] = parts[1]
	}
}

// setIfEnv sets a string pointer to the environment variable value if it exists.
func setIfEnv(target *string, key string) {
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

// setDurationIfEnv sets a Duration pointer from an environment variable.
// Uses time.ParseDuration to parse values like "5m", "120s", "1h30m".
func setDurationIfEnv(target *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			*target = Duration{Duration: dur}
		}
	}
}
