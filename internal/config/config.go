// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	TokenEndpoint     string
	OAuthClientID     string
	OAuthClientSecret string
	IMAPHost          string
	IMAPPort          int
	RefreshMargin     time.Duration
	FetchTimeout      time.Duration
	SyncInterval      time.Duration
	ListenAddr        string
	DBPath            string
	SecretKey         []byte
}

// HasOAuthCredentials returns true when the token endpoint and client
// credentials are all configured. Without them token refresh is
// impossible and the sync loop stays disabled.
func (c *Config) HasOAuthCredentials() bool {
	return c.TokenEndpoint != "" && c.OAuthClientID != "" && c.OAuthClientSecret != ""
}

// Load reads configuration from environment variables and returns a validated Config.
// OAuth client credentials (MAILLEDGER_TOKEN_ENDPOINT, MAILLEDGER_OAUTH_CLIENT_ID,
// MAILLEDGER_OAUTH_CLIENT_SECRET) are required for syncing but the app starts
// without them so accounts can be registered first. MAILLEDGER_SECRET_KEY is a
// 64-char hex string (32 bytes) used to encrypt stored tokens; when unset,
// account registration is rejected at the store layer.
// Optional variables with defaults: MAILLEDGER_IMAP_HOST (imap.gmail.com),
// MAILLEDGER_IMAP_PORT (993), MAILLEDGER_REFRESH_MARGIN (5m),
// MAILLEDGER_FETCH_TIMEOUT (30s), MAILLEDGER_SYNC_INTERVAL (24h, 0 disables),
// MAILLEDGER_LISTEN_ADDR (127.0.0.1:8080), MAILLEDGER_DB_PATH (mailledger.db).
func Load() (*Config, error) {
	cfg := &Config{
		TokenEndpoint:     os.Getenv("MAILLEDGER_TOKEN_ENDPOINT"),
		OAuthClientID:     os.Getenv("MAILLEDGER_OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("MAILLEDGER_OAUTH_CLIENT_SECRET"),
		IMAPHost:          "imap.gmail.com",
		IMAPPort:          993,
		RefreshMargin:     5 * time.Minute,
		FetchTimeout:      30 * time.Second,
		SyncInterval:      24 * time.Hour,
		ListenAddr:        "127.0.0.1:8080",
		DBPath:            "mailledger.db",
	}

	if v, ok := os.LookupEnv("MAILLEDGER_IMAP_HOST"); ok && v != "" {
		cfg.IMAPHost = v
	}

	if v, ok := os.LookupEnv("MAILLEDGER_IMAP_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("MAILLEDGER_IMAP_PORT has invalid port %q", v)
		}
		cfg.IMAPPort = port
	}

	for _, d := range []struct {
		name string
		dst  *time.Duration
	}{
		{"MAILLEDGER_REFRESH_MARGIN", &cfg.RefreshMargin},
		{"MAILLEDGER_FETCH_TIMEOUT", &cfg.FetchTimeout},
		{"MAILLEDGER_SYNC_INTERVAL", &cfg.SyncInterval},
	} {
		if v, ok := os.LookupEnv(d.name); ok {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("%s has invalid duration %q: %w", d.name, v, err)
			}
			*d.dst = parsed
		}
	}

	if cfg.RefreshMargin < 0 {
		return nil, fmt.Errorf("MAILLEDGER_REFRESH_MARGIN must not be negative")
	}

	if v, ok := os.LookupEnv("MAILLEDGER_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("MAILLEDGER_DB_PATH"); ok {
		cfg.DBPath = v
	}

	if v, ok := os.LookupEnv("MAILLEDGER_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("MAILLEDGER_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("MAILLEDGER_SECRET_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
		}
		cfg.SecretKey = key
	}

	return cfg, nil
}
