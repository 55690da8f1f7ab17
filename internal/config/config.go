// Package config defines the top-level configuration for the nftpay backend
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by NFTPAY_* environment variables.
type Config struct {
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Recon    ReconConfig    `toml:"recon"`
	IMAP     IMAPConfig     `toml:"imap"`
	UPI      UPIConfig      `toml:"upi"`
	SMTP     SMTPConfig     `toml:"smtp"`
	Notify   NotifyConfig   `toml:"notify"`
	Server   ServerConfig   `toml:"server"`
	LogLevel string         `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis backs the cross-tick
// seen-signal cache and the checkout reservation lock. When Addr is empty
// the application falls back to in-process equivalents.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ReconSource selects where candidate payment signals come from.
const (
	ReconSourceNone        = "none"
	ReconSourceMailboxScan = "mailbox_scan"
	ReconSourceSynthetic   = "synthetic"
)

// ReconConfig holds the reconciliation engine parameters.
type ReconConfig struct {
	Enabled         bool   `toml:"enabled"`
	Source          string `toml:"source"` // none | mailbox_scan | synthetic
	IntervalSeconds int    `toml:"interval_seconds"`
	LookbackMinutes int    `toml:"lookback_minutes"`
}

// Interval returns the scheduler tick period.
func (r ReconConfig) Interval() time.Duration {
	return time.Duration(r.IntervalSeconds) * time.Second
}

// Lookback returns the freshness window applied to both fetched signals and
// pending-transaction candidates.
func (r ReconConfig) Lookback() time.Duration {
	return time.Duration(r.LookbackMinutes) * time.Minute
}

// IMAPConfig holds mailbox connection parameters for the mailbox_scan source.
type IMAPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Folder   string `toml:"folder"`
}

// UPIConfig holds the payee identity shown to buyers and used by the
// matcher's payee guard.
type UPIConfig struct {
	PayeeVPA  string `toml:"payee_vpa"`
	PayeeName string `toml:"payee_name"`
}

// SMTPConfig holds outbound mail parameters for payment receipts.
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	From     string `toml:"from"`
}

// NotifyConfig holds ops-alert channel credentials.
type NotifyConfig struct {
	TelegramToken  string   `toml:"telegram_token"`
	TelegramChatID string   `toml:"telegram_chat_id"`
	Events         []string `toml:"events"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "nftpay",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
		},
		Recon: ReconConfig{
			Enabled:         false,
			Source:          ReconSourceNone,
			IntervalSeconds: 60,
			LookbackMinutes: 180,
		},
		IMAP: IMAPConfig{
			Port:   993,
			Folder: "INBOX",
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		Notify: NotifyConfig{
			Events: []string{"commit_failed", "source_unavailable"},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		LogLevel: "info",
	}
}

// validReconSources enumerates the accepted values for Recon.Source.
var validReconSources = map[string]bool{
	ReconSourceNone:        true,
	ReconSourceMailboxScan: true,
	ReconSourceSynthetic:   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Recon
	if !validReconSources[strings.ToLower(c.Recon.Source)] {
		errs = append(errs, fmt.Sprintf("recon: unknown source %q (valid: none, mailbox_scan, synthetic)", c.Recon.Source))
	}
	if c.Recon.Enabled {
		if c.Recon.IntervalSeconds < 1 {
			errs = append(errs, "recon: interval_seconds must be >= 1 when enabled")
		}
		if c.Recon.LookbackMinutes < 1 {
			errs = append(errs, "recon: lookback_minutes must be >= 1 when enabled")
		}
		if strings.ToLower(c.Recon.Source) == ReconSourceMailboxScan {
			if c.IMAP.Host == "" {
				errs = append(errs, "imap: host is required for the mailbox_scan source")
			}
			if c.IMAP.User == "" || c.IMAP.Password == "" {
				errs = append(errs, "imap: user and password are required for the mailbox_scan source")
			}
			if c.IMAP.Port <= 0 || c.IMAP.Port > 65535 {
				errs = append(errs, fmt.Sprintf("imap: port must be 1-65535, got %d", c.IMAP.Port))
			}
		}
	}

	// UPI payee identity is what buyers pay into; without it a checkout
	// cannot render a payment prompt.
	if c.UPI.PayeeVPA == "" && c.Recon.Enabled {
		errs = append(errs, "upi: payee_vpa must be set when reconciliation is enabled")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
