package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies NFTPAY_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			// A missing file is fine: env-only deployments run on defaults
			// plus NFTPAY_* overrides. Anything else (bad TOML, permission
			// trouble) is a real error.
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known NFTPAY_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "NFTPAY_DATABASE_URL")
	setStr(&cfg.Postgres.DSN, "NFTPAY_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "NFTPAY_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "NFTPAY_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "NFTPAY_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "NFTPAY_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "NFTPAY_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "NFTPAY_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "NFTPAY_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "NFTPAY_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "NFTPAY_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "NFTPAY_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NFTPAY_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NFTPAY_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NFTPAY_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NFTPAY_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NFTPAY_REDIS_TLS_ENABLED")

	// ── Reconciliation ──
	setBool(&cfg.Recon.Enabled, "NFTPAY_RECON_ENABLED")
	setStr(&cfg.Recon.Source, "NFTPAY_RECON_SOURCE")
	setInt(&cfg.Recon.IntervalSeconds, "NFTPAY_RECON_INTERVAL_SECONDS")
	setInt(&cfg.Recon.LookbackMinutes, "NFTPAY_RECON_LOOKBACK_MINUTES")

	// ── IMAP ──
	setStr(&cfg.IMAP.Host, "NFTPAY_IMAP_HOST")
	setInt(&cfg.IMAP.Port, "NFTPAY_IMAP_PORT")
	setStr(&cfg.IMAP.User, "NFTPAY_IMAP_USER")
	setStr(&cfg.IMAP.Password, "NFTPAY_IMAP_PASSWORD")
	setStr(&cfg.IMAP.Folder, "NFTPAY_IMAP_FOLDER")

	// ── UPI ──
	setStr(&cfg.UPI.PayeeVPA, "NFTPAY_UPI_PAYEE_VPA")
	setStr(&cfg.UPI.PayeeVPA, "NFTPAY_UPI_ID") // compatibility alias
	setStr(&cfg.UPI.PayeeName, "NFTPAY_UPI_PAYEE_NAME")

	// ── SMTP ──
	setStr(&cfg.SMTP.Host, "NFTPAY_SMTP_HOST")
	setInt(&cfg.SMTP.Port, "NFTPAY_SMTP_PORT")
	setStr(&cfg.SMTP.User, "NFTPAY_SMTP_USER")
	setStr(&cfg.SMTP.Password, "NFTPAY_SMTP_PASSWORD")
	setStr(&cfg.SMTP.From, "NFTPAY_SMTP_FROM")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NFTPAY_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NFTPAY_NOTIFY_TELEGRAM_CHAT_ID")
	setStringSlice(&cfg.Notify.Events, "NFTPAY_NOTIFY_EVENTS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "NFTPAY_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "NFTPAY_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "NFTPAY_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "NFTPAY_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "NFTPAY_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
