package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/adityaks/nftpay/internal/cache/memory"
	"github.com/adityaks/nftpay/internal/cache/redis"
	"github.com/adityaks/nftpay/internal/config"
	"github.com/adityaks/nftpay/internal/domain"
	"github.com/adityaks/nftpay/internal/notify"
	"github.com/adityaks/nftpay/internal/recon"
	"github.com/adityaks/nftpay/internal/source"
	"github.com/adityaks/nftpay/internal/store/postgres"
	"github.com/adityaks/nftpay/internal/upi"
)

// Dependencies bundles everything the application needs at runtime. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	TransactionStore domain.TransactionStore
	ItemStore        domain.ItemStore
	UserStore        domain.UserStore

	SeenCache   domain.SeenCache
	LockManager domain.LockManager

	Source     source.Source
	Matcher    *recon.Matcher
	Reconciler *recon.Reconciler
	Scheduler  *recon.Scheduler

	Mailer   *notify.Mailer
	Notifier *notify.Notifier

	Payee upi.Payee
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// must be called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.TransactionStore = postgres.NewTransactionStore(pool)
	deps.ItemStore = postgres.NewItemStore(pool)
	deps.UserStore = postgres.NewUserStore(pool)

	// --- Redis (optional; in-process fallbacks when no address is set) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SeenCache = redis.NewSeenCache(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	} else {
		logger.Warn("no redis address configured, using in-process caches")
		deps.SeenCache = memory.NewSeenCache()
		deps.LockManager = memory.NewLockManager()
	}

	// --- Receipts over SMTP (optional) ---
	if cfg.SMTP.User != "" && cfg.SMTP.From != "" {
		mailer, err := notify.NewMailer(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			User:     cfg.SMTP.User,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: mailer: %w", err)
		}
		deps.Mailer = mailer
	} else {
		logger.Warn("smtp not configured, payment receipts disabled")
	}

	// --- Ops alerts ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Payee identity ---
	deps.Payee = upi.Payee{VPA: cfg.UPI.PayeeVPA, Name: cfg.UPI.PayeeName}

	// --- Signal source ---
	deps.Source, err = buildSource(cfg, deps.TransactionStore, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// --- Reconciliation pipeline ---
	deps.Matcher = recon.NewMatcher(cfg.UPI.PayeeVPA, cfg.UPI.PayeeName, cfg.Recon.Lookback(), logger)

	var mailer recon.ReceiptMailer
	if deps.Mailer != nil {
		mailer = deps.Mailer
	}
	deps.Reconciler = recon.NewReconciler(
		deps.TransactionStore,
		deps.ItemStore,
		deps.UserStore,
		mailer,
		deps.Notifier,
		logger,
	)

	deps.Scheduler = recon.NewScheduler(
		recon.SchedulerConfig{
			Enabled:  cfg.Recon.Enabled,
			Interval: cfg.Recon.Interval(),
			Lookback: cfg.Recon.Lookback(),
		},
		deps.Source,
		deps.Matcher,
		deps.Reconciler,
		deps.TransactionStore,
		deps.SeenCache,
		logger,
	)

	return deps, cleanup, nil
}

// buildSource selects the signal source variant once, from configuration.
func buildSource(cfg *config.Config, txs domain.TransactionStore, logger *slog.Logger) (source.Source, error) {
	switch cfg.Recon.Source {
	case config.ReconSourceNone:
		return source.Disabled{}, nil
	case config.ReconSourceSynthetic:
		return source.NewSynthetic(txs), nil
	case config.ReconSourceMailboxScan:
		return source.NewIMAPSource(source.IMAPConfig{
			Host:     cfg.IMAP.Host,
			Port:     cfg.IMAP.Port,
			User:     cfg.IMAP.User,
			Password: cfg.IMAP.Password,
			Folder:   cfg.IMAP.Folder,
			Timeout:  mailboxTimeout(cfg.Recon.Interval()),
		}, logger), nil
	default:
		return nil, fmt.Errorf("wire: unknown recon source %q", cfg.Recon.Source)
	}
}

// mailboxTimeout bounds IMAP network calls below the scheduler interval so
// a hung mailbox cannot starve subsequent ticks.
func mailboxTimeout(interval time.Duration) time.Duration {
	timeout := interval / 2
	if timeout > 30*time.Second {
		timeout = 30 * time.Second
	}
	if timeout < 5*time.Second {
		timeout = 5 * time.Second
	}
	return timeout
}
