package recon

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/adityaks/nftpay/internal/domain"
	"github.com/adityaks/nftpay/internal/source"
)

// ErrTickInProgress is returned when a tick is requested while the previous
// one is still running. Overlapping ticks are skipped, never run
// concurrently.
var ErrTickInProgress = errors.New("reconciliation tick already in progress")

// State is the scheduler lifecycle state.
type State int32

const (
	StateStopped State = iota
	StateRunning
)

// SchedulerConfig holds the scheduler's runtime parameters.
type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
	Lookback time.Duration
}

// TickStats summarizes one pipeline pass for logs and the status endpoint.
type TickStats struct {
	Pending   int
	Fetched   int
	Deduped   int
	Parsed    int
	Matched   int
	Unmatched int
	Failed    int
	StartedAt time.Time
	Duration  time.Duration
}

// Scheduler drives the Source→Parser→Matcher→Reconciler pipeline on a fixed
// interval, independent of request traffic. It owns its lifecycle state and
// a run-in-progress guard; nothing in a tick is fatal to the hosting
// process.
type Scheduler struct {
	cfg     SchedulerConfig
	src     source.Source
	matcher *Matcher
	rec     *Reconciler
	txs     domain.TransactionStore
	seen    domain.SeenCache
	logger  *slog.Logger

	state    atomic.Int32
	inFlight atomic.Bool
	lastTick atomic.Pointer[TickStats]
}

// NewScheduler creates a Scheduler. It starts in the stopped state; Run
// moves it to running.
func NewScheduler(
	cfg SchedulerConfig,
	src source.Source,
	matcher *Matcher,
	rec *Reconciler,
	txs domain.TransactionStore,
	seen domain.SeenCache,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		src:     src,
		matcher: matcher,
		rec:     rec,
		txs:     txs,
		seen:    seen,
		logger:  logger.With(slog.String("component", "recon_scheduler")),
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// LastTick returns the stats of the most recent completed tick, or nil if
// none has run yet.
func (s *Scheduler) LastTick() *TickStats {
	return s.lastTick.Load()
}

// Run enters the running state and executes one pipeline pass per interval
// until ctx is cancelled, then returns to stopped. If the scheduler is
// disabled, Run returns immediately without ever invoking the source.
//
// Ticks never overlap: when a pass is still running as the next interval
// fires, that interval is skipped and logged.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("reconciliation disabled, scheduler not starting")
		return nil
	}

	s.state.Store(int32(StateRunning))
	defer s.state.Store(int32(StateStopped))

	s.logger.Info("reconciliation scheduler started",
		slog.String("source", s.src.Name()),
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("lookback", s.cfg.Lookback),
	)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reconciliation scheduler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				if errors.Is(err, ErrTickInProgress) {
					s.logger.Warn("previous tick still running, skipping interval")
					continue
				}
				// Per-tick failures are logged inside Tick; anything
				// surfacing here is already contextualized.
				s.logger.Error("reconciliation tick failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Tick runs exactly one full pipeline pass. It is also the entry point for
// the manual trigger endpoint, which is why the overlap guard lives here
// and not in Run.
//
// A running tick completes its current signal before honoring cancellation;
// there is no mid-commit interruption.
func (s *Scheduler) Tick(ctx context.Context) (TickStats, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return TickStats{}, ErrTickInProgress
	}
	defer s.inFlight.Store(false)

	stats := TickStats{StartedAt: time.Now().UTC()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		s.lastTick.Store(&stats)
	}()

	now := stats.StartedAt
	pending, err := s.txs.ListPendingINR(ctx, now.Add(-s.cfg.Lookback))
	if err != nil {
		s.logger.Error("listing pending transactions failed, tick skipped",
			slog.String("error", err.Error()),
		)
		return stats, nil
	}
	stats.Pending = len(pending)
	if len(pending) == 0 {
		return stats, nil
	}

	raws, err := s.src.Fetch(ctx, s.cfg.Lookback)
	if err != nil {
		// SourceUnavailable: skip this tick, the next one proceeds
		// normally. A hung mailbox is bounded by the source's own timeout.
		s.logger.Warn("signal source fetch failed, tick skipped",
			slog.String("source", s.src.Name()),
			slog.String("error", err.Error()),
		)
		return stats, nil
	}
	stats.Fetched = len(raws)

	for _, raw := range raws {
		// Finish the current signal before honoring stop.
		if ctx.Err() != nil {
			s.logger.Info("shutdown requested, abandoning remaining signals")
			break
		}

		if seen, err := s.seen.Seen(ctx, raw.ID); err != nil {
			s.logger.Warn("seen-cache read failed, processing signal anyway",
				slog.String("signal_id", raw.ID),
				slog.String("error", err.Error()),
			)
		} else if seen {
			stats.Deduped++
			continue
		}

		sig, err := ParseSignal(raw)
		if err != nil {
			// Not a credit alert we understand. Parsing is deterministic,
			// so remember the id and stop re-reading the same message.
			s.logger.Debug("unparseable signal dropped",
				slog.String("signal_id", raw.ID),
				slog.String("error", err.Error()),
			)
			s.markSeen(ctx, raw.ID)
			continue
		}
		stats.Parsed++

		txn := s.matcher.Match(now, sig, pending)
		if txn == nil {
			// No pending transaction fits this alert yet. Leave the id
			// unmarked: a checkout created after this alert arrived may
			// still match within the lookback window.
			stats.Unmatched++
			continue
		}

		outcome := s.rec.Apply(ctx, sig, *txn)
		switch outcome.Status {
		case domain.OutcomeMatched:
			stats.Matched++
			s.markSeen(ctx, sig.SourceID)
			pending = removeTransaction(pending, txn.ID)
		case domain.OutcomeAlreadyHandled:
			s.markSeen(ctx, sig.SourceID)
			pending = removeTransaction(pending, txn.ID)
		case domain.OutcomeCommitFailed:
			// Deliberately not marked seen: the same message id will be
			// fetched and retried on a later tick within the window.
			stats.Failed++
		}
	}

	s.logger.Info("reconciliation tick complete",
		slog.Int("pending", stats.Pending),
		slog.Int("fetched", stats.Fetched),
		slog.Int("deduped", stats.Deduped),
		slog.Int("matched", stats.Matched),
		slog.Int("unmatched", stats.Unmatched),
		slog.Int("failed", stats.Failed),
		slog.Duration("took", time.Since(stats.StartedAt)),
	)
	return stats, nil
}

// markSeen records a fully handled signal id for the length of the lookback
// window. Failures only cost an extra re-read on the next tick.
func (s *Scheduler) markSeen(ctx context.Context, id string) {
	if err := s.seen.Mark(ctx, id, s.cfg.Lookback); err != nil {
		s.logger.Warn("seen-cache write failed",
			slog.String("signal_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// removeTransaction drops the handled transaction from the candidate set so
// a second identical-amount signal in the same tick cannot re-match it.
func removeTransaction(txs []domain.Transaction, id string) []domain.Transaction {
	out := txs[:0]
	for _, t := range txs {
		if t.ID != id {
			out = append(out, t)
		}
	}
	return out
}
