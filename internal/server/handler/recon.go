package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/adityaks/nftpay/internal/recon"
)

// ReconHandler exposes the reconciliation scheduler's status and a manual
// trigger for operators.
type ReconHandler struct {
	sched  *recon.Scheduler
	logger *slog.Logger
}

// NewReconHandler creates a ReconHandler.
func NewReconHandler(sched *recon.Scheduler, logger *slog.Logger) *ReconHandler {
	return &ReconHandler{sched: sched, logger: logger}
}

func stateString(s recon.State) string {
	if s == recon.StateRunning {
		return "running"
	}
	return "stopped"
}

// Status reports the scheduler state and the stats of the last tick.
// GET /api/recon/status
func (h *ReconHandler) Status(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"state": stateString(h.sched.State()),
	}
	if last := h.sched.LastTick(); last != nil {
		resp["last_tick"] = map[string]any{
			"started_at": last.StartedAt.Format(time.RFC3339),
			"duration":   last.Duration.String(),
			"pending":    last.Pending,
			"fetched":    last.Fetched,
			"deduped":    last.Deduped,
			"matched":    last.Matched,
			"unmatched":  last.Unmatched,
			"failed":     last.Failed,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Trigger runs one reconciliation pass immediately. The scheduler's overlap
// guard applies: a trigger during a running tick returns 409.
// POST /api/recon/trigger
func (h *ReconHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sched.Tick(r.Context())
	if err != nil {
		if errors.Is(err, recon.ErrTickInProgress) {
			writeError(w, http.StatusConflict, "a reconciliation pass is already running")
			return
		}
		h.logger.Error("manual tick failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "reconciliation pass failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"pending":   stats.Pending,
		"fetched":   stats.Fetched,
		"deduped":   stats.Deduped,
		"matched":   stats.Matched,
		"unmatched": stats.Unmatched,
		"failed":    stats.Failed,
		"duration":  stats.Duration.String(),
	})
}
