package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// SnapshotReader returns the newest persisted stats, or nil when none were
// saved. *SnapshotStore satisfies it.
type SnapshotReader interface {
	Latest(ctx context.Context) (*AggregatedStats, error)
}

type Handler struct {
	aggregator *Aggregator
	snapshots  SnapshotReader
	logger     *slog.Logger
}

// NewHandler serves agg's stats. snapshots may be nil when persistence is
// off.
func NewHandler(agg *Aggregator, snapshots SnapshotReader) *Handler {
	return &Handler{
		aggregator: agg,
		snapshots:  snapshots,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics", h.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshot", h.Snapshot)
}

// Stats serves the running totals. ?top=N trims the ranked lists to N
// entries.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats := h.aggregator.Stats()
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "top must be a non-negative integer")
			return
		}
		stats.TopQueries = truncate(stats.TopQueries, n)
		stats.TopTerms = truncate(stats.TopTerms, n)
		stats.ZeroCandidateQueries = truncate(stats.ZeroCandidateQueries, n)
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// Snapshot serves the newest persisted stats.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeError(w, http.StatusNotFound, "analytics snapshots are disabled")
		return
	}
	last, err := h.snapshots.Latest(r.Context())
	if err != nil {
		h.logger.Error("loading analytics snapshot failed", "error", err)
		h.writeError(w, http.StatusServiceUnavailable, "snapshot store unavailable")
		return
	}
	if last == nil {
		h.writeError(w, http.StatusNotFound, "no snapshot saved yet")
		return
	}
	h.writeJSON(w, http.StatusOK, last)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func truncate(counts []QueryCount, n int) []QueryCount {
	if len(counts) > n {
		return counts[:n]
	}
	return counts
}
