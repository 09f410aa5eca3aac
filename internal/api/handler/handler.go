// Package handler exposes context selection and corpus management over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance"
	apperrors "github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/middleware"
)

// MaxQueryLength bounds the q parameter in characters.
const MaxQueryLength = 2000

// CorpusStore is the part of corpus.Store the API needs.
type CorpusStore interface {
	Current() *corpus.Snapshot
	Reload(ctx context.Context) (*corpus.Snapshot, error)
	Stats() corpus.Stats
}

// Selector picks context for a query.
type Selector interface {
	Select(ctx context.Context, snap *corpus.Snapshot, query string) *relevance.Result
}

// Announcer broadcasts a local refresh to other replicas.
type Announcer interface {
	Announce(ctx context.Context, reason string, snap *corpus.Snapshot) error
}

// ContextResponse is the body of GET /api/v1/context.
type ContextResponse struct {
	Query         string           `json:"query"`
	Terms         []string         `json:"terms"`
	Context       string           `json:"context"`
	Sources       []string         `json:"sources"`
	Selected      int              `json:"selected"`
	Candidates    int              `json:"candidates"`
	RawMatches    int              `json:"raw_matches"`
	CorpusVersion int64            `json:"corpus_version"`
	LatencyMs     int64            `json:"latency_ms"`
	StagesMs      map[string]int64 `json:"stages_ms,omitempty"`
}

// RefreshResponse is the body of POST /api/v1/corpus/refresh.
type RefreshResponse struct {
	Version   int64 `json:"version"`
	Records   int   `json:"records"`
	Broadcast bool  `json:"broadcast"`
}

type Handler struct {
	store     CorpusStore
	engine    Selector
	announcer Announcer
	tracker   analytics.Tracker
	logger    *slog.Logger
}

// New creates a handler. announcer and tracker may be nil.
func New(store CorpusStore, engine Selector, announcer Announcer, tracker analytics.Tracker) *Handler {
	return &Handler{
		store:     store,
		engine:    engine,
		announcer: announcer,
		tracker:   tracker,
		logger:    slog.Default().With("component", "api-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/context", h.Context)
	mux.HandleFunc("POST /api/v1/corpus/refresh", h.Refresh)
	mux.HandleFunc("GET /api/v1/corpus/stats", h.CorpusStats)
}

func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query().Get("q")
	if !utf8.ValidString(query) {
		h.writeAppError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "query must be valid UTF-8"))
		return
	}
	if utf8.RuneCountInString(query) > MaxQueryLength {
		h.writeAppError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"query exceeds %d characters", MaxQueryLength))
		return
	}

	result := h.engine.Select(ctx, h.store.Current(), query)

	resp := ContextResponse{
		Query:         query,
		Terms:         result.Terms.Terms,
		Context:       result.Context,
		Sources:       result.Sources(),
		Selected:      len(result.Records),
		Candidates:    result.Candidates,
		RawMatches:    result.RawMatches,
		CorpusVersion: result.CorpusVersion,
		LatencyMs:     result.Latency.Milliseconds(),
	}
	if resp.Terms == nil {
		resp.Terms = []string{}
	}
	if len(result.Stages) > 0 {
		resp.StagesMs = make(map[string]int64, len(result.Stages))
		for name, d := range result.Stages {
			resp.StagesMs[name] = d.Milliseconds()
		}
	}

	if h.tracker != nil {
		h.tracker.Track(analytics.SelectionEvent{
			Type:          analytics.EventSelection,
			Query:         query,
			Terms:         resp.Terms,
			Candidates:    result.Candidates,
			RawMatches:    result.RawMatches,
			Selected:      resp.Selected,
			Outcome:       result.Outcome,
			CorpusVersion: result.CorpusVersion,
			LatencyMs:     resp.LatencyMs,
			Timestamp:     time.Now().UTC(),
			RequestID:     middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// Refresh reloads the corpus here and tells the other replicas to follow.
// A missing or failing bus only clears the broadcast flag.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	snap, err := h.store.Reload(ctx)
	if err != nil {
		log.Error("corpus refresh failed", "error", err)
		h.writeAppError(w, err)
		return
	}

	resp := RefreshResponse{Version: snap.Version, Records: snap.Len()}
	if h.announcer != nil {
		err := h.announcer.Announce(ctx, "api", snap)
		switch {
		case err == nil:
			resp.Broadcast = true
		case errors.Is(err, apperrors.ErrRefreshUnavailable):
			log.Warn("refresh not broadcast", "error", err)
		default:
			log.Error("refresh broadcast failed", "error", err)
		}
	}
	log.Info("corpus refreshed", "version", resp.Version, "records", resp.Records, "broadcast", resp.Broadcast)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CorpusStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Stats())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps err to a status. Messages of unexpected errors are not
// exposed.
func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		h.writeError(w, status, appErr.Message)
	case status == http.StatusInternalServerError:
		h.writeError(w, status, "internal error")
	default:
		h.writeError(w, status, rootMessage(err))
	}
}

// rootMessage returns the text of the sentinel at the bottom of err.
func rootMessage(err error) string {
	for _, sentinel := range []error{
		apperrors.ErrMalformedExport,
		apperrors.ErrSourceUnavailable,
		apperrors.ErrCorpusUnavailable,
		apperrors.ErrTimeout,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return http.StatusText(apperrors.HTTPStatusCode(err))
}
