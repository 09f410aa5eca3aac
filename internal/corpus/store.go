package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/rawscan"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/resilience"
)

// StoreOptions controls how each snapshot's raw matcher is built and how
// hard a reload tries.
type StoreOptions struct {
	// RawStorePath is the file scanned for raw matches. Empty disables the
	// raw scan.
	RawStorePath string
	// RawScanMode is config.ScanModeFile or config.ScanModeIndex.
	RawScanMode string
	Raw         rawscan.Options
	Retry       resilience.RetryConfig
}

// Store publishes the current Snapshot. Readers call Current once per query
// and keep using that snapshot; Reload builds a complete replacement and
// swaps it in atomically.
type Store struct {
	source  Source
	opts    StoreOptions
	current atomic.Pointer[Snapshot]
	version atomic.Int64
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	listeners []func(*Snapshot)
}

// NewStore creates an empty store over src. m may be nil.
func NewStore(src Source, opts StoreOptions, m *metrics.Metrics) *Store {
	if opts.RawScanMode == "" {
		opts.RawScanMode = config.ScanModeFile
	}
	if opts.Retry.ShouldRetry == nil {
		opts.Retry.ShouldRetry = retryable
	}
	return &Store{
		source:  src,
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "corpus-store", "source", src.Name()),
	}
}

// Current returns the published snapshot, or nil before the first
// successful load.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// OnSwap registers fn to run after each published snapshot.
func (s *Store) OnSwap(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Reload loads the source and publishes a new snapshot. Concurrent callers
// share one load. On failure the previous snapshot stays published.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	v, err, shared := s.group.Do("reload", func() (any, error) {
		return s.reload(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("reload coalesced")
	}
	return v.(*Snapshot), nil
}

func (s *Store) reload(ctx context.Context) (*Snapshot, error) {
	start := time.Now()
	retry := s.opts.Retry
	retry.OnRetry = func(int, error, time.Duration) { s.observeReload("retry") }
	var records []Record
	err := resilience.Retry(ctx, "corpus-reload", retry, func() error {
		var err error
		records, err = s.source.Load(ctx)
		return err
	})
	if err != nil {
		s.observeReload("error")
		s.logger.Error("corpus reload failed", "error", err)
		return nil, fmt.Errorf("reloading corpus: %w", err)
	}

	SortNewestFirst(records)
	snap := NewSnapshot(records, s.buildRaw(), s.source.Name())
	snap.Version = s.version.Add(1)
	s.current.Store(snap)

	s.observeReload("ok")
	if s.metrics != nil {
		s.metrics.CorpusRecords.Set(float64(snap.Len()))
		s.metrics.CorpusVersion.Set(float64(snap.Version))
	}
	s.logger.Info("corpus published",
		"version", snap.Version,
		"records", snap.Len(),
		"raw_mode", s.opts.RawScanMode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	s.mu.Lock()
	listeners := make([]func(*Snapshot), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
	return snap, nil
}

// buildRaw creates the raw matcher for a new snapshot. An index that cannot
// be built falls back to per-query scanning, which degrades on its own.
func (s *Store) buildRaw() rawscan.Matcher {
	path := s.opts.RawStorePath
	if path == "" {
		return rawscan.Nop{}
	}
	if s.opts.RawScanMode == config.ScanModeIndex {
		idx, err := rawscan.OpenIndex(path, s.opts.Raw)
		if err == nil {
			s.logger.Info("raw index built", "path", path, "lines", idx.Lines())
			return idx
		}
		s.logger.Warn("raw index unavailable, falling back to file scan", "path", path, "error", err)
	}
	return rawscan.NewScanner(path, s.opts.Raw)
}

func (s *Store) observeReload(status string) {
	if s.metrics != nil {
		s.metrics.CorpusReloadsTotal.WithLabelValues(status).Inc()
	}
}

// Stats summarises the published snapshot.
type Stats struct {
	Loaded   bool      `json:"loaded"`
	Version  int64     `json:"version"`
	Source   string    `json:"source"`
	Records  int       `json:"records"`
	Oldest   time.Time `json:"oldest,omitempty"`
	Newest   time.Time `json:"newest,omitempty"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
}

// Stats describes the current snapshot.
func (s *Store) Stats() Stats {
	snap := s.Current()
	if snap == nil {
		return Stats{Source: s.source.Name()}
	}
	oldest, newest := snap.Span()
	return Stats{
		Loaded:   true,
		Version:  snap.Version,
		Source:   snap.Source,
		Records:  snap.Len(),
		Oldest:   oldest,
		Newest:   newest,
		LoadedAt: snap.LoadedAt,
	}
}

// retryable reports false for malformed exports.
func retryable(err error) bool {
	return !errors.Is(err, apperrors.ErrMalformedExport)
}
