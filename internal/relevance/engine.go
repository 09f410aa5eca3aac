// Package relevance wires term extraction, scoring, the raw store scan,
// ranking and assembly into a single selection call over a corpus snapshot.
package relevance

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/assembler"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/ranker"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/rawscan"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/scorer"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/terms"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/tracing"
)

// Options are the selection caps. A zero TopK or MaxRecords falls back to the
// stage default; a zero RecencyWindow means no recent records are forced in.
type Options struct {
	RecencyWindow int
	TopK          int
	MaxRecords    int
	RawBoost      float64
	ScanTimeout   time.Duration
	Owner         string
	Now           func() time.Time
}

// OptionsFromConfig maps the relevance section of the config.
func OptionsFromConfig(cfg config.RelevanceConfig, owner string) Options {
	return Options{
		RecencyWindow: cfg.RecencyWindow,
		TopK:          cfg.TopK,
		MaxRecords:    cfg.MaxRecords,
		RawBoost:      cfg.RawMatchBoost,
		ScanTimeout:   cfg.ScanTimeout,
		Owner:         owner,
	}
}

// Result is the outcome of one selection.
type Result struct {
	Query         string
	Outcome       string
	Context       string
	Records       []corpus.Record
	Terms         terms.TermSet
	Candidates    int
	RawMatches    int
	CorpusVersion int64
	Latency       time.Duration
	Stages        map[string]time.Duration
}

// Sources lists one reference per selected record: its URL when known,
// otherwise its identifier.
func (r *Result) Sources() []string {
	out := make([]string, 0, len(r.Records))
	for _, rec := range r.Records {
		if rec.URL != "" {
			out = append(out, rec.URL)
			continue
		}
		out = append(out, rec.ID)
	}
	return out
}

// Engine runs selections. It holds no per-query state and is safe for
// concurrent use.
type Engine struct {
	scorer  *scorer.Scorer
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewEngine creates an Engine. m may be nil.
func NewEngine(opts Options, m *metrics.Metrics) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = ranker.DefaultLimit
	}
	if opts.MaxRecords <= 0 {
		opts.MaxRecords = assembler.DefaultMaxRecords
	}
	return &Engine{
		scorer:  scorer.New(opts.Now),
		opts:    opts,
		metrics: m,
		logger:  slog.Default().With("component", "relevance-engine"),
	}
}

// Select picks and renders the context for query from snap. It never fails:
// an empty snapshot yields assembler.NoDataMessage and a raw store problem
// only loses the raw-match boost.
func (e *Engine) Select(ctx context.Context, snap *corpus.Snapshot, query string) *Result {
	start := time.Now()
	ctx, span, root := e.startSpan(ctx)
	span.SetAttr("query", query)

	result := &Result{Query: query}
	if snap != nil {
		result.CorpusVersion = snap.Version
	}

	outcome := metrics.OutcomeSelected
	switch {
	case snap.Len() == 0:
		outcome = metrics.OutcomeNoData
		result.Context = assembler.NoDataMessage
	default:
		var relevant []corpus.Record
		result.Terms = stage(ctx, "terms", func(context.Context) terms.TermSet {
			return terms.Extract(query)
		})
		if result.Terms.Empty() {
			outcome = metrics.OutcomeNoTerms
		} else {
			relevant = e.relevant(ctx, snap, query, result)
		}
		asm := stage(ctx, "assemble", func(context.Context) assembler.Assembly {
			return assembler.Assemble(snap, relevant, result.Terms, assembler.Options{
				RecencyWindow: e.opts.RecencyWindow,
				MaxRecords:    e.opts.MaxRecords,
				Owner:         e.opts.Owner,
			})
		})
		result.Records = asm.Records
		result.Context = asm.Context
	}

	span.End()
	result.Outcome = outcome
	result.Latency = time.Since(start)
	result.Stages = span.Stages()
	e.observe(outcome, result)

	log := e.log(ctx)
	log.Info("context selected",
		"outcome", outcome,
		"terms", result.Terms.Terms,
		"candidates", result.Candidates,
		"raw_matches", result.RawMatches,
		"selected", len(result.Records),
		"corpus_version", result.CorpusVersion,
		"latency_ms", result.Latency.Milliseconds(),
	)
	if root {
		span.Log(log)
	}
	return result
}

// relevant scores the corpus, scans the raw store and ranks the candidates.
// The raw scan is skipped when nothing scored, since the boost only applies
// to candidates.
func (e *Engine) relevant(ctx context.Context, snap *corpus.Snapshot, query string, result *Result) []corpus.Record {
	candidates := stage(ctx, "score", func(context.Context) []scorer.Scored {
		return e.scorer.ScoreAll(snap.Records, scorer.Compile(query, result.Terms))
	})
	result.Candidates = len(candidates)
	if len(candidates) == 0 {
		return nil
	}

	raw := stage(ctx, "rawscan", func(ctx context.Context) rawscan.MatchSet {
		return e.rawScan(ctx, snap.Raw, result.Terms.Terms)
	})
	result.RawMatches = len(raw)

	ranked := stage(ctx, "rank", func(context.Context) []scorer.Scored {
		return ranker.Rank(candidates, raw, e.opts.RawBoost, e.opts.TopK)
	})
	out := make([]corpus.Record, len(ranked))
	for i, s := range ranked {
		out[i] = s.Record
	}
	return out
}

func (e *Engine) rawScan(ctx context.Context, m rawscan.Matcher, termList []string) rawscan.MatchSet {
	if m == nil {
		return rawscan.MatchSet{}
	}
	set, err := resilience.Call(ctx, e.opts.ScanTimeout, "rawscan", func(ctx context.Context) (rawscan.MatchSet, error) {
		return m.Match(ctx, termList), nil
	})
	if err != nil {
		e.log(ctx).Warn("raw scan abandoned", "error", err)
		if e.metrics != nil {
			e.metrics.RawScanFailures.Inc()
		}
		return rawscan.MatchSet{}
	}
	return set
}

func (e *Engine) log(ctx context.Context) *slog.Logger {
	if id := logger.RequestID(ctx); id != "" {
		return e.logger.With("request_id", id)
	}
	return e.logger
}

func (e *Engine) startSpan(ctx context.Context) (context.Context, *tracing.Span, bool) {
	if tracing.SpanFromContext(ctx) != nil {
		ctx, span := tracing.StartChildSpan(ctx, "select")
		return ctx, span, false
	}
	ctx, span := tracing.StartSpan(ctx, "select", logger.RequestID(ctx))
	return ctx, span, true
}

func (e *Engine) observe(outcome string, r *Result) {
	if e.metrics == nil {
		return
	}
	e.metrics.SelectionsTotal.WithLabelValues(outcome).Inc()
	e.metrics.SelectionLatency.Observe(r.Latency.Seconds())
	e.metrics.SelectedRecords.Observe(float64(len(r.Records)))
	if outcome == metrics.OutcomeSelected {
		e.metrics.CandidateRecords.Observe(float64(r.Candidates))
		e.metrics.RawMatchesCount.Observe(float64(r.RawMatches))
	}
}

// stage runs fn inside a child span named name.
func stage[T any](ctx context.Context, name string, fn func(context.Context) T) T {
	ctx, span := tracing.StartChildSpan(ctx, name)
	defer span.End()
	return fn(ctx)
}
