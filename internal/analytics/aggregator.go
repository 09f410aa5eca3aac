package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/metrics"
)

// maxLatencySamples bounds the latency ring used for percentiles.
const maxLatencySamples = 10000

type AggregatedStats struct {
	TotalSelections      int64        `json:"total_selections"`
	NoTermSelections     int64        `json:"no_term_selections"`
	NoDataSelections     int64        `json:"no_data_selections"`
	ZeroCandidateCount   int64        `json:"zero_candidate_count"`
	CorpusRefreshes      int64        `json:"corpus_refreshes"`
	LastCorpusVersion    int64        `json:"last_corpus_version"`
	AvgSelected          float64      `json:"avg_selected"`
	AvgLatencyMs         float64      `json:"avg_latency_ms"`
	P50LatencyMs         int64        `json:"p50_latency_ms"`
	P95LatencyMs         int64        `json:"p95_latency_ms"`
	P99LatencyMs         int64        `json:"p99_latency_ms"`
	TopQueries           []QueryCount `json:"top_queries"`
	TopTerms             []QueryCount `json:"top_terms"`
	ZeroCandidateQueries []QueryCount `json:"zero_candidate_queries"`
	QueriesPerMinute     float64      `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator folds selection and refresh events into running stats. Events
// arrive either from a Kafka consumer (see HandleEvent) or directly through
// Track when no broker is configured.
type Aggregator struct {
	mu              sync.RWMutex
	totalSelections atomic.Int64
	noTerms         atomic.Int64
	noData          atomic.Int64
	zeroCandidates  atomic.Int64
	refreshes       atomic.Int64
	lastVersion     atomic.Int64
	selectedSum     atomic.Int64

	latencies       []int64
	next            int
	queryCounts     map[string]int64
	termCounts      map[string]int64
	zeroCandQueries map[string]int64
	startTime       time.Time

	logger *slog.Logger
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		latencies:       make([]int64, 0, 1024),
		queryCounts:     make(map[string]int64),
		termCounts:      make(map[string]int64),
		zeroCandQueries: make(map[string]int64),
		startTime:       time.Now(),
		logger:          slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start consumes topic until ctx is done.
func (a *Aggregator) Start(ctx context.Context, cfg config.KafkaConfig, topic string) error {
	consumer := kafka.NewConsumer(cfg, topic, HandleEvent(a))
	a.logger.Info("analytics aggregator starting", "topic", topic, "group", cfg.ConsumerGroup)
	return consumer.Start(ctx)
}

// Track records event in-process.
func (a *Aggregator) Track(event any) {
	switch e := event.(type) {
	case SelectionEvent:
		a.recordSelection(e)
	case *SelectionEvent:
		a.recordSelection(*e)
	case RefreshEvent:
		a.recordRefresh(e)
	case *RefreshEvent:
		a.recordRefresh(*e)
	default:
		a.logger.Warn("unknown analytics event", "type", fmt.Sprintf("%T", event))
	}
}

// HandleEvent adapts agg to a Kafka consumer. Messages are routed by their
// type header, or by the body's "type" field when the header is missing.
// Undecodable messages are logged and skipped so they do not block the
// partition.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		eventType := EventType(msg.Type)
		if eventType == "" {
			var env envelope
			if err := json.Unmarshal(msg.Value, &env); err != nil {
				agg.logger.Error("failed to decode analytics event", "offset", msg.Offset, "error", err)
				return nil
			}
			eventType = env.Type
		}
		switch eventType {
		case EventSelection:
			event, err := kafka.DecodeJSON[SelectionEvent](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode selection event", "offset", msg.Offset, "error", err)
				return nil
			}
			agg.recordSelection(event)
		case EventRefresh:
			event, err := kafka.DecodeJSON[RefreshEvent](msg.Value)
			if err != nil {
				agg.logger.Error("failed to decode refresh event", "offset", msg.Offset, "error", err)
				return nil
			}
			agg.recordRefresh(event)
		default:
			agg.logger.Warn("skipping analytics event", "type", eventType, "key", string(msg.Key))
		}
		return nil
	}
}

func (a *Aggregator) recordSelection(event SelectionEvent) {
	a.totalSelections.Add(1)
	a.selectedSum.Add(int64(event.Selected))
	switch event.Outcome {
	case metrics.OutcomeNoTerms:
		a.noTerms.Add(1)
	case metrics.OutcomeNoData:
		a.noData.Add(1)
	}
	zero := len(event.Terms) > 0 && event.Candidates == 0

	if zero {
		a.zeroCandidates.Add(1)
	}

	a.mu.Lock()
	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
	if event.Query != "" {
		a.queryCounts[event.Query]++
	}
	for _, term := range event.Terms {
		a.termCounts[term]++
	}
	if zero {
		a.zeroCandQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordRefresh(event RefreshEvent) {
	a.refreshes.Add(1)
	for {
		cur := a.lastVersion.Load()
		if event.Version <= cur || a.lastVersion.CompareAndSwap(cur, event.Version) {
			return
		}
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalSelections:    a.totalSelections.Load(),
		NoTermSelections:   a.noTerms.Load(),
		NoDataSelections:   a.noData.Load(),
		ZeroCandidateCount: a.zeroCandidates.Load(),
		CorpusRefreshes:    a.refreshes.Load(),
		LastCorpusVersion:  a.lastVersion.Load(),
	}
	if stats.TotalSelections > 0 {
		stats.AvgSelected = float64(a.selectedSum.Load()) / float64(stats.TotalSelections)
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.TopTerms = topN(a.termCounts, 10)
	stats.ZeroCandidateQueries = topN(a.zeroCandQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalSelections) / elapsed
	}

	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// topN orders by count, then query, so ties are stable.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
