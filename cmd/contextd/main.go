package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/internal/relevance/rawscan"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Timeline-Context-Engine/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting context service",
		"port", cfg.Server.Port,
		"source", cfg.Corpus.Source,
		"scan_mode", cfg.Relevance.ScanMode,
	)

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(ctx)
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checker := health.NewChecker()

	var (
		src     corpus.Source
		rawPath string
		pg      *postgres.Client
	)
	switch cfg.Corpus.Source {
	case config.SourcePostgres:
		pg, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := corpus.Migrate(ctx, pg); err != nil {
			slog.Error("failed to migrate records table", "error", err)
			os.Exit(1)
		}
		breaker := resilience.NewCircuitBreaker("postgres-corpus", resilience.CircuitBreakerConfig{
			FailureThreshold:    5,
			ResetTimeout:        30 * time.Second,
			HalfOpenMaxRequests: 1,
			OnStateChange: func(name string, from, to resilience.State) {
				m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			},
		})
		src = corpus.NewPostgresSource(pg, cfg.Corpus.Owner, breaker)
		rawPath = cfg.Corpus.RawStorePath
		checker.Register("postgres", health.PingCheck(pg.Ping, false))
	default:
		src = corpus.NewArchiveSource(cfg.Corpus.ArchivePath, cfg.Corpus.Owner)
		rawPath = cfg.Corpus.RawStore()
	}

	store := corpus.NewStore(src, corpus.StoreOptions{
		RawStorePath: rawPath,
		RawScanMode:  cfg.Relevance.ScanMode,
		Raw: rawscan.Options{
			Window:    rawscan.LineWindow(cfg.Relevance.ScanWindow),
			IDPattern: regexp.MustCompile(cfg.Relevance.IDPattern),
			OnError: func(err error) {
				// Deadline hits are counted by the engine.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				m.RawScanFailures.Inc()
			},
		},
		Retry: resilience.RetryConfig{
			MaxAttempts:  cfg.Corpus.ReloadRetry,
			InitialDelay: cfg.Corpus.ReloadDelay,
		},
	}, m)

	if _, err := store.Reload(ctx); err != nil {
		// Keep serving: selections answer with the no-data message until a
		// refresh succeeds.
		slog.Error("initial corpus load failed", "error", err)
	}
	checker.Register("corpus", func(ctx context.Context) health.ComponentHealth {
		st := store.Stats()
		if !st.Loaded {
			return health.ComponentHealth{Status: health.StatusDown, Message: "corpus not loaded"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("version %d, %d records", st.Version, st.Records),
		}
	})

	if cfg.Corpus.Watch && cfg.Corpus.Source == config.SourceArchive {
		watcher, err := corpus.NewWatcher(cfg.Corpus.ArchivePath, store, corpus.DefaultDebounce)
		if err != nil {
			slog.Error("failed to create corpus watcher", "error", err)
			os.Exit(1)
		}
		if err := watcher.Start(ctx); err != nil {
			slog.Warn("corpus watcher disabled", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	var announcer handler.Announcer
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, refresh broadcast disabled", "error", err)
		} else {
			defer redisClient.Close()
			bus := corpus.NewRefreshBus(redisClient, cfg.Redis.RefreshChannel, uuid.NewString(), store)
			announcer = bus
			go func() {
				if err := bus.Run(ctx); err != nil {
					slog.Error("refresh bus stopped", "error", err)
				}
			}()
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
		}
	}

	var tracker analytics.Tracker
	var analyticsH *analytics.Handler
	if cfg.Analytics.Enabled {
		aggregator := analytics.NewAggregator()
		tracker = aggregator
		var snapshotReader analytics.SnapshotReader

		if cfg.Kafka.Enabled {
			topic := cfg.Kafka.Topics.AnalyticsEvents
			producer := kafka.NewProducer(cfg.Kafka, topic)
			defer producer.Close()
			collector := analytics.NewCollector(producer, analytics.CollectorOptions{
				BufferSize:    cfg.Analytics.BufferSize,
				BatchSize:     cfg.Analytics.BatchSize,
				FlushInterval: cfg.Analytics.FlushInterval,
			}, m)
			collector.Start(ctx)
			defer collector.Close()
			tracker = collector

			go func() {
				if err := aggregator.Start(ctx, cfg.Kafka, topic); err != nil {
					slog.Error("analytics aggregator error", "error", err)
				}
			}()
			brokers := cfg.Kafka.Brokers
			checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
				return kafka.Ping(ctx, brokers)
			}, true))
		}

		if pg != nil && cfg.Analytics.SnapshotInterval > 0 {
			snapshots := analytics.NewSnapshotStore(pg)
			if err := snapshots.Migrate(ctx); err != nil {
				slog.Warn("analytics snapshots disabled", "error", err)
			} else {
				if last, err := snapshots.Latest(ctx); err == nil && last != nil {
					slog.Info("previous analytics snapshot", "total_selections", last.TotalSelections)
				}
				snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
				snapshotReader = snapshots
			}
		}
		analyticsH = analytics.NewHandler(aggregator, snapshotReader)

		store.OnSwap(func(snap *corpus.Snapshot) {
			tracker.Track(analytics.RefreshEvent{
				Type:      analytics.EventRefresh,
				Reason:    "reload",
				Version:   snap.Version,
				Records:   snap.Len(),
				Timestamp: time.Now().UTC(),
			})
		})
	}

	engine := relevance.NewEngine(relevance.OptionsFromConfig(cfg.Relevance, cfg.Corpus.Owner), m)
	h := handler.New(store, engine, announcer, tracker)

	mux := http.NewServeMux()
	h.Register(mux)
	if analyticsH != nil {
		analyticsH.Register(mux)
	}
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	chain = middleware.Metrics(m,
		"/api/v1/context",
		"/api/v1/corpus/refresh",
		"/api/v1/corpus/stats",
		"/api/v1/analytics",
		"/api/v1/analytics/snapshot",
		"/health/live",
		"/health/ready",
	)(chain)
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		defer limiter.Close()
		chain = middleware.RateLimit(limiter, m)(chain)
	}
	chain = middleware.CORS(middleware.NewCORSConfig(cfg.Server.AllowOrigins))(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("context service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("context service stopped")
}
