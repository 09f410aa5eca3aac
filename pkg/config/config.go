// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Corpus, Relevance, Postgres, Redis, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Relevance RelevanceConfig `yaml:"relevance"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	AllowOrigins    []string      `yaml:"allowOrigins"`
}

// Corpus source kinds.
const (
	SourceArchive  = "archive"
	SourcePostgres = "postgres"
)

// CorpusConfig selects where records come from and where the raw store lives.
type CorpusConfig struct {
	Source       string        `yaml:"source"`
	ArchivePath  string        `yaml:"archivePath"`
	RawStorePath string        `yaml:"rawStorePath"`
	Owner        string        `yaml:"owner"`
	Watch        bool          `yaml:"watch"`
	ReloadRetry  int           `yaml:"reloadRetry"`
	ReloadDelay  time.Duration `yaml:"reloadDelay"`
}

// RawStore returns the raw store path, falling back to the archive itself.
func (c CorpusConfig) RawStore() string {
	if c.RawStorePath != "" {
		return c.RawStorePath
	}
	return c.ArchivePath
}

// Raw scan strategies.
const (
	ScanModeFile  = "scan"
	ScanModeIndex = "index"
)

// RelevanceConfig controls the selection caps and scoring knobs of the
// context engine.
type RelevanceConfig struct {
	RecencyWindow int     `yaml:"recencyWindow"`
	TopK          int     `yaml:"topK"`
	MaxRecords    int     `yaml:"maxRecords"`
	RawMatchBoost float64 `yaml:"rawMatchBoost"`
	// ScanWindow is the raw-scan line window; 0 credits the hit line only.
	ScanWindow  int           `yaml:"scanWindow"`
	ScanMode    string        `yaml:"scanMode"`
	ScanTimeout time.Duration `yaml:"scanTimeout"`
	IDPattern   string        `yaml:"idPattern"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection parameters and the refresh channel used
// to fan corpus reloads out to every replica.
type RedisConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	PoolSize       int    `yaml:"poolSize"`
	RefreshChannel string `yaml:"refreshChannel"`
}

// AnalyticsConfig tunes selection analytics. Events go to Kafka when it is
// enabled and are aggregated in-process otherwise.
type AnalyticsConfig struct {
	Enabled          bool          `yaml:"enabled"`
	BufferSize       int           `yaml:"bufferSize"`
	BatchSize        int           `yaml:"batchSize"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
}

// RateLimitConfig bounds requests per client per window.
type RateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with sensible defaults for any
// missing values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a Config with local-development defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RequestTimeout:  10 * time.Second,
			AllowOrigins:    []string{"*"},
		},
		Corpus: CorpusConfig{
			Source:      SourceArchive,
			ArchivePath: "data/tweets.js",
			ReloadRetry: 3,
			ReloadDelay: 500 * time.Millisecond,
		},
		Relevance: RelevanceConfig{
			RecencyWindow: 75,
			TopK:          150,
			MaxRecords:    200,
			RawMatchBoost: 50,
			ScanWindow:    20,
			ScanMode:      ScanModeFile,
			ScanTimeout:   2 * time.Second,
			IDPattern:     `"id_str"\s*:\s*"(\d+)"`,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "timeline",
			User:            "timeline",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "timeline-context-group",
			Topics: KafkaTopics{
				AnalyticsEvents: "context-analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:           "localhost:6379",
			PoolSize:       10,
			RefreshChannel: "timeline-context:refresh",
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 60,
			Window:   time.Minute,
		},
		Analytics: AnalyticsConfig{
			Enabled:          true,
			BufferSize:       10000,
			BatchSize:        100,
			FlushInterval:    time.Second,
			SnapshotInterval: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	r := c.Relevance
	if r.RecencyWindow < 0 {
		return fmt.Errorf("relevance.recencyWindow must be >= 0, got %d", r.RecencyWindow)
	}
	if r.TopK <= 0 {
		return fmt.Errorf("relevance.topK must be > 0, got %d", r.TopK)
	}
	if r.MaxRecords <= 0 {
		return fmt.Errorf("relevance.maxRecords must be > 0, got %d", r.MaxRecords)
	}
	if r.ScanWindow < 0 {
		return fmt.Errorf("relevance.scanWindow must be >= 0, got %d", r.ScanWindow)
	}
	switch r.ScanMode {
	case ScanModeFile, ScanModeIndex:
	default:
		return fmt.Errorf("relevance.scanMode must be %q or %q, got %q", ScanModeFile, ScanModeIndex, r.ScanMode)
	}
	re, err := regexp.Compile(r.IDPattern)
	if err != nil {
		return fmt.Errorf("relevance.idPattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return fmt.Errorf("relevance.idPattern must contain a capture group for the identifier")
	}
	switch c.Corpus.Source {
	case SourceArchive:
		if c.Corpus.ArchivePath == "" {
			return fmt.Errorf("corpus.archivePath is required for the archive source")
		}
	case SourcePostgres:
	default:
		return fmt.Errorf("corpus.source must be %q or %q, got %q", SourceArchive, SourcePostgres, c.Corpus.Source)
	}
	return nil
}

// applyEnvOverrides reads TC_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TC_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TC_SERVER_ALLOW_ORIGINS"); v != "" {
		cfg.Server.AllowOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("TC_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("TC_CORPUS_ARCHIVE_PATH"); v != "" {
		cfg.Corpus.ArchivePath = v
	}
	if v := os.Getenv("TC_CORPUS_RAW_STORE_PATH"); v != "" {
		cfg.Corpus.RawStorePath = v
	}
	if v := os.Getenv("TC_CORPUS_OWNER"); v != "" {
		cfg.Corpus.Owner = v
	}
	if v := os.Getenv("TC_CORPUS_WATCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Corpus.Watch = b
		}
	}
	if v := os.Getenv("TC_RELEVANCE_SCAN_MODE"); v != "" {
		cfg.Relevance.ScanMode = v
	}
	if v := os.Getenv("TC_RELEVANCE_SCAN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Relevance.ScanTimeout = d
		}
	}
	if v := os.Getenv("TC_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("TC_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("TC_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("TC_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("TC_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("TC_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("TC_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("TC_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("TC_REDIS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if v := os.Getenv("TC_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("TC_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("TC_ANALYTICS_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Analytics.Enabled = b
		}
	}
	if v := os.Getenv("TC_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TC_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
