// Package config loads and validates application configuration from YAML or
// TOML files with environment-variable overrides. It provides typed structs
// for every subsystem (Server, Index, Search, Ingestion, Postgres, Redis,
// Kafka, Logging, Metrics).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	apperrors "github.com/Adithya-Monish-Kumar-K/plotsearch/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Index     IndexConfig     `yaml:"index" toml:"index"`
	Search    SearchConfig    `yaml:"search" toml:"search"`
	Ingestion IngestionConfig `yaml:"ingestion" toml:"ingestion"`
	Postgres  PostgresConfig  `yaml:"postgres" toml:"postgres"`
	Redis     RedisConfig     `yaml:"redis" toml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka" toml:"kafka"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port" toml:"port"`
	ReadTimeout     Duration `yaml:"readTimeout" toml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout" toml:"writeTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout" toml:"shutdownTimeout"`
	RequestTimeout  Duration `yaml:"requestTimeout" toml:"requestTimeout"`

	// CORSOrigins lists origins allowed to call the API; "*" allows any.
	CORSOrigins []string `yaml:"corsOrigins" toml:"corsOrigins"`

	// RateLimit is the per-client API budget in requests per minute.
	// Zero disables limiting.
	RateLimit int `yaml:"rateLimit" toml:"rateLimit"`
}

// IndexConfig locates the on-disk index and bounds what a load may allocate.
type IndexConfig struct {
	BasePath     string `yaml:"basePath" toml:"basePath"`
	MaxBlockSize int    `yaml:"maxBlockSize" toml:"maxBlockSize"`
}

// BM25Config holds the default ranking parameters.
type BM25Config struct {
	K1          float64 `yaml:"k1" toml:"k1"`
	B           float64 `yaml:"b" toml:"b"`
	TitleWeight float64 `yaml:"titleWeight" toml:"titleWeight"`
}

// SearchConfig controls result limits, ranking defaults, and snippets.
type SearchConfig struct {
	DefaultLimit  int        `yaml:"defaultLimit" toml:"defaultLimit"`
	MaxResults    int        `yaml:"maxResults" toml:"maxResults"`
	BM25          BM25Config `yaml:"bm25" toml:"bm25"`
	TitleSnippet  int        `yaml:"titleSnippet" toml:"titleSnippet"`
	PlotSnippet   int        `yaml:"plotSnippet" toml:"plotSnippet"`
	CacheResults  bool       `yaml:"cacheResults" toml:"cacheResults"`
	PublishEvents bool       `yaml:"publishEvents" toml:"publishEvents"`
}

// IngestionConfig selects and shapes the document source for index builds.
type IngestionConfig struct {
	Source         string `yaml:"source" toml:"source"`
	CSVPath        string `yaml:"csvPath" toml:"csvPath"`
	TitleColumn    int    `yaml:"titleColumn" toml:"titleColumn"`
	PlotColumn     int    `yaml:"plotColumn" toml:"plotColumn"`
	MinColumns     int    `yaml:"minColumns" toml:"minColumns"`
	Table          string `yaml:"table" toml:"table"`
	MaxTitleLength int    `yaml:"maxTitleLength" toml:"maxTitleLength"`
	MaxPlotLength  int    `yaml:"maxPlotLength" toml:"maxPlotLength"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string   `yaml:"host" toml:"host"`
	Port            int      `yaml:"port" toml:"port"`
	Database        string   `yaml:"database" toml:"database"`
	User            string   `yaml:"user" toml:"user"`
	Password        string   `yaml:"password" toml:"password"`
	SSLMode         string   `yaml:"sslMode" toml:"sslMode"`
	MaxOpenConns    int      `yaml:"maxOpenConns" toml:"maxOpenConns"`
	MaxIdleConns    int      `yaml:"maxIdleConns" toml:"maxIdleConns"`
	ConnMaxLifetime Duration `yaml:"connMaxLifetime" toml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string   `yaml:"addr" toml:"addr"`
	Password string   `yaml:"password" toml:"password"`
	DB       int      `yaml:"db" toml:"db"`
	PoolSize int      `yaml:"poolSize" toml:"poolSize"`
	CacheTTL Duration `yaml:"cacheTTL" toml:"cacheTTL"`
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers" toml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup" toml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics" toml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	SearchEvents string `yaml:"searchEvents" toml:"searchEvents"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	Port    int  `yaml:"port" toml:"port"`
}

// Load reads a YAML or TOML config file (if provided), chosen by extension,
// on top of the defaults and then applies environment-variable overrides.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".toml":
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		default:
			return nil, fmt.Errorf("config file %s: unsupported extension %q: %w", path, ext, apperrors.ErrInvalidInput)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Index.BasePath == "" {
		errs = append(errs, errors.New("index.basePath is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rateLimit must be >= 0, got %d", c.Server.RateLimit))
	}
	if c.Search.BM25.K1 < 0 {
		errs = append(errs, fmt.Errorf("search.bm25.k1 must be >= 0, got %g", c.Search.BM25.K1))
	}
	if c.Search.BM25.B < 0 || c.Search.BM25.B > 1 {
		errs = append(errs, fmt.Errorf("search.bm25.b must be within [0, 1], got %g", c.Search.BM25.B))
	}
	if c.Search.BM25.TitleWeight < 0 {
		errs = append(errs, fmt.Errorf("search.bm25.titleWeight must be >= 0, got %g", c.Search.BM25.TitleWeight))
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxResults < c.Search.DefaultLimit {
		errs = append(errs, fmt.Errorf("search limits invalid: defaultLimit=%d maxResults=%d",
			c.Search.DefaultLimit, c.Search.MaxResults))
	}
	switch c.Ingestion.Source {
	case "csv", "postgres":
	default:
		errs = append(errs, fmt.Errorf("ingestion.source must be csv or postgres, got %q", c.Ingestion.Source))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local
// development.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
			RequestTimeout:  Duration(5 * time.Second),
		},
		Index: IndexConfig{
			BasePath:     "index",
			MaxBlockSize: 64 << 20,
		},
		Search: SearchConfig{
			DefaultLimit: 20,
			MaxResults:   100,
			BM25: BM25Config{
				K1:          1.2,
				B:           0.75,
				TitleWeight: 5.0,
			},
			TitleSnippet: 100,
			PlotSnippet:  300,
		},
		Ingestion: IngestionConfig{
			Source:         "csv",
			CSVPath:        "movies.csv",
			TitleColumn:    1,
			PlotColumn:     7,
			MinColumns:     8,
			Table:          "movies",
			MaxTitleLength: 1024,
			MaxPlotLength:  1 << 20,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "plotsearch",
			User:            "plotsearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: Duration(5 * time.Minute),
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: Duration(60 * time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "plotsearch-analytics",
			Topics: KafkaTopics{
				SearchEvents: "search-events",
			},
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

// applyEnvOverrides reads PS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	setInt("PS_SERVER_PORT", &cfg.Server.Port)
	setInt("PS_SERVER_RATE_LIMIT", &cfg.Server.RateLimit)
	setString("PS_INDEX_BASE_PATH", &cfg.Index.BasePath)
	setInt("PS_INDEX_MAX_BLOCK_SIZE", &cfg.Index.MaxBlockSize)
	setInt("PS_SEARCH_DEFAULT_LIMIT", &cfg.Search.DefaultLimit)
	setInt("PS_SEARCH_MAX_RESULTS", &cfg.Search.MaxResults)
	setFloat("PS_SEARCH_K1", &cfg.Search.BM25.K1)
	setFloat("PS_SEARCH_B", &cfg.Search.BM25.B)
	setFloat("PS_SEARCH_TITLE_WEIGHT", &cfg.Search.BM25.TitleWeight)
	setBool("PS_SEARCH_CACHE_RESULTS", &cfg.Search.CacheResults)
	setBool("PS_SEARCH_PUBLISH_EVENTS", &cfg.Search.PublishEvents)
	setString("PS_INGESTION_SOURCE", &cfg.Ingestion.Source)
	setString("PS_INGESTION_CSV_PATH", &cfg.Ingestion.CSVPath)
	setString("PS_INGESTION_TABLE", &cfg.Ingestion.Table)
	setString("PS_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("PS_POSTGRES_PORT", &cfg.Postgres.Port)
	setString("PS_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setString("PS_POSTGRES_USER", &cfg.Postgres.User)
	setString("PS_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setString("PS_POSTGRES_SSLMODE", &cfg.Postgres.SSLMode)
	setString("PS_REDIS_ADDR", &cfg.Redis.Addr)
	setString("PS_REDIS_PASSWORD", &cfg.Redis.Password)
	if v := os.Getenv("PS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	setString("PS_LOGGING_LEVEL", &cfg.Logging.Level)
	setString("PS_LOGGING_FORMAT", &cfg.Logging.Format)
	setBool("PS_METRICS_ENABLED", &cfg.Metrics.Enabled)
	setInt("PS_METRICS_PORT", &cfg.Metrics.Port)
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
