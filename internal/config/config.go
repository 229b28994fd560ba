package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Resolver  ResolverConfig
	Cache     CacheConfig
	Stream    StreamConfig
	Store     StoreConfig
	Mongo     MongoConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	MinIO     MinIOConfig
	RabbitMQ  RabbitMQConfig
	RateLimit RateLimitConfig
	Archive   ArchiveConfig
	Telemetry TelemetryConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// SlogLevel maps Level to a slog.Level, falling back to info.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type ResolverConfig struct {
	BaseURL        string        `envconfig:"RESOLVER_BASE_URL" default:"https://tera.instavideosave.com/"`
	Timeout        time.Duration `envconfig:"RESOLVER_TIMEOUT" default:"30s"`
	UserAgent      string        `envconfig:"RESOLVER_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"`
	AcceptLanguage string        `envconfig:"RESOLVER_ACCEPT_LANGUAGE" default:"en-US,en;q=0.9"`
}

type CacheConfig struct {
	TTL          time.Duration `envconfig:"CACHE_TTL" default:"5m"`
	Capacity     int           `envconfig:"CACHE_CAPACITY" default:"100"`
	RedisEnabled bool          `envconfig:"CACHE_REDIS_ENABLED" default:"false"`
}

type StreamConfig struct {
	MaxBytes  int64         `envconfig:"STREAM_MAX_BYTES" default:"52428800"`
	ChunkSize int           `envconfig:"STREAM_CHUNK_SIZE" default:"32768"`
	Timeout   time.Duration `envconfig:"STREAM_TIMEOUT" default:"30s"`
}

// Store drivers.
const (
	StoreDriverMongo    = "mongo"
	StoreDriverPostgres = "postgres"
)

type StoreConfig struct {
	Driver string `envconfig:"STORE_DRIVER" default:"mongo"`
}

type MongoConfig struct {
	URI        string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	Database   string `envconfig:"MONGO_DATABASE" default:"video_db"`
	Collection string `envconfig:"MONGO_COLLECTION" default:"videos"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"vidproxy"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"vidproxy"`
	DBName   string `envconfig:"POSTGRES_DB" default:"vidproxy"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type MinIOConfig struct {
	Endpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"videos"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type RabbitMQConfig struct {
	Enabled  bool   `envconfig:"RABBITMQ_ENABLED" default:"false"`
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"vidproxy"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"vidproxy"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

// RateLimitConfig holds per-client request limits, counted per minute.
type RateLimitConfig struct {
	Enabled         bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	GlobalPerMinute int  `envconfig:"RATE_LIMIT_GLOBAL" default:"100"`
	ResolvePerMin   int  `envconfig:"RATE_LIMIT_RESOLVE" default:"10"`
	AdminPerMinute  int  `envconfig:"RATE_LIMIT_ADMIN" default:"5"`

	// TrustProxyHeaders keys limits on X-Real-IP/X-Forwarded-For. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool `envconfig:"RATE_LIMIT_TRUST_PROXY" default:"false"`
}

type ArchiveConfig struct {
	MaxRetries      int           `envconfig:"ARCHIVE_MAX_RETRIES" default:"3"`
	ShutdownTimeout time.Duration `envconfig:"ARCHIVE_SHUTDOWN_TIMEOUT" default:"30s"`
}

type TelemetryConfig struct {
	ServiceName string  `envconfig:"OTEL_SERVICE_NAME" default:"vidproxy"`
	Endpoint    string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
	SampleRate  float64 `envconfig:"OTEL_TRACE_SAMPLE_RATE" default:"0.1"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreDriverMongo, StoreDriverPostgres:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("CACHE_CAPACITY must be positive, got %d", c.Cache.Capacity)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.Cache.TTL)
	}
	if c.Stream.MaxBytes <= 0 {
		return fmt.Errorf("STREAM_MAX_BYTES must be positive, got %d", c.Stream.MaxBytes)
	}
	if c.Stream.ChunkSize <= 0 {
		return fmt.Errorf("STREAM_CHUNK_SIZE must be positive, got %d", c.Stream.ChunkSize)
	}
	if strings.TrimSpace(c.Resolver.BaseURL) == "" {
		return fmt.Errorf("RESOLVER_BASE_URL is required")
	}
	return nil
}
