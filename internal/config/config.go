package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultConcurrency      = 36
	DefaultRequestTimeoutMS = 79900
	DefaultIngestionID      = "test"
	DefaultStorageScheme    = "s3"
)

type Config struct {
	Notify  NotifyConfig
	Storage StorageConfig
	Log     LogConfig
	Audit   AuditConfig
	Cache   CacheConfig
	Sink    SinkConfig
}

type NotifyConfig struct {
	URL            string
	IngestionID    string
	Concurrency    int
	RequestTimeout time.Duration
	RunTimeout     time.Duration
}

type StorageConfig struct {
	Backend   string
	Scheme    string
	Bucket    string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	MaxKeys   int
}

type LogConfig struct {
	Level  string
	Format string
}

type AuditConfig struct {
	DatabaseURL string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

type SinkConfig struct {
	Port           string
	AllowedOrigins []string
}

// MissingError reports required configuration keys that were not supplied.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Keys, ", "))
}

// Load reads configuration from an optional .env file and the environment.
// Every call builds a fresh viper instance.
func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return FromViper(NewViper())
}

// NewViper returns a viper instance with defaults applied and environment
// lookup enabled. Callers may Set overrides before passing it to FromViper.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("URL", "")
	v.SetDefault("BUCKET", "")
	v.SetDefault("INGESTION_ID", DefaultIngestionID)
	v.SetDefault("NOTIFY_CONCURRENCY", DefaultConcurrency)
	v.SetDefault("NOTIFY_REQUEST_TIMEOUT_MS", DefaultRequestTimeoutMS)
	v.SetDefault("NOTIFY_RUN_TIMEOUT_SECONDS", 0)
	v.SetDefault("STORAGE_BACKEND", "s3")
	v.SetDefault("STORAGE_SCHEME", DefaultStorageScheme)
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_REGION", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("S3_MAX_KEYS", 0)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SUMMARY_CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SUMMARY_CACHE_TTL_SECONDS", 86400)
	v.SetDefault("SINK_PORT", "8081")
	v.SetDefault("SINK_ALLOWED_ORIGINS", []string{"*"})

	// Read from environment variables
	v.AutomaticEnv()

	return v
}

// FromViper materializes a Config from v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Notify: NotifyConfig{
			URL:            strings.TrimSpace(v.GetString("URL")),
			IngestionID:    v.GetString("INGESTION_ID"),
			Concurrency:    v.GetInt("NOTIFY_CONCURRENCY"),
			RequestTimeout: time.Duration(v.GetInt("NOTIFY_REQUEST_TIMEOUT_MS")) * time.Millisecond,
			RunTimeout:     time.Duration(v.GetInt("NOTIFY_RUN_TIMEOUT_SECONDS")) * time.Second,
		},
		Storage: StorageConfig{
			Backend:   strings.ToLower(v.GetString("STORAGE_BACKEND")),
			Scheme:    v.GetString("STORAGE_SCHEME"),
			Bucket:    strings.TrimSpace(v.GetString("BUCKET")),
			Endpoint:  v.GetString("S3_ENDPOINT"),
			Region:    v.GetString("S3_REGION"),
			AccessKey: v.GetString("S3_ACCESS_KEY"),
			SecretKey: v.GetString("S3_SECRET_KEY"),
			UseSSL:    v.GetBool("S3_USE_SSL"),
			MaxKeys:   v.GetInt("S3_MAX_KEYS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Audit: AuditConfig{
			DatabaseURL: v.GetString("DATABASE_URL"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("SUMMARY_CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			TTLSeconds:    v.GetInt("SUMMARY_CACHE_TTL_SECONDS"),
		},
		Sink: SinkConfig{
			Port:           v.GetString("SINK_PORT"),
			AllowedOrigins: v.GetStringSlice("SINK_ALLOWED_ORIGINS"),
		},
	}
}

// Validate checks the settings the notifier cannot run without.
func (c *Config) Validate() error {
	var missing []string
	if c.Notify.URL == "" {
		missing = append(missing, "URL")
	}
	if c.Storage.Bucket == "" {
		missing = append(missing, "BUCKET")
	}
	if len(missing) > 0 {
		return &MissingError{Keys: missing}
	}

	switch c.Storage.Backend {
	case "s3", "minio":
	default:
		return fmt.Errorf("unsupported storage backend %q", c.Storage.Backend)
	}
	if c.Notify.Concurrency < 0 {
		return fmt.Errorf("NOTIFY_CONCURRENCY must not be negative, got %d", c.Notify.Concurrency)
	}
	if c.Notify.RequestTimeout <= 0 {
		return fmt.Errorf("NOTIFY_REQUEST_TIMEOUT_MS must be positive")
	}
	return nil
}
