package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Storage    StorageConfig
	Allocation AllocationConfig
	Cache      ResultCacheConfig
	Jobs       JobsConfig
	Tracing    TracingConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret      string
	AuthEnabled bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StorageConfig locates generated allocation files and controls signed downloads.
type StorageConfig struct {
	URL             string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// AllocationConfig fixes the engine policies and upload limits.
type AllocationConfig struct {
	CohortOrder    string
	MaxUploadBytes int64
	Formats        []string
}

// ResultCacheConfig toggles the redis-backed result cache.
type ResultCacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// JobsConfig configures asynchronous allocation runs.
type JobsConfig struct {
	Enabled           bool
	WorkerConcurrency int
	WorkerRetries     int
}

// TracingConfig selects the span exporter.
type TracingConfig struct {
	Exporter    string
	ServiceName string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:      v.GetString("JWT_SECRET"),
		AuthEnabled: v.GetBool("AUTH_ENABLED"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Storage = StorageConfig{
		URL:             v.GetString("STORAGE_URL"),
		SignedURLSecret: v.GetString("SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("STORAGE_CLEANUP_INTERVAL"), time.Hour),
	}

	maxUpload := v.GetInt64("ALLOCATION_MAX_UPLOAD_BYTES")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	cfg.Allocation = AllocationConfig{
		CohortOrder:    v.GetString("ALLOCATION_COHORT_ORDER"),
		MaxUploadBytes: maxUpload,
		Formats:        splitAndTrim(v.GetString("ALLOCATION_FORMATS")),
	}

	cfg.Cache = ResultCacheConfig{
		Enabled: v.GetBool("ENABLE_RESULT_CACHE"),
		TTL:     parseDuration(v.GetString("RESULT_CACHE_TTL"), 15*time.Minute),
	}

	cfg.Jobs = JobsConfig{
		Enabled:           v.GetBool("ENABLE_ALLOCATION_JOBS"),
		WorkerConcurrency: v.GetInt("JOBS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("JOBS_WORKER_RETRIES"),
	}

	cfg.Tracing = TracingConfig{
		Exporter:    v.GetString("TRACING_EXPORTER"),
		ServiceName: v.GetString("TRACING_SERVICE_NAME"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "exam_allocator")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("AUTH_ENABLED", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("STORAGE_URL", "file://localhost/tmp/exam-allocations")
	v.SetDefault("SIGNED_URL_SECRET", "dev_allocations_secret")
	v.SetDefault("SIGNED_URL_TTL", "24h")
	v.SetDefault("STORAGE_CLEANUP_INTERVAL", "1h")

	v.SetDefault("ALLOCATION_COHORT_ORDER", "largest_first")
	v.SetDefault("ALLOCATION_MAX_UPLOAD_BYTES", 10*1024*1024)
	v.SetDefault("ALLOCATION_FORMATS", "csv")

	v.SetDefault("ENABLE_RESULT_CACHE", false)
	v.SetDefault("RESULT_CACHE_TTL", "15m")

	v.SetDefault("ENABLE_ALLOCATION_JOBS", false)
	v.SetDefault("JOBS_WORKER_CONCURRENCY", 1)
	v.SetDefault("JOBS_WORKER_RETRIES", 3)

	v.SetDefault("TRACING_EXPORTER", "none")
	v.SetDefault("TRACING_SERVICE_NAME", "exam-room-allocator")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
