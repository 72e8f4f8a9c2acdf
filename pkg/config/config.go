package config

import (
	"errors"
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

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Audit     AuditConfig
	Retention RetentionConfig
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
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AuditConfig tunes the request interceptor and the background audit writer.
type AuditConfig struct {
	LogLevel         string
	ExcludePaths     []string
	ExcludeMethods   []string
	QueueWorkers     int
	QueueBuffer      int
	QueueRetries     int
	DrainTimeout     time.Duration
	StatsCacheTTL    time.Duration
	ExportMaxRecords int
	DetailsMaxLen    int
}

// RetentionConfig bounds the administrative cleanup endpoint.
type RetentionConfig struct {
	MinAgeDays int
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Audit = AuditConfig{
		LogLevel:         v.GetString("AUDIT_LOG_LEVEL"),
		ExcludePaths:     splitAndTrim(v.GetString("AUDIT_EXCLUDE_PATHS")),
		ExcludeMethods:   splitAndTrim(v.GetString("AUDIT_EXCLUDE_METHODS")),
		QueueWorkers:     v.GetInt("AUDIT_QUEUE_WORKERS"),
		QueueBuffer:      v.GetInt("AUDIT_QUEUE_BUFFER"),
		QueueRetries:     v.GetInt("AUDIT_QUEUE_RETRIES"),
		DrainTimeout:     parseDuration(v.GetString("AUDIT_DRAIN_TIMEOUT"), 10*time.Second),
		StatsCacheTTL:    parseDuration(v.GetString("AUDIT_STATS_CACHE_TTL"), 5*time.Minute),
		ExportMaxRecords: v.GetInt("AUDIT_EXPORT_MAX_RECORDS"),
		DetailsMaxLen:    v.GetInt("AUDIT_DETAILS_MAX_LEN"),
	}

	cfg.Retention = RetentionConfig{
		MinAgeDays: v.GetInt("AUDIT_RETENTION_MIN_AGE_DAYS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "secaware_admin")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AUDIT_LOG_LEVEL", "all")
	v.SetDefault("AUDIT_EXCLUDE_PATHS", "/health,/ready,/metrics,/docs,/favicon.ico,/static")
	v.SetDefault("AUDIT_EXCLUDE_METHODS", "OPTIONS,HEAD")
	v.SetDefault("AUDIT_QUEUE_WORKERS", 2)
	v.SetDefault("AUDIT_QUEUE_BUFFER", 256)
	v.SetDefault("AUDIT_QUEUE_RETRIES", 3)
	v.SetDefault("AUDIT_DRAIN_TIMEOUT", "10s")
	v.SetDefault("AUDIT_STATS_CACHE_TTL", "5m")
	v.SetDefault("AUDIT_EXPORT_MAX_RECORDS", 10000)
	v.SetDefault("AUDIT_DETAILS_MAX_LEN", 1000)

	v.SetDefault("AUDIT_RETENTION_MIN_AGE_DAYS", 30)
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
