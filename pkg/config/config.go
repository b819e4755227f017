package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/FACorreiaa/boleto-drafts/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Storage       storage.Config
	Observability ObservabilityConfig
	Drafts        DraftsConfig
	Log           LogConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	CORSOrigins        []string
	MaxUploadBytes     int64
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
}

// DraftsConfig controls the stale draft purge job. RetentionDays 0 disables it.
type DraftsConfig struct {
	RetentionDays int
	PurgeSchedule string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables, after an optional .env
func Load() (*Config, error) {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:               getEnv("SERVER_HOST", "localhost"),
			Port:               getEnvAsInt("SERVER_PORT", 8080),
			RateLimitPerSecond: getEnvAsInt("SERVER_RATE_LIMIT_PER_SECOND", 100),
			RateLimitBurst:     getEnvAsInt("SERVER_RATE_LIMIT_BURST", 200),
			CORSOrigins:        getEnvAsList("CORS_ALLOWED_ORIGINS"),
			MaxUploadBytes:     int64(getEnvAsInt("MAX_UPLOAD_MB", 10)) << 20,
			ShutdownTimeout:    time.Duration(getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 15)) * time.Second,
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvAsInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "postgres"),
			Password: getEnv("POSTGRES_PASSWORD", "postgres"),
			Database: getEnv("POSTGRES_DB", "boletos"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getEnvAsInt("POSTGRES_MAX_CONNS", 25),
			MinConns: getEnvAsInt("POSTGRES_MIN_CONNS", 5),
		},
		Storage: storage.Config{
			Type:              storage.StorageType(getEnv("STORAGE_TYPE", string(storage.StorageTypeLocal))),
			LocalPath:         getEnv("STORAGE_LOCAL_PATH", "./uploads"),
			S3Bucket:          getEnv("S3_BUCKET", ""),
			S3Region:          getEnv("S3_REGION", "us-east-1"),
			S3Endpoint:        getEnv("S3_ENDPOINT", ""),
			S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
		Drafts: DraftsConfig{
			RetentionDays: getEnvAsInt("DRAFT_RETENTION_DAYS", 30),
			PurgeSchedule: getEnv("DRAFT_PURGE_SCHEDULE", "0 3 * * *"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_MB must be positive")
	}
	if c.Drafts.RetentionDays < 0 {
		return errors.New("DRAFT_RETENTION_DAYS must not be negative")
	}
	switch c.Storage.Type {
	case storage.StorageTypeNone, storage.StorageTypeLocal:
	case storage.StorageTypeS3:
		if c.Storage.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when STORAGE_TYPE=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q", c.Storage.Type)
	}
	return nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Retention is the purge age, zero when purging is disabled
func (c DraftsConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// SlogLevel maps LOG_LEVEL onto slog, defaulting to info
func (c LogConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
