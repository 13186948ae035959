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

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Features FeatureConfig
	Runs     RunConfig
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

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// FeatureConfig gates the optional shells around the optimization core.
// The engine itself never reads these; with everything off the service
// still generates timetables in memory.
type FeatureConfig struct {
	Persistence   bool
	ProgressCache bool
	Exports       bool
	Docs          bool
}

// RunConfig tunes the run orchestration service. Solver parameters are
// not configured here; they arrive per request in the snapshot settings.
type RunConfig struct {
	MaxConcurrent    int
	TTL              time.Duration
	DefaultDeadline  time.Duration
	ProgressBuffer   int
	SyncSessionLimit int
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

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Features = FeatureConfig{
		Persistence:   v.GetBool("ENABLE_PERSISTENCE"),
		ProgressCache: v.GetBool("ENABLE_PROGRESS_CACHE"),
		Exports:       v.GetBool("ENABLE_EXPORTS"),
		Docs:          v.GetBool("ENABLE_DOCS"),
	}

	cfg.Runs = RunConfig{
		MaxConcurrent:    v.GetInt("SCHEDULER_MAX_CONCURRENT_RUNS"),
		TTL:              parseDuration(v.GetString("SCHEDULER_RUN_TTL"), time.Hour),
		DefaultDeadline:  parseDuration(v.GetString("SCHEDULER_DEFAULT_DEADLINE"), 5*time.Minute),
		ProgressBuffer:   v.GetInt("SCHEDULER_PROGRESS_BUFFER"),
		SyncSessionLimit: v.GetInt("SCHEDULER_SYNC_SESSION_LIMIT"),
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
	v.SetDefault("DB_NAME", "sma_timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_PERSISTENCE", false)
	v.SetDefault("ENABLE_PROGRESS_CACHE", false)
	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("ENABLE_DOCS", true)

	v.SetDefault("SCHEDULER_MAX_CONCURRENT_RUNS", 2)
	v.SetDefault("SCHEDULER_RUN_TTL", "1h")
	v.SetDefault("SCHEDULER_DEFAULT_DEADLINE", "5m")
	v.SetDefault("SCHEDULER_PROGRESS_BUFFER", 256)
	v.SetDefault("SCHEDULER_SYNC_SESSION_LIMIT", 50)
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
